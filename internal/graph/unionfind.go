package graph

import "sort"

// UnionFind implements union-find over dense indices with path compression
// and union by rank
type UnionFind struct {
	parent []int
	rank   []int
	size   []int
}

// NewUnionFind creates a UnionFind over 0..n-1 where each index is its own group
func NewUnionFind(n int) *UnionFind {
	uf := &UnionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
		size:   make([]int, n),
	}
	for i := 0; i < n; i++ {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

// Find returns the root of the group containing i, with path compression
func (uf *UnionFind) Find(i int) int {
	if i < 0 || i >= len(uf.parent) {
		return i
	}
	root := i
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[i] != root {
		next := uf.parent[i]
		uf.parent[i] = root
		i = next
	}
	return root
}

// Union merges the groups containing a and b. Returns true if they were separate.
func (uf *UnionFind) Union(a, b int) bool {
	rootA := uf.Find(a)
	rootB := uf.Find(b)
	if rootA == rootB {
		return false
	}
	if uf.rank[rootA] < uf.rank[rootB] {
		rootA, rootB = rootB, rootA
	}
	uf.parent[rootB] = rootA
	uf.size[rootA] += uf.size[rootB]
	if uf.rank[rootA] == uf.rank[rootB] {
		uf.rank[rootA]++
	}
	return true
}

// Size returns the number of members in i's group
func (uf *UnionFind) Size(i int) int {
	return uf.size[uf.Find(i)]
}

// Groups returns every group as a sorted index slice, ordered by first member
func (uf *UnionFind) Groups() [][]int {
	byRoot := make(map[int][]int)
	var roots []int
	for i := range uf.parent {
		r := uf.Find(i)
		if _, ok := byRoot[r]; !ok {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], i)
	}
	out := make([][]int, 0, len(roots))
	for _, r := range roots {
		out = append(out, byRoot[r])
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
