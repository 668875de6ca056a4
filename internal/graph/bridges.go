package graph

import "sort"

// ArticulationPoint is a component whose removal splits its group
type ArticulationPoint struct {
	Name      string `json:"name"`
	Neighbors int    `json:"neighbors"`
}

// BridgeEdge is a dependency whose removal splits its group
type BridgeEdge struct {
	A string `json:"a"`
	B string `json:"b"`
}

// ThinDependency is an edge backed by very few S-nodes
type ThinDependency struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Rules  int    `json:"rules"`
}

// BridgeReport contains bridge analysis results
type BridgeReport struct {
	ArticulationPoints []ArticulationPoint `json:"articulation_points"`
	BridgeEdges        []BridgeEdge        `json:"bridge_edges"`
	ThinDependencies   []ThinDependency    `json:"thin_dependencies"`
	APCount            int                 `json:"ap_count"`
	BridgeCount        int                 `json:"bridge_count"`
}

// ComputeBridges finds articulation points and bridge edges of the undirected
// dependency graph, plus dependencies supported by at most thinRules S-nodes
func ComputeBridges(snap *GraphSnapshot, thinRules int) *BridgeReport {
	n := len(snap.Nodes)
	if n == 0 {
		return &BridgeReport{}
	}

	disc := make([]int, n)
	low := make([]int, n)
	visited := make([]bool, n)
	isAP := make([]bool, n)
	var bridgePairs [][2]int
	counter := 1

	const noParent = -1

	// Iterative Tarjan for each connected group
	type frame struct {
		node, parent, ni int
	}

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		visited[start] = true
		disc[start] = counter
		low[start] = counter
		counter++

		stack := []frame{{start, noParent, 0}}
		rootChildren := 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			node := top.node

			if top.ni < len(snap.Adj[node]) {
				child := snap.Adj[node][top.ni]
				top.ni++

				if child == top.parent {
					continue
				}
				if visited[child] {
					if disc[child] < low[node] {
						low[node] = disc[child]
					}
					continue
				}

				visited[child] = true
				disc[child] = counter
				low[child] = counter
				counter++
				if node == start {
					rootChildren++
				}
				stack = append(stack, frame{child, node, 0})
				continue
			}

			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				continue
			}
			pn := stack[len(stack)-1].node
			if low[node] < low[pn] {
				low[pn] = low[node]
			}
			if low[node] > disc[pn] {
				bridgePairs = append(bridgePairs, [2]int{pn, node})
			}
			if pn != start && low[node] >= disc[pn] {
				isAP[pn] = true
			}
		}

		if rootChildren >= 2 {
			isAP[start] = true
		}
	}

	var aps []ArticulationPoint
	for i := 0; i < n; i++ {
		if isAP[i] {
			aps = append(aps, ArticulationPoint{Name: snap.Nodes[i].Name, Neighbors: len(snap.Adj[i])})
		}
	}

	var bridges []BridgeEdge
	for _, pair := range bridgePairs {
		a, b := snap.Nodes[pair[0]].Name, snap.Nodes[pair[1]].Name
		if a > b {
			a, b = b, a
		}
		bridges = append(bridges, BridgeEdge{A: a, B: b})
	}
	sort.Slice(bridges, func(i, j int) bool {
		if bridges[i].A != bridges[j].A {
			return bridges[i].A < bridges[j].A
		}
		return bridges[i].B < bridges[j].B
	})

	var thin []ThinDependency
	for _, e := range snap.Edges {
		if e.Rules <= thinRules {
			thin = append(thin, ThinDependency{
				Source: snap.Nodes[e.Source].Name,
				Target: snap.Nodes[e.Target].Name,
				Rules:  e.Rules,
			})
		}
	}
	sort.SliceStable(thin, func(i, j int) bool { return thin[i].Rules < thin[j].Rules })

	return &BridgeReport{
		ArticulationPoints: aps,
		BridgeEdges:        bridges,
		ThinDependencies:   thin,
		APCount:            len(aps),
		BridgeCount:        len(bridges),
	}
}
