package graph

import "sort"

// HubNode is a component with high connectivity
type HubNode struct {
	Name      string `json:"name"`
	Degree    int    `json:"degree"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
	Rules     int    `json:"rules"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TopologyReport contains topology analysis results
type TopologyReport struct {
	TotalComponents int            `json:"total_components"`
	TotalEdges      int            `json:"total_edges"`
	NumGroups       int            `json:"num_groups"`
	LargestGroup    int            `json:"largest_group"`
	SmallestGroup   int            `json:"smallest_group"`
	Groups          [][]string     `json:"groups,omitempty"`
	OrphanCount     int            `json:"orphan_count"`
	Orphans         []string       `json:"orphans"`
	Sources         []string       `json:"sources"`
	Sinks           []string       `json:"sinks"`
	DegreeHistogram []DegreeBucket `json:"degree_histogram"`
	Hubs            []HubNode      `json:"hubs"`
}

// ComputeTopology analyzes the dependency graph: connected groups, orphans,
// sources, sinks, degree distribution, hubs
func ComputeTopology(snap *GraphSnapshot, hubThreshold, topN int) *TopologyReport {
	total := len(snap.Nodes)
	if total == 0 {
		return &TopologyReport{DegreeHistogram: defaultHistogram()}
	}

	uf := NewUnionFind(total)
	for _, e := range snap.Edges {
		uf.Union(e.Source, e.Target)
	}

	groups := uf.Groups()
	largest, smallest := 0, total
	var named [][]string
	for _, g := range groups {
		if len(g) > largest {
			largest = len(g)
		}
		if len(g) < smallest {
			smallest = len(g)
		}
		if len(g) > 1 && len(named) < topN {
			named = append(named, snap.Names(g))
		}
	}

	var orphans []string
	for i, n := range snap.Nodes {
		if len(snap.Adj[i]) == 0 {
			orphans = append(orphans, n.Name)
		}
	}
	orphanCount := len(orphans)
	sort.Strings(orphans)
	if len(orphans) > topN {
		orphans = orphans[:topN]
	}

	buckets := [7]int{}
	for i := range snap.Nodes {
		buckets[degreeBucket(len(snap.Adj[i]))]++
	}
	histogram := defaultHistogram()
	for i := range histogram {
		histogram[i].Count = buckets[i]
	}

	var hubs []HubNode
	for i, n := range snap.Nodes {
		degree := len(snap.Adj[i])
		if degree > hubThreshold {
			hubs = append(hubs, HubNode{
				Name:      n.Name,
				Degree:    degree,
				InDegree:  len(snap.InAdj[i]),
				OutDegree: len(snap.OutAdj[i]),
				Rules:     n.Rules,
			})
		}
	}
	sort.SliceStable(hubs, func(i, j int) bool { return hubs[i].Degree > hubs[j].Degree })
	if len(hubs) > topN {
		hubs = hubs[:topN]
	}

	sources := snap.Names(snap.Sources())
	sinks := snap.Names(snap.Sinks())
	sort.Strings(sources)
	sort.Strings(sinks)

	return &TopologyReport{
		TotalComponents: total,
		TotalEdges:      len(snap.Edges),
		NumGroups:       len(groups),
		LargestGroup:    largest,
		SmallestGroup:   smallest,
		Groups:          named,
		OrphanCount:     orphanCount,
		Orphans:         orphans,
		Sources:         sources,
		Sinks:           sinks,
		DegreeHistogram: histogram,
		Hubs:            hubs,
	}
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"},
		{Label: "4-7"}, {Label: "8-15"}, {Label: "16-31"}, {Label: "32+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	case degree <= 31:
		return 5
	default:
		return 6
	}
}
