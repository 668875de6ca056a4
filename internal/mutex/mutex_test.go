package mutex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncats/chp/internal/fusion"
	"ncats/chp/internal/hypergraph"
)

func n(c, s int) hypergraph.INode { return hypergraph.INode{Component: c, State: s} }

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		nodes     []hypergraph.INode
		wantBad   bool
		wantPairs []Pair
	}{
		{"empty", nil, false, nil},
		{"distinct components", []hypergraph.INode{n(0, 1), n(1, 0), n(2, 3)}, false, nil},
		{"same state twice", []hypergraph.INode{n(0, 1), n(0, 1)}, false, nil},
		{"two states", []hypergraph.INode{n(2, 1), n(0, 0), n(2, 0)}, true, []Pair{{n(2, 0), n(2, 1)}}},
		{"three states", []hypergraph.INode{n(1, 0), n(1, 1), n(1, 2)}, true, []Pair{
			{n(1, 0), n(1, 1)}, {n(1, 0), n(1, 2)}, {n(1, 1), n(1, 2)},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad, pairs := Check(tt.nodes)
			assert.Equal(t, tt.wantBad, bad)
			assert.Equal(t, tt.wantPairs, pairs)
		})
	}
}

func TestCheckRequirements(t *testing.T) {
	evidence := Requirement{Label: "Survival_Time in [0,500)", Component: 3, States: []int{0}, Role: RoleEvidence}
	targetLong := Requirement{Label: "Survival_Time >= 970", Component: 3, States: []int{1, 2}, Role: RoleTarget}
	targetShort := Requirement{Label: "Survival_Time=[0,500)", Component: 3, States: []int{0}, Role: RoleTarget}
	overlapping := Requirement{Label: "Survival_Time <= 600", Component: 3, States: []int{0, 1}, Role: RoleEvidence}

	bad, conflicts := CheckRequirements([]Requirement{evidence, targetLong})
	require.True(t, bad)
	require.Len(t, conflicts, 1)
	assert.Equal(t, Pair{n(3, 0), n(3, 1)}, conflicts[0].Pair)
	assert.Equal(t, evidence.Label, conflicts[0].A.Label)

	bad, _ = CheckRequirements([]Requirement{targetLong, targetShort})
	assert.False(t, bad, "targets are alternatives")

	bad, _ = CheckRequirements([]Requirement{overlapping, targetLong})
	assert.False(t, bad, "overlapping state sets are satisfiable")
}

func TestFusedNonContradictoryFragmentsAreClean(t *testing.T) {
	mk := func(outcome, gene string) fusion.Fragment {
		return fusion.Fragment{
			Components: []fusion.ComponentSpec{
				{Name: "Survival_Time", States: []string{"short", "long"}},
				{Name: gene, States: []string{"False", "True"}},
			},
			Rules: []fusion.Rule{
				{Head: fusion.NodeRef{Component: gene, State: "True"}, Prob: 1},
				{Head: fusion.NodeRef{Component: "Survival_Time", State: outcome}, Prob: 1,
					Tail: []fusion.NodeRef{{Component: gene, State: "True"}}},
			},
		}
	}
	h, err := fusion.Fuse(
		[]fusion.Fragment{mk("long", "mut_RAF1"), mk("short", "mut_RAF1"), mk("short", "mut_BRCA1")},
		[]float64{1, 1, 1}, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Empty(t, CheckHypergraph(h))
}

func TestInjectedContradictionIsDetected(t *testing.T) {
	h := hypergraph.New()
	gene, _ := h.AddComponent("mut_RAF1")
	f, _ := h.AddState(gene, "False")
	tr, _ := h.AddState(gene, "True")
	surv, _ := h.AddComponent("Survival_Time")
	long, _ := h.AddState(surv, "long")

	_, err := h.AddSNode(hypergraph.SNode{Head: long, Prob: 1, Tail: []hypergraph.INode{tr, f}})
	require.NoError(t, err)

	v := CheckHypergraph(h)
	require.Len(t, v, 1)
	assert.Equal(t, 0, v[0].SNode)
	assert.Equal(t, Pair{f, tr}, v[0].Pair)
}
