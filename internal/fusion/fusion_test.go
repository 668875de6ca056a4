package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/hypergraph"
)

var boolStates = []string{"False", "True"}

func patientFragment(outcome string, genes ...string) Fragment {
	f := Fragment{
		Components: []ComponentSpec{{Name: "Survival_Time", States: []string{"short", "long"}}},
	}
	var tail []NodeRef
	for _, g := range genes {
		f.Components = append(f.Components, ComponentSpec{Name: g, States: boolStates})
		ref := NodeRef{Component: g, State: "True"}
		f.Rules = append(f.Rules, Rule{Head: ref, Prob: 1})
		tail = append(tail, ref)
	}
	f.Rules = append(f.Rules, Rule{Head: NodeRef{"Survival_Time", outcome}, Prob: 1, Tail: tail})
	return f
}

func TestFuseMergesMatchingSignatures(t *testing.T) {
	frags := []Fragment{
		patientFragment("long", "mut_RAF1"),
		patientFragment("long", "mut_RAF1"),
		patientFragment("short", "mut_BRCA1", "mut_RAF1"),
	}
	h, report, err := FuseReport(frags, []float64{1, 1, 1}, []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	assert.True(t, h.Frozen())

	assert.Equal(t, []string{"Survival_Time", "mut_RAF1", "mut_BRCA1"}, h.ComponentNames())

	raf, ok := h.Resolve("mut_RAF1", "True")
	require.True(t, ok)
	prior, ok := h.Lookup(raf, nil)
	require.True(t, ok)
	s := h.SNode(prior)
	assert.Equal(t, 3.0, s.Weight)
	assert.Equal(t, 1.0, s.Prob)
	assert.Equal(t, []string{"p1", "p2", "p3"}, s.SourceIDs(), "provenance accumulates in fusion order")

	long, _ := h.Resolve("Survival_Time", "long")
	idx, ok := h.Lookup(long, []hypergraph.INode{raf})
	require.True(t, ok)
	assert.Equal(t, 2.0, h.SNode(idx).Weight)
	assert.Equal(t, []string{"p1", "p2"}, h.SNode(idx).SourceIDs())

	// priors: RAF1 x3 merged twice, BRCA1 once; outcome rule p1/p2 merged once
	assert.Equal(t, 3, report.Merged)
	assert.Equal(t, 4, report.SNodes)
}

func TestFuseWeightedAverage(t *testing.T) {
	a := Fragment{
		Components: []ComponentSpec{{Name: "x", States: []string{"T"}}, {Name: "y", States: []string{"T"}}},
		Rules:      []Rule{{Head: NodeRef{"y", "T"}, Prob: 0.2, Tail: []NodeRef{{"x", "T"}}}},
	}
	b := a
	b.Rules = []Rule{{Head: NodeRef{"y", "T"}, Prob: 0.8, Tail: []NodeRef{{"x", "T"}}}}

	h, err := Fuse([]Fragment{a, b}, []float64{1, 3}, []string{"a", "b"})
	require.NoError(t, err)

	require.Equal(t, 1, h.NumSNodes())
	s := h.SNode(0)
	assert.InDelta(t, (0.2*1+0.8*3)/4, s.Prob, 1e-12)
	assert.Equal(t, 4.0, s.Weight)
	assert.Equal(t, 0.2, s.Sources[0].Prob)
	assert.Equal(t, 3.0, s.Sources[1].Weight)
}

func TestFuseStatesUnion(t *testing.T) {
	a := Fragment{Components: []ComponentSpec{{Name: "Age", States: []string{"young"}}}}
	b := Fragment{Components: []ComponentSpec{{Name: "Age", States: []string{"old", "young"}}}}
	h, err := Fuse([]Fragment{a, b}, []float64{1, 1}, []string{"a", "b"})
	require.NoError(t, err)
	c, ok := h.Component(0)
	require.True(t, ok)
	assert.Equal(t, []string{"young", "old"}, c.States)
}

func TestSyntheticFusedLastAndNeverOverrides(t *testing.T) {
	interp := Fragment{
		Synthetic: true,
		Components: []ComponentSpec{
			{Name: "Survival_Time", States: []string{"short", "long"}},
			{Name: "mut_RAF1", States: boolStates},
		},
		Rules: []Rule{
			// collides with the real outcome rule below
			{Head: NodeRef{"Survival_Time", "long"}, Prob: 0.3, Tail: []NodeRef{{"mut_RAF1", "True"}}, Support: 10},
			// fills a gap
			{Head: NodeRef{"Survival_Time", "short"}, Prob: 0.7, Tail: []NodeRef{{"mut_RAF1", "True"}}, Support: 10},
			{Head: NodeRef{"Survival_Time", "long"}, Prob: 0.5, Tail: []NodeRef{{"mut_RAF1", "False"}}, Support: 1e-6, LowConfidence: true},
		},
	}

	// interpolator listed first on purpose
	h, report, err := FuseReport(
		[]Fragment{interp, patientFragment("long", "mut_RAF1")},
		[]float64{1, 1},
		[]string{"interpolator", "p1"},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SyntheticSkipped)
	assert.Equal(t, 2, report.SyntheticAdded)

	raf, _ := h.Resolve("mut_RAF1", "True")
	long, _ := h.Resolve("Survival_Time", "long")
	idx, ok := h.Lookup(long, []hypergraph.INode{raf})
	require.True(t, ok)
	kept := h.SNode(idx)
	assert.False(t, kept.Synthetic)
	assert.Equal(t, 1.0, kept.Prob, "real evidence is not overridden")
	assert.Equal(t, []string{"p1"}, kept.SourceIDs())

	rafFalse, _ := h.Resolve("mut_RAF1", "False")
	idx, ok = h.Lookup(long, []hypergraph.INode{rafFalse})
	require.True(t, ok)
	filler := h.SNode(idx)
	assert.True(t, filler.Synthetic)
	assert.True(t, filler.LowConfidence)
	assert.InDelta(t, 1e-6, filler.Weight, 1e-18)
}

func TestFuseRejections(t *testing.T) {
	good := patientFragment("long", "mut_RAF1")
	malformed := Fragment{
		Components: []ComponentSpec{{Name: "Survival_Time", States: []string{"long"}}},
		Rules: []Rule{{
			Head: NodeRef{"Survival_Time", "long"},
			Prob: 1,
			Tail: []NodeRef{{"mut_TP53", "True"}},
		}},
	}
	nanProb := Fragment{
		Components: []ComponentSpec{{Name: "Survival_Time", States: []string{"long"}}},
		Rules:      []Rule{{Head: NodeRef{"Survival_Time", "long"}, Prob: math.NaN()}},
	}
	infSupport := Fragment{
		Components: []ComponentSpec{{Name: "Survival_Time", States: []string{"long"}}},
		Rules:      []Rule{{Head: NodeRef{"Survival_Time", "long"}, Prob: 1, Support: math.Inf(1)}},
	}

	tests := []struct {
		name     string
		frags    []Fragment
		weights  []float64
		sources  []string
		wantCode string
	}{
		{"zero weight", []Fragment{good}, []float64{0}, []string{"p1"}, apperr.CodeInputValidation},
		{"negative weight", []Fragment{good}, []float64{-1}, []string{"p1"}, apperr.CodeInputValidation},
		{"length mismatch", []Fragment{good, good}, []float64{1}, []string{"p1", "p2"}, apperr.CodeInputValidation},
		{"undeclared tail", []Fragment{good, malformed}, []float64{1, 1}, []string{"p1", "bad"}, apperr.CodeStructural},
		{"NaN weight", []Fragment{good}, []float64{math.NaN()}, []string{"p1"}, apperr.CodeInputValidation},
		{"infinite weight", []Fragment{good, good}, []float64{math.Inf(1), 1}, []string{"p1", "p2"}, apperr.CodeInputValidation},
		{"NaN probability", []Fragment{good, nanProb}, []float64{1, 1}, []string{"p1", "bad"}, apperr.CodeStructural},
		{"infinite support", []Fragment{good, infSupport}, []float64{1, 1}, []string{"p1", "bad"}, apperr.CodeStructural},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Fuse(tt.frags, tt.weights, tt.sources)
			require.Error(t, err)
			assert.Nil(t, h)
			assert.Equal(t, tt.wantCode, apperr.GetCode(err))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		frag Fragment
		ok   bool
	}{
		{"valid", patientFragment("short", "mut_RAF1", "mut_BRCA1"), true},
		{"duplicate component", Fragment{Components: []ComponentSpec{{Name: "a", States: []string{"x"}}, {Name: "a", States: []string{"y"}}}}, false},
		{"duplicate state", Fragment{Components: []ComponentSpec{{Name: "a", States: []string{"x", "x"}}}}, false},
		{"undeclared head", Fragment{Rules: []Rule{{Head: NodeRef{"a", "x"}, Prob: 1}}}, false},
		{"bad probability", Fragment{
			Components: []ComponentSpec{{Name: "a", States: []string{"x"}}},
			Rules:      []Rule{{Head: NodeRef{"a", "x"}, Prob: 2}},
		}, false},
		{"NaN probability", Fragment{
			Components: []ComponentSpec{{Name: "a", States: []string{"x"}}},
			Rules:      []Rule{{Head: NodeRef{"a", "x"}, Prob: math.NaN()}},
		}, false},
		{"NaN support", Fragment{
			Components: []ComponentSpec{{Name: "a", States: []string{"x"}}},
			Rules:      []Rule{{Head: NodeRef{"a", "x"}, Prob: 1, Support: math.NaN()}},
		}, false},
		{"negative support", Fragment{
			Components: []ComponentSpec{{Name: "a", States: []string{"x"}}},
			Rules:      []Rule{{Head: NodeRef{"a", "x"}, Prob: 1, Support: -1}},
		}, false},
		{"repeated tail", Fragment{
			Components: []ComponentSpec{{Name: "a", States: []string{"x"}}, {Name: "b", States: []string{"y"}}},
			Rules:      []Rule{{Head: NodeRef{"a", "x"}, Prob: 1, Tail: []NodeRef{{"b", "y"}, {"b", "y"}}}},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frag.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperr.Is(err, apperr.CodeStructural), "got %v", err)
			}
		})
	}
}
