package interpolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/fusion"
)

func frag(outcome string, genes ...string) fusion.Fragment {
	f := fusion.Fragment{
		Components: []fusion.ComponentSpec{{Name: "Survival_Time", States: []string{"short", "long"}}},
	}
	var tail []fusion.NodeRef
	for _, g := range genes {
		f.Components = append(f.Components, fusion.ComponentSpec{Name: g, States: []string{"False", "True"}})
		ref := fusion.NodeRef{Component: g, State: "True"}
		f.Rules = append(f.Rules, fusion.Rule{Head: ref, Prob: 1})
		tail = append(tail, ref)
	}
	f.Rules = append(f.Rules, fusion.Rule{Head: fusion.NodeRef{Component: "Survival_Time", State: outcome}, Prob: 1, Tail: tail})
	return f
}

func population() []fusion.Fragment {
	return []fusion.Fragment{
		frag("long", "mut_RAF1"),
		frag("long", "mut_RAF1", "mut_BRCA1"),
		frag("short", "mut_RAF1"),
		frag("short", "mut_BRCA1"),
	}
}

// rulesFor indexes rules by "head|tail..." for assertions
func rulesFor(f fusion.Fragment) map[string]fusion.Rule {
	out := make(map[string]fusion.Rule)
	for _, r := range f.Rules {
		key := r.Head.String() + "|"
		for i, t := range r.Tail {
			if i > 0 {
				key += ","
			}
			key += t.String()
		}
		out[key] = r
	}
	return out
}

func TestFrequencyModel(t *testing.T) {
	opts := DefaultOptions()
	opts.Model = ModelFrequency

	out, err := Build(population(), opts)
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	assert.True(t, out.Synthetic)

	rules := rulesFor(out)

	prior := rules["Survival_Time=long|"]
	assert.Equal(t, 0.5, prior.Prob)
	assert.Equal(t, 4.0, prior.Support)

	raf := rules["Survival_Time=long|mut_RAF1=True"]
	assert.InDelta(t, 2.0/3.0, raf.Prob, 1e-12)
	assert.Equal(t, 3.0, raf.Support)
	assert.False(t, raf.LowConfidence)

	rafShort := rules["Survival_Time=short|mut_RAF1=True"]
	assert.InDelta(t, 1.0/3.0, rafShort.Prob, 1e-12)

	for key := range rules {
		assert.NotContains(t, key, ",", "frequency model emits no pair rules")
	}
}

func TestZeroOccurrenceFeatureGetsLowConfidenceRule(t *testing.T) {
	out, err := Build(population(), DefaultOptions())
	require.NoError(t, err)
	rules := rulesFor(out)

	for _, key := range []string{"Survival_Time=long|mut_RAF1=False", "Survival_Time=short|mut_BRCA1=False"} {
		r, ok := rules[key]
		require.True(t, ok, key)
		assert.True(t, r.LowConfidence)
		assert.Equal(t, 1e-6, r.Support)
		assert.Equal(t, 0.5, r.Prob, "unseen feature falls back to the prior")
	}
}

func TestBigramModel(t *testing.T) {
	out, err := Build(population(), DefaultOptions())
	require.NoError(t, err)
	rules := rulesFor(out)

	pair, ok := rules["Survival_Time=long|mut_RAF1=True,mut_BRCA1=True"]
	require.True(t, ok)
	assert.Equal(t, 1.0, pair.Prob)
	assert.Equal(t, 1.0, pair.Support)

	_, ok = rules["Survival_Time=short|mut_RAF1=True,mut_BRCA1=True"]
	assert.False(t, ok, "no rule for outcome states never seen with the pair")
}

func TestFrequencySelectionLimitsPairs(t *testing.T) {
	opts := DefaultOptions()
	opts.PairFeatureLimit = 1

	out, err := Build(population(), opts)
	require.NoError(t, err)
	for key := range rulesFor(out) {
		assert.NotContains(t, key, ",", "a single selected feature cannot form pairs")
	}

	opts.Selection = SelectAll
	out, err = Build(population(), opts)
	require.NoError(t, err)
	_, ok := rulesFor(out)["Survival_Time=long|mut_RAF1=True,mut_BRCA1=True"]
	assert.True(t, ok)
}

func TestFusesAfterRealFragments(t *testing.T) {
	pop := population()
	interp, err := Build(pop, DefaultOptions())
	require.NoError(t, err)

	frags := append(pop, interp)
	weights := []float64{1, 1, 1, 1, 1}
	sources := []string{"p1", "p2", "p3", "p4", "interpolator"}

	h, report, err := fusion.FuseReport(frags, weights, sources)
	require.NoError(t, err)
	assert.Positive(t, report.SyntheticAdded)

	raf, _ := h.Resolve("mut_RAF1", "True")
	prior, ok := h.Lookup(raf, nil)
	require.True(t, ok)
	assert.False(t, h.SNode(prior).Synthetic)
}

func TestEmptyPopulation(t *testing.T) {
	out, err := Build(nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, out.Rules)
}

func TestUnknownModel(t *testing.T) {
	opts := DefaultOptions()
	opts.Model = "trigram"
	_, err := Build(population(), opts)
	assert.True(t, apperr.Is(err, apperr.CodeInputValidation))
}
