package interpolate

import (
	"sort"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/fusion"
)

// Model selects how fallback probabilities are estimated
type Model string

const (
	// ModelBigram adds pairwise co-occurrence rules on top of single-feature rules
	ModelBigram Model = "bigram"
	// ModelFrequency uses single-feature marginal frequencies only
	ModelFrequency Model = "frequency_based"
)

// Selection picks which features take part in pair rules
type Selection string

const (
	SelectAll       Selection = "all"
	SelectFrequency Selection = "frequency_based"
)

// Options configures Build
type Options struct {
	Model               Model
	Selection           Selection
	PairFeatureLimit    int     // features kept by SelectFrequency
	LowConfidenceWeight float64 // support for rules about never-observed features
	Outcomes            []string
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{
		Model:               ModelBigram,
		Selection:           SelectFrequency,
		PairFeatureLimit:    50,
		LowConfidenceWeight: 1e-6,
		Outcomes:            []string{"Survival_Time"},
	}
}

type observation struct {
	features []fusion.NodeRef
	outcomes map[string]string
}

type domain struct {
	names  []string
	states map[string][]string
}

func (d *domain) add(c fusion.ComponentSpec) {
	existing, ok := d.states[c.Name]
	if !ok {
		d.names = append(d.names, c.Name)
	}
	for _, s := range c.States {
		if !contains(existing, s) {
			existing = append(existing, s)
		}
	}
	d.states[c.Name] = existing
}

// Build produces the synthetic interpolator fragment from the real fragments.
// Every (component, state) in a real fragment's domain gets a rule for each
// outcome; states never observed get a prior-valued rule with near-zero support.
func Build(fragments []fusion.Fragment, opts Options) (fusion.Fragment, error) {
	switch opts.Model {
	case ModelBigram, ModelFrequency:
	default:
		return fusion.Fragment{}, apperr.InputValidation("unknown interpolation model %q", opts.Model)
	}
	switch opts.Selection {
	case SelectAll, SelectFrequency, "":
	default:
		return fusion.Fragment{}, apperr.InputValidation("unknown interpolation selection %q", opts.Selection)
	}
	if opts.LowConfidenceWeight <= 0 {
		opts.LowConfidenceWeight = DefaultOptions().LowConfidenceWeight
	}

	isOutcome := make(map[string]bool, len(opts.Outcomes))
	for _, o := range opts.Outcomes {
		isOutcome[o] = true
	}

	dom := &domain{states: make(map[string][]string)}
	var obs []observation
	for _, f := range fragments {
		if f.Synthetic {
			continue
		}
		for _, c := range f.Components {
			dom.add(c)
		}
		o := observation{outcomes: make(map[string]string)}
		for _, r := range f.Rules {
			if isOutcome[r.Head.Component] {
				if _, seen := o.outcomes[r.Head.Component]; !seen {
					o.outcomes[r.Head.Component] = r.Head.State
				}
				continue
			}
			if !containsRef(o.features, r.Head) {
				o.features = append(o.features, r.Head)
			}
		}
		obs = append(obs, o)
	}

	order := featureOrder(dom, isOutcome)
	out := fusion.Fragment{Synthetic: true}
	for _, name := range dom.names {
		out.Components = append(out.Components, fusion.ComponentSpec{Name: name, States: dom.states[name]})
	}

	for _, outcome := range opts.Outcomes {
		states, ok := dom.states[outcome]
		if !ok {
			continue
		}
		out.Rules = append(out.Rules, outcomeRules(outcome, states, obs, order, opts)...)
	}
	return out, nil
}

func outcomeRules(outcome string, states []string, obs []observation, order []fusion.NodeRef, opts Options) []fusion.Rule {
	var rules []fusion.Rule

	// 1. Prior over outcome states
	var total float64
	prior := make(map[string]float64)
	single := make(map[fusion.NodeRef]float64)
	singleOut := make(map[fusion.NodeRef]map[string]float64)
	for _, o := range obs {
		st, ok := o.outcomes[outcome]
		if !ok {
			continue
		}
		total++
		prior[st]++
		for _, f := range o.features {
			single[f]++
			if singleOut[f] == nil {
				singleOut[f] = make(map[string]float64)
			}
			singleOut[f][st]++
		}
	}
	if total == 0 {
		return nil
	}
	for _, st := range states {
		if n := prior[st]; n > 0 {
			rules = append(rules, fusion.Rule{
				Head:    fusion.NodeRef{Component: outcome, State: st},
				Prob:    n / total,
				Support: total,
			})
		}
	}

	// 2. Single-feature rules, with low-confidence priors for unseen features
	for _, f := range order {
		n := single[f]
		for _, st := range states {
			head := fusion.NodeRef{Component: outcome, State: st}
			if n == 0 {
				if prior[st] > 0 {
					rules = append(rules, fusion.Rule{
						Head:          head,
						Prob:          prior[st] / total,
						Tail:          []fusion.NodeRef{f},
						Support:       opts.LowConfidenceWeight,
						LowConfidence: true,
					})
				}
				continue
			}
			if k := singleOut[f][st]; k > 0 {
				rules = append(rules, fusion.Rule{Head: head, Prob: k / n, Tail: []fusion.NodeRef{f}, Support: n})
			}
		}
	}

	if opts.Model != ModelBigram {
		return rules
	}

	// 3. Pair rules over co-occurring selected features
	selected := selectFeatures(order, single, opts)
	rank := make(map[fusion.NodeRef]int, len(selected))
	for i, f := range selected {
		rank[f] = i
	}
	type pair struct{ a, b int }
	pairN := make(map[pair]float64)
	pairOut := make(map[pair]map[string]float64)
	for _, o := range obs {
		st, ok := o.outcomes[outcome]
		if !ok {
			continue
		}
		var idx []int
		for _, f := range o.features {
			if r, ok := rank[f]; ok {
				idx = append(idx, r)
			}
		}
		sort.Ints(idx)
		for i := 0; i < len(idx); i++ {
			for j := i + 1; j < len(idx); j++ {
				p := pair{idx[i], idx[j]}
				pairN[p]++
				if pairOut[p] == nil {
					pairOut[p] = make(map[string]float64)
				}
				pairOut[p][st]++
			}
		}
	}
	pairs := make([]pair, 0, len(pairN))
	for p := range pairN {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
	for _, p := range pairs {
		n := pairN[p]
		for _, st := range states {
			if k := pairOut[p][st]; k > 0 {
				rules = append(rules, fusion.Rule{
					Head:    fusion.NodeRef{Component: outcome, State: st},
					Prob:    k / n,
					Tail:    []fusion.NodeRef{selected[p.a], selected[p.b]},
					Support: n,
				})
			}
		}
	}
	return rules
}

// featureOrder lists every non-outcome (component, state) in domain order
func featureOrder(dom *domain, isOutcome map[string]bool) []fusion.NodeRef {
	var order []fusion.NodeRef
	for _, name := range dom.names {
		if isOutcome[name] {
			continue
		}
		for _, s := range dom.states[name] {
			order = append(order, fusion.NodeRef{Component: name, State: s})
		}
	}
	return order
}

// selectFeatures returns observed features eligible for pair rules, in domain order
func selectFeatures(order []fusion.NodeRef, counts map[fusion.NodeRef]float64, opts Options) []fusion.NodeRef {
	var observed []fusion.NodeRef
	for _, f := range order {
		if counts[f] > 0 {
			observed = append(observed, f)
		}
	}
	if opts.Selection != SelectFrequency || opts.PairFeatureLimit <= 0 || len(observed) <= opts.PairFeatureLimit {
		return observed
	}

	pos := make(map[fusion.NodeRef]int, len(observed))
	for i, f := range observed {
		pos[f] = i
	}
	ranked := append([]fusion.NodeRef(nil), observed...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	ranked = ranked[:opts.PairFeatureLimit]
	sort.Slice(ranked, func(i, j int) bool { return pos[ranked[i]] < pos[ranked[j]] })
	return ranked
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func containsRef(list []fusion.NodeRef, r fusion.NodeRef) bool {
	for _, x := range list {
		if x == r {
			return true
		}
	}
	return false
}
