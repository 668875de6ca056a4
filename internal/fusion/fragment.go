package fusion

import (
	"math"

	"ncats/chp/internal/apperr"
)

// NodeRef names an I-node by component and state
type NodeRef struct {
	Component string `json:"component"`
	State     string `json:"state"`
}

func (r NodeRef) String() string {
	return r.Component + "=" + r.State
}

// ComponentSpec declares a component and the states a fragment uses from its domain
type ComponentSpec struct {
	Name   string   `json:"name"`
	States []string `json:"states"`
}

// Rule is a fragment-local S-node
type Rule struct {
	Head NodeRef   `json:"head"`
	Prob float64   `json:"prob"`
	Tail []NodeRef `json:"tail,omitempty"`
	// Support scales the fragment weight for this rule; zero means 1.
	Support       float64 `json:"support,omitempty"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// Fragment is a small per-entity hypergraph prior to fusion
type Fragment struct {
	Components []ComponentSpec `json:"components"`
	Rules      []Rule          `json:"rules"`
	// Synthetic marks an interpolator fragment. Synthetic fragments are fused
	// after every real fragment and only fill signatures nobody else asserted.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Validate checks that every rule references components and states declared
// in this fragment.
func (f *Fragment) Validate() error {
	declared := make(map[string]map[string]bool, len(f.Components))
	for _, c := range f.Components {
		if c.Name == "" {
			return apperr.Structural("component with empty name")
		}
		if _, ok := declared[c.Name]; ok {
			return apperr.Structural("component %q declared twice", c.Name)
		}
		states := make(map[string]bool, len(c.States))
		for _, s := range c.States {
			if s == "" {
				return apperr.Structural("component %q declares an empty state", c.Name)
			}
			if states[s] {
				return apperr.Structural("component %q declares state %q twice", c.Name, s)
			}
			states[s] = true
		}
		declared[c.Name] = states
	}

	isDeclared := func(r NodeRef) bool {
		states, ok := declared[r.Component]
		return ok && states[r.State]
	}

	for i, r := range f.Rules {
		if !isDeclared(r.Head) {
			return apperr.Structural("rule %d: head %s is not declared in the fragment", i, r.Head)
		}
		seen := make(map[NodeRef]bool, len(r.Tail))
		for _, t := range r.Tail {
			if !isDeclared(t) {
				return apperr.Structural("rule %d: tail %s is not declared in the fragment", i, t)
			}
			if t == r.Head {
				return apperr.Structural("rule %d: head %s appears in its own tail", i, t)
			}
			if seen[t] {
				return apperr.Structural("rule %d: tail repeats %s", i, t)
			}
			seen[t] = true
		}
		if !(r.Prob >= 0 && r.Prob <= 1) {
			return apperr.Structural("rule %d: probability %v outside [0,1]", i, r.Prob)
		}
		if r.Support < 0 || math.IsNaN(r.Support) || math.IsInf(r.Support, 0) {
			return apperr.Structural("rule %d: support %v must be finite and non-negative", i, r.Support)
		}
	}
	return nil
}

func (r Rule) support() float64 {
	if r.Support == 0 {
		return 1
	}
	return r.Support
}
