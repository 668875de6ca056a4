package reasoner

import (
	"fmt"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/hypergraph"
	"ncats/chp/internal/mutex"
	"ncats/chp/internal/patient"
)

// maxEvidence bounds the evidence components tracked by the coverage masks
const maxEvidence = 64

// Target is one resolved query output: the posterior mass of States on Component
type Target struct {
	Label     string
	Component int
	States    []int
	// Err is a non-fatal RANGE error; the target then scores zero
	Err error
}

// Plan is a validated query ready for per-target evaluation. It is
// read-only once built and may be shared by concurrent tasks.
type Plan struct {
	Query   *Query
	Options Options
	Targets []Target

	allowed     map[int][]bool // evidence component -> allowed states
	evidence    []int          // evidence components in bit order
	bits        map[int]uint
	fullMask    uint64
	evidenceErr error
}

// Evidence returns the evidence components in bit order
func (p *Plan) Evidence() []int {
	return p.evidence
}

// Allowed reports whether state s of evidence component c satisfies the evidence
func (p *Plan) Allowed(c, s int) (isEvidence, ok bool) {
	a, isEv := p.allowed[c]
	if !isEv {
		return false, true
	}
	return true, s >= 0 && s < len(a) && a[s]
}

// Prepare validates q against the hypergraph and range table, discretizes
// meta constraints, resolves targets and runs the optional mutex gate.
// Returned errors are fatal for the whole query.
func (r *Reasoner) Prepare(q *Query, opts Options) (*Plan, error) {
	if q == nil {
		return nil, apperr.InputValidation("query is nil")
	}
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Query:   q,
		Options: opts,
		allowed: make(map[int][]bool),
		bits:    make(map[int]uint),
	}
	var reqs []mutex.Requirement

	// 1. Evidence validation
	for _, name := range q.EvidenceNames() {
		state := q.Evidence[name]
		comp, ok := r.g.ComponentIndex(name)
		if !ok {
			return nil, apperr.InputValidation("unknown evidence feature %q", name)
		}
		s, ok := r.g.StateIndex(comp, state)
		if !ok {
			return nil, apperr.InputValidation("unknown state %q for evidence feature %q", state, name)
		}
		plan.restrict(comp, r.g.NumStates(comp), []int{s})
		reqs = append(reqs, mutex.Requirement{Label: name + "=" + state, Component: comp, States: []int{s}, Role: mutex.RoleEvidence})
	}

	// 2. Meta-evidence discretization
	for _, m := range q.MetaEvidence {
		comp, states, rangeErr, err := r.discretize(m)
		if err != nil {
			return nil, err
		}
		if rangeErr != nil {
			if plan.evidenceErr == nil {
				plan.evidenceErr = rangeErr
			}
			continue
		}
		plan.restrict(comp, r.g.NumStates(comp), states)
		reqs = append(reqs, mutex.Requirement{Label: m.String(), Component: comp, States: states, Role: mutex.RoleEvidence})
	}
	if len(plan.evidence) > maxEvidence {
		return nil, apperr.InputValidation("query has %d evidence components, at most %d are supported", len(plan.evidence), maxEvidence)
	}

	// 3. Target resolution
	if err := r.resolveTargets(plan); err != nil {
		return nil, err
	}
	if len(plan.Targets) == 0 {
		return nil, apperr.InputValidation("query resolves to an empty target set")
	}
	for _, t := range plan.Targets {
		if t.Err == nil {
			reqs = append(reqs, mutex.Requirement{Label: t.Label, Component: t.Component, States: t.States, Role: mutex.RoleTarget})
		}
	}

	// 4. Mutex gate
	if opts.CheckMutex {
		if bad, conflicts := mutex.CheckRequirements(reqs); bad {
			c := conflicts[0]
			return nil, apperr.Consistency("mutually exclusive requirements %q and %q: %s vs %s",
				c.A.Label, c.B.Label, r.g.INodeLabel(c.Pair.A), r.g.INodeLabel(c.Pair.B))
		}
	}
	return plan, nil
}

// restrict intersects the allowed states of comp with states, registering
// comp as evidence the first time it is seen
func (p *Plan) restrict(comp, numStates int, states []int) {
	next := make([]bool, numStates)
	for _, s := range states {
		next[s] = true
	}
	cur, ok := p.allowed[comp]
	if !ok {
		p.bits[comp] = uint(len(p.evidence))
		if len(p.evidence) < maxEvidence {
			p.fullMask |= 1 << uint(len(p.evidence))
		}
		p.evidence = append(p.evidence, comp)
		p.allowed[comp] = next
		return
	}
	for i := range cur {
		cur[i] = cur[i] && next[i]
	}
}

func (r *Reasoner) resolveTargets(plan *Plan) error {
	q := plan.Query
	seen := make(map[string]bool)
	add := func(t Target) {
		if seen[t.Label] {
			return
		}
		seen[t.Label] = true
		plan.Targets = append(plan.Targets, t)
	}

	for _, ref := range q.Targets {
		n, ok := r.g.Resolve(ref.Component, ref.State)
		if !ok {
			return apperr.InputValidation("unknown target %s", ref)
		}
		add(Target{Label: ref.String(), Component: n.Component, States: []int{n.State}})
	}

	for _, m := range q.MetaTargets {
		comp, states, rangeErr, err := r.discretize(m)
		if err != nil {
			return err
		}
		add(Target{Label: m.String(), Component: comp, States: states, Err: rangeErr})
	}

	if plan.Options.TargetStrategy == StrategyTopology {
		for _, comp := range r.sinks {
			if _, isEvidence := plan.allowed[comp]; isEvidence {
				continue
			}
			for s := 0; s < r.g.NumStates(comp); s++ {
				add(Target{Label: r.g.INodeLabel(hypergraph.INode{Component: comp, State: s}), Component: comp, States: []int{s}})
			}
		}
	}
	return nil
}

// discretize resolves a meta constraint to the states of its property's
// component whose bins satisfy it. A literal outside the observed range is
// reported as rangeErr; err is fatal.
func (r *Reasoner) discretize(m MetaConstraint) (comp int, states []int, rangeErr, err error) {
	op, err := ParseComparator(m.Op)
	if err != nil {
		return 0, nil, nil, err
	}
	pr, ok := r.ranges.Lookup(m.Property)
	if !ok {
		return 0, nil, nil, apperr.InputValidation("unknown meta property %q", m.Property)
	}
	comp, ok = r.g.ComponentIndex(m.Property)
	if !ok {
		return 0, nil, nil, apperr.InputValidation("meta property %q has no component in the hypergraph", m.Property)
	}
	if !pr.InRange(m.Value) {
		return comp, nil, apperr.Range("%s: value outside observed range [%g, %g]", m, pr.Min, pr.Max), nil
	}

	for _, i := range matchingBins(pr, op, m.Value) {
		if s, ok := r.g.StateIndex(comp, pr.Bins[i].Label()); ok {
			states = append(states, s)
		}
	}
	if len(states) == 0 {
		return comp, nil, apperr.Range("%s: no observed bin satisfies the constraint", m), nil
	}
	return comp, states, nil, nil
}

// matchingBins returns bin indices whose range satisfies (op, v). A bin that
// only partly overlaps the constraint is kept whole: for >= 970 the bin
// [500, 1000) matches, so a patient at 800 in that bin counts as satisfying.
func matchingBins(pr patient.PropertyRange, op Comparator, v float64) []int {
	var out []int
	for i, b := range pr.Bins {
		var keep bool
		switch op {
		case OpGreaterEqual:
			keep = b.Hi > v || (b.Closed && b.Hi >= v)
		case OpLessEqual:
			keep = b.Lo <= v
		case OpEqual:
			keep = b.Contains(v)
		}
		if keep {
			out = append(out, i)
		}
	}
	return out
}

func (t Target) String() string {
	if t.Err != nil {
		return fmt.Sprintf("%s (%v)", t.Label, t.Err)
	}
	return t.Label
}
