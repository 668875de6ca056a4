package reasoner

import (
	"sort"
	"time"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/hypergraph"
)

// Updates maps target I-nodes to posterior probabilities
type Updates map[hypergraph.INode]float64

// Record stores p for n; the first write for an I-node wins
func (u Updates) Record(n hypergraph.INode, p float64) {
	if _, ok := u[n]; !ok {
		u[n] = p
	}
}

// Sorted returns the updated I-nodes in (component, state) order
func (u Updates) Sorted() []hypergraph.INode {
	out := make([]hypergraph.INode, 0, len(u))
	for n := range u {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// TargetResult is the answer for one resolved target
type TargetResult struct {
	Label       string                  `json:"label"`
	Component   string                  `json:"component"`
	States      []string                `json:"states"`
	INodes      []hypergraph.INode      `json:"inodes"`
	Probability float64                 `json:"probability"`
	Degraded    bool                    `json:"degraded,omitempty"`
	Err         error                   `json:"-"`
	Trace       map[string][]TraceEntry `json:"trace,omitempty"`
}

// Result is the outcome of Analyze. Fatal errors never produce a Result;
// RANGE and COMPUTE errors are carried on the affected TargetResult.
type Result struct {
	QueryID     string
	Updates     Updates
	Targets     []TargetResult
	ComputeTime time.Duration
}

// Target returns the result for label
func (r *Result) Target(label string) (TargetResult, bool) {
	for _, t := range r.Targets {
		if t.Label == label {
			return t, true
		}
	}
	return TargetResult{}, false
}

// TargetReport is the serialisable view of a TargetResult
type TargetReport struct {
	Label       string                  `json:"label"`
	Probability float64                 `json:"probability"`
	Degraded    bool                    `json:"degraded,omitempty"`
	ErrorCode   string                  `json:"error_code,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Trace       map[string][]TraceEntry `json:"trace,omitempty"`
}

// Report is a name-keyed view of a Result
type Report struct {
	QueryID       string                        `json:"query_id"`
	Updates       map[string]map[string]float64 `json:"updates"`
	Targets       []TargetReport                `json:"targets"`
	ComputeTimeMS float64                       `json:"compute_time_ms"`
}

// Report renders the result with component and state names from g
func (r *Result) Report(g *hypergraph.Hypergraph) Report {
	rep := Report{
		QueryID:       r.QueryID,
		Updates:       make(map[string]map[string]float64),
		ComputeTimeMS: float64(r.ComputeTime.Microseconds()) / 1000,
	}
	for _, n := range r.Updates.Sorted() {
		comp, err := g.ComponentName(n.Component)
		if err != nil {
			continue
		}
		state, err := g.INodeName(n.Component, n.State)
		if err != nil {
			continue
		}
		if rep.Updates[comp] == nil {
			rep.Updates[comp] = make(map[string]float64)
		}
		rep.Updates[comp][state] = r.Updates[n]
	}
	for _, t := range r.Targets {
		tr := TargetReport{
			Label:       t.Label,
			Probability: t.Probability,
			Degraded:    t.Degraded,
			Trace:       t.Trace,
		}
		if t.Err != nil {
			tr.ErrorCode = apperr.GetCode(t.Err)
			tr.Error = t.Err.Error()
		}
		rep.Targets = append(rep.Targets, tr)
	}
	return rep
}
