package reasoner

import (
	"context"
	"time"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/graph"
	"ncats/chp/internal/hypergraph"
	"ncats/chp/internal/logger"
	"ncats/chp/internal/metrics"
	"ncats/chp/internal/patient"
)

// Reasoner answers queries against one frozen hypergraph. It is safe for
// concurrent use.
type Reasoner struct {
	g          *hypergraph.Hypergraph
	ranges     patient.RangeTable
	dispatcher Dispatcher
	sinks      []int
}

// Option configures a Reasoner
type Option func(*Reasoner)

// WithDispatcher replaces the default local goroutine dispatcher
func WithDispatcher(d Dispatcher) Option {
	return func(r *Reasoner) {
		if d != nil {
			r.dispatcher = d
		}
	}
}

// New freezes g and returns a Reasoner over it
func New(g *hypergraph.Hypergraph, ranges patient.RangeTable, opts ...Option) *Reasoner {
	g.Freeze()
	r := &Reasoner{
		g:          g,
		ranges:     ranges,
		dispatcher: &LocalDispatcher{},
		sinks:      graph.FromHypergraph(g, graph.SnapshotOptions{}).Sinks(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Graph returns the hypergraph the reasoner reads
func (r *Reasoner) Graph() *hypergraph.Hypergraph {
	return r.g
}

// Ranges returns the metadata range table used for meta constraints
func (r *Reasoner) Ranges() patient.RangeTable {
	return r.ranges
}

// Analyze validates q, evaluates every resolved target and assembles the
// result. The error is non-nil only for fatal failures: INPUT_VALIDATION or
// CONSISTENCY. Per-target RANGE and COMPUTE errors are carried on the result.
func (r *Reasoner) Analyze(ctx context.Context, q *Query, opts Options) (*Result, error) {
	start := time.Now()
	plan, err := r.Prepare(q, opts)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(rejectLabel(err)).Inc()
		return nil, err
	}

	outcomes := r.dispatcher.Dispatch(ctx, r, plan)

	res := &Result{
		QueryID: q.ID,
		Updates: make(Updates),
		Targets: make([]TargetResult, len(plan.Targets)),
	}
	for i, t := range plan.Targets {
		o := outcomes[i]
		name, _ := r.g.ComponentName(t.Component)
		tr := TargetResult{
			Label:       t.Label,
			Component:   name,
			Probability: o.Probability,
			Degraded:    o.Degraded || o.Err != nil,
			Err:         o.Err,
			Trace:       o.Trace,
		}
		for j, s := range t.States {
			n := hypergraph.INode{Component: t.Component, State: s}
			state, _ := r.g.INodeName(t.Component, s)
			tr.INodes = append(tr.INodes, n)
			tr.States = append(tr.States, state)
			if o.Err == nil && j < len(o.States) {
				res.Updates.Record(n, o.States[j])
			}
		}
		res.Targets[i] = tr

		metrics.TargetTasksTotal.WithLabelValues(outcomeLabel(tr)).Inc()
		if apperr.Is(o.Err, apperr.CodeCompute) {
			logger.Warn("target computation failed", "query", q.ID, "target", t.Label, "error", o.Err)
		}
	}
	res.ComputeTime = time.Since(start)

	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	metrics.QueryDuration.Observe(res.ComputeTime.Seconds())
	logger.Debug("query analyzed", "query", q.ID, "name", q.Name, "targets", len(res.Targets), "duration", res.ComputeTime)
	return res, nil
}

// EvaluateTarget computes one target of plan. Failures of the computation
// itself come back as a COMPUTE error on the outcome.
func (r *Reasoner) EvaluateTarget(ctx context.Context, plan *Plan, i int) TargetOutcome {
	o, err := r.evaluate(ctx, plan, i)
	if err != nil {
		return computeFailure(plan, i, err)
	}
	if o.Err != nil {
		o.ErrorCode = apperr.GetCode(o.Err)
		o.Error = o.Err.Error()
	}
	return o
}

func (r *Reasoner) evaluate(ctx context.Context, plan *Plan, i int) (TargetOutcome, error) {
	t := plan.Targets[i]
	out := TargetOutcome{Index: i, States: make([]float64, len(t.States))}
	if t.Err != nil {
		out.Err = t.Err
		return out, nil
	}
	if plan.evidenceErr != nil {
		out.Err = plan.evidenceErr
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	d, err := newEvaluator(ctx, r.g, plan).scoreComponent(t.Component)
	if err != nil {
		return out, err
	}
	for j, s := range t.States {
		out.States[j] = d.probs[s]
		out.Probability += d.probs[s]
	}
	out.Degraded = d.degraded
	if d.trace != nil {
		out.Trace = make(map[string][]TraceEntry)
		for _, s := range t.States {
			if entries := d.trace[s]; len(entries) > 0 {
				out.Trace[r.g.INodeLabel(hypergraph.INode{Component: t.Component, State: s})] = entries
			}
		}
	}
	return out, nil
}

func rejectLabel(err error) string {
	switch apperr.GetCode(err) {
	case apperr.CodeInputValidation:
		return "invalid"
	case apperr.CodeConsistency:
		return "inconsistent"
	}
	return "error"
}

func outcomeLabel(t TargetResult) string {
	switch {
	case apperr.Is(t.Err, apperr.CodeRange):
		return "range"
	case t.Err != nil:
		return "compute"
	case t.Degraded:
		return "degraded"
	}
	return "ok"
}
