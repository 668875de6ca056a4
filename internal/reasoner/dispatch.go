package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/logger"
	"ncats/chp/internal/worker"
)

// TargetOutcome is what one per-target task produces
type TargetOutcome struct {
	Index       int                     `json:"index"`
	Probability float64                 `json:"probability"`
	States      []float64               `json:"states"` // posterior per Target.States entry
	Degraded    bool                    `json:"degraded,omitempty"`
	Trace       map[string][]TraceEntry `json:"trace,omitempty"`
	ErrorCode   string                  `json:"error_code,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Err         error                   `json:"-"`
}

// Dispatcher fans a plan's targets out to workers and returns one outcome
// per target, in target order
type Dispatcher interface {
	Dispatch(ctx context.Context, r *Reasoner, plan *Plan) []TargetOutcome
}

// LocalDispatcher evaluates targets on a bounded goroutine pool
type LocalDispatcher struct {
	Workers int
	Timeout time.Duration
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, r *Reasoner, plan *Plan) []TargetOutcome {
	outcomes := make([]TargetOutcome, len(plan.Targets))
	tasks := make([]worker.Task, len(plan.Targets))
	for i := range plan.Targets {
		tasks[i] = func(ctx context.Context) error {
			o, err := r.evaluate(ctx, plan, i)
			if err != nil {
				return err
			}
			outcomes[i] = o
			return nil
		}
	}
	errs, _ := worker.Run(ctx, tasks, worker.Options{Limit: d.Workers, Timeout: d.Timeout})
	for i, err := range errs {
		if err != nil {
			outcomes[i] = computeFailure(plan, i, err)
		}
	}
	return outcomes
}

// TaskRequest is the stdin payload of a worker subprocess
type TaskRequest struct {
	Query   *Query  `json:"query"`
	Options Options `json:"options"`
	Target  int     `json:"target"`
}

// ProcessDispatcher evaluates each target in its own worker subprocess
type ProcessDispatcher struct {
	Binary         string
	Args           []string
	Workers        int
	Timeout        time.Duration
	StartupTimeout time.Duration
	Retries        int
}

func (d *ProcessDispatcher) Dispatch(ctx context.Context, r *Reasoner, plan *Plan) []TargetOutcome {
	outcomes := make([]TargetOutcome, len(plan.Targets))
	tasks := make([]worker.Task, len(plan.Targets))
	for i, t := range plan.Targets {
		tasks[i] = func(ctx context.Context) error {
			// Range failures need no traversal
			if t.Err != nil || plan.evidenceErr != nil {
				o, err := r.evaluate(ctx, plan, i)
				outcomes[i] = o
				return err
			}
			o, err := d.remote(ctx, plan, i)
			if err != nil {
				return err
			}
			outcomes[i] = o
			return nil
		}
	}
	errs, _ := worker.Run(ctx, tasks, worker.Options{Limit: d.Workers})
	for i, err := range errs {
		if err != nil {
			outcomes[i] = computeFailure(plan, i, err)
		}
	}
	return outcomes
}

func (d *ProcessDispatcher) remote(ctx context.Context, plan *Plan, i int) (TargetOutcome, error) {
	input, err := json.Marshal(TaskRequest{Query: plan.Query, Options: plan.Options, Target: i})
	if err != nil {
		return TargetOutcome{}, fmt.Errorf("encoding task: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.Retries; attempt++ {
		if ctx.Err() != nil {
			return TargetOutcome{}, ctx.Err()
		}
		res, err := worker.Spawn(ctx, worker.ProcessConfig{
			Binary:         d.Binary,
			Args:           d.Args,
			Input:          input,
			Timeout:        d.Timeout,
			StartupTimeout: d.StartupTimeout,
		})
		switch {
		case err != nil:
			lastErr = err
		case res.TimedOut:
			lastErr = fmt.Errorf("worker after %s: %w", res.Duration.Round(time.Millisecond), worker.ErrTimeout)
		case res.ExitCode != 0:
			lastErr = fmt.Errorf("worker exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		default:
			var o TargetOutcome
			if err := json.Unmarshal(res.Stdout, &o); err != nil {
				lastErr = fmt.Errorf("decoding worker output: %w", err)
				break
			}
			if o.ErrorCode != "" {
				o.Err = apperr.New(o.ErrorCode, o.Error)
			}
			o.Index = i
			return o, nil
		}
		logger.Warn("worker attempt failed", "target", plan.Targets[i].Label, "attempt", attempt+1, "error", lastErr)
	}
	return TargetOutcome{}, lastErr
}

// ServeTask reads one TaskRequest from in, evaluates it against r and
// writes the TargetOutcome to out. It is the body of the worker subprocess.
func ServeTask(ctx context.Context, r *Reasoner, in io.Reader, out io.Writer) error {
	var req TaskRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return apperr.InputValidation("decoding task: %v", err)
	}
	plan, err := r.Prepare(req.Query, req.Options)
	if err != nil {
		return err
	}
	if req.Target < 0 || req.Target >= len(plan.Targets) {
		return apperr.InputValidation("task target %d out of range [0, %d)", req.Target, len(plan.Targets))
	}
	o := r.EvaluateTarget(ctx, plan, req.Target)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(o); err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}
	_, err = out.Write(buf.Bytes())
	return err
}

func computeFailure(plan *Plan, i int, err error) TargetOutcome {
	t := plan.Targets[i]
	cerr := apperr.Compute(err, "target %s failed", t.Label)
	return TargetOutcome{
		Index:     i,
		States:    make([]float64, len(t.States)),
		ErrorCode: cerr.Code,
		Error:     cerr.Error(),
		Err:       cerr,
	}
}
