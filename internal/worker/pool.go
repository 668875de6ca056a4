package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrTimeout marks a task that ran past its per-task deadline
var ErrTimeout = errors.New("task timed out")

// Task is one unit of work. It must honour ctx cancellation.
type Task func(ctx context.Context) error

// Options bounds a Run
type Options struct {
	Limit   int           // max tasks in flight; <=0 means one per task
	Timeout time.Duration // per-task deadline; <=0 disables it
}

// Run executes tasks with at most opts.Limit in flight and returns one error
// slot per task, in task order. A failing task never cancels its siblings.
// The second return value is non-nil only when the parent ctx ended first.
func Run(ctx context.Context, tasks []Task, opts Options) ([]error, error) {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs, ctx.Err()
	}

	var g errgroup.Group
	limit := opts.Limit
	if limit <= 0 || limit > len(tasks) {
		limit = len(tasks)
	}
	g.SetLimit(limit)

	for i, task := range tasks {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		g.Go(func() error {
			errs[i] = runOne(ctx, i, task, opts.Timeout)
			return nil
		})
	}
	_ = g.Wait()
	return errs, ctx.Err()
}

func runOne(parent context.Context, i int, task Task, timeout time.Duration) (err error) {
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %d panicked: %v", i, r)
		}
	}()

	err = task(ctx)
	if err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("task %d after %s: %w", i, timeout, ErrTimeout)
	}
	return err
}
