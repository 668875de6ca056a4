package worker

import (
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunKeepsTaskOrder(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task{
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return boom },
		func(ctx context.Context) error { return nil },
	}
	errs, err := Run(context.Background(), tasks, Options{Limit: 2})
	require.NoError(t, err)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
	assert.NoError(t, errs[2])
}

func TestRunRespectsLimit(t *testing.T) {
	var inFlight, peak int32
	task := func(ctx context.Context) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	}
	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = task
	}
	_, err := Run(context.Background(), tasks, Options{Limit: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	fast := func(ctx context.Context) error { return nil }

	errs, err := Run(context.Background(), []Task{slow, fast}, Options{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.ErrorIs(t, errs[0], ErrTimeout)
	assert.NoError(t, errs[1])
}

func TestRunRecoversPanics(t *testing.T) {
	errs, err := Run(context.Background(), []Task{func(ctx context.Context) error { panic("bad index") }}, Options{})
	require.NoError(t, err)
	assert.ErrorContains(t, errs[0], "bad index")
}

func TestRunCancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	errs, err := Run(ctx, []Task{func(ctx context.Context) error { return nil }}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestSpawnEchoesStdin(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	res, err := Spawn(context.Background(), ProcessConfig{
		Binary:  "cat",
		Input:   []byte(`{"target":0}`),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Equal(t, `{"target":0}`, string(res.Stdout))
}

func TestSpawnStartupTimeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	res, err := Spawn(context.Background(), ProcessConfig{
		Binary:         "sleep",
		Args:           []string{"10"},
		StartupTimeout: 50 * time.Millisecond,
		Timeout:        5 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.Less(t, res.Duration, 5*time.Second)
}

func TestSpawnMissingBinary(t *testing.T) {
	_, err := Spawn(context.Background(), ProcessConfig{Binary: "/nonexistent/chp-worker"})
	assert.Error(t, err)
}

func TestCappedBuffer(t *testing.T) {
	var b cappedBuffer
	b.limit = 4
	n, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = b.Write([]byte("gh"))
	assert.Equal(t, "abcd", b.String())
}
