package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ProcessConfig describes one worker subprocess
type ProcessConfig struct {
	Binary         string
	Args           []string
	Input          []byte
	Env            []string // appended to the parent environment
	Timeout        time.Duration
	StartupTimeout time.Duration // applies until the first stdout byte
}

// ProcessResult is what a finished subprocess left behind
type ProcessResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Spawn starts a worker subprocess, feeds it Input on stdin, and collects its
// stdout. A watchdog kills it on startup timeout, overall timeout, or ctx end.
func Spawn(ctx context.Context, config ProcessConfig) (*ProcessResult, error) {
	cmd := exec.Command(config.Binary, config.Args...)
	cmd.Env = append(os.Environ(), config.Env...)
	cmd.Stdin = bytes.NewReader(config.Input)

	stdout := &signalBuffer{first: make(chan struct{})}
	cmd.Stdout = stdout

	var stderrBuf cappedBuffer
	stderrBuf.limit = 10 * 1024
	cmd.Stderr = &stderrBuf

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", config.Binary, err)
	}

	exited := make(chan struct{})
	var timedOut bool
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		timedOut = watchdog(ctx, cmd.Process, stdout.first, exited, config.StartupTimeout, config.Timeout)
	}()

	waitErr := cmd.Wait()
	close(exited)
	<-watchdogDone

	result := &ProcessResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderrBuf.String(),
		TimedOut: timedOut,
		Duration: time.Since(start),
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

// watchdog kills proc when a deadline passes before exited closes.
// Returns true when it killed the process for a timeout.
func watchdog(ctx context.Context, proc *os.Process, firstOutput, exited <-chan struct{}, startupTimeout, normalTimeout time.Duration) bool {
	var startup <-chan time.Time
	if startupTimeout > 0 {
		startupTimer := time.NewTimer(startupTimeout)
		defer startupTimer.Stop()
		startup = startupTimer.C
	}
	var normal <-chan time.Time
	if normalTimeout > 0 {
		normalTimer := time.NewTimer(normalTimeout)
		defer normalTimer.Stop()
		normal = normalTimer.C
	}

	for {
		select {
		case <-exited:
			return false
		case <-firstOutput:
			firstOutput = nil
			startup = nil
		case <-startup:
			killProcess(proc, exited)
			return true
		case <-normal:
			killProcess(proc, exited)
			return true
		case <-ctx.Done():
			killProcess(proc, exited)
			return false
		}
	}
}

// killProcess sends SIGTERM, waits 3 seconds, then SIGKILL.
func killProcess(proc *os.Process, exited <-chan struct{}) {
	_ = proc.Signal(syscall.SIGTERM)
	select {
	case <-exited:
	case <-time.After(3 * time.Second):
		_ = proc.Signal(syscall.SIGKILL)
	}
}

// signalBuffer collects stdout and closes first on the first write
type signalBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	first chan struct{}
	seen  bool
}

func (s *signalBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seen && len(p) > 0 {
		s.seen = true
		close(s.first)
	}
	return s.buf.Write(p)
}

func (s *signalBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

// cappedBuffer is a bytes.Buffer that stops writing after a byte limit.
type cappedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	toWrite := p
	if len(toWrite) > remaining {
		toWrite = toWrite[:remaining]
	}
	_, err := c.buf.Write(toWrite)
	// cmd.Stderr expects all bytes accepted
	return len(p), err
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
