package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"ncats/chp/internal/logger/console"
)

type recorder struct {
	lines []string
}

func (r *recorder) Log(m string, _ ...any)   { r.lines = append(r.lines, "log:"+m) }
func (r *recorder) Debug(m string, _ ...any) { r.lines = append(r.lines, "debug:"+m) }
func (r *recorder) Info(m string, _ ...any)  { r.lines = append(r.lines, "info:"+m) }
func (r *recorder) Warn(m string, _ ...any)  { r.lines = append(r.lines, "warn:"+m) }
func (r *recorder) Error(m string, _ ...any) { r.lines = append(r.lines, "error:"+m) }
func (r *recorder) Fatal(m string, _ ...any) { r.lines = append(r.lines, "fatal:"+m) }

func TestFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	defer Init()

	Info("fused", "snodes", 12)
	Warn("target timed out")
	Debug("fallback")

	want := []string{"info:fused", "warn:target timed out", "debug:fallback"}
	assert.Equal(t, want, a.lines)
	assert.Equal(t, want, b.lines)
}

func TestConsoleBackend(t *testing.T) {
	var buf bytes.Buffer
	Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Output: &buf}))
	defer Init()

	Info("query analyzed", "targets", 3)
	Debug("hidden at info level")

	out := buf.String()
	assert.Contains(t, out, "query analyzed")
	assert.Contains(t, out, "targets=3")
	assert.NotContains(t, out, "hidden at info level")
}
