package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// RunnerOption configures the exec runner.
type RunnerOption func(*execRunner)

// WithEnv adds KEY=VALUE pairs to the child environment.
func WithEnv(kv ...string) RunnerOption {
	return func(r *execRunner) { r.env = append(r.env, kv...) }
}

// WithGracePeriod sets how long a cancelled command has between the
// interrupt and the kill. ocrmypdf uses it to remove its temp files.
func WithGracePeriod(d time.Duration) RunnerOption {
	return func(r *execRunner) { r.grace = d }
}

// NewExecRunner runs commands on the host, logging each invocation.
func NewExecRunner(logger *slog.Logger, opts ...RunnerOption) Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &execRunner{logger: logger, grace: 10 * time.Second}
	for _, o := range opts {
		o(r)
	}
	return r
}

type execRunner struct {
	logger *slog.Logger
	env    []string
	grace  time.Duration
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = r.grace
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	attrs := []any{
		"cmd", name,
		"args", strings.Join(args, " "),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		// tools print the actual failure last
		r.logger.Error("exec failed", append(attrs, "error", err, "stderr", tail(stderr.String(), 8<<10))...)
	} else {
		r.logger.Debug("exec ok", append(attrs, "stdout_bytes", stdout.Len(), "stderr_bytes", stderr.Len())...)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "(truncated)..." + s[len(s)-max:]
}
