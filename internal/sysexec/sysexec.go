// Package sysexec runs external system tools with a bounded timeout.
//
// Several of the tools tunectl shells out to write progress and warnings to
// stderr even when they succeed. The exit status is the only success
// signal; stderr is captured for diagnostics and never interpreted.
package sysexec

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/skovgaard/tunectl/internal/errors"
)

// DefaultTimeout bounds a single external call.
const DefaultTimeout = 30 * time.Second

// ErrTimeout indicates the command was killed at the deadline.
var ErrTimeout = errors.New("command timed out")

// Result is the outcome of one external call.
type Result struct {
	// Cmd is the rendered command line, for logs and error messages.
	Cmd string

	// ExitCode is the process exit status. -1 means the process did not
	// run or was killed.
	ExitCode int

	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes external commands.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for command tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTimeout overrides the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// NewRunner creates a Runner with the default timeout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes name with args and waits for it to finish or hit the
// deadline. The result is populated even when the call fails, so callers
// can surface the captured output.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	res := &Result{
		Cmd:      strings.Join(append([]string{name}, args...), " "),
		ExitCode: -1,
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "cmd", res.Cmd, "timeout", r.timeout)

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if err == nil {
		res.ExitCode = 0
		if res.Stderr != "" {
			// Success with stderr chatter is normal for these tools.
			r.logger.Debug("command wrote to stderr on success",
				"cmd", res.Cmd,
				"stderr", strings.TrimSpace(res.Stderr),
			)
		}
		r.logger.Debug("command finished", "cmd", res.Cmd, "duration", res.Duration.Round(time.Millisecond))
		return res, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, errors.Wrapf(ErrTimeout, "%s after %s", res.Cmd, r.timeout)
	}
	if ctxErr := runCtx.Err(); ctxErr != nil {
		return res, errors.Wrapf(ctxErr, "running %s", res.Cmd)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, errors.Newf("%s exited with status %d", res.Cmd, res.ExitCode)
	}

	return res, errors.Wrapf(err, "running %s", res.Cmd)
}
