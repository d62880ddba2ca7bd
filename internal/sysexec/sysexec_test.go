//go:build unix

package sysexec

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/logging"
)

func newTestRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	return NewRunner(append([]Option{WithLogger(logging.ForTest(t))}, opts...)...)
}

func TestRunSuccess(t *testing.T) {
	r := newTestRunner(t)

	res, err := r.Run(context.Background(), "sh", "-c", "echo out")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "out\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if res.Cmd != "sh -c echo out" {
		t.Errorf("Cmd = %q", res.Cmd)
	}
}

func TestRunSuccessDespiteStderr(t *testing.T) {
	r := newTestRunner(t)

	// A zero exit with stderr output is a success. The chatter is kept
	// but never interpreted.
	res, err := r.Run(context.Background(), "sh", "-c", "echo warning >&2; echo ok")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "ok\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "warning") {
		t.Errorf("Stderr = %q, want the warning captured", res.Stderr)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r := newTestRunner(t)

	res, err := r.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("Run() succeeded for exit 3")
	}

	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(err.Error(), "exited with status 3") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(res.Stderr, "boom") {
		t.Errorf("Stderr = %q, want diagnostics captured", res.Stderr)
	}
}

func TestRunTimeout(t *testing.T) {
	r := newTestRunner(t, WithTimeout(50*time.Millisecond))

	_, err := r.Run(context.Background(), "sh", "-c", "sleep 5")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
}

func TestRunCommandNotFound(t *testing.T) {
	r := newTestRunner(t)

	res, err := r.Run(context.Background(), "tunectl-no-such-tool")
	if err == nil {
		t.Fatal("Run() succeeded for a missing binary")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
}

func TestRunCancelled(t *testing.T) {
	r := newTestRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, "sh", "-c", "sleep 5")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("cancellation misreported as timeout")
	}
}
