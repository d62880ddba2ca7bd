//go:build unix

package svc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/sysexec"
)

// fakeTool writes a shell script standing in for the service tool and
// returns its path plus the file it appends invocations to.
func fakeTool(t *testing.T, body string) (tool, callLog string) {
	t.Helper()

	dir := t.TempDir()
	tool = filepath.Join(dir, "fakectl")
	callLog = filepath.Join(dir, "calls.log")

	script := fmt.Sprintf("#!/bin/sh\necho \"$@\" >> %q\n%s\n", callLog, body)
	if err := os.WriteFile(tool, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake tool: %v", err)
	}

	return tool, callLog
}

func calls(t *testing.T, callLog string) []string {
	t.Helper()

	data, err := os.ReadFile(callLog)
	if err != nil {
		t.Fatalf("reading call log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func newTestManager(t *testing.T, tool string) *Manager {
	t.Helper()

	runner := sysexec.NewRunner(sysexec.WithLogger(logging.ForTest(t)))
	return NewManager(runner, WithTool(tool), WithLogger(logging.ForTest(t)))
}

func TestEnableInvokesTool(t *testing.T) {
	tool, callLog := fakeTool(t, "exit 0")
	m := newTestManager(t, tool)

	if err := m.Enable(context.Background(), "nginx"); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	got := calls(t, callLog)
	if len(got) != 1 || got[0] != "enable nginx" {
		t.Errorf("tool calls = %q, want [enable nginx]", got)
	}
}

func TestStartFailure(t *testing.T) {
	tool, _ := fakeTool(t, `[ "$1" = "start" ] && exit 1; exit 0`)
	m := newTestManager(t, tool)

	err := m.Start(context.Background(), "nginx")
	if err == nil {
		t.Fatal("Start() succeeded against a failing tool")
	}
	if !strings.Contains(err.Error(), "exited with status 1") {
		t.Errorf("error = %v", err)
	}
}

func TestIsActive(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "active", body: "exit 0", want: true},
		{name: "inactive", body: "exit 3", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool, callLog := fakeTool(t, tt.body)
			m := newTestManager(t, tool)

			got, err := m.IsActive(context.Background(), "nginx")
			if err != nil {
				t.Fatalf("IsActive() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsActive() = %t, want %t", got, tt.want)
			}

			if c := calls(t, callLog); c[0] != "is-active --quiet nginx" {
				t.Errorf("tool call = %q", c[0])
			}
		})
	}
}

func TestIsActiveToolMissing(t *testing.T) {
	m := newTestManager(t, filepath.Join(t.TempDir(), "missing-tool"))

	if _, err := m.IsActive(context.Background(), "nginx"); err == nil {
		t.Fatal("IsActive() answered without a tool")
	}
}

func TestCaptureState(t *testing.T) {
	// Enabled at boot but not currently running.
	tool, _ := fakeTool(t, `[ "$1" = "is-enabled" ] && exit 0; exit 3`)
	m := newTestManager(t, tool)

	st, err := m.CaptureState(context.Background(), "nginx")
	if err != nil {
		t.Fatalf("CaptureState() error: %v", err)
	}

	want := UnitState{Unit: "nginx", Enabled: true, Active: false}
	if st != want {
		t.Errorf("CaptureState() = %+v, want %+v", st, want)
	}
}

func TestRestoreAction(t *testing.T) {
	tool, callLog := fakeTool(t, "exit 0")
	m := newTestManager(t, tool)

	action := m.RestoreAction(UnitState{Unit: "nginx", Enabled: true, Active: true})
	if action.Name == "" {
		t.Error("action has no name")
	}

	if err := action.Run(context.Background()); err != nil {
		t.Fatalf("action error: %v", err)
	}

	got := calls(t, callLog)
	want := []string{"enable nginx", "start nginx"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("tool calls = %q, want %q", got, want)
	}
}

func TestRestoreActionDisabledStopped(t *testing.T) {
	tool, callLog := fakeTool(t, "exit 0")
	m := newTestManager(t, tool)

	action := m.RestoreAction(UnitState{Unit: "nginx", Enabled: false, Active: false})
	if err := action.Run(context.Background()); err != nil {
		t.Fatalf("action error: %v", err)
	}

	got := calls(t, callLog)
	want := []string{"disable nginx", "stop nginx"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("tool calls = %q, want %q", got, want)
	}
}

func TestActiveGuard(t *testing.T) {
	tool, _ := fakeTool(t, "exit 0")
	m := newTestManager(t, tool)

	ok, err := m.ActiveGuard("nginx")()
	if err != nil {
		t.Fatalf("guard error: %v", err)
	}
	if !ok {
		t.Error("guard = false for an active unit")
	}
}

func TestDefaultTool(t *testing.T) {
	runner := sysexec.NewRunner(sysexec.WithLogger(logging.ForTest(t)))

	m := NewManager(runner, WithTool(""))
	if m.Tool() != DefaultTool {
		t.Errorf("Tool() = %q, want %q", m.Tool(), DefaultTool)
	}
}
