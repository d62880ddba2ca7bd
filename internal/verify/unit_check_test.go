//go:build unix

package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/svc"
	"github.com/skovgaard/tunectl/internal/sysexec"
)

// fakeService builds a service tool script answering is-active with the
// given exit code.
func fakeService(t *testing.T, exitCode int) *svc.Manager {
	t.Helper()

	tool := filepath.Join(t.TempDir(), "fakectl")
	script := fmt.Sprintf("#!/bin/sh\nexit %d\n", exitCode)
	if err := os.WriteFile(tool, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake tool: %v", err)
	}

	runner := sysexec.NewRunner(sysexec.WithLogger(logging.ForTest(t)))
	return svc.NewManager(runner, svc.WithTool(tool), svc.WithLogger(logging.ForTest(t)))
}

func TestUnitCheck(t *testing.T) {
	tests := []struct {
		name       string
		exitCode   int
		wantActive bool
		want       Severity
	}{
		{name: "active as expected", exitCode: 0, wantActive: true, want: SeverityPass},
		{name: "inactive as expected", exitCode: 3, wantActive: false, want: SeverityPass},
		{name: "should be running", exitCode: 3, wantActive: true, want: SeverityError},
		{name: "should be stopped", exitCode: 0, wantActive: false, want: SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewUnitCheck(fakeService(t, tt.exitCode), "nginx", tt.wantActive)

			got := check.Run(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %s, want %s", got.Status, tt.want)
			}
			if got.Name != "unit:nginx" || got.Category != "service" {
				t.Errorf("identity = %s/%s", got.Name, got.Category)
			}
		})
	}
}

func TestUnitCheckToolMissing(t *testing.T) {
	runner := sysexec.NewRunner(sysexec.WithLogger(logging.ForTest(t)))
	mgr := svc.NewManager(runner,
		svc.WithTool(filepath.Join(t.TempDir(), "missing-tool")),
		svc.WithLogger(logging.ForTest(t)),
	)

	got := NewUnitCheck(mgr, "nginx", true).Run(context.Background())
	if got.Status != SeverityWarning {
		t.Errorf("Status = %s, want warning", got.Status)
	}
}
