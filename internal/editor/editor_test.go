package editor

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDetectPrefersEditor(t *testing.T) {
	t.Setenv("EDITOR", "nvim")
	t.Setenv("VISUAL", "emacs")

	if got := Detect(); got != "nvim" {
		t.Errorf("Detect() = %q, want nvim", got)
	}
}

func TestDetectFallsThroughToVisual(t *testing.T) {
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "emacs")

	if got := Detect(); got != "emacs" {
		t.Errorf("Detect() = %q, want emacs", got)
	}
}

func TestDetectFallbackChain(t *testing.T) {
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	got := Detect()
	if _, err := exec.LookPath("nano"); err == nil {
		if got != "nano" {
			t.Errorf("Detect() = %q, want nano", got)
		}
	} else if got != "vi" {
		t.Errorf("Detect() = %q, want vi", got)
	}
}

func TestOpenRunsEditorOnPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mock editor is a shell script")
	}

	dir := t.TempDir()
	record := filepath.Join(dir, "args.txt")
	mock := filepath.Join(dir, "mock-editor")
	script := "#!/bin/sh\necho \"$@\" > " + record + "\n"
	if err := os.WriteFile(mock, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EDITOR", mock)

	target := filepath.Join(dir, "profile.yaml")
	if err := os.WriteFile(target, []byte("name: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Open(target); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	got, err := os.ReadFile(record)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), target) {
		t.Errorf("editor invoked with %q, want it to receive %q", string(got), target)
	}
}

func TestOpenMissingEditorBinary(t *testing.T) {
	t.Setenv("EDITOR", "tunectl-no-such-editor")
	t.Setenv("VISUAL", "")

	if err := Open("whatever.yaml"); err == nil {
		t.Error("Open() with a missing editor binary should fail")
	}
}
