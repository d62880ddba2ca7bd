package logging

import (
	"bytes"
	"os"
	"testing"
)

func TestIsTTYPlainWriter(t *testing.T) {
	var buf bytes.Buffer
	if IsTTY(&buf) {
		t.Error("bytes.Buffer should not be a TTY")
	}
}

func TestSupportsColor(t *testing.T) {
	t.Run("NO_COLOR wins", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		if supportsColor(true) {
			t.Error("NO_COLOR should disable color even on a TTY")
		}
	})

	t.Run("dumb terminal", func(t *testing.T) {
		t.Setenv("TERM", "dumb")
		if supportsColor(true) {
			t.Error("TERM=dumb should disable color")
		}
	})

	t.Run("not a TTY", func(t *testing.T) {
		if supportsColor(false) {
			t.Error("non-TTY writers should not get color")
		}
	})

	t.Run("plain TTY", func(t *testing.T) {
		t.Setenv("TERM", "xterm-256color")
		// t.Setenv cannot unset; skip when ambient NO_COLOR interferes.
		if _, set := os.LookupEnv("NO_COLOR"); set {
			t.Skip("NO_COLOR set in the environment")
		}
		if !supportsColor(true) {
			t.Error("a TTY without NO_COLOR or TERM=dumb should get color")
		}
	})
}
