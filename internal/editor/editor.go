// Package editor launches the user's preferred text editor on a file and
// waits for it to exit.
package editor

import (
	"os"
	"os/exec"

	"github.com/skovgaard/tunectl/internal/errors"
)

// Open runs the detected editor on path with the terminal attached and
// blocks until the editor exits.
func Open(path string) error {
	name := Detect()

	cmd := exec.Command(name, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "running %s", name)
	}
	return nil
}

// Detect returns the editor command to launch. Resolution order is
// $EDITOR, then $VISUAL, then nano if installed, then vi.
func Detect() string {
	if v := os.Getenv("EDITOR"); v != "" {
		return v
	}
	if v := os.Getenv("VISUAL"); v != "" {
		return v
	}
	if _, err := exec.LookPath("nano"); err == nil {
		return "nano"
	}
	return "vi"
}
