// Package prompt provides interactive terminal prompts for commands that
// change system state.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/skovgaard/tunectl/internal/errors"
)

// Confirmer asks yes/no questions on a terminal.
type Confirmer struct {
	reader io.Reader
	writer io.Writer
}

// NewConfirmer creates a Confirmer using stdin and stdout.
func NewConfirmer() *Confirmer {
	return &Confirmer{
		reader: os.Stdin,
		writer: os.Stdout,
	}
}

// NewConfirmerWithIO creates a Confirmer with custom reader and writer for testing.
func NewConfirmerWithIO(r io.Reader, w io.Writer) *Confirmer {
	return &Confirmer{
		reader: r,
		writer: w,
	}
}

// Confirm prints the question and reads a yes/no answer. Only "y" and "yes"
// (case-insensitive) accept. Everything else declines, including EOF, so a
// closed stdin can never confirm a state change.
func (c *Confirmer) Confirm(question string) (bool, error) {
	fmt.Fprintf(c.writer, "%s [y/N]: ", question)

	scanner := bufio.NewScanner(c.reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, errors.Wrap(err, "reading answer")
		}
		fmt.Fprintln(c.writer)
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}
