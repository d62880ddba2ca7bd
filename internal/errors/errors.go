package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Process exit codes. ExitUser covers mistakes the user can fix (bad
// input, bad configuration); ExitSystem covers environment failures
// (I/O, permissions, missing tools).
const (
	ExitSuccess = 0
	ExitUser    = 1
	ExitSystem  = 2
)

// Sentinels callers match with Is.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrUnknownProfile = errors.New("unknown profile")
	ErrUnknownTier    = errors.New("unknown tier")
)

// Re-exported helpers from cockroachdb/errors so CLI-layer callers need a
// single errors import. Engine packages import cockroachdb/errors directly.
var (
	New    = errors.New
	Newf   = errors.Newf
	Errorf = errors.Errorf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// ExitError pairs an error with the exit code the process should return,
// plus an optional suggestion printed under the error message.
type ExitError struct {
	Err        error
	Code       int
	Suggestion string
}

// NewExitError returns an ExitError with the given code. A nil err is
// allowed and marks an exit-code-only failure whose message was already
// printed.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// NewUserError marks err as the user's to fix and suggests a next step.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{Err: err, Code: ExitUser, Suggestion: suggestion}
}

// NewSystemError marks err as an environment failure and suggests a next step.
func NewSystemError(err error, suggestion string) *ExitError {
	return &ExitError{Err: err, Code: ExitSystem, Suggestion: suggestion}
}

// NewConfigError wraps a configuration load failure with the stock
// remediation hint.
func NewConfigError(err error) *ExitError {
	return &ExitError{Err: err, Code: ExitUser, Suggestion: "Run: tunectl verify"}
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap exposes the underlying error to Is and As.
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode extracts the process exit code from an error chain. nil maps
// to ExitSuccess; errors without an ExitError in the chain map to
// ExitUser.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUser
}
