// Package tier groups mutations into named, independently toggleable tiers
// and runs them strictly in order with per-step failure isolation.
package tier

import (
	"time"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/guard"
	"github.com/skovgaard/tunectl/internal/hive"
)

// Sentinel errors for tier execution.
var (
	// ErrTierAborted indicates a fatal step failed and the tier stopped.
	// Steps already applied stay applied; only an explicit undo reverts.
	ErrTierAborted = errors.New("tier aborted")

	// ErrCancelled indicates the session stopped at a between-step
	// cancellation check.
	ErrCancelled = errors.New("session cancelled")

	// ErrAlreadyRan indicates a Runner was asked to run a second session.
	ErrAlreadyRan = errors.New("runner already ran")
)

// Step is one desired write or removal within a tier.
type Step struct {
	// Name labels the step in logs and reports. Empty names render as the
	// target key and value name.
	Name string

	Key       hive.Key
	ValueName string

	// Value is the payload to write. Ignored when Remove is set.
	Value hive.Value

	// Remove deletes the value instead of writing it.
	Remove bool

	// SkipBackup opts this step out of the pre-mutation snapshot.
	SkipBackup bool

	// Fatal marks a step whose failure aborts the whole tier and
	// propagates to the caller.
	Fatal bool

	// Guard, when present, gates the step. A false result or an
	// evaluation error skips the step; neither is a failure.
	Guard guard.Predicate

	// GuardExpr is the source expression Guard was resolved from,
	// kept for logs and reports.
	GuardExpr string
}

// Label renders the step for humans.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	verb := "set"
	if s.Remove {
		verb = "remove"
	}
	return verb + " " + s.Key.String() + ":" + s.ValueName
}

// Tier is a named, ordered group of steps run only when enabled.
type Tier struct {
	Name    string
	Enabled bool
	Steps   []Step
}

// State is the runner's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCompletedWithErrors
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCompletedWithErrors:
		return "completed-with-errors"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StepStatus classifies one step's outcome in the session report.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"

	// StepSkipped covers guard misses and dry runs. Skips are neither
	// successes nor failures.
	StepSkipped StepStatus = "skipped"
)

// StepResult is one step's outcome, journal-ready.
type StepResult struct {
	Tier   string     `json:"tier"`
	Step   string     `json:"step"`
	Key    string     `json:"key,omitempty"`
	Status StepStatus `json:"status"`
	Note   string     `json:"note,omitempty"`
}

// TierReport aggregates one tier's step counts.
type TierReport struct {
	Tier      string `json:"tier"`
	Disabled  bool   `json:"disabled,omitempty"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Report is the structured outcome of one session. The engine produces the
// counts; rendering belongs to the caller.
type Report struct {
	SessionID string        `json:"session_id"`
	State     State         `json:"-"`
	StateName string        `json:"state"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Tiers     []TierReport  `json:"tiers"`
	Steps     []StepResult  `json:"steps"`
	Err       error         `json:"-"`
}

// Counts sums the per-tier tallies.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, t := range r.Tiers {
		succeeded += t.Succeeded
		failed += t.Failed
		skipped += t.Skipped
	}
	return succeeded, failed, skipped
}
