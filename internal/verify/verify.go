// Package verify runs the read-only verification pass: it compares the
// live system against a profile's expected end state without mutating
// anything. Verification is separate from apply so it can run on its own
// and never performs backups.
package verify

import (
	"context"
	"time"
)

// Severity indicates the importance level of a check result.
type Severity int

const (
	// SeverityPass indicates the check matched expectations.
	SeverityPass Severity = iota

	// SeverityInfo indicates a check that does not apply, such as a
	// target gated off by a guard.
	SeverityInfo

	// SeverityWarning indicates the check could not be evaluated.
	SeverityWarning

	// SeverityError indicates the live state diverges from the
	// expectation.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityPass:
		return "pass"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Check is the interface verification checks implement. Checks must not
// mutate the system.
type Check interface {
	// Name returns the identifier for this check.
	Name() string

	// Category returns the grouping for this check (e.g., "hive",
	// "service").
	Category() string

	// Run evaluates the check and returns its result.
	Run(ctx context.Context) *CheckResult
}

// CheckResult represents the outcome of a single verification check.
type CheckResult struct {
	// Name is the identifier for this check.
	Name string `json:"name"`

	// Category groups related checks.
	Category string `json:"category"`

	// Status indicates the severity of the check result.
	Status Severity `json:"status"`

	// Message describes the check outcome.
	Message string `json:"message"`

	// Details contains additional context about the check result.
	Details map[string]any `json:"details,omitempty"`
}

// Summary aggregates counts of check results by severity.
type Summary struct {
	Passed   int `json:"passed"`
	Info     int `json:"info"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// Report aggregates all check results with timing and summary.
type Report struct {
	// Timestamp is when the verification run started.
	Timestamp time.Time `json:"timestamp"`

	// Results contains the outcome of each check.
	Results []*CheckResult `json:"results"`

	// Summary contains counts by severity level.
	Summary Summary `json:"summary"`
}

// HasErrors returns true if any check diverged.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// HasWarnings returns true if any check could not be evaluated.
func (r *Report) HasWarnings() bool {
	return r.Summary.Warnings > 0
}

// Runner executes verification checks and aggregates their results.
type Runner struct {
	checks []Check
}

// NewRunner creates a new verification runner.
func NewRunner() *Runner {
	return &Runner{
		checks: make([]Check, 0),
	}
}

// AddCheck registers a verification check with the runner.
func (r *Runner) AddCheck(c Check) {
	r.checks = append(r.checks, c)
}

// Run executes all registered checks and returns a report.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{
		Timestamp: time.Now().UTC(),
		Results:   make([]*CheckResult, 0, len(r.checks)),
	}

	for _, check := range r.checks {
		result := check.Run(ctx)
		report.Results = append(report.Results, result)

		switch result.Status {
		case SeverityPass:
			report.Summary.Passed++
		case SeverityInfo:
			report.Summary.Info++
		case SeverityWarning:
			report.Summary.Warnings++
		case SeverityError:
			report.Summary.Errors++
		}
	}

	return report
}
