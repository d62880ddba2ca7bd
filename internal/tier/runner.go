package tier

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/mutate"
)

// Runner executes tiers strictly in order through a mutator. A Runner is a
// single session: it starts idle, runs once, and ends in a terminal state.
type Runner struct {
	mut       *mutate.Mutator
	logger    *slog.Logger
	clock     func() time.Time
	sessionID string
	dryRun    bool

	state State
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger used for session progress.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(clock func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithSessionID fixes the session identifier instead of generating one.
func WithSessionID(id string) RunnerOption {
	return func(r *Runner) {
		r.sessionID = id
	}
}

// WithDryRun evaluates guards and reports planned work without mutating.
// Planned steps are counted as skipped.
func WithDryRun() RunnerOption {
	return func(r *Runner) {
		r.dryRun = true
	}
}

// NewRunner creates an idle session runner over the given mutator.
func NewRunner(mut *mutate.Mutator, opts ...RunnerOption) *Runner {
	r := &Runner{
		mut:    mut,
		logger: slog.Default(),
		clock:  time.Now,
		state:  StateIdle,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.sessionID == "" {
		r.sessionID = uuid.NewString()
	}

	return r
}

// State returns the runner's current lifecycle position.
func (r *Runner) State() State {
	return r.state
}

// SessionID returns the identifier attached to this session's report and
// journal entries.
func (r *Runner) SessionID() string {
	return r.sessionID
}

// Run executes the tiers in order and returns the session report. The
// report is always non-nil so partial results survive an abort.
//
// A fatal step failure aborts the current tier, skips all later tiers,
// and returns ErrTierAborted. Applied steps are not rolled back.
// Cancellation is honored between steps, never mid-mutation.
func (r *Runner) Run(ctx context.Context, tiers []Tier) (*Report, error) {
	if r.state != StateIdle {
		return nil, ErrAlreadyRan
	}
	r.state = StateRunning

	started := r.clock()
	report := &Report{
		SessionID: r.sessionID,
		StartedAt: started,
		Tiers:     make([]TierReport, 0, len(tiers)),
	}

	r.logger.Info("session started",
		"session", r.sessionID,
		"tiers", len(tiers),
		"dry_run", r.dryRun,
	)

	for i := range tiers {
		tr, err := r.runTier(ctx, &tiers[i], report)
		report.Tiers = append(report.Tiers, tr)
		if err != nil {
			return r.finish(report, err)
		}
	}

	return r.finish(report, nil)
}

// runTier executes a single tier. A non-nil error means the session must
// stop; the partial TierReport is still returned for the session report.
func (r *Runner) runTier(ctx context.Context, t *Tier, report *Report) (TierReport, error) {
	tr := TierReport{Tier: t.Name}

	if !t.Enabled {
		tr.Disabled = true
		r.logger.Info("tier disabled, skipping", "tier", t.Name)
		return tr, nil
	}

	r.logger.Info("running tier", "tier", t.Name, "steps", len(t.Steps))

	for i := range t.Steps {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("session cancelled between steps",
				"tier", t.Name,
				"completed_steps", i,
			)
			return tr, errors.Wrapf(ErrCancelled, "tier %s: %v", t.Name, err)
		}

		res, err := r.runStep(t, &t.Steps[i])
		report.Steps = append(report.Steps, res)

		switch res.Status {
		case StepSucceeded:
			tr.Succeeded++
		case StepFailed:
			tr.Failed++
		case StepSkipped:
			tr.Skipped++
		}

		if err != nil {
			return tr, err
		}
	}

	r.logger.Info("tier finished",
		"tier", t.Name,
		"succeeded", tr.Succeeded,
		"failed", tr.Failed,
		"skipped", tr.Skipped,
	)

	return tr, nil
}

// runStep evaluates the guard and applies one step. A non-nil error is
// returned only for fatal failures that must abort the session.
func (r *Runner) runStep(t *Tier, s *Step) (StepResult, error) {
	res := StepResult{
		Tier: t.Name,
		Step: s.Label(),
		Key:  s.Key.String(),
	}

	if s.Guard != nil {
		ok, err := s.Guard()
		if err != nil {
			// An unevaluable guard is treated as not satisfied. Skipping
			// is the safe direction for a gate we cannot read.
			r.logger.Warn("guard evaluation failed, skipping step",
				"tier", t.Name,
				"step", s.Label(),
				"guard", s.GuardExpr,
				"error", err,
			)
			res.Status = StepSkipped
			res.Note = "guard error: " + err.Error()
			return res, nil
		}
		if !ok {
			r.logger.Info("step skipped by guard",
				"tier", t.Name,
				"step", s.Label(),
				"guard", s.GuardExpr,
			)
			res.Status = StepSkipped
			res.Note = "guard not satisfied"
			return res, nil
		}
	}

	if r.dryRun {
		r.logger.Info("dry run, step not applied",
			"tier", t.Name,
			"step", s.Label(),
		)
		res.Status = StepSkipped
		res.Note = "dry run"
		return res, nil
	}

	var out mutate.Outcome
	if s.Remove {
		out = r.mut.RemoveValue(s.Key, s.ValueName, s.SkipBackup)
	} else {
		out = r.mut.SetValue(s.Key, s.ValueName, s.Value, s.SkipBackup)
	}

	if out.OK() {
		res.Status = StepSucceeded
		return res, nil
	}

	res.Status = StepFailed
	if out.Err != nil {
		res.Note = out.Err.Error()
	}

	if s.Fatal {
		r.logger.Error("fatal step failed, aborting tier",
			"tier", t.Name,
			"step", s.Label(),
			"error", out.Err,
		)
		return res, errors.Wrapf(ErrTierAborted, "tier %s: step %s: %v", t.Name, s.Label(), out.Err)
	}

	// Mutator already logged the failure detail. Isolation means the
	// next step still runs.
	r.logger.Debug("continuing after step failure",
		"tier", t.Name,
		"step", s.Label(),
	)

	return res, nil
}

// finish moves the runner to its terminal state and seals the report.
func (r *Runner) finish(report *Report, err error) (*Report, error) {
	report.Duration = r.clock().Sub(report.StartedAt)

	succeeded, failed, skipped := report.Counts()

	switch {
	case err != nil:
		r.state = StateAborted
		report.Err = err
	case failed > 0:
		r.state = StateCompletedWithErrors
	default:
		r.state = StateCompleted
	}

	report.State = r.state
	report.StateName = r.state.String()

	attrs := []any{
		"session", r.sessionID,
		"state", r.state.String(),
		"succeeded", succeeded,
		"failed", failed,
		"skipped", skipped,
		"duration", report.Duration.Round(time.Millisecond),
	}

	switch r.state {
	case StateCompleted:
		r.logger.Log(context.Background(), logging.LevelSuccess, "session completed", attrs...)
	case StateCompletedWithErrors:
		r.logger.Warn("session completed with errors", attrs...)
	default:
		r.logger.Error("session aborted", append(attrs, "error", err)...)
	}

	return report, err
}
