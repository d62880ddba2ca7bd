// Package rollback restores a fixed set of keys from their newest snapshots
// and runs compensating actions for changes that are not key writes.
package rollback

import (
	"context"
	"log/slog"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/snapshot"
)

// ErrCancelled indicates the undo stopped at a between-key cancellation
// check. Keys already restored stay restored.
var ErrCancelled = errors.New("undo cancelled")

// Action is a compensating step for a change that a key restore cannot
// revert, such as re-enabling a service. Actions are best-effort: one
// failing never stops the rest.
type Action struct {
	Name string
	Run  func(ctx context.Context) error
}

// Status classifies one key or action outcome during undo.
type Status string

const (
	StatusRestored Status = "restored"

	// StatusSkipped means no snapshot exists for the key. That is the
	// normal case for keys a session never touched.
	StatusSkipped Status = "skipped"

	StatusFailed Status = "failed"
)

// KeyResult is one key's undo outcome.
type KeyResult struct {
	Key    string `json:"key"`
	Status Status `json:"status"`
	Note   string `json:"note,omitempty"`
}

// ActionResult is one compensating action's outcome.
type ActionResult struct {
	Action string `json:"action"`
	Status Status `json:"status"`
	Note   string `json:"note,omitempty"`
}

// Report aggregates an undo pass.
type Report struct {
	Restored int            `json:"restored"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Keys     []KeyResult    `json:"keys"`
	Actions  []ActionResult `json:"actions,omitempty"`
}

// OK reports whether every restore and action that ran succeeded. Skips
// do not count against it.
func (r *Report) OK() bool {
	if r.Failed > 0 {
		return false
	}
	for _, a := range r.Actions {
		if a.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Coordinator reverts the keys a profile declares undoable. The key list
// is fixed at construction so undo works without a prior apply in the
// same process.
type Coordinator struct {
	snaps   *snapshot.Manager
	keys    []hive.Key
	actions []Action
	logger  *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for undo progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithActions appends compensating actions, run after the key restores.
func WithActions(actions ...Action) Option {
	return func(c *Coordinator) {
		c.actions = append(c.actions, actions...)
	}
}

// NewCoordinator creates a Coordinator over the given snapshot store.
func NewCoordinator(snaps *snapshot.Manager, keys []hive.Key, opts ...Option) *Coordinator {
	c := &Coordinator{
		snaps:  snaps,
		keys:   keys,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Undo restores every registered key from its newest snapshot, then runs
// the compensating actions. A key without a snapshot is skipped and the
// pass continues; a failed restore is logged and the pass continues.
// Undo is safe to run repeatedly: restoring the same snapshot again
// reproduces the same state.
//
// The returned error is non-nil only when the context is cancelled
// between keys; everything restored up to that point stays restored.
func (c *Coordinator) Undo(ctx context.Context) (*Report, error) {
	report := &Report{
		Keys: make([]KeyResult, 0, len(c.keys)),
	}

	c.logger.Info("undo started", "keys", len(c.keys), "actions", len(c.actions))

	for _, key := range c.keys {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("undo cancelled between keys",
				"restored", report.Restored,
				"remaining", len(c.keys)-len(report.Keys),
			)
			return report, errors.Wrapf(ErrCancelled, "%v", err)
		}

		report.record(c.restoreKey(key))
	}

	for _, action := range c.actions {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrapf(ErrCancelled, "%v", err)
		}

		report.Actions = append(report.Actions, c.runAction(ctx, action))
	}

	c.logger.Log(context.Background(), c.summaryLevel(report), "undo finished",
		"restored", report.Restored,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)

	return report, nil
}

// restoreKey reverts one key from its newest snapshot.
func (c *Coordinator) restoreKey(key hive.Key) KeyResult {
	res := KeyResult{Key: key.String()}

	err := c.snaps.RestoreLatest(key)
	switch {
	case err == nil:
		c.logger.Log(context.Background(), logging.LevelSuccess, "key restored", "key", key)
		res.Status = StatusRestored
	case errors.Is(err, snapshot.ErrNoSnapshot):
		// Nothing was ever captured for this key, so there is nothing
		// to revert.
		c.logger.Info("no snapshot for key, skipping", "key", key)
		res.Status = StatusSkipped
	default:
		c.logger.Error("restoring key failed", "key", key, "error", err)
		res.Status = StatusFailed
		res.Note = err.Error()
	}

	return res
}

// runAction executes one compensating action, isolating its failure.
func (c *Coordinator) runAction(ctx context.Context, action Action) ActionResult {
	res := ActionResult{Action: action.Name}

	if err := action.Run(ctx); err != nil {
		c.logger.Error("compensating action failed", "action", action.Name, "error", err)
		res.Status = StatusFailed
		res.Note = err.Error()
		return res
	}

	c.logger.Log(context.Background(), logging.LevelSuccess, "compensating action done", "action", action.Name)
	res.Status = StatusRestored
	return res
}

func (c *Coordinator) summaryLevel(report *Report) slog.Level {
	if report.OK() {
		return logging.LevelSuccess
	}
	return slog.LevelWarn
}

func (r *Report) record(res KeyResult) {
	r.Keys = append(r.Keys, res)

	switch res.Status {
	case StatusRestored:
		r.Restored++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}
