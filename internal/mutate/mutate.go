// Package mutate pairs snapshot capture with single value writes and
// removals against the hive, reporting a structured outcome per operation
// instead of panicking on expected failure modes.
package mutate

import (
	"context"
	"log/slog"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/snapshot"
)

// BackupPolicy decides what a failed snapshot capture means for the write
// that was about to happen. The choice is the caller's, made explicit.
type BackupPolicy int

const (
	// RequireBackup blocks the write when the capture fails. A key that
	// does not exist yet is not a capture failure; there is no prior state
	// to lose.
	RequireBackup BackupPolicy = iota

	// BestEffortBackup logs the capture failure and writes anyway.
	BestEffortBackup
)

func (p BackupPolicy) String() string {
	switch p {
	case RequireBackup:
		return "require"
	case BestEffortBackup:
		return "best-effort"
	default:
		return "unknown"
	}
}

// ParsePolicy parses the policy names used in configuration.
func ParsePolicy(s string) (BackupPolicy, error) {
	switch s {
	case "require":
		return RequireBackup, nil
	case "best-effort":
		return BestEffortBackup, nil
	default:
		return 0, errors.Newf("unknown backup policy %q", s)
	}
}

// Op names the mutation performed.
type Op string

const (
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// Status classifies how a mutation ended.
type Status string

const (
	// StatusApplied means the write or removal landed.
	StatusApplied Status = "applied"

	// StatusBlocked means RequireBackup was in force and the capture
	// failed, so the write was never attempted.
	StatusBlocked Status = "blocked"

	// StatusFailed means the store rejected the write or removal.
	StatusFailed Status = "failed"
)

// Outcome reports one mutation: what was attempted, whether a snapshot was
// taken first, and how it ended. Err is set for blocked and failed outcomes.
type Outcome struct {
	Op       Op
	Key      hive.Key
	Name     string
	Status   Status
	Snapshot *snapshot.Handle
	Err      error
}

// OK reports whether the mutation landed.
func (o Outcome) OK() bool {
	return o.Status == StatusApplied
}

// Mutator performs backup-then-write mutations against one hive.
type Mutator struct {
	store    hive.Store
	snaps    *snapshot.Manager
	policy   BackupPolicy
	logger   *slog.Logger
	captured map[string]bool // non-nil when capture-once is enabled
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithPolicy sets the backup policy. Defaults to RequireBackup.
func WithPolicy(p BackupPolicy) Option {
	return func(m *Mutator) {
		m.policy = p
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mutator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCaptureOnce dedupes captures per key for the mutator's lifetime: the
// first mutation of a key snapshots it, later ones reuse that state. One
// session then restores to its starting point rather than to intermediate
// states.
func WithCaptureOnce() Option {
	return func(m *Mutator) {
		m.captured = make(map[string]bool)
	}
}

// New creates a Mutator writing to store and capturing through snaps.
func New(store hive.Store, snaps *snapshot.Manager, opts ...Option) *Mutator {
	m := &Mutator{
		store:  store,
		snaps:  snaps,
		policy: RequireBackup,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the mutator's backup policy.
func (m *Mutator) Policy() BackupPolicy {
	return m.policy
}

// SetValue captures the key's subtree (unless skipBackup), then writes the
// named value, creating missing containers along the path. Failures come
// back in the Outcome; nothing here panics for expected failure modes.
func (m *Mutator) SetValue(key hive.Key, name string, value hive.Value, skipBackup bool) Outcome {
	out := Outcome{Op: OpSet, Key: key, Name: name}

	if blocked := m.capture(&out, skipBackup); blocked {
		return out
	}

	if err := m.store.Set(key, name, value); err != nil {
		m.logger.Error("set failed",
			"key", key.String(), "name", name, "error", err)
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	m.logger.Log(context.Background(), logging.LevelSuccess, "value set",
		"key", key.String(), "name", name, "value", value.Display())
	out.Status = StatusApplied
	return out
}

// RemoveValue captures the key's subtree (unless skipBackup), then removes
// the named value. Removing a value that is already absent counts as
// applied; the desired end state holds either way.
func (m *Mutator) RemoveValue(key hive.Key, name string, skipBackup bool) Outcome {
	out := Outcome{Op: OpRemove, Key: key, Name: name}

	if blocked := m.capture(&out, skipBackup); blocked {
		return out
	}

	if err := m.store.Remove(key, name); err != nil {
		if errors.Is(err, hive.ErrNotFound) {
			m.logger.Debug("value already absent",
				"key", key.String(), "name", name)
			out.Status = StatusApplied
			return out
		}
		m.logger.Error("remove failed",
			"key", key.String(), "name", name, "error", err)
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	m.logger.Log(context.Background(), logging.LevelSuccess, "value removed",
		"key", key.String(), "name", name)
	out.Status = StatusApplied
	return out
}

// GetValue reads the named value, returning def on absence or any read
// error. Absence is normal flow, noted only at trace level.
func (m *Mutator) GetValue(key hive.Key, name string, def hive.Value) hive.Value {
	v, err := m.store.Get(key, name)
	if err != nil {
		m.logger.Log(context.Background(), logging.LevelTrace, "value absent, using default",
			"key", key.String(), "name", name, "error", err)
		return def
	}
	return v
}

// capture runs the pre-mutation snapshot and applies the backup policy.
// Returns true when the mutation must not proceed; out carries the outcome.
func (m *Mutator) capture(out *Outcome, skipBackup bool) bool {
	if skipBackup {
		return false
	}
	if m.captured != nil && m.captured[out.Key.String()] {
		return false
	}

	h, err := m.snaps.Capture(out.Key)
	switch {
	case err == nil:
		out.Snapshot = h
		if m.captured != nil {
			m.captured[out.Key.String()] = true
		}
	case errors.Is(err, snapshot.ErrKeyMissing):
		// Nothing existed to capture; the mutation below creates the key.
		// The warning was already logged by the snapshot manager.
		if m.captured != nil {
			m.captured[out.Key.String()] = true
		}
	case m.policy == RequireBackup:
		m.logger.Error("snapshot capture failed, mutation blocked",
			"key", out.Key.String(), "name", out.Name, "error", err)
		out.Status = StatusBlocked
		out.Err = errors.Wrapf(err, "capturing %s", out.Key)
		return true
	default:
		m.logger.Error("snapshot capture failed, mutating anyway",
			"key", out.Key.String(), "name", out.Name, "error", err)
	}
	return false
}
