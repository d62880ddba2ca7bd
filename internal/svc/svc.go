// Package svc manages service units through the configured service tool
// and builds the compensating actions that put units back after an undo.
package svc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skovgaard/tunectl/internal/guard"
	"github.com/skovgaard/tunectl/internal/rollback"
	"github.com/skovgaard/tunectl/internal/sysexec"
)

// DefaultTool is the service manager invoked when none is configured.
const DefaultTool = "systemctl"

// UnitState is a unit's startup mode and run state, captured before a
// session changes it.
type UnitState struct {
	Unit    string `json:"unit"`
	Enabled bool   `json:"enabled"`
	Active  bool   `json:"active"`
}

// Manager drives the service tool. Query results and failures come from
// exit statuses alone; the tool's stderr is diagnostics.
type Manager struct {
	runner *sysexec.Runner
	tool   string
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTool overrides the service tool binary.
func WithTool(tool string) Option {
	return func(m *Manager) {
		if tool != "" {
			m.tool = tool
		}
	}
}

// WithLogger sets the logger for unit operations.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager running units through the given runner.
func NewManager(runner *sysexec.Runner, opts ...Option) *Manager {
	m := &Manager{
		runner: runner,
		tool:   DefaultTool,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Tool returns the service tool binary in use.
func (m *Manager) Tool() string {
	return m.tool
}

// Enable marks the unit to start at boot.
func (m *Manager) Enable(ctx context.Context, unit string) error {
	return m.verb(ctx, "enable", unit)
}

// Disable removes the unit from boot startup.
func (m *Manager) Disable(ctx context.Context, unit string) error {
	return m.verb(ctx, "disable", unit)
}

// Start runs the unit now.
func (m *Manager) Start(ctx context.Context, unit string) error {
	return m.verb(ctx, "start", unit)
}

// Stop halts the unit now.
func (m *Manager) Stop(ctx context.Context, unit string) error {
	return m.verb(ctx, "stop", unit)
}

// Restart stops and starts the unit.
func (m *Manager) Restart(ctx context.Context, unit string) error {
	return m.verb(ctx, "restart", unit)
}

func (m *Manager) verb(ctx context.Context, verb, unit string) error {
	m.logger.Debug("service operation", "tool", m.tool, "verb", verb, "unit", unit)

	_, err := m.runner.Run(ctx, m.tool, verb, unit)
	return err
}

// IsActive reports whether the unit is running. A nonzero exit from the
// query is the tool's way of answering no, not a failure.
func (m *Manager) IsActive(ctx context.Context, unit string) (bool, error) {
	return m.query(ctx, "is-active", unit)
}

// IsEnabled reports whether the unit starts at boot.
func (m *Manager) IsEnabled(ctx context.Context, unit string) (bool, error) {
	return m.query(ctx, "is-enabled", unit)
}

func (m *Manager) query(ctx context.Context, verb, unit string) (bool, error) {
	res, err := m.runner.Run(ctx, m.tool, verb, "--quiet", unit)
	if err != nil {
		if res != nil && res.ExitCode > 0 {
			return false, nil
		}
		// The tool itself failed to answer.
		return false, err
	}
	return true, nil
}

// CaptureState records the unit's current startup mode and run state so a
// later undo can put both back.
func (m *Manager) CaptureState(ctx context.Context, unit string) (UnitState, error) {
	st := UnitState{Unit: unit}

	enabled, err := m.IsEnabled(ctx, unit)
	if err != nil {
		return st, err
	}
	st.Enabled = enabled

	active, err := m.IsActive(ctx, unit)
	if err != nil {
		return st, err
	}
	st.Active = active

	return st, nil
}

// RestoreAction builds the compensating action that returns the unit to
// the captured state. It fixes the startup mode first, then the run
// state, and stops at the first failure.
func (m *Manager) RestoreAction(st UnitState) rollback.Action {
	return rollback.Action{
		Name: fmt.Sprintf("restore unit %s (enabled=%t, active=%t)", st.Unit, st.Enabled, st.Active),
		Run: func(ctx context.Context) error {
			if err := m.setEnabled(ctx, st.Unit, st.Enabled); err != nil {
				return err
			}
			return m.setActive(ctx, st.Unit, st.Active)
		},
	}
}

func (m *Manager) setEnabled(ctx context.Context, unit string, enabled bool) error {
	if enabled {
		return m.Enable(ctx, unit)
	}
	return m.Disable(ctx, unit)
}

func (m *Manager) setActive(ctx context.Context, unit string, active bool) error {
	if active {
		return m.Start(ctx, unit)
	}
	return m.Stop(ctx, unit)
}

// ActiveGuard returns a predicate satisfied while the unit is running.
// Profiles register it to gate steps on a service being up.
func (m *Manager) ActiveGuard(unit string) guard.Predicate {
	return func() (bool, error) {
		return m.IsActive(context.Background(), unit)
	}
}
