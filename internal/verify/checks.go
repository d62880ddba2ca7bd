package verify

import (
	"context"
	"os"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/guard"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/svc"
)

// ValueCheck compares one hive value against its expected state.
type ValueCheck struct {
	store     hive.Store
	key       hive.Key
	valueName string

	// want is the expected value. Ignored when absent is set.
	want hive.Value

	// absent expects the value to not exist.
	absent bool

	// gate skips the check when the same guard that gated the step is
	// not satisfied on this machine.
	gate     guard.Predicate
	gateExpr string
}

var _ Check = (*ValueCheck)(nil)

// NewValueCheck builds a check expecting key:name to hold want.
func NewValueCheck(store hive.Store, key hive.Key, name string, want hive.Value) *ValueCheck {
	return &ValueCheck{store: store, key: key, valueName: name, want: want}
}

// NewAbsenceCheck builds a check expecting key:name to not exist.
func NewAbsenceCheck(store hive.Store, key hive.Key, name string) *ValueCheck {
	return &ValueCheck{store: store, key: key, valueName: name, absent: true}
}

// WithGuard attaches the gate that decided whether the step applied.
func (c *ValueCheck) WithGuard(gate guard.Predicate, expr string) *ValueCheck {
	c.gate = gate
	c.gateExpr = expr
	return c
}

// Name returns the identifier for this check.
func (c *ValueCheck) Name() string {
	return c.key.String() + ":" + c.valueName
}

// Category returns the grouping for this check.
func (c *ValueCheck) Category() string {
	return "hive"
}

// Run evaluates the expectation against the live hive.
func (c *ValueCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
	}

	if c.gate != nil {
		ok, err := c.gate()
		if err != nil {
			result.Status = SeverityWarning
			result.Message = "guard could not be evaluated"
			result.Details = map[string]any{"guard": c.gateExpr, "error": err.Error()}
			return result
		}
		if !ok {
			result.Status = SeverityInfo
			result.Message = "not applicable on this machine"
			result.Details = map[string]any{"guard": c.gateExpr}
			return result
		}
	}

	got, err := c.store.Get(c.key, c.valueName)
	switch {
	case errors.Is(err, hive.ErrNotFound):
		if c.absent {
			result.Status = SeverityPass
			result.Message = "value absent as expected"
			return result
		}
		result.Status = SeverityError
		result.Message = "value missing"
		result.Details = map[string]any{"want": c.want.Display()}
		return result
	case err != nil:
		result.Status = SeverityWarning
		result.Message = "value could not be read"
		result.Details = map[string]any{"error": err.Error()}
		return result
	}

	if c.absent {
		result.Status = SeverityError
		result.Message = "value still present"
		result.Details = map[string]any{"got": got.Display()}
		return result
	}

	if !got.Equal(c.want) {
		result.Status = SeverityError
		result.Message = "value mismatch"
		result.Details = map[string]any{"got": got.Display(), "want": c.want.Display()}
		return result
	}

	result.Status = SeverityPass
	result.Message = "value matches"
	return result
}

// UnitCheck compares a service unit's run state against the expectation.
type UnitCheck struct {
	mgr        *svc.Manager
	unit       string
	wantActive bool
}

var _ Check = (*UnitCheck)(nil)

// NewUnitCheck builds a check expecting the unit's active state.
func NewUnitCheck(mgr *svc.Manager, unit string, wantActive bool) *UnitCheck {
	return &UnitCheck{mgr: mgr, unit: unit, wantActive: wantActive}
}

// Name returns the identifier for this check.
func (c *UnitCheck) Name() string {
	return "unit:" + c.unit
}

// Category returns the grouping for this check.
func (c *UnitCheck) Category() string {
	return "service"
}

// Run queries the unit through the service tool.
func (c *UnitCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
	}

	active, err := c.mgr.IsActive(ctx, c.unit)
	if err != nil {
		result.Status = SeverityWarning
		result.Message = "unit state could not be queried"
		result.Details = map[string]any{"error": err.Error()}
		return result
	}

	if active != c.wantActive {
		result.Status = SeverityError
		result.Message = "unit state diverges"
		result.Details = map[string]any{"active": active, "want_active": c.wantActive}
		return result
	}

	result.Status = SeverityPass
	result.Message = "unit state matches"
	return result
}

// StoreCheck reports on the hive file and snapshot directory without
// touching either.
type StoreCheck struct {
	hivePath    string
	snapshotDir string
}

var _ Check = (*StoreCheck)(nil)

// NewStoreCheck builds a check over the configured storage paths.
func NewStoreCheck(hivePath, snapshotDir string) *StoreCheck {
	return &StoreCheck{hivePath: hivePath, snapshotDir: snapshotDir}
}

// Name returns the identifier for this check.
func (c *StoreCheck) Name() string {
	return "storage-paths"
}

// Category returns the grouping for this check.
func (c *StoreCheck) Category() string {
	return "filesystem"
}

// Run stats the storage paths. Missing paths are informational since both
// appear on first use.
func (c *StoreCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"hive": c.hivePath, "snapshots": c.snapshotDir},
	}

	if _, err := os.Stat(c.hivePath); err != nil {
		if os.IsNotExist(err) {
			result.Status = SeverityInfo
			result.Message = "hive not created yet"
			return result
		}
		result.Status = SeverityError
		result.Message = "hive is not accessible"
		result.Details["error"] = err.Error()
		return result
	}

	info, err := os.Stat(c.snapshotDir)
	switch {
	case os.IsNotExist(err):
		result.Status = SeverityInfo
		result.Message = "no snapshots captured yet"
		return result
	case err != nil:
		result.Status = SeverityError
		result.Message = "snapshot directory is not accessible"
		result.Details["error"] = err.Error()
		return result
	case !info.IsDir():
		result.Status = SeverityError
		result.Message = "snapshot path is not a directory"
		return result
	}

	result.Status = SeverityPass
	result.Message = "storage paths look good"
	return result
}
