// Package profile loads, validates, and compiles tuning profiles. A
// profile declares the tiers to apply, the keys an undo may restore, the
// service units it touches, and the expected end state for verification.
package profile

// FormatVersion is the profile schema version this build understands.
const FormatVersion = 1

// BuiltinName is the embedded baseline profile.
const BuiltinName = "balanced"

// Profile is one parsed profile file.
type Profile struct {
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description,omitempty" toml:"description,omitempty"`
	Version     int    `yaml:"version" toml:"version"`

	Tiers []TierSpec `yaml:"tiers" toml:"tiers"`

	// Units lists the service units the profile drives after a
	// successful apply.
	Units []UnitSpec `yaml:"units,omitempty" toml:"units,omitempty"`

	Undo UndoSpec `yaml:"undo,omitempty" toml:"undo,omitempty"`

	// Verify lists the expected end state checked by the read-only
	// verification pass.
	Verify []VerifySpec `yaml:"verify,omitempty" toml:"verify,omitempty"`

	// Path is where the profile was loaded from. Empty for the builtin.
	Path string `yaml:"-" toml:"-"`
}

// TierSpec declares one tier. Enabled defaults to true when omitted.
type TierSpec struct {
	Name    string     `yaml:"name" toml:"name"`
	Enabled *bool      `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Steps   []StepSpec `yaml:"steps" toml:"steps"`
}

// IsEnabled resolves the enabled default.
func (t TierSpec) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// StepSpec declares one mutation.
type StepSpec struct {
	Name      string `yaml:"name,omitempty" toml:"name,omitempty"`
	Key       string `yaml:"key" toml:"key"`
	ValueName string `yaml:"value_name" toml:"value_name"`

	// Type names the value kind: integer, string, or bytes. Required
	// unless Remove is set.
	Type string `yaml:"type,omitempty" toml:"type,omitempty"`

	// Value is the payload. Integers come in as numbers, strings as
	// strings, bytes as base64 text.
	Value any `yaml:"value,omitempty" toml:"value,omitempty"`

	Remove     bool `yaml:"remove,omitempty" toml:"remove,omitempty"`
	SkipBackup bool `yaml:"skip_backup,omitempty" toml:"skip_backup,omitempty"`
	Fatal      bool `yaml:"fatal,omitempty" toml:"fatal,omitempty"`

	// Guard is a guard expression gating this step.
	Guard string `yaml:"guard,omitempty" toml:"guard,omitempty"`
}

// UnitSpec declares the desired state of one service unit. Nil fields are
// left untouched.
type UnitSpec struct {
	Unit    string `yaml:"unit" toml:"unit"`
	Enabled *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Active  *bool  `yaml:"active,omitempty" toml:"active,omitempty"`
}

// UndoSpec declares what an undo reverts.
type UndoSpec struct {
	// Keys are restored from their newest snapshots, in order.
	Keys []string `yaml:"keys,omitempty" toml:"keys,omitempty"`

	// RestoreUnits captures unit states before apply and restores them
	// as compensating actions on undo.
	RestoreUnits bool `yaml:"restore_units,omitempty" toml:"restore_units,omitempty"`
}

// VerifySpec declares one expected value for the verification pass.
type VerifySpec struct {
	Key       string `yaml:"key" toml:"key"`
	ValueName string `yaml:"value_name" toml:"value_name"`
	Type      string `yaml:"type,omitempty" toml:"type,omitempty"`
	Value     any    `yaml:"value,omitempty" toml:"value,omitempty"`

	// Absent expects the value to not exist.
	Absent bool `yaml:"absent,omitempty" toml:"absent,omitempty"`

	Guard string `yaml:"guard,omitempty" toml:"guard,omitempty"`
}

// Summary is one profile in a listing.
type Summary struct {
	Name        string
	Description string
	Path        string
}
