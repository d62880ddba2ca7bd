package profile

import (
	"fmt"
	"regexp"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/guard"
	"github.com/skovgaard/tunectl/internal/hive"
)

// maxNameLength is the maximum allowed length for profile and tier names.
const maxNameLength = 64

// nameRegex validates names: lowercase alphanumeric, single hyphens allowed
// between segments, no start/end hyphen, no consecutive hyphens.
var nameRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// guardSyntax checks guard expressions structurally. Named guards resolve
// against the real registry later, so unknown names pass here.
var guardSyntax = guard.NewRegistry()

// ValidationError represents a validation failure for a specific field.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("profile validation: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("profile validation: %s %q: %s", e.Field, e.Value, e.Message)
}

// Validate checks a profile for structural problems before it compiles.
// Returns a slice of validation errors, or nil if valid.
func Validate(p *Profile) []error {
	var errs []error

	errs = append(errs, validateName("name", p.Name)...)

	if p.Version != FormatVersion {
		errs = append(errs, &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (expected %d)", p.Version, FormatVersion),
		})
	}

	if len(p.Tiers) == 0 {
		errs = append(errs, &ValidationError{
			Field:   "tiers",
			Message: "at least one tier is required",
		})
	}

	seen := make(map[string]bool)
	for i, t := range p.Tiers {
		errs = append(errs, validateTier(i, t, seen)...)
	}

	for i, u := range p.Units {
		errs = append(errs, validateUnit(i, u)...)
	}

	for i, k := range p.Undo.Keys {
		field := fmt.Sprintf("undo.keys[%d]", i)
		if _, err := hive.ParseKey(k); err != nil {
			errs = append(errs, &ValidationError{Field: field, Message: err.Error(), Value: k})
		}
	}

	for i, v := range p.Verify {
		errs = append(errs, validateVerify(i, v)...)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateName(field, name string) []error {
	if name == "" {
		return []error{&ValidationError{Field: field, Message: "name is required"}}
	}

	var errs []error
	if len(name) > maxNameLength {
		errs = append(errs, &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("name exceeds maximum length of %d characters", maxNameLength),
			Value:   name,
		})
	}
	if !nameRegex.MatchString(name) {
		errs = append(errs, &ValidationError{
			Field:   field,
			Message: "name must be lowercase alphanumeric with single hyphens between segments",
			Value:   name,
		})
	}

	return errs
}

func validateTier(i int, t TierSpec, seen map[string]bool) []error {
	field := tierField(i, t)

	errs := validateName(field+".name", t.Name)

	if t.Name != "" {
		if seen[t.Name] {
			errs = append(errs, &ValidationError{
				Field:   field + ".name",
				Message: "duplicate tier name",
				Value:   t.Name,
			})
		}
		seen[t.Name] = true
	}

	if len(t.Steps) == 0 {
		errs = append(errs, &ValidationError{
			Field:   field + ".steps",
			Message: "a tier needs at least one step",
		})
	}

	for j, s := range t.Steps {
		errs = append(errs, validateStep(fmt.Sprintf("%s.steps[%d]", field, j), s)...)
	}

	return errs
}

func validateStep(field string, s StepSpec) []error {
	var errs []error

	if s.Key == "" {
		errs = append(errs, &ValidationError{Field: field + ".key", Message: "key is required"})
	} else if _, err := hive.ParseKey(s.Key); err != nil {
		errs = append(errs, &ValidationError{Field: field + ".key", Message: err.Error(), Value: s.Key})
	}

	if s.ValueName == "" {
		errs = append(errs, &ValidationError{Field: field + ".value_name", Message: "value_name is required"})
	}

	if s.Remove {
		if s.Value != nil {
			errs = append(errs, &ValidationError{
				Field:   field + ".value",
				Message: "a remove step cannot carry a value",
			})
		}
	} else {
		if _, err := toValue(s.Type, s.Value); err != nil {
			errs = append(errs, &ValidationError{Field: field + ".value", Message: err.Error()})
		}
	}

	errs = append(errs, validateGuard(field+".guard", s.Guard)...)

	return errs
}

func validateUnit(i int, u UnitSpec) []error {
	field := fmt.Sprintf("units[%d]", i)

	var errs []error
	if u.Unit == "" {
		errs = append(errs, &ValidationError{Field: field + ".unit", Message: "unit is required"})
	}
	if u.Enabled == nil && u.Active == nil {
		errs = append(errs, &ValidationError{
			Field:   field,
			Message: "a unit needs a desired enabled or active state",
		})
	}

	return errs
}

func validateVerify(i int, v VerifySpec) []error {
	field := fmt.Sprintf("verify[%d]", i)

	var errs []error

	if v.Key == "" {
		errs = append(errs, &ValidationError{Field: field + ".key", Message: "key is required"})
	} else if _, err := hive.ParseKey(v.Key); err != nil {
		errs = append(errs, &ValidationError{Field: field + ".key", Message: err.Error(), Value: v.Key})
	}

	if v.ValueName == "" {
		errs = append(errs, &ValidationError{Field: field + ".value_name", Message: "value_name is required"})
	}

	if v.Absent {
		if v.Value != nil {
			errs = append(errs, &ValidationError{
				Field:   field + ".value",
				Message: "an absence expectation cannot carry a value",
			})
		}
	} else {
		if _, err := toValue(v.Type, v.Value); err != nil {
			errs = append(errs, &ValidationError{Field: field + ".value", Message: err.Error()})
		}
	}

	errs = append(errs, validateGuard(field+".guard", v.Guard)...)

	return errs
}

func validateGuard(field, expr string) []error {
	if expr == "" {
		return nil
	}
	if _, err := guardSyntax.Resolve(expr); err != nil && !errors.Is(err, guard.ErrUnknownGuard) {
		return []error{&ValidationError{Field: field, Message: err.Error(), Value: expr}}
	}
	return nil
}

func tierField(i int, t TierSpec) string {
	if t.Name != "" {
		return fmt.Sprintf("tiers[%s]", t.Name)
	}
	return fmt.Sprintf("tiers[%d]", i)
}
