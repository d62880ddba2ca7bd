package profile

import (
	"strings"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func validProfile() *Profile {
	return &Profile{
		Name:    "server",
		Version: 1,
		Tiers: []TierSpec{{
			Name: "memory",
			Steps: []StepSpec{{
				Key:       "system/vm",
				ValueName: "swappiness",
				Type:      "integer",
				Value:     10,
			}},
		}},
	}
}

func TestValidateOK(t *testing.T) {
	if errs := Validate(validProfile()); errs != nil {
		t.Errorf("Validate() = %v, want nil", errs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Profile)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(p *Profile) { p.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "uppercase name",
			mutate:  func(p *Profile) { p.Name = "Server" },
			wantErr: "lowercase",
		},
		{
			name:    "bad version",
			mutate:  func(p *Profile) { p.Version = 2 },
			wantErr: "unsupported version 2",
		},
		{
			name:    "no tiers",
			mutate:  func(p *Profile) { p.Tiers = nil },
			wantErr: "at least one tier",
		},
		{
			name: "duplicate tier names",
			mutate: func(p *Profile) {
				p.Tiers = append(p.Tiers, p.Tiers[0])
			},
			wantErr: "duplicate tier name",
		},
		{
			name: "tier without steps",
			mutate: func(p *Profile) {
				p.Tiers = append(p.Tiers, TierSpec{Name: "empty"})
			},
			wantErr: "at least one step",
		},
		{
			name: "unparsable key",
			mutate: func(p *Profile) {
				p.Tiers[0].Steps[0].Key = "justonename"
			},
			wantErr: "tiers[memory].steps[0].key",
		},
		{
			name: "missing value name",
			mutate: func(p *Profile) {
				p.Tiers[0].Steps[0].ValueName = ""
			},
			wantErr: "value_name is required",
		},
		{
			name: "remove with value",
			mutate: func(p *Profile) {
				p.Tiers[0].Steps[0].Remove = true
			},
			wantErr: "remove step cannot carry a value",
		},
		{
			name: "wrong value type",
			mutate: func(p *Profile) {
				p.Tiers[0].Steps[0].Value = "ten"
			},
			wantErr: "not an integer",
		},
		{
			name: "missing type",
			mutate: func(p *Profile) {
				p.Tiers[0].Steps[0].Type = ""
			},
			wantErr: "type is required",
		},
		{
			name: "broken guard expression",
			mutate: func(p *Profile) {
				p.Tiers[0].Steps[0].Guard = "env:"
			},
			wantErr: "tiers[memory].steps[0].guard",
		},
		{
			name: "unit without desired state",
			mutate: func(p *Profile) {
				p.Units = []UnitSpec{{Unit: "tuned.service"}}
			},
			wantErr: "desired enabled or active state",
		},
		{
			name: "unit without name",
			mutate: func(p *Profile) {
				p.Units = []UnitSpec{{Enabled: boolPtr(true)}}
			},
			wantErr: "unit is required",
		},
		{
			name: "bad undo key",
			mutate: func(p *Profile) {
				p.Undo.Keys = []string{"justonename"}
			},
			wantErr: "undo.keys[0]",
		},
		{
			name: "absence with value",
			mutate: func(p *Profile) {
				p.Verify = []VerifySpec{{
					Key:       "system/vm",
					ValueName: "swappiness",
					Absent:    true,
					Value:     10,
				}}
			},
			wantErr: "absence expectation cannot carry a value",
		},
		{
			name: "verify missing value",
			mutate: func(p *Profile) {
				p.Verify = []VerifySpec{{
					Key:       "system/vm",
					ValueName: "swappiness",
					Type:      "integer",
				}}
			},
			wantErr: "value is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(p)

			errs := Validate(p)
			if errs == nil {
				t.Fatal("Validate() = nil, want errors")
			}

			var found bool
			for _, err := range errs {
				if strings.Contains(err.Error(), tt.wantErr) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want an error containing %q", errs, tt.wantErr)
			}
		})
	}
}

func TestValidateNamedGuardAllowed(t *testing.T) {
	// Named guards resolve against the runtime registry, not here.
	p := validProfile()
	p.Tiers[0].Steps[0].Guard = "on-battery"

	if errs := Validate(p); errs != nil {
		t.Errorf("Validate() = %v, want nil", errs)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "name", Message: "name is required"}
	if got := err.Error(); got != "profile validation: name: name is required" {
		t.Errorf("Error() = %q", got)
	}

	withValue := &ValidationError{Field: "version", Message: "bad", Value: "2"}
	if got := withValue.Error(); !strings.Contains(got, `"2"`) {
		t.Errorf("Error() = %q", got)
	}
}
