package profile

import (
	"encoding/base64"
	"math"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/guard"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/svc"
	"github.com/skovgaard/tunectl/internal/tier"
	"github.com/skovgaard/tunectl/internal/verify"
)

// CompileTiers turns the tier specs into runnable tiers, resolving guard
// expressions against reg.
func (p *Profile) CompileTiers(reg *guard.Registry) ([]tier.Tier, error) {
	tiers := make([]tier.Tier, 0, len(p.Tiers))

	for _, ts := range p.Tiers {
		t := tier.Tier{
			Name:    ts.Name,
			Enabled: ts.IsEnabled(),
			Steps:   make([]tier.Step, 0, len(ts.Steps)),
		}

		for j, ss := range ts.Steps {
			step, err := compileStep(ss, reg)
			if err != nil {
				return nil, errors.Wrapf(err, "tier %s step %d", ts.Name, j)
			}
			t.Steps = append(t.Steps, step)
		}

		tiers = append(tiers, t)
	}

	return tiers, nil
}

func compileStep(ss StepSpec, reg *guard.Registry) (tier.Step, error) {
	key, err := hive.ParseKey(ss.Key)
	if err != nil {
		return tier.Step{}, err
	}

	step := tier.Step{
		Name:       ss.Name,
		Key:        key,
		ValueName:  ss.ValueName,
		Remove:     ss.Remove,
		SkipBackup: ss.SkipBackup,
		Fatal:      ss.Fatal,
		GuardExpr:  ss.Guard,
	}

	if !ss.Remove {
		value, err := toValue(ss.Type, ss.Value)
		if err != nil {
			return tier.Step{}, err
		}
		step.Value = value
	}

	if ss.Guard != "" {
		pred, err := reg.Resolve(ss.Guard)
		if err != nil {
			return tier.Step{}, err
		}
		step.Guard = pred
	}

	return step, nil
}

// UndoKeys parses the undo key list in declaration order.
func (p *Profile) UndoKeys() ([]hive.Key, error) {
	keys := make([]hive.Key, 0, len(p.Undo.Keys))

	for _, raw := range p.Undo.Keys {
		key, err := hive.ParseKey(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "undo key %q", raw)
		}
		keys = append(keys, key)
	}

	return keys, nil
}

// CompileChecks turns the verify section and unit expectations into
// runnable verification checks. mgr may be nil when no service tool is
// available; unit checks are then omitted.
func (p *Profile) CompileChecks(store hive.Store, mgr *svc.Manager, reg *guard.Registry) ([]verify.Check, error) {
	checks := make([]verify.Check, 0, len(p.Verify)+len(p.Units))

	for i, vs := range p.Verify {
		key, err := hive.ParseKey(vs.Key)
		if err != nil {
			return nil, errors.Wrapf(err, "verify entry %d", i)
		}

		var check *verify.ValueCheck
		if vs.Absent {
			check = verify.NewAbsenceCheck(store, key, vs.ValueName)
		} else {
			want, err := toValue(vs.Type, vs.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "verify entry %d", i)
			}
			check = verify.NewValueCheck(store, key, vs.ValueName, want)
		}

		if vs.Guard != "" {
			pred, err := reg.Resolve(vs.Guard)
			if err != nil {
				return nil, errors.Wrapf(err, "verify entry %d", i)
			}
			check = check.WithGuard(pred, vs.Guard)
		}

		checks = append(checks, check)
	}

	if mgr != nil {
		for _, u := range p.Units {
			if u.Active != nil {
				checks = append(checks, verify.NewUnitCheck(mgr, u.Unit, *u.Active))
			}
		}
	}

	return checks, nil
}

// toValue converts a decoded profile payload into a hive value of the
// named kind.
func toValue(typeName string, raw any) (hive.Value, error) {
	if typeName == "" {
		return hive.Value{}, errors.New("type is required")
	}

	kind, err := hive.ParseKind(typeName)
	if err != nil {
		return hive.Value{}, err
	}
	if raw == nil {
		return hive.Value{}, errors.New("value is required")
	}

	switch kind {
	case hive.KindInteger:
		n, ok := toInt64(raw)
		if !ok {
			return hive.Value{}, errors.Newf("value %v is not an integer", raw)
		}
		return hive.Integer(n), nil

	case hive.KindString:
		s, ok := raw.(string)
		if !ok {
			return hive.Value{}, errors.Newf("value %v is not a string", raw)
		}
		return hive.String(s), nil

	default:
		s, ok := raw.(string)
		if !ok {
			return hive.Value{}, errors.New("bytes value must be base64 text")
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return hive.Value{}, errors.Wrap(err, "decoding base64 value")
		}
		return hive.Bytes(data), nil
	}
}

// toInt64 accepts the integer representations the YAML and TOML decoders
// produce.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}
