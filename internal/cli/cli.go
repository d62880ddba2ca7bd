// Package cli wires loaded configuration into the engine components the
// command layer uses. It keeps cmd/tunectl free of construction detail and
// gives command tests one place to stand up a working toolchain against a
// scratch directory.
package cli

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/skovgaard/tunectl/internal/config"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/guard"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/journal"
	"github.com/skovgaard/tunectl/internal/mutate"
	"github.com/skovgaard/tunectl/internal/paths"
	"github.com/skovgaard/tunectl/internal/profile"
	"github.com/skovgaard/tunectl/internal/snapshot"
	"github.com/skovgaard/tunectl/internal/svc"
	"github.com/skovgaard/tunectl/internal/sysexec"
	"github.com/skovgaard/tunectl/pkg/fileutil"
)

// unitStateFile is where apply records pre-mutation unit states so a later
// undo can put services back.
const unitStateFile = "units.json"

// OpenHive opens the configured hive store. Read-write opens create the
// parent directory and database file as needed; read-only opens never
// create anything.
func OpenHive(cfg *config.Config, readOnly bool) (*hive.BoltStore, error) {
	if readOnly {
		return hive.Open(cfg.HivePath, hive.WithReadOnly())
	}
	if err := paths.EnsureDir(filepath.Dir(cfg.HivePath), 0o755); err != nil {
		return nil, err
	}
	return hive.Open(cfg.HivePath)
}

// Snapshots builds the snapshot manager over the configured artifact
// directory.
func Snapshots(cfg *config.Config, store hive.Store, logger *slog.Logger) *snapshot.Manager {
	return snapshot.NewManager(store,
		snapshot.WithDir(cfg.SnapshotDir),
		snapshot.WithRetention(cfg.SnapshotRetention),
		snapshot.WithLogger(logger),
	)
}

// Mutator builds the mutator with the configured backup policy. A non-empty
// override replaces the configured policy, letting a flag win over the
// config file.
func Mutator(cfg *config.Config, store hive.Store, snaps *snapshot.Manager, logger *slog.Logger, override string) (*mutate.Mutator, error) {
	name := cfg.BackupPolicy
	if override != "" {
		name = override
	}
	policy, err := mutate.ParsePolicy(name)
	if err != nil {
		return nil, errors.NewUserError(err, "Valid policies: require, best-effort")
	}
	return mutate.New(store, snaps,
		mutate.WithPolicy(policy),
		mutate.WithLogger(logger),
		mutate.WithCaptureOnce(),
	), nil
}

// Services builds the unit manager over the configured service tool.
func Services(cfg *config.Config, logger *slog.Logger) *svc.Manager {
	runner := sysexec.NewRunner(sysexec.WithLogger(logger))
	return svc.NewManager(runner,
		svc.WithTool(cfg.ServiceTool),
		svc.WithLogger(logger),
	)
}

// Guards returns the predicate registry with the built-in named guards.
// Profiles may also use the env: and file: forms directly without
// registration.
func Guards() *guard.Registry {
	reg := guard.NewRegistry()
	// Fixed valid names, registration cannot fail.
	_ = reg.Register("has-systemd", guard.FileExists("/run/systemd/system"))
	_ = reg.Register("is-root", func() (bool, error) {
		return os.Geteuid() == 0, nil
	})
	return reg
}

// OpenJournal opens the configured audit journal.
func OpenJournal(cfg *config.Config) (*journal.Journal, error) {
	return journal.Open(cfg.JournalPath)
}

// FindProfile resolves and validates a profile by name or path. An empty
// name resolves to the built-in profile.
func FindProfile(cfg *config.Config, nameOrPath string) (*profile.Profile, error) {
	if nameOrPath == "" {
		nameOrPath = profile.BuiltinName
	}
	p, err := profile.Find(nameOrPath, cfg.ProfilePaths)
	if err != nil {
		if errors.Is(err, errors.ErrUnknownProfile) {
			return nil, errors.NewUserError(err, "Run: tunectl profile list")
		}
		return nil, err
	}
	if errs := profile.Validate(p); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, errors.NewUserError(
			errors.Wrapf(errors.ErrInvalidConfig, "profile %s: %s", nameOrPath, strings.Join(msgs, "; ")),
			"Run: tunectl profile validate "+nameOrPath)
	}
	return p, nil
}

// UnitStatePath returns the unit-state file location under the configured
// snapshot directory.
func UnitStatePath(cfg *config.Config) string {
	return filepath.Join(cfg.SnapshotDir, unitStateFile)
}

// SaveUnitStates atomically records captured unit states. Later saves
// replace earlier ones, mirroring the restore-latest behavior of snapshots.
func SaveUnitStates(cfg *config.Config, states []svc.UnitState) error {
	if err := paths.EnsureDir(cfg.SnapshotDir, 0o755); err != nil {
		return err
	}
	return fileutil.AtomicWriteJSON(UnitStatePath(cfg), states)
}

// LoadUnitStates reads the recorded unit states. A missing file is not an
// error: it returns nil, meaning there is nothing to put back.
func LoadUnitStates(cfg *config.Config) ([]svc.UnitState, error) {
	data, err := os.ReadFile(UnitStatePath(cfg))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading unit states")
	}
	var states []svc.UnitState
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", unitStateFile)
	}
	return states, nil
}
