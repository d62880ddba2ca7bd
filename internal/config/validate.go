package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Sentinels for the ways a configuration can be malformed.
var (
	ErrVersionUnsupported = errors.New("unsupported config version")
	ErrInvalidPolicy      = errors.New("invalid backup policy")
	ErrInvalidRetention   = errors.New("invalid snapshot retention")
	ErrInvalidPath        = errors.New("invalid path")
)

// Validate collects every problem with cfg instead of stopping at the
// first, so a broken file is reported in one pass.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Version != 1 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrVersionUnsupported, cfg.Version))
	}
	if cfg.BackupPolicy != PolicyRequire && cfg.BackupPolicy != PolicyBestEffort {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidPolicy, cfg.BackupPolicy))
	}
	if cfg.SnapshotRetention < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidRetention, cfg.SnapshotRetention))
	}

	for field, path := range map[string]string{
		"hive_path":    cfg.HivePath,
		"snapshot_dir": cfg.SnapshotDir,
		"journal_path": cfg.JournalPath,
	} {
		if path == "" {
			// Unset means "use the built-in default".
			continue
		}
		if err := validatePath(path); err != nil {
			errs = append(errs, &PathError{Field: field, Path: path, Err: err})
		}
	}

	for _, dir := range cfg.ProfilePaths {
		if dir == "" {
			continue
		}
		if err := validatePath(dir); err != nil {
			errs = append(errs, &PathError{Field: "profile_paths", Path: dir, Err: err})
		}
	}

	return errs
}

// validatePath rejects syntactically broken path values. Whether the path
// exists is checked later, by whichever component opens it.
func validatePath(path string) error {
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	if c := filepath.Clean(path); c == "" || c == "." {
		return ErrInvalidPath
	}
	return nil
}

// PathError ties a malformed path value to the config field holding it.
type PathError struct {
	Field string
	Path  string
	Err   error
}

func (e *PathError) Error() string {
	return e.Field + ": " + e.Err.Error() + ": " + e.Path
}

func (e *PathError) Unwrap() error { return e.Err }
