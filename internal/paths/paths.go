package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
)

// AppName is the directory name used under the XDG base directories.
const AppName = "tunectl"

// DefaultDirPerm keeps artifact directories private to the user.
const DefaultDirPerm = 0o700

// ErrHomeDirNotFound reports that no home directory could be determined.
var ErrHomeDirNotFound = errors.New("home directory not found")

// EnsureDir makes path and any missing parents, defaulting to
// DefaultDirPerm when perm is zero. An existing directory is fine.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = DefaultDirPerm
	}
	return os.MkdirAll(path, perm)
}

// ResolveHome returns the user's home directory or ErrHomeDirNotFound.
func ResolveHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(ErrHomeDirNotFound, err.Error())
	}
	return home, nil
}

// ConfigHome returns the XDG config base (~/.config on Linux).
func ConfigHome() string { return xdg.ConfigHome }

// DataHome returns the XDG data base (~/.local/share on Linux).
func DataHome() string { return xdg.DataHome }

// StateHome returns the XDG state base (~/.local/state on Linux).
func StateHome() string { return xdg.StateHome }

// ConfigDir holds tunectl's own configuration and the user profile dir.
func ConfigDir() string { return filepath.Join(ConfigHome(), AppName) }

// DataDir holds the hive database and snapshot artifacts.
func DataDir() string { return filepath.Join(DataHome(), AppName) }

// DefaultHivePath places the hive database under the data dir. System
// installs usually point this at /var/lib/tunectl via configuration, at
// which point writes there need elevated rights.
func DefaultHivePath() string { return filepath.Join(DataDir(), "hive.db") }

// DefaultSnapshotDir places snapshot artifacts next to the hive.
func DefaultSnapshotDir() string { return filepath.Join(DataDir(), "snapshots") }

// DefaultJournalPath keeps the session journal under the state dir,
// apart from the data the snapshots protect.
func DefaultJournalPath() string {
	return filepath.Join(StateHome(), AppName, "journal.jsonl")
}

// DefaultProfileDirs lists the profile search path, highest precedence
// first.
func DefaultProfileDirs() []string {
	return []string{filepath.Join(ConfigDir(), "profiles")}
}
