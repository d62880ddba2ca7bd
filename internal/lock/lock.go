// Package lock serializes sessions over a shared artifact directory using an
// advisory file lock. The kernel releases the lock when the holding process
// exits, so crashed sessions never leave the directory permanently locked.
package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/skovgaard/tunectl/internal/errors"
)

const lockFileName = ".tunectl.lock"

// ErrLocked indicates another session currently holds the directory lock.
var ErrLocked = errors.New("artifact directory is locked by another session")

// Info records who holds the lock. The flock itself is authoritative; this
// metadata exists for error messages and status display.
type Info struct {
	PID        int       `json:"pid"`
	SessionID  string    `json:"session_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock is a held directory lock. Release it when the session ends.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes the exclusive session lock for dir, creating dir if needed.
// Returns ErrLocked, annotated with the holder when known, if another
// session already holds it.
func Acquire(dir, sessionID string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating lock directory %s", dir)
	}

	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening lock file %s", path)
	}

	if err := flockExclusive(f); err != nil {
		holder := readInfo(path)
		f.Close()
		if errors.Is(err, ErrLocked) {
			if holder != nil {
				return nil, errors.Wrapf(ErrLocked,
					"held by pid %d (session %s) since %s",
					holder.PID, holder.SessionID, holder.AcquiredAt.Format(time.RFC3339))
			}
			return nil, err
		}
		return nil, errors.Wrapf(err, "locking %s", path)
	}

	info := Info{
		PID:        os.Getpid(),
		SessionID:  sessionID,
		AcquiredAt: time.Now().UTC(),
	}
	if err := writeInfo(f, info); err != nil {
		funlock(f)
		f.Close()
		return nil, err
	}

	return &Lock{path: path, f: f}, nil
}

// Release drops the lock and removes the lock file. Safe on nil and safe to
// call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockErr := funlock(l.f)
	closeErr := l.f.Close()
	l.f = nil

	// Best effort: the flock, not the file's presence, is what locks
	os.Remove(l.path)

	if unlockErr != nil {
		return errors.Wrap(unlockErr, "releasing lock")
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "closing lock file")
	}
	return nil
}

// Holder reports who currently holds the lock for dir, or nil when the
// directory is free. A leftover lock file from a crashed session reads as
// free because the kernel dropped its flock.
func Holder(dir string) (*Info, error) {
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening lock file %s", path)
	}
	defer f.Close()

	if err := flockExclusive(f); err != nil {
		if errors.Is(err, ErrLocked) {
			info := readInfo(path)
			if info == nil {
				info = &Info{}
			}
			return info, nil
		}
		return nil, errors.Wrapf(err, "probing lock %s", path)
	}
	funlock(f)
	return nil, nil
}

// writeInfo replaces the lock file contents with the holder metadata.
func writeInfo(f *os.File, info Info) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling lock info")
	}
	if err := f.Truncate(0); err != nil {
		return errors.Wrap(err, "truncating lock file")
	}
	if _, err := f.WriteAt(append(data, '\n'), 0); err != nil {
		return errors.Wrap(err, "writing lock info")
	}
	return nil
}

// readInfo loads holder metadata, best effort. Returns nil on any failure.
func readInfo(path string) *Info {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil
	}
	return &info
}
