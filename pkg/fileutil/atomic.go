// Package fileutil holds the atomic write and bounded read helpers the
// artifact stores rely on.
package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/skovgaard/tunectl/internal/errors"
)

// AtomicWriteFile replaces the file at path with data via a temp file in
// the same directory and a rename, so readers never observe a partial
// write. The parent directory must exist; perm applies to the final file.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tunectl-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", filepath.Dir(path))
	}
	tmpName := tmp.Name()

	renamed := false
	defer func() {
		if !renamed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		return errors.Wrap(err, "setting permissions")
	}
	// Flush to stable storage before the rename makes the file visible.
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "syncing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}

	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "replacing file")
	}
	renamed = true
	return nil
}

// AtomicWriteJSONWithPerm writes v as indented JSON with a trailing
// newline, atomically, with the given file mode.
func AtomicWriteJSONWithPerm(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding JSON")
	}
	return AtomicWriteFile(path, append(data, '\n'), perm)
}

// AtomicWriteJSON is AtomicWriteJSONWithPerm with mode 0644.
func AtomicWriteJSON(path string, v any) error {
	return AtomicWriteJSONWithPerm(path, v, 0o644)
}
