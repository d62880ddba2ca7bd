package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/paths"
	"github.com/skovgaard/tunectl/pkg/fileutil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Manager captures and restores snapshots of hive subtrees as timestamped,
// self-contained artifacts in a flat directory.
type Manager struct {
	dir       string
	retention int
	src       hive.Store
	logger    *slog.Logger
	clock     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithDir sets the artifact directory.
func WithDir(dir string) Option {
	return func(m *Manager) {
		m.dir = dir
	}
}

// WithRetention sets the number of snapshots to retain per key.
func WithRetention(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.retention = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source. Tests use this to control
// capture timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager creates a snapshot Manager reading from and restoring into src.
func NewManager(src hive.Store, opts ...Option) *Manager {
	m := &Manager{
		dir:       paths.DefaultSnapshotDir(),
		retention: DefaultRetention,
		src:       src,
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the artifact directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Capture exports the full subtree at key into a new artifact and returns a
// handle to it. A missing key is not an error in the caller's control flow:
// it logs a warning and returns ErrKeyMissing, and the hive is left
// untouched (nothing is created by looking).
func (m *Manager) Capture(key hive.Key) (*Handle, error) {
	if m.src == nil {
		return nil, errors.New("snapshot manager has no source store")
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	sub, err := m.src.Export(key)
	if err != nil {
		if errors.Is(err, hive.ErrNotFound) {
			m.logger.Warn("key does not exist, proceeding without snapshot", "key", key.String())
			return nil, errors.Wrapf(ErrKeyMissing, "key %s", key)
		}
		return nil, errors.Wrapf(err, "exporting %s", key)
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating snapshot directory")
	}

	capturedAt := m.clock().UTC()
	sum, err := subtreeChecksum(sub)
	if err != nil {
		return nil, err
	}

	rec := Record{
		Version:     FormatVersion,
		Key:         key.String(),
		CapturedAt:  capturedAt,
		ToolVersion: Version,
		Checksum:    sum,
		Subtree:     sub,
	}

	path := m.artifactPath(key, capturedAt)
	if err := fileutil.AtomicWriteJSON(path, rec); err != nil {
		return nil, errors.Wrap(err, "writing snapshot artifact")
	}

	m.logger.Debug("captured snapshot",
		"key", key.String(),
		"artifact", filepath.Base(path),
		"values", sub.ValueCount())

	return &Handle{Key: key, CapturedAt: capturedAt, Path: path}, nil
}

// Restore re-imports the subtree held by the handle's artifact, replacing
// whatever is at the key now. Restoring the same handle repeatedly converges
// to the same state.
func (m *Manager) Restore(h *Handle) error {
	if m.src == nil {
		return errors.New("snapshot manager has no source store")
	}
	if h == nil || h.Path == "" {
		return errors.New("snapshot handle is required")
	}

	rec, err := readRecord(h.Path)
	if err != nil {
		return err
	}

	sum, err := subtreeChecksum(rec.Subtree)
	if err != nil {
		return err
	}
	if sum != rec.Checksum {
		return errors.Wrapf(ErrCorrupted, "artifact %s checksum mismatch", filepath.Base(h.Path))
	}

	key, err := hive.ParseKey(rec.Key)
	if err != nil {
		return errors.Wrapf(err, "artifact %s", filepath.Base(h.Path))
	}

	if err := m.src.Import(key, rec.Subtree); err != nil {
		return errors.Wrapf(err, "importing %s", key)
	}

	m.logger.Debug("restored snapshot",
		"key", rec.Key,
		"artifact", filepath.Base(h.Path),
		"captured_at", rec.CapturedAt.Format(time.RFC3339))

	return nil
}

// RestoreLatest restores the most recently captured snapshot of key.
// Returns ErrNoSnapshot when no artifact for the key exists.
func (m *Manager) RestoreLatest(key hive.Key) error {
	h, err := m.Latest(key)
	if err != nil {
		return err
	}
	return m.Restore(h)
}

// Latest returns a handle to the newest snapshot of key, judged by the
// captured-at time embedded in each artifact.
func (m *Manager) Latest(key hive.Key) (*Handle, error) {
	recs, err := m.ListKey(key)
	if err != nil {
		return nil, err
	}
	return recs[0].Handle(), nil
}

// List returns every readable artifact in the directory, newest first.
// Returns ErrNoSnapshot when the directory is absent or holds none.
func (m *Manager) List() ([]Record, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, errors.Wrap(err, "reading snapshot directory")
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}
		rec, err := readRecord(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			// Skip unreadable artifacts rather than failing the listing
			m.logger.Debug("skipping unreadable artifact", "artifact", entry.Name(), "error", err)
			continue
		}
		records = append(records, *rec)
	}

	if len(records) == 0 {
		return nil, ErrNoSnapshot
	}

	slices.SortFunc(records, func(a, b Record) int {
		if a.CapturedAt.After(b.CapturedAt) {
			return -1
		}
		if a.CapturedAt.Before(b.CapturedAt) {
			return 1
		}
		return 0
	})

	return records, nil
}

// ListKey returns the artifacts for one key, newest first.
func (m *Manager) ListKey(key hive.Key) ([]Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	all, err := m.List()
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil, errors.Wrapf(ErrNoSnapshot, "key %s", key)
		}
		return nil, err
	}

	records := make([]Record, 0, len(all))
	for _, rec := range all {
		if rec.Key == key.String() {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(ErrNoSnapshot, "key %s", key)
	}
	return records, nil
}

// Prune removes artifacts beyond the newest keep per key. keep < 1 falls
// back to the manager's configured retention. Returns how many were removed.
func (m *Manager) Prune(keep int) (int, error) {
	if keep < 1 {
		keep = m.retention
	}

	records, err := m.List()
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return 0, nil // Nothing to prune
		}
		return 0, err
	}

	// Records are newest first, so counting per key walks each key's
	// history from newest to oldest
	perKey := make(map[string]int)
	removed := 0
	for _, rec := range records {
		perKey[rec.Key]++
		if perKey[rec.Key] <= keep {
			continue
		}
		if err := os.Remove(rec.Path); err != nil {
			return removed, errors.Wrapf(err, "removing %s", filepath.Base(rec.Path))
		}
		m.logger.Debug("pruned snapshot", "artifact", filepath.Base(rec.Path))
		removed++
	}

	return removed, nil
}

// artifactPath builds the artifact filename {timestamp}-{sanitized key}.
// A counter suffix keeps same-second captures of one key from overwriting
// each other; the embedded captured-at time remains the ordering authority.
func (m *Manager) artifactPath(key hive.Key, capturedAt time.Time) string {
	stamp := capturedAt.Format("20060102T150405")
	base := stamp + "-" + sanitizeKey(key)

	path := filepath.Join(m.dir, base+Ext)
	for i := 2; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s-%d%s", base, i, Ext))
	}
}

// sanitizeKey flattens a key into a filename-safe form.
func sanitizeKey(key hive.Key) string {
	return strings.ReplaceAll(key.String(), hive.Sep, "~")
}

// readRecord loads and structurally validates one artifact.
func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNoSnapshot, "artifact %s", filepath.Base(path))
		}
		return nil, errors.Wrapf(err, "reading artifact %s", filepath.Base(path))
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(ErrCorrupted, "artifact %s: %v", filepath.Base(path), err)
	}
	if rec.Version != FormatVersion {
		return nil, errors.Newf("unsupported snapshot version %d in %s", rec.Version, filepath.Base(path))
	}
	if _, err := hive.ParseKey(rec.Key); err != nil {
		return nil, errors.Wrapf(ErrCorrupted, "artifact %s: bad key %q", filepath.Base(path), rec.Key)
	}
	if rec.Subtree == nil {
		return nil, errors.Wrapf(ErrCorrupted, "artifact %s: no subtree", filepath.Base(path))
	}

	rec.Path = path
	return &rec, nil
}

// subtreeChecksum hashes the canonical JSON encoding of a subtree.
func subtreeChecksum(sub *hive.Subtree) (string, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return "", errors.Wrap(err, "encoding subtree")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
