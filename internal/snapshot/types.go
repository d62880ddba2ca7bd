package snapshot

import (
	"time"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/hive"
)

// FormatVersion is the artifact format version for forward compatibility.
const FormatVersion = 1

// Ext is the artifact file extension.
const Ext = ".tweaksnap"

// DefaultRetention is the default number of snapshots retained per key.
const DefaultRetention = 5

// Sentinel errors for snapshot operations.
var (
	// ErrNoSnapshot indicates no snapshot artifact exists for the key.
	ErrNoSnapshot = errors.New("no snapshot found")

	// ErrKeyMissing indicates Capture was asked for a key that does not
	// exist in the hive. Callers proceed without a snapshot.
	ErrKeyMissing = errors.New("key missing, nothing to capture")

	// ErrCorrupted indicates artifact integrity verification failed.
	ErrCorrupted = errors.New("snapshot corrupted")
)

// Record is the content of one snapshot artifact: a fully self-contained
// export of a key's subtree plus the metadata needed to restore it from any
// later process.
type Record struct {
	// Version is the artifact format version.
	Version int `json:"version"`

	// Key is the captured key in "hive/path" form.
	Key string `json:"key"`

	// CapturedAt is when the subtree was exported. It is the authority for
	// "latest", not the artifact filename.
	CapturedAt time.Time `json:"captured_at"`

	// ToolVersion is the tunectl version that wrote the artifact.
	ToolVersion string `json:"tool_version"`

	// Checksum is the hex SHA256 of the encoded subtree.
	Checksum string `json:"checksum"`

	// Subtree is the captured state.
	Subtree *hive.Subtree `json:"subtree"`

	// Path is the artifact file. Populated when loading from disk,
	// not stored in JSON.
	Path string `json:"-"`
}

// Handle identifies one restorable artifact.
func (r Record) Handle() *Handle {
	key, _ := hive.ParseKey(r.Key)
	return &Handle{Key: key, CapturedAt: r.CapturedAt, Path: r.Path}
}

// Handle references a specific captured snapshot.
type Handle struct {
	Key        hive.Key
	CapturedAt time.Time
	Path       string
}
