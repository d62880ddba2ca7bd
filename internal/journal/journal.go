// Package journal appends session outcomes to a JSONL audit file. Each
// line carries a hash over its content and the previous line's hash, so
// tampering or truncation in the middle of the file is detectable.
package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/skovgaard/tunectl/internal/errors"
)

// EventType identifies the kind of auditable event.
type EventType string

const (
	EventSessionStart  EventType = "session_start"
	EventSessionFinish EventType = "session_finish"
	EventUndoStart     EventType = "undo_start"
	EventUndoFinish    EventType = "undo_finish"
	EventVerify        EventType = "verify"
	EventRestore       EventType = "restore"
	EventPrune         EventType = "prune"
)

// Sentinel errors for journal operations.
var (
	// ErrCorrupted indicates a line that is not a valid record.
	ErrCorrupted = errors.New("journal corrupted")

	// ErrChainBroken indicates the hash chain does not verify.
	ErrChainBroken = errors.New("journal hash chain broken")
)

// Record is a single line in the journal.
type Record struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     EventType      `json:"event"`
	SessionID string         `json:"session_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`

	// PrevHash is the previous record's hash, empty for the first line.
	PrevHash string `json:"prev_hash"`

	// RecordHash is the SHA256 of this record with RecordHash blanked.
	RecordHash string `json:"record_hash"`
}

func (r *Record) computeHash() (string, error) {
	clone := *r
	clone.RecordHash = ""

	data, err := json.Marshal(clone)
	if err != nil {
		return "", errors.Wrap(err, "encoding journal record")
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Journal appends records to one JSONL file. Safe for concurrent use
// within a process; cross-process exclusion comes from the session lock.
type Journal struct {
	path  string
	clock func() time.Time

	mu sync.Mutex
	// last is the newest record's hash, seeding the next link.
	last string
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock overrides the time source. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(j *Journal) {
		j.clock = clock
	}
}

// Open prepares the journal at path, creating parent directories and
// recovering the hash chain tail from an existing file.
func Open(path string, opts ...Option) (*Journal, error) {
	j := &Journal{
		path:  path,
		clock: time.Now,
	}

	for _, opt := range opts {
		opt(j)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating journal directory")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading journal")
	}

	// A write interrupted mid-line leaves a torn tail. Drop it so the
	// file stays valid JSONL; the record was never complete.
	if len(data) > 0 && data[len(data)-1] != '\n' {
		keep := strings.LastIndexByte(string(data), '\n') + 1
		if err := os.Truncate(path, int64(keep)); err != nil {
			return nil, errors.Wrap(err, "repairing journal tail")
		}
		data = data[:keep]
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, errors.Wrapf(ErrCorrupted, "recovering journal tail: %v", err)
		}
		j.last = rec.RecordHash
	}

	return j, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// Append writes one event to the journal.
func (j *Journal) Append(event EventType, sessionID string, details map[string]any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec := Record{
		Timestamp: j.clock().UTC(),
		Event:     event,
		SessionID: sessionID,
		Details:   details,
		PrevHash:  j.last,
	}

	hash, err := rec.computeHash()
	if err != nil {
		return err
	}
	rec.RecordHash = hash

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encoding journal record")
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening journal")
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return errors.Wrap(err, "writing journal record")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing journal")
	}

	j.last = rec.RecordHash
	return nil
}

// Read loads every record in the journal, oldest first. A missing file
// reads as empty.
func Read(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading journal")
	}

	var records []Record
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, errors.Wrapf(ErrCorrupted, "line %d: %v", i+1, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// Tail returns the newest n records, oldest first.
func Tail(path string, n int) ([]Record, error) {
	records, err := Read(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// Verify walks the hash chain and reports the first broken link.
func Verify(path string) error {
	records, err := Read(path)
	if err != nil {
		return err
	}

	prev := ""
	for i, rec := range records {
		if rec.PrevHash != prev {
			return errors.Wrapf(ErrChainBroken, "record %d: prev_hash mismatch", i+1)
		}
		want, err := rec.computeHash()
		if err != nil {
			return err
		}
		if rec.RecordHash != want {
			return errors.Wrapf(ErrChainBroken, "record %d: hash mismatch", i+1)
		}
		prev = rec.RecordHash
	}

	return nil
}
