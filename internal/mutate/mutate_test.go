package mutate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/snapshot"
)

type fixture struct {
	store *hive.BoltStore
	snaps *snapshot.Manager
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := hive.Open(filepath.Join(t.TempDir(), "hive.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	snaps := snapshot.NewManager(store, snapshot.WithDir(dir), snapshot.WithLogger(logging.ForTest(t)))
	return &fixture{store: store, snaps: snaps, dir: dir}
}

func (f *fixture) mutator(t *testing.T, opts ...Option) *Mutator {
	t.Helper()
	opts = append([]Option{WithLogger(logging.ForTest(t))}, opts...)
	return New(f.store, f.snaps, opts...)
}

func (f *fixture) artifactCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatal(err)
	}
	return len(entries)
}

func TestSetValueCapturesThenWrites(t *testing.T) {
	f := newFixture(t)
	m := f.mutator(t)

	key := hive.NewKey(hive.System, "a", "b")
	if err := f.store.Set(key, "X", hive.Integer(1)); err != nil {
		t.Fatal(err)
	}

	out := m.SetValue(key, "X", hive.Integer(2), false)
	if !out.OK() {
		t.Fatalf("SetValue() outcome = %+v, want applied", out)
	}
	if out.Snapshot == nil {
		t.Fatal("SetValue() took no snapshot of an existing key")
	}

	got := m.GetValue(key, "X", hive.Value{})
	if n, _ := got.Int(); n != 2 {
		t.Fatalf("GetValue() = %v, want 2", got)
	}

	// The captured snapshot holds the prior state
	if err := f.snaps.Restore(out.Snapshot); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	got = m.GetValue(key, "X", hive.Value{})
	if n, _ := got.Int(); n != 1 {
		t.Errorf("GetValue() after restore = %v, want 1", got)
	}
}

func TestSetValueCreatesMissingPath(t *testing.T) {
	f := newFixture(t)
	m := f.mutator(t)

	key := hive.NewKey(hive.System, "c", "d")
	out := m.SetValue(key, "Y", hive.Integer(5), false)
	if !out.OK() {
		t.Fatalf("SetValue() outcome = %+v, want applied", out)
	}
	if out.Snapshot != nil {
		t.Error("SetValue() reported a snapshot for a key that did not exist")
	}

	got := m.GetValue(key, "Y", hive.Value{})
	if n, _ := got.Int(); n != 5 {
		t.Errorf("GetValue() = %v, want 5", got)
	}

	// The capture attempt did not write an artifact
	if n := f.artifactCount(t); n != 0 {
		t.Errorf("artifact count = %d, want 0", n)
	}
}

func TestSetValueSkipBackup(t *testing.T) {
	f := newFixture(t)
	m := f.mutator(t)

	key := hive.NewKey(hive.System, "k")
	if err := f.store.Set(key, "v", hive.Integer(1)); err != nil {
		t.Fatal(err)
	}

	out := m.SetValue(key, "v", hive.Integer(2), true)
	if !out.OK() {
		t.Fatalf("SetValue() outcome = %+v, want applied", out)
	}
	if out.Snapshot != nil {
		t.Error("skipBackup still captured a snapshot")
	}
	if n := f.artifactCount(t); n != 0 {
		t.Errorf("artifact count = %d, want 0", n)
	}
}

func brokenSnapshotManager(t *testing.T, store hive.Store) *snapshot.Manager {
	t.Helper()
	// A regular file where the directory should be makes MkdirAll fail,
	// which fails every capture of an existing key
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return snapshot.NewManager(store,
		snapshot.WithDir(filepath.Join(blocker, "snapshots")),
		snapshot.WithLogger(logging.ForTest(t)))
}

func TestSetValueRequireBackupBlocks(t *testing.T) {
	f := newFixture(t)
	m := New(f.store, brokenSnapshotManager(t, f.store),
		WithLogger(logging.ForTest(t)), WithPolicy(RequireBackup))

	key := hive.NewKey(hive.System, "guarded")
	if err := f.store.Set(key, "v", hive.Integer(1)); err != nil {
		t.Fatal(err)
	}

	out := m.SetValue(key, "v", hive.Integer(2), false)
	if out.Status != StatusBlocked {
		t.Fatalf("SetValue() status = %q, want %q", out.Status, StatusBlocked)
	}
	if out.Err == nil {
		t.Error("blocked outcome carries no error")
	}

	// The write never happened
	got, err := f.store.Get(key, "v")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := got.Int(); n != 1 {
		t.Errorf("v = %v after blocked mutation, want 1", got)
	}
}

func TestSetValueBestEffortProceeds(t *testing.T) {
	f := newFixture(t)
	m := New(f.store, brokenSnapshotManager(t, f.store),
		WithLogger(logging.ForTest(t)), WithPolicy(BestEffortBackup))

	key := hive.NewKey(hive.System, "guarded")
	if err := f.store.Set(key, "v", hive.Integer(1)); err != nil {
		t.Fatal(err)
	}

	out := m.SetValue(key, "v", hive.Integer(2), false)
	if !out.OK() {
		t.Fatalf("SetValue() outcome = %+v, want applied despite capture failure", out)
	}
	if out.Snapshot != nil {
		t.Error("failed capture still produced a snapshot handle")
	}

	got, err := f.store.Get(key, "v")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := got.Int(); n != 2 {
		t.Errorf("v = %v, want 2", got)
	}
}

func TestSetValueStoreFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hive.db")
	rw, err := hive.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	key := hive.NewKey(hive.System, "locked")
	if err := rw.Set(key, "v", hive.Integer(1)); err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Fatal(err)
	}

	ro, err := hive.Open(path, hive.WithReadOnly())
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()

	snaps := snapshot.NewManager(ro, snapshot.WithDir(t.TempDir()), snapshot.WithLogger(logging.ForTest(t)))
	m := New(ro, snaps, WithLogger(logging.ForTest(t)))

	out := m.SetValue(key, "v", hive.Integer(2), false)
	if out.Status != StatusFailed {
		t.Fatalf("SetValue() status = %q, want %q", out.Status, StatusFailed)
	}
	if !errors.Is(out.Err, hive.ErrPermissionDenied) {
		t.Errorf("outcome error = %v, want ErrPermissionDenied", out.Err)
	}
}

func TestRemoveValue(t *testing.T) {
	f := newFixture(t)
	m := f.mutator(t)

	key := hive.NewKey(hive.User, "env")
	if err := f.store.Set(key, "EDITOR", hive.String("vi")); err != nil {
		t.Fatal(err)
	}

	out := m.RemoveValue(key, "EDITOR", false)
	if !out.OK() {
		t.Fatalf("RemoveValue() outcome = %+v, want applied", out)
	}
	if out.Op != OpRemove {
		t.Errorf("Op = %q, want %q", out.Op, OpRemove)
	}
	if out.Snapshot == nil {
		t.Error("RemoveValue() took no snapshot before removing")
	}
	if _, err := f.store.Get(key, "EDITOR"); !errors.Is(err, hive.ErrNotFound) {
		t.Errorf("value still present after remove: %v", err)
	}

	// Removing an absent value still reaches the desired end state
	out = m.RemoveValue(key, "EDITOR", true)
	if !out.OK() {
		t.Errorf("RemoveValue() of absent value outcome = %+v, want applied", out)
	}
}

func TestGetValueDefault(t *testing.T) {
	f := newFixture(t)
	m := f.mutator(t)

	def := hive.Integer(42)
	got := m.GetValue(hive.NewKey(hive.System, "missing"), "x", def)
	if !got.Equal(def) {
		t.Errorf("GetValue() on missing key = %v, want default %v", got, def)
	}

	key := hive.NewKey(hive.System, "present")
	if err := f.store.Set(key, "x", hive.Integer(7)); err != nil {
		t.Fatal(err)
	}
	got = m.GetValue(key, "x", def)
	if n, _ := got.Int(); n != 7 {
		t.Errorf("GetValue() = %v, want 7", got)
	}
}

func TestCaptureOnce(t *testing.T) {
	f := newFixture(t)
	m := f.mutator(t, WithCaptureOnce())

	key := hive.NewKey(hive.System, "dedup")
	if err := f.store.Set(key, "v", hive.Integer(1)); err != nil {
		t.Fatal(err)
	}

	if out := m.SetValue(key, "v", hive.Integer(2), false); !out.OK() {
		t.Fatal(out.Err)
	}
	if out := m.SetValue(key, "v", hive.Integer(3), false); !out.OK() {
		t.Fatal(out.Err)
	}
	if out := m.SetValue(key, "w", hive.Integer(4), false); !out.OK() {
		t.Fatal(out.Err)
	}

	if n := f.artifactCount(t); n != 1 {
		t.Errorf("artifact count with capture-once = %d, want 1", n)
	}

	// The one snapshot holds the session-start state
	if err := f.snaps.RestoreLatest(key); err != nil {
		t.Fatal(err)
	}
	got, err := f.store.Get(key, "v")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := got.Int(); n != 1 {
		t.Errorf("v after restore = %v, want the session-start 1", got)
	}
}

func TestPerCallCaptureAccumulates(t *testing.T) {
	f := newFixture(t)
	m := f.mutator(t)

	key := hive.NewKey(hive.System, "percall")
	if err := f.store.Set(key, "v", hive.Integer(1)); err != nil {
		t.Fatal(err)
	}

	if out := m.SetValue(key, "v", hive.Integer(2), false); !out.OK() {
		t.Fatal(out.Err)
	}
	if out := m.SetValue(key, "v", hive.Integer(3), false); !out.OK() {
		t.Fatal(out.Err)
	}

	if n := f.artifactCount(t); n != 2 {
		t.Errorf("artifact count without capture-once = %d, want 2", n)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    BackupPolicy
		wantErr bool
	}{
		{"require", RequireBackup, false},
		{"best-effort", BestEffortBackup, false},
		{"maybe", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePolicy(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePolicy(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}
