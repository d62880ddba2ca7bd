package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/hive"
)

func newTestHive(t *testing.T) hive.Store {
	t.Helper()

	store, err := hive.Open(filepath.Join(t.TempDir(), "hive.db"))
	if err != nil {
		t.Fatalf("opening hive: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestValueCheck(t *testing.T) {
	store := newTestHive(t)
	key := hive.NewKey(hive.System, "vm")
	if err := store.Set(key, "swappiness", hive.Integer(10)); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	tests := []struct {
		name    string
		check   *ValueCheck
		want    Severity
		message string
	}{
		{
			name:    "match",
			check:   NewValueCheck(store, key, "swappiness", hive.Integer(10)),
			want:    SeverityPass,
			message: "value matches",
		},
		{
			name:    "mismatch",
			check:   NewValueCheck(store, key, "swappiness", hive.Integer(60)),
			want:    SeverityError,
			message: "value mismatch",
		},
		{
			name:    "missing",
			check:   NewValueCheck(store, key, "dirty_ratio", hive.Integer(20)),
			want:    SeverityError,
			message: "value missing",
		},
		{
			name:    "absent as expected",
			check:   NewAbsenceCheck(store, key, "dirty_ratio"),
			want:    SeverityPass,
			message: "value absent as expected",
		},
		{
			name:    "still present",
			check:   NewAbsenceCheck(store, key, "swappiness"),
			want:    SeverityError,
			message: "value still present",
		},
		{
			name: "gated off",
			check: NewValueCheck(store, key, "swappiness", hive.Integer(60)).
				WithGuard(func() (bool, error) { return false, nil }, "laptop"),
			want:    SeverityInfo,
			message: "not applicable on this machine",
		},
		{
			name: "guard broken",
			check: NewValueCheck(store, key, "swappiness", hive.Integer(10)).
				WithGuard(func() (bool, error) { return false, errors.New("probe died") }, "laptop"),
			want:    SeverityWarning,
			message: "guard could not be evaluated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.check.Run(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %s, want %s", got.Status, tt.want)
			}
			if got.Message != tt.message {
				t.Errorf("Message = %q, want %q", got.Message, tt.message)
			}
		})
	}
}

func TestValueCheckMismatchDetails(t *testing.T) {
	store := newTestHive(t)
	key := hive.NewKey(hive.System, "vm")
	if err := store.Set(key, "swappiness", hive.Integer(10)); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	result := NewValueCheck(store, key, "swappiness", hive.Integer(60)).Run(context.Background())

	if result.Details["got"] != "10" || result.Details["want"] != "60" {
		t.Errorf("Details = %v", result.Details)
	}
	if result.Name != "system/vm:swappiness" {
		t.Errorf("Name = %q", result.Name)
	}
}

func TestValueCheckReadOnly(t *testing.T) {
	// Checking a missing key must not create it.
	store := newTestHive(t)
	key := hive.NewKey(hive.System, "never", "written")

	NewValueCheck(store, key, "value", hive.Integer(1)).Run(context.Background())

	exists, err := store.Exists(key)
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if exists {
		t.Error("verification created the key it checked")
	}
}

func TestStoreCheck(t *testing.T) {
	dir := t.TempDir()
	hivePath := filepath.Join(dir, "hive.db")
	snapDir := filepath.Join(dir, "snapshots")

	t.Run("nothing created yet", func(t *testing.T) {
		got := NewStoreCheck(hivePath, snapDir).Run(context.Background())
		if got.Status != SeverityInfo {
			t.Errorf("Status = %s, want info", got.Status)
		}
	})

	if err := os.WriteFile(hivePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("creating hive file: %v", err)
	}

	t.Run("no snapshots yet", func(t *testing.T) {
		got := NewStoreCheck(hivePath, snapDir).Run(context.Background())
		if got.Status != SeverityInfo || got.Message != "no snapshots captured yet" {
			t.Errorf("result = %s %q", got.Status, got.Message)
		}
	})

	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		t.Fatalf("creating snapshot dir: %v", err)
	}

	t.Run("all present", func(t *testing.T) {
		got := NewStoreCheck(hivePath, snapDir).Run(context.Background())
		if got.Status != SeverityPass {
			t.Errorf("Status = %s, want pass", got.Status)
		}
	})

	t.Run("snapshot path is a file", func(t *testing.T) {
		filePath := filepath.Join(dir, "not-a-dir")
		if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
			t.Fatalf("creating file: %v", err)
		}

		got := NewStoreCheck(hivePath, filePath).Run(context.Background())
		if got.Status != SeverityError {
			t.Errorf("Status = %s, want error", got.Status)
		}
	})
}
