package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInitSetsDefaults(t *testing.T) {
	Init()

	if viper.GetInt("version") != 1 {
		t.Errorf("version default = %d, want 1", viper.GetInt("version"))
	}
	if viper.GetString("backup_policy") != PolicyRequire {
		t.Errorf("backup_policy default = %q, want %q", viper.GetString("backup_policy"), PolicyRequire)
	}
	if viper.GetInt("snapshot_retention") != 5 {
		t.Errorf("snapshot_retention default = %d, want 5", viper.GetInt("snapshot_retention"))
	}
	if viper.GetString("service_tool") != "systemctl" {
		t.Errorf("service_tool default = %q, want systemctl", viper.GetString("service_tool"))
	}
}

func TestLoadWithoutFile(t *testing.T) {
	// Point the search away from any real user config.
	tempDir := t.TempDir()
	t.Setenv("TUNECTL_CONFIG_DIR", tempDir)
	t.Chdir(tempDir)

	Init()

	cfg, err := Load("")
	if err != nil {
		t.Errorf("Load() without a config file should fall back to defaults: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
	if cfg.BackupPolicy != PolicyRequire {
		t.Errorf("BackupPolicy = %q, want default %q", cfg.BackupPolicy, PolicyRequire)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", "backup_policy: best-effort\nsnapshot_retention: 3\n")

	Init()

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.BackupPolicy != PolicyBestEffort {
		t.Errorf("BackupPolicy = %q, want best-effort", cfg.BackupPolicy)
	}
	if cfg.SnapshotRetention != 3 {
		t.Errorf("SnapshotRetention = %d, want 3", cfg.SnapshotRetention)
	}
	// Keys the file omits keep their defaults.
	if cfg.ServiceTool != "systemctl" {
		t.Errorf("ServiceTool = %q, want default systemctl", cfg.ServiceTool)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	Init()

	if _, err := Load("/non/existent/path/config.yaml"); err == nil {
		t.Error("Load() should fail when the named file does not exist")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"unsupported version", "version: 2\n", ErrVersionUnsupported},
		{"unknown backup policy", "backup_policy: maybe\n", ErrInvalidPolicy},
		{"negative retention", "snapshot_retention: -1\n", ErrInvalidRetention},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init()
			path := writeConfig(t, "config.yaml", tt.content)

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() accepted an invalid config")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInitResetsViperState(t *testing.T) {
	// Load an explicit file first, so viper has a pinned config file.
	fileA := writeConfig(t, "config_a.yaml", "version: 1\nsnapshot_retention: 9\n")
	Init()
	if _, err := Load(fileA); err != nil {
		t.Fatalf("loading first config: %v", err)
	}

	// A second Init must forget the pinned file and go back to the
	// search path, which now holds a different config.
	dirB := t.TempDir()
	t.Setenv("TUNECTL_CONFIG_DIR", dirB)
	t.Chdir(dirB)
	fileB := filepath.Join(dirB, "config.yaml")
	if err := os.WriteFile(fileB, []byte("version: 1\nbackup_policy: best-effort\n"), 0600); err != nil {
		t.Fatal(err)
	}

	Init()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading second config: %v", err)
	}

	if cfg.BackupPolicy != PolicyBestEffort {
		t.Errorf("BackupPolicy = %q, want value from the searched config", cfg.BackupPolicy)
		if viper.ConfigFileUsed() == fileA {
			t.Errorf("viper still pinned to %s", fileA)
		}
	}
	if cfg.SnapshotRetention != 5 {
		t.Errorf("SnapshotRetention = %d, want the default 5 again", cfg.SnapshotRetention)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantLen int
	}{
		{
			name: "valid",
			cfg: &Config{
				Version:           1,
				BackupPolicy:      PolicyRequire,
				SnapshotRetention: 5,
			},
			wantLen: 0,
		},
		{
			name:    "nil config",
			cfg:     nil,
			wantLen: 1,
		},
		{
			name: "multiple problems",
			cfg: &Config{
				Version:           0,
				BackupPolicy:      "sometimes",
				SnapshotRetention: -2,
			},
			wantLen: 3,
		},
		{
			name: "null byte in path",
			cfg: &Config{
				Version:           1,
				BackupPolicy:      PolicyBestEffort,
				SnapshotRetention: 0,
				HivePath:          "/var/lib\x00/hive.db",
			},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.cfg)
			if len(errs) != tt.wantLen {
				t.Errorf("Validate() returned %d errors, want %d: %v", len(errs), tt.wantLen, errs)
			}
		})
	}
}

func TestPathErrorUnwrap(t *testing.T) {
	pe := &PathError{Field: "hive_path", Path: ".", Err: ErrInvalidPath}
	if !errors.Is(pe, ErrInvalidPath) {
		t.Error("PathError should unwrap to ErrInvalidPath")
	}
	want := "hive_path: invalid path: ."
	if pe.Error() != want {
		t.Errorf("Error() = %q, want %q", pe.Error(), want)
	}
}
