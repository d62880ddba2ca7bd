package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/config"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/logging"
)

// testProfileYAML is the profile the command tests apply, undo, and verify.
// The extras tier ships disabled so selection behavior can be exercised.
const testProfileYAML = `name: lowlat
description: Low latency settings used by the command tests.
version: 1
tiers:
  - name: memory
    steps:
      - name: swappiness
        key: system/vm
        value_name: swappiness
        type: integer
        value: 10
  - name: extras
    enabled: false
    steps:
      - key: system/net
        value_name: somaxconn
        type: integer
        value: 1024
undo:
  keys:
    - system/vm
verify:
  - key: system/vm
    value_name: swappiness
    type: integer
    value: 10
`

// newTestConfig points every path a command touches into a scratch
// directory and installs it as the loaded configuration.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Version:           1,
		HivePath:          filepath.Join(dir, "hive", "store.db"),
		SnapshotDir:       filepath.Join(dir, "snapshots"),
		SnapshotRetention: 5,
		BackupPolicy:      config.PolicyRequire,
		ServiceTool:       "systemctl",
		ProfilePaths:      []string{filepath.Join(dir, "profiles")},
		JournalPath:       filepath.Join(dir, "journal.log"),
	}
	flags.SetConfig(cfg)
	return cfg
}

// writeProfile drops a profile file into the config's first search dir.
func writeProfile(t *testing.T, cfg *config.Config, filename, content string) {
	t.Helper()
	dir := cfg.ProfilePaths[0]
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))
}

// newTestCommand builds a command whose context carries a test logger, the
// way ExecuteContext arranges it for real runs.
func newTestCommand(t *testing.T) *cobra.Command {
	t.Helper()
	c := &cobra.Command{}
	c.SetContext(logging.NewContext(context.Background(), logging.ForTest(t)))
	return c
}

// resetFlags restores every command flag variable when the test finishes,
// since flag state is package level.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		applyDryRun, applyInteractive, applyJSON = false, false, false
		applyPolicy = ""
		applyTiers = nil
		undoJSON, undoYes = false, false
		verifyJSON, verifyQuiet, verifyVerbose = false, false, false
		statusJSON = false
	})
}

// seedHive writes one integer value so the key exists before a session
// captures it.
func seedHive(t *testing.T, cfg *config.Config, keyStr, name string, v int64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.HivePath), 0o755))
	store, err := hive.Open(cfg.HivePath)
	require.NoError(t, err)
	key, err := hive.ParseKey(keyStr)
	require.NoError(t, err)
	require.NoError(t, store.Set(key, name, hive.Integer(v)))
	require.NoError(t, store.Close())
}

// openTestHive opens the hive read-only for assertions.
func openTestHive(t *testing.T, cfg *config.Config) (*hive.BoltStore, error) {
	t.Helper()
	return hive.Open(cfg.HivePath, hive.WithReadOnly())
}

func mustKey(t *testing.T, s string) hive.Key {
	t.Helper()
	key, err := hive.ParseKey(s)
	require.NoError(t, err)
	return key
}

// readHiveInt reads one integer value back out of the hive.
func readHiveInt(t *testing.T, cfg *config.Config, keyStr, name string) int64 {
	t.Helper()
	store, err := hive.Open(cfg.HivePath, hive.WithReadOnly())
	require.NoError(t, err)
	defer store.Close()

	key, err := hive.ParseKey(keyStr)
	require.NoError(t, err)
	v, err := store.Get(key, name)
	require.NoError(t, err)
	n, err := v.Int()
	require.NoError(t, err)
	return n
}
