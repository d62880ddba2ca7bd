package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skovgaard/tunectl/internal/journal"
)

func TestUndoRestoresTrackedKeys(t *testing.T) {
	resetFlags(t)
	cfg := newTestConfig(t)
	writeProfile(t, cfg, "lowlat.yaml", testProfileYAML)
	seedHive(t, cfg, "system/vm", "swappiness", 5)

	var buf bytes.Buffer
	err := runApplyWithWriter(newTestCommand(t), []string{"lowlat"}, &buf)
	require.NoError(t, err)
	require.Equal(t, int64(10), readHiveInt(t, cfg, "system/vm", "swappiness"))

	undoYes = true
	buf.Reset()
	err = runUndoWithWriter(newTestCommand(t), []string{"lowlat"}, &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(5), readHiveInt(t, cfg, "system/vm", "swappiness"))
	assert.Contains(t, buf.String(), "1 restored, 0 skipped, 0 failed")

	entries, err := journal.Read(cfg.JournalPath)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, journal.EventUndoStart, entries[2].Event)
	assert.Equal(t, journal.EventUndoFinish, entries[3].Event)
	require.NoError(t, journal.Verify(cfg.JournalPath))
}

func TestUndoWithoutSnapshotsSkips(t *testing.T) {
	resetFlags(t)
	cfg := newTestConfig(t)
	writeProfile(t, cfg, "lowlat.yaml", testProfileYAML)

	// No apply happened; the tracked key has no snapshot. Skipping is the
	// contract, not failing.
	undoYes = true
	var buf bytes.Buffer
	err := runUndoWithWriter(newTestCommand(t), []string{"lowlat"}, &buf)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "no snapshot, skipped")
	assert.Contains(t, buf.String(), "0 restored, 1 skipped, 0 failed")
}

func TestUndoIsRepeatable(t *testing.T) {
	resetFlags(t)
	cfg := newTestConfig(t)
	writeProfile(t, cfg, "lowlat.yaml", testProfileYAML)
	seedHive(t, cfg, "system/vm", "swappiness", 5)

	var buf bytes.Buffer
	require.NoError(t, runApplyWithWriter(newTestCommand(t), []string{"lowlat"}, &buf))

	undoYes = true
	for range 2 {
		buf.Reset()
		require.NoError(t, runUndoWithWriter(newTestCommand(t), []string{"lowlat"}, &buf))
		assert.Equal(t, int64(5), readHiveInt(t, cfg, "system/vm", "swappiness"))
	}
}

func TestUndoNothingTracked(t *testing.T) {
	resetFlags(t)
	cfg := newTestConfig(t)
	writeProfile(t, cfg, "bare.yaml", `name: bare
version: 1
tiers:
  - name: only
    steps:
      - key: system/vm
        value_name: swappiness
        type: integer
        value: 1
`)

	undoYes = true
	var buf bytes.Buffer
	err := runUndoWithWriter(newTestCommand(t), []string{"bare"}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "nothing to undo")
}
