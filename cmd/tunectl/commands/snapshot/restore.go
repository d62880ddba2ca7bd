package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/cli"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/journal"
	"github.com/skovgaard/tunectl/internal/lock"
	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/snapshot"
)

var restoreInteractive bool

func init() {
	restoreCmd.Flags().BoolVarP(&restoreInteractive, "interactive", "i", false, "Pick an artifact with a fuzzy finder")
	Cmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore [key]",
	Short: "Restore a key's subtree from a snapshot",
	Long: `Restore a key's subtree from a snapshot artifact.

With a key argument the newest artifact for that key is re-imported.
With --interactive a fuzzy finder lists every artifact, letting you
restore an older capture. Restoring replaces the whole subtree under
the key with the captured values.`,
	Example: `  # Restore the newest snapshot of one key
  tunectl snapshot restore system/vm

  # Pick any artifact, including older ones
  tunectl snapshot restore --interactive

  See Also:
    tunectl undo - Restore every key a profile tracks`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	return runRestoreWithWriter(cmd, args, os.Stdout)
}

func runRestoreWithWriter(cmd *cobra.Command, args []string, w io.Writer) error {
	cfg := flags.GetConfig()
	logger := logging.FromContext(cmd.Context())

	if len(args) == 0 && !restoreInteractive {
		return errors.NewUserError(
			errors.New("no key given"),
			"Pass a key (e.g. system/vm) or use --interactive",
		)
	}

	store, err := cli.OpenHive(cfg, false)
	if err != nil {
		return errors.NewSystemError(err, "Check hive_path in your configuration")
	}
	defer store.Close()

	mgr := cli.Snapshots(cfg, store, logger)

	sessionID := uuid.NewString()
	held, err := lock.Acquire(cfg.SnapshotDir, sessionID)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return errors.NewUserError(err, "Wait for the running session or check: tunectl status")
		}
		return errors.NewSystemError(err, "Check snapshot_dir in your configuration")
	}
	defer held.Release()

	var restoredKey, artifact string
	if len(args) > 0 {
		restoredKey = args[0]
		artifact, err = restoreLatest(mgr, args[0])
	} else {
		restoredKey, artifact, err = restorePicked(mgr)
	}
	if err != nil || restoredKey == "" {
		return err
	}

	if jnl, jerr := cli.OpenJournal(cfg); jerr == nil {
		aerr := jnl.Append(journal.EventRestore, sessionID, map[string]any{
			"key":      restoredKey,
			"artifact": artifact,
		})
		if aerr != nil {
			logger.Error("journal append failed", "error", aerr)
		}
	} else {
		logger.Debug("journal unavailable, restore not recorded", "error", jerr)
	}

	fmt.Fprintf(w, "%sRestored %s%s from %s\n", colorGreen, restoredKey, colorReset, artifact)
	return nil
}

// restoreLatest re-imports the newest artifact for the named key.
func restoreLatest(mgr *snapshot.Manager, name string) (string, error) {
	key, err := hive.ParseKey(name)
	if err != nil {
		return "", errors.NewUserError(err, "Keys look like hive/path, e.g. system/vm")
	}

	h, err := mgr.Latest(key)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			return "", errors.NewUserError(err, "List captured keys with: tunectl snapshot list")
		}
		return "", errors.Wrapf(err, "finding latest snapshot of %s", key)
	}

	if err := mgr.Restore(h); err != nil {
		return "", errors.Wrapf(err, "restoring %s", key)
	}
	return filepath.Base(h.Path), nil
}

// restorePicked lets the user choose any artifact, then re-imports it.
// Aborting the finder restores nothing.
func restorePicked(mgr *snapshot.Manager) (string, string, error) {
	recs, err := mgr.List()
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			return "", "", errors.NewUserError(err, "Artifacts are captured when tunectl changes a value")
		}
		return "", "", errors.Wrap(err, "listing artifacts")
	}

	idx, err := fuzzyfinder.Find(
		recs,
		func(i int) string {
			return fmt.Sprintf("%s - %s", recs[i].Key, recs[i].CapturedAt.Local().Format("2006-01-02 15:04:05"))
		},
		fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			return previewRecord(recs[i])
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return "", "", nil
		}
		return "", "", errors.Wrap(err, "selecting artifact")
	}

	rec := recs[idx]
	if err := mgr.Restore(rec.Handle()); err != nil {
		return "", "", errors.Wrapf(err, "restoring %s", rec.Key)
	}
	return rec.Key, filepath.Base(rec.Path), nil
}

func previewRecord(rec snapshot.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Key: %s\n", rec.Key)
	fmt.Fprintf(&b, "Captured: %s\n", rec.CapturedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Tool version: %s\n", rec.ToolVersion)
	fmt.Fprintf(&b, "Values: %d\n", rec.Subtree.ValueCount())
	fmt.Fprintf(&b, "Artifact: %s\n", filepath.Base(rec.Path))
	return b.String()
}
