package snapshot

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/journal"
	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/snapshot"
)

var pruneKeep int

func init() {
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", snapshot.DefaultRetention, "Artifacts to keep per key")
	Cmd.AddCommand(pruneCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old snapshot artifacts",
	Long: `Remove old snapshot artifacts, keeping the newest ones per key.

Pruning counts each key's history separately, so a busy key never
crowds out the snapshots of a quiet one. The default retention comes
from the configuration file; --keep overrides it for one run.`,
	Example: `  # Prune with the configured retention
  tunectl snapshot prune

  # Keep only the newest 3 per key
  tunectl snapshot prune --keep 3

  See Also:
    tunectl snapshot list - List artifacts before pruning`,
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, _ []string) error {
	return runPruneWithWriter(cmd, os.Stdout)
}

func runPruneWithWriter(cmd *cobra.Command, w io.Writer) error {
	cfg := flags.GetConfig()
	logger := logging.FromContext(cmd.Context())

	keep := pruneKeep
	if !cmd.Flags().Changed("keep") && cfg.SnapshotRetention > 0 {
		keep = cfg.SnapshotRetention
	}
	if keep < 1 {
		return errors.NewUserError(
			errors.Newf("invalid retention %d", keep),
			"Retention must be at least 1",
		)
	}

	mgr := snapshot.NewManager(nil,
		snapshot.WithDir(cfg.SnapshotDir),
		snapshot.WithLogger(logger),
	)

	removed, err := mgr.Prune(keep)
	if err != nil {
		return errors.Wrap(err, "pruning artifacts")
	}

	if jnl, jerr := journal.Open(cfg.JournalPath); jerr == nil {
		aerr := jnl.Append(journal.EventPrune, uuid.NewString(), map[string]any{
			"keep":    keep,
			"removed": removed,
		})
		if aerr != nil {
			logger.Error("journal append failed", "error", aerr)
		}
	} else {
		logger.Debug("journal unavailable, prune not recorded", "error", jerr)
	}

	if removed == 0 {
		fmt.Fprintf(w, "Nothing to prune (keeping %d per key)\n", keep)
		return nil
	}

	fmt.Fprintf(w, "%sPruned %d artifact(s)%s (keeping %d per key)\n",
		colorGreen, removed, colorReset, keep)
	return nil
}
