package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/cli"
	"github.com/skovgaard/tunectl/internal/cli/prompt"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/journal"
	"github.com/skovgaard/tunectl/internal/lock"
	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/rollback"
)

var (
	undoJSON bool
	undoYes  bool
)

func init() {
	undoCmd.Flags().BoolVar(&undoJSON, "json", false,
		"output the undo report as JSON")
	undoCmd.Flags().BoolVarP(&undoYes, "yes", "y", false,
		"skip the confirmation prompt")
	rootCmd.AddCommand(undoCmd)
}

var undoCmd = &cobra.Command{
	Use:   "undo [profile]",
	Short: "Restore tracked keys from their latest snapshots",
	Long: `Restore every key the profile tracks from its most recent snapshot.

Each key's whole subtree is re-imported from its latest artifact. A key
that was never snapshotted is skipped and the pass continues; a failed
restore is reported and the pass continues. When the profile asks for
it, service units are put back to the states recorded before the last
apply, after the keys are restored.

Undo can run at any time, in any process, whether or not an apply just
happened. Running it twice is safe: restoring the same snapshot again
converges to the same state.`,
	Example: `  # Undo what the built-in profile touches
  tunectl undo

  # Undo a named profile without the confirmation prompt
  tunectl undo server --yes

  See Also:
    tunectl snapshot list    - Show the artifacts undo would use
    tunectl snapshot restore - Restore one key instead of a whole profile`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUndo,
}

// undoOutput is the JSON shape of an undo run.
type undoOutput struct {
	Profile string           `json:"profile"`
	Session string           `json:"session_id"`
	Report  *rollback.Report `json:"report"`
}

func runUndo(cmd *cobra.Command, args []string) error {
	return runUndoWithWriter(cmd, args, os.Stdout)
}

func runUndoWithWriter(cmd *cobra.Command, args []string, w io.Writer) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)
	cfg := flags.GetConfig()

	var name string
	if len(args) > 0 {
		name = args[0]
	}
	prof, err := cli.FindProfile(cfg, name)
	if err != nil {
		return err
	}

	keys, err := prof.UndoKeys()
	if err != nil {
		return err
	}
	if len(keys) == 0 && !prof.Undo.RestoreUnits {
		fmt.Fprintf(w, "Profile %s tracks no keys, nothing to undo.\n", prof.Name)
		return nil
	}

	if !undoYes && term.IsTerminal(int(os.Stdin.Fd())) {
		question := fmt.Sprintf("Restore %d tracked key(s) from their latest snapshots?", len(keys))
		ok, err := prompt.NewConfirmer().Confirm(question)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	store, err := cli.OpenHive(cfg, false)
	if err != nil {
		return errors.NewSystemError(err, "Check hive_path in your configuration")
	}
	defer store.Close()

	snaps := cli.Snapshots(cfg, store, logger)

	opts := []rollback.Option{rollback.WithLogger(logger)}
	if prof.Undo.RestoreUnits {
		states, err := cli.LoadUnitStates(cfg)
		if err != nil {
			return errors.NewSystemError(err, "Remove the damaged unit state file and retry")
		}
		if len(states) == 0 {
			logger.Info("no recorded unit states, restoring keys only")
		}
		services := cli.Services(cfg, logger)
		for _, st := range states {
			opts = append(opts, rollback.WithActions(services.RestoreAction(st)))
		}
	}

	sessionID := uuid.NewString()
	held, err := lock.Acquire(cfg.SnapshotDir, sessionID)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return errors.NewUserError(err, "Wait for the running session or check: tunectl status")
		}
		return errors.NewSystemError(err, "Check snapshot_dir in your configuration")
	}
	defer held.Release()

	jnl, err := cli.OpenJournal(cfg)
	if err != nil {
		return errors.NewSystemError(err, "Check journal_path in your configuration")
	}
	if err := jnl.Append(journal.EventUndoStart, sessionID, map[string]any{
		"profile": prof.Name,
		"keys":    len(keys),
	}); err != nil {
		return errors.NewSystemError(err, "Check journal_path in your configuration")
	}

	coord := rollback.NewCoordinator(snaps, keys, opts...)
	report, undoErr := coord.Undo(ctx)

	if report != nil {
		if err := jnl.Append(journal.EventUndoFinish, sessionID, map[string]any{
			"profile":  prof.Name,
			"restored": report.Restored,
			"skipped":  report.Skipped,
			"failed":   report.Failed,
		}); err != nil {
			logger.Error("audit journal append failed", "error", err)
		}
	}

	if undoJSON {
		if err := outputUndoJSON(w, prof.Name, sessionID, report); err != nil {
			return err
		}
	} else {
		renderUndoReport(w, prof.Name, report)
	}

	if undoErr != nil {
		return errors.NewExitError(undoErr, errors.ExitUser)
	}
	if report != nil && !report.OK() {
		return errors.NewExitError(nil, errors.ExitUser)
	}
	return nil
}

func renderUndoReport(w io.Writer, profileName string, report *rollback.Report) {
	if report == nil {
		return
	}

	fmt.Fprintf(w, "%sUndo: %s%s\n\n", colorCyan+colorBold, profileName, colorReset)

	for _, kr := range report.Keys {
		switch kr.Status {
		case rollback.StatusRestored:
			fmt.Fprintf(w, "  %s✓ %s restored%s\n", colorGreen, kr.Key, colorReset)
		case rollback.StatusSkipped:
			fmt.Fprintf(w, "  %s- %s: no snapshot, skipped%s\n", colorGray, kr.Key, colorReset)
		case rollback.StatusFailed:
			fmt.Fprintf(w, "  %s✗ %s: %s%s\n", colorRed, kr.Key, kr.Note, colorReset)
		}
	}

	for _, ar := range report.Actions {
		switch ar.Status {
		case rollback.StatusFailed:
			fmt.Fprintf(w, "  %s✗ %s: %s%s\n", colorRed, ar.Action, ar.Note, colorReset)
		default:
			fmt.Fprintf(w, "  %s✓ %s%s\n", colorGreen, ar.Action, colorReset)
		}
	}

	fmt.Fprintf(w, "\nUndo finished: %d restored, %d skipped, %d failed\n",
		report.Restored, report.Skipped, report.Failed)
}

func outputUndoJSON(w io.Writer, profileName, sessionID string, report *rollback.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(undoOutput{
		Profile: profileName,
		Session: sessionID,
		Report:  report,
	}), "encoding output")
}
