package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/cli"
	"github.com/skovgaard/tunectl/internal/config"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/journal"
	"github.com/skovgaard/tunectl/internal/lock"
	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/profile"
	"github.com/skovgaard/tunectl/internal/snapshot"
	"github.com/skovgaard/tunectl/internal/svc"
	"github.com/skovgaard/tunectl/internal/tier"
)

var (
	applyDryRun      bool
	applyInteractive bool
	applyJSON        bool
	applyPolicy      string
	applyTiers       []string
)

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false,
		"evaluate guards and report what would change without touching anything")
	applyCmd.Flags().BoolVarP(&applyInteractive, "interactive", "i", false,
		"pick the tiers to apply from a fuzzy finder")
	applyCmd.Flags().BoolVar(&applyJSON, "json", false,
		"output the session report as JSON")
	applyCmd.Flags().StringVar(&applyPolicy, "policy", "",
		"backup policy override: require, best-effort")
	applyCmd.Flags().StringSliceVar(&applyTiers, "tier", nil,
		"apply only the named tiers (explicit selection also runs disabled tiers)")
	rootCmd.AddCommand(applyCmd)
}

var applyCmd = &cobra.Command{
	Use:   "apply [profile]",
	Short: "Apply a tuning profile tier by tier",
	Long: `Apply the tiers of a tuning profile to this machine.

Each step's key subtree is captured into a snapshot artifact before the
first change to it, so the session can be undone later. Steps whose
guard is not satisfied on this machine are skipped and reported. A
failing step does not stop its tier unless the profile marks it fatal;
a fatal failure aborts the session and leaves earlier changes in place
for inspection or undo.

With no argument the built-in profile is applied. Sessions are
serialized through a lock on the snapshot directory and recorded in the
audit journal.`,
	Example: `  # Preview what the built-in profile would change
  tunectl apply --dry-run

  # Apply a named profile
  tunectl apply server

  # Apply only one tier, even if the profile ships it disabled
  tunectl apply server --tier experimental

  # Choose tiers interactively
  tunectl apply server --interactive

  # Keep going when a key cannot be snapshotted first
  tunectl apply server --policy best-effort

  See Also:
    tunectl undo   - Restore every tracked key from its snapshot
    tunectl verify - Re-check applied values without changing anything`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

// applyOutput is the JSON shape of an apply run.
type applyOutput struct {
	Profile string           `json:"profile"`
	DryRun  bool             `json:"dry_run,omitempty"`
	Session *tier.Report     `json:"session"`
	Units   []unitChangeJSON `json:"units,omitempty"`
}

type unitChangeJSON struct {
	Unit  string `json:"unit"`
	Op    string `json:"op"`
	Error string `json:"error,omitempty"`
}

// unitChange records one attempted unit operation after the tiers ran.
type unitChange struct {
	Unit string
	Op   string
	Err  error
}

func runApply(cmd *cobra.Command, args []string) error {
	return runApplyWithWriter(cmd, args, os.Stdout)
}

func runApplyWithWriter(cmd *cobra.Command, args []string, w io.Writer) error {
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

	tiers, err := prof.CompileTiers(cli.Guards())
	if err != nil {
		return err
	}
	tiers, err = selectTiers(prof.Name, tiers)
	if err != nil {
		return err
	}
	if len(tiers) == 0 {
		fmt.Fprintln(w, "No tiers selected, nothing to do.")
		return nil
	}

	// A dry run never reaches the mutator, so it opens no store and creates
	// no files. Previews stay usable without privileges.
	var store hive.Store
	var snaps *snapshot.Manager
	if !applyDryRun {
		s, err := cli.OpenHive(cfg, false)
		if err != nil {
			return errors.NewSystemError(err, "Check hive_path in your configuration")
		}
		defer s.Close()
		store = s
		snaps = cli.Snapshots(cfg, store, logger)
	}
	mut, err := cli.Mutator(cfg, store, snaps, logger, applyPolicy)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	opts := []tier.RunnerOption{
		tier.WithLogger(logger),
		tier.WithSessionID(sessionID),
	}
	if applyDryRun {
		opts = append(opts, tier.WithDryRun())
	}
	runner := tier.NewRunner(mut, opts...)
	services := cli.Services(cfg, logger)

	// A dry run also skips the lock, the journal, and every unit operation.
	var jnl *journal.Journal
	if !applyDryRun {
		held, err := lock.Acquire(cfg.SnapshotDir, sessionID)
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				return errors.NewUserError(err, "Wait for the running session or check: tunectl status")
			}
			return errors.NewSystemError(err, "Check snapshot_dir in your configuration")
		}
		defer held.Release()

		jnl, err = cli.OpenJournal(cfg)
		if err != nil {
			return errors.NewSystemError(err, "Check journal_path in your configuration")
		}

		if prof.Undo.RestoreUnits && len(prof.Units) > 0 {
			captureUnitStates(ctx, cfg, services, prof.Units, logger)
		}

		tierNames := make([]string, len(tiers))
		for i, t := range tiers {
			tierNames[i] = t.Name
		}
		if err := jnl.Append(journal.EventSessionStart, sessionID, map[string]any{
			"profile": prof.Name,
			"tiers":   tierNames,
		}); err != nil {
			return errors.NewSystemError(err, "Check journal_path in your configuration")
		}
	}

	report, runErr := runner.Run(ctx, tiers)

	var units []unitChange
	if !applyDryRun && report != nil {
		if report.State != tier.StateAborted && !errors.Is(runErr, tier.ErrCancelled) {
			units = applyUnitStates(ctx, services, prof.Units, logger)
		}

		succeeded, failed, skipped := report.Counts()
		if err := jnl.Append(journal.EventSessionFinish, sessionID, map[string]any{
			"profile":     prof.Name,
			"state":       report.StateName,
			"succeeded":   succeeded,
			"failed":      failed,
			"skipped":     skipped,
			"duration_ms": report.Duration.Milliseconds(),
		}); err != nil {
			logger.Error("audit journal append failed", "error", err)
		}
	}

	if applyJSON {
		if err := outputApplyJSON(w, prof.Name, report, units); err != nil {
			return err
		}
	} else {
		renderApplyReport(w, prof.Name, report, units)
	}

	return applyExitError(report, runErr, units)
}

// selectTiers narrows the compiled tiers to the requested subset, keeping
// profile order. Explicitly named tiers run even when the profile ships
// them disabled.
func selectTiers(profileName string, tiers []tier.Tier) ([]tier.Tier, error) {
	if applyInteractive {
		return pickTiers(tiers)
	}
	if len(applyTiers) == 0 {
		return tiers, nil
	}

	requested := make(map[string]bool, len(applyTiers))
	for _, name := range applyTiers {
		requested[name] = true
	}

	selected := make([]tier.Tier, 0, len(applyTiers))
	for _, t := range tiers {
		if !requested[t.Name] {
			continue
		}
		delete(requested, t.Name)
		t.Enabled = true
		selected = append(selected, t)
	}

	for name := range requested {
		return nil, errors.NewUserError(
			errors.Wrapf(errors.ErrUnknownTier, "profile has no tier %q", name),
			"Run: tunectl profile show "+profileName)
	}
	return selected, nil
}

// captureUnitStates records the current unit states so undo can put
// services back. Capture failures are warnings: a missing tool must not
// block a tuning session that may not touch units at all.
func captureUnitStates(ctx context.Context, cfg *config.Config, services *svc.Manager, units []profile.UnitSpec, logger *slog.Logger) {
	if len(units) == 0 {
		return
	}

	states := make([]svc.UnitState, 0, len(units))
	for _, u := range units {
		st, err := services.CaptureState(ctx, u.Unit)
		if err != nil {
			logger.Warn("could not capture unit state", "unit", u.Unit, "error", err)
			continue
		}
		states = append(states, st)
	}
	if len(states) == 0 {
		return
	}

	if err := cli.SaveUnitStates(cfg, states); err != nil {
		logger.Warn("could not save unit states", "error", err)
	}
}

// applyUnitStates drives every unit to the state the profile asks for.
// Failures are isolated per operation and reported, not fatal.
func applyUnitStates(ctx context.Context, services *svc.Manager, units []profile.UnitSpec, logger *slog.Logger) []unitChange {
	var results []unitChange
	for _, u := range units {
		if u.Enabled != nil {
			op := "disable"
			err := error(nil)
			if *u.Enabled {
				op = "enable"
				err = services.Enable(ctx, u.Unit)
			} else {
				err = services.Disable(ctx, u.Unit)
			}
			if err != nil {
				logger.Error("unit change failed", "unit", u.Unit, "op", op, "error", err)
			}
			results = append(results, unitChange{Unit: u.Unit, Op: op, Err: err})
		}
		if u.Active != nil {
			op := "stop"
			err := error(nil)
			if *u.Active {
				op = "start"
				err = services.Start(ctx, u.Unit)
			} else {
				err = services.Stop(ctx, u.Unit)
			}
			if err != nil {
				logger.Error("unit change failed", "unit", u.Unit, "op", op, "error", err)
			}
			results = append(results, unitChange{Unit: u.Unit, Op: op, Err: err})
		}
	}
	return results
}

func renderApplyReport(w io.Writer, profileName string, report *tier.Report, units []unitChange) {
	if report == nil {
		return
	}

	fmt.Fprintf(w, "%sProfile: %s%s (session %s)\n\n",
		colorCyan+colorBold, profileName, colorReset, report.SessionID)

	for _, tr := range report.Tiers {
		if tr.Disabled {
			fmt.Fprintf(w, "%sTier %s: disabled%s\n", colorGray, tr.Tier, colorReset)
			continue
		}
		fmt.Fprintf(w, "%sTier %s:%s %d applied, %d failed, %d skipped\n",
			colorBold, tr.Tier, colorReset, tr.Succeeded, tr.Failed, tr.Skipped)
	}

	for _, sr := range report.Steps {
		switch sr.Status {
		case tier.StepFailed:
			fmt.Fprintf(w, "  %s✗ %s: %s%s\n", colorRed, sr.Step, sr.Note, colorReset)
		case tier.StepSkipped:
			fmt.Fprintf(w, "  %s- %s: %s%s\n", colorGray, sr.Step, sr.Note, colorReset)
		}
	}

	if len(units) > 0 {
		fmt.Fprintf(w, "\n%sUnits:%s\n", colorBold, colorReset)
		for _, u := range units {
			if u.Err != nil {
				fmt.Fprintf(w, "  %s✗ %s %s: %v%s\n", colorRed, u.Op, u.Unit, u.Err, colorReset)
			} else {
				fmt.Fprintf(w, "  %s✓ %s %s%s\n", colorGreen, u.Op, u.Unit, colorReset)
			}
		}
	}

	succeeded, failed, skipped := report.Counts()
	fmt.Fprintf(w, "\nSession %s: %d applied, %d failed, %d skipped in %s\n",
		report.StateName, succeeded, failed, skipped,
		report.Duration.Round(time.Millisecond))
}

func outputApplyJSON(w io.Writer, profileName string, report *tier.Report, units []unitChange) error {
	out := applyOutput{
		Profile: profileName,
		DryRun:  applyDryRun,
		Session: report,
	}
	for _, u := range units {
		entry := unitChangeJSON{Unit: u.Unit, Op: u.Op}
		if u.Err != nil {
			entry.Error = u.Err.Error()
		}
		out.Units = append(out.Units, entry)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(out), "encoding output")
}

// applyExitError maps the session outcome onto the process exit code. The
// report has already been printed, so partial-failure signals carry no
// message of their own.
func applyExitError(report *tier.Report, runErr error, units []unitChange) error {
	if runErr != nil {
		if errors.Is(runErr, tier.ErrCancelled) {
			return errors.NewExitError(runErr, errors.ExitUser)
		}
		return errors.NewExitError(runErr, errors.ExitSystem)
	}

	if report != nil {
		if _, failed, _ := report.Counts(); failed > 0 {
			return errors.NewExitError(nil, errors.ExitUser)
		}
	}
	for _, u := range units {
		if u.Err != nil {
			return errors.NewExitError(nil, errors.ExitUser)
		}
	}
	return nil
}
