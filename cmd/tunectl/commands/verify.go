package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/cli"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/journal"
	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/verify"
)

var (
	verifyJSON    bool
	verifyQuiet   bool
	verifyVerbose bool
)

func init() {
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false,
		"output results as JSON")
	verifyCmd.Flags().BoolVar(&verifyQuiet, "quiet", false,
		"suppress output, exit code only")
	verifyCmd.Flags().BoolVar(&verifyVerbose, "verbose", false,
		"show detailed check-by-check output")
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify [profile]",
	Short: "Check applied values without changing anything",
	Long: `Re-check the values and unit states a profile expects.

The pass is read-only: the hive is opened read-only and nothing is
created by looking. Checks whose guard is not satisfied on this machine
report as not applicable rather than failing.

Output modes (mutually exclusive):
  (default)   Show errors and warnings
  --verbose   Show all checks including passed ones
  --quiet     No output, exit code only
  --json      Machine-readable JSON output

Exit codes:
  0 - All checks passed (no errors or warnings)
  1 - Warnings present, no errors
  2 - Errors present`,
	Example: `  # Verify the built-in profile
  tunectl verify

  # Verify a named profile, showing every check
  tunectl verify server --verbose

  See Also:
    tunectl apply  - Apply the profile the checks come from
    tunectl status - Overview of hive, snapshots, and journal`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: validateVerifyFlags,
	RunE:    runVerify,
}

// validateVerifyFlags ensures output flags are mutually exclusive.
func validateVerifyFlags(_ *cobra.Command, _ []string) error {
	count := 0
	if verifyJSON {
		count++
	}
	if verifyQuiet {
		count++
	}
	if verifyVerbose {
		count++
	}

	if count > 1 {
		return errors.New("flags --json, --quiet, and --verbose are mutually exclusive")
	}

	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	return runVerifyWithWriter(cmd, args, os.Stdout)
}

func runVerifyWithWriter(cmd *cobra.Command, args []string, w io.Writer) error {
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

	runner := verify.NewRunner()
	runner.AddCheck(verify.NewStoreCheck(cfg.HivePath, cfg.SnapshotDir))

	// Value and unit checks need the hive. Before the first apply there is
	// nothing to open and nothing to check against.
	if _, statErr := os.Stat(cfg.HivePath); statErr == nil {
		store, err := cli.OpenHive(cfg, true)
		if err != nil {
			return errors.NewSystemError(err, "Check hive_path in your configuration")
		}
		defer store.Close()

		checks, err := prof.CompileChecks(store, cli.Services(cfg, logger), cli.Guards())
		if err != nil {
			return err
		}
		for _, c := range checks {
			runner.AddCheck(c)
		}
	} else {
		logger.Info("hive not created yet, value checks skipped", "path", cfg.HivePath)
	}

	report := runner.Run(ctx)

	// The journal append is best effort: verification must stay usable on
	// machines where the journal path is not writable.
	if jnl, err := cli.OpenJournal(cfg); err == nil {
		if err := jnl.Append(journal.EventVerify, uuid.NewString(), map[string]any{
			"profile":  prof.Name,
			"passed":   report.Summary.Passed,
			"info":     report.Summary.Info,
			"warnings": report.Summary.Warnings,
			"errors":   report.Summary.Errors,
		}); err != nil {
			logger.Debug("audit journal append failed", "error", err)
		}
	} else {
		logger.Debug("journal not writable, skipping audit record", "error", err)
	}

	if err := outputVerifyReport(w, report); err != nil {
		return err
	}

	if report.HasErrors() {
		return errors.NewExitError(nil, errors.ExitSystem)
	}
	if report.HasWarnings() {
		return errors.NewExitError(nil, errors.ExitUser)
	}
	return nil
}

func outputVerifyReport(w io.Writer, report *verify.Report) error {
	if verifyQuiet {
		return nil
	}

	if verifyJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(report), "encoding output")
	}

	return outputVerifyText(w, report)
}

func outputVerifyText(w io.Writer, report *verify.Report) error {
	// In normal mode, show only errors and warnings
	// In verbose mode, show all checks
	showAll := verifyVerbose

	hasOutput := false
	for _, result := range report.Results {
		if !showAll && result.Status != verify.SeverityError && result.Status != verify.SeverityWarning {
			continue
		}

		hasOutput = true
		fmt.Fprintf(w, "%s [%s] %s: %s\n", severityIcon(result.Status), result.Category, result.Name, result.Message)

		for _, k := range slices.Sorted(maps.Keys(result.Details)) {
			fmt.Fprintf(w, "    %s: %v\n", k, result.Details[k])
		}
	}

	if hasOutput || showAll {
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Summary: %d passed, %d info, %d warnings, %d errors\n",
		report.Summary.Passed, report.Summary.Info, report.Summary.Warnings, report.Summary.Errors)

	return nil
}

func severityIcon(s verify.Severity) string {
	switch s {
	case verify.SeverityPass:
		return "✓"
	case verify.SeverityInfo:
		return "ℹ"
	case verify.SeverityWarning:
		return "⚠"
	case verify.SeverityError:
		return "✗"
	default:
		return "?"
	}
}
