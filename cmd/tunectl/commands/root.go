// Package commands implements the CLI commands for tunectl.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd"
	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/config"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/logging"
	"github.com/skovgaard/tunectl/internal/snapshot"
)

// Persistent flag state, bound in init.
var (
	verbosity int
	quiet     bool
	logFormat string
	logFile   string
)

// configLoadErr carries a config load failure until a command that needs
// configuration runs. Help and version stay usable regardless.
var configLoadErr error

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeat for more)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "only report errors")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&logFile, "log-file", "", "also append JSON logs to this file")

	rootCmd.Version = cmd.Version
	rootCmd.SetVersionTemplate("tunectl version {{.Version}}\n")

	// Errors are printed exactly once, by ExecuteContext.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func initConfig() {
	config.Init()
	var cfg *config.Config
	cfg, configLoadErr = config.Load("")
	flags.SetConfig(cfg)
}

var rootCmd = &cobra.Command{
	Use:   "tunectl",
	Short: "Reversible system tuning in opt-in tiers",
	Long: `tunectl applies tiers of performance tuning to the local machine and
keeps every change reversible.

Tuning profiles declare tiers of key/value mutations against the tunectl
hive, the service units they expect, and the checks that verify the
result afterwards. Before a value is changed its subtree is captured
into a snapshot artifact, so a later undo can put the machine back the
way it was, even from a different process days later.

A built-in "balanced" profile ships with the binary. Additional profiles
are picked up from the configured profile paths in YAML or TOML form.`,
	Example: `  # Preview the built-in profile without changing anything
  tunectl apply --dry-run

  # Apply a named profile
  tunectl apply server

  # Check that applied values still hold
  tunectl verify server

  # Put every tracked key back to its latest snapshot
  tunectl undo server

  See Also: tunectl status, tunectl snapshot list, tunectl profile list`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := setupLogging(cmd); err != nil {
			return err
		}
		return checkConfig(cmd)
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// setupLogging installs the session logger selected by the verbosity and
// format flags and threads it through the command context.
func setupLogging(cmd *cobra.Command) error {
	level, err := logLevel()
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if logging.Format(logFormat) == logging.FormatJSON {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	} else {
		handler = logging.NewHandler(cmd.ErrOrStderr(), opts)
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return errors.NewUserError(err, "failed to open log file")
		}
		// The file copy is always JSON, whatever the terminal shows.
		handler = logging.NewMultiHandler(handler,
			slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))

	return nil
}

// logLevel maps --quiet, -v, and TUNECTL_DEBUG onto a log level. Flags
// win over the environment.
func logLevel() (slog.Level, error) {
	if quiet {
		if verbosity > 0 {
			return 0, errors.NewUserError(nil, "cannot use --quiet and --verbose together")
		}
		return slog.LevelError, nil
	}

	v := verbosity
	if v == 0 {
		switch os.Getenv("TUNECTL_DEBUG") {
		case "1", "true":
			v = 2
		case "2":
			v = 3
		}
	}
	return logging.LevelFromVerbosity(v), nil
}

// checkConfig surfaces config load failures before any command runs.
func checkConfig(cmd *cobra.Command) error {
	// Help and version work without valid configuration
	if cmd.Name() == "help" || cmd.Name() == "version" {
		return nil
	}

	if configLoadErr != nil {
		return errors.NewConfigError(configLoadErr)
	}
	return nil
}

// printError reports a command failure on stderr. ExitErrors without an
// underlying error are exit-code-only signals whose output was already
// printed by the command.
func printError(err error) {
	var exitErr *errors.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err == nil {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if exitErr.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", exitErr.Suggestion)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command under ctx. Cancelling ctx stops a
// running session between steps.
func ExecuteContext(ctx context.Context) error {
	snapshot.Version = cmd.Version

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(err)
	}
	return err
}
