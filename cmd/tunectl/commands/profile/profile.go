// Package profile implements the profile noun: listing, inspecting, and
// validating tuning profiles without applying them.
package profile

import (
	"github.com/spf13/cobra"
)

// ANSI escapes shared by the profile subcommands.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// Cmd is the parent command for profile operations.
var Cmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect tuning profiles",
	Long: `Inspect tuning profiles.

A profile declares tiers of value changes, the service units to drive,
the keys an undo restores, and the expected end state. Profiles are
YAML or TOML files found in the configured search paths; the built-in
baseline profile is always available.`,
	Example: `  # List available profiles
  tunectl profile list

  # Show what a profile would change
  tunectl profile show balanced

  # Check a profile file before shipping it
  tunectl profile validate ./my-tuning.yaml

  See Also:
    tunectl apply - Apply a profile`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}
