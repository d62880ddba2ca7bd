// Package snapshot provides CLI commands for managing snapshot artifacts.
package snapshot

import "github.com/spf13/cobra"

// Color constants for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorGray   = "\033[90m"
)

// Cmd is the root snapshot command.
var Cmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage snapshot artifacts",
	Long: `Manage the snapshot artifacts tunectl captures before changing values.

Every artifact is self-contained: it holds the full subtree of one key
plus the metadata needed to restore it from any later process. This
command group lists them, restores from them, and removes old ones.`,
	Example: `  # List every artifact
  tunectl snapshot list

  # List artifacts for one key
  tunectl snapshot list --key system/vm

  # Restore a key from its most recent artifact
  tunectl snapshot restore system/vm

  # Pick an artifact to restore interactively
  tunectl snapshot restore --interactive

  # Keep only the 3 most recent artifacts per key
  tunectl snapshot prune --keep 3

  See Also:
    tunectl undo - Restore every key a profile tracks`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}
