package profile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/profile"
)

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	Cmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available profiles",
	Long: `List the profiles found in the configured search paths.

On-disk profiles shadow the built-in baseline when they share its name.
Files that fail to parse are skipped; use validate to see why.`,
	Example: `  # List profiles
  tunectl profile list

  # Output as JSON
  tunectl profile list --json`,
	RunE: runList,
}

// profileEntry represents a single profile in JSON output.
type profileEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path"`
}

func runList(_ *cobra.Command, _ []string) error {
	return runListWithWriter(os.Stdout)
}

func runListWithWriter(w io.Writer) error {
	cfg := flags.GetConfig()
	summaries := profile.List(cfg.ProfilePaths)

	if listJSON {
		entries := make([]profileEntry, len(summaries))
		for i, s := range summaries {
			entries[i] = profileEntry{Name: s.Name, Description: s.Description, Path: s.Path}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(entries), "encoding output")
	}

	if len(summaries) == 0 {
		fmt.Fprintln(w, "No profiles found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%sNAME%s\t%sDESCRIPTION%s\t%sPATH%s\n",
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset)

	for _, s := range summaries {
		fmt.Fprintf(tw, "%s%s%s\t%s\t%s%s%s\n",
			colorGreen, s.Name, colorReset,
			truncate(s.Description, 60),
			colorGray, s.Path, colorReset)
	}
	tw.Flush()

	return nil
}

// truncate caps s at max characters, replacing the tail with "..." when
// it does not fit.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max > 3 {
		return s[:max-3] + "..."
	}
	return s[:max]
}
