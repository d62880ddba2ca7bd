package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/hive"
	"github.com/skovgaard/tunectl/internal/snapshot"
)

var (
	listJSON bool
	listKey  string
)

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&listKey, "key", "", "Only list artifacts for this key")
	Cmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshot artifacts",
	Long: `List snapshot artifacts, newest first.

The captured-at time embedded in each artifact decides the order, not
the file name. Use --key to narrow the list to one key's history.`,
	Example: `  # List every artifact
  tunectl snapshot list

  # History of one key
  tunectl snapshot list --key system/vm

  # Output as JSON
  tunectl snapshot list --json

  See Also:
    tunectl snapshot restore - Restore from an artifact
    tunectl snapshot prune   - Remove old artifacts`,
	RunE: runList,
}

// listEntry represents a single artifact in JSON output.
type listEntry struct {
	Key         string    `json:"key"`
	CapturedAt  time.Time `json:"captured_at"`
	ToolVersion string    `json:"tool_version"`
	Values      int       `json:"values"`
	Artifact    string    `json:"artifact"`
}

func runList(_ *cobra.Command, _ []string) error {
	return runListWithWriter(os.Stdout)
}

func runListWithWriter(w io.Writer) error {
	cfg := flags.GetConfig()
	mgr := snapshot.NewManager(nil, snapshot.WithDir(cfg.SnapshotDir))

	var recs []snapshot.Record
	var err error
	if listKey != "" {
		var key hive.Key
		key, err = hive.ParseKey(listKey)
		if err != nil {
			return errors.NewUserError(err, "Keys look like hive/path, e.g. system/vm")
		}
		recs, err = mgr.ListKey(key)
	} else {
		recs, err = mgr.List()
	}
	if err != nil && !errors.Is(err, snapshot.ErrNoSnapshot) {
		return errors.Wrap(err, "listing artifacts")
	}

	if listJSON {
		return outputListJSON(w, recs)
	}
	return outputListTabular(w, recs)
}

func outputListJSON(w io.Writer, recs []snapshot.Record) error {
	entries := make([]listEntry, len(recs))
	for i, r := range recs {
		entries[i] = listEntry{
			Key:         r.Key,
			CapturedAt:  r.CapturedAt,
			ToolVersion: r.ToolVersion,
			Values:      r.Subtree.ValueCount(),
			Artifact:    filepath.Base(r.Path),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(entries), "encoding output")
}

func outputListTabular(w io.Writer, recs []snapshot.Record) error {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No snapshot artifacts")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Artifacts are captured automatically before tunectl changes a value.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%sKEY%s\t%sCAPTURED%s\t%sVALUES%s\t%sARTIFACT%s\n",
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset)

	for _, r := range recs {
		fmt.Fprintf(tw, "%s%s%s\t%s\t%d\t%s\n",
			colorGreen, r.Key, colorReset,
			r.CapturedAt.Local().Format("2006-01-02 15:04:05"),
			r.Subtree.ValueCount(),
			filepath.Base(r.Path))
	}
	tw.Flush()

	return nil
}
