package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd"
	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/journal"
	"github.com/skovgaard/tunectl/internal/lock"
	"github.com/skovgaard/tunectl/internal/profile"
	"github.com/skovgaard/tunectl/internal/snapshot"
)

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hive, snapshot, and journal overview",
	Long: `Show an overview of the tunectl state on this machine.

Reports where the hive, snapshot artifacts, and audit journal live,
how much is in them, whether the journal hash chain is intact, whether
another session currently holds the lock, and which profiles are
available.`,
	Example: `  # Show the current state
  tunectl status

  # JSON output for scripting
  tunectl status --json`,
	RunE: runStatus,
}

// JSON output types

type statusOutput struct {
	Version   string            `json:"version"`
	Hive      hiveStatusJSON    `json:"hive"`
	Snapshots snapStatusJSON    `json:"snapshots"`
	Journal   journalStatusJSON `json:"journal"`
	Lock      *lock.Info        `json:"lock,omitempty"`
	Profiles  []profileJSON     `json:"profiles"`
}

type hiveStatusJSON struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size,omitempty"`
}

type snapStatusJSON struct {
	Dir      string     `json:"dir"`
	Count    int        `json:"count"`
	NewestAt *time.Time `json:"newest_at,omitempty"`
	Newest   string     `json:"newest_key,omitempty"`
}

type journalStatusJSON struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
	Chain   string `json:"chain"`
	Last    string `json:"last_event,omitempty"`
}

type profileJSON struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	return runStatusWithWriter(os.Stdout)
}

// runStatusWithWriter allows injecting a writer for testing.
func runStatusWithWriter(w io.Writer) error {
	cfg := flags.GetConfig()
	out := statusOutput{Version: cmd.Version}

	out.Hive = hiveStatusJSON{Path: cfg.HivePath}
	if fi, err := os.Stat(cfg.HivePath); err == nil {
		out.Hive.Exists = true
		out.Hive.Size = fi.Size()
	}

	out.Snapshots = snapStatusJSON{Dir: cfg.SnapshotDir}
	snaps := snapshot.NewManager(nil, snapshot.WithDir(cfg.SnapshotDir))
	if recs, err := snaps.List(); err == nil && len(recs) > 0 {
		out.Snapshots.Count = len(recs)
		newest := recs[0]
		at := newest.CapturedAt
		out.Snapshots.NewestAt = &at
		out.Snapshots.Newest = newest.Key
	}

	out.Journal = collectJournalStatus(cfg.JournalPath)

	holder, err := lock.Holder(cfg.SnapshotDir)
	if err == nil {
		out.Lock = holder
	}

	for _, s := range profile.List(cfg.ProfilePaths) {
		out.Profiles = append(out.Profiles, profileJSON{
			Name:        s.Name,
			Description: s.Description,
			Path:        s.Path,
		})
	}

	if statusJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(out), "encoding output")
	}
	return outputStatusText(w, out)
}

func collectJournalStatus(path string) journalStatusJSON {
	st := journalStatusJSON{Path: path, Chain: "empty"}

	recs, err := journal.Read(path)
	if err != nil {
		st.Chain = "unreadable"
		return st
	}
	if len(recs) == 0 {
		return st
	}

	st.Records = len(recs)
	st.Last = string(recs[len(recs)-1].Event)
	if err := journal.Verify(path); err != nil {
		st.Chain = "broken"
	} else {
		st.Chain = "intact"
	}
	return st
}

func outputStatusText(w io.Writer, out statusOutput) error {
	fmt.Fprintf(w, "tunectl version %s\n\n", out.Version)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if out.Hive.Exists {
		fmt.Fprintf(tw, "Hive:\t%s (%d bytes)\n", out.Hive.Path, out.Hive.Size)
	} else {
		fmt.Fprintf(tw, "Hive:\t%s %s(not created)%s\n", out.Hive.Path, colorGray, colorReset)
	}

	if out.Snapshots.Count > 0 {
		fmt.Fprintf(tw, "Snapshots:\t%s (%d artifacts, newest %s at %s)\n",
			out.Snapshots.Dir, out.Snapshots.Count, out.Snapshots.Newest,
			out.Snapshots.NewestAt.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintf(tw, "Snapshots:\t%s %s(none)%s\n", out.Snapshots.Dir, colorGray, colorReset)
	}

	switch out.Journal.Chain {
	case "empty":
		fmt.Fprintf(tw, "Journal:\t%s %s(empty)%s\n", out.Journal.Path, colorGray, colorReset)
	case "intact":
		fmt.Fprintf(tw, "Journal:\t%s (%d records, chain intact, last event %s)\n",
			out.Journal.Path, out.Journal.Records, out.Journal.Last)
	default:
		fmt.Fprintf(tw, "Journal:\t%s %s(%d records, chain %s)%s\n",
			out.Journal.Path, colorYellow, out.Journal.Records, out.Journal.Chain, colorReset)
	}

	if out.Lock != nil {
		fmt.Fprintf(tw, "Lock:\t%sheld by pid %d (session %s)%s\n",
			colorYellow, out.Lock.PID, out.Lock.SessionID, colorReset)
	} else {
		fmt.Fprintf(tw, "Lock:\tfree\n")
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%sProfiles:%s\n", colorBold, colorReset)
	ptw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range out.Profiles {
		desc := p.Description
		if desc != "" {
			desc = truncate(desc, 60)
		}
		fmt.Fprintf(ptw, "  %s%s%s\t%s\t%s\n", colorGreen, p.Name, colorReset, p.Path, desc)
	}
	ptw.Flush()

	return nil
}
