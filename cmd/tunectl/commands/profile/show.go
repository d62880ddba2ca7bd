package profile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/cli"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/profile"
)

var showJSON bool

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	Cmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show [profile]",
	Short: "Show what a profile would change",
	Long: `Show the tiers, steps, units, undo scope, and verification
expectations of a profile without applying anything.

The argument is a profile name or a path to a profile file. Without an
argument the built-in baseline profile is shown.`,
	Example: `  # Show the built-in profile
  tunectl profile show

  # Show a named profile
  tunectl profile show balanced

  # Show a profile file
  tunectl profile show ./my-tuning.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

// showOutput is the JSON form of a profile listing.
type showOutput struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Version      int         `json:"version"`
	Path         string      `json:"path"`
	Tiers        []tierOut   `json:"tiers"`
	Units        []unitOut   `json:"units,omitempty"`
	UndoKeys     []string    `json:"undo_keys,omitempty"`
	RestoreUnits bool        `json:"restore_units,omitempty"`
	Verify       []verifyOut `json:"verify,omitempty"`
}

type tierOut struct {
	Name    string    `json:"name"`
	Enabled bool      `json:"enabled"`
	Steps   []stepOut `json:"steps"`
}

type stepOut struct {
	Name       string `json:"name,omitempty"`
	Key        string `json:"key"`
	ValueName  string `json:"value_name"`
	Action     string `json:"action"`
	Type       string `json:"type,omitempty"`
	Value      any    `json:"value,omitempty"`
	Guard      string `json:"guard,omitempty"`
	Fatal      bool   `json:"fatal,omitempty"`
	SkipBackup bool   `json:"skip_backup,omitempty"`
}

type unitOut struct {
	Unit    string `json:"unit"`
	Enabled *bool  `json:"enabled,omitempty"`
	Active  *bool  `json:"active,omitempty"`
}

type verifyOut struct {
	Key       string `json:"key"`
	ValueName string `json:"value_name"`
	Type      string `json:"type,omitempty"`
	Value     any    `json:"value,omitempty"`
	Absent    bool   `json:"absent,omitempty"`
	Guard     string `json:"guard,omitempty"`
}

func runShow(_ *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	return runShowWithWriter(name, os.Stdout)
}

func runShowWithWriter(name string, w io.Writer) error {
	cfg := flags.GetConfig()

	p, err := cli.FindProfile(cfg, name)
	if err != nil {
		return err
	}

	if showJSON {
		return outputShowJSON(w, p)
	}
	outputShowText(w, p)
	return nil
}

func outputShowJSON(w io.Writer, p *profile.Profile) error {
	out := showOutput{
		Name:         p.Name,
		Description:  p.Description,
		Version:      p.Version,
		Path:         displayPath(p),
		UndoKeys:     p.Undo.Keys,
		RestoreUnits: p.Undo.RestoreUnits,
	}

	for _, t := range p.Tiers {
		to := tierOut{Name: t.Name, Enabled: t.IsEnabled()}
		for _, s := range t.Steps {
			action := "set"
			if s.Remove {
				action = "remove"
			}
			to.Steps = append(to.Steps, stepOut{
				Name:       s.Name,
				Key:        s.Key,
				ValueName:  s.ValueName,
				Action:     action,
				Type:       s.Type,
				Value:      s.Value,
				Guard:      s.Guard,
				Fatal:      s.Fatal,
				SkipBackup: s.SkipBackup,
			})
		}
		out.Tiers = append(out.Tiers, to)
	}

	for _, u := range p.Units {
		out.Units = append(out.Units, unitOut{Unit: u.Unit, Enabled: u.Enabled, Active: u.Active})
	}

	for _, v := range p.Verify {
		out.Verify = append(out.Verify, verifyOut{
			Key:       v.Key,
			ValueName: v.ValueName,
			Type:      v.Type,
			Value:     v.Value,
			Absent:    v.Absent,
			Guard:     v.Guard,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(out), "encoding output")
}

func outputShowText(w io.Writer, p *profile.Profile) {
	fmt.Fprintf(w, "%sProfile: %s%s %s(%s)%s\n",
		colorBold, p.Name, colorReset,
		colorGray, displayPath(p), colorReset)
	if p.Description != "" {
		fmt.Fprintf(w, "  %s\n", p.Description)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%sTiers:%s\n", colorBold, colorReset)
	for _, t := range p.Tiers {
		state := ""
		if !t.IsEnabled() {
			state = fmt.Sprintf(" %s(disabled)%s", colorGray, colorReset)
		}
		fmt.Fprintf(w, "  %s%s%s%s - %d step(s)\n", colorCyan, t.Name, colorReset, state, len(t.Steps))
		for _, s := range t.Steps {
			fmt.Fprintf(w, "    %s\n", describeStep(s))
			if s.Guard != "" {
				fmt.Fprintf(w, "      %sguard: %s%s\n", colorGray, s.Guard, colorReset)
			}
			if s.Fatal {
				fmt.Fprintf(w, "      %sfatal on failure%s\n", colorGray, colorReset)
			}
			if s.SkipBackup {
				fmt.Fprintf(w, "      %sno snapshot before the change%s\n", colorGray, colorReset)
			}
		}
	}

	if len(p.Units) > 0 {
		fmt.Fprintf(w, "\n%sUnits:%s\n", colorBold, colorReset)
		for _, u := range p.Units {
			fmt.Fprintf(w, "  %s: %s\n", u.Unit, describeUnit(u))
		}
	}

	fmt.Fprintf(w, "\n%sUndo:%s\n", colorBold, colorReset)
	if len(p.Undo.Keys) == 0 && !p.Undo.RestoreUnits {
		fmt.Fprintf(w, "  %snothing tracked%s\n", colorGray, colorReset)
	} else {
		if len(p.Undo.Keys) > 0 {
			fmt.Fprintf(w, "  keys: %s\n", strings.Join(p.Undo.Keys, ", "))
		}
		if p.Undo.RestoreUnits {
			fmt.Fprintln(w, "  unit states are restored")
		}
	}

	if len(p.Verify) > 0 {
		fmt.Fprintf(w, "\n%sVerify:%s\n", colorBold, colorReset)
		for _, v := range p.Verify {
			fmt.Fprintf(w, "  %s\n", describeVerify(v))
		}
	}
}

func describeStep(s profile.StepSpec) string {
	target := s.Key + " " + s.ValueName
	if s.Remove {
		return "remove " + target
	}
	return fmt.Sprintf("set %s = %v (%s)", target, s.Value, s.Type)
}

func describeUnit(u profile.UnitSpec) string {
	var parts []string
	if u.Enabled != nil {
		if *u.Enabled {
			parts = append(parts, "enabled")
		} else {
			parts = append(parts, "disabled")
		}
	}
	if u.Active != nil {
		if *u.Active {
			parts = append(parts, "active")
		} else {
			parts = append(parts, "stopped")
		}
	}
	return strings.Join(parts, ", ")
}

func describeVerify(v profile.VerifySpec) string {
	target := v.Key + " " + v.ValueName
	out := ""
	if v.Absent {
		out = target + " absent"
	} else {
		out = fmt.Sprintf("%s = %v (%s)", target, v.Value, v.Type)
	}
	if v.Guard != "" {
		out += fmt.Sprintf(" %s[guard: %s]%s", colorGray, v.Guard, colorReset)
	}
	return out
}

func displayPath(p *profile.Profile) string {
	if p.Path == "" {
		return "builtin"
	}
	return p.Path
}
