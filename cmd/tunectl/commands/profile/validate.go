package profile

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/cli"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/profile"
)

func init() {
	Cmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate <profile>",
	Short: "Validate a profile without applying it",
	Long: `Validate a profile's structure and compile its tiers without
touching the hive.

Validation reports every problem it finds, not just the first. The
compile pass additionally resolves guard expressions against the
built-in guard names, catching typos that structural checks let
through.`,
	Example: `  # Validate a profile file before shipping it
  tunectl profile validate ./my-tuning.yaml

  # Validate a named profile
  tunectl profile validate balanced`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(_ *cobra.Command, args []string) error {
	return runValidateWithWriter(args[0], os.Stdout)
}

func runValidateWithWriter(name string, w io.Writer) error {
	cfg := flags.GetConfig()

	p, err := profile.Find(name, cfg.ProfilePaths)
	if err != nil {
		if errors.Is(err, errors.ErrUnknownProfile) {
			return errors.NewUserError(err, "Run: tunectl profile list")
		}
		return errors.Wrapf(err, "loading profile %s", name)
	}

	errs := profile.Validate(p)
	if len(errs) == 0 {
		if _, cerr := p.CompileTiers(cli.Guards()); cerr != nil {
			errs = append(errs, cerr)
		}
	}

	if len(errs) == 0 {
		fmt.Fprintf(w, "%s✓%s %s is valid (%d tier(s), %d undo key(s))\n",
			colorGreen, colorReset, p.Name, len(p.Tiers), len(p.Undo.Keys))
		return nil
	}

	fmt.Fprintf(w, "%s✗%s %s has %d problem(s):\n", colorRed, colorReset, name, len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return errors.NewExitError(nil, errors.ExitUser)
}
