package profile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands/flags"
	"github.com/skovgaard/tunectl/internal/cli"
	"github.com/skovgaard/tunectl/internal/editor"
	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/internal/profile"
	"github.com/skovgaard/tunectl/pkg/fileutil"
)

func init() {
	Cmd.AddCommand(editCmd)
}

var editCmd = &cobra.Command{
	Use:   "edit <profile>",
	Short: "Open a profile in $EDITOR",
	Long: `Open a profile file in your preferred editor and validate it
after the editor exits.

The argument is a profile name or a path to a profile file. Editing the
built-in baseline profile first writes a copy into the profile
directory; the copy shadows the embedded one from then on.

The editor comes from $EDITOR, then $VISUAL, then nano, then vi.
Validation problems found after editing are reported but do not fail
the command, since the file is already saved.`,
	Example: `  # Edit a named profile
  tunectl profile edit lowlat

  # Customize the built-in baseline
  tunectl profile edit balanced`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	return runEditWithWriter(args[0], cmd.OutOrStdout())
}

func runEditWithWriter(name string, w io.Writer) error {
	cfg := flags.GetConfig()

	path, err := profile.FindPath(name, cfg.ProfilePaths)
	switch {
	case err == nil:
	case errors.Is(err, profile.ErrBuiltinEmbedded):
		path, err = materializeBuiltin(cfg.ProfilePaths)
		if err != nil {
			return errors.Wrap(err, "copying builtin profile")
		}
		fmt.Fprintf(w, "Copied the builtin profile to %s\n", path)
	case errors.Is(err, errors.ErrUnknownProfile):
		return errors.NewUserError(err, "Run: tunectl profile list")
	default:
		return err
	}

	fmt.Fprintf(w, "Opening %s in %s\n", path, editor.Detect())
	if err := editor.Open(path); err != nil {
		return errors.Wrap(err, "opening editor")
	}

	// The file is already saved; problems are reported, not fatal.
	reportAfterEdit(path, w)
	return nil
}

// materializeBuiltin writes the embedded baseline profile into the first
// profile directory so it can be edited like any other file.
func materializeBuiltin(dirs []string) (string, error) {
	if len(dirs) == 0 {
		return "", errors.New("no profile directory configured")
	}
	dir := dirs[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating %s", dir)
	}

	path := filepath.Join(dir, profile.BuiltinName+".yaml")
	if err := fileutil.AtomicWriteFile(path, profile.BuiltinSource(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func reportAfterEdit(path string, w io.Writer) {
	p, err := profile.Load(path)
	if err != nil {
		fmt.Fprintf(w, "%s!%s %s no longer loads: %v\n", colorYellow, colorReset, path, err)
		return
	}

	errs := profile.Validate(p)
	if len(errs) == 0 {
		if _, cerr := p.CompileTiers(cli.Guards()); cerr != nil {
			errs = append(errs, cerr)
		}
	}

	if len(errs) == 0 {
		fmt.Fprintf(w, "%s✓%s %s is valid\n", colorGreen, colorReset, p.Name)
		return
	}

	fmt.Fprintf(w, "%s!%s %s has %d problem(s):\n", colorYellow, colorReset, p.Name, len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
