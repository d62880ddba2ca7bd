package profile

import (
	_ "embed"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/skovgaard/tunectl/internal/errors"
	"github.com/skovgaard/tunectl/pkg/fileutil"
)

// maxProfileSize caps profile files to keep a stray path from exhausting
// memory.
const maxProfileSize = 1 << 20

// exts are the recognized profile file extensions, in lookup order.
var exts = []string{".yaml", ".yml", ".toml"}

//go:embed builtin.yaml
var builtinYAML []byte

// ErrUnknownFormat indicates a profile path with an unrecognized
// extension.
var ErrUnknownFormat = errors.New("unknown profile format")

// Load reads and parses the profile at path. The format follows the file
// extension.
func Load(path string) (*Profile, error) {
	data, err := fileutil.ReadFileWithLimit(path, maxProfileSize)
	if err != nil {
		return nil, errors.Wrapf(err, "reading profile %s", path)
	}

	p, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing profile %s", path)
	}

	p.Path = path
	return p, nil
}

// Parse decodes profile data in the format named by ext (".yaml", ".yml",
// or ".toml").
func Parse(data []byte, ext string) (*Profile, error) {
	var p Profile

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, errors.Wrap(err, "decoding YAML")
		}
	case ".toml":
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, errors.Wrap(err, "decoding TOML")
		}
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", ext)
	}

	return &p, nil
}

// Builtin returns the embedded baseline profile.
func Builtin() (*Profile, error) {
	p, err := Parse(builtinYAML, ".yaml")
	if err != nil {
		// The embedded profile ships with the binary; failing to parse
		// it is a build defect.
		return nil, errors.Wrap(err, "parsing builtin profile")
	}
	return p, nil
}

// BuiltinSource returns the embedded baseline profile file verbatim, for
// writing an editable copy to disk.
func BuiltinSource() []byte {
	return slices.Clone(builtinYAML)
}

// ErrBuiltinEmbedded indicates an operation that needs an on-disk file
// was pointed at the embedded builtin profile.
var ErrBuiltinEmbedded = errors.New("builtin profile is embedded in the binary")

// FindPath resolves nameOrPath to an on-disk profile file without parsing
// it, so a broken profile can still be located for editing. The builtin
// name resolves to ErrBuiltinEmbedded unless a file shadows it.
func FindPath(nameOrPath string, dirs []string) (string, error) {
	if info, err := os.Stat(nameOrPath); err == nil && !info.IsDir() {
		return nameOrPath, nil
	}

	for _, dir := range dirs {
		for _, ext := range exts {
			path := filepath.Join(dir, nameOrPath+ext)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	if nameOrPath == BuiltinName {
		return "", ErrBuiltinEmbedded
	}

	return "", errors.Wrapf(errors.ErrUnknownProfile, "%q (searched %d dirs)", nameOrPath, len(dirs))
}

// Find resolves nameOrPath to a profile. A value that points at an
// existing file loads directly; otherwise the search dirs are scanned for
// <name>.yaml, <name>.yml, or <name>.toml in order, and the builtin name
// resolves to the embedded profile.
func Find(nameOrPath string, dirs []string) (*Profile, error) {
	if info, err := os.Stat(nameOrPath); err == nil && !info.IsDir() {
		return Load(nameOrPath)
	}

	for _, dir := range dirs {
		for _, ext := range exts {
			path := filepath.Join(dir, nameOrPath+ext)
			if _, err := os.Stat(path); err == nil {
				return Load(path)
			}
		}
	}

	if nameOrPath == BuiltinName {
		return Builtin()
	}

	return nil, errors.Wrapf(errors.ErrUnknownProfile, "%q (searched %d dirs)", nameOrPath, len(dirs))
}

// List collects the profiles available in dirs plus the builtin, sorted
// by name. Files that fail to parse are skipped; on-disk profiles shadow
// the builtin name.
func List(dirs []string) []Summary {
	byName := make(map[string]Summary)

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := filepath.Ext(entry.Name())
			if !slices.Contains(exts, strings.ToLower(ext)) {
				continue
			}

			p, err := Load(filepath.Join(dir, entry.Name()))
			if err != nil || p.Name == "" {
				continue
			}
			if _, taken := byName[p.Name]; taken {
				// Earlier dirs take precedence.
				continue
			}
			byName[p.Name] = Summary{Name: p.Name, Description: p.Description, Path: p.Path}
		}
	}

	if _, taken := byName[BuiltinName]; !taken {
		if b, err := Builtin(); err == nil {
			byName[BuiltinName] = Summary{Name: b.Name, Description: b.Description, Path: "(builtin)"}
		}
	}

	out := make([]Summary, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Summary) int {
		return strings.Compare(a.Name, b.Name)
	})

	return out
}
