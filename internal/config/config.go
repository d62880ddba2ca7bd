// Package config loads and validates tunectl's own configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/skovgaard/tunectl/internal/paths"
)

// AppName is the application name used for config file naming.
const AppName = "tunectl"

// Backup policy names accepted in configuration.
const (
	PolicyRequire    = "require"
	PolicyBestEffort = "best-effort"
)

// Config is the top-level configuration structure.
type Config struct {
	Version           int      `mapstructure:"version" yaml:"version"`
	HivePath          string   `mapstructure:"hive_path" yaml:"hive_path"`
	SnapshotDir       string   `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
	SnapshotRetention int      `mapstructure:"snapshot_retention" yaml:"snapshot_retention"`
	BackupPolicy      string   `mapstructure:"backup_policy" yaml:"backup_policy"`
	ServiceTool       string   `mapstructure:"service_tool" yaml:"service_tool"`
	ProfilePaths      []string `mapstructure:"profile_paths" yaml:"profile_paths"`
	JournalPath       string   `mapstructure:"journal_path" yaml:"journal_path"`
}

// Init resets Viper and registers defaults, search paths, and the
// TUNECTL_ environment prefix. Call it once at startup, before Load.
func Init() {
	viper.Reset()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// The working directory wins over the user config dir.
	viper.AddConfigPath(".")
	if dir := os.Getenv("TUNECTL_CONFIG_DIR"); dir != "" {
		viper.AddConfigPath(dir)
	} else {
		viper.AddConfigPath(filepath.Join(paths.ConfigHome(), AppName))
	}

	viper.SetEnvPrefix("TUNECTL")
	viper.AutomaticEnv()

	viper.SetDefault("version", 1)
	viper.SetDefault("hive_path", paths.DefaultHivePath())
	viper.SetDefault("snapshot_dir", paths.DefaultSnapshotDir())
	viper.SetDefault("snapshot_retention", 5)
	viper.SetDefault("backup_policy", PolicyRequire)
	viper.SetDefault("service_tool", "systemctl")
	viper.SetDefault("profile_paths", paths.DefaultProfileDirs())
	viper.SetDefault("journal_path", paths.DefaultJournalPath())
}

// Load reads and validates configuration. An explicit path must exist;
// with path empty the search locations are tried and the defaults serve
// when no file turns up.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil && !usableWithDefaults(err, path) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, fmt.Errorf("validating config: %w", errs[0])
	}

	return &cfg, nil
}

// usableWithDefaults reports whether a read failure may be ignored: only
// a missing file during an implicit search. SetConfigFile bypasses
// viper's not-found type, so an explicit miss surfaces as a plain fs
// error and still fails.
func usableWithDefaults(err error, path string) bool {
	if path != "" {
		return false
	}
	_, notFound := err.(viper.ConfigFileNotFoundError)
	return notFound
}
