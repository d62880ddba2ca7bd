// Package flags shares state between the root command and noun subpackages.
// This package exists to avoid import cycles between the root command and
// the snapshot and profile command groups.
package flags

import "github.com/skovgaard/tunectl/internal/config"

// cfg holds the configuration loaded by the root command.
var cfg *config.Config

// GetConfig returns the configuration loaded at startup. Commands must not
// mutate the returned value.
func GetConfig() *config.Config {
	return cfg
}

// SetConfig stores the loaded configuration. The root command calls this
// after config loading; tests call it to inject scratch configurations.
func SetConfig(c *config.Config) {
	cfg = c
}
