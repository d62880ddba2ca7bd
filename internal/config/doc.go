// Package config describes tunectl's own settings file, which is a
// different thing from tuning profiles: profiles say what to change,
// this file says where tunectl keeps its state and how carefully to
// change it.
//
// The file is YAML, by default ~/.config/tunectl/config.yaml:
//
//	version: 1
//	hive_path: /var/lib/tunectl/hive.db
//	snapshot_dir: /var/lib/tunectl/snapshots
//	snapshot_retention: 5
//	backup_policy: require   # or best-effort
//	service_tool: systemctl
//	profile_paths:
//	  - /etc/tunectl/profiles
//	journal_path: ~/.local/state/tunectl/journal.jsonl
//
// [Init] wires Viper once at startup; [Load] then reads an explicit path
// or falls back through the search locations to built-in defaults. Every
// loaded configuration passes [Validate], which reports all problems at
// once rather than the first one it meets.
//
// Any key can be overridden from the environment with the TUNECTL_
// prefix, e.g. TUNECTL_BACKUP_POLICY=best-effort, and
// TUNECTL_CONFIG_DIR redirects the config file search itself.
package config
