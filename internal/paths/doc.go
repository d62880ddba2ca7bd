// Package paths centralizes filesystem locations for tunectl artifacts.
//
// All defaults follow the XDG base directory specification via
// github.com/adrg/xdg:
//
//	<ConfigHome>/tunectl/              tool configuration and profiles
//	<DataHome>/tunectl/hive.db         the hive database
//	<DataHome>/tunectl/snapshots/      snapshot artifacts
//	<StateHome>/tunectl/journal.jsonl  session journal
//
// Every default can be overridden through the config package; these
// functions only decide where things live when nothing else does.
package paths
