// Package cmd holds build metadata injected at link time.
package cmd

// Set via -ldflags on release builds; the defaults identify a local build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
