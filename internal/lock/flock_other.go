//go:build !unix

package lock

import "os"

// Advisory flock is unavailable here; sessions are assumed single-instance.
func flockExclusive(f *os.File) error { return nil }

func funlock(f *os.File) error { return nil }
