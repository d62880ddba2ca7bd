// Package errors defines how tunectl commands fail.
//
// Commands return an [ExitError] carrying the process exit status and an
// optional suggestion; anything else maps to ExitUser. Sentinels such as
// [ErrUnknownProfile] are matched with [Is] across package boundaries.
// Wrapping, formatting, and inspection are delegated to
// github.com/cockroachdb/errors, whose helpers are re-exported so command
// code imports exactly one errors package.
//
// A failing command returns:
//
//	return errors.NewSystemError(err, "Check that the hive is writable")
//
// and main exits with:
//
//	os.Exit(errors.ExitCode(err))
package errors
