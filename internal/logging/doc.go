// Package logging builds the slog loggers tunectl runs with.
//
// Terminal output goes through [Handler], a single-line colorized text
// handler; files and pipes get JSON via [NewJSONHandler]; both can run
// together through [NewMultiHandler]. Two levels extend the standard
// slog set:
//
//   - [LevelSuccess] sits between Info and Warn, so applied mutations
//     and completed restores stay visible when informational chatter is
//     filtered out.
//   - [LevelTrace] sits below Debug for normal-control-flow noise such
//     as "value absent, returning default".
//
// A configured logger comes from [New]:
//
//	logger := logging.New(logging.Config{
//		Level:  slog.LevelInfo,
//		Format: logging.FormatText,
//		Output: os.Stderr,
//	})
//	logger.Log(ctx, logging.LevelSuccess, "value written", "key", key)
//
// Tests capture log lines through the testing framework with [ForTest],
// and [NewDiscard] silences a component entirely. Loggers travel across
// package boundaries inside a context via [NewContext] and [FromContext].
package logging
