// Package main is the entry point for the tunectl CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/skovgaard/tunectl/cmd/tunectl/commands"
	"github.com/skovgaard/tunectl/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(errors.ExitCode(err))
	}
}
