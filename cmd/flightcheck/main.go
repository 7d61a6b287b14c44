// File: cmd/flightcheck/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/flightcheck/cmd"
)

// Allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		var exitErr *cmd.ExitError
		switch {
		case errors.As(err, &exitErr):
			osExit(exitErr.Code)
		case errors.Is(err, context.Canceled):
			osExit(cmd.ExitEnvErr)
		default:
			osExit(1)
		}
	}
}
