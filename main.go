package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/fareprobe/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := cmd.Execute(ctx)
	stop()
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		// Interrupted runs exit cleanly.
	default:
		os.Exit(1)
	}
}
