package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"feedsky/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.ExecuteContext(ctx)
	stop()

	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).ErrorContext(ctx, "Command failed",
			"error", err,
			"args", os.Args[1:])

		os.Exit(1)
	}
}
