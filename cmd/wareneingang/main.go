package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/wareneingang/cmd/wareneingang/cli"
	"github.com/odyssey-erp/wareneingang/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping cli startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := cli.Options{
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Bootstrap: cli.Bootstrap,
	}
	if err := cli.Execute(ctx, opts, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}
