package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tutorlab/tutor-rag/internal/cli"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, version, buildTime)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
