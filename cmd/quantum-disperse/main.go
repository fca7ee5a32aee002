package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantumauth-io/quantum-go-utils/log"

	quantumdisperse "github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := quantumdisperse.Run(ctx, quantumdisperse.BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	}); err != nil {
		log.Error("quantum-disperse failed", "error", err)
		stop()
		os.Exit(1)
	}
}
