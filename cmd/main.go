package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}

	a.Log.Info("Starting", "http_addr", a.Cfg.HTTPAddr, "run_server", a.Cfg.RunServer, "run_worker", a.Cfg.RunWorker, "queue_backend", a.Cfg.Queue.Backend)
	runErr := a.Run(ctx)
	if runErr != nil {
		a.Log.Error("Exited with error", "error", runErr)
	} else {
		a.Log.Info("Shut down cleanly")
	}
	a.Close()
	if runErr != nil {
		os.Exit(1)
	}
}
