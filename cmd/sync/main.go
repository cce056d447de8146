// Package main runs a single forced resync of the tracked roster and exits.
// Intended for cron-style batch refreshes when the long-running server is not
// deployed.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agent-trust-lab/internal/app"
	"agent-trust-lab/internal/config"
	"agent-trust-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	logger := log.New(os.Stdout, "[sync] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Tracked) == 0 {
		logger.Println("No tracked identities configured, nothing to do")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{UseMemory: *useMemory, Logger: logger})
	if err != nil {
		logger.Fatalf("Failed to build application: %v", err)
	}
	defer a.Close()

	start := time.Now()
	failures := 0
	for i, id := range cfg.Tracked {
		if ctx.Err() != nil {
			logger.Fatalf("Interrupted after %d of %d identities", i, len(cfg.Tracked))
		}
		if _, err := a.Verifier.Verify(ctx, verification.Request{
			Identifier: id,
			Force:      true,
			Class:      verification.TTLBatch,
		}); err != nil {
			logger.Printf("Failed to resync %s: %v", id, err)
			failures++
		}
		if i < len(cfg.Tracked)-1 {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
	}

	logger.Printf("Resync complete in %v: %d ok, %d failed",
		time.Since(start).Round(time.Millisecond), len(cfg.Tracked)-failures, failures)
	if failures > 0 {
		os.Exit(1)
	}
}
