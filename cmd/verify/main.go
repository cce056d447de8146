// Package main verifies a single identity and prints the resulting record as
// JSON. Useful for ad-hoc checks and debugging source adapters.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"agent-trust-lab/internal/app"
	"agent-trust-lab/internal/config"
	"agent-trust-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	force := flag.Bool("force", false, "Bypass the record freshness check")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	logger := log.New(os.Stderr, "[verify] ", log.LstdFlags)

	if flag.NArg() != 1 {
		logger.Fatal("usage: verify [flags] <identifier>")
	}
	identifier := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{UseMemory: *useMemory, Logger: logger})
	if err != nil {
		logger.Fatalf("Failed to build application: %v", err)
	}
	defer a.Close()

	record, err := a.Verifier.Verify(ctx, verification.Request{
		Identifier: identifier,
		Force:      *force,
	})
	if err != nil {
		var persistErr *verification.PersistenceError
		if errors.As(err, &persistErr) {
			logger.Printf("Warning: record could not be persisted: %v", persistErr.Err)
		} else {
			logger.Fatalf("Verification failed: %v", err)
		}
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		logger.Fatalf("Failed to encode record: %v", err)
	}
	fmt.Println(string(out))
}
