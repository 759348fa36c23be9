// Package main is the entrypoint of Tidarr.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tidarr/internal/cfg"
)

// main is the main entrypoint of the program (duh!).
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cfg.InitCommands(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing commands: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
