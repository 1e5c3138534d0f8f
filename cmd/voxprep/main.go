// Package main is the entry point for the voxprep CLI.
//
// Usage:
//
//	voxprep <command> [flags]
//
// Commands:
//
//	build-cache      - Decode, trim and cache every source file
//	update-cache     - Cache an additional source directory
//	generate-inputs  - Build per-speaker train/test features and the unified archive
//	inference-inputs - Build normalized features of one speaker for inference
//	list             - Show the cached speakers
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RyanBlaney/voxprep/cmd/voxprep/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
