// Package main is the entry point for the stagewire CLI.
//
// Usage:
//
//	stagewire [flags] <command> [args]
//
// Commands:
//
//	bridge     - Run the central broadcast hub
//	scribe     - Publish transcript chunks from stdin or a file
//	classify   - Classify transcripts into intents and keywords
//	trigger    - Debounce image intents into render commands
//	render     - Turn render commands into images
//	monitor    - Watch broadcast envelopes from a terminal
//	send       - Publish a one-off envelope for debugging
//	gallery    - Inspect indexed render jobs
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/lumenstage/stagewire/cmd/stagewire/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
