package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "stagewire",
	Short: "Real-time message bridge for live media-AI pipelines",
	Long: `stagewire - a WebSocket hub plus the services that speak through it.

Pipeline services (speech transcription, intent classification, image
rendering) exchange JSON envelopes through a central hub. External
consumers subscribe to the same endpoint and observe every event as it
happens; a slow consumer never stalls the rest.

A typical session runs each piece in its own terminal:

  stagewire bridge                   # the hub everything dials
  stagewire scribe < script.txt      # transcripts from stdin
  stagewire classify                 # intents + keywords
  stagewire trigger                  # debounced render commands
  stagewire render                   # images via ComfyUI or the stub
  stagewire monitor                  # watch the whole stream

Settings load from --config or <user-config-dir>/stagewire/stagewire.yaml;
command-line flags override file values. Every service reconfigures live
through broadcast config envelopes (see 'stagewire send').`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		// Logs go to stderr so monitor/gallery output stays pipeable.
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"settings file (default <user-config-dir>/stagewire/stagewire.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
}

// signalContext returns a context canceled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return flagVerbose
}
