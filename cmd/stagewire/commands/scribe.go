package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/link"
	"github.com/lumenstage/stagewire/pkg/scribe"
)

var (
	flagScribeHub      string
	flagScribeMinChars int
	flagScribeContext  time.Duration
	flagScribePace     time.Duration
)

var scribeCmd = &cobra.Command{
	Use:   "scribe [transcript-file]",
	Short: "Publish transcript chunks from stdin or a file",
	Long: `Publish recognized-speech chunks onto the hub, one line at a time.

With no argument, lines are read from stdin as they arrive, standing in
for a live transcription engine. With a file argument, lines are read
from the file; add --pace to replay them with a fixed pause between
chunks, simulating live speech.

Each published chunk carries an incrementing chunk id plus the rolling
context window of recent chunks.

Examples:
  engine | stagewire scribe
  stagewire scribe session.txt --pace 2s
  stagewire scribe --min-chars 10 < script.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScribe,
}

func init() {
	scribeCmd.Flags().StringVar(&flagScribeHub, "hub", "", "hub endpoint (default ws://127.0.0.1:5555/ws)")
	scribeCmd.Flags().IntVar(&flagScribeMinChars, "min-chars", 0,
		"skip chunks shorter than this many characters (default 5)")
	scribeCmd.Flags().DurationVar(&flagScribeContext, "context", 0,
		"rolling context window horizon (default 1m)")
	scribeCmd.Flags().DurationVar(&flagScribePace, "pace", 0,
		"pause between file chunks; 0 publishes as fast as the pipeline accepts")
	rootCmd.AddCommand(scribeCmd)
}

func runScribe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("hub") {
		settings.Hub.URL = flagScribeHub
	}
	minChars := settings.Scribe.MinChars
	if cmd.Flags().Changed("min-chars") {
		minChars = flagScribeMinChars
	}
	horizon := time.Duration(settings.Scribe.ContextSec * float64(time.Second))
	if cmd.Flags().Changed("context") {
		horizon = flagScribeContext
	}

	transcriber, err := newTranscriber(args)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	client := link.Dial(settings.linkConfig(envelope.SourceScribe, envelope.RoleDual))
	defer client.Close()

	svc := &scribe.Service{
		Link:        client,
		Transcriber: transcriber,
		MinChars:    minChars,
		Window:      scribe.NewWindow(horizon, 0),
	}
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newTranscriber picks the chunk source: stdin, a file, or a paced
// replay of a file.
func newTranscriber(args []string) (scribe.Transcriber, error) {
	if len(args) == 0 {
		return scribe.NewLines(os.Stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	if flagScribePace <= 0 {
		return scribe.NewLines(f), nil
	}

	// Paced mode replays the whole file on a timer, so it is read up
	// front and closed here.
	defer f.Close()
	var script []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if text := strings.TrimSpace(sc.Text()); text != "" {
			script = append(script, text)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return &scribe.Replay{Script: script, Interval: flagScribePace}, nil
}
