package commands

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/lumenstage/stagewire/pkg/classify"
	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/link"
)

var (
	flagClassifyHub      string
	flagClassifyWorkers  int
	flagClassifyInterval int
	flagClassifyModel    string
	flagClassifyAgentURL string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify transcripts into intents and keywords",
	Long: `Consume transcript broadcasts, classify each chunk as an image request
or conversation, and broadcast intent and keywords envelopes.

Classification is a deterministic rule engine; an optional conversation
agent adds a short reply to each keywords broadcast. The agent is enabled
when a model is configured (--agent-model or classify.agent.model in the
settings file) and talks to any OpenAI-compatible endpoint; the API key
falls back to $OPENAI_API_KEY and may stay empty for local servers.

Examples:
  stagewire classify
  stagewire classify --interval 3
  stagewire classify --agent-model llama3.2 --agent-url http://127.0.0.1:11434/v1`,
	Args: cobra.NoArgs,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&flagClassifyHub, "hub", "", "hub endpoint (default ws://127.0.0.1:5555/ws)")
	classifyCmd.Flags().IntVar(&flagClassifyWorkers, "workers", 0, "classification workers (default 2)")
	classifyCmd.Flags().IntVar(&flagClassifyInterval, "interval", 0,
		"merge every N transcripts into one classification (default 1)")
	classifyCmd.Flags().StringVar(&flagClassifyModel, "agent-model", "", "conversation agent model")
	classifyCmd.Flags().StringVar(&flagClassifyAgentURL, "agent-url", "", "agent endpoint base URL")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("hub") {
		settings.Hub.URL = flagClassifyHub
	}
	workers := settings.Classify.Workers
	if cmd.Flags().Changed("workers") {
		workers = flagClassifyWorkers
	}
	interval := settings.Classify.ChunkInterval
	if cmd.Flags().Changed("interval") {
		interval = flagClassifyInterval
	}
	agent := settings.Classify.Agent
	if cmd.Flags().Changed("agent-model") {
		agent.Model = flagClassifyModel
	}
	if cmd.Flags().Changed("agent-url") {
		agent.BaseURL = flagClassifyAgentURL
	}

	ctx, stop := signalContext()
	defer stop()

	client := link.Dial(settings.linkConfig(envelope.SourceClassify, envelope.RoleDual))
	defer client.Close()

	svc := &classify.Service{
		Link:      client,
		Responder: newResponder(agent),
		History:   classify.NewHistory(settings.Classify.MaxTurns),
		Workers:   workers,
		Interval:  interval,
		Timeout:   time.Duration(agent.TimeoutMS) * time.Millisecond,
	}
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newResponder builds the agent collaborator, or nil when no model is
// configured.
func newResponder(agent AgentSettings) classify.Responder {
	if agent.Model == "" {
		return nil
	}
	apiKey := agent.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if agent.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(agent.BaseURL))
	}
	oc := openai.NewClient(opts...)
	return &classify.Agent{Client: &oc, Model: agent.Model}
}
