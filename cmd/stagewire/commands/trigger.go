package commands

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/intent"
	"github.com/lumenstage/stagewire/pkg/link"
	"github.com/lumenstage/stagewire/pkg/trigger"
)

var (
	flagTriggerHub      string
	flagTriggerCooldown time.Duration
	flagTriggerMinConf  string
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Debounce image intents into render commands",
	Long: `Consume intent broadcasts and emit render commands, debounced so a
burst of similar utterances produces a single command.

An accepted image intent opens a cooldown window; intents arriving inside
it update the recorded prompt but emit nothing. Machine transitions are
announced as status envelopes.

Examples:
  stagewire trigger
  stagewire trigger --cooldown 30s --min-confidence high`,
	Args: cobra.NoArgs,
	RunE: runTrigger,
}

func init() {
	triggerCmd.Flags().StringVar(&flagTriggerHub, "hub", "", "hub endpoint (default ws://127.0.0.1:5555/ws)")
	triggerCmd.Flags().DurationVar(&flagTriggerCooldown, "cooldown", 0,
		"suppression window after each command (default 10s)")
	triggerCmd.Flags().StringVar(&flagTriggerMinConf, "min-confidence", "",
		"lowest confidence that may trigger: low, medium or high (default medium)")
	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("hub") {
		settings.Hub.URL = flagTriggerHub
	}
	cooldown := time.Duration(settings.Trigger.CooldownSec * float64(time.Second))
	if cmd.Flags().Changed("cooldown") {
		cooldown = flagTriggerCooldown
	}
	minConf := settings.Trigger.MinConfidence
	if cmd.Flags().Changed("min-confidence") {
		minConf = flagTriggerMinConf
	}
	gate := intent.Medium
	if minConf != "" {
		gate = intent.ParseConfidence(minConf)
	}

	ctx, stop := signalContext()
	defer stop()

	client := link.Dial(settings.linkConfig(envelope.SourceTrigger, envelope.RoleDual))
	defer client.Close()

	svc := &trigger.Service{
		Link:    client,
		Machine: trigger.NewMachine(cooldown, gate),
	}
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
