package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/link"
)

var (
	flagSendHub    string
	flagSendSource string
)

var sendCmd = &cobra.Command{
	Use:   "send <type> [data-json]",
	Short: "Inject a single envelope into the hub",
	Long: `Connect to the hub, send one envelope, and disconnect.

The first argument is the envelope type tag; the optional second argument
is the data payload as a JSON object.

Examples:
  stagewire send ping
  stagewire send transcript '{"text":"draw a red fox","chunk_id":1}'
  stagewire send config '{"service":"trigger","key":"cooldown_sec","value":5}'
  stagewire send command '{"action":"render","params":{"prompt":"a quiet harbor at dawn"}}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&flagSendHub, "hub", "", "hub endpoint (default ws://127.0.0.1:5555/ws)")
	sendCmd.Flags().StringVar(&flagSendSource, "source", envelope.SourceClient, "source name to send as")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("hub") {
		settings.Hub.URL = flagSendHub
	}

	typ := envelope.ParseType(args[0])
	if typ == envelope.TypeUnknown {
		return fmt.Errorf("unknown envelope type %q", args[0])
	}

	var data json.RawMessage
	if len(args) == 2 {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal([]byte(args[1]), &probe); err != nil {
			return fmt.Errorf("data must be a JSON object: %w", err)
		}
		data = json.RawMessage(args[1])
	}

	env := &envelope.Envelope{
		Type:      typ,
		Source:    flagSendSource,
		Data:      data,
		ID:        envelope.NewIDGen(flagSendSource).Next(),
		Timestamp: envelope.Now(),
	}

	// Run the frame through the same validation the hub applies, so a
	// rejectable envelope fails here instead of being dropped remotely.
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	if _, err := envelope.Decode(frame); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	client := link.Dial(settings.linkConfig(flagSendSource, envelope.RoleProducer))

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitOpen(waitCtx); err != nil {
		client.Close()
		return fmt.Errorf("connect %s: %w", settings.Hub.url(), err)
	}

	if err := client.Send(env); err != nil {
		client.Close()
		return err
	}
	if err := client.Close(); err != nil {
		return err
	}

	fmt.Printf("sent %s (%s)\n", env.Type, env.ID)
	return nil
}
