package commands

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenstage/stagewire/pkg/bridge"
)

var (
	flagBridgeAddr        string
	flagBridgeIdleTimeout time.Duration
	flagBridgeBuffer      int
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the central broadcast hub",
	Long: `Run the hub every service and subscriber connects to.

The hub stamps each valid envelope with a receipt time and broadcasts it
to every other connection. Pings are answered directly with the current
peer list; everything else is relayed. Subscribers that fall behind lose
their oldest queued envelopes, never anyone else's.

Examples:
  stagewire bridge
  stagewire bridge --addr :7000
  stagewire bridge --idle-timeout 90s`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVar(&flagBridgeAddr, "addr", "", "listen address (default :5555)")
	bridgeCmd.Flags().DurationVar(&flagBridgeIdleTimeout, "idle-timeout", 0,
		"close connections silent for this long (default 45s)")
	bridgeCmd.Flags().IntVar(&flagBridgeBuffer, "send-buffer", 0,
		"per-connection outbound queue length (default 256)")
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	addr := settings.Hub.addr()
	if cmd.Flags().Changed("addr") {
		addr = flagBridgeAddr
	}

	hub := &bridge.Hub{
		IdleTimeout: flagBridgeIdleTimeout,
		SendBuffer:  flagBridgeBuffer,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	ctx, stop := signalContext()
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("bridge: shutting down")
		hub.Close()
	}()

	slog.Info("bridge: listening", "addr", ln.Addr())
	return hub.Serve(ln)
}
