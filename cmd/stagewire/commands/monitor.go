package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/link"
)

var (
	flagMonitorHub    string
	flagMonitorFilter string
	flagMonitorJSON   bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch broadcast envelopes from a terminal",
	Long: `Subscribe to the hub and print every broadcast envelope as it arrives.

--filter takes a jq predicate evaluated against each envelope; only
envelopes for which it yields a truthy value are printed. --json switches
from the styled one-line summary to raw envelope JSON, one per line.

Examples:
  stagewire monitor
  stagewire monitor --filter '.source == "classify"'
  stagewire monitor --filter '.type == "intent" and .data.confidence == "high"'
  stagewire monitor --json | jq .data`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&flagMonitorHub, "hub", "", "hub endpoint (default ws://127.0.0.1:5555/ws)")
	monitorCmd.Flags().StringVar(&flagMonitorFilter, "filter", "", "jq predicate selecting envelopes to print")
	monitorCmd.Flags().BoolVar(&flagMonitorJSON, "json", false, "print raw envelope JSON")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("hub") {
		settings.Hub.URL = flagMonitorHub
	}

	var query *gojq.Query
	if flagMonitorFilter != "" {
		query, err = gojq.Parse(flagMonitorFilter)
		if err != nil {
			return fmt.Errorf("invalid filter %q: %w", flagMonitorFilter, err)
		}
	}

	ctx, stop := signalContext()
	defer stop()

	client := link.Dial(settings.linkConfig("monitor", envelope.RoleSubscriber))
	defer client.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-client.Receive():
			if !ok {
				return errors.New("monitor: link closed")
			}
			if query != nil && !matchEnvelope(query, env) {
				continue
			}
			if flagMonitorJSON {
				if frame, err := env.Encode(); err == nil {
					fmt.Println(string(frame))
				}
				continue
			}
			fmt.Println(formatEnvelope(env))
		}
	}
}

// matchEnvelope evaluates the jq predicate against the envelope's JSON
// form. The envelope passes when the first query result is truthy (jq
// semantics: anything but false and null). Query errors drop the
// envelope rather than the monitor.
func matchEnvelope(query *gojq.Query, env *envelope.Envelope) bool {
	frame, err := env.Encode()
	if err != nil {
		return false
	}
	var m map[string]any
	if err := json.Unmarshal(frame, &m); err != nil {
		return false
	}
	iter := query.Run(m)
	v, ok := iter.Next()
	if !ok {
		return false
	}
	if _, isErr := v.(error); isErr {
		return false
	}
	return v != nil && v != false
}

// Monitor line styling: one color per envelope family, in the manner of
// a terminal log tail.
var (
	styleTime     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	styleSource   = lipgloss.NewStyle().Bold(true).Width(9)
	styleType     = lipgloss.NewStyle().Width(16)
	styleSpeech   = lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff"))
	styleIntent   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff9f"))
	styleCommand  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f0883e"))
	styleRender   = lipgloss.NewStyle().Foreground(lipgloss.Color("#d2a8ff"))
	styleStatus   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	styleError    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff7b72"))
	styleFallback = lipgloss.NewStyle()
)

func typeStyle(t envelope.Type) lipgloss.Style {
	switch t {
	case envelope.TypeTranscript:
		return styleSpeech
	case envelope.TypeIntent, envelope.TypeKeywords:
		return styleIntent
	case envelope.TypeCommand:
		return styleCommand
	case envelope.TypeRenderStart, envelope.TypeRenderProgress, envelope.TypeRenderComplete:
		return styleRender
	case envelope.TypeStatus, envelope.TypePing, envelope.TypePong, envelope.TypeConfig:
		return styleStatus
	case envelope.TypeError, envelope.TypeRenderError:
		return styleError
	default:
		return styleFallback
	}
}

func formatEnvelope(env *envelope.Envelope) string {
	at := env.Received
	if at.IsZero() {
		at = env.Timestamp
	}
	st := typeStyle(env.Type)
	return strings.Join([]string{
		styleTime.Render(at.Time().Format("15:04:05.000")),
		styleSource.Render(env.Source),
		styleType.Render(st.Render(env.Type.String())),
		st.Render(summarize(env)),
	}, " ")
}

// summarize renders the payload fields a human watching the stream cares
// about, one line per envelope.
func summarize(env *envelope.Envelope) string {
	switch env.Type {
	case envelope.TypeTranscript:
		if p, err := env.Transcript(); err == nil {
			return fmt.Sprintf("#%d %q", p.ChunkID, p.Text)
		}
	case envelope.TypeIntent:
		if p, err := env.Intent(); err == nil {
			s := p.Category + "/" + p.Confidence
			if p.Prompt != "" {
				s += fmt.Sprintf(" %q", p.Prompt)
			}
			return s
		}
	case envelope.TypeKeywords:
		if p, err := env.Keywords(); err == nil {
			s := fmt.Sprintf("topics=%v sentiment=%s", p.Topics, p.Sentiment)
			if len(p.Questions) > 0 {
				s += fmt.Sprintf(" questions=%v", p.Questions)
			}
			if p.Reply != "" {
				s += fmt.Sprintf(" reply=%q", p.Reply)
			}
			return s
		}
	case envelope.TypeCommand:
		if p, err := env.Command(); err == nil {
			s := p.Action
			if prompt := p.Params["prompt"]; prompt != "" {
				s += fmt.Sprintf(" %q", prompt)
			}
			return s
		}
	case envelope.TypeConfig:
		if p, err := env.Config(); err == nil {
			target := p.Service
			if target == "" {
				target = "*"
			}
			return fmt.Sprintf("%s %s=%v", target, p.Key, p.Value)
		}
	case envelope.TypeStatus:
		if p, err := env.Status(); err == nil {
			if len(p.Info) > 0 {
				return fmt.Sprintf("%s %v", p.State, p.Info)
			}
			return p.State
		}
	case envelope.TypeError:
		if p, err := env.ErrorInfo(); err == nil {
			return p.Error
		}
	case envelope.TypePong:
		if p, err := env.Pong(); err == nil {
			return fmt.Sprintf("peers=%v", p.Peers)
		}
	case envelope.TypeRenderStart:
		if p, err := env.RenderStart(); err == nil {
			return fmt.Sprintf("%s %q", p.RequestID, p.Prompt)
		}
	case envelope.TypeRenderProgress:
		if p, err := env.RenderProgress(); err == nil {
			return fmt.Sprintf("%s %.0f%%", p.RequestID, p.Percent)
		}
	case envelope.TypeRenderComplete:
		if p, err := env.RenderResult(); err == nil {
			return fmt.Sprintf("%s %s (%dms)", p.RequestID, p.ImagePath, p.ElapsedMS)
		}
	case envelope.TypeRenderError:
		if p, err := env.RenderFailure(); err == nil {
			return fmt.Sprintf("%s %s", p.RequestID, p.Error)
		}
	}
	return string(env.Data)
}
