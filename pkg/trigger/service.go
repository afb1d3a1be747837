package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/intent"
	"github.com/lumenstage/stagewire/pkg/link"
)

// Service hosts a Machine on a hub link. It consumes intent envelopes,
// emits command envelopes for accepted triggers, and announces machine
// state transitions as status envelopes.
type Service struct {
	Link    *link.Client
	Machine *Machine

	// Now is the clock used for machine observations. Defaults to time.Now.
	Now func() time.Time

	announced State
}

// Run processes envelopes until ctx is canceled or the link closes.
func (s *Service) Run(ctx context.Context) error {
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Machine == nil {
		s.Machine = NewMachine(0, intent.Medium)
	}
	s.sendStatus("ready", map[string]any{
		"cooldown_ms":    s.Machine.Cooldown().Milliseconds(),
		"min_confidence": s.Machine.MinConfidence().String(),
	})

	// The poll tick surfaces cooldown expiry even when no envelopes
	// arrive, so subscribers see the machine return to idle.
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			s.announce()
		case env, ok := <-s.Link.Receive():
			if !ok {
				return link.ErrClosed
			}
			s.handle(env)
		}
	}
}

func (s *Service) handle(env *envelope.Envelope) {
	switch env.Type {
	case envelope.TypeIntent:
		p, err := env.Intent()
		if err != nil {
			slog.Warn("trigger: bad intent payload", "source", env.Source, "err", err)
			return
		}
		s.offer(resultFromPayload(p))
	case envelope.TypeConfig:
		p, err := env.Config()
		if err != nil || (p.Service != "" && p.Service != envelope.SourceTrigger) {
			return
		}
		s.reconfigure(p)
	}
	s.announce()
}

func (s *Service) offer(res intent.Result) {
	cmd, ok := s.Machine.Offer(res, s.Now())
	if !ok {
		return
	}
	params := map[string]string{
		"prompt":     cmd.Prompt,
		"confidence": cmd.Confidence.String(),
	}
	if err := s.Link.Send(envelope.NewCommand(envelope.ActionRender, params)); err != nil {
		slog.Warn("trigger: send command", "err", err)
		return
	}
	slog.Info("trigger: command emitted", "prompt", cmd.Prompt, "confidence", cmd.Confidence)

	// Triggered is instantaneous, so it is announced here rather than
	// waiting for the next observation to catch it.
	s.announced = Triggered
	s.sendStatus(Triggered.String(), map[string]any{"prompt": cmd.Prompt})
}

func (s *Service) reconfigure(p *envelope.Config) {
	switch p.Key {
	case "cooldown_sec":
		sec := p.Float(s.Machine.Cooldown().Seconds())
		s.Machine.SetCooldown(time.Duration(sec * float64(time.Second)))
		slog.Info("trigger: cooldown updated", "cooldown", s.Machine.Cooldown())
	case "min_confidence":
		s.Machine.SetMinConfidence(intent.ParseConfidence(p.Str(s.Machine.MinConfidence().String())))
		slog.Info("trigger: confidence gate updated", "min", s.Machine.MinConfidence())
	}
}

// announce publishes a status envelope when the observed machine state
// differs from the last announced one.
func (s *Service) announce() {
	st := s.Machine.State(s.Now())
	if st == s.announced {
		return
	}
	s.announced = st
	var info map[string]any
	if p := s.Machine.LastPrompt(); p != "" {
		info = map[string]any{"prompt": p}
	}
	s.sendStatus(st.String(), info)
}

func (s *Service) sendStatus(state string, info map[string]any) {
	if err := s.Link.Send(envelope.NewStatus(envelope.SourceTrigger, state, info)); err != nil {
		slog.Warn("trigger: send status", "err", err)
	}
}

// resultFromPayload maps a wire intent payload onto a classifier result.
func resultFromPayload(p *envelope.Intent) intent.Result {
	res := intent.Result{
		Confidence: intent.ParseConfidence(p.Confidence),
		Prompt:     p.Prompt,
	}
	if p.Category == intent.Image.String() {
		res.Category = intent.Image
	}
	return res
}
