package scribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/link"
)

// DefaultMinChars is the minimum chunk length published.
const DefaultMinChars = 5

// Service pulls chunks from a Transcriber and publishes transcript
// envelopes through a hub link.
type Service struct {
	Link        *link.Client
	Transcriber Transcriber

	// MinChars filters out chunks shorter than this many characters.
	// Zero selects DefaultMinChars; negative disables the filter.
	MinChars int

	// Window is the rolling context included in every transcript. Nil
	// selects a default window.
	Window *Window

	// Now is the clock used for stamping and window aging. Defaults to
	// time.Now.
	Now func() time.Time

	chunkID int
}

func (s *Service) init() {
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Window == nil {
		s.Window = NewWindow(0, 0)
	}
}

// Run pulls and publishes chunks until the transcriber is exhausted, ctx
// is canceled or the link closes. A drained transcriber is a clean stop.
func (s *Service) Run(ctx context.Context) error {
	s.init()

	chunks := make(chan Chunk)
	pullErr := make(chan error, 1)
	go func() {
		for {
			chunk, err := s.Transcriber.Next(ctx)
			if err != nil {
				pullErr <- err
				return
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.sendStatus("ready", map[string]any{
		"min_chars":   s.minChars(),
		"context_sec": s.Window.Horizon().Seconds(),
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-pullErr:
			if errors.Is(err, io.EOF) {
				s.sendStatus("done", map[string]any{"chunks": s.chunkID})
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("scribe: transcriber: %w", err)
		case chunk := <-chunks:
			s.publish(chunk)
		case env, ok := <-s.Link.Receive():
			if !ok {
				return link.ErrClosed
			}
			s.handle(env)
		}
	}
}

func (s *Service) publish(chunk Chunk) {
	if utf8.RuneCountInString(chunk.Text) < s.minChars() {
		return
	}
	at := chunk.Heard
	if at.IsZero() {
		at = s.Now()
	}
	s.Window.Add(chunk.Text, at)
	s.chunkID++

	env := envelope.NewTranscript(chunk.Text, s.chunkID, s.Window.Snapshot(at))
	if err := s.Link.Send(env); err != nil {
		slog.Warn("scribe: send transcript", "chunk_id", s.chunkID, "err", err)
		return
	}
	slog.Debug("scribe: chunk published", "chunk_id", s.chunkID, "text", chunk.Text)
}

func (s *Service) handle(env *envelope.Envelope) {
	if env.Type != envelope.TypeConfig {
		return
	}
	p, err := env.Config()
	if err != nil || (p.Service != "" && p.Service != envelope.SourceScribe) {
		return
	}
	switch p.Key {
	case "min_chars":
		s.MinChars = p.Int(s.minChars())
		slog.Info("scribe: min_chars updated", "min_chars", s.minChars())
	case "context_sec":
		sec := p.Float(s.Window.Horizon().Seconds())
		s.Window.SetHorizon(time.Duration(sec * float64(time.Second)))
		slog.Info("scribe: context window updated", "horizon", s.Window.Horizon())
	}
}

func (s *Service) minChars() int {
	switch {
	case s.MinChars < 0:
		return 0
	case s.MinChars == 0:
		return DefaultMinChars
	}
	return s.MinChars
}

func (s *Service) sendStatus(state string, info map[string]any) {
	if err := s.Link.Send(envelope.NewStatus(envelope.SourceScribe, state, info)); err != nil {
		slog.Warn("scribe: send status", "err", err)
	}
}
