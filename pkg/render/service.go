package render

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lumenstage/stagewire/pkg/artifact"
	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/gallery"
	"github.com/lumenstage/stagewire/pkg/link"
)

// Service consumes render commands and drives the renderer. At most one
// job renders at a time; while one is in flight, a newer command replaces
// whatever is queued, so the backlog never grows past one and the freshest
// request wins.
type Service struct {
	Link *link.Client

	// Renderer produces the images. Defaults to an instant StubRenderer.
	Renderer Renderer

	// Builder shapes positive/negative prompts around command concepts.
	Builder Builder

	// Store receives image bytes and their JSON sidecars. Defaults to a
	// directory under os.TempDir().
	Store artifact.Store

	// Gallery, when set, indexes completed jobs for listing.
	Gallery gallery.Index

	// Disabled suppresses command handling until a config envelope turns
	// the service back on.
	Disabled bool

	lastTopics []string
}

// job is an accepted render request. The prompt is built at accept time
// so config changes never race the worker.
type job struct {
	requestID string
	prompt    Prompt
	keywords  []string
}

// Run processes envelopes until ctx is canceled or the link closes.
func (s *Service) Run(ctx context.Context) error {
	if s.Renderer == nil {
		s.Renderer = &StubRenderer{}
	}
	if s.Store == nil {
		dir, err := artifact.NewDir(filepath.Join(os.TempDir(), "stagewire-renders"))
		if err != nil {
			return err
		}
		s.Store = dir
	}

	info := map[string]any{"enabled": !s.Disabled}
	if d, ok := s.Store.(*artifact.Dir); ok {
		info["artifacts"] = d.Root()
	}
	s.send(envelope.NewStatus(envelope.SourceRender, "ready", info))

	jobs := make(chan job, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.worker(ctx, jobs)
	}()
	defer func() { <-done }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-s.Link.Receive():
			if !ok {
				return link.ErrClosed
			}
			s.handle(env, jobs)
		}
	}
}

func (s *Service) handle(env *envelope.Envelope, jobs chan job) {
	switch env.Type {
	case envelope.TypeCommand:
		p, err := env.Command()
		if err != nil {
			slog.Warn("render: bad command payload", "source", env.Source, "err", err)
			return
		}
		if p.Action != envelope.ActionRender || s.Disabled {
			return
		}
		s.accept(p, jobs)
	case envelope.TypeKeywords:
		p, err := env.Keywords()
		if err != nil || len(p.Topics) == 0 {
			return
		}
		s.lastTopics = p.Topics
	case envelope.TypeConfig:
		p, err := env.Config()
		if err != nil || (p.Service != "" && p.Service != envelope.SourceRender) {
			return
		}
		s.reconfigure(p)
	}
}

func (s *Service) accept(p *envelope.Command, jobs chan job) {
	concept := p.Params["prompt"]
	if concept == "" {
		slog.Warn("render: command without prompt")
		return
	}
	j := job{
		requestID: "job_" + uuid.NewString()[:8],
		prompt:    s.Builder.Build([]string{concept}),
		keywords:  s.lastTopics,
	}
	s.enqueue(j, jobs)
	slog.Info("render: job accepted", "request_id", j.requestID, "prompt", j.prompt.Positive)
}

// enqueue places the job in the single queue slot, evicting whatever is
// already waiting.
func (s *Service) enqueue(j job, jobs chan job) {
	for {
		select {
		case jobs <- j:
			return
		default:
		}
		select {
		case old := <-jobs:
			slog.Warn("render: replacing queued job", "request_id", old.requestID)
		default:
		}
	}
}

func (s *Service) worker(ctx context.Context, jobs <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-jobs:
			s.process(ctx, j)
		}
	}
}

func (s *Service) process(ctx context.Context, j job) {
	s.send(envelope.NewRenderStart(j.requestID, j.prompt.Positive))
	start := time.Now()

	art, err := s.Renderer.Render(ctx, Job{
		RequestID: j.requestID,
		Prompt:    j.prompt.Positive,
		Negative:  j.prompt.Negative,
		Progress: func(pct float64) {
			s.send(envelope.NewRenderProgress(j.requestID, pct))
		},
	})
	if err != nil {
		s.fail(j, "render: "+err.Error())
		return
	}

	imagePath := j.requestID + ".png"
	if err := artifact.WriteBytes(ctx, s.Store, imagePath, art.Data); err != nil {
		s.fail(j, "store image: "+err.Error())
		return
	}
	elapsed := time.Since(start).Milliseconds()
	created := time.Now().UTC()

	meta := metadata{
		RequestID: j.requestID,
		Prompt:    j.prompt.Positive,
		Negative:  j.prompt.Negative,
		Keywords:  j.keywords,
		Filename:  art.Filename,
		CreatedAt: created,
		Elapsed:   elapsed,
	}
	if data, err := json.MarshalIndent(meta, "", "  "); err == nil {
		if err := artifact.WriteBytes(ctx, s.Store, j.requestID+".json", data); err != nil {
			slog.Warn("render: store sidecar", "request_id", j.requestID, "err", err)
		}
	}

	if s.Gallery != nil {
		rec := gallery.Record{
			RequestID: j.requestID,
			Prompt:    j.prompt.Positive,
			Negative:  j.prompt.Negative,
			ImagePath: imagePath,
			Keywords:  j.keywords,
			Elapsed:   elapsed,
			CreatedAt: created,
		}
		if err := s.Gallery.Add(ctx, rec); err != nil {
			slog.Warn("render: index job", "request_id", j.requestID, "err", err)
		}
	}

	s.send(envelope.NewRenderComplete(envelope.RenderResult{
		RequestID:      j.requestID,
		Prompt:         j.prompt.Positive,
		NegativePrompt: j.prompt.Negative,
		ImagePath:      imagePath,
		ElapsedMS:      elapsed,
	}))
	slog.Info("render: job complete", "request_id", j.requestID, "elapsed_ms", elapsed)
}

// fail broadcasts the failure and moves on. A dead or misconfigured
// backend must never take the session down with it.
func (s *Service) fail(j job, msg string) {
	slog.Warn("render: job failed", "request_id", j.requestID, "err", msg)
	s.send(envelope.NewRenderError(j.requestID, msg))
}

func (s *Service) reconfigure(p *envelope.Config) {
	switch p.Key {
	case "style":
		s.Builder.Style = p.Str(s.Builder.Style)
		slog.Info("render: style updated", "style", s.Builder.Style)
	case "detail":
		s.Builder.Detail = p.Str(s.Builder.Detail)
		slog.Info("render: detail updated", "detail", s.Builder.Detail)
	case "suffix":
		s.Builder.Suffix = p.Str(s.Builder.Suffix)
		slog.Info("render: suffix updated", "suffix", s.Builder.Suffix)
	case "negative":
		s.Builder.Negative = p.Str(s.Builder.Negative)
		slog.Info("render: negative updated", "negative", s.Builder.Negative)
	case "enabled":
		s.Disabled = !p.Bool(!s.Disabled)
		slog.Info("render: toggled", "enabled", !s.Disabled)
	}
}

func (s *Service) send(env *envelope.Envelope) {
	if err := s.Link.Send(env); err != nil {
		slog.Warn("render: send", "type", env.Type, "err", err)
	}
}

// metadata is the JSON sidecar written next to each image.
type metadata struct {
	RequestID string    `json:"request_id"`
	Prompt    string    `json:"prompt"`
	Negative  string    `json:"negative_prompt,omitempty"`
	Keywords  []string  `json:"keywords,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Elapsed   int64     `json:"elapsed_ms"`
}
