// Package classify turns transcript broadcasts into intent and keyword
// broadcasts. Classification itself is the deterministic rule router in
// pkg/intent; an optional Responder contributes a short conversational
// reply on top.
package classify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/intent"
	"github.com/lumenstage/stagewire/pkg/link"
)

// Service defaults.
const (
	DefaultWorkers  = 2
	DefaultQueue    = 8
	DefaultInterval = 1
	DefaultTimeout  = 5 * time.Second
)

// Service consumes transcript envelopes, classifies them and broadcasts
// intent and keywords envelopes through its link. A bounded queue feeds the
// worker pool; publishing stays on the Run goroutine so the service's own
// emissions keep their order.
type Service struct {
	Link   *link.Client
	Router *intent.Router

	// Responder, when set, contributes a conversational reply to each
	// keywords broadcast. Failures degrade to rule-only output plus an
	// error envelope.
	Responder Responder

	// History is the conversation record passed to the Responder.
	// Defaults to NewHistory(0).
	History *History

	// Workers is the number of classification goroutines. Default 2.
	Workers int

	// Queue bounds pending classifications. When full, the oldest pending
	// entry is dropped in favor of the newer one. Default 8.
	Queue int

	// Interval merges every N transcripts into one classification.
	// Default 1.
	Interval int

	// Timeout bounds a single Responder call. Default 5s.
	Timeout time.Duration

	pending    []string
	lastRender string
}

type job struct {
	text    string
	window  []string
	chunkID int
	timeout time.Duration
}

type outcome struct {
	job     job
	result  intent.Result
	reply   string
	err     error
	elapsed time.Duration
}

func (s *Service) init() {
	if s.Router == nil {
		s.Router = &intent.Router{}
	}
	if s.History == nil {
		s.History = NewHistory(0)
	}
	if s.Workers <= 0 {
		s.Workers = DefaultWorkers
	}
	if s.Queue <= 0 {
		s.Queue = DefaultQueue
	}
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
}

// Run processes envelopes until ctx is canceled or the link closes.
func (s *Service) Run(ctx context.Context) error {
	s.init()
	s.sendStatus("ready", map[string]any{
		"workers":        s.Workers,
		"chunk_interval": s.Interval,
		"max_turns":      s.History.MaxTurns(),
		"agent":          s.Responder != nil,
	})

	jobs := make(chan job, s.Queue)
	results := make(chan outcome, s.Workers)
	for i := 0; i < s.Workers; i++ {
		go s.worker(ctx, jobs, results)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out := <-results:
			s.publish(out)
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
	case envelope.TypeTranscript:
		p, err := env.Transcript()
		if err != nil {
			slog.Warn("classify: bad transcript payload", "source", env.Source, "err", err)
			return
		}
		s.accumulate(p, jobs)
	case envelope.TypeRenderComplete:
		p, err := env.RenderResult()
		if err != nil || p.Prompt == "" {
			return
		}
		s.lastRender = p.Prompt
		slog.Debug("classify: render prompt tracked", "prompt", p.Prompt)
	case envelope.TypeConfig:
		p, err := env.Config()
		if err != nil || (p.Service != "" && p.Service != envelope.SourceClassify) {
			return
		}
		s.reconfigure(p)
	}
}

// accumulate buffers transcript text until Interval chunks have arrived,
// then merges them into one classification job carrying the latest chunk's
// context.
func (s *Service) accumulate(p *envelope.Transcript, jobs chan job) {
	if p.Text == "" {
		return
	}
	s.pending = append(s.pending, p.Text)
	if len(s.pending) < s.Interval {
		return
	}
	j := job{
		text:    strings.Join(s.pending, " "),
		window:  s.window(p.Context),
		chunkID: p.ChunkID,
		timeout: s.Timeout,
	}
	s.pending = nil
	s.enqueue(j, jobs)
}

// window builds the anaphora context for a classification: the transcript's
// own rolling context, seeded underneath with the prompt of the last
// completed render. The seed is phrased as the imperative that produced the
// image so the router can lift its prompt when a bare reference arrives
// with no usable context.
func (s *Service) window(recent []string) []string {
	if s.lastRender == "" {
		return recent
	}
	w := make([]string, 0, len(recent)+1)
	w = append(w, "draw "+s.lastRender)
	return append(w, recent...)
}

func (s *Service) enqueue(j job, jobs chan job) {
	for {
		select {
		case jobs <- j:
			return
		default:
		}
		select {
		case old := <-jobs:
			slog.Warn("classify: queue full, dropping oldest", "chunk_id", old.chunkID)
		default:
		}
	}
}

func (s *Service) worker(ctx context.Context, jobs <-chan job, results chan<- outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-jobs:
			out := s.process(ctx, j)
			select {
			case results <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Service) process(ctx context.Context, j job) outcome {
	out := outcome{job: j, result: s.Router.Classify(j.text, j.window)}
	if s.Responder == nil {
		return out
	}
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	out.reply, out.err = s.Responder.Respond(cctx, j.text, s.History.Turns())
	out.elapsed = time.Since(start)
	return out
}

func (s *Service) publish(out outcome) {
	res := out.result
	s.send(envelope.NewIntent(envelope.Intent{
		Category:   res.Category.String(),
		Confidence: res.Confidence.String(),
		Prompt:     res.Prompt,
		Topics:     res.Topics,
		Questions:  res.Questions,
		Sentiment:  res.Sentiment.String(),
	}))

	kw := envelope.Keywords{
		Topics:    res.Topics,
		Questions: res.Questions,
		Sentiment: res.Sentiment.String(),
		Original:  out.job.text,
	}
	if out.err != nil {
		slog.Warn("classify: responder failed", "chunk_id", out.job.chunkID, "err", out.err)
		s.send(envelope.NewError(envelope.SourceClassify, "responder: "+out.err.Error(), map[string]any{
			"chunk_id": out.job.chunkID,
		}))
	} else if out.reply != "" {
		s.History.Record(out.job.text, out.reply)
		kw.Reply = out.reply
	}
	s.send(envelope.NewKeywords(kw))
	slog.Debug("classify: published",
		"chunk_id", out.job.chunkID,
		"category", res.Category,
		"elapsed", out.elapsed,
	)
}

func (s *Service) reconfigure(p *envelope.Config) {
	switch p.Key {
	case "chunk_interval":
		n := p.Int(s.Interval)
		if n > 0 && n != s.Interval {
			s.Interval = n
			s.pending = nil
			slog.Info("classify: chunk interval updated", "interval", n)
		}
	case "max_turns":
		if n := p.Int(0); n > 0 {
			s.History.SetMaxTurns(n)
			slog.Info("classify: history bound updated", "max_turns", n)
		}
	case "agent_timeout_ms":
		if ms := p.Int(0); ms > 0 {
			s.Timeout = time.Duration(ms) * time.Millisecond
			slog.Info("classify: agent timeout updated", "timeout", s.Timeout)
		}
	}
}

func (s *Service) send(env *envelope.Envelope) {
	if err := s.Link.Send(env); err != nil {
		slog.Warn("classify: send", "type", env.Type, "err", err)
	}
}

func (s *Service) sendStatus(state string, info map[string]any) {
	s.send(envelope.NewStatus(envelope.SourceClassify, state, info))
}
