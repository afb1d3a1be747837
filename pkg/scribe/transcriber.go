// Package scribe publishes recognized speech onto the hub.
//
// The acoustic engine itself is an external collaborator behind the
// [Transcriber] interface; the package ships a line-reader implementation
// for piping text in and a scripted replay for demos and tests. The
// [Service] stamps chunk IDs, filters fragments, maintains the rolling
// context window and emits transcript envelopes through a hub link.
package scribe

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// Chunk is one unit of recognized speech.
type Chunk struct {
	Text string

	// Heard is when the chunk was produced. Zero means the service
	// stamps it on receipt.
	Heard time.Time
}

// Transcriber yields recognized text chunks. Next blocks until a chunk is
// available, the source is exhausted (io.EOF) or ctx ends.
type Transcriber interface {
	Next(ctx context.Context) (Chunk, error)
}

// Lines reads chunks from an io.Reader one line at a time, skipping blank
// lines. It turns stdin or a transcript file into a Transcriber.
type Lines struct {
	r    io.Reader
	once sync.Once
	ch   chan string
	err  error
}

// NewLines returns a Transcriber over r.
func NewLines(r io.Reader) *Lines {
	return &Lines{r: r}
}

// Next returns the next non-blank line.
func (l *Lines) Next(ctx context.Context) (Chunk, error) {
	l.once.Do(l.start)
	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case text, ok := <-l.ch:
		if !ok {
			if l.err != nil {
				return Chunk{}, l.err
			}
			return Chunk{}, io.EOF
		}
		return Chunk{Text: text, Heard: time.Now()}, nil
	}
}

func (l *Lines) start() {
	l.ch = make(chan string)
	go func() {
		defer close(l.ch)
		sc := bufio.NewScanner(l.r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			text := strings.TrimSpace(sc.Text())
			if text == "" {
				continue
			}
			l.ch <- text
		}
		l.err = sc.Err()
	}()
}

// Replay yields a fixed script with a pause between chunks. The zero
// Interval replays as fast as the consumer pulls. Not safe for concurrent
// use.
type Replay struct {
	Script   []string
	Interval time.Duration

	idx int
}

// Next returns the next scripted chunk, or io.EOF when the script ends.
func (r *Replay) Next(ctx context.Context) (Chunk, error) {
	if r.idx >= len(r.Script) {
		return Chunk{}, io.EOF
	}
	if r.idx > 0 && r.Interval > 0 {
		timer := time.NewTimer(r.Interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Chunk{}, ctx.Err()
		case <-timer.C:
		}
	}
	text := r.Script[r.idx]
	r.idx++
	return Chunk{Text: text, Heard: time.Now()}, nil
}
