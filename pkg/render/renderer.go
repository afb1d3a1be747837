// Package render turns router commands into images. The Service consumes
// command envelopes, builds prompts, drives a Renderer, stores the result
// through pkg/artifact and broadcasts render lifecycle envelopes.
package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"time"
)

// Job is one render request handed to a Renderer.
type Job struct {
	// RequestID identifies the job in broadcasts and artifact names.
	RequestID string

	// Prompt is the positive prompt.
	Prompt string

	// Negative is the negative prompt, possibly empty.
	Negative string

	// Progress, when non-nil, receives completion percentages in [0,100]
	// as the renderer observes them. Renderers that cannot observe
	// progress never call it.
	Progress func(percent float64)
}

// Artifact is a rendered image returned by a Renderer.
type Artifact struct {
	// Data is the encoded image bytes.
	Data []byte

	// Filename is the renderer's own name for the image, when it has one.
	Filename string
}

// Renderer produces an image for a job.
type Renderer interface {
	Render(ctx context.Context, job Job) (*Artifact, error)
}

// StubRenderer produces a tiny placeholder image after a fixed delay,
// reporting staged progress along the way. It stands in for a diffusion
// backend in demos and tests.
type StubRenderer struct {
	// Delay is the simulated render time. Zero renders immediately.
	Delay time.Duration
}

var _ Renderer = (*StubRenderer)(nil)

func (r *StubRenderer) Render(ctx context.Context, job Job) (*Artifact, error) {
	if r.Delay > 0 {
		step := r.Delay / 4
		for _, pct := range []float64{25, 50, 75} {
			select {
			case <-time.After(step):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if job.Progress != nil {
				job.Progress(pct)
			}
		}
		select {
		case <-time.After(step):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 0x20, G: 0x20, B: 0x24, A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &Artifact{Data: buf.Bytes(), Filename: job.RequestID + ".png"}, nil
}
