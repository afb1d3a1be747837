package commands

import (
	"strings"
	"testing"
	"time"

	"github.com/itchyny/gojq"

	"github.com/lumenstage/stagewire/pkg/envelope"
)

func mustParse(t *testing.T, expr string) *gojq.Query {
	t.Helper()
	q, err := gojq.Parse(expr)
	if err != nil {
		t.Fatalf("parse %q: %v", expr, err)
	}
	return q
}

func TestMatchEnvelope(t *testing.T) {
	env := envelope.NewIntent(envelope.Intent{
		Category:   "image",
		Confidence: "high",
		Prompt:     "a red fox in the snow",
	})
	env.ID = "classify-1"

	cases := []struct {
		expr string
		want bool
	}{
		{`.type == "intent"`, true},
		{`.type == "transcript"`, false},
		{`.data.confidence == "high"`, true},
		{`.data.confidence == "low"`, false},
		{`.source`, true},   // truthy string
		{`.missing`, false}, // null
		{`1/0`, false},      // runtime error drops the envelope
	}
	for _, c := range cases {
		if got := matchEnvelope(mustParse(t, c.expr), env); got != c.want {
			t.Errorf("filter %q = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	tr := envelope.NewTranscript("draw a castle on a hill", 7, nil)
	if got := summarize(tr); !strings.Contains(got, "#7") || !strings.Contains(got, "draw a castle on a hill") {
		t.Errorf("transcript summary: %q", got)
	}

	in := envelope.NewIntent(envelope.Intent{Category: "image", Confidence: "high", Prompt: "a castle"})
	if got := summarize(in); !strings.Contains(got, "image/high") || !strings.Contains(got, "a castle") {
		t.Errorf("intent summary: %q", got)
	}

	cmd := envelope.NewCommand(envelope.ActionRender, map[string]string{"prompt": "a castle"})
	if got := summarize(cmd); !strings.Contains(got, "render") || !strings.Contains(got, "a castle") {
		t.Errorf("command summary: %q", got)
	}

	done := envelope.NewRenderComplete(envelope.RenderResult{
		RequestID: "job_1",
		Prompt:    "a castle",
		ImagePath: "/tmp/job_1.png",
		ElapsedMS: 900,
	})
	if got := summarize(done); !strings.Contains(got, "job_1") || !strings.Contains(got, "/tmp/job_1.png") {
		t.Errorf("render summary: %q", got)
	}

	pong := envelope.NewPong([]string{"scribe", "monitor"})
	if got := summarize(pong); !strings.Contains(got, "scribe") {
		t.Errorf("pong summary: %q", got)
	}
}

func TestFormatEnvelopeUsesReceiptTime(t *testing.T) {
	env := envelope.NewStatus(envelope.SourceTrigger, "ready", nil)
	env.Timestamp = envelope.At(time.Date(2025, 3, 9, 10, 29, 59, 0, time.UTC))
	env.StampReceived(time.Date(2025, 3, 9, 10, 30, 0, 250_000_000, time.UTC), 4)

	line := formatEnvelope(env)
	want := env.Received.Time().Format("15:04:05.000")
	if !strings.Contains(line, want) {
		t.Errorf("expected receipt time %q in line: %q", want, line)
	}
	if !strings.Contains(line, envelope.SourceTrigger) || !strings.Contains(line, "ready") {
		t.Errorf("line missing source or state: %q", line)
	}
}

func TestFormatEnvelopeFallsBackToTimestamp(t *testing.T) {
	env := envelope.NewStatus(envelope.SourceScribe, "ready", nil)
	line := formatEnvelope(env)
	want := env.Timestamp.Time().Format("15:04:05.000")
	if !strings.Contains(line, want) {
		t.Errorf("expected producer time %q in line: %q", want, line)
	}
}
