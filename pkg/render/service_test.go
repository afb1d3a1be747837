package render

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/lumenstage/stagewire/pkg/artifact"
	"github.com/lumenstage/stagewire/pkg/bridge"
	"github.com/lumenstage/stagewire/pkg/envelope"
	"github.com/lumenstage/stagewire/pkg/gallery"
	"github.com/lumenstage/stagewire/pkg/link"
)

func startHub(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	hub := &bridge.Hub{}
	go hub.Serve(ln)
	t.Cleanup(func() { hub.Close() })
	return "ws://" + ln.Addr().String() + "/ws"
}

func dialLink(t *testing.T, url, source string) *link.Client {
	t.Helper()
	client := link.Dial(link.Config{
		URL:     url,
		Source:  source,
		Role:    envelope.RoleDual,
		Backoff: link.Backoff{Base: 50 * time.Millisecond, Jitter: -1},
	})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.WaitOpen(ctx); err != nil {
		t.Fatalf("connect %s failed: %v", source, err)
	}
	return client
}

func recvType(t *testing.T, client *link.Client, typ envelope.Type, timeout time.Duration) *envelope.Envelope {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case env, ok := <-client.Receive():
			if !ok {
				t.Fatalf("receive channel closed while waiting for %s", typ)
			}
			if env.Type == typ {
				return env
			}
		case <-deadline:
			t.Fatalf("no %s envelope within %v", typ, timeout)
			return nil
		}
	}
}

func expectNone(t *testing.T, client *link.Client, typ envelope.Type, window time.Duration) {
	t.Helper()
	deadline := time.After(window)
	for {
		select {
		case env, ok := <-client.Receive():
			if !ok {
				return
			}
			if env.Type == typ {
				t.Fatalf("unexpected %s envelope (id %s)", typ, env.ID)
			}
		case <-deadline:
			return
		}
	}
}

func newTestStore(t *testing.T) *artifact.Dir {
	t.Helper()
	s, err := artifact.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}
	return s
}

func startService(t *testing.T, url string, svc *Service) {
	t.Helper()
	svc.Link = dialLink(t, url, envelope.SourceRender)
	if svc.Store == nil {
		svc.Store = newTestStore(t)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.Run(ctx)
}

func sendCommand(t *testing.T, client *link.Client, prompt string) {
	t.Helper()
	err := client.Send(envelope.NewCommand(envelope.ActionRender, map[string]string{
		"prompt":     prompt,
		"confidence": "high",
	}))
	if err != nil {
		t.Fatalf("send command failed: %v", err)
	}
}

type failRenderer struct{ err error }

func (r *failRenderer) Render(context.Context, Job) (*Artifact, error) {
	return nil, r.err
}

func TestServiceRendersCommand(t *testing.T) {
	url := startHub(t)
	trig := dialLink(t, url, envelope.SourceTrigger)
	viewer := dialLink(t, url, "viewer")
	store := newTestStore(t)
	idx := gallery.NewMemory()
	startService(t, url, &Service{
		Renderer: &StubRenderer{Delay: 40 * time.Millisecond},
		Store:    store,
		Gallery:  idx,
	})

	sendCommand(t, trig, "a fox in the snow")

	env := recvType(t, viewer, envelope.TypeRenderStart, 2*time.Second)
	start, err := env.RenderStart()
	if err != nil {
		t.Fatalf("render_start payload failed: %v", err)
	}
	if start.Prompt != "a fox in the snow" {
		t.Errorf("Prompt = %q, want the command concept", start.Prompt)
	}
	if !strings.HasPrefix(start.RequestID, "job_") {
		t.Errorf("RequestID = %q, want a job_ id", start.RequestID)
	}

	env = recvType(t, viewer, envelope.TypeRenderProgress, 2*time.Second)
	prog, err := env.RenderProgress()
	if err != nil {
		t.Fatalf("render_progress payload failed: %v", err)
	}
	if prog.RequestID != start.RequestID || prog.Percent <= 0 || prog.Percent >= 100 {
		t.Errorf("progress = %+v, want a mid-render percentage for %s", prog, start.RequestID)
	}

	env = recvType(t, viewer, envelope.TypeRenderComplete, 2*time.Second)
	res, err := env.RenderResult()
	if err != nil {
		t.Fatalf("render_complete payload failed: %v", err)
	}
	if res.RequestID != start.RequestID {
		t.Errorf("RequestID = %q, want %q", res.RequestID, start.RequestID)
	}
	if res.ImagePath != start.RequestID+".png" {
		t.Errorf("ImagePath = %q, want %q", res.ImagePath, start.RequestID+".png")
	}

	ctx := context.Background()
	data, err := artifact.ReadBytes(ctx, store, res.ImagePath)
	if err != nil || len(data) == 0 {
		t.Fatalf("stored image missing: %v", err)
	}
	raw, err := artifact.ReadBytes(ctx, store, start.RequestID+".json")
	if err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("sidecar is not valid JSON: %v", err)
	}
	if meta["prompt"] != "a fox in the snow" || meta["request_id"] != start.RequestID {
		t.Errorf("sidecar = %v", meta)
	}

	rec, err := idx.Get(ctx, start.RequestID)
	if err != nil {
		t.Fatalf("gallery record missing: %v", err)
	}
	if rec.ImagePath != res.ImagePath || rec.Prompt != "a fox in the snow" {
		t.Errorf("gallery record = %+v", rec)
	}
}

func TestServiceAppliesBuilder(t *testing.T) {
	url := startHub(t)
	trig := dialLink(t, url, envelope.SourceTrigger)
	viewer := dialLink(t, url, "viewer")
	startService(t, url, &Service{
		Builder: Builder{Style: "ink sketch", Negative: "blurry"},
	})

	sendCommand(t, trig, "a fox")

	env := recvType(t, viewer, envelope.TypeRenderStart, 2*time.Second)
	start, err := env.RenderStart()
	if err != nil {
		t.Fatalf("render_start payload failed: %v", err)
	}
	if start.Prompt != "ink sketch, a fox" {
		t.Errorf("Prompt = %q, want the styled prompt", start.Prompt)
	}

	env = recvType(t, viewer, envelope.TypeRenderComplete, 2*time.Second)
	res, err := env.RenderResult()
	if err != nil {
		t.Fatalf("render_complete payload failed: %v", err)
	}
	if res.NegativePrompt != "blurry" {
		t.Errorf("NegativePrompt = %q, want %q", res.NegativePrompt, "blurry")
	}
}

func TestServiceTracksKeywords(t *testing.T) {
	url := startHub(t)
	classify := dialLink(t, url, envelope.SourceClassify)
	trig := dialLink(t, url, envelope.SourceTrigger)
	viewer := dialLink(t, url, "viewer")
	idx := gallery.NewMemory()
	startService(t, url, &Service{Gallery: idx})

	err := classify.Send(envelope.NewKeywords(envelope.Keywords{
		Topics:   []string{"fox", "snow"},
		Original: "tell me about the fox in the snow",
	}))
	if err != nil {
		t.Fatalf("send keywords failed: %v", err)
	}
	// Keywords and command travel on different connections, so give the
	// broadcast time to land first.
	time.Sleep(300 * time.Millisecond)

	sendCommand(t, trig, "a fox in the snow")

	env := recvType(t, viewer, envelope.TypeRenderComplete, 2*time.Second)
	res, err := env.RenderResult()
	if err != nil {
		t.Fatalf("render_complete payload failed: %v", err)
	}

	rec, err := idx.Get(context.Background(), res.RequestID)
	if err != nil {
		t.Fatalf("gallery record missing: %v", err)
	}
	if len(rec.Keywords) != 2 || rec.Keywords[0] != "fox" {
		t.Errorf("Keywords = %v, want the tracked topics", rec.Keywords)
	}
}

func TestServiceRendererFailure(t *testing.T) {
	url := startHub(t)
	trig := dialLink(t, url, envelope.SourceTrigger)
	viewer := dialLink(t, url, "viewer")
	startService(t, url, &Service{
		Renderer: &failRenderer{err: errors.New("backend offline")},
	})

	sendCommand(t, trig, "a fox")

	env := recvType(t, viewer, envelope.TypeRenderError, 2*time.Second)
	fail, err := env.RenderFailure()
	if err != nil {
		t.Fatalf("render_error payload failed: %v", err)
	}
	if fail.RequestID == "" || !strings.Contains(fail.Error, "backend offline") {
		t.Errorf("failure = %+v, want the renderer error", fail)
	}

	// The service keeps accepting commands after a failure.
	sendCommand(t, trig, "a bear")
	recvType(t, viewer, envelope.TypeRenderError, 2*time.Second)
	expectNone(t, viewer, envelope.TypeRenderComplete, 200*time.Millisecond)
}

func TestServiceReplacesQueuedJob(t *testing.T) {
	url := startHub(t)
	trig := dialLink(t, url, envelope.SourceTrigger)
	viewer := dialLink(t, url, "viewer")
	startService(t, url, &Service{
		Renderer: &StubRenderer{Delay: 300 * time.Millisecond},
	})

	sendCommand(t, trig, "a first scene")
	env := recvType(t, viewer, envelope.TypeRenderStart, 2*time.Second)
	first, err := env.RenderStart()
	if err != nil {
		t.Fatalf("render_start payload failed: %v", err)
	}
	if first.Prompt != "a first scene" {
		t.Fatalf("Prompt = %q, want the first command", first.Prompt)
	}

	// Two more commands while the first renders: the second waits in the
	// queue slot until the third replaces it.
	sendCommand(t, trig, "a second scene")
	sendCommand(t, trig, "a third scene")

	recvType(t, viewer, envelope.TypeRenderComplete, 2*time.Second)

	env = recvType(t, viewer, envelope.TypeRenderStart, 2*time.Second)
	next, err := env.RenderStart()
	if err != nil {
		t.Fatalf("render_start payload failed: %v", err)
	}
	if next.Prompt != "a third scene" {
		t.Errorf("Prompt = %q, want the freshest command", next.Prompt)
	}

	recvType(t, viewer, envelope.TypeRenderComplete, 2*time.Second)
	expectNone(t, viewer, envelope.TypeRenderStart, 300*time.Millisecond)
}

func TestServiceConfigToggleAndStyle(t *testing.T) {
	url := startHub(t)
	trig := dialLink(t, url, envelope.SourceTrigger)
	viewer := dialLink(t, url, "viewer")
	startService(t, url, &Service{})

	// Config rides the same connection as the commands, so it is applied
	// before them.
	err := trig.Send(envelope.NewConfig(envelope.SourceRender, "enabled", false))
	if err != nil {
		t.Fatalf("send config failed: %v", err)
	}
	sendCommand(t, trig, "a fox")
	expectNone(t, viewer, envelope.TypeRenderStart, 300*time.Millisecond)

	if err := trig.Send(envelope.NewConfig(envelope.SourceRender, "enabled", true)); err != nil {
		t.Fatalf("send config failed: %v", err)
	}
	if err := trig.Send(envelope.NewConfig(envelope.SourceRender, "style", "oil painting")); err != nil {
		t.Fatalf("send config failed: %v", err)
	}
	sendCommand(t, trig, "a fox")

	env := recvType(t, viewer, envelope.TypeRenderStart, 2*time.Second)
	start, err := env.RenderStart()
	if err != nil {
		t.Fatalf("render_start payload failed: %v", err)
	}
	if start.Prompt != "oil painting, a fox" {
		t.Errorf("Prompt = %q, want the configured style applied", start.Prompt)
	}
}

func TestServiceReadyStatus(t *testing.T) {
	url := startHub(t)
	viewer := dialLink(t, url, "viewer")
	store := newTestStore(t)
	startService(t, url, &Service{Store: store})

	env := recvType(t, viewer, envelope.TypeStatus, 2*time.Second)
	st, err := env.Status()
	if err != nil {
		t.Fatalf("status payload failed: %v", err)
	}
	if st.State != "ready" {
		t.Errorf("State = %q, want %q", st.State, "ready")
	}
	if st.Info["enabled"] != true {
		t.Errorf("enabled = %v, want true", st.Info["enabled"])
	}
	if st.Info["artifacts"] != store.Root() {
		t.Errorf("artifacts = %v, want %q", st.Info["artifacts"], store.Root())
	}
}
