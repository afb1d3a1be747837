package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Prompt placeholders recognized in the workflow's CLIPTextEncode nodes.
const (
	positivePlaceholder = "POSITIVE_PROMPT_PLACEHOLDER"
	negativePlaceholder = "NEGATIVE_PROMPT_PLACEHOLDER"
)

// HTTPRenderer defaults.
const (
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultRenderTimeout = 2 * time.Minute
)

// defaultWorkflow is a minimal SD 1.5 text-to-image graph in ComfyUI
// API format. Build-time prompts replace the CLIPTextEncode placeholders.
var defaultWorkflow = []byte(`{
  "1": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "sd15.safetensors"}},
  "2": {"class_type": "CLIPTextEncode", "inputs": {"clip": ["1", 1], "text": "POSITIVE_PROMPT_PLACEHOLDER"}},
  "3": {"class_type": "CLIPTextEncode", "inputs": {"clip": ["1", 1], "text": "NEGATIVE_PROMPT_PLACEHOLDER"}},
  "4": {"class_type": "EmptyLatentImage", "inputs": {"width": 512, "height": 512, "batch_size": 1}},
  "5": {"class_type": "KSampler", "inputs": {"model": ["1", 0], "positive": ["2", 0], "negative": ["3", 0], "latent_image": ["4", 0], "seed": 0, "steps": 20, "cfg": 7.0, "sampler_name": "euler", "scheduler": "normal", "denoise": 1.0}},
  "6": {"class_type": "VAEDecode", "inputs": {"samples": ["5", 0], "vae": ["1", 2]}},
  "7": {"class_type": "SaveImage", "inputs": {"images": ["6", 0], "filename_prefix": "stagewire"}}
}`)

// HTTPRenderer drives a ComfyUI-compatible server: queue the workflow,
// poll history until outputs appear, fetch the first image. It never
// reports progress; the server exposes none over plain HTTP.
type HTTPRenderer struct {
	// BaseURL is the server root, e.g. "http://127.0.0.1:8188".
	BaseURL string

	// HTTPClient is used for all requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Workflow is the graph to queue, in ComfyUI API format. Defaults to
	// a minimal SD 1.5 text-to-image graph.
	Workflow []byte

	// PollInterval is the delay between history polls. Default 500ms.
	PollInterval time.Duration

	// Timeout bounds a whole render. Default 2 minutes.
	Timeout time.Duration

	// ClientID identifies this renderer to the server. Defaults to a
	// random UUID generated on first use.
	ClientID string

	idOnce sync.Once
	id     string
}

var _ Renderer = (*HTTPRenderer)(nil)

func (r *HTTPRenderer) client() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return http.DefaultClient
}

func (r *HTTPRenderer) workflow() []byte {
	if len(r.Workflow) > 0 {
		return r.Workflow
	}
	return defaultWorkflow
}

func (r *HTTPRenderer) pollInterval() time.Duration {
	if r.PollInterval > 0 {
		return r.PollInterval
	}
	return DefaultPollInterval
}

func (r *HTTPRenderer) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultRenderTimeout
}

func (r *HTTPRenderer) clientID() string {
	r.idOnce.Do(func() {
		r.id = r.ClientID
		if r.id == "" {
			r.id = uuid.NewString()
		}
	})
	return r.id
}

func (r *HTTPRenderer) Render(ctx context.Context, job Job) (*Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	workflow, err := injectPrompts(r.workflow(), job.Prompt, job.Negative)
	if err != nil {
		return nil, fmt.Errorf("render: prepare workflow: %w", err)
	}
	promptID, err := r.queue(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("render: queue prompt: %w", err)
	}
	ref, err := r.await(ctx, promptID)
	if err != nil {
		return nil, err
	}
	data, err := r.fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("render: fetch image: %w", err)
	}
	return &Artifact{Data: data, Filename: ref.Filename}, nil
}

// injectPrompts rewrites the CLIPTextEncode placeholder nodes with the
// job's prompts, leaving every other node untouched.
func injectPrompts(workflow []byte, positive, negative string) ([]byte, error) {
	var graph map[string]map[string]any
	if err := json.Unmarshal(workflow, &graph); err != nil {
		return nil, err
	}
	for _, node := range graph {
		if class, _ := node["class_type"].(string); class != "CLIPTextEncode" {
			continue
		}
		inputs, _ := node["inputs"].(map[string]any)
		if inputs == nil {
			continue
		}
		switch inputs["text"] {
		case positivePlaceholder:
			inputs["text"] = positive
		case negativePlaceholder:
			inputs["text"] = negative
		}
	}
	return json.Marshal(graph)
}

type queueRequest struct {
	Prompt   json.RawMessage `json:"prompt"`
	ClientID string          `json:"client_id"`
}

type queueResponse struct {
	PromptID string `json:"prompt_id"`
}

func (r *HTTPRenderer) queue(ctx context.Context, workflow []byte) (string, error) {
	body, err := json.Marshal(queueRequest{Prompt: workflow, ClientID: r.clientID()})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	var qr queueResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return "", err
	}
	if qr.PromptID == "" {
		return "", fmt.Errorf("response carries no prompt_id")
	}
	return qr.PromptID, nil
}

// imageRef locates one output image on the server.
type imageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// await polls the history endpoint until the prompt has outputs or the
// context expires.
func (r *HTTPRenderer) await(ctx context.Context, promptID string) (*imageRef, error) {
	ticker := time.NewTicker(r.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("render: waiting for %s: %w", promptID, ctx.Err())
		case <-ticker.C:
		}
		ref, done, err := r.history(ctx, promptID)
		if err != nil {
			return nil, fmt.Errorf("render: poll history: %w", err)
		}
		if done {
			return ref, nil
		}
	}
}

func (r *HTTPRenderer) history(ctx context.Context, promptID string) (*imageRef, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/history/"+promptID, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var hist map[string]struct {
		Outputs map[string]struct {
			Images []imageRef `json:"images"`
		} `json:"outputs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		return nil, false, err
	}
	entry, ok := hist[promptID]
	if !ok {
		return nil, false, nil // still executing
	}
	for _, out := range entry.Outputs {
		if len(out.Images) > 0 {
			ref := out.Images[0]
			return &ref, true, nil
		}
	}
	return nil, false, nil
}

func (r *HTTPRenderer) fetch(ctx context.Context, ref *imageRef) ([]byte, error) {
	q := url.Values{}
	q.Set("filename", ref.Filename)
	q.Set("subfolder", ref.Subfolder)
	q.Set("type", ref.Type)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/view?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
