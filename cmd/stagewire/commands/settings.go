package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/lumenstage/stagewire/pkg/link"
)

// settingsFile is the YAML filename looked up under the user config dir.
const settingsFile = "stagewire.yaml"

// Settings is the stagewire.yaml schema. Zero values select built-in
// defaults, so a missing or empty file is a complete configuration.
type Settings struct {
	Hub      HubSettings      `yaml:"hub,omitempty"`
	Scribe   ScribeSettings   `yaml:"scribe,omitempty"`
	Classify ClassifySettings `yaml:"classify,omitempty"`
	Trigger  TriggerSettings  `yaml:"trigger,omitempty"`
	Render   RenderSettings   `yaml:"render,omitempty"`
}

// HubSettings covers both sides of the hub link: the address the bridge
// listens on and the URL every service dials.
type HubSettings struct {
	// Addr is the bridge listen address. Default ":5555".
	Addr string `yaml:"addr,omitempty"`

	// URL is the hub endpoint services dial. A bare host:port is
	// expanded to "ws://host:port/ws". Default "ws://127.0.0.1:5555/ws".
	URL string `yaml:"url,omitempty"`

	// HeartbeatSec is the idle interval before a client pings, in
	// seconds. Silence for twice this long forces a reconnect.
	HeartbeatSec float64 `yaml:"heartbeat_sec,omitempty"`

	// SendBuffer is the per-link outbound queue length.
	SendBuffer int `yaml:"send_buffer,omitempty"`

	Backoff BackoffSettings `yaml:"backoff,omitempty"`
}

// BackoffSettings shapes reconnect pacing for every service link.
type BackoffSettings struct {
	BaseMS int     `yaml:"base_ms,omitempty"`
	Factor float64 `yaml:"factor,omitempty"`
	MaxMS  int     `yaml:"max_ms,omitempty"`
	Jitter float64 `yaml:"jitter,omitempty"`
}

// ScribeSettings tunes the transcript publisher.
type ScribeSettings struct {
	// MinChars filters out chunks shorter than this many characters.
	MinChars int `yaml:"min_chars,omitempty"`

	// ContextSec is the rolling context window horizon in seconds.
	ContextSec float64 `yaml:"context_sec,omitempty"`
}

// ClassifySettings tunes the classification service.
type ClassifySettings struct {
	Workers       int           `yaml:"workers,omitempty"`
	ChunkInterval int           `yaml:"chunk_interval,omitempty"`
	MaxTurns      int           `yaml:"max_turns,omitempty"`
	Agent         AgentSettings `yaml:"agent,omitempty"`
}

// AgentSettings configures the optional conversation agent. The agent is
// enabled when Model is set; APIKey falls back to $OPENAI_API_KEY and may
// stay empty for local OpenAI-compatible endpoints.
type AgentSettings struct {
	Model     string `yaml:"model,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	TimeoutMS int    `yaml:"timeout_ms,omitempty"`
}

// TriggerSettings tunes the render debounce.
type TriggerSettings struct {
	CooldownSec   float64 `yaml:"cooldown_sec,omitempty"`
	MinConfidence string  `yaml:"min_confidence,omitempty"`
}

// RenderSettings tunes the render service.
type RenderSettings struct {
	// RendererURL is a ComfyUI-compatible server root. Empty selects the
	// built-in stub renderer.
	RendererURL string `yaml:"renderer_url,omitempty"`

	// Artifacts is the local directory for images and sidecars. Empty
	// selects a directory under os.TempDir(). Ignored when S3 is set.
	Artifacts string `yaml:"artifacts,omitempty"`

	// GalleryDir is the badger directory indexing completed jobs. Empty
	// disables the index.
	GalleryDir string `yaml:"gallery_dir,omitempty"`

	Style    string `yaml:"style,omitempty"`
	Detail   string `yaml:"detail,omitempty"`
	Suffix   string `yaml:"suffix,omitempty"`
	Negative string `yaml:"negative,omitempty"`

	S3 S3Settings `yaml:"s3,omitempty"`
}

// S3Settings selects an S3-compatible artifact store when Bucket is set.
// Credentials fall back to $AWS_ACCESS_KEY_ID / $AWS_SECRET_ACCESS_KEY.
type S3Settings struct {
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

// loadSettings reads the settings file. An explicit --config path must
// exist; the default location is optional and falls back to defaults.
func loadSettings() (*Settings, error) {
	path := flagConfig
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return &Settings{}, nil
		}
		path = filepath.Join(base, "stagewire", settingsFile)
		if _, err := os.Stat(path); err != nil {
			return &Settings{}, nil
		}
	}
	return loadSettingsFrom(path)
}

func loadSettingsFrom(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}

func (h HubSettings) addr() string {
	if h.Addr != "" {
		return h.Addr
	}
	return ":5555"
}

func (h HubSettings) url() string {
	if h.URL != "" {
		return hubURL(h.URL)
	}
	return "ws://127.0.0.1:5555/ws"
}

func (h HubSettings) heartbeat() time.Duration {
	return time.Duration(h.HeartbeatSec * float64(time.Second))
}

func (b BackoffSettings) backoff() link.Backoff {
	return link.Backoff{
		Base:   time.Duration(b.BaseMS) * time.Millisecond,
		Factor: b.Factor,
		Max:    time.Duration(b.MaxMS) * time.Millisecond,
		Jitter: b.Jitter,
	}
}

// linkConfig builds a hub link config for one service.
func (s *Settings) linkConfig(source, role string) link.Config {
	return link.Config{
		URL:               s.Hub.url(),
		Source:            source,
		Role:              role,
		HeartbeatInterval: s.Hub.heartbeat(),
		SendBuffer:        s.Hub.SendBuffer,
		Backoff:           s.Hub.Backoff.backoff(),
	}
}

// hubURL expands a bare host:port into a full hub endpoint URL.
func hubURL(s string) string {
	if strings.Contains(s, "://") {
		return s
	}
	return "ws://" + s + "/ws"
}
