package envelope

import (
	"encoding/json"
	"fmt"
)

// Transcript is the payload of a transcript envelope: one chunk of
// recognized speech plus the rolling context it arrived in.
type Transcript struct {
	Text    string   `json:"text"`
	ChunkID int      `json:"chunk_id"`
	Context []string `json:"context,omitempty"`
}

// Intent is the payload of an intent envelope. Category and Confidence
// carry the classifier's wire tags ("image"/"conversation",
// "low"/"medium"/"high").
type Intent struct {
	Category   string   `json:"intent"`
	Confidence string   `json:"confidence"`
	Prompt     string   `json:"prompt,omitempty"`
	Topics     []string `json:"topics,omitempty"`
	Questions  []string `json:"questions,omitempty"`
	Sentiment  string   `json:"sentiment,omitempty"`
}

// Keywords is the payload of a keywords envelope: salient terms extracted
// from a transcript chunk regardless of its intent category.
type Keywords struct {
	Topics    []string `json:"topics"`
	Questions []string `json:"questions"`
	Sentiment string   `json:"sentiment"`
	Original  string   `json:"original"`

	// Reply is the conversation agent's short response, when one was
	// generated for this chunk.
	Reply string `json:"agent_response,omitempty"`
}

// ActionRender is the command action consumed by the render service.
const ActionRender = "render"

// Command is the payload of a command envelope: an action for a downstream
// service with free-form string parameters.
type Command struct {
	Action string            `json:"action"`
	Params map[string]string `json:"params,omitempty"`
}

// Config is the payload of a config envelope. Service is the advisory
// target; an empty Service addresses everyone.
type Config struct {
	Service string `json:"service,omitempty"`
	Key     string `json:"key"`
	Value   any    `json:"value"`
}

// Str returns the config value as a string, or def when it is not one.
func (c *Config) Str(def string) string {
	if s, ok := c.Value.(string); ok {
		return s
	}
	return def
}

// Int returns the config value as an int, or def when it is not numeric.
func (c *Config) Int(def int) int {
	switch v := c.Value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// Bool returns the config value as a bool, or def when it is not one.
func (c *Config) Bool(def bool) bool {
	if b, ok := c.Value.(bool); ok {
		return b
	}
	return def
}

// Float returns the config value as a float64, or def when it is not numeric.
func (c *Config) Float(def float64) float64 {
	switch v := c.Value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

// Status is the payload of a status envelope.
type Status struct {
	State string         `json:"status"`
	Info  map[string]any `json:"info,omitempty"`
}

// ErrorInfo is the payload of an error envelope.
type ErrorInfo struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// Pong is the payload of a pong envelope. Peers lists the sources
// currently connected to the hub.
type Pong struct {
	Peers []string `json:"peers,omitempty"`
}

// RenderStart is the payload of a render_start envelope.
type RenderStart struct {
	RequestID string `json:"request_id"`
	Prompt    string `json:"prompt"`
}

// RenderProgress is the payload of a render_progress envelope.
type RenderProgress struct {
	RequestID string  `json:"request_id"`
	Percent   float64 `json:"percent"`
}

// RenderResult is the payload of a render_complete envelope.
type RenderResult struct {
	RequestID      string `json:"request_id"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ImagePath      string `json:"image_path"`
	ElapsedMS      int64  `json:"elapsed_ms,omitempty"`
}

// RenderFailure is the payload of a render_error envelope.
type RenderFailure struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// rawData marshals a payload struct into a raw JSON object. The payload
// types above only hold JSON-representable values, so a marshal failure
// degrades to an empty object rather than an error return.
func rawData(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

func newEnvelope(typ Type, source string, payload any) *Envelope {
	return &Envelope{
		Type:      typ,
		Source:    source,
		Data:      rawData(payload),
		Timestamp: Now(),
	}
}

// New builds an envelope of the given type with an arbitrary payload.
// ID assignment is left to the sending link.
func New(typ Type, source string, payload any) *Envelope {
	return newEnvelope(typ, source, payload)
}

// NewTranscript builds a transcript envelope from the scribe service.
func NewTranscript(text string, chunkID int, context []string) *Envelope {
	return newEnvelope(TypeTranscript, SourceScribe, &Transcript{
		Text:    text,
		ChunkID: chunkID,
		Context: context,
	})
}

// NewIntent builds an intent envelope from the classify service.
func NewIntent(in Intent) *Envelope {
	return newEnvelope(TypeIntent, SourceClassify, &in)
}

// NewKeywords builds a keywords envelope from the classify service.
func NewKeywords(kw Keywords) *Envelope {
	return newEnvelope(TypeKeywords, SourceClassify, &kw)
}

// NewCommand builds a command envelope from the trigger service.
func NewCommand(action string, params map[string]string) *Envelope {
	return newEnvelope(TypeCommand, SourceTrigger, &Command{
		Action: action,
		Params: params,
	})
}

// NewConfig builds a config envelope. An empty service addresses everyone.
func NewConfig(service, key string, value any) *Envelope {
	return newEnvelope(TypeConfig, SourceClient, &Config{
		Service: service,
		Key:     key,
		Value:   value,
	})
}

// NewStatus builds a status envelope for the given source.
func NewStatus(source, state string, info map[string]any) *Envelope {
	return newEnvelope(TypeStatus, source, &Status{
		State: state,
		Info:  info,
	})
}

// NewError builds an error envelope for the given source.
func NewError(source, msg string, details map[string]any) *Envelope {
	return newEnvelope(TypeError, source, &ErrorInfo{
		Error:   msg,
		Details: details,
	})
}

// NewPing builds a ping envelope for the given source.
func NewPing(source string) *Envelope {
	return newEnvelope(TypePing, source, struct{}{})
}

// NewPong builds the hub's reply to a ping.
func NewPong(peers []string) *Envelope {
	return newEnvelope(TypePong, SourceBridge, &Pong{Peers: peers})
}

// NewRenderStart builds a render_start envelope from the render service.
func NewRenderStart(requestID, prompt string) *Envelope {
	return newEnvelope(TypeRenderStart, SourceRender, &RenderStart{
		RequestID: requestID,
		Prompt:    prompt,
	})
}

// NewRenderProgress builds a render_progress envelope from the render service.
func NewRenderProgress(requestID string, percent float64) *Envelope {
	return newEnvelope(TypeRenderProgress, SourceRender, &RenderProgress{
		RequestID: requestID,
		Percent:   percent,
	})
}

// NewRenderComplete builds a render_complete envelope from the render service.
func NewRenderComplete(res RenderResult) *Envelope {
	return newEnvelope(TypeRenderComplete, SourceRender, &res)
}

// NewRenderError builds a render_error envelope from the render service.
func NewRenderError(requestID, msg string) *Envelope {
	return newEnvelope(TypeRenderError, SourceRender, &RenderFailure{
		RequestID: requestID,
		Error:     msg,
	})
}

func (e *Envelope) payload(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return ErrNoPayload
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("envelope: decode %s payload: %w", e.Type, err)
	}
	return nil
}

func (e *Envelope) typedPayload(typ Type, v any) error {
	if e.Type != typ {
		return fmt.Errorf("%w: have %s, want %s", ErrPayloadType, e.Type, typ)
	}
	return e.payload(v)
}

// Transcript decodes the payload of a transcript envelope.
func (e *Envelope) Transcript() (*Transcript, error) {
	var p Transcript
	if err := e.typedPayload(TypeTranscript, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Intent decodes the payload of an intent envelope.
func (e *Envelope) Intent() (*Intent, error) {
	var p Intent
	if err := e.typedPayload(TypeIntent, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Keywords decodes the payload of a keywords envelope.
func (e *Envelope) Keywords() (*Keywords, error) {
	var p Keywords
	if err := e.typedPayload(TypeKeywords, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Command decodes the payload of a command envelope.
func (e *Envelope) Command() (*Command, error) {
	var p Command
	if err := e.typedPayload(TypeCommand, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Config decodes the payload of a config envelope.
func (e *Envelope) Config() (*Config, error) {
	var p Config
	if err := e.typedPayload(TypeConfig, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Status decodes the payload of a status envelope.
func (e *Envelope) Status() (*Status, error) {
	var p Status
	if err := e.typedPayload(TypeStatus, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ErrorInfo decodes the payload of an error envelope.
func (e *Envelope) ErrorInfo() (*ErrorInfo, error) {
	var p ErrorInfo
	if err := e.typedPayload(TypeError, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Pong decodes the payload of a pong envelope.
func (e *Envelope) Pong() (*Pong, error) {
	var p Pong
	if err := e.typedPayload(TypePong, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RenderStart decodes the payload of a render_start envelope.
func (e *Envelope) RenderStart() (*RenderStart, error) {
	var p RenderStart
	if err := e.typedPayload(TypeRenderStart, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RenderProgress decodes the payload of a render_progress envelope.
func (e *Envelope) RenderProgress() (*RenderProgress, error) {
	var p RenderProgress
	if err := e.typedPayload(TypeRenderProgress, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RenderResult decodes the payload of a render_complete envelope.
func (e *Envelope) RenderResult() (*RenderResult, error) {
	var p RenderResult
	if err := e.typedPayload(TypeRenderComplete, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RenderFailure decodes the payload of a render_error envelope.
func (e *Envelope) RenderFailure() (*RenderFailure, error) {
	var p RenderFailure
	if err := e.typedPayload(TypeRenderError, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
