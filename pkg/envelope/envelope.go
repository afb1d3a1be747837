package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Type identifies the kind of message an envelope carries.
type Type int

const (
	TypeUnknown Type = iota
	TypeTranscript
	TypeIntent
	TypeKeywords
	TypeCommand
	TypePing
	TypePong
	TypeConfig
	TypeStatus
	TypeError
	TypeRenderStart
	TypeRenderProgress
	TypeRenderComplete
	TypeRenderError
)

// String returns the wire tag for the type.
func (t Type) String() string {
	switch t {
	case TypeTranscript:
		return "transcript"
	case TypeIntent:
		return "intent"
	case TypeKeywords:
		return "keywords"
	case TypeCommand:
		return "command"
	case TypePing:
		return "ping"
	case TypePong:
		return "pong"
	case TypeConfig:
		return "config"
	case TypeStatus:
		return "status"
	case TypeError:
		return "error"
	case TypeRenderStart:
		return "render_start"
	case TypeRenderProgress:
		return "render_progress"
	case TypeRenderComplete:
		return "render_complete"
	case TypeRenderError:
		return "render_error"
	default:
		return "unknown"
	}
}

// ParseType maps a wire tag to its Type. Unrecognized tags map to TypeUnknown.
func ParseType(tag string) Type {
	switch tag {
	case "transcript":
		return TypeTranscript
	case "intent":
		return TypeIntent
	case "keywords":
		return TypeKeywords
	case "command":
		return TypeCommand
	case "ping":
		return TypePing
	case "pong":
		return TypePong
	case "config":
		return TypeConfig
	case "status":
		return TypeStatus
	case "error":
		return TypeError
	case "render_start":
		return TypeRenderStart
	case "render_progress":
		return TypeRenderProgress
	case "render_complete":
		return TypeRenderComplete
	case "render_error":
		return TypeRenderError
	default:
		return TypeUnknown
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Type) UnmarshalJSON(b []byte) error {
	var tag string
	if err := json.Unmarshal(b, &tag); err != nil {
		return err
	}
	*t = ParseType(tag)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Well-known source names. Sources are free-form strings on the wire;
// these are the ones the pipeline services identify themselves with.
const (
	SourceScribe   = "scribe"
	SourceClassify = "classify"
	SourceTrigger  = "trigger"
	SourceRender   = "render"
	SourceBridge   = "bridge"
	SourceClient   = "client"
)

// Connection roles declared to the hub. Advisory: the hub records the role
// but relays for every connection the same way.
const (
	RoleProducer   = "producer"
	RoleSubscriber = "subscriber"
	RoleDual       = "dual"
)

// Common errors.
var (
	// ErrPayloadType is returned by a payload accessor when the envelope
	// carries a different message type.
	ErrPayloadType = errors.New("envelope: payload type mismatch")

	// ErrNoPayload is returned by a payload accessor when the envelope
	// carries no data object.
	ErrNoPayload = errors.New("envelope: no payload")
)

// ValidationError reports why a frame was rejected by Decode.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("envelope: invalid %s: %s", e.Field, e.Reason)
}

// Envelope is the unit of communication between services. Data is kept as
// raw JSON so payload fields unknown to this build are preserved across
// decode/encode.
type Envelope struct {
	Type      Type            `json:"type"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data,omitempty"`
	ID        string          `json:"id"`
	Timestamp Millis          `json:"timestamp"`

	// Received is the hub receipt stamp, absent until the envelope has
	// passed through a bridge. Never earlier than Timestamp.
	Received Millis `json:"received,omitempty"`

	// Seq is the hub broadcast sequence number, assigned on receipt.
	Seq uint64 `json:"seq,omitempty"`
}

// Encode renders the envelope as a single JSON frame.
func (e *Envelope) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("envelope: encode: %w", err)
	}
	return b, nil
}

// dataField reports whether the payload object contains the given key.
// Returns false when the payload is not a JSON object.
func dataField(data json.RawMessage, key string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}

// requiredDataKeys lists the payload fields Decode insists on per type.
// Types absent from the map accept any payload, including none.
var requiredDataKeys = map[Type]string{
	TypeTranscript: "text",
	TypeIntent:     "intent",
	TypeCommand:    "action",
	TypeConfig:     "key",
}

// Decode parses and validates a single JSON frame. Malformed input is
// rejected with a *ValidationError; Decode never panics. A missing
// timestamp is filled with the decode time.
func Decode(frame []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(frame, &e); err != nil {
		return nil, &ValidationError{Field: "frame", Reason: err.Error()}
	}
	if e.Type == TypeUnknown {
		return nil, &ValidationError{Field: "type", Reason: "missing or unrecognized"}
	}
	if e.Source == "" {
		return nil, &ValidationError{Field: "source", Reason: "missing"}
	}
	if e.ID == "" {
		return nil, &ValidationError{Field: "id", Reason: "missing"}
	}
	if len(e.Data) > 0 && string(e.Data) != "null" {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(e.Data, &probe); err != nil {
			return nil, &ValidationError{Field: "data", Reason: "not an object"}
		}
	}
	if key, ok := requiredDataKeys[e.Type]; ok {
		if !dataField(e.Data, key) {
			return nil, &ValidationError{
				Field:  "data." + key,
				Reason: fmt.Sprintf("missing (required for %s)", e.Type),
			}
		}
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = Now()
	}
	return &e, nil
}

// StampReceived records the hub receipt time and broadcast sequence.
// The stamp is clamped so it never precedes the producer timestamp.
func (e *Envelope) StampReceived(now time.Time, seq uint64) {
	r := At(now)
	if r.Before(e.Timestamp) {
		r = e.Timestamp
	}
	e.Received = r
	e.Seq = seq
}

// IDGen issues monotonically increasing envelope IDs for one source.
// Safe for concurrent use.
type IDGen struct {
	source string
	seq    atomic.Uint64
}

// NewIDGen creates an IDGen for the given source name.
func NewIDGen(source string) *IDGen {
	return &IDGen{source: source}
}

// Next returns the next ID, formatted "<source>-<seq>".
func (g *IDGen) Next() string {
	return fmt.Sprintf("%s-%d", g.source, g.seq.Add(1))
}
