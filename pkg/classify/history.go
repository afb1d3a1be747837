package classify

import "sync"

// Turn roles in a conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in the running conversation.
type Turn struct {
	Role    string
	Content string
}

// DefaultMaxTurns bounds the conversation history to this many exchanges.
const DefaultMaxTurns = 20

// History is a bounded record of user/assistant exchanges. Once the bound
// is reached the oldest entries fall off. Safe for concurrent use.
type History struct {
	mu       sync.Mutex
	maxTurns int
	turns    []Turn
}

// NewHistory returns a history keeping at most maxTurns exchanges.
// Non-positive maxTurns falls back to DefaultMaxTurns.
func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &History{maxTurns: maxTurns}
}

// Record appends one completed exchange.
func (h *History) Record(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns,
		Turn{Role: RoleUser, Content: user},
		Turn{Role: RoleAssistant, Content: assistant},
	)
	h.trim()
}

// Turns returns a copy of the retained history, oldest first.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len reports the number of retained exchanges.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns) / 2
}

// MaxTurns reports the current exchange bound.
func (h *History) MaxTurns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxTurns
}

// SetMaxTurns rebounds the history, dropping the oldest overflow.
// Non-positive values are ignored.
func (h *History) SetMaxTurns(n int) {
	if n <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maxTurns = n
	h.trim()
}

// Clear drops all retained exchanges.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = h.turns[:0]
}

func (h *History) trim() {
	if limit := h.maxTurns * 2; len(h.turns) > limit {
		h.turns = append(h.turns[:0], h.turns[len(h.turns)-limit:]...)
	}
}
