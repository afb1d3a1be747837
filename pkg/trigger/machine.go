// Package trigger debounces image intents into render commands.
//
// A burst of similar utterances must not flood the renderer, so emitted
// commands open a cooldown window during which further intents are
// recorded but suppressed. The machine keeps no timers of its own:
// callers pass the current time to every observation and transitions are
// evaluated lazily against it.
package trigger

import (
	"sync"
	"time"

	"github.com/lumenstage/stagewire/pkg/intent"
)

// DefaultCooldown is the suppression window after an emitted command.
const DefaultCooldown = 10 * time.Second

// State is the position of the machine in its debounce cycle.
type State int

const (
	// Idle means no recent command; the next accepted intent emits.
	Idle State = iota
	// Triggered means a command was emitted at the observed instant.
	Triggered
	// Cooling means a command was emitted within the cooldown window;
	// further intents are recorded but suppressed.
	Cooling
)

func (s State) String() string {
	switch s {
	case Triggered:
		return "triggered"
	case Cooling:
		return "cooling"
	default:
		return "idle"
	}
}

// Command is an emitted render instruction.
type Command struct {
	Prompt     string
	Confidence intent.Confidence
	At         time.Time
}

// Machine converts image intents into debounced commands.
type Machine struct {
	mu          sync.Mutex
	cooldown    time.Duration
	min         intent.Confidence
	state       State
	lastTrigger time.Time
	lastPrompt  string
}

// NewMachine returns a machine with the given cooldown window and minimum
// confidence gate. A non-positive cooldown selects DefaultCooldown.
func NewMachine(cooldown time.Duration, min intent.Confidence) *Machine {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Machine{cooldown: cooldown, min: min}
}

// Offer presents a classification result to the machine at the given
// instant. It returns a command exactly when the result is an image
// intent at or above the confidence gate, a prompt is available, and the
// machine is not cooling. Image intents that pass the gate while cooling
// still update the recorded prompt so a later bare trigger can reuse it.
func (m *Machine) Offer(res intent.Result, now time.Time) (*Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance(now)
	if res.Category != intent.Image || res.Confidence < m.min {
		return nil, false
	}
	if res.Prompt != "" {
		m.lastPrompt = res.Prompt
	}
	if m.state != Idle {
		return nil, false
	}
	prompt := res.Prompt
	if prompt == "" {
		prompt = m.lastPrompt
	}
	if prompt == "" {
		return nil, false
	}
	m.state = Triggered
	m.lastTrigger = now
	return &Command{Prompt: prompt, Confidence: res.Confidence, At: now}, true
}

// advance moves the machine along its cycle as of now. Triggered decays
// to Cooling one observation after the emitting instant, Cooling to Idle
// once the window has elapsed.
func (m *Machine) advance(now time.Time) {
	if m.state == Idle {
		return
	}
	if !now.Before(m.lastTrigger.Add(m.cooldown)) {
		m.state = Idle
		return
	}
	if m.state == Triggered && now.After(m.lastTrigger) {
		m.state = Cooling
	}
}

// State reports the machine state as of now.
func (m *Machine) State(now time.Time) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance(now)
	return m.state
}

// LastPrompt returns the most recently recorded prompt.
func (m *Machine) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// Cooldown returns the current cooldown window.
func (m *Machine) Cooldown() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cooldown
}

// SetCooldown replaces the cooldown window. It applies to an in-flight
// window as well as future ones. Non-positive values are ignored.
func (m *Machine) SetCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldown = d
}

// MinConfidence returns the confidence gate.
func (m *Machine) MinConfidence() intent.Confidence {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.min
}

// SetMinConfidence replaces the confidence gate.
func (m *Machine) SetMinConfidence(c intent.Confidence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.min = c
}
