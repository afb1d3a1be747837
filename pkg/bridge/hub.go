package bridge

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumenstage/stagewire/pkg/envelope"
)

// Common errors.
var (
	// ErrAlreadyRunning is returned when the hub is already serving.
	ErrAlreadyRunning = errors.New("bridge: already running")
)

// Hub is the central envelope relay.
type Hub struct {
	// OnConnect is called when a connection registers.
	OnConnect func(source, role string)

	// OnDisconnect is called when a connection is deregistered.
	OnDisconnect func(source, role string)

	// SendBuffer is the outbound queue length per connection. When a
	// subscriber's queue is full its oldest envelope is dropped.
	// Default 256.
	SendBuffer int

	// ReadLimit is the maximum inbound frame size in bytes. Default 1MB.
	ReadLimit int64

	// ViolationThreshold is the number of malformed frames tolerated per
	// connection before it is force-closed. Default 8.
	ViolationThreshold int

	// IdleTimeout closes a connection with no inbound traffic. Clients
	// ping at their heartbeat interval, so this should comfortably
	// exceed it. Default 45s.
	IdleTimeout time.Duration

	// WriteTimeout bounds a single frame write. Default 10s.
	WriteTimeout time.Duration

	// DrainTimeout bounds the per-connection flush during Close.
	// Default 2s.
	DrainTimeout time.Duration

	// internal state
	mu       sync.Mutex
	conns    map[uint64]*conn
	ln       net.Listener
	running  atomic.Bool
	initOnce sync.Once

	nextConnID atomic.Uint64
	seq        atomic.Uint64
	gen        *envelope.IDGen

	received   atomic.Uint64
	broadcasts atomic.Uint64
	dropped    atomic.Uint64
	violations atomic.Uint64

	upgrader websocket.Upgrader

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Stats is a snapshot of relay counters.
type Stats struct {
	Conns      int
	Received   uint64
	Broadcasts uint64
	Dropped    uint64
	Violations uint64
}

func (h *Hub) init() {
	h.initOnce.Do(func() {
		if h.SendBuffer <= 0 {
			h.SendBuffer = 256
		}
		if h.ReadLimit <= 0 {
			h.ReadLimit = 1 << 20
		}
		if h.ViolationThreshold <= 0 {
			h.ViolationThreshold = 8
		}
		if h.IdleTimeout <= 0 {
			h.IdleTimeout = 45 * time.Second
		}
		if h.WriteTimeout <= 0 {
			h.WriteTimeout = 10 * time.Second
		}
		if h.DrainTimeout <= 0 {
			h.DrainTimeout = 2 * time.Second
		}
		if h.now == nil {
			h.now = time.Now
		}
		h.conns = make(map[uint64]*conn)
		h.gen = envelope.NewIDGen(envelope.SourceBridge)
		h.upgrader = websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The hub is an open rendezvous point; origin checks are
			// left to a fronting proxy when one exists.
			CheckOrigin: func(*http.Request) bool { return true },
		}
	})
}

// Serve accepts hub connections from the listener. It blocks until the
// listener is closed or an error occurs.
func (h *Hub) Serve(ln net.Listener) error {
	if h.running.Swap(true) {
		return ErrAlreadyRunning
	}
	h.init()

	h.mu.Lock()
	h.ln = ln
	h.mu.Unlock()

	err := http.Serve(ln, h)
	if !h.running.Load() {
		return nil // Closed normally
	}
	return err
}

// ServeHTTP upgrades an HTTP request to a hub connection. This is the
// handler mounted at the hub's WebSocket path.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init()

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("bridge: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = envelope.SourceClient
	}
	role := r.URL.Query().Get("role")
	switch role {
	case envelope.RoleProducer, envelope.RoleSubscriber, envelope.RoleDual:
	default:
		role = envelope.RoleSubscriber
	}

	c := &conn{
		id:      h.nextConnID.Add(1),
		source:  source,
		role:    role,
		sock:    sock,
		sendCh:  make(chan *envelope.Envelope, h.SendBuffer),
		closeCh: make(chan struct{}),
	}

	h.register(c)
	defer h.deregister(c)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	if h.OnConnect != nil {
		h.OnConnect(c.source, c.role)
	}
	slog.Info("bridge: connected", "conn", c.id, "source", c.source, "role", c.role)

	h.Publish(envelope.NewStatus(envelope.SourceBridge, "peer_joined", map[string]any{
		"source": c.source,
		"role":   c.role,
	}))
}

func (h *Hub) deregister(c *conn) {
	h.mu.Lock()
	_, present := h.conns[c.id]
	delete(h.conns, c.id)
	h.mu.Unlock()

	c.close()
	if !present {
		return
	}

	if h.OnDisconnect != nil {
		h.OnDisconnect(c.source, c.role)
	}
	slog.Info("bridge: disconnected", "conn", c.id, "source", c.source)

	h.Publish(envelope.NewStatus(envelope.SourceBridge, "peer_left", map[string]any{
		"source": c.source,
		"role":   c.role,
	}))
}

// handleEnvelope routes one valid inbound envelope.
func (h *Hub) handleEnvelope(c *conn, env *envelope.Envelope) {
	env.StampReceived(h.now(), h.seq.Add(1))
	h.received.Add(1)

	// Pings are answered directly, never relayed.
	if env.Type == envelope.TypePing {
		pong := envelope.NewPong(h.peerSources())
		pong.ID = h.gen.Next()
		if c.send(pong) {
			h.dropped.Add(1)
		}
		return
	}

	h.broadcast(env, c.id)
}

// broadcast fans an envelope out to every connection except the excluded
// one. The registry is snapshotted first so a slow subscriber never holds
// the lock.
func (h *Hub) broadcast(env *envelope.Envelope, exclude uint64) {
	h.mu.Lock()
	targets := make([]*conn, 0, len(h.conns))
	for id, c := range h.conns {
		if id != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	h.broadcasts.Add(1)
	for _, c := range targets {
		if c.send(env) {
			h.dropped.Add(1)
			slog.Debug("bridge: subscriber lagging, dropped oldest",
				"conn", c.id, "source", c.source, "type", env.Type)
		}
	}
}

// Publish broadcasts a hub-authored envelope to every connection.
func (h *Hub) Publish(env *envelope.Envelope) {
	h.init()
	if env.ID == "" {
		env.ID = h.gen.Next()
	}
	env.StampReceived(h.now(), h.seq.Add(1))
	h.broadcast(env, 0)
}

// peerSources lists the sources currently connected, for pong replies.
func (h *Hub) peerSources() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[string]bool, len(h.conns))
	sources := make([]string, 0, len(h.conns))
	for _, c := range h.conns {
		if !seen[c.source] {
			seen[c.source] = true
			sources = append(sources, c.source)
		}
	}
	return sources
}

// Stats returns a snapshot of relay counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	n := len(h.conns)
	h.mu.Unlock()
	return Stats{
		Conns:      n,
		Received:   h.received.Load(),
		Broadcasts: h.broadcasts.Load(),
		Dropped:    h.dropped.Load(),
		Violations: h.violations.Load(),
	}
}

// Close stops accepting connections and closes every connection after a
// bounded drain. The hub keeps no state across Close.
func (h *Hub) Close() error {
	h.init()
	wasRunning := h.running.Swap(false)

	h.mu.Lock()
	ln := h.ln
	h.ln = nil
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[uint64]*conn)
	h.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, c := range conns {
		c.close()
	}

	if wasRunning {
		s := h.Stats()
		slog.Info("bridge: closed",
			"received", s.Received, "broadcasts", s.Broadcasts,
			"dropped", s.Dropped, "violations", s.Violations)
	}
	return nil
}
