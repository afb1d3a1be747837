package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumenstage/stagewire/pkg/envelope"
)

// Common errors.
var (
	// ErrClosed is returned when operating on a closed client.
	ErrClosed = errors.New("link: client closed")

	// ErrNotOpen is returned by WaitOpen when the client closes before
	// the link comes up.
	ErrNotOpen = errors.New("link: closed before open")
)

// Config is the configuration for a hub link.
type Config struct {
	// URL is the hub WebSocket endpoint, e.g. "ws://127.0.0.1:5555/ws".
	URL string

	// Source identifies this service. Used for envelope IDs and declared
	// to the hub on connect.
	Source string

	// Role declared to the hub: envelope.RoleProducer, RoleSubscriber or
	// RoleDual. Default is RoleSubscriber.
	Role string

	// HeartbeatInterval is the idle interval H. After H without link
	// traffic the client emits an envelope-level ping; after 2H without
	// inbound traffic the link is torn down and redialed.
	// Default 15s. Negative disables heartbeating.
	HeartbeatInterval time.Duration

	// SendBuffer is the outbound queue length. When full, the oldest
	// queued envelope is dropped. Default 256.
	SendBuffer int

	// ReceiveBuffer is the inbound queue length. Default 256.
	ReceiveBuffer int

	// Backoff controls reconnect pacing.
	Backoff Backoff

	// HandshakeTimeout is the dial timeout. Default 10s.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single frame write. Default 10s.
	WriteTimeout time.Duration

	// DrainTimeout bounds the best-effort flush of queued envelopes
	// during Close. Default 2s.
	DrainTimeout time.Duration

	// Dialer is the WebSocket dialer. If nil, a default dialer with
	// HandshakeTimeout is used.
	Dialer *websocket.Dialer
}

// setDefaults sets default values for the config.
func (c *Config) setDefaults() {
	if c.Source == "" {
		c.Source = envelope.SourceClient
	}
	if c.Role == "" {
		c.Role = envelope.RoleSubscriber
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.ReceiveBuffer <= 0 {
		c.ReceiveBuffer = 256
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 2 * time.Second
	}
	c.Backoff.setDefaults()
}

// Client is a self-healing connection to the hub. It dials in the
// background, redials with backoff after any failure, and queues outbound
// envelopes while the link is down.
type Client struct {
	config Config
	gen    *envelope.IDGen

	sendCh chan *envelope.Envelope
	recvCh chan *envelope.Envelope

	closeCh   chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once

	state     atomic.Int32
	dropped   atomic.Uint64
	malformed atomic.Uint64

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Dial starts a client for the given config. It returns immediately; the
// connection is established (and re-established) in the background.
func Dial(config Config) *Client {
	config.setDefaults()

	c := &Client{
		config:  config,
		gen:     envelope.NewIDGen(config.Source),
		sendCh:  make(chan *envelope.Envelope, config.SendBuffer),
		recvCh:  make(chan *envelope.Envelope, config.ReceiveBuffer),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
		now:     time.Now,
	}

	go c.run()
	return c
}

// State returns the current lifecycle state of the link.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Dropped returns the number of envelopes discarded because a queue was
// full.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Malformed returns the number of inbound frames skipped because they
// failed to decode.
func (c *Client) Malformed() uint64 {
	return c.malformed.Load()
}

// Receive returns the channel of inbound envelopes. The channel is closed
// when the client is closed.
func (c *Client) Receive() <-chan *envelope.Envelope {
	return c.recvCh
}

// Send queues an envelope for delivery. It never blocks: when the
// outbound queue is full the oldest queued envelope is dropped with a
// warning. An empty ID or timestamp is filled in.
func (c *Client) Send(env *envelope.Envelope) error {
	select {
	case <-c.closeCh:
		return ErrClosed
	default:
	}

	if env.ID == "" {
		env.ID = c.gen.Next()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = envelope.At(c.now())
	}

	for {
		select {
		case c.sendCh <- env:
			return nil
		default:
		}

		// Queue full: evict the oldest and retry.
		select {
		case old := <-c.sendCh:
			c.dropped.Add(1)
			slog.Warn("link: send queue full, dropping oldest",
				"source", c.config.Source, "type", old.Type, "id", old.ID)
		default:
		}
	}
}

// WaitOpen blocks until the link is open, the context is done, or the
// client is closed.
func (c *Client) WaitOpen(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.State() == StateOpen {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closeCh:
			return ErrNotOpen
		case <-ticker.C:
		}
	}
}

// Close stops reconnecting, flushes queued envelopes best-effort within
// the drain timeout, and closes the link.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
	<-c.doneCh
	return nil
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// run is the connection manager: dial, serve the session, back off, redial.
func (c *Client) run() {
	defer close(c.doneCh)
	defer close(c.recvCh)
	defer c.setState(StateDisconnected)

	attempt := 0
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		c.setState(StateConnecting)
		conn, err := c.dial()
		if err != nil {
			c.setState(StateDisconnected)
			delay := c.config.Backoff.Next(attempt)
			attempt++
			slog.Debug("link: dial failed",
				"source", c.config.Source, "url", c.config.URL,
				"retry_in", delay, "error", err)
			select {
			case <-c.closeCh:
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		c.setState(StateOpen)
		slog.Info("link: connected", "source", c.config.Source, "url", c.config.URL)

		closing := c.session(conn)
		c.setState(StateDisconnected)
		if closing {
			return
		}
		slog.Warn("link: disconnected", "source", c.config.Source)

		delay := c.config.Backoff.Next(0)
		select {
		case <-c.closeCh:
			return
		case <-time.After(delay):
		}
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("link: bad url: %w", err)
	}
	q := u.Query()
	q.Set("source", c.config.Source)
	q.Set("role", c.config.Role)
	u.RawQuery = q.Encode()

	dialer := c.config.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	}

	conn, resp, err := dialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("link: dial %s: status %d: %w", c.config.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("link: dial %s: %w", c.config.URL, err)
	}
	return conn, nil
}

type frameOrError struct {
	frame []byte
	err   error
}

// session serves one live socket until it fails or the client closes.
// Returns true when the client is closing.
func (c *Client) session(conn *websocket.Conn) bool {
	defer conn.Close()

	sessionDone := make(chan struct{})
	defer close(sessionDone)

	frameCh := make(chan frameOrError, 1)
	go func() {
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				select {
				case frameCh <- frameOrError{err: err}:
				case <-sessionDone:
				}
				return
			}
			select {
			case frameCh <- frameOrError{frame: frame}:
			case <-sessionDone:
				return
			}
		}
	}()

	hb := c.config.HeartbeatInterval
	var tickCh <-chan time.Time
	if hb > 0 {
		ticker := time.NewTicker(hb / 2)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	lastSent := c.now()
	lastRecv := c.now()

	for {
		select {
		case env := <-c.sendCh:
			if err := c.write(conn, env); err != nil {
				slog.Warn("link: write failed", "source", c.config.Source, "error", err)
				return false
			}
			lastSent = c.now()

		case fe := <-frameCh:
			if fe.err != nil {
				slog.Debug("link: read failed", "source", c.config.Source, "error", fe.err)
				return false
			}
			lastRecv = c.now()
			env, err := envelope.Decode(fe.frame)
			if err != nil {
				c.malformed.Add(1)
				slog.Warn("link: dropping malformed frame", "source", c.config.Source, "error", err)
				continue
			}
			c.deliver(env)

		case <-tickCh:
			now := c.now()
			if now.Sub(lastRecv) >= 2*hb {
				slog.Warn("link: peer silent, forcing reconnect",
					"source", c.config.Source, "silent_for", now.Sub(lastRecv))
				return false
			}
			idle := now.Sub(lastRecv)
			if sent := now.Sub(lastSent); sent < idle {
				idle = sent
			}
			if idle >= hb {
				if err := c.write(conn, envelope.NewPing(c.config.Source)); err != nil {
					slog.Warn("link: ping failed", "source", c.config.Source, "error", err)
					return false
				}
				lastSent = c.now()
			}

		case <-c.closeCh:
			c.drain(conn)
			deadline := c.now().Add(c.config.WriteTimeout)
			conn.SetWriteDeadline(deadline)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return true
		}
	}
}

// write sends one envelope with the configured write deadline.
func (c *Client) write(conn *websocket.Conn, env *envelope.Envelope) error {
	if env.ID == "" {
		env.ID = c.gen.Next()
	}
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(c.now().Add(c.config.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// drain flushes queued envelopes best-effort before close.
func (c *Client) drain(conn *websocket.Conn) {
	deadline := c.now().Add(c.config.DrainTimeout)
	for {
		if c.now().After(deadline) {
			return
		}
		select {
		case env := <-c.sendCh:
			if err := c.write(conn, env); err != nil {
				return
			}
		default:
			return
		}
	}
}

// deliver hands an inbound envelope to the receive queue, evicting the
// oldest entry when the consumer has fallen behind.
func (c *Client) deliver(env *envelope.Envelope) {
	for {
		select {
		case c.recvCh <- env:
			return
		default:
		}
		select {
		case old := <-c.recvCh:
			c.dropped.Add(1)
			slog.Warn("link: receive queue full, dropping oldest",
				"source", c.config.Source, "type", old.Type, "id", old.ID)
		default:
		}
	}
}
