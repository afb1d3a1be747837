package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumenstage/stagewire/pkg/envelope"
)

// conn is one registered hub connection.
type conn struct {
	id     uint64
	source string
	role   string
	sock   *websocket.Conn

	sendCh    chan *envelope.Envelope
	closeCh   chan struct{}
	closeOnce sync.Once
}

// send queues an envelope for this connection, evicting the oldest queued
// envelope when the buffer is full. Reports whether anything was dropped.
// Never blocks.
func (c *conn) send(env *envelope.Envelope) (dropped bool) {
	for {
		select {
		case c.sendCh <- env:
			return dropped
		default:
		}
		select {
		case <-c.sendCh:
			dropped = true
		default:
		}
	}
}

// close signals the write loop to flush and shut the socket. Idempotent.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
}

// readLoop pulls frames off the socket until it fails, the peer goes
// silent past the idle window, or the violation threshold is crossed.
// Protocol-level pongs (answered automatically by any reading peer) count
// as liveness, so a quiet subscriber stays registered while a wedged one
// does not.
func (h *Hub) readLoop(c *conn) {
	c.sock.SetReadLimit(h.ReadLimit)
	c.sock.SetReadDeadline(h.now().Add(h.IdleTimeout))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(h.now().Add(h.IdleTimeout))
	})

	violations := 0
	for {
		_, frame, err := c.sock.ReadMessage()
		if err != nil {
			slog.Debug("bridge: read ended", "conn", c.id, "source", c.source, "error", err)
			return
		}
		c.sock.SetReadDeadline(h.now().Add(h.IdleTimeout))

		env, err := envelope.Decode(frame)
		if err != nil {
			violations++
			h.violations.Add(1)
			slog.Warn("bridge: dropping malformed frame",
				"conn", c.id, "source", c.source,
				"violations", violations, "error", err)
			if violations >= h.ViolationThreshold {
				slog.Warn("bridge: violation threshold reached, closing",
					"conn", c.id, "source", c.source)
				return
			}
			continue
		}

		h.handleEnvelope(c, env)
	}
}

// writeLoop owns all writes to the socket: queued envelopes, liveness
// pings, and the final flush. On close it drains queued envelopes within
// the drain window, then shuts the socket, which also unblocks the read
// loop.
func (h *Hub) writeLoop(c *conn) {
	pinger := time.NewTicker(h.IdleTimeout / 2)
	defer pinger.Stop()

	for {
		select {
		case env := <-c.sendCh:
			if err := h.writeEnvelope(c, env); err != nil {
				slog.Debug("bridge: write failed, closing",
					"conn", c.id, "source", c.source, "error", err)
				c.close()
				c.sock.Close()
				return
			}

		case <-pinger.C:
			c.sock.SetWriteDeadline(h.now().Add(h.WriteTimeout))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("bridge: ping failed, closing",
					"conn", c.id, "source", c.source, "error", err)
				c.close()
				c.sock.Close()
				return
			}

		case <-c.closeCh:
			deadline := h.now().Add(h.DrainTimeout)
			for h.now().Before(deadline) {
				select {
				case env := <-c.sendCh:
					if err := h.writeEnvelope(c, env); err != nil {
						c.sock.Close()
						return
					}
					continue
				default:
				}
				break
			}
			c.sock.SetWriteDeadline(h.now().Add(h.WriteTimeout))
			c.sock.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.sock.Close()
			return
		}
	}
}

func (h *Hub) writeEnvelope(c *conn, env *envelope.Envelope) error {
	frame, err := env.Encode()
	if err != nil {
		slog.Warn("bridge: skipping unencodable envelope", "conn", c.id, "error", err)
		return nil
	}
	c.sock.SetWriteDeadline(h.now().Add(h.WriteTimeout))
	return c.sock.WriteMessage(websocket.TextMessage, frame)
}
