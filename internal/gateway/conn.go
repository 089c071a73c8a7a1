// Package gateway implements the Connection Gateway (§4.H): accepts
// WebSocket connections, performs the header-based credential handshake,
// and owns per-connection state for the lifetime of the socket.
package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"jotagateway/internal/httpapi"
	"jotagateway/internal/protocol"
)

// sendQueueDepth bounds each connection's deferred-send channel. Per the
// decided Open Question on fan-out cost, an overflowing connection drops
// the frame and logs a warning rather than stalling the sender (the
// Telemetry Broadcaster, in practice) to wait for a slow client.
const sendQueueDepth = 64

// conn realizes one WebSocket connection's single-threaded cooperative
// event loop as one goroutine draining a buffered channel of deferred
// sends. Only loop writes to ws, and state is touched only by the upgrade
// handler's goroutine (readLoop and cleanup); every other goroutine must go
// through send.
type conn struct {
	ws    *websocket.Conn
	state protocol.ConnState

	mu     sync.Mutex
	sendCh chan protocol.Outbound
	closed bool
	doneCh chan struct{}

	subMu  sync.Mutex
	subbed bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:     ws,
		sendCh: make(chan protocol.Outbound, sendQueueDepth),
		doneCh: make(chan struct{}),
	}
}

// setState seeds the connection's auth state, decided once up front by the
// upgrade handler's credential handshake, before readLoop starts handing
// the Protocol Router a pointer to it.
func (c *conn) setState(state protocol.ConnState) {
	c.state = state
}

// send schedules an outbound frame for delivery on this connection's own
// loop, safe to call from any goroutine (a dispatcher worker, the
// telemetry broadcaster, or the loop goroutine itself).
func (c *conn) send(o protocol.Outbound) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	select {
	case c.sendCh <- o:
	default:
		httpapi.IncrementBackpressure("send_queue_full")
		log.Warn().Str("component", "gateway").Str("op", o.Op).Msg("send queue full, dropping frame")
	}
}

// loop drains sendCh and writes frames to the socket until the connection
// is closed. This is the only goroutine that ever calls ws.WriteJSON.
func (c *conn) loop() {
	for {
		select {
		case o, ok := <-c.sendCh:
			if !ok {
				return
			}
			if err := c.ws.WriteJSON(o); err != nil {
				return
			}
		case <-c.doneCh:
			return
		}
	}
}

// close marks the connection closed and stops the loop. Idempotent.
func (c *conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.doneCh)
	_ = c.ws.Close()
}

func (c *conn) setSubscribed(v bool) {
	c.subMu.Lock()
	c.subbed = v
	c.subMu.Unlock()
}

func (c *conn) isSubscribed() bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return c.subbed
}

// readLoop blocks on ws.ReadMessage, handing each frame to handle, until
// the socket errors out (client disconnect, protocol error, or close()
// having been called from elsewhere).
func (c *conn) readLoop(handle func(raw []byte)) {
	_ = c.ws.SetReadDeadline(time.Time{})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		handle(raw)
	}
}

// subscriberSet tracks connections that opted into telemetry frames. Its
// own mutex is held only across the trivial add/remove/snapshot operations,
// matching §5's shared-resource discipline.
type subscriberSet struct {
	mu    sync.Mutex
	conns map[*conn]struct{}
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{conns: make(map[*conn]struct{})}
}

func (s *subscriberSet) add(c *conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	c.setSubscribed(true)
}

func (s *subscriberSet) remove(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.setSubscribed(false)
}

// broadcast defers delivery of o onto every subscriber's own loop. It never
// writes to a socket directly.
func (s *subscriberSet) broadcast(o protocol.Outbound) {
	s.mu.Lock()
	targets := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.Unlock()
	for _, c := range targets {
		c.send(o)
	}
}
