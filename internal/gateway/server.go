package gateway

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"jotagateway/internal/auth"
	"jotagateway/internal/httpapi"
	"jotagateway/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server owns the WS upgrade endpoint and the set of subscribed
// connections the Telemetry Broadcaster fans out to.
type Server struct {
	auth        *auth.Cache
	router      *protocol.Router
	subscribers *subscriberSet
}

// NewServer wires a Server against the shared Credential Cache and
// Protocol Router.
func NewServer(authCache *auth.Cache, router *protocol.Router) *Server {
	return &Server{auth: authCache, router: router, subscribers: newSubscriberSet()}
}

// Broadcast fans an outbound frame out to every subscribed connection,
// deferring delivery onto each connection's own send loop. Wired as the
// Telemetry Broadcaster's Publish callback.
func (s *Server) Broadcast(o protocol.Outbound) {
	s.subscribers.broadcast(o)
}

// ServeHTTP performs the header-based credential handshake (§4.H) before
// upgrading to a WebSocket, then owns the connection's loop and readLoop
// for the lifetime of the socket.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if httpapi.ShuttingDown() {
		httpapi.WriteJSONError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	state := &protocol.ConnState{}
	clientID := r.Header.Get("X-Client-ID")
	apiKey := r.Header.Get("X-API-Key")
	if clientID != "" || apiKey != "" {
		if clientID == "" || apiKey == "" {
			httpapi.WriteJSONError(w, http.StatusUnauthorized, "Missing X-Client-ID or X-API-Key headers")
			return
		}
		if !s.auth.Authenticate(r.Context(), clientID, apiKey) {
			httpapi.WriteJSONError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		state.ClientID = clientID
		state.Authenticated = true
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "gateway").Err(err).Msg("ws upgrade failed")
		return
	}

	c := newConn(ws)
	c.setState(*state)
	defer s.cleanup(c)
	go c.loop()

	if state.Authenticated {
		c.send(protocol.AuthSuccess(state.ClientID, s.auth.MaxSessionsFor(state.ClientID)))
	}

	send := func(o protocol.Outbound) {
		switch o.Op {
		case "metrics_subscribed":
			if c.isSubscribed() {
				log.Debug().Str("component", "gateway").Msg("metrics_subscribed on an already-subscribed connection")
			}
			s.subscribers.add(c)
		case "metrics_unsubscribed":
			if !c.isSubscribed() {
				log.Debug().Str("component", "gateway").Msg("metrics_unsubscribed on a connection that wasn't subscribed")
			}
			s.subscribers.remove(c)
		}
		c.send(o)
	}

	c.readLoop(func(raw []byte) {
		s.router.Handle(r.Context(), &c.state, raw, send)
	})
}

// cleanup runs synchronously on the upgrade handler's own goroutine once
// readLoop returns (client disconnect, protocol error, or shutdown),
// closing every session the client owned and removing it from the
// subscriber set before the connection object can be garbage collected —
// no other goroutine is allowed to touch registry/subscriber state for
// this connection after this point.
func (s *Server) cleanup(c *conn) {
	s.subscribers.remove(c)
	c.close()
	if c.state.Authenticated {
		s.router.CloseClientSessions(c.state.ClientID)
	}
}
