package protocol

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"jotagateway/internal/auth"
	"jotagateway/internal/inference"
	"jotagateway/internal/session"
	"jotagateway/pkg/types"
)

// ConnState is the per-connection state the router reads and mutates: the
// authenticated client id, if any. The Connection Gateway owns the
// lifetime of this value; the router never stores a reference to a
// connection itself.
type ConnState struct {
	ClientID      string
	Authenticated bool
}

// Router is a pure dispatcher of (ConnState, parsed message) -> replies and
// side effects against the Credential Cache, Session Registry, and
// Inference Dispatcher. It knows nothing about sockets or goroutines.
type Router struct {
	auth       *auth.Cache
	registry   *session.Registry
	dispatcher *inference.Dispatcher
	startedAt  time.Time
}

// New constructs a Router bound to the shared component instances.
func New(authCache *auth.Cache, registry *session.Registry, dispatcher *inference.Dispatcher) *Router {
	return &Router{auth: authCache, registry: registry, dispatcher: dispatcher, startedAt: time.Now()}
}

// Send is how the router hands an outbound frame back to the connection
// layer. Implementations must be safe to call from any goroutine; the
// Connection Gateway is responsible for deferring delivery onto the
// connection's own loop.
type Send func(Outbound)

// Handle parses one raw inbound frame and reacts to it, mutating state and
// invoking send zero or more times. Malformed JSON and unknown/missing ops
// are converted to an "error" reply rather than propagated.
func (r *Router) Handle(ctx context.Context, state *ConnState, raw []byte, send Send) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		send(errorReply("malformed JSON: " + err.Error()))
		return
	}
	if in.Op == "" {
		send(errorReply("missing op"))
		return
	}

	if in.Op != "hello" && in.Op != "auth" && !state.Authenticated {
		send(errorReply("not authenticated"))
		return
	}

	switch in.Op {
	case "hello":
		send(hello(int64(time.Since(r.startedAt).Seconds())))
	case "auth":
		r.handleAuth(ctx, state, in, send)
	case "create_session":
		r.handleCreateSession(state, send)
	case "close_session":
		r.handleCloseSession(state, in, send)
	case "infer":
		r.handleInfer(ctx, state, in, send)
	case "abort":
		r.handleAbort(state, in, send)
	case "subscribe_metrics":
		send(subscribed("subscribed to metrics"))
	case "unsubscribe_metrics":
		send(unsubscribed("unsubscribed from metrics"))
	default:
		send(errorReply("unknown op: " + in.Op))
	}
}

// CloseClientSessions closes every session owned by clientID. Called by the
// Connection Gateway on disconnect cleanup, so it doesn't need its own
// handle on the Session Registry.
func (r *Router) CloseClientSessions(clientID string) {
	r.registry.CloseClientSessions(clientID)
}

func (r *Router) handleAuth(ctx context.Context, state *ConnState, in Inbound, send Send) {
	if in.ClientID == "" || in.APIKey == "" {
		send(authFailed("client_id and api_key are required"))
		return
	}
	if !r.auth.Authenticate(ctx, in.ClientID, in.APIKey) {
		send(authFailed("invalid credentials"))
		return
	}
	state.ClientID = in.ClientID
	state.Authenticated = true
	cfg := r.auth.ConfigFor(in.ClientID)
	send(authSuccess(in.ClientID, cfg.MaxSessions))
}

func (r *Router) handleCreateSession(state *ConnState, send Send) {
	id, err := r.registry.CreateSession(state.ClientID)
	if err != nil {
		send(sessionError(createSessionErrorMessage(err)))
		return
	}
	send(sessionCreated(id))
}

// createSessionErrorMessage picks the wire-level message by dispatching on
// the Session Registry's sentinel error predicates (§7), rather than
// string-matching err.Error() or forwarding it verbatim.
func createSessionErrorMessage(err error) string {
	switch {
	case session.IsQuotaExceeded(err):
		return "client has reached its session limit"
	case session.IsUnknownClient(err):
		return "client has no cached configuration"
	default:
		return err.Error()
	}
}

// ownsSession implements §4.G's ownership check: the two failure modes
// (not found, not owned) are deliberately collapsed into one message so a
// client cannot distinguish them and probe for valid ids.
func (r *Router) ownsSession(state *ConnState, sessionID string) (*session.Session, bool) {
	sess := r.registry.Get(sessionID)
	if sess == nil || sess.ClientID != state.ClientID {
		return nil, false
	}
	return sess, true
}

const ownershipDeniedMsg = "session not found or access denied"

func (r *Router) handleCloseSession(state *ConnState, in Inbound, send Send) {
	if in.SessionID == "" {
		send(errorReply("session_id is required"))
		return
	}
	if _, ok := r.ownsSession(state, in.SessionID); !ok {
		send(errorReply(ownershipDeniedMsg))
		return
	}
	r.registry.CloseSession(in.SessionID)
	send(sessionClosed(in.SessionID))
}

// handleAbort deliberately collapses "session does not exist" and "session
// exists but is owned by someone else" into the same "not_found" status,
// same as the vague error message used by close_session/infer, but as an
// "abort" reply rather than a generic "error" (per §4.G's op table, abort's
// only listed precondition is that session_id is present).
func (r *Router) handleAbort(state *ConnState, in Inbound, send Send) {
	if in.SessionID == "" {
		send(errorReply("session_id is required"))
		return
	}
	if _, ok := r.ownsSession(state, in.SessionID); !ok {
		send(abortReply(in.SessionID, "not_found"))
		return
	}
	if r.registry.AbortSession(in.SessionID) {
		send(abortReply(in.SessionID, "aborted"))
	} else {
		send(abortReply(in.SessionID, "not_found"))
	}
}

func (r *Router) handleInfer(ctx context.Context, state *ConnState, in Inbound, send Send) {
	if in.SessionID == "" || in.Prompt == "" {
		send(errorReply("session_id and prompt are required"))
		return
	}
	if _, ok := r.ownsSession(state, in.SessionID); !ok {
		send(errorReply(ownershipDeniedMsg))
		return
	}

	params := parseParams(in.Params)
	r.dispatcher.Enqueue(inference.Task{
		SessionID: in.SessionID,
		ClientID:  state.ClientID,
		Prompt:    in.Prompt,
		Params:    params,
		Ctx:       ctx,
		OnToken: func(piece string) bool {
			send(token(in.SessionID, piece))
			return true
		},
		OnComplete: func(outcome types.GenerationOutcome) {
			if outcome.Err != nil {
				log.Warn().Str("component", "protocol").Str("session_id", in.SessionID).Err(outcome.Err).Msg("generation ended with error")
			}
			send(end(in.SessionID, EndStats{
				TTFTMs:  outcome.Metrics.TTFTMs,
				TotalMs: outcome.Metrics.TotalTimeMs,
				Tokens:  outcome.Metrics.TokensGenerated,
				TPS:     outcome.Metrics.TPS,
			}))
		},
	})
}

func parseParams(raw json.RawMessage) types.RuntimeParams {
	var p inboundParams
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &p)
	}
	return types.RuntimeParams{
		Temperature:   p.Temp,
		MaxTokens:     p.MaxTokens,
		TopP:          p.TopP,
		TopK:          p.TopK,
		Stop:          p.Stop,
		Seed:          p.Seed,
		RepeatPenalty: p.RepeatPenalty,
	}
}
