// Package protocol implements the Protocol Router (§4.G): a pure function
// of (connection state, parsed message) that emits zero or more reply
// messages and triggers zero or more side effects on the Session Registry,
// Credential Cache, and Inference Dispatcher. It knows nothing about
// sockets, goroutines, or WebSocket framing.
package protocol

import "encoding/json"

// Inbound is the generic shape every client->server frame is parsed into;
// the infer op's "params" object is kept raw and decoded on demand by
// parseParams.
type Inbound struct {
	Op        string          `json:"op"`
	ClientID  string          `json:"client_id"`
	APIKey    string          `json:"api_key"`
	SessionID string          `json:"session_id"`
	Prompt    string          `json:"prompt"`
	Params    json.RawMessage `json:"params"`
}

// inboundParams mirrors the wire shape of the infer op's "params" object.
type inboundParams struct {
	Temp          float64  `json:"temp"`
	MaxTokens     int      `json:"max_tokens"`
	TopP          float64  `json:"top_p"`
	TopK          int      `json:"top_k"`
	Stop          []string `json:"stop"`
	Seed          int64    `json:"seed"`
	RepeatPenalty float64  `json:"repeat_penalty"`
}

// Outbound is a generic server->client frame. Fields are tagged omitempty
// so each op only serializes the fields it actually uses.
type Outbound struct {
	Op            string      `json:"op"`
	Status        string      `json:"status,omitempty"`
	UptimeSeconds int64       `json:"uptime_seconds,omitempty"`
	RequiresAuth  bool        `json:"requires_auth,omitempty"`
	ClientID      string      `json:"client_id,omitempty"`
	MaxSessions   int         `json:"max_sessions,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	SessionID     string      `json:"session_id,omitempty"`
	Error         string      `json:"error,omitempty"`
	Content       string      `json:"content,omitempty"`
	Stats         *EndStats   `json:"stats,omitempty"`
	Timestamp     int64       `json:"timestamp,omitempty"`
	GPU           interface{} `json:"gpu,omitempty"`
	Inference     interface{} `json:"inference,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// EndStats is the "stats" block of an "end" frame.
type EndStats struct {
	TTFTMs  int64   `json:"ttft_ms"`
	TotalMs int64   `json:"total_ms"`
	Tokens  int     `json:"tokens"`
	TPS     float64 `json:"tps"`
}

func hello(uptime int64) Outbound {
	return Outbound{Op: "hello", Status: "ready", UptimeSeconds: uptime, RequiresAuth: true}
}

func authSuccess(clientID string, maxSessions int) Outbound {
	return AuthSuccess(clientID, maxSessions)
}

// AuthSuccess builds the "auth_success" frame sent once a connection is
// authenticated, whether via the in-band auth op or the header-based
// handshake performed by the Connection Gateway before upgrade.
func AuthSuccess(clientID string, maxSessions int) Outbound {
	return Outbound{Op: "auth_success", ClientID: clientID, MaxSessions: maxSessions}
}

func authFailed(reason string) Outbound {
	return Outbound{Op: "auth_failed", Reason: reason}
}

func sessionCreated(id string) Outbound {
	return Outbound{Op: "session_created", SessionID: id}
}

func sessionClosed(id string) Outbound {
	return Outbound{Op: "session_closed", SessionID: id}
}

func sessionError(msg string) Outbound {
	return Outbound{Op: "session_error", Error: msg}
}

func token(sessionID, content string) Outbound {
	return Outbound{Op: "token", SessionID: sessionID, Content: content}
}

func end(sessionID string, stats EndStats) Outbound {
	return Outbound{Op: "end", SessionID: sessionID, Stats: &stats}
}

func abortReply(sessionID, status string) Outbound {
	return Outbound{Op: "abort", SessionID: sessionID, Status: status}
}

func errorReply(msg string) Outbound {
	return Outbound{Op: "error", Error: msg}
}

func subscribed(msg string) Outbound {
	return Outbound{Op: "metrics_subscribed", Message: msg}
}

func unsubscribed(msg string) Outbound {
	return Outbound{Op: "metrics_unsubscribed", Message: msg}
}
