// Package session implements the Session and Session Registry components
// (§4.C, §4.D): per-client generation contexts with quota enforcement and
// cooperative cancellation.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"jotagateway/internal/runtimeadapter"
	"jotagateway/pkg/types"
)

// Session is a single generation context bound to one client. ClientID is
// immutable after construction; State and the abort flag are the only
// mutable fields, and both are safe for concurrent access.
type Session struct {
	ID       string
	ClientID string

	ctx runtimeadapter.Context

	mu    sync.Mutex
	state types.SessionState

	abortFlag atomic.Bool
}

func newSession(id, clientID string, ctx runtimeadapter.Context) *Session {
	return &Session{ID: id, ClientID: clientID, ctx: ctx, state: types.SessionIdle}
}

// State returns the session's current lifecycle state.
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st types.SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Abort sets the session's abort flag. Observed at the next generation loop
// iteration (≤ one token of latency, per §5).
func (s *Session) Abort() { s.abortFlag.Store(true) }

// aborted reports the current abort flag. The flag is cleared only at the
// start of the next Generate call.
func (s *Session) aborted() bool { return s.abortFlag.Load() }

// Generate runs the §4.D algorithm: clear the KV cache, tokenize the prompt,
// greedy-sample until end-of-generation / max_tokens / abort, emitting each
// detokenized piece through onToken. Returns metrics collected up to
// whatever point generation stopped.
func (s *Session) Generate(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(piece string) bool) (types.Metrics, error) {
	s.abortFlag.Store(false)
	s.setState(types.SessionGenerating)

	metrics, err := s.ctx.Generate(ctx, prompt, params, func(piece string) bool {
		if s.aborted() {
			return false
		}
		return onToken(piece)
	})

	if err != nil {
		s.setState(types.SessionError)
		return metrics, err
	}
	s.setState(types.SessionIdle)
	return metrics, nil
}

// Close releases the session's underlying generation context.
func (s *Session) Close() error {
	if s.ctx != nil {
		return s.ctx.Close()
	}
	return nil
}
