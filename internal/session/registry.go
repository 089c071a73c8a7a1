package session

import (
	"crypto/rand"
	"fmt"
	"sync"

	"jotagateway/internal/runtimeadapter"
)

// ConfigSource is the subset of the Credential Cache the registry needs to
// enforce quotas: a cached client's max_sessions and whether it exists at
// all (§4.C: "Fails if client has no cached config or is at quota").
type ConfigSource interface {
	Exists(clientID string) bool
	MaxSessionsFor(clientID string) int
}

// Registry owns a keyed collection of sessions with a two-index layout
// (session_id -> Session, client_id -> []session_id), both mutated under a
// single mutex, ported from Core::SessionManager.
type Registry struct {
	adapter runtimeadapter.Adapter
	auth    ConfigSource

	mu             sync.Mutex
	sessions       map[string]*Session
	clientSessions map[string][]string
}

// New constructs a Registry bound to the given model adapter and an
// auth-cache-shaped config source used for quota checks.
func New(adapter runtimeadapter.Adapter, auth ConfigSource) *Registry {
	return &Registry{
		adapter:        adapter,
		auth:           auth,
		sessions:       make(map[string]*Session),
		clientSessions: make(map[string][]string),
	}
}

// CreateSession fails (returns "") if the client has no cached config or is
// already at its quota. On success it returns a freshly generated,
// collision-checked session id.
func (r *Registry) CreateSession(clientID string) (string, error) {
	if !r.auth.Exists(clientID) {
		return "", unknownClientError{clientID: clientID}
	}
	maxSessions := r.auth.MaxSessionsFor(clientID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.clientSessions[clientID]) >= maxSessions {
		return "", quotaExceededError{clientID: clientID}
	}

	id := generateSessionID()
	for {
		if _, exists := r.sessions[id]; !exists {
			break
		}
		id = generateSessionID()
	}

	ctx, err := r.adapter.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	sess := newSession(id, clientID, ctx)
	r.sessions[id] = sess
	r.clientSessions[clientID] = append(r.clientSessions[clientID], id)
	return id, nil
}

// Get returns a borrowed handle, or nil if no such session exists.
func (r *Registry) Get(sessionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}

// CloseSession destroys the session and removes it from both indices.
// Idempotent with respect to missing ids.
func (r *Registry) CloseSession(sessionID string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, sessionID)
	clientID := sess.ClientID
	list := r.clientSessions[clientID]
	for i, id := range list {
		if id == sessionID {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.clientSessions, clientID)
	} else {
		r.clientSessions[clientID] = list
	}
	r.mu.Unlock()

	_ = sess.Close()
	return true
}

// AbortSession sets the session's abort flag. Returns false if not found.
func (r *Registry) AbortSession(sessionID string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	sess.Abort()
	return true
}

// CloseClientSessions destroys all sessions owned by clientID.
func (r *Registry) CloseClientSessions(clientID string) {
	r.mu.Lock()
	ids := append([]string(nil), r.clientSessions[clientID]...)
	toClose := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if sess, ok := r.sessions[id]; ok {
			toClose = append(toClose, sess)
			delete(r.sessions, id)
		}
	}
	delete(r.clientSessions, clientID)
	r.mu.Unlock()

	for _, sess := range toClose {
		_ = sess.Close()
	}
}

// CloseAll destroys every session; used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		all = append(all, sess)
	}
	r.sessions = make(map[string]*Session)
	r.clientSessions = make(map[string][]string)
	r.mu.Unlock()

	for _, sess := range all {
		_ = sess.Close()
	}
}

// CountFor returns the number of live sessions owned by clientID.
func (r *Registry) CountFor(clientID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clientSessions[clientID])
}

// Total returns the number of live sessions across all clients.
func (r *Registry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot is a leak-free view of the registry: total session count and
// per-client counts, without exposing live Session pointers.
type Snapshot struct {
	Total     int
	PerClient map[string]int
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	per := make(map[string]int, len(r.clientSessions))
	for clientID, ids := range r.clientSessions {
		per[clientID] = len(ids)
	}
	return Snapshot{Total: len(r.sessions), PerClient: per}
}

const hexDigits = "0123456789abcdef"

// generateSessionID produces a token in the pattern sess_XXXXXXXX_XXXX
// (12 random hex digits), matching Core::SessionManager::generateSessionId.
func generateSessionID() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	hex := make([]byte, 12)
	for i, b := range buf {
		hex[i*2] = hexDigits[b>>4]
		hex[i*2+1] = hexDigits[b&0x0F]
	}
	return fmt.Sprintf("sess_%s_%s", hex[:8], hex[8:])
}
