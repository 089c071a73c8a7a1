// Package auth implements the Credential Cache (§4.B): a TTL-bounded cache
// over a remote auth backend ("JotaDB" in the original implementation),
// with a startup liveness probe.
package auth

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"jotagateway/pkg/types"
)

// ttl is the credential cache's validity window; see Testable Property 4/5.
const ttl = 15 * time.Minute

// Cache validates (client_id, api_key) pairs against the auth backend and
// caches the resulting ClientConfig. The cache map is guarded by a single
// RWMutex that is never held across network I/O (release-compute-reacquire).
type Cache struct {
	baseURL   string
	serverUsr string
	serverKey string

	livenessClient *http.Client
	authClient     *http.Client

	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	cfg       types.ClientConfig
	apiKey    string
	validated time.Time
}

// New constructs a Cache for the given auth backend base URL and server
// identity (sent as `Authorization: Bearer <serverKey>` on every upstream
// call). TLS certificate verification is disabled on both clients, matching
// §4.B's self-signed-friendly requirement.
func New(baseURL, serverUsr, serverKey string) *Cache {
	return &Cache{
		baseURL:   strings.TrimRight(baseURL, "/"),
		serverUsr: serverUsr,
		serverKey: serverKey,
		// 3s connect, 3s to read the response headers back.
		livenessClient: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
				ResponseHeaderTimeout: 3 * time.Second,
				TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
			},
		},
		// 2s connect, 3s to read the response headers back.
		authClient: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
				ResponseHeaderTimeout: 3 * time.Second,
				TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
			},
		},
		entries: make(map[string]entry),
	}
}

// VerifyBackendLiveness GETs {base}/health with a bearer token. Returns true
// iff the backend answers 200 within the documented 3s connect / 3s read
// budget, each enforced separately by livenessClient's transport.
func (c *Cache) VerifyBackendLiveness(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second+3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		log.Error().Err(err).Str("component", "auth").Msg("failed to build liveness request")
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.serverKey)

	resp, err := c.livenessClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("component", "auth").Msg("auth backend liveness check failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	ok := resp.StatusCode == http.StatusOK
	if !ok {
		log.Warn().Int("status", resp.StatusCode).Str("component", "auth").Msg("auth backend not healthy")
	}
	return ok
}

// Authenticate returns true iff (clientID, apiKey) is currently valid,
// consulting the cache first and only falling through to the backend on a
// cache miss or TTL expiry (§4.B algorithm steps 1-5).
func (c *Cache) Authenticate(ctx context.Context, clientID, apiKey string) bool {
	c.mu.RLock()
	e, ok := c.entries[clientID]
	c.mu.RUnlock()
	if ok && time.Since(e.validated) < ttl && e.apiKey == apiKey {
		return true
	}

	log.Info().Str("component", "auth").Str("client_id", clientID).Msg("validating via auth backend")

	// Overall ceiling; connect and read-header phases are enforced
	// separately by authClient's transport.
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second+3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/auth/internal", nil)
	if err != nil {
		log.Error().Err(err).Str("component", "auth").Msg("failed to build auth request")
		return false
	}
	req.Header.Set("X-Client-ID", clientID)
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Authorization", "Bearer "+c.serverKey)

	resp, err := c.authClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("component", "auth").Str("client_id", clientID).Msg("auth backend request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("component", "auth").Str("client_id", clientID).Msg("auth backend rejected")
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Str("component", "auth").Msg("failed to read auth response")
		return false
	}

	cfg, authorized, err := parseAuthResponse(body, clientID)
	if err != nil {
		log.Error().Err(err).Str("component", "auth").Msg("malformed auth response")
		return false
	}
	if !authorized {
		log.Info().Str("component", "auth").Str("client_id", clientID).Msg("authorization denied")
		return false
	}

	cfg.APIKey = apiKey
	cfg.LastValidated = time.Now()

	c.mu.Lock()
	c.entries[clientID] = entry{cfg: cfg, apiKey: apiKey, validated: cfg.LastValidated}
	c.mu.Unlock()

	log.Info().Str("component", "auth").Str("client_id", clientID).Int("max_sessions", cfg.MaxSessions).Msg("validation success")
	return true
}

// authResponse covers both the nested-config shape and the flat fallback
// shape documented in §4.B step 4.
type authResponse struct {
	Authorized *bool  `json:"authorized"`
	Error      string `json:"error"`
	Config     *struct {
		MaxSessions int    `json:"max_sessions"`
		Priority    string `json:"priority"`
		Description string `json:"description"`
	} `json:"config"`
	MaxSessions int    `json:"max_sessions"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

func parseAuthResponse(body []byte, clientID string) (types.ClientConfig, bool, error) {
	var r authResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return types.ClientConfig{}, false, fmt.Errorf("parse auth response: %w", err)
	}
	if r.Error != "" {
		return types.ClientConfig{}, false, nil
	}
	// Missing "authorized" is treated as a denial, not a grant.
	authorized := r.Authorized != nil && *r.Authorized
	if !authorized {
		return types.ClientConfig{}, false, nil
	}

	cfg := types.ClientConfig{ClientID: clientID, MaxSessions: 1, Priority: types.PriorityNormal}
	if r.Config != nil {
		if r.Config.MaxSessions > 0 {
			cfg.MaxSessions = r.Config.MaxSessions
		}
		if r.Config.Priority != "" {
			cfg.Priority = types.Priority(r.Config.Priority)
		}
		cfg.Description = r.Config.Description
	} else {
		if r.MaxSessions > 0 {
			cfg.MaxSessions = r.MaxSessions
		}
		if r.Priority != "" {
			cfg.Priority = types.Priority(r.Priority)
		}
		cfg.Description = r.Description
	}
	return cfg, true, nil
}

// ConfigFor returns the cached configuration for an authenticated client,
// or a zero-valued config if none is cached.
func (c *Cache) ConfigFor(clientID string) types.ClientConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[clientID].cfg
}

// Exists reports whether a cached entry exists for clientID.
func (c *Cache) Exists(clientID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[clientID]
	return ok
}

// MaxSessionsFor returns the cached client's session quota, or 0 if no
// entry is cached (callers must check Exists first).
func (c *Cache) MaxSessionsFor(clientID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[clientID].cfg.MaxSessions
}
