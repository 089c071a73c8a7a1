package types

import "time"

// Priority is an advisory hint attached to a ClientConfig; the dispatcher
// does not use it to reorder work today, but it is threaded through for a
// future scheduler.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ClientConfig describes a known client as validated by the auth backend.
// Instances are never mutated in place; re-validation replaces the whole
// value in the credential cache.
type ClientConfig struct {
	// Stable client identifier.
	// example: u1
	ClientID string `json:"client_id" example:"u1"`
	// Opaque secret presented by the client; never echoed back over the wire.
	APIKey string `json:"-"`
	// Maximum number of concurrent sessions this client may hold.
	// example: 2
	MaxSessions int `json:"max_sessions" example:"2"`
	// Advisory scheduling priority.
	// example: normal
	Priority Priority `json:"priority" example:"normal"`
	// Free-text description of the client, as stored upstream.
	Description string `json:"description,omitempty"`
	// Timestamp of the last successful upstream validation.
	LastValidated time.Time `json:"last_validated"`
}

// SessionState is the lifecycle state of a single generation context.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionGenerating SessionState = "generating"
	SessionError      SessionState = "error"
)

// Metrics is a read-only value produced once per generation.
type Metrics struct {
	TTFTMs          int64   `json:"ttft_ms"`
	TotalTimeMs     int64   `json:"total_time_ms"`
	TokensGenerated int     `json:"tokens_generated"`
	TPS             float64 `json:"tps"`
}

// HardwareSnapshot is a read-only struct describing the accelerator's state
// at the moment it was sampled. Never cached.
type HardwareSnapshot struct {
	TempC      int   `json:"temp_c"`
	VRAMTotal  int64 `json:"vram_total"`
	VRAMUsed   int64 `json:"vram_used"`
	VRAMFree   int64 `json:"vram_free"`
	PowerMW    int64 `json:"power_mw"`
	FanPct     int   `json:"fan_pct"`
	Throttling bool  `json:"throttling"`
}

// OverTemperature reports the over-temperature flag: true iff TempC >= 80.
func (h HardwareSnapshot) OverTemperature() bool { return h.TempC >= 80 }

// RuntimeParams is the adapter-facing view of a generation request's
// sampling parameters. The llama adapter passes all of them to the runtime;
// the llama_server adapter passes MaxTokens, Temperature, TopP, TopK and
// Stop. Both treat MaxTokens <= 0 as 512. The default stub adapter runs no
// generation at all.
type RuntimeParams struct {
	Temperature   float64  `json:"temperature,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Seed          int64    `json:"seed,omitempty"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty"`
}

// GenerationOutcome is the internal completion record a dispatcher worker
// hands back once a task finishes, whether successfully or not.
type GenerationOutcome struct {
	SessionID string
	Metrics   Metrics
	Err       error
}
