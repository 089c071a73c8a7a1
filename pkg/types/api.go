package types

// ErrorResponse is a consistent JSON error payload for the HTTP control
// surface; the WS protocol uses its own {"op":"error",...} envelope instead.
type ErrorResponse struct {
	// Error message.
	// example: model not loaded
	Error string `json:"error" example:"model not loaded"`
	// HTTP status code.
	// example: 503
	Code int `json:"code" example:"503"`
}

// GPUStatus is the gpu.* block of a metrics envelope.
type GPUStatus struct {
	TempC       int     `json:"temp"`
	VRAMTotalMB int64   `json:"vram_total_mb"`
	VRAMUsedMB  int64   `json:"vram_used_mb"`
	VRAMFreeMB  int64   `json:"vram_free_mb"`
	PowerWatts  float64 `json:"power_watts"`
	FanPercent  int     `json:"fan_percent"`
	Throttling  bool    `json:"throttling"`
}

// InferenceStatus is the inference.* block of a metrics envelope.
type InferenceStatus struct {
	ActiveGenerations    int     `json:"active_generations"`
	TotalSessions        int     `json:"total_sessions"`
	LastTPS              float64 `json:"last_tps"`
	LastTTFTMs           int64   `json:"last_ttft_ms"`
	TotalTokensGenerated int64   `json:"total_tokens_generated"`
}

// MetricsEnvelope is the payload of a {"op":"metrics",...} broadcast and of
// GET /status on the HTTP control surface.
type MetricsEnvelope struct {
	Timestamp int64           `json:"timestamp"`
	GPU       GPUStatus       `json:"gpu"`
	Inference InferenceStatus `json:"inference"`
}

// ReadyStatus is the JSON body of GET /readyz, sent with 200 when ready and
// 503 when not.
type ReadyStatus struct {
	// example: true
	Ready bool `json:"ready" example:"true"`
	// example: model loaded, auth backend reachable
	Detail string `json:"detail,omitempty"`
}
