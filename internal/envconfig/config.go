package envconfig

import (
	"github.com/rs/zerolog/log"
)

// AuthConfig holds the auth-backend identity read from the environment.
// Missing values are allowed but logged as warnings, matching the
// original EnvLoader-backed ClientAuth startup banner.
type AuthConfig struct {
	BaseURL   string
	User      string
	ServerKey string
}

// LoadAuthConfig reads JOTA_DB_URL / JOTA_DB_USR / JOTA_DB_SK from the given
// store, warning (not failing) when the identity variables are unset.
func LoadAuthConfig(s *Store) AuthConfig {
	cfg := AuthConfig{
		BaseURL:   s.Get("JOTA_DB_URL", "https://green-house.local/api/db"),
		User:      s.Get("JOTA_DB_USR", ""),
		ServerKey: s.Get("JOTA_DB_SK", ""),
	}
	log.Info().Str("url", cfg.BaseURL).Msg("auth backend configured")
	if cfg.ServerKey == "" || cfg.User == "" {
		log.Warn().Msg("JOTA_DB_SK or JOTA_DB_USR is not set; auth requests may fail against a strict backend")
	}
	return cfg
}

// ProcessTuning holds the process-wide tunables layered under the worker
// pool and telemetry broadcaster.
type ProcessTuning struct {
	Workers             int
	TelemetryIntervalMs int
}

// LoadProcessTuning reads GATEWAY_WORKERS / GATEWAY_TELEMETRY_INTERVAL_MS,
// defaulting to the dispatcher's and broadcaster's package defaults.
func LoadProcessTuning(s *Store) ProcessTuning {
	return ProcessTuning{
		Workers:             atoiDefault(s.Get("GATEWAY_WORKERS", ""), 4),
		TelemetryIntervalMs: atoiDefault(s.Get("GATEWAY_TELEMETRY_INTERVAL_MS", ""), 1000),
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n := 0
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	if n <= 0 {
		return def
	}
	return n
}
