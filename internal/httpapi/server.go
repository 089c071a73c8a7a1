// Package httpapi implements the HTTP Control Surface (§4.J): a small REST
// side-channel mounted alongside the WebSocket data plane for ops tooling,
// load balancers, and Prometheus scraping.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jotagateway/pkg/types"
)

// StatusSource produces the same envelope shape broadcast over the WS
// metrics subscription, for GET /status. Satisfied by *telemetry.Broadcaster
// without httpapi importing the telemetry package.
type StatusSource interface {
	Sample() types.MetricsEnvelope
}

// NewRouter builds the HTTP control surface: /healthz, /readyz, /metrics,
// /status, and /swagger/*, wrapped in the teacher's logging + Prometheus +
// recovery middleware chain.
func NewRouter(status StatusSource) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", handleStatus(status))
	MountSwagger(r)

	return r
}

// handleHealthz godoc
// @Summary      Process liveness
// @Success      200 {string} string "ok"
// @Router       /healthz [get]
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz godoc
// @Summary      Process readiness
// @Success      200 {object} types.ReadyStatus
// @Failure      503 {object} types.ReadyStatus
// @Router       /readyz [get]
func handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !Ready() {
		writeJSON(w, http.StatusServiceUnavailable, types.ReadyStatus{Ready: false, Detail: "loading"})
		return
	}
	writeJSON(w, http.StatusOK, types.ReadyStatus{Ready: true})
}

// handleStatus godoc
// @Summary      Hardware and inference status snapshot
// @Success      200 {object} types.MetricsEnvelope
// @Router       /status [get]
func handleStatus(status StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, status.Sample())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
