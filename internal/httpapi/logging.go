package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, RequestLogger falls back
// to the standard library logger.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP control surface.
func SetLogger(l zerolog.Logger) { zlog = &l }

// RequestLogger logs one line per request once the handler returns,
// component-tagged "httpapi" to distinguish it from the WS connection
// gateway's own structured logs.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		dur := time.Since(start)
		rid := middleware.GetReqID(r.Context())

		if zlog != nil {
			ev := zlog.Info().Str("component", "httpapi").Str("method", r.Method).Str("path", r.URL.Path).
				Int("status", sr.status).Dur("duration", dur)
			if rid != "" {
				ev = ev.Str("request_id", rid)
			}
			ev.Msg("request")
			return
		}
		log.Printf("httpapi %s %s status=%d dur=%s request_id=%s", r.Method, r.URL.Path, sr.status, dur, rid)
	})
}
