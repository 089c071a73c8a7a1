package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jotagateway/pkg/types"
)

type fakeStatusSource struct {
	envelope types.MetricsEnvelope
}

func (f fakeStatusSource) Sample() types.MetricsEnvelope { return f.envelope }

func TestHealthzAlwaysOK(t *testing.T) {
	r := NewRouter(fakeStatusSource{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyzReflectsLatch(t *testing.T) {
	defer SetReady(false)
	r := NewRouter(fakeStatusSource{})

	SetReady(false)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}

	SetReady(true)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestStatusReturnsEnvelopeJSON(t *testing.T) {
	env := types.MetricsEnvelope{Timestamp: 42, Inference: types.InferenceStatus{TotalSessions: 3}}
	r := NewRouter(fakeStatusSource{envelope: env})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var got types.MetricsEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got.Timestamp != 42 || got.Inference.TotalSessions != 3 {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	r := NewRouter(fakeStatusSource{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSwaggerRouteIsMounted(t *testing.T) {
	r := NewRouter(fakeStatusSource{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code == http.StatusNotFound {
		t.Fatalf("expected /swagger/* to be mounted, got 404")
	}
}

func TestCORSHeadersWhenEnabled(t *testing.T) {
	SetCORSOptions(true, []string{"*"}, []string{"GET"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)

	r := NewRouter(fakeStatusSource{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected Access-Control-Allow-Origin to be set, got empty")
	}
}
