package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"shipmonitor/monitoring"
)

func TestServerMiddlewareAndMetrics(t *testing.T) {
	useFixture(t)
	reg := prometheus.NewRegistry()
	SetMetrics(monitoring.NewMetrics(reg))
	t.Cleanup(func() { SetMetrics(nil) })

	cfg := DefaultServerConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Gatherer = reg
	ts := httptest.NewServer(NewServer(cfg).Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	req.Header.Set("Origin", "http://example.test")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "req-42" {
		t.Errorf("request id not echoed: %q", got)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://example.test" {
		t.Error("CORS header missing")
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `shipmonitor_http_requests_total{code="200",route="GET /api/health"} 1`) {
		t.Fatalf("route metric missing from:\n%s", body)
	}
}

func TestServerRejectsLargeBodies(t *testing.T) {
	useFixture(t)

	cfg := DefaultServerConfig()
	cfg.MaxBodyBytes = 16
	h := NewServer(cfg).Handler()

	w := serve(h, http.MethodPost, "/api/predict", validBody)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRouteLatencyStartsAtLogger(t *testing.T) {
	reg := prometheus.NewRegistry()
	SetMetrics(monitoring.NewMetrics(reg))
	t.Cleanup(func() { SetMetrics(nil) })

	mux := http.NewServeMux()
	handle(mux, "GET /slow", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/slow", nil)
	ctx := context.WithValue(req.Context(), StartTimeKey, time.Now().Add(-2*time.Second))
	mux.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != "shipmonitor_http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetHistogram().GetSampleSum()
		}
	}
	if sum < 2 {
		t.Fatalf("expected latency measured from the logger start time, got %vs", sum)
	}
}

func TestGetStartTime(t *testing.T) {
	if !GetStartTime(context.Background()).IsZero() {
		t.Fatal("expected zero time without LoggerMiddleware")
	}
	var seen time.Time
	h := LoggerMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetStartTime(r.Context())
	}))
	before := time.Now()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if seen.Before(before) || seen.After(time.Now()) {
		t.Fatalf("unexpected start time %v", seen)
	}
}
