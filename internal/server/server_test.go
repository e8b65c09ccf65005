package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"streamgate/internal/api"
	"streamgate/internal/auth"
	"streamgate/internal/storage"
)

func newTestAPIHandler(t *testing.T) *api.Handler {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewJSONRepository(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("NewJSONRepository: %v", err)
	}
	tokens, err := auth.NewTokenService("session-secret", "capability-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	handler := api.NewHandler(store, tokens, "streamgate_session")
	handler.PublicBaseURL = "http://localhost:8080"
	return handler
}

func TestNewReturnsErrorWhenHandlerNil(t *testing.T) {
	t.Parallel()

	srv, err := New(nil, Config{})
	if err == nil {
		t.Fatalf("expected error when handler is nil, got server: %#v", srv)
	}
}

func TestServerRoutesRequests(t *testing.T) {
	handler := newTestAPIHandler(t)
	srv, err := New(handler, Config{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz returned %d", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected healthz payload %v", payload)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header on routed responses")
	}

	metricsResp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Fatalf("metrics returned %d", metricsResp.StatusCode)
	}

	unauthResp, err := http.Get(ts.URL + "/api/media")
	if err != nil {
		t.Fatalf("GET /api/media: %v", err)
	}
	unauthResp.Body.Close()
	if unauthResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated media listing returned %d", unauthResp.StatusCode)
	}
}

func TestServerAppliesStreamRateLimit(t *testing.T) {
	handler := newTestAPIHandler(t)
	srv, err := New(handler, Config{
		Addr:      "127.0.0.1:0",
		RateLimit: RateLimitConfig{Window: time.Minute, StreamMax: 2},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	var last int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/stream?token=bogus")
		if err != nil {
			t.Fatalf("GET /api/stream: %v", err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third stream request should be throttled, got %d", last)
	}
}

func TestServerShutdownWithoutStart(t *testing.T) {
	handler := newTestAPIHandler(t)
	srv, err := New(handler, Config{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSweepRateLimitWindows(t *testing.T) {
	handler := newTestAPIHandler(t)
	srv, err := New(handler, Config{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if removed := srv.SweepRateLimitWindows(); removed != 0 {
		t.Fatalf("expected nothing to sweep on a fresh server, got %d", removed)
	}
}
