package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"streamgate/internal/api"
	"streamgate/internal/observability/metrics"
)

// RateLimitConfig controls the fixed-window limiter applied to the public
// endpoints and the optional global token bucket wrapping the whole mux.
type RateLimitConfig struct {
	Window    time.Duration
	StreamMax int
	ViewMax   int

	GlobalRPS   float64
	GlobalBurst int

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisTimeout  time.Duration
}

const (
	defaultRateLimitWindow = time.Minute
	defaultStreamMax       = 60
	defaultViewMax         = 120

	endpointStream = "stream"
	endpointView   = "view"
)

// counterStore increments the fixed-window counter behind a key and reports
// the updated count together with the time remaining in the window.
type counterStore interface {
	Incr(key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

type rateLimiter struct {
	window    time.Duration
	streamMax int
	viewMax   int
	global    *rate.Limiter
	store     counterStore
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		window:    cfg.Window,
		streamMax: cfg.StreamMax,
		viewMax:   cfg.ViewMax,
	}
	if rl.window <= 0 {
		rl.window = defaultRateLimitWindow
	}
	if rl.streamMax <= 0 {
		rl.streamMax = defaultStreamMax
	}
	if rl.viewMax <= 0 {
		rl.viewMax = defaultViewMax
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS)
			if burst < 1 {
				burst = 1
			}
		}
		rl.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}
	if cfg.RedisAddr != "" {
		rl.store = newRedisCounterStore(cfg)
	} else {
		rl.store = newMemoryCounterStore(time.Now)
	}
	return rl
}

type limitDecision struct {
	allowed   bool
	limit     int
	remaining int64
	reset     time.Duration
}

func (rl *rateLimiter) allowGlobal() bool {
	if rl == nil || rl.global == nil {
		return true
	}
	return rl.global.Allow()
}

func (rl *rateLimiter) allow(endpoint, key string, limit int) (limitDecision, error) {
	if key == "" {
		key = "unknown"
	}
	count, ttl, err := rl.store.Incr(fmt.Sprintf("streamgate:rl:%s:%s", endpoint, key), rl.window)
	if err != nil {
		return limitDecision{}, err
	}
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return limitDecision{
		allowed:   count <= int64(limit),
		limit:     limit,
		remaining: remaining,
		reset:     ttl,
	}, nil
}

// limitedEndpoint matches requests subject to fixed-window limiting and
// returns the endpoint label and its per-window maximum.
func (rl *rateLimiter) limitedEndpoint(r *http.Request) (string, int, bool) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/stream":
		return endpointStream, rl.streamMax, true
	case r.Method == http.MethodPost &&
		strings.HasPrefix(r.URL.Path, "/api/media/") &&
		strings.HasSuffix(strings.TrimRight(r.URL.Path, "/"), "/view"):
		return endpointView, rl.viewMax, true
	default:
		return "", 0, false
	}
}

// Sweep drops expired windows from the in-memory counter store. It is a no-op
// for the redis-backed store, which expires keys itself.
func (rl *rateLimiter) Sweep() int {
	if rl == nil {
		return 0
	}
	if store, ok := rl.store.(*memoryCounterStore); ok {
		return store.Sweep()
	}
	return 0
}

type memoryWindow struct {
	count     int64
	expiresAt time.Time
}

type memoryCounterStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	nowFn   func() time.Time
}

func newMemoryCounterStore(now func() time.Time) *memoryCounterStore {
	if now == nil {
		now = time.Now
	}
	return &memoryCounterStore{windows: make(map[string]*memoryWindow), nowFn: now}
}

func (s *memoryCounterStore) Incr(key string, window time.Duration) (int64, time.Duration, error) {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.windows[key]
	if !ok || !now.Before(entry.expiresAt) {
		entry = &memoryWindow{expiresAt: now.Add(window)}
		s.windows[key] = entry
	}
	entry.count++
	return entry.count, entry.expiresAt.Sub(now), nil
}

// Sweep removes windows that have already rolled over and returns how many
// were dropped.
func (s *memoryCounterStore) Sweep() int {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.windows {
		if !now.Before(entry.expiresAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

func rateLimitMiddleware(rl *rateLimiter, logger *slog.Logger, next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allowGlobal() {
			writeLimitMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		endpoint, limit, limited := rl.limitedEndpoint(r)
		if !limited {
			next.ServeHTTP(w, r)
			return
		}

		decision, err := rl.allow(endpoint, api.ClientIP(r), limit)
		if err != nil {
			if logger != nil {
				logger.Error("rate limiter failure", "endpoint", endpoint, "error", err)
			}
			writeLimitMessage(w, http.StatusServiceUnavailable, "rate limit failure")
			return
		}

		resetAt := time.Now().Add(decision.reset).Unix()
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !decision.allowed {
			metrics.RateLimited(endpoint)
			w.Header().Set("Retry-After", strconv.FormatInt(int64(decision.reset.Seconds()+0.5), 10))
			writeLimitMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type limitMessage struct {
	Message string `json:"message"`
}

func writeLimitMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(limitMessage{Message: message})
}
