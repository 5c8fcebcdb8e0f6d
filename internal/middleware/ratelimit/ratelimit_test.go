package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func allow(rl *Limiter, client string, now time.Time) bool {
	ok, _ := rl.take(client, now)
	return ok
}

func TestLimiterBurstThenRefill(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 60, Burst: 3})
	defer rl.Stop()

	now := time.Now()
	for i := range 3 {
		if !allow(rl, "1.2.3.4", now) {
			t.Fatalf("request %d should pass within burst", i+1)
		}
	}
	if allow(rl, "1.2.3.4", now) {
		t.Fatal("request beyond burst should be limited")
	}
	if !allow(rl, "5.6.7.8", now) {
		t.Fatal("other clients have their own bucket")
	}
	// 60/min refills one token per second
	if !allow(rl, "1.2.3.4", now.Add(1100*time.Millisecond)) {
		t.Fatal("token should be refilled after a second")
	}

	if got := rl.GetMetrics().TotalHits; got != 1 {
		t.Errorf("TotalHits = %d, want 1", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 10, IdleTTL: time.Minute})
	defer rl.Stop()

	now := time.Now()
	allow(rl, "old", now.Add(-2*time.Minute))
	allow(rl, "fresh", now)

	rl.cleanupStaleEntries(now)
	if rl.ActiveClients() != 1 {
		t.Errorf("ActiveClients = %d, want 1", rl.ActiveClients())
	}
}

func TestMiddlewareSkipsReads(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, Burst: 1})
	defer rl.Stop()

	h := rl.Middleware(func(*http.Request) string { return "client" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/members", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("GET status = %d", rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/members", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first POST status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/members", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
