package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	Burst             int
	CleanupInterval   time.Duration
	IdleTTL           time.Duration
}

// DefaultConfig allows a burst of ten writes and one per second after that.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		Burst:             10,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = def.RequestsPerMinute
	}
	if c.Burst <= 0 {
		c.Burst = min(def.Burst, c.RequestsPerMinute)
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = def.IdleTTL
	}
	return c
}

type bucket struct {
	tokens *rate.Limiter
	seen   time.Time
}

// Limiter throttles writes per client address with a token bucket each.
type Limiter struct {
	cfg   Config
	every rate.Limit

	mu      sync.Mutex
	buckets map[string]*bucket

	rejected atomic.Int64
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewLimiter starts a janitor goroutine that forgets idle clients; call Stop to end it.
func NewLimiter(config Config) *Limiter {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	rl := &Limiter{
		cfg:     config,
		every:   rate.Limit(float64(config.RequestsPerMinute) / 60),
		buckets: make(map[string]*bucket),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go rl.janitor(ctx)
	return rl
}

// take spends one token from the client's bucket and returns how long the client must wait when it is out of tokens.
func (rl *Limiter) take(clientIP string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	b := rl.buckets[clientIP]
	if b == nil {
		b = &bucket{tokens: rate.NewLimiter(rl.every, rl.cfg.Burst)}
		rl.buckets[clientIP] = b
	}
	b.seen = now
	rl.mu.Unlock()

	res := b.tokens.ReserveN(now, 1)
	if !res.OK() {
		rl.rejected.Add(1)
		return false, time.Minute
	}
	wait := res.DelayFrom(now)
	if wait == 0 {
		return true, 0
	}
	res.CancelAt(now)
	rl.rejected.Add(1)
	return false, wait
}

func (rl *Limiter) janitor(ctx context.Context) {
	defer close(rl.done)
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			rl.cleanupStaleEntries(now)
		case <-ctx.Done():
			return
		}
	}
}

func (rl *Limiter) cleanupStaleEntries(now time.Time) {
	cutoff := now.Add(-rl.cfg.IdleTTL)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// ActiveClients is the number of clients with a live bucket.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop ends the janitor and waits for it. Safe to call more than once.
func (rl *Limiter) Stop() {
	rl.cancel()
	<-rl.done
}

// Metrics is a snapshot of limiter activity.
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics reports rejected requests and tracked clients.
func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   rl.rejected.Load(),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware throttles unsafe methods. Rejected requests carry Retry-After
// in whole seconds and are handed to onLimit, or get a plain 429 when it is nil.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := rl.take(extractIP(r), time.Now())
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			secs := int(math.Ceil(wait.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(1, secs)))
			if onLimit == nil {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			onLimit(w, r)
		})
	}
}
