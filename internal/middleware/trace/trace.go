package trace

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "payback/internal/log"
)

type ctxKey struct{}

// RequestIDHeader carries the id in both directions.
const RequestIDHeader = "X-Request-ID"

// Observer receives the outcome of every request, e.g. for metrics.
type Observer func(r *http.Request, status int, duration time.Duration)

// Middleware tags each request with an id, logs its start and end, and
// reports the outcome to an optional Observer.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.StructuredLogger
	base      *applog.Logger
	observe   Observer

	requests atomic.Int64
	micros   atomic.Int64
	written  atomic.Int64
}

// Metrics is a snapshot of the requests seen so far.
type Metrics struct {
	TotalRequests       int64
	AverageResponseTime int64 // microseconds
	BytesWritten        int64
}

// NewMiddleware falls back to a default text logger when logger is nil.
func NewMiddleware(extractIP func(*http.Request) string, logger *applog.Logger, observe Observer) *Middleware {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if extractIP == nil {
		extractIP = func(*http.Request) string { return "" }
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    applog.NewStructuredLogger(logger),
		base:      logger,
		observe:   observe,
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := m.extractIP(r)

		id := requestIDFrom(r)
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), ctxKey{}, id)
		ctx = applog.NewContext(ctx, m.base.With(applog.NewFields().WithRequestID(id).ToSlice()...))
		r = r.WithContext(ctx)

		m.logger.LogHTTPStart(ctx, r, clientIP)

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		status := sw.code()
		elapsed := time.Since(start)

		m.requests.Add(1)
		m.micros.Add(elapsed.Microseconds())
		m.written.Add(sw.bytes)

		m.logger.LogHTTPEnd(ctx, r, status, elapsed.Milliseconds(), clientIP)
		if m.observe != nil {
			m.observe(r, status, elapsed)
		}
	})
}

// statusWriter remembers the first status written and counts body bytes.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status == 0 {
		sw.status = code
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	n, err := sw.ResponseWriter.Write(b)
	sw.bytes += int64(n)
	return n, err
}

func (sw *statusWriter) code() int {
	if sw.status == 0 {
		return http.StatusOK
	}
	return sw.status
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// requestIDFrom reuses a well-formed inbound id, otherwise generates one.
func requestIDFrom(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" && len(id) <= 64 && !strings.ContainsAny(id, " \t\r\n") {
		return id
	}
	return GenerateRequestID()
}

// GenerateRequestID returns "req_" followed by a dashless UUIDv4.
func GenerateRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (m *Middleware) GetMetrics() Metrics {
	snap := Metrics{
		TotalRequests: m.requests.Load(),
		BytesWritten:  m.written.Load(),
	}
	if snap.TotalRequests > 0 {
		snap.AverageResponseTime = m.micros.Load() / snap.TotalRequests
	}
	return snap
}

// Recover turns a panicking handler into a 500 and logs the value.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				applog.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panicked",
					"panic", v,
					slog.String("path", r.URL.Path))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}` + "\n"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
