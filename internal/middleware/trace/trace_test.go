package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	applog "payback/internal/log"
)

func newTestLogger(buf *bytes.Buffer) *applog.Logger {
	return applog.New(applog.Config{
		Level:     slog.LevelDebug,
		Format:    applog.FormatJSON,
		Component: applog.ComponentHTTP,
		Output:    buf,
	})
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	var observed int

	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, newTestLogger(&buf),
		func(_ *http.Request, status int, _ time.Duration) { observed = status })

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(ctxKey{}).(string)
		applog.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/members", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("response header = %q, want %q", rec.Header().Get(RequestIDHeader), seen)
	}
	if observed != http.StatusTeapot {
		t.Errorf("observer saw %d, want %d", observed, http.StatusTeapot)
	}
	if !strings.Contains(buf.String(), `"request_id":"`+seen+`"`) {
		t.Errorf("handler log lacks request id: %s", buf.String())
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("expected 1 request, got %d", m.GetMetrics().TotalRequests)
	}
}

func TestMiddlewareReusesInboundRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(nil, newTestLogger(&buf), nil)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(ctxKey{}).(string)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Errorf("request id = %q, want abc-123", seen)
	}

	req.Header.Set(RequestIDHeader, "has space")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "has space" {
		t.Error("malformed inbound id must be replaced")
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if a == b {
		t.Errorf("ids collide: %s", a)
	}
	if len(a) != len("req_")+32 {
		t.Errorf("unexpected id length %d", len(a))
	}
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMiddlewareCountsBytesAndDefaultsStatus(t *testing.T) {
	var buf bytes.Buffer
	var observed int
	m := NewMiddleware(nil, newTestLogger(&buf),
		func(_ *http.Request, status int, _ time.Duration) { observed = status })

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if observed != http.StatusOK {
		t.Errorf("observer saw %d, want 200", observed)
	}
	got := m.GetMetrics()
	if got.TotalRequests != 2 || got.BytesWritten != 10 {
		t.Errorf("metrics = %+v, want 2 requests and 10 bytes", got)
	}
}
