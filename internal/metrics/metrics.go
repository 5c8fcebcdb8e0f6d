// Package metrics holds the Prometheus collectors of the payback server.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payback/internal/core"
	"payback/internal/middleware/ratelimit"
	"payback/internal/middleware/security"
	"payback/internal/receipts"
)

const namespace = "payback"

// Receipt ingestion outcomes.
const (
	OutcomeStored      = "stored"
	OutcomeUnsupported = "unsupported"
	OutcomeTooLarge    = "too_large"
	OutcomeFailed      = "failed"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal          *prometheus.CounterVec
	requestDurationSeconds *prometheus.HistogramVec
	mutationsTotal         *prometheus.CounterVec
	receiptsTotal          *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status code.",
			},
			[]string{"route", "method", "status"},
		),
		requestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		mutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_mutations_total",
				Help:      "Committed ledger mutations by operation.",
			},
			[]string{"operation"},
		),
		receiptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "receipts_ingested_total",
				Help:      "Receipt uploads by outcome.",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDurationSeconds,
		m.mutationsTotal,
		m.receiptsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one request. route should be the mux pattern, not the raw path.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDurationSeconds.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) ObserveMutation(operation string) {
	m.mutationsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveReceipt(err error) {
	m.receiptsTotal.WithLabelValues(receiptOutcome(err)).Inc()
}

func receiptOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeStored
	case errors.Is(err, core.ErrUnsupportedMedia):
		return OutcomeUnsupported
	case errors.Is(err, core.ErrPayloadTooLarge):
		return OutcomeTooLarge
	default:
		return OutcomeFailed
	}
}

// RateLimiterStats is what the write limiter reports.
type RateLimiterStats interface {
	GetMetrics() ratelimit.Metrics
}

// DetectorStats is what the suspicious-request detector reports.
type DetectorStats interface {
	GetMetrics() security.DetectionMetrics
}

// WatchRateLimiter exports the limiter's counters, read on every scrape.
func (m *Metrics) WatchRateLimiter(l RateLimiterStats) error {
	return registerAll(m.registry,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Write requests rejected by the rate limiter.",
		}, func() float64 { return float64(l.GetMetrics().TotalHits) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_clients",
			Help:      "Clients currently holding a token bucket.",
		}, func() float64 { return float64(l.GetMetrics().ClientCount) }),
	)
}

// WatchDetector exports the detector's counters, read on every scrape.
func (m *Metrics) WatchDetector(d DetectorStats) error {
	return registerAll(m.registry,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_requests_total",
			Help:      "Requests matching at least one detection rule.",
		}, func() float64 { return float64(d.GetMetrics().SuspiciousRequests) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_forwarded_ip_total",
			Help:      "Malformed X-Forwarded-For or X-Real-IP values from trusted proxies.",
		}, func() float64 { return float64(d.GetMetrics().InvalidIPAttempts) }),
	)
}

func registerAll(reg *prometheus.Registry, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}
	return nil
}

// Ingestor is the receipt pipeline seen by the ledger.
type Ingestor interface {
	Ingest(ctx context.Context, up receipts.Upload) (string, error)
	Discard(ctx context.Context, ref string) error
}

type instrumentedIngestor struct {
	next    Ingestor
	metrics *Metrics
}

// InstrumentIngestor counts every ingestion outcome of next.
func InstrumentIngestor(next Ingestor, m *Metrics) Ingestor {
	if m == nil {
		return next
	}
	return &instrumentedIngestor{next: next, metrics: m}
}

func (i *instrumentedIngestor) Ingest(ctx context.Context, up receipts.Upload) (string, error) {
	ref, err := i.next.Ingest(ctx, up)
	i.metrics.ObserveReceipt(err)
	return ref, err
}

func (i *instrumentedIngestor) Discard(ctx context.Context, ref string) error {
	return i.next.Discard(ctx, ref)
}
