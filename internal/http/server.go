package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"payback/internal/blob"
	"payback/internal/cache"
	"payback/internal/core"
	applog "payback/internal/log"
	"payback/internal/metrics"
	"payback/internal/middleware/ratelimit"
	"payback/internal/middleware/security"
	"payback/internal/middleware/trace"
	"payback/internal/services"
	appweb "payback/web"
)

// Ledger is the slice of the ledger service the HTTP layer drives.
type Ledger interface {
	ListMembers(ctx context.Context) ([]core.Member, error)
	AddMember(ctx context.Context, cmd services.AddMemberCommand) (core.Member, error)
	DeleteMember(ctx context.Context, id int64) error
	GetBill(ctx context.Context, period core.Period) (*core.BillDetail, error)
	SetBill(ctx context.Context, cmd services.SetBillCommand) (core.MonthlyBill, error)
	RecordPayment(ctx context.Context, cmd services.RecordPaymentCommand) (core.MemberPayment, error)
	MarkUnpaid(ctx context.Context, billID, memberID int64) error
	MonthView(ctx context.Context, period core.Period) (core.MonthView, error)
	Ping(ctx context.Context) error
}

type Options struct {
	Addr               string
	Ledger             Ledger
	Blobs              blob.Store
	MaxUploadBytes     int64
	RateLimitPerMinute int
	TrustedProxies     []string
	Metrics            *metrics.Metrics
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	ledger    Ledger
	blobs     blob.Store
	maxUpload int64
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *applog.Logger
	mux       *http.ServeMux
	now       func() time.Time

	// Month views are cached briefly and purged on every mutation. The
	// generation guards against storing a view read before a purge.
	views      *cache.LRUCache[core.Period, core.MonthView]
	generation atomic.Uint64
	caches     *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	s := &Server{
		ledger:    opts.Ledger,
		blobs:     opts.Blobs,
		maxUpload: maxUpload,
		metrics:   opts.Metrics,
		detector:  security.NewDetector(),
		logger:    logger.WithComponent(applog.ComponentHTTP),
		mux:       http.NewServeMux(),
		now:       time.Now,
		views:     cache.NewLRUCache[core.Period, core.MonthView](64, 30*time.Second),
		caches:    cache.NewManager(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.caches.Register(s.views)
	s.caches.StartCleanup(5 * time.Minute)

	if opts.RateLimitPerMinute > 0 {
		cfg := ratelimit.DefaultConfig()
		cfg.RequestsPerMinute = opts.RateLimitPerMinute
		cfg.Burst = 0
		s.limiter = ratelimit.NewLimiter(cfg)
	}

	if s.metrics != nil {
		if err := s.metrics.WatchDetector(s.detector); err != nil {
			s.logger.Warn("Detector metrics not exported", applog.FieldError, err)
		}
		if s.limiter != nil {
			if err := s.metrics.WatchRateLimiter(s.limiter); err != nil {
				s.logger.Warn("Rate limiter metrics not exported", applog.FieldError, err)
			}
		}
	}

	s.routes()

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/members", s.handleListMembers)
	s.mux.HandleFunc("POST /api/members", s.handleAddMember)
	s.mux.HandleFunc("DELETE /api/members/{id}", s.handleDeleteMember)

	s.mux.HandleFunc("GET /api/bills", s.handleGetBill)
	s.mux.HandleFunc("POST /api/bills", s.handleSetBill)

	s.mux.HandleFunc("POST /api/member_payments", s.handleRecordPayment)
	s.mux.HandleFunc("DELETE /api/member_payments/{bill_id}/{member_id}", s.handleMarkUnpaid)

	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("GET /uploads/{name}", s.handleUpload)

	s.mux.HandleFunc("GET /healthz", handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		s.mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
		s.mux.HandleFunc("GET /{$}", s.handleIndex(sub))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}
}

// handler wraps the mux, outermost first: tracing, panic recovery,
// security headers, suspicious request logging and rate limiting.
func (s *Server) handler() http.Handler {
	var h http.Handler = s.mux
	if s.limiter != nil {
		h = s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited)(h)
	}
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.Recover(h)
	return trace.NewMiddleware(s.detector.ExtractClientIP, s.logger, s.observe).Middleware(h)
}

func (s *Server) observe(r *http.Request, status int, d time.Duration) {
	if s.metrics == nil {
		return
	}
	_, pattern := s.mux.Handler(r)
	s.metrics.ObserveRequest(pattern, r.Method, status, d)
}

func (s *Server) mutated(op string) {
	s.generation.Add(1)
	s.views.Purge()
	if s.metrics != nil {
		s.metrics.ObserveMutation(op)
	}
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
