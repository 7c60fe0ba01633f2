package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"tutordash/internal/cache"
	"tutordash/internal/log"
	"tutordash/internal/metrics"
	"tutordash/internal/middleware/ratelimit"
	"tutordash/internal/middleware/security"
	"tutordash/internal/middleware/trace"
	"tutordash/internal/snapshot"
	appweb "tutordash/web"
)

// SnapshotSource is the part of snapshot.Provider the handlers use.
type SnapshotSource interface {
	Get(ctx context.Context) (*snapshot.Snapshot, error)
	Refresh(ctx context.Context) (*snapshot.Snapshot, error)
	Current() *snapshot.Snapshot
}

var _ SnapshotSource = (*snapshot.Provider)(nil)

const (
	defaultResponseCacheSize = 256
	defaultResponseCacheTTL  = 5 * time.Minute
	defaultRefreshPerMinute  = 6
)

// Options configures a Server. Zero values select the defaults.
type Options struct {
	Addr              string
	Logger            *log.Logger
	Metrics           *metrics.Metrics
	Now               func() time.Time
	Location          *time.Location
	TopN              int
	ResponseCacheSize int
	ResponseCacheTTL  time.Duration
	RefreshPerMinute  int
	Detector          *security.Detector
}

// Server is the dashboard HTTP server.
type Server struct {
	http.Server

	snapshots SnapshotSource
	templates *template.Template
	logger    *log.Logger
	metrics   *metrics.Metrics
	responses *cache.LRUCache[[]byte]
	caches    *cache.Manager
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	validate  *QueryValidator
	now       func() time.Time
	loc       *time.Location
	topN      int

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(snapshots SnapshotSource, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.ResponseCacheSize <= 0 {
		opts.ResponseCacheSize = defaultResponseCacheSize
	}
	if opts.ResponseCacheTTL <= 0 {
		opts.ResponseCacheTTL = defaultResponseCacheTTL
	}
	if opts.RefreshPerMinute <= 0 {
		opts.RefreshPerMinute = defaultRefreshPerMinute
	}
	if opts.Detector == nil {
		opts.Detector = security.NewDetector()
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		snapshots: snapshots,
		logger:    logger,
		metrics:   opts.Metrics,
		responses: cache.NewLRUCache[[]byte](opts.ResponseCacheSize, opts.ResponseCacheTTL).WithClock(opts.Now),
		caches:    cache.NewManager(opts.Logger),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RefreshPerMinute,
			Now:               opts.Now,
		}),
		detector: opts.Detector,
		validate: NewQueryValidator(),
		now:      opts.Now,
		loc:      opts.Location,
		topN:     opts.TopN,
	}
	s.caches.Register(s.responses)
	s.caches.StartCleanup(time.Minute)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(template.FuncMap{
		"euros": formatEuros,
		"hours": formatHours,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	api := func(h http.Handler) http.Handler { return security.NoStore(h) }
	mux.Handle("GET /api/metrics", api(http.HandlerFunc(s.handleMetrics)))
	mux.Handle("GET /api/top-students", api(http.HandlerFunc(s.handleTopStudents)))
	mux.Handle("GET /api/monthly-summary", api(http.HandlerFunc(s.handleMonthlySummary)))
	mux.Handle("GET /api/yearly-summary", api(http.HandlerFunc(s.handleYearlySummary)))
	mux.Handle("GET /api/student-search", api(http.HandlerFunc(s.handleStudentSearch)))
	mux.Handle("GET /api/student-details/{name}", api(http.HandlerFunc(s.handleStudentDetails)))
	mux.Handle("GET /api/sessions.csv", api(http.HandlerFunc(s.handleSessionsCSV)))

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)
	mux.Handle("POST /api/refresh", api(limited(http.HandlerFunc(s.handleRefresh))))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}
	mux.HandleFunc("GET /{$}", s.handleIndex)

	var h http.Handler = mux
	h = log.RequestIDMiddleware(s.logger, func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(h)
	h = s.flagSuspicious(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, s.observe).Middleware(h)
	return h
}

// flagSuspicious logs probe-looking requests. They are still served; the
// mux answers most of them with 404.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.Suspicious(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request",
				log.FieldRequestID, trace.GetRequestID(r.Context()),
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) observe(r *http.Request, status int, d time.Duration) {
	s.metrics.ObserveHTTPRequest(r.Method, routeLabel(r.URL.Path), status, d)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	_ = RateLimitedResponse(trace.GetRequestID(r.Context())).Write(w)
}

// PurgeResponseCache drops every memoised API response. Called when another
// process announces a new snapshot.
func (s *Server) PurgeResponseCache() {
	s.responses.Purge()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// clock pins the request clock to the dashboard's timezone.
func (s *Server) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	logger := log.FromContext(r.Context())
	status := ErrorResponse(err, "").statusCode
	args := []any{log.FieldOperation, op, log.FieldStatusCode, status, log.FieldError, err}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", args...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", args...)
	}
	if werr := ErrorResponse(err, trace.GetRequestID(r.Context())).Write(w); werr != nil {
		logger.ErrorContext(r.Context(), "Failed writing error response", log.FieldError, werr)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, b *JSONResponseBuilder) {
	if err := b.Write(w); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed writing response", log.FieldError, err)
	}
}

// snapshotHeaders tells the client which snapshot answered and how old it is.
func (s *Server) snapshotHeaders(w http.ResponseWriter, snap *snapshot.Snapshot, now time.Time) {
	w.Header().Set("X-Snapshot-ID", snap.ID)
	age := snap.Age(now)
	if age < 0 {
		age = 0
	}
	w.Header().Set("X-Snapshot-Age", fmt.Sprintf("%d", int64(age/time.Second)))
}
