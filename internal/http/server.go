package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"livrocaixa/internal/auth"
	"livrocaixa/internal/core"
	applog "livrocaixa/internal/log"
	"livrocaixa/internal/ledger"
	"livrocaixa/internal/middleware/ratelimit"
	"livrocaixa/internal/middleware/security"
	"livrocaixa/internal/middleware/trace"
	"livrocaixa/internal/services"
	"livrocaixa/internal/store"
)

// Deps are the engine pieces the API exposes. Attachments may be nil when
// no blob store is configured; the attachment routes then answer 503.
type Deps struct {
	Store       store.Store
	Ledger      *services.LedgerService
	Imports     *services.ImportService
	Admin       *services.AdminService
	Attachments *services.AttachmentService
	Calculator  *ledger.Calculator
	Issuer      *auth.Issuer
	OrgName     string
	Logger      *applog.Logger
	// Now is the clock used for defaults such as the current month.
	Now func() time.Time
}

type appMetrics struct {
	uptime       time.Time
	created      int64
	imported     int64
	rateLimited  int64
	suspicious   int64
	mutationsErr int64
}

type Server struct {
	http.Server
	deps Deps

	logger           *applog.Logger
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	headers          *security.HeadersMiddleware
	appMetrics       appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.OrgName == "" {
		deps.OrgName = "Financeiro Igreja"
	}

	detector := security.NewDetector()
	s := &Server{
		deps:             deps,
		logger:           deps.Logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		headers:          security.NewHeadersMiddleware(security.APIHeadersConfig()),
		appMetrics:       appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = auth.Middleware(deps.Issuer)(handler)
	handler = s.withRateLimit(handler)
	handler = s.withSuspiciousRequestLogging(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = applog.Middleware(s.logger)(handler)
	handler = s.headers.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Accounts and categories.
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("PATCH /api/accounts/{id}", s.handleSetAccountActive)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("GET /api/accounts/{id}/statement", s.handleStatement)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleSetCategoryActive)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	// Ledger.
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("POST /api/transactions", s.privileged(s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.privileged(s.handleUpdateTransaction))
	mux.HandleFunc("POST /api/transactions/{id}/execute", s.privileged(s.handleMarkExecuted))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.privileged(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/doc-numbers/next", s.handleNextDocNo)

	// Attachments.
	mux.HandleFunc("GET /api/transactions/{id}/attachments", s.handleListAttachments)
	mux.HandleFunc("POST /api/transactions/{id}/attachments", s.privileged(s.handleUploadAttachment))
	mux.HandleFunc("POST /api/transactions/{id}/links", s.privileged(s.handleAddLink))
	mux.HandleFunc("GET /api/attachments/{id}/url", s.handleAttachmentURL)

	// Import.
	mux.HandleFunc("POST /api/imports/preview", s.privileged(s.handleImportPreview))
	mux.HandleFunc("POST /api/imports/commit", s.privileged(s.handleImportCommit))

	// Figures and reports.
	mux.HandleFunc("GET /api/balances", s.handleBalances)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/daily", s.handleDaily)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/reports", s.handleReport)
}

// privileged rejects callers that are not authenticated or not allowed to
// change the ledger.
func (s *Server) privileged(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := auth.CurrentUser(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !auth.IsPrivileged(u) {
			s.writeError(w, r, core.ErrForbidden)
			return
		}
		next(w, r)
	}
}

// withRateLimit applies the per-client limit to mutating requests.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.appMetrics.rateLimited, 1)
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		NewResponse().Status(http.StatusTooManyRequests).
			Header("Retry-After", "60").
			JSON(ErrorBody{Error: MsgRateLimited, Kind: KindValidation}).
			Write(w)
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			limited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// withSuspiciousRequestLogging records probe-looking requests. They are
// served normally; the API has no paths the probes target.
func (s *Server) withSuspiciousRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			atomic.AddInt64(&s.appMetrics.suspicious, 1)
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// writeError logs server-side failures and writes the mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse(err)
	if resp.statusCode >= http.StatusInternalServerError {
		atomic.AddInt64(&s.appMetrics.mutationsErr, 1)
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldError, err.Error(),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, resp.statusCode)
	}
	resp.Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
