package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady checks that the record store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.deps.Store == nil {
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if _, err := s.deps.Store.ListAccounts(ctx, true); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.deps.Attachments == nil {
		checks["attachments"] = "not_configured"
	} else {
		checks["attachments"] = "ok"
	}

	if s.deps.Calculator != nil {
		checks["balance_cache"] = map[string]any{
			"entries": s.deps.Calculator.CachedBalances(),
			"status":  "ok",
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	created := atomic.LoadInt64(&s.appMetrics.created)
	imported := atomic.LoadInt64(&s.appMetrics.imported)
	failures := atomic.LoadInt64(&s.appMetrics.mutationsErr)
	uptime := time.Since(s.appMetrics.uptime)

	cached := 0
	if s.deps.Calculator != nil {
		cached = s.deps.Calculator.CachedBalances()
	}

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_request_duration_avg_us Average request duration in microseconds\n")
	fmt.Fprintf(w, "# TYPE http_request_duration_avg_us gauge\n")
	fmt.Fprintf(w, "http_request_duration_avg_us %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP transactions_created_total Transactions created from the form\n")
	fmt.Fprintf(w, "# TYPE transactions_created_total counter\n")
	fmt.Fprintf(w, "transactions_created_total %d\n\n", created)

	fmt.Fprintf(w, "# HELP transactions_imported_total Transactions created by CSV import\n")
	fmt.Fprintf(w, "# TYPE transactions_imported_total counter\n")
	fmt.Fprintf(w, "transactions_imported_total %d\n\n", imported)

	fmt.Fprintf(w, "# HELP request_failures_total Requests answered with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE request_failures_total counter\n")
	fmt.Fprintf(w, "request_failures_total %d\n\n", failures)

	fmt.Fprintf(w, "# HELP balance_cache_entries Current cached balance sets\n")
	fmt.Fprintf(w, "# TYPE balance_cache_entries gauge\n")
	fmt.Fprintf(w, "balance_cache_entries %d\n\n", cached)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.Rejected)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}
