package http

import (
	"bytes"
	"net/http"
	"strings"

	"livrocaixa/internal/core"
	"livrocaixa/internal/ledger"
	"livrocaixa/internal/report"
)

const maxDashboardMonths = 24

// period reads start and end (inclusive), defaulting to the current month.
func (s *Server) period(r *http.Request) (core.Date, core.Date, error) {
	q := r.URL.Query()
	start, next := core.DateOf(s.deps.Now()).MonthKey().Range()
	start, err := QueryDateOr(q, "start", start)
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	end, err := QueryDateOr(q, "end", next.AddDays(-1))
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	if end.Before(start) {
		return core.Date{}, core.Date{}, &core.ValidationError{Field: "end", Reason: "o fim do período é anterior ao início", Err: core.ErrInvalidDate}
	}
	return start, end, nil
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	before, err := QueryDateOr(r.URL.Query(), "before", core.DateOf(s.deps.Now()).AddDays(1))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balances, err := s.deps.Calculator.AccountBalances(r.Context(), before)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"before":   before.String(),
		"balances": balanceViews(balances),
		"total":    money(ledger.Total(balances)),
	}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.period(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scope := ledger.Scope{AccountID: strings.TrimSpace(r.URL.Query().Get("account_id"))}
	sum, err := s.deps.Calculator.Summary(r.Context(), scope, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"start":   start.String(),
		"end":     end.String(),
		"summary": summaryView(sum),
	}).Write(w)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.period(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scope := ledger.Scope{AccountID: strings.TrimSpace(r.URL.Query().Get("account_id"))}
	days, err := s.deps.Calculator.Daily(r.Context(), scope, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{"days": dayViews(days)}).Write(w)
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.period(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	accountID := r.PathValue("id")
	if _, err := s.deps.Store.GetAccount(r.Context(), accountID); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.deps.Calculator.Statement(r.Context(), accountID, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"account_id": accountID,
		"start":      st.Start.String(),
		"end":        st.End.String(),
		"summary":    summaryView(st.Summary),
		"days":       dayViews(st.Days),
	}).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	last, err := ParseMonthParam(q, core.DateOf(s.deps.Now()).MonthKey())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := QueryInt(q, "months", 6, 1, maxDashboardMonths)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.deps.Calculator.Dashboard(r.Context(), last, n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(dashboardView(d)).Write(w)
}

func parseVariant(raw string) (report.Variant, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "detail", "lancamentos":
		return report.Detail, nil
	case "consolidated", "consolidado":
		return report.Consolidated, nil
	}
	return 0, &core.ValidationError{Field: "variant", Reason: "variante desconhecida: " + raw}
}

// handleReport builds the filtered report and returns it as JSON or as a
// download in CSV, spreadsheet (HTML under .xls) or PDF form.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := s.period(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status, err := report.ParseStatusFilter(q.Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	variant, err := parseVariant(q.Get("variant"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))

	f := report.Filter{
		Start:         start,
		End:           end,
		CategoryID:    strings.TrimSpace(q.Get("category_id")),
		AccountID:     strings.TrimSpace(q.Get("account_id")),
		Status:        status,
		PaymentMethod: sanitizeInput(q.Get("payment")),
	}
	rep, err := report.Run(r.Context(), s.deps.Store, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
		ext         string
	)
	switch format {
	case "", "json":
		NewResponse().JSON(reportView(rep)).Write(w)
		return
	case "csv":
		records := rep.DetailRecords()
		if variant == report.Consolidated {
			records = rep.ConsolidatedRecords()
		}
		err = report.WriteCSV(&buf, records)
		contentType, ext = "text/csv; charset=utf-8", "csv"
	case "xls":
		err = report.WriteHTML(&buf, rep, variant)
		contentType, ext = "application/vnd.ms-excel; charset=utf-8", "xls"
	case "pdf":
		err = report.WritePDF(&buf, rep, variant, report.PrintOptions{OrgName: s.deps.OrgName, GeneratedAt: s.deps.Now()})
		contentType, ext = "application/pdf", "pdf"
	default:
		s.writeError(w, r, &core.ValidationError{Field: "format", Reason: "formato desconhecido: " + format})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(rep, variant, ext)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
