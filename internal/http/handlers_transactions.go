package http

import (
	"net/http"
	"strings"
	"sync/atomic"

	"livrocaixa/internal/core"
	"livrocaixa/internal/recurrence"
	"livrocaixa/internal/services"
	"livrocaixa/internal/store"
)

// entryRequest is the transaction form. Dates and amounts travel as the
// user typed them and are parsed with the localized rules.
type entryRequest struct {
	Date             string `json:"date"`
	Kind             string `json:"kind"`
	CategoryID       string `json:"category_id"`
	AccountID        string `json:"account_id"`
	Description      string `json:"description"`
	Amount           string `json:"amount"`
	PaymentMethod    string `json:"payment_method"`
	Status           string `json:"expense_status"`
	DocNo            string `json:"doc_no"`
	Recurring        bool   `json:"recurring"`
	RecurrenceMonths int    `json:"recurrence_months"`
}

func (req entryRequest) entry() (services.Entry, error) {
	date, err := ParseDate("date", req.Date)
	if err != nil {
		return services.Entry{}, err
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return services.Entry{}, err
	}
	e := services.Entry{
		Date:          date,
		Kind:          core.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		CategoryID:    strings.TrimSpace(req.CategoryID),
		AccountID:     strings.TrimSpace(req.AccountID),
		Description:   sanitizeInput(req.Description),
		Amount:        amount,
		PaymentMethod: sanitizeInput(req.PaymentMethod),
		DocNo:         strings.TrimSpace(req.DocNo),
		Recurrence:    recurrence.Plan{Recurring: req.Recurring, Months: req.RecurrenceMonths},
	}
	if e.Kind == core.Expense {
		e.Status = core.NormalizeStatus(req.Status)
	}
	return e, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.TxFilter
	var err error
	if f.From, err = ParseDate("from", q.Get("from")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if f.Before, err = ParseDate("before", q.Get("before")); err != nil {
		s.writeError(w, r, err)
		return
	}
	// "to" is the inclusive spelling of "before".
	if f.Before.IsZero() {
		to, err := ParseDate("to", q.Get("to"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !to.IsZero() {
			f.Before = to.AddDays(1)
		}
	}
	if raw := strings.TrimSpace(q.Get("kind")); raw != "" {
		f.Kind = core.Kind(strings.ToLower(raw))
		if !f.Kind.Valid() {
			s.writeError(w, r, core.Invalid("kind", core.ErrUnrecognizedKind))
			return
		}
	}
	f.AccountID = strings.TrimSpace(q.Get("account_id"))
	f.CategoryID = strings.TrimSpace(q.Get("category_id"))
	f.PaymentMethodLike = sanitizeInput(q.Get("payment"))

	txs, err := s.deps.Store.ListTransactions(r.Context(), f)
	if err != nil {
		s.writeError(w, r, &core.StoreError{Op: "listar lançamentos", Err: err})
		return
	}
	NewResponse().JSON(map[string]any{"transactions": transactionViews(txs)}).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Store.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(transactionView(tx)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := req.entry()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Ledger.Create(r.Context(), e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.created, int64(len(res.Transactions)))

	NewResponse().Status(http.StatusCreated).JSON(map[string]any{
		"transactions": transactionViews(res.Transactions),
		"effect":       effectView(res.Effect),
	}).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := req.entry()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	eff, err := s.deps.Ledger.Update(r.Context(), r.PathValue("id"), e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{"effect": effectView(eff)}).Write(w)
}

func (s *Server) handleMarkExecuted(w http.ResponseWriter, r *http.Request) {
	eff, err := s.deps.Ledger.MarkExecuted(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{"effect": effectView(eff)}).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	eff, err := s.deps.Ledger.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{"effect": effectView(eff)}).Write(w)
}

// handleNextDocNo proposes the document number of an expense dated date,
// today when absent.
func (s *Server) handleNextDocNo(w http.ResponseWriter, r *http.Request) {
	d, err := QueryDateOr(r.URL.Query(), "date", core.DateOf(s.deps.Now()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	docNo, err := s.deps.Ledger.NextDocNo(r.Context(), d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]string{"doc_no": docNo, "month": d.MonthKey().String()}).Write(w)
}
