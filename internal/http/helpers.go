package http

import (
	"sort"
	"strings"
	"time"

	"livrocaixa/internal/core"
	"livrocaixa/internal/csvimport"
	"livrocaixa/internal/ledger"
	"livrocaixa/internal/report"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

type moneyJSON struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func money(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Formatted: core.FormatCurrencyLocalized(m)}
}

type accountJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func accountView(a core.Account) accountJSON {
	return accountJSON{ID: a.ID, Name: a.Name, Active: a.Active}
}

type categoryJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Active bool   `json:"active"`
}

func categoryView(c core.Category) categoryJSON {
	return categoryJSON{ID: c.ID, Name: c.Name, Kind: string(c.Kind), Active: c.Active}
}

type transactionJSON struct {
	ID            string     `json:"id"`
	Date          string     `json:"date"`
	Kind          string     `json:"kind"`
	Description   string     `json:"description"`
	Amount        moneyJSON  `json:"amount"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	CategoryID    string     `json:"category_id"`
	AccountID     string     `json:"account_id"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Status        string     `json:"expense_status,omitempty"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	DocNo         string     `json:"doc_no,omitempty"`
}

func transactionView(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:            t.ID,
		Date:          t.Date.String(),
		Kind:          string(t.Kind),
		Description:   t.Description,
		Amount:        money(t.Amount),
		PaymentMethod: t.PaymentMethod,
		CategoryID:    t.CategoryID,
		AccountID:     t.AccountID,
		CreatedBy:     t.CreatedBy,
		CreatedAt:     t.CreatedAt,
		Status:        string(t.Status),
		ExecutedAt:    t.ExecutedAt,
		DocNo:         t.DocNo,
	}
}

func transactionViews(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionView(t))
	}
	return out
}

type effectJSON struct {
	Created      []string             `json:"created"`
	Updated      []string             `json:"updated"`
	Deleted      []string             `json:"deleted"`
	BalanceDelta map[string]moneyJSON `json:"balance_delta"`
	Months       []string             `json:"months"`
}

func effectView(e core.Effect) effectJSON {
	out := effectJSON{
		Created:      nonNil(e.Created),
		Updated:      nonNil(e.Updated),
		Deleted:      nonNil(e.Deleted),
		BalanceDelta: make(map[string]moneyJSON, len(e.BalanceDelta)),
		Months:       []string{},
	}
	for acc, d := range e.BalanceDelta {
		out.BalanceDelta[acc] = money(d)
	}
	for _, m := range e.Months {
		out.Months = append(out.Months, m.String())
	}
	sort.Strings(out.Months)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type attachmentJSON struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Name          string    `json:"name"`
	MimeType      string    `json:"mime_type,omitempty"`
	SizeBytes     int64     `json:"size_bytes,omitempty"`
	Stored        bool      `json:"stored"`
	ExternalURL   string    `json:"external_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func attachmentView(a core.Attachment) attachmentJSON {
	return attachmentJSON{
		ID:            a.ID,
		TransactionID: a.TransactionID,
		Name:          a.OriginalName,
		MimeType:      a.MimeType,
		SizeBytes:     a.SizeBytes,
		Stored:        a.StoragePath != "",
		ExternalURL:   a.ExternalURL,
		CreatedAt:     a.CreatedAt,
	}
}

type rowErrorJSON struct {
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

type parsedRowJSON struct {
	Line        int           `json:"line"`
	Raw         string        `json:"raw"`
	Date        string        `json:"date,omitempty"`
	Kind        string        `json:"kind,omitempty"`
	Description string        `json:"description,omitempty"`
	Amount      moneyJSON     `json:"amount"`
	OK          bool          `json:"ok"`
	Error       *rowErrorJSON `json:"error,omitempty"`
	Include     bool          `json:"include"`
	AccountID   string        `json:"account_id,omitempty"`
	CategoryID  string        `json:"category_id,omitempty"`
	Status      string        `json:"expense_status,omitempty"`
}

func parsedRowView(r csvimport.ParsedRow) parsedRowJSON {
	out := parsedRowJSON{
		Line:        r.Line,
		Raw:         r.Raw,
		Kind:        string(r.Kind),
		Description: r.Description,
		Amount:      money(r.Amount),
		OK:          r.OK,
		Include:     r.Include,
		AccountID:   r.AccountID,
		CategoryID:  r.CategoryID,
		Status:      string(r.Status),
	}
	if !r.Date.IsZero() {
		out.Date = r.Date.String()
	}
	if r.Err != nil {
		out.Error = &rowErrorJSON{Field: r.Err.Field, Reason: r.Err.Reason}
	}
	return out
}

type statsJSON struct {
	Total    int       `json:"total"`
	Valid    int       `json:"valid"`
	Invalid  int       `json:"invalid"`
	Included int       `json:"included"`
	Income   moneyJSON `json:"income"`
	Expense  moneyJSON `json:"expense"`
}

func statsView(s csvimport.Stats) statsJSON {
	return statsJSON{
		Total: s.Total, Valid: s.Valid, Invalid: s.Invalid, Included: s.Included,
		Income: money(s.Income), Expense: money(s.Expense),
	}
}

type summaryJSON struct {
	CarryIn            moneyJSON `json:"carry_in"`
	Income             moneyJSON `json:"income"`
	ExpenseExecuted    moneyJSON `json:"expense_executed"`
	ExpenseScheduled   moneyJSON `json:"expense_scheduled"`
	BalancePeriod      moneyJSON `json:"balance_period"`
	BalanceAccumulated moneyJSON `json:"balance_accumulated"`
}

func summaryView(s ledger.Summary) summaryJSON {
	return summaryJSON{
		CarryIn:            money(s.CarryIn),
		Income:             money(s.Income),
		ExpenseExecuted:    money(s.ExpenseExecuted),
		ExpenseScheduled:   money(s.ExpenseScheduled),
		BalancePeriod:      money(s.BalancePeriod),
		BalanceAccumulated: money(s.BalanceAccumulated),
	}
}

type dayJSON struct {
	Date             string            `json:"date"`
	Income           moneyJSON         `json:"income"`
	ExpenseExecuted  moneyJSON         `json:"expense_executed"`
	ExpenseScheduled moneyJSON         `json:"expense_scheduled"`
	RunningBalance   moneyJSON         `json:"running_balance"`
	Transactions     []transactionJSON `json:"transactions,omitempty"`
}

func dayViews(days []ledger.DayBalance) []dayJSON {
	out := make([]dayJSON, 0, len(days))
	for _, d := range days {
		out = append(out, dayJSON{
			Date:             d.Date.String(),
			Income:           money(d.Income),
			ExpenseExecuted:  money(d.ExpenseExecuted),
			ExpenseScheduled: money(d.ExpenseScheduled),
			RunningBalance:   money(d.RunningBalance),
			Transactions:     transactionViews(d.Transactions),
		})
	}
	return out
}

type balanceJSON struct {
	Account accountJSON `json:"account"`
	Balance moneyJSON   `json:"balance"`
}

func balanceViews(bs []ledger.AccountBalance) []balanceJSON {
	out := make([]balanceJSON, 0, len(bs))
	for _, b := range bs {
		out = append(out, balanceJSON{Account: accountView(b.Account), Balance: money(b.Balance)})
	}
	return out
}

type monthPointJSON struct {
	Month            string    `json:"month"`
	Label            string    `json:"label"`
	Income           moneyJSON `json:"income"`
	ExpenseExecuted  moneyJSON `json:"expense_executed"`
	ExpenseScheduled moneyJSON `json:"expense_scheduled"`
	ExpenseAll       moneyJSON `json:"expense_all"`
	Net              moneyJSON `json:"net"`
}

type dashboardJSON struct {
	Series   []monthPointJSON `json:"series"`
	Balances []balanceJSON    `json:"balances"`
	KPIs     struct {
		TotalBalance    moneyJSON `json:"total_balance"`
		IncomeMonth     moneyJSON `json:"income_month"`
		ExpenseMonthAll moneyJSON `json:"expense_month_all"`
		NetMonthAll     moneyJSON `json:"net_month_all"`
	} `json:"kpis"`
}

func dashboardView(d ledger.Dashboard) dashboardJSON {
	var out dashboardJSON
	out.Series = make([]monthPointJSON, 0, len(d.Series))
	for _, p := range d.Series {
		out.Series = append(out.Series, monthPointJSON{
			Month:            p.Month.String(),
			Label:            p.Label,
			Income:           money(p.Income),
			ExpenseExecuted:  money(p.ExpenseExecuted),
			ExpenseScheduled: money(p.ExpenseScheduled),
			ExpenseAll:       money(p.ExpenseAll),
			Net:              money(p.Net),
		})
	}
	out.Balances = balanceViews(d.Balances)
	out.KPIs.TotalBalance = money(d.KPIs.TotalBalance)
	out.KPIs.IncomeMonth = money(d.KPIs.IncomeMonth)
	out.KPIs.ExpenseMonthAll = money(d.KPIs.ExpenseMonthAll)
	out.KPIs.NetMonthAll = money(d.KPIs.NetMonthAll)
	return out
}

type groupJSON struct {
	Kind      string    `json:"kind"`
	Category  string    `json:"category"`
	Account   string    `json:"account"`
	Total     moneyJSON `json:"total"`
	Executed  moneyJSON `json:"executed"`
	Scheduled moneyJSON `json:"scheduled"`
}

type detailRowJSON struct {
	Date          string    `json:"date"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Account       string    `json:"account"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Amount        moneyJSON `json:"amount"`
}

type labelsJSON struct {
	Period        string `json:"period"`
	Category      string `json:"category"`
	Account       string `json:"account"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
}

type reportJSON struct {
	Labels  labelsJSON      `json:"labels"`
	Rows    []detailRowJSON `json:"rows"`
	Groups  []groupJSON     `json:"groups"`
	Summary struct {
		Income           moneyJSON `json:"income"`
		ExpenseExecuted  moneyJSON `json:"expense_executed"`
		ExpenseScheduled moneyJSON `json:"expense_scheduled"`
		NetExecuted      moneyJSON `json:"net_executed"`
		NetAll           moneyJSON `json:"net_all"`
	} `json:"summary"`
	RowSum moneyJSON `json:"row_sum"`
}

func reportView(r report.Report) reportJSON {
	var out reportJSON
	out.Labels = labelsJSON{
		Period:        r.Labels.Period,
		Category:      r.Labels.Category,
		Account:       r.Labels.Account,
		Status:        r.Labels.Status,
		PaymentMethod: r.Labels.PaymentMethod,
	}
	out.Rows = make([]detailRowJSON, 0, len(r.Rows))
	for _, row := range r.Rows {
		out.Rows = append(out.Rows, detailRowJSON{
			Date:          row.Date.String(),
			Kind:          string(row.Kind),
			Status:        row.Status,
			Description:   row.Description,
			Category:      row.Category,
			Account:       row.Account,
			PaymentMethod: row.PaymentMethod,
			Amount:        money(row.Amount),
		})
	}
	out.Groups = make([]groupJSON, 0, len(r.Groups))
	for _, g := range r.Groups {
		out.Groups = append(out.Groups, groupJSON{
			Kind:      string(g.Kind),
			Category:  g.CategoryName,
			Account:   g.AccountName,
			Total:     money(g.Total),
			Executed:  money(g.Executed),
			Scheduled: money(g.Scheduled),
		})
	}
	out.Summary.Income = money(r.Summary.Income)
	out.Summary.ExpenseExecuted = money(r.Summary.ExpenseExecuted)
	out.Summary.ExpenseScheduled = money(r.Summary.ExpenseScheduled)
	out.Summary.NetExecuted = money(r.Summary.NetExecuted)
	out.Summary.NetAll = money(r.Summary.NetAll)
	out.RowSum = money(r.RowSum)
	return out
}
