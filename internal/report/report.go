// Package report aggregates a filtered transaction set into the detail and
// consolidated tables and renders them for export.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"livrocaixa/internal/core"
	"livrocaixa/internal/store"
)

type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusExecuted  StatusFilter = "executed"
	StatusScheduled StatusFilter = "scheduled"
)

// ParseStatusFilter accepts "", "all", "executed" and "scheduled".
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusExecuted:
		return StatusExecuted, nil
	case StatusScheduled:
		return StatusScheduled, nil
	}
	return "", &core.ValidationError{Field: "status", Reason: fmt.Sprintf("status desconhecido: %q", s)}
}

func (s StatusFilter) Label() string {
	switch s {
	case StatusExecuted:
		return "Status: Executadas"
	case StatusScheduled:
		return "Status: Programadas"
	}
	return "Status: Todos"
}

// Match reports whether t passes the filter. Income always passes.
func (s StatusFilter) Match(t core.Transaction) bool {
	if s == StatusAll || s == "" || t.Kind == core.Income {
		return true
	}
	return string(t.EffectiveStatus()) == string(s)
}

// Filter selects the transactions of a report. End is inclusive.
type Filter struct {
	Start         core.Date
	End           core.Date
	CategoryID    string
	AccountID     string
	Status        StatusFilter
	PaymentMethod string
}

func (f Filter) Validate() error {
	if err := f.Start.Validate(); err != nil {
		return core.Invalid("start", err)
	}
	if err := f.End.Validate(); err != nil {
		return core.Invalid("end", err)
	}
	if f.End.Before(f.Start) {
		return &core.ValidationError{Field: "end", Reason: "o fim do período é anterior ao início", Err: core.ErrInvalidDate}
	}
	return nil
}

// MonthFilter covers the whole calendar month k with no other filter.
func MonthFilter(k core.MonthKey) Filter {
	start, next := k.Range()
	return Filter{Start: start, End: next.AddDays(-1), Status: StatusAll}
}

// StoreFilter is the record-store query for f. The status filter is applied
// in memory.
func (f Filter) StoreFilter() store.TxFilter {
	return store.TxFilter{
		From:              f.Start,
		Before:            f.End.AddDays(1),
		CategoryID:        f.CategoryID,
		AccountID:         f.AccountID,
		PaymentMethodLike: strings.TrimSpace(f.PaymentMethod),
	}
}

// Lookup resolves ids to display names.
type Lookup struct {
	Accounts   map[string]string
	Categories map[string]string
}

func NewLookup(accounts []core.Account, categories []core.Category) Lookup {
	l := Lookup{Accounts: make(map[string]string, len(accounts)), Categories: make(map[string]string, len(categories))}
	for _, a := range accounts {
		l.Accounts[a.ID] = a.Name
	}
	for _, c := range categories {
		l.Categories[c.ID] = c.Name
	}
	return l
}

// Labels are the filter values as printed in exports.
type Labels struct {
	Period        string
	Category      string
	Account       string
	Status        string
	PaymentMethod string
}

func (f Filter) labels(l Lookup) Labels {
	out := Labels{
		Period:        f.Start.String() + " até " + f.End.String(),
		Category:      "Todas",
		Account:       "Todas",
		Status:        f.Status.Label(),
		PaymentMethod: "Todas",
	}
	if f.CategoryID != "" {
		out.Category = nameOr(l.Categories, f.CategoryID, "Categoria")
	}
	if f.AccountID != "" {
		out.Account = nameOr(l.Accounts, f.AccountID, "Conta")
	}
	if pm := strings.TrimSpace(f.PaymentMethod); pm != "" {
		out.PaymentMethod = pm
	}
	return out
}

func nameOr(m map[string]string, id, fallback string) string {
	if n, ok := m[id]; ok {
		return n
	}
	return fallback
}

// DetailRow is one line of the transaction listing.
type DetailRow struct {
	Date          core.Date
	Kind          core.Kind
	Status        string
	Description   string
	Category      string
	Account       string
	PaymentMethod string
	Amount        core.Money
}

// Group is one consolidated line keyed by kind, category and account.
// Executed and Scheduled stay zero for income.
type Group struct {
	Kind         core.Kind
	CategoryID   string
	CategoryName string
	AccountID    string
	AccountName  string
	Total        core.Money
	Executed     core.Money
	Scheduled    core.Money
}

type Summary struct {
	Income           core.Money
	ExpenseExecuted  core.Money
	ExpenseScheduled core.Money
	NetExecuted      core.Money
	NetAll           core.Money
}

// Totals is the consolidated table footer.
type Totals struct {
	Income           core.Money
	ExpenseExecuted  core.Money
	ExpenseScheduled core.Money
}

func (t Totals) Expense() core.Money { return t.ExpenseExecuted.Add(t.ExpenseScheduled) }

// All is income plus every expense, the footer's Total column.
func (t Totals) All() core.Money { return t.Income.Add(t.Expense()) }

type Report struct {
	Filter  Filter
	Labels  Labels
	Rows    []DetailRow
	Groups  []Group
	Summary Summary
	Totals  Totals
	// RowSum is the plain sum of every listed amount.
	RowSum core.Money
}

// Build aggregates txs, which must already satisfy the store part of f.
// It does not modify txs.
func Build(txs []core.Transaction, l Lookup, f Filter) Report {
	r := Report{Filter: f, Labels: f.labels(l)}
	index := map[string]int{}

	for _, t := range txs {
		if !f.Status.Match(t) {
			continue
		}
		status := "—"
		if t.Kind == core.Expense {
			status = t.EffectiveStatus().Label()
		}
		r.Rows = append(r.Rows, DetailRow{
			Date:          t.Date,
			Kind:          t.Kind,
			Status:        status,
			Description:   t.Description,
			Category:      nameOr(l.Categories, t.CategoryID, "—"),
			Account:       nameOr(l.Accounts, t.AccountID, "—"),
			PaymentMethod: t.PaymentMethod,
			Amount:        t.Amount,
		})
		r.RowSum = r.RowSum.Add(t.Amount)

		key := string(t.Kind) + ":" + t.CategoryID + ":" + t.AccountID
		i, ok := index[key]
		if !ok {
			i = len(r.Groups)
			index[key] = i
			r.Groups = append(r.Groups, Group{
				Kind:         t.Kind,
				CategoryID:   t.CategoryID,
				CategoryName: nameOr(l.Categories, t.CategoryID, "Sem categoria"),
				AccountID:    t.AccountID,
				AccountName:  nameOr(l.Accounts, t.AccountID, "Sem conta"),
			})
		}
		g := &r.Groups[i]
		switch {
		case t.Kind == core.Income:
			g.Total = g.Total.Add(t.Amount)
			r.Summary.Income = r.Summary.Income.Add(t.Amount)
		case t.EffectiveStatus() == core.Executed:
			g.Executed = g.Executed.Add(t.Amount)
			g.Total = g.Executed.Add(g.Scheduled)
			r.Summary.ExpenseExecuted = r.Summary.ExpenseExecuted.Add(t.Amount)
		default:
			g.Scheduled = g.Scheduled.Add(t.Amount)
			g.Total = g.Executed.Add(g.Scheduled)
			r.Summary.ExpenseScheduled = r.Summary.ExpenseScheduled.Add(t.Amount)
		}
	}

	sort.SliceStable(r.Groups, func(i, j int) bool {
		return r.Groups[i].Total.Cents > r.Groups[j].Total.Cents
	})

	r.Summary.NetExecuted = r.Summary.Income.Sub(r.Summary.ExpenseExecuted)
	r.Summary.NetAll = r.Summary.Income.Sub(r.Summary.ExpenseExecuted.Add(r.Summary.ExpenseScheduled))
	r.Totals = Totals{
		Income:           r.Summary.Income,
		ExpenseExecuted:  r.Summary.ExpenseExecuted,
		ExpenseScheduled: r.Summary.ExpenseScheduled,
	}
	return r
}

// Source is the slice of the record store a report reads.
type Source interface {
	ListAccounts(ctx context.Context, onlyActive bool) ([]core.Account, error)
	ListCategories(ctx context.Context, onlyActive bool) ([]core.Category, error)
	ListTransactions(ctx context.Context, f store.TxFilter) ([]core.Transaction, error)
}

// Run validates f, fetches the lookups and the transactions concurrently and
// builds the report.
func Run(ctx context.Context, src Source, f Filter) (Report, error) {
	if f.Status == "" {
		f.Status = StatusAll
	}
	if err := f.Validate(); err != nil {
		return Report{}, err
	}
	var (
		accounts   []core.Account
		categories []core.Category
		txs        []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = src.ListAccounts(gctx, false)
		return storeErr("listar contas", err)
	})
	g.Go(func() (err error) {
		categories, err = src.ListCategories(gctx, false)
		return storeErr("listar categorias", err)
	})
	g.Go(func() (err error) {
		txs, err = src.ListTransactions(gctx, f.StoreFilter())
		return storeErr("listar lançamentos", err)
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return Build(txs, NewLookup(accounts, categories), f), nil
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &core.StoreError{Op: op, Err: err}
}
