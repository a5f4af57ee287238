package ledger

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"livrocaixa/internal/cache"
	"livrocaixa/internal/core"
	applog "livrocaixa/internal/log"
	"livrocaixa/internal/store"
)

// Reader is the slice of the record store the calculator needs.
type Reader interface {
	ListAccounts(ctx context.Context, onlyActive bool) ([]core.Account, error)
	ListTransactions(ctx context.Context, f store.TxFilter) ([]core.Transaction, error)
}

// Dashboard bundles the home page figures.
type Dashboard struct {
	Series   []MonthPoint
	Balances []AccountBalance
	KPIs     KPIs
}

const balanceKeyPrefix = "balances:"

// Calculator runs the ledger functions over data fetched from the store.
// Independent reads are issued concurrently.
type Calculator struct {
	store    Reader
	balances cache.Cache[[]AccountBalance]
	logger   *applog.Logger
}

// NewCalculator builds a calculator; balances may be nil to disable caching.
func NewCalculator(r Reader, balances cache.Cache[[]AccountBalance], logger *applog.Logger) *Calculator {
	if logger == nil {
		logger = applog.Default()
	}
	return &Calculator{store: r, balances: balances, logger: logger.WithComponent(applog.ComponentLedger)}
}

// AccountBalances computes every account's balance before the exclusive
// boundary.
func (c *Calculator) AccountBalances(ctx context.Context, beforeExclusive core.Date) ([]AccountBalance, error) {
	key := balanceKeyPrefix + beforeExclusive.String()
	if c.balances != nil {
		if cached, ok := c.balances.Get(key); ok {
			return cached, nil
		}
	}

	var (
		accounts []core.Account
		txs      []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = c.store.ListAccounts(gctx, false)
		return wrapStore("listar contas", err)
	})
	g.Go(func() error {
		var err error
		txs, err = c.store.ListTransactions(gctx, store.TxFilter{Before: beforeExclusive})
		return wrapStore("listar lançamentos", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := AccountBalances(accounts, txs, beforeExclusive)
	if c.balances != nil {
		c.balances.Set(key, out)
	}
	return out, nil
}

// Summary computes the period summary of scope over [start, endInclusive].
func (c *Calculator) Summary(ctx context.Context, scope Scope, start, endInclusive core.Date) (Summary, error) {
	txs, err := c.store.ListTransactions(ctx, store.TxFilter{Before: endInclusive.AddDays(1), AccountID: scope.AccountID})
	if err != nil {
		return Summary{}, wrapStore("listar lançamentos", err)
	}
	return PeriodSummary(txs, scope, start, endInclusive), nil
}

// Daily computes the running balance of scope over [start, endInclusive].
func (c *Calculator) Daily(ctx context.Context, scope Scope, start, endInclusive core.Date) ([]DayBalance, error) {
	txs, err := c.store.ListTransactions(ctx, store.TxFilter{Before: endInclusive.AddDays(1), AccountID: scope.AccountID})
	if err != nil {
		return nil, wrapStore("listar lançamentos", err)
	}
	return DailyRunningBalance(txs, scope, start, endInclusive), nil
}

// Statement fetches the period rows and the carry-in rows in parallel.
func (c *Calculator) Statement(ctx context.Context, accountID string, start, endInclusive core.Date) (Statement, error) {
	if endInclusive.Before(start) {
		return BuildStatement(nil, Scope{AccountID: accountID}, start, endInclusive)
	}
	var period, before []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		period, err = c.store.ListTransactions(gctx, store.TxFilter{From: start, Before: endInclusive.AddDays(1), AccountID: accountID})
		return wrapStore("listar lançamentos do período", err)
	})
	g.Go(func() error {
		var err error
		before, err = c.store.ListTransactions(gctx, store.TxFilter{Before: start, AccountID: accountID})
		return wrapStore("calcular saldo anterior", err)
	})
	if err := g.Wait(); err != nil {
		return Statement{}, err
	}
	return BuildStatement(append(before, period...), Scope{AccountID: accountID}, start, endInclusive)
}

// Dashboard returns the last n months ending at last, the account balances
// at the end of last and the headline KPIs.
func (c *Calculator) Dashboard(ctx context.Context, last core.MonthKey, n int) (Dashboard, error) {
	if n < 1 {
		n = 1
	}
	firstStart, _ := last.Add(-(n - 1)).Range()
	_, end := last.Range()

	var (
		txs      []core.Transaction
		balances []AccountBalance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = c.store.ListTransactions(gctx, store.TxFilter{From: firstStart, Before: end})
		return wrapStore("listar lançamentos", err)
	})
	g.Go(func() error {
		var err error
		balances, err = c.AccountBalances(gctx, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	series := MonthlySeries(txs, last, n)
	return Dashboard{Series: series, Balances: balances, KPIs: DashboardKPIs(series, balances)}, nil
}

// Invalidate drops cached balances whose boundary lies after the start of
// any of the given months.
func (c *Calculator) Invalidate(months []core.MonthKey) {
	if c.balances == nil || len(months) == 0 {
		return
	}
	earliest, _ := months[0].Range()
	for _, m := range months[1:] {
		if start, _ := m.Range(); start.Before(earliest) {
			earliest = start
		}
	}
	dropped := c.balances.DeleteFunc(func(key string) bool {
		raw, ok := strings.CutPrefix(key, balanceKeyPrefix)
		if !ok {
			return false
		}
		boundary, err := core.ParseISODate(raw)
		return err != nil || boundary.After(earliest)
	})
	if dropped > 0 {
		c.logger.Debug("Balance cache invalidated", "entries", dropped, applog.FieldMonth, earliest.MonthKey().String())
	}
}

func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	return &core.StoreError{Op: op, Err: err}
}

// CachedBalances is the number of balance sets currently cached.
func (c *Calculator) CachedBalances() int {
	if c.balances == nil {
		return 0
	}
	return c.balances.Size()
}

// InvalidateAll drops every cached balance set. Account changes move no
// money but change the list of accounts a balance set covers.
func (c *Calculator) InvalidateAll() {
	if c.balances == nil {
		return
	}
	dropped := c.balances.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, balanceKeyPrefix)
	})
	if dropped > 0 {
		c.logger.Debug("Balance cache cleared", "entries", dropped)
	}
}
