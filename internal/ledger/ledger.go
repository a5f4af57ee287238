// Package ledger computes balances under the scheduled/executed rule: income
// always counts, an expense counts only once executed.
package ledger

import (
	"sort"
	"strings"

	"livrocaixa/internal/core"
)

// Scope restricts a computation to one account. The zero Scope is the whole
// ledger.
type Scope struct {
	AccountID string
}

func (s Scope) match(t core.Transaction) bool {
	return s.AccountID == "" || t.AccountID == s.AccountID
}

// Summary holds the figures of an inclusive date range.
type Summary struct {
	CarryIn            core.Money
	Income             core.Money
	ExpenseExecuted    core.Money
	ExpenseScheduled   core.Money
	BalancePeriod      core.Money
	BalanceAccumulated core.Money
}

// DayBalance is one row of a daily running balance.
type DayBalance struct {
	Date             core.Date
	Income           core.Money
	ExpenseExecuted  core.Money
	ExpenseScheduled core.Money
	RunningBalance   core.Money
	Transactions     []core.Transaction
}

// AccountBalance is the cumulative balance of one account.
type AccountBalance struct {
	Account core.Account
	Balance core.Money
}

// CarryIn sums income minus executed expenses dated strictly before before.
func CarryIn(txs []core.Transaction, scope Scope, before core.Date) core.Money {
	var total core.Money
	for _, t := range txs {
		if scope.match(t) && t.Date.Before(before) {
			total = total.Add(t.Contribution())
		}
	}
	return total
}

// PeriodSummary sums the transactions dated in [start, endInclusive]. The
// carry-in is computed from the same slice, so it must reach back far enough.
func PeriodSummary(txs []core.Transaction, scope Scope, start, endInclusive core.Date) Summary {
	s := Summary{CarryIn: CarryIn(txs, scope, start)}
	for _, t := range txs {
		if !scope.match(t) || !t.Date.InRange(start, endInclusive) {
			continue
		}
		addTo(&s.Income, &s.ExpenseExecuted, &s.ExpenseScheduled, t)
	}
	s.BalancePeriod = s.Income.Sub(s.ExpenseExecuted)
	s.BalanceAccumulated = s.CarryIn.Add(s.BalancePeriod)
	return s
}

// DailyRunningBalance groups [start, endInclusive] by date, ascending. The
// running balance starts at the carry-in; scheduled amounts are reported but
// never applied.
func DailyRunningBalance(txs []core.Transaction, scope Scope, start, endInclusive core.Date) []DayBalance {
	running := CarryIn(txs, scope, start)
	byDay := make(map[core.Date]*DayBalance)
	for _, t := range txs {
		if !scope.match(t) || !t.Date.InRange(start, endInclusive) {
			continue
		}
		day, ok := byDay[t.Date]
		if !ok {
			day = &DayBalance{Date: t.Date}
			byDay[t.Date] = day
		}
		addTo(&day.Income, &day.ExpenseExecuted, &day.ExpenseScheduled, t)
		day.Transactions = append(day.Transactions, t)
	}

	days := make([]DayBalance, 0, len(byDay))
	for _, d := range byDay {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	for i := range days {
		running = running.Add(days[i].Income).Sub(days[i].ExpenseExecuted)
		days[i].RunningBalance = running
	}
	return days
}

// AccountBalances returns, for every account, income minus executed
// expenses dated before the exclusive boundary, sorted by account name.
// Transactions of unknown accounts are ignored.
func AccountBalances(accounts []core.Account, txs []core.Transaction, beforeExclusive core.Date) []AccountBalance {
	sums := make(map[string]core.Money, len(accounts))
	for _, a := range accounts {
		sums[a.ID] = core.Money{}
	}
	for _, t := range txs {
		cur, ok := sums[t.AccountID]
		if !ok || !t.Date.Before(beforeExclusive) {
			continue
		}
		sums[t.AccountID] = cur.Add(t.Contribution())
	}
	out := make([]AccountBalance, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountBalance{Account: a, Balance: sums[a.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Account.Name) < strings.ToLower(out[j].Account.Name)
	})
	return out
}

// Total sums a list of account balances.
func Total(balances []AccountBalance) core.Money {
	var total core.Money
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	return total
}

func addTo(income, executed, scheduled *core.Money, t core.Transaction) {
	switch {
	case t.Kind == core.Income:
		*income = income.Add(t.Amount)
	case t.EffectiveStatus() == core.Executed:
		*executed = executed.Add(t.Amount)
	default:
		*scheduled = scheduled.Add(t.Amount)
	}
}
