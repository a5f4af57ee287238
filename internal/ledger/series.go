package ledger

import (
	"fmt"

	"livrocaixa/internal/core"
)

var monthAbbrev = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// MonthPoint is one month of the dashboard series.
type MonthPoint struct {
	Month            core.MonthKey
	Label            string
	Income           core.Money
	ExpenseExecuted  core.Money
	ExpenseScheduled core.Money
	ExpenseAll       core.Money
	Net              core.Money // income - executed
}

// KPIs summarizes the dashboard.
type KPIs struct {
	TotalBalance    core.Money
	IncomeMonth     core.Money
	ExpenseMonthAll core.Money
	NetMonthAll     core.Money
}

// MonthLabel renders k as "jan/24".
func MonthLabel(k core.MonthKey) string {
	return fmt.Sprintf("%s/%02d", monthAbbrev[k.Month-1], k.Year%100)
}

// MonthlySeries returns months [last-(n-1) .. last], oldest first. Rows
// outside the window are ignored.
func MonthlySeries(txs []core.Transaction, last core.MonthKey, n int) []MonthPoint {
	if n < 1 {
		n = 1
	}
	points := make([]MonthPoint, n)
	index := make(map[core.MonthKey]int, n)
	for i := 0; i < n; i++ {
		k := last.Add(i - (n - 1))
		points[i] = MonthPoint{Month: k, Label: MonthLabel(k)}
		index[k] = i
	}
	for _, t := range txs {
		i, ok := index[t.Date.MonthKey()]
		if !ok {
			continue
		}
		p := &points[i]
		addTo(&p.Income, &p.ExpenseExecuted, &p.ExpenseScheduled, t)
	}
	for i := range points {
		p := &points[i]
		p.ExpenseAll = p.ExpenseExecuted.Add(p.ExpenseScheduled)
		p.Net = p.Income.Sub(p.ExpenseExecuted)
	}
	return points
}

// DashboardKPIs derives the headline numbers from the series and balances.
func DashboardKPIs(series []MonthPoint, balances []AccountBalance) KPIs {
	k := KPIs{TotalBalance: Total(balances)}
	if len(series) > 0 {
		last := series[len(series)-1]
		k.IncomeMonth = last.Income
		k.ExpenseMonthAll = last.ExpenseAll
		k.NetMonthAll = last.Income.Sub(last.ExpenseAll)
	}
	return k
}

// Statement is an account page: carry-in, the period summary and the days
// with balance-moving rows only.
type Statement struct {
	Scope   Scope
	Start   core.Date
	End     core.Date
	Summary Summary
	Days    []DayBalance
}

// BuildStatement lists only income and executed expenses; scheduled rows
// are left out of the listing and the summary.
func BuildStatement(txs []core.Transaction, scope Scope, start, endInclusive core.Date) (Statement, error) {
	if endInclusive.Before(start) {
		return Statement{}, &core.ValidationError{Field: "periodo", Reason: "data inicial maior que a final", Err: core.ErrInvalidDate}
	}
	counted := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Counts() {
			counted = append(counted, t)
		}
	}
	return Statement{
		Scope:   scope,
		Start:   start,
		End:     endInclusive,
		Summary: PeriodSummary(counted, scope, start, endInclusive),
		Days:    DailyRunningBalance(counted, scope, start, endInclusive),
	}, nil
}
