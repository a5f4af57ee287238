package core

// Effect describes what a mutating operation changed, so callers update their
// views without reloading the ledger.
type Effect struct {
	Created []string
	Updated []string
	Deleted []string
	// BalanceDelta is the signed change of each account balance.
	BalanceDelta map[string]Money
	// Months lists every calendar month whose figures changed.
	Months []MonthKey
}

// Apply records the balance effect of t with the given sign (+1 add, -1 remove).
func (e *Effect) Apply(t Transaction, sign int64) {
	if e.BalanceDelta == nil {
		e.BalanceDelta = make(map[string]Money)
	}
	c := t.Contribution()
	if c.Cents != 0 {
		e.BalanceDelta[t.AccountID] = e.BalanceDelta[t.AccountID].Add(Money{Cents: c.Cents * sign})
	}
	k := t.Date.MonthKey()
	for _, m := range e.Months {
		if m == k {
			return
		}
	}
	e.Months = append(e.Months, k)
}

// Merge folds o into e.
func (e *Effect) Merge(o Effect) {
	e.Created = append(e.Created, o.Created...)
	e.Updated = append(e.Updated, o.Updated...)
	e.Deleted = append(e.Deleted, o.Deleted...)
	for acc, d := range o.BalanceDelta {
		if e.BalanceDelta == nil {
			e.BalanceDelta = make(map[string]Money)
		}
		e.BalanceDelta[acc] = e.BalanceDelta[acc].Add(d)
	}
	for _, m := range o.Months {
		found := false
		for _, have := range e.Months {
			if have == m {
				found = true
				break
			}
		}
		if !found {
			e.Months = append(e.Months, m)
		}
	}
}
