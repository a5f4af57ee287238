package csvimport

import (
	"errors"

	"livrocaixa/internal/core"
)

var ErrRowLocked = errors.New("linha inválida não pode ser incluída")

// RowEdit changes the user-editable targets of one parsed row. Nil fields
// are left unchanged.
type RowEdit struct {
	Include    *bool
	AccountID  *string
	CategoryID *string
	Status     *core.ExpenseStatus
}

// Apply edits r in place. An invalid row cannot be included.
func (e RowEdit) Apply(r *ParsedRow) error {
	if e.Include != nil {
		if *e.Include && !r.OK {
			return ErrRowLocked
		}
		r.Include = *e.Include
	}
	if e.AccountID != nil {
		r.AccountID = *e.AccountID
	}
	if e.CategoryID != nil {
		r.CategoryID = *e.CategoryID
	}
	if e.Status != nil {
		r.Status = statusOrExecuted(*e.Status)
	}
	return nil
}

// ApplyDefaults re-targets every valid row to d. Empty defaults keep the
// row's current value; the expense status is always replaced.
func ApplyDefaults(rows []ParsedRow, d Defaults) {
	for i := range rows {
		r := &rows[i]
		if !r.OK {
			continue
		}
		if d.AccountID != "" {
			r.AccountID = d.AccountID
		}
		if cat := d.categoryFor(r.Kind); cat != "" {
			r.CategoryID = cat
		}
		r.Status = statusOrExecuted(d.ExpenseStatus)
	}
}

// Stats counts rows by outcome.
type Stats struct {
	Total    int
	Valid    int
	Invalid  int
	Included int
	Income   core.Money
	Expense  core.Money
}

func Summarize(rows []ParsedRow) Stats {
	var s Stats
	s.Total = len(rows)
	for _, r := range rows {
		if !r.OK {
			s.Invalid++
			continue
		}
		s.Valid++
		if !r.Include {
			continue
		}
		s.Included++
		if r.Kind == core.Income {
			s.Income = s.Income.Add(r.Amount)
		} else {
			s.Expense = s.Expense.Add(r.Amount)
		}
	}
	return s
}

// Selected returns the rows that would be committed.
func Selected(rows []ParsedRow) []ParsedRow {
	var out []ParsedRow
	for _, r := range rows {
		if r.OK && r.Include {
			out = append(out, r)
		}
	}
	return out
}
