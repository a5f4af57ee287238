// Package recurrence turns one submitted transaction into the rows it
// persists: a single row, or one expense per month for a recurring entry,
// each with its document number.
package recurrence

import (
	"context"
	"fmt"
	"strings"

	"livrocaixa/internal/core"
	"livrocaixa/internal/docseq"
	applog "livrocaixa/internal/log"
)

const (
	MinMonths = 2
	MaxMonths = 60
)

const (
	MsgMonthsRange     = "Recorrência: informe entre 2 e 60 meses."
	MsgDocNoRequired   = "Informe o Nº do documento."
	MsgDocNoInvalid    = "Nº do documento inválido."
	MsgIncomeRecurring = "Recorrência disponível apenas para saídas."
)

// Plan says how many months a submission spans.
type Plan struct {
	Recurring bool
	Months    int
}

// Total is the number of rows the plan produces.
func (p Plan) Total() int {
	if p.Recurring {
		return p.Months
	}
	return 1
}

func (p Plan) validate(kind core.Kind) error {
	if !p.Recurring {
		return nil
	}
	if kind != core.Expense {
		return &core.ValidationError{Field: "recurrence", Reason: MsgIncomeRecurring}
	}
	if p.Months < MinMonths || p.Months > MaxMonths {
		return &core.ValidationError{Field: "recurrence_months", Reason: MsgMonthsRange}
	}
	return nil
}

// ValidateDocNo checks a typed document number.
func ValidateDocNo(docNo string) error {
	if strings.TrimSpace(docNo) == "" {
		return &core.ValidationError{Field: "doc_no", Reason: MsgDocNoRequired}
	}
	if len(core.OnlyDigits(docNo)) > docseq.MaxDigits {
		return &core.ValidationError{Field: "doc_no", Reason: MsgDocNoInvalid}
	}
	return nil
}

// Expander builds the rows of a submission.
type Expander struct {
	seq    docseq.Allocator
	logger *applog.Logger
}

func NewExpander(seq docseq.Allocator, logger *applog.Logger) *Expander {
	if logger == nil {
		logger = applog.Default()
	}
	return &Expander{seq: seq, logger: logger.WithComponent(applog.ComponentRecurrence)}
}

// Expand returns the rows for tpl under plan. Income yields tpl alone with
// the expense fields cleared. For an expense, row 0 keeps the typed number
// (zero-padded, 1 when it has no digits, the month's next number when blank)
// and every later row gets the next
// free number of its own month. Numbers for later months are reserved once
// per distinct month, in order, then incremented locally.
func (e *Expander) Expand(ctx context.Context, tpl core.Transaction, plan Plan) ([]core.Transaction, error) {
	if err := plan.validate(tpl.Kind); err != nil {
		return nil, err
	}
	if tpl.Kind != core.Expense {
		tpl.Status, tpl.ExecutedAt, tpl.DocNo = "", nil, ""
		return []core.Transaction{tpl}, nil
	}
	if strings.TrimSpace(tpl.DocNo) == "" {
		doc, err := docseq.Next(ctx, e.seq, tpl.Date.MonthKey())
		if err != nil {
			return nil, err
		}
		tpl.DocNo = doc
	}
	if err := ValidateDocNo(tpl.DocNo); err != nil {
		return nil, err
	}

	total := plan.Total()
	rows := make([]core.Transaction, total)
	for i := range rows {
		row := tpl
		row.Date = tpl.Date.AddMonthsKeepDay(i)
		if total > 1 {
			row.Description = fmt.Sprintf("%s (recorrente %d/%d)", tpl.Description, i+1, total)
		}
		rows[i] = row
	}
	rows[0].Date = tpl.Date

	first := docseq.Number(tpl.DocNo)
	if first == 0 {
		first = 1
	}
	rows[0].DocNo = docseq.Pad3(first)
	month0 := tpl.Date.MonthKey()
	if err := e.seq.Observe(ctx, month0, first); err != nil {
		return nil, err
	}

	// Rows per month after row 0, in order of first appearance.
	var order []core.MonthKey
	need := map[core.MonthKey]int{}
	for _, row := range rows[1:] {
		k := row.Date.MonthKey()
		if need[k] == 0 {
			order = append(order, k)
		}
		need[k]++
	}

	next := map[core.MonthKey]int{month0: first + 1}
	for _, k := range order {
		n, err := e.seq.Reserve(ctx, k, need[k])
		if err != nil {
			return nil, err
		}
		if n < 1 {
			n = 1
		}
		if have, ok := next[k]; !ok || n > have {
			next[k] = n
		}
	}
	for i := 1; i < total; i++ {
		k := rows[i].Date.MonthKey()
		rows[i].DocNo = docseq.Pad3(next[k])
		next[k]++
	}

	if total > 1 {
		e.logger.Debug("Recurring expense expanded",
			"rows", total,
			applog.FieldMonth, month0.String(),
			applog.FieldDocNo, rows[0].DocNo)
	}
	return rows, nil
}
