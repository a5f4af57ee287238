package storage

import (
	"database/sql"
	"fmt"
	"time"

	"livrocaixa/internal/core"
)

// dbTime scans timestamps from either driver: pgx yields time.Time and
// SQLite may yield text.
type dbTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v, true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed, true
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// transactionRow mirrors the transactions table.
type transactionRow struct {
	ID            string
	Date          string
	Kind          string
	Description   string
	AmountCents   int64
	PaymentMethod sql.NullString
	CategoryID    string
	AccountID     string
	CreatedBy     sql.NullString
	CreatedAt     dbTime
	Status        sql.NullString
	ExecutedAt    dbTime
	DocNo         sql.NullString
}

const transactionColumns = `id, date, kind, description, amount_cents, payment_method, category_id, account_id,
	created_by, created_at, expense_status, executed_at, expense_doc_no`

func (r *transactionRow) dest() []any {
	return []any{&r.ID, &r.Date, &r.Kind, &r.Description, &r.AmountCents, &r.PaymentMethod,
		&r.CategoryID, &r.AccountID, &r.CreatedBy, &r.CreatedAt, &r.Status, &r.ExecutedAt, &r.DocNo}
}

func (r transactionRow) toCore() (core.Transaction, error) {
	d, err := core.ParseISODate(r.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date %q: %w", r.ID, r.Date, err)
	}
	var status core.ExpenseStatus
	if core.Kind(r.Kind) == core.Expense {
		status = core.NormalizeStatus(r.Status.String)
	}
	return core.Transaction{
		ID:            r.ID,
		Date:          d,
		Kind:          core.Kind(r.Kind),
		Description:   r.Description,
		Amount:        core.Money{Cents: r.AmountCents},
		PaymentMethod: r.PaymentMethod.String,
		CategoryID:    r.CategoryID,
		AccountID:     r.AccountID,
		CreatedBy:     r.CreatedBy.String,
		CreatedAt:     r.CreatedAt.Time,
		Status:        status,
		ExecutedAt:    r.ExecutedAt.ptr(),
		DocNo:         r.DocNo.String,
	}, nil
}

// transactionArgs are the insert values in transactionColumns order.
func transactionArgs(t core.Transaction) []any {
	return []any{
		t.ID, t.Date.String(), string(t.Kind), t.Description, t.Amount.Cents, nullString(t.PaymentMethod),
		t.CategoryID, t.AccountID, nullString(t.CreatedBy), t.CreatedAt.UTC(),
		nullString(string(t.Status)), nullTime(t.ExecutedAt), nullString(t.DocNo),
	}
}
