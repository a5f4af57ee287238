package core

import (
	"strings"
	"time"
	"unicode"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	Scheduled ExpenseStatus = "scheduled"
	Executed  ExpenseStatus = "executed"
)

// ImportedPaymentMethod is stamped on rows created from a CSV file.
const ImportedPaymentMethod = "Importado CSV"

type (
	Kind string

	// ExpenseStatus is the settlement state of an expense. Income is always
	// treated as Executed.
	ExpenseStatus string

	Account struct {
		ID     string
		Name   string
		Active bool
	}

	Category struct {
		ID     string
		Name   string
		Kind   Kind
		Active bool
	}

	Transaction struct {
		ID            string
		Date          Date
		Kind          Kind
		Description   string
		Amount        Money
		PaymentMethod string
		CategoryID    string
		AccountID     string
		CreatedBy     string
		CreatedAt     time.Time

		// Expense only; zero values for income.
		Status     ExpenseStatus
		ExecutedAt *time.Time
		DocNo      string
	}

	Attachment struct {
		ID            string
		TransactionID string
		StoragePath   string
		ExternalURL   string
		OriginalName  string
		MimeType      string
		SizeBytes     int64
		CreatedBy     string
		CreatedAt     time.Time
	}
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Label is the Portuguese display name used in exports.
func (k Kind) Label() string {
	if k == Income {
		return "Entrada"
	}
	return "Saída"
}

// NormalizeStatus maps the stored status to its effective value: anything
// but "scheduled" is Executed.
func NormalizeStatus(raw string) ExpenseStatus {
	if strings.EqualFold(strings.TrimSpace(raw), string(Scheduled)) {
		return Scheduled
	}
	return Executed
}

func (s ExpenseStatus) Label() string {
	if s == Scheduled {
		return "Programada"
	}
	return "Executada"
}

// EffectiveStatus is Executed for income and for expenses without a status.
func (t Transaction) EffectiveStatus() ExpenseStatus {
	if t.Kind != Expense || t.Status == "" {
		return Executed
	}
	return t.Status
}

// Counts reports whether t moves the balance.
func (t Transaction) Counts() bool {
	return t.Kind == Income || t.EffectiveStatus() == Executed
}

// Contribution is the signed balance effect of t: +amount for income,
// -amount for an executed expense, zero for a scheduled one.
func (t Transaction) Contribution() Money {
	switch {
	case t.Kind == Income:
		return t.Amount
	case t.EffectiveStatus() == Executed:
		return t.Amount.Neg()
	}
	return Money{}
}

// Normalize enforces the income/expense field rules in place: income drops
// the expense fields; an expense gets an explicit status and executed_at set
// iff Executed.
func (t *Transaction) Normalize(now time.Time) {
	t.Description = strings.TrimSpace(t.Description)
	t.PaymentMethod = strings.TrimSpace(t.PaymentMethod)
	if t.Kind == Income {
		t.Status = ""
		t.ExecutedAt = nil
		t.DocNo = ""
		return
	}
	t.Status = t.EffectiveStatus()
	if t.Status == Executed {
		if t.ExecutedAt == nil {
			at := now
			t.ExecutedAt = &at
		}
	} else {
		t.ExecutedAt = nil
	}
}

// Validate checks the fields every stored transaction must carry.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if !t.Kind.Valid() {
		return Invalid("kind", ErrUnrecognizedKind)
	}
	if strings.TrimSpace(t.Description) == "" {
		return Invalid("description", ErrEmptyDescription)
	}
	if err := t.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if t.CategoryID == "" {
		return &ValidationError{Field: "category_id", Reason: "categoria obrigatória"}
	}
	if t.AccountID == "" {
		return &ValidationError{Field: "account_id", Reason: "conta obrigatória"}
	}
	return nil
}

// OnlyDigits strips everything but ASCII digits.
func OnlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
