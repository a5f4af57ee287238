package core

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]ExpenseStatus{
		"":          Executed,
		"executed":  Executed,
		"scheduled": Scheduled,
		"Scheduled": Scheduled,
		"garbage":   Executed,
	}
	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestContribution(t *testing.T) {
	cases := []struct {
		name string
		tx   Transaction
		want int64
	}{
		{"income", Transaction{Kind: Income, Amount: Money{Cents: 100}}, 100},
		{"income ignores status", Transaction{Kind: Income, Status: Scheduled, Amount: Money{Cents: 100}}, 100},
		{"executed expense", Transaction{Kind: Expense, Status: Executed, Amount: Money{Cents: 40}}, -40},
		{"expense without status", Transaction{Kind: Expense, Amount: Money{Cents: 40}}, -40},
		{"scheduled expense", Transaction{Kind: Expense, Status: Scheduled, Amount: Money{Cents: 40}}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tx.Contribution().Cents; got != tc.want {
				t.Fatalf("Contribution() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestTransactionNormalize(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	inc := Transaction{Kind: Income, Status: Scheduled, ExecutedAt: &now, DocNo: "001", Description: "  oferta "}
	inc.Normalize(now)
	if inc.Status != "" || inc.ExecutedAt != nil || inc.DocNo != "" || inc.Description != "oferta" {
		t.Fatalf("income not normalized: %+v", inc)
	}

	exp := Transaction{Kind: Expense}
	exp.Normalize(now)
	if exp.Status != Executed || exp.ExecutedAt == nil || !exp.ExecutedAt.Equal(now) {
		t.Fatalf("expense without status should become executed now: %+v", exp)
	}

	sched := Transaction{Kind: Expense, Status: Scheduled, ExecutedAt: &now}
	sched.Normalize(now)
	if sched.ExecutedAt != nil {
		t.Fatalf("scheduled expense must not carry executed_at")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:        NewDate(2025, 1, 1),
		Kind:        Expense,
		Description: "ok",
		Amount:      Money{Cents: 100},
		CategoryID:  "c",
		AccountID:   "a",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		mut  func(*Transaction)
		want error
	}{
		{func(t *Transaction) { t.Date = Date{} }, ErrInvalidDate},
		{func(t *Transaction) { t.Kind = "" }, ErrUnrecognizedKind},
		{func(t *Transaction) { t.Description = "  " }, ErrEmptyDescription},
		{func(t *Transaction) { t.Amount = Money{} }, ErrNonPositiveAmount},
	}
	for i, b := range bads {
		tx := good
		b.mut(&tx)
		err := tx.Validate()
		var ve *ValidationError
		if !errors.As(err, &ve) || !errors.Is(err, b.want) {
			t.Fatalf("case %d expected %v, got %v", i, b.want, err)
		}
	}

	noAcc := good
	noAcc.AccountID = ""
	if err := noAcc.Validate(); err == nil {
		t.Fatal("expected error for missing account")
	}
}

func TestEffectApply(t *testing.T) {
	var e Effect
	e.Apply(Transaction{Kind: Income, AccountID: "a", Amount: Money{Cents: 100}, Date: NewDate(2024, 1, 5)}, 1)
	e.Apply(Transaction{Kind: Expense, Status: Executed, AccountID: "a", Amount: Money{Cents: 30}, Date: NewDate(2024, 1, 9)}, 1)
	e.Apply(Transaction{Kind: Expense, Status: Scheduled, AccountID: "b", Amount: Money{Cents: 30}, Date: NewDate(2024, 2, 9)}, 1)

	if got := e.BalanceDelta["a"].Cents; got != 70 {
		t.Fatalf("delta a = %d", got)
	}
	if _, ok := e.BalanceDelta["b"]; ok {
		t.Fatal("scheduled expense must not move balance")
	}
	if len(e.Months) != 2 {
		t.Fatalf("months = %v", e.Months)
	}
}

func TestReferentialConflictIs(t *testing.T) {
	err := &ReferentialConflictError{Entity: "conta", ID: "x", Err: errors.New("fk")}
	if !errors.Is(err, ErrReferenced) {
		t.Fatal("expected ErrReferenced")
	}
}

func TestOnlyDigits(t *testing.T) {
	if got := OnlyDigits("Nº 0a12-3"); got != "0123" {
		t.Fatalf("OnlyDigits = %q", got)
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"recibo (1).pdf":        "recibo (1).pdf",
		"nota/fiscal:março.png": "nota_fiscal_mar_o.png",
		"cat-Dízimos":           "cat-D_zimos",
	}
	for in, want := range tests {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}
