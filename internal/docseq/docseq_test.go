package docseq

import (
	"context"
	"errors"
	"testing"
	"time"

	"livrocaixa/internal/core"
	"livrocaixa/internal/store/memory"
)

func TestPad3AndNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"007", 7},
		{"N-12", 12},
		{"", 0},
		{"abc", 0},
		{"1000", 1000},
	}
	for _, tt := range tests {
		if got := Number(tt.in); got != tt.want {
			t.Errorf("Number(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if Pad3(1) != "001" || Pad3(42) != "042" || Pad3(1234) != "1234" {
		t.Fatalf("Pad3 mismatch")
	}
}

func TestStoreAllocatorSequence(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acc, _ := s.CreateAccount(ctx, "Banco")
	cat, _ := s.CreateCategory(ctx, "Luz", core.Expense)
	a := NewStoreAllocator(s)
	jan := core.MonthKey{Year: 2024, Month: time.January}

	submit := func(day int, month core.MonthKey) string {
		t.Helper()
		doc, err := Next(ctx, a, month)
		if err != nil {
			t.Fatal(err)
		}
		_, err = s.InsertTransactions(ctx, []core.Transaction{{
			Date: core.NewDate(month.Year, int(month.Month), day), Kind: core.Expense,
			Description: "conta", Amount: core.Money{Cents: 100},
			AccountID: acc.ID, CategoryID: cat.ID, Status: core.Executed, DocNo: doc,
		}})
		if err != nil {
			t.Fatal(err)
		}
		return doc
	}

	if got := submit(3, jan); got != "001" {
		t.Fatalf("first = %s", got)
	}
	if got := submit(20, jan); got != "002" {
		t.Fatalf("second = %s", got)
	}
	if got := submit(1, jan.Add(1)); got != "001" {
		t.Fatalf("new month = %s", got)
	}
}

type brokenMax struct{}

func (brokenMax) MaxDocNo(context.Context, core.Date, core.Date) (string, error) {
	return "", errors.New("offline")
}

func TestStoreAllocatorError(t *testing.T) {
	_, err := NewStoreAllocator(brokenMax{}).Peek(context.Background(), core.MonthKey{Year: 2024, Month: time.May})
	var se *core.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key(core.MonthKey{Year: 2024, Month: time.March}); got != "docseq:2024-03" {
		t.Fatalf("key = %s", got)
	}
}
