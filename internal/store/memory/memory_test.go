package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"livrocaixa/internal/core"
	"livrocaixa/internal/store"
)

func seed(t *testing.T) (*Store, core.Account, core.Category) {
	t.Helper()
	s := New()
	ctx := context.Background()
	acc, _ := s.CreateAccount(ctx, "Banco")
	cat, _ := s.CreateCategory(ctx, "Contas", core.Expense)
	return s, acc, cat
}

func TestInsertAndListOrdered(t *testing.T) {
	s, acc, cat := seed(t)
	ctx := context.Background()
	mk := func(day int, desc, pm string) core.Transaction {
		return core.Transaction{
			Date: core.NewDate(2024, 1, day), Kind: core.Expense, Description: desc,
			Amount: core.Money{Cents: 100}, CategoryID: cat.ID, AccountID: acc.ID,
			PaymentMethod: pm, Status: core.Executed,
		}
	}
	ids, err := s.InsertTransactions(ctx, []core.Transaction{mk(10, "b", "PIX"), mk(2, "a", "Boleto"), mk(10, "c", "pix cel")})
	if err != nil || len(ids) != 3 {
		t.Fatalf("insert: ids=%v err=%v", ids, err)
	}

	got, _ := s.ListTransactions(ctx, store.TxFilter{})
	if got[0].Description != "a" || got[1].Description != "b" || got[2].Description != "c" {
		t.Fatalf("unexpected order: %v %v %v", got[0].Description, got[1].Description, got[2].Description)
	}

	pix, _ := s.ListTransactions(ctx, store.TxFilter{PaymentMethodLike: "PIX"})
	if len(pix) != 2 {
		t.Fatalf("payment filter: got %d", len(pix))
	}

	ranged, _ := s.ListTransactions(ctx, store.TxFilter{From: core.NewDate(2024, 1, 3), Before: core.NewDate(2024, 1, 10)})
	if len(ranged) != 0 {
		t.Fatalf("before is exclusive: got %d", len(ranged))
	}
}

func TestInsertIsAllOrNothing(t *testing.T) {
	s, acc, cat := seed(t)
	ctx := context.Background()
	good := core.Transaction{Date: core.NewDate(2024, 1, 1), Kind: core.Income, Description: "x",
		Amount: core.Money{Cents: 1}, CategoryID: cat.ID, AccountID: acc.ID}
	bad := good
	bad.AccountID = "missing"
	if _, err := s.InsertTransactions(ctx, []core.Transaction{good, bad}); err == nil {
		t.Fatal("expected error")
	}
	all, _ := s.ListTransactions(ctx, store.TxFilter{})
	if len(all) != 0 {
		t.Fatalf("partial insert: %d rows", len(all))
	}
}

func TestDeleteReferenced(t *testing.T) {
	s, acc, cat := seed(t)
	ctx := context.Background()
	_, err := s.InsertTransactions(ctx, []core.Transaction{{Date: core.NewDate(2024, 1, 1), Kind: core.Expense,
		Description: "x", Amount: core.Money{Cents: 1}, CategoryID: cat.ID, AccountID: acc.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteAccount(ctx, acc.ID); !errors.Is(err, core.ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
	if err := s.DeleteCategory(ctx, cat.ID); !errors.Is(err, core.ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
	other, _ := s.CreateAccount(ctx, "Livre")
	if err := s.DeleteAccount(ctx, other.ID); err != nil {
		t.Fatalf("unreferenced delete: %v", err)
	}
}

func TestMaxDocNo(t *testing.T) {
	s, acc, cat := seed(t)
	ctx := context.Background()
	mk := func(month, day int, doc string) core.Transaction {
		return core.Transaction{Date: core.NewDate(2024, month, day), Kind: core.Expense, Description: "d",
			Amount: core.Money{Cents: 1}, CategoryID: cat.ID, AccountID: acc.ID, DocNo: doc}
	}
	if _, err := s.InsertTransactions(ctx, []core.Transaction{mk(1, 3, "002"), mk(1, 9, "010"), mk(1, 20, "009"), mk(2, 1, "050")}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.MaxDocNo(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1))
	if got != "010" {
		t.Fatalf("MaxDocNo = %q", got)
	}
	none, _ := s.MaxDocNo(ctx, core.NewDate(2024, 3, 1), core.NewDate(2024, 4, 1))
	if none != "" {
		t.Fatalf("empty month MaxDocNo = %q", none)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	accs, _ := s.ListAccounts(context.Background(), true)
	if len(accs) == 0 {
		t.Fatalf("expected defaults when files missing")
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_accounts.txt", "# header\nCaixa\nBanco\nCaixa\n\n")
	mustWrite("seed_categories.txt", "income:Dízimos\nexpense:Luz\nbogus:X\n")

	s = NewFromFiles(dir)
	accs, _ = s.ListAccounts(context.Background(), false)
	if len(accs) != 2 || accs[0].Name != "Banco" || accs[1].Name != "Caixa" {
		t.Fatalf("unexpected accounts: %v", accs)
	}
	cats, _ := s.ListCategories(context.Background(), false)
	if len(cats) != 2 || cats[0].Kind != core.Expense {
		t.Fatalf("unexpected categories: %v", cats)
	}
}
