package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"livrocaixa/internal/core"
	"livrocaixa/internal/store"
)

func openTemp(t *testing.T) *Repository {
	t.Helper()
	r, err := Open(context.Background(), Options{Dialect: SQLite, SQLitePath: filepath.Join(t.TempDir(), "ledger.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func seedRepo(t *testing.T, r *Repository) (core.Account, core.Category) {
	t.Helper()
	ctx := context.Background()
	acc, err := r.CreateAccount(ctx, " Banco ")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	cat, err := r.CreateCategory(ctx, "Contas", core.Expense)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return acc, cat
}

func expense(acc core.Account, cat core.Category, d core.Date, desc string) core.Transaction {
	at := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	return core.Transaction{
		Date: d, Kind: core.Expense, Description: desc, Amount: core.Money{Cents: 1250},
		CategoryID: cat.ID, AccountID: acc.ID, PaymentMethod: "PIX",
		Status: core.Executed, ExecutedAt: &at, DocNo: "001", CreatedBy: "u1",
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	if got := rebind(SQLite, q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	if got := rebind(Postgres, q); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Fatalf("postgres rebind: %s", got)
	}
}

func TestNormalizeDatabaseURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"postgresql://u:p@h/db", "postgres://u:p@h/db?sslmode=disable"},
		{"postgres://h/db?sslmode=require", "postgres://h/db?sslmode=require"},
		{"postgres://h/db?x=1", "postgres://h/db?x=1&sslmode=disable"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeDatabaseURL(tt.in); got != tt.want {
			t.Errorf("NormalizeDatabaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAccountsAndCategories(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	acc, _ := seedRepo(t, r)
	if _, err := r.CreateAccount(ctx, "Caixa"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetAccountActive(ctx, acc.ID, false); err != nil {
		t.Fatal(err)
	}

	all, err := r.ListAccounts(ctx, false)
	if err != nil || len(all) != 2 || all[0].Name != "Banco" || all[1].Name != "Caixa" {
		t.Fatalf("list accounts: %+v err=%v", all, err)
	}
	active, _ := r.ListAccounts(ctx, true)
	if len(active) != 1 || active[0].Name != "Caixa" {
		t.Fatalf("active accounts: %+v", active)
	}

	if _, err := r.CreateCategory(ctx, "Dízimos", core.Income); err != nil {
		t.Fatal(err)
	}
	cats, _ := r.ListCategories(ctx, false)
	if len(cats) != 2 || cats[0].Kind != core.Expense || cats[1].Kind != core.Income {
		t.Fatalf("categories not sorted by kind: %+v", cats)
	}

	if _, err := r.GetAccount(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.SetCategoryActive(ctx, "missing", true); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionsRoundTrip(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	acc, cat := seedRepo(t, r)

	literal := expense(acc, cat, core.NewDate(2024, 2, 31), "fevereiro")
	ids, err := r.InsertTransactions(ctx, []core.Transaction{
		expense(acc, cat, core.NewDate(2024, 2, 10), "b"),
		expense(acc, cat, core.NewDate(2024, 2, 1), "a"),
		literal,
		expense(acc, cat, core.NewDate(2024, 2, 10), "c"),
	})
	if err != nil || len(ids) != 4 {
		t.Fatalf("insert: ids=%v err=%v", ids, err)
	}

	got, err := r.ListTransactions(ctx, store.TxFilter{})
	if err != nil {
		t.Fatal(err)
	}
	order := ""
	for _, tx := range got {
		order += tx.Description + ","
	}
	if order != "a,b,c,fevereiro," {
		t.Fatalf("order = %s", order)
	}

	lit, err := r.GetTransaction(ctx, ids[2])
	if err != nil {
		t.Fatal(err)
	}
	if lit.Date.String() != "2024-02-31" {
		t.Fatalf("literal date lost: %s", lit.Date)
	}
	if lit.Amount.Cents != 1250 || lit.Status != core.Executed || lit.ExecutedAt == nil || lit.DocNo != "001" || lit.CreatedBy != "u1" {
		t.Fatalf("fields lost: %+v", lit)
	}

	pix, _ := r.ListTransactions(ctx, store.TxFilter{PaymentMethodLike: "pi"})
	if len(pix) != 4 {
		t.Fatalf("payment filter: %d", len(pix))
	}
	ranged, _ := r.ListTransactions(ctx, store.TxFilter{From: core.NewDate(2024, 2, 2), Before: core.NewDate(2024, 2, 10)})
	if len(ranged) != 0 {
		t.Fatalf("before is exclusive: %d", len(ranged))
	}
}

func TestInsertAllOrNothing(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	acc, cat := seedRepo(t, r)
	bad := expense(acc, cat, core.NewDate(2024, 1, 2), "bad")
	bad.CategoryID = "missing"
	_, err := r.InsertTransactions(ctx, []core.Transaction{expense(acc, cat, core.NewDate(2024, 1, 1), "ok"), bad})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	all, _ := r.ListTransactions(ctx, store.TxFilter{})
	if len(all) != 0 {
		t.Fatalf("partial insert: %d rows", len(all))
	}
}

func TestUpdateAndDelete(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	acc, cat := seedRepo(t, r)
	ids, err := r.InsertTransactions(ctx, []core.Transaction{expense(acc, cat, core.NewDate(2024, 3, 1), "x")})
	if err != nil {
		t.Fatal(err)
	}
	tx, _ := r.GetTransaction(ctx, ids[0])
	tx.Status, tx.ExecutedAt = core.Scheduled, nil
	tx.Description = "y"
	tx.CreatedBy = "someone else"
	if err := r.UpdateTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	updated, _ := r.GetTransaction(ctx, ids[0])
	if updated.Status != core.Scheduled || updated.ExecutedAt != nil || updated.Description != "y" || updated.CreatedBy != "u1" {
		t.Fatalf("update: %+v", updated)
	}

	if err := r.DeleteAccount(ctx, acc.ID); !errors.Is(err, core.ErrReferenced) {
		t.Fatalf("expected ErrReferenced for account, got %v", err)
	}
	if err := r.DeleteCategory(ctx, cat.ID); !errors.Is(err, core.ErrReferenced) {
		t.Fatalf("expected ErrReferenced for category, got %v", err)
	}

	if _, err := r.InsertAttachment(ctx, core.Attachment{TransactionID: ids[0], OriginalName: "nf.pdf", StoragePath: "u1/x/1-nf.pdf", SizeBytes: 10}); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteTransaction(ctx, ids[0]); !errors.Is(err, core.ErrReferenced) {
		t.Fatalf("expected ErrReferenced for transaction, got %v", err)
	}
	if err := r.DeleteTransaction(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachments(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	acc, cat := seedRepo(t, r)
	ids, _ := r.InsertTransactions(ctx, []core.Transaction{expense(acc, cat, core.NewDate(2024, 3, 1), "x")})

	if _, err := r.InsertAttachment(ctx, core.Attachment{TransactionID: "missing", OriginalName: "a"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	id, err := r.InsertAttachment(ctx, core.Attachment{TransactionID: ids[0], ExternalURL: "https://x/y", OriginalName: "link", CreatedBy: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	a, err := r.GetAttachment(ctx, id)
	if err != nil || a.ExternalURL != "https://x/y" || a.StoragePath != "" || a.CreatedBy != "u1" {
		t.Fatalf("get attachment: %+v err=%v", a, err)
	}
	list, _ := r.ListAttachments(ctx, ids[0])
	if len(list) != 1 {
		t.Fatalf("list attachments: %d", len(list))
	}
}

func TestMaxDocNo(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	acc, cat := seedRepo(t, r)
	mk := func(day int, doc string) core.Transaction {
		tx := expense(acc, cat, core.NewDate(2024, 4, day), "d")
		tx.DocNo = doc
		return tx
	}
	if _, err := r.InsertTransactions(ctx, []core.Transaction{mk(1, "009"), mk(2, "0010"), mk(3, "")}); err != nil {
		t.Fatal(err)
	}
	from, before := core.MonthKey{Year: 2024, Month: 4}.Range()
	got, err := r.MaxDocNo(ctx, from, before)
	if err != nil || got != "0010" {
		t.Fatalf("MaxDocNo = %q err=%v", got, err)
	}
	from, before = core.MonthKey{Year: 2024, Month: 5}.Range()
	if got, _ := r.MaxDocNo(ctx, from, before); got != "" {
		t.Fatalf("empty month = %q", got)
	}
}

func TestLegacyNullStatusReadsAsExecuted(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	acc, cat := seedRepo(t, r)
	inc, err := r.CreateCategory(ctx, "Ofertas", core.Income)
	if err != nil {
		t.Fatal(err)
	}
	insert := `INSERT INTO transactions (id, date, kind, description, amount_cents, category_id, account_id, created_at, expense_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`
	at := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	if _, err := r.db.ExecContext(ctx, insert, "legacy-exp", "2024-01-10", "expense", "Luz", 5000, cat.ID, acc.ID, at); err != nil {
		t.Fatalf("insert expense: %v", err)
	}
	if _, err := r.db.ExecContext(ctx, insert, "legacy-inc", "2024-01-11", "income", "Oferta", 9000, inc.ID, acc.ID, at); err != nil {
		t.Fatalf("insert income: %v", err)
	}

	txs, err := r.ListTransactions(ctx, store.TxFilter{})
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]core.ExpenseStatus{}
	for _, tx := range txs {
		got[tx.ID] = tx.Status
	}
	if got["legacy-exp"] != core.Executed {
		t.Errorf("expense status = %q, want %q", got["legacy-exp"], core.Executed)
	}
	if got["legacy-inc"] != "" {
		t.Errorf("income status = %q, want empty", got["legacy-inc"])
	}
}
