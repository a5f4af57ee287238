package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"livrocaixa/internal/core"
	"livrocaixa/internal/store"
)

// Repository implements store.Store over database/sql.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ store.Store = (*Repository)(nil)

// Open connects, runs the migrations and returns a ready repository.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	if err := RunMigrations(opts); err != nil {
		return nil, err
	}
	db, err := openDB(opts)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.InfoContext(ctx, "Record store ready", "component", "storage", "dialect", string(opts.Dialect))
	return &Repository{db: db, dialect: opts.Dialect, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) q(query string) string { return rebind(r.dialect, query) }

func notFound(entity, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", entity, id, err)
}

func requireOne(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, core.ErrNotFound)
	}
	return nil
}

// deleteUnreferenced removes one row unless any of the guard queries finds a
// row pointing at it. Both steps run in one transaction.
func (r *Repository) deleteUnreferenced(ctx context.Context, entity, table, id string, guards ...string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, guard := range guards {
		var n int
		if err := tx.QueryRowContext(ctx, r.q(guard), id).Scan(&n); err != nil {
			return fmt.Errorf("check %s references: %w", entity, err)
		}
		if n > 0 {
			return fmt.Errorf("%s %s: %w", entity, id, core.ErrReferenced)
		}
	}
	res, err := tx.ExecContext(ctx, r.q("DELETE FROM "+table+" WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	if err := requireOne(res, entity, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) ListAccounts(ctx context.Context, onlyActive bool) ([]core.Account, error) {
	query := "SELECT id, name, active FROM accounts"
	if onlyActive {
		query += " WHERE active = TRUE"
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Active); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx, r.q("SELECT id, name, active FROM accounts WHERE id = ?"), id).
		Scan(&a.ID, &a.Name, &a.Active)
	if err != nil {
		return core.Account{}, notFound("account", id, err)
	}
	return a, nil
}

func (r *Repository) CreateAccount(ctx context.Context, name string) (core.Account, error) {
	a := core.Account{ID: uuid.NewString(), Name: strings.TrimSpace(name), Active: true}
	_, err := r.db.ExecContext(ctx, r.q("INSERT INTO accounts (id, name, active, created_at) VALUES (?, ?, ?, ?)"),
		a.ID, a.Name, true, r.now().UTC())
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (r *Repository) SetAccountActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, r.q("UPDATE accounts SET active = ? WHERE id = ?"), active, id)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireOne(res, "account", id)
}

func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	return r.deleteUnreferenced(ctx, "account", "accounts", id,
		"SELECT COUNT(*) FROM transactions WHERE account_id = ?")
}

func (r *Repository) ListCategories(ctx context.Context, onlyActive bool) ([]core.Category, error) {
	query := "SELECT id, name, kind, active FROM categories"
	if onlyActive {
		query += " WHERE active = TRUE"
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY kind, name")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		var c core.Category
		var kind string
		if err := rows.Scan(&c.ID, &c.Name, &kind, &c.Active); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.Kind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var c core.Category
	var kind string
	err := r.db.QueryRowContext(ctx, r.q("SELECT id, name, kind, active FROM categories WHERE id = ?"), id).
		Scan(&c.ID, &c.Name, &kind, &c.Active)
	if err != nil {
		return core.Category{}, notFound("category", id, err)
	}
	c.Kind = core.Kind(kind)
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, name string, kind core.Kind) (core.Category, error) {
	c := core.Category{ID: uuid.NewString(), Name: strings.TrimSpace(name), Kind: kind, Active: true}
	_, err := r.db.ExecContext(ctx, r.q("INSERT INTO categories (id, name, kind, active, created_at) VALUES (?, ?, ?, ?, ?)"),
		c.ID, c.Name, string(kind), true, r.now().UTC())
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *Repository) SetCategoryActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, r.q("UPDATE categories SET active = ? WHERE id = ?"), active, id)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireOne(res, "category", id)
}

func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	return r.deleteUnreferenced(ctx, "category", "categories", id,
		"SELECT COUNT(*) FROM transactions WHERE category_id = ?")
}

func (r *Repository) ListTransactions(ctx context.Context, f store.TxFilter) ([]core.Transaction, error) {
	var where []string
	var args []any
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.Before.IsZero() {
		where = append(where, "date < ?")
		args = append(args, f.Before.String())
	}
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if like := strings.ToLower(strings.TrimSpace(f.PaymentMethodLike)); like != "" {
		where = append(where, "LOWER(COALESCE(payment_method, '')) LIKE ?")
		args = append(args, "%"+like+"%")
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, created_at"

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		var row transactionRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var row transactionRow
	err := r.db.QueryRowContext(ctx, r.q("SELECT "+transactionColumns+" FROM transactions WHERE id = ?"), id).
		Scan(row.dest()...)
	if err != nil {
		return core.Transaction{}, notFound("transaction", id, err)
	}
	return row.toCore()
}

func (r *Repository) InsertTransactions(ctx context.Context, txs []core.Transaction) ([]string, error) {
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	checked := map[string]bool{}
	exists := func(table, id string) (bool, error) {
		key := table + ":" + id
		if ok, seen := checked[key]; seen {
			return ok, nil
		}
		var n int
		if err := tx.QueryRowContext(ctx, r.q("SELECT COUNT(*) FROM "+table+" WHERE id = ?"), id).Scan(&n); err != nil {
			return false, err
		}
		checked[key] = n > 0
		return n > 0, nil
	}

	insert := r.q("INSERT INTO transactions (" + transactionColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	now := r.now()
	ids := make([]string, len(txs))
	for i, t := range txs {
		ok, err := exists("accounts", t.AccountID)
		if err != nil {
			return nil, fmt.Errorf("row %d check account: %w", i, err)
		}
		if !ok {
			return nil, fmt.Errorf("row %d account %s: %w", i, t.AccountID, core.ErrNotFound)
		}
		if ok, err = exists("categories", t.CategoryID); err != nil {
			return nil, fmt.Errorf("row %d check category: %w", i, err)
		}
		if !ok {
			return nil, fmt.Errorf("row %d category %s: %w", i, t.CategoryID, core.ErrNotFound)
		}

		t.ID = uuid.NewString()
		if t.CreatedAt.IsZero() {
			// PostgreSQL keeps microseconds, so the batch order needs
			// microsecond steps to survive a round trip.
			t.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		if _, err := tx.ExecContext(ctx, insert, transactionArgs(t)...); err != nil {
			return nil, fmt.Errorf("insert row %d: %w", i, err)
		}
		ids[i] = t.ID
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	slog.DebugContext(ctx, "Inserted transactions", "component", "storage", "count", len(ids))
	return ids, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE transactions SET
		date = ?, kind = ?, description = ?, amount_cents = ?, payment_method = ?,
		category_id = ?, account_id = ?, expense_status = ?, executed_at = ?, expense_doc_no = ?
		WHERE id = ?`),
		t.Date.String(), string(t.Kind), t.Description, t.Amount.Cents, nullString(t.PaymentMethod),
		t.CategoryID, t.AccountID, nullString(string(t.Status)), nullTime(t.ExecutedAt), nullString(t.DocNo),
		t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireOne(res, "transaction", t.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	return r.deleteUnreferenced(ctx, "transaction", "transactions", id,
		"SELECT COUNT(*) FROM attachments WHERE transaction_id = ?")
}

func (r *Repository) MaxDocNo(ctx context.Context, from, before core.Date) (string, error) {
	var doc sql.NullString
	err := r.db.QueryRowContext(ctx, r.q(`SELECT expense_doc_no FROM transactions
		WHERE kind = 'expense' AND expense_doc_no IS NOT NULL AND expense_doc_no <> ''
		AND date >= ? AND date < ?
		ORDER BY LENGTH(expense_doc_no) DESC, expense_doc_no DESC LIMIT 1`),
		from.String(), before.String()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("max doc no: %w", err)
	}
	return doc.String, nil
}

const attachmentColumns = `id, transaction_id, storage_path, external_url, original_name, mime_type, size_bytes, created_by, created_at`

func (r *Repository) InsertAttachment(ctx context.Context, a core.Attachment) (string, error) {
	a.ID = uuid.NewString()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	var n int
	if err := r.db.QueryRowContext(ctx, r.q("SELECT COUNT(*) FROM transactions WHERE id = ?"), a.TransactionID).Scan(&n); err != nil {
		return "", fmt.Errorf("check transaction: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("transaction %s: %w", a.TransactionID, core.ErrNotFound)
	}
	_, err := r.db.ExecContext(ctx, r.q("INSERT INTO attachments ("+attachmentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		a.ID, a.TransactionID, nullString(a.StoragePath), nullString(a.ExternalURL), a.OriginalName,
		nullString(a.MimeType), a.SizeBytes, nullString(a.CreatedBy), a.CreatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("insert attachment: %w", err)
	}
	return a.ID, nil
}

type attachmentRow struct {
	ID            string
	TransactionID string
	StoragePath   sql.NullString
	ExternalURL   sql.NullString
	Name          string
	Mime          sql.NullString
	Size          int64
	CreatedBy     sql.NullString
	CreatedAt     dbTime
}

func (r *attachmentRow) dest() []any {
	return []any{&r.ID, &r.TransactionID, &r.StoragePath, &r.ExternalURL, &r.Name, &r.Mime, &r.Size, &r.CreatedBy, &r.CreatedAt}
}

func (r attachmentRow) toCore() core.Attachment {
	return core.Attachment{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		StoragePath:   r.StoragePath.String,
		ExternalURL:   r.ExternalURL.String,
		OriginalName:  r.Name,
		MimeType:      r.Mime.String,
		SizeBytes:     r.Size,
		CreatedBy:     r.CreatedBy.String,
		CreatedAt:     r.CreatedAt.Time,
	}
}

func (r *Repository) ListAttachments(ctx context.Context, transactionID string) ([]core.Attachment, error) {
	rows, err := r.db.QueryContext(ctx,
		r.q("SELECT "+attachmentColumns+" FROM attachments WHERE transaction_id = ? ORDER BY created_at"), transactionID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	var out []core.Attachment
	for rows.Next() {
		var row attachmentRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, row.toCore())
	}
	return out, rows.Err()
}

func (r *Repository) GetAttachment(ctx context.Context, id string) (core.Attachment, error) {
	var row attachmentRow
	err := r.db.QueryRowContext(ctx, r.q("SELECT "+attachmentColumns+" FROM attachments WHERE id = ?"), id).
		Scan(row.dest()...)
	if err != nil {
		return core.Attachment{}, notFound("attachment", id, err)
	}
	return row.toCore(), nil
}
