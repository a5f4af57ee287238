package csvimport

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"livrocaixa/internal/core"
	applog "livrocaixa/internal/log"
	"livrocaixa/internal/store"
)

// DefaultBatchSize is the number of rows written per store call.
const DefaultBatchSize = 200

// Committer writes selected rows to the transaction store in fixed-size
// batches. Batches are independent: a failure stops the remaining ones and
// leaves earlier batches in place.
type Committer struct {
	Transactions store.TransactionStore
	Accounts     store.AccountStore
	Categories   store.CategoryStore
	BatchSize    int
	Now          func() time.Time
	Logger       *applog.Logger
}

// Result reports what was persisted, including on partial failure.
type Result struct {
	IDs     []string
	Batches int
	Effect  core.Effect
}

// Commit persists every row with OK and Include set. Rows without account or
// category, with an inactive target, or whose category kind differs from the
// row kind, abort the commit before anything is written.
func (c *Committer) Commit(ctx context.Context, rows []ParsedRow, createdBy string) (Result, error) {
	selected := Selected(rows)
	if len(selected) == 0 {
		return Result{}, &core.ValidationError{Reason: "Nenhuma linha válida marcada para importar."}
	}
	for _, r := range selected {
		if r.AccountID == "" || r.CategoryID == "" {
			return Result{}, &core.ValidationError{
				Field:  fmt.Sprintf("linha %d", r.Line),
				Reason: "Tem linha marcada sem Conta/Categoria. Complete antes de importar.",
			}
		}
	}
	if err := c.checkTargets(ctx, selected); err != nil {
		return Result{}, err
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	stamp := now()
	txs := make([]core.Transaction, len(selected))
	for i, r := range selected {
		txs[i] = toTransaction(r, createdBy, stamp)
	}

	size := c.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := chunk(txs, size)
	logger := c.logger()

	var res Result
	res.Batches = len(batches)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return res, &core.StoreError{Op: "importar", BatchIndex: i, BatchTotal: len(batches), Committed: len(res.IDs), Err: err}
		}
		ids, err := c.Transactions.InsertTransactions(ctx, batch)
		if err != nil {
			logger.ErrorContext(ctx, "Import batch failed",
				applog.NewFields().WithOperation(applog.OpImport).WithBatch(i, len(batches), len(batch)).WithError(err).ToSlice()...)
			return res, &core.StoreError{Op: "importar", BatchIndex: i, BatchTotal: len(batches), Committed: len(res.IDs), Err: err}
		}
		res.IDs = append(res.IDs, ids...)
		for j, t := range batch {
			t.ID = ids[j]
			res.Effect.Apply(t, 1)
		}
		res.Effect.Created = append(res.Effect.Created, ids...)
		logger.InfoContext(ctx, "Import batch committed",
			applog.NewFields().WithOperation(applog.OpImport).WithBatch(i, len(batches), len(batch)).ToSlice()...)
	}
	return res, nil
}

// checkTargets loads accounts and categories concurrently and rejects rows
// pointing at unknown or inactive records, or at a category of the other kind.
func (c *Committer) checkTargets(ctx context.Context, rows []ParsedRow) error {
	var (
		accounts   map[string]bool
		categories map[string]core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	if c.Accounts != nil {
		g.Go(func() error {
			list, err := c.Accounts.ListAccounts(gctx, false)
			if err != nil {
				return &core.StoreError{Op: "listar contas", Err: err}
			}
			accounts = make(map[string]bool, len(list))
			for _, a := range list {
				accounts[a.ID] = a.Active
			}
			return nil
		})
	}
	if c.Categories != nil {
		g.Go(func() error {
			list, err := c.Categories.ListCategories(gctx, false)
			if err != nil {
				return &core.StoreError{Op: "listar categorias", Err: err}
			}
			categories = make(map[string]core.Category, len(list))
			for _, cat := range list {
				categories[cat.ID] = cat
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range rows {
		field := fmt.Sprintf("linha %d", r.Line)
		if accounts != nil {
			active, ok := accounts[r.AccountID]
			if !ok {
				return &core.ValidationError{Field: field, Reason: "conta não encontrada", Err: core.ErrNotFound}
			}
			if !active {
				return &core.ValidationError{Field: field, Reason: "conta inativa", Err: core.ErrInactive}
			}
		}
		if categories != nil {
			cat, ok := categories[r.CategoryID]
			if !ok {
				return &core.ValidationError{Field: field, Reason: "categoria não encontrada", Err: core.ErrNotFound}
			}
			if cat.Kind != r.Kind {
				return &core.ValidationError{Field: field, Reason: core.ErrCategoryKindMismatch.Error(), Err: core.ErrCategoryKindMismatch}
			}
			if !cat.Active {
				return &core.ValidationError{Field: field, Reason: "categoria inativa", Err: core.ErrInactive}
			}
		}
	}
	return nil
}

func (c *Committer) logger() *applog.Logger {
	if c.Logger != nil {
		return c.Logger.WithComponent(applog.ComponentImport)
	}
	return applog.Default().WithComponent(applog.ComponentImport)
}

func toTransaction(r ParsedRow, createdBy string, now time.Time) core.Transaction {
	t := core.Transaction{
		Date:          r.Date,
		Kind:          r.Kind,
		Description:   r.Description,
		Amount:        r.Amount,
		PaymentMethod: core.ImportedPaymentMethod,
		CategoryID:    r.CategoryID,
		AccountID:     r.AccountID,
		CreatedBy:     createdBy,
		Status:        r.Status,
	}
	t.Normalize(now)
	return t
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
