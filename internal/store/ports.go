// Package store defines the record-store ports the ledger engine consumes.
package store

import (
	"context"

	"livrocaixa/internal/core"
)

// TxFilter narrows a transaction listing. Zero fields do not filter.
type TxFilter struct {
	From       core.Date // date >= From
	Before     core.Date // date < Before
	AccountID  string
	CategoryID string
	Kind       core.Kind
	// PaymentMethodLike is a case-insensitive substring match.
	PaymentMethodLike string
}

// Ports for outbound adapters.
type (
	AccountStore interface {
		ListAccounts(ctx context.Context, onlyActive bool) ([]core.Account, error)
		GetAccount(ctx context.Context, id string) (core.Account, error)
		CreateAccount(ctx context.Context, name string) (core.Account, error)
		SetAccountActive(ctx context.Context, id string, active bool) error
		// DeleteAccount fails with an error wrapping core.ErrReferenced when
		// a transaction points at the account.
		DeleteAccount(ctx context.Context, id string) error
	}

	CategoryStore interface {
		ListCategories(ctx context.Context, onlyActive bool) ([]core.Category, error)
		GetCategory(ctx context.Context, id string) (core.Category, error)
		CreateCategory(ctx context.Context, name string, kind core.Kind) (core.Category, error)
		SetCategoryActive(ctx context.Context, id string, active bool) error
		DeleteCategory(ctx context.Context, id string) error
	}

	TransactionStore interface {
		// ListTransactions returns matches ordered by date, then creation.
		ListTransactions(ctx context.Context, f TxFilter) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// InsertTransactions writes all rows or none and returns their ids
		// in input order.
		InsertTransactions(ctx context.Context, txs []core.Transaction) ([]string, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
		// MaxDocNo returns the highest expense document number dated in
		// [from, before), or "" when the range has none.
		MaxDocNo(ctx context.Context, from, before core.Date) (string, error)
	}

	AttachmentStore interface {
		InsertAttachment(ctx context.Context, a core.Attachment) (string, error)
		ListAttachments(ctx context.Context, transactionID string) ([]core.Attachment, error)
		GetAttachment(ctx context.Context, id string) (core.Attachment, error)
	}

	// Store is the full record store.
	Store interface {
		AccountStore
		CategoryStore
		TransactionStore
		AttachmentStore
		Close() error
	}
)
