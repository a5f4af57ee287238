// Package services orchestrates the ledger operations over the record store.
// Every mutation returns its effect and announces it to the balance cache and
// the change publisher.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"livrocaixa/internal/amqp"
	"livrocaixa/internal/auth"
	"livrocaixa/internal/core"
	"livrocaixa/internal/docseq"
	applog "livrocaixa/internal/log"
	"livrocaixa/internal/recurrence"
	"livrocaixa/internal/store"
)

// Form messages.
const (
	MsgDateRequired     = "Informe a data."
	MsgCategoryRequired = "Escolha uma categoria."
	MsgAccountRequired  = "Escolha uma conta."
	MsgDescription      = "Informe a descrição."
	MsgAmountInvalid    = "Informe um valor válido (> 0)."
	MsgSessionExpired   = "Sessão expirada. Faça login novamente."
	MsgNotScheduled     = "Somente saídas programadas podem ser marcadas como executadas."
	MsgInactive         = "Conta ou categoria inativa."
	MsgKindMismatch     = "A categoria não corresponde ao tipo do lançamento."
)

// Publisher announces ledger changes to other processes.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// Invalidator drops cached figures of the given months.
type Invalidator interface {
	Invalidate(months []core.MonthKey)
}

// Entry is a submitted transaction form.
type Entry struct {
	Date          core.Date
	Kind          core.Kind
	CategoryID    string
	AccountID     string
	Description   string
	Amount        core.Money
	PaymentMethod string
	Status        core.ExpenseStatus
	DocNo         string
	Recurrence    recurrence.Plan
}

func (e Entry) validate() error {
	switch {
	case e.Date.IsZero():
		return &core.ValidationError{Field: "date", Reason: MsgDateRequired, Err: core.ErrInvalidDate}
	case e.Date.Validate() != nil:
		return &core.ValidationError{Field: "date", Reason: MsgDateRequired, Err: core.ErrInvalidDate}
	case !e.Kind.Valid():
		return core.Invalid("kind", core.ErrUnrecognizedKind)
	case strings.TrimSpace(e.CategoryID) == "":
		return &core.ValidationError{Field: "category_id", Reason: MsgCategoryRequired}
	case strings.TrimSpace(e.AccountID) == "":
		return &core.ValidationError{Field: "account_id", Reason: MsgAccountRequired}
	case strings.TrimSpace(e.Description) == "":
		return &core.ValidationError{Field: "description", Reason: MsgDescription, Err: core.ErrEmptyDescription}
	case e.Amount.Cents <= 0:
		return &core.ValidationError{Field: "amount", Reason: MsgAmountInvalid, Err: core.ErrNonPositiveAmount}
	}
	return nil
}

// Result is the outcome of a create.
type Result struct {
	Transactions []core.Transaction
	Effect       core.Effect
}

type LedgerService struct {
	store       store.Store
	seq         docseq.Allocator
	expander    *recurrence.Expander
	publisher   Publisher
	invalidator Invalidator
	now         func() time.Time
	logger      *applog.Logger
}

// NewLedgerService wires the service; publisher and invalidator may be nil.
func NewLedgerService(s store.Store, seq docseq.Allocator, publisher Publisher, invalidator Invalidator, logger *applog.Logger) *LedgerService {
	if logger == nil {
		logger = applog.Default()
	}
	return &LedgerService{
		store:       s,
		seq:         seq,
		expander:    recurrence.NewExpander(seq, logger),
		publisher:   publisher,
		invalidator: invalidator,
		now:         time.Now,
		logger:      logger.WithComponent(applog.ComponentLedger),
	}
}

// NextDocNo proposes the document number for a new expense dated d.
func (s *LedgerService) NextDocNo(ctx context.Context, d core.Date) (string, error) {
	return docseq.Next(ctx, s.seq, d.MonthKey())
}

// Create validates e, expands it into its rows and inserts them at once.
func (s *LedgerService) Create(ctx context.Context, e Entry) (Result, error) {
	user, err := auth.CurrentUser(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := e.validate(); err != nil {
		return Result{}, err
	}
	if err := s.checkTargets(ctx, e.Kind, e.AccountID, e.CategoryID, true); err != nil {
		return Result{}, err
	}

	tpl := core.Transaction{
		Date:          e.Date,
		Kind:          e.Kind,
		Description:   strings.TrimSpace(e.Description),
		Amount:        e.Amount,
		PaymentMethod: e.PaymentMethod,
		CategoryID:    e.CategoryID,
		AccountID:     e.AccountID,
		CreatedBy:     user.ID,
		Status:        e.Status,
		DocNo:         strings.TrimSpace(e.DocNo),
	}
	rows, err := s.expander.Expand(ctx, tpl, e.Recurrence)
	if err != nil {
		return Result{}, err
	}
	now := s.now()
	for i := range rows {
		rows[i].Normalize(now)
	}

	ids, err := s.store.InsertTransactions(ctx, rows)
	if err != nil {
		return Result{}, storeErr("salvar lançamento", err)
	}

	var eff core.Effect
	for i := range rows {
		rows[i].ID = ids[i]
		eff.Apply(rows[i], 1)
	}
	eff.Created = ids

	s.logger.InfoContext(ctx, "Transactions created",
		applog.NewFields().WithOperation(applog.OpCreate).
			WithTransaction(ids[0], string(e.Kind), e.AccountID, e.Amount.Cents).ToSlice()...)
	s.announce(ctx, applog.OpCreate, eff)
	return Result{Transactions: rows, Effect: eff}, nil
}

// Update replaces the editable fields of a transaction. Switching to income
// clears the expense fields; an executed expense is stamped now.
func (s *LedgerService) Update(ctx context.Context, id string, e Entry) (core.Effect, error) {
	if _, err := auth.CurrentUser(ctx); err != nil {
		return core.Effect{}, err
	}
	if err := e.validate(); err != nil {
		return core.Effect{}, err
	}
	old, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Effect{}, storeErr("buscar lançamento", err)
	}
	if err := s.checkTargets(ctx, e.Kind, e.AccountID, e.CategoryID, false); err != nil {
		return core.Effect{}, err
	}

	next := old
	next.Date = e.Date
	next.Kind = e.Kind
	next.CategoryID = e.CategoryID
	next.AccountID = e.AccountID
	next.Description = e.Description
	next.Amount = e.Amount
	next.PaymentMethod = e.PaymentMethod
	next.Status = e.Status
	next.ExecutedAt = nil
	if next.Kind == core.Expense {
		if doc := strings.TrimSpace(e.DocNo); doc != "" {
			if err := recurrence.ValidateDocNo(doc); err != nil {
				return core.Effect{}, err
			}
			next.DocNo = docseq.Pad3(max(docseq.Number(doc), 1))
		}
		if next.DocNo == "" {
			doc, err := docseq.Next(ctx, s.seq, next.Date.MonthKey())
			if err != nil {
				return core.Effect{}, err
			}
			next.DocNo = doc
		}
	}
	next.Normalize(s.now())

	if err := s.store.UpdateTransaction(ctx, next); err != nil {
		return core.Effect{}, storeErr("atualizar lançamento", err)
	}

	var eff core.Effect
	eff.Apply(old, -1)
	eff.Apply(next, 1)
	eff.Updated = []string{id}
	s.logger.InfoContext(ctx, "Transaction updated",
		applog.NewFields().WithOperation(applog.OpUpdate).
			WithTransaction(id, string(next.Kind), next.AccountID, next.Amount.Cents).ToSlice()...)
	s.announce(ctx, applog.OpUpdate, eff)
	return eff, nil
}

// MarkExecuted settles a scheduled expense now.
func (s *LedgerService) MarkExecuted(ctx context.Context, id string) (core.Effect, error) {
	if _, err := auth.CurrentUser(ctx); err != nil {
		return core.Effect{}, err
	}
	old, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Effect{}, storeErr("buscar lançamento", err)
	}
	if old.Kind != core.Expense || old.EffectiveStatus() != core.Scheduled {
		return core.Effect{}, &core.ValidationError{Field: "expense_status", Reason: MsgNotScheduled}
	}
	next := old
	at := s.now()
	next.Status, next.ExecutedAt = core.Executed, &at
	if err := s.store.UpdateTransaction(ctx, next); err != nil {
		return core.Effect{}, storeErr("marcar como executada", err)
	}

	var eff core.Effect
	eff.Apply(old, -1)
	eff.Apply(next, 1)
	eff.Updated = []string{id}
	s.logger.InfoContext(ctx, "Expense executed",
		applog.NewFields().WithOperation(applog.OpExecute).
			WithTransaction(id, string(next.Kind), next.AccountID, next.Amount.Cents).ToSlice()...)
	s.announce(ctx, applog.OpExecute, eff)
	return eff, nil
}

// Delete removes a transaction. One with attachments is refused with a
// ReferentialConflictError.
func (s *LedgerService) Delete(ctx context.Context, id string) (core.Effect, error) {
	if _, err := auth.CurrentUser(ctx); err != nil {
		return core.Effect{}, err
	}
	old, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Effect{}, storeErr("buscar lançamento", err)
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		if errors.Is(err, core.ErrReferenced) {
			return core.Effect{}, &core.ReferentialConflictError{Entity: "lançamento", ID: id, Err: err}
		}
		return core.Effect{}, storeErr("excluir lançamento", err)
	}

	var eff core.Effect
	eff.Apply(old, -1)
	eff.Deleted = []string{id}
	s.logger.InfoContext(ctx, "Transaction deleted",
		applog.NewFields().WithOperation(applog.OpDelete).
			WithTransaction(id, string(old.Kind), old.AccountID, old.Amount.Cents).ToSlice()...)
	s.announce(ctx, applog.OpDelete, eff)
	return eff, nil
}

// checkTargets loads the account and category concurrently. New entries
// reject inactive targets; edits may keep them.
func (s *LedgerService) checkTargets(ctx context.Context, kind core.Kind, accountID, categoryID string, requireActive bool) error {
	var (
		acc core.Account
		cat core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		acc, err = s.store.GetAccount(gctx, accountID)
		if errors.Is(err, core.ErrNotFound) {
			return &core.ValidationError{Field: "account_id", Reason: MsgAccountRequired, Err: err}
		}
		return storeErr("buscar conta", err)
	})
	g.Go(func() error {
		var err error
		cat, err = s.store.GetCategory(gctx, categoryID)
		if errors.Is(err, core.ErrNotFound) {
			return &core.ValidationError{Field: "category_id", Reason: MsgCategoryRequired, Err: err}
		}
		return storeErr("buscar categoria", err)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if cat.Kind != kind {
		return &core.ValidationError{Field: "category_id", Reason: MsgKindMismatch, Err: core.ErrCategoryKindMismatch}
	}
	if requireActive && (!acc.Active || !cat.Active) {
		return &core.ValidationError{Field: "account_id", Reason: MsgInactive, Err: core.ErrInactive}
	}
	return nil
}

// announce invalidates cached balances and publishes the change. Publishing
// failures are logged; the mutation already happened.
func (s *LedgerService) announce(ctx context.Context, op string, eff core.Effect) {
	announce(ctx, s.logger, s.invalidator, s.publisher, op, eff)
}

func announce(ctx context.Context, logger *applog.Logger, inv Invalidator, pub Publisher, op string, eff core.Effect) {
	if inv != nil {
		inv.Invalidate(eff.Months)
	}
	if pub == nil {
		logger.DebugContext(ctx, "No publisher configured, skipping ledger change message")
		return
	}
	if err := pub.PublishLedgerChanged(ctx, amqp.NewLedgerChangedMessage(op, eff)); err != nil {
		logger.ErrorContext(ctx, "Failed to publish ledger change message",
			applog.FieldOperation, op, applog.FieldError, err)
	}
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *core.ValidationError
	if errors.As(err, &ve) || errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &core.StoreError{Op: op, Err: err}
}
