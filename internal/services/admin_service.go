package services

import (
	"context"
	"errors"
	"strings"

	"livrocaixa/internal/auth"
	"livrocaixa/internal/core"
	applog "livrocaixa/internal/log"
	"livrocaixa/internal/store"
)

const MsgNameRequired = "Informe o nome."

// BalanceResetter drops every cached account balance.
type BalanceResetter interface {
	InvalidateAll()
}

// AdminService manages accounts and categories. Mutations need a privileged
// user.
type AdminService struct {
	store    store.Store
	balances BalanceResetter
	logger   *applog.Logger
}

// NewAdminService builds the service; balances may be nil.
func NewAdminService(s store.Store, balances BalanceResetter, logger *applog.Logger) *AdminService {
	if logger == nil {
		logger = applog.Default()
	}
	return &AdminService{store: s, balances: balances, logger: logger.WithComponent(applog.ComponentBackend)}
}

func (s *AdminService) accountsChanged() {
	if s.balances != nil {
		s.balances.InvalidateAll()
	}
}

func requirePrivileged(ctx context.Context) (auth.User, error) {
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return auth.User{}, err
	}
	if !auth.IsPrivileged(u) {
		return auth.User{}, core.ErrForbidden
	}
	return u, nil
}

func (s *AdminService) ListAccounts(ctx context.Context, onlyActive bool) ([]core.Account, error) {
	out, err := s.store.ListAccounts(ctx, onlyActive)
	return out, storeErr("listar contas", err)
}

func (s *AdminService) ListCategories(ctx context.Context, onlyActive bool) ([]core.Category, error) {
	out, err := s.store.ListCategories(ctx, onlyActive)
	return out, storeErr("listar categorias", err)
}

func (s *AdminService) CreateAccount(ctx context.Context, name string) (core.Account, error) {
	if _, err := requirePrivileged(ctx); err != nil {
		return core.Account{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Account{}, &core.ValidationError{Field: "name", Reason: MsgNameRequired}
	}
	a, err := s.store.CreateAccount(ctx, name)
	if err != nil {
		return core.Account{}, storeErr("criar conta", err)
	}
	s.accountsChanged()
	s.logger.InfoContext(ctx, "Account created", applog.FieldAccountID, a.ID)
	return a, nil
}

func (s *AdminService) SetAccountActive(ctx context.Context, id string, active bool) error {
	if _, err := requirePrivileged(ctx); err != nil {
		return err
	}
	if err := s.store.SetAccountActive(ctx, id, active); err != nil {
		return storeErr("atualizar conta", err)
	}
	s.accountsChanged()
	return nil
}

// DeleteAccount refuses accounts that still have transactions.
func (s *AdminService) DeleteAccount(ctx context.Context, id string) error {
	if _, err := requirePrivileged(ctx); err != nil {
		return err
	}
	if err := s.deleted(ctx, "conta", id, s.store.DeleteAccount(ctx, id)); err != nil {
		return err
	}
	s.accountsChanged()
	return nil
}

func (s *AdminService) CreateCategory(ctx context.Context, name string, kind core.Kind) (core.Category, error) {
	if _, err := requirePrivileged(ctx); err != nil {
		return core.Category{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, &core.ValidationError{Field: "name", Reason: MsgNameRequired}
	}
	if !kind.Valid() {
		return core.Category{}, core.Invalid("kind", core.ErrUnrecognizedKind)
	}
	c, err := s.store.CreateCategory(ctx, name, kind)
	if err != nil {
		return core.Category{}, storeErr("criar categoria", err)
	}
	s.logger.InfoContext(ctx, "Category created", applog.FieldCategoryID, c.ID, applog.FieldKind, string(kind))
	return c, nil
}

func (s *AdminService) SetCategoryActive(ctx context.Context, id string, active bool) error {
	if _, err := requirePrivileged(ctx); err != nil {
		return err
	}
	return storeErr("atualizar categoria", s.store.SetCategoryActive(ctx, id, active))
}

func (s *AdminService) DeleteCategory(ctx context.Context, id string) error {
	if _, err := requirePrivileged(ctx); err != nil {
		return err
	}
	return s.deleted(ctx, "categoria", id, s.store.DeleteCategory(ctx, id))
}

func (s *AdminService) deleted(ctx context.Context, entity, id string, err error) error {
	if err == nil {
		s.logger.InfoContext(ctx, "Record deleted", "entity", entity, "id", id)
		return nil
	}
	if errors.Is(err, core.ErrReferenced) {
		return &core.ReferentialConflictError{Entity: entity, ID: id, Err: err}
	}
	return storeErr("excluir "+entity, err)
}
