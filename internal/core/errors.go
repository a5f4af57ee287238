package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrUnrecognizedKind     = errors.New("unrecognized transaction kind")
	ErrNonPositiveAmount    = errors.New("amount must be greater than zero")
	ErrEmptyDescription     = errors.New("empty description")
	ErrCategoryKindMismatch = errors.New("category kind does not match transaction kind")
	ErrInactive             = errors.New("account or category is inactive")
	ErrNotFound             = errors.New("not found")
	ErrReferenced           = errors.New("record is referenced")
	ErrUnauthenticated      = errors.New("not authenticated")
	ErrForbidden            = errors.New("operation requires privileged user")
	ErrSessionExpired       = errors.New("session expired")
	ErrEmptyFile            = errors.New("empty CSV: header and at least one row required")
)

// ValidationError is a recoverable, per-field or per-row failure.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError wrapping a sentinel.
func Invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Reason: err.Error(), Err: err}
}

// SchemaMismatchError aborts an import whose header lacks required columns.
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return "CSV sem colunas obrigatórias: " + strings.Join(e.Missing, ", ")
}

// StoreError carries the failing store operation. Batch fields are set for
// chunked writes; Committed counts rows already persisted before the failure.
type StoreError struct {
	Op         string
	BatchIndex int
	BatchTotal int
	Committed  int
	Err        error
}

func (e *StoreError) Error() string {
	if e.BatchTotal > 0 {
		return fmt.Sprintf("%s: lote %d/%d: %v (%d linhas já gravadas)",
			e.Op, e.BatchIndex+1, e.BatchTotal, e.Err, e.Committed)
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// ReferentialConflictError reports a delete rejected because other records
// still point at the target.
type ReferentialConflictError struct {
	Entity string
	ID     string
	Err    error
}

func (e *ReferentialConflictError) Error() string {
	return fmt.Sprintf("não foi possível excluir %s %s: está em uso; desative em vez de excluir", e.Entity, e.ID)
}

func (e *ReferentialConflictError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrReferenced, e.Err}
	}
	return []error{ErrReferenced}
}
