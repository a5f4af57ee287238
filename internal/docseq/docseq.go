// Package docseq allocates the monthly expense document numbers.
//
// Numbers are unique within a calendar month and printed zero-padded to
// three digits. The store-backed allocator reads the month's maximum and adds
// one; it does not reserve anything, so two concurrent submissions can get
// the same number. The Redis allocator keeps a per-month counter and
// increments it atomically.
package docseq

import (
	"context"
	"fmt"
	"strconv"

	"livrocaixa/internal/core"
)

// MaxDigits bounds a document number after non-digits are stripped.
const MaxDigits = 6

// Allocator hands out document numbers for a month.
type Allocator interface {
	// Peek returns the number the next expense of month would get,
	// without reserving it.
	Peek(ctx context.Context, month core.MonthKey) (int, error)
	// Reserve claims n consecutive numbers for month and returns the first.
	Reserve(ctx context.Context, month core.MonthKey, n int) (int, error)
	// Observe records that a caller-chosen number was used in month, so
	// later reservations do not hand it out again.
	Observe(ctx context.Context, month core.MonthKey, used int) error
}

// MaxReader is the store query the allocators seed from.
type MaxReader interface {
	MaxDocNo(ctx context.Context, from, before core.Date) (string, error)
}

// Pad3 formats n with at least three digits.
func Pad3(n int) string {
	return fmt.Sprintf("%03d", n)
}

// Number returns the numeric value of a stored or typed document number,
// or 0 when it carries no digits.
func Number(docNo string) int {
	n, err := strconv.Atoi(core.OnlyDigits(docNo))
	if err != nil {
		return 0
	}
	return n
}

// Next formats the number Peek would return.
func Next(ctx context.Context, a Allocator, month core.MonthKey) (string, error) {
	n, err := a.Peek(ctx, month)
	if err != nil {
		return "", err
	}
	return Pad3(n), nil
}

func monthMax(ctx context.Context, r MaxReader, month core.MonthKey) (int, error) {
	from, before := month.Range()
	raw, err := r.MaxDocNo(ctx, from, before)
	if err != nil {
		return 0, &core.StoreError{Op: "buscar Nº do documento " + month.String(), Err: err}
	}
	return Number(raw), nil
}

// StoreAllocator derives the next number from the highest one stored.
type StoreAllocator struct {
	store MaxReader
}

func NewStoreAllocator(r MaxReader) *StoreAllocator {
	return &StoreAllocator{store: r}
}

func (a *StoreAllocator) Peek(ctx context.Context, month core.MonthKey) (int, error) {
	top, err := monthMax(ctx, a.store, month)
	if err != nil {
		return 0, err
	}
	return top + 1, nil
}

// Reserve returns max+1. Nothing is held, the caller increments locally.
func (a *StoreAllocator) Reserve(ctx context.Context, month core.MonthKey, _ int) (int, error) {
	return a.Peek(ctx, month)
}

func (a *StoreAllocator) Observe(context.Context, core.MonthKey, int) error { return nil }
