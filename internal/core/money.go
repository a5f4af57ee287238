// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts written in the
// Brazilian convention (R$ 1.234,56) and for formatting cents back into it.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is an exact amount in cents. Stored transaction amounts are always
// positive; direction is carried by Kind.
type Money struct {
	Cents int64
}

var maxAmount = decimal.New(1<<62, -2)

// ParseLocalizedAmount converts a localized amount string to Money.
//
// It accepts an optional "R$" prefix, thousands separators and either ","
// or "." as decimal mark. When a comma is present it is the decimal mark and
// every dot is a thousands separator; otherwise the text is parsed as-is.
// Parenthesized or minus-prefixed negatives return their absolute value.
// The result is rounded half-up to the cent.
//
// Examples:
//   ParseLocalizedAmount("R$ 1.234,56") -> 123456
//   ParseLocalizedAmount("(1.234,56)")  -> 123456
//   ParseLocalizedAmount("R$(12,00)")   -> 1200
//   ParseLocalizedAmount("12.345")      -> 1235
func ParseLocalizedAmount(s string) (Money, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}

	s = strings.TrimLeft(s, "-+")
	if len(s) >= 2 && strings.EqualFold(s[:2], "R$") {
		s = s[2:]
	}
	s = strings.TrimLeft(s, "-+")
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimLeft(s[1:len(s)-1], "-+")
	}
	if len(s) >= 2 && strings.EqualFold(s[:2], "R$") {
		s = strings.TrimLeft(s[2:], "-+")
	}
	if s == "" {
		return Money{}, ErrInvalidAmount
	}

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	d = d.Abs().Round(2)
	if d.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Shift(2).IntPart()}, nil
}

// MoneyFromDecimal rounds d half-up to the cent.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

// Plain renders the amount the way spreadsheets read numbers: dot decimal
// mark, no grouping, no trailing zeros ("1234.5").
func (m Money) Plain() string {
	return m.Decimal().String()
}

// FormatCurrencyLocalized renders m as "R$ 1.234,56"; negatives get a
// leading minus ("-R$ 12,00").
func FormatCurrencyLocalized(m Money) string {
	neg := m.Cents < 0
	fixed := m.Decimal().Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("R$ ")
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

func (m Money) String() string {
	return FormatCurrencyLocalized(m)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrNonPositiveAmount
	}
	return nil
}
