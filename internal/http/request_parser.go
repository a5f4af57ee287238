// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies, dates, months and amounts taken from query strings or forms.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"livrocaixa/internal/core"
	"livrocaixa/internal/services"
)

// maxJSONBody bounds request bodies other than file uploads. CSV text sent
// for preview travels in JSON, so the bound is generous.
const maxJSONBody = 8 << 20

// DecodeJSON reads a single JSON value into dst. Unknown fields are
// rejected so typos in field names surface instead of being ignored.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &core.ValidationError{Field: "body", Reason: fmt.Sprintf("corpo maior que %d bytes", maxErr.Limit)}
		}
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Field: "body", Reason: MsgBadRequest}
		}
		return &core.ValidationError{Field: "body", Reason: MsgBadRequest + " " + err.Error()}
	}
	if dec.More() {
		return &core.ValidationError{Field: "body", Reason: MsgBadRequest}
	}
	return nil
}

// ParseDate reads an ISO (YYYY-MM-DD) or localized (DD/MM/YYYY) date. An
// empty value yields the zero Date and no error.
func ParseDate(field, raw string) (core.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return core.Date{}, nil
	}
	var d core.Date
	if err := d.UnmarshalText([]byte(raw)); err != nil {
		return core.Date{}, &core.ValidationError{Field: field, Reason: services.MsgDateRequired, Err: core.ErrInvalidDate}
	}
	return d, nil
}

// ParseAmount reads a localized amount; empty or malformed input is the
// form's amount message.
func ParseAmount(raw string) (core.Money, error) {
	m, err := core.ParseLocalizedAmount(raw)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: "amount", Reason: services.MsgAmountInvalid, Err: core.ErrInvalidAmount}
	}
	return m, nil
}

// QueryDate reads a required date from the query string.
func QueryDate(q url.Values, key string) (core.Date, error) {
	d, err := ParseDate(key, q.Get(key))
	if err != nil {
		return core.Date{}, err
	}
	if d.IsZero() {
		return core.Date{}, &core.ValidationError{Field: key, Reason: services.MsgDateRequired, Err: core.ErrInvalidDate}
	}
	return d, nil
}

// QueryDateOr reads an optional date from the query string.
func QueryDateOr(q url.Values, key string, fallback core.Date) (core.Date, error) {
	d, err := ParseDate(key, q.Get(key))
	if err != nil {
		return core.Date{}, err
	}
	if d.IsZero() {
		return fallback, nil
	}
	return d, nil
}

// ParseMonthParam extracts a month from "month=YYYY-MM", or from the pair
// "year" and "month" as numbers, using fallback when neither is given.
func ParseMonthParam(q url.Values, fallback core.MonthKey) (core.MonthKey, error) {
	raw := strings.TrimSpace(q.Get("month"))
	if raw == "" {
		return fallback, nil
	}
	if strings.Contains(raw, "-") {
		k, err := core.ParseMonthKey(raw)
		if err != nil {
			return core.MonthKey{}, &core.ValidationError{Field: "month", Reason: "mês inválido: " + raw, Err: err}
		}
		return k, nil
	}
	m, err := strconv.Atoi(raw)
	if err != nil || m < 1 || m > 12 {
		return core.MonthKey{}, &core.ValidationError{Field: "month", Reason: "mês inválido: " + raw}
	}
	k := core.MonthKey{Year: fallback.Year, Month: time.Month(m)}
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.MonthKey{}, &core.ValidationError{Field: "year", Reason: "ano inválido: " + v}
		}
		k.Year = y
	}
	return k, nil
}

// QueryInt reads a bounded integer, returning fallback when absent.
func QueryInt(q url.Values, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, &core.ValidationError{Field: key, Reason: fmt.Sprintf("valor entre %d e %d", lo, hi)}
	}
	return n, nil
}

// QueryBool reads "true"/"1" as true and anything else as false.
func QueryBool(q url.Values, key string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(q.Get(key)))
	return v
}
