package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"livrocaixa/internal/core"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"iso", "2024-03-05", "2024-03-05", false},
		{"localized", "05/03/2024", "2024-03-05", false},
		{"padded", "  2024-12-31 ", "2024-12-31", false},
		{"empty", "", "", false},
		{"literal out-of-month day", "31/02/2024", "2024-02-31", false},
		{"day out of range", "32/01/2024", "", true},
		{"month out of range", "2024-13-01", "", true},
		{"garbage", "ontem", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDate("date", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				var ve *core.ValidationError
				if !errors.As(err, &ve) || ve.Field != "date" || !errors.Is(err, core.ErrInvalidDate) {
					t.Fatalf("error = %#v", err)
				}
				return
			}
			got := ""
			if !d.IsZero() {
				got = d.String()
			}
			if got != tt.want {
				t.Fatalf("ParseDate(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1.234,56", 123456, false},
		{"10", 1000, false},
		{"R$ 7,50", 750, false},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m, err := ParseAmount(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v", tt.raw, err)
			}
			if !tt.wantErr && m.Cents != tt.want {
				t.Fatalf("ParseAmount(%q) = %d, want %d", tt.raw, m.Cents, tt.want)
			}
		})
	}
}

func TestQueryDate(t *testing.T) {
	q := url.Values{"start": {"2024-03-01"}, "bad": {"x"}}
	fallback := core.NewDate(2024, 1, 1)

	if d, err := QueryDate(q, "start"); err != nil || d.String() != "2024-03-01" {
		t.Fatalf("QueryDate(start) = %v, %v", d, err)
	}
	if _, err := QueryDate(q, "missing"); err == nil {
		t.Fatal("QueryDate of missing key should fail")
	}
	if d, err := QueryDateOr(q, "missing", fallback); err != nil || !d.Equal(fallback) {
		t.Fatalf("QueryDateOr fallback = %v, %v", d, err)
	}
	if _, err := QueryDateOr(q, "bad", fallback); err == nil {
		t.Fatal("QueryDateOr of malformed value should fail")
	}
}

func TestParseMonthParam(t *testing.T) {
	fallback := core.MonthKey{Year: 2024, Month: time.March}
	tests := []struct {
		name    string
		query   string
		want    core.MonthKey
		wantErr bool
	}{
		{"absent", "", fallback, false},
		{"year-month", "month=2023-11", core.MonthKey{Year: 2023, Month: time.November}, false},
		{"number only", "month=7", core.MonthKey{Year: 2024, Month: time.July}, false},
		{"number with year", "month=1&year=2025", core.MonthKey{Year: 2025, Month: time.January}, false},
		{"out of range", "month=13", core.MonthKey{}, true},
		{"bad year", "month=2&year=abc", core.MonthKey{}, true},
		{"bad key", "month=2024-99", core.MonthKey{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseMonthParam(q, fallback)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonthParam(%q) error = %v", tt.query, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("ParseMonthParam(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestQueryIntAndBool(t *testing.T) {
	q := url.Values{"months": {"12"}, "big": {"100"}, "all": {"true"}, "no": {"nope"}}

	if n, err := QueryInt(q, "months", 6, 1, 24); err != nil || n != 12 {
		t.Fatalf("QueryInt(months) = %d, %v", n, err)
	}
	if n, err := QueryInt(q, "missing", 6, 1, 24); err != nil || n != 6 {
		t.Fatalf("QueryInt(missing) = %d, %v", n, err)
	}
	if _, err := QueryInt(q, "big", 6, 1, 24); err == nil {
		t.Fatal("QueryInt above bound should fail")
	}
	if !QueryBool(q, "all") || QueryBool(q, "no") || QueryBool(q, "missing") {
		t.Fatal("QueryBool mismatch")
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"Caixa"}`, false},
		{"empty body", ``, true},
		{"unknown field", `{"nome":"Caixa"}`, true},
		{"trailing value", `{"name":"a"}{"name":"b"}`, true},
		{"malformed", `{"name":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), req, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON(%q) error = %v, wantErr %v", tt.body, err, tt.wantErr)
			}
			if err != nil {
				var ve *core.ValidationError
				if !errors.As(err, &ve) || ve.Field != "body" {
					t.Fatalf("error = %#v", err)
				}
			}
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxJSONBody) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var p struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(httptest.NewRecorder(), req, &p)
	if err == nil || !strings.Contains(err.Error(), "corpo maior que") {
		t.Fatalf("DecodeJSON error = %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Conta\x00 de\tluz \x07"); got != "Conta de\tluz " {
		t.Fatalf("sanitizeInput() = %q", got)
	}
}
