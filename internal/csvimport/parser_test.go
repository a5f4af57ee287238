package csvimport

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"livrocaixa/internal/core"
)

const header = "Data;Transação;Tipo Transação;Identificação;Valor\n"

func TestDetectDelimiter(t *testing.T) {
	cases := []struct {
		in   string
		want rune
	}{
		{"a;b;c\n1,2;3;4", ';'},
		{"a,b;c", ','},
		{"a;b,c", ','}, // tie goes to comma
		{"\n\n  \nx;y", ';'},
		{"", ','},
	}
	for _, tc := range cases {
		if got := DetectDelimiter(tc.in); got != tc.want {
			t.Errorf("DetectDelimiter(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitLine(t *testing.T) {
	cases := []struct {
		line  string
		delim rune
		want  []string
	}{
		{`a, b ,c`, ',', []string{"a", "b", "c"}},
		{`"a,b",c`, ',', []string{"a,b", "c"}},
		{`"say ""hi""";x`, ';', []string{`say "hi"`, "x"}},
		{`a;;b;`, ';', []string{"a", "", "b", ""}},
		{`"1.234,56";"(10,00)"`, ';', []string{"1.234,56", "(10,00)"}},
	}
	for _, tc := range cases {
		if got := SplitLine(tc.line, tc.delim); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("SplitLine(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]core.Kind{
		"DÉBITO":           core.Expense,
		"Crédito":          core.Income,
		"Recebimento PIX":  core.Income,
		"PAGAMENTO BOLETO": core.Expense,
		"Saída":            core.Expense,
		"entrada":          core.Income,
		"Transferência":    "",
		"":                 "",
	}
	for in, want := range cases {
		if got := Classify(in); got != want {
			t.Errorf("Classify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseValidRows(t *testing.T) {
	text := header +
		"05/01/2024;PIX;Recebimento PIX;João;1.234,56\n" +
		"\r\n" +
		"06/01/2024;Conta de luz;DÉBITO;;(1.234,56)\r\n"
	rows, err := Parse(text, Defaults{AccountID: "acc", IncomeCategoryID: "inc", ExpenseCategoryID: "exp", ExpenseStatus: core.Scheduled})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}

	in := rows[0]
	if !in.OK || !in.Include || in.Kind != core.Income || in.Amount.Cents != 123456 {
		t.Fatalf("income row: %+v", in)
	}
	if in.Description != "PIX - João" || in.Date != core.NewDate(2024, 1, 5) {
		t.Fatalf("income row fields: %q %v", in.Description, in.Date)
	}
	if in.CategoryID != "inc" || in.AccountID != "acc" {
		t.Fatalf("income defaults: %+v", in)
	}

	out := rows[1]
	if !out.OK || out.Kind != core.Expense || out.Amount.Cents != 123456 || out.Description != "Conta de luz" {
		t.Fatalf("expense row: %+v", out)
	}
	if out.CategoryID != "exp" || out.Status != core.Scheduled {
		t.Fatalf("expense defaults: %+v", out)
	}
}

func TestParseRowErrorsFirstFailureWins(t *testing.T) {
	cases := []struct {
		line string
		want error
		msg  string
	}{
		{"5/1/2024;x;DÉBITO;;10,00", core.ErrInvalidDate, MsgInvalidDate},
		{"05/01/2024;x;Transferência;;abc", core.ErrUnrecognizedKind, MsgUnknownKind},
		{"05/01/2024;x;DÉBITO;;abc", core.ErrInvalidAmount, MsgInvalidAmount},
		{"05/01/2024;;DÉBITO;;0,00", core.ErrNonPositiveAmount, MsgNonPositive},
		{"05/01/2024;;DÉBITO;;10,00", core.ErrEmptyDescription, MsgEmptyDescriptor},
	}
	for _, tc := range cases {
		rows, err := Parse(header+tc.line, Defaults{})
		if err != nil {
			t.Fatalf("%q: %v", tc.line, err)
		}
		r := rows[0]
		if r.OK || r.Include {
			t.Fatalf("%q: expected invalid excluded row", tc.line)
		}
		if !errors.Is(r.Err, tc.want) || r.Err.Reason != tc.msg {
			t.Fatalf("%q: got %v", tc.line, r.Err)
		}
	}
}

func TestParseMissingColumns(t *testing.T) {
	text := "Data;Transação;Tipo Transação;Identificação\n05/01/2024;x;DÉBITO;y\n"
	rows, err := Parse(text, Defaults{})
	var sm *core.SchemaMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if !reflect.DeepEqual(sm.Missing, []string{"Valor"}) {
		t.Fatalf("missing = %v", sm.Missing)
	}
	if len(rows) != 0 {
		t.Fatalf("rows parsed: %d", len(rows))
	}
}

func TestParseHeaderAnyOrderAndCase(t *testing.T) {
	text := "\ufeffVALOR,identificacao,tipo transacao,TRANSACAO,data\n\"1.000,00\",ref,Crédito,Oferta,01/02/2024\n"
	rows, err := Parse(text, Defaults{})
	if err != nil {
		t.Fatal(err)
	}
	if !rows[0].OK || rows[0].Amount.Cents != 100000 || rows[0].Description != "Oferta - ref" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestParseEmpty(t *testing.T) {
	for _, text := range []string{"", header, "\n\n" + header + "\n   \n"} {
		if _, err := Parse(text, Defaults{}); !errors.Is(err, core.ErrEmptyFile) {
			t.Fatalf("%q: expected ErrEmptyFile, got %v", text, err)
		}
	}
}

func TestParseNoRowLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	const n = 5000
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "01/03/2024;item %d;DÉBITO;;1,00\n", i)
	}
	rows, err := Parse(b.String(), Defaults{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != n {
		t.Fatalf("rows = %d, want %d", len(rows), n)
	}
}

func TestRowEditAndDefaults(t *testing.T) {
	rows, err := Parse(header+"05/01/2024;a;DÉBITO;;1,00\nbad;a;DÉBITO;;1,00\n", Defaults{})
	if err != nil {
		t.Fatal(err)
	}
	yes := true
	if err := (RowEdit{Include: &yes}).Apply(&rows[1]); !errors.Is(err, ErrRowLocked) {
		t.Fatalf("expected ErrRowLocked, got %v", err)
	}
	no := false
	if err := (RowEdit{Include: &no}).Apply(&rows[0]); err != nil || rows[0].Include {
		t.Fatalf("exclude valid row: %v", err)
	}

	ApplyDefaults(rows, Defaults{AccountID: "A", ExpenseCategoryID: "E", ExpenseStatus: core.Scheduled})
	if rows[0].AccountID != "A" || rows[0].CategoryID != "E" || rows[0].Status != core.Scheduled {
		t.Fatalf("defaults not applied: %+v", rows[0])
	}
	if rows[1].AccountID != "" {
		t.Fatalf("invalid row must keep its targets")
	}

	st := Summarize(rows)
	if st.Total != 2 || st.Valid != 1 || st.Invalid != 1 || st.Included != 0 {
		t.Fatalf("stats = %+v", st)
	}
}
