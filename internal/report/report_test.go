package report

import (
	"bytes"
	"context"
	"errors"
	"html"
	"strings"
	"testing"
	"time"

	"livrocaixa/internal/core"
	"livrocaixa/internal/store/memory"
)

var lookup = Lookup{
	Accounts:   map[string]string{"acc": "Banco"},
	Categories: map[string]string{"ofertas": "Ofertas", "luz": "Luz"},
}

func row(kind core.Kind, cat string, status core.ExpenseStatus, day int, cents int64) core.Transaction {
	return core.Transaction{
		Date: core.NewDate(2024, 5, day), Kind: kind, CategoryID: cat, AccountID: "acc",
		Status: status, Amount: core.Money{Cents: cents}, Description: "x",
	}
}

func mayFilter() Filter {
	return Filter{Start: core.NewDate(2024, 5, 1), End: core.NewDate(2024, 5, 31), Status: StatusAll}
}

func TestBuildConsolidated(t *testing.T) {
	txs := []core.Transaction{
		row(core.Income, "ofertas", "", 1, 10000),
		row(core.Expense, "luz", core.Scheduled, 2, 4000),
		row(core.Expense, "luz", core.Executed, 3, 1000),
	}
	r := Build(txs, lookup, mayFilter())
	if len(r.Groups) != 2 {
		t.Fatalf("groups = %+v", r.Groups)
	}
	income, expense := r.Groups[0], r.Groups[1]
	if income.Kind != core.Income || income.Total.Cents != 10000 || income.Executed.Cents != 0 {
		t.Fatalf("income group = %+v", income)
	}
	if expense.Total.Cents != 5000 || expense.Executed.Cents != 1000 || expense.Scheduled.Cents != 4000 {
		t.Fatalf("expense group = %+v", expense)
	}
	if r.Summary.NetExecuted.Cents != 9000 || r.Summary.NetAll.Cents != 5000 {
		t.Fatalf("summary = %+v", r.Summary)
	}
	if r.Totals.All().Cents != 15000 || r.RowSum.Cents != 15000 {
		t.Fatalf("totals = %+v rowsum=%d", r.Totals, r.RowSum.Cents)
	}
	if len(txs) != 3 || txs[1].Status != core.Scheduled {
		t.Fatal("input mutated")
	}
}

func TestStatusFilter(t *testing.T) {
	txs := []core.Transaction{
		row(core.Income, "ofertas", "", 1, 100),
		row(core.Expense, "luz", "", 2, 200),
		row(core.Expense, "luz", core.Scheduled, 3, 300),
	}
	tests := []struct {
		status StatusFilter
		rows   int
	}{
		{StatusAll, 3},
		{StatusExecuted, 2},
		{StatusScheduled, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := mayFilter()
			f.Status = tt.status
			if got := Build(txs, lookup, f); len(got.Rows) != tt.rows {
				t.Fatalf("rows = %d, want %d", len(got.Rows), tt.rows)
			}
		})
	}
	if _, err := ParseStatusFilter("pending"); err == nil {
		t.Fatal("unknown status accepted")
	}
}

func TestLabelsAndDefaults(t *testing.T) {
	f := mayFilter()
	f.CategoryID = "luz"
	f.AccountID = "gone"
	f.PaymentMethod = "  PIX "
	txs := []core.Transaction{{Date: core.NewDate(2024, 5, 1), Kind: core.Expense, Amount: core.Money{Cents: 1}, CategoryID: "x", AccountID: "y"}}
	r := Build(txs, lookup, f)
	if r.Labels.Category != "Luz" || r.Labels.Account != "Conta" || r.Labels.PaymentMethod != "PIX" {
		t.Fatalf("labels = %+v", r.Labels)
	}
	if r.Rows[0].Category != "—" || r.Groups[0].CategoryName != "Sem categoria" || r.Groups[0].AccountName != "Sem conta" {
		t.Fatalf("fallback names = %+v / %+v", r.Rows[0], r.Groups[0])
	}
	if r.Rows[0].Status != "Executada" {
		t.Fatalf("status label = %s", r.Rows[0].Status)
	}
}

func TestWriteCSV(t *testing.T) {
	txs := []core.Transaction{row(core.Expense, "luz", core.Executed, 4, 123450)}
	txs[0].Description = `Conta "maio"; ref`
	r := Build(txs, lookup, mayFilter())
	var buf bytes.Buffer
	if err := WriteCSV(&buf, r.DetailRecords()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\ufeffData,Tipo,Status,Descricao,Categoria,Conta,Forma,Valor,PeriodoInicio") {
		t.Fatalf("header = %q", out)
	}
	lines := strings.Split(out, "\n")
	want := `2024-05-04,Saída,Executada,"Conta ""maio""; ref",Luz,Banco,,1234.5,2024-05-01,2024-05-31,Todas,Todas,Status: Todos,Todas`
	if len(lines) != 2 || lines[1] != want {
		t.Fatalf("line = %q", lines[len(lines)-1])
	}

	buf.Reset()
	income := Build([]core.Transaction{row(core.Income, "ofertas", "", 1, 500)}, lookup, mayFilter())
	if err := WriteCSV(&buf, income.ConsolidatedRecords()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\nEntrada,Ofertas,Banco,5,,,2024-05-01") {
		t.Fatalf("consolidated = %q", buf.String())
	}
}

func TestWriteHTML(t *testing.T) {
	txs := []core.Transaction{
		row(core.Income, "ofertas", "", 1, 10000),
		row(core.Expense, "luz", core.Scheduled, 2, 4000),
	}
	txs[0].Description = "<b>oferta</b>"
	r := Build(txs, lookup, mayFilter())

	var buf bytes.Buffer
	if err := WriteHTML(&buf, r, Detail); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "<b>oferta</b>") || !strings.Contains(buf.String(), "R$ 100,00") {
		t.Fatalf("detail html = %s", buf.String())
	}

	buf.Reset()
	if err := WriteHTML(&buf, r, Consolidated); err != nil {
		t.Fatal(err)
	}
	doc := html.UnescapeString(buf.String())
	for _, want := range []string{"Relatório consolidado (Categoria + Conta)", "<td colspan=\"3\">Totais</td>", "R$ 140,00", "—"} {
		if !strings.Contains(doc, want) {
			t.Errorf("consolidated html missing %q", want)
		}
	}
}

func TestWritePDF(t *testing.T) {
	r := Build([]core.Transaction{row(core.Expense, "luz", core.Executed, 2, 4000)}, lookup, mayFilter())
	for _, v := range []Variant{Detail, Consolidated} {
		var buf bytes.Buffer
		err := WritePDF(&buf, r, v, PrintOptions{GeneratedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)})
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
			t.Fatalf("variant %d is not a PDF", v)
		}
	}
}

func TestFileName(t *testing.T) {
	f := mayFilter()
	f.CategoryID = "ofertas"
	r := Build(nil, lookup, f)
	got := FileName(r, Consolidated, "csv")
	if got != "relatorio-consolidado_2024-05-01_a_2024-05-31_cat-Ofertas_conta-Todas.csv" {
		t.Fatalf("name = %s", got)
	}
	r.Labels.Account = "Caixa/Sede"
	if got := FileName(r, Detail, "xls"); !strings.HasSuffix(got, "conta-Caixa_Sede.xls") {
		t.Fatalf("name = %s", got)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acc, _ := s.CreateAccount(ctx, "Banco")
	cat, _ := s.CreateCategory(ctx, "Ofertas", core.Income)
	_, err := s.InsertTransactions(ctx, []core.Transaction{
		{Date: core.NewDate(2024, 5, 31), Kind: core.Income, Description: "a", Amount: core.Money{Cents: 100}, AccountID: acc.ID, CategoryID: cat.ID, PaymentMethod: "PIX"},
		{Date: core.NewDate(2024, 6, 1), Kind: core.Income, Description: "b", Amount: core.Money{Cents: 100}, AccountID: acc.ID, CategoryID: cat.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	f := mayFilter()
	f.PaymentMethod = "pix"
	r, err := Run(ctx, s, f)
	if err != nil || len(r.Rows) != 1 || r.Rows[0].Account != "Banco" {
		t.Fatalf("report = %+v err=%v", r.Rows, err)
	}

	f.End = core.NewDate(2024, 4, 1)
	if _, err := Run(ctx, s, f); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected range error, got %v", err)
	}
}
