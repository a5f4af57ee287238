package report

import (
	"html/template"
	"io"

	"livrocaixa/internal/core"
)

// Variant picks the table an export renders.
type Variant int

const (
	Detail Variant = iota
	Consolidated
)

func (v Variant) Title() string {
	if v == Consolidated {
		return "Relatório consolidado (Categoria + Conta)"
	}
	return "Relatório de lançamentos"
}

func (v Variant) slug() string {
	if v == Consolidated {
		return "consolidado"
	}
	return "lancamentos"
}

var tableFuncs = template.FuncMap{
	"brl":    core.FormatCurrencyLocalized,
	"income": func(k core.Kind) bool { return k == core.Income },
}

// The spreadsheet export is a bare HTML table; spreadsheet applications
// open it under an .xls name.
var sheetTemplate = template.Must(template.New("sheet").Funcs(tableFuncs).Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8" />
<meta http-equiv="Content-Type" content="text/html; charset=utf-8" />
<title>{{.Title}}</title>
<style>
  body { font-family: Arial, sans-serif; padding: 16px; }
  h1 { font-size: 16px; margin: 0 0 12px 0; }
  .meta { font-size: 12px; color: #555; margin-bottom: 12px; }
  table { border-collapse: collapse; width: 100%; font-size: 12px; }
  th, td { border: 1px solid #ddd; padding: 6px 8px; }
  th { background: #f3f4f6; text-align: left; }
  td.num { text-align: right; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">Período: {{.R.Filter.Start}} até {{.R.Filter.End}} • Categoria: {{.R.Labels.Category}} • Conta: {{.R.Labels.Account}} • {{.R.Labels.Status}} • Forma: {{.R.Labels.PaymentMethod}}</div>
<table>
{{- if .Consolidated}}
<thead><tr><th>Tipo</th><th>Categoria</th><th>Conta</th><th>Total</th><th>Exec</th><th>Prog</th></tr></thead>
<tbody>
{{- range .R.Groups}}
<tr><td>{{.Kind.Label}}</td><td>{{.CategoryName}}</td><td>{{.AccountName}}</td><td class="num">{{brl .Total}}</td>
{{- if income .Kind}}<td class="num">—</td><td class="num">—</td>{{else}}<td class="num">{{brl .Executed}}</td><td class="num">{{brl .Scheduled}}</td>{{end}}</tr>
{{- end}}
</tbody>
<tfoot><tr><td colspan="3">Totais</td><td class="num">{{brl .R.Totals.All}}</td><td class="num">{{brl .R.Totals.ExpenseExecuted}}</td><td class="num">{{brl .R.Totals.ExpenseScheduled}}</td></tr></tfoot>
{{- else}}
<thead><tr><th>Data</th><th>Tipo</th><th>Status</th><th>Descrição</th><th>Categoria</th><th>Conta</th><th>Forma</th><th>Valor</th></tr></thead>
<tbody>
{{- range .R.Rows}}
<tr><td>{{.Date}}</td><td>{{.Kind.Label}}</td><td>{{.Status}}</td><td>{{.Description}}</td><td>{{.Category}}</td><td>{{.Account}}</td><td>{{.PaymentMethod}}</td><td class="num">{{brl .Amount}}</td></tr>
{{- end}}
</tbody>
{{- end}}
</table>
</body>
</html>
`))

// WriteHTML renders the spreadsheet table document of v.
func WriteHTML(w io.Writer, r Report, v Variant) error {
	return sheetTemplate.Execute(w, struct {
		Title        string
		Consolidated bool
		R            Report
	}{v.Title(), v == Consolidated, r})
}

// FileName is the download name of an export, sanitized like a blob name.
func FileName(r Report, v Variant, ext string) string {
	return core.SafeName("relatorio-" + v.slug() + "_" + r.Filter.Start.String() + "_a_" + r.Filter.End.String() +
		"_cat-" + r.Labels.Category + "_conta-" + r.Labels.Account + "." + ext)
}
