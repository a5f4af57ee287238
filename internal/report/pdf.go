package report

import (
	"io"
	"strconv"
	"time"

	"github.com/phpdave11/gofpdf"

	"livrocaixa/internal/core"
)

// PrintOptions carries the document header values.
type PrintOptions struct {
	OrgName     string
	GeneratedAt time.Time
}

const (
	pdfMargin = 12.0
	rowHeight = 6.0
)

type column struct {
	title string
	width float64
	align string
}

var (
	detailColumns = []column{
		{"Data", 20, "L"}, {"Tipo", 16, "L"}, {"Status", 20, "L"}, {"Descrição", 44, "L"},
		{"Categoria", 26, "L"}, {"Conta", 22, "L"}, {"Forma", 16, "L"}, {"Valor", 22, "R"},
	}
	consolidatedColumns = []column{
		{"Tipo", 20, "L"}, {"Categoria", 50, "L"}, {"Conta", 40, "L"},
		{"Total", 26, "R"}, {"Exec", 25, "R"}, {"Prog", 25, "R"},
	}
)

type kpi struct {
	label string
	value core.Money
}

// printer wraps a gofpdf document with a cp1252 translator, since the core
// fonts carry no UTF-8 glyphs.
type printer struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

// WritePDF renders the print document of v: header, filter chips, KPI boxes,
// the table with its totals, two signature lines and a page footer.
func WritePDF(w io.Writer, r Report, v Variant, opts PrintOptions) error {
	if opts.OrgName == "" {
		opts.OrgName = "Financeiro Igreja"
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin+8)
	pdf.SetTitle(v.Title(), true)
	p := &printer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin - 4)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(102, 102, 102)
		pdf.CellFormat(93, 4, p.tr(opts.OrgName+" • Relatórios"), "", 0, "L", false, 0, "")
		pdf.CellFormat(93, 4, p.tr("Página "+strconv.Itoa(pdf.PageNo())), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	p.header(r, opts)
	if v == Consolidated {
		p.heading("Consolidado (Categoria + Conta)", "Resumo por categoria e conta com totais de entradas e saídas (exec/prog).")
		p.kpis([]kpi{
			{"Entradas", r.Summary.Income},
			{"Saídas executadas", r.Summary.ExpenseExecuted},
			{"Saídas programadas", r.Summary.ExpenseScheduled},
			{"Resultado (total)", r.Summary.NetAll},
		})
		p.consolidatedTable(r)
	} else {
		p.heading("Lançamentos", "Lista de lançamentos conforme filtros aplicados.")
		p.kpis([]kpi{
			{"Entradas", r.Summary.Income},
			{"Saídas (exec + prog)", r.Summary.ExpenseExecuted.Add(r.Summary.ExpenseScheduled)},
			{"Resultado (total)", r.Summary.NetAll},
			{"Soma dos lançamentos", r.RowSum},
		})
		p.detailTable(r)
	}
	p.signatures()

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func (p *printer) header(r Report, opts PrintOptions) {
	pdf := p.pdf
	top := pdf.GetY()
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(17, 17, 17)
	pdf.CellFormat(90, 7, p.tr(opts.OrgName), "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(85, 85, 85)
	pdf.CellFormat(90, 5, p.tr("Relatório gerado em "+opts.GeneratedAt.Format("02/01/2006 15:04:05")), "", 0, "L", false, 0, "")

	chips := []string{
		"Período: " + r.Filter.Start.String() + " a " + r.Filter.End.String(),
		"Categoria: " + r.Labels.Category + "   Conta: " + r.Labels.Account,
		r.Labels.Status + "   Forma: " + r.Labels.PaymentMethod,
	}
	pdf.SetXY(pdfMargin+90, top)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(51, 51, 51)
	pdf.SetDrawColor(221, 221, 221)
	for _, c := range chips {
		pdf.SetX(pdfMargin + 90)
		pdf.CellFormat(96, 5, p.tr(c), "1", 2, "R", false, 0, "")
		pdf.Ln(1)
	}

	pdf.SetY(top + 20)
	pdf.Line(pdfMargin, pdf.GetY(), 210-pdfMargin, pdf.GetY())
	pdf.Ln(4)
}

func (p *printer) heading(title, subtitle string) {
	p.pdf.SetFont("Helvetica", "B", 12)
	p.pdf.SetTextColor(17, 17, 17)
	p.pdf.CellFormat(0, 6, p.tr(title), "", 1, "L", false, 0, "")
	p.pdf.SetFont("Helvetica", "", 9)
	p.pdf.SetTextColor(85, 85, 85)
	p.pdf.CellFormat(0, 5, p.tr(subtitle), "", 1, "L", false, 0, "")
	p.pdf.Ln(2)
}

func (p *printer) kpis(items []kpi) {
	pdf := p.pdf
	width := (210 - 2*pdfMargin - 3*3) / 4
	y := pdf.GetY()
	for i, k := range items {
		x := pdfMargin + float64(i)*(width+3)
		pdf.SetDrawColor(221, 221, 221)
		pdf.Rect(x, y, width, 14, "D")
		pdf.SetXY(x+2, y+1.5)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(85, 85, 85)
		pdf.CellFormat(width-4, 4, p.tr(k.label), "", 2, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(17, 17, 17)
		pdf.CellFormat(width-4, 6, p.tr(core.FormatCurrencyLocalized(k.value)), "", 0, "L", false, 0, "")
	}
	pdf.SetXY(pdfMargin, y+18)
}

func (p *printer) tableHeader(cols []column) {
	pdf := p.pdf
	pdf.SetFont("Helvetica", "B", 8.5)
	pdf.SetFillColor(243, 244, 246)
	pdf.SetTextColor(17, 17, 17)
	pdf.SetDrawColor(221, 221, 221)
	for _, c := range cols {
		pdf.CellFormat(c.width, rowHeight, p.tr(c.title), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 8.5)
}

func (p *printer) row(cols []column, values []string, bold bool) {
	pdf := p.pdf
	if bold {
		pdf.SetFont("Helvetica", "B", 8.5)
		pdf.SetFillColor(250, 250, 250)
	}
	for i, c := range cols {
		pdf.CellFormat(c.width, rowHeight, p.fit(values[i], c.width-2), "1", 0, c.align, bold, 0, "")
	}
	pdf.Ln(-1)
	if bold {
		pdf.SetFont("Helvetica", "", 8.5)
	}
}

// fit truncates s so it prints within width.
func (p *printer) fit(s string, width float64) string {
	t := p.tr(s)
	if p.pdf.GetStringWidth(t) <= width {
		return t
	}
	for len(t) > 0 && p.pdf.GetStringWidth(t+"...") > width {
		t = t[:len(t)-1]
	}
	return t + "..."
}

func (p *printer) detailTable(r Report) {
	p.tableHeader(detailColumns)
	for _, row := range r.Rows {
		p.row(detailColumns, []string{
			row.Date.String(), row.Kind.Label(), row.Status, row.Description,
			row.Category, row.Account, row.PaymentMethod, core.FormatCurrencyLocalized(row.Amount),
		}, false)
	}
	// The footer spans the first seven columns.
	span := 0.0
	for _, c := range detailColumns[:7] {
		span += c.width
	}
	p.row([]column{{"", span, "L"}, detailColumns[7]},
		[]string{"Total", core.FormatCurrencyLocalized(r.RowSum)}, true)
}

func (p *printer) consolidatedTable(r Report) {
	p.tableHeader(consolidatedColumns)
	for _, g := range r.Groups {
		exec, sched := "—", "—"
		if g.Kind == core.Expense {
			exec, sched = core.FormatCurrencyLocalized(g.Executed), core.FormatCurrencyLocalized(g.Scheduled)
		}
		p.row(consolidatedColumns, []string{
			g.Kind.Label(), g.CategoryName, g.AccountName, core.FormatCurrencyLocalized(g.Total), exec, sched,
		}, false)
	}
	span := consolidatedColumns[0].width + consolidatedColumns[1].width + consolidatedColumns[2].width
	p.row(append([]column{{"", span, "L"}}, consolidatedColumns[3:]...), []string{
		"Totais",
		core.FormatCurrencyLocalized(r.Totals.All()),
		core.FormatCurrencyLocalized(r.Totals.ExpenseExecuted),
		core.FormatCurrencyLocalized(r.Totals.ExpenseScheduled),
	}, true)
}

func (p *printer) signatures() {
	pdf := p.pdf
	pdf.Ln(16)
	y := pdf.GetY()
	half := (210 - 2*pdfMargin - 12) / 2
	pdf.SetDrawColor(51, 51, 51)
	pdf.Line(pdfMargin, y, pdfMargin+half, y)
	pdf.Line(pdfMargin+half+12, y, 210-pdfMargin, y)
	pdf.SetY(y + 1)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(half+12, 5, p.tr("Responsável (nome e assinatura)"), "", 0, "L", false, 0, "")
	pdf.CellFormat(half, 5, p.tr("Tesouraria / Conselho (nome e assinatura)"), "", 1, "L", false, 0, "")
}
