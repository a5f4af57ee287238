package report

import (
	"bufio"
	"io"
	"strings"

	"livrocaixa/internal/core"
)

const bom = "\ufeff"

var (
	detailHeader       = []string{"Data", "Tipo", "Status", "Descricao", "Categoria", "Conta", "Forma", "Valor"}
	consolidatedHeader = []string{"Tipo", "Categoria", "Conta", "Total", "Executadas", "Programadas"}
	metaHeader         = []string{"PeriodoInicio", "PeriodoFim", "FiltroCategoria", "FiltroConta", "FiltroStatus", "FiltroForma"}
)

func (r Report) meta() []string {
	return []string{
		r.Filter.Start.String(), r.Filter.End.String(),
		r.Labels.Category, r.Labels.Account, r.Labels.Status, r.Labels.PaymentMethod,
	}
}

// DetailRecords returns the header and one record per listed transaction.
func (r Report) DetailRecords() [][]string {
	out := [][]string{append(append([]string{}, detailHeader...), metaHeader...)}
	meta := r.meta()
	for _, row := range r.Rows {
		rec := []string{
			row.Date.String(), row.Kind.Label(), row.Status, row.Description,
			row.Category, row.Account, row.PaymentMethod, row.Amount.Plain(),
		}
		out = append(out, append(rec, meta...))
	}
	return out
}

// ConsolidatedRecords returns the header and one record per group.
func (r Report) ConsolidatedRecords() [][]string {
	out := [][]string{append(append([]string{}, consolidatedHeader...), metaHeader...)}
	meta := r.meta()
	for _, g := range r.Groups {
		exec, sched := "", ""
		if g.Kind != core.Income {
			exec, sched = g.Executed.Plain(), g.Scheduled.Plain()
		}
		rec := []string{g.Kind.Label(), g.CategoryName, g.AccountName, g.Total.Plain(), exec, sched}
		out = append(out, append(rec, meta...))
	}
	return out
}

// WriteCSV writes records with a leading byte-order mark, comma separated
// and LF terminated. A field is quoted when it holds a comma, a quote, a
// semicolon or a line break.
func WriteCSV(w io.Writer, records [][]string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom); err != nil {
		return err
	}
	for i, rec := range records {
		if i > 0 {
			bw.WriteByte('\n')
		}
		for j, field := range rec {
			if j > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(escapeField(field))
		}
	}
	return bw.Flush()
}

func escapeField(s string) string {
	escaped := strings.ReplaceAll(s, `"`, `""`)
	if strings.ContainsAny(s, "\",;\r\n") {
		return `"` + escaped + `"`
	}
	return escaped
}
