// Package csvimport turns bank statement exports into validated transaction
// rows and commits the selected ones in batches.
package csvimport

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"livrocaixa/internal/core"
)

// Row-level error messages, shown next to the offending line.
const (
	MsgInvalidDate     = "Data inválida (dd/mm/aaaa)"
	MsgUnknownKind     = "Tipo não reconhecido (CRÉDITO/DÉBITO)"
	MsgInvalidAmount   = "Valor inválido"
	MsgNonPositive     = "Valor deve ser maior que 0"
	MsgEmptyDescriptor = "Descrição vazia"
)

type column struct {
	key   string // normalized header
	label string // name reported when missing
}

var requiredColumns = []column{
	{"data", "Data"},
	{"transacao", "Transação"},
	{"tipo transacao", "Tipo Transação"},
	{"identificacao", "Identificação"},
	{"valor", "Valor"},
}

// ParsedRow is one data line of the file. Only rows with OK and Include set
// are committed.
type ParsedRow struct {
	Line        int // 1-based position among non-blank lines
	Raw         string
	Date        core.Date
	Kind        core.Kind
	Description string
	Amount      core.Money
	OK          bool
	Err         *core.ValidationError

	Include    bool
	AccountID  string
	CategoryID string
	Status     core.ExpenseStatus
}

// Defaults pre-populate the editable targets of every valid row.
type Defaults struct {
	AccountID         string
	IncomeCategoryID  string
	ExpenseCategoryID string
	ExpenseStatus     core.ExpenseStatus
}

func (d Defaults) categoryFor(k core.Kind) string {
	if k == core.Expense {
		return d.ExpenseCategoryID
	}
	return d.IncomeCategoryID
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize trims, strips diacritics and lowercases s.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return strings.ToLower(out)
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(strings.TrimSuffix(l, "\r"))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// DetectDelimiter picks ';' when the first non-blank line has strictly more
// semicolons than commas, ',' otherwise.
func DetectDelimiter(text string) rune {
	first := ""
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			first = l
			break
		}
	}
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

// SplitLine splits one line on delim, honoring double quotes. A doubled quote
// inside a quoted section is a literal quote. Fields are trimmed.
func SplitLine(line string, delim rune) []string {
	var (
		out      []string
		cur      strings.Builder
		inQuotes bool
	)
	rs := []rune(line)
	for i := 0; i < len(rs); i++ {
		ch := rs[i]
		if ch == '"' {
			if inQuotes && i+1 < len(rs) && rs[i+1] == '"' {
				cur.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
			continue
		}
		if !inQuotes && ch == delim {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteRune(ch)
	}
	return append(out, strings.TrimSpace(cur.String()))
}

// Classify maps a transaction type label to a kind by substring match on the
// normalized text. It returns "" when nothing matches.
func Classify(label string) core.Kind {
	x := Normalize(label)
	switch {
	case strings.Contains(x, "credito"), strings.Contains(x, "entrada"), strings.Contains(x, "receb"):
		return core.Income
	case strings.Contains(x, "debito"), strings.Contains(x, "saida"), strings.Contains(x, "pag"):
		return core.Expense
	}
	return ""
}

// Parse reads the whole file. A header lacking required columns yields a
// *core.SchemaMismatchError and no rows; a file without data lines yields
// core.ErrEmptyFile.
func Parse(text string, defaults Defaults) ([]ParsedRow, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	delim := DetectDelimiter(text)
	lines := splitLines(text)
	if len(lines) < 2 {
		return nil, core.ErrEmptyFile
	}

	header := SplitLine(lines[0], delim)
	idx := make(map[string]int, len(requiredColumns))
	for i, h := range header {
		key := Normalize(h)
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c.key]; !ok {
			missing = append(missing, c.label)
		}
	}
	if len(missing) > 0 {
		return nil, &core.SchemaMismatchError{Missing: missing}
	}

	rows := make([]ParsedRow, 0, len(lines)-1)
	for i, line := range lines[1:] {
		cols := SplitLine(line, delim)
		get := func(key string) string {
			if j := idx[key]; j < len(cols) {
				return cols[j]
			}
			return ""
		}
		row := parseRow(get("data"), get("transacao"), get("tipo transacao"), get("identificacao"), get("valor"))
		row.Line = i + 2
		row.Raw = line
		if row.OK {
			row.Include = true
		}
		row.AccountID = defaults.AccountID
		row.CategoryID = defaults.categoryFor(row.Kind)
		row.Status = statusOrExecuted(defaults.ExpenseStatus)
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(dateCol, txCol, typeCol, identCol, valueCol string) ParsedRow {
	var row ParsedRow
	date, dateErr := core.ParseLocalizedDate(dateCol)
	if dateErr == nil {
		row.Date = date
	}
	row.Kind = Classify(typeCol)
	amount, amountErr := core.ParseLocalizedAmount(valueCol)
	if amountErr == nil {
		row.Amount = amount
	}
	if identCol != "" {
		row.Description = strings.TrimSpace(txCol + " - " + identCol)
	} else {
		row.Description = strings.TrimSpace(txCol)
	}

	switch {
	case dateErr != nil:
		row.Err = &core.ValidationError{Field: "Data", Reason: MsgInvalidDate, Err: core.ErrInvalidDate}
	case row.Kind == "":
		row.Err = &core.ValidationError{Field: "Tipo Transação", Reason: MsgUnknownKind, Err: core.ErrUnrecognizedKind}
	case amountErr != nil:
		row.Err = &core.ValidationError{Field: "Valor", Reason: MsgInvalidAmount, Err: core.ErrInvalidAmount}
	case amount.Cents <= 0:
		row.Err = &core.ValidationError{Field: "Valor", Reason: MsgNonPositive, Err: core.ErrNonPositiveAmount}
	case row.Description == "":
		row.Err = &core.ValidationError{Field: "Transação", Reason: MsgEmptyDescriptor, Err: core.ErrEmptyDescription}
	default:
		row.OK = true
	}
	return row
}

func statusOrExecuted(s core.ExpenseStatus) core.ExpenseStatus {
	if s == core.Scheduled {
		return core.Scheduled
	}
	return core.Executed
}
