// Package google writes consolidated ledger reports to a Google Sheets
// spreadsheet, one sheet per month.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"livrocaixa/internal/core"
	"livrocaixa/internal/report"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// sheetBase is the sheet name without the month ("Consolidado");
	// the month key is prefixed per sheet.
	sheetBase string
}

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID, sheetBase string) *Client {
	sheetBase = strings.TrimSpace(sheetBase)
	if sheetBase == "" {
		sheetBase = "Consolidado"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: sheetBase}
}

// NewFromConfig creates a client authenticated with service account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromConfig(ctx context.Context, spreadsheetID, sheetBase string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, sheetBase), nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// SheetName is the sheet holding month's report: "<YYYY-MM> <base>", unless
// base already starts with that month.
func SheetName(base string, month core.MonthKey) string {
	base = strings.TrimSpace(base)
	prefix := month.String()
	if strings.HasPrefix(base, prefix+" ") {
		return base
	}
	return prefix + " " + base
}

// WriteConsolidated replaces the month's sheet with the consolidated table
// of r and returns the written range.
func (c *Client) WriteConsolidated(ctx context.Context, month core.MonthKey, r report.Report) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	name := SheetName(c.sheetBase, month)
	if err := c.ensureSheet(ctx, name); err != nil {
		return "", err
	}

	clearRange := fmt.Sprintf("'%s'!A:F", name)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	values := ConsolidatedValues(r)
	rng := fmt.Sprintf("'%s'!A1:F%d", name, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	return rng, nil
}

func (c *Client) ensureSheet(ctx context.Context, name string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	return nil
}

// ConsolidatedValues lays r out as a header, one row per group and a totals
// row. Amounts are numbers so the sheet can sum them.
func ConsolidatedValues(r report.Report) [][]any {
	out := [][]any{{"Tipo", "Categoria", "Conta", "Total", "Executadas", "Programadas"}}
	for _, g := range r.Groups {
		row := []any{g.Kind.Label(), g.CategoryName, g.AccountName, number(g.Total), "", ""}
		if g.Kind == core.Expense {
			row[4], row[5] = number(g.Executed), number(g.Scheduled)
		}
		out = append(out, row)
	}
	return append(out, []any{
		"Totais", "", "",
		number(r.Totals.All()), number(r.Totals.ExpenseExecuted), number(r.Totals.ExpenseScheduled),
	})
}

func number(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}
