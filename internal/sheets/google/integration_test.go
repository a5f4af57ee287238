//go:build integration

package google

import (
	"context"
	"os"
	"testing"

	"livrocaixa/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_WriteConsolidated(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" && os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx := context.Background()
	client, err := NewFromConfig(ctx, spreadsheetID, "Teste Integração")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	month := core.MonthKey{Year: 1999, Month: 12}
	rng, err := client.WriteConsolidated(ctx, month, sampleReport())
	if err != nil {
		t.Fatalf("Failed to write report: %v", err)
	}
	t.Logf("Wrote %s", rng)
}
