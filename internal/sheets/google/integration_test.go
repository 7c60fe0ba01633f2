//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_FetchLessonLog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	id := os.Getenv("SAMPLE_SPREADSHEET_ID")
	if id == "" {
		t.Skip("SAMPLE_SPREADSHEET_ID not set, skipping integration test")
	}
	opts := Options{
		SpreadsheetID:   id,
		Range:           os.Getenv("SHEET_RANGE"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if opts.CredentialsJSON == "" && opts.CredentialsFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	table, err := client.FetchTable(ctx)
	if err != nil {
		t.Fatalf("fetch table: %v", err)
	}
	t.Logf("fetched %d rows, header=%v", len(table.Rows), table.Header)
}
