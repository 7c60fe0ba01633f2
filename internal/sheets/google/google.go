package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ports "tutordash/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultRange is the lesson log of the tutoring workbook.
const DefaultRange = "Daten!A1:H"

// valuesGetter is the slice of the Sheets API the client needs.
type valuesGetter interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
}

type apiGetter struct {
	svc *gsheet.Service
}

func (g apiGetter) Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

type Client struct {
	values        valuesGetter
	spreadsheetID string
	rng           string
}

// Ensure interface conformance
var (
	_ ports.TableFetcher = (*Client)(nil)
	_ ports.Named        = (*Client)(nil)
)

// Options configures the Sheets client.
type Options struct {
	SpreadsheetID   string
	Range           string // default DefaultRange
	CredentialsJSON string // inline service account JSON
	CredentialsFile string // path to a service account JSON file
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing SAMPLE_SPREADSHEET_ID")
	}
	rng := strings.TrimSpace(opts.Range)
	if rng == "" {
		rng = DefaultRange
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{values: apiGetter{svc: svc}, spreadsheetID: id, rng: rng}, nil
}

// newSheetsService initializes a read-only Sheets service from service account
// credentials. Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither inline
// JSON nor a file path is configured.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inline != "":
		credentialsJSON = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// FetchTable reads the configured range and returns it as a raw table.
func (c *Client) FetchTable(ctx context.Context) (ports.Table, error) {
	if c.values == nil {
		return ports.Table{}, errors.New("sheets service not initialized")
	}
	values, err := c.values.Get(ctx, c.spreadsheetID, c.rng)
	if err != nil {
		return ports.Table{}, fmt.Errorf("read range %s: %w", c.rng, err)
	}
	return valuesToTable(values)
}

func (c *Client) Name() string {
	return "sheets:" + c.rng
}
