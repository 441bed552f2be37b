package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/core"
	ports "expensetracker/internal/sheets"
)

const idColumn = "F"

// Client appends expenses to a per-year tab such as "2024 Expenses".
// Columns: date, category, amount, currency, description, expense id,
// recurring rule id. Missing tabs are created on first use.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	mu   sync.Mutex
	tabs map[string]bool
}

var _ ports.Exporter = (*Client)(nil)

// Options configures the client. Exactly one credential source is used,
// JSON first. Extra options are passed to the Sheets service.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	ClientOptions   []goption.ClientOption
}

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Expenses"
	}

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		creds, err := loadCredentials(ctx, opts)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID, "sheet_base", base)

	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: base, tabs: map[string]bool{}}, nil
}

func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func yearPrefixedName(base string, year int) string {
	return fmt.Sprintf("%d %s", year, base)
}

func (c *Client) sheetFor(e core.Expense) string {
	return yearPrefixedName(c.sheetBase, e.Date.Year())
}

// Export appends e unless a row with the same expense id already exists.
func (c *Client) Export(ctx context.Context, e core.Expense) (string, error) {
	if e.ID == "" {
		return "", core.ErrMissingID
	}
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := c.sheetFor(e)
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}
	if ref, found, err := c.findRow(ctx, sheet, e.ID); err != nil {
		return "", err
	} else if found {
		slog.InfoContext(ctx, "Expense already exported", "expense_id", e.ID, "ref", ref)
		return ref, nil
	}

	row := []any{
		e.Date.String(),
		string(e.Category),
		core.RoundAmount(e.Amount),
		string(e.Currency),
		e.Description,
		e.ID,
		e.RecurringRuleID,
	}
	rng := fmt.Sprintf("%s!A:G", sheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", classify(fmt.Errorf("append to sheet %s: %w", sheet, err))
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

func (c *Client) findRow(ctx context.Context, sheet, id string) (string, bool, error) {
	rng := fmt.Sprintf("%s!%s:%s", sheet, idColumn, idColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", false, classify(fmt.Errorf("read %s: %w", rng, err))
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return fmt.Sprintf("%s!A%d:G%d", sheet, i+1, i+1), true, nil
		}
	}
	return "", false, nil
}

// ensureSheet adds the tab when the spreadsheet does not have it yet.
// Back-dated expenses land in earlier years' tabs, which may never have
// been created.
func (c *Client) ensureSheet(ctx context.Context, sheet string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tabs[sheet] {
		return nil
	}
	if c.tabs == nil {
		c.tabs = map[string]bool{}
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("list sheets: %w", err))
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			c.tabs[s.Properties.Title] = true
		}
	}
	if c.tabs[sheet] {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return classify(fmt.Errorf("add sheet %s: %w", sheet, err))
	}
	slog.InfoContext(ctx, "Created sheet", "sheet", sheet)
	c.tabs[sheet] = true
	return nil
}

// classify marks client errors from the API as rejected. Rate limiting and
// request timeouts stay retryable.
func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests, apiErr.Code == http.StatusRequestTimeout:
		return err
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return fmt.Errorf("%w: %w", ports.ErrRejected, err)
	default:
		return err
	}
}
