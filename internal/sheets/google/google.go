package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"budgetcal/internal/log"
	ports "budgetcal/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Exporter writes calendar months to tabs of one spreadsheet.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ ports.MonthExporter = (*Exporter)(nil)

// Credentials returns service account JSON, preferring the inline value over
// the file path. GOOGLE_APPLICATION_CREDENTIALS is used when both are empty.
func Credentials(inlineJSON, file string) ([]byte, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)
	if inlineJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inlineJSON != "":
		return []byte(inlineJSON), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// New creates an exporter authenticated with service account credentials.
func New(ctx context.Context, spreadsheetID string, credentialsJSON []byte) (*Exporter, error) {
	if len(credentialsJSON) == 0 {
		return nil, errors.New("empty service account credentials")
	}
	return NewWithOptions(ctx, spreadsheetID,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions creates an exporter with explicit client options.
func NewWithOptions(ctx context.Context, spreadsheetID string, opts ...goption.ClientOption) (*Exporter, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentSheets).InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", spreadsheetID)
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// ExportMonth writes the month to its own tab, creating the tab on first
// export and clearing previous content so removed days do not linger.
func (e *Exporter) ExportMonth(ctx context.Context, m ports.MonthSheet) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	tab := m.TabName()
	logger := log.FromContext(ctx).WithComponent(log.ComponentSheets)

	created, err := e.ensureTab(ctx, tab)
	if err != nil {
		return err
	}
	if created {
		logger.InfoContext(ctx, "Created month tab", log.FieldSheet, tab)
	}

	clearRange := a1(tab, ports.Columns)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := m.Rows()
	writeRange := a1(tab, "A1")
	resp, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", writeRange, err)
	}

	logger.DebugContext(ctx, "Month exported",
		log.FieldSheet, tab,
		log.FieldCount, len(rows),
		"updated_cells", resp.UpdatedCells)
	return nil
}

// ensureTab adds the tab when the spreadsheet lacks it and reports whether
// it did.
func (e *Exporter) ensureTab(ctx context.Context, tab string) (bool, error) {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return false, nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: tab},
			},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("add tab %s: %w", tab, err)
	}
	return true, nil
}

func a1(tab, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(tab, "'", "''"), cells)
}
