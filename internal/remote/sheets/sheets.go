// Package sheets backs the remote record store with a Google Sheets
// tab: one record per row, six ordered columns
// (id, date, category, paymentMethod, amount, memo), first row
// reserved as a header.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"kakeibo/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var headerRow = []any{"id", "date", "category", "paymentMethod", "amount", "memo"}

type Store struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	mu      sync.Mutex
	sheetID int64
	haveID  bool
}

// NewFromEnv creates a sheets-backed store from environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Optional: GOOGLE_SHEET_NAME
// (default "Records"). Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Store, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Records"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Store{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// newSheetsService initializes a Sheets service using service account
// credentials from the environment.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (s *Store) dataRange() string {
	return fmt.Sprintf("%s!A2:F", s.sheetName)
}

// FetchAll reads every data row below the header.
func (s *Store) FetchAll(ctx context.Context) ([]core.Record, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.dataRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.dataRange(), err)
	}

	records := make([]core.Record, 0, len(resp.Values))
	for i, row := range resp.Values {
		rec, err := recordFromRow(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unparseable sheet row",
				"sheet", s.sheetName, "row", i+2, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Add appends one record after the last data row.
func (s *Store) Add(ctx context.Context, rec core.Record) error {
	vr := &gsheet.ValueRange{Values: [][]any{rowFromRecord(rec)}}
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.dataRange(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", s.sheetName, err)
	}
	return nil
}

// Update rewrites the row whose first cell matches the record id.
func (s *Store) Update(ctx context.Context, rec core.Record) error {
	row, err := s.findRow(ctx, rec.ID)
	if err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!A%d:F%d", s.sheetName, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{rowFromRecord(rec)}}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// Delete removes the row whose first cell matches the id.
func (s *Store) Delete(ctx context.Context, id string) error {
	row, err := s.findRow(ctx, id)
	if err != nil {
		return err
	}
	sheetID, err := s.lookupSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1), // zero-based, end exclusive
					EndIndex:   int64(row),
				},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", row, err)
	}
	return nil
}

// ReplaceAll clears the data rows, rewrites the header, and installs
// the given set verbatim.
func (s *Store) ReplaceAll(ctx context.Context, records []core.Record) error {
	_, err := s.svc.Spreadsheets.Values.
		Clear(s.spreadsheetID, s.dataRange(), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", s.dataRange(), err)
	}

	values := [][]any{headerRow}
	for _, rec := range records {
		values = append(values, rowFromRecord(rec))
	}
	rng := fmt.Sprintf("%s!A1:F%d", s.sheetName, len(values))
	vr := &gsheet.ValueRange{Values: values}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Replaced remote sheet contents",
		"sheet", s.sheetName, "count", len(records))
	return nil
}

// findRow returns the 1-based sheet row holding the given id.
func (s *Store) findRow(ctx context.Context, id string) (int, error) {
	rng := fmt.Sprintf("%s!A2:A", s.sheetName)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 && cellString(row[0]) == id {
			return i + 2, nil
		}
	}
	return 0, fmt.Errorf("record %s: %w", id, core.ErrNotFound)
}

func (s *Store) lookupSheetID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.haveID {
		return s.sheetID, nil
	}

	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.sheetName {
			s.sheetID = sh.Properties.SheetId
			s.haveID = true
			return s.sheetID, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", s.sheetName)
}
