package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"

	"github.io/infrasutra/docreg/internal/workbook"
)

// Spreadsheet is one Google Sheets document used as a workbook.
type Spreadsheet struct {
	srv *sheets.Service
	id  string
}

var _ workbook.Workbook = (*Spreadsheet)(nil)

func (s *Spreadsheet) ID() string {
	return s.id
}

func (s *Spreadsheet) Values(ctx context.Context, tab string) ([][]string, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(s.id, tabRange(tab)).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapTabError("get values", tab, err)
	}
	values := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cellString(cell)
		}
		values = append(values, cells)
	}
	return values, nil
}

func (s *Spreadsheet) AppendRow(ctx context.Context, tab string, row []string) error {
	cells := make([]interface{}, len(row))
	for i, cell := range row {
		cells[i] = cell
	}
	_, err := s.srv.Spreadsheets.Values.Append(s.id, tabRange(tab), &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         [][]interface{}{cells},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return wrapTabError("append row", tab, err)
	}
	return nil
}

// tabRange quotes a sheet title so it is read as the whole tab.
func tabRange(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func cellString(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// wrapTabError maps the "Unable to parse range" answer Sheets gives for an
// unknown tab to ErrWorksheetNotFound.
func wrapTabError(op, tab string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest &&
		strings.Contains(apiErr.Message, "Unable to parse range") {
		return fmt.Errorf("%s: %w: %s", op, workbook.ErrWorksheetNotFound, tab)
	}
	return fmt.Errorf("%s %s: %w", op, tab, err)
}
