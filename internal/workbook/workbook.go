// Package workbook defines the storage contract shared by the Google Sheets
// and SQLite backends: a named set of tabs, each an ordered list of string
// rows, where row 0 is normally the header.
package workbook

import (
	"context"
	"errors"
)

var ErrWorksheetNotFound = errors.New("worksheet not found")

type Workbook interface {
	// Values returns every row of the tab, header included.
	Values(ctx context.Context, tab string) ([][]string, error)
	// AppendRow adds one row after the last non-empty row of the tab.
	AppendRow(ctx context.Context, tab string, row []string) error
}

// Opener hands out a connected workbook. Implementations may connect
// lazily on first use.
type Opener interface {
	Open(ctx context.Context) (Workbook, error)
}

type OpenerFunc func(ctx context.Context) (Workbook, error)

func (f OpenerFunc) Open(ctx context.Context) (Workbook, error) {
	return f(ctx)
}

// Static returns an Opener that always yields wb.
func Static(wb Workbook) Opener {
	return OpenerFunc(func(context.Context) (Workbook, error) {
		return wb, nil
	})
}
