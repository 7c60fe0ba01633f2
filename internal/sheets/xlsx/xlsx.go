// Package xlsx reads the lesson log from a local Excel workbook, e.g. a
// download of the Google sheet used offline.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ports "tutordash/internal/sheets"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet matches the sheet name of the online workbook.
const DefaultSheet = "Daten"

type Workbook struct {
	path  string
	sheet string
}

var (
	_ ports.TableFetcher = (*Workbook)(nil)
	_ ports.Named        = (*Workbook)(nil)
)

// New returns a fetcher for the given workbook. The file is opened on every
// fetch so edits are picked up without a restart.
func New(path, sheet string) (*Workbook, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("missing XLSX_PATH")
	}
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Workbook{path: path, sheet: sheet}, nil
}

func (w *Workbook) FetchTable(ctx context.Context) (ports.Table, error) {
	if err := ctx.Err(); err != nil {
		return ports.Table{}, err
	}
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return ports.Table{}, fmt.Errorf("open workbook %s: %w", w.path, err)
	}
	defer f.Close()

	sheet := w.sheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		// Fall back to the first sheet when the configured one is absent.
		list := f.GetSheetList()
		if len(list) == 0 {
			return ports.Table{}, ports.ErrEmptySource
		}
		sheet = list[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return ports.Table{}, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return ports.TableFromValues(rows)
}

func (w *Workbook) Name() string {
	return "xlsx:" + w.path + "#" + w.sheet
}
