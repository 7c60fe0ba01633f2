package sheets

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptySource is returned by adapters when the upstream range holds no
// data rows at all.
var ErrEmptySource = errors.New("source returned no rows")

// Table is a raw, loosely typed sheet range: the first row of the range
// becomes Header, everything below it Rows. Cells are trimmed strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// Ports for outbound adapters.
type (
	// TableFetcher reads the raw session table from an upstream source.
	TableFetcher interface {
		FetchTable(ctx context.Context) (Table, error)
	}

	// Named is implemented by fetchers that can describe their origin for logs.
	Named interface {
		Name() string
	}
)

// TableFromValues splits a values matrix into header and data rows.
// It returns ErrEmptySource when there is no header or no data row.
func TableFromValues(values [][]string) (Table, error) {
	if len(values) < 2 {
		return Table{}, ErrEmptySource
	}
	t := Table{Header: trimAll(values[0]), Rows: make([][]string, 0, len(values)-1)}
	for _, row := range values[1:] {
		t.Rows = append(t.Rows, trimAll(row))
	}
	return t, nil
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
