// Package ingest turns a raw lesson table into validated sessions. Bad rows
// are dropped and reported; only an unusable source fails the whole parse.
package ingest

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"tutordash/internal/apperr"
	"tutordash/internal/core"
	"tutordash/internal/sheets"
)

// RowParseWarning describes a dropped row. Row is the 1-based sheet row
// number, header included, so it matches what the user sees in the sheet.
type RowParseWarning struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (w RowParseWarning) String() string {
	return fmt.Sprintf("row %d: %s %q: %s", w.Row, w.Column, w.Value, w.Reason)
}

// Result is the outcome of a parse.
type Result struct {
	Sessions []core.Session
	Dropped  int
	Warnings []RowParseWarning
}

var dateLayouts = []string{"02.01.2006", "2.1.2006", core.ISODate, "02/01/2006", "02.01.06"}

type columns struct {
	name, date, hours, pay int
	provider, start, end   int
}

var aliases = map[string][]string{
	"name":     {"name", "student", "student_name", "schüler"},
	"date":     {"datum", "date"},
	"hours":    {"stunden", "hours"},
	"pay":      {"lohn", "pay", "betrag"},
	"provider": {"anbieter", "provider"},
	"start":    {"anfang", "start"},
	"end":      {"ende", "end"},
}

func locate(header []string) (columns, error) {
	find := func(key string) int {
		for _, alias := range aliases[key] {
			if i := indexOf(header, alias); i >= 0 {
				return i
			}
		}
		return -1
	}
	c := columns{
		name: find("name"), date: find("date"), hours: find("hours"), pay: find("pay"),
		provider: find("provider"), start: find("start"), end: find("end"),
	}
	var missing []string
	for key, idx := range map[string]int{"name": c.name, "date": c.date, "hours": c.hours, "pay": c.pay} {
		if idx < 0 {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return c, fmt.Errorf("missing columns %s; got headers=%v", strings.Join(missing, ","), header)
	}
	return c, nil
}

// Parse validates every row of t. It fails with a data source error only
// when the table has no non-blank rows or lacks one of the required columns.
func Parse(t sheets.Table) (Result, error) {
	if len(t.Header) == 0 || len(t.Rows) == 0 {
		return Result{}, apperr.DataSource(sheets.ErrEmptySource, "lesson table is empty")
	}
	cols, err := locate(t.Header)
	if err != nil {
		return Result{}, apperr.DataSource(err, "lesson table has an unexpected layout")
	}

	res := Result{Sessions: make([]core.Session, 0, len(t.Rows))}
	seen := 0
	for i, row := range t.Rows {
		if blank(row) {
			continue
		}
		seen++
		s, warn := parseRow(row, cols)
		if warn != nil {
			warn.Row = i + 2
			res.Dropped++
			res.Warnings = append(res.Warnings, *warn)
			continue
		}
		res.Sessions = append(res.Sessions, s)
	}
	if seen == 0 {
		return Result{}, apperr.DataSource(sheets.ErrEmptySource, "lesson table has only blank rows")
	}
	return res, nil
}

func parseRow(row []string, c columns) (core.Session, *RowParseWarning) {
	name := strings.TrimSpace(safeGet(row, c.name))
	if name == "" {
		return core.Session{}, &RowParseWarning{Column: "name", Reason: "blank student name"}
	}
	rawDate := safeGet(row, c.date)
	date, ok := parseDate(rawDate)
	if !ok {
		return core.Session{}, &RowParseWarning{Column: "date", Value: rawDate, Reason: "unparseable date"}
	}
	rawHours := safeGet(row, c.hours)
	hours, err := core.ParseHours(rawHours)
	if err != nil {
		return core.Session{}, &RowParseWarning{Column: "hours", Value: rawHours, Reason: "hours must be a non-negative number"}
	}
	rawPay := safeGet(row, c.pay)
	cents, err := core.ParseDecimalToCents(rawPay)
	if err != nil {
		return core.Session{}, &RowParseWarning{Column: "pay", Value: rawPay, Reason: "pay must be a non-negative amount"}
	}
	s := core.Session{
		StudentName: name,
		Date:        date,
		Hours:       hours,
		Pay:         core.Money{Cents: cents},
		Provider:    safeGet(row, c.provider),
		Start:       clock(safeGet(row, c.start)),
		End:         clock(safeGet(row, c.end)),
	}
	if err := s.Validate(); err != nil {
		return core.Session{}, &RowParseWarning{Column: "row", Reason: err.Error()}
	}
	return s, nil
}

func parseDate(s string) (core.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), true
		}
	}
	return core.Date{}, false
}

// clock normalises an optional HH:MM cell; anything else is discarded.
func clock(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ""
	}
	return t.Format("15:04")
}

// indexOf finds a header case-insensitively, ignoring the trailing colon the
// lesson sheet puts after every column name.
func indexOf(arr []string, target string) int {
	for i, v := range arr {
		v = strings.TrimSuffix(strings.TrimSpace(v), ":")
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return strings.TrimSpace(arr[idx])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
