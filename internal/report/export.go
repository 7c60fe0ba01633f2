package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"tutordash/internal/core"
)

var csvHeader = []string{"date", "student", "hours", "pay", "provider", "start", "end", "status"}

// WriteCSV writes sessions as CSV with a header row. Numbers use a dot
// decimal separator.
func WriteCSV(w io.Writer, sessions []core.Session, now time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range sessions {
		status := "completed"
		if s.IsPlanned(now) {
			status = "planned"
		}
		record := []string{
			s.Date.String(),
			s.StudentName,
			strconv.FormatFloat(s.Hours, 'f', -1, 64),
			strconv.FormatFloat(s.Pay.Euros(), 'f', 2, 64),
			s.Provider,
			s.Start,
			s.End,
			status,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
