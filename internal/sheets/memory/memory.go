package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	ports "tutordash/internal/sheets"
)

// Header is the column layout of the lesson log.
var Header = []string{"Datum:", "Name:", "Anfang:", "Ende:", "Anbieter:", "Stunden:", "Lohn:"}

// Store is an in-memory table source used for development and tests.
type Store struct {
	mu     sync.Mutex
	values [][]string
	err    error
	name   string
}

var (
	_ ports.TableFetcher = (*Store)(nil)
	_ ports.Named        = (*Store)(nil)
)

// New returns a store serving values (header row first).
func New(values [][]string) *Store {
	s := &Store{name: "memory"}
	s.Set(values)
	return s
}

// NewFromCSV loads a seed file exported from the lesson sheet.
func NewFromCSV(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		r.Comma = '\t'
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read seed csv: %w", err)
	}
	s := New(records)
	s.name = "csv:" + path
	return s, nil
}

// NewSample builds a deterministic demo lesson log around now: roughly a year
// of completed lessons plus a few planned ones next month.
func NewSample(now time.Time) *Store {
	students := []struct {
		name     string
		provider string
		hours    string
		pay      string
	}{
		{"Anna Schmidt", "Privat", "1,5", "45,00"},
		{"Ben Müller", "Schülerhilfe", "1", "22,50"},
		{"Clara Weber", "Privat", "2", "60,00"},
		{"David Fischer", "Privat", "1", "30,00"},
	}
	values := [][]string{Header}
	start := time.Date(now.Year()-1, now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for m := 0; m <= 12; m++ {
		month := start.AddDate(0, m, 0)
		for i, st := range students {
			if (m+i)%5 == 4 {
				continue // holidays
			}
			day := month.AddDate(0, 0, 2+i*6)
			values = append(values, []string{
				day.Format("02.01.2006"), st.name, "15:00", "16:30", st.provider, st.hours, st.pay,
			})
		}
	}
	next := time.Date(now.Year(), now.Month()+1, 10, 0, 0, 0, 0, time.UTC)
	values = append(values,
		[]string{next.Format("02.01.2006"), "Anna Schmidt", "15:00", "16:30", "Privat", "1,5", "45,00"},
		[]string{next.AddDate(0, 0, 3).Format("02.01.2006"), "Clara Weber", "17:00", "19:00", "Privat", "2", "60,00"},
	)
	s := New(values)
	s.name = "sample"
	return s
}

// Set replaces the table served by the store.
func (s *Store) Set(values [][]string) {
	cp := make([][]string, len(values))
	for i, row := range values {
		cp[i] = append([]string(nil), row...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = cp
}

// Fail makes subsequent fetches return err until called with nil.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) FetchTable(ctx context.Context) (ports.Table, error) {
	if err := ctx.Err(); err != nil {
		return ports.Table{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return ports.Table{}, s.err
	}
	return ports.TableFromValues(s.values)
}

func (s *Store) Name() string {
	return s.name
}
