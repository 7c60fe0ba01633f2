package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ISODate is the wire layout for calendar dates.
const ISODate = "2006-01-02"

type (
	// Date is a calendar date stored as UTC midnight.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Session is one tutoring session row of the source sheet.
	Session struct {
		StudentName string
		Date        Date
		Hours       float64
		Pay         Money
		Provider    string // optional, "Anbieter" column
		Start       string // optional HH:MM
		End         string // optional HH:MM
	}
)

var (
	ErrInvalidDay     = errors.New("invalid day")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidHours   = errors.New("invalid hours")
	ErrInvalidDate    = errors.New("invalid date")
	ErrEmptyStudent   = errors.New("empty student name")
	ErrNegativeAmount = errors.New("negative amount")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseISODate parses a yyyy-mm-dd string.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(ISODate, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// MonthKey returns the YYYY-MM bucket the date belongs to.
func (d Date) MonthKey() string {
	return d.Time.Format("2006-01")
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(ISODate)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Validate checks the row-level invariants of a session.
func (s Session) Validate() error {
	if strings.TrimSpace(s.StudentName) == "" {
		return ErrEmptyStudent
	}
	if err := s.Date.Validate(); err != nil {
		return err
	}
	if s.Hours < 0 || math.IsNaN(s.Hours) || math.IsInf(s.Hours, 0) {
		return ErrInvalidHours
	}
	return s.Pay.Validate()
}

// IsPlanned reports whether the session lies after the calendar day of now.
func (s Session) IsPlanned(now time.Time) bool {
	return s.Date.After(DateOf(now).Time)
}

// Rate returns pay per hour. ok is false when the session has no hours.
func (s Session) Rate() (rate float64, ok bool) {
	if s.Hours <= 0 {
		return 0, false
	}
	return s.Pay.Euros() / s.Hours, true
}
