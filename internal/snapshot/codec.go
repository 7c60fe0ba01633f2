package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"tutordash/internal/core"
	"tutordash/internal/ingest"
)

// wireSession is the persisted form of a session.
type wireSession struct {
	Name     string  `json:"name"`
	Date     string  `json:"date"`
	Hours    float64 `json:"hours"`
	PayCents int64   `json:"pay_cents"`
	Provider string  `json:"provider,omitempty"`
	Start    string  `json:"start,omitempty"`
	End      string  `json:"end,omitempty"`
}

type wireSnapshot struct {
	ID        string                   `json:"id"`
	FetchedAt time.Time                `json:"fetched_at"`
	Source    string                   `json:"source"`
	Dropped   int                      `json:"dropped"`
	Warnings  []ingest.RowParseWarning `json:"warnings,omitempty"`
	Sessions  []wireSession            `json:"sessions"`
}

// toWire converts a session to its persisted representation.
func toWire(s core.Session) wireSession {
	return wireSession{
		Name:     s.StudentName,
		Date:     s.Date.String(),
		Hours:    s.Hours,
		PayCents: s.Pay.Cents,
		Provider: s.Provider,
		Start:    s.Start,
		End:      s.End,
	}
}

// fromWire restores a persisted session.
func fromWire(w wireSession) (core.Session, error) {
	d, err := core.ParseISODate(w.Date)
	if err != nil {
		return core.Session{}, fmt.Errorf("session %q: %w", w.Name, err)
	}
	return core.Session{
		StudentName: w.Name,
		Date:        d,
		Hours:       w.Hours,
		Pay:         core.Money{Cents: w.PayCents},
		Provider:    w.Provider,
		Start:       w.Start,
		End:         w.End,
	}, nil
}

// Marshal encodes a snapshot as JSON.
func Marshal(s *Snapshot) ([]byte, error) {
	w := wireSnapshot{
		ID:        s.ID,
		FetchedAt: s.FetchedAt.UTC(),
		Source:    s.Source,
		Dropped:   s.Dropped,
		Warnings:  s.Warnings,
		Sessions:  make([]wireSession, 0, len(s.Sessions)),
	}
	for _, sess := range s.Sessions {
		w.Sessions = append(w.Sessions, toWire(sess))
	}
	return json.Marshal(w)
}

// Unmarshal decodes a snapshot produced by Marshal.
func Unmarshal(b []byte) (*Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	s := &Snapshot{
		ID:        w.ID,
		FetchedAt: w.FetchedAt,
		Source:    w.Source,
		Dropped:   w.Dropped,
		Warnings:  w.Warnings,
		Sessions:  make([]core.Session, 0, len(w.Sessions)),
	}
	for _, ws := range w.Sessions {
		sess, err := fromWire(ws)
		if err != nil {
			return nil, err
		}
		s.Sessions = append(s.Sessions, sess)
	}
	return s, nil
}
