package report

import (
	"strings"

	"tutordash/internal/core"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// SearchStudents returns distinct student names containing q under Unicode
// case folding (so "strasse" finds "Straße"), in the order they first appear in sessions. An empty query matches every
// name. limit is clamped to [1, MaxSearchLimit] with DefaultSearchLimit for
// non-positive values.
func SearchStudents(sessions []core.Session, q string, limit int) []string {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	fold := cases.Fold()
	needle := foldKey(fold, strings.TrimSpace(q))
	seen := map[string]struct{}{}
	out := make([]string, 0, limit)
	for _, s := range sessions {
		if len(out) == limit {
			break
		}
		if _, ok := seen[s.StudentName]; ok {
			continue
		}
		seen[s.StudentName] = struct{}{}
		if strings.Contains(foldKey(fold, s.StudentName), needle) {
			out = append(out, s.StudentName)
		}
	}
	return out
}

// foldKey composes s to NFC before folding so precomposed and combining
// spellings of the same name compare equal.
func foldKey(fold cases.Caser, s string) string {
	return fold.String(norm.NFC.String(s))
}
