// Package http serves the dashboard page and its JSON API.
//
// This file binds query strings into structs and validates them.
package http

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"tutordash/internal/apperr"
	"tutordash/internal/core"
	"tutordash/internal/report"

	"github.com/go-playground/validator/v10"
)

// RangeQuery holds the date-window parameters shared by the analytics routes.
type RangeQuery struct {
	QuickRange string `query:"quick_range" validate:"omitempty,oneof=all last_7_days last_30_days last_90_days year_to_date custom last7 last30 last90 ytd"`
	StartDate  string `query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `query:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// TopStudentsQuery adds the leaderboard size.
type TopStudentsQuery struct {
	RangeQuery
	TopN int `query:"top_n" validate:"min=1,max=100"`
}

// SearchQuery binds /api/student-search.
type SearchQuery struct {
	Q     string `query:"q" validate:"max=100"`
	Limit int    `query:"limit" validate:"min=1,max=50"`
}

// QueryValidator wraps a validator that reports failures by query name.
type QueryValidator struct {
	v *validator.Validate
}

func NewQueryValidator() *QueryValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	return &QueryValidator{v: v}
}

// Validate returns an apperr validation error naming every bad parameter.
func (qv *QueryValidator) Validate(s any) error {
	err := qv.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format, got %q", fe.Field(), fe.Value())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// ParseRangeQuery reads the range parameters. quick_range is case-insensitive.
func ParseRangeQuery(q url.Values) RangeQuery {
	return RangeQuery{
		QuickRange: strings.ToLower(strings.TrimSpace(q.Get("quick_range"))),
		StartDate:  strings.TrimSpace(q.Get("start_date")),
		EndDate:    strings.TrimSpace(q.Get("end_date")),
	}
}

// ParseTopStudentsQuery reads range parameters plus top_n, defaulting to defaultN.
func ParseTopStudentsQuery(q url.Values, defaultN int) (TopStudentsQuery, error) {
	n, err := intParam(q, "top_n", defaultN)
	if err != nil {
		return TopStudentsQuery{}, err
	}
	return TopStudentsQuery{RangeQuery: ParseRangeQuery(q), TopN: n}, nil
}

func ParseSearchQuery(q url.Values) (SearchQuery, error) {
	limit, err := intParam(q, "limit", report.DefaultSearchLimit)
	if err != nil {
		return SearchQuery{}, err
	}
	return SearchQuery{Q: strings.TrimSpace(q.Get("q")), Limit: limit}, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// Resolve validates rq and turns it into a concrete window relative to now.
func (rq RangeQuery) Resolve(qv *QueryValidator, now time.Time) (report.DateRange, error) {
	if err := qv.Validate(rq); err != nil {
		return report.DateRange{}, err
	}
	quick, err := report.ParseQuickRange(rq.QuickRange)
	if err != nil {
		return report.DateRange{}, err
	}
	start, err := optionalDate("start_date", rq.StartDate)
	if err != nil {
		return report.DateRange{}, err
	}
	end, err := optionalDate("end_date", rq.EndDate)
	if err != nil {
		return report.DateRange{}, err
	}
	return report.ResolveRange(quick, start, end, now)
}

func optionalDate(name, v string) (*core.Date, error) {
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseISODate(v)
	if err != nil {
		return nil, apperr.Validation("%s must be a date in YYYY-MM-DD format, got %q", name, v)
	}
	return &d, nil
}
