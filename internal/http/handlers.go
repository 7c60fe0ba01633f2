package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"tutordash/internal/apperr"
	"tutordash/internal/core"
	"tutordash/internal/log"
	"tutordash/internal/report"
	"tutordash/internal/snapshot"
)

const maxStudentNameLen = 100

type snapshotMeta struct {
	ID          string    `json:"id"`
	FetchedAt   time.Time `json:"fetched_at"`
	Source      string    `json:"source"`
	Sessions    int       `json:"sessions"`
	DroppedRows int       `json:"dropped_rows"`
}

func metaOf(snap *snapshot.Snapshot) snapshotMeta {
	return snapshotMeta{
		ID:          snap.ID,
		FetchedAt:   snap.FetchedAt.UTC(),
		Source:      snap.Source,
		Sessions:    len(snap.Sessions),
		DroppedRows: snap.Dropped,
	}
}

type metricsResponse struct {
	report.KPIs
	Range    report.DateRange `json:"range"`
	Snapshot snapshotMeta     `json:"snapshot"`
}

type topStudentsResponse struct {
	Students []report.StudentTotal `json:"students"`
	Range    report.DateRange      `json:"range"`
	Snapshot snapshotMeta          `json:"snapshot"`
}

type monthlyResponse struct {
	Months []report.MonthPoint `json:"months"`
	Range  report.DateRange    `json:"range"`
}

type yearlyResponse struct {
	Years []report.YearSummary `json:"years"`
}

type searchResponse struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
}

type refreshResponse struct {
	Status   string       `json:"status"`
	Snapshot snapshotMeta `json:"snapshot"`
}

// computeFunc builds a response value from a snapshot and the pinned request time.
type computeFunc func(snap *snapshot.Snapshot, now time.Time) (any, error)

// serveComputed answers from the response cache when it can and otherwise
// runs compute and memoises the encoded result. Errors are never cached.
func (s *Server) serveComputed(w http.ResponseWriter, r *http.Request, op string, compute computeFunc) {
	snap, err := s.snapshots.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err, op)
		return
	}
	now := s.clock()
	s.snapshotHeaders(w, snap, now)

	key := cacheKey(snap.ID, core.DateOf(now).String(), r)
	if body, ok := s.responses.Get(key); ok {
		s.metrics.CacheHit()
		s.writeJSON(w, r, NewJSONResponse().Cache(true).Raw(body))
		return
	}
	s.metrics.CacheMiss()

	v, err := compute(snap, now)
	if err != nil {
		s.writeError(w, r, err, op)
		return
	}
	body, err := encodeJSON(v)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("encode %s response: %w", op, err), op)
		return
	}
	s.responses.Set(key, body)
	s.writeJSON(w, r, NewJSONResponse().Cache(false).Raw(body))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.serveComputed(w, r, "metrics", func(snap *snapshot.Snapshot, now time.Time) (any, error) {
		rng, err := ParseRangeQuery(r.URL.Query()).Resolve(s.validate, now)
		if err != nil {
			return nil, err
		}
		filtered := report.Filter(snap.Sessions, rng)
		return metricsResponse{
			KPIs:     report.ComputeKPIs(filtered, snap.Sessions, now),
			Range:    rng,
			Snapshot: metaOf(snap),
		}, nil
	})
}

func (s *Server) handleTopStudents(w http.ResponseWriter, r *http.Request) {
	s.serveComputed(w, r, "top_students", func(snap *snapshot.Snapshot, now time.Time) (any, error) {
		q, err := ParseTopStudentsQuery(r.URL.Query(), s.topN)
		if err != nil {
			return nil, err
		}
		if err := s.validate.Validate(q); err != nil {
			return nil, err
		}
		rng, err := q.RangeQuery.Resolve(s.validate, now)
		if err != nil {
			return nil, err
		}
		return topStudentsResponse{
			Students: report.Leaderboard(report.Filter(snap.Sessions, rng), now, q.TopN),
			Range:    rng,
			Snapshot: metaOf(snap),
		}, nil
	})
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	s.serveComputed(w, r, "monthly_summary", func(snap *snapshot.Snapshot, now time.Time) (any, error) {
		rng, err := ParseRangeQuery(r.URL.Query()).Resolve(s.validate, now)
		if err != nil {
			return nil, err
		}
		return monthlyResponse{
			Months: report.MonthlySeries(report.Filter(snap.Sessions, rng), now, rng),
			Range:  rng,
		}, nil
	})
}

func (s *Server) handleYearlySummary(w http.ResponseWriter, r *http.Request) {
	s.serveComputed(w, r, "yearly_summary", func(snap *snapshot.Snapshot, now time.Time) (any, error) {
		return yearlyResponse{Years: report.YearlySummary(snap.Sessions, now)}, nil
	})
}

func (s *Server) handleStudentSearch(w http.ResponseWriter, r *http.Request) {
	s.serveComputed(w, r, "student_search", func(snap *snapshot.Snapshot, now time.Time) (any, error) {
		q, err := ParseSearchQuery(r.URL.Query())
		if err != nil {
			return nil, err
		}
		if err := s.validate.Validate(q); err != nil {
			return nil, err
		}
		q.Q = sanitizeInput(q.Q)
		return searchResponse{Query: q.Q, Results: report.SearchStudents(snap.Sessions, q.Q, q.Limit)}, nil
	})
}

func (s *Server) handleStudentDetails(w http.ResponseWriter, r *http.Request) {
	name := sanitizeInput(r.PathValue("name"))
	s.serveComputed(w, r, "student_details", func(snap *snapshot.Snapshot, now time.Time) (any, error) {
		if len(name) > maxStudentNameLen {
			return nil, apperr.Validation("student name must be at most %d characters", maxStudentNameLen)
		}
		return report.StudentDetails(snap.Sessions, name, now)
	})
}

// handleSessionsCSV streams the filtered sessions. Exports are not memoised.
func (s *Server) handleSessionsCSV(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err, "export")
		return
	}
	now := s.clock()
	rng, err := ParseRangeQuery(r.URL.Query()).Resolve(s.validate, now)
	if err != nil {
		s.writeError(w, r, err, "export")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, report.Filter(snap.Sessions, rng), now); err != nil {
		s.writeError(w, r, fmt.Errorf("export sessions: %w", err), "export")
		return
	}
	s.snapshotHeaders(w, snap, now)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="sessions-%s.csv"`, core.DateOf(now)))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	snap, err := s.snapshots.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpRefresh)
		return
	}
	logger.InfoContext(r.Context(), "Snapshot refreshed on request",
		log.FieldSnapshotID, snap.ID,
		log.FieldSessions, len(snap.Sessions),
		log.FieldDroppedRows, snap.Dropped)
	s.writeJSON(w, r, NewJSONResponse().Body(refreshResponse{Status: "refreshed", Snapshot: metaOf(snap)}))
}

type indexData struct {
	Title       string
	Snapshot    *snapshotMeta
	KPIs        report.KPIs
	QuickRanges []report.QuickRange
	TopN        int
	Today       core.Date
	Error       string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		http.Error(w, "templates unavailable", http.StatusInternalServerError)
		return
	}

	now := s.clock()
	data := indexData{
		Title:       "Nachhilfe Dashboard",
		QuickRanges: report.QuickRanges,
		TopN:        s.topN,
		Today:       core.DateOf(now),
	}
	snap := s.snapshots.Current()
	if snap == nil {
		var err error
		if snap, err = s.snapshots.Get(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "Rendering dashboard without data", log.FieldError, err)
			data.Error = apperr.FromError(err).Message
		}
	}
	if snap != nil {
		meta := metaOf(snap)
		data.Snapshot = &meta
		data.KPIs = report.ComputeKPIs(snap.Sessions, snap.Sessions, now)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		logger.ErrorContext(r.Context(), "Template render failed",
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once a snapshot has been loaded.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.snapshots.Current() == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no snapshot loaded"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}
