package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethpandaops/datas/pkg/aggregate"
	"github.com/ethpandaops/datas/pkg/filter"
	"github.com/ethpandaops/datas/pkg/prepare"
	"github.com/ethpandaops/datas/pkg/report"
	"github.com/ethpandaops/datas/pkg/store"
	"github.com/go-chi/chi/v5"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health and the age of the loaded datasets.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}

	if ds, err := s.reloader.Current(); err == nil {
		resp["loaded_at"] = ds.LoadedAt.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

// studentsResponse is the /students payload.
type studentsResponse struct {
	Total    int                     `json:"total"`
	Count    int                     `json:"count"`
	Filter   string                  `json:"filter"`
	Students []prepare.MergedStudent `json:"students"`
	Warnings []string                `json:"warnings,omitempty"`
}

// handleStudents returns the filtered merged table.
func (s *server) handleStudents(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseAnalysisQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	ds, err := s.reloader.Current()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{err.Error()})

		return
	}

	spec := s.params(q).Filter
	table := filter.Apply(prepare.Merge(ds.Sessions, ds.Students), spec)

	students := table.Students
	if q.Limit > 0 && q.Limit < len(students) {
		students = students[:q.Limit]
	}

	writeJSON(w, http.StatusOK, studentsResponse{
		Total:    table.Len(),
		Count:    len(students),
		Filter:   spec.String(),
		Students: students,
		Warnings: table.Warnings,
	})
}

// handleMetrics runs the full analysis for the query and optionally records
// it in the run store.
func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.analyze(w, r)
	if !ok {
		return
	}

	if s.cfg.API.RecordRuns && s.store != nil {
		run, err := store.NewRun(doc, store.OriginAPI, "")
		if err == nil {
			err = s.store.SaveRun(r.Context(), run)
		}

		if err != nil {
			s.log.WithError(err).Warn("Failed to record run")
		}
	}

	writeJSON(w, http.StatusOK, doc)
}

// fidelityResponse is the /fidelity payload.
type fidelityResponse struct {
	Filter string                  `json:"filter"`
	Hourly []aggregate.HourBucket  `json:"hourly"`
	Daily  []aggregate.DateBucket  `json:"daily"`
	Ratios []aggregate.RatioBucket `json:"ratios"`
}

// handleFidelity returns the session fidelity buckets.
func (s *server) handleFidelity(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.analyze(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, fidelityResponse{
		Filter: doc.Params.Filter.String(),
		Hourly: doc.Hourly,
		Daily:  doc.Daily,
		Ratios: doc.Ratios,
	})
}

// analyze parses the query and runs the analyzer over the current datasets.
// It writes the error response itself and reports whether to continue.
func (s *server) analyze(w http.ResponseWriter, r *http.Request) (*report.Document, bool) {
	q, err := s.parseAnalysisQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return nil, false
	}

	params := s.params(q)
	if err := params.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return nil, false
	}

	ds, err := s.reloader.Current()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{err.Error()})

		return nil, false
	}

	rep, err := s.analyzer.Analyze(r.Context(), ds.Sessions, ds.Students, params)
	if err != nil {
		s.log.WithError(err).Warn("Analysis failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"analysis failed"})

		return nil, false
	}

	return report.NewDocument(rep, s.sources()), true
}

func (s *server) sources() report.Sources {
	if s.loader == nil {
		return report.Sources{}
	}

	return report.Sources{
		Sessions: s.loader.Location(s.cfg.Data.Sessions),
		Students: s.loader.Location(s.cfg.Data.Students),
	}
}

// handleListRuns returns recorded runs, newest first.
func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"run history is disabled"})

		return
	}

	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{"limit must be a non-negative integer"})

			return
		}

		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("Failed to list runs")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"internal error"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns one recorded run with its full report.
func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"run history is disabled"})

		return
	}

	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrRunNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{"run not found"})

		return
	}

	if err != nil {
		s.log.WithError(err).Error("Failed to get run")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"internal error"})

		return
	}

	doc, err := run.Document()
	if err != nil {
		s.log.WithError(err).Error("Failed to decode run")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"internal error"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":    run,
		"report": doc,
	})
}

// handleReload re-reads the datasets from the configured source.
func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	ds, err := s.reloader.Reload(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("Reload failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "reloaded",
		"sessions":  len(ds.Sessions.Records),
		"students":  len(ds.Students.Records),
		"loaded_at": ds.LoadedAt.Format(time.RFC3339),
	})
}

