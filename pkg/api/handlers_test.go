package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/datas/pkg/api/reloader"
	"github.com/ethpandaops/datas/pkg/config"
	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/source"
	"github.com/ethpandaops/datas/pkg/store"
)

const testSessionsCSV = `student_id,session_topic,session_date,session_duration,session_ratio,tutor_id
A,ela,2024-01-08 15:00:00,90,1:1,T1
A,ela,2024-01-09 15:00:00,30,1:1,T1
B,math,2024-01-09 16:00:00,3600,1:2,T2
`

const testStudentsCSV = `student_id,school_name,current_grade_level,gender,ethnicity,ell,iep,economic_disadvantage
A,Lincoln,3,F,Hispanic,yes,no,1
B,Adams,4,M,White,no,no,0
C,Adams,4,F,White,no,yes,1
`

type testEnv struct {
	srv     *server
	handler http.Handler
	dir     string
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions.csv"), []byte(testSessionsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "students.csv"), []byte(testStudentsCSV), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Data.Local.Dir = dir
	cfg.Database.SQLite.Path = ":memory:"

	if mutate != nil {
		mutate(cfg)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s, ok := NewServer(log, cfg).(*server)
	require.True(t, ok)

	s.loader = dataset.NewLoader(log, source.NewLocalReader(log, &cfg.Data.Local))
	s.reloader = reloader.NewReloader(log, s.loader, cfg.Data.Sessions, cfg.Data.Students, 0)
	require.NoError(t, s.reloader.Start(context.Background()))

	if cfg.Database.Enabled {
		s.store = store.NewStore(log, &cfg.Database)
		require.NoError(t, s.store.Start(context.Background()))
	}

	t.Cleanup(func() { _ = s.Stop() })

	return &testEnv{srv: s, handler: s.buildRouter(), dir: dir}
}

func (e *testEnv) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())

	return rec, body
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["loaded_at"])
}

func TestHandleStudents(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTotal float64
		wantCount float64
	}{
		{name: "all students", query: "", wantCode: http.StatusOK, wantTotal: 3, wantCount: 3},
		{name: "school filter", query: "?school=Adams", wantCode: http.StatusOK, wantTotal: 2, wantCount: 2},
		{name: "all schools sentinel", query: "?school=All", wantCode: http.StatusOK, wantTotal: 3, wantCount: 3},
		{name: "flag filter", query: "?ell=true", wantCode: http.StatusOK, wantTotal: 1, wantCount: 1},
		{name: "limit", query: "?limit=2", wantCode: http.StatusOK, wantTotal: 3, wantCount: 2},
		{name: "repeated grade", query: "?grade=3&grade=4", wantCode: http.StatusOK, wantTotal: 3, wantCount: 3},
		{name: "no match", query: "?gender=X", wantCode: http.StatusOK, wantTotal: 0, wantCount: 0},
		{name: "bad flag", query: "?iep=maybe", wantCode: http.StatusBadRequest},
		{name: "bad grade", query: "?grade=third", wantCode: http.StatusBadRequest},
		{name: "grade out of range", query: "?grade=40", wantCode: http.StatusBadRequest},
		{name: "negative limit", query: "?limit=-1", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodGet, "/api/v1/students"+tt.query)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantCode != http.StatusOK {
				assert.NotEmpty(t, body["error"])

				return
			}

			assert.InDelta(t, tt.wantTotal, body["total"], 1e-9)
			assert.InDelta(t, tt.wantCount, body["count"], 1e-9)
		})
	}
}

func TestHandleMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/metrics?threshold=60&cost=300")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.NotEmpty(t, body["run_id"])

	dosage, ok := body["dosage"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 100.0/3, dosage["pct_full_dosage"], 1e-9)

	cost, ok := body["cost"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 100.0, cost["cost_per_student"], 1e-9)

	sources, ok := body["sources"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(env.dir, "sessions.csv"), sources["sessions"])

	t.Run("invalid threshold", func(t *testing.T) {
		rec, body := env.do(t, http.MethodGet, "/api/v1/metrics?threshold=0")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body["error"], "threshold")
	})

	t.Run("negative cost", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/metrics?cost=-5")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleFidelity(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/fidelity?school=Lincoln")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "school=Lincoln", body["filter"])

	hourly, ok := body["hourly"].([]any)
	require.True(t, ok)
	require.Len(t, hourly, 1)

	ratios, ok := body["ratios"].([]any)
	require.True(t, ok)
	require.Len(t, ratios, 1)
}

func TestHandleRuns(t *testing.T) {
	t.Run("disabled store", func(t *testing.T) {
		env := newTestEnv(t, nil)

		rec, _ := env.do(t, http.MethodGet, "/api/v1/runs")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("recorded metrics runs", func(t *testing.T) {
		env := newTestEnv(t, func(cfg *config.Config) {
			cfg.Database.Enabled = true
			cfg.API.RecordRuns = true
		})

		_, metricsBody := env.do(t, http.MethodGet, "/api/v1/metrics?ell=true")
		runID, ok := metricsBody["run_id"].(string)
		require.True(t, ok)

		rec, body := env.do(t, http.MethodGet, "/api/v1/runs")
		require.Equal(t, http.StatusOK, rec.Code)

		runs, ok := body["runs"].([]any)
		require.True(t, ok)
		require.Len(t, runs, 1)

		rec, body = env.do(t, http.MethodGet, "/api/v1/runs/"+runID)
		require.Equal(t, http.StatusOK, rec.Code)

		run, ok := body["run"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "ell=true", run["filter"])
		assert.Equal(t, store.OriginAPI, run["origin"])

		rec, _ = env.do(t, http.MethodGet, "/api/v1/runs/unknown")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec, _ = env.do(t, http.MethodGet, "/api/v1/runs?limit=x")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleReload(t *testing.T) {
	env := newTestEnv(t, nil)

	extra := testStudentsCSV + "D,Adams,5,M,White,no,no,0\n"
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "students.csv"), []byte(extra), 0o644))

	rec, body := env.do(t, http.MethodPost, "/api/v1/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 4.0, body["students"], 1e-9)

	_, body = env.do(t, http.MethodGet, "/api/v1/students")
	assert.InDelta(t, 4.0, body["total"], 1e-9)

	require.NoError(t, os.Remove(filepath.Join(env.dir, "students.csv")))

	rec, _ = env.do(t, http.MethodPost, "/api/v1/reload")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	_, body = env.do(t, http.MethodGet, "/api/v1/students")
	assert.InDelta(t, 4.0, body["total"], 1e-9)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.API.Server.RateLimit.Enabled = true
		cfg.API.Server.RateLimit.RequestsPerMinute = 2
	})

	for range 2 {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/health")
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := env.do(t, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", body["error"])
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{name: "remote addr", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "forwarded chain", xff: "203.0.113.9, 10.0.0.2", remote: "10.0.0.1:5555", want: "203.0.113.9"},
		{name: "remote without port", remote: "10.0.0.1", want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote

			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			assert.Equal(t, tt.want, extractIP(req))
		})
	}
}
