package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/datas/pkg/config"
	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/filter"
)

const sessionsCSV = `student_id,session_topic,session_date,session_duration,session_ratio,tutor_id
A,ela,2024-01-08 15:00:00,90,1:1,T1
A,ela,2024-01-09 15:00:00,30,1:1,T1
B,math,2024-01-09 16:00:00,3600,1:2,T2
`

const studentsCSV = `student_id,school_name,current_grade_level,gender,ethnicity,ell,iep,economic_disadvantage,ela_state_score_two_years_ago,ela_state_score_one_year_ago,ela_state_score_current_year,math_state_score_two_years_ago,math_state_score_one_year_ago,math_state_score_current_year
A,Lincoln,3,F,Hispanic,yes,no,1,700,710,730,,,
B,Adams,4,M,White,no,no,0,,,,600,600,600
C,Adams,4,F,White,no,yes,1,,,,,,
`

func load(t *testing.T) (*dataset.Sessions, *dataset.Students) {
	t.Helper()

	sessions, err := dataset.ReadSessionsCSV(strings.NewReader(sessionsCSV))
	require.NoError(t, err)

	students, err := dataset.ReadStudentsCSV(strings.NewReader(studentsCSV))
	require.NoError(t, err)

	return sessions, students
}

func TestAnalyze(t *testing.T) {
	sessions, students := load(t)
	a := NewAnalyzer(logrus.New())

	report, err := a.Analyze(context.Background(), sessions, students, Params{
		FullDosageThreshold: 60,
		TotalCost:           1000,
	})
	require.NoError(t, err)

	require.Equal(t, 3, report.Table.Len())

	byID := make(map[string]float64)
	for _, s := range report.Table.Students {
		byID[s.StudentID] = s.TotalHours
	}

	assert.InDelta(t, 2.0, byID["A"], 1e-9)
	assert.InDelta(t, 60.0, byID["B"], 1e-9)
	assert.InDelta(t, 0.0, byID["C"], 1e-9)

	full, ok := report.Dosage.Float("pct_full_dosage")
	require.True(t, ok)
	assert.InDelta(t, 100.0/3, full, 1e-9)

	va, ok := report.Outcome.Float("ela_va_mean")
	require.True(t, ok)
	assert.InDelta(t, 10.0, va, 1e-9)

	raw, ok := report.Outcome.Float("ela_raw_mean")
	require.True(t, ok)
	assert.InDelta(t, 30.0, raw, 1e-9)

	perVA, ok := report.Cost.Float("cost_per_va_point")
	require.True(t, ok)
	assert.InDelta(t, 100.0, perVA, 1e-9)

	assert.True(t, report.Equity.Has("ell_gap"))
	assert.True(t, report.Equity.Has("iep_gap"))

	require.Len(t, report.Hourly, 2)
	assert.Equal(t, 15, report.Hourly[0].Hour)
	require.Len(t, report.Daily, 2)
	require.Len(t, report.Ratios, 2)
	require.Len(t, report.Schools, 2)
	require.Len(t, report.Subjects, 2)
	assert.Contains(t, report.Likelihood, dataset.SubjectELA)

	total, ok := report.Overview.Int("total_students")
	require.True(t, ok)
	assert.Equal(t, 3, total)
}

func TestAnalyze_FilterScopesMetricsAndFidelity(t *testing.T) {
	sessions, students := load(t)
	a := NewAnalyzer(logrus.New())

	report, err := a.Analyze(context.Background(), sessions, students, Params{
		FullDosageThreshold: 60,
		Filter:              filter.Spec{School: "Adams"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Table.Len())
	require.Len(t, report.Hourly, 1)
	assert.Equal(t, 16, report.Hourly[0].Hour)

	// Overview describes the whole loaded dataset.
	total, _ := report.Overview.Int("total_students")
	assert.Equal(t, 3, total)
}

func TestAnalyze_SessionsWithoutDurationMarkStudentsTutored(t *testing.T) {
	sessions, err := dataset.ReadSessionsCSV(strings.NewReader("student_id,session_topic\nA,math\n"))
	require.NoError(t, err)

	students, err := dataset.ReadStudentsCSV(strings.NewReader(
		"student_id,performance_level_current_year\nA,Proficient\nB,Proficient\n",
	))
	require.NoError(t, err)

	report, err := NewAnalyzer(logrus.New()).Analyze(context.Background(), sessions, students, Params{
		FullDosageThreshold: 60,
	})
	require.NoError(t, err)

	require.Len(t, report.Performance, 1)
	assert.Equal(t, "Proficient", report.Performance[0].Level)
	assert.Equal(t, 2, report.Performance[0].Total)
	assert.Equal(t, 1, report.Performance[0].Tutored)
	assert.Equal(t, 1, report.Performance[0].Untutored)
}

func TestAnalyze_FilterExcludingEverything(t *testing.T) {
	sessions, students := load(t)
	a := NewAnalyzer(logrus.New())

	report, err := a.Analyze(context.Background(), sessions, students, Params{
		FullDosageThreshold: 60,
		TotalCost:           1000,
		Filter:              filter.Spec{School: "Nowhere"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Table.Len())
	assert.Empty(t, report.Dosage)
	assert.Empty(t, report.Equity)
	assert.Empty(t, report.Outcome)
	assert.Empty(t, report.Cost)
	assert.Empty(t, report.Schools)
	assert.Empty(t, report.Hourly)
	assert.Empty(t, report.Daily)
}

func TestAnalyze_Idempotent(t *testing.T) {
	sessions, students := load(t)
	a := NewAnalyzer(logrus.New())
	params := Params{FullDosageThreshold: 30, TotalCost: 250}

	first, err := a.Analyze(context.Background(), sessions, students, params)
	require.NoError(t, err)

	second, err := a.Analyze(context.Background(), sessions, students, params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyze_InvalidParams(t *testing.T) {
	sessions, students := load(t)
	a := NewAnalyzer(logrus.New())

	tests := []struct {
		name    string
		params  Params
		wantErr string
	}{
		{name: "zero threshold", params: Params{}, wantErr: "threshold must be positive"},
		{name: "negative cost", params: Params{FullDosageThreshold: 60, TotalCost: -5}, wantErr: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Analyze(context.Background(), sessions, students, tt.params)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	sessions, students := load(t)
	a := NewAnalyzer(logrus.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, sessions, students, Params{FullDosageThreshold: 60})
	require.ErrorIs(t, err, context.Canceled)
}

func TestParamsFromConfig(t *testing.T) {
	iep := false
	cfg := &config.AnalysisConfig{
		FullDosageThreshold: 40,
		TotalCost:           1200,
		Filter: config.FilterConfig{
			School: "Lincoln",
			Grades: []int{3},
			IEP:    &iep,
		},
	}

	p := ParamsFromConfig(cfg)

	assert.InDelta(t, 40.0, p.FullDosageThreshold, 1e-9)
	assert.InDelta(t, 1200.0, p.TotalCost, 1e-9)
	assert.Equal(t, "school=Lincoln grades=3 iep=false", p.Filter.String())
	require.NoError(t, p.Validate())
}
