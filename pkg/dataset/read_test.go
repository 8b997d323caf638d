package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ethpandaops/datas/pkg/config"
	"github.com/ethpandaops/datas/pkg/source"
)

const sessionsCSV = "\ufeffstudent_id, session_topic ,session_date,session_duration,session_ratio,tutor_id\n" +
	" S1 ,Math,2024-01-08 15:00:00,90,1:2,T1\n" +
	"S1,ELA,2024-01-09,30,,T2\n" +
	"\n" +
	"S2,math,not a date,abc,1:1,T1\n"

const studentsCSV = "student_id,school_id,school_name,district_id,district_name," +
	"current_grade_level,gender,ethnicity,ell,iep,gifted_flag,homeless_flag," +
	"disability,economic_disadvantage," +
	"ela_state_score_two_years_ago,ela_state_score_one_year_ago,ela_state_score_current_year," +
	"math_state_score_two_years_ago,math_state_score_one_year_ago,math_state_score_current_year," +
	"performance_level_prior_year,performance_level_current_year,favourite_colour\n" +
	"S1,10,Lincoln,1,North,4,F,Hispanic,yes,0,,no,false,1,700,710,730,650,,660,Basic,Proficient,blue\n" +
	"S2,11,Adams,1,North,5.0,M,,N,Y,0,0,0,0,,,,,,,,,red\n"

func TestReadSessionsCSV(t *testing.T) {
	got, err := ReadSessionsCSV(strings.NewReader(sessionsCSV))
	require.NoError(t, err)

	require.Len(t, got.Records, 3)
	assert.True(t, got.Columns.Has(ColStudentID, ColSessionTopic, ColSessionDuration, ColSessionRatio))

	first := got.Records[0]
	assert.Equal(t, "S1", first.StudentID)
	assert.Equal(t, SubjectMath, first.Subject)
	assert.True(t, first.HasTime)
	assert.Equal(t, 15, first.Date.Hour())
	hours, ok := first.DurationHours()
	require.True(t, ok)
	assert.InDelta(t, 1.5, hours, 1e-9)
	assert.Equal(t, "1:2", first.GroupRatio)
	assert.Equal(t, "T1", first.TutorID)

	assert.False(t, got.Records[1].HasTime)
	assert.True(t, got.Records[1].HasDate())
	assert.Empty(t, got.Records[1].GroupRatio)

	bad := got.Records[2]
	assert.False(t, bad.HasDate())
	assert.Nil(t, bad.DurationMinutes)

	assert.Contains(t, got.Warnings, "1 session_duration values are not numeric and were treated as missing")
	assert.Contains(t, got.Warnings, "1 session_date values could not be parsed and were treated as missing")
}

func TestReadStudentsCSV(t *testing.T) {
	got, err := ReadStudentsCSV(strings.NewReader(studentsCSV))
	require.NoError(t, err)

	require.Len(t, got.Records, 2)
	assert.Contains(t, got.Warnings, `unexpected column "favourite_colour" (ignored)`)

	s1 := got.Records[0]
	assert.Equal(t, "S1", s1.StudentID)
	assert.Equal(t, "Lincoln", s1.SchoolName)
	assert.Equal(t, ptr(4), s1.GradeLevel)
	assert.Equal(t, ptr(true), s1.ELL)
	assert.Equal(t, ptr(false), s1.IEP)
	assert.Nil(t, s1.Gifted)
	assert.Equal(t, ptr(true), s1.EconomicDisadvantage)
	assert.Equal(t, ptr(730.0), s1.ELAScoreCurrent)
	assert.Nil(t, s1.MathScoreOneYearAgo)
	assert.Equal(t, "Proficient", s1.PerformanceLevelCurrent)

	ela := s1.Scores(SubjectELA)
	assert.Equal(t, ptr(700.0), ela.TwoYearsAgo)
	assert.Equal(t, ptr(710.0), ela.OneYearAgo)

	s2 := got.Records[1]
	assert.Equal(t, ptr(5), s2.GradeLevel)
	assert.Empty(t, s2.Ethnicity)
	assert.Equal(t, ptr(true), s2.IEP)
	assert.Nil(t, s2.ELAScoreCurrent)
}

func TestReadStudentsCSV_MissingColumns(t *testing.T) {
	got, err := ReadStudentsCSV(strings.NewReader("student_id,school_name\nS1,Lincoln\n"))
	require.NoError(t, err)

	require.Len(t, got.Records, 1)
	assert.False(t, got.Columns.Has(ColELL))
	assert.Contains(t, got.Warnings, `missing column "ell"`)
	assert.Nil(t, got.Records[0].ELL)
}

func TestReadStudentsCSV_DuplicateIDs(t *testing.T) {
	got, err := ReadStudentsCSV(strings.NewReader("student_id\nS1\n S1\nS2\n"))
	require.NoError(t, err)

	assert.Len(t, got.Records, 3)
	assert.Contains(t, got.Warnings, "1 rows repeat an existing student_id")
}

func TestReadCSV_Empty(t *testing.T) {
	sessions, err := ReadSessionsCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, sessions.Records)
	assert.Equal(t, []string{"session file is empty"}, sessions.Warnings)

	students, err := ReadStudentsCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, students.Records)
}

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()

	defer func() { _ = f.Close() }()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	return buf.Bytes()
}

func TestReadSessionsXLSX(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"student_id", "session_topic", "session_date", "session_duration", "tutor_id"},
		{"S1", "math", "2024-01-08 15:00:00", 90, "T1"},
		{"S1", "ela", "2024-01-09", 30, "T1"},
	})

	got, err := ReadSessionsXLSX(bytes.NewReader(data))
	require.NoError(t, err)

	require.Len(t, got.Records, 2)
	assert.Equal(t, ptr(90.0), got.Records[0].DurationMinutes)
	assert.Equal(t, SubjectELA, got.Records[1].Subject)
}

func TestReadStudentsXLSX_ShortRows(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"student_id", "school_name", "ell"},
		{"S1", "Lincoln", "TRUE"},
		{"S2"},
	})

	got, err := ReadStudents(bytes.NewReader(data), "students.xlsx")
	require.NoError(t, err)

	require.Len(t, got.Records, 2)
	assert.Equal(t, ptr(true), got.Records[0].ELL)
	assert.Empty(t, got.Records[1].SchoolName)
	assert.Nil(t, got.Records[1].ELL)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{name: "sessions.csv", want: FormatCSV},
		{name: "STUDENTS.XLSX", want: FormatXLSX},
		{name: "notes.pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.name)
			if tt.wantErr {
				assert.ErrorContains(t, err, "unsupported file type")

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions.csv"), []byte(sessionsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "students.csv"), []byte(studentsCSV), 0o644))

	log := logrus.New()
	loader := NewLoader(log, source.NewLocalReader(log, &config.LocalSourceConfig{Dir: dir}))
	ctx := context.Background()

	sessions, err := loader.LoadSessions(ctx, "sessions.csv")
	require.NoError(t, err)
	assert.Len(t, sessions.Records, 3)

	students, err := loader.LoadStudents(ctx, "students.csv")
	require.NoError(t, err)
	assert.Len(t, students.Records, 2)

	_, err = loader.LoadStudents(ctx, "absent.csv")
	require.ErrorIs(t, err, source.ErrNotFound)
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions.csv"), []byte(sessionsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "students.csv"), []byte(studentsCSV), 0o644))

	log := logrus.New()
	loader := NewLoader(log, source.NewLocalReader(log, &config.LocalSourceConfig{Dir: dir}))

	ds, err := loader.Load(context.Background(), "sessions.csv", "students.csv")
	require.NoError(t, err)
	assert.Len(t, ds.Sessions.Records, 3)
	assert.Len(t, ds.Students.Records, 2)
	assert.False(t, ds.LoadedAt.IsZero())
	assert.Equal(t, filepath.Join(dir, "students.csv"), loader.Location("students.csv"))

	_, err = loader.Load(context.Background(), "sessions.csv", "absent.csv")
	require.ErrorIs(t, err, source.ErrNotFound)
}
