package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ethpandaops/datas/pkg/prepare"
)

// studentHeader is the column order of students.csv.
var studentHeader = []string{
	"student_id", "school_id", "school_name", "district_id", "district_name",
	"current_grade_level", "gender", "ethnicity",
	"ell", "iep", "gifted_flag", "homeless_flag", "disability", "economic_disadvantage",
	"ela_state_score_two_years_ago", "ela_state_score_one_year_ago", "ela_state_score_current_year",
	"math_state_score_two_years_ago", "math_state_score_one_year_ago", "math_state_score_current_year",
	"performance_level_prior_year", "performance_level_current_year",
	"total_hours", "math_hours", "ela_hours", "session_count",
	"ela_value_added", "math_value_added", "ela_raw_gain", "math_raw_gain",
}

func writeStudentsFile(path string, table *prepare.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", StudentsFile, err)
	}
	defer func() { _ = f.Close() }()

	if err := WriteStudentsCSV(f, table); err != nil {
		return fmt.Errorf("writing %s: %w", StudentsFile, err)
	}

	return f.Close()
}

// WriteStudentsCSV writes the merged table as CSV. Missing values are empty
// cells.
func WriteStudentsCSV(w io.Writer, table *prepare.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(studentHeader); err != nil {
		return err
	}

	if table != nil {
		for i := range table.Students {
			if err := cw.Write(studentRow(&table.Students[i])); err != nil {
				return err
			}
		}
	}

	cw.Flush()

	return cw.Error()
}

func studentRow(m *prepare.MergedStudent) []string {
	grade := ""
	if m.GradeLevel != nil {
		grade = strconv.Itoa(*m.GradeLevel)
	}

	return []string{
		m.StudentID, m.SchoolID, m.SchoolName, m.DistrictID, m.DistrictName,
		grade, m.Gender, m.Ethnicity,
		formatFlag(m.ELL), formatFlag(m.IEP), formatFlag(m.Gifted),
		formatFlag(m.Homeless), formatFlag(m.Disability), formatFlag(m.EconomicDisadvantage),
		formatOptional(m.ELAScoreTwoYearsAgo), formatOptional(m.ELAScoreOneYearAgo), formatOptional(m.ELAScoreCurrent),
		formatOptional(m.MathScoreTwoYearsAgo), formatOptional(m.MathScoreOneYearAgo), formatOptional(m.MathScoreCurrent),
		m.PerformanceLevelPrior, m.PerformanceLevelCurrent,
		strconv.FormatFloat(m.TotalHours, 'f', -1, 64),
		strconv.FormatFloat(m.MathHours, 'f', -1, 64),
		strconv.FormatFloat(m.ELAHours, 'f', -1, 64),
		strconv.Itoa(m.SessionCount),
		formatOptional(m.ELAValueAdded), formatOptional(m.MathValueAdded),
		formatOptional(m.ELARawGain), formatOptional(m.MathRawGain),
	}
}

func formatFlag(b *bool) string {
	if b == nil {
		return ""
	}

	return strconv.FormatBool(*b)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}

	return strconv.FormatFloat(*v, 'f', -1, 64)
}
