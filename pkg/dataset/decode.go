package dataset

import (
	"fmt"
	"slices"
	"strings"
)

// MaxEthnicityValues is the number of distinct ethnicity values above which
// the column is reported as suspicious.
const MaxEthnicityValues = 10

// header maps column names to their position in a row.
type header map[string]int

func newHeader(names []string) header {
	h := make(header, len(names))

	for i, n := range names {
		n = strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
		if n == "" {
			continue
		}

		if _, dup := h[n]; !dup {
			h[n] = i
		}
	}

	return h
}

// columns returns the present column names.
func (h header) columns() ColumnSet {
	cs := make(ColumnSet, len(h))
	for n := range h {
		cs[n] = struct{}{}
	}

	return cs
}

// cell returns the raw value of a column, or "" when the column or cell is
// absent. Spreadsheet rows may be shorter than the header.
func (h header) cell(row []string, name string) string {
	idx, ok := h[name]
	if !ok || idx >= len(row) {
		return ""
	}

	return row[idx]
}

// schemaWarnings reports expected columns that are missing and columns that
// will be ignored.
func schemaWarnings(h header, expected, optional []string) []string {
	var warnings []string

	for _, col := range expected {
		if _, ok := h[col]; !ok {
			warnings = append(warnings, fmt.Sprintf("missing column %q", col))
		}
	}

	extra := make([]string, 0)

	for col := range h {
		if !slices.Contains(expected, col) && !slices.Contains(optional, col) {
			extra = append(extra, col)
		}
	}

	slices.Sort(extra)

	for _, col := range extra {
		warnings = append(warnings, fmt.Sprintf("unexpected column %q (ignored)", col))
	}

	return warnings
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}

// decodeSessions converts a header row and data rows into session records.
func decodeSessions(names []string, rows [][]string) *Sessions {
	h := newHeader(names)

	out := &Sessions{
		Records:  make([]SessionRecord, 0, len(rows)),
		Columns:  h.columns(),
		Warnings: schemaWarnings(h, SessionColumns, SessionOptionalColumns),
	}

	var badDurations, badDates int

	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}

		rec := SessionRecord{
			StudentID:  NormalizeID(h.cell(row, ColStudentID)),
			Subject:    ParseSubject(h.cell(row, ColSessionTopic)),
			GroupRatio: strings.TrimSpace(h.cell(row, ColSessionRatio)),
			TutorID:    strings.TrimSpace(h.cell(row, ColTutorID)),
		}

		rawDuration := h.cell(row, ColSessionDuration)
		rec.DurationMinutes = ParseFloat(rawDuration)

		if rec.DurationMinutes == nil && !IsMissing(rawDuration) {
			badDurations++
		}

		rawDate := h.cell(row, ColSessionDate)
		if t, hasTime, ok := ParseSessionDate(rawDate); ok {
			rec.Date = t
			rec.HasTime = hasTime
		} else if !IsMissing(rawDate) {
			badDates++
		}

		out.Records = append(out.Records, rec)
	}

	if badDurations > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"%d session_duration values are not numeric and were treated as missing", badDurations,
		))
	}

	if badDates > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"%d session_date values could not be parsed and were treated as missing", badDates,
		))
	}

	return out
}

// decodeStudents converts a header row and data rows into student records.
func decodeStudents(names []string, rows [][]string) *Students {
	h := newHeader(names)

	out := &Students{
		Records:  make([]StudentRecord, 0, len(rows)),
		Columns:  h.columns(),
		Warnings: schemaWarnings(h, StudentColumns, StudentOptionalColumns),
	}

	seen := make(map[string]struct{}, len(rows))
	ethnicities := make(map[string]struct{})

	var duplicates int

	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}

		rec := StudentRecord{
			StudentID:    NormalizeID(h.cell(row, ColStudentID)),
			SchoolID:     strings.TrimSpace(h.cell(row, ColSchoolID)),
			SchoolName:   strings.TrimSpace(h.cell(row, ColSchoolName)),
			DistrictID:   strings.TrimSpace(h.cell(row, ColDistrictID)),
			DistrictName: strings.TrimSpace(h.cell(row, ColDistrictName)),
			GradeLevel:   ParseGrade(h.cell(row, ColGradeLevel)),
			Gender:       strings.TrimSpace(h.cell(row, ColGender)),
			Ethnicity:    strings.TrimSpace(h.cell(row, ColEthnicity)),

			ELL:                  ParseFlag(h.cell(row, ColELL)),
			IEP:                  ParseFlag(h.cell(row, ColIEP)),
			Gifted:               ParseFlag(h.cell(row, ColGifted)),
			Homeless:             ParseFlag(h.cell(row, ColHomeless)),
			Disability:           ParseFlag(h.cell(row, ColDisability)),
			EconomicDisadvantage: ParseFlag(h.cell(row, ColEconomicDisadvantage)),

			ELAScoreTwoYearsAgo:  ParseFloat(h.cell(row, ColELAScoreTwoYearsAgo)),
			ELAScoreOneYearAgo:   ParseFloat(h.cell(row, ColELAScoreOneYearAgo)),
			ELAScoreCurrent:      ParseFloat(h.cell(row, ColELAScoreCurrent)),
			MathScoreTwoYearsAgo: ParseFloat(h.cell(row, ColMathScoreTwoYearsAgo)),
			MathScoreOneYearAgo:  ParseFloat(h.cell(row, ColMathScoreOneYearAgo)),
			MathScoreCurrent:     ParseFloat(h.cell(row, ColMathScoreCurrent)),

			PerformanceLevelPrior:   strings.TrimSpace(h.cell(row, ColPerformanceLevelPrior)),
			PerformanceLevelCurrent: strings.TrimSpace(h.cell(row, ColPerformanceLevelCurrent)),
		}

		if IsMissing(rec.Ethnicity) {
			rec.Ethnicity = ""
		} else {
			ethnicities[rec.Ethnicity] = struct{}{}
		}

		if rec.StudentID != "" {
			if _, dup := seen[rec.StudentID]; dup {
				duplicates++
			}

			seen[rec.StudentID] = struct{}{}
		}

		out.Records = append(out.Records, rec)
	}

	if len(ethnicities) > MaxEthnicityValues {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"ethnicity has %d distinct values (expected at most %d)", len(ethnicities), MaxEthnicityValues,
		))
	}

	if duplicates > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"%d rows repeat an existing student_id", duplicates,
		))
	}

	return out
}
