// Package prepare joins session records onto student records and derives
// the per-student values the metrics are computed from.
package prepare

import (
	"github.com/ethpandaops/datas/pkg/aggregate"
	"github.com/ethpandaops/datas/pkg/dataset"
)

// MergedStudent is a student record with its tutoring aggregates and
// derived score changes.
type MergedStudent struct {
	dataset.StudentRecord

	TotalHours   float64 `json:"total_hours"`
	MathHours    float64 `json:"math_hours"`
	ELAHours     float64 `json:"ela_hours"`
	SessionCount int     `json:"session_count"`

	ELAValueAdded  *float64 `json:"ela_value_added"`
	MathValueAdded *float64 `json:"math_value_added"`
	ELARawGain     *float64 `json:"ela_raw_gain"`
	MathRawGain    *float64 `json:"math_raw_gain"`
}

// Hours returns the student's hours for a subject, or the total when subject
// is empty.
func (m *MergedStudent) Hours(subject dataset.Subject) float64 {
	switch subject {
	case dataset.SubjectMath:
		return m.MathHours
	case dataset.SubjectELA:
		return m.ELAHours
	default:
		return m.TotalHours
	}
}

// ValueAdded returns the value-added score for a subject.
func (m *MergedStudent) ValueAdded(subject dataset.Subject) *float64 {
	switch subject {
	case dataset.SubjectMath:
		return m.MathValueAdded
	case dataset.SubjectELA:
		return m.ELAValueAdded
	default:
		return nil
	}
}

// RawGain returns the raw gain for a subject.
func (m *MergedStudent) RawGain(subject dataset.Subject) *float64 {
	switch subject {
	case dataset.SubjectMath:
		return m.MathRawGain
	case dataset.SubjectELA:
		return m.ELARawGain
	default:
		return nil
	}
}

// Table is the merged per-student table. It is never mutated after
// construction; filtering returns a new Table.
type Table struct {
	Students []MergedStudent
	// Columns are the student input columns that were present.
	Columns dataset.ColumnSet
	// SessionColumns are the session input columns that were present.
	SessionColumns dataset.ColumnSet
	Warnings       []string
}

// Len returns the number of students.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}

	return len(t.Students)
}

// WithStudents returns a table sharing t's schema with a different set of
// rows.
func (t *Table) WithStudents(students []MergedStudent) *Table {
	return &Table{
		Students:       students,
		Columns:        t.Columns,
		SessionColumns: t.SessionColumns,
		Warnings:       t.Warnings,
	}
}

// Merge joins sessions onto students. Sessions whose student is unknown are
// dropped; students without sessions keep zero hours. When the join key is
// absent every student gets zero hours and a warning is recorded. Without a
// duration column sessions still join and count, with zero hours. Merge
// never fails.
func Merge(sessions *dataset.Sessions, students *dataset.Students) *Table {
	if sessions == nil {
		sessions = &dataset.Sessions{Columns: dataset.ColumnSet{}}
	}

	if students == nil {
		students = &dataset.Students{Columns: dataset.ColumnSet{}}
	}

	table := &Table{
		Students:       make([]MergedStudent, 0, len(students.Records)),
		Columns:        students.Columns,
		SessionColumns: sessions.Columns,
	}

	table.Warnings = append(table.Warnings, students.Warnings...)
	table.Warnings = append(table.Warnings, sessions.Warnings...)

	joinable := students.Columns.Has(dataset.ColStudentID) &&
		sessions.Columns.Has(dataset.ColStudentID)

	var (
		total   map[string]float64
		counts  map[string]int
		subject map[aggregate.StudentSubject]float64
	)

	if joinable {
		known := make(map[string]struct{}, len(students.Records))
		for i := range students.Records {
			known[dataset.NormalizeID(students.Records[i].StudentID)] = struct{}{}
		}

		joined := make([]dataset.SessionRecord, 0, len(sessions.Records))

		for _, s := range sessions.Records {
			if _, ok := known[dataset.NormalizeID(s.StudentID)]; ok {
				joined = append(joined, s)
			}
		}

		total = aggregate.HoursPerStudent(joined)
		counts = aggregate.SessionsPerStudent(joined)

		if sessions.Columns.Has(dataset.ColSessionTopic) {
			subject = aggregate.HoursPerStudentPerSubject(joined)
		}

		if !sessions.Columns.Has(dataset.ColSessionDuration) && len(joined) > 0 {
			table.Warnings = append(table.Warnings,
				"sessions have no session_duration column; session hours set to 0")
		}
	} else if len(students.Records) > 0 {
		table.Warnings = append(table.Warnings,
			"sessions cannot be joined to students (student_id missing); all hours set to 0")
	}

	for i := range students.Records {
		rec := students.Records[i]
		rec.StudentID = dataset.NormalizeID(rec.StudentID)

		m := MergedStudent{
			StudentRecord:  rec,
			TotalHours:     total[rec.StudentID],
			SessionCount:   counts[rec.StudentID],
			MathHours:      subject[aggregate.StudentSubject{StudentID: rec.StudentID, Subject: dataset.SubjectMath}],
			ELAHours:       subject[aggregate.StudentSubject{StudentID: rec.StudentID, Subject: dataset.SubjectELA}],
			ELAValueAdded:  ValueAdded(rec.Scores(dataset.SubjectELA)),
			MathValueAdded: ValueAdded(rec.Scores(dataset.SubjectMath)),
			ELARawGain:     RawGain(rec.Scores(dataset.SubjectELA)),
			MathRawGain:    RawGain(rec.Scores(dataset.SubjectMath)),
		}

		table.Students = append(table.Students, m)
	}

	return table
}
