package metrics

import (
	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/prepare"
)

// Overview counts the students, sessions, schools and tutors in the loaded
// data. Each count is present only when its source column exists.
func Overview(sessions *dataset.Sessions, table *prepare.Table) Result {
	r := Result{}

	if table != nil {
		n := table.Len()
		r["total_students"] = n

		var hours float64
		for i := range table.Students {
			hours += table.Students[i].TotalHours
		}

		r["total_hours"] = hours

		if n > 0 {
			r["avg_hours"] = hours / float64(n)
		}

		if table.Columns.Has(dataset.ColSchoolName) {
			r["schools"] = distinct(table.Students, func(m *prepare.MergedStudent) string { return m.SchoolName })
		}

		switch {
		case table.Columns.Has(dataset.ColDistrictName):
			r["districts"] = distinct(table.Students, func(m *prepare.MergedStudent) string { return m.DistrictName })
		case table.Columns.Has(dataset.ColDistrictID):
			r["districts"] = distinct(table.Students, func(m *prepare.MergedStudent) string { return m.DistrictID })
		}
	}

	if sessions == nil {
		return r
	}

	r["total_sessions"] = len(sessions.Records)

	if sessions.Columns.Has(dataset.ColStudentID) {
		ids := make(map[string]struct{})

		for i := range sessions.Records {
			if id := dataset.NormalizeID(sessions.Records[i].StudentID); id != "" {
				ids[id] = struct{}{}
			}
		}

		r["students_tutored"] = len(ids)
	}

	if sessions.Columns.Has(dataset.ColSessionTopic) {
		var math, ela int

		for i := range sessions.Records {
			switch sessions.Records[i].Subject {
			case dataset.SubjectMath:
				math++
			case dataset.SubjectELA:
				ela++
			}
		}

		r["math_sessions"] = math
		r["ela_sessions"] = ela
	}

	if sessions.Columns.Has(dataset.ColTutorID) {
		tutors := make(map[string]struct{})

		for i := range sessions.Records {
			if t := sessions.Records[i].TutorID; !dataset.IsMissing(t) {
				tutors[t] = struct{}{}
			}
		}

		r["unique_tutors"] = len(tutors)
	}

	return r
}

func distinct(students []prepare.MergedStudent, key func(m *prepare.MergedStudent) string) int {
	seen := make(map[string]struct{})

	for i := range students {
		if v := key(&students[i]); !dataset.IsMissing(v) {
			seen[v] = struct{}{}
		}
	}

	return len(seen)
}
