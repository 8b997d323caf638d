// Package aggregate groups session records into per-student totals and
// fidelity buckets.
package aggregate

import (
	"slices"
	"strings"

	"github.com/ethpandaops/datas/pkg/dataset"
)

// RollingWindow is the number of date buckets in the trailing moving average.
const RollingWindow = 7

// StudentSubject keys hours by student and subject.
type StudentSubject struct {
	StudentID string
	Subject   dataset.Subject
}

// HoursPerStudent sums session hours per student. Students whose sessions
// all lack a duration are present with 0 hours.
func HoursPerStudent(sessions []dataset.SessionRecord) map[string]float64 {
	out := make(map[string]float64)

	for i := range sessions {
		id := dataset.NormalizeID(sessions[i].StudentID)
		if id == "" {
			continue
		}

		h, _ := sessions[i].DurationHours()
		out[id] += h
	}

	return out
}

// SessionsPerStudent counts session rows per student.
func SessionsPerStudent(sessions []dataset.SessionRecord) map[string]int {
	out := make(map[string]int)

	for i := range sessions {
		id := dataset.NormalizeID(sessions[i].StudentID)
		if id == "" {
			continue
		}

		out[id]++
	}

	return out
}

// HoursPerStudentPerSubject sums session hours per student and lower-cased
// subject.
func HoursPerStudentPerSubject(sessions []dataset.SessionRecord) map[StudentSubject]float64 {
	out := make(map[StudentSubject]float64)

	for i := range sessions {
		id := dataset.NormalizeID(sessions[i].StudentID)
		if id == "" {
			continue
		}

		key := StudentSubject{
			StudentID: id,
			Subject:   dataset.Subject(strings.ToLower(string(sessions[i].Subject))),
		}

		h, _ := sessions[i].DurationHours()
		out[key] += h
	}

	return out
}

// HourBucket is the tutoring volume delivered in one hour of the day.
type HourBucket struct {
	Hour       int     `json:"hour"`
	TotalHours float64 `json:"total_hours"`
	// Sessions counts every session in the hour, including those without a
	// known duration.
	Sessions int `json:"sessions"`
}

// ByHourOfDay groups dated sessions by hour of day, ordered by hour. Sessions
// without a date are dropped; date-only sessions fall in hour 0.
func ByHourOfDay(sessions []dataset.SessionRecord) []HourBucket {
	byHour := make(map[int]*HourBucket)

	for i := range sessions {
		s := &sessions[i]
		if !s.HasDate() {
			continue
		}

		hour := s.Date.Hour()

		b, ok := byHour[hour]
		if !ok {
			b = &HourBucket{Hour: hour}
			byHour[hour] = b
		}

		b.Sessions++

		if h, known := s.DurationHours(); known {
			b.TotalHours += h
		}
	}

	out := make([]HourBucket, 0, len(byHour))
	for _, b := range byHour {
		out = append(out, *b)
	}

	slices.SortFunc(out, func(a, b HourBucket) int { return a.Hour - b.Hour })

	return out
}

// DateBucket is the tutoring volume delivered on one calendar date.
type DateBucket struct {
	Date string `json:"date"`
	// MeanHours is nil when no session on the date has a known duration.
	MeanHours  *float64 `json:"mean_hours"`
	TotalHours float64  `json:"total_hours"`
	// Sessions counts sessions with a known duration.
	Sessions       int `json:"sessions"`
	UniqueStudents int `json:"unique_students"`
	// RollingMeanHours averages MeanHours over this and the previous
	// RollingWindow-1 buckets, skipping buckets without a mean.
	RollingMeanHours *float64 `json:"rolling_mean_hours"`
}

type dateAccumulator struct {
	total    float64
	known    int
	students map[string]struct{}
}

// ByDate groups dated sessions by calendar date, ordered by date. The moving
// average spans buckets, not calendar days.
func ByDate(sessions []dataset.SessionRecord) []DateBucket {
	acc := make(map[string]*dateAccumulator)

	for i := range sessions {
		s := &sessions[i]
		if !s.HasDate() {
			continue
		}

		day := s.Date.Format("2006-01-02")

		a, ok := acc[day]
		if !ok {
			a = &dateAccumulator{students: make(map[string]struct{})}
			acc[day] = a
		}

		if id := dataset.NormalizeID(s.StudentID); id != "" {
			a.students[id] = struct{}{}
		}

		if h, known := s.DurationHours(); known {
			a.total += h
			a.known++
		}
	}

	days := make([]string, 0, len(acc))
	for d := range acc {
		days = append(days, d)
	}

	slices.Sort(days)

	out := make([]DateBucket, 0, len(days))

	for _, d := range days {
		a := acc[d]

		b := DateBucket{
			Date:           d,
			TotalHours:     a.total,
			Sessions:       a.known,
			UniqueStudents: len(a.students),
		}

		if a.known > 0 {
			mean := a.total / float64(a.known)
			b.MeanHours = &mean
		}

		out = append(out, b)
	}

	for i := range out {
		var (
			sum float64
			n   int
		)

		for j := max(0, i-RollingWindow+1); j <= i; j++ {
			if out[j].MeanHours != nil {
				sum += *out[j].MeanHours
				n++
			}
		}

		if n > 0 {
			mean := sum / float64(n)
			out[i].RollingMeanHours = &mean
		}
	}

	return out
}

// RatioBucket is the tutoring volume delivered at one group ratio.
type RatioBucket struct {
	Ratio      string  `json:"ratio"`
	Sessions   int     `json:"sessions"`
	TotalHours float64 `json:"total_hours"`
	Students   int     `json:"students"`
}

// ByGroupRatio groups sessions by group ratio, ordered by ratio. Sessions
// without a ratio are omitted.
func ByGroupRatio(sessions []dataset.SessionRecord) []RatioBucket {
	type ratioAcc struct {
		RatioBucket
		students map[string]struct{}
	}

	acc := make(map[string]*ratioAcc)

	for i := range sessions {
		s := &sessions[i]

		ratio := strings.TrimSpace(s.GroupRatio)
		if dataset.IsMissing(ratio) {
			continue
		}

		a, ok := acc[ratio]
		if !ok {
			a = &ratioAcc{
				RatioBucket: RatioBucket{Ratio: ratio},
				students:    make(map[string]struct{}),
			}
			acc[ratio] = a
		}

		a.Sessions++

		h, _ := s.DurationHours()
		a.TotalHours += h

		if id := dataset.NormalizeID(s.StudentID); id != "" {
			a.students[id] = struct{}{}
		}
	}

	out := make([]RatioBucket, 0, len(acc))

	for _, a := range acc {
		a.Students = len(a.students)
		out = append(out, a.RatioBucket)
	}

	slices.SortFunc(out, func(a, b RatioBucket) int { return strings.Compare(a.Ratio, b.Ratio) })

	return out
}
