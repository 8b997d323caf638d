package dataset

import "time"

// Subject identifies the tutoring subject of a session.
type Subject string

const (
	// SubjectMath is the math tutoring subject.
	SubjectMath Subject = "math"
	// SubjectELA is the English language arts tutoring subject.
	SubjectELA Subject = "ela"
)

// Subjects lists the subjects the metrics are computed for, in report order.
var Subjects = []Subject{SubjectELA, SubjectMath}

// SessionRecord is a single tutoring session.
type SessionRecord struct {
	StudentID string
	Subject   Subject
	// Date is the zero time when the session date is missing or unparseable.
	Date time.Time
	// HasTime reports whether Date carried a time of day.
	HasTime bool
	// DurationMinutes is nil when the duration is missing or non-numeric.
	DurationMinutes *float64
	GroupRatio      string
	TutorID         string
}

// HasDate reports whether the session has a usable date.
func (s *SessionRecord) HasDate() bool {
	return !s.Date.IsZero()
}

// DurationHours returns the session duration in hours and whether it is known.
func (s *SessionRecord) DurationHours() (float64, bool) {
	if s.DurationMinutes == nil {
		return 0, false
	}

	return *s.DurationMinutes / 60, true
}

// StudentRecord is one student's demographic and achievement profile.
type StudentRecord struct {
	StudentID    string `json:"student_id"`
	SchoolID     string `json:"school_id,omitempty"`
	SchoolName   string `json:"school_name,omitempty"`
	DistrictID   string `json:"district_id,omitempty"`
	DistrictName string `json:"district_name,omitempty"`
	GradeLevel   *int   `json:"current_grade_level"`
	Gender       string `json:"gender,omitempty"`
	Ethnicity    string `json:"ethnicity,omitempty"`

	ELL                  *bool `json:"ell"`
	IEP                  *bool `json:"iep"`
	Gifted               *bool `json:"gifted_flag"`
	Homeless             *bool `json:"homeless_flag"`
	Disability           *bool `json:"disability"`
	EconomicDisadvantage *bool `json:"economic_disadvantage"`

	ELAScoreTwoYearsAgo  *float64 `json:"ela_state_score_two_years_ago"`
	ELAScoreOneYearAgo   *float64 `json:"ela_state_score_one_year_ago"`
	ELAScoreCurrent      *float64 `json:"ela_state_score_current_year"`
	MathScoreTwoYearsAgo *float64 `json:"math_state_score_two_years_ago"`
	MathScoreOneYearAgo  *float64 `json:"math_state_score_one_year_ago"`
	MathScoreCurrent     *float64 `json:"math_state_score_current_year"`

	PerformanceLevelPrior   string `json:"performance_level_prior_year,omitempty"`
	PerformanceLevelCurrent string `json:"performance_level_current_year,omitempty"`
}

// Scores holds the three yearly state scores for one subject.
type Scores struct {
	TwoYearsAgo *float64
	OneYearAgo  *float64
	Current     *float64
}

// Scores returns the yearly scores for the given subject.
func (r *StudentRecord) Scores(subject Subject) Scores {
	switch subject {
	case SubjectELA:
		return Scores{
			TwoYearsAgo: r.ELAScoreTwoYearsAgo,
			OneYearAgo:  r.ELAScoreOneYearAgo,
			Current:     r.ELAScoreCurrent,
		}
	case SubjectMath:
		return Scores{
			TwoYearsAgo: r.MathScoreTwoYearsAgo,
			OneYearAgo:  r.MathScoreOneYearAgo,
			Current:     r.MathScoreCurrent,
		}
	default:
		return Scores{}
	}
}

// ColumnSet is the set of column names present in an input file.
type ColumnSet map[string]struct{}

// NewColumnSet builds a ColumnSet from column names.
func NewColumnSet(names ...string) ColumnSet {
	cs := make(ColumnSet, len(names))
	for _, n := range names {
		cs[n] = struct{}{}
	}

	return cs
}

// Has reports whether all the given columns are present.
func (c ColumnSet) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := c[n]; !ok {
			return false
		}
	}

	return true
}

// Sessions is a loaded session dataset.
type Sessions struct {
	Records  []SessionRecord
	Columns  ColumnSet
	Warnings []string
}

// Students is a loaded student dataset.
type Students struct {
	Records  []StudentRecord
	Columns  ColumnSet
	Warnings []string
}
