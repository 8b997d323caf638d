package dataset

// Session dataset columns.
const (
	ColStudentID       = "student_id"
	ColSessionTopic    = "session_topic"
	ColSessionDate     = "session_date"
	ColSessionDuration = "session_duration"
	ColSessionRatio    = "session_ratio"
	ColTutorID         = "tutor_id"
)

// Student dataset columns.
const (
	ColSchoolID                = "school_id"
	ColSchoolName              = "school_name"
	ColDistrictID              = "district_id"
	ColDistrictName            = "district_name"
	ColGradeLevel              = "current_grade_level"
	ColGender                  = "gender"
	ColEthnicity               = "ethnicity"
	ColELL                     = "ell"
	ColIEP                     = "iep"
	ColGifted                  = "gifted_flag"
	ColHomeless                = "homeless_flag"
	ColDisability              = "disability"
	ColEconomicDisadvantage    = "economic_disadvantage"
	ColELAScoreTwoYearsAgo     = "ela_state_score_two_years_ago"
	ColELAScoreOneYearAgo      = "ela_state_score_one_year_ago"
	ColELAScoreCurrent         = "ela_state_score_current_year"
	ColMathScoreTwoYearsAgo    = "math_state_score_two_years_ago"
	ColMathScoreOneYearAgo     = "math_state_score_one_year_ago"
	ColMathScoreCurrent        = "math_state_score_current_year"
	ColPerformanceLevelPrior   = "performance_level_prior_year"
	ColPerformanceLevelCurrent = "performance_level_current_year"
	ColPerformanceLevelTwoAgo  = "performance_level_two_years_ago"
)

// SessionColumns are the expected session columns.
var SessionColumns = []string{
	ColStudentID, ColSessionTopic, ColSessionDate, ColSessionDuration, ColTutorID,
}

// SessionOptionalColumns are session columns that may be absent without a warning.
var SessionOptionalColumns = []string{ColSessionRatio}

// StudentColumns are the expected student columns.
var StudentColumns = []string{
	ColStudentID, ColDistrictID, ColDistrictName, ColSchoolID, ColSchoolName,
	ColGradeLevel, ColGender, ColEthnicity, ColELL, ColIEP, ColGifted,
	ColHomeless, ColELAScoreTwoYearsAgo, ColELAScoreOneYearAgo,
	ColELAScoreCurrent, ColMathScoreTwoYearsAgo, ColMathScoreOneYearAgo,
	ColMathScoreCurrent, ColPerformanceLevelPrior, ColPerformanceLevelCurrent,
	ColDisability, ColEconomicDisadvantage,
}

// StudentOptionalColumns are student columns that may be absent without a warning.
var StudentOptionalColumns = []string{ColPerformanceLevelTwoAgo}

// ScoreColumns returns the two-years-ago, one-year-ago and current score
// columns for a subject.
func ScoreColumns(subject Subject) []string {
	switch subject {
	case SubjectELA:
		return []string{ColELAScoreTwoYearsAgo, ColELAScoreOneYearAgo, ColELAScoreCurrent}
	case SubjectMath:
		return []string{ColMathScoreTwoYearsAgo, ColMathScoreOneYearAgo, ColMathScoreCurrent}
	default:
		return nil
	}
}
