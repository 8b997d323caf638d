package prepare

import "github.com/ethpandaops/datas/pkg/dataset"

// ValueAdded is the change in year-over-year growth:
// (current - one year ago) - (one year ago - two years ago).
// Returns nil when any score is missing.
func ValueAdded(s dataset.Scores) *float64 {
	if s.TwoYearsAgo == nil || s.OneYearAgo == nil || s.Current == nil {
		return nil
	}

	v := (*s.Current - *s.OneYearAgo) - (*s.OneYearAgo - *s.TwoYearsAgo)

	return &v
}

// RawGain is the score change over two years. Returns nil when either score
// is missing.
func RawGain(s dataset.Scores) *float64 {
	if s.TwoYearsAgo == nil || s.Current == nil {
		return nil
	}

	v := *s.Current - *s.TwoYearsAgo

	return &v
}
