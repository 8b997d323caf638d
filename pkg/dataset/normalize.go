package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// missingTokens are cell values treated as an absent value.
var missingTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"null": {},
	"none": {},
	"na":   {},
	"n/a":  {},
}

// trueTokens are the accepted spellings of a true flag, compared lower-cased.
var trueTokens = map[string]struct{}{
	"true": {},
	"1":    {},
	"t":    {},
	"yes":  {},
	"y":    {},
}

// IsMissing reports whether a raw cell value represents a missing value.
func IsMissing(raw string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(raw))]

	return ok
}

// NormalizeID returns the canonical form of a student identifier.
func NormalizeID(raw string) string {
	return strings.TrimSpace(raw)
}

// ParseFlag normalizes a boolean-ish cell. Accepted true tokens are
// true, 1, t, yes and y (case-insensitive); any other present value is false.
// Missing values return nil.
func ParseFlag(raw string) *bool {
	if IsMissing(raw) {
		return nil
	}

	_, ok := trueTokens[strings.ToLower(strings.TrimSpace(raw))]

	return &ok
}

// ParseFloat coerces a cell to a number. Missing and non-numeric values
// return nil.
func ParseFloat(raw string) *float64 {
	if IsMissing(raw) {
		return nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}

	return &v
}

// ParseGrade coerces a grade level cell to an integer, accepting values
// such as "3" and "3.0".
func ParseGrade(raw string) *int {
	f := ParseFloat(raw)
	if f == nil || *f != math.Trunc(*f) {
		return nil
	}

	g := int(*f)

	return &g
}

// ParseSubject lower-cases a subject cell so that "Math", "math" and "MATH"
// collapse to one value.
func ParseSubject(raw string) Subject {
	return Subject(strings.ToLower(strings.TrimSpace(raw)))
}

// dateLayouts are tried in order. The bool is whether the layout has a time
// of day.
var dateLayouts = []struct {
	layout  string
	hasTime bool
}{
	{"2006-01-02", false},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02 15:04", true},
	{"2006-01-02T15:04:05", true},
	{time.RFC3339, true},
	{"2006/01/02", false},
	{"2006/01/02 15:04:05", true},
	{"01/02/2006", false},
	{"01/02/2006 15:04:05", true},
	{"01/02/2006 15:04", true},
	{"1/2/2006", false},
	{"1/2/2006 15:04", true},
}

// ParseSessionDate parses a session date cell. ok is false when the value is
// missing or matches none of the accepted layouts.
func ParseSessionDate(raw string) (t time.Time, hasTime bool, ok bool) {
	if IsMissing(raw) {
		return time.Time{}, false, false
	}

	s := strings.TrimSpace(raw)

	for _, dl := range dateLayouts {
		parsed, err := time.Parse(dl.layout, s)
		if err == nil {
			return parsed, dl.hasTime, true
		}
	}

	return time.Time{}, false, false
}
