package metrics

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/prepare"
)

// GroupDosage is the dosage distribution of one school or subject. Bands
// cover tutored students only, i.e. those with hours > 0.
type GroupDosage struct {
	Group           string  `json:"group"`
	TotalStudents   int     `json:"total_students"`
	StudentsTutored int     `json:"students_tutored"`
	PctTutored      float64 `json:"pct_tutored"`
	Bands           Bands   `json:"bands"`
}

func groupDosage(name string, hours []float64, total int, target float64) GroupDosage {
	tutored := make([]float64, 0, len(hours))

	for _, h := range hours {
		if h > 0 {
			tutored = append(tutored, h)
		}
	}

	return GroupDosage{
		Group:           name,
		TotalStudents:   total,
		StudentsTutored: len(tutored),
		PctTutored:      pct(len(tutored), total),
		Bands:           DosageBands(tutored, target),
	}
}

// SchoolDosage returns one row per school name, sorted by the share of
// tutored students at full dosage (highest first), ties by name. Students
// without a school name are skipped.
func SchoolDosage(table *prepare.Table, target float64) []GroupDosage {
	if table.Len() == 0 || !table.Columns.Has(dataset.ColSchoolName) {
		return []GroupDosage{}
	}

	bySchool := make(map[string][]float64)

	for i := range table.Students {
		m := &table.Students[i]
		if dataset.IsMissing(m.SchoolName) {
			continue
		}

		bySchool[m.SchoolName] = append(bySchool[m.SchoolName], m.TotalHours)
	}

	out := make([]GroupDosage, 0, len(bySchool))
	for school, hours := range bySchool {
		out = append(out, groupDosage(school, hours, len(hours), target))
	}

	slices.SortFunc(out, func(a, b GroupDosage) int {
		if c := cmp.Compare(b.Bands.Full, a.Bands.Full); c != 0 {
			return c
		}

		return strings.Compare(a.Group, b.Group)
	})

	return out
}

// SubjectDosage returns one row per subject using that subject's hours.
// The tutored share is relative to every student in the table.
func SubjectDosage(table *prepare.Table, target float64) []GroupDosage {
	if table.Len() == 0 || !table.SessionColumns.Has(dataset.ColSessionTopic) {
		return []GroupDosage{}
	}

	out := make([]GroupDosage, 0, len(dataset.Subjects))

	for _, subject := range dataset.Subjects {
		hours := make([]float64, 0, table.Len())
		for i := range table.Students {
			hours = append(hours, table.Students[i].Hours(subject))
		}

		out = append(out, groupDosage(strings.ToUpper(string(subject)), hours, table.Len(), target))
	}

	return out
}

// EthnicityDosage is the dosage summary of one ethnicity.
type EthnicityDosage struct {
	Ethnicity     string  `json:"ethnicity"`
	N             int     `json:"n"`
	MeanHours     float64 `json:"mean_hours"`
	MedianHours   float64 `json:"median_hours"`
	PctFullDosage float64 `json:"pct_full_dosage"`
}

// EthnicityBreakdown summarizes total hours per ethnicity, ordered by name.
// Students without an ethnicity are skipped.
func EthnicityBreakdown(table *prepare.Table, target float64) []EthnicityDosage {
	if table.Len() == 0 || !table.Columns.Has(dataset.ColEthnicity) {
		return []EthnicityDosage{}
	}

	byGroup := make(map[string][]float64)

	for i := range table.Students {
		m := &table.Students[i]
		if m.Ethnicity == "" {
			continue
		}

		byGroup[m.Ethnicity] = append(byGroup[m.Ethnicity], m.TotalHours)
	}

	out := make([]EthnicityDosage, 0, len(byGroup))

	for eth, hours := range byGroup {
		s := summarize(hours)

		var full int

		for _, h := range hours {
			if h >= target {
				full++
			}
		}

		out = append(out, EthnicityDosage{
			Ethnicity:     eth,
			N:             s.n,
			MeanHours:     s.mean,
			MedianHours:   s.median,
			PctFullDosage: pct(full, s.n),
		})
	}

	slices.SortFunc(out, func(a, b EthnicityDosage) int { return strings.Compare(a.Ethnicity, b.Ethnicity) })

	return out
}

// PerformanceReach counts tutored and untutored students at one current
// performance level. A student is tutored when any session joined to them.
type PerformanceReach struct {
	Level      string  `json:"level"`
	Total      int     `json:"total"`
	Tutored    int     `json:"tutored"`
	Untutored  int     `json:"untutored"`
	PctTutored float64 `json:"pct_tutored"`
}

// PerformanceBreakdown groups students by current-year performance level,
// ordered by level name.
func PerformanceBreakdown(table *prepare.Table) []PerformanceReach {
	if table.Len() == 0 || !table.Columns.Has(dataset.ColPerformanceLevelCurrent) {
		return []PerformanceReach{}
	}

	byLevel := make(map[string]*PerformanceReach)

	for i := range table.Students {
		m := &table.Students[i]
		if dataset.IsMissing(m.PerformanceLevelCurrent) {
			continue
		}

		r, ok := byLevel[m.PerformanceLevelCurrent]
		if !ok {
			r = &PerformanceReach{Level: m.PerformanceLevelCurrent}
			byLevel[m.PerformanceLevelCurrent] = r
		}

		r.Total++

		if m.SessionCount > 0 {
			r.Tutored++
		}
	}

	out := make([]PerformanceReach, 0, len(byLevel))

	for _, r := range byLevel {
		r.Untutored = r.Total - r.Tutored
		r.PctTutored = pct(r.Tutored, r.Total)
		out = append(out, *r)
	}

	slices.SortFunc(out, func(a, b PerformanceReach) int { return strings.Compare(a.Level, b.Level) })

	return out
}

const (
	// LikelihoodBins is the number of equal-width score bins.
	LikelihoodBins = 20
	// LikelihoodMinBinSize is the smallest bin reported.
	LikelihoodMinBinSize = 5
)

// ScoreBin is the share of students tutored within one current-year score
// range.
type ScoreBin struct {
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Mid        float64 `json:"mid"`
	N          int     `json:"n"`
	PctTutored float64 `json:"pct_tutored"`
}

// TutoringLikelihood bins students by current-year score for a subject into
// LikelihoodBins equal-width bins between the lowest and highest score and
// reports the tutored share of each bin with at least LikelihoodMinBinSize
// students. Bins are closed on the right; the first bin also includes the
// minimum.
func TutoringLikelihood(table *prepare.Table, subject dataset.Subject) []ScoreBin {
	type scored struct {
		score   float64
		tutored bool
	}

	var rows []scored

	for i := range table.Students {
		m := &table.Students[i]
		if cur := m.Scores(subject).Current; cur != nil {
			rows = append(rows, scored{score: *cur, tutored: m.SessionCount > 0})
		}
	}

	if len(rows) == 0 {
		return []ScoreBin{}
	}

	lo, hi := rows[0].score, rows[0].score
	for _, r := range rows {
		lo = math.Min(lo, r.score)
		hi = math.Max(hi, r.score)
	}

	width := (hi - lo) / LikelihoodBins

	var counts, tutored [LikelihoodBins]int

	for _, r := range rows {
		idx := 0
		if width > 0 {
			idx = int(math.Ceil((r.score-lo)/width)) - 1
			idx = min(max(idx, 0), LikelihoodBins-1)
		}

		counts[idx]++

		if r.tutored {
			tutored[idx]++
		}
	}

	out := make([]ScoreBin, 0, LikelihoodBins)

	for i := range LikelihoodBins {
		if counts[i] < LikelihoodMinBinSize {
			continue
		}

		low := lo + float64(i)*width
		high := lo + float64(i+1)*width

		out = append(out, ScoreBin{
			Low:        low,
			High:       high,
			Mid:        (low + high) / 2,
			N:          counts[i],
			PctTutored: pct(tutored[i], counts[i]),
		})
	}

	return out
}
