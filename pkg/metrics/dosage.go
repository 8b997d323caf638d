package metrics

import (
	"github.com/ethpandaops/datas/pkg/prepare"
)

// Dosage band keys, ordered from lowest to highest.
const (
	KeyPctBelow25    = "pct_below_25"
	KeyPct25to50     = "pct_25_50"
	KeyPct50to75     = "pct_50_75"
	KeyPct75to99     = "pct_75_99"
	KeyPctFullDosage = "pct_full_dosage"
)

// BandKeys lists the dosage band keys in order.
var BandKeys = []string{KeyPctBelow25, KeyPct25to50, KeyPct50to75, KeyPct75to99, KeyPctFullDosage}

// Bands is the share of students in each dosage band, as percentages of
// the target. The bands are [0, .25T), [.25T, .5T), [.5T, .75T), [.75T, T)
// and [T, inf).
type Bands struct {
	Below25    float64 `json:"pct_below_25"`
	From25To50 float64 `json:"pct_25_50"`
	From50To75 float64 `json:"pct_50_75"`
	From75To99 float64 `json:"pct_75_99"`
	Full       float64 `json:"pct_full_dosage"`
}

// band returns the index of the band hours falls into.
func band(hours, target float64) int {
	switch {
	case hours >= target:
		return 4
	case hours >= target*0.75:
		return 3
	case hours >= target*0.5:
		return 2
	case hours >= target*0.25:
		return 1
	default:
		return 0
	}
}

// DosageBands buckets hours against target. All bands are 0 for an empty
// sample.
func DosageBands(hours []float64, target float64) Bands {
	var counts [5]int

	for _, h := range hours {
		counts[band(h, target)]++
	}

	n := len(hours)

	return Bands{
		Below25:    pct(counts[0], n),
		From25To50: pct(counts[1], n),
		From50To75: pct(counts[2], n),
		From75To99: pct(counts[3], n),
		Full:       pct(counts[4], n),
	}
}

func (b Bands) into(r Result) {
	r[KeyPctBelow25] = b.Below25
	r[KeyPct25to50] = b.From25To50
	r[KeyPct50to75] = b.From50To75
	r[KeyPct75to99] = b.From75To99
	r[KeyPctFullDosage] = b.Full
}

func totalHours(table *prepare.Table) []float64 {
	hours := make([]float64, 0, table.Len())
	for i := range table.Students {
		hours = append(hours, table.Students[i].TotalHours)
	}

	return hours
}

// Dosage summarizes the distribution of total hours against the full-dosage
// target. An empty table yields an empty Result.
func Dosage(table *prepare.Table, target float64) Result {
	if table.Len() == 0 {
		return Result{}
	}

	hours := totalHours(table)
	s := summarize(hours)

	r := Result{
		"total_students": s.n,
		"mean_hours":     s.mean,
		"median_hours":   s.median,
		"q25":            s.q25,
		"q75":            s.q75,
		"iqr":            s.q75 - s.q25,
		"target_dosage":  target,
		"gini":           gini(hours),
	}

	DosageBands(hours, target).into(r)

	return r
}
