package metrics

import (
	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/prepare"
)

// dichotomy is a need flag compared by the equity calculator.
type dichotomy struct {
	column string
	prefix string
	// flagged and other name the two groups in result keys.
	flagged string
	other   string
	get     func(m *prepare.MergedStudent) *bool
}

var dichotomies = []dichotomy{
	{
		column: dataset.ColELL, prefix: "ell", flagged: "ell", other: "non_ell",
		get: func(m *prepare.MergedStudent) *bool { return m.ELL },
	},
	{
		column: dataset.ColIEP, prefix: "iep", flagged: "iep", other: "non_iep",
		get: func(m *prepare.MergedStudent) *bool { return m.IEP },
	},
	{
		column: dataset.ColEconomicDisadvantage, prefix: "econ", flagged: "disadv", other: "adv",
		get: func(m *prepare.MergedStudent) *bool { return m.EconomicDisadvantage },
	},
}

// flagSet treats a missing flag as false.
func flagSet(v *bool) bool {
	return v != nil && *v
}

// GroupGap compares mean hours of two groups. The gap is positive when the
// first group receives more hours. ok is false when either group is empty.
func GroupGap(first, second []float64) (gap, firstMean, secondMean float64, ok bool) {
	if len(first) == 0 || len(second) == 0 {
		return 0, 0, 0, false
	}

	firstMean = summarize(first).mean
	secondMean = summarize(second).mean

	return firstMean - secondMean, firstMean, secondMean, true
}

// Equity compares total hours between flagged and non-flagged students for
// ELL, IEP and economic disadvantage, and reports how many high-need
// students reach the target. A positive gap means the flagged group receives
// more hours. A missing flag counts as not flagged.
func Equity(table *prepare.Table, target float64) Result {
	r := Result{}

	if table.Len() == 0 {
		return r
	}

	for _, d := range dichotomies {
		if !table.Columns.Has(d.column) {
			continue
		}

		var flagged, other []float64

		for i := range table.Students {
			m := &table.Students[i]

			if flagSet(d.get(m)) {
				flagged = append(flagged, m.TotalHours)
			} else {
				other = append(other, m.TotalHours)
			}
		}

		gap, flaggedMean, otherMean, ok := GroupGap(flagged, other)
		if !ok {
			continue
		}

		r[d.prefix+"_gap"] = gap
		r[d.prefix+"_"+d.flagged+"_mean"] = flaggedMean
		r[d.prefix+"_"+d.other+"_mean"] = otherMean
		r[d.prefix+"_"+d.flagged+"_n"] = len(flagged)
		r[d.prefix+"_"+d.other+"_n"] = len(other)
	}

	var highNeed, atTarget int

	for i := range table.Students {
		m := &table.Students[i]

		need := false

		for _, d := range dichotomies {
			if table.Columns.Has(d.column) {
				if flagSet(d.get(m)) {
					need = true
				}
			}
		}

		if !need {
			continue
		}

		highNeed++

		if m.TotalHours >= target {
			atTarget++
		}
	}

	if highNeed > 0 {
		r["high_need_full_dosage_pct"] = pct(atTarget, highNeed)
		r["high_need_n"] = highNeed
	}

	return r
}
