package metrics

import (
	"math"

	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/prepare"
)

// WeeksPerEffectSize converts a standardized effect size into weeks of
// additional learning, assuming one month of growth is 0.1 SD and a month is
// 4.3 weeks.
const WeeksPerEffectSize = 4.3

// Outcome measure kinds used in result keys.
const (
	MeasureValueAdded = "va"
	MeasureRawGain    = "raw"
)

// Outcome summarizes value-added and raw-gain scores per subject. Keys are
// <subject>_<va|raw>_<stat>; statistics that are undefined for the sample
// are omitted.
func Outcome(table *prepare.Table) Result {
	r := Result{}

	if table.Len() == 0 {
		return r
	}

	for _, subject := range dataset.Subjects {
		var va, raw []float64

		for i := range table.Students {
			m := &table.Students[i]

			if v := m.ValueAdded(subject); v != nil {
				va = append(va, *v)
			}

			if v := m.RawGain(subject); v != nil {
				raw = append(raw, *v)
			}
		}

		outcomeStats(r, string(subject)+"_"+MeasureValueAdded, va)
		outcomeStats(r, string(subject)+"_"+MeasureRawGain, raw)
	}

	return r
}

func outcomeStats(r Result, prefix string, values []float64) {
	if len(values) == 0 {
		return
	}

	s := summarize(values)

	var positive int

	for _, v := range values {
		if v > 0 {
			positive++
		}
	}

	r[prefix+"_mean"] = s.mean
	r[prefix+"_median"] = s.median
	r[prefix+"_positive_pct"] = pct(positive, s.n)
	r[prefix+"_n"] = s.n

	if math.IsNaN(s.std) {
		return
	}

	r[prefix+"_std"] = s.std

	if p, ok := oneSampleTTest(s); ok {
		r[prefix+"_pvalue"] = p
		r[prefix+"_significant"] = p < Alpha
	}

	if s.std > 0 {
		effect := s.mean / s.std
		r[prefix+"_effect_size"] = effect
		r[prefix+"_weeks_learning"] = effect * WeeksPerEffectSize
	}
}
