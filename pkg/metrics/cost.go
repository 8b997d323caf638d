package metrics

import (
	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/prepare"
)

// Cost relates total program cost to students served, hours delivered and
// score points gained across both subjects. Cost per point is an explicit
// nil when the points sum is not strictly positive. The sums cover the
// table passed in, so callers filter first to cost a subgroup.
func Cost(table *prepare.Table, totalCost float64) Result {
	r := Result{}

	n := table.Len()
	if n == 0 {
		return r
	}

	var hours, vaPoints, rawPoints float64

	for i := range table.Students {
		m := &table.Students[i]
		hours += m.TotalHours

		for _, subject := range dataset.Subjects {
			if v := m.ValueAdded(subject); v != nil {
				vaPoints += *v
			}

			if v := m.RawGain(subject); v != nil {
				rawPoints += *v
			}
		}
	}

	r["total_cost"] = totalCost
	r["n_students"] = n
	r["total_hours"] = hours
	r["total_va_points"] = vaPoints
	r["total_raw_points"] = rawPoints
	r["cost_per_student"] = totalCost / float64(n)

	if hours > 0 {
		r["cost_per_hour"] = totalCost / hours
	}

	r["cost_per_va_point"] = perPoint(totalCost, vaPoints)
	r["cost_per_raw_point"] = perPoint(totalCost, rawPoints)

	return r
}

func perPoint(cost, points float64) any {
	if points > 0 {
		return cost / points
	}

	return nil
}
