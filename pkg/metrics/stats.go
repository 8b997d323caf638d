package metrics

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Alpha is the significance level of the one-sample t-test.
const Alpha = 0.05

// summary holds the descriptive statistics of one sample.
type summary struct {
	n      int
	mean   float64
	median float64
	q25    float64
	q75    float64
	// std is the sample standard deviation, NaN when n < 2.
	std float64
	sum float64
}

func summarize(values []float64) summary {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	s := summary{
		n:      len(sorted),
		mean:   stat.Mean(sorted, nil),
		median: quantile(sorted, 0.5),
		q25:    quantile(sorted, 0.25),
		q75:    quantile(sorted, 0.75),
		std:    math.NaN(),
		sum:    sumOf(sorted),
	}

	if s.n > 1 {
		s.std = stat.StdDev(sorted, nil)
	}

	return s
}

func sumOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum
}

// quantile returns the q-th quantile of an ascending sample using linear
// interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}

	if n == 1 {
		return sorted[0]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)

	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// gini returns the rank-weighted Gini coefficient of non-negative values:
// 2*sum(i*x_i)/(n*sum(x)) - (n+1)/n with x sorted ascending and i 1-indexed.
// It is 0 when the values sum to 0.
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.SortStableFunc(sorted, func(a, b float64) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	})

	var weighted, total float64

	for i, x := range sorted {
		weighted += float64(i+1) * x
		total += x
	}

	if total <= 0 {
		return 0
	}

	fn := float64(n)

	return 2*weighted/(fn*total) - (fn+1)/fn
}

// oneSampleTTest returns the two-sided p-value of a t-test of the sample
// mean against zero. ok is false when the test is undefined.
func oneSampleTTest(s summary) (pvalue float64, ok bool) {
	if s.n < 2 || math.IsNaN(s.std) || s.std <= 0 {
		return 0, false
	}

	t := s.mean / (s.std / math.Sqrt(float64(s.n)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(s.n - 1)}

	return 2 * dist.CDF(-math.Abs(t)), true
}

// pct returns count/total as a percentage.
func pct(count, total int) float64 {
	if total == 0 {
		return 0
	}

	return float64(count) / float64(total) * 100
}
