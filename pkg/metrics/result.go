// Package metrics computes dosage, equity, outcome and cost statistics over
// a merged student table.
package metrics

import "slices"

// Result is a flat set of named statistics. Values are float64, int, bool
// or an explicit nil for a statistic that is defined but undefined for the
// input. A missing key means the statistic is unavailable.
type Result map[string]any

// Has reports whether key is present, including explicit nil values.
func (r Result) Has(key string) bool {
	_, ok := r[key]

	return ok
}

// IsNull reports whether key is present with an explicit nil value.
func (r Result) IsNull(key string) bool {
	v, ok := r[key]

	return ok && v == nil
}

// Float returns a numeric statistic as float64.
func (r Result) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns a count statistic.
func (r Result) Int(key string) (int, bool) {
	v, ok := r[key].(int)

	return v, ok
}

// Bool returns a boolean statistic.
func (r Result) Bool(key string) (bool, bool) {
	v, ok := r[key].(bool)

	return v, ok
}

// Keys returns the statistic names in sorted order.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
