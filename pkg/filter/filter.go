// Package filter selects subgroups of the merged student table.
package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ethpandaops/datas/pkg/prepare"
)

// AllSchools is the school sentinel that applies no school predicate.
const AllSchools = "All"

// Spec is a set of optional predicates combined with AND. A zero Spec
// matches every student.
type Spec struct {
	School               string   `json:"school,omitempty" yaml:"school,omitempty"`
	Grades               []int    `json:"grades,omitempty" yaml:"grades,omitempty"`
	ELL                  *bool    `json:"ell,omitempty" yaml:"ell,omitempty"`
	IEP                  *bool    `json:"iep,omitempty" yaml:"iep,omitempty"`
	EconomicDisadvantage *bool    `json:"economic_disadvantage,omitempty" yaml:"economic_disadvantage,omitempty"`
	Gifted               *bool    `json:"gifted,omitempty" yaml:"gifted,omitempty"`
	Homeless             *bool    `json:"homeless,omitempty" yaml:"homeless,omitempty"`
	Disability           *bool    `json:"disability,omitempty" yaml:"disability,omitempty"`
	Genders              []string `json:"genders,omitempty" yaml:"genders,omitempty"`
	Ethnicities          []string `json:"ethnicities,omitempty" yaml:"ethnicities,omitempty"`
}

// IsEmpty reports whether the filter has no active predicate.
func (s *Spec) IsEmpty() bool {
	return len(s.predicates()) == 0
}

type predicate struct {
	name  string
	match func(m *prepare.MergedStudent) bool
	desc  string
}

func (s *Spec) predicates() []predicate {
	var preds []predicate

	if school := strings.TrimSpace(s.School); school != "" && school != AllSchools {
		preds = append(preds, predicate{
			name:  "school",
			desc:  school,
			match: func(m *prepare.MergedStudent) bool { return m.SchoolName == school },
		})
	}

	if len(s.Grades) > 0 {
		grades := slices.Clone(s.Grades)
		slices.Sort(grades)

		parts := make([]string, 0, len(grades))
		for _, g := range grades {
			parts = append(parts, strconv.Itoa(g))
		}

		preds = append(preds, predicate{
			name: "grades",
			desc: strings.Join(parts, ","),
			match: func(m *prepare.MergedStudent) bool {
				return m.GradeLevel != nil && slices.Contains(grades, *m.GradeLevel)
			},
		})
	}

	flags := []struct {
		name string
		want *bool
		get  func(m *prepare.MergedStudent) *bool
	}{
		{"ell", s.ELL, func(m *prepare.MergedStudent) *bool { return m.ELL }},
		{"iep", s.IEP, func(m *prepare.MergedStudent) *bool { return m.IEP }},
		{"economic_disadvantage", s.EconomicDisadvantage, func(m *prepare.MergedStudent) *bool { return m.EconomicDisadvantage }},
		{"gifted", s.Gifted, func(m *prepare.MergedStudent) *bool { return m.Gifted }},
		{"homeless", s.Homeless, func(m *prepare.MergedStudent) *bool { return m.Homeless }},
		{"disability", s.Disability, func(m *prepare.MergedStudent) *bool { return m.Disability }},
	}

	for _, fl := range flags {
		if fl.want == nil {
			continue
		}

		want, get := *fl.want, fl.get

		preds = append(preds, predicate{
			name:  fl.name,
			desc:  strconv.FormatBool(want),
			match: func(m *prepare.MergedStudent) bool { return flagValue(get(m)) == want },
		})
	}

	if len(s.Genders) > 0 {
		genders := slices.Clone(s.Genders)
		preds = append(preds, predicate{
			name:  "genders",
			desc:  strings.Join(genders, ","),
			match: func(m *prepare.MergedStudent) bool { return slices.Contains(genders, m.Gender) },
		})
	}

	if len(s.Ethnicities) > 0 {
		ethnicities := slices.Clone(s.Ethnicities)
		preds = append(preds, predicate{
			name:  "ethnicities",
			desc:  strings.Join(ethnicities, ","),
			match: func(m *prepare.MergedStudent) bool { return slices.Contains(ethnicities, m.Ethnicity) },
		})
	}

	return preds
}

// flagValue treats a missing flag as false.
func flagValue(v *bool) bool {
	return v != nil && *v
}

// Matcher is a compiled Spec. The zero Matcher matches every student.
type Matcher struct {
	preds []predicate
}

// Compile builds the predicates once so they can be evaluated against many
// students.
func (s *Spec) Compile() Matcher {
	return Matcher{preds: s.predicates()}
}

// Match reports whether a student satisfies every predicate.
func (mt Matcher) Match(m *prepare.MergedStudent) bool {
	for _, p := range mt.preds {
		if !p.match(m) {
			return false
		}
	}

	return true
}

// Matches reports whether a single student satisfies every predicate. Use
// Compile when checking many students.
func (s *Spec) Matches(m *prepare.MergedStudent) bool {
	return s.Compile().Match(m)
}

// String describes the active predicates, e.g. "school=Lincoln ell=true".
func (s *Spec) String() string {
	preds := s.predicates()
	if len(preds) == 0 {
		return "none"
	}

	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		parts = append(parts, fmt.Sprintf("%s=%s", p.name, p.desc))
	}

	return strings.Join(parts, " ")
}

// Apply returns a new table holding the students that match spec, in their
// original order. The input table is not modified. An empty result is valid.
func Apply(table *prepare.Table, spec Spec) *prepare.Table {
	if table == nil {
		return &prepare.Table{}
	}

	matcher := spec.Compile()

	out := make([]prepare.MergedStudent, 0, len(table.Students))

	for i := range table.Students {
		if matcher.Match(&table.Students[i]) {
			out = append(out, table.Students[i])
		}
	}

	return table.WithStudents(out)
}
