package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/prepare"
)

func b(v bool) *bool {
	return &v
}

func grade(v int) *int {
	return &v
}

func fixture() *prepare.Table {
	students := []prepare.MergedStudent{
		{StudentRecord: dataset.StudentRecord{
			StudentID: "S1", SchoolName: "Lincoln", GradeLevel: grade(3),
			Gender: "F", Ethnicity: "Hispanic", ELL: b(true), IEP: b(false),
		}, TotalHours: 10},
		{StudentRecord: dataset.StudentRecord{
			StudentID: "S2", SchoolName: "Lincoln", GradeLevel: grade(4),
			Gender: "M", Ethnicity: "White", ELL: b(false), IEP: b(true),
		}, TotalHours: 20},
		{StudentRecord: dataset.StudentRecord{
			StudentID: "S3", SchoolName: "Adams", GradeLevel: nil,
			Gender: "F", Ethnicity: "Black", ELL: nil,
		}, TotalHours: 30},
	}

	return &prepare.Table{
		Students: students,
		Columns:  dataset.NewColumnSet(dataset.StudentColumns...),
	}
}

func ids(t *prepare.Table) []string {
	out := make([]string, 0, t.Len())
	for _, s := range t.Students {
		out = append(out, s.StudentID)
	}

	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want []string
	}{
		{name: "empty spec keeps all", spec: Spec{}, want: []string{"S1", "S2", "S3"}},
		{name: "All school sentinel", spec: Spec{School: AllSchools}, want: []string{"S1", "S2", "S3"}},
		{name: "school", spec: Spec{School: "Lincoln"}, want: []string{"S1", "S2"}},
		{name: "grade membership", spec: Spec{Grades: []int{4, 5}}, want: []string{"S2"}},
		{name: "missing grade never matches", spec: Spec{Grades: []int{3, 4, 5}}, want: []string{"S1", "S2"}},
		{name: "ell true", spec: Spec{ELL: b(true)}, want: []string{"S1"}},
		{name: "missing flag counts as false", spec: Spec{ELL: b(false)}, want: []string{"S2", "S3"}},
		{name: "gender", spec: Spec{Genders: []string{"F"}}, want: []string{"S1", "S3"}},
		{name: "ethnicity", spec: Spec{Ethnicities: []string{"White", "Black"}}, want: []string{"S2", "S3"}},
		{
			name: "predicates combine with AND",
			spec: Spec{School: "Lincoln", Genders: []string{"F"}, ELL: b(true)},
			want: []string{"S1"},
		},
		{name: "excludes everything", spec: Spec{School: "Nowhere"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := fixture()

			got := Apply(src, tt.spec)

			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, 3, src.Len(), "source table must not change")
			assert.Equal(t, src.Columns, got.Columns)
		})
	}
}

func TestApply_DoesNotAliasSource(t *testing.T) {
	src := fixture()

	got := Apply(src, Spec{})
	require.Equal(t, 3, got.Len())

	got.Students[0].TotalHours = 999
	assert.InDelta(t, 10.0, src.Students[0].TotalHours, 1e-9)
}

func TestApply_NilTable(t *testing.T) {
	got := Apply(nil, Spec{School: "Lincoln"})
	assert.Equal(t, 0, got.Len())
}

func TestSpecString(t *testing.T) {
	assert.Equal(t, "none", (&Spec{School: AllSchools}).String())
	assert.True(t, (&Spec{}).IsEmpty())

	spec := Spec{School: "Lincoln", Grades: []int{5, 3}, IEP: b(false)}
	assert.Equal(t, "school=Lincoln grades=3,5 iep=false", spec.String())
	assert.False(t, spec.IsEmpty())
	assert.True(t, spec.Matches(&fixture().Students[0]))
}

func TestCompile(t *testing.T) {
	students := fixture().Students

	specs := []Spec{
		{},
		{School: "Lincoln"},
		{Grades: []int{3}, ELL: b(true)},
		{IEP: b(false), Genders: []string{"F"}},
	}

	for _, spec := range specs {
		t.Run(spec.String(), func(t *testing.T) {
			matcher := spec.Compile()

			for i := range students {
				assert.Equal(t, spec.Matches(&students[i]), matcher.Match(&students[i]))
			}
		})
	}

	t.Run("compiled matcher ignores later edits", func(t *testing.T) {
		spec := Spec{Grades: []int{99}}
		matcher := spec.Compile()
		spec.Grades[0] = 3

		for i := range students {
			assert.False(t, matcher.Match(&students[i]))
		}
	})

	t.Run("zero matcher matches everything", func(t *testing.T) {
		var matcher Matcher

		for i := range students {
			assert.True(t, matcher.Match(&students[i]))
		}
	})
}
