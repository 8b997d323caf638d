package api

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethpandaops/datas/pkg/analysis"
	"github.com/go-playground/validator/v10"
)

// maxStudentsLimit caps the rows returned by /students.
const maxStudentsLimit = 100000

// analysisQuery holds the query parameters shared by the analysis endpoints.
// Unset filter fields fall back to the configured default filter.
type analysisQuery struct {
	Threshold   *float64 `query:"threshold" validate:"omitempty,gt=0"`
	Cost        *float64 `query:"cost" validate:"omitempty,gte=0"`
	School      *string  `query:"school" validate:"omitempty,max=256"`
	Grades      []int    `query:"grade" validate:"omitempty,dive,gte=-1,lte=12"`
	ELL         *bool    `query:"ell"`
	IEP         *bool    `query:"iep"`
	Econ        *bool    `query:"econ"`
	Gifted      *bool    `query:"gifted"`
	Homeless    *bool    `query:"homeless"`
	Disability  *bool    `query:"disability"`
	Genders     []string `query:"gender" validate:"omitempty,dive,max=64"`
	Ethnicities []string `query:"ethnicity" validate:"omitempty,dive,max=128"`
	Limit       int      `query:"limit" validate:"gte=0,lte=100000"`
}

// newValidator creates a validator that reports query parameter names.
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("query")
	})

	return v
}

// parseAnalysisQuery decodes and validates the analysis query parameters.
func (s *server) parseAnalysisQuery(values url.Values) (*analysisQuery, error) {
	q := &analysisQuery{}

	var err error

	if q.Threshold, err = optionalFloat(values, "threshold"); err != nil {
		return nil, err
	}

	if q.Cost, err = optionalFloat(values, "cost"); err != nil {
		return nil, err
	}

	if values.Has("school") {
		school := strings.TrimSpace(values.Get("school"))
		q.School = &school
	}

	for _, raw := range values["grade"] {
		g, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("grade: %q is not an integer", raw)
		}

		q.Grades = append(q.Grades, g)
	}

	flags := []struct {
		name string
		dst  **bool
	}{
		{"ell", &q.ELL},
		{"iep", &q.IEP},
		{"econ", &q.Econ},
		{"gifted", &q.Gifted},
		{"homeless", &q.Homeless},
		{"disability", &q.Disability},
	}

	for _, f := range flags {
		if *f.dst, err = optionalBool(values, f.name); err != nil {
			return nil, err
		}
	}

	q.Genders = nonEmpty(values["gender"])
	q.Ethnicities = nonEmpty(values["ethnicity"])

	if raw := values.Get("limit"); raw != "" {
		if q.Limit, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("limit: %q is not an integer", raw)
		}
	}

	if err := s.validate.Struct(q); err != nil {
		return nil, validationError(err)
	}

	return q, nil
}

// params merges the query onto the configured analysis defaults.
func (s *server) params(q *analysisQuery) analysis.Params {
	p := analysis.ParamsFromConfig(&s.cfg.Analysis)

	if q.Threshold != nil {
		p.FullDosageThreshold = *q.Threshold
	}

	if q.Cost != nil {
		p.TotalCost = *q.Cost
	}

	if q.School != nil {
		p.Filter.School = *q.School
	}

	if len(q.Grades) > 0 {
		p.Filter.Grades = q.Grades
	}

	if q.ELL != nil {
		p.Filter.ELL = q.ELL
	}

	if q.IEP != nil {
		p.Filter.IEP = q.IEP
	}

	if q.Econ != nil {
		p.Filter.EconomicDisadvantage = q.Econ
	}

	if q.Gifted != nil {
		p.Filter.Gifted = q.Gifted
	}

	if q.Homeless != nil {
		p.Filter.Homeless = q.Homeless
	}

	if q.Disability != nil {
		p.Filter.Disability = q.Disability
	}

	if len(q.Genders) > 0 {
		p.Filter.Genders = q.Genders
	}

	if len(q.Ethnicities) > 0 {
		p.Filter.Ethnicities = q.Ethnicities
	}

	return p
}

func optionalFloat(values url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", name, raw)
	}

	return &v, nil
}

func optionalBool(values url.Values, name string) (*bool, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a boolean", name, raw)
	}

	return &v, nil
}

func nonEmpty(values []string) []string {
	var out []string

	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}

	return out
}

// validationError flattens validator errors into one message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}

	return errors.New(strings.Join(parts, "; "))
}
