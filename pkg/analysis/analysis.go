// Package analysis runs the full pipeline: merge, filter, then every
// calculator over the filtered table.
package analysis

import (
	"context"
	"fmt"

	"github.com/ethpandaops/datas/pkg/aggregate"
	"github.com/ethpandaops/datas/pkg/config"
	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/filter"
	"github.com/ethpandaops/datas/pkg/metrics"
	"github.com/ethpandaops/datas/pkg/prepare"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Params are the caller-supplied analysis parameters.
type Params struct {
	FullDosageThreshold float64     `json:"full_dosage_threshold" yaml:"full_dosage_threshold"`
	TotalCost           float64     `json:"total_cost" yaml:"total_cost"`
	Filter              filter.Spec `json:"filter" yaml:"filter"`
}

// ParamsFromConfig builds Params from the analysis configuration.
func ParamsFromConfig(cfg *config.AnalysisConfig) Params {
	return Params{
		FullDosageThreshold: cfg.FullDosageThreshold,
		TotalCost:           cfg.TotalCost,
		Filter:              filter.Spec(cfg.Filter),
	}
}

// Validate checks the parameters.
func (p *Params) Validate() error {
	if p.FullDosageThreshold <= 0 {
		return fmt.Errorf("full dosage threshold must be positive, got %v", p.FullDosageThreshold)
	}

	if p.TotalCost < 0 {
		return fmt.Errorf("total cost must not be negative, got %v", p.TotalCost)
	}

	return nil
}

// Report holds every computed output of one analysis.
type Report struct {
	Params Params `json:"params"`

	Overview metrics.Result `json:"overview"`
	Dosage   metrics.Result `json:"dosage"`
	Equity   metrics.Result `json:"equity"`
	Outcome  metrics.Result `json:"outcome"`
	Cost     metrics.Result `json:"cost"`

	Schools     []metrics.GroupDosage                  `json:"schools"`
	Subjects    []metrics.GroupDosage                  `json:"subjects"`
	Ethnicities []metrics.EthnicityDosage              `json:"ethnicities"`
	Performance []metrics.PerformanceReach             `json:"performance"`
	Likelihood  map[dataset.Subject][]metrics.ScoreBin `json:"likelihood"`

	Hourly []aggregate.HourBucket  `json:"hourly"`
	Daily  []aggregate.DateBucket  `json:"daily"`
	Ratios []aggregate.RatioBucket `json:"ratios"`

	Warnings []string `json:"warnings,omitempty"`

	// Table is the filtered merged table the metrics were computed over.
	Table *prepare.Table `json:"-"`
}

// Analyzer computes analysis reports.
type Analyzer interface {
	// Analyze merges the datasets, applies the filter and computes every
	// calculator. It fails only on invalid params or a cancelled context.
	Analyze(
		ctx context.Context,
		sessions *dataset.Sessions,
		students *dataset.Students,
		params Params,
	) (*Report, error)
}

// Compile-time interface check.
var _ Analyzer = (*analyzer)(nil)

type analyzer struct {
	log logrus.FieldLogger
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer(log logrus.FieldLogger) Analyzer {
	return &analyzer{
		log: log.WithField("component", "analyzer"),
	}
}

// Analyze implements Analyzer. Calculators run concurrently; each writes
// its own report field so the output does not depend on scheduling.
func (a *analyzer) Analyze(
	ctx context.Context,
	sessions *dataset.Sessions,
	students *dataset.Students,
	params Params,
) (*Report, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("validating params: %w", err)
	}

	if sessions == nil {
		sessions = &dataset.Sessions{Columns: dataset.ColumnSet{}}
	}

	merged := prepare.Merge(sessions, students)
	table := filter.Apply(merged, params.Filter)
	scoped := scopeSessions(sessions.Records, table, params.Filter)
	target := params.FullDosageThreshold

	report := &Report{
		Params:     params,
		Warnings:   merged.Warnings,
		Table:      table,
		Likelihood: make(map[dataset.Subject][]metrics.ScoreBin, len(dataset.Subjects)),
	}

	likelihood := make([][]metrics.ScoreBin, len(dataset.Subjects))

	g, gCtx := errgroup.WithContext(ctx)

	run := func(fn func()) {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			fn()

			return nil
		})
	}

	run(func() { report.Overview = metrics.Overview(sessions, merged) })
	run(func() { report.Dosage = metrics.Dosage(table, target) })
	run(func() { report.Equity = metrics.Equity(table, target) })
	run(func() { report.Outcome = metrics.Outcome(table) })
	run(func() { report.Cost = metrics.Cost(table, params.TotalCost) })
	run(func() { report.Schools = metrics.SchoolDosage(table, target) })
	run(func() { report.Subjects = metrics.SubjectDosage(table, target) })
	run(func() { report.Ethnicities = metrics.EthnicityBreakdown(table, target) })
	run(func() { report.Performance = metrics.PerformanceBreakdown(table) })
	run(func() { report.Hourly = aggregate.ByHourOfDay(scoped) })
	run(func() { report.Daily = aggregate.ByDate(scoped) })
	run(func() { report.Ratios = aggregate.ByGroupRatio(scoped) })

	for i, subject := range dataset.Subjects {
		run(func() { likelihood[i] = metrics.TutoringLikelihood(table, subject) })
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("computing metrics: %w", err)
	}

	for i, subject := range dataset.Subjects {
		report.Likelihood[subject] = likelihood[i]
	}

	a.log.WithFields(logrus.Fields{
		"students": merged.Len(),
		"filtered": table.Len(),
		"sessions": len(sessions.Records),
		"filter":   params.Filter.String(),
	}).Debug("Analysis complete")

	return report, nil
}

// scopeSessions returns the sessions the fidelity buckets are computed
// over: every session without a filter, otherwise only the sessions of the
// students that matched.
func scopeSessions(sessions []dataset.SessionRecord, table *prepare.Table, spec filter.Spec) []dataset.SessionRecord {
	if spec.IsEmpty() {
		return sessions
	}

	keep := make(map[string]struct{}, table.Len())
	for i := range table.Students {
		keep[table.Students[i].StudentID] = struct{}{}
	}

	out := make([]dataset.SessionRecord, 0, len(sessions))

	for _, s := range sessions {
		if _, ok := keep[dataset.NormalizeID(s.StudentID)]; ok {
			out = append(out, s)
		}
	}

	return out
}
