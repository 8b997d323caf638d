package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/datas/pkg/analysis"
	"github.com/ethpandaops/datas/pkg/config"
	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/metrics"
	"github.com/ethpandaops/datas/pkg/report"
	"github.com/ethpandaops/datas/pkg/source"
	"github.com/ethpandaops/datas/pkg/store"
	"github.com/ethpandaops/datas/pkg/upload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	analyzeSessions    string
	analyzeStudents    string
	analyzeThreshold   float64
	analyzeCost        float64
	analyzeSchool      string
	analyzeGrades      []int
	analyzeGenders     []string
	analyzeEthnicities []string
	analyzeOutputDir   string
	analyzeUpload      bool
	analyzeRecord      bool

	analyzeFlags = map[string]*bool{
		"ell":        new(bool),
		"iep":        new(bool),
		"econ":       new(bool),
		"gifted":     new(bool),
		"homeless":   new(bool),
		"disability": new(bool),
	}
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a tutoring program",
	Long: `Load the session and student datasets, compute every metric for the
selected subgroup and write a report directory containing metrics.json,
params.yaml, students.csv and summary.md.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	f := analyzeCmd.Flags()
	f.StringVar(&analyzeSessions, "sessions", "", "session dataset (csv or xlsx)")
	f.StringVar(&analyzeStudents, "students", "", "student dataset (csv or xlsx)")
	f.Float64Var(&analyzeThreshold, "threshold", config.DefaultFullDosageThreshold,
		"hours that count as full dosage")
	f.Float64Var(&analyzeCost, "cost", 0, "total program cost")
	f.StringVar(&analyzeSchool, "school", "", "restrict to one school (\"All\" for every school)")
	f.IntSliceVar(&analyzeGrades, "grade", nil, "restrict to grade levels (repeatable)")
	f.StringSliceVar(&analyzeGenders, "gender", nil, "restrict to genders (repeatable)")
	f.StringSliceVar(&analyzeEthnicities, "ethnicity", nil, "restrict to ethnicities (repeatable)")
	f.StringVar(&analyzeOutputDir, "output-dir", "", "results directory (default from config)")
	f.BoolVar(&analyzeUpload, "upload", false, "upload the report directory to S3")
	f.BoolVar(&analyzeRecord, "record", false, "record the run in the run database")

	f.BoolVar(analyzeFlags["ell"], "ell", false, "restrict to ELL (true) or non-ELL (false) students")
	f.BoolVar(analyzeFlags["iep"], "iep", false, "restrict by IEP flag")
	f.BoolVar(analyzeFlags["econ"], "econ", false, "restrict by economic disadvantage flag")
	f.BoolVar(analyzeFlags["gifted"], "gifted", false, "restrict by gifted flag")
	f.BoolVar(analyzeFlags["homeless"], "homeless", false, "restrict by homeless flag")
	f.BoolVar(analyzeFlags["disability"], "disability", false, "restrict by disability flag")
}

// applyAnalyzeFlags overrides config values with the flags that were set.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()

	if f.Changed("sessions") {
		cfg.Data.Sessions = analyzeSessions
	}

	if f.Changed("students") {
		cfg.Data.Students = analyzeStudents
	}

	if f.Changed("threshold") {
		cfg.Analysis.FullDosageThreshold = analyzeThreshold
	}

	if f.Changed("cost") {
		cfg.Analysis.TotalCost = analyzeCost
	}

	if f.Changed("school") {
		cfg.Analysis.Filter.School = analyzeSchool
	}

	if f.Changed("grade") {
		cfg.Analysis.Filter.Grades = analyzeGrades
	}

	if f.Changed("gender") {
		cfg.Analysis.Filter.Genders = analyzeGenders
	}

	if f.Changed("ethnicity") {
		cfg.Analysis.Filter.Ethnicities = analyzeEthnicities
	}

	if f.Changed("output-dir") {
		cfg.Global.ResultsDir = analyzeOutputDir
	}

	if analyzeUpload {
		cfg.Upload.S3.Enabled = true
	}

	if analyzeRecord {
		cfg.Database.Enabled = true
	}

	targets := map[string]**bool{
		"ell":        &cfg.Analysis.Filter.ELL,
		"iep":        &cfg.Analysis.Filter.IEP,
		"econ":       &cfg.Analysis.Filter.EconomicDisadvantage,
		"gifted":     &cfg.Analysis.Filter.Gifted,
		"homeless":   &cfg.Analysis.Filter.Homeless,
		"disability": &cfg.Analysis.Filter.Disability,
	}

	for name, dst := range targets {
		if f.Changed(name) {
			v := *analyzeFlags[name]
			*dst = &v
		}
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	applyAnalyzeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var uploader upload.Uploader

	if cfg.Upload.S3.Enabled {
		uploader, err = upload.NewS3Uploader(log, &cfg.Upload.S3)
		if err != nil {
			return fmt.Errorf("creating S3 uploader: %w", err)
		}

		// Check bucket access before analyzing.
		if err := uploader.Preflight(ctx); err != nil {
			return fmt.Errorf("upload preflight: %w", err)
		}
	}

	src, err := source.New(log, &cfg.Data)
	if err != nil {
		return fmt.Errorf("creating data source: %w", err)
	}

	loader := dataset.NewLoader(log, src)

	ds, err := loader.Load(ctx, cfg.Data.Sessions, cfg.Data.Students)
	if err != nil {
		return err
	}

	params := analysis.ParamsFromConfig(&cfg.Analysis)

	rep, err := analysis.NewAnalyzer(log).Analyze(ctx, ds.Sessions, ds.Students, params)
	if err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}

	for _, w := range rep.Warnings {
		log.Warn(w)
	}

	doc := report.NewDocument(rep, report.Sources{
		Sessions: loader.Location(cfg.Data.Sessions),
		Students: loader.Location(cfg.Data.Students),
	})

	dir, err := report.NewWriter(log, cfg.Global.ResultsDir).Write(ctx, doc)
	if err != nil {
		return err
	}

	if cfg.Database.Enabled {
		if err := recordRun(ctx, cfg, doc, dir); err != nil {
			return err
		}
	}

	if uploader != nil {
		location, err := uploader.Upload(ctx, dir)
		if err != nil {
			return fmt.Errorf("uploading report: %w", err)
		}

		log.WithField("location", location).Info("Report uploaded")
	}

	logHeadline(doc, dir)

	return nil
}

func recordRun(ctx context.Context, cfg *config.Config, doc *report.Document, dir string) error {
	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}()

	run, err := store.NewRun(doc, store.OriginCLI, dir)
	if err != nil {
		return err
	}

	if err := st.SaveRun(ctx, run); err != nil {
		return err
	}

	log.WithField("run_id", run.RunID).Info("Run recorded")

	return nil
}

func logHeadline(doc *report.Document, dir string) {
	fields := logrus.Fields{
		"run_id":   doc.RunID,
		"dir":      dir,
		"students": doc.Table.Len(),
		"filter":   doc.Params.Filter.String(),
	}

	if v, ok := doc.Dosage.Float("mean_hours"); ok {
		fields["mean_hours"] = fmt.Sprintf("%.2f", v)
	}

	if v, ok := doc.Dosage.Float(metrics.KeyPctFullDosage); ok {
		fields["pct_full_dosage"] = fmt.Sprintf("%.1f", v)
	}

	if v, ok := doc.Cost.Float("cost_per_student"); ok {
		fields["cost_per_student"] = fmt.Sprintf("%.2f", v)
	}

	log.WithFields(fields).Info("Analysis complete")
}
