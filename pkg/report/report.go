// Package report persists analysis reports as run directories and renders
// them as markdown.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethpandaops/datas/pkg/analysis"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Files written into every run directory.
const (
	MetricsFile  = "metrics.json"
	ParamsFile   = "params.yaml"
	StudentsFile = "students.csv"
	SummaryFile  = "summary.md"
)

// Sources records where the analysed datasets were read from.
type Sources struct {
	Sessions string `json:"sessions,omitempty" yaml:"sessions,omitempty"`
	Students string `json:"students,omitempty" yaml:"students,omitempty"`
}

// Document is the persisted form of one analysis run.
type Document struct {
	RunID     string  `json:"run_id"`
	Timestamp int64   `json:"timestamp"`
	Sources   Sources `json:"sources"`

	*analysis.Report
}

// NewDocument wraps a report with a fresh run ID and the current time.
func NewDocument(rep *analysis.Report, sources Sources) *Document {
	return &Document{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().Unix(),
		Sources:   sources,
		Report:    rep,
	}
}

// DirName returns the run directory name, <timestamp>_<run-id>.
func (d *Document) DirName() string {
	return fmt.Sprintf("%d_%s", d.Timestamp, d.RunID)
}

// paramsFile is the layout of params.yaml.
type paramsFile struct {
	RunID     string          `yaml:"run_id"`
	Timestamp int64           `yaml:"timestamp"`
	Sources   Sources         `yaml:"sources"`
	Params    analysis.Params `yaml:"params"`
}

// Writer persists analysis documents.
type Writer interface {
	// Write creates the run directory for doc and returns its path.
	Write(ctx context.Context, doc *Document) (string, error)
}

// Compile-time interface check.
var _ Writer = (*writer)(nil)

type writer struct {
	log        logrus.FieldLogger
	resultsDir string
}

// NewWriter creates a Writer that places run directories under resultsDir.
func NewWriter(log logrus.FieldLogger, resultsDir string) Writer {
	return &writer{
		log:        log.WithField("component", "report-writer"),
		resultsDir: resultsDir,
	}
}

// Write implements Writer.
func (w *writer) Write(ctx context.Context, doc *Document) (string, error) {
	if doc == nil || doc.Report == nil {
		return "", fmt.Errorf("writing report: no report")
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(w.resultsDir, doc.DirName())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	metricsData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling metrics: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, MetricsFile), metricsData, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", MetricsFile, err)
	}

	paramsData, err := yaml.Marshal(&paramsFile{
		RunID:     doc.RunID,
		Timestamp: doc.Timestamp,
		Sources:   doc.Sources,
		Params:    doc.Params,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling params: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ParamsFile), paramsData, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", ParamsFile, err)
	}

	if err := writeStudentsFile(filepath.Join(dir, StudentsFile), doc.Table); err != nil {
		return "", err
	}

	md := GenerateMarkdown(doc, DefaultMaxMarkdownChars)
	if err := os.WriteFile(filepath.Join(dir, SummaryFile), []byte(md), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", SummaryFile, err)
	}

	w.log.WithFields(logrus.Fields{
		"run_id": doc.RunID,
		"dir":    dir,
	}).Info("Wrote analysis report")

	return dir, nil
}

// ReadDocument loads metrics.json from a run directory. The merged table is
// not restored.
func ReadDocument(dir string) (*Document, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", MetricsFile, err)
	}

	doc := &Document{Report: &analysis.Report{}}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", MetricsFile, err)
	}

	return doc, nil
}
