package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethpandaops/datas/pkg/metrics"
	"github.com/ethpandaops/datas/pkg/report"
)

// Run origins.
const (
	OriginCLI = "cli"
	OriginAPI = "api"
)

// Run is one recorded analysis in the database.
type Run struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	RunID     string `gorm:"not null;uniqueIndex" json:"run_id"`
	Timestamp int64  `gorm:"index" json:"timestamp"`
	Origin    string `gorm:"index" json:"origin"`

	SessionsSource string `json:"sessions_source,omitempty"`
	StudentsSource string `json:"students_source,omitempty"`
	ResultDir      string `json:"result_dir,omitempty"`

	FullDosageThreshold float64 `json:"full_dosage_threshold"`
	TotalCost           float64 `json:"total_cost"`
	Filter              string  `json:"filter"`

	// Denormalized headline figures.
	Students       int      `json:"students"`
	Sessions       int      `json:"sessions"`
	MeanHours      *float64 `json:"mean_hours"`
	PctFullDosage  *float64 `json:"pct_full_dosage"`
	CostPerStudent *float64 `json:"cost_per_student"`

	// Full metrics document serialized as JSON.
	ReportJSON string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// NewRun builds a Run from a report document.
func NewRun(doc *report.Document, origin, resultDir string) (*Run, error) {
	if doc == nil || doc.Report == nil {
		return nil, fmt.Errorf("building run: no report")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}

	run := &Run{
		RunID:               doc.RunID,
		Timestamp:           doc.Timestamp,
		Origin:              origin,
		SessionsSource:      doc.Sources.Sessions,
		StudentsSource:      doc.Sources.Students,
		ResultDir:           resultDir,
		FullDosageThreshold: doc.Params.FullDosageThreshold,
		TotalCost:           doc.Params.TotalCost,
		Filter:              doc.Params.Filter.String(),
		Students:            doc.Table.Len(),
		MeanHours:           optional(doc.Dosage, "mean_hours"),
		PctFullDosage:       optional(doc.Dosage, metrics.KeyPctFullDosage),
		CostPerStudent:      optional(doc.Cost, "cost_per_student"),
		ReportJSON:          string(data),
	}

	if n, ok := doc.Overview.Int("total_sessions"); ok {
		run.Sessions = n
	}

	return run, nil
}

// Document decodes the stored report document.
func (r *Run) Document() (*report.Document, error) {
	doc := &report.Document{}
	if err := json.Unmarshal([]byte(r.ReportJSON), doc); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", r.RunID, err)
	}

	return doc, nil
}

func optional(r metrics.Result, key string) *float64 {
	v, ok := r.Float(key)
	if !ok {
		return nil
	}

	return &v
}
