package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/datas/pkg/aggregate"
	"github.com/ethpandaops/datas/pkg/analysis"
)

func TestGenerateMarkdown(t *testing.T) {
	rep := buildReport(t, analysis.Params{FullDosageThreshold: 60, TotalCost: 1000})
	doc := NewDocument(rep, Sources{Sessions: "s3://bucket/sessions.csv"})

	md := GenerateMarkdown(doc, 0)

	for _, want := range []string{
		"# Tutoring Analysis: " + doc.RunID,
		"| Sessions | `s3://bucket/sessions.csv` |",
		"| Full Dosage Threshold | 60 hours |",
		"| Filter | none |",
		"## Overview",
		"## Dosage",
		"| Students | 3 |",
		"## Equity",
		"| ELL |",
		"## Outcomes",
		"| ELA Value Added | 1 | 10 |",
		"## Cost Effectiveness",
		"| Cost / VA Point | 100 |",
		"## Schools",
		"| Adams | 2 | 1 |",
		"## Sessions by Hour of Day",
		"| 15:00 | 2 | 2 |",
		"## Sessions by Date",
	} {
		assert.Contains(t, md, want)
	}
}

func TestGenerateMarkdown_Truncates(t *testing.T) {
	rep := buildReport(t, analysis.Params{FullDosageThreshold: 60})

	daily := make([]aggregate.DateBucket, 500)
	for i := range daily {
		daily[i] = aggregate.DateBucket{Date: fmt.Sprintf("2024-01-%03d", i), Sessions: 1}
	}

	rep.Daily = daily

	doc := NewDocument(rep, Sources{})
	full := GenerateMarkdown(doc, 0)
	capped := GenerateMarkdown(doc, len(full)/2)

	assert.LessOrEqual(t, len(capped), len(full)/2)
	assert.Contains(t, capped, "more dates omitted")
	assert.NotContains(t, full, "more dates omitted")
}

func TestGenerateMarkdown_FromReadDocument(t *testing.T) {
	rep := buildReport(t, analysis.Params{FullDosageThreshold: 60, TotalCost: 1000})
	doc := NewDocument(rep, Sources{})

	dir, err := NewWriter(logrus.New(), t.TempDir()).Write(context.Background(), doc)
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)

	read, err := ReadDocument(dir)
	require.NoError(t, err)

	regenerated := GenerateMarkdown(read, DefaultMaxMarkdownChars)

	// Counts decode from JSON as floats but render identically.
	assert.Equal(t, string(written), regenerated)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: "n/a"},
		{name: "true", in: true, want: "yes"},
		{name: "false", in: false, want: "no"},
		{name: "int", in: 7, want: "7"},
		{name: "integral float", in: 7.0, want: "7"},
		{name: "fraction", in: 33.3333, want: "33.33"},
		{name: "small", in: 0.00123, want: "0.0012"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestWriteWarnings(t *testing.T) {
	var sb strings.Builder

	writeWarnings(&sb, nil)
	assert.Empty(t, sb.String())

	writeWarnings(&sb, []string{"missing column \"ethnicity\""})
	assert.Equal(t, "## Warnings\n\n- missing column \"ethnicity\"\n\n", sb.String())
}
