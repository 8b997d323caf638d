package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethpandaops/datas/pkg/report"
	"github.com/spf13/cobra"
)

var generateMarkdownSummaryCmd = &cobra.Command{
	Use:   "generate-markdown-summary",
	Short: "Generate a markdown summary from a report directory",
	Long:  `Reads metrics.json from a report directory and produces a markdown summary file.`,
	RunE:  runGenerateMarkdownSummary,
}

var (
	mdReportDir string
	mdOutput    string
	mdMaxChars  int
)

func init() {
	rootCmd.AddCommand(generateMarkdownSummaryCmd)
	generateMarkdownSummaryCmd.Flags().StringVar(&mdReportDir, "report-dir", "",
		"Path to the report directory")
	generateMarkdownSummaryCmd.Flags().StringVar(&mdOutput, "output", "",
		"Output file path (default: summary-<run_id>.md)")
	generateMarkdownSummaryCmd.Flags().IntVar(&mdMaxChars, "max-chars", report.DefaultMaxMarkdownChars,
		"Maximum summary length (0 for no limit)")

	if err := generateMarkdownSummaryCmd.MarkFlagRequired("report-dir"); err != nil {
		panic(err)
	}
}

func runGenerateMarkdownSummary(_ *cobra.Command, _ []string) error {
	log.WithField("report_dir", mdReportDir).
		Info("Generating markdown summary")

	doc, err := report.ReadDocument(mdReportDir)
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}

	md := report.GenerateMarkdown(doc, mdMaxChars)

	output := mdOutput
	if output == "" {
		runID := doc.RunID
		if runID == "" {
			runID = filepath.Base(mdReportDir)
		}

		output = fmt.Sprintf("summary-%s.md", runID)
	}

	if err := os.WriteFile(output, []byte(md), 0644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	log.WithField("output", output).
		Info("Markdown summary generated successfully")

	return nil
}
