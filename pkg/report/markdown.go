package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ethpandaops/datas/pkg/aggregate"
	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/metrics"
)

// DefaultMaxMarkdownChars caps generated summaries so they fit a GitHub
// step summary.
const DefaultMaxMarkdownChars = 65000

// field is one labelled statistic rendered as a table row.
type field struct {
	label string
	key   string
}

var overviewFields = []field{
	{"Students", "total_students"},
	{"Students Tutored", "students_tutored"},
	{"Total Hours", "total_hours"},
	{"Avg Hours / Student", "avg_hours"},
	{"Schools", "schools"},
	{"Districts", "districts"},
	{"Sessions", "total_sessions"},
	{"Math Sessions", "math_sessions"},
	{"ELA Sessions", "ela_sessions"},
	{"Tutors", "unique_tutors"},
}

var dosageFields = []field{
	{"Students", "total_students"},
	{"Target (hours)", "target_dosage"},
	{"Mean Hours", "mean_hours"},
	{"Median Hours", "median_hours"},
	{"Q25", "q25"},
	{"Q75", "q75"},
	{"IQR", "iqr"},
	{"Gini", "gini"},
	{"< 25% of target", metrics.KeyPctBelow25},
	{"25-50%", metrics.KeyPct25to50},
	{"50-75%", metrics.KeyPct50to75},
	{"75-99%", metrics.KeyPct75to99},
	{"Full dosage", metrics.KeyPctFullDosage},
}

var costFields = []field{
	{"Total Cost", "total_cost"},
	{"Students", "n_students"},
	{"Total Hours", "total_hours"},
	{"Total VA Points", "total_va_points"},
	{"Total Raw Points", "total_raw_points"},
	{"Cost / Student", "cost_per_student"},
	{"Cost / Hour", "cost_per_hour"},
	{"Cost / VA Point", "cost_per_va_point"},
	{"Cost / Raw Point", "cost_per_raw_point"},
}

// equityGroups are the result key stems of each equity dimension.
var equityGroups = []struct {
	label, prefix, flagged, other string
}{
	{"ELL", "ell", "ell", "non_ell"},
	{"IEP", "iep", "iep", "non_iep"},
	{"Economic Disadvantage", "econ", "disadv", "adv"},
}

// GenerateMarkdown renders a run document as a markdown summary. The daily
// fidelity table is last and is truncated so the output stays within
// maxChars; maxChars <= 0 disables the cap.
func GenerateMarkdown(doc *Document, maxChars int) string {
	var sb strings.Builder

	sb.Grow(8192)

	writeTitle(&sb, doc)
	writeRun(&sb, doc)
	writeWarnings(&sb, doc.Warnings)
	writeResult(&sb, "Overview", doc.Overview, overviewFields)
	writeResult(&sb, "Dosage", doc.Dosage, dosageFields)
	writeEquity(&sb, doc.Equity)
	writeOutcome(&sb, doc.Outcome)
	writeResult(&sb, "Cost Effectiveness", doc.Cost, costFields)
	writeGroupDosage(&sb, "Schools", "School", doc.Schools)
	writeGroupDosage(&sb, "Subjects", "Subject", doc.Subjects)
	writeEthnicities(&sb, doc.Ethnicities)
	writePerformance(&sb, doc.Performance)
	writeLikelihood(&sb, doc.Likelihood)
	writeRatios(&sb, doc.Ratios)
	writeHourly(&sb, doc.Hourly)
	writeDaily(&sb, doc.Daily, maxChars)

	return sb.String()
}

func writeTitle(sb *strings.Builder, doc *Document) {
	fmt.Fprintf(sb, "# Tutoring Analysis: %s\n\n", doc.RunID)
}

func writeRun(sb *strings.Builder, doc *Document) {
	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")

	if doc.Timestamp > 0 {
		t := time.Unix(doc.Timestamp, 0).UTC()
		fmt.Fprintf(sb, "| Started | %s |\n", t.Format("2006-01-02 15:04:05 UTC"))
	}

	if doc.Sources.Sessions != "" {
		fmt.Fprintf(sb, "| Sessions | `%s` |\n", doc.Sources.Sessions)
	}

	if doc.Sources.Students != "" {
		fmt.Fprintf(sb, "| Students | `%s` |\n", doc.Sources.Students)
	}

	fmt.Fprintf(sb, "| Full Dosage Threshold | %s hours |\n", formatNumber(doc.Params.FullDosageThreshold))
	fmt.Fprintf(sb, "| Total Cost | %s |\n", formatNumber(doc.Params.TotalCost))
	fmt.Fprintf(sb, "| Filter | %s |\n", doc.Params.Filter.String())

	sb.WriteByte('\n')
}

func writeWarnings(sb *strings.Builder, warnings []string) {
	if len(warnings) == 0 {
		return
	}

	sb.WriteString("## Warnings\n\n")

	for _, w := range warnings {
		fmt.Fprintf(sb, "- %s\n", w)
	}

	sb.WriteByte('\n')
}

func writeResult(sb *strings.Builder, title string, r metrics.Result, fields []field) {
	if len(r) == 0 {
		return
	}

	fmt.Fprintf(sb, "## %s\n\n", title)
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")

	for _, f := range fields {
		if !r.Has(f.key) {
			continue
		}

		fmt.Fprintf(sb, "| %s | %s |\n", f.label, formatValue(r[f.key]))
	}

	sb.WriteByte('\n')
}

func writeEquity(sb *strings.Builder, r metrics.Result) {
	if len(r) == 0 {
		return
	}

	sb.WriteString("## Equity\n\n")
	sb.WriteString("| Group | Gap (hours) | Flagged Mean | Other Mean | Flagged N | Other N |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")

	for _, g := range equityGroups {
		gap := g.prefix + "_gap"
		if !r.Has(gap) {
			continue
		}

		fmt.Fprintf(sb, "| %s | %s | %s | %s | %s | %s |\n",
			g.label,
			formatValue(r[gap]),
			formatValue(r[g.prefix+"_"+g.flagged+"_mean"]),
			formatValue(r[g.prefix+"_"+g.other+"_mean"]),
			formatValue(r[g.prefix+"_"+g.flagged+"_n"]),
			formatValue(r[g.prefix+"_"+g.other+"_n"]),
		)
	}

	sb.WriteByte('\n')

	if r.Has("high_need_n") {
		fmt.Fprintf(sb, "High-need students: %s, at full dosage: %s%%\n\n",
			formatValue(r["high_need_n"]), formatValue(r["high_need_full_dosage_pct"]))
	}
}

func writeOutcome(sb *strings.Builder, r metrics.Result) {
	if len(r) == 0 {
		return
	}

	sb.WriteString("## Outcomes\n\n")
	sb.WriteString("| Measure | N | Mean | Median | Positive % | Std | p-value " +
		"| Significant | Effect Size | Weeks of Learning |\n")
	sb.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")

	measures := []struct{ label, suffix string }{
		{"Value Added", metrics.MeasureValueAdded},
		{"Raw Gain", metrics.MeasureRawGain},
	}

	for _, subject := range dataset.Subjects {
		for _, m := range measures {
			prefix := string(subject) + "_" + m.suffix
			if !r.Has(prefix + "_n") {
				continue
			}

			fmt.Fprintf(sb, "| %s %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				strings.ToUpper(string(subject)), m.label,
				formatValue(r[prefix+"_n"]),
				formatValue(r[prefix+"_mean"]),
				formatValue(r[prefix+"_median"]),
				formatValue(r[prefix+"_positive_pct"]),
				formatOptionalKey(r, prefix+"_std"),
				formatOptionalKey(r, prefix+"_pvalue"),
				formatOptionalKey(r, prefix+"_significant"),
				formatOptionalKey(r, prefix+"_effect_size"),
				formatOptionalKey(r, prefix+"_weeks_learning"),
			)
		}
	}

	sb.WriteByte('\n')
}

func writeGroupDosage(sb *strings.Builder, title, column string, groups []metrics.GroupDosage) {
	if len(groups) == 0 {
		return
	}

	fmt.Fprintf(sb, "## %s\n\n", title)
	fmt.Fprintf(sb, "| %s | Students | Tutored | %% Tutored | < 25%% | 25-50%% | 50-75%% | 75-99%% | Full |\n", column)
	sb.WriteString("|---|---|---|---|---|---|---|---|---|\n")

	for _, g := range groups {
		fmt.Fprintf(sb, "| %s | %d | %d | %s | %s | %s | %s | %s | %s |\n",
			g.Group, g.TotalStudents, g.StudentsTutored, formatNumber(g.PctTutored),
			formatNumber(g.Bands.Below25), formatNumber(g.Bands.From25To50),
			formatNumber(g.Bands.From50To75), formatNumber(g.Bands.From75To99),
			formatNumber(g.Bands.Full),
		)
	}

	sb.WriteByte('\n')
}

func writeEthnicities(sb *strings.Builder, rows []metrics.EthnicityDosage) {
	if len(rows) == 0 {
		return
	}

	sb.WriteString("## Ethnicity\n\n")
	sb.WriteString("| Ethnicity | N | Mean Hours | Median Hours | % Full Dosage |\n")
	sb.WriteString("|---|---|---|---|---|\n")

	for _, e := range rows {
		fmt.Fprintf(sb, "| %s | %d | %s | %s | %s |\n",
			e.Ethnicity, e.N, formatNumber(e.MeanHours),
			formatNumber(e.MedianHours), formatNumber(e.PctFullDosage))
	}

	sb.WriteByte('\n')
}

func writePerformance(sb *strings.Builder, rows []metrics.PerformanceReach) {
	if len(rows) == 0 {
		return
	}

	sb.WriteString("## Reach by Prior Performance Level\n\n")
	sb.WriteString("| Level | Students | Tutored | Untutored | % Tutored |\n")
	sb.WriteString("|---|---|---|---|---|\n")

	for _, p := range rows {
		fmt.Fprintf(sb, "| %s | %d | %d | %d | %s |\n",
			p.Level, p.Total, p.Tutored, p.Untutored, formatNumber(p.PctTutored))
	}

	sb.WriteByte('\n')
}

func writeLikelihood(sb *strings.Builder, bins map[dataset.Subject][]metrics.ScoreBin) {
	for _, subject := range dataset.Subjects {
		rows := bins[subject]
		if len(rows) == 0 {
			continue
		}

		fmt.Fprintf(sb, "## Tutoring Likelihood by Prior %s Score\n\n", strings.ToUpper(string(subject)))
		sb.WriteString("| Score Range | Students | % Tutored |\n")
		sb.WriteString("|---|---|---|\n")

		for _, b := range rows {
			fmt.Fprintf(sb, "| %s-%s | %d | %s |\n",
				formatNumber(b.Low), formatNumber(b.High), b.N, formatNumber(b.PctTutored))
		}

		sb.WriteByte('\n')
	}
}

func writeRatios(sb *strings.Builder, rows []aggregate.RatioBucket) {
	if len(rows) == 0 {
		return
	}

	sb.WriteString("## Group Ratios\n\n")
	sb.WriteString("| Ratio | Sessions | Hours | Students |\n")
	sb.WriteString("|---|---|---|---|\n")

	for _, r := range rows {
		fmt.Fprintf(sb, "| %s | %d | %s | %d |\n",
			r.Ratio, r.Sessions, formatNumber(r.TotalHours), r.Students)
	}

	sb.WriteByte('\n')
}

func writeHourly(sb *strings.Builder, rows []aggregate.HourBucket) {
	if len(rows) == 0 {
		return
	}

	sb.WriteString("## Sessions by Hour of Day\n\n")
	sb.WriteString("| Hour | Sessions | Hours |\n")
	sb.WriteString("|---|---|---|\n")

	for _, h := range rows {
		fmt.Fprintf(sb, "| %02d:00 | %d | %s |\n", h.Hour, h.Sessions, formatNumber(h.TotalHours))
	}

	sb.WriteByte('\n')
}

// writeDaily writes the per-date table, stopping before maxChars would be
// exceeded and noting how many rows were dropped.
func writeDaily(sb *strings.Builder, rows []aggregate.DateBucket, maxChars int) {
	if len(rows) == 0 {
		return
	}

	header := "## Sessions by Date\n\n" +
		"| Date | Sessions | Students | Hours | Mean Hours | 7-day Mean |\n" +
		"|---|---|---|---|---|---|\n"

	if maxChars > 0 && sb.Len()+len(header) > maxChars {
		return
	}

	sb.WriteString(header)

	for i, d := range rows {
		line := fmt.Sprintf("| %s | %d | %d | %s | %s | %s |\n",
			d.Date, d.Sessions, d.UniqueStudents, formatNumber(d.TotalHours),
			formatPointer(d.MeanHours), formatPointer(d.RollingMeanHours))

		// Reserve room for the truncation note.
		if maxChars > 0 && sb.Len()+len(line)+64 > maxChars {
			fmt.Fprintf(sb, "\n*%d more dates omitted.*\n", len(rows)-i)

			return
		}

		sb.WriteString(line)
	}

	sb.WriteByte('\n')
}

func formatOptionalKey(r metrics.Result, key string) string {
	if !r.Has(key) {
		return "-"
	}

	return formatValue(r[key])
}

// formatValue renders a Result value. Values decoded from JSON arrive as
// float64 whatever their original type.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "n/a"
	case bool:
		if t {
			return "yes"
		}

		return "no"
	case int:
		return fmt.Sprintf("%d", t)
	case float64:
		return formatNumber(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}

	if math.Abs(v) < 0.01 {
		return fmt.Sprintf("%.4f", v)
	}

	return fmt.Sprintf("%.2f", v)
}

func formatPointer(v *float64) string {
	if v == nil {
		return "-"
	}

	return formatNumber(*v)
}
