package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

var (
	excellentColor = color.New(color.FgGreen, color.Bold)
	goodColor      = color.New(color.FgGreen)
	poorColor      = color.New(color.FgYellow)
	badColor       = color.New(color.FgRed, color.Bold)
	mutedColor     = color.New(color.FgHiBlack)
)

// gradeLabel colours a word grade for terminal output.
func gradeLabel(grade string) string {
	switch grade {
	case "Excellent":
		return excellentColor.Sprint(grade)
	case "Good":
		return goodColor.Sprint(grade)
	case "Poor":
		return poorColor.Sprint(grade)
	case "Bad":
		return badColor.Sprint(grade)
	default:
		return mutedColor.Sprint(grade)
	}
}

// scoreLabel colours a column score on the same ladder as the grade.
func scoreLabel(score float64) string {
	text := fmt.Sprintf("%.1f", score)
	switch {
	case score >= 85:
		return excellentColor.Sprint(text)
	case score >= 70:
		return goodColor.Sprint(text)
	case score >= 50:
		return poorColor.Sprint(text)
	default:
		return badColor.Sprint(text)
	}
}

func writeReportJSON(w io.Writer, report *models.HealthReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// renderReport prints the headline, a per-column table and the recommendations.
func renderReport(w io.Writer, report *models.HealthReport) error {
	fmt.Fprintf(w, "Schema:   %s (%s)\n", report.SchemaType, report.AssessmentType)
	fmt.Fprintf(w, "Records:  %d\n", report.TotalRecords)
	fmt.Fprintf(w, "Overall:  %.1f %s\n", report.OverallHealth.Score, gradeLabel(report.OverallHealth.Grade))

	if len(report.ColumnAnalysis) == 0 {
		fmt.Fprintln(w, "\nNo columns assessed.")
		return nil
	}

	fmt.Fprintln(w)
	if err := renderDimensions(w, report); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := renderColumns(w, report); err != nil {
		return err
	}

	recs := report.Summary.Recommendations
	printList(w, "Immediate actions", recs.Immediate)
	printList(w, "Short term", recs.ShortTerm)
	printList(w, "Long term", recs.LongTerm)
	printList(w, "Model recommendations", recs.LLMRecommendations)
	return nil
}

func renderDimensions(w io.Writer, report *models.HealthReport) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Dimension", "Score", "Weight", "Columns"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, d := range models.AllDimensions {
		agg, ok := report.OverallHealth.Dimensions[d]
		if !ok {
			continue
		}
		data = append(data, []string{
			string(d),
			fmt.Sprintf("%.1f", agg.Score),
			fmt.Sprintf("%d%%", agg.Weight),
			fmt.Sprintf("%d", agg.ColumnsAssessed),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func renderColumns(w io.Writer, report *models.HealthReport) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Column", "Critical", "Score", "Checked", "Issues"})

	names := make([]string, 0, len(report.ColumnAnalysis))
	for name := range report.ColumnAnalysis {
		names = append(names, name)
	}
	// Critical columns first, then by name.
	slices.SortFunc(names, func(a, b string) int {
		ca, cb := report.ColumnAnalysis[a].IsCritical, report.ColumnAnalysis[b].IsCritical
		if ca != cb {
			if ca {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})

	var data [][]string
	for _, name := range names {
		ch := report.ColumnAnalysis[name]
		critical := ""
		if ch.IsCritical {
			critical = "yes"
		}
		checked := ch.DimensionsChecked
		if len(checked) == 0 {
			checked = ch.Present()
		}
		dims := make([]string, len(checked))
		for i, d := range checked {
			dims[i] = string(d)
		}
		data = append(data, []string{
			name,
			critical,
			scoreLabel(ch.OverallColumnScore),
			strings.Join(dims, ", "),
			strings.Join(ch.Issues, "; "),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}
