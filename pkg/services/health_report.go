package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

const (
	maxTopIssues          = 5
	maxBucketActions      = 3
	maxFocusColumns       = 5
	optimizationNoticePct = 20
)

// Grade ladder, checked in descending order.
var gradeLadder = []struct {
	min   float64
	grade string
}{
	{85, "Excellent"},
	{70, "Good"},
	{50, "Poor"},
}

// HealthGrade maps a weighted score to a word grade.
func HealthGrade(score float64) string {
	for _, step := range gradeLadder {
		if score >= step.min {
			return step.grade
		}
	}
	return "Bad"
}

// ColumnIssues derives problem statements and remediation advice from a
// column's metrics. A dimension whose check failed is reported as such
// instead of through its placeholder counts.
func ColumnIssues(column string, ch *models.ColumnHealth) (issues, recommendations []string) {
	issues = []string{}
	recommendations = []string{}

	for _, d := range ch.Present() {
		if ch.DimensionError(d) != "" {
			issues = append(issues, fmt.Sprintf("%s check failed", d))
		}
	}

	if c := ch.Completeness; c != nil && c.Error == "" {
		switch {
		case c.NullPercentage > 20:
			issues = append(issues, fmt.Sprintf("%.1f%% missing values", c.NullPercentage))
			recommendations = append(recommendations, fmt.Sprintf("Address %d missing %s values", c.NullCount, column))
		case c.NullPercentage > 5:
			issues = append(issues, fmt.Sprintf("%.1f%% missing values", c.NullPercentage))
		}
	}
	if u := ch.Uniqueness; u != nil && u.Error == "" && u.DuplicateCount > 0 {
		issues = append(issues, fmt.Sprintf("%d duplicate values", u.DuplicateCount))
		recommendations = append(recommendations, fmt.Sprintf("Investigate %d duplicate %s entries", u.DuplicateCount, column))
	}
	if c := ch.Consistency; c != nil && c.Error == "" && c.PatternViolations > 0 {
		issues = append(issues, fmt.Sprintf("%d format violations", c.PatternViolations))
		recommendations = append(recommendations, fmt.Sprintf("Standardize %s format", column))
	}
	if v := ch.Validity; v != nil && v.Error == "" && v.InvalidValues > 0 {
		issues = append(issues, fmt.Sprintf("%d invalid values", v.InvalidValues))
		recommendations = append(recommendations, fmt.Sprintf("Fix %d invalid %s values", v.InvalidValues, column))
	}
	if t := ch.Timeliness; t != nil && t.Error == "" && t.DaysSinceLatest > 30 {
		issues = append(issues, fmt.Sprintf("Data is %d days old", t.DaysSinceLatest))
		recommendations = append(recommendations, fmt.Sprintf("Update %s data (last update: %d days ago)", column, t.DaysSinceLatest))
	}
	return issues, recommendations
}

// GuidedRecommendations adds advice that uses the selector's reasoning and
// priority for a column.
func GuidedRecommendations(column string, ch *models.ColumnHealth, sel models.DimensionSelection, hasIssues bool) []string {
	var recs []string
	for _, d := range sel.DimensionsToCheck {
		score, ok := ch.DimensionScore(d)
		if !ok || score >= 70 {
			continue
		}
		reason := sel.Reasoning[d]
		switch {
		case sel.Priority == models.PriorityCritical:
			recs = append(recs, fmt.Sprintf("URGENT: Address %s in %s immediately - %s", d, column, reason))
		case score < 50:
			recs = append(recs, fmt.Sprintf("Improve %s for %s - %s", d, column, reason))
		default:
			recs = append(recs, fmt.Sprintf("Monitor and improve %s for %s", d, column))
		}
	}

	if len(sel.DimensionsToSkip) > 0 {
		names := make([]string, len(sel.DimensionsToSkip))
		for i, d := range sel.DimensionsToSkip {
			names[i] = string(d)
		}
		recs = append(recs, fmt.Sprintf("LLM intelligently skipped %s - not relevant for this field type", strings.Join(names, ", ")))
	}

	switch {
	case sel.Priority == models.PriorityCritical && !hasIssues:
		recs = append(recs, fmt.Sprintf("Critical field %s is performing well - maintain current quality standards", column))
	case sel.Priority == models.PriorityLow && hasIssues:
		recs = append(recs, fmt.Sprintf("Low priority field %s has issues but can be addressed in maintenance cycles", column))
	}
	return recs
}

// AggregateDimensions averages each dimension over the columns it was
// computed for. All five dimensions are always present.
func AggregateDimensions(columns map[string]*models.ColumnHealth) map[models.Dimension]models.DimensionAggregate {
	sums := make(map[models.Dimension]float64)
	counts := make(map[models.Dimension]int)
	for _, name := range sortedColumnNames(columns) {
		ch := columns[name]
		for _, d := range models.AllDimensions {
			if score, ok := ch.DimensionScore(d); ok {
				sums[d] += score
				counts[d]++
			}
		}
	}

	out := make(map[models.Dimension]models.DimensionAggregate, len(models.AllDimensions))
	for _, d := range models.AllDimensions {
		agg := models.DimensionAggregate{Weight: d.Weight(), ColumnsAssessed: counts[d]}
		if counts[d] > 0 {
			agg.Score = models.Round1(sums[d] / float64(counts[d]))
		}
		out[d] = agg
	}
	return out
}

// WeightedOverallScore combines dimension averages by their weights, over
// dimensions at least one column was assessed on.
func WeightedOverallScore(dims map[models.Dimension]models.DimensionAggregate) float64 {
	var weighted, total float64
	for _, d := range models.AllDimensions {
		agg, ok := dims[d]
		if !ok || agg.ColumnsAssessed == 0 {
			continue
		}
		weighted += agg.Score * float64(agg.Weight)
		total += float64(agg.Weight)
	}
	if total == 0 {
		return 0
	}
	return models.Round1(weighted / total)
}

// BuildSummary rolls up critical fields, the top issues and bucketed
// recommendations.
func BuildSummary(schemaType models.SchemaType, columns map[string]*models.ColumnHealth) models.Summary {
	critical := models.CriticalFieldsSummary{Total: len(schemaType.CriticalFields())}
	var criticalSum float64
	var criticalSeen int
	var all []models.Issue

	for _, name := range sortedColumnNames(columns) {
		ch := columns[name]
		score := ch.OverallColumnScore
		isCritical := schemaType.IsCritical(name)

		if isCritical {
			criticalSum += score
			criticalSeen++
			switch {
			case score >= 80:
				critical.Healthy++
			case score >= 60:
				critical.Warning++
			default:
				critical.Critical++
			}
		}

		for _, text := range ch.Issues {
			all = append(all, models.Issue{
				Severity: issueSeverity(isCritical, score),
				Column:   name,
				Issue:    text,
				Impact:   issueImpact(name, text, isCritical),
			})
		}
	}
	if criticalSeen > 0 {
		critical.AvgScore = models.Round1(criticalSum / float64(criticalSeen))
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Severity.Rank() < all[j].Severity.Rank()
	})

	top := all
	if len(top) > maxTopIssues {
		top = top[:maxTopIssues]
	}

	return models.Summary{
		CriticalFields:  critical,
		TopIssues:       append([]models.Issue{}, top...),
		Recommendations: bucketRecommendations(all),
	}
}

func issueSeverity(isCritical bool, score float64) models.Severity {
	switch {
	case isCritical && score < 60:
		return models.SeverityHigh
	case score < 70:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func issueImpact(column, issue string, isCritical bool) string {
	if !isCritical {
		return fmt.Sprintf("Data quality issues in %s may impact analysis accuracy", column)
	}
	lower := strings.ToLower(issue)
	switch {
	case strings.Contains(lower, "missing"):
		return fmt.Sprintf("Critical field %s missing values affects data reliability", column)
	case strings.Contains(lower, "duplicate"):
		return fmt.Sprintf("Duplicate %s values may indicate data integration issues", column)
	case strings.Contains(lower, "invalid"):
		return fmt.Sprintf("Invalid %s values compromise data quality", column)
	default:
		return fmt.Sprintf("Issues with critical field %s affect overall data integrity", column)
	}
}

// bucketRecommendations expects issues sorted by severity.
func bucketRecommendations(issues []models.Issue) models.Recommendations {
	var immediate, shortTerm, longTerm []string
	var hasFormat, hasDuplicate, hasMissing bool

	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityHigh:
			if len(immediate) < maxBucketActions {
				immediate = append(immediate, fmt.Sprintf("Fix %s in %s", issue.Issue, issue.Column))
			}
		case models.SeverityMedium:
			if len(shortTerm) < maxBucketActions {
				shortTerm = append(shortTerm, fmt.Sprintf("Address %s in %s", issue.Issue, issue.Column))
			}
		}
		lower := strings.ToLower(issue.Issue)
		hasFormat = hasFormat || strings.Contains(lower, "format")
		hasDuplicate = hasDuplicate || strings.Contains(lower, "duplicate")
		hasMissing = hasMissing || strings.Contains(lower, "missing")
	}

	if hasFormat {
		longTerm = append(longTerm, "Implement data validation rules at ingestion")
	}
	if hasDuplicate {
		longTerm = append(longTerm, "Set up automated duplicate detection")
	}
	if hasMissing {
		longTerm = append(longTerm, "Establish data completeness monitoring")
	}
	longTerm = append(longTerm, "Set up automated data quality monitoring")

	if len(immediate) == 0 {
		immediate = []string{"No immediate actions required"}
	}
	if len(shortTerm) == 0 {
		shortTerm = []string{"Monitor data quality trends"}
	}
	return models.Recommendations{Immediate: immediate, ShortTerm: shortTerm, LongTerm: longTerm}
}

// SummarizeSelections reports what dimension selection saved and why, plus
// the recommendations that follow from it.
func SummarizeSelections(selections map[string]models.DimensionSelection) (*models.SelectionSummary, []string) {
	summary := &models.SelectionSummary{
		IntelligentSkips: models.IntelligentSkips{
			SkipCounts:  map[models.Dimension]int{},
			SkipReasons: map[models.Dimension][]string{},
		},
		PriorityDistribution: map[models.Priority]int{},
	}

	names := make([]string, 0, len(selections))
	for name := range selections {
		names = append(names, name)
	}
	sort.Strings(names)

	opt := &summary.DimensionOptimization
	opt.TotalPossibleChecks = len(selections) * len(models.AllDimensions)

	var critical []string
	for _, name := range names {
		sel := selections[name]
		opt.TotalActualChecks += len(sel.DimensionsToCheck)
		for _, d := range sel.DimensionsToSkip {
			reason := sel.Reasoning[d]
			if reason == "" {
				reason = "No reason provided"
			}
			summary.IntelligentSkips.SkipCounts[d]++
			summary.IntelligentSkips.SkipReasons[d] = append(summary.IntelligentSkips.SkipReasons[d], fmt.Sprintf("%s: %s", name, reason))
		}
		priority := sel.Priority
		if priority == "" {
			priority = models.PriorityMedium
		}
		summary.PriorityDistribution[priority]++
		if priority == models.PriorityCritical {
			critical = append(critical, name)
		}
	}
	opt.ChecksSkipped = opt.TotalPossibleChecks - opt.TotalActualChecks
	if opt.TotalPossibleChecks > 0 {
		opt.OptimizationPercentage = models.Round1(100 * float64(opt.ChecksSkipped) / float64(opt.TotalPossibleChecks))
	}

	recs := []string{}
	if len(critical) > 0 {
		focus := critical
		if len(focus) > maxFocusColumns {
			focus = focus[:maxFocusColumns]
		}
		recs = append(recs, fmt.Sprintf("Focus on %d critical columns identified by semantic analysis: %s",
			len(critical), strings.Join(focus, ", ")))
	}
	if opt.OptimizationPercentage > optimizationNoticePct {
		recs = append(recs, fmt.Sprintf("LLM optimization reduced validation overhead by %.1f%% while maintaining quality coverage",
			opt.OptimizationPercentage))
	}
	return summary, recs
}

// EmptyReport is returned for a schema with no records.
func EmptyReport(schemaType models.SchemaType, assessmentType string, now time.Time) *models.HealthReport {
	return &models.HealthReport{
		SchemaType:          schemaType,
		AssessmentType:      assessmentType,
		TotalRecords:        0,
		AssessmentTimestamp: now,
		OverallHealth: models.OverallHealth{
			Score:      0,
			Grade:      models.GradeNotAvailable,
			Dimensions: AggregateDimensions(nil),
		},
		ColumnAnalysis: map[string]*models.ColumnHealth{},
		Summary: models.Summary{
			TopIssues: []models.Issue{},
			Recommendations: models.Recommendations{
				Immediate: []string{},
				ShortTerm: []string{},
				LongTerm:  []string{},
			},
		},
	}
}

// assembleReport builds the finished report from column results. It is the
// only place a non-empty HealthReport is constructed.
func assembleReport(
	schemaType models.SchemaType,
	assessmentType string,
	totalRecords int64,
	now time.Time,
	columns map[string]*models.ColumnHealth,
) *models.HealthReport {
	dims := AggregateDimensions(columns)
	score := WeightedOverallScore(dims)
	return &models.HealthReport{
		SchemaType:          schemaType,
		AssessmentType:      assessmentType,
		TotalRecords:        totalRecords,
		AssessmentTimestamp: now,
		OverallHealth: models.OverallHealth{
			Score:      score,
			Grade:      HealthGrade(score),
			Dimensions: dims,
		},
		ColumnAnalysis: columns,
		Summary:        BuildSummary(schemaType, columns),
	}
}

func sortedColumnNames(columns map[string]*models.ColumnHealth) []string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
