package services

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

// maxTextLength bounds free-text values for the generic checks.
const maxTextLength = 1000

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), // YYYY-MM-DD
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), // MM/DD/YYYY
	regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`), // MM-DD-YYYY
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?$`),
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var earliestValidDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// ScoreCompleteness scores the share of non-null values. A non-positive
// total yields a zero result.
func ScoreCompleteness(totalRecords, nonNull int64) *models.CompletenessResult {
	if totalRecords <= 0 {
		return &models.CompletenessResult{}
	}
	nonNull = clampCount(nonNull, totalRecords)
	nulls := totalRecords - nonNull
	return &models.CompletenessResult{
		Score:          models.Round1(100 * float64(nonNull) / float64(totalRecords)),
		NullCount:      nulls,
		NonNullCount:   nonNull,
		NullPercentage: models.Round1(100 * float64(nulls) / float64(totalRecords)),
	}
}

// ScoreUniqueness scores distinct values against non-null values.
func ScoreUniqueness(nonNull, unique int64) *models.UniquenessResult {
	if nonNull <= 0 {
		return &models.UniquenessResult{}
	}
	unique = clampCount(unique, nonNull)
	return &models.UniquenessResult{
		Score:          models.Round1(100 * float64(unique) / float64(nonNull)),
		UniqueCount:    unique,
		DuplicateCount: nonNull - unique,
		TotalNonNull:   nonNull,
	}
}

// ScoreConsistency applies the format check chosen by the column name to
// sampled values.
func ScoreConsistency(column string, values []string) *models.ConsistencyResult {
	if len(values) == 0 {
		return &models.ConsistencyResult{}
	}

	var check func(string) bool
	switch sampleRole(column) {
	case roleDate:
		check = matchesDatePattern
	case roleIdentifier:
		check = identifierPattern.MatchString
	default:
		check = isReasonableText
	}

	violations := 0
	for _, v := range values {
		if !check(v) {
			violations++
		}
	}
	rate := passRate(len(values), violations)
	return &models.ConsistencyResult{
		Score:             rate,
		PatternViolations: violations,
		TotalChecked:      len(values),
		ConsistencyRate:   rate,
	}
}

// ScoreValidity applies the business rule chosen by the column name to
// sampled values. Dates must parse and fall within [1900-01-01, today].
func ScoreValidity(column string, values []string, now time.Time) *models.ValidityResult {
	if len(values) == 0 {
		return &models.ValidityResult{}
	}

	var check func(string) bool
	switch sampleRole(column) {
	case roleDate:
		today := dateOnly(now)
		check = func(v string) bool { return isValidDate(v, today) }
	case roleIdentifier:
		check = identifierPattern.MatchString
	default:
		check = isReasonableText
	}

	invalid := 0
	for _, v := range values {
		if !check(v) {
			invalid++
		}
	}
	rate := passRate(len(values), invalid)
	return &models.ValidityResult{
		Score:         rate,
		InvalidValues: invalid,
		TotalChecked:  len(values),
		ValidityRate:  rate,
	}
}

// ScoreTimeliness scores freshness from a column's date range. A nil range
// means the column has no dates and scores zero.
func ScoreTimeliness(rng *datasource.DateRange, now time.Time) *models.TimelinessResult {
	if rng == nil {
		return &models.TimelinessResult{}
	}

	days := int(dateOnly(now).Sub(dateOnly(rng.Latest)).Hours() / 24)
	if days < 0 {
		days = 0
	}
	latest := dateOnly(rng.Latest)
	oldest := dateOnly(rng.Oldest)
	score := FreshnessScore(days)
	return &models.TimelinessResult{
		Score:           score,
		DaysSinceLatest: days,
		AvgAgeDays:      days,
		LatestDate:      &latest,
		OldestDate:      &oldest,
		FreshnessScore:  score,
	}
}

// FreshnessScore maps days since the latest record onto a step function.
func FreshnessScore(days int) float64 {
	switch {
	case days <= 30:
		return 100
	case days <= 60:
		return 85
	case days <= 90:
		return 70
	case days <= 180:
		return 50
	default:
		return 25
	}
}

// SampleStrings converts non-null sampled values to strings, keeping at most
// limit values. A value that cannot be represented as text is an error.
func SampleStrings(values []any, limit int) ([]string, error) {
	out := make([]string, 0, min(len(values), limit))
	for _, v := range values {
		if len(out) >= limit {
			break
		}
		if v == nil {
			continue
		}
		s, err := formatValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func formatValue(v any) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return formatTime(t), nil
	case *time.Time:
		if t == nil {
			return "", nil
		}
		return formatTime(*t), nil
	case [16]byte:
		return uuid.UUID(t).String(), nil
	case fmt.Stringer:
		return t.String(), nil
	case driver.Valuer:
		inner, err := t.Value()
		if err != nil {
			return "", fmt.Errorf("read %T value: %w", v, err)
		}
		if inner == nil {
			return "", nil
		}
		return formatValue(inner)
	}

	s, err := cast.ToStringE(v)
	if err == nil {
		return s, nil
	}
	// json and jsonb columns scan into maps and slices.
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		raw, jerr := json.Marshal(v)
		if jerr != nil {
			return "", fmt.Errorf("cannot convert %T to text: %w", v, jerr)
		}
		return string(raw), nil
	}
	return "", fmt.Errorf("cannot convert %T to text: %w", v, err)
}

// formatTime renders midnight values as plain dates.
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

func matchesDatePattern(v string) bool {
	for _, p := range datePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

func isReasonableText(v string) bool {
	return strings.TrimSpace(v) != "" && utf8.RuneCountInString(v) <= maxTextLength
}

func isValidDate(v string, today time.Time) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	t, ok := datasource.ParseTimeString(v)
	if !ok {
		return false
	}
	d := dateOnly(t)
	return !d.Before(earliestValidDate) && !d.After(today)
}

func passRate(checked, failed int) float64 {
	if checked == 0 {
		return 0
	}
	return models.Round1(100 * float64(checked-failed) / float64(checked))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clampCount(n, upper int64) int64 {
	if n < 0 {
		return 0
	}
	if n > upper {
		return upper
	}
	return n
}
