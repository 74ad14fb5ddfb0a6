package services

import (
	"strings"
	"unicode"
)

// ColumnRule decides one classification concern for a column, or abstains.
// Rules are evaluated in order and the first rule that applies wins.
type ColumnRule struct {
	Name  string
	Apply func(name, dataType string) (decision, applies bool)
}

// ColumnClassifier answers a single yes/no question about a column using
// an ordered rule list. With no applicable rule the answer is false.
type ColumnClassifier struct {
	rules []ColumnRule
}

// NewColumnClassifier builds a classifier from ordered rules.
func NewColumnClassifier(rules ...ColumnRule) *ColumnClassifier {
	return &ColumnClassifier{rules: rules}
}

// Classify returns the decision of the first applicable rule.
func (c *ColumnClassifier) Classify(name, dataType string) bool {
	decision, _ := c.Explain(name, dataType)
	return decision
}

// Explain returns the decision and the name of the rule that made it.
func (c *ColumnClassifier) Explain(name, dataType string) (bool, string) {
	for _, rule := range c.rules {
		if decision, ok := rule.Apply(name, dataType); ok {
			return decision, rule.Name
		}
	}
	return false, ""
}

var quantityPrefixes = []string{"number_of", "no_of", "num_"}

var idTokens = map[string]bool{
	"id":        true,
	"key":       true,
	"number":    true,
	"no":        true,
	"reference": true,
	"ref":       true,
}

var idSuffixes = []string{"id", "key"}

// suffixStopWords are ordinary words that end in an identifier suffix.
var suffixStopWords = map[string]bool{
	"valid":   true,
	"invalid": true,
	"unpaid":  true,
	"prepaid": true,
	"liquid":  true,
	"fluid":   true,
	"humid":   true,
	"rapid":   true,
	"rigid":   true,
	"solid":   true,
	"hybrid":  true,
	"android": true,
	"monkey":  true,
	"turkey":  true,
	"whiskey": true,
	"hockey":  true,
	"jockey":  true,
}

// IDLikeClassifier decides whether uniqueness applies to a column.
// Quantity phrases such as number_of_people are excluded before the
// identifier token rules run.
func IDLikeClassifier() *ColumnClassifier {
	return NewColumnClassifier(
		ColumnRule{
			Name: "quantity_phrase",
			Apply: func(name, _ string) (bool, bool) {
				lower := strings.ToLower(name)
				for _, p := range quantityPrefixes {
					if strings.HasPrefix(lower, p) {
						return false, true
					}
				}
				return false, false
			},
		},
		ColumnRule{
			Name: "identifier_token",
			Apply: func(name, _ string) (bool, bool) {
				for _, tok := range nameTokens(name) {
					if idTokens[tok] {
						return true, true
					}
				}
				return false, false
			},
		},
		ColumnRule{
			Name: "identifier_suffix",
			Apply: func(name, _ string) (bool, bool) {
				// Only unseparated names such as EVENTID or userkey; is_valid
				// splits into tokens and never reaches a suffix match.
				tokens := nameTokens(name)
				if len(tokens) != 1 || suffixStopWords[tokens[0]] {
					return false, false
				}
				for _, s := range idSuffixes {
					if len(tokens[0]) > len(s)+2 && strings.HasSuffix(tokens[0], s) {
						return true, true
					}
				}
				return false, false
			},
		},
	)
}

// DateTypeClassifier decides whether timeliness applies, from the declared
// type only.
func DateTypeClassifier() *ColumnClassifier {
	return NewColumnClassifier(
		ColumnRule{
			Name: "date_time_type",
			Apply: func(_, dataType string) (bool, bool) {
				lower := strings.ToLower(strings.TrimSpace(dataType))
				if strings.Contains(lower, "date") || strings.Contains(lower, "timestamp") {
					return true, true
				}
				// time, timetz and time with time zone hold a time of day
				// with no date to measure freshness against.
				return false, false
			},
		},
	)
}

// valueRole selects the sampled format and business rule checks.
type valueRole int

const (
	roleGeneric valueRole = iota
	roleDate
	roleIdentifier
)

// sampleRole picks the check family for a column by name substring. Date
// naming wins over identifier naming so reported_date and date_id are checked
// as dates.
func sampleRole(name string) valueRole {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "date"):
		return roleDate
	case strings.Contains(lower, "id"):
		return roleIdentifier
	default:
		return roleGeneric
	}
}

// nameTokens splits a column name on separators and camelCase boundaries
// and lowercases the pieces.
func nameTokens(name string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return tokens
}
