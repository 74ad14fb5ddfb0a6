package models

// Priority ranks how much attention a column deserves.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists the valid priorities from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// SelectionSource records where a DimensionSelection came from.
type SelectionSource string

const (
	SelectionFromLLM     SelectionSource = "llm"
	SelectionFromDefault SelectionSource = "default"
)

// DimensionSelection decides which dimensions to check for one column.
type DimensionSelection struct {
	DimensionsToCheck []Dimension          `json:"dimensions_to_check"`
	DimensionsToSkip  []Dimension          `json:"dimensions_to_skip"`
	Reasoning         map[Dimension]string `json:"reasoning"`
	Priority          Priority             `json:"priority"`
	Source            SelectionSource      `json:"source"`
}

// DefaultDimensionSelection checks all five dimensions at medium priority.
// It is used whenever the selector cannot produce a valid answer.
func DefaultDimensionSelection() DimensionSelection {
	return DimensionSelection{
		DimensionsToCheck: append([]Dimension(nil), AllDimensions...),
		DimensionsToSkip:  []Dimension{},
		Reasoning: map[Dimension]string{
			DimensionCompleteness: "Default check - all fields should have data",
			DimensionUniqueness:   "Default check - assess uniqueness patterns",
			DimensionConsistency:  "Default check - validate data patterns",
			DimensionValidity:     "Default check - ensure data meets basic rules",
			DimensionTimeliness:   "Default check - assess data freshness",
		},
		Priority: PriorityMedium,
		Source:   SelectionFromDefault,
	}
}

// Checks reports whether d is selected.
func (s DimensionSelection) Checks(d Dimension) bool {
	for _, c := range s.DimensionsToCheck {
		if c == d {
			return true
		}
	}
	return false
}
