package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

func TestColumnScore_OnlyPresentDimensions(t *testing.T) {
	ch := &models.ColumnHealth{
		Completeness: &models.CompletenessResult{Score: 80},
		Consistency:  &models.ConsistencyResult{Score: 100},
		Validity:     &models.ValidityResult{Score: 100},
	}
	assert.Equal(t, 92.3, ColumnScore(ch))

	assert.Equal(t, 0.0, ColumnScore(&models.ColumnHealth{}))
}

func TestGuidedColumnScore(t *testing.T) {
	ch := &models.ColumnHealth{
		Completeness: &models.CompletenessResult{Score: 50},
		Timeliness:   &models.TimelinessResult{Score: 100},
	}
	// Equal weights of 25 renormalize to 50/50.
	assert.Equal(t, 75.0, GuidedColumnScore(ch, []models.Dimension{models.DimensionCompleteness, models.DimensionTimeliness}))

	// A selected dimension without a result counts as zero.
	assert.Equal(t, 19.2, GuidedColumnScore(ch, []models.Dimension{models.DimensionCompleteness, models.DimensionValidity, models.DimensionConsistency}))

	assert.Equal(t, 0.0, GuidedColumnScore(ch, nil))
}

func TestRenormalizedWeights_SumTo100(t *testing.T) {
	all := models.AllDimensions
	// Every non-empty subset of the five dimensions.
	for mask := 1; mask < 1<<len(all); mask++ {
		var subset []models.Dimension
		for i, d := range all {
			if mask&(1<<i) != 0 {
				subset = append(subset, d)
			}
		}
		weights := RenormalizedWeights(subset)
		var sum float64
		for _, w := range weights {
			sum += w
		}
		assert.InDelta(t, 100.0, sum, 1e-9, "subset %v", subset)
		assert.Len(t, weights, len(subset))
	}
}

func TestRenormalizedWeights_IgnoresUnknownAndRepeated(t *testing.T) {
	weights := RenormalizedWeights([]models.Dimension{"accuracy", models.DimensionUniqueness, models.DimensionUniqueness})
	assert.Equal(t, map[models.Dimension]float64{models.DimensionUniqueness: 100}, weights)

	assert.Nil(t, RenormalizedWeights([]models.Dimension{"accuracy"}))
}
