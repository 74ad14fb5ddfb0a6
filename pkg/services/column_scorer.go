package services

import (
	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

// ColumnScore is the weighted average of the dimensions computed for a
// column using the fixed weight table. Absent dimensions contribute to
// neither numerator nor denominator.
func ColumnScore(ch *models.ColumnHealth) float64 {
	var weighted, total float64
	for _, d := range models.AllDimensions {
		score, ok := ch.DimensionScore(d)
		if !ok {
			continue
		}
		w := float64(d.Weight())
		weighted += score * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return models.Round1(weighted / total)
}

// GuidedColumnScore scores a column over the selected dimensions only,
// with their weights renormalized to sum to 100. A selected dimension
// without a result counts as zero.
func GuidedColumnScore(ch *models.ColumnHealth, checked []models.Dimension) float64 {
	weights := RenormalizedWeights(checked)
	if len(weights) == 0 {
		return 0
	}
	var score float64
	for _, d := range models.AllDimensions {
		w, ok := weights[d]
		if !ok {
			continue
		}
		s, _ := ch.DimensionScore(d)
		score += s * w / 100
	}
	return models.Round1(score)
}

// RenormalizedWeights rescales the canonical weights of subset to sum to
// 100. Unknown and repeated dimensions are ignored.
func RenormalizedWeights(subset []models.Dimension) map[models.Dimension]float64 {
	var total int
	seen := make(map[models.Dimension]bool, len(subset))
	for _, d := range subset {
		if seen[d] || d.Weight() == 0 {
			continue
		}
		seen[d] = true
		total += d.Weight()
	}
	if total == 0 {
		return nil
	}
	out := make(map[models.Dimension]float64, len(seen))
	for d := range seen {
		out[d] = float64(d.Weight()) / float64(total) * 100
	}
	return out
}
