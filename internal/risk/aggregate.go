package risk

import (
	"time"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

// Classification ladder over the final probability. Independent of the
// per-variant tier thresholds in the annotation package.
const (
	highProbabilityFloor   = 0.7
	mediumProbabilityFloor = 0.3
)

// Heuristic weights for the count-based fallback score.
const (
	highRiskWeight   = 0.3
	pathogenicWeight = 0.4
)

// Summary holds the raw tallies of one annotated variant set.
type Summary struct {
	Total       int
	HighRisk    int
	MediumRisk  int
	LowRisk     int
	Pathogenic  int
	MeanQuality float64
}

// Summarize derives the count summary from a feature vector.
func Summarize(features FeatureVector, total int) Summary {
	return Summary{
		Total:       total,
		HighRisk:    int(features[FeatHighRisk]),
		MediumRisk:  int(features[FeatMediumRisk]),
		LowRisk:     int(features[FeatLowRisk]),
		Pathogenic:  int(features[FeatPathogenic]),
		MeanQuality: features[FeatMeanQuality],
	}
}

// Classify maps a probability onto the coarse risk ladder:
// >0.7 high, >0.3 medium, otherwise low. Boundaries are exclusive.
func Classify(probability float64) domain.RiskLevel {
	switch {
	case probability > highProbabilityFloor:
		return domain.RiskHigh
	case probability > mediumProbabilityFloor:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// ClampProbability bounds a probability into [0, 1].
func ClampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// HeuristicScore is the count-based score used by reporting surfaces:
// (high·0.3 + pathogenic·0.4) / total. The empty-set guard is required,
// not incidental: zero variants must yield zero, never divide by zero.
func HeuristicScore(highRisk, pathogenic, total int) float64 {
	if total == 0 {
		return 0
	}
	return (float64(highRisk)*highRiskWeight + float64(pathogenic)*pathogenicWeight) / float64(total)
}

// Aggregate combines classifier output and raw counts into the terminal
// analysis fields. An empty variant set yields probability 0.0 and a
// low classification regardless of the prediction.
func Aggregate(pred Prediction, summary Summary, variants []domain.AnnotatedVariant) domain.AnalysisCompletion {
	probability := ClampProbability(pred.Probability)
	if summary.Total == 0 {
		probability = 0
	}

	return domain.AnalysisCompletion{
		TotalVariants:      summary.Total,
		HighRiskVariants:   summary.HighRisk,
		PathogenicVariants: summary.Pathogenic,
		RiskProbability:    probability,
		RiskClassification: Classify(probability),
		Variants:           variants,
		CompletedAt:        time.Now().UTC(),
	}
}
