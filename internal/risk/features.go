// Package risk reduces annotated variant sets to a fixed-length feature
// vector and turns classifier output into the final risk verdict.
package risk

import (
	"strings"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

// FeatureCount is the fixed input arity of the risk classifier.
const FeatureCount = 8

// Feature vector slots. The order is part of the trained-model contract
// and must not change without retraining.
const (
	FeatHighRisk = iota
	FeatMediumRisk
	FeatLowRisk
	FeatPathogenic
	FeatMeanQuality
	FeatBRCA
	FeatAPOE
	FeatTP53
)

// Gene marker substrings counted per vector slot (case-sensitive).
const (
	markerBRCA = "BRCA"
	markerAPOE = "APOE"
	markerTP53 = "TP53"
)

// FeatureVector is the fixed-length numeric summary consumed by the
// classifier.
type FeatureVector [FeatureCount]float64

// BuildFeatures computes the feature vector for a complete annotated
// variant set. An empty set is valid and yields the zero vector.
//
// Mean quality averages only the present quality values; absent
// qualities are excluded from both numerator and divisor, matching the
// convention the reference classifier was trained against.
func BuildFeatures(variants []domain.AnnotatedVariant) FeatureVector {
	var fv FeatureVector

	var qualSum float64
	var qualN int

	for _, v := range variants {
		switch v.DiseaseRisk {
		case domain.RiskHigh:
			fv[FeatHighRisk]++
		case domain.RiskMedium:
			fv[FeatMediumRisk]++
		default:
			fv[FeatLowRisk]++
		}

		if v.Pathogenicity == domain.PathogenicityPathogenic {
			fv[FeatPathogenic]++
		}

		if v.Quality != nil {
			qualSum += *v.Quality
			qualN++
		}

		if strings.Contains(v.Gene, markerBRCA) {
			fv[FeatBRCA]++
		}
		if strings.Contains(v.Gene, markerAPOE) {
			fv[FeatAPOE]++
		}
		if strings.Contains(v.Gene, markerTP53) {
			fv[FeatTP53]++
		}
	}

	if qualN > 0 {
		fv[FeatMeanQuality] = qualSum / float64(qualN)
	}

	return fv
}
