package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

// Prediction is the classifier output: a probability of the positive
// (high-risk) class and a discrete label.
type Prediction struct {
	Probability float64          `json:"probability"`
	Label       domain.RiskLevel `json:"label"`
}

// Scorer is the narrow capability consumed by the pipeline. Concrete
// scoring backends are swappable behind it.
type Scorer interface {
	Score(ctx context.Context, features FeatureVector) (Prediction, error)
}

// ModelArtifact is the serialized form of a trained risk model. The
// feature order mirrors the FeatureVector slots.
type ModelArtifact struct {
	Version           string    `json:"version"`
	FeatureNames      []string  `json:"feature_names"`
	Weights           []float64 `json:"weights"`
	Scale             float64   `json:"scale"`
	QualityDampBelow  float64   `json:"quality_damp_below"`
	QualityDampFactor float64   `json:"quality_damp_factor"`
	MinProbability    float64   `json:"min_probability"`
	MaxProbability    float64   `json:"max_probability"`
	DecisionThreshold float64   `json:"decision_threshold"`
	TrainedSamples    int       `json:"trained_samples,omitempty"`
}

// Validate checks the artifact against the fixed classifier contract.
func (m *ModelArtifact) Validate() error {
	if len(m.FeatureNames) != FeatureCount {
		return fmt.Errorf("model declares %d features, expected %d", len(m.FeatureNames), FeatureCount)
	}
	if len(m.Weights) != FeatureCount {
		return fmt.Errorf("model declares %d weights, expected %d", len(m.Weights), FeatureCount)
	}
	if m.Scale <= 0 {
		return fmt.Errorf("model scale must be positive, got %g", m.Scale)
	}
	if m.MinProbability < 0 || m.MaxProbability > 1 || m.MinProbability >= m.MaxProbability {
		return fmt.Errorf("invalid probability bounds [%g, %g]", m.MinProbability, m.MaxProbability)
	}
	if m.DecisionThreshold <= 0 || m.DecisionThreshold >= 1 {
		return fmt.Errorf("decision threshold must be in (0, 1), got %g", m.DecisionThreshold)
	}
	return nil
}

// WeightedScorer scores feature vectors with a weighted linear model
// loaded from a JSON artifact.
type WeightedScorer struct {
	artifact ModelArtifact
	log      *logrus.Logger
}

// LoadScorer reads and validates a model artifact from disk. A missing
// or invalid artifact is a configuration error: the caller must refuse
// to start risk scoring rather than fail per request.
func LoadScorer(path string, logger *logrus.Logger) (*WeightedScorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading model artifact: %w", err)
	}

	var artifact ModelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parsing model artifact: %w", err)
	}
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("validating model artifact: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"path":     path,
		"version":  artifact.Version,
		"features": len(artifact.FeatureNames),
	}).Info("Risk model artifact loaded")

	return &WeightedScorer{artifact: artifact, log: logger}, nil
}

// NewWeightedScorer wraps an already-validated artifact.
func NewWeightedScorer(artifact ModelArtifact, logger *logrus.Logger) (*WeightedScorer, error) {
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("validating model artifact: %w", err)
	}
	return &WeightedScorer{artifact: artifact, log: logger}, nil
}

// Score computes the weighted probability and the discrete label.
func (s *WeightedScorer) Score(_ context.Context, features FeatureVector) (Prediction, error) {
	m := s.artifact

	var raw float64
	for i, w := range m.Weights {
		raw += w * features[i]
	}
	score := raw / m.Scale

	// Low overall call quality dampens confidence in the score.
	if features[FeatMeanQuality] < m.QualityDampBelow {
		score *= m.QualityDampFactor
	}

	if score < m.MinProbability {
		score = m.MinProbability
	}
	if score > m.MaxProbability {
		score = m.MaxProbability
	}

	label := domain.RiskLow
	if score > m.DecisionThreshold {
		label = domain.RiskHigh
	}

	return Prediction{Probability: score, Label: label}, nil
}

// DefaultArtifact returns the reference model parameters shipped with
// the service, equivalent to the trained artifact in models/model.json.
func DefaultArtifact() ModelArtifact {
	return ModelArtifact{
		Version: "1.0",
		FeatureNames: []string{
			"high_risk_variants",
			"medium_risk_variants",
			"low_risk_variants",
			"pathogenic_variants",
			"avg_quality",
			"brca_variants",
			"apoe_variants",
			"tp53_variants",
		},
		Weights:           []float64{4, 2, 0, 5, 0, 3.5, 0, 4},
		Scale:             25,
		QualityDampBelow:  20,
		QualityDampFactor: 0.7,
		MinProbability:    0.05,
		MaxProbability:    0.95,
		DecisionThreshold: 0.6,
		TrainedSamples:    5000,
	}
}
