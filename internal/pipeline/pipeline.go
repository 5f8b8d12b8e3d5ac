// Package pipeline orchestrates the variant-annotation-to-risk-scoring
// core: extract → annotate → features → score → aggregate. The pipeline
// is a pure function over its input stream; storage and scheduling stay
// with the surrounding service.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AshishSingh1503/HelixMind/internal/annotation"
	"github.com/AshishSingh1503/HelixMind/internal/domain"
	"github.com/AshishSingh1503/HelixMind/internal/risk"
	"github.com/AshishSingh1503/HelixMind/internal/vcf"
)

// Outcome carries everything a completed scoring run produced.
type Outcome struct {
	TotalVariants      int
	HighRiskVariants   int
	MediumRiskVariants int
	LowRiskVariants    int
	PathogenicVariants int
	MeanQuality        float64
	RiskProbability    float64
	RiskClassification domain.RiskLevel
	// HeuristicScore is the count-based score reported alongside the
	// model probability; it never drives classification.
	HeuristicScore float64
	Variants       []domain.AnnotatedVariant
}

// Completion converts the outcome into the storage completion record.
func (o *Outcome) Completion() domain.AnalysisCompletion {
	return domain.AnalysisCompletion{
		TotalVariants:      o.TotalVariants,
		HighRiskVariants:   o.HighRiskVariants,
		PathogenicVariants: o.PathogenicVariants,
		RiskProbability:    o.RiskProbability,
		RiskClassification: o.RiskClassification,
		Variants:           o.Variants,
		CompletedAt:        time.Now().UTC(),
	}
}

// Pipeline wires the extractor, annotator and scorer. Data flows
// strictly one direction; no stage reads from a later one.
type Pipeline struct {
	extractor *vcf.Extractor
	annotator *annotation.Annotator
	scorer    risk.Scorer
	log       *logrus.Logger
}

// New creates a pipeline from its injected stages.
func New(extractor *vcf.Extractor, annotator *annotation.Annotator, scorer risk.Scorer, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		annotator: annotator,
		scorer:    scorer,
		log:       logger,
	}
}

// Run scores one variant stream end to end. Faults in any stage are
// returned as errors for the caller to record; they never panic through.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*Outcome, error) {
	started := time.Now()

	records, err := p.extractor.Extract(r)
	if err != nil {
		return nil, fmt.Errorf("extracting variants: %w", err)
	}

	annotated := p.annotator.AnnotateAll(records)
	features := risk.BuildFeatures(annotated)
	summary := risk.Summarize(features, len(annotated))

	var pred risk.Prediction
	if summary.Total > 0 {
		pred, err = p.scorer.Score(ctx, features)
		if err != nil {
			return nil, fmt.Errorf("scoring features: %w", err)
		}
	}

	completion := risk.Aggregate(pred, summary, annotated)

	outcome := &Outcome{
		TotalVariants:      summary.Total,
		HighRiskVariants:   summary.HighRisk,
		MediumRiskVariants: summary.MediumRisk,
		LowRiskVariants:    summary.LowRisk,
		PathogenicVariants: summary.Pathogenic,
		MeanQuality:        summary.MeanQuality,
		HeuristicScore:     risk.HeuristicScore(summary.HighRisk, summary.Pathogenic, summary.Total),
		RiskProbability:    completion.RiskProbability,
		RiskClassification: completion.RiskClassification,
		Variants:           annotated,
	}

	p.log.WithFields(logrus.Fields{
		"total_variants": outcome.TotalVariants,
		"high_risk":      outcome.HighRiskVariants,
		"pathogenic":     outcome.PathogenicVariants,
		"probability":    outcome.RiskProbability,
		"heuristic":      outcome.HeuristicScore,
		"classification": outcome.RiskClassification,
		"elapsed":        time.Since(started),
	}).Info("Risk scoring pipeline completed")

	return outcome, nil
}
