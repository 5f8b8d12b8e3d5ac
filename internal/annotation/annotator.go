package annotation

import (
	"strings"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

// QualityThreshold is the minimum call quality (exclusive) for a
// chromosome match to produce an annotation.
const QualityThreshold = 30.0

// highRiskMarker in the primary disease name raises the tier to high.
const highRiskMarker = "Cancer"

// Annotator applies the curated gene table to raw variant records.
// Annotation is position-agnostic: any variant on an associated
// chromosome with sufficient call quality inherits the chromosome's
// primary gene. A known simplification of real annotation, which would
// match exact positions and alleles.
type Annotator struct {
	table *GeneTable
}

// NewAnnotator creates an annotator over an injected read-only table.
func NewAnnotator(table *GeneTable) *Annotator {
	return &Annotator{table: table}
}

// Annotate derives an AnnotatedVariant from one raw record. The result
// is deterministic for a fixed table and never mutates the input.
func (a *Annotator) Annotate(rec domain.RawVariantRecord) domain.AnnotatedVariant {
	annotated := domain.AnnotatedVariant{
		RawVariantRecord: rec,
		DiseaseRisk:      domain.RiskLow,
		Pathogenicity:    domain.PathogenicityBenign,
	}

	assoc, ok := a.table.Lookup(rec.Chromosome)
	if !ok {
		return annotated
	}

	// Quality gate: an absent or low-confidence call stays unannotated
	// despite the chromosome match.
	if rec.Quality == nil || *rec.Quality <= QualityThreshold {
		return annotated
	}

	annotated.Gene = assoc.Genes[0]
	annotated.Pathogenicity = domain.PathogenicityPathogenic
	annotated.ClinicalSignificance = strings.Join(assoc.Diseases, ", ")

	if strings.Contains(assoc.Diseases[0], highRiskMarker) {
		annotated.DiseaseRisk = domain.RiskHigh
	} else {
		annotated.DiseaseRisk = domain.RiskMedium
	}

	return annotated
}

// AnnotateAll annotates a complete record list, preserving order.
func (a *Annotator) AnnotateAll(records []domain.RawVariantRecord) []domain.AnnotatedVariant {
	annotated := make([]domain.AnnotatedVariant, 0, len(records))
	for _, rec := range records {
		annotated = append(annotated, a.Annotate(rec))
	}
	return annotated
}
