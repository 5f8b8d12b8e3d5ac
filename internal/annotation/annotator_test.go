package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

func qual(v float64) *float64 { return &v }

func TestAnnotate_HighQualityMatch(t *testing.T) {
	annotator := NewAnnotator(DefaultGeneTable())

	rec := domain.RawVariantRecord{
		Chromosome: "17",
		Position:   43044295,
		Reference:  "A",
		Alternate:  "G",
		Quality:    qual(35.0),
	}

	annotated := annotator.Annotate(rec)

	assert.Equal(t, "BRCA1", annotated.Gene)
	assert.Equal(t, domain.RiskHigh, annotated.DiseaseRisk)
	assert.Equal(t, domain.PathogenicityPathogenic, annotated.Pathogenicity)
	assert.Equal(t, "Breast Cancer, Ovarian Cancer, Li-Fraumeni Syndrome", annotated.ClinicalSignificance)
}

func TestAnnotate_LowQualityStaysBenign(t *testing.T) {
	annotator := NewAnnotator(DefaultGeneTable())

	rec := domain.RawVariantRecord{
		Chromosome: "17",
		Position:   43044295,
		Reference:  "A",
		Alternate:  "G",
		Quality:    qual(10.0),
	}

	annotated := annotator.Annotate(rec)

	assert.Empty(t, annotated.Gene)
	assert.Equal(t, domain.RiskLow, annotated.DiseaseRisk)
	assert.Equal(t, domain.PathogenicityBenign, annotated.Pathogenicity)
	assert.Empty(t, annotated.ClinicalSignificance)
}

func TestAnnotate_QualityExactlyAtThreshold(t *testing.T) {
	annotator := NewAnnotator(DefaultGeneTable())

	rec := domain.RawVariantRecord{Chromosome: "17", Position: 1, Reference: "A", Alternate: "G", Quality: qual(30.0)}

	annotated := annotator.Annotate(rec)

	// The gate is strictly greater-than.
	assert.Empty(t, annotated.Gene)
	assert.Equal(t, domain.PathogenicityBenign, annotated.Pathogenicity)
}

func TestAnnotate_MissingQuality(t *testing.T) {
	annotator := NewAnnotator(DefaultGeneTable())

	rec := domain.RawVariantRecord{Chromosome: "17", Position: 1, Reference: "A", Alternate: "G"}

	annotated := annotator.Annotate(rec)

	assert.Empty(t, annotated.Gene)
	assert.Equal(t, domain.PathogenicityBenign, annotated.Pathogenicity)
}

func TestAnnotate_UnknownChromosome(t *testing.T) {
	annotator := NewAnnotator(DefaultGeneTable())

	rec := domain.RawVariantRecord{Chromosome: "1", Position: 1, Reference: "A", Alternate: "G", Quality: qual(99.0)}

	annotated := annotator.Annotate(rec)

	assert.Empty(t, annotated.Gene)
	assert.Equal(t, domain.RiskLow, annotated.DiseaseRisk)
	assert.Equal(t, domain.PathogenicityBenign, annotated.Pathogenicity)
}

func TestAnnotate_MediumTierWithoutCancerDisease(t *testing.T) {
	annotator := NewAnnotator(DefaultGeneTable())

	rec := domain.RawVariantRecord{Chromosome: "19", Position: 1, Reference: "C", Alternate: "T", Quality: qual(50.0)}

	annotated := annotator.Annotate(rec)

	assert.Equal(t, "APOE", annotated.Gene)
	assert.Equal(t, domain.RiskMedium, annotated.DiseaseRisk)
	assert.Equal(t, domain.PathogenicityPathogenic, annotated.Pathogenicity)
	assert.Equal(t, "Alzheimer Disease", annotated.ClinicalSignificance)
}

func TestAnnotate_Deterministic(t *testing.T) {
	annotator := NewAnnotator(DefaultGeneTable())

	rec := domain.RawVariantRecord{Chromosome: "13", Position: 42, Reference: "C", Alternate: "T", Quality: qual(45.0)}

	first := annotator.Annotate(rec)
	second := annotator.Annotate(rec)

	assert.Equal(t, first, second)
	// Input is never mutated.
	assert.Equal(t, "13", rec.Chromosome)
	assert.InDelta(t, 45.0, *rec.Quality, 1e-9)
}

func TestAnnotateAll_PreservesOrder(t *testing.T) {
	annotator := NewAnnotator(DefaultGeneTable())

	records := []domain.RawVariantRecord{
		{Chromosome: "17", Position: 1, Reference: "A", Alternate: "G", Quality: qual(40.0)},
		{Chromosome: "1", Position: 2, Reference: "C", Alternate: "T", Quality: qual(40.0)},
		{Chromosome: "19", Position: 3, Reference: "G", Alternate: "A", Quality: qual(40.0)},
	}

	annotated := annotator.AnnotateAll(records)

	require.Len(t, annotated, 3)
	assert.Equal(t, "BRCA1", annotated[0].Gene)
	assert.Empty(t, annotated[1].Gene)
	assert.Equal(t, "APOE", annotated[2].Gene)
}

func TestAnnotateAll_EmptyInput(t *testing.T) {
	annotator := NewAnnotator(DefaultGeneTable())

	annotated := annotator.AnnotateAll(nil)

	assert.NotNil(t, annotated)
	assert.Empty(t, annotated)
}
