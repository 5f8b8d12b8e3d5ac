// Package domain defines the core types shared across the HelixMind
// variant analysis pipeline, storage and API layers.
package domain

import (
	"time"
)

// RiskLevel represents a coarse disease-risk bucket.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Pathogenicity classifies a variant as disease-causing or not.
type Pathogenicity string

const (
	PathogenicityBenign     Pathogenicity = "benign"
	PathogenicityPathogenic Pathogenicity = "pathogenic"
)

// AnalysisStatus represents the lifecycle state of an analysis run.
type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RawVariantRecord is one normalized variant call parsed from a VCF data
// line. Quality is nil when the source marks it unavailable.
type RawVariantRecord struct {
	Chromosome string   `json:"chrom"`
	Position   int      `json:"pos"`
	Reference  string   `json:"ref"`
	Alternate  string   `json:"alt"`
	Quality    *float64 `json:"qual,omitempty"`
	Genotype   string   `json:"genotype,omitempty"`
}

// AnnotatedVariant is a RawVariantRecord enriched with a gene/disease
// association. Gene and ClinicalSignificance are empty unless the
// annotation rule matched.
type AnnotatedVariant struct {
	RawVariantRecord

	Gene                 string        `json:"gene,omitempty"`
	DiseaseRisk          RiskLevel     `json:"disease_risk"`
	Pathogenicity        Pathogenicity `json:"pathogenicity"`
	ClinicalSignificance string        `json:"clinical_significance,omitempty"`
}

// AnalysisResult tracks one end-to-end scoring run over one uploaded
// variant file. Variant data and the risk probability are only populated
// once the status reaches completed.
type AnalysisResult struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"user_id"`
	VCFFile            string             `json:"vcf_file"`
	Status             AnalysisStatus     `json:"status"`
	TotalVariants      int                `json:"total_variants"`
	HighRiskVariants   int                `json:"high_risk_variants"`
	PathogenicVariants int                `json:"pathogenic_variants"`
	RiskProbability    float64            `json:"risk_probability"`
	RiskClassification RiskLevel          `json:"risk_classification"`
	Variants           []AnnotatedVariant `json:"variants"`
	CreatedAt          time.Time          `json:"created_at"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	ErrorMessage       string             `json:"error_message,omitempty"`
}

// AnalysisCompletion carries the terminal fields written by a successful
// scoring run. Applied atomically with the processing→completed transition.
type AnalysisCompletion struct {
	TotalVariants      int                `json:"total_variants"`
	HighRiskVariants   int                `json:"high_risk_variants"`
	PathogenicVariants int                `json:"pathogenic_variants"`
	RiskProbability    float64            `json:"risk_probability"`
	RiskClassification RiskLevel          `json:"risk_classification"`
	Variants           []AnnotatedVariant `json:"variants"`
	CompletedAt        time.Time          `json:"completed_at"`
}

// User represents a registered account.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name,omitempty"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	IsActive       bool      `json:"is_active"`
}
