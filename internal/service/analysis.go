package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AshishSingh1503/HelixMind/internal/cache"
	"github.com/AshishSingh1503/HelixMind/internal/domain"
	"github.com/AshishSingh1503/HelixMind/internal/pipeline"
	"github.com/AshishSingh1503/HelixMind/internal/storage"
)

// AnalysisService owns the analysis lifecycle: record creation, the
// background scoring run, retrieval with ownership checks, and
// deletion. The pipeline itself stays a pure function; this service
// decides when and how it runs.
type AnalysisService struct {
	store     storage.Store
	pipeline  *pipeline.Pipeline
	runner    *Runner
	results   *cache.ResultsCache
	uploadDir string
	log       *logrus.Logger
}

// NewAnalysisService wires the analysis service. Call SetRunner before
// serving uploads.
func NewAnalysisService(store storage.Store, pl *pipeline.Pipeline, results *cache.ResultsCache, uploadDir string, logger *logrus.Logger) *AnalysisService {
	return &AnalysisService{
		store:     store,
		pipeline:  pl,
		results:   results,
		uploadDir: uploadDir,
		log:       logger,
	}
}

// SetRunner attaches the background runner. Separate from construction
// because the runner's process function closes over this service.
func (s *AnalysisService) SetRunner(runner *Runner) {
	s.runner = runner
}

// UploadDir returns the staging directory for uploads.
func (s *AnalysisService) UploadDir() string {
	return s.uploadDir
}

// StagedPath returns where an upload for the given analysis is staged.
// The id prefix keeps concurrent uploads of the same filename apart.
func (s *AnalysisService) StagedPath(analysisID, filename string) string {
	return filepath.Join(s.uploadDir, fmt.Sprintf("%s_%s", analysisID, filepath.Base(filename)))
}

// CreateAnalysis inserts a new pending record owned by the user.
func (s *AnalysisService) CreateAnalysis(ctx context.Context, userID, filename string) (*domain.AnalysisResult, error) {
	rec := &domain.AnalysisResult{
		ID:                 uuid.New().String(),
		UserID:             userID,
		VCFFile:            filename,
		Status:             domain.StatusPending,
		RiskClassification: domain.RiskLow,
		Variants:           []domain.AnnotatedVariant{},
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.store.CreateAnalysis(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating analysis record: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"analysis_id": rec.ID,
		"user_id":     userID,
		"vcf_file":    filename,
	}).Info("Analysis created")

	return rec, nil
}

// Enqueue hands a staged upload to the background runner.
func (s *AnalysisService) Enqueue(analysisID, filePath string) error {
	if s.runner == nil {
		return fmt.Errorf("scoring runner is not attached")
	}
	if err := s.runner.Submit(Job{AnalysisID: analysisID, FilePath: filePath}); err != nil {
		return fmt.Errorf("enqueueing analysis %s: %w", analysisID, err)
	}
	return nil
}

// Process runs the scoring pipeline for one staged upload and records
// exactly one terminal state. Faults never propagate out of this
// method; they become a failed record with a human-readable message.
func (s *AnalysisService) Process(ctx context.Context, job Job) {
	log := s.log.WithField("analysis_id", job.AnalysisID)

	if err := s.store.MarkProcessing(ctx, job.AnalysisID); err != nil {
		log.WithError(err).Error("Could not transition analysis to processing")
		return
	}

	outcome, err := s.runPipeline(ctx, job.FilePath)
	if err != nil {
		log.WithError(err).Warn("Scoring run failed")
		if failErr := s.store.FailAnalysis(ctx, job.AnalysisID, err.Error()); failErr != nil {
			log.WithError(failErr).Error("Could not record analysis failure")
		}
		s.cacheTerminal(ctx, job.AnalysisID)
		return
	}

	if err := s.store.CompleteAnalysis(ctx, job.AnalysisID, outcome.Completion()); err != nil {
		log.WithError(err).Error("Could not record analysis completion")
		return
	}

	log.WithFields(logrus.Fields{
		"total_variants": outcome.TotalVariants,
		"high_risk":      outcome.HighRiskVariants,
		"classification": outcome.RiskClassification,
	}).Info("Analysis completed")

	s.cacheTerminal(ctx, job.AnalysisID)
}

// runPipeline opens the staged file and executes the pure pipeline,
// converting panics from any stage into an error.
func (s *AnalysisService) runPipeline(ctx context.Context, filePath string) (outcome *pipeline.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("scoring pipeline panicked: %v", r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening staged upload: %w", err)
	}
	defer f.Close()

	return s.pipeline.Run(ctx, f)
}

// cacheTerminal refreshes the results cache after a terminal write.
func (s *AnalysisService) cacheTerminal(ctx context.Context, analysisID string) {
	if s.results == nil {
		return
	}
	rec, err := s.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return
	}
	s.results.Put(ctx, rec)
}

// CacheHealth reports the health of the results cache tiers.
func (s *AnalysisService) CacheHealth(ctx context.Context) error {
	if s.results == nil {
		return nil
	}
	return s.results.Health(ctx)
}

// GetAnalysis returns a record after enforcing ownership. Terminal
// records are served from the results cache when possible.
func (s *AnalysisService) GetAnalysis(ctx context.Context, userID, analysisID string) (*domain.AnalysisResult, error) {
	if s.results != nil {
		if rec, ok := s.results.Get(ctx, analysisID); ok {
			if rec.UserID != userID {
				return nil, domain.ErrForbidden
			}
			return rec, nil
		}
	}

	rec, err := s.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, domain.ErrForbidden
	}

	if s.results != nil {
		s.results.Put(ctx, rec)
	}
	return rec, nil
}

// ListAnalyses returns the user's analyses, newest first.
func (s *AnalysisService) ListAnalyses(ctx context.Context, userID string) ([]*domain.AnalysisResult, error) {
	return s.store.ListAnalysesByUser(ctx, userID)
}

// DeleteAnalysis removes a record the user owns, along with its staged
// file and cache entries.
func (s *AnalysisService) DeleteAnalysis(ctx context.Context, userID, analysisID string) error {
	rec, err := s.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return err
	}
	if rec.UserID != userID {
		return domain.ErrForbidden
	}

	if err := s.store.DeleteAnalysis(ctx, analysisID); err != nil {
		return err
	}

	if s.results != nil {
		s.results.Invalidate(ctx, analysisID)
	}

	staged := s.StagedPath(analysisID, rec.VCFFile)
	if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
		s.log.WithError(err).WithField("path", staged).Warn("Could not remove staged upload")
	}

	s.log.WithFields(logrus.Fields{
		"analysis_id": analysisID,
		"user_id":     userID,
	}).Info("Analysis deleted")

	return nil
}
