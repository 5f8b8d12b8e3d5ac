package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshishSingh1503/HelixMind/internal/annotation"
	"github.com/AshishSingh1503/HelixMind/internal/domain"
	"github.com/AshishSingh1503/HelixMind/internal/pipeline"
	"github.com/AshishSingh1503/HelixMind/internal/risk"
	"github.com/AshishSingh1503/HelixMind/internal/storage"
	"github.com/AshishSingh1503/HelixMind/internal/vcf"
)

const testVCF = `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
17	43044295	rs1	A	G	35.0	PASS	.
13	32315474	rs2	C	T	40.0	PASS	.
1	1014143	rs3	C	T	60.0	PASS	.
`

func newTestAnalysisService(t *testing.T) (*AnalysisService, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	scorer, err := risk.NewWeightedScorer(risk.DefaultArtifact(), testLogger())
	require.NoError(t, err)

	pl := pipeline.New(
		vcf.NewExtractor(testLogger()),
		annotation.NewAnnotator(annotation.DefaultGeneTable()),
		scorer,
		testLogger(),
	)

	svc := NewAnalysisService(store, pl, nil, t.TempDir(), testLogger())
	return svc, store
}

func stageVCF(t *testing.T, svc *AnalysisService, analysisID, content string) string {
	t.Helper()
	path := svc.StagedPath(analysisID, "sample.vcf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCreateAnalysis(t *testing.T) {
	svc, store := newTestAnalysisService(t)
	ctx := context.Background()

	rec, err := svc.CreateAnalysis(ctx, "user-1", "sample.vcf")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, domain.StatusPending, rec.Status)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, "sample.vcf", rec.VCFFile)

	stored, err := store.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestProcess_CompletesAnalysis(t *testing.T) {
	svc, store := newTestAnalysisService(t)
	ctx := context.Background()

	rec, err := svc.CreateAnalysis(ctx, "user-1", "sample.vcf")
	require.NoError(t, err)

	path := stageVCF(t, svc, rec.ID, testVCF)
	svc.Process(ctx, Job{AnalysisID: rec.ID, FilePath: path})

	got, err := store.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 3, got.TotalVariants)
	assert.Equal(t, 2, got.HighRiskVariants)
	assert.Equal(t, 2, got.PathogenicVariants)
	assert.Greater(t, got.RiskProbability, 0.0)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.Variants, 3)
	assert.Equal(t, "BRCA1", got.Variants[0].Gene)
}

func TestProcess_FailsOnMissingFile(t *testing.T) {
	svc, store := newTestAnalysisService(t)
	ctx := context.Background()

	rec, err := svc.CreateAnalysis(ctx, "user-1", "sample.vcf")
	require.NoError(t, err)

	svc.Process(ctx, Job{AnalysisID: rec.ID, FilePath: filepath.Join(t.TempDir(), "absent.vcf")})

	got, err := store.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestProcess_EmptyVCFCompletesWithZeroVariants(t *testing.T) {
	svc, store := newTestAnalysisService(t)
	ctx := context.Background()

	rec, err := svc.CreateAnalysis(ctx, "user-1", "sample.vcf")
	require.NoError(t, err)

	path := stageVCF(t, svc, rec.ID, "##fileformat=VCFv4.2\n")
	svc.Process(ctx, Job{AnalysisID: rec.ID, FilePath: path})

	got, err := store.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Zero(t, got.TotalVariants)
	assert.Equal(t, 0.0, got.RiskProbability)
	assert.Equal(t, domain.RiskLow, got.RiskClassification)
}

func TestProcess_SkipsRecordNotPending(t *testing.T) {
	svc, store := newTestAnalysisService(t)
	ctx := context.Background()

	rec, err := svc.CreateAnalysis(ctx, "user-1", "sample.vcf")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, rec.ID))

	path := stageVCF(t, svc, rec.ID, testVCF)
	// A second worker losing the transition race leaves the record alone.
	svc.Process(ctx, Job{AnalysisID: rec.ID, FilePath: path})

	got, err := store.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
}

func TestGetAnalysis_OwnershipEnforced(t *testing.T) {
	svc, _ := newTestAnalysisService(t)
	ctx := context.Background()

	rec, err := svc.CreateAnalysis(ctx, "user-1", "sample.vcf")
	require.NoError(t, err)

	got, err := svc.GetAnalysis(ctx, "user-1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = svc.GetAnalysis(ctx, "user-2", rec.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.GetAnalysis(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAnalyses(t *testing.T) {
	svc, _ := newTestAnalysisService(t)
	ctx := context.Background()

	_, err := svc.CreateAnalysis(ctx, "user-1", "a.vcf")
	require.NoError(t, err)
	_, err = svc.CreateAnalysis(ctx, "user-1", "b.vcf")
	require.NoError(t, err)
	_, err = svc.CreateAnalysis(ctx, "user-2", "c.vcf")
	require.NoError(t, err)

	records, err := svc.ListAnalyses(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDeleteAnalysis(t *testing.T) {
	svc, store := newTestAnalysisService(t)
	ctx := context.Background()

	rec, err := svc.CreateAnalysis(ctx, "user-1", "sample.vcf")
	require.NoError(t, err)
	staged := stageVCF(t, svc, rec.ID, testVCF)

	// Another user cannot delete the record.
	assert.ErrorIs(t, svc.DeleteAnalysis(ctx, "user-2", rec.ID), domain.ErrForbidden)

	require.NoError(t, svc.DeleteAnalysis(ctx, "user-1", rec.ID))

	_, err = store.GetAnalysis(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = os.Stat(staged)
	assert.True(t, os.IsNotExist(err), "staged file should be removed")
}

func TestEnqueue_WithoutRunner(t *testing.T) {
	svc, _ := newTestAnalysisService(t)

	err := svc.Enqueue("some-id", "some-path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner is not attached")
}

func TestEnqueue_JobsDrainAfterShutdownSignal(t *testing.T) {
	// SQLite store: its writes go through ExecContext and genuinely
	// observe context cancellation, unlike the memory backend.
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	user := &domain.User{ID: "user-1", Username: "alice", Email: "alice@example.com", HashedPassword: "x", IsActive: true}
	require.NoError(t, store.CreateUser(ctx, user))

	scorer, err := risk.NewWeightedScorer(risk.DefaultArtifact(), testLogger())
	require.NoError(t, err)
	pl := pipeline.New(
		vcf.NewExtractor(testLogger()),
		annotation.NewAnnotator(annotation.DefaultGeneTable()),
		scorer,
		testLogger(),
	)
	svc := NewAnalysisService(store, pl, nil, t.TempDir(), testLogger())

	runCtx, cancel := context.WithCancel(ctx)
	runner := NewRunner(1, 4, svc.Process, testLogger())
	svc.SetRunner(runner)
	runner.Start(runCtx)

	rec, err := svc.CreateAnalysis(ctx, user.ID, "sample.vcf")
	require.NoError(t, err)
	path := stageVCF(t, svc, rec.ID, testVCF)

	// Shutdown signal arrives before the job is picked up; Stop still
	// drains the queue and the record must reach a terminal state.
	cancel()
	require.NoError(t, svc.Enqueue(rec.ID, path))
	runner.Stop()

	got, err := store.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.Terminal(), "drained job left status %q", got.Status)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestEnqueue_RunnerProcessesJob(t *testing.T) {
	svc, store := newTestAnalysisService(t)
	ctx := context.Background()

	runner := NewRunner(1, 4, svc.Process, testLogger())
	svc.SetRunner(runner)
	runner.Start(ctx)

	rec, err := svc.CreateAnalysis(ctx, "user-1", "sample.vcf")
	require.NoError(t, err)
	path := stageVCF(t, svc, rec.ID, testVCF)

	require.NoError(t, svc.Enqueue(rec.ID, path))
	runner.Stop()

	got, err := store.GetAnalysis(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}
