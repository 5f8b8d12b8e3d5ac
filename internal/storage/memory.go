package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

// MemoryStore is the in-process fallback backend: mutex-guarded maps
// with compare-and-set status transitions. Useful for tests and for
// running the service without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	analyses map[string]*domain.AnalysisResult
	users    map[string]*domain.User // keyed by id
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		analyses: make(map[string]*domain.AnalysisResult),
		users:    make(map[string]*domain.User),
	}
}

func (s *MemoryStore) CreateAnalysis(_ context.Context, result *domain.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := cloneAnalysis(result)
	s.analyses[cp.ID] = cp
	return nil
}

func (s *MemoryStore) GetAnalysis(_ context.Context, id string) (*domain.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.analyses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneAnalysis(rec), nil
}

func (s *MemoryStore) ListAnalysesByUser(_ context.Context, userID string) ([]*domain.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*domain.AnalysisResult
	for _, rec := range s.analyses {
		if rec.UserID == userID {
			results = append(results, cloneAnalysis(rec))
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (s *MemoryStore) MarkProcessing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.analyses[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Status != domain.StatusPending {
		return domain.ErrConflict
	}
	rec.Status = domain.StatusProcessing
	return nil
}

func (s *MemoryStore) CompleteAnalysis(_ context.Context, id string, completion domain.AnalysisCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.analyses[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Status != domain.StatusProcessing {
		return domain.ErrConflict
	}

	rec.Status = domain.StatusCompleted
	rec.TotalVariants = completion.TotalVariants
	rec.HighRiskVariants = completion.HighRiskVariants
	rec.PathogenicVariants = completion.PathogenicVariants
	rec.RiskProbability = completion.RiskProbability
	rec.RiskClassification = completion.RiskClassification
	rec.Variants = append([]domain.AnnotatedVariant(nil), completion.Variants...)
	completedAt := completion.CompletedAt
	rec.CompletedAt = &completedAt
	return nil
}

func (s *MemoryStore) FailAnalysis(_ context.Context, id string, message string) error {
	if message == "" {
		return domain.NewValidationError("error_message", "a failed analysis requires a non-empty message", message)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.analyses[id]
	if !ok {
		return domain.ErrNotFound
	}
	// A run can fail before it starts processing, e.g. when staging the
	// upload or enqueueing the job fails.
	if rec.Status.Terminal() {
		return domain.ErrConflict
	}
	rec.Status = domain.StatusFailed
	rec.ErrorMessage = message
	failedAt := time.Now().UTC()
	rec.CompletedAt = &failedAt
	return nil
}

func (s *MemoryStore) DeleteAnalysis(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.analyses[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.analyses, id)
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrDuplicateUser
		}
	}

	cp := *user
	s.users[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// cloneAnalysis deep-copies a record so callers never share mutable
// state with the store.
func cloneAnalysis(rec *domain.AnalysisResult) *domain.AnalysisResult {
	cp := *rec
	cp.Variants = append([]domain.AnnotatedVariant(nil), rec.Variants...)
	if rec.CompletedAt != nil {
		completedAt := *rec.CompletedAt
		cp.CompletedAt = &completedAt
	}
	return &cp
}
