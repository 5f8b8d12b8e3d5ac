// Package storage persists analysis and user records behind a single
// interface with interchangeable backends (PostgreSQL, SQLite,
// in-memory), selected by configuration. The pipeline and service
// layers never branch on which backend is active.
package storage

import (
	"context"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

// AnalysisStore persists analysis lifecycle records. Status transitions
// are conditional single-statement updates keyed by the record id, so
// concurrent writers cannot produce lost updates: a transition from the
// wrong source state returns domain.ErrConflict.
type AnalysisStore interface {
	// CreateAnalysis inserts a new pending record.
	CreateAnalysis(ctx context.Context, result *domain.AnalysisResult) error

	// GetAnalysis retrieves a record by id, or domain.ErrNotFound.
	GetAnalysis(ctx context.Context, id string) (*domain.AnalysisResult, error)

	// ListAnalysesByUser returns a user's records, newest first.
	ListAnalysesByUser(ctx context.Context, userID string) ([]*domain.AnalysisResult, error)

	// MarkProcessing transitions pending→processing.
	MarkProcessing(ctx context.Context, id string) error

	// CompleteAnalysis transitions processing→completed and writes the
	// terminal fields in the same update.
	CompleteAnalysis(ctx context.Context, id string, completion domain.AnalysisCompletion) error

	// FailAnalysis transitions processing→failed with a non-empty
	// human-readable message.
	FailAnalysis(ctx context.Context, id string, message string) error

	// DeleteAnalysis removes a record by id, or domain.ErrNotFound.
	DeleteAnalysis(ctx context.Context, id string) error
}

// UserStore persists registered accounts.
type UserStore interface {
	// CreateUser inserts a new user; a username or email collision
	// returns domain.ErrDuplicateUser.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUserByUsername retrieves a user, or domain.ErrNotFound.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetUserByID retrieves a user, or domain.ErrNotFound.
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Store is the combined backend contract.
type Store interface {
	AnalysisStore
	UserStore

	// Health verifies the backend is reachable.
	Health(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
