package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// PostgresStore implements Store on a pgx connection pool. The schema
// is managed by migrations (see cmd/migrate).
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewPostgresStore wraps an established pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: logger}
}

func (s *PostgresStore) CreateAnalysis(ctx context.Context, result *domain.AnalysisResult) error {
	variants, err := marshalVariantsJSON(result.Variants)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analyses (
			id, user_id, vcf_file, status,
			total_variants, high_risk_variants, pathogenic_variants,
			risk_probability, risk_classification, variants,
			created_at, completed_at, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		result.ID, result.UserID, result.VCFFile, string(result.Status),
		result.TotalVariants, result.HighRiskVariants, result.PathogenicVariants,
		result.RiskProbability, string(result.RiskClassification), variants,
		result.CreatedAt, result.CompletedAt, result.ErrorMessage,
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"analysis_id": result.ID,
			"error":       err,
		}).Error("Failed to create analysis")
		return fmt.Errorf("creating analysis: %w", err)
	}
	return nil
}

const pgAnalysisColumns = `
	id, user_id, vcf_file, status,
	total_variants, high_risk_variants, pathogenic_variants,
	risk_probability, risk_classification, variants,
	created_at, completed_at, error_message`

func scanPgAnalysis(row pgx.Row) (*domain.AnalysisResult, error) {
	var (
		rec            domain.AnalysisResult
		status         string
		classification string
		variantsJSON   []byte
		completedAt    *time.Time
		errorMessage   *string
	)

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.VCFFile, &status,
		&rec.TotalVariants, &rec.HighRiskVariants, &rec.PathogenicVariants,
		&rec.RiskProbability, &classification, &variantsJSON,
		&rec.CreatedAt, &completedAt, &errorMessage,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.AnalysisStatus(status)
	rec.RiskClassification = domain.RiskLevel(classification)
	rec.CompletedAt = completedAt
	if errorMessage != nil {
		rec.ErrorMessage = *errorMessage
	}

	if err := json.Unmarshal(variantsJSON, &rec.Variants); err != nil {
		return nil, fmt.Errorf("decoding variants: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT"+pgAnalysisColumns+" FROM analyses WHERE id = $1", id)

	rec, err := scanPgAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting analysis: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListAnalysesByUser(ctx context.Context, userID string) ([]*domain.AnalysisResult, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT"+pgAnalysisColumns+" FROM analyses WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	var results []*domain.AnalysisResult
	for rows.Next() {
		rec, err := scanPgAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis: %w", err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating analyses: %w", err)
	}
	return results, nil
}

// transition resolves the outcome of a conditional status update.
func (s *PostgresStore) transition(ctx context.Context, id string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return fmt.Errorf("updating analysis status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetAnalysis(ctx, id); errors.Is(getErr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (s *PostgresStore) MarkProcessing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE analyses SET status = $1 WHERE id = $2 AND status = $3",
		string(domain.StatusProcessing), id, string(domain.StatusPending))
	return s.transition(ctx, id, tag, err)
}

func (s *PostgresStore) CompleteAnalysis(ctx context.Context, id string, completion domain.AnalysisCompletion) error {
	variants, err := marshalVariantsJSON(completion.Variants)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE analyses SET
			status = $1,
			total_variants = $2, high_risk_variants = $3, pathogenic_variants = $4,
			risk_probability = $5, risk_classification = $6, variants = $7,
			completed_at = $8
		WHERE id = $9 AND status = $10`,
		string(domain.StatusCompleted),
		completion.TotalVariants, completion.HighRiskVariants, completion.PathogenicVariants,
		completion.RiskProbability, string(completion.RiskClassification), variants,
		completion.CompletedAt,
		id, string(domain.StatusProcessing))
	return s.transition(ctx, id, tag, err)
}

func (s *PostgresStore) FailAnalysis(ctx context.Context, id string, message string) error {
	if message == "" {
		return domain.NewValidationError("error_message", "a failed analysis requires a non-empty message", message)
	}

	// A run can fail before it starts processing, e.g. when staging the
	// upload or enqueueing the job fails.
	tag, err := s.pool.Exec(ctx,
		"UPDATE analyses SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4 AND status IN ($5, $6)",
		string(domain.StatusFailed), message, time.Now().UTC(), id,
		string(domain.StatusPending), string(domain.StatusProcessing))
	return s.transition(ctx, id, tag, err)
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM analyses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, full_name, hashed_password, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Email, user.FullName,
		user.HashedPassword, user.CreatedAt, user.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateUser
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

const pgUserColumns = " id, username, email, full_name, hashed_password, created_at, is_active "

func scanPgUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.HashedPassword, &u.CreatedAt, &u.IsActive)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT"+pgUserColumns+"FROM users WHERE username = $1", username)

	u, err := scanPgUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT"+pgUserColumns+"FROM users WHERE id = $1", id)

	u, err := scanPgUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func marshalVariantsJSON(variants []domain.AnnotatedVariant) ([]byte, error) {
	if variants == nil {
		variants = []domain.AnnotatedVariant{}
	}
	data, err := json.Marshal(variants)
	if err != nil {
		return nil, fmt.Errorf("encoding variants: %w", err)
	}
	return data, nil
}
