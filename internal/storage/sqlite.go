package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

// SQLiteStore implements Store using a local SQLite database. The
// schema is created on open; WAL mode keeps concurrent readers cheap.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT DEFAULT '',
		hashed_password TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		vcf_file TEXT NOT NULL,
		status TEXT NOT NULL,
		total_variants INTEGER NOT NULL DEFAULT 0,
		high_risk_variants INTEGER NOT NULL DEFAULT 0,
		pathogenic_variants INTEGER NOT NULL DEFAULT 0,
		risk_probability REAL NOT NULL DEFAULT 0,
		risk_classification TEXT NOT NULL DEFAULT 'low',
		variants TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		completed_at DATETIME,
		error_message TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_user_id ON analyses(user_id);
	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, result *domain.AnalysisResult) error {
	variants, err := marshalVariants(result.Variants)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analyses (
			id, user_id, vcf_file, status,
			total_variants, high_risk_variants, pathogenic_variants,
			risk_probability, risk_classification, variants,
			created_at, completed_at, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.UserID, result.VCFFile, string(result.Status),
		result.TotalVariants, result.HighRiskVariants, result.PathogenicVariants,
		result.RiskProbability, string(result.RiskClassification), variants,
		result.CreatedAt, result.CompletedAt, result.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("creating analysis: %w", err)
	}
	return nil
}

const analysisColumns = `
	id, user_id, vcf_file, status,
	total_variants, high_risk_variants, pathogenic_variants,
	risk_probability, risk_classification, variants,
	created_at, completed_at, error_message`

// scanner is the shared subset of sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(sc scanner) (*domain.AnalysisResult, error) {
	var (
		rec            domain.AnalysisResult
		status         string
		classification string
		variantsJSON   string
		completedAt    sql.NullTime
		errorMessage   sql.NullString
	)

	err := sc.Scan(
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
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	rec.ErrorMessage = errorMessage.String

	if err := json.Unmarshal([]byte(variantsJSON), &rec.Variants); err != nil {
		return nil, fmt.Errorf("decoding variants: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+analysisColumns+" FROM analyses WHERE id = ?", id)

	rec, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting analysis: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListAnalysesByUser(ctx context.Context, userID string) ([]*domain.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT"+analysisColumns+" FROM analyses WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	var results []*domain.AnalysisResult
	for rows.Next() {
		rec, err := scanAnalysis(rows)
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

// transition performs a conditional single-statement status update.
func (s *SQLiteStore) transition(ctx context.Context, id string, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("updating analysis status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking status update: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetAnalysis(ctx, id); errors.Is(getErr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (s *SQLiteStore) MarkProcessing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE analyses SET status = ? WHERE id = ? AND status = ?",
		string(domain.StatusProcessing), id, string(domain.StatusPending))
	return s.transition(ctx, id, res, err)
}

func (s *SQLiteStore) CompleteAnalysis(ctx context.Context, id string, completion domain.AnalysisCompletion) error {
	variants, err := marshalVariants(completion.Variants)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE analyses SET
			status = ?,
			total_variants = ?, high_risk_variants = ?, pathogenic_variants = ?,
			risk_probability = ?, risk_classification = ?, variants = ?,
			completed_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.StatusCompleted),
		completion.TotalVariants, completion.HighRiskVariants, completion.PathogenicVariants,
		completion.RiskProbability, string(completion.RiskClassification), variants,
		completion.CompletedAt,
		id, string(domain.StatusProcessing))
	return s.transition(ctx, id, res, err)
}

func (s *SQLiteStore) FailAnalysis(ctx context.Context, id string, message string) error {
	if message == "" {
		return domain.NewValidationError("error_message", "a failed analysis requires a non-empty message", message)
	}

	// A run can fail before it starts processing, e.g. when staging the
	// upload or enqueueing the job fails.
	res, err := s.db.ExecContext(ctx,
		"UPDATE analyses SET status = ?, error_message = ?, completed_at = ? WHERE id = ? AND status IN (?, ?)",
		string(domain.StatusFailed), message, time.Now().UTC(), id,
		string(domain.StatusPending), string(domain.StatusProcessing))
	return s.transition(ctx, id, res, err)
}

func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM analyses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting analysis: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, full_name, hashed_password, created_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.FullName,
		user.HashedPassword, user.CreatedAt, user.IsActive,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrDuplicateUser
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func scanUser(sc scanner) (*domain.User, error) {
	var u domain.User
	err := sc.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.HashedPassword, &u.CreatedAt, &u.IsActive)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userColumns = " id, username, email, full_name, hashed_password, created_at, is_active "

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+userColumns+"FROM users WHERE username = ?", username)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+userColumns+"FROM users WHERE id = ?", id)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func marshalVariants(variants []domain.AnnotatedVariant) (string, error) {
	if variants == nil {
		variants = []domain.AnnotatedVariant{}
	}
	data, err := json.Marshal(variants)
	if err != nil {
		return "", fmt.Errorf("encoding variants: %w", err)
	}
	return string(data), nil
}
