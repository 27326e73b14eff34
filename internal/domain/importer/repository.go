// Package importer implements statement ingestion: format detection, parsing,
// duplicate filtering and the import session ledger that makes every import
// reversible.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maxwell-labs/maxwells-wallet/pkg/db"
)

// Session statuses.
const (
	StatusCompleted  = "completed"
	StatusRolledBack = "rolled_back"
)

// ErrAlreadyRolledBack is returned when rolling back a session twice.
var ErrAlreadyRolledBack = errors.New("session already rolled back")

// Session records one import run: what file produced it, how many rows went
// in and the date range they cover.
type Session struct {
	ID             uuid.UUID  `json:"id"`
	FileName       string     `json:"file_name"`
	Format         string     `json:"format"`
	RowCount       int        `json:"row_count"`
	ImportedCount  int        `json:"imported_count"`
	DuplicateCount int        `json:"duplicate_count"`
	ErrorCount     int        `json:"error_count"`
	DateMin        *time.Time `json:"date_min,omitempty"`
	DateMax        *time.Time `json:"date_max,omitempty"`
	Status         string     `json:"status"`
	ArchivePath    string     `json:"archive_path,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SessionRepository defines import session persistence.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	List(ctx context.Context, limit, offset int) ([]Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	MarkRolledBack(ctx context.Context, id uuid.UUID) error
}

// PostgresSessionRepository implements SessionRepository using PostgreSQL.
type PostgresSessionRepository struct {
	pool db.Querier
}

// NewPostgresSessionRepository creates a new PostgreSQL session repository.
func NewPostgresSessionRepository(pool db.Querier) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

const sessionColumns = `id, file_name, format, row_count, imported_count,
	duplicate_count, error_count, date_min, date_max, status, archive_path, created_at`

func scanSession(row pgx.Row) (*Session, error) {
	s := &Session{}
	err := row.Scan(
		&s.ID,
		&s.FileName,
		&s.Format,
		&s.RowCount,
		&s.ImportedCount,
		&s.DuplicateCount,
		&s.ErrorCount,
		&s.DateMin,
		&s.DateMax,
		&s.Status,
		&s.ArchivePath,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a session with its final counts.
func (r *PostgresSessionRepository) Create(ctx context.Context, session *Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = StatusCompleted
	}

	query := `
		INSERT INTO import_sessions (id, file_name, format, row_count, imported_count,
			duplicate_count, error_count, date_min, date_max, status, archive_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		session.ID,
		session.FileName,
		session.Format,
		session.RowCount,
		session.ImportedCount,
		session.DuplicateCount,
		session.ErrorCount,
		session.DateMin,
		session.DateMax,
		session.Status,
		session.ArchivePath,
	).Scan(&session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import session: %w", err)
	}
	return nil
}

// List returns sessions newest first.
func (r *PostgresSessionRepository) List(ctx context.Context, limit, offset int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + sessionColumns + ` FROM import_sessions
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list import sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// GetByID retrieves one session.
func (r *PostgresSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM import_sessions WHERE id = $1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import session: %w", err)
	}
	return s, nil
}

// MarkRolledBack flips a completed session to rolled_back.
func (r *PostgresSessionRepository) MarkRolledBack(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE import_sessions SET status = $2 WHERE id = $1 AND status = $3`,
		id, StatusRolledBack, StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark session rolled back: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Distinguish a missing session from a double rollback.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrAlreadyRolledBack
	}
	return nil
}
