// Package store implements PostgreSQL persistence for projects, work streams,
// phases, phase products, and the work-item event outbox.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"work-item-svc/internal/models"
)

// ErrNotFound is returned when a lookup matches no live row.
var ErrNotFound = errors.New("not found")

// Store wraps the database handle. A Store returned by BeginTx routes every
// query through its transaction until Commit or Rollback.
type Store struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

// New opens a database connection and verifies it.
func New(connString string) (*Store, error) {
	db, err := sqlx.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pingErr := db.Ping(); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return &Store{db: db}, nil
}

// NewFromDB constructs a Store from an existing *sqlx.DB. Useful for tests.
func NewFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginTx starts a transaction and returns a Store bound to it.
func (s *Store) BeginTx(ctx context.Context) (*Store, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Store{db: s.db, tx: tx}, nil
}

// Commit commits the bound transaction.
func (s *Store) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("no active transaction")
	}
	return s.tx.Commit()
}

// Rollback rolls back the bound transaction. Safe to defer after Commit: the
// resulting sql.ErrTxDone is swallowed.
func (s *Store) Rollback() error {
	if s.tx == nil {
		return fmt.Errorf("no active transaction")
	}
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// InitSchema executes the schema file against the database.
func (s *Store) InitSchema(ctx context.Context, path string) error {
	sqlBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read SQL file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("failed to execute init SQL: %w", err)
	}
	return nil
}

func (s *Store) getContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if s.tx != nil {
		return s.tx.GetContext(ctx, dest, query, args...)
	}
	return s.db.GetContext(ctx, dest, query, args...)
}

func (s *Store) selectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if s.tx != nil {
		return s.tx.SelectContext(ctx, dest, query, args...)
	}
	return s.db.SelectContext(ctx, dest, query, args...)
}

func (s *Store) queryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	if s.tx != nil {
		return s.tx.QueryRowxContext(ctx, query, args...)
	}
	return s.db.QueryRowxContext(ctx, query, args...)
}

func (s *Store) execContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if s.tx != nil {
		return s.tx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

// GetPhaseWithWorkStream resolves the phase by id within the project,
// requiring that the given work stream belongs to the same project and is
// associated with the phase. Returns ErrNotFound when the full linkage does
// not hold.
func (s *Store) GetPhaseWithWorkStream(ctx context.Context, phaseID, workStreamID, projectID int64) (*models.ProjectPhase, error) {
	var phase models.ProjectPhase
	query := `
		SELECT p.id, p.project_id, p.name, p.status,
		       p.created_by, p.updated_by, p.created_at, p.updated_at,
		       p.deleted_at, p.deleted_by
		FROM project_phases p
		JOIN phase_work_streams pws ON pws.phase_id = p.id
		JOIN work_streams ws ON ws.id = pws.work_stream_id
		WHERE p.id = $1
		  AND p.project_id = $2
		  AND p.deleted_at IS NULL
		  AND ws.id = $3
		  AND ws.project_id = $2
		  AND ws.deleted_at IS NULL`

	err := s.getContext(ctx, &phase, query, phaseID, projectID, workStreamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get phase with work stream: %w", err)
	}
	return &phase, nil
}

// GetActiveProject looks up a project by id, excluding soft-deleted rows.
func (s *Store) GetActiveProject(ctx context.Context, projectID int64) (*models.Project, error) {
	var project models.Project
	query := `
		SELECT id, name, direct_project_id, billing_account_id,
		       created_by, updated_by, created_at, updated_at,
		       deleted_at, deleted_by
		FROM projects
		WHERE id = $1 AND deleted_at IS NULL`

	err := s.getContext(ctx, &project, query, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

// LockPhase takes a row lock on the phase for the duration of the bound
// transaction, serializing concurrent quota checks for the same phase.
func (s *Store) LockPhase(ctx context.Context, phaseID, projectID int64) error {
	var id int64
	query := `
		SELECT id FROM project_phases
		WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL
		FOR UPDATE`

	err := s.getContext(ctx, &id, query, phaseID, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock phase: %w", err)
	}
	return nil
}

// CountActivePhaseProducts counts non-deleted phase products for the phase.
func (s *Store) CountActivePhaseProducts(ctx context.Context, projectID, phaseID int64) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM phase_products
		WHERE project_id = $1 AND phase_id = $2 AND deleted_at IS NULL`

	if err := s.getContext(ctx, &count, query, projectID, phaseID); err != nil {
		return 0, fmt.Errorf("failed to count phase products: %w", err)
	}
	return count, nil
}

// GetPhaseProduct looks up a live phase product by id within its phase and
// project.
func (s *Store) GetPhaseProduct(ctx context.Context, productID, phaseID, projectID int64) (*models.PhaseProduct, error) {
	var product models.PhaseProduct
	query := `
		SELECT id, project_id, phase_id, name, type, template_id,
		       direct_project_id, billing_account_id, estimated_price,
		       actual_price, details, created_by, updated_by,
		       created_at, updated_at, deleted_at, deleted_by
		FROM phase_products
		WHERE id = $1 AND phase_id = $2 AND project_id = $3 AND deleted_at IS NULL`

	err := s.getContext(ctx, &product, query, productID, phaseID, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get phase product: %w", err)
	}
	return &product, nil
}

// InsertPhaseProduct persists the product and fills in the generated id and
// timestamps.
func (s *Store) InsertPhaseProduct(ctx context.Context, product *models.PhaseProduct) error {
	query := `
		INSERT INTO phase_products
		(project_id, phase_id, name, type, template_id, direct_project_id,
		 billing_account_id, estimated_price, actual_price, details,
		 created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := s.queryRowxContext(ctx, query,
		product.ProjectID, product.PhaseID, product.Name, product.Type,
		product.TemplateID, product.DirectProjectID, product.BillingAccountID,
		product.EstimatedPrice, product.ActualPrice, product.Details,
		product.CreatedBy, product.UpdatedBy,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert phase product: %w", err)
	}
	return nil
}
