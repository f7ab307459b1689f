package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is a fixed-width RFC 3339 variant. Fixed-width fractional
// seconds keep lexicographic order equal to chronological order, which the
// created_at index relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Inspection Operations
// =============================================================================

// inspectionRow represents an inspection row in the database.
type inspectionRow struct {
	ID               string  `db:"id"`
	Source           string  `db:"source"`
	Backend          string  `db:"backend"`
	ImageWidth       int     `db:"image_width"`
	ImageHeight      int     `db:"image_height"`
	DefectsFound     int     `db:"defects_found"`
	DefectPercentage float64 `db:"defect_percentage"`
	Defects          string  `db:"defects"`
	Verdict          string  `db:"verdict"`
	Cached           bool    `db:"cached"`
	ProcessingMS     float64 `db:"processing_ms"`
	CreatedAt        string  `db:"created_at"`
}

func (s *SQLiteStore) CreateInspection(ctx context.Context, inspection *domain.Inspection) error {
	return createInspection(ctx, s.db, inspection)
}

func (s *SQLiteStore) GetInspection(ctx context.Context, id string) (*domain.Inspection, error) {
	return getInspection(ctx, s.db, id)
}

func (s *SQLiteStore) ListInspections(ctx context.Context, opts ListOptions) ([]domain.Inspection, error) {
	return listInspections(ctx, s.db, opts)
}

func (s *SQLiteStore) Summaries(ctx context.Context) ([]domain.InspectionSummary, error) {
	return summaries(ctx, s.db)
}

func (s *SQLiteStore) DeleteInspectionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteInspectionsBefore(ctx, s.db, cutoff)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateInspection(ctx context.Context, inspection *domain.Inspection) error {
	return createInspection(ctx, s.tx, inspection)
}

func (s *txSQLiteStore) GetInspection(ctx context.Context, id string) (*domain.Inspection, error) {
	return getInspection(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListInspections(ctx context.Context, opts ListOptions) ([]domain.Inspection, error) {
	return listInspections(ctx, s.tx, opts)
}

func (s *txSQLiteStore) Summaries(ctx context.Context) ([]domain.InspectionSummary, error) {
	return summaries(ctx, s.tx)
}

func (s *txSQLiteStore) DeleteInspectionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteInspectionsBefore(ctx, s.tx, cutoff)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Ping(ctx context.Context) error {
	// No-op for tx store
	return nil
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createInspection(ctx context.Context, exec executor, inspection *domain.Inspection) error {
	defectsJSON, err := json.Marshal(inspection.Defects)
	if err != nil {
		return NewStoreError("CreateInspection", "inspection", inspection.ID, "failed to serialize defects", ErrInvalidData)
	}

	query := `
		INSERT INTO inspections (
			id, source, backend, image_width, image_height, defects_found,
			defect_percentage, defects, verdict, cached, processing_ms, created_at
		) VALUES (
			:id, :source, :backend, :image_width, :image_height, :defects_found,
			:defect_percentage, :defects, :verdict, :cached, :processing_ms, :created_at
		)`

	row := map[string]any{
		"id":                inspection.ID,
		"source":            inspection.Source,
		"backend":           inspection.Backend,
		"image_width":       inspection.ImageWidth,
		"image_height":      inspection.ImageHeight,
		"defects_found":     len(inspection.Defects),
		"defect_percentage": inspection.DefectPercentage,
		"defects":           string(defectsJSON),
		"verdict":           string(inspection.Verdict),
		"cached":            inspection.Cached,
		"processing_ms":     inspection.ProcessingMS,
		"created_at":        inspection.CreatedAt.UTC().Format(timeLayout),
	}

	_, err = exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: inspections.id") {
			return NewStoreError("CreateInspection", "inspection", inspection.ID, "inspection with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateInspection", "inspection", inspection.ID, err.Error(), err)
	}

	return nil
}

func getInspection(ctx context.Context, exec executor, id string) (*domain.Inspection, error) {
	query := `SELECT * FROM inspections WHERE id = ?`

	var row inspectionRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetInspection", "inspection", id, "inspection not found", ErrNotFound)
		}
		return nil, NewStoreError("GetInspection", "inspection", id, err.Error(), err)
	}

	return rowToInspection(&row)
}

func listInspections(ctx context.Context, exec executor, opts ListOptions) ([]domain.Inspection, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM inspections ORDER BY created_at DESC LIMIT ? OFFSET ?`

	var rows []inspectionRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListInspections", "inspection", "", err.Error(), err)
	}

	inspections := make([]domain.Inspection, 0, len(rows))
	for _, row := range rows {
		inspection, err := rowToInspection(&row)
		if err != nil {
			return nil, err
		}
		inspections = append(inspections, *inspection)
	}

	return inspections, nil
}

func summaries(ctx context.Context, exec executor) ([]domain.InspectionSummary, error) {
	query := `SELECT verdict, processing_ms FROM inspections`

	var rows []struct {
		Verdict      string  `db:"verdict"`
		ProcessingMS float64 `db:"processing_ms"`
	}
	err := exec.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, NewStoreError("Summaries", "inspection", "", err.Error(), err)
	}

	out := make([]domain.InspectionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.InspectionSummary{
			Verdict:      domain.Verdict(row.Verdict),
			ProcessingMS: row.ProcessingMS,
		})
	}

	return out, nil
}

func deleteInspectionsBefore(ctx context.Context, exec executor, cutoff time.Time) (int64, error) {
	query := `DELETE FROM inspections WHERE created_at < ?`

	result, err := exec.ExecContext(ctx, query, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, NewStoreError("DeleteInspectionsBefore", "inspection", "", err.Error(), err)
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// rowToInspection converts a database row to a domain inspection.
func rowToInspection(row *inspectionRow) (*domain.Inspection, error) {
	var defects []domain.Defect
	if err := json.Unmarshal([]byte(row.Defects), &defects); err != nil {
		return nil, NewStoreError("rowToInspection", "inspection", row.ID, "failed to deserialize defects", ErrInvalidData)
	}

	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToInspection", "inspection", row.ID, "failed to parse created_at", ErrInvalidData)
	}

	return &domain.Inspection{
		ID:               row.ID,
		Source:           row.Source,
		Backend:          row.Backend,
		ImageWidth:       row.ImageWidth,
		ImageHeight:      row.ImageHeight,
		Defects:          defects,
		DefectPercentage: row.DefectPercentage,
		Verdict:          domain.Verdict(row.Verdict),
		Cached:           row.Cached,
		ProcessingMS:     row.ProcessingMS,
		CreatedAt:        createdAt,
	}, nil
}
