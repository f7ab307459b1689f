package store

import (
	"context"
	"time"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for inspection records.
type Store interface {
	// Inspection operations
	CreateInspection(ctx context.Context, inspection *domain.Inspection) error
	GetInspection(ctx context.Context, id string) (*domain.Inspection, error)
	ListInspections(ctx context.Context, opts ListOptions) ([]domain.Inspection, error)

	// Summaries returns the verdict and timing of every inspection,
	// for statistics aggregation.
	Summaries(ctx context.Context) ([]domain.InspectionSummary, error)

	// DeleteInspectionsBefore removes inspections created before the cutoff
	// and returns the number of rows deleted.
	DeleteInspectionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
