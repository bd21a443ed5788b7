package repository

import (
	"context"

	"github.com/helixir/research-report-service/internal/domain"
)

// ArchiveRepository persists finalized reports independently of the threads
// that produced them.
type ArchiveRepository interface {
	// Upsert stores a report keyed by its thread id. An existing row keeps its
	// id and created_at; topic, report, summary and sources are replaced.
	// The returned report carries the stored id and created_at.
	Upsert(ctx context.Context, report *domain.ArchivedReport) (*domain.ArchivedReport, error)

	// List returns the newest reports first, without report body or sources.
	List(ctx context.Context, limit int) ([]*domain.ArchivedReport, error)

	// Get returns one report with body and sources.
	// Returns domain.ErrNotFound if no report has the id.
	Get(ctx context.Context, id int64) (*domain.ArchivedReport, error)

	// Delete removes one report.
	// Returns domain.ErrNotFound if no report has the id.
	Delete(ctx context.Context, id int64) error

	// Clear removes every report and returns how many were deleted.
	Clear(ctx context.Context) (int64, error)
}
