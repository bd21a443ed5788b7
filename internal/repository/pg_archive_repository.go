package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/research-report-service/internal/domain"
)

var _ ArchiveRepository = (*PgArchiveRepository)(nil)

// PgArchiveRepository is a PostgreSQL implementation of ArchiveRepository.
type PgArchiveRepository struct {
	db DBTX
}

// NewPgArchiveRepository creates a new PostgreSQL archive repository.
func NewPgArchiveRepository(db DBTX) *PgArchiveRepository {
	return &PgArchiveRepository{db: db}
}

// Upsert inserts or replaces the archived report of a thread.
func (r *PgArchiveRepository) Upsert(ctx context.Context, report *domain.ArchivedReport) (*domain.ArchivedReport, error) {
	if report == nil {
		return nil, domain.NewValidationError("report", "report cannot be nil")
	}
	if report.ThreadID == "" {
		return nil, domain.NewValidationError("thread_id", "thread ID is required")
	}

	sources := report.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sources: %w", err)
	}

	query := `
		INSERT INTO reports (thread_id, topic, report, summary, sources)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (thread_id) DO UPDATE SET
			topic = EXCLUDED.topic,
			report = EXCLUDED.report,
			summary = EXCLUDED.summary,
			sources = EXCLUDED.sources,
			updated_at = NOW()
		RETURNING id, created_at`

	saved := *report
	saved.Sources = sources
	if err := r.db.QueryRow(ctx, query,
		report.ThreadID, report.Topic, report.Report, report.Summary, sourcesJSON,
	).Scan(&saved.ID, &saved.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert report: %w", err)
	}

	return &saved, nil
}

// List returns report summaries, newest first.
func (r *PgArchiveRepository) List(ctx context.Context, limit int) ([]*domain.ArchivedReport, error) {
	query := `
		SELECT id, thread_id, topic, summary, created_at
		FROM reports
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*domain.ArchivedReport, 0)
	for rows.Next() {
		var rep domain.ArchivedReport
		if err := rows.Scan(&rep.ID, &rep.ThreadID, &rep.Topic, &rep.Summary, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, &rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	return reports, nil
}

// Get returns one archived report.
func (r *PgArchiveRepository) Get(ctx context.Context, id int64) (*domain.ArchivedReport, error) {
	query := `
		SELECT id, thread_id, topic, report, summary, sources, created_at
		FROM reports
		WHERE id = $1`

	var (
		rep         domain.ArchivedReport
		sourcesJSON []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rep.ID, &rep.ThreadID, &rep.Topic, &rep.Report, &rep.Summary, &sourcesJSON, &rep.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("report", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &rep.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
	}

	return &rep, nil
}

// Delete removes one archived report.
func (r *PgArchiveRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM reports WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("report", strconv.FormatInt(id, 10))
	}
	return nil
}

// Clear removes every archived report.
func (r *PgArchiveRepository) Clear(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM reports")
	if err != nil {
		return 0, fmt.Errorf("failed to clear reports: %w", err)
	}
	return tag.RowsAffected(), nil
}
