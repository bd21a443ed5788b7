package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/research-report-service/internal/domain"
)

var _ CheckpointRepository = (*PgCheckpointRepository)(nil)

// PgCheckpointRepository is a PostgreSQL implementation of CheckpointRepository.
type PgCheckpointRepository struct {
	db DBTX
}

// NewPgCheckpointRepository creates a new PostgreSQL checkpoint repository.
func NewPgCheckpointRepository(db DBTX) *PgCheckpointRepository {
	return &PgCheckpointRepository{db: db}
}

// Create inserts a new thread.
func (r *PgCheckpointRepository) Create(ctx context.Context, thread *domain.Thread) error {
	if thread == nil {
		return domain.NewValidationError("thread", "thread cannot be nil")
	}
	if thread.ID == "" {
		return domain.NewValidationError("thread_id", "thread ID is required")
	}
	if thread.Pending == "" {
		return domain.NewValidationError("pending_step", "pending step is required")
	}

	stateJSON, err := json.Marshal(thread.State)
	if err != nil {
		return fmt.Errorf("failed to marshal thread state: %w", err)
	}

	query := `
		INSERT INTO threads (id, state, pending_step, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		thread.ID, stateJSON, string(thread.Pending), thread.Version,
		thread.CreatedAt, thread.UpdatedAt,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return domain.NewAlreadyExistsError("thread", thread.ID)
		}
		return fmt.Errorf("failed to create thread: %w", err)
	}

	return nil
}

// Get returns the latest committed checkpoint of a thread.
func (r *PgCheckpointRepository) Get(ctx context.Context, id string) (*domain.Thread, error) {
	query := `
		SELECT id, state, pending_step, version, created_at, updated_at
		FROM threads
		WHERE id = $1`

	thread, err := scanThread(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("thread", id)
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return thread, nil
}

// Update performs one atomic read-modify-write of a thread.
//
// When the underlying DBTX is a *database.DB or a pool the SELECT FOR UPDATE,
// the UPDATE and the history INSERT are wrapped in a transaction opened here.
// When it is already a transaction the statements join it and the caller
// commits.
func (r *PgCheckpointRepository) Update(ctx context.Context, id string, step domain.StepName, fn func(*domain.Thread) error) (*domain.Thread, error) {
	if runner, ok := r.db.(txRunner); ok {
		var thread *domain.Thread
		err := runner.WithTransaction(ctx, func(tx pgx.Tx) error {
			var err error
			thread, err = (&PgCheckpointRepository{db: tx}).updateInTx(ctx, id, step, fn)
			return err
		})
		if err != nil {
			return nil, err
		}
		return thread, nil
	}

	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction for update: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txRepo := &PgCheckpointRepository{db: tx}
		thread, err := txRepo.updateInTx(ctx, id, step, fn)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit thread update: %w", err)
		}
		return thread, nil
	}

	return r.updateInTx(ctx, id, step, fn)
}

func (r *PgCheckpointRepository) updateInTx(ctx context.Context, id string, step domain.StepName, fn func(*domain.Thread) error) (*domain.Thread, error) {
	selectQuery := `
		SELECT id, state, pending_step, version, created_at, updated_at
		FROM threads
		WHERE id = $1
		FOR UPDATE`

	thread, err := scanThread(r.db.QueryRow(ctx, selectQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("thread", id)
		}
		return nil, fmt.Errorf("failed to lock thread for update: %w", err)
	}

	previousVersion := thread.Version
	if err := fn(thread); err != nil {
		return nil, err
	}

	thread.Version = previousVersion + 1
	thread.UpdatedAt = time.Now().UTC()

	stateJSON, err := json.Marshal(thread.State)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal thread state: %w", err)
	}

	updateQuery := `
		UPDATE threads SET
			state = $1,
			pending_step = $2,
			version = $3,
			updated_at = $4
		WHERE id = $5 AND version = $6`

	tag, err := r.db.Exec(ctx, updateQuery,
		stateJSON, string(thread.Pending), thread.Version, thread.UpdatedAt,
		id, previousVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.NewThreadBusyError(id)
	}

	historyQuery := `
		INSERT INTO thread_checkpoints (thread_id, version, step, pending_step, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.Exec(ctx, historyQuery,
		id, thread.Version, string(step), string(thread.Pending), stateJSON, thread.UpdatedAt,
	); err != nil {
		if isPgError(err, pgUniqueViolation) {
			return nil, domain.NewThreadBusyError(id)
		}
		return nil, fmt.Errorf("failed to record checkpoint: %w", err)
	}

	return thread, nil
}

// ListCheckpoints returns the committed history of a thread, oldest first.
func (r *PgCheckpointRepository) ListCheckpoints(ctx context.Context, id string, limit int) ([]*domain.Checkpoint, error) {
	query := `
		SELECT thread_id, version, step, pending_step, state, created_at
		FROM thread_checkpoints
		WHERE thread_id = $1
		ORDER BY version ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, id, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*domain.Checkpoint
	for rows.Next() {
		var (
			cp        domain.Checkpoint
			step      string
			pending   string
			stateJSON []byte
		)
		if err := rows.Scan(&cp.ThreadID, &cp.Version, &step, &pending, &stateJSON, &cp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint state: %w", err)
		}
		cp.Step = domain.StepName(step)
		cp.Pending = domain.PendingStep(pending)
		checkpoints = append(checkpoints, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoints: %w", err)
	}

	if len(checkpoints) == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM threads WHERE id = $1)", id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check thread existence: %w", err)
		}
		if !exists {
			return nil, domain.NewNotFoundError("thread", id)
		}
	}

	return checkpoints, nil
}

func scanThread(row pgx.Row) (*domain.Thread, error) {
	var (
		thread    domain.Thread
		stateJSON []byte
		pending   string
	)
	if err := row.Scan(&thread.ID, &stateJSON, &pending, &thread.Version, &thread.CreatedAt, &thread.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stateJSON, &thread.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread state: %w", err)
	}
	thread.Pending = domain.PendingStep(pending)
	return &thread, nil
}
