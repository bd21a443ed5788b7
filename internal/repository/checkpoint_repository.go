package repository

import (
	"context"

	"github.com/helixir/research-report-service/internal/domain"
)

// CheckpointRepository is the durable checkpoint store for workflow threads.
type CheckpointRepository interface {
	// Create inserts a new thread at its initial checkpoint.
	// Returns domain.ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, thread *domain.Thread) error

	// Get returns the latest committed checkpoint of a thread.
	// Returns domain.ErrNotFound if the thread does not exist.
	Get(ctx context.Context, id string) (*domain.Thread, error)

	// Update performs one atomic read-modify-write of a thread. The row is
	// locked with SELECT FOR UPDATE, fn mutates the locked copy, and the new
	// snapshot, pending step and an immutable history row tagged with step are
	// written in the same transaction. The version is incremented by one.
	//
	// If fn returns an error nothing is written and that error is returned.
	// Returns domain.ErrNotFound if the thread does not exist.
	Update(ctx context.Context, id string, step domain.StepName, fn func(*domain.Thread) error) (*domain.Thread, error)

	// ListCheckpoints returns the committed history of a thread, oldest
	// first, capped at limit rows (default 100, max 1000).
	// Returns domain.ErrNotFound if the thread does not exist.
	ListCheckpoints(ctx context.Context, id string, limit int) ([]*domain.Checkpoint, error)
}
