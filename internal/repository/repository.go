// Package repository provides the persistence layer of the research report
// service.
//
// # Repository Interfaces
//
//   - CheckpointRepository: the durable checkpoint store. One row per thread
//     holds the current StepContext snapshot and pending step; every committed
//     step also appends an immutable history row.
//   - ArchiveRepository: finalized reports, keyed by surrogate id and unique
//     per thread.
//
// # Error Handling
//
// Methods return errors from the domain package (domain.ErrNotFound,
// domain.ErrAlreadyExists, domain.ErrInvalidInput) wrapped with context.
// Any other error is a persistence failure and leaves the stored state at its
// last committed version.
//
// # Transactions
//
// Implementations accept a DBTX so they can run against the pool or inside
// an existing transaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    txRepo := repository.NewPgCheckpointRepository(tx)
//	    _, err := txRepo.Update(ctx, threadID, domain.StepPlan, fn)
//	    return err
//	})
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/research-report-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// txBeginner is implemented by *pgxpool.Pool and *database.DB. pgx.Tx also
// satisfies it, in which case Begin opens a savepoint inside the caller's
// transaction.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// txRunner is implemented by *database.DB, which owns rollback on error or
// panic and the final commit.
type txRunner interface {
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// pgUniqueViolation is the PostgreSQL unique_violation error code.
const pgUniqueViolation = "23505"

// List limits shared by the history queries.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// clampLimit normalizes a caller supplied limit to [1, maxListLimit].
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
