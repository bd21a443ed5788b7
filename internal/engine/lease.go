package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/helixir/research-report-service/internal/database"
)

// Leaser grants exclusive, non-blocking execution leases per thread.
type Leaser interface {
	// TryAcquire returns a release func and true when the lease was granted,
	// or false when another holder owns it.
	TryAcquire(ctx context.Context, threadID string) (release func(), ok bool, err error)
}

// LocalLeaser is an in-process lease table. It only serializes callers
// within one process.
type LocalLeaser struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLeaser creates an empty lease table.
func NewLocalLeaser() *LocalLeaser {
	return &LocalLeaser{held: make(map[string]struct{})}
}

// TryAcquire implements Leaser.
func (l *LocalLeaser) TryAcquire(_ context.Context, threadID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[threadID]; busy {
		return nil, false, nil
	}
	l.held[threadID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, threadID)
			l.mu.Unlock()
		})
	}, true, nil
}

// advisoryLocker is the subset of *database.DB used by AdvisoryLeaser.
type advisoryLocker interface {
	TryAdvisoryLease(ctx context.Context, key int64) (*database.AdvisoryLease, bool, error)
}

// AdvisoryLeaser holds a PostgreSQL session advisory lock per thread, so
// leases are exclusive across replicas sharing the database.
type AdvisoryLeaser struct {
	db advisoryLocker
}

// NewAdvisoryLeaser creates a leaser over db.
func NewAdvisoryLeaser(db advisoryLocker) *AdvisoryLeaser {
	return &AdvisoryLeaser{db: db}
}

// TryAcquire implements Leaser.
func (l *AdvisoryLeaser) TryAcquire(ctx context.Context, threadID string) (func(), bool, error) {
	lease, ok, err := l.db.TryAdvisoryLease(ctx, database.AdvisoryLockKey("thread:"+threadID))
	if err != nil {
		return nil, false, fmt.Errorf("acquire thread lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	return func() { once.Do(lease.Release) }, true, nil
}
