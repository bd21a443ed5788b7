package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-report-service/internal/domain"
)

func TestPgArchiveRepository_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored id and created_at", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgArchiveRepository(mock)
		created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		report := &domain.ArchivedReport{
			ThreadID: "thread-1",
			Topic:    "EV batteries",
			Report:   "# Report",
			Summary:  "Report",
		}

		mock.ExpectQuery("INSERT INTO reports .* ON CONFLICT \\(thread_id\\) DO UPDATE").
			WithArgs("thread-1", "EV batteries", "# Report", "Report", []byte("[]")).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))

		saved, err := repo.Upsert(ctx, report)
		require.NoError(t, err)
		assert.Equal(t, int64(7), saved.ID)
		assert.Equal(t, created, saved.CreatedAt)
		assert.NotNil(t, saved.Sources)
		assert.Zero(t, report.ID, "input must not be mutated")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires thread id", func(t *testing.T) {
		repo := NewPgArchiveRepository(nil)
		_, err := repo.Upsert(ctx, &domain.ArchivedReport{Topic: "x"})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))

		_, err = repo.Upsert(ctx, nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgArchiveRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgArchiveRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, thread_id, topic, summary, created_at FROM reports ORDER BY created_at DESC").
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "thread_id", "topic", "summary", "created_at"}).
			AddRow(int64(2), "t2", "second", "s2", now).
			AddRow(int64(1), "t1", "first", "s1", now.Add(-time.Hour)))

	reports, err := repo.List(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, int64(2), reports[0].ID)
	assert.Empty(t, reports[0].Report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgArchiveRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes sources", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgArchiveRepository(mock)
		sources, _ := json.Marshal([]domain.Source{{Title: "Paper", URL: "https://p"}})

		mock.ExpectQuery("SELECT .* FROM reports WHERE id = \\$1").
			WithArgs(int64(3)).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "thread_id", "topic", "report", "summary", "sources", "created_at",
			}).AddRow(int64(3), "t3", "topic", "body", "sum", sources, time.Now().UTC()))

		rep, err := repo.Get(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "body", rep.Report)
		require.Len(t, rep.Sources, 1)
		assert.Equal(t, "https://p", rep.Sources[0].URL)
	})

	t.Run("missing returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgArchiveRepository(mock)
		mock.ExpectQuery("SELECT .* FROM reports").
			WithArgs(int64(99)).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.Get(ctx, 99)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPgArchiveRepository_DeleteAndClear(t *testing.T) {
	ctx := context.Background()

	t.Run("delete existing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("DELETE FROM reports WHERE id = \\$1").
			WithArgs(int64(5)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		assert.NoError(t, NewPgArchiveRepository(mock).Delete(ctx, 5))
	})

	t.Run("delete missing returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("DELETE FROM reports WHERE id = \\$1").
			WithArgs(int64(5)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err = NewPgArchiveRepository(mock).Delete(ctx, 5)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("clear reports count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("DELETE FROM reports$").
			WillReturnResult(pgxmock.NewResult("DELETE", 4))

		n, err := NewPgArchiveRepository(mock).Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}
