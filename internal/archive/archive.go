// Package archive manages finalized reports: saving a thread's output,
// browsing and deleting saved reports, and starting follow-up threads
// seeded from a saved report.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/observability"
	"github.com/helixir/research-report-service/internal/repository"
)

// Threads is the part of the engine the archive depends on.
type Threads interface {
	Get(ctx context.Context, threadID string) (*domain.Thread, error)
	StartFollowup(ctx context.Context, question, historyContext string, sources []domain.Source) (*domain.Thread, error)
}

// Config holds archive settings.
type Config struct {
	DefaultListLimit int
	MaxListLimit     int
	SummaryLength    int
}

// SaveRequest is the input of Save.
type SaveRequest struct {
	ThreadID string
	Topic    string
	Report   string
	// Sources is optional; nil keeps the live thread's sources when the
	// thread still exists.
	Sources []domain.Source
}

// Service implements the report archive operations.
type Service struct {
	repo    repository.ArchiveRepository
	threads Threads
	cfg     Config
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewService creates an archive service. metrics may be nil.
func NewService(repo repository.ArchiveRepository, threads Threads, cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Service {
	if cfg.DefaultListLimit <= 0 {
		cfg.DefaultListLimit = 20
	}
	if cfg.MaxListLimit <= 0 {
		cfg.MaxListLimit = 100
	}
	if cfg.SummaryLength <= 0 {
		cfg.SummaryLength = domain.DefaultSummaryLength
	}
	return &Service{
		repo:    repo,
		threads: threads,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With().Str("component", "archive").Logger(),
	}
}

// Save upserts the report for req.ThreadID. When the report text is empty
// and the thread is still live, its current content is archived instead.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*domain.ArchivedReport, error) {
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	if req.ThreadID == "" {
		return nil, domain.NewValidationError("thread_id", "thread_id is required")
	}

	if req.Report == "" || req.Topic == "" || req.Sources == nil {
		if err := s.fillFromThread(ctx, &req); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(req.Report) == "" {
		return nil, domain.NewValidationError("report", "report is required")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return nil, domain.NewValidationError("topic", "topic is required")
	}

	saved, err := s.repo.Upsert(ctx, &domain.ArchivedReport{
		ThreadID: req.ThreadID,
		Topic:    req.Topic,
		Report:   req.Report,
		Summary:  domain.SummarizeReport(req.Report, s.cfg.SummaryLength),
		Sources:  req.Sources,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordReportArchived()
	logger := observability.LoggerFromContext(ctx, observability.WithThreadContext(s.logger, req.ThreadID))
	logger.Info().
		Int64("report_id", saved.ID).
		Int("sources", len(saved.Sources)).
		Msg("report archived")

	return saved, nil
}

// fillFromThread completes missing request fields from the live thread.
// A thread that no longer exists is not an error; the caller validates
// whatever is still missing.
func (s *Service) fillFromThread(ctx context.Context, req *SaveRequest) error {
	thread, err := s.threads.Get(ctx, req.ThreadID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load thread %s for archiving: %w", req.ThreadID, err)
	}

	if req.Report == "" {
		req.Report = thread.State.Content
	}
	if req.Topic == "" {
		req.Topic = thread.State.Task
	}
	if req.Sources == nil {
		req.Sources = thread.State.Sources
	}
	return nil
}

// List returns summaries of the newest reports. limit <= 0 selects the
// default page size; larger values are capped.
func (s *Service) List(ctx context.Context, limit int) ([]*domain.ArchivedReport, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultListLimit
	}
	limit = min(limit, s.cfg.MaxListLimit)
	return s.repo.List(ctx, limit)
}

// Get returns one archived report with body and sources.
func (s *Service) Get(ctx context.Context, id int64) (*domain.ArchivedReport, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes one archived report. Live threads are unaffected.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("report_id", id).Msg("archived report deleted")
	return nil
}

// Clear removes every archived report.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	n, err := s.repo.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("deleted", n).Msg("archive cleared")
	return n, nil
}

// Followup starts a new thread that answers question with the archived
// report as history context and its sources carried over.
func (s *Service) Followup(ctx context.Context, historyID int64, question string) (*domain.Thread, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.NewValidationError("question", "question is required")
	}

	report, err := s.repo.Get(ctx, historyID)
	if err != nil {
		return nil, err
	}

	thread, err := s.threads.StartFollowup(ctx, question, report.Report, report.Sources)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("report_id", historyID).
		Str("thread_id", thread.ID).
		Msg("follow-up thread started")
	return thread, nil
}
