package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/observability"
	"github.com/helixir/research-report-service/internal/repository"
)

// Thread kinds used as the started-threads metric label.
const (
	kindNew      = "new"
	kindFollowup = "followup"
)

// Publisher receives committed thread events. Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, event *domain.ThreadEvent) error
}

// Config holds executor settings.
type Config struct {
	// DefaultMaxRevisions is the revision cap for threads started without one.
	DefaultMaxRevisions int
	// StepTimeout bounds each step body. Zero disables the bound.
	StepTimeout time.Duration
}

// Executor runs threads step by step against the checkpoint store.
type Executor struct {
	repo      repository.CheckpointRepository
	graph     *Graph
	leaser    Leaser
	publisher Publisher
	cfg       Config
	metrics   *observability.Metrics
	logger    zerolog.Logger
	newID     func() string
}

// NewExecutor creates an executor. publisher and metrics may be nil.
func NewExecutor(
	repo repository.CheckpointRepository,
	graph *Graph,
	leaser Leaser,
	publisher Publisher,
	cfg Config,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Executor {
	if cfg.DefaultMaxRevisions <= 0 {
		cfg.DefaultMaxRevisions = 2
	}
	return &Executor{
		repo:      repo,
		graph:     graph,
		leaser:    leaser,
		publisher: publisher,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With().Str("component", "executor").Logger(),
		newID:     func() string { return uuid.New().String() },
	}
}

// Start creates and persists a new thread for task without running any step.
// maxRevisions <= 0 selects the configured default.
func (e *Executor) Start(ctx context.Context, task string, maxRevisions int) (*domain.Thread, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, domain.NewValidationError("topic", "topic is required")
	}
	if maxRevisions <= 0 {
		maxRevisions = e.cfg.DefaultMaxRevisions
	}

	return e.create(ctx, domain.NewStepContext(task, maxRevisions), kindNew)
}

// StartFollowup creates a thread that continues from an archived report.
func (e *Executor) StartFollowup(ctx context.Context, question, historyContext string, sources []domain.Source) (*domain.Thread, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.NewValidationError("question", "question is required")
	}

	state := domain.NewStepContext(question, e.cfg.DefaultMaxRevisions)
	state.HistoryContext = historyContext
	state.Sources = append(state.Sources, sources...)

	return e.create(ctx, state, kindFollowup)
}

func (e *Executor) create(ctx context.Context, state domain.StepContext, kind string) (*domain.Thread, error) {
	thread := domain.NewThread(e.newID(), state)
	thread.Pending = domain.PendingOn(e.graph.Entry())

	if err := e.repo.Create(ctx, thread); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	e.metrics.RecordThreadStarted(kind)
	e.publish(ctx, domain.NewThreadEvent(domain.EventTypeThreadCreated, thread.ID, thread.Pending, thread.Version))
	logger := observability.WithThreadContext(e.logger, thread.ID)
	logger.Info().
		Str("kind", kind).
		Int("max_revisions", state.MaxRevisions).
		Msg("thread created")

	return thread, nil
}

// Get returns the current snapshot of a thread.
func (e *Executor) Get(ctx context.Context, threadID string) (*domain.Thread, error) {
	return e.repo.Get(ctx, threadID)
}

// Checkpoints returns the committed history of a thread, oldest first.
func (e *Executor) Checkpoints(ctx context.Context, threadID string, limit int) ([]*domain.Checkpoint, error) {
	return e.repo.ListCheckpoints(ctx, threadID, limit)
}

// Advance runs the thread from its pending step until it parks at the
// human-review barrier or finishes, yielding one event per committed step.
//
// Each step is committed before its event is yielded, so a consumer that
// stops iterating never loses progress. A second concurrent Advance on the
// same thread yields a ThreadBusyError. Advance on a parked or finished
// thread yields nothing and changes nothing. If ctx is cancelled while a step
// body runs, the result is discarded and the thread stays at its last
// checkpoint.
func (e *Executor) Advance(ctx context.Context, threadID string) iter.Seq2[domain.StepEvent, error] {
	return func(yield func(domain.StepEvent, error) bool) {
		release, err := e.acquire(ctx, threadID)
		if err != nil {
			yield(domain.StepEvent{}, err)
			return
		}
		defer release()

		for {
			thread, err := e.repo.Get(ctx, threadID)
			if err != nil {
				yield(domain.StepEvent{}, err)
				return
			}

			step, runnable := thread.Pending.Step()
			if !runnable {
				return
			}

			event, err := e.runStep(ctx, thread, step)
			if err != nil {
				yield(domain.StepEvent{}, err)
				return
			}

			e.publish(ctx, domain.ThreadEventFromStep(event))
			if !yield(event, nil) {
				return
			}
		}
	}
}

// runStep executes one step body on a copy of the snapshot and commits the
// update together with the routed pending step.
func (e *Executor) runStep(ctx context.Context, thread *domain.Thread, step domain.StepName) (domain.StepEvent, error) {
	fn, ok := e.graph.Func(step)
	if !ok {
		return domain.StepEvent{}, fmt.Errorf("thread %s: no body for pending step %s", thread.ID, step)
	}

	logger := observability.WithStepContext(e.logger, thread.ID, string(step), thread.State.RevisionNumber)
	stepCtx := observability.WithStep(observability.WithThreadID(ctx, thread.ID), string(step))
	if e.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(stepCtx, e.cfg.StepTimeout)
		defer cancel()
	}

	start := time.Now()
	update := fn(stepCtx, thread.State.Clone())
	elapsed := time.Since(start)

	if err := ctx.Err(); err != nil {
		logger.Info().Err(err).Msg("step abandoned, caller went away")
		return domain.StepEvent{}, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	expected := thread.Version
	var routed transition
	committed, err := e.repo.Update(ctx, thread.ID, step, func(t *domain.Thread) error {
		if t.Version != expected || t.Pending != domain.PendingOn(step) {
			return domain.NewThreadBusyError(t.ID)
		}
		t.State.Apply(update)
		routed = e.graph.next(step, t.State)
		if routed.critique != nil {
			t.State.Critique = *routed.critique
		}
		t.State.AppendLog(domain.LogEntry{
			Step:     step,
			Revision: t.State.RevisionNumber,
			Message:  stepLogMessage(step, t.State),
			At:       time.Now().UTC(),
		})
		t.Pending = routed.pending
		return nil
	})
	if err != nil {
		e.metrics.RecordPersistenceFailure()
		logger.Error().Err(err).Msg("failed to commit step")
		return domain.StepEvent{}, fmt.Errorf("commit step %s: %w", step, err)
	}

	e.metrics.RecordStep(string(step), elapsed.Seconds())
	switch committed.Pending {
	case domain.PendingAwaitingHuman:
		e.metrics.RecordAwaitingHuman()
	case domain.PendingFinished:
		e.metrics.RecordThreadFinished()
	}
	logger.Debug().
		Dur("duration", elapsed).
		Str("pending", string(committed.Pending)).
		Int64("version", committed.Version).
		Msg("step committed")

	if routed.critique != nil {
		update.Critique = routed.critique
	}
	return domain.StepEvent{
		ThreadID: committed.ID,
		Step:     step,
		Fields:   update.PublicFields(),
		Pending:  committed.Pending,
		Version:  committed.Version,
	}, nil
}

// SubmitDecision records the human decision for a thread parked at the
// barrier and routes it: approve finishes the thread, reject schedules Write
// with the feedback as the new critique. Any other pending state is rejected.
func (e *Executor) SubmitDecision(ctx context.Context, threadID string, action domain.HumanAction, feedback string) (*domain.Thread, error) {
	if !action.IsValid() {
		return nil, domain.NewValidationError("action", "action must be approve or reject")
	}
	feedback = strings.TrimSpace(feedback)
	if action == domain.HumanActionReject && feedback == "" {
		return nil, domain.NewValidationError("feedback", "feedback is required when rejecting")
	}

	release, err := e.acquire(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer release()

	committed, err := e.repo.Update(ctx, threadID, domain.StepHumanGate, func(t *domain.Thread) error {
		if t.Pending != domain.PendingAwaitingHuman {
			return domain.NewInvalidStateError(t.ID, t.Pending, "submit decision")
		}

		update := domain.StepUpdate{HumanAction: domain.HumanActionPtr(action)}
		if action == domain.HumanActionReject {
			update.Critique = domain.StringPtr(domain.ReviseWith(feedback).String())
			update.HumanFeedback = domain.StringPtr(feedback)
		}
		t.State.Apply(update)
		t.State.AppendLog(domain.LogEntry{
			Step:     domain.StepHumanGate,
			Revision: t.State.RevisionNumber,
			Message:  "human decision: " + string(action),
			At:       time.Now().UTC(),
		})
		t.Pending = e.graph.next(domain.StepHumanGate, t.State).pending
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidState) && !errors.Is(err, domain.ErrNotFound) {
			e.metrics.RecordPersistenceFailure()
		}
		return nil, fmt.Errorf("submit decision: %w", err)
	}

	e.metrics.RecordDecision(string(action))
	if committed.Pending == domain.PendingFinished {
		e.metrics.RecordThreadFinished()
	}

	event := domain.NewThreadEvent(domain.EventTypeDecisionRecorded, committed.ID, committed.Pending, committed.Version)
	event.Step = domain.StepHumanGate
	e.publish(ctx, event)

	logger := observability.WithThreadContext(e.logger, threadID)
	logger.Info().
		Str("action", string(action)).
		Str("pending", string(committed.Pending)).
		Msg("human decision recorded")

	return committed, nil
}

func (e *Executor) acquire(ctx context.Context, threadID string) (func(), error) {
	release, ok, err := e.leaser.TryAcquire(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	if !ok {
		e.metrics.RecordLeaseRejected()
		return nil, domain.NewThreadBusyError(threadID)
	}
	return release, nil
}

func (e *Executor) publish(ctx context.Context, event *domain.ThreadEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		logger := observability.WithThreadContext(e.logger, event.ThreadID)
		logger.Warn().
			Err(err).
			Str("event_type", event.EventType).
			Msg("failed to publish thread event")
	}
}

func stepLogMessage(step domain.StepName, state domain.StepContext) string {
	switch step {
	case domain.StepPlan:
		return fmt.Sprintf("plan generated: %d items", len(state.Plan))
	case domain.StepRouteResearch:
		return "research routed: " + state.ResearchTask
	case domain.StepResearch:
		return fmt.Sprintf("research completed: %d chunks, %d sources", len(state.ResearchChunks), len(state.Sources))
	case domain.StepMergeResearch:
		return "research merged"
	case domain.StepWrite:
		return fmt.Sprintf("draft written (rev %d)", state.RevisionNumber)
	case domain.StepReview:
		return "review: " + state.Critique
	default:
		return string(step) + " completed"
	}
}
