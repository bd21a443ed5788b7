package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/observability"
)

// DecisionEvent is a human decision submitted by another service.
type DecisionEvent struct {
	ThreadID string `json:"thread_id"`
	Action   string `json:"action"`
	Feedback string `json:"feedback,omitempty"`
}

// DecisionSubmitter applies a human decision to a parked thread.
type DecisionSubmitter interface {
	SubmitDecision(ctx context.Context, threadID string, action domain.HumanAction, feedback string) (*domain.Thread, error)
}

// messageReader is the subset of *kafka.Reader used by the listener.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Retry backoff for decisions that failed for a transient reason.
const (
	defaultRetryBackoff    = 500 * time.Millisecond
	defaultMaxRetryBackoff = 30 * time.Second
)

// ListenerConfig holds configuration for the decision listener.
type ListenerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic carries DecisionEvent messages.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
	// RetryBackoff is the first wait before retrying a busy or unavailable
	// thread. It doubles per attempt up to MaxRetryBackoff.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// DecisionListener consumes decision events and submits them to the engine.
// Offsets are committed only once a decision reached a final outcome: applied,
// or rejected as invalid, stale or unknown. Busy and unavailable threads are
// retried until they succeed or the listener stops, so a decision is never
// dropped on a transient failure.
type DecisionListener struct {
	reader          messageReader
	submitter       DecisionSubmitter
	retryBackoff    time.Duration
	maxRetryBackoff time.Duration
	logger          zerolog.Logger
}

// NewDecisionListener creates a listener backed by a kafka.Reader.
func NewDecisionListener(cfg ListenerConfig, submitter DecisionSubmitter, logger zerolog.Logger) *DecisionListener {
	info, errLog := observability.KafkaLoggers(logger)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     3 * time.Second,
		Logger:      info,
		ErrorLogger: errLog,
	})

	l := newDecisionListener(reader, submitter, logger)
	if cfg.RetryBackoff > 0 {
		l.retryBackoff = cfg.RetryBackoff
	}
	if cfg.MaxRetryBackoff > 0 {
		l.maxRetryBackoff = cfg.MaxRetryBackoff
	}
	return l
}

func newDecisionListener(reader messageReader, submitter DecisionSubmitter, logger zerolog.Logger) *DecisionListener {
	return &DecisionListener{
		reader:          reader,
		submitter:       submitter,
		retryBackoff:    defaultRetryBackoff,
		maxRetryBackoff: defaultMaxRetryBackoff,
		logger:          logger.With().Str("component", "decision_listener").Logger(),
	}
}

// Run consumes until ctx is cancelled.
func (l *DecisionListener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting decision listener")

	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("decision listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to fetch message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received decision event")

		var event DecisionEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to unmarshal decision event")
		} else if err := l.handle(ctx, event); err != nil {
			// Left uncommitted so the group redelivers it after a restart.
			l.logger.Info().Msg("decision listener stopped via context cancellation")
			return err
		}

		if err := l.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("failed to commit decision event")
		}
	}
}

// handle submits event until it reaches a final outcome. It only returns an
// error when ctx is cancelled while a transient failure is being retried.
func (l *DecisionListener) handle(ctx context.Context, event DecisionEvent) error {
	logger := observability.WithThreadContext(l.logger, event.ThreadID)
	backoff := l.retryBackoff

	for attempt := 1; ; attempt++ {
		thread, err := l.submitter.SubmitDecision(ctx, event.ThreadID, domain.HumanAction(event.Action), event.Feedback)
		switch {
		case err == nil:
			logger.Info().
				Str("action", event.Action).
				Str("pending", string(thread.Pending)).
				Msg("decision applied from event")
			return nil
		case errors.Is(err, domain.ErrInvalidInput),
			errors.Is(err, domain.ErrInvalidState),
			errors.Is(err, domain.ErrNotFound):
			logger.Warn().Err(err).Str("action", event.Action).Msg("skipping decision event")
			return nil
		}

		logger.Warn().
			Err(err).
			Str("action", event.Action).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("decision not applied, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, l.maxRetryBackoff)
	}
}

// Close closes the underlying reader.
func (l *DecisionListener) Close() error {
	return l.reader.Close()
}
