package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/observability"
)

// InstrumentedCompleter decorates a Completer with metrics, debug logging and
// CompletionError wrapping. The workflow step is read from the context
// (observability.WithStep) and used as the operation label.
type InstrumentedCompleter struct {
	next    Completer
	metrics *observability.Metrics
	logger  zerolog.Logger
}

var _ Completer = (*InstrumentedCompleter)(nil)

// NewInstrumentedCompleter wraps next. metrics may be nil.
func NewInstrumentedCompleter(next Completer, metrics *observability.Metrics, logger zerolog.Logger) *InstrumentedCompleter {
	return &InstrumentedCompleter{
		next:    next,
		metrics: metrics,
		logger:  observability.WithCollaboratorContext(logger, next.Provider(), "complete"),
	}
}

// Complete delegates to the wrapped Completer.
func (c *InstrumentedCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	step := observability.StepFromContext(ctx)
	operation := step
	if operation == "" {
		operation = "complete"
	}

	start := time.Now()
	text, err := c.next.Complete(ctx, messages)
	elapsed := time.Since(start).Seconds()
	logger := observability.LoggerFromContext(ctx, c.logger)

	c.metrics.RecordLLMRequest(operation, c.next.Model(), elapsed)
	if err != nil {
		c.metrics.RecordLLMRequestFailed(operation, c.next.Model(), errorType(err))
		logger.Debug().
			Err(err).
			Str("operation", operation).
			Float64("duration_s", elapsed).
			Msg("completion failed")
		return "", &CompletionError{
			Provider: c.next.Provider(),
			Model:    c.next.Model(),
			Step:     step,
			Err:      err,
		}
	}

	logger.Trace().
		Str("operation", operation).
		Int("chars", len(text)).
		Float64("duration_s", elapsed).
		Msg("completion succeeded")

	return text, nil
}

// Provider returns the wrapped provider name.
func (c *InstrumentedCompleter) Provider() string {
	return c.next.Provider()
}

// Model returns the wrapped model identifier.
func (c *InstrumentedCompleter) Model() string {
	return c.next.Model()
}
