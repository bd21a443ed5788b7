// Package steps implements the workflow step functions. Each step reads a
// StepContext snapshot and returns a partial update; collaborator failures are
// recovered inside the step with a fixed fallback value and never surface as
// errors.
package steps

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/llm"
	"github.com/helixir/research-report-service/internal/observability"
	"github.com/helixir/research-report-service/internal/search"
)

// Func is the signature shared by all step bodies.
type Func func(ctx context.Context, state domain.StepContext) domain.StepUpdate

// Fallback values written into the state when a collaborator fails or
// returns nothing usable.
const (
	noTitle                = "no title"
	researchSummaryHeader  = "retrieved material summary:"
	NoResultsMarker        = "no results found"
	SearchFailedMarker     = "search failed, relying on model knowledge"
	NoMaterialMarker       = "no useful material retrieved"
	SectionFailedMarker    = "section generation failed, please retry later."
	GenerationFailedMarker = "generation failed, please retry later."
	defaultReviseFeedback  = "please add key data sources and improve structure"
)

// Config tunes step behaviour.
type Config struct {
	// SearchMaxResults is the result count requested per Research step.
	SearchMaxResults int
	// SearchDepth is passed to the primary searcher.
	SearchDepth search.Depth
	// SourcesInPrompt bounds how many sources writer prompts list.
	SourcesInPrompt int
	// SectionConcurrency is the number of sections drafted in parallel.
	SectionConcurrency int
}

// DefaultConfig returns the stock step settings.
func DefaultConfig() Config {
	return Config{
		SearchMaxResults:   6,
		SearchDepth:        search.DepthBasic,
		SourcesInPrompt:    8,
		SectionConcurrency: 2,
	}
}

// Steps holds the collaborators the step bodies call.
type Steps struct {
	completer llm.Completer
	searcher  search.Searcher
	fallback  search.TextSearcher
	cfg       Config
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// New creates the step set. fallback and metrics may be nil; zero Config
// fields take their defaults.
func New(completer llm.Completer, searcher search.Searcher, fallback search.TextSearcher, cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Steps {
	def := DefaultConfig()
	if cfg.SearchMaxResults <= 0 {
		cfg.SearchMaxResults = def.SearchMaxResults
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = def.SearchDepth
	}
	if cfg.SourcesInPrompt <= 0 {
		cfg.SourcesInPrompt = def.SourcesInPrompt
	}
	if cfg.SectionConcurrency <= 0 {
		cfg.SectionConcurrency = def.SectionConcurrency
	}

	return &Steps{
		completer: completer,
		searcher:  searcher,
		fallback:  fallback,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With().Str("component", "steps").Logger(),
	}
}

// Funcs returns the step bodies keyed by step name. HumanGate has no body.
func (s *Steps) Funcs() map[domain.StepName]Func {
	return map[domain.StepName]Func{
		domain.StepPlan:          s.Plan,
		domain.StepRouteResearch: RouteResearch,
		domain.StepResearch:      s.Research,
		domain.StepMergeResearch: MergeResearch,
		domain.StepWrite:         s.Write,
		domain.StepReview:        s.Review,
	}
}

// complete sends messages to the completer.
func (s *Steps) complete(ctx context.Context, messages ...llm.Message) (string, error) {
	return s.completer.Complete(ctx, messages)
}

func (s *Steps) recordFallback(ctx context.Context, step domain.StepName, reason string, err error) {
	s.metrics.RecordStepFallback(string(step), reason)
	logger := observability.LoggerFromContext(ctx, s.logger)
	logger.Warn().
		Err(err).
		Str("step", string(step)).
		Str("reason", reason).
		Msg("step fell back to default output")
}

func (s *Steps) logDone(ctx context.Context, step domain.StepName, start time.Time) {
	logger := observability.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Str("step", string(step)).
		Dur("duration", time.Since(start)).
		Msg("step body finished")
}
