package search

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/tools"
	"github.com/tmc/langchaingo/tools/duckduckgo"

	"github.com/helixir/research-report-service/internal/observability"
)

// ToolFallback adapts a langchaingo tool to TextSearcher.
type ToolFallback struct {
	tool    tools.Tool
	metrics *observability.Metrics
	logger  zerolog.Logger
}

var _ TextSearcher = (*ToolFallback)(nil)

// NewToolFallback wraps tool. metrics may be nil.
func NewToolFallback(tool tools.Tool, metrics *observability.Metrics, logger zerolog.Logger) *ToolFallback {
	return &ToolFallback{
		tool:    tool,
		metrics: metrics,
		logger:  observability.WithCollaboratorContext(logger, tool.Name(), "search"),
	}
}

// NewDuckDuckGoFallback builds the DuckDuckGo-backed fallback collaborator.
func NewDuckDuckGoFallback(maxResults int, metrics *observability.Metrics, logger zerolog.Logger) (*ToolFallback, error) {
	ddg, err := duckduckgo.New(maxResults, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, &SearchError{Provider: "duckduckgo", Err: err}
	}
	return NewToolFallback(ddg, metrics, logger), nil
}

// SearchText runs the tool and returns its sanitized text output, which may
// be empty when the tool found nothing.
func (f *ToolFallback) SearchText(ctx context.Context, query string) (string, error) {
	provider := f.tool.Name()
	start := time.Now()

	text, err := f.tool.Call(ctx, query)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		f.metrics.RecordSearchFailed(provider, elapsed)
		return "", &SearchError{Provider: provider, Err: err}
	}

	text = strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(text)))
	hits := 1
	if text == "" {
		hits = 0
	}

	f.metrics.RecordSearch(provider, hits, elapsed)
	logger := observability.LoggerFromContext(ctx, f.logger)
	logger.Debug().
		Str("query", query).
		Int("chars", len(text)).
		Msg("fallback search succeeded")
	return text, nil
}
