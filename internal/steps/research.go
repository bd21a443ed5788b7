package steps

import (
	"context"
	"strings"
	"time"

	"github.com/helixir/research-report-service/internal/domain"
)

// researchQuery is the trimmed research task, or "<task> <plan[0]>".
func researchQuery(state domain.StepContext) string {
	if q := strings.TrimSpace(state.ResearchTask); q != "" {
		return q
	}
	first := ""
	if len(state.Plan) > 0 {
		first = state.Plan[0]
	}
	return strings.TrimSpace(state.Task + " " + first)
}

// Research runs the primary search and appends one summary chunk plus the
// hits as sources. On failure it tries the fallback searcher, whose raw text
// becomes the chunk with no sources.
func (s *Steps) Research(ctx context.Context, state domain.StepContext) domain.StepUpdate {
	start := time.Now()
	defer s.logDone(ctx, domain.StepResearch, start)

	query := researchQuery(state)

	results, err := s.searcher.Search(ctx, query, s.cfg.SearchMaxResults, s.cfg.SearchDepth)
	if err == nil {
		sources := make([]domain.Source, 0, len(results))
		lines := make([]string, 0, len(results))
		for _, r := range results {
			title := r.Title
			if title == "" {
				title = noTitle
			}
			sources = append(sources, domain.Source{Title: title, URL: r.URL, Snippet: r.Content})
			if r.Content != "" {
				lines = append(lines, "- "+title+"："+r.Content)
			} else {
				lines = append(lines, "- "+title)
			}
		}

		summary := NoResultsMarker
		if len(lines) > 0 {
			summary = researchSummaryHeader + "\n" + strings.Join(lines, "\n")
		}
		return domain.StepUpdate{ResearchChunks: []string{summary}, Sources: sources}
	}

	s.recordFallback(ctx, domain.StepResearch, "primary_search_failed", err)

	if s.fallback != nil {
		text, ferr := s.fallback.SearchText(ctx, query)
		if ferr == nil {
			return domain.StepUpdate{ResearchChunks: []string{text}}
		}
		s.recordFallback(ctx, domain.StepResearch, "fallback_search_failed", ferr)
	}

	return domain.StepUpdate{ResearchChunks: []string{SearchFailedMarker}}
}

// MergeResearch joins all non-empty chunks, oldest first, into Content.
func MergeResearch(_ context.Context, state domain.StepContext) domain.StepUpdate {
	parts := make([]string, 0, len(state.ResearchChunks))
	for _, c := range state.ResearchChunks {
		if strings.TrimSpace(c) != "" {
			parts = append(parts, c)
		}
	}

	content := strings.Join(parts, "\n\n")
	if content == "" {
		content = NoMaterialMarker
	}
	return domain.StepUpdate{Content: domain.StringPtr(content)}
}
