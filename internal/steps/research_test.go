package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/search"
)

func TestResearch_Results(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Battery outlook 2025", URL: "https://example.com/a", Content: "Prices fell 14%"},
		{Title: "", URL: "https://example.com/b", Content: "Untitled snippet"},
		{Title: "Title only", URL: "https://example.com/c"},
	}}
	s := newTestSteps(replyWith(""), searcher, &fakeFallback{})

	state := domain.NewStepContext("EV battery trends", 2)
	state.ResearchTask = "  solid-state batteries  "

	update := s.Research(context.Background(), state)

	assert.Equal(t, "solid-state batteries", searcher.query)
	assert.Equal(t, 6, searcher.maxResults)
	assert.Equal(t, search.DepthBasic, searcher.depth)

	require.Len(t, update.ResearchChunks, 1)
	assert.Equal(t,
		"retrieved material summary:\n- Battery outlook 2025：Prices fell 14%\n- no title：Untitled snippet\n- Title only",
		update.ResearchChunks[0])
	assert.Equal(t, []domain.Source{
		{Title: "Battery outlook 2025", URL: "https://example.com/a", Snippet: "Prices fell 14%"},
		{Title: "no title", URL: "https://example.com/b", Snippet: "Untitled snippet"},
		{Title: "Title only", URL: "https://example.com/c"},
	}, update.Sources)
}

func TestResearch_QueryFallsBackToTaskAndPlan(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	s := newTestSteps(replyWith(""), searcher, nil)

	state := domain.NewStepContext("EV battery trends", 2)
	state.Plan = []string{"Market size", "Players"}
	s.Research(context.Background(), state)
	assert.Equal(t, "EV battery trends Market size", searcher.query)

	s.Research(context.Background(), domain.NewStepContext("EV battery trends", 2))
	assert.Equal(t, "EV battery trends", searcher.query)
}

func TestResearch_NoResults(t *testing.T) {
	t.Parallel()

	s := newTestSteps(replyWith(""), &fakeSearcher{results: []search.Result{}}, nil)

	update := s.Research(context.Background(), domain.NewStepContext("t", 2))

	assert.Equal(t, []string{NoResultsMarker}, update.ResearchChunks)
	assert.Empty(t, update.Sources)
}

func TestResearch_FallbackText(t *testing.T) {
	t.Parallel()

	fallback := &fakeFallback{text: "DuckDuckGo says batteries are cheaper."}
	s := newTestSteps(replyWith(""), &fakeSearcher{err: &search.SearchError{Provider: "tavily", Err: search.ErrMissingAPIKey}}, fallback)

	state := domain.NewStepContext("t", 2)
	state.ResearchTask = "q"
	update := s.Research(context.Background(), state)

	assert.Equal(t, "q", fallback.query)
	assert.Equal(t, []string{"DuckDuckGo says batteries are cheaper."}, update.ResearchChunks)
	assert.Empty(t, update.Sources)
}

func TestResearch_EmptyFallbackTextIsSkippedByMerge(t *testing.T) {
	t.Parallel()

	s := newTestSteps(replyWith(""), &fakeSearcher{err: errCollaborator}, &fakeFallback{})

	state := domain.NewStepContext("t", 2)
	update := s.Research(context.Background(), state)
	assert.Equal(t, []string{""}, update.ResearchChunks)

	state.Apply(update)
	merged := MergeResearch(context.Background(), state)
	require.NotNil(t, merged.Content)
	assert.Equal(t, NoMaterialMarker, *merged.Content)
}

func TestResearch_BothSearchesFail(t *testing.T) {
	t.Parallel()

	s := newTestSteps(replyWith(""), &fakeSearcher{err: errCollaborator}, &fakeFallback{err: errCollaborator})

	update := s.Research(context.Background(), domain.NewStepContext("t", 2))

	assert.Equal(t, []string{SearchFailedMarker}, update.ResearchChunks)
	assert.Empty(t, update.Sources)
}

func TestResearch_NoFallbackConfigured(t *testing.T) {
	t.Parallel()

	s := newTestSteps(replyWith(""), &fakeSearcher{err: errCollaborator}, nil)

	update := s.Research(context.Background(), domain.NewStepContext("t", 2))

	assert.Equal(t, []string{SearchFailedMarker}, update.ResearchChunks)
}

func TestMergeResearch(t *testing.T) {
	t.Parallel()

	state := domain.NewStepContext("t", 2)
	state.ResearchChunks = []string{"first", "  ", "", "second"}

	update := MergeResearch(context.Background(), state)
	require.NotNil(t, update.Content)
	assert.Equal(t, "first\n\nsecond", *update.Content)

	empty := MergeResearch(context.Background(), domain.NewStepContext("t", 2))
	assert.Equal(t, NoMaterialMarker, *empty.Content)
}
