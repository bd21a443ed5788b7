package steps

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/llm"
	"github.com/helixir/research-report-service/internal/search"
)

var errCollaborator = errors.New("collaborator unavailable")

// fakeCompleter answers each prompt through respond and records prompts.
type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	prompt := strings.Join(parts, "\n")

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	return f.respond(prompt)
}

func (f *fakeCompleter) Provider() string { return "fake" }
func (f *fakeCompleter) Model() string    { return "fake-1" }

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func replyWith(text string) *fakeCompleter {
	return &fakeCompleter{respond: func(string) (string, error) { return text, nil }}
}

func failing() *fakeCompleter {
	return &fakeCompleter{respond: func(string) (string, error) { return "", errCollaborator }}
}

type fakeSearcher struct {
	results []search.Result
	err     error

	query      string
	maxResults int
	depth      search.Depth
}

func (f *fakeSearcher) Search(_ context.Context, query string, maxResults int, depth search.Depth) ([]search.Result, error) {
	f.query, f.maxResults, f.depth = query, maxResults, depth
	return f.results, f.err
}

type fakeFallback struct {
	text  string
	err   error
	query string
}

func (f *fakeFallback) SearchText(_ context.Context, query string) (string, error) {
	f.query = query
	return f.text, f.err
}

func newTestSteps(completer llm.Completer, searcher search.Searcher, fallback search.TextSearcher) *Steps {
	return New(completer, searcher, fallback, Config{}, nil, zerolog.Nop())
}
