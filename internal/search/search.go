// Package search provides the web-search collaborators used by the Research
// step: a rate-limited Tavily client as the primary source and a DuckDuckGo
// text search as the best-effort fallback.
package search

import "context"

// Depth selects how thorough the primary search is.
type Depth string

// Supported search depths.
const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

// Result is one ranked hit returned by a Searcher. Any field may be empty.
type Result struct {
	Title   string
	URL     string
	Content string
}

// Searcher is the primary search collaborator.
type Searcher interface {
	// Search returns at most maxResults hits for query. It fails with a
	// *SearchError when the provider is unauthenticated or unreachable.
	Search(ctx context.Context, query string, maxResults int, depth Depth) ([]Result, error)
}

// TextSearcher is the fallback collaborator. It returns free text rather
// than structured hits.
type TextSearcher interface {
	SearchText(ctx context.Context, query string) (string, error)
}
