package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/observability"
)

const (
	tavilyProvider       = "tavily"
	defaultTavilyBaseURL = "https://api.tavily.com"
)

// TavilyConfig configures the Tavily search client.
type TavilyConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	Burst      int
	MaxRetries int
}

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type tavilyErrorResponse struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}

// TavilyClient implements Searcher against the Tavily search API.
type TavilyClient struct {
	http    *HTTPClient
	apiKey  string
	baseURL string
	metrics *observability.Metrics
	logger  zerolog.Logger
}

var _ Searcher = (*TavilyClient)(nil)

// NewTavilyClient creates a Tavily client. A missing API key is not an error
// here; every Search call then fails with ErrMissingAPIKey so the caller's
// fallback path is taken. metrics may be nil.
func NewTavilyClient(cfg TavilyConfig, metrics *observability.Metrics, logger zerolog.Logger) *TavilyClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTavilyBaseURL
	}

	return &TavilyClient{
		http: NewHTTPClient(HTTPClientConfig{
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			BurstSize:  cfg.Burst,
			MaxRetries: cfg.MaxRetries,
		}),
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		metrics: metrics,
		logger:  observability.WithCollaboratorContext(logger, tavilyProvider, "search"),
	}
}

// Search queries Tavily and returns sanitized results in rank order.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int, depth Depth) ([]Result, error) {
	if c.apiKey == "" {
		return nil, &SearchError{Provider: tavilyProvider, Err: ErrMissingAPIKey}
	}
	if depth == "" {
		depth = DepthBasic
	}

	start := time.Now()
	results, err := c.search(ctx, tavilyRequest{
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: string(depth),
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		c.metrics.RecordSearchFailed(tavilyProvider, elapsed)
		logger := observability.LoggerFromContext(ctx, c.logger)
		logger.Debug().
			Err(err).
			Str("query", query).
			Msg("search failed")
		return nil, err
	}

	c.metrics.RecordSearch(tavilyProvider, len(results), elapsed)
	return results, nil
}

func (c *TavilyClient) search(ctx context.Context, body tavilyRequest) ([]Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("tavily: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tavily: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &SearchError{Provider: tavilyProvider, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &SearchError{Provider: tavilyProvider, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseTavilyError(resp.StatusCode, respBody)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &SearchError{Provider: tavilyProvider, Message: "malformed response", Err: err}
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		content := r.Content
		if content == "" {
			content = r.Snippet
		}
		results = append(results, Result{
			Title:   Sanitize(r.Title),
			URL:     strings.TrimSpace(r.URL),
			Content: Sanitize(content),
		})
	}
	return results, nil
}

func parseTavilyError(statusCode int, body []byte) *SearchError {
	searchErr := &SearchError{
		Provider:   tavilyProvider,
		StatusCode: statusCode,
		Message:    strings.TrimSpace(string(body)),
	}

	var errResp tavilyErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail.Error != "" {
		searchErr.Message = errResp.Detail.Error
	}
	return searchErr
}
