package intel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"folio/internal/logger"

	"github.com/go-resty/resty/v2"
)

// TavilyClient searches the web for market narrative via the Tavily API.
type TavilyClient struct {
	client     *resty.Client
	apiKey     string
	maxResults int
}

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

func NewTavilyClient(baseURL, apiKey string, maxResults int, timeout time.Duration) *TavilyClient {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	return &TavilyClient{client: client, apiKey: apiKey, maxResults: maxResults}
}

// Search returns the top results formatted as plain text snippets for the
// reasoning transcript.
func (c *TavilyClient) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: empty query", ErrUnavailable)
	}
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: api key not configured", ErrUnavailable)
	}
	var out searchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(searchRequest{
			APIKey:      c.apiKey,
			Query:       query,
			MaxResults:  c.maxResults,
			SearchDepth: "advanced",
		}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		logger.Warnf("Intel: search failed query=%q err=%v", query, err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode())
	}
	if len(out.Results) == 0 {
		return "No search results found.", nil
	}
	var b strings.Builder
	for _, r := range out.Results {
		fmt.Fprintf(&b, "Title: %s\nContent: %s\nURL: %s\n\n", r.Title, r.Content, r.URL)
	}
	return strings.TrimSpace(b.String()), nil
}
