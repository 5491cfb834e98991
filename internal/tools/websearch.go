package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebSearchRateLimitedError and WebSearchNotConfiguredError implement
// spec §4.5's web_search failure taxonomy.
type WebSearchRateLimitedError struct{}

func (e *WebSearchRateLimitedError) Error() string { return "web search provider rate-limited this request" }

type WebSearchNotConfiguredError struct{}

func (e *WebSearchNotConfiguredError) Error() string { return "web search is not configured" }

// WebSearchTool queries a configured search provider, generalized from
// the teacher's pkg/tools/web.go Brave Search client.
type WebSearchTool struct {
	apiKey     string
	maxResults int
	client     *http.Client
}

func NewWebSearchTool(apiKey string, maxResults int) *WebSearchTool {
	if maxResults <= 0 || maxResults > 10 {
		maxResults = 5
	}
	return &WebSearchTool{
		apiKey:     apiKey,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns titles, descriptions, and URLs."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query",
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if t.apiKey == "" {
		return "", &WebSearchNotConfiguredError{}
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", fmt.Errorf("query is required")
	}

	searchURL := fmt.Sprintf(
		"https://api.search.brave.com/res/v1/web/search?q=%s&count=%d",
		url.QueryEscape(query), t.maxResults,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.apiKey)
	req.Header.Set("User-Agent", toolUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &WebSearchRateLimitedError{}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search provider returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}

	results := parsed.Web.Results
	if len(results) > t.maxResults {
		results = results[:t.maxResults]
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results for: %s", query), nil
	}

	var blocks []string
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("%d. %s / %s / %s", i+1, r.Title, r.Description, r.URL))
	}
	return strings.Join(blocks, "\n"), nil
}
