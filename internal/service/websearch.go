package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const maxFetchedPageRunes = 4000

// WebSearchConfig holds configuration for the web search client.
type WebSearchConfig struct {
	APIKey   string
	EngineID string
	Endpoint string
}

// WebSearchResult is one hit from the search API.
type WebSearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// WebSearcher queries the Google Custom Search JSON API and fetches result
// pages for verification.
type WebSearcher struct {
	client   *resty.Client
	apiKey   string
	engineID string
	endpoint string
}

// NewWebSearcher creates a new WebSearcher.
func NewWebSearcher(cfg *WebSearchConfig) *WebSearcher {
	client := resty.New()
	client.SetTimeout(20 * time.Second)

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://www.googleapis.com/customsearch/v1"
	}

	return &WebSearcher{
		client:   client,
		apiKey:   cfg.APIKey,
		engineID: cfg.EngineID,
		endpoint: endpoint,
	}
}

type customSearchResponse struct {
	Items []WebSearchResult `json:"items"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Search runs one query and returns up to num results.
func (w *WebSearcher) Search(ctx context.Context, query string, num int) ([]WebSearchResult, error) {
	if num <= 0 {
		num = 5
	}

	var resp customSearchResponse
	httpResp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key": w.apiKey,
			"cx":  w.engineID,
			"q":   query,
			"num": strconv.Itoa(num),
		}).
		SetResult(&resp).
		Get(w.endpoint)

	if err != nil {
		return nil, fmt.Errorf("failed to call search API: %w", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil {
			return nil, fmt.Errorf("search API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("search API error: status %d", httpResp.StatusCode())
	}

	return resp.Items, nil
}

// FetchPage downloads a result page and returns its text content, stripped
// of markup and truncated for prompt use.
func (w *WebSearcher) FetchPage(ctx context.Context, url string) (string, error) {
	httpResp, err := w.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return "", fmt.Errorf("failed to fetch page: status %d", httpResp.StatusCode())
	}

	text := stripHTML(string(httpResp.Body()))
	runes := []rune(text)
	if len(runes) > maxFetchedPageRunes {
		text = string(runes[:maxFetchedPageRunes])
	}
	return text, nil
}

// stripHTML drops tags, scripts, and styles, leaving collapsed text. Crude
// but sufficient for relevance checks against extracted screenshot text.
func stripHTML(html string) string {
	html = dropBlock(html, "<script", "</script>")
	html = dropBlock(html, "<style", "</style>")

	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func dropBlock(s, open, close string) string {
	lower := strings.ToLower(s)
	for {
		start := strings.Index(lower, open)
		if start == -1 {
			return s
		}
		end := strings.Index(lower[start:], close)
		if end == -1 {
			return s[:start]
		}
		end = start + end + len(close)
		s = s[:start] + s[end:]
		lower = lower[:start] + lower[end:]
	}
}
