package wikidb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// searchLimit caps how many candidate titles one query returns.
const searchLimit = 10

// MediaWikiSearcher implements TitleSearcher against the MediaWiki
// opensearch API.
type MediaWikiSearcher struct {
	endpoint string
	client   *http.Client
}

// NewMediaWikiSearcher creates a searcher for the given api.php endpoint.
func NewMediaWikiSearcher(endpoint string) *MediaWikiSearcher {
	return &MediaWikiSearcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// SearchTitles returns page titles matching query, best match first.
// The opensearch response is a four-element array; the second element is the
// title list.
func (m *MediaWikiSearcher) SearchTitles(ctx context.Context, query string) ([]string, error) {
	params := url.Values{
		"action": {"opensearch"},
		"format": {"json"},
		"limit":  {fmt.Sprint(searchLimit)},
		"search": {query},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("title search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("title search: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	if len(payload) < 2 {
		return nil, fmt.Errorf("parse search response: expected 4 elements, got %d", len(payload))
	}

	var titles []string
	if err := json.Unmarshal(payload[1], &titles); err != nil {
		return nil, fmt.Errorf("parse search titles: %w", err)
	}
	return titles, nil
}
