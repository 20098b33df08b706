package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client fetches current deal listings from the marketplace API. One listings
// feed exists per category; FetchAll fans out over the configured category
// list and returns the raw records keyed by category name.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	categories []string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, userAgent string, categories []string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		userAgent:  userAgent,
		categories: categories,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchCategory retrieves the current offers for a single category feed.
func (c *Client) FetchCategory(ctx context.Context, category string) ([]Offer, error) {
	endpoint := fmt.Sprintf("%s/feed/%s", c.baseURL, url.PathEscape(category))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings for %s: %w", category, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("listings request for %s returned %d: %s", category, resp.StatusCode, body)
	}

	var listings listingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings for %s: %w", category, err)
	}

	return listings.Items, nil
}

// FetchAll retrieves offers for every configured category. A failing category
// degrades to an empty slice so one broken feed does not abort the refresh.
func (c *Client) FetchAll(ctx context.Context) (map[string][]Offer, error) {
	offersByCategory := make(map[string][]Offer, len(c.categories))

	for _, cat := range c.categories {
		offers, err := c.FetchCategory(ctx, cat)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Failed to fetch category listings", "category", cat, "error", err)
			offersByCategory[cat] = nil
			continue
		}
		slog.Debug("Fetched category listings", "category", cat, "count", len(offers))
		offersByCategory[cat] = offers
	}

	return offersByCategory, nil
}

func (c *Client) Categories() []string {
	return c.categories
}
