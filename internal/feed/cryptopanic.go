// Package feed implements the CryptoPanic snapshot fetcher.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cryptopulse/internal/news"
	logx "cryptopulse/pkg/logx"
)

const defaultBaseURL = "https://cryptopanic.com/api/v1/posts/"

var (
	// ErrNoAPIKey means the client can never succeed until reconfigured.
	ErrNoAPIKey = errors.New("cryptopanic api key is not configured")

	// ErrUnavailable means every category request failed this cycle.
	ErrUnavailable = errors.New("cryptopanic unavailable")
)

// The neutral category is fed by CryptoPanic's "important" filter.
var categoryFilters = map[news.Sentiment]string{
	news.Bullish: "bullish",
	news.Bearish: "bearish",
	news.Neutral: "important",
}

type Config struct {
	APIKey     string
	Currencies []string
	BaseURL    string // override for tests; defaults to the public API
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg: cfg,
		// Per-call deadlines come from the caller's context.
		http: &http.Client{Timeout: 0},
		log:  log,
	}
}

// Fetch pulls one filtered page per category and assembles the
// snapshot. A failing category is left empty; the fetch as a whole
// fails only when no category could be loaded.
func (c *Client) Fetch(ctx context.Context) (news.Snapshot, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return news.Snapshot{}, ErrNoAPIKey
	}

	var (
		snap     news.Snapshot
		firstErr error
		failed   int
	)
	for _, cat := range news.Categories {
		items, err := c.fetchCategory(ctx, cat)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			c.log.Warn("category fetch failed", logx.String("category", string(cat)), logx.Err(err))
			continue
		}
		for _, it := range items {
			snap.Append(it)
		}
	}
	if failed == len(news.Categories) {
		return news.Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, firstErr)
	}
	return snap, nil
}

type apiPost struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source struct {
		Title string `json:"title"`
	} `json:"source"`
	PublishedAt string `json:"published_at"`
	Currencies  []struct {
		Code string `json:"code"`
	} `json:"currencies"`
}

type apiResponse struct {
	Results []apiPost `json:"results"`
}

func (c *Client) fetchCategory(ctx context.Context, cat news.Sentiment) ([]news.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.categoryURL(cat), nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cryptopanic: unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("cryptopanic: decode: %w", err)
	}

	items := make([]news.Item, 0, len(body.Results))
	for _, p := range body.Results {
		it := news.Item{
			Title:       p.Title,
			URL:         p.URL,
			Source:      p.Source.Title,
			PublishedAt: p.PublishedAt,
			Sentiment:   cat,
		}
		if it.Source == "" {
			it.Source = "Unknown"
		}
		for _, cc := range p.Currencies {
			it.Currencies = append(it.Currencies, cc.Code)
		}
		items = append(items, it)
	}

	c.log.Debug("category fetched",
		logx.String("category", string(cat)),
		logx.Int("items", len(items)),
		logx.Duration("took", time.Since(start)))
	return items, nil
}

func (c *Client) categoryURL(cat news.Sentiment) string {
	q := url.Values{}
	q.Set("auth_token", c.cfg.APIKey)
	q.Set("filter", categoryFilters[cat])
	if len(c.cfg.Currencies) > 0 {
		q.Set("currencies", strings.Join(c.cfg.Currencies, ","))
	}
	return c.cfg.BaseURL + "?" + q.Encode()
}
