package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Config holds search provider settings.
type Config struct {
	BaseURL    string
	APIKey     string
	WindowDays int // how far back results may reach
	MaxRecords int // provider-side record cap
	Timeout    time.Duration
	RatePerMin int // client-side request budget
}

// Client queries an article search API for corroborating coverage. It
// is a best-effort collaborator: callers treat any error as "no
// additional sources found".
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	windowDays int
	maxRecords int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	perMin := cfg.RatePerMin
	if perMin <= 0 {
		perMin = 30
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		windowDays: cfg.WindowDays,
		maxRecords: cfg.MaxRecords,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), 1),
		logger:     logger.With("component", "search"),
	}
}

type apiResponse struct {
	Articles []struct {
		URL string `json:"url"`
	} `json:"articles"`
}

// Search returns up to limit article URLs matching the query within the
// configured time window. Ordering follows provider-reported relevance.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 || limit > c.maxRecords {
		limit = c.maxRecords
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	from := time.Now().UTC().AddDate(0, 0, -c.windowDays)

	params := url.Values{}
	params.Set("q", query)
	params.Set("from", from.Format(time.RFC3339))
	params.Set("max", strconv.Itoa(limit))
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	urls := make([]string, 0, len(apiResp.Articles))
	for _, a := range apiResp.Articles {
		if a.URL != "" {
			urls = append(urls, a.URL)
		}
	}

	c.logger.Debug("search completed", "query", query, "results", len(urls))

	return urls, nil
}
