package feed

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"newswatch/internal/domain"
)

// Config holds feed adapter settings.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Source fetches and parses RSS/Atom feeds. It performs no retries:
// the scheduler simply reruns the whole pipeline later.
type Source struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
	logger    *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		parser:    gofeed.NewParser(),
		userAgent: cfg.UserAgent,
		logger:    logger.With("component", "feed"),
	}
}

// Fetch returns the entries of one feed in source order. Items without
// a title or link are skipped; missing published timestamps pass
// through as nil.
func (s *Source) Fetch(ctx context.Context, feedURL string) ([]domain.RawEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	parsed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.RawEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" || item.Link == "" {
			continue
		}

		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}

		entries = append(entries, domain.RawEntry{
			Title:       title,
			SummaryHTML: itemSummary(item),
			Link:        stripTracking(item.Link),
			PublishedAt: published,
		})
	}

	s.logger.Debug("fetched feed", "url", feedURL, "entries", len(entries))

	return entries, nil
}

// itemSummary prefers the full content block, falling back to the
// description and finally the title.
func itemSummary(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	if item.Description != "" {
		return item.Description
	}
	return item.Title
}

// stripTracking removes utm query suffixes aggregators append.
func stripTracking(link string) string {
	if idx := strings.Index(link, "?utm_"); idx > 0 {
		return link[:idx]
	}
	return link
}

// StatusError reports a non-200 feed response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "unexpected status: " + http.StatusText(e.Code)
}
