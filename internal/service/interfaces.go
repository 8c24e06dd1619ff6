package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"newswatch/internal/domain"
)

type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) ([]domain.RawEntry, error)
}

type HistoryStore interface {
	Fingerprints(ctx context.Context) (map[string]struct{}, error)
	RecentTitleKeys(ctx context.Context, since time.Time) ([]string, error)
	Insert(ctx context.Context, rec *domain.HistoryRecord) error
}

type RunStateStore interface {
	Get(ctx context.Context) (*domain.RunState, error)
	Update(ctx context.Context, state *domain.RunState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, candidate *domain.Candidate, mode domain.RunMode) error
	Close() error
}
