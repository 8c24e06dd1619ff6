package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"newswatch/internal/classify"
	"newswatch/internal/dedup"
	"newswatch/internal/domain"
	"newswatch/internal/normalize"
	"newswatch/internal/verify"
)

// Config holds the per-run policy knobs.
type Config struct {
	FeedURLs       []string
	Mode           domain.RunMode
	Cooldown       time.Duration
	MinVerified    int
	MaxSources     int
	BreakingMaxAge time.Duration
	SummaryMaxLen  int
	ScanWindow     time.Duration
}

// Pipeline runs one ingestion pass: fetch, normalize, dedupe, classify,
// verify, select one winner, persist it, hand it off.
type Pipeline struct {
	source    FeedSource
	history   HistoryStore
	runState  RunStateStore
	txManager TransactionManager
	search    SearchProvider
	verifier  *verify.Verifier
	detector  *dedup.Detector
	publisher Publisher
	logger    *slog.Logger
	config    Config
	now       func() time.Time
}

func NewPipeline(
	source FeedSource,
	history HistoryStore,
	runState RunStateStore,
	txManager TransactionManager,
	search SearchProvider,
	verifier *verify.Verifier,
	detector *dedup.Detector,
	publisher Publisher,
	logger *slog.Logger,
	cfg Config,
) *Pipeline {
	return &Pipeline{
		source:    source,
		history:   history,
		runState:  runState,
		txManager: txManager,
		search:    search,
		verifier:  verifier,
		detector:  detector,
		publisher: publisher,
		logger:    logger.With("component", "pipeline"),
		config:    cfg,
		now:       time.Now,
	}
}

// Run executes a single pipeline pass and emits at most one story.
// An empty selection is a normal outcome, not an error; only
// configuration and persistence problems propagate.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunStats, error) {
	startTime := p.now()

	stats := &domain.RunStats{
		RunID: uuid.NewString(),
		Mode:  p.config.Mode,
	}
	logger := p.logger.With("run_id", stats.RunID, "mode", p.config.Mode)

	state, err := p.runState.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load run state: %w", err)
	}

	// The cooldown is global: one post per window regardless of how
	// many eligible candidates exist, checked before any network call.
	if !state.LastPostedAt.IsZero() && p.now().Sub(state.LastPostedAt) < p.config.Cooldown {
		stats.Throttled = true
		stats.Duration = p.now().Sub(startTime)
		logger.Info("cooldown active, skipping run",
			"last_posted_at", state.LastPostedAt,
			"cooldown", p.config.Cooldown,
		)
		return stats, nil
	}

	history, err := p.loadHistory(ctx)
	if err != nil {
		return nil, err
	}

	candidates := p.collectCandidates(ctx, history, stats, logger)
	stats.Eligible = len(candidates)

	winner := selectWinner(candidates)
	if winner == nil {
		stats.Duration = p.now().Sub(startTime)
		logger.Info("no eligible candidate this run",
			"fetched", stats.Fetched,
			"duplicates", stats.Duplicates,
			"filtered", stats.Filtered,
			"unverified", stats.Unverified,
		)
		return stats, nil
	}

	if err := p.persistWinner(ctx, winner, state); err != nil {
		return stats, fmt.Errorf("persist winner: %w", err)
	}
	stats.Posted = 1

	// Persist-then-publish: a crash in between loses one notification
	// but can never re-post the story on the next run.
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, winner, p.config.Mode); err != nil {
			return stats, fmt.Errorf("publish winner: %w", err)
		}
	}

	stats.Duration = p.now().Sub(startTime)

	logger.Info("posted story",
		"title", winner.Title,
		"topic", winner.Topic,
		"breaking", winner.Breaking,
		"verified_sources", winner.VerifiedCount,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (p *Pipeline) loadHistory(ctx context.Context) (dedup.History, error) {
	fingerprints, err := p.history.Fingerprints(ctx)
	if err != nil {
		return dedup.History{}, fmt.Errorf("load history fingerprints: %w", err)
	}

	titleKeys, err := p.history.RecentTitleKeys(ctx, p.now().Add(-p.config.ScanWindow))
	if err != nil {
		return dedup.History{}, fmt.Errorf("load history titles: %w", err)
	}

	return dedup.History{Fingerprints: fingerprints, TitleKeys: titleKeys}, nil
}

// collectCandidates walks every configured feed in order and
// accumulates the entries that survive all gates. Feed failures are
// isolated: one unreachable feed never blocks evaluation of the others.
func (p *Pipeline) collectCandidates(ctx context.Context, history dedup.History, stats *domain.RunStats, logger *slog.Logger) []domain.Candidate {
	accepted := dedup.History{Fingerprints: make(map[string]struct{})}
	var candidates []domain.Candidate

	for feedIndex, feedURL := range p.config.FeedURLs {
		entries, err := p.source.Fetch(ctx, feedURL)
		if err != nil {
			stats.Errors++
			logger.Warn("feed fetch failed", "url", feedURL, "error", err)
			continue
		}

		for position, raw := range entries {
			stats.Fetched++

			entry := p.normalizeEntry(raw, feedIndex, position)

			if p.detector.IsDuplicate(entry.Fingerprint, entry.TitleKey, history) ||
				p.detector.IsDuplicate(entry.Fingerprint, entry.TitleKey, accepted) {
				stats.Duplicates++
				continue
			}

			breaking := classify.IsBreaking(entry.Title)
			if breaking != (p.config.Mode == domain.ModeBreaking) {
				stats.Filtered++
				continue
			}

			// Stale urgent headlines stay classified as breaking but
			// never survive a breaking-mode run.
			if p.config.Mode == domain.ModeBreaking && p.now().Sub(entry.PublishedAt) > p.config.BreakingMaxAge {
				stats.Filtered++
				continue
			}

			sources, verifiedCount := p.verifier.GatherSources(ctx, p.search, entry.Title, entry.Link, p.config.MaxSources)
			if verifiedCount < p.config.MinVerified {
				stats.Unverified++
				logger.Debug("confirmation gate rejected story",
					"title", entry.Title,
					"verified", verifiedCount,
					"required", p.config.MinVerified,
				)
				continue
			}

			candidates = append(candidates, domain.Candidate{
				Entry:           entry,
				Breaking:        breaking,
				Topic:           classify.DetectTopic(entry.Title, entry.Summary),
				VerifiedSources: sources,
				VerifiedCount:   verifiedCount,
			})

			accepted.Fingerprints[entry.Fingerprint] = struct{}{}
			accepted.TitleKeys = append(accepted.TitleKeys, entry.TitleKey)
		}
	}

	return candidates
}

func (p *Pipeline) normalizeEntry(raw domain.RawEntry, feedIndex, position int) domain.Entry {
	publishedAt := p.now()
	if raw.PublishedAt != nil {
		publishedAt = *raw.PublishedAt
	}

	return domain.Entry{
		Title:       normalize.Display(raw.Title),
		Summary:     normalize.Truncate(normalize.Display(raw.SummaryHTML), p.config.SummaryMaxLen),
		Link:        raw.Link,
		PublishedAt: publishedAt,
		Fingerprint: normalize.Fingerprint(raw.Title),
		TitleKey:    normalize.CompareKey(raw.Title),
		FeedIndex:   feedIndex,
		Position:    position,
	}
}

// persistWinner writes the history record and the run state in one
// transaction. A failure here is fatal for the run: proceeding without
// a durable record risks re-posting the same story later.
func (p *Pipeline) persistWinner(ctx context.Context, winner *domain.Candidate, state *domain.RunState) error {
	record := &domain.HistoryRecord{
		Key:      winner.Fingerprint,
		Title:    winner.Title,
		TitleKey: winner.TitleKey,
		PostedAt: p.now().UTC(),
		Mode:     p.config.Mode,
	}

	return p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := p.history.Insert(txCtx, record); err != nil {
			return fmt.Errorf("insert history record: %w", err)
		}

		state.LastPostedAt = record.PostedAt
		state.LastMode = p.config.Mode
		state.TotalPosted++

		if err := p.runState.Update(txCtx, state); err != nil {
			return fmt.Errorf("update run state: %w", err)
		}

		return nil
	})
}
