package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"newswatch/internal/dedup"
	"newswatch/internal/domain"
	"newswatch/internal/normalize"
	"newswatch/internal/service/mocks"
	"newswatch/internal/verify"
)

type PipelineTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockFeedSource
	history   *mocks.MockHistoryStore
	runState  *mocks.MockRunStateStore
	txManager *mocks.MockTransactionManager
	search    *mocks.MockSearchProvider
	publisher *mocks.MockPublisher

	verifier *verify.Verifier
	detector *dedup.Detector
	logger   *slog.Logger
	nowTime  time.Time
}

func (s *PipelineTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockFeedSource(s.ctrl)
	s.history = mocks.NewMockHistoryStore(s.ctrl)
	s.runState = mocks.NewMockRunStateStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.search = mocks.NewMockSearchProvider(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.verifier = verify.New(verify.Config{
		Allowlist: []string{"fibre2fashion.com", "reuters.com"},
	}, s.logger)
	s.detector = dedup.New(0.92)

	s.nowTime = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
}

func (s *PipelineTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

func (s *PipelineTestSuite) newPipeline(cfg Config) *Pipeline {
	p := NewPipeline(
		s.source,
		s.history,
		s.runState,
		s.txManager,
		s.search,
		s.verifier,
		s.detector,
		s.publisher,
		s.logger,
		cfg,
	)
	p.now = func() time.Time { return s.nowTime }
	return p
}

func (s *PipelineTestSuite) defaultConfig(mode domain.RunMode) Config {
	return Config{
		FeedURLs:       []string{"https://feeds.test/a", "https://feeds.test/b"},
		Mode:           mode,
		Cooldown:       2 * time.Hour,
		MinVerified:    1,
		MaxSources:     3,
		BreakingMaxAge: 6 * time.Hour,
		SummaryMaxLen:  500,
		ScanWindow:     90 * 24 * time.Hour,
	}
}

func (s *PipelineTestSuite) expectEmptyHistory(ctx context.Context, cfg Config) {
	s.runState.EXPECT().Get(ctx).Return(&domain.RunState{ID: 1}, nil)
	s.history.EXPECT().Fingerprints(ctx).Return(map[string]struct{}{}, nil)
	s.history.EXPECT().RecentTitleKeys(ctx, s.nowTime.Add(-cfg.ScanWindow)).Return(nil, nil)
}

func (s *PipelineTestSuite) expectTransaction(ctx context.Context) {
	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
}

func (s *PipelineTestSuite) TestRun_BreakingSingleWinner() {
	ctx := context.Background()
	cfg := s.defaultConfig(domain.ModeBreaking)
	p := s.newPipeline(cfg)

	recent := s.nowTime.Add(-time.Hour)

	s.expectEmptyHistory(ctx, cfg)

	s.source.EXPECT().Fetch(ctx, "https://feeds.test/a").Return([]domain.RawEntry{
		{
			Title:       "RetailCo acquires StyleBrand for $2 billion",
			SummaryHTML: "<p>A landmark deal.</p>",
			Link:        "https://www.fibre2fashion.com/news/1",
			PublishedAt: &recent,
		},
		{
			Title:       "Cotton harvest outlook improves",
			SummaryHTML: "Weather helped",
			Link:        "https://www.fibre2fashion.com/news/2",
			PublishedAt: &recent,
		},
	}, nil)

	// same story reworded, collapses onto the first entry's fingerprint
	s.source.EXPECT().Fetch(ctx, "https://feeds.test/b").Return([]domain.RawEntry{
		{
			Title:       "RetailCo Acquires StyleBrand For $2 Billion — sources",
			SummaryHTML: "Deal confirmed",
			Link:        "https://www.just-style.com/news/1",
			PublishedAt: &recent,
		},
	}, nil)

	s.search.EXPECT().Search(ctx, "RetailCo acquires StyleBrand for $2 billion", 12).
		Return([]string{"https://www.reuters.com/deal"}, nil)

	s.expectTransaction(ctx)

	s.history.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, rec *domain.HistoryRecord) error {
			s.Equal(normalize.Fingerprint("RetailCo acquires StyleBrand for $2 billion"), rec.Key)
			s.Equal("RetailCo acquires StyleBrand for $2 billion", rec.Title)
			s.Equal(domain.ModeBreaking, rec.Mode)
			s.Equal(s.nowTime, rec.PostedAt)
			return nil
		},
	)

	s.runState.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, state *domain.RunState) error {
			s.Equal(s.nowTime, state.LastPostedAt)
			s.Equal(domain.ModeBreaking, state.LastMode)
			s.Equal(int64(1), state.TotalPosted)
			return nil
		},
	)

	s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.ModeBreaking).DoAndReturn(
		func(_ context.Context, c *domain.Candidate, _ domain.RunMode) error {
			s.Equal("RetailCo acquires StyleBrand for $2 billion", c.Title)
			s.True(c.Breaking)
			s.Equal(domain.TopicMergers, c.Topic)
			s.Contains(c.VerifiedSources, "https://www.reuters.com/deal")
			s.Contains(c.VerifiedSources, "https://www.fibre2fashion.com/news/1")
			return nil
		},
	)

	stats, err := p.Run(ctx)

	s.NoError(err)
	s.Equal(3, stats.Fetched)
	s.Equal(1, stats.Duplicates)
	s.Equal(1, stats.Filtered)
	s.Equal(0, stats.Unverified)
	s.Equal(1, stats.Eligible)
	s.Equal(1, stats.Posted)
	s.False(stats.Throttled)
}

func (s *PipelineTestSuite) TestRun_CooldownThrottles() {
	ctx := context.Background()
	p := s.newPipeline(s.defaultConfig(domain.ModeRegular))

	s.runState.EXPECT().Get(ctx).Return(&domain.RunState{
		ID:           1,
		LastPostedAt: s.nowTime.Add(-10 * time.Minute),
	}, nil)

	stats, err := p.Run(ctx)

	s.NoError(err)
	s.True(stats.Throttled)
	s.Equal(0, stats.Fetched)
	s.Equal(0, stats.Posted)
}

func (s *PipelineTestSuite) TestRun_BreakingAgeGate() {
	ctx := context.Background()
	cfg := s.defaultConfig(domain.ModeBreaking)
	p := s.newPipeline(cfg)

	stale := s.nowTime.Add(-30 * time.Hour)

	s.expectEmptyHistory(ctx, cfg)

	s.source.EXPECT().Fetch(ctx, "https://feeds.test/a").Return([]domain.RawEntry{
		{
			Title:       "Garment workers strike at Dhaka supplier",
			SummaryHTML: "Production halted",
			Link:        "https://www.fibre2fashion.com/news/3",
			PublishedAt: &stale,
		},
	}, nil)
	s.source.EXPECT().Fetch(ctx, "https://feeds.test/b").Return(nil, nil)

	stats, err := p.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.Filtered)
	s.Equal(0, stats.Eligible)
	s.Equal(0, stats.Posted)
}

func (s *PipelineTestSuite) TestRun_VerificationGate() {
	ctx := context.Background()
	cfg := s.defaultConfig(domain.ModeRegular)
	p := s.newPipeline(cfg)

	recent := s.nowTime.Add(-time.Hour)

	s.expectEmptyHistory(ctx, cfg)

	s.source.EXPECT().Fetch(ctx, "https://feeds.test/a").Return([]domain.RawEntry{
		{
			Title:       "Cotton harvest outlook improves",
			SummaryHTML: "Weather helped",
			Link:        "https://blog.example.com/cotton",
			PublishedAt: &recent,
		},
	}, nil)
	s.source.EXPECT().Fetch(ctx, "https://feeds.test/b").Return(nil, nil)

	s.search.EXPECT().Search(ctx, "Cotton harvest outlook improves", 12).
		Return([]string{"https://another-blog.example.org/x"}, nil)

	stats, err := p.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.Unverified)
	s.Equal(0, stats.Eligible)
	s.Equal(0, stats.Posted)
}

func (s *PipelineTestSuite) TestRun_RegularModeFiltersBreaking() {
	ctx := context.Background()
	cfg := s.defaultConfig(domain.ModeRegular)
	p := s.newPipeline(cfg)

	recent := s.nowTime.Add(-time.Hour)

	s.expectEmptyHistory(ctx, cfg)

	s.source.EXPECT().Fetch(ctx, "https://feeds.test/a").Return([]domain.RawEntry{
		{
			Title:       "FashionGroup files for bankruptcy protection",
			SummaryHTML: "Filing confirmed",
			Link:        "https://www.fibre2fashion.com/news/4",
			PublishedAt: &recent,
		},
	}, nil)
	s.source.EXPECT().Fetch(ctx, "https://feeds.test/b").Return(nil, nil)

	stats, err := p.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Filtered)
	s.Equal(0, stats.Posted)
}

func (s *PipelineTestSuite) TestRun_FeedFailureIsolated() {
	ctx := context.Background()
	cfg := s.defaultConfig(domain.ModeRegular)
	p := s.newPipeline(cfg)

	recent := s.nowTime.Add(-time.Hour)

	s.expectEmptyHistory(ctx, cfg)

	s.source.EXPECT().Fetch(ctx, "https://feeds.test/a").Return(nil, errors.New("connection refused"))
	s.source.EXPECT().Fetch(ctx, "https://feeds.test/b").Return([]domain.RawEntry{
		{
			Title:       "Cotton harvest outlook improves",
			SummaryHTML: "Weather helped",
			Link:        "https://www.fibre2fashion.com/news/5",
			PublishedAt: &recent,
		},
	}, nil)

	s.search.EXPECT().Search(ctx, "Cotton harvest outlook improves", 12).Return(nil, nil)

	s.expectTransaction(ctx)
	s.history.EXPECT().Insert(ctx, gomock.Any()).Return(nil)
	s.runState.EXPECT().Update(ctx, gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.ModeRegular).Return(nil)

	stats, err := p.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Errors)
	s.Equal(1, stats.Posted)
}

func (s *PipelineTestSuite) TestRun_PersistBeforePublish() {
	ctx := context.Background()
	cfg := s.defaultConfig(domain.ModeRegular)
	p := s.newPipeline(cfg)

	recent := s.nowTime.Add(-time.Hour)

	s.expectEmptyHistory(ctx, cfg)

	s.source.EXPECT().Fetch(ctx, "https://feeds.test/a").Return([]domain.RawEntry{
		{
			Title:       "Cotton harvest outlook improves",
			SummaryHTML: "Weather helped",
			Link:        "https://www.fibre2fashion.com/news/6",
			PublishedAt: &recent,
		},
	}, nil)
	s.source.EXPECT().Fetch(ctx, "https://feeds.test/b").Return(nil, nil)

	s.search.EXPECT().Search(ctx, "Cotton harvest outlook improves", 12).Return(nil, nil)

	s.expectTransaction(ctx)

	insert := s.history.EXPECT().Insert(ctx, gomock.Any()).Return(nil)
	update := s.runState.EXPECT().Update(ctx, gomock.Any()).Return(nil)
	publish := s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.ModeRegular).
		Return(errors.New("broker unavailable"))
	gomock.InOrder(insert, update, publish)

	stats, err := p.Run(ctx)

	s.Error(err)
	s.Contains(err.Error(), "publish winner")
	s.Equal(1, stats.Posted, "the story is durable even when the handoff fails")
}

func (s *PipelineTestSuite) TestRun_PublisherNil() {
	ctx := context.Background()
	cfg := s.defaultConfig(domain.ModeRegular)
	p := s.newPipeline(cfg)
	p.publisher = nil

	recent := s.nowTime.Add(-time.Hour)

	s.expectEmptyHistory(ctx, cfg)

	s.source.EXPECT().Fetch(ctx, "https://feeds.test/a").Return([]domain.RawEntry{
		{
			Title:       "Cotton harvest outlook improves",
			SummaryHTML: "Weather helped",
			Link:        "https://www.fibre2fashion.com/news/7",
			PublishedAt: &recent,
		},
	}, nil)
	s.source.EXPECT().Fetch(ctx, "https://feeds.test/b").Return(nil, nil)

	s.search.EXPECT().Search(ctx, "Cotton harvest outlook improves", 12).Return(nil, nil)

	s.expectTransaction(ctx)
	s.history.EXPECT().Insert(ctx, gomock.Any()).Return(nil)
	s.runState.EXPECT().Update(ctx, gomock.Any()).Return(nil)

	stats, err := p.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Posted)
}

func (s *PipelineTestSuite) TestRun_RunStateError() {
	ctx := context.Background()
	p := s.newPipeline(s.defaultConfig(domain.ModeRegular))

	s.runState.EXPECT().Get(ctx).Return(nil, errors.New("db down"))

	stats, err := p.Run(ctx)

	s.Error(err)
	s.Nil(stats)
	s.Contains(err.Error(), "load run state")
}

func (s *PipelineTestSuite) TestRun_HistoryLoadError() {
	ctx := context.Background()
	p := s.newPipeline(s.defaultConfig(domain.ModeRegular))

	s.runState.EXPECT().Get(ctx).Return(&domain.RunState{ID: 1}, nil)
	s.history.EXPECT().Fingerprints(ctx).Return(nil, errors.New("db down"))

	stats, err := p.Run(ctx)

	s.Error(err)
	s.Nil(stats)
	s.Contains(err.Error(), "load history fingerprints")
}

func (s *PipelineTestSuite) TestRun_NoCandidates() {
	ctx := context.Background()
	cfg := s.defaultConfig(domain.ModeRegular)
	p := s.newPipeline(cfg)

	s.expectEmptyHistory(ctx, cfg)

	s.source.EXPECT().Fetch(ctx, "https://feeds.test/a").Return(nil, nil)
	s.source.EXPECT().Fetch(ctx, "https://feeds.test/b").Return(nil, nil)

	stats, err := p.Run(ctx)

	s.NoError(err)
	s.Equal(0, stats.Eligible)
	s.Equal(0, stats.Posted)
}

// Two consecutive runs over near-identical input post exactly once: the
// second run sees the first run's history and collapses both the exact
// and the reworded variant.
func (s *PipelineTestSuite) TestRun_IdempotentAcrossRuns() {
	ctx := context.Background()
	cfg := s.defaultConfig(domain.ModeRegular)
	cfg.FeedURLs = []string{"https://feeds.test/a"}
	cfg.Cooldown = 0
	p := s.newPipeline(cfg)

	recent := s.nowTime.Add(-time.Hour)

	fingerprints := make(map[string]struct{})
	var titleKeys []string
	state := &domain.RunState{ID: 1}

	s.runState.EXPECT().Get(ctx).DoAndReturn(
		func(context.Context) (*domain.RunState, error) {
			copied := *state
			return &copied, nil
		},
	).Times(2)
	s.runState.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, updated *domain.RunState) error {
			state = updated
			return nil
		},
	)

	s.history.EXPECT().Fingerprints(ctx).DoAndReturn(
		func(context.Context) (map[string]struct{}, error) {
			copied := make(map[string]struct{}, len(fingerprints))
			for k := range fingerprints {
				copied[k] = struct{}{}
			}
			return copied, nil
		},
	).Times(2)
	s.history.EXPECT().RecentTitleKeys(ctx, gomock.Any()).DoAndReturn(
		func(context.Context, time.Time) ([]string, error) {
			return append([]string(nil), titleKeys...), nil
		},
	).Times(2)
	s.history.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, rec *domain.HistoryRecord) error {
			fingerprints[rec.Key] = struct{}{}
			titleKeys = append(titleKeys, rec.TitleKey)
			return nil
		},
	)

	// run two delivers the same story with one character changed
	titles := []string{
		"RetailCo expands into menswear with new flagship line",
		"RetailCo expands into menswear with new flagship lines",
	}
	fetchCount := 0
	s.source.EXPECT().Fetch(ctx, "https://feeds.test/a").DoAndReturn(
		func(context.Context, string) ([]domain.RawEntry, error) {
			title := titles[fetchCount]
			fetchCount++
			return []domain.RawEntry{{
				Title:       title,
				SummaryHTML: "Expansion announced",
				Link:        "https://www.fibre2fashion.com/news/8",
				PublishedAt: &recent,
			}}, nil
		},
	).Times(2)

	s.search.EXPECT().Search(ctx, gomock.Any(), 12).Return(nil, nil)

	s.expectTransaction(ctx)
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.ModeRegular).Return(nil)

	first, err := p.Run(ctx)
	s.NoError(err)
	s.Equal(1, first.Posted)

	second, err := p.Run(ctx)
	s.NoError(err)
	s.Equal(0, second.Posted)
	s.Equal(1, second.Duplicates)
}
