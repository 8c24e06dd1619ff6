package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"newswatch/internal/config"
	"newswatch/internal/dedup"
	"newswatch/internal/feed"
	"newswatch/internal/publisher"
	"newswatch/internal/scheduler"
	"newswatch/internal/search"
	"newswatch/internal/service"
	"newswatch/internal/storage/postgres"
	"newswatch/internal/verify"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single pass and exit (cron mode)")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize RabbitMQ publisher
	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	// Initialize stores
	historyStore := postgres.NewHistoryStore(db)
	runStateStore := postgres.NewRunStateStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Initialize adapters
	feedSource := feed.New(feed.Config{
		Timeout:   cfg.Feeds.Timeout,
		UserAgent: cfg.Feeds.UserAgent,
	}, logger)

	searchClient := search.New(search.Config{
		BaseURL:    cfg.Search.BaseURL,
		APIKey:     cfg.Search.APIKey,
		WindowDays: cfg.Search.WindowDays,
		MaxRecords: cfg.Search.MaxRecords,
		Timeout:    cfg.Search.Timeout,
		RatePerMin: cfg.Search.RatePerMin,
	}, logger)

	verifier := verify.New(verify.Config{
		Allowlist:     cfg.Verify.Allowlist,
		AllowFallback: cfg.Verify.AllowFallback,
	}, logger)

	detector := dedup.New(cfg.Dedup.Threshold)

	pipeline := service.NewPipeline(
		feedSource,
		historyStore,
		runStateStore,
		txManager,
		searchClient,
		verifier,
		detector,
		rabbitMQ,
		logger,
		service.Config{
			FeedURLs:       cfg.Feeds.URLs,
			Mode:           cfg.Mode(),
			Cooldown:       cfg.Run.Cooldown,
			MinVerified:    cfg.Verify.MinVerified,
			MaxSources:     cfg.Verify.MaxSources,
			BreakingMaxAge: cfg.Run.BreakingMaxAge,
			SummaryMaxLen:  cfg.Run.SummaryMaxLen,
			ScanWindow:     time.Duration(cfg.Dedup.ScanWindowDays) * 24 * time.Hour,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting newswatch",
		"mode", cfg.Run.Mode,
		"feeds", len(cfg.Feeds.URLs),
		"once", *once,
	)

	if *once {
		runCtx, runCancel := context.WithTimeout(ctx, cfg.Run.Timeout)
		defer runCancel()

		if _, err := pipeline.Run(runCtx); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	sched := scheduler.NewScheduler(pipeline, cfg.Run.Interval, cfg.Run.Timeout, logger)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
