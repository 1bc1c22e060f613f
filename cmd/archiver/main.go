package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"message_archiver/internal/checkpoint"
	"message_archiver/internal/config"
	"message_archiver/internal/publisher"
	"message_archiver/internal/scheduler"
	"message_archiver/internal/service"
	"message_archiver/internal/source/discord"
	"message_archiver/internal/storage/file"
	"message_archiver/internal/storage/postgres"
	"message_archiver/internal/storage/search"
	"message_archiver/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	channels, err := cfg.DomainChannels()
	if err != nil {
		logger.Error("invalid channel configuration", "error", err)
		os.Exit(1)
	}

	sinks, err := buildSinks(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize sinks", "error", err)
		os.Exit(1)
	}
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Error("failed to close sink", "sink", s.Name(), "error", err)
			}
		}
	}()

	checkpointStore := checkpoint.NewFileStore(cfg.Checkpoint.Path)
	checkpoints, err := checkpointStore.Load()
	if err != nil {
		// A corrupt checkpoint file must not be silently discarded.
		logger.Error("failed to load checkpoints", "error", err)
		os.Exit(1)
	}
	logger.Info("loaded checkpoints", "channels", len(checkpoints))

	discordSource := discord.New(discord.Config{
		BaseURL:  cfg.Source.BaseURL,
		Token:    cfg.Source.Token,
		PageSize: cfg.Source.PageSize,
		Timeout:  cfg.Source.Timeout,
	}, logger)

	fetcher := service.NewFetcher(discordSource, cfg.Source.MaxRateLimitRetries, logger)
	dispatcher := service.NewDispatcher(sinks, logger)
	archiver := service.NewArchiver(
		fetcher,
		dispatcher,
		checkpointStore,
		checkpoints,
		channels,
		cfg.Archive.ChannelPace,
		logger,
	)

	sched := scheduler.NewScheduler(archiver, cfg.Archive.CycleInterval, logger)

	if cfg.Metrics.Enabled {
		telemetry.Expose(cfg.Metrics.Port)
		logger.Info("metrics exposed", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting message archiver",
		"channels", len(channels),
		"sinks", len(sinks),
		"cycle_interval", cfg.Archive.CycleInterval,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

// buildSinks constructs the enabled sinks in dispatch order. A disabled
// sink is simply absent from the list; the dispatcher has no notion of
// enablement.
func buildSinks(cfg *config.Config, logger *slog.Logger) ([]service.Sink, error) {
	var sinks []service.Sink

	if cfg.Sinks.Postgres.Enabled {
		db, err := sqlx.Connect("postgres", cfg.Sinks.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		logger.Info("connected to postgres", "db", cfg.Sinks.Postgres.DBName)
		sinks = append(sinks, postgres.NewMessageSink(db))
	}

	if cfg.Sinks.Search.Enabled {
		idx, err := search.Open(cfg.Sinks.Search.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("opened search index", "path", cfg.Sinks.Search.Path)
		sinks = append(sinks, idx)
	}

	if cfg.Sinks.File.Enabled {
		out, err := file.Open(cfg.Sinks.File.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("opened output file", "path", cfg.Sinks.File.Path)
		sinks = append(sinks, out)
	}

	if cfg.Sinks.AMQP.Enabled {
		mq, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.Sinks.AMQP.URL,
			Exchange:   cfg.Sinks.AMQP.Exchange,
			RoutingKey: cfg.Sinks.AMQP.RoutingKey,
			QueueName:  cfg.Sinks.AMQP.QueueName,
		}, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, mq)
	}

	return sinks, nil
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
