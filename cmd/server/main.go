// Package main provides the entry point for the research report service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/research-report-service/internal/archive"
	"github.com/helixir/research-report-service/internal/config"
	"github.com/helixir/research-report-service/internal/database"
	"github.com/helixir/research-report-service/internal/engine"
	"github.com/helixir/research-report-service/internal/events"
	"github.com/helixir/research-report-service/internal/llm"
	"github.com/helixir/research-report-service/internal/observability"
	"github.com/helixir/research-report-service/internal/repository"
	"github.com/helixir/research-report-service/internal/search"
	httpserver "github.com/helixir/research-report-service/internal/server/http"
	"github.com/helixir/research-report-service/internal/steps"
	"github.com/helixir/research-report-service/migrations"
)

const metricsNamespace = "research_report_service"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("service", "research-report-service").Logger()
	logger.Info().Msg("research-report-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(metricsNamespace)
	}

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		if err := migrate(db, cfg.Database.MigrationPath, logger); err != nil {
			return err
		}
	}

	// Repositories.
	checkpointRepo := repository.NewPgCheckpointRepository(db)
	archiveRepo := repository.NewPgArchiveRepository(db)

	// Collaborators.
	provider, err := llm.NewCompleter(llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLM.RetryDelay,
	})
	if err != nil {
		return fmt.Errorf("create LLM completer: %w", err)
	}
	completer := llm.NewInstrumentedCompleter(provider, metrics, logger)
	logger.Info().
		Str("provider", completer.Provider()).
		Str("model", completer.Model()).
		Msg("LLM completer configured")

	searcher := search.NewTavilyClient(search.TavilyConfig{
		APIKey:     cfg.Search.Tavily.APIKey,
		BaseURL:    cfg.Search.Tavily.BaseURL,
		Timeout:    cfg.Search.Tavily.Timeout,
		RateLimit:  cfg.Search.Tavily.RateLimit,
		Burst:      cfg.Search.Tavily.Burst,
		MaxRetries: cfg.Search.Tavily.MaxRetries,
	}, metrics, logger)
	if cfg.Search.Tavily.APIKey == "" {
		logger.Warn().Msg("no Tavily API key configured, research will rely on the fallback searcher")
	}

	var fallback search.TextSearcher
	if cfg.Search.FallbackEnabled {
		ddg, err := search.NewDuckDuckGoFallback(cfg.Search.FallbackMaxResults, metrics, logger)
		if err != nil {
			return fmt.Errorf("create fallback searcher: %w", err)
		}
		fallback = ddg
	}

	// Workflow.
	stepSet := steps.New(completer, searcher, fallback, steps.Config{
		SearchMaxResults:   cfg.Search.Tavily.MaxResults,
		SearchDepth:        search.Depth(cfg.Search.Tavily.Depth),
		SourcesInPrompt:    cfg.Workflow.SourcesInPrompt,
		SectionConcurrency: cfg.Workflow.SectionConcurrency,
	}, metrics, logger)

	graph, err := engine.NewGraph(stepSet.Funcs(), cfg.Workflow.MaxResearchRounds)
	if err != nil {
		return fmt.Errorf("build workflow graph: %w", err)
	}

	var leaser engine.Leaser
	switch cfg.Workflow.LeaseMode {
	case config.LeaseModeLocal:
		leaser = engine.NewLocalLeaser()
	default:
		leaser = engine.NewAdvisoryLeaser(db)
	}

	var publisher engine.Publisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(events.PublisherConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, logger)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close kafka publisher")
			}
		}()
		publisher = kafkaPublisher
	}

	executor := engine.NewExecutor(checkpointRepo, graph, leaser, publisher, engine.Config{
		DefaultMaxRevisions: cfg.Workflow.DefaultMaxRevisions,
		StepTimeout:         cfg.Workflow.StepTimeout,
	}, metrics, logger)

	archiveSvc := archive.NewService(archiveRepo, executor, archive.Config{
		DefaultListLimit: cfg.Archive.DefaultListLimit,
		MaxListLimit:     cfg.Archive.MaxListLimit,
		SummaryLength:    cfg.Archive.SummaryLength,
	}, metrics, logger)

	httpSrv := httpserver.NewServer(httpserver.Config{
		Address:      cfg.Server.HTTPAddress(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
	}, executor, archiveSvc, db, metrics, logger)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	if cfg.Kafka.Enabled && cfg.Kafka.DecisionsTopic != "" {
		listener := events.NewDecisionListener(events.ListenerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.DecisionsTopic,
			GroupID: cfg.Kafka.GroupID,
		}, executor, logger)
		g.Go(func() error {
			defer func() {
				if err := listener.Close(); err != nil {
					logger.Error().Err(err).Msg("failed to close decision listener")
				}
			}()
			if err := listener.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("decision listener error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down research-report-service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("metrics server shutdown error")
			}
		}
		return nil
	})

	logger.Info().
		Str("http_address", cfg.Server.HTTPAddress()).
		Str("lease_mode", cfg.Workflow.LeaseMode).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("research-report-service is ready")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("research-report-service shutdown complete")
	return nil
}

// migrate applies pending migrations, from disk when path is set and from
// the binary otherwise.
func migrate(db *database.DB, path string, logger zerolog.Logger) error {
	var (
		migrator *database.Migrator
		err      error
	)
	if path != "" {
		migrator, err = database.NewMigrator(db, path, logger)
	} else {
		migrator, err = database.NewEmbeddedMigrator(db, migrations.FS, logger)
	}
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
