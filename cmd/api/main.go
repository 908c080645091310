package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-triage/internal/api/http"
	"github.com/spec-kit/ticket-triage/internal/api/http/handlers"
	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/embedding"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/knowledge"
	"github.com/spec-kit/ticket-triage/internal/llm"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/persistence"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/service"
	"github.com/spec-kit/ticket-triage/internal/sheet"
	"github.com/spec-kit/ticket-triage/internal/triage"
	"github.com/spec-kit/ticket-triage/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	retriever := newRetriever(ctx, cfg, logger)

	model, err := llm.NewModel(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("failed to init language model", zap.Error(err))
	}
	logger.Info("language model ready", zap.String("model", model.Name()))

	store, closeStore, pg := openRowStore(ctx, cfg, logger)
	defer closeStore()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	ticketRepo := repository.NewTicketRepository(store, repository.RetryOptions{
		Attempts: cfg.Pipeline.StoreAttempts,
		Backoff:  cfg.Pipeline.StoreBackoff(),
	}, logger)

	var pending queue.SaveQueue
	if redis != nil {
		pending = queue.NewRedisQueue(redis.Client, cfg.Redis.QueueKey)
	} else {
		pending = queue.NewMemoryQueue()
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Retriever: retriever,
		Generator: triage.NewGenerator(model, triage.GeneratorOptions{
			Retries: cfg.Pipeline.GenerationRetries,
			Backoff: cfg.Pipeline.GenerationBackoff(),
		}, logger, metrics),
		Classifier: triage.NewClassifier(model, logger, metrics),
		Router:     triage.NewRouter(model, logger, metrics),
		TicketRepo: ticketRepo,
		SaveQueue:  pending,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
		TopK:       cfg.Knowledge.TopK,
	})
	dashboardService := service.NewDashboardService(ticketRepo)

	saveRetry := worker.NewSaveRetryWorker(worker.SaveRetryDependencies{
		Queue:      pending,
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Interval:   cfg.Pipeline.RetryWorkerInterval(),
		Logger:     logger,
		Metrics:    metrics,
	})
	runner := worker.Start(ctx, notifications, saveRetry)
	defer runner.Stop()

	checks := []handlers.Check{
		{Name: "knowledge_index", Ping: func(context.Context) error { return retriever.Ready() }},
		{Name: "row_store", Ping: ticketRepo.Ping},
		{Name: "redis", Optional: redis == nil, Ping: redis.Ping},
	}
	if pg != nil {
		checks = append(checks, handlers.Check{Name: "postgres", Ping: pg.Pool.Ping})
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Tickets:   handlers.NewTicketsHandler(ticketService),
		Dashboard: handlers.NewDashboardHandler(dashboardService),
		Metrics:   metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// newRetriever loads the knowledge index. A missing index is not fatal:
// the service starts and rejects submissions until the index is built.
func newRetriever(ctx context.Context, cfg *config.Config, logger *zap.Logger) *knowledge.Retriever {
	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		logger.Error("embedding engine unavailable", zap.Error(err))
		engine = nil
	}

	index, err := knowledge.LoadIndex(ctx, cfg.Knowledge.IndexPath)
	if err != nil {
		logger.Error("knowledge index unavailable; run the ingestion job first",
			zap.String("path", cfg.Knowledge.IndexPath), zap.Error(err))
		index = nil
	} else {
		logger.Info("knowledge index loaded",
			zap.String("path", cfg.Knowledge.IndexPath),
			zap.Int("passages", index.Len()),
			zap.Int("dimensions", index.Dimensions()))
	}

	return knowledge.NewRetriever(index, engine, knowledge.RetrieverOptions{
		TopK:     cfg.Knowledge.TopK,
		MinScore: cfg.Knowledge.MinScore,
	}, logger)
}

// openRowStore opens the configured backend. The returned postgres handle is
// nil unless the postgres backend is selected.
func openRowStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sheet.RowStore, func(), *persistence.Postgres) {
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store, err := sheet.NewPostgresStore(ctx, pg.PoolHandle(), cfg.Store.SheetName, repository.Columns)
		if err != nil {
			logger.Fatal("failed to open postgres row store", zap.Error(err))
		}
		return store, pg.Close, pg
	case "memory":
		logger.Warn("using in-memory row store; tickets are lost on restart")
		return sheet.NewMemoryStore(repository.Columns), func() {}, nil
	default:
		store, err := sheet.OpenXLSX(cfg.Store.XLSXPath, cfg.Store.SheetName, repository.Columns)
		if err != nil {
			logger.Fatal("failed to open xlsx row store", zap.String("path", cfg.Store.XLSXPath), zap.Error(err))
		}
		logger.Info("xlsx row store ready", zap.String("path", cfg.Store.XLSXPath))
		return store, func() { _ = store.Close() }, nil
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
