package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"toolcrib-api/internal/cache"
	"toolcrib-api/internal/config"
	"toolcrib-api/internal/events"
	"toolcrib-api/internal/handler"
	"toolcrib-api/internal/middleware"
	"toolcrib-api/internal/repository"
	"toolcrib-api/internal/router"
	"toolcrib-api/internal/service"
	"toolcrib-api/internal/simulator"
	"toolcrib-api/pkg/logger"
)

// broker is the notifier plus its lifecycle.
type broker interface {
	service.Notifier
	handler.BrokerHealth
	Close() error
}

func main() {
	cfg := config.MustLoad()
	log := logger.Must(logger.New(cfg.App.Name, cfg.App.LogLevel, cfg.App.Environment))
	defer log.Sync()

	log.Info("starting toolcrib api",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment))

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatal("invalid timezone", zap.Error(err))
	}

	// Store
	dialect, err := repository.ParseDialect(cfg.Database.Driver)
	if err != nil {
		log.Fatal("invalid database driver", zap.Error(err))
	}
	dsn := cfg.Database.DSN()
	if dialect == repository.DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			log.Fatal("failed to create data directory", zap.Error(err))
		}
		dsn = repository.SQLiteDSN(cfg.Database.Path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := repository.NewSQLStore(ctx, repository.Options{
		Dialect:         dialect,
		DSN:             dsn,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger.Named(log, "store"))
	cancel()
	if err != nil {
		log.Fatal("failed to initialize store", zap.Error(err))
	}
	defer store.Close()

	// Cache. Redis is optional; fall back to memory when it is unreachable.
	var (
		dedupCache  cache.Cache
		cachePinger handler.Pinger
		cacheType   = "memory"
	)
	if cfg.Cache.Type == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.RedisPrefix,
		})
		cancel()
		if err != nil {
			log.Warn("redis unavailable, using memory cache", zap.Error(err))
		} else {
			dedupCache, cachePinger, cacheType = rc, rc, "redis"
		}
	}
	if dedupCache == nil {
		dedupCache = cache.NewMemoryCache(time.Minute)
	}
	defer dedupCache.Close()

	// Broker
	var (
		notifier     broker = events.Nop{}
		brokerHealth handler.BrokerHealth
	)
	if cfg.Broker.URL != "" {
		pub, err := events.NewPublisher(cfg.Broker.URL, cfg.Broker.Exchange, log)
		if err != nil {
			log.Warn("rabbitmq unavailable, notifications disabled", zap.Error(err))
		} else {
			notifier, brokerHealth = pub, pub
		}
	}
	defer notifier.Close()

	// Services
	recorder := service.NewRecorder(store, log,
		service.WithCache(dedupCache),
		service.WithDedupWindow(cfg.Ingest.DedupWindow),
		service.WithLocation(loc))
	reconciler := service.NewReconciler(store, log)
	ingestor := service.NewIngestor(recorder, reconciler, notifier, log)
	ledger := service.NewLedger(store, log)
	catalog := service.NewCatalogService(store, log)
	locations := service.NewLocationService(store, log)
	assignments := service.NewAssignmentService(store, log)
	status := service.NewStatusService(store)

	// Handlers
	r := router.New(router.Config{
		Handler:           handler.New(cfg.App.Name, cfg.App.Version, store, cachePinger, brokerHealth),
		DetectionHandler:  handler.NewDetectionHandler(ingestor, reconciler, "", log),
		InventoryHandler:  handler.NewInventoryHandler(catalog, ledger, log),
		ToolHandler:       handler.NewToolHandler(catalog, status, log),
		LocationHandler:   handler.NewLocationHandler(locations, log),
		AssignmentHandler: handler.NewAssignmentHandler(assignments, locations, log),
		EventHandler:      handler.NewEventHandler(status, loc, log),
		AdminHandler:      handler.NewAdminHandler(store, string(dialect), cacheType, brokerHealth),
		AuthMiddleware:    middleware.APIKeyAuth(cfg.App.Keys()),
		CORSOrigins:       cfg.Server.CORSOrigins,
		Logger:            log,
	})

	// In-process simulator
	var sim *simulator.Simulator
	if cfg.Simulator.Enabled {
		pool := simulator.Pool{}
		if tools, err := catalog.ListTools(context.Background()); err == nil {
			for _, t := range tools {
				pool.Tools = append(pool.Tools, simulator.ToolRef{ToolID: t.ToolID, Name: t.Name})
			}
		}
		gen := simulator.NewGenerator(pool, cfg.Simulator.OriginIP, time.Now().UnixNano())
		sim, err = simulator.New(simulator.NewIngestSink(ingestor), gen, cfg.Simulator.Schedule, log)
		if err != nil {
			log.Fatal("failed to create simulator", zap.Error(err))
		}
		sim.Start()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop generating events before the pipeline goes away.
	if sim != nil {
		select {
		case <-sim.Stop().Done():
		case <-ctx.Done():
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	log.Info("server stopped")
}
