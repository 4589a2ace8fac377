package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/pagerating/internal/adapter/httpserver"
	"github.com/pscheid92/pagerating/internal/adapter/localstore"
	"github.com/pscheid92/pagerating/internal/adapter/metrics"
	"github.com/pscheid92/pagerating/internal/adapter/postgres"
	"github.com/pscheid92/pagerating/internal/adapter/redis"
	"github.com/pscheid92/pagerating/internal/adapter/tally"
	"github.com/pscheid92/pagerating/internal/adapter/websocket"
	"github.com/pscheid92/pagerating/internal/app"
	"github.com/pscheid92/pagerating/internal/cache"
	"github.com/pscheid92/pagerating/internal/domain"
	"github.com/pscheid92/pagerating/internal/platform/config"
	"github.com/pscheid92/pagerating/internal/platform/logging"
)

// storageBackend is the durable medium chosen by STORAGE_BACKEND.
type storageBackend interface {
	domain.StorageProvider
	Ping(ctx context.Context) error
}

func runGracefulShutdown(srv *httpserver.Server, stopEviction func(), hub *websocket.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopEviction()
		hub.Stop()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, m *metrics.StorageMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, m)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(cfg *config.Config, m *metrics.StorageMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// setupStorage opens the configured medium. The returned func releases it.
func setupStorage(cfg *config.Config, m *metrics.StorageMetrics) (storageBackend, func()) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		slog.Warn("Using in-memory storage, cached tallies are lost on restart")
		return localstore.NewMemoryProvider(), func() {}
	case config.StorageRedis:
		client := setupRedis(cfg, m)
		return redis.NewStorageProvider(client), func() { _ = client.Close() }
	case config.StoragePostgres:
		pool := setupDB(cfg, m)
		return postgres.NewStorageProvider(pool), pool.Close
	default:
		provider, err := localstore.NewFileProvider(cfg.StorageDir, m)
		if err != nil {
			slog.Error("Failed to open storage directory", "dir", cfg.StorageDir, "error", err)
			os.Exit(1)
		}
		return provider, func() {}
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "storage", cfg.StorageBackend)

	reg := metrics.NewRegistry()
	var (
		cacheMetrics   = metrics.NewCacheMetrics(reg)
		storageMetrics = metrics.NewStorageMetrics(reg)
		remoteMetrics  = metrics.NewRemoteMetrics(reg)
		sessionMetrics = metrics.NewSessionMetrics(reg)
		wsMetrics      = metrics.NewWebSocketMetrics(reg)
		httpMetrics    = metrics.NewHTTPMetrics(reg)
	)

	storage, closeStorage := setupStorage(cfg, storageMetrics)
	defer closeStorage()

	tallyClient, err := tally.NewClient(cfg.TallyEndpoint,
		tally.WithTimeout(cfg.RequestTimeout),
		tally.WithMetrics(remoteMetrics),
	)
	if err != nil {
		slog.Error("Failed to create tally client", "error", err)
		os.Exit(1)
	}

	caches := func(profileID string) domain.CacheStore {
		return cache.NewStore(storage.ForProfile(profileID), clock,
			cache.WithKey(cfg.CacheKey),
			cache.WithTTL(cfg.CacheTTL),
			cache.WithMetrics(cacheMetrics),
		)
	}
	clients := func(profileID string) domain.TallyClient {
		return tallyClient.WithClientID(profileID)
	}

	hub := websocket.NewHub(wsMetrics)

	svc := app.NewService(caches, clients, clock,
		app.WithSessionRenderer(hub),
		app.WithRequestTimeout(cfg.RequestTimeout),
		app.WithIdleTTL(cfg.SessionIdleTTL),
		app.WithSessionMetrics(sessionMetrics),
	)
	stopEviction := svc.StartEvictionTimer(app.DefaultEvictInterval)

	srv := httpserver.NewServer(cfg, svc, hub,
		httpserver.WithMetrics(metrics.Handler(reg), httpMetrics),
		httpserver.WithCheckOrigin(websocket.NewCheckOrigin(!cfg.IsProduction())),
		httpserver.WithHealthChecks(
			httpserver.HealthCheck{Name: "storage", Check: storage.Ping},
			httpserver.HealthCheck{Name: "tally", Check: tallyClient.Healthy},
		),
	)

	done := runGracefulShutdown(srv, stopEviction, hub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
