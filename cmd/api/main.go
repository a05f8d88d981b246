// Package main is the entry point for the trip planner API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tripplanner/backend/internal/cache"
	"github.com/tripplanner/backend/internal/config"
	"github.com/tripplanner/backend/internal/generation"
	"github.com/tripplanner/backend/internal/handler"
	"github.com/tripplanner/backend/internal/middleware"
	"github.com/tripplanner/backend/internal/repo"
	"github.com/tripplanner/backend/internal/service"
	"github.com/tripplanner/backend/migrations"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply pending Postgres migrations before serving")
	flag.Parse()

	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger, *migrate); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Store ------------------------------------------------------------
	store, closeStore, err := openStore(ctx, cfg, migrate)
	if err != nil {
		return err
	}
	defer closeStore()

	// --- Cache ------------------------------------------------------------
	var c cache.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, cache.KeyPrefix)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		c = rc
		slog.Info("redis cache enabled")
	} else {
		c = cache.NewMemory(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	store = repo.NewCachedItineraryRepo(store, c, cfg.CacheTTL, logger)

	// --- Generation -------------------------------------------------------
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	prompts, err := generation.LoadPrompts()
	if err != nil {
		return err
	}
	policy, err := generation.ParsePersistencePolicy(cfg.PersistencePolicy)
	if err != nil {
		return err
	}

	itineraries := service.NewItineraryService(store, logger)
	generator := generation.NewService(provider, prompts, itineraries, policy, logger)
	server := handler.NewServer(itineraries, generator, service.NewExportService(store), logger)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → body limit → owner resolution.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Use(middleware.NewOwnerResolver([]byte(cfg.JWTSecret)))
	server.Register(r, middleware.NewRateLimiter(cfg.GenerateRatePerMinute).Limit)

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout is lifted per request by the event stream handler.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.StoreDriver, "provider", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	// Give in-flight requests up to 15 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// openStore connects the configured itinerary store. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg config.Config, migrate bool) (repo.ItineraryRepo, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		if err := client.Ping(ctx, nil); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		if err := repo.EnsureMongoIndexes(ctx, db); err != nil {
			closeFn()
			return nil, nil, err
		}
		slog.Info("mongo connection established", "database", cfg.MongoDatabase)
		return repo.NewMongoItineraryRepo(db), closeFn, nil

	default:
		// New() does not open connections immediately; the first query does.
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("create database pool: %w", err)
		}
		// Verify the DB is reachable before accepting traffic.
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		slog.Info("database connection established")

		if migrate {
			if err := runMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repo.NewItineraryRepo(pool), pool.Close, nil
	}
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// goose needs database/sql, not a pgx pool.
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("migrations applied", "count", len(results))
	return nil
}

func newProvider(ctx context.Context, cfg config.Config) (generation.Provider, error) {
	if cfg.LLMProvider == config.ProviderGemini {
		return generation.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	return generation.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel)
}
