package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"askmemo-backend/internal/config"
	"askmemo-backend/internal/database"
	"askmemo-backend/internal/handlers"
	"askmemo-backend/internal/metrics"
	"askmemo-backend/internal/middleware"
	"askmemo-backend/internal/repository"
	"askmemo-backend/internal/router"
	"askmemo-backend/internal/services"
	"askmemo-backend/internal/websocket"
	"askmemo-backend/internal/worker"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Info().Msg("starting askmemo")

	if err := run(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatal().Strs("missing", cfgErr.Missing).Strs("invalid", cfgErr.Invalid).Msg("configuration incomplete, refusing to start")
		}
		log.Fatal().Err(err).Msg("askmemo stopped")
	}
}

// run wires the server and blocks until it shuts down. Every resource opened
// here is released by a deferred close before run returns.
func run() error {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg)
	log.Info().
		Str("provider", cfg.CompletionProvider).
		Str("model", cfg.CompletionModel).
		Str("record_store", cfg.RecordStore).
		Msg("configuration loaded")

	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.SessionSecret = secret
		log.Warn().Msg("SESSION_SECRET not set, sessions will not survive a restart")
	}

	collector := metrics.NewCollector("askmemo")

	// ──── Step 2: Session state (Redis when configured) ────
	var (
		sessions services.SessionStore
		pubsub   *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("Redis connection failed: %w", err)
		}
		defer redisClients.Close()
		sessions = repository.NewRedisSessionRepo(redisClients.Sessions, cfg.SessionTTL)
		pubsub = redisClients.PubSub
		log.Info().Msg("Redis connected, sessions stored in Redis")
	} else {
		memorySessions := repository.NewMemorySessionRepo(cfg.SessionTTL)
		sessions = memorySessions
		sweeper := worker.NewSweeper(memorySessions, time.Minute)
		sweeper.Start()
		defer sweeper.Stop()
		log.Info().Msg("REDIS_URL not set, sessions kept in memory")
	}

	// ──── Step 3: Completion client ────
	llm, err := services.NewCompletionService(cfg)
	if err != nil {
		return fmt.Errorf("completion client initialization failed: %w", err)
	}
	defer llm.Close()

	// ──── Step 4: Record store ────
	var store services.RecordStore
	switch cfg.RecordStore {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("PostgreSQL connection failed: %w", err)
		}
		defer pool.Close()

		if err := database.RunMigrations(pool, database.Migrations, "migrations"); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		store = repository.NewRecordRepo(pool)
		log.Info().Str("table", cfg.RecordsTable).Msg("records stored in PostgreSQL")
	default:
		store = services.NewNotionService(cfg.NotionAPIKey, cfg.NotionRatingProperty)
		log.Info().Str("rating_property", cfg.NotionRatingProperty).Msg("records stored in Notion")
	}

	memoService := services.NewMemoService(sessions, llm, store, collector, services.MemoOptions{
		Model:           cfg.CompletionModel,
		DatabaseID:      cfg.RecordDatabaseID(),
		VerifyDatabase:  cfg.VerifyDatabase,
		DefaultUserName: cfg.DefaultUserName,
	})

	// ──── Step 5: HTTP surface ────
	secureCookies := !cfg.IsDevelopment()
	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret, cfg.SessionTTL, secureCookies)
	wsHub := websocket.NewHub(pubsub, cfg.FrontendURL, collector)
	askLimiter := middleware.NewRateLimiter(cfg.AskRateLimit, time.Minute)
	defer askLimiter.Stop()

	memoHandler := handlers.NewMemoHandler(memoService, wsHub)
	pageHandler, err := handlers.NewPageHandler(memoService, wsHub, cfg.DefaultUserName, secureCookies)
	if err != nil {
		return fmt.Errorf("failed to parse page templates: %w", err)
	}

	r := router.New(
		sessionAuth,
		memoHandler,
		pageHandler,
		wsHub,
		collector,
		askLimiter,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// completion calls can take a while
		WriteTimeout: cfg.CompletionTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	log.Info().
		Str("page", fmt.Sprintf("http://localhost:%s/", cfg.Port)).
		Str("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)).
		Str("ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port)).
		Msg("askmemo ready")

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
