package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Rrens/filechat/internal/api"
	"github.com/Rrens/filechat/internal/backup"
	"github.com/Rrens/filechat/internal/config"
	"github.com/Rrens/filechat/internal/domain"
	"github.com/Rrens/filechat/internal/github"
	"github.com/Rrens/filechat/internal/llm"
	"github.com/Rrens/filechat/internal/llm/anthropic"
	"github.com/Rrens/filechat/internal/llm/deepseek"
	"github.com/Rrens/filechat/internal/llm/gemini"
	"github.com/Rrens/filechat/internal/llm/ollama"
	"github.com/Rrens/filechat/internal/llm/openai"
	"github.com/Rrens/filechat/internal/repository/bolt"
	"github.com/Rrens/filechat/internal/repository/mongo"
	"github.com/Rrens/filechat/internal/repository/postgres"
	"github.com/Rrens/filechat/internal/repository/redis"
	"github.com/Rrens/filechat/internal/repository/sqldb"
	"github.com/Rrens/filechat/internal/security"
	"github.com/Rrens/filechat/internal/service"
	"github.com/Rrens/filechat/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logFile, err := telemetry.SetupLogger(cfg.Logging, cfg.Server.Production())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logFile.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTelemetry, err := telemetry.InitOTel(ctx, cfg.Metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting filechat server")

	for _, dir := range []string{cfg.Upload.Dir, cfg.Database.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Failed to create directory")
		}
	}

	// Initialize database
	store, sqlDB, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open conversation store")
	}
	defer closeStore()

	deps := api.Dependencies{Config: cfg}

	// Backup gate is only meaningful for the SQLite file
	var gate *backup.Gate
	if sqlDB != nil && sqlDB.Driver() == config.DriverSQLite {
		g, closeGate, err := newGate(ctx, cfg, sqlDB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up backups")
		}
		if g != nil {
			defer closeGate()
			gate = g
			deps.Gate = g
		}
	}

	if gate != nil && cfg.Backup.Enabled {
		if _, err := gate.Restore(ctx); err != nil {
			log.Error().Err(err).Msg("Startup restore failed, continuing with local database")
		}
		go gate.Run(ctx, cfg.Backup.Interval)
	}

	// Redis is optional: history cache and per-session rate limit
	turns := store
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		cache := redis.NewHistoryCache(store, redisClient, cfg.Redis.HistoryTTL)
		turns = cache
		deps.Cache = cache
		deps.Limiter = redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
	}

	llmRouter := newLLMRouter(cfg.LLM)

	chat := service.NewChatService(turns, llmRouter, cfg.Database.HistoryLimit, cfg.LLM.MaxTokens).
		WithSystemPrompt(cfg.LLM.SystemPrompt)

	gh := github.NewClient(cfg.GitHub)
	if gh.IsConfigured() {
		chat.WithEnricher(gh)
		deps.GitHub = gh
	}

	deps.Chat = chat
	deps.Store = turns
	deps.LLM = llmRouter

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if gate != nil && cfg.Backup.Enabled {
		if _, err := gate.Sync(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Final backup failed")
		}
	}

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Telemetry shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

// openStore opens and migrates the configured conversation store. sqlDB is
// non-nil for the database/sql drivers.
func openStore(ctx context.Context, cfg *config.Config) (domain.TurnRepository, *sqldb.DB, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite, config.DriverMySQL:
		db, err := sqldb.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return sqldb.NewTurnRepository(db), db, func() { db.Close() }, nil

	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return postgres.NewTurnRepository(db), nil, db.Close, nil

	case config.DriverMongo:
		repo, err := mongo.Connect(ctx, cfg.Database.Mongo)
		if err != nil {
			return nil, nil, nil, err
		}
		return repo, nil, func() { repo.Close() }, nil
	}

	return nil, nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
}

// newGate builds the backup gate. It returns a nil gate when the GCS
// backend has no bucket configured.
func newGate(ctx context.Context, cfg *config.Config, db *sqldb.DB) (*backup.Gate, func(), error) {
	var (
		store backup.BlobStore
		err   error
	)

	switch cfg.Backup.Backend {
	case "local":
		store, err = backup.NewLocalStore(cfg.Backup.LocalDir)
	default:
		if cfg.Backup.Bucket == "" {
			log.Warn().Msg("GCS bucket not configured, backups disabled")
			return nil, nil, nil
		}
		store, err = backup.NewGCSStore(ctx, cfg.Backup.Bucket, cfg.Backup.CredentialsFile)
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.Backup.EncryptionKey != "" {
		enc, err := security.NewEncryptorFromSecret(cfg.Backup.EncryptionKey)
		if err != nil {
			return nil, nil, err
		}
		store = backup.NewEncryptedStore(store, enc)
	}

	metaPath := cfg.Backup.MetadataPath
	if metaPath == "" {
		metaPath = filepath.Join(cfg.Database.DataDir, "backups.bolt")
	}
	records, err := bolt.Open(metaPath)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("backend", cfg.Backup.Backend).
		Bool("encrypted", cfg.Backup.EncryptionKey != "").
		Str("metadata", metaPath).
		Msg("Backups configured")

	return backup.NewGate(db, store, records), func() { records.Close() }, nil
}

// newLLMRouter registers every provider that has credentials
func newLLMRouter(cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.DefaultProvider)

	if cfg.Anthropic.APIKey != "" {
		router.RegisterProvider(llm.Instrument(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.BaseURL, cfg.Timeout)))
	}
	if cfg.OpenAI.APIKey != "" {
		router.RegisterProvider(llm.Instrument(openai.NewProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, cfg.Timeout)))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.RegisterProvider(llm.Instrument(deepseek.NewProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model, cfg.Timeout)))
	}
	if cfg.Ollama.Host != "" {
		log.Info().Str("host", cfg.Ollama.Host).Msg("Registering Ollama provider")
		router.RegisterProvider(llm.Instrument(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel)))
	}
	if cfg.Gemini.APIKey != "" {
		router.RegisterProvider(llm.Instrument(gemini.NewProvider(cfg.Gemini)))
	}

	if _, err := router.Default(); err != nil {
		log.Warn().Err(err).Msg("Default LLM provider unavailable, chat requests will fail")
	}

	return router
}
