// Package app wires configuration into the ingestion components shared by
// the binaries.
package app

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/cache"
	"xgform/ingestion/internal/client"
	"xgform/ingestion/internal/config"
	"xgform/ingestion/internal/pipeline"
	"xgform/ingestion/internal/reconcile"
	"xgform/ingestion/internal/repository"
)

// App holds the wired components. Cache is nil when disabled or unreachable.
type App struct {
	Config     *config.Config
	Cache      *cache.RedisCache
	Client     *client.Client
	Connector  *repository.Connector
	Reconciler *reconcile.Reconciler
	Pipeline   *pipeline.Pipeline
}

// New builds the fetch client, page cache, store connector and pipeline.
// No connection to the store is opened until the first reconcile.
func New(cfg *config.Config) *App {
	a := &App{Config: cfg}

	a.Client = client.NewClient(client.OptionsFromConfig(cfg))
	if cfg.CacheEnabled {
		redisCache, err := cache.NewRedisCache(cache.Config{
			Host:     cfg.RedisHost,
			Port:     strconv.Itoa(cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PageTTL:  cfg.CacheTTLPages,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		} else {
			a.Cache = redisCache
			a.Client.WithCache(redisCache)
			log.Info().Str("addr", cfg.RedisAddr()).Msg("Redis page cache connected")
		}
	}

	a.Connector = repository.NewConnector(DatabaseConfig(cfg))
	a.Reconciler = reconcile.New(a.Connector, reconcile.Options{
		ConnectAttempts: cfg.DBConnectAttempts,
		ConnectDelay:    cfg.DBConnectDelay,
	})

	a.Pipeline = pipeline.New(a.Client, a.Reconciler, pipeline.Options{
		Workers:  cfg.FetchWorkers,
		Fixtures: cfg.EnableFixtures,
	})

	return a
}

// Close releases the cache and store connections.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis cache")
		}
	}
	if a.Connector != nil {
		a.Connector.Close()
	}
}

// DatabaseConfig maps the DATABASE_* settings onto the repository config.
func DatabaseConfig(cfg *config.Config) repository.Config {
	return repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}
}

// SetupLogger configures the global zerolog logger from APP_ENV and LOG_LEVEL.
func SetupLogger() {
	// Pretty console logging in development
	if env := os.Getenv("APP_ENV"); env == "" || env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}
