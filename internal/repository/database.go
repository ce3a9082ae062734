package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/metrics"
	"xgform/ingestion/internal/models"
	"xgform/ingestion/internal/reconcile"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Database holds the database connection pool and provides access to repositories
type Database struct {
	Pool *pgxpool.Pool

	// Repositories
	Teams    *TeamRepository
	Matches  *MatchRepository
	Fixtures *FixtureRepository
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDatabase creates a new database connection pool and initializes repositories
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	// Build connection string
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Ingestion is one writer plus the query API; keep the pool small
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Successfully connected to database")

	db := &Database{
		Pool: pool,
	}

	db.Teams = &TeamRepository{db: db}
	db.Matches = &MatchRepository{db: db}
	db.Fixtures = &FixtureRepository{db: db}

	return db, nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// PoolStats returns database pool statistics and publishes them as gauges
func (db *Database) PoolStats() map[string]interface{} {
	stat := db.Pool.Stat()
	metrics.UpdateDBConnectionStats(stat.AcquiredConns(), stat.IdleConns())

	return map[string]interface{}{
		"total_conns":    stat.TotalConns(),
		"acquired_conns": stat.AcquiredConns(),
		"idle_conns":     stat.IdleConns(),
		"max_conns":      stat.MaxConns(),
	}
}

// The methods below let *Database serve as the reconciler's store.

// Ping verifies the pool can reach the server
func (db *Database) Ping(ctx context.Context) error {
	return db.Health(ctx)
}

// InsertTeams adds unseen team names
func (db *Database) InsertTeams(ctx context.Context, names []string) error {
	return db.Teams.InsertNames(ctx, names)
}

// TeamIDs returns the full name to id mapping
func (db *Database) TeamIDs(ctx context.Context) (models.TeamIDs, error) {
	return db.Teams.IDMap(ctx)
}

// UpsertMatches writes matches rows in one transaction
func (db *Database) UpsertMatches(ctx context.Context, rows []*models.PersistedMatch) (int, int, error) {
	return db.Matches.UpsertBatch(ctx, rows)
}

// UpsertFixtures records scheduled matches
func (db *Database) UpsertFixtures(ctx context.Context, fixtures []models.Fixture) (int, error) {
	return db.Fixtures.UpsertBatch(ctx, fixtures)
}

// Connector lazily opens one Database and hands it out on every Connect.
// A failed open is retried on the next call.
type Connector struct {
	cfg Config

	mu sync.Mutex
	db *Database
}

// NewConnector creates a connector for cfg
func NewConnector(cfg Config) *Connector {
	return &Connector{cfg: cfg}
}

// Connect implements reconcile.Dialer
func (c *Connector) Connect(ctx context.Context) (reconcile.Store, error) {
	db, err := c.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Database returns the shared Database, opening it on first use
func (c *Connector) Database(ctx context.Context) (*Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	db, err := NewDatabase(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

// Current returns the open Database, or nil before the first Connect.
func (c *Connector) Current() *Database {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

// Close closes the pool if one was opened
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
}

var _ reconcile.Store = (*Database)(nil)
var _ reconcile.Dialer = (*Connector)(nil)
