package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// FBref upstream
	FBrefBaseURL string `envconfig:"FBREF_BASE_URL" default:"https://fbref.com/en/comps/9"`
	Seasons      []int  `envconfig:"SEASONS" default:"23"`

	// Fetching
	FetchTimeout             time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	FetchMinDelay            time.Duration `envconfig:"FETCH_MIN_DELAY" default:"10s"`
	FetchMaxDelay            time.Duration `envconfig:"FETCH_MAX_DELAY" default:"15s"`
	FetchRateLimitCooldown   time.Duration `envconfig:"FETCH_RATE_LIMIT_COOLDOWN" default:"180s"`
	FetchMaxRateLimitRetries int           `envconfig:"FETCH_MAX_RATE_LIMIT_RETRIES" default:"3"`
	FetchMaxAttempts         int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"5"`
	FetchBackoffInitial      time.Duration `envconfig:"FETCH_BACKOFF_INITIAL" default:"2s"`
	FetchBackoffMultiplier   float64       `envconfig:"FETCH_BACKOFF_MULTIPLIER" default:"2"`
	FetchMaxBodyBytes        int64         `envconfig:"FETCH_MAX_BODY_BYTES" default:"8388608"`
	FetchWorkers             int           `envconfig:"FETCH_WORKERS" default:"1"`
	FetchUserAgents          []string      `envconfig:"FETCH_USER_AGENTS"`

	// Database
	DatabaseHost      string        `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort      int           `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName      string        `envconfig:"DATABASE_NAME" default:"premier_league"`
	DatabaseUser      string        `envconfig:"DATABASE_USER" default:"postgres"`
	DatabasePassword  string        `envconfig:"DATABASE_PASSWORD"`
	DatabaseSSLMode   string        `envconfig:"DATABASE_SSL_MODE" default:"disable"`
	DBConnectAttempts int           `envconfig:"DB_CONNECT_ATTEMPTS" default:"5"`
	DBConnectDelay    time.Duration `envconfig:"DB_CONNECT_DELAY" default:"5s"`

	// Redis page cache
	RedisHost     string        `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int           `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheEnabled  bool          `envconfig:"CACHE_ENABLED" default:"true"`
	CacheTTLPages time.Duration `envconfig:"CACHE_TTL_PAGES" default:"50m"`

	// Application
	AppEnv     string        `envconfig:"APP_ENV" default:"development"`
	LogLevel   string        `envconfig:"LOG_LEVEL" default:"info"`
	RunTimeout time.Duration `envconfig:"RUN_TIMEOUT" default:"2h"`

	// Scheduler
	EnableScheduler    bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool   `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	IngestCron         string `envconfig:"INGEST_CRON" default:"0 * * * *"`

	// Feature flags
	EnableFixtures bool `envconfig:"ENABLE_FIXTURES" default:"true"`

	// Ports
	MetricsPort int `envconfig:"METRICS_PORT" default:"9090"`
	APIPort     int `envconfig:"API_PORT" default:"5000"`

	// Backfill range, e.g. "18-23" or "21"
	BackfillSeasons string `envconfig:"BACKFILL_SEASONS" default:""`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if present
func Load() (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithoutStore loads configuration for commands that never touch the
// database, so DATABASE_PASSWORD may be unset.
func LoadWithoutStore() (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}

	if err := cfg.validateFetch(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func process() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if c.DBConnectAttempts < 1 {
		return fmt.Errorf("DB_CONNECT_ATTEMPTS must be at least 1")
	}

	return c.validateFetch()
}

func (c *Config) validateFetch() error {
	if len(c.Seasons) == 0 {
		return fmt.Errorf("SEASONS must list at least one season")
	}
	for _, s := range c.Seasons {
		if err := validSeason(s); err != nil {
			return fmt.Errorf("SEASONS: %w", err)
		}
	}

	if c.FetchMinDelay < 0 || c.FetchMaxDelay < c.FetchMinDelay {
		return fmt.Errorf("FETCH_MIN_DELAY (%s) must be >= 0 and <= FETCH_MAX_DELAY (%s)", c.FetchMinDelay, c.FetchMaxDelay)
	}

	if c.FetchMaxAttempts < 1 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1")
	}

	if c.FetchMaxRateLimitRetries < 0 {
		return fmt.Errorf("FETCH_MAX_RATE_LIMIT_RETRIES must not be negative")
	}

	if c.FetchBackoffMultiplier < 1 {
		return fmt.Errorf("FETCH_BACKOFF_MULTIPLIER must be >= 1")
	}

	if c.FetchWorkers < 1 {
		return fmt.Errorf("FETCH_WORKERS must be at least 1")
	}

	if c.BackfillSeasons != "" {
		if _, err := ParseSeasonRange(c.BackfillSeasons); err != nil {
			return fmt.Errorf("BACKFILL_SEASONS: %w", err)
		}
	}

	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ParseSeasonRange parses "18-23" or "21" into the list of two-digit seasons.
// A reversed range is accepted and swapped.
func ParseSeasonRange(s string) ([]int, error) {
	parts := strings.Split(s, "-")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid season range %q", s)
	}

	bounds := make([]int, 0, 2)
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid season %q: %w", p, err)
		}
		if err := validSeason(n); err != nil {
			return nil, err
		}
		bounds = append(bounds, n)
	}

	from, to := bounds[0], bounds[len(bounds)-1]
	if from > to {
		from, to = to, from
	}

	seasons := make([]int, 0, to-from+1)
	for season := from; season <= to; season++ {
		seasons = append(seasons, season)
	}
	return seasons, nil
}

// season ids are two-digit year offsets; 99 would roll the end year over
func validSeason(s int) error {
	if s < 0 || s > 98 {
		return fmt.Errorf("season %d out of range 0-98", s)
	}
	return nil
}

// MustLoad loads configuration or exits on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
