package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int{23}, cfg.Seasons)
	assert.Equal(t, "https://fbref.com/en/comps/9", cfg.FBrefBaseURL)
	assert.Equal(t, 10*time.Second, cfg.FetchMinDelay)
	assert.Equal(t, 15*time.Second, cfg.FetchMaxDelay)
	assert.Equal(t, 180*time.Second, cfg.FetchRateLimitCooldown)
	assert.Equal(t, 5, cfg.FetchMaxAttempts)
	assert.Equal(t, 2.0, cfg.FetchBackoffMultiplier)
	assert.Equal(t, 1, cfg.FetchWorkers)
	assert.Equal(t, "0 * * * *", cfg.IngestCron)
	assert.Equal(t, 50*time.Minute, cfg.CacheTTLPages)
	assert.Less(t, cfg.CacheTTLPages, time.Hour, "cached pages must expire before the next hourly run")
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Contains(t, cfg.DatabaseDSN(), "dbname=premier_league")
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_MissingPassword(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadWithoutStore(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "")
	t.Setenv("SEASONS", "22")

	cfg, err := LoadWithoutStore()
	require.NoError(t, err)
	assert.Equal(t, []int{22}, cfg.Seasons)

	t.Setenv("FETCH_WORKERS", "0")
	_, err = LoadWithoutStore()
	assert.Error(t, err)
}

func TestLoad_SeasonList(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "secret")
	t.Setenv("SEASONS", "21,22,23")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int{21, 22, 23}, cfg.Seasons)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabasePassword:       "secret",
			Seasons:                []int{23},
			FetchMinDelay:          time.Second,
			FetchMaxDelay:          2 * time.Second,
			FetchMaxAttempts:       5,
			FetchBackoffMultiplier: 2,
			FetchWorkers:           1,
			DBConnectAttempts:      3,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no seasons", func(c *Config) { c.Seasons = nil }},
		{"season out of range", func(c *Config) { c.Seasons = []int{120} }},
		{"delay range reversed", func(c *Config) { c.FetchMinDelay = 3 * time.Second }},
		{"zero attempts", func(c *Config) { c.FetchMaxAttempts = 0 }},
		{"negative rate limit retries", func(c *Config) { c.FetchMaxRateLimitRetries = -1 }},
		{"shrinking backoff", func(c *Config) { c.FetchBackoffMultiplier = 0.5 }},
		{"zero workers", func(c *Config) { c.FetchWorkers = 0 }},
		{"zero connect attempts", func(c *Config) { c.DBConnectAttempts = 0 }},
		{"bad backfill range", func(c *Config) { c.BackfillSeasons = "a-b" }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseSeasonRange(t *testing.T) {
	seasons, err := ParseSeasonRange("18-21")
	require.NoError(t, err)
	assert.Equal(t, []int{18, 19, 20, 21}, seasons)

	seasons, err = ParseSeasonRange("23")
	require.NoError(t, err)
	assert.Equal(t, []int{23}, seasons)

	seasons, err = ParseSeasonRange("22 - 20")
	require.NoError(t, err)
	assert.Equal(t, []int{20, 21, 22}, seasons)

	_, err = ParseSeasonRange("1-2-3")
	assert.Error(t, err)

	_, err = ParseSeasonRange("x")
	assert.Error(t, err)
}
