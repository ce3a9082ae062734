package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xgform/ingestion/internal/config"
)

func TestBackfillSeasons(t *testing.T) {
	cfg := &config.Config{Seasons: []int{22, 23}}

	seasons, err := backfillSeasons(cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{22, 23}, seasons)

	cfg.BackfillSeasons = "18-20"
	seasons, err = backfillSeasons(cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{18, 19, 20}, seasons)

	cfg.BackfillSeasons = "next"
	_, err = backfillSeasons(cfg)
	assert.Error(t, err)
}
