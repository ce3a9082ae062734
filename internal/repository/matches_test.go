//go:build integration

package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xgform/ingestion/internal/models"
)

func seedTeams(t *testing.T, db *Database, names ...string) models.TeamIDs {
	ctx := context.Background()
	require.NoError(t, db.Teams.InsertNames(ctx, names))
	ids, err := db.Teams.IDMap(ctx)
	require.NoError(t, err)
	return ids
}

func testMatch(date time.Time, teamID, opponentID int, goals, oppGoals int32) *models.PersistedMatch {
	result := int32(1)
	switch {
	case goals > oppGoals:
		result = 3
	case goals < oppGoals:
		result = 0
	}
	return &models.PersistedMatch{
		Date:          date,
		TeamID:        teamID,
		OpponentID:    opponentID,
		Goals:         sql.NullInt32{Int32: goals, Valid: true},
		OpponentGoals: sql.NullInt32{Int32: oppGoals, Valid: true},
		XG:            sql.NullFloat64{Float64: 1.4, Valid: true},
		XGA:           sql.NullFloat64{Float64: 0.6, Valid: true},
		Status:        "played",
		Result:        sql.NullInt32{Int32: result, Valid: true},
		Location:      "home",
	}
}

func TestMatchRepository_UpsertOverwrite(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	ids := seedTeams(t, db, "Arsenal", "Chelsea")
	date := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	inserted, updated, err := db.Matches.UpsertBatch(ctx, []*models.PersistedMatch{
		testMatch(date, ids["Arsenal"], ids["Chelsea"], 2, 1),
	})
	require.NoError(t, err, "Should insert match")
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 0, updated)

	// Same key, new score
	inserted, updated, err = db.Matches.UpsertBatch(ctx, []*models.PersistedMatch{
		testMatch(date, ids["Arsenal"], ids["Chelsea"], 3, 1),
	})
	require.NoError(t, err, "Should update match")
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 1, updated)

	got, err := db.Matches.GetByKey(ctx, models.MatchKey{Date: date, TeamID: ids["Arsenal"], OpponentID: ids["Chelsea"]})
	require.NoError(t, err)
	assert.Equal(t, int32(3), got.Goals.Int32)
	assert.False(t, got.RollingXG.Valid, "Null aggregates stay null")

	count, err := db.Matches.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "Upsert must not duplicate rows")
}

func TestMatchRepository_ListByTeam(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	ids := seedTeams(t, db, "Arsenal", "Chelsea", "Everton")
	base := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)

	batch := []*models.PersistedMatch{
		testMatch(base, ids["Arsenal"], ids["Chelsea"], 1, 0),
		testMatch(base.AddDate(0, 0, 7), ids["Arsenal"], ids["Everton"], 0, 0),
		testMatch(base.AddDate(0, 0, 14), ids["Chelsea"], ids["Everton"], 2, 2),
	}
	_, _, err := db.Matches.UpsertBatch(ctx, batch)
	require.NoError(t, err)

	arsenal, err := db.Matches.ListByTeam(ctx, "Arsenal", 10)
	require.NoError(t, err)
	require.Len(t, arsenal, 2)
	assert.Equal(t, "Everton", arsenal[0].Opponent, "Newest first")
	assert.Equal(t, "Chelsea", arsenal[1].Opponent)

	all, err := db.Matches.ListByTeam(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2, "Limit should apply")
}

func TestMatchRepository_TeamStats(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	ids := seedTeams(t, db, "Arsenal", "Chelsea", "Fulham")
	base := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := db.Matches.UpsertBatch(ctx, []*models.PersistedMatch{
		testMatch(base, ids["Arsenal"], ids["Chelsea"], 3, 1),
		testMatch(base.AddDate(0, 0, 7), ids["Arsenal"], ids["Chelsea"], 1, 1),
	})
	require.NoError(t, err)

	stats, err := db.Matches.TeamStats(ctx, "Arsenal")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MatchesPlayed)
	require.NotNil(t, stats.AvgGoalsScored)
	assert.InDelta(t, 2.0, *stats.AvgGoalsScored, 1e-9)
	assert.InDelta(t, 1.0, *stats.AvgGoalsConceded, 1e-9)
	assert.InDelta(t, 2.0, *stats.RecentForm, 1e-9)

	empty, err := db.Matches.TeamStats(ctx, "Fulham")
	require.NoError(t, err)
	assert.Zero(t, empty.MatchesPlayed)
	assert.Nil(t, empty.AvgXG)

	_, err = db.Matches.TeamStats(ctx, "Nobody")
	assert.Error(t, err)
}

func TestFixtureRepository_UpsertBatch(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	ids := seedTeams(t, db, "Arsenal", "Everton")
	date := time.Date(2099, 5, 19, 0, 0, 0, 0, time.UTC)
	fixture := models.Fixture{Date: date, Season: 98, HomeTeamID: ids["Arsenal"], AwayTeamID: ids["Everton"]}

	created, err := db.Fixtures.UpsertBatch(ctx, []models.Fixture{fixture})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = db.Fixtures.UpsertBatch(ctx, []models.Fixture{fixture})
	require.NoError(t, err)
	assert.Equal(t, 0, created, "Existing fixture is left alone")

	upcoming, err := db.Fixtures.ListUpcoming(ctx, date.AddDate(0, 0, -1), 10)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Arsenal", upcoming[0].HomeTeam)
	assert.Equal(t, "Everton", upcoming[0].AwayTeam)
}
