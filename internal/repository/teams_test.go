//go:build integration

package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamRepository_InsertNames(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	err := db.Teams.InsertNames(ctx, []string{"Arsenal", "Chelsea"})
	require.NoError(t, err, "Should insert teams")

	ids, err := db.Teams.IDMap(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	arsenalID := ids["Arsenal"]

	// Inserting again keeps the original ids
	err = db.Teams.InsertNames(ctx, []string{"Arsenal", "Everton"})
	require.NoError(t, err, "Should tolerate existing names")

	ids, err = db.Teams.IDMap(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Equal(t, arsenalID, ids["Arsenal"], "Existing id must not change")

	count, err := db.Teams.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestTeamRepository_GetByName(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	require.NoError(t, db.Teams.InsertNames(ctx, []string{"Fulham"}))

	team, err := db.Teams.GetByName(ctx, "Fulham")
	require.NoError(t, err)
	assert.Equal(t, "Fulham", team.Name)
	assert.NotZero(t, team.ID)

	_, err = db.Teams.GetByName(ctx, "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTeamRepository_List(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	require.NoError(t, db.Teams.InsertNames(ctx, []string{"Wolves", "Brentford", "Luton Town"}))

	teams, err := db.Teams.List(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 3)
	assert.Equal(t, "Brentford", teams[0].Name, "Teams should be ordered by name")
	assert.Equal(t, "Wolves", teams[2].Name)
}
