package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/metrics"
	"xgform/ingestion/internal/models"
)

// MatchRepository handles matches table operations
type MatchRepository struct {
	db *Database
}

// matchColumns is the COPY column order for the staging table.
var matchColumns = []string{
	"date", "team_id", "opponent_id", "goals", "opponent_goals", "xg", "xga",
	"status", "result", "location",
	"rolling_xg", "rolling_xga", "rolling_xg_diff", "rolling_xga_diff",
	"form_rolling_5", "form_rolling_10", "opponent_form_rolling_3", "opponent_form_rolling_6",
}

const createMatchStagingSQL = `
	CREATE TEMP TABLE matches_staging (
		date                    DATE NOT NULL,
		team_id                 INTEGER NOT NULL,
		opponent_id             INTEGER NOT NULL,
		goals                   INTEGER,
		opponent_goals          INTEGER,
		xg                      DOUBLE PRECISION,
		xga                     DOUBLE PRECISION,
		status                  TEXT NOT NULL,
		result                  INTEGER,
		location                TEXT NOT NULL,
		rolling_xg              DOUBLE PRECISION,
		rolling_xga             DOUBLE PRECISION,
		rolling_xg_diff         DOUBLE PRECISION,
		rolling_xga_diff        DOUBLE PRECISION,
		form_rolling_5          DOUBLE PRECISION,
		form_rolling_10         DOUBLE PRECISION,
		opponent_form_rolling_3 DOUBLE PRECISION,
		opponent_form_rolling_6 DOUBLE PRECISION
	) ON COMMIT DROP
`

// xmax is zero only for freshly inserted tuples
const upsertFromStagingSQL = `
	INSERT INTO matches (
		date, team_id, opponent_id, goals, opponent_goals, xg, xga,
		status, result, location,
		rolling_xg, rolling_xga, rolling_xg_diff, rolling_xga_diff,
		form_rolling_5, form_rolling_10, opponent_form_rolling_3, opponent_form_rolling_6
	)
	SELECT
		date, team_id, opponent_id, goals, opponent_goals, xg, xga,
		status, result, location,
		rolling_xg, rolling_xga, rolling_xg_diff, rolling_xga_diff,
		form_rolling_5, form_rolling_10, opponent_form_rolling_3, opponent_form_rolling_6
	FROM matches_staging
	ON CONFLICT (date, team_id, opponent_id) DO UPDATE SET
		goals = EXCLUDED.goals,
		opponent_goals = EXCLUDED.opponent_goals,
		xg = EXCLUDED.xg,
		xga = EXCLUDED.xga,
		status = EXCLUDED.status,
		result = EXCLUDED.result,
		location = EXCLUDED.location,
		rolling_xg = EXCLUDED.rolling_xg,
		rolling_xga = EXCLUDED.rolling_xga,
		rolling_xg_diff = EXCLUDED.rolling_xg_diff,
		rolling_xga_diff = EXCLUDED.rolling_xga_diff,
		form_rolling_5 = EXCLUDED.form_rolling_5,
		form_rolling_10 = EXCLUDED.form_rolling_10,
		opponent_form_rolling_3 = EXCLUDED.opponent_form_rolling_3,
		opponent_form_rolling_6 = EXCLUDED.opponent_form_rolling_6
	RETURNING (xmax = 0) AS inserted
`

// UpsertBatch writes rows in a single transaction: COPY into a temporary
// staging table, then one INSERT ... ON CONFLICT over the natural key.
// Rows must not repeat a key within the batch.
func (r *MatchRepository) UpsertBatch(ctx context.Context, rows []*models.PersistedMatch) (inserted, updated int, err error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.RecordDBQuery("upsert", "matches", status, time.Since(start).Seconds())
	}()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, createMatchStagingSQL); err != nil {
		return 0, 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"matches_staging"},
		matchColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return matchValues(rows[i]), nil
		}),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to copy into staging table: %w", err)
	}

	result, err := tx.Query(ctx, upsertFromStagingSQL)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert matches: %w", err)
	}
	for result.Next() {
		var fresh bool
		if err := result.Scan(&fresh); err != nil {
			result.Close()
			return 0, 0, fmt.Errorf("failed to scan upsert result: %w", err)
		}
		if fresh {
			inserted++
		} else {
			updated++
		}
	}
	result.Close()
	if err := result.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to upsert matches: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit upsert: %w", err)
	}

	log.Debug().
		Int64("staged", copied).
		Int("inserted", inserted).
		Int("updated", updated).
		Dur("duration", time.Since(start)).
		Msg("Matches upserted")

	return inserted, updated, nil
}

func matchValues(m *models.PersistedMatch) []any {
	return []any{
		m.Date, m.TeamID, m.OpponentID,
		nullInt(m.Goals), nullInt(m.OpponentGoals),
		nullFloat(m.XG), nullFloat(m.XGA),
		m.Status, nullInt(m.Result), m.Location,
		nullFloat(m.RollingXG), nullFloat(m.RollingXGA),
		nullFloat(m.RollingXGDiff), nullFloat(m.RollingXGADiff),
		nullFloat(m.FormRolling5), nullFloat(m.FormRolling10),
		nullFloat(m.OpponentFormRolling3), nullFloat(m.OpponentFormRolling6),
	}
}

func nullInt(v sql.NullInt32) any {
	if !v.Valid {
		return nil
	}
	return v.Int32
}

func nullFloat(v sql.NullFloat64) any {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

const matchSelect = `
	SELECT m.date, m.team_id, m.opponent_id, m.goals, m.opponent_goals, m.xg, m.xga,
	       m.status, m.result, m.location,
	       m.rolling_xg, m.rolling_xga, m.rolling_xg_diff, m.rolling_xga_diff,
	       m.form_rolling_5, m.form_rolling_10, m.opponent_form_rolling_3, m.opponent_form_rolling_6
	FROM matches m
`

func scanMatch(row pgx.Row) (*models.PersistedMatch, error) {
	var m models.PersistedMatch
	err := row.Scan(
		&m.Date, &m.TeamID, &m.OpponentID, &m.Goals, &m.OpponentGoals, &m.XG, &m.XGA,
		&m.Status, &m.Result, &m.Location,
		&m.RollingXG, &m.RollingXGA, &m.RollingXGDiff, &m.RollingXGADiff,
		&m.FormRolling5, &m.FormRolling10, &m.OpponentFormRolling3, &m.OpponentFormRolling6,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByKey retrieves one row by its natural key
func (r *MatchRepository) GetByKey(ctx context.Context, key models.MatchKey) (*models.PersistedMatch, error) {
	query := matchSelect + `WHERE m.date = $1 AND m.team_id = $2 AND m.opponent_id = $3`

	m, err := scanMatch(r.db.Pool.QueryRow(ctx, query, key.Date, key.TeamID, key.OpponentID))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("match date=%s team_id=%d opponent_id=%d: %w",
			key.Date.Format("2006-01-02"), key.TeamID, key.OpponentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return m, nil
}

// ListByTeam returns matches joined with team names, newest first.
// An empty team returns matches for all teams.
func (r *MatchRepository) ListByTeam(ctx context.Context, team string, limit int) ([]*models.MatchView, error) {
	query := `
		SELECT m.date, t.team_name, o.team_name, m.goals, m.opponent_goals, m.xg, m.xga,
		       m.status, m.result, m.location,
		       m.rolling_xg, m.rolling_xga, m.rolling_xg_diff, m.rolling_xga_diff,
		       m.form_rolling_5, m.form_rolling_10, m.opponent_form_rolling_3, m.opponent_form_rolling_6
		FROM matches m
		JOIN teams t ON t.team_id = m.team_id
		JOIN teams o ON o.team_id = m.opponent_id
		WHERE ($1 = '' OR t.team_name = $1)
		ORDER BY m.date DESC, t.team_name
		LIMIT $2
	`

	start := time.Now()
	rows, err := r.db.Pool.Query(ctx, query, team, limit)
	if err != nil {
		metrics.RecordDBQuery("select", "matches", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var out []*models.MatchView
	for rows.Next() {
		var v models.MatchView
		err := rows.Scan(
			&v.Date, &v.Team, &v.Opponent, &v.Goals, &v.OpponentGoals, &v.XG, &v.XGA,
			&v.Status, &v.Result, &v.Location,
			&v.RollingXG, &v.RollingXGA, &v.RollingXGDiff, &v.RollingXGADiff,
			&v.FormRolling5, &v.FormRolling10, &v.OpponentFormRolling3, &v.OpponentFormRolling6,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	metrics.RecordDBQuery("select", "matches", "success", time.Since(start).Seconds())

	return out, nil
}

// TeamStats aggregates a team's persisted matches. RecentForm is the mean
// result points over the five most recent matches.
func (r *MatchRepository) TeamStats(ctx context.Context, team string) (*models.TeamStats, error) {
	query := `
		SELECT t.team_name,
		       COUNT(m.team_id),
		       AVG(m.goals)::float8,
		       AVG(m.opponent_goals)::float8,
		       AVG(m.xg),
		       AVG(m.xga),
		       (SELECT AVG(recent.result)::float8
		          FROM (SELECT result FROM matches
		                 WHERE team_id = t.team_id
		                 ORDER BY date DESC
		                 LIMIT 5) recent)
		FROM teams t
		LEFT JOIN matches m ON m.team_id = t.team_id
		WHERE t.team_name = $1
		GROUP BY t.team_id, t.team_name
	`

	var s models.TeamStats
	err := r.db.Pool.QueryRow(ctx, query, team).Scan(
		&s.TeamName, &s.MatchesPlayed,
		&s.AvgGoalsScored, &s.AvgGoalsConceded,
		&s.AvgXG, &s.AvgXGA, &s.RecentForm,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("team %q: %w", team, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team stats: %w", err)
	}

	return &s, nil
}

// Count returns the total number of match rows
func (r *MatchRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM matches").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return count, nil
}
