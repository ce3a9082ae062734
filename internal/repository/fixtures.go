package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"xgform/ingestion/internal/metrics"
	"xgform/ingestion/internal/models"
)

// FixtureRepository handles scheduled-match operations
type FixtureRepository struct {
	db *Database
}

// UpsertBatch inserts fixtures not seen before and returns how many were new.
func (r *FixtureRepository) UpsertBatch(ctx context.Context, fixtures []models.Fixture) (int, error) {
	if len(fixtures) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO fixtures (date, home_team_id, away_team_id, season)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date, home_team_id, away_team_id) DO NOTHING
	`

	start := time.Now()
	batch := &pgx.Batch{}
	for _, f := range fixtures {
		batch.Queue(query, f.Date, f.HomeTeamID, f.AwayTeamID, f.Season)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	created := 0
	for range fixtures {
		tag, err := results.Exec()
		if err != nil {
			metrics.RecordDBQuery("insert", "fixtures", "error", time.Since(start).Seconds())
			return created, fmt.Errorf("failed to insert fixture: %w", err)
		}
		created += int(tag.RowsAffected())
	}
	metrics.RecordDBQuery("insert", "fixtures", "success", time.Since(start).Seconds())

	return created, nil
}

// ListUpcoming returns fixtures on or after from with team names, soonest first
func (r *FixtureRepository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*models.FixtureView, error) {
	query := `
		SELECT f.date, f.season, h.team_name, a.team_name
		FROM fixtures f
		JOIN teams h ON h.team_id = f.home_team_id
		JOIN teams a ON a.team_id = f.away_team_id
		WHERE f.date >= $1
		ORDER BY f.date, h.team_name
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, from, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	defer rows.Close()

	var out []*models.FixtureView
	for rows.Next() {
		var f models.FixtureView
		if err := rows.Scan(&f.Date, &f.Season, &f.HomeTeam, &f.AwayTeam); err != nil {
			return nil, fmt.Errorf("failed to scan fixture: %w", err)
		}
		out = append(out, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fixtures: %w", err)
	}

	return out, nil
}
