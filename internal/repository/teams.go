package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/metrics"
	"xgform/ingestion/internal/models"
)

// TeamRepository handles team database operations
type TeamRepository struct {
	db *Database
}

// InsertNames inserts team names that do not exist yet. Existing names are left untouched.
func (r *TeamRepository) InsertNames(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	query := `
		INSERT INTO teams (team_name)
		SELECT unnest($1::text[])
		ON CONFLICT (team_name) DO NOTHING
	`

	start := time.Now()
	tag, err := r.db.Pool.Exec(ctx, query, names)
	if err != nil {
		metrics.RecordDBQuery("insert", "teams", "error", time.Since(start).Seconds())
		return fmt.Errorf("failed to insert teams: %w", err)
	}
	metrics.RecordDBQuery("insert", "teams", "success", time.Since(start).Seconds())

	log.Debug().
		Int("requested", len(names)).
		Int64("created", tag.RowsAffected()).
		Msg("Teams inserted")

	return nil
}

// IDMap returns every known team name with its id
func (r *TeamRepository) IDMap(ctx context.Context) (models.TeamIDs, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT team_id, team_name FROM teams`)
	if err != nil {
		return nil, fmt.Errorf("failed to read team ids: %w", err)
	}
	defer rows.Close()

	ids := make(models.TeamIDs)
	for rows.Next() {
		var (
			id   int
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan team id: %w", err)
		}
		ids[name] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team ids: %w", err)
	}

	return ids, nil
}

// GetByName retrieves a team by its name
func (r *TeamRepository) GetByName(ctx context.Context, name string) (*models.Team, error) {
	query := `
		SELECT team_id, team_name
		FROM teams
		WHERE team_name = $1
	`

	var team models.Team
	err := r.db.Pool.QueryRow(ctx, query, name).Scan(&team.ID, &team.Name)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("team %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return &team, nil
}

// List retrieves all teams
func (r *TeamRepository) List(ctx context.Context) ([]*models.Team, error) {
	query := `
		SELECT team_id, team_name
		FROM teams
		ORDER BY team_name
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		var team models.Team
		if err := rows.Scan(&team.ID, &team.Name); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, &team)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}

	return teams, nil
}

// Count returns the total number of teams
func (r *TeamRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM teams").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}
	return count, nil
}
