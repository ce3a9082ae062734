package api

import (
	"context"
	"time"

	"xgform/ingestion/internal/models"
	"xgform/ingestion/internal/repository"
)

// DatabaseReader serves queries from the repositories.
type DatabaseReader struct {
	db *repository.Database
}

// NewDatabaseReader wraps db
func NewDatabaseReader(db *repository.Database) *DatabaseReader {
	return &DatabaseReader{db: db}
}

var _ Reader = (*DatabaseReader)(nil)

func (r *DatabaseReader) ListTeams(ctx context.Context) ([]*models.Team, error) {
	return r.db.Teams.List(ctx)
}

func (r *DatabaseReader) ListMatches(ctx context.Context, team string, limit int) ([]*models.MatchView, error) {
	return r.db.Matches.ListByTeam(ctx, team, limit)
}

func (r *DatabaseReader) TeamStats(ctx context.Context, team string) (*models.TeamStats, error) {
	return r.db.Matches.TeamStats(ctx, team)
}

func (r *DatabaseReader) UpcomingFixtures(ctx context.Context, from time.Time, limit int) ([]*models.FixtureView, error) {
	return r.db.Fixtures.ListUpcoming(ctx, from, limit)
}

func (r *DatabaseReader) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}
