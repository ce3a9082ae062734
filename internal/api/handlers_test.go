package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xgform/ingestion/internal/models"
	"xgform/ingestion/internal/repository"
)

type fakeReader struct {
	teams     []*models.Team
	matches   []*models.MatchView
	stats     map[string]*models.TeamStats
	fixtures  []*models.FixtureView
	healthErr error
	err       error

	gotTeam  string
	gotLimit int
	gotFrom  time.Time
}

func (f *fakeReader) ListTeams(context.Context) ([]*models.Team, error) {
	return f.teams, f.err
}

func (f *fakeReader) ListMatches(_ context.Context, team string, limit int) ([]*models.MatchView, error) {
	f.gotTeam, f.gotLimit = team, limit
	return f.matches, f.err
}

func (f *fakeReader) TeamStats(_ context.Context, team string) (*models.TeamStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.stats[team]
	if !ok {
		return nil, fmt.Errorf("team %q: %w", team, repository.ErrNotFound)
	}
	return s, nil
}

func (f *fakeReader) UpcomingFixtures(_ context.Context, from time.Time, limit int) ([]*models.FixtureView, error) {
	f.gotFrom, f.gotLimit = from, limit
	return f.fixtures, f.err
}

func (f *fakeReader) Health(context.Context) error {
	return f.healthErr
}

func serve(t *testing.T, reader Reader, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(reader).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHandleHealth(t *testing.T) {
	rec, body := serve(t, &fakeReader{}, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec, body = serve(t, &fakeReader{healthErr: errors.New("down")}, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHandleTeams(t *testing.T) {
	reader := &fakeReader{teams: []*models.Team{{ID: 1, Name: "Arsenal"}, {ID: 2, Name: "Chelsea"}}}

	rec, body := serve(t, reader, "/teams")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, float64(2), body["count"])
}

func TestHandleMatches_DefaultLimit(t *testing.T) {
	reader := &fakeReader{matches: []*models.MatchView{{Team: "Arsenal", Opponent: "Chelsea"}}}

	rec, body := serve(t, reader, "/matches")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultMatchLimit, reader.gotLimit)
	assert.Empty(t, reader.gotTeam)
	assert.Equal(t, float64(1), body["count"])
}

func TestHandleMatches_TeamAndLimit(t *testing.T) {
	reader := &fakeReader{}

	rec, _ := serve(t, reader, "/matches?team=Nott%27ham+Forest&limit=10")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Nott'ham Forest", reader.gotTeam)
	assert.Equal(t, 10, reader.gotLimit)
}

func TestHandleMatches_BadLimit(t *testing.T) {
	for _, limit := range []string{"abc", "0", "-5"} {
		rec, body := serve(t, &fakeReader{}, "/matches?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
		assert.NotEmpty(t, body["error"])
	}
}

func TestHandleTeamStats(t *testing.T) {
	form := 2.2
	reader := &fakeReader{stats: map[string]*models.TeamStats{
		"Arsenal": {TeamName: "Arsenal", MatchesPlayed: 38, RecentForm: &form},
	}}

	rec, body := serve(t, reader, "/team_stats?team=Arsenal")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(38), body["matches_played"])
	assert.Equal(t, 2.2, body["recent_form"])

	rec, _ = serve(t, reader, "/team_stats")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, reader, "/team_stats?team=Nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFixtures(t *testing.T) {
	reader := &fakeReader{fixtures: []*models.FixtureView{{HomeTeam: "Arsenal", AwayTeam: "Everton", Season: 23}}}
	h := NewHandlers(reader)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	h.HandleFixtures(rec, httptest.NewRequest(http.MethodGet, "/fixtures", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), reader.gotFrom)
	assert.Equal(t, DefaultFixtureLimit, reader.gotLimit)
}

func TestInternalErrorHidesDetail(t *testing.T) {
	reader := &fakeReader{err: errors.New("pq: relation does not exist")}

	rec, body := serve(t, reader, "/teams")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body["error"])
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(&fakeReader{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/teams", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
