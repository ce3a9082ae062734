package models

// Team is a persisted team identity. Created on first sighting, never renamed.
type Team struct {
	ID   int    `db:"team_id" json:"team_id"`
	Name string `db:"team_name" json:"team_name"`
}

// TeamIDs maps team names to surrogate ids for the duration of one run
type TeamIDs map[string]int

// Lookup resolves a team name
func (t TeamIDs) Lookup(name string) (int, bool) {
	id, ok := t[name]
	return id, ok
}

// TeamStats is the per-team aggregate served by the query API
type TeamStats struct {
	TeamName         string   `json:"team_name"`
	MatchesPlayed    int      `json:"matches_played"`
	AvgGoalsScored   *float64 `json:"avg_goals_scored"`
	AvgGoalsConceded *float64 `json:"avg_goals_conceded"`
	AvgXG            *float64 `json:"avg_xg"`
	AvgXGA           *float64 `json:"avg_xga"`
	RecentForm       *float64 `json:"recent_form"`
}
