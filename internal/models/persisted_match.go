package models

import (
	"database/sql"
	"math"
	"time"
)

// MatchKey is the natural key of a persisted match row
type MatchKey struct {
	Date       time.Time
	TeamID     int
	OpponentID int
}

// PersistedMatch is one row of the matches table
type PersistedMatch struct {
	Date          time.Time       `db:"date"`
	TeamID        int             `db:"team_id"`
	OpponentID    int             `db:"opponent_id"`
	Goals         sql.NullInt32   `db:"goals"`
	OpponentGoals sql.NullInt32   `db:"opponent_goals"`
	XG            sql.NullFloat64 `db:"xg"`
	XGA           sql.NullFloat64 `db:"xga"`
	Status        string          `db:"status"`
	Result        sql.NullInt32   `db:"result"`
	Location      string          `db:"location"`

	RollingXG            sql.NullFloat64 `db:"rolling_xg"`
	RollingXGA           sql.NullFloat64 `db:"rolling_xga"`
	RollingXGDiff        sql.NullFloat64 `db:"rolling_xg_diff"`
	RollingXGADiff       sql.NullFloat64 `db:"rolling_xga_diff"`
	FormRolling5         sql.NullFloat64 `db:"form_rolling_5"`
	FormRolling10        sql.NullFloat64 `db:"form_rolling_10"`
	OpponentFormRolling3 sql.NullFloat64 `db:"opponent_form_rolling_3"`
	OpponentFormRolling6 sql.NullFloat64 `db:"opponent_form_rolling_6"`
}

// Key returns the natural key of the row
func (m *PersistedMatch) Key() MatchKey {
	return MatchKey{Date: m.Date, TeamID: m.TeamID, OpponentID: m.OpponentID}
}

// MatchView is a persisted match joined with team names, as read by the query API
type MatchView struct {
	Date                 time.Time `json:"date"`
	Team                 string    `json:"team"`
	Opponent             string    `json:"opponent"`
	Goals                *int32    `json:"goals"`
	OpponentGoals        *int32    `json:"opponent_goals"`
	XG                   *float64  `json:"xg"`
	XGA                  *float64  `json:"xga"`
	Status               string    `json:"status"`
	Result               *int32    `json:"result"`
	Location             string    `json:"location"`
	RollingXG            *float64  `json:"rolling_xg"`
	RollingXGA           *float64  `json:"rolling_xga"`
	RollingXGDiff        *float64  `json:"rolling_xg_diff"`
	RollingXGADiff       *float64  `json:"rolling_xga_diff"`
	FormRolling5         *float64  `json:"form_rolling_5"`
	FormRolling10        *float64  `json:"form_rolling_10"`
	OpponentFormRolling3 *float64  `json:"opponent_form_rolling_3"`
	OpponentFormRolling6 *float64  `json:"opponent_form_rolling_6"`
}

// Fixture is a scheduled match resolved to team ids
type Fixture struct {
	Date       time.Time `db:"date"`
	Season     int       `db:"season"`
	HomeTeamID int       `db:"home_team_id"`
	AwayTeamID int       `db:"away_team_id"`
}

// FixtureView is a fixture joined with team names
type FixtureView struct {
	Date     time.Time `json:"date"`
	Season   int       `json:"season"`
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`
}

// ToPersisted converts a FeatureRow into a matches row.
// NaN and infinite values become NULL so they are never written as "NaN".
func (f *FeatureRow) ToPersisted(teamID, opponentID int) *PersistedMatch {
	m := &PersistedMatch{
		Date:       f.Date,
		TeamID:     teamID,
		OpponentID: opponentID,
		Status:     string(StatusPlayed),
		Location:   string(f.Location),

		XG:                   NullFloat(f.XG),
		XGA:                  NullFloat(f.XGA),
		RollingXG:            NullFloat(f.RollingXG),
		RollingXGA:           NullFloat(f.RollingXGA),
		RollingXGDiff:        NullFloat(f.RollingXGDiff),
		RollingXGADiff:       NullFloat(f.RollingXGADiff),
		FormRolling5:         NullFloat(f.FormRolling5),
		FormRolling10:        NullFloat(f.FormRolling10),
		OpponentFormRolling3: NullFloat(f.OpponentFormRolling3),
		OpponentFormRolling6: NullFloat(f.OpponentFormRolling6),
	}

	if f.Goals != nil {
		m.Goals = sql.NullInt32{Int32: int32(*f.Goals), Valid: true}
	}
	if f.OpponentGoals != nil {
		m.OpponentGoals = sql.NullInt32{Int32: int32(*f.OpponentGoals), Valid: true}
	}
	if f.Result != nil {
		m.Result = sql.NullInt32{Int32: int32(f.Result.Points()), Valid: true}
	}

	return m
}

// NullFloat converts an optional float, treating NaN and Inf as null
func NullFloat(v *float64) sql.NullFloat64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
