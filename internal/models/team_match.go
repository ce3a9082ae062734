package models

import "time"

// Location is the side a team played on
type Location string

const (
	Home Location = "home"
	Away Location = "away"
)

// Result is the team-relative outcome of a match
type Result string

const (
	Win  Result = "W"
	Draw Result = "D"
	Loss Result = "L"
)

// Points returns the league points for the result (3/1/0).
// Form features average this value.
func (r Result) Points() float64 {
	switch r {
	case Win:
		return 3
	case Draw:
		return 1
	default:
		return 0
	}
}

// TeamResult maps a home-perspective result code onto one side
func TeamResult(code ResultCode, loc Location) Result {
	switch {
	case code == CodeDraw:
		return Draw
	case (code == CodeHomeWin) == (loc == Home):
		return Win
	default:
		return Loss
	}
}

// TeamMatchRow is one team's view of one played match.
// Seq is the ingestion order of the row and acts as its identity.
type TeamMatchRow struct {
	Seq           int       `json:"seq"`
	Season        int       `json:"season"`
	Team          string    `json:"team"`
	Opponent      string    `json:"opponent"`
	Date          time.Time `json:"date"`
	Location      Location  `json:"location"`
	Goals         *int      `json:"goals"`
	OpponentGoals *int      `json:"opponent_goals"`
	XG            *float64  `json:"xg"`
	XGA           *float64  `json:"xga"`
	Result        *Result   `json:"result"`
}

// FeatureRow is a TeamMatchRow with trailing aggregates attached
type FeatureRow struct {
	TeamMatchRow

	RollingXG            *float64 `json:"rolling_xg"`
	RollingXGA           *float64 `json:"rolling_xga"`
	RollingXGDiff        *float64 `json:"rolling_xg_diff"`
	RollingXGADiff       *float64 `json:"rolling_xga_diff"`
	FormRolling5         *float64 `json:"form_rolling_5"`
	FormRolling10        *float64 `json:"form_rolling_10"`
	OpponentFormRolling3 *float64 `json:"opponent_form_rolling_3"`
	OpponentFormRolling6 *float64 `json:"opponent_form_rolling_6"`
}
