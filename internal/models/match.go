package models

import "time"

// MatchStatus tells whether a fixture has been played
type MatchStatus string

const (
	StatusScheduled MatchStatus = "scheduled"
	StatusPlayed    MatchStatus = "played"
)

// ResultCode is the home-perspective outcome of a played match
type ResultCode string

const (
	CodeHomeWin ResultCode = "H"
	CodeDraw    ResultCode = "D"
	CodeAwayWin ResultCode = "A"
)

// RawRow is one row of the scores & fixtures table, as scraped.
// All cells are kept as trimmed text; the normalizer owns validation.
type RawRow struct {
	Season     int
	Week       string
	Day        string
	Date       string
	Time       string
	Home       string
	HomeXG     string
	Score      string
	AwayXG     string
	Away       string
	Attendance string
	Venue      string
	Referee    string
	Notes      string
}

// CanonicalMatch is a validated fixture, played or scheduled
type CanonicalMatch struct {
	Season     int
	Date       time.Time
	HomeTeam   string
	AwayTeam   string
	HomeGoals  *int
	AwayGoals  *int
	HomeXG     *float64
	AwayXG     *float64
	Status     MatchStatus
	ResultCode *ResultCode
}

// IsPlayed returns true if the match has a final score
func (m *CanonicalMatch) IsPlayed() bool {
	return m.Status == StatusPlayed
}

// ResultFromGoals derives the home-perspective result code
func ResultFromGoals(home, away int) ResultCode {
	switch {
	case home > away:
		return CodeHomeWin
	case home == away:
		return CodeDraw
	default:
		return CodeAwayWin
	}
}
