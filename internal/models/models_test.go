package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultFromGoals(t *testing.T) {
	assert.Equal(t, CodeHomeWin, ResultFromGoals(2, 1))
	assert.Equal(t, CodeDraw, ResultFromGoals(1, 1))
	assert.Equal(t, CodeAwayWin, ResultFromGoals(0, 3))
}

func TestTeamResult(t *testing.T) {
	assert.Equal(t, Win, TeamResult(CodeHomeWin, Home))
	assert.Equal(t, Loss, TeamResult(CodeHomeWin, Away))
	assert.Equal(t, Loss, TeamResult(CodeAwayWin, Home))
	assert.Equal(t, Win, TeamResult(CodeAwayWin, Away))
	assert.Equal(t, Draw, TeamResult(CodeDraw, Home))
	assert.Equal(t, Draw, TeamResult(CodeDraw, Away))
}

func TestResultPoints(t *testing.T) {
	assert.Equal(t, 3.0, Win.Points())
	assert.Equal(t, 1.0, Draw.Points())
	assert.Equal(t, 0.0, Loss.Points())
}

func TestNullFloat(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)
	v := 1.25

	assert.False(t, NullFloat(nil).Valid)
	assert.False(t, NullFloat(&nan).Valid, "NaN must become NULL")
	assert.False(t, NullFloat(&inf).Valid)
	assert.True(t, NullFloat(&v).Valid)
	assert.Equal(t, 1.25, NullFloat(&v).Float64)
}

func TestFeatureRow_ToPersisted(t *testing.T) {
	goals, against := 2, 1
	xg := 1.7
	nan := math.NaN()
	win := Win
	date := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	row := &FeatureRow{
		TeamMatchRow: TeamMatchRow{
			Team:          "Arsenal",
			Opponent:      "Chelsea",
			Date:          date,
			Location:      Home,
			Goals:         &goals,
			OpponentGoals: &against,
			XG:            &xg,
			XGA:           &nan,
			Result:        &win,
		},
	}

	m := row.ToPersisted(1, 2)
	assert.Equal(t, MatchKey{Date: date, TeamID: 1, OpponentID: 2}, m.Key())
	assert.Equal(t, int32(2), m.Goals.Int32)
	assert.Equal(t, int32(1), m.OpponentGoals.Int32)
	assert.Equal(t, int32(3), m.Result.Int32)
	assert.True(t, m.XG.Valid)
	assert.False(t, m.XGA.Valid)
	assert.False(t, m.RollingXG.Valid)
	assert.Equal(t, "home", m.Location)
	assert.Equal(t, "played", m.Status)
}
