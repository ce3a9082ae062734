// Package features turns canonical matches into team-perspective rows and
// attaches trailing form aggregates to them.
package features

import "xgform/ingestion/internal/models"

// Expand returns two rows per played match, home side first. Seq follows
// that emission order and is the row identity for later stages.
// Scheduled matches produce no rows.
func Expand(matches []models.CanonicalMatch) []models.TeamMatchRow {
	rows := make([]models.TeamMatchRow, 0, 2*len(matches))
	seq := 0

	for i := range matches {
		m := &matches[i]
		if !m.IsPlayed() || m.ResultCode == nil {
			continue
		}

		rows = append(rows,
			perspective(m, models.Home, seq),
			perspective(m, models.Away, seq+1),
		)
		seq += 2
	}

	return rows
}

func perspective(m *models.CanonicalMatch, loc models.Location, seq int) models.TeamMatchRow {
	result := models.TeamResult(*m.ResultCode, loc)

	row := models.TeamMatchRow{
		Seq:      seq,
		Season:   m.Season,
		Date:     m.Date,
		Location: loc,
		Result:   &result,
	}

	if loc == models.Home {
		row.Team, row.Opponent = m.HomeTeam, m.AwayTeam
		row.Goals, row.OpponentGoals = copyInt(m.HomeGoals), copyInt(m.AwayGoals)
		row.XG, row.XGA = copyFloat(m.HomeXG), copyFloat(m.AwayXG)
	} else {
		row.Team, row.Opponent = m.AwayTeam, m.HomeTeam
		row.Goals, row.OpponentGoals = copyInt(m.AwayGoals), copyInt(m.HomeGoals)
		row.XG, row.XGA = copyFloat(m.AwayXG), copyFloat(m.HomeXG)
	}

	return row
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
