// Package normalize validates raw schedule rows into canonical matches.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/models"
)

// DateLayout is the schedule table date format.
const DateLayout = "2006-01-02"

// scoreSeparator is the en dash used between home and away goals.
const scoreSeparator = "–"

// RowError describes a row excluded during normalization.
type RowError struct {
	Index  int
	Season int
	Field  string
	Value  string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("season %d row %d: %s %q: %s", e.Season, e.Index, e.Field, e.Value, e.Reason)
}

// Normalize converts rows in order. Rows that fail validation are
// excluded and reported; they never abort the batch.
func Normalize(rows []models.RawRow) ([]models.CanonicalMatch, []*RowError) {
	matches := make([]models.CanonicalMatch, 0, len(rows))
	var rowErrs []*RowError

	for i, row := range rows {
		m, rowErr := normalizeRow(row)
		if rowErr != nil {
			rowErr.Index = i
			rowErrs = append(rowErrs, rowErr)
			log.Debug().
				Int("season", row.Season).
				Int("row", i).
				Str("field", rowErr.Field).
				Str("reason", rowErr.Reason).
				Msg("Row excluded")
			continue
		}
		matches = append(matches, m)
	}

	return matches, rowErrs
}

func normalizeRow(row models.RawRow) (models.CanonicalMatch, *RowError) {
	fail := func(field, value, reason string) (models.CanonicalMatch, *RowError) {
		return models.CanonicalMatch{}, &RowError{Season: row.Season, Field: field, Value: value, Reason: reason}
	}

	date, err := time.Parse(DateLayout, strings.TrimSpace(row.Date))
	if err != nil {
		return fail("date", row.Date, "unparseable date")
	}

	home := strings.TrimSpace(row.Home)
	away := strings.TrimSpace(row.Away)
	if home == "" {
		return fail("home", row.Home, "empty team name")
	}
	if away == "" {
		return fail("away", row.Away, "empty team name")
	}

	homeXG, err := ParseXG(row.HomeXG)
	if err != nil {
		return fail("home_xg", row.HomeXG, err.Error())
	}
	awayXG, err := ParseXG(row.AwayXG)
	if err != nil {
		return fail("away_xg", row.AwayXG, err.Error())
	}

	m := models.CanonicalMatch{
		Season:   row.Season,
		Date:     date,
		HomeTeam: home,
		AwayTeam: away,
		HomeXG:   homeXG,
		AwayXG:   awayXG,
		Status:   models.StatusScheduled,
	}

	if strings.TrimSpace(row.Score) == "" {
		return m, nil
	}

	hg, ag, err := ParseScore(row.Score)
	if err != nil {
		return fail("score", row.Score, err.Error())
	}

	code := models.ResultFromGoals(hg, ag)
	m.HomeGoals = &hg
	m.AwayGoals = &ag
	m.Status = models.StatusPlayed
	m.ResultCode = &code

	return m, nil
}

// ParseScore splits "<int>–<int>" into home and away goals.
func ParseScore(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), scoreSeparator)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed score")
	}

	home, err := parseGoals(parts[0])
	if err != nil {
		return 0, 0, err
	}
	away, err := parseGoals(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return home, away, nil
}

func parseGoals(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("malformed goals %q", s)
	}
	return n, nil
}

// ParseXG reads an optional xG cell. Empty cells and NaN sentinels are
// null; any other non-numeric token is an error.
func ParseXG(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("non-numeric xG")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, nil
	}
	return &v, nil
}
