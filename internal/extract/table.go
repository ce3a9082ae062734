// Package extract locates the scores & fixtures table in a season page
// and turns its body rows into models.RawRow values.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/models"
)

// Reasons carried by ExtractionError.
const (
	ReasonNotFound    = "not found"
	ReasonParseFailed = "parse failed"
)

// scheduleSelector matches the results table by structure, not position.
const scheduleSelector = `table.stats_table[id^="sched_"]`

// ExtractionError means no usable table could be read for a season.
type ExtractionError struct {
	Season int
	Reason string
	Detail string
}

func (e *ExtractionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("extract season %d: %s", e.Season, e.Reason)
	}
	return fmt.Sprintf("extract season %d: %s: %s", e.Season, e.Reason, e.Detail)
}

type field int

const (
	fieldNone field = iota
	fieldWeek
	fieldDay
	fieldDate
	fieldTime
	fieldHome
	fieldHomeXG
	fieldScore
	fieldAwayXG
	fieldAway
	fieldAttendance
	fieldVenue
	fieldReferee
	fieldNotes
)

var fieldByStat = map[string]field{
	"gameweek":   fieldWeek,
	"dayofweek":  fieldDay,
	"date":       fieldDate,
	"start_time": fieldTime,
	"home_team":  fieldHome,
	"home_xg":    fieldHomeXG,
	"score":      fieldScore,
	"away_xg":    fieldAwayXG,
	"away_team":  fieldAway,
	"attendance": fieldAttendance,
	"venue":      fieldVenue,
	"referee":    fieldReferee,
	"notes":      fieldNotes,
}

// xG is resolved separately since the label appears twice.
var fieldByLabel = map[string]field{
	"wk":         fieldWeek,
	"day":        fieldDay,
	"date":       fieldDate,
	"time":       fieldTime,
	"home":       fieldHome,
	"score":      fieldScore,
	"away":       fieldAway,
	"attendance": fieldAttendance,
	"venue":      fieldVenue,
	"referee":    fieldReferee,
	"notes":      fieldNotes,
}

var requiredFields = map[field]string{
	fieldDate:  "date",
	fieldHome:  "home",
	fieldAway:  "away",
	fieldScore: "score",
}

// Extract returns the body rows of the season's results table in document order.
func Extract(content []byte, season int) ([]models.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, &ExtractionError{Season: season, Reason: ReasonParseFailed, Detail: err.Error()}
	}

	tables := doc.Find(scheduleSelector)
	if tables.Length() == 0 {
		return nil, &ExtractionError{Season: season, Reason: ReasonNotFound}
	}
	if tables.Length() > 1 {
		log.Debug().Int("season", season).Int("tables", tables.Length()).Msg("Multiple schedule tables, using the first")
	}
	table := tables.First()

	columns, labels := resolveColumns(table.Find("thead tr").Last())
	for f, name := range requiredFields {
		if !hasField(columns, f) {
			return nil, &ExtractionError{
				Season: season,
				Reason: ReasonParseFailed,
				Detail: fmt.Sprintf("missing column %q", name),
			}
		}
	}

	var rows []models.RawRow
	skipped := 0
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.HasClass("thead") || tr.HasClass("spacer") {
			skipped++
			return
		}

		cells := tr.Children().Filter("th, td")
		texts := make([]string, cells.Length())
		cells.Each(func(i int, cell *goquery.Selection) {
			texts[i] = cellText(cell)
		})

		if isHeaderRepeat(texts, labels) || isBlank(texts) {
			skipped++
			return
		}

		row := models.RawRow{Season: season}
		cells.Each(func(i int, cell *goquery.Selection) {
			f := fieldNone
			if stat, ok := cell.Attr("data-stat"); ok {
				f = fieldByStat[stat]
			}
			if f == fieldNone && i < len(columns) {
				f = columns[i]
			}
			assign(&row, f, texts[i])
		})
		rows = append(rows, row)
	})

	if len(rows) == 0 {
		return nil, &ExtractionError{Season: season, Reason: ReasonParseFailed, Detail: "no body rows"}
	}

	log.Debug().
		Int("season", season).
		Int("rows", len(rows)).
		Int("skipped", skipped).
		Msg("Schedule table extracted")

	return rows, nil
}

// resolveColumns maps header cells to fields. data-stat wins over the label;
// the first xG label is the home side, the second the away side.
func resolveColumns(header *goquery.Selection) ([]field, map[string]struct{}) {
	cells := header.Children().Filter("th, td")
	columns := make([]field, cells.Length())
	labels := make(map[string]struct{}, cells.Length())
	seenXG := 0

	cells.Each(func(i int, cell *goquery.Selection) {
		label := cellText(cell)
		if label != "" {
			labels[label] = struct{}{}
		}

		if stat, ok := cell.Attr("data-stat"); ok {
			if f, known := fieldByStat[stat]; known {
				columns[i] = f
				if f == fieldHomeXG || f == fieldAwayXG {
					seenXG++
				}
				return
			}
		}

		key := strings.ToLower(label)
		if key == "xg" {
			if seenXG == 0 {
				columns[i] = fieldHomeXG
			} else {
				columns[i] = fieldAwayXG
			}
			seenXG++
			return
		}
		columns[i] = fieldByLabel[key]
	})

	return columns, labels
}

func hasField(columns []field, f field) bool {
	for _, c := range columns {
		if c == f {
			return true
		}
	}
	return false
}

// isHeaderRepeat reports rows whose every cell is a header label.
func isHeaderRepeat(texts []string, labels map[string]struct{}) bool {
	if len(texts) == 0 {
		return false
	}
	for _, t := range texts {
		if _, ok := labels[t]; !ok {
			return false
		}
	}
	return true
}

func isBlank(texts []string) bool {
	for _, t := range texts {
		if t != "" {
			return false
		}
	}
	return true
}

func cellText(cell *goquery.Selection) string {
	return strings.TrimSpace(strings.ReplaceAll(cell.Text(), "\u00a0", " "))
}

func assign(row *models.RawRow, f field, v string) {
	switch f {
	case fieldWeek:
		row.Week = v
	case fieldDay:
		row.Day = v
	case fieldDate:
		row.Date = v
	case fieldTime:
		row.Time = v
	case fieldHome:
		row.Home = v
	case fieldHomeXG:
		row.HomeXG = v
	case fieldScore:
		row.Score = v
	case fieldAwayXG:
		row.AwayXG = v
	case fieldAway:
		row.Away = v
	case fieldAttendance:
		row.Attendance = v
	case fieldVenue:
		row.Venue = v
	case fieldReferee:
		row.Referee = v
	case fieldNotes:
		row.Notes = v
	}
}
