package features

import (
	"sort"

	"xgform/ingestion/internal/models"
)

// Window sizes, in matches.
const (
	XGWindow          = 5
	FormShortWindow   = 5
	FormLongWindow    = 10
	OpponentFormShort = 3
	OpponentFormLong  = 6
)

// Compute attaches trailing aggregates to every row and returns the rows
// ordered by (Date, Seq).
//
// Every aggregate is lagged by one match: it covers at most N earlier rows
// of the same group and never the row itself. Within a group, rows sharing
// a date are ordered by Seq. A window whose values are all null yields nil.
func Compute(rows []models.TeamMatchRow) []models.FeatureRow {
	out := make([]models.FeatureRow, len(rows))
	for i := range rows {
		out[i].TeamMatchRow = rows[i]
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ra, rb := &out[order[a]], &out[order[b]]
		if !ra.Date.Equal(rb.Date) {
			return ra.Date.Before(rb.Date)
		}
		return ra.Seq < rb.Seq
	})

	for _, idxs := range partition(out, order, teamKey) {
		xg := column(out, idxs, func(r *models.FeatureRow) *float64 { return r.XG })
		xga := column(out, idxs, func(r *models.FeatureRow) *float64 { return r.XGA })
		pts := column(out, idxs, points)

		rollingXG := laggedMeans(xg, XGWindow)
		rollingXGA := laggedMeans(xga, XGWindow)
		form5 := laggedMeans(pts, FormShortWindow)
		form10 := laggedMeans(pts, FormLongWindow)

		for k, idx := range idxs {
			r := &out[idx]
			r.RollingXG = rollingXG[k]
			r.RollingXGA = rollingXGA[k]
			r.FormRolling5 = form5[k]
			r.FormRolling10 = form10[k]
			r.RollingXGDiff = diff(r.RollingXG, r.Goals)
			r.RollingXGADiff = diff(r.RollingXGA, r.OpponentGoals)
		}
	}

	for _, idxs := range partition(out, order, fixtureKey) {
		pts := column(out, idxs, points)
		short := laggedMeans(pts, OpponentFormShort)
		long := laggedMeans(pts, OpponentFormLong)

		for k, idx := range idxs {
			out[idx].OpponentFormRolling3 = short[k]
			out[idx].OpponentFormRolling6 = long[k]
		}
	}

	sorted := make([]models.FeatureRow, len(out))
	for i, idx := range order {
		sorted[i] = out[idx]
	}
	return sorted
}

type groupKey struct {
	team     string
	opponent string
	location models.Location
}

func teamKey(r *models.FeatureRow) groupKey {
	return groupKey{team: r.Team}
}

func fixtureKey(r *models.FeatureRow) groupKey {
	return groupKey{team: r.Team, opponent: r.Opponent, location: r.Location}
}

// partition groups row indices by key, keeping the given order inside each group.
func partition(rows []models.FeatureRow, order []int, key func(*models.FeatureRow) groupKey) map[groupKey][]int {
	groups := make(map[groupKey][]int)
	for _, idx := range order {
		k := key(&rows[idx])
		groups[k] = append(groups[k], idx)
	}
	return groups
}

func column(rows []models.FeatureRow, idxs []int, get func(*models.FeatureRow) *float64) []*float64 {
	vals := make([]*float64, len(idxs))
	for k, idx := range idxs {
		vals[k] = get(&rows[idx])
	}
	return vals
}

func points(r *models.FeatureRow) *float64 {
	if r.Result == nil {
		return nil
	}
	p := r.Result.Points()
	return &p
}

// laggedMeans returns, for each position i, the mean of the non-null values
// in vals[i-window:i]. The current position is never included.
func laggedMeans(vals []*float64, window int) []*float64 {
	out := make([]*float64, len(vals))
	for i := range vals {
		start := i - window
		if start < 0 {
			start = 0
		}

		sum, n := 0.0, 0
		for _, v := range vals[start:i] {
			if v != nil {
				sum += *v
				n++
			}
		}
		if n > 0 {
			mean := sum / float64(n)
			out[i] = &mean
		}
	}
	return out
}

func diff(rolling *float64, goals *int) *float64 {
	if rolling == nil || goals == nil {
		return nil
	}
	d := *rolling - float64(*goals)
	return &d
}
