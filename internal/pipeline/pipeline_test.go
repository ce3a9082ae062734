package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xgform/ingestion/internal/client"
	"xgform/ingestion/internal/models"
	"xgform/ingestion/internal/reconcile"
)

const header = `<table class="stats_table" id="sched_test"><thead><tr>
<th data-stat="gameweek">Wk</th><th data-stat="date">Date</th><th data-stat="home_team">Home</th>
<th data-stat="home_xg">xG</th><th data-stat="score">Score</th><th data-stat="away_xg">xG</th>
<th data-stat="away_team">Away</th></tr></thead><tbody>`

// schedulePage renders a minimal schedule table. Each fixture is
// "date|home|homeXG|score|awayXG|away".
func schedulePage(fixtures ...string) []byte {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(header)
	for i, f := range fixtures {
		c := strings.Split(f, "|")
		fmt.Fprintf(&b, `<tr><th data-stat="gameweek">%d</th><td data-stat="date">%s</td>`+
			`<td data-stat="home_team">%s</td><td data-stat="home_xg">%s</td><td data-stat="score">%s</td>`+
			`<td data-stat="away_xg">%s</td><td data-stat="away_team">%s</td></tr>`,
			i+1, c[0], c[1], c[2], c[3], c[4], c[5])
	}
	b.WriteString("</tbody></table></body></html>")
	return []byte(b.String())
}

type stubFetcher struct {
	mu    sync.Mutex
	pages map[int][]byte
	errs  map[int]error
	calls []int
}

func (f *stubFetcher) Fetch(ctx context.Context, season int) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, season)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errs[season]; ok {
		return nil, err
	}
	return f.pages[season], nil
}

type recordingReconciler struct {
	rows     []models.FeatureRow
	fixtures []models.CanonicalMatch
	calls    int
	err      error

	failFixtures bool
}

func (r *recordingReconciler) ReconcileWithFixtures(_ context.Context, rows []models.FeatureRow, fixtures []models.CanonicalMatch) (reconcile.Result, error) {
	r.calls++
	r.rows = rows
	r.fixtures = fixtures
	if r.err != nil {
		return reconcile.Result{}, r.err
	}
	if r.failFixtures {
		return reconcile.Result{Inserted: len(rows), FixturesFailed: len(fixtures)}, nil
	}
	return reconcile.Result{Inserted: len(rows), FixturesUpserted: len(fixtures)}, nil
}

func TestRun_EndToEnd(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]byte{
		23: schedulePage(
			"2023-08-12|Arsenal|0.8|2–1|1.2|Nott'ham Forest",
			"2023-08-19|Chelsea|1.5|1–1|0.9|Arsenal",
			"2024-05-19|Arsenal||||Everton",
		),
	}}
	rec := &recordingReconciler{}

	p := New(fetcher, rec, Options{Workers: 1, Fixtures: true})
	report, err := p.Run(context.Background(), []int{23})
	require.NoError(t, err)

	assert.Equal(t, 1, rec.calls)
	assert.Len(t, rec.rows, 4)
	require.Len(t, rec.fixtures, 1)
	assert.Equal(t, "Everton", rec.fixtures[0].AwayTeam)

	assert.Equal(t, 3, report.RowsExtracted)
	assert.Equal(t, 2, report.MatchesPlayed)
	assert.Equal(t, 1, report.MatchesScheduled)
	assert.Equal(t, 4, report.FeatureRows)
	assert.Equal(t, 4, report.Inserted)
	assert.Equal(t, 1, report.FixturesUpserted)
	assert.Empty(t, report.SeasonsSkipped)
	assert.Equal(t, "success", report.Outcome(err))
	assert.NotEqual(t, [16]byte{}, [16]byte(report.RunID))
}

func TestRun_FixturesDisabled(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]byte{
		23: schedulePage(
			"2023-08-12|Arsenal|0.8|2–1|1.2|Chelsea",
			"2024-05-19|Arsenal||||Everton",
		),
	}}
	rec := &recordingReconciler{}

	_, err := New(fetcher, rec, Options{}).Run(context.Background(), []int{23})
	require.NoError(t, err)
	assert.Nil(t, rec.fixtures)
	assert.Len(t, rec.rows, 2)
}

func TestRun_SeasonFailureIsIsolated(t *testing.T) {
	page := schedulePage("2022-08-05|Crystal Palace|1.2|0–2|1.0|Arsenal")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "2021-2022") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	c := client.NewClient(client.Options{
		BaseURL:     srv.URL,
		Timeout:     5 * time.Second,
		MaxAttempts: 1,
		UserAgents:  []string{"test"},
	})
	rec := &recordingReconciler{}

	report, err := New(c, rec, Options{Workers: 2}).Run(context.Background(), []int{21, 22})
	require.NoError(t, err)

	require.Len(t, report.SeasonsSkipped, 1)
	assert.Equal(t, 21, report.SeasonsSkipped[0].Season)
	assert.Equal(t, StageFetch, report.SeasonsSkipped[0].Stage)
	assert.Len(t, rec.rows, 2)
	assert.Equal(t, "partial", report.Outcome(err))
}

func TestRun_ExtractFailureSkipsSeason(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]byte{
		20: []byte("<html><body><p>maintenance</p></body></html>"),
		21: schedulePage("2021-08-13|Brentford|1.3|2–0|1.4|Arsenal"),
	}}
	rec := &recordingReconciler{}

	report, err := New(fetcher, rec, Options{Workers: 2}).Run(context.Background(), []int{20, 21})
	require.NoError(t, err)

	require.Len(t, report.SeasonsSkipped, 1)
	assert.Equal(t, StageExtract, report.SeasonsSkipped[0].Stage)
	assert.Len(t, rec.rows, 2)
}

func TestRun_MalformedRowsCounted(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]byte{
		23: schedulePage(
			"2023-08-12|Arsenal|0.8|2–1|1.2|Chelsea",
			"not-a-date|Arsenal|0.8|2–1|1.2|Everton",
			"2023-08-20|Arsenal|x|1–0|1.2|Fulham",
		),
	}}
	rec := &recordingReconciler{}

	report, err := New(fetcher, rec, Options{}).Run(context.Background(), []int{23})
	require.NoError(t, err)
	assert.Equal(t, 2, report.RowsDropped)
	assert.Len(t, rec.rows, 2)
}

func TestRun_ZeroRowsSkipsReconcile(t *testing.T) {
	fetcher := &stubFetcher{errs: map[int]error{23: errors.New("boom")}}
	rec := &recordingReconciler{}

	report, err := New(fetcher, rec, Options{}).Run(context.Background(), []int{23})
	require.NoError(t, err)
	assert.Zero(t, rec.calls)
	assert.Equal(t, "empty", report.Outcome(err))
}

func TestRun_ReconcileErrorFailsRun(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]byte{
		23: schedulePage("2023-08-12|Arsenal|0.8|2–1|1.2|Chelsea"),
	}}
	rec := &recordingReconciler{err: &reconcile.FatalError{Attempts: 3, Err: errors.New("refused")}}

	report, err := New(fetcher, rec, Options{}).Run(context.Background(), []int{23})
	require.Error(t, err)

	var fatal *reconcile.FatalError
	assert.True(t, errors.As(err, &fatal))
	assert.Equal(t, "failed", report.Outcome(err))
}

func TestRun_FixtureFailureDoesNotFailRun(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]byte{
		23: schedulePage(
			"2023-08-12|Arsenal|0.8|2–1|1.2|Chelsea",
			"2024-05-19|Arsenal||||Everton",
		),
	}}
	rec := &recordingReconciler{failFixtures: true}

	report, err := New(fetcher, rec, Options{Fixtures: true}).Run(context.Background(), []int{23})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	assert.Zero(t, report.FixturesUpserted)
	assert.Equal(t, 1, report.FixturesFailed)
	assert.Equal(t, "success", report.Outcome(err))
}

func TestRun_Cancelled(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]byte{
		23: schedulePage("2023-08-12|Arsenal|0.8|2–1|1.2|Chelsea"),
	}}
	rec := &recordingReconciler{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(fetcher, rec, Options{}).Run(ctx, []int{23})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rec.calls)
}

func TestRun_NilReconciler(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]byte{23: schedulePage()}}
	_, err := New(fetcher, nil, Options{}).Run(context.Background(), []int{23})
	assert.Error(t, err)
}

func TestTransform_PreservesSeasonOrder(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]byte{
		21: schedulePage("2021-08-13|Brentford|1.3|2–0|1.4|Arsenal"),
		22: schedulePage("2022-08-05|Crystal Palace|1.2|0–2|1.0|Arsenal"),
		23: schedulePage("2023-08-12|Arsenal|0.8|2–1|1.2|Nott'ham Forest"),
	}}

	out, report, err := New(fetcher, nil, Options{Workers: 3}).Transform(context.Background(), []int{21, 22, 23})
	require.NoError(t, err)
	require.Len(t, out.Rows, 6)
	assert.Equal(t, 6, report.FeatureRows)
	assert.ElementsMatch(t, []int{21, 22, 23}, fetcher.calls)

	for i := 1; i < len(out.Rows); i++ {
		assert.False(t, out.Rows[i].Date.Before(out.Rows[i-1].Date))
	}

	// Arsenal's third match sees the two earlier ones.
	var last models.FeatureRow
	for _, r := range out.Rows {
		if r.Team == "Arsenal" {
			last = r
		}
	}
	require.NotNil(t, last.RollingXG)
	assert.InDelta(t, (1.4+1.0)/2, *last.RollingXG, 1e-9)
}
