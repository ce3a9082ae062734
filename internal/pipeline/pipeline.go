// Package pipeline runs one ingestion pass: fetch, extract, normalize,
// expand, compute features and reconcile.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/extract"
	"xgform/ingestion/internal/features"
	"xgform/ingestion/internal/metrics"
	"xgform/ingestion/internal/models"
	"xgform/ingestion/internal/normalize"
	"xgform/ingestion/internal/reconcile"
)

// Stage names used in reports and metrics.
const (
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StageReconcile = "reconcile"
)

// Fetcher returns the raw page for a season.
type Fetcher interface {
	Fetch(ctx context.Context, season int) ([]byte, error)
}

// Reconciler persists feature rows and fixtures.
type Reconciler interface {
	ReconcileWithFixtures(ctx context.Context, rows []models.FeatureRow, fixtures []models.CanonicalMatch) (reconcile.Result, error)
}

// Options tunes a pipeline.
type Options struct {
	// Workers bounds concurrent season fetches.
	Workers int
	// Fixtures forwards scheduled matches to the reconciler.
	Fixtures bool
}

// SeasonFailure records why a season contributed no rows.
type SeasonFailure struct {
	Season int    `json:"season"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

// Report summarizes one run.
type Report struct {
	RunID            uuid.UUID       `json:"run_id"`
	Seasons          []int           `json:"seasons"`
	SeasonsSkipped   []SeasonFailure `json:"seasons_skipped"`
	RowsExtracted    int             `json:"rows_extracted"`
	RowsDropped      int             `json:"rows_dropped"`
	MatchesPlayed    int             `json:"matches_played"`
	MatchesScheduled int             `json:"matches_scheduled"`
	FeatureRows      int             `json:"feature_rows"`
	Inserted         int             `json:"inserted"`
	Updated          int             `json:"updated"`
	FixturesUpserted int             `json:"fixtures_upserted"`
	FixturesFailed   int             `json:"fixtures_failed"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
}

// Outcome classifies the run for metrics.
func (r *Report) Outcome(err error) string {
	switch {
	case err != nil:
		return "failed"
	case r.FeatureRows == 0 && r.MatchesScheduled == 0:
		return "empty"
	case len(r.SeasonsSkipped) > 0:
		return "partial"
	default:
		return "success"
	}
}

// Output is the transformed, not yet persisted, result of a run.
type Output struct {
	Rows     []models.FeatureRow
	Fixtures []models.CanonicalMatch
}

// Pipeline wires the stages together.
type Pipeline struct {
	fetcher    Fetcher
	reconciler Reconciler
	opts       Options
}

// New creates a pipeline. reconciler may be nil when only Transform is used.
func New(fetcher Fetcher, reconciler Reconciler, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{fetcher: fetcher, reconciler: reconciler, opts: opts}
}

// Run ingests seasons end to end. Per-season failures are recorded in the
// report and do not fail the run; a reconcile error or cancellation does.
func (p *Pipeline) Run(ctx context.Context, seasons []int) (*Report, error) {
	report := newReport(seasons)
	logger := log.With().Str("run_id", report.RunID.String()).Logger()

	logger.Info().Ints("seasons", seasons).Msg("Ingestion run started")

	out, err := p.transform(ctx, seasons, report, logger)
	if err != nil {
		return p.finish(report, logger, err)
	}

	if p.reconciler == nil {
		return p.finish(report, logger, errors.New("pipeline has no reconciler"))
	}

	if len(out.Rows) == 0 && len(out.Fixtures) == 0 {
		return p.finish(report, logger, nil)
	}

	if err := ctx.Err(); err != nil {
		return p.finish(report, logger, err)
	}

	fixtures := out.Fixtures
	if !p.opts.Fixtures {
		fixtures = nil
	}

	res, err := p.reconciler.ReconcileWithFixtures(ctx, out.Rows, fixtures)
	report.Inserted = res.Inserted
	report.Updated = res.Updated
	report.FixturesUpserted = res.FixturesUpserted
	report.FixturesFailed = res.FixturesFailed
	report.RowsDropped += res.Dropped
	if err != nil {
		metrics.RecordError(StageReconcile, errorType(err))
		return p.finish(report, logger, fmt.Errorf("reconcile: %w", err))
	}

	return p.finish(report, logger, nil)
}

// Transform runs every stage except reconcile.
func (p *Pipeline) Transform(ctx context.Context, seasons []int) (*Output, *Report, error) {
	report := newReport(seasons)
	logger := log.With().Str("run_id", report.RunID.String()).Logger()

	out, err := p.transform(ctx, seasons, report, logger)
	report.FinishedAt = time.Now()
	return out, report, err
}

func newReport(seasons []int) *Report {
	return &Report{
		RunID:     uuid.New(),
		Seasons:   append([]int(nil), seasons...),
		StartedAt: time.Now(),
	}
}

func (p *Pipeline) transform(ctx context.Context, seasons []int, report *Report, logger zerolog.Logger) (*Output, error) {
	pages, err := p.fetchAll(ctx, seasons)
	if err != nil {
		return nil, err
	}

	var played, scheduled []models.CanonicalMatch
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if page.err != nil {
			if isCancel(page.err) {
				return nil, page.err
			}
			skip(report, logger, page.season, StageFetch, page.err)
			continue
		}

		raw, err := extract.Extract(page.body, page.season)
		if err != nil {
			skip(report, logger, page.season, StageExtract, err)
			continue
		}
		report.RowsExtracted += len(raw)

		matches, rowErrs := normalize.Normalize(raw)
		if len(rowErrs) > 0 {
			report.RowsDropped += len(rowErrs)
			metrics.RecordRowsDropped(StageNormalize, len(rowErrs))
			logger.Warn().
				Int("season", page.season).
				Int("dropped", len(rowErrs)).
				Str("first_error", rowErrs[0].Error()).
				Msg("Rows excluded during normalization")
		}

		for _, m := range matches {
			if m.IsPlayed() {
				played = append(played, m)
			} else {
				scheduled = append(scheduled, m)
			}
		}

		logger.Info().
			Int("season", page.season).
			Int("rows", len(raw)).
			Int("matches", len(matches)).
			Msg("Season parsed")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.MatchesPlayed = len(played)
	report.MatchesScheduled = len(scheduled)

	rows := features.Compute(features.Expand(played))
	report.FeatureRows = len(rows)

	if len(rows) == 0 {
		logger.Warn().Ints("seasons", seasons).Msg("Run produced zero feature rows")
	}

	return &Output{Rows: rows, Fixtures: scheduled}, nil
}

type seasonPage struct {
	season int
	body   []byte
	err    error
}

// fetchAll fetches seasons on a bounded pool and returns pages in input order.
func (p *Pipeline) fetchAll(ctx context.Context, seasons []int) ([]seasonPage, error) {
	pages := make([]seasonPage, len(seasons))

	pool, err := ants.NewPool(p.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for i, season := range seasons {
		i, season := i, season
		pages[i].season = season

		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			if err := ctx.Err(); err != nil {
				pages[i].err = err
				return
			}
			pages[i].body, pages[i].err = p.fetcher.Fetch(ctx, season)
		}); err != nil {
			workers.Done()
			workers.Wait()
			return nil, fmt.Errorf("submit task to worker pool: %w", err)
		}
	}
	workers.Wait()

	return pages, nil
}

func (p *Pipeline) finish(report *Report, logger zerolog.Logger, err error) (*Report, error) {
	report.FinishedAt = time.Now()

	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Int("seasons_skipped", len(report.SeasonsSkipped)).
		Int("rows_extracted", report.RowsExtracted).
		Int("rows_dropped", report.RowsDropped).
		Int("feature_rows", report.FeatureRows).
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int("fixtures", report.FixturesUpserted).
		Int("fixtures_failed", report.FixturesFailed).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Ingestion run finished")

	return report, err
}

func skip(report *Report, logger zerolog.Logger, season int, stage string, err error) {
	report.SeasonsSkipped = append(report.SeasonsSkipped, SeasonFailure{Season: season, Stage: stage, Error: err.Error()})
	metrics.RecordSeasonSkipped(stage)
	metrics.RecordError(stage, errorType(err))
	logger.Warn().Err(err).Int("season", season).Str("stage", stage).Msg("Season skipped")
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func errorType(err error) string {
	var fatal *reconcile.FatalError
	var extractErr *extract.ExtractionError
	switch {
	case isCancel(err):
		return "cancelled"
	case errors.As(err, &fatal):
		return "fatal"
	case errors.As(err, &extractErr):
		return extractErr.Reason
	default:
		return "error"
	}
}
