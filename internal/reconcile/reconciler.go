// Package reconcile writes feature rows into the relational store.
//
// A pass moves through connecting, resolving team ids, staging rows against
// those ids and a single transactional upsert keyed by (date, team, opponent).
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/metrics"
	"xgform/ingestion/internal/models"
)

// Store is the persistence surface the reconciler needs.
type Store interface {
	Ping(ctx context.Context) error
	InsertTeams(ctx context.Context, names []string) error
	TeamIDs(ctx context.Context) (models.TeamIDs, error)
	UpsertMatches(ctx context.Context, rows []*models.PersistedMatch) (inserted, updated int, err error)
	UpsertFixtures(ctx context.Context, fixtures []models.Fixture) (int, error)
}

// Dialer opens (or hands out) a Store. The dialer owns the store's lifetime.
type Dialer interface {
	Connect(ctx context.Context) (Store, error)
}

// FatalError means the store could not be reached within the configured
// connection attempts.
type FatalError struct {
	Attempts int
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("store unreachable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Result summarizes one reconcile pass.
type Result struct {
	Inserted         int
	Updated          int
	Dropped          int
	FixturesUpserted int
	// FixturesFailed counts scheduled matches whose upsert failed. Fixture
	// writes never fail the pass.
	FixturesFailed int
}

// Options controls connection retries.
type Options struct {
	ConnectAttempts int
	ConnectDelay    time.Duration
}

// Reconciler upserts feature rows idempotently.
type Reconciler struct {
	dialer Dialer
	opts   Options

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a reconciler
func New(dialer Dialer, opts Options) *Reconciler {
	if opts.ConnectAttempts < 1 {
		opts.ConnectAttempts = 1
	}
	return &Reconciler{dialer: dialer, opts: opts, sleep: sleepCtx}
}

// Reconcile writes played-match feature rows.
func (r *Reconciler) Reconcile(ctx context.Context, rows []models.FeatureRow) (Result, error) {
	return r.ReconcileWithFixtures(ctx, rows, nil)
}

// ReconcileWithFixtures writes feature rows and upserts scheduled matches
// into the fixtures table. Rows whose team or opponent cannot be resolved
// are dropped and counted.
func (r *Reconciler) ReconcileWithFixtures(ctx context.Context, rows []models.FeatureRow, fixtures []models.CanonicalMatch) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordReconcile(time.Since(start).Seconds())
	}()

	var res Result

	store, err := r.connect(ctx)
	if err != nil {
		return res, err
	}

	ids, err := r.resolveTeams(ctx, store, rows, fixtures)
	if err != nil {
		return res, err
	}

	staged, dropped := Stage(rows, ids)
	res.Dropped = dropped

	if len(staged) > 0 {
		res.Inserted, res.Updated, err = store.UpsertMatches(ctx, staged)
		if err != nil {
			return res, fmt.Errorf("failed to upsert matches: %w", err)
		}
		metrics.RecordUpsert(res.Inserted, res.Updated)
	}

	if len(fixtures) > 0 {
		resolved := stageFixtures(fixtures, ids)
		if len(resolved) > 0 {
			res.FixturesUpserted, err = store.UpsertFixtures(ctx, resolved)
			if err != nil {
				res.FixturesUpserted = 0
				res.FixturesFailed = len(resolved)
				metrics.RecordError("reconcile", "fixtures")
				log.Warn().
					Err(err).
					Int("fixtures", len(resolved)).
					Msg("Fixture upsert failed, continuing with match results")
			}
		}
	}

	log.Info().
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("dropped", res.Dropped).
		Int("fixtures", res.FixturesUpserted).
		Int("fixtures_failed", res.FixturesFailed).
		Dur("duration", time.Since(start)).
		Msg("Reconcile complete")

	return res, nil
}

func (r *Reconciler) connect(ctx context.Context) (Store, error) {
	var lastErr error
	for attempt := 1; attempt <= r.opts.ConnectAttempts; attempt++ {
		store, err := r.dialer.Connect(ctx)
		if err == nil {
			err = store.Ping(ctx)
		}
		if err == nil {
			return store, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.opts.ConnectAttempts).
			Msg("Store connection failed")

		if attempt < r.opts.ConnectAttempts {
			if err := r.sleep(ctx, r.opts.ConnectDelay); err != nil {
				return nil, err
			}
		}
	}

	metrics.RecordError("reconcile", "connect")
	return nil, &FatalError{Attempts: r.opts.ConnectAttempts, Err: lastErr}
}

// resolveTeams inserts every team name seen in this batch and reads back
// the complete name to id mapping.
func (r *Reconciler) resolveTeams(ctx context.Context, store Store, rows []models.FeatureRow, fixtures []models.CanonicalMatch) (models.TeamIDs, error) {
	seen := make(map[string]struct{})
	for i := range rows {
		seen[rows[i].Team] = struct{}{}
	}
	for i := range fixtures {
		seen[fixtures[i].HomeTeam] = struct{}{}
		seen[fixtures[i].AwayTeam] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if len(names) > 0 {
		if err := store.InsertTeams(ctx, names); err != nil {
			return nil, fmt.Errorf("failed to insert teams: %w", err)
		}
	}

	ids, err := store.TeamIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read team ids: %w", err)
	}

	log.Debug().Int("batch_teams", len(names)).Int("known_teams", len(ids)).Msg("Teams resolved")
	return ids, nil
}

// Stage attaches team ids to rows. Unresolvable rows are dropped; rows
// sharing a natural key collapse to the last one seen.
func Stage(rows []models.FeatureRow, ids models.TeamIDs) ([]*models.PersistedMatch, int) {
	staged := make([]*models.PersistedMatch, 0, len(rows))
	byKey := make(map[models.MatchKey]int, len(rows))
	dropped := 0

	for i := range rows {
		row := &rows[i]
		teamID, ok := ids.Lookup(row.Team)
		if !ok {
			dropped++
			log.Warn().Str("team", row.Team).Time("date", row.Date).Msg("Unresolved team, dropping row")
			continue
		}
		opponentID, ok := ids.Lookup(row.Opponent)
		if !ok {
			dropped++
			log.Warn().Str("opponent", row.Opponent).Time("date", row.Date).Msg("Unresolved opponent, dropping row")
			continue
		}

		pm := row.ToPersisted(teamID, opponentID)
		key := pm.Key()
		if at, dup := byKey[key]; dup {
			staged[at] = pm
			continue
		}
		byKey[key] = len(staged)
		staged = append(staged, pm)
	}

	metrics.RecordRowsDropped("reconcile", dropped)
	return staged, dropped
}

func stageFixtures(matches []models.CanonicalMatch, ids models.TeamIDs) []models.Fixture {
	out := make([]models.Fixture, 0, len(matches))
	seen := make(map[models.MatchKey]struct{}, len(matches))

	for i := range matches {
		m := &matches[i]
		if m.IsPlayed() {
			continue
		}
		home, okHome := ids.Lookup(m.HomeTeam)
		away, okAway := ids.Lookup(m.AwayTeam)
		if !okHome || !okAway {
			log.Warn().Str("home", m.HomeTeam).Str("away", m.AwayTeam).Msg("Unresolved fixture, skipping")
			continue
		}

		key := models.MatchKey{Date: m.Date, TeamID: home, OpponentID: away}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.Fixture{Date: m.Date, Season: m.Season, HomeTeamID: home, AwayTeamID: away})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
