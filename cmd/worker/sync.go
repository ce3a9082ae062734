package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/pipeline"
	"xgform/ingestion/internal/scheduler"
)

// runInitialSync ingests the configured seasons once on startup so the store
// is current before the first cron tick.
func runInitialSync(ctx context.Context, sched *scheduler.Scheduler) error {
	report, err := sched.RunOnce(ctx, scheduler.TriggerInitial)
	if report != nil {
		logReport(report)
	}
	return err
}

func logReport(report *pipeline.Report) {
	for _, skipped := range report.SeasonsSkipped {
		log.Warn().
			Str("run_id", report.RunID.String()).
			Int("season", skipped.Season).
			Str("stage", skipped.Stage).
			Str("error", skipped.Error).
			Msg("Season not ingested")
	}

	log.Info().
		Str("run_id", report.RunID.String()).
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int("fixtures", report.FixturesUpserted).
		Int("rows_dropped", report.RowsDropped).
		Msg("Initial ingestion summary")
}
