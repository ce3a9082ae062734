// Command dryrun fetches and transforms seasons without touching the store.
// Feature rows are printed to stdout as JSON lines; logs go to stderr.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/app"
	"xgform/ingestion/internal/config"
)

func main() {
	seasonsFlag := flag.String("seasons", "", `season range to fetch, e.g. "23" or "21-23" (default: SEASONS)`)
	fixtures := flag.Bool("fixtures", false, "print scheduled fixtures instead of feature rows")
	flag.Parse()

	// stdout carries the data
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadWithoutStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	seasons := cfg.Seasons
	if *seasonsFlag != "" {
		seasons, err = config.ParseSeasonRange(*seasonsFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -seasons")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	defer a.Close()

	out, report, err := a.Pipeline.Transform(ctx, seasons)
	if err != nil {
		log.Fatal().Err(err).Msg("Dry run failed")
	}

	w := bufio.NewWriter(os.Stdout)
	enc := json.NewEncoder(w)

	if *fixtures {
		for _, f := range out.Fixtures {
			if err := enc.Encode(f); err != nil {
				log.Fatal().Err(err).Msg("Failed to write fixture")
			}
		}
	} else {
		for _, row := range out.Rows {
			if err := enc.Encode(row); err != nil {
				log.Fatal().Err(err).Msg("Failed to write row")
			}
		}
	}
	if err := w.Flush(); err != nil {
		log.Fatal().Err(err).Msg("Failed to flush output")
	}

	log.Info().
		Str("run_id", report.RunID.String()).
		Int("feature_rows", report.FeatureRows).
		Int("fixtures", report.MatchesScheduled).
		Int("rows_dropped", report.RowsDropped).
		Int("seasons_skipped", len(report.SeasonsSkipped)).
		Msg("Dry run complete")
}
