package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hoopsync/hoopsync/internal/app"
	"github.com/hoopsync/hoopsync/internal/config"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/usecase"
)

// One-shot league backfill for operators. The provider bearer token comes
// from LEAGUE_ACCESS_TOKEN because it must never land in shell history.
func main() {
	var (
		leagueKey  = flag.String("league-key", "", "league key to sweep (required)")
		startDate  = flag.String("start", "", "window start date YYYY-MM-DD (default: season start)")
		endDate    = flag.String("end", "", "window end date YYYY-MM-DD (default: today)")
		maxPlayers = flag.Int("max-players", 0, "cap the sweep at N players (0 = whole league)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() {
		_ = logger.Sync()
	}()

	if strings.TrimSpace(*leagueKey) == "" {
		logger.Error("missing required flag", "flag", "league-key")
		os.Exit(2)
	}
	token := strings.TrimSpace(os.Getenv("LEAGUE_ACCESS_TOKEN"))
	if token == "" {
		logger.Error("LEAGUE_ACCESS_TOKEN is required")
		os.Exit(2)
	}

	input := usecase.BackfillInput{
		LeagueKey:  *leagueKey,
		MaxPlayers: *maxPlayers,
	}
	if *startDate != "" {
		if input.Start, err = time.Parse(time.DateOnly, *startDate); err != nil {
			logger.Error("invalid start date", "value", *startDate, "error", err)
			os.Exit(2)
		}
	}
	if *endDate != "" {
		if input.End, err = time.Parse(time.DateOnly, *endDate); err != nil {
			logger.Error("invalid end date", "value", *endDate, "error", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	result, err := application.Backfill.BackfillLeague(ctx, token, input)
	logger.Info("backfill finished",
		"league_key", result.LeagueKey,
		"players_processed", result.PlayersProcessed,
		"total_new_games", result.TotalNewGames,
		"total_checked", result.TotalChecked,
		"soft_errors", len(result.SoftErrors),
	)
	for _, soft := range result.SoftErrors {
		logger.Warn("backfill soft error", "detail", soft)
	}
	if err != nil {
		logger.Error("backfill aborted", "error", err)
		os.Exit(1)
	}
}
