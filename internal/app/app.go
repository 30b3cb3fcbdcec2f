package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/hoopsync/hoopsync/external/hoopstats"
	"github.com/hoopsync/hoopsync/external/jobqueue"
	"github.com/hoopsync/hoopsync/external/yahoo"
	"github.com/hoopsync/hoopsync/internal/config"
	"github.com/hoopsync/hoopsync/internal/domain/gamelog"
	"github.com/hoopsync/hoopsync/internal/infrastructure/repository/postgres"
	"github.com/hoopsync/hoopsync/internal/interfaces/httpapi"
	"github.com/hoopsync/hoopsync/internal/platform/cache"
	idgen "github.com/hoopsync/hoopsync/internal/platform/id"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/platform/pacing"
	"github.com/hoopsync/hoopsync/internal/platform/resilience"
	"github.com/hoopsync/hoopsync/internal/usecase"
)

// App bundles the built HTTP server with the handles that need explicit
// teardown on shutdown.
type App struct {
	Server   *http.Server
	Backfill *usecase.BackfillService
	DB       *sqlx.DB
}

func (a *App) Close() {
	if a.Backfill != nil {
		a.Backfill.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	window, ok := cfg.SeasonWindowForKey(cfg.SeasonKey)
	if !ok {
		return nil, fmt.Errorf("no season window configured for season %q", cfg.SeasonKey)
	}
	season := usecase.SeasonWindow{
		Key:   cfg.SeasonKey,
		Start: window.Start,
		End:   window.End,
	}

	// Game log storage is optional: without DB_URL the sync endpoints answer
	// ErrNotConfigured while the read paths stay up.
	var (
		db       *sqlx.DB
		gameLogs gamelog.Repository
	)
	if cfg.DBURL != "" {
		opened, err := otelsqlx.Open("postgres",
			normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
			otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
			otelsql.WithQueryFormatter(formatDBQueryForTrace),
		)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := opened.PingContext(ctx); err != nil {
			_ = opened.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		db = opened
		gameLogs = postgres.NewGameLogRepository(db)
	} else {
		logger.Warn("game log storage disabled", "reason", "DB_URL empty")
	}

	leagueClient := yahoo.NewClient(yahoo.ClientConfig{
		BaseURL: cfg.YahooBaseURL,
		Timeout: cfg.YahooTimeout,
		Logger:  logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.YahooCircuitEnabled,
			FailureThreshold: cfg.YahooCircuitFailureCount,
			OpenTimeout:      cfg.YahooCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.YahooCircuitHalfOpenMaxReq,
		},
	})

	var statsProvider usecase.StatsProvider
	if cfg.HoopStatsEnabled {
		statsProvider = hoopstats.NewClient(hoopstats.ClientConfig{
			BaseURL: cfg.HoopStatsBaseURL,
			APIKey:  cfg.HoopStatsAPIKey,
			Timeout: cfg.HoopStatsTimeout,
			Logger:  logger,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.HoopStatsCircuitEnabled,
				FailureThreshold: cfg.HoopStatsCircuitFailureCount,
				OpenTimeout:      cfg.HoopStatsCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.HoopStatsCircuitHalfOpenMaxReq,
			},
		})
	} else {
		logger.Warn("statistics provider disabled", "reason", "HOOPSTATS_ENABLED=false")
	}

	seasonCache := cache.NewStore(cfg.SeasonCacheTTL)
	compareCache := cache.NewStore(cfg.CompareCacheTTL)
	pacer := pacing.NewPacer(cfg.ProviderCallGap)

	statsSvc := usecase.NewStatsService(leagueClient, statsProvider, cfg.SeasonKey, seasonCache, compareCache, pacer, logger)
	syncSvc := usecase.NewSyncService(leagueClient, gameLogs, compareCache, pacer, season, logger)
	backfillSvc, err := usecase.NewBackfillService(syncSvc, leagueClient, pacer, idgen.NewRandomGenerator(), logger)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	if cfg.QStashEnabled {
		backfillSvc.WithQueue(jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          cfg.QStashBaseURL,
			Token:            cfg.QStashToken,
			TargetBaseURL:    cfg.QStashTargetBaseURL,
			Retries:          cfg.QStashRetries,
			InternalJobToken: cfg.InternalJobToken,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.QStashCircuitEnabled,
				FailureThreshold: cfg.QStashCircuitFailureCount,
				OpenTimeout:      cfg.QStashCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.QStashCircuitHalfOpenMaxReq,
			},
		}, logger))
	}

	handler := httpapi.NewHandler(statsSvc, syncSvc, backfillSvc, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		backfillSvc.Close()
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:   server,
		Backfill: backfillSvc,
		DB:       db,
	}, nil
}
