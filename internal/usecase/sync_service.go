package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hoopsync/hoopsync/internal/domain/gamelog"
	"github.com/hoopsync/hoopsync/internal/platform/cache"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/platform/pacing"
)

// SeasonWindow bounds the calendar dates a season's game logs can occupy.
type SeasonWindow struct {
	Key   string
	Start time.Time
	End   time.Time
}

type SyncInput struct {
	PlayerKey  string
	PlayerName string
	LeagueKey  string
	// Start/End narrow the sweep; zero values default to the configured
	// season window clamped at today.
	Start time.Time
	End   time.Time
}

// SyncSummary reports one player's incremental pass. SoftErrors collects
// dates that failed without aborting the sweep. DegradedExistingLookup
// marks a pass that could not read the persisted date set and therefore
// re-checked the full window.
type SyncSummary struct {
	PlayerKey              string   `json:"playerKey"`
	PlayerName             string   `json:"playerName"`
	ExistingDates          int      `json:"existingDates"`
	CheckedDates           int      `json:"checkedDates"`
	NewGames               int      `json:"newGames"`
	SoftErrors             []string `json:"softErrors,omitempty"`
	DegradedExistingLookup bool     `json:"degradedExistingLookup,omitempty"`
}

type GameLogLine struct {
	GameDate  string            `json:"gameDate"`
	Minutes   string            `json:"minutes,omitempty"`
	Stats     map[string]string `json:"stats"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type PlayerGameLogsView struct {
	PlayerKey  string        `json:"playerKey"`
	PlayerName string        `json:"playerName,omitempty"`
	Start      string        `json:"start"`
	End        string        `json:"end"`
	Entries    []GameLogLine `json:"entries"`
}

// SyncService incrementally persists per-date game logs. Upstream calls are
// strictly sequential and paced; the upsert key (player_key, game_date)
// makes every pass idempotent.
type SyncService struct {
	league       LeagueProvider
	repo         gamelog.Repository
	compareCache *cache.Store
	pacer        *pacing.Pacer
	season       SeasonWindow
	logger       *logging.Logger
	now          func() time.Time
}

func NewSyncService(
	league LeagueProvider,
	repo gamelog.Repository,
	compareCache *cache.Store,
	pacer *pacing.Pacer,
	season SeasonWindow,
	logger *logging.Logger,
) *SyncService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SyncService{
		league:       league,
		repo:         repo,
		compareCache: compareCache,
		pacer:        pacer,
		season:       season,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *SyncService) SyncPlayerGameLogs(ctx context.Context, token string, input SyncInput) (SyncSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.SyncPlayerGameLogs")
	defer span.End()

	input.PlayerKey = strings.TrimSpace(input.PlayerKey)
	if input.PlayerKey == "" {
		return SyncSummary{}, fmt.Errorf("%w: player key is required", ErrInvalidInput)
	}
	if s.repo == nil {
		return SyncSummary{}, fmt.Errorf("%w: game log storage is not configured", ErrNotConfigured)
	}

	start, end, err := s.resolveWindow(input.Start, input.End)
	if err != nil {
		return SyncSummary{}, err
	}

	// The display name may arrive with the request or from the first fetched
	// stat line that carries one, whichever is observed first.
	playerName := strings.TrimSpace(input.PlayerName)

	summary := SyncSummary{
		PlayerKey:  input.PlayerKey,
		PlayerName: playerName,
	}

	existing, err := s.repo.ListGameDates(ctx, input.PlayerKey)
	if err != nil {
		// Storage read failure degrades to a full re-check of the window.
		// The upsert keeps that correct; the flag keeps it observable.
		s.logger.WarnContext(ctx, "game date lookup failed, syncing full window",
			"player_key", input.PlayerKey, "error", err)
		summary.DegradedExistingLookup = true
		existing = nil
	}

	existingSet := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		existingSet[gamelog.DateOnly(d).Format(time.DateOnly)] = struct{}{}
	}
	summary.ExistingDates = len(existingSet)

	missing := missingDates(start, end, existingSet)
	newGames := 0
	defer func() {
		if newGames > 0 && s.compareCache != nil {
			s.compareCache.DeletePrefix(ctx, cache.Key("compare"))
			s.compareCache.DeletePrefix(ctx, cache.Key("team"))
		}
	}()

	for _, date := range missing {
		if err := s.pacer.Wait(ctx); err != nil {
			return summary, err
		}

		stats, err := s.league.GetPlayerStatsByDate(ctx, token, input.PlayerKey, date)
		if err != nil {
			if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnauthorized) {
				return summary, fmt.Errorf("fetch stats player=%s date=%s: %w",
					input.PlayerKey, date.Format(time.DateOnly), err)
			}
			s.logger.WarnContext(ctx, "skip game date",
				"player_key", input.PlayerKey, "date", date.Format(time.DateOnly), "error", err)
			summary.SoftErrors = append(summary.SoftErrors,
				fmt.Sprintf("%s: %v", date.Format(time.DateOnly), err))
			continue
		}

		summary.CheckedDates++
		if playerName == "" {
			if name := strings.TrimSpace(stats.PlayerName); name != "" {
				playerName = name
				summary.PlayerName = name
			}
		}
		if !hasGameStats(stats.Stats) {
			continue
		}

		entry := gamelog.Entry{
			PlayerKey:  input.PlayerKey,
			PlayerName: playerName,
			LeagueKey:  input.LeagueKey,
			SeasonKey:  s.season.Key,
			GameDate:   date,
			Minutes:    stats.Stats[minutesStatID],
			Stats:      stats.Stats,
			UpdatedAt:  s.now().UTC(),
		}
		if err := s.repo.UpsertEntry(ctx, entry); err != nil {
			s.logger.WarnContext(ctx, "persist game log failed",
				"player_key", input.PlayerKey, "date", date.Format(time.DateOnly), "error", err)
			summary.SoftErrors = append(summary.SoftErrors,
				fmt.Sprintf("%s: persist: %v", date.Format(time.DateOnly), err))
			continue
		}
		newGames++
		summary.NewGames++
	}

	s.logger.InfoContext(ctx, "player game log sync finished",
		"player_key", input.PlayerKey,
		"existing", summary.ExistingDates,
		"checked", summary.CheckedDates,
		"new_games", summary.NewGames,
		"soft_errors", len(summary.SoftErrors),
		"degraded_lookup", summary.DegradedExistingLookup,
	)
	return summary, nil
}

// ListPlayerGameLogs reads a player's persisted game logs for a date window.
// Zero bounds default to the season window clamped at today, matching the
// synchronizer's sweep window.
func (s *SyncService) ListPlayerGameLogs(ctx context.Context, playerKey string, start, end time.Time) (PlayerGameLogsView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.ListPlayerGameLogs")
	defer span.End()

	playerKey = strings.TrimSpace(playerKey)
	if playerKey == "" {
		return PlayerGameLogsView{}, fmt.Errorf("%w: player key is required", ErrInvalidInput)
	}
	if s.repo == nil {
		return PlayerGameLogsView{}, fmt.Errorf("%w: game log storage is not configured", ErrNotConfigured)
	}

	start, end, err := s.resolveWindow(start, end)
	if err != nil {
		return PlayerGameLogsView{}, err
	}

	entries, err := s.repo.ListEntriesByRange(ctx, playerKey, start, end)
	if err != nil {
		return PlayerGameLogsView{}, fmt.Errorf("list game logs player=%s: %w", playerKey, err)
	}

	view := PlayerGameLogsView{
		PlayerKey: playerKey,
		Start:     start.Format(time.DateOnly),
		End:       end.Format(time.DateOnly),
		Entries:   make([]GameLogLine, 0, len(entries)),
	}
	for _, e := range entries {
		if view.PlayerName == "" {
			view.PlayerName = e.PlayerName
		}
		view.Entries = append(view.Entries, GameLogLine{
			GameDate:  gamelog.DateOnly(e.GameDate).Format(time.DateOnly),
			Minutes:   e.Minutes,
			Stats:     e.Stats,
			UpdatedAt: e.UpdatedAt,
		})
	}
	return view, nil
}

func (s *SyncService) resolveWindow(start, end time.Time) (time.Time, time.Time, error) {
	today := gamelog.DateOnly(s.now())

	if start.IsZero() {
		start = s.season.Start
	}
	if start.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: season start date is not configured", ErrNotConfigured)
	}
	start = gamelog.DateOnly(start)

	if end.IsZero() {
		end = today
		if !s.season.End.IsZero() && s.season.End.Before(end) {
			end = s.season.End
		}
	}
	end = gamelog.DateOnly(end)

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: sync window end %s precedes start %s",
			ErrInvalidInput, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return start, end, nil
}

// missingDates returns the window dates absent from the persisted set, in
// ascending order.
func missingDates(start, end time.Time, existing map[string]struct{}) []time.Time {
	out := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if _, ok := existing[d.Format(time.DateOnly)]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

// hasGameStats reports whether a stat line represents a played game. The
// provider answers date queries for off days with an all-sentinel line
// where every value is "-", "" or some spelling of zero ("0", "0.0").
func hasGameStats(stats map[string]string) bool {
	for _, value := range stats {
		v := strings.TrimSpace(value)
		switch v {
		case "", "-":
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed != 0 {
			return true
		}
	}
	return false
}
