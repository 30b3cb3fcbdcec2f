package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/hoopsync/hoopsync/internal/domain/gamelog"
	"github.com/hoopsync/hoopsync/internal/domain/roster"
	"github.com/hoopsync/hoopsync/internal/platform/cache"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/platform/pacing"
)

type PlayerStatLine struct {
	PlayerKey string      `json:"playerKey"`
	Name      string      `json:"name"`
	Position  string      `json:"position"`
	Status    string      `json:"status,omitempty"`
	Stats     *StatBundle `json:"stats,omitempty"`
}

type TeamStatsView struct {
	TeamKey     string               `json:"teamKey"`
	TeamName    string               `json:"teamName"`
	Range       string               `json:"range"`
	Weeks       int                  `json:"weeks,omitempty"`
	Players     []PlayerStatLine     `json:"players"`
	Diagnostics ReconcileDiagnostics `json:"diagnostics"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

type RosterComparison struct {
	Left        TeamStatsView `json:"left"`
	Right       TeamStatsView `json:"right"`
	Range       string        `json:"range"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

type TeamWeekTotals struct {
	TeamKey  string            `json:"teamKey"`
	TeamName string            `json:"teamName"`
	Week     int               `json:"week"`
	Totals   map[string]string `json:"totals,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type LeagueStatsView struct {
	LeagueKey   string           `json:"leagueKey"`
	Range       string           `json:"range"`
	FirstWeek   int              `json:"firstWeek"`
	Week        int              `json:"week"`
	Teams       []TeamWeekTotals `json:"teams"`
	SoftErrors  int              `json:"softErrors"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// StatsService joins league rosters with aggregate stats from the
// independent statistics provider.
type StatsService struct {
	league       LeagueProvider
	stats        StatsProvider
	seasonKey    string
	seasonCache  *cache.Store
	compareCache *cache.Store
	pacer        *pacing.Pacer
	logger       *logging.Logger
}

func NewStatsService(
	league LeagueProvider,
	stats StatsProvider,
	seasonKey string,
	seasonCache *cache.Store,
	compareCache *cache.Store,
	pacer *pacing.Pacer,
	logger *logging.Logger,
) *StatsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsService{
		league:       league,
		stats:        stats,
		seasonKey:    strings.TrimSpace(seasonKey),
		seasonCache:  seasonCache,
		compareCache: compareCache,
		pacer:        pacer,
		logger:       logger,
	}
}

// GetTeamStats resolves the range token strictly: an unknown token is the
// caller's mistake and fails with ErrInvalidInput.
func (s *StatsService) GetTeamStats(ctx context.Context, token, teamKey, rangeToken string) (TeamStatsView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.GetTeamStats")
	defer span.End()

	teamKey = strings.TrimSpace(teamKey)
	if teamKey == "" {
		return TeamStatsView{}, fmt.Errorf("%w: team key is required", ErrInvalidInput)
	}

	policy, err := ResolveRange(rangeToken)
	if err != nil {
		return TeamStatsView{}, err
	}

	cacheKey := cache.Key("team", teamKey, rangeLabel(rangeToken))
	if cached, ok := s.compareCache.Get(ctx, cacheKey); ok {
		if view, ok := cached.(TeamStatsView); ok {
			return view, nil
		}
	}

	team, err := s.league.GetTeamRoster(ctx, token, teamKey)
	if err != nil {
		return TeamStatsView{}, fmt.Errorf("fetch roster team=%s: %w", teamKey, err)
	}

	view, err := s.buildTeamView(ctx, team, rangeToken, policy)
	if err != nil {
		return TeamStatsView{}, err
	}

	s.compareCache.Set(ctx, cacheKey, view)
	return view, nil
}

// CompareRosters resolves the range token leniently: an unknown token falls
// back to the trailing week so a stale client link still renders. Both
// rosters are fetched concurrently and either failure fails the comparison.
func (s *StatsService) CompareRosters(ctx context.Context, token, teamKey, opponentKey, rangeToken string) (RosterComparison, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.CompareRosters")
	defer span.End()

	teamKey = strings.TrimSpace(teamKey)
	opponentKey = strings.TrimSpace(opponentKey)
	if teamKey == "" || opponentKey == "" {
		return RosterComparison{}, fmt.Errorf("%w: both team keys are required", ErrInvalidInput)
	}
	if teamKey == opponentKey {
		return RosterComparison{}, fmt.Errorf("%w: cannot compare a team against itself", ErrInvalidInput)
	}

	policy := ResolveRangeOrDefault(rangeToken)

	cacheKey := cache.Key("compare", teamKey, opponentKey, rangeLabel(rangeToken))
	if cached, ok := s.compareCache.Get(ctx, cacheKey); ok {
		if view, ok := cached.(RosterComparison); ok {
			return view, nil
		}
	}

	var left, right roster.Team
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		team, err := s.league.GetTeamRoster(ctx, token, teamKey)
		if err != nil {
			return fmt.Errorf("fetch roster team=%s: %w", teamKey, err)
		}
		left = team
		return nil
	})
	p.Go(func(ctx context.Context) error {
		team, err := s.league.GetTeamRoster(ctx, token, opponentKey)
		if err != nil {
			return fmt.Errorf("fetch roster team=%s: %w", opponentKey, err)
		}
		right = team
		return nil
	})
	if err := p.Wait(); err != nil {
		return RosterComparison{}, err
	}

	keyspace, err := s.keyspaceForPolicy(ctx, policy)
	if err != nil {
		return RosterComparison{}, err
	}

	now := time.Now().UTC()
	comparison := RosterComparison{
		Left:        assembleTeamView(left, rangeToken, policy, keyspace, now),
		Right:       assembleTeamView(right, rangeToken, policy, keyspace, now),
		Range:       rangeLabel(rangeToken),
		GeneratedAt: now,
	}

	s.compareCache.Set(ctx, cacheKey, comparison)
	return comparison, nil
}

// GetLeagueStats walks every team's weekly totals over the weeks the range
// policy covers, strictly sequentially and pacing each provider call. A
// failed team-week is recorded and skipped.
func (s *StatsService) GetLeagueStats(ctx context.Context, token, leagueKey, rangeToken string) (LeagueStatsView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.GetLeagueStats")
	defer span.End()

	leagueKey = strings.TrimSpace(leagueKey)
	if leagueKey == "" {
		return LeagueStatsView{}, fmt.Errorf("%w: league key is required", ErrInvalidInput)
	}
	policy, err := ResolveRange(rangeToken)
	if err != nil {
		return LeagueStatsView{}, err
	}

	meta, err := s.league.GetLeagueMeta(ctx, token, leagueKey)
	if err != nil {
		return LeagueStatsView{}, fmt.Errorf("fetch league meta league=%s: %w", leagueKey, err)
	}
	firstWeek, lastWeek := leagueWeekSpan(meta, policy)

	cacheKey := cache.Key("league", leagueKey, "weeks",
		strconv.Itoa(firstWeek), strconv.Itoa(lastWeek))
	if cached, ok := s.compareCache.Get(ctx, cacheKey); ok {
		if view, ok := cached.(LeagueStatsView); ok {
			return view, nil
		}
	}

	teams, err := s.league.ListLeagueTeams(ctx, token, leagueKey)
	if err != nil {
		return LeagueStatsView{}, fmt.Errorf("list league teams league=%s: %w", leagueKey, err)
	}

	view := LeagueStatsView{
		LeagueKey:   leagueKey,
		Range:       rangeLabel(rangeToken),
		FirstWeek:   firstWeek,
		Week:        lastWeek,
		Teams:       make([]TeamWeekTotals, 0, len(teams)*(lastWeek-firstWeek+1)),
		GeneratedAt: time.Now().UTC(),
	}
	for week := firstWeek; week <= lastWeek; week++ {
		for _, team := range teams {
			if err := s.pacer.Wait(ctx); err != nil {
				return LeagueStatsView{}, err
			}

			row := TeamWeekTotals{TeamKey: team.TeamKey, TeamName: team.Name, Week: week}
			weekStats, err := s.league.GetTeamWeekStats(ctx, token, team.TeamKey, week)
			if err != nil {
				if isFatalProviderErr(err) {
					return LeagueStatsView{}, fmt.Errorf("fetch week stats team=%s week=%d: %w", team.TeamKey, week, err)
				}
				s.logger.WarnContext(ctx, "skip team week totals", "team_key", team.TeamKey, "week", week, "error", err)
				row.Error = err.Error()
				view.SoftErrors++
			} else {
				row.Totals = weekStats.StatTotals
			}
			view.Teams = append(view.Teams, row)
		}
	}

	s.compareCache.Set(ctx, cacheKey, view)
	return view, nil
}

// leagueWeekSpan resolves the inclusive week span a range policy covers,
// clamped to the league schedule. Season ranges start at the schedule's first
// week; trailing windows reach back one week per policy week.
func leagueWeekSpan(meta roster.League, policy RangePolicy) (first, last int) {
	last = meta.CurrentWeek
	if last < 1 {
		last = 1
	}
	start := meta.StartWeek
	if start < 1 {
		start = 1
	}
	if start > last {
		start = last
	}
	if policy.UseSeasonAggregates {
		return start, last
	}
	first = last - policy.Weeks + 1
	if first < start {
		first = start
	}
	return first, last
}

func (s *StatsService) ListUserLeagues(ctx context.Context, token string) ([]roster.League, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.ListUserLeagues")
	defer span.End()

	leagues, err := s.league.ListUserLeagues(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list user leagues: %w", err)
	}
	return leagues, nil
}

func (s *StatsService) buildTeamView(ctx context.Context, team roster.Team, rangeToken string, policy RangePolicy) (TeamStatsView, error) {
	keyspace, err := s.keyspaceForPolicy(ctx, policy)
	if err != nil {
		return TeamStatsView{}, err
	}
	return assembleTeamView(team, rangeToken, policy, keyspace, time.Now().UTC()), nil
}

// keyspaceForPolicy loads the aggregate keyspace for a range policy.
// Season aggregates live in the long-TTL cache; trailing windows share the
// comparison cache because they drift with the clock.
func (s *StatsService) keyspaceForPolicy(ctx context.Context, policy RangePolicy) (map[string]StatBundle, error) {
	if s.stats == nil {
		return nil, fmt.Errorf("%w: statistics provider is not configured", ErrNotConfigured)
	}
	if policy.UseSeasonAggregates {
		key := cache.Key("averages", "season", s.seasonKey)
		loaded, err := s.seasonCache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
			return s.stats.SeasonAverages(ctx, s.seasonKey)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch season averages season=%s: %w", s.seasonKey, err)
		}
		keyspace, ok := loaded.(map[string]StatBundle)
		if !ok {
			return nil, fmt.Errorf("unexpected season averages payload type %T", loaded)
		}
		return keyspace, nil
	}

	end := gamelog.DateOnly(time.Now())
	start := end.AddDate(0, 0, -policy.Days())
	key := cache.Key("averages", "window", strconv.Itoa(policy.Days()), end.Format(time.DateOnly))
	loaded, err := s.compareCache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return s.stats.WindowAverages(ctx, start, end)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch window averages days=%d: %w", policy.Days(), err)
	}
	keyspace, ok := loaded.(map[string]StatBundle)
	if !ok {
		return nil, fmt.Errorf("unexpected window averages payload type %T", loaded)
	}
	return keyspace, nil
}

func assembleTeamView(team roster.Team, rangeToken string, policy RangePolicy, keyspace map[string]StatBundle, now time.Time) TeamStatsView {
	matched, diag := ReconcileIdentities(team.Players, keyspace)

	players := make([]PlayerStatLine, 0, len(team.Players))
	for _, p := range team.Players {
		line := PlayerStatLine{
			PlayerKey: p.PlayerKey,
			Name:      p.Name,
			Position:  p.Position,
			Status:    p.Status,
		}
		if bundle, ok := matched[p.PlayerKey]; ok {
			b := bundle
			line.Stats = &b
		}
		players = append(players, line)
	}

	return TeamStatsView{
		TeamKey:     team.TeamKey,
		TeamName:    team.Name,
		Range:       rangeLabel(rangeToken),
		Weeks:       policy.Weeks,
		Players:     players,
		Diagnostics: diag,
		GeneratedAt: now,
	}
}

func rangeLabel(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return "last7"
	}
	return token
}

// isFatalProviderErr separates failures that must abort a diagnostic sweep
// from per-item soft errors. Credential and throttle failures repeat on
// every subsequent call, so continuing would only burn quota.
func isFatalProviderErr(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrInvalidInput)
}
