package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hoopsync/hoopsync/internal/domain/roster"
	"github.com/hoopsync/hoopsync/internal/platform/cache"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/platform/pacing"
)

func newTestStatsService(league *fakeLeagueProvider, stats *fakeStatsProvider) *StatsService {
	return NewStatsService(
		league,
		stats,
		"2025",
		cache.NewStore(time.Hour),
		cache.NewStore(time.Hour),
		pacing.NewPacer(0),
		logging.NewNop(),
	)
}

func testTeam(teamKey string, names ...string) roster.Team {
	team := roster.Team{TeamKey: teamKey, Name: "Team " + teamKey, LeagueKey: "461.l.1"}
	for i, name := range names {
		team.Players = append(team.Players, roster.Player{
			PlayerKey: fmt.Sprintf("%s.p.%d", teamKey, i),
			Name:      name,
			Position:  "PG",
		})
	}
	return team
}

func TestGetTeamStats_RejectsUnknownRangeToken(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.rosters["461.l.1.t.1"] = testTeam("461.l.1.t.1", "Luka Doncic")
	svc := newTestStatsService(league, &fakeStatsProvider{})

	_, err := svc.GetTeamStats(context.Background(), "token", "461.l.1.t.1", "fortnight")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
	if len(league.rosterCalls) != 0 {
		t.Errorf("roster fetched %d times for a rejected token, want 0", len(league.rosterCalls))
	}
}

func TestGetTeamStats_MatchesPlayersAndCaches(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.rosters["461.l.1.t.1"] = testTeam("461.l.1.t.1", "Luka Doncic", "P.J. Washington Jr.", "Rookie Nobody")
	stats := &fakeStatsProvider{window: map[string]StatBundle{
		"Luka Dončić":     {PlayerName: "Luka Dončić", Stats: map[string]float64{"PTS": 33.1}},
		"P.J. Washington": {PlayerName: "P.J. Washington", Stats: map[string]float64{"PTS": 12.9}},
	}}
	svc := newTestStatsService(league, stats)

	view, err := svc.GetTeamStats(context.Background(), "token", "461.l.1.t.1", "last7")
	if err != nil {
		t.Fatalf("GetTeamStats() error = %v", err)
	}

	if view.Range != "last7" {
		t.Errorf("Range = %q, want last7", view.Range)
	}
	if got := view.Diagnostics.MatchedNormalized; got != 2 {
		t.Errorf("MatchedNormalized = %d, want 2", got)
	}
	if len(view.Diagnostics.Unmatched) != 1 || view.Diagnostics.Unmatched[0] != "Rookie Nobody" {
		t.Errorf("Unmatched = %v, want [Rookie Nobody]", view.Diagnostics.Unmatched)
	}
	for _, line := range view.Players {
		if line.Name == "Rookie Nobody" && line.Stats != nil {
			t.Error("unmatched player carries stats")
		}
		if line.Name == "Luka Doncic" && (line.Stats == nil || line.Stats.Stats["PTS"] != 33.1) {
			t.Errorf("Luka line = %+v, want PTS 33.1", line.Stats)
		}
	}

	if _, err := svc.GetTeamStats(context.Background(), "token", "461.l.1.t.1", "last7"); err != nil {
		t.Fatalf("second GetTeamStats() error = %v", err)
	}
	if len(league.rosterCalls) != 1 {
		t.Errorf("roster fetched %d times, want 1 (second call served from cache)", len(league.rosterCalls))
	}
}

func TestGetTeamStats_SeasonAveragesSharedAcrossTeams(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.rosters["461.l.1.t.1"] = testTeam("461.l.1.t.1", "Luka Doncic")
	league.rosters["461.l.1.t.2"] = testTeam("461.l.1.t.2", "Anthony Edwards")
	stats := &fakeStatsProvider{season: map[string]StatBundle{}}
	svc := newTestStatsService(league, stats)

	if _, err := svc.GetTeamStats(context.Background(), "token", "461.l.1.t.1", "season"); err != nil {
		t.Fatalf("GetTeamStats(t.1) error = %v", err)
	}
	if _, err := svc.GetTeamStats(context.Background(), "token", "461.l.1.t.2", "season"); err != nil {
		t.Fatalf("GetTeamStats(t.2) error = %v", err)
	}

	if stats.seasonCalls != 1 {
		t.Errorf("season averages fetched %d times, want 1", stats.seasonCalls)
	}
	if stats.windowCalls != 0 {
		t.Errorf("window averages fetched %d times, want 0", stats.windowCalls)
	}
}

func TestCompareRosters_UnknownRangeFallsBackToWeek(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.rosters["461.l.1.t.1"] = testTeam("461.l.1.t.1", "Luka Doncic")
	league.rosters["461.l.1.t.2"] = testTeam("461.l.1.t.2", "Anthony Edwards")
	stats := &fakeStatsProvider{window: map[string]StatBundle{}}
	svc := newTestStatsService(league, stats)

	comparison, err := svc.CompareRosters(context.Background(), "token", "461.l.1.t.1", "461.l.1.t.2", "fortnight")
	if err != nil {
		t.Fatalf("CompareRosters() error = %v", err)
	}
	if comparison.Left.Weeks != 1 || comparison.Right.Weeks != 1 {
		t.Errorf("weeks = %d/%d, want 1/1 fallback", comparison.Left.Weeks, comparison.Right.Weeks)
	}
	if stats.windowCalls != 1 {
		t.Errorf("window averages fetched %d times, want 1 shared fetch", stats.windowCalls)
	}
}

func TestCompareRosters_EitherRosterFailureFailsTheComparison(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.rosters["461.l.1.t.1"] = testTeam("461.l.1.t.1", "Luka Doncic")
	league.rosterErr["461.l.1.t.2"] = fmt.Errorf("%w: token expired", ErrUnauthorized)
	svc := newTestStatsService(league, &fakeStatsProvider{window: map[string]StatBundle{}})

	_, err := svc.CompareRosters(context.Background(), "token", "461.l.1.t.1", "461.l.1.t.2", "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

func TestCompareRosters_RejectsSelfComparison(t *testing.T) {
	t.Parallel()

	svc := newTestStatsService(newFakeLeagueProvider(), &fakeStatsProvider{})
	_, err := svc.CompareRosters(context.Background(), "token", "461.l.1.t.1", "461.l.1.t.1", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestGetLeagueStats_SoftFailsPerTeamAndAbortsOnRateLimit(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.meta = roster.League{LeagueKey: "461.l.1", CurrentWeek: 7, StartWeek: 1}
	league.rosters["461.l.1.t.1"] = testTeam("461.l.1.t.1")
	league.rosters["461.l.1.t.2"] = testTeam("461.l.1.t.2")
	league.setWeekTotals("461.l.1.t.1", 7, map[string]string{"PTS": "412"})
	league.weekErr["461.l.1.t.2"] = errors.New("upstream timeout")
	svc := newTestStatsService(league, &fakeStatsProvider{})

	view, err := svc.GetLeagueStats(context.Background(), "token", "461.l.1", "")
	if err != nil {
		t.Fatalf("GetLeagueStats() error = %v", err)
	}
	if view.Week != 7 {
		t.Errorf("Week = %d, want 7", view.Week)
	}
	if view.SoftErrors != 1 {
		t.Errorf("SoftErrors = %d, want 1", view.SoftErrors)
	}
	for _, row := range view.Teams {
		if row.TeamKey == "461.l.1.t.2" && row.Error == "" {
			t.Error("failed team row carries no error message")
		}
	}

	league.weekErr["461.l.1.t.2"] = fmt.Errorf("%w: request denied", ErrRateLimited)
	fresh := newTestStatsService(league, &fakeStatsProvider{})
	if _, err := fresh.GetLeagueStats(context.Background(), "token", "461.l.1", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("rate limited error = %v, want ErrRateLimited", err)
	}
}

func TestGetLeagueStats_WalksTheWeeksTheRangeCovers(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.meta = roster.League{LeagueKey: "461.l.1", CurrentWeek: 7, StartWeek: 5}
	league.rosters["461.l.1.t.1"] = testTeam("461.l.1.t.1")
	league.setWeekTotals("461.l.1.t.1", 5, map[string]string{"PTS": "355"})
	league.setWeekTotals("461.l.1.t.1", 6, map[string]string{"PTS": "380"})
	league.setWeekTotals("461.l.1.t.1", 7, map[string]string{"PTS": "412"})
	svc := newTestStatsService(league, &fakeStatsProvider{})

	view, err := svc.GetLeagueStats(context.Background(), "token", "461.l.1", "last14")
	if err != nil {
		t.Fatalf("GetLeagueStats(last14) error = %v", err)
	}
	if view.Range != "last14" {
		t.Errorf("Range = %q, want last14", view.Range)
	}
	if view.FirstWeek != 6 || view.Week != 7 {
		t.Errorf("week span = %d..%d, want 6..7", view.FirstWeek, view.Week)
	}
	if len(view.Teams) != 2 {
		t.Fatalf("rows = %d, want one per covered week", len(view.Teams))
	}
	wantByWeek := map[int]string{6: "380", 7: "412"}
	for _, row := range view.Teams {
		if got := row.Totals["PTS"]; got != wantByWeek[row.Week] {
			t.Errorf("week %d PTS = %q, want %q", row.Week, got, wantByWeek[row.Week])
		}
	}

	season, err := svc.GetLeagueStats(context.Background(), "token", "461.l.1", "season")
	if err != nil {
		t.Fatalf("GetLeagueStats(season) error = %v", err)
	}
	if season.FirstWeek != 5 || len(season.Teams) != 3 {
		t.Errorf("season span starts at %d with %d rows, want 5 with 3 rows", season.FirstWeek, len(season.Teams))
	}
}
