package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hoopsync/hoopsync/internal/domain/gamelog"
	"github.com/hoopsync/hoopsync/internal/domain/roster"
)

type fakeLeagueProvider struct {
	mu sync.Mutex

	meta    roster.League
	metaErr error

	leagues []roster.League

	rosters   map[string]roster.Team
	rosterErr map[string]error

	// weekStats is keyed "teamKey|week"; weekErr fails a team for any week.
	weekStats map[string]ExternalTeamWeekStats
	weekErr   map[string]error

	statsByDate map[string]map[string]ExternalPlayerDateStats
	statsErr    map[string]error
	playerNames map[string]string

	playerPages [][]ExternalLeaguePlayer

	// playersGate, when set, blocks ListLeaguePlayers until closed.
	playersGate chan struct{}

	// rateLimitAfter fails every date-stats call once this many have been
	// served. Negative disables the trip wire.
	rateLimitAfter int

	fetchedDates []string
	rosterCalls  []string
}

func newFakeLeagueProvider() *fakeLeagueProvider {
	return &fakeLeagueProvider{
		rosters:        make(map[string]roster.Team),
		rosterErr:      make(map[string]error),
		weekStats:      make(map[string]ExternalTeamWeekStats),
		weekErr:        make(map[string]error),
		statsByDate:    make(map[string]map[string]ExternalPlayerDateStats),
		statsErr:       make(map[string]error),
		playerNames:    make(map[string]string),
		rateLimitAfter: -1,
	}
}

func (f *fakeLeagueProvider) GetLeagueMeta(_ context.Context, _, _ string) (roster.League, error) {
	return f.meta, f.metaErr
}

func (f *fakeLeagueProvider) ListUserLeagues(_ context.Context, _ string) ([]roster.League, error) {
	return f.leagues, nil
}

func (f *fakeLeagueProvider) ListLeagueTeams(_ context.Context, _, leagueKey string) ([]roster.Team, error) {
	var out []roster.Team
	for _, team := range f.rosters {
		if team.LeagueKey == leagueKey {
			out = append(out, team)
		}
	}
	return out, nil
}

func (f *fakeLeagueProvider) GetTeamRoster(_ context.Context, _, teamKey string) (roster.Team, error) {
	f.mu.Lock()
	f.rosterCalls = append(f.rosterCalls, teamKey)
	f.mu.Unlock()

	if err := f.rosterErr[teamKey]; err != nil {
		return roster.Team{}, err
	}
	team, ok := f.rosters[teamKey]
	if !ok {
		return roster.Team{}, fmt.Errorf("%w: team %s", ErrNotFound, teamKey)
	}
	return team, nil
}

func (f *fakeLeagueProvider) GetTeamWeekStats(_ context.Context, _, teamKey string, week int) (ExternalTeamWeekStats, error) {
	if err := f.weekErr[teamKey]; err != nil {
		return ExternalTeamWeekStats{}, err
	}
	return f.weekStats[fmt.Sprintf("%s|%d", teamKey, week)], nil
}

func (f *fakeLeagueProvider) setWeekTotals(teamKey string, week int, totals map[string]string) {
	f.weekStats[fmt.Sprintf("%s|%d", teamKey, week)] = ExternalTeamWeekStats{
		TeamKey:    teamKey,
		Week:       week,
		StatTotals: totals,
	}
}

func (f *fakeLeagueProvider) GetPlayerStatsByDate(_ context.Context, _, playerKey string, date time.Time) (ExternalPlayerDateStats, error) {
	day := date.Format(time.DateOnly)

	f.mu.Lock()
	served := len(f.fetchedDates)
	f.fetchedDates = append(f.fetchedDates, playerKey+"|"+day)
	f.mu.Unlock()

	if f.rateLimitAfter >= 0 && served >= f.rateLimitAfter {
		return ExternalPlayerDateStats{}, fmt.Errorf("%w: request denied", ErrRateLimited)
	}
	if err := f.statsErr[playerKey+"|"+day]; err != nil {
		return ExternalPlayerDateStats{}, err
	}
	if byDate, ok := f.statsByDate[playerKey]; ok {
		if stats, ok := byDate[day]; ok {
			stats.PlayerName = f.playerNames[playerKey]
			return stats, nil
		}
	}
	// Off day: the provider answers with an all-sentinel line.
	return ExternalPlayerDateStats{
		PlayerKey:  playerKey,
		PlayerName: f.playerNames[playerKey],
		Date:       date,
		Stats:      map[string]string{"3": "0", "12": "-", "15": ""},
	}, nil
}

func (f *fakeLeagueProvider) ListLeaguePlayers(_ context.Context, _, _ string, start int) ([]ExternalLeaguePlayer, bool, error) {
	f.mu.Lock()
	gate := f.playersGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	page := 0
	seen := 0
	for page < len(f.playerPages) {
		if seen == start {
			break
		}
		seen += len(f.playerPages[page])
		page++
	}
	if page >= len(f.playerPages) {
		return nil, false, nil
	}
	return f.playerPages[page], page+1 < len(f.playerPages), nil
}

func (f *fakeLeagueProvider) setGame(playerKey, day string, stats map[string]string) {
	byDate, ok := f.statsByDate[playerKey]
	if !ok {
		byDate = make(map[string]ExternalPlayerDateStats)
		f.statsByDate[playerKey] = byDate
	}
	date, _ := time.Parse(time.DateOnly, day)
	byDate[day] = ExternalPlayerDateStats{PlayerKey: playerKey, Date: date, Stats: stats}
}

type fakeStatsProvider struct {
	mu          sync.Mutex
	season      map[string]StatBundle
	window      map[string]StatBundle
	seasonCalls int
	windowCalls int
	seasonErr   error
	windowErr   error
}

func (f *fakeStatsProvider) SeasonAverages(_ context.Context, _ string) (map[string]StatBundle, error) {
	f.mu.Lock()
	f.seasonCalls++
	f.mu.Unlock()
	return f.season, f.seasonErr
}

func (f *fakeStatsProvider) WindowAverages(_ context.Context, _, _ time.Time) (map[string]StatBundle, error) {
	f.mu.Lock()
	f.windowCalls++
	f.mu.Unlock()
	return f.window, f.windowErr
}

type fakeGameLogRepo struct {
	mu        sync.Mutex
	entries   map[string]gamelog.Entry
	listErr   error
	upsertErr map[string]error
	upserts   []string
}

func newFakeGameLogRepo() *fakeGameLogRepo {
	return &fakeGameLogRepo{
		entries:   make(map[string]gamelog.Entry),
		upsertErr: make(map[string]error),
	}
}

func (r *fakeGameLogRepo) UpsertEntry(_ context.Context, entry gamelog.Entry) error {
	day := entry.GameDate.Format(time.DateOnly)
	if err := r.upsertErr[day]; err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, entry.PlayerKey+"|"+day)
	r.entries[entry.PlayerKey+"|"+day] = entry
	return nil
}

func (r *fakeGameLogRepo) ListGameDates(_ context.Context, playerKey string) ([]time.Time, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []time.Time
	for _, entry := range r.entries {
		if entry.PlayerKey == playerKey {
			out = append(out, entry.GameDate)
		}
	}
	return out, nil
}

func (r *fakeGameLogRepo) ListEntriesByRange(_ context.Context, playerKey string, start, end time.Time) ([]gamelog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []gamelog.Entry
	for _, entry := range r.entries {
		if entry.PlayerKey != playerKey {
			continue
		}
		if entry.GameDate.Before(start) || entry.GameDate.After(end) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameDate.Before(out[j].GameDate) })
	return out, nil
}

func (r *fakeGameLogRepo) seed(playerKey, day string) {
	date, _ := time.Parse(time.DateOnly, day)
	r.entries[playerKey+"|"+day] = gamelog.Entry{PlayerKey: playerKey, GameDate: date}
}
