package usecase

import (
	"context"
	"time"

	"github.com/hoopsync/hoopsync/internal/domain/roster"
)

// LeagueProvider is the fantasy league upstream. Every call takes the
// caller's bearer token; the client never stores credentials.
type LeagueProvider interface {
	GetLeagueMeta(ctx context.Context, token, leagueKey string) (roster.League, error)
	ListUserLeagues(ctx context.Context, token string) ([]roster.League, error)
	ListLeagueTeams(ctx context.Context, token, leagueKey string) ([]roster.Team, error)
	GetTeamRoster(ctx context.Context, token, teamKey string) (roster.Team, error)
	GetTeamWeekStats(ctx context.Context, token, teamKey string, week int) (ExternalTeamWeekStats, error)
	GetPlayerStatsByDate(ctx context.Context, token, playerKey string, date time.Time) (ExternalPlayerDateStats, error)
	ListLeaguePlayers(ctx context.Context, token, leagueKey string, start int) ([]ExternalLeaguePlayer, bool, error)
}

// StatsProvider serves aggregate per-player averages from the independent
// statistics source, keyed by display name.
type StatsProvider interface {
	SeasonAverages(ctx context.Context, seasonKey string) (map[string]StatBundle, error)
	WindowAverages(ctx context.Context, start, end time.Time) (map[string]StatBundle, error)
}

// StatBundle is one player's aggregate line from the statistics provider.
type StatBundle struct {
	PlayerName  string             `json:"playerName"`
	TeamAbbr    string             `json:"teamAbbr"`
	GamesPlayed int                `json:"gamesPlayed"`
	Stats       map[string]float64 `json:"stats"`
}

type ExternalTeamWeekStats struct {
	TeamKey    string
	Week       int
	StatTotals map[string]string
}

// ExternalPlayerDateStats is the raw per-date stat line from the league
// provider, keyed by provider stat id. Minutes is stat id "3".
type ExternalPlayerDateStats struct {
	PlayerKey  string
	PlayerName string
	Date       time.Time
	Stats      map[string]string
}

type ExternalLeaguePlayer struct {
	PlayerKey string
	Name      string
	Position  string
	TeamAbbr  string
}

const minutesStatID = "3"
