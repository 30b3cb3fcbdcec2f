package gamelog

import "time"

// Entry is one persisted per-player, per-date stat line. The pair
// (PlayerKey, GameDate) identifies a row; re-syncing the same date
// overwrites the stats in place.
type Entry struct {
	PlayerKey  string
	PlayerName string
	LeagueKey  string
	SeasonKey  string
	GameDate   time.Time
	Minutes    string
	Stats      map[string]string
	UpdatedAt  time.Time
}

// DateOnly normalizes a timestamp to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
