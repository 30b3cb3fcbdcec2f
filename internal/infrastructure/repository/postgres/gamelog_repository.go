package postgres

import (
	"context"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/hoopsync/hoopsync/internal/domain/gamelog"
	qb "github.com/hoopsync/hoopsync/internal/platform/querybuilder"
)

type GameLogRepository struct {
	db *sqlx.DB
}

func NewGameLogRepository(db *sqlx.DB) *GameLogRepository {
	return &GameLogRepository{db: db}
}

// UpsertEntry writes one per-date game log. The (player_key, game_date) key
// makes re-syncing the same date a no-op beyond refreshing the row, so
// repeated sweeps never duplicate games.
func (r *GameLogRepository) UpsertEntry(ctx context.Context, entry gamelog.Entry) error {
	statsJSON, err := encodeStatsMap(entry.Stats)
	if err != nil {
		return fmt.Errorf("encode game log stats player=%s date=%s: %w",
			entry.PlayerKey, entry.GameDate.Format(time.DateOnly), err)
	}

	insertModel := gameLogInsertModel{
		PlayerKey:  entry.PlayerKey,
		PlayerName: entry.PlayerName,
		LeagueKey:  entry.LeagueKey,
		SeasonKey:  entry.SeasonKey,
		GameDate:   gamelog.DateOnly(entry.GameDate),
		Minutes:    entry.Minutes,
		Stats:      statsJSON,
		UpdatedAt:  entry.UpdatedAt,
	}

	query, args, err := qb.InsertModel("player_game_logs", insertModel, `ON CONFLICT (player_key, game_date)
DO UPDATE SET
    player_name = EXCLUDED.player_name,
    league_key = EXCLUDED.league_key,
    season_key = EXCLUDED.season_key,
    minutes = EXCLUDED.minutes,
    stats = EXCLUDED.stats,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build upsert game log query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert game log player=%s date=%s: %w",
			entry.PlayerKey, entry.GameDate.Format(time.DateOnly), err)
	}
	return nil
}

func (r *GameLogRepository) ListGameDates(ctx context.Context, playerKey string) ([]time.Time, error) {
	query, args, err := qb.Select("DISTINCT game_date").
		From("player_game_logs").
		Where(qb.Eq("player_key", playerKey)).
		OrderBy("game_date ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list game dates query: %w", err)
	}

	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, args...); err != nil {
		return nil, fmt.Errorf("list game dates player=%s: %w", playerKey, err)
	}
	return dates, nil
}

func (r *GameLogRepository) ListEntriesByRange(ctx context.Context, playerKey string, start, end time.Time) ([]gamelog.Entry, error) {
	query, args, err := qb.Select(
		"player_key",
		"player_name",
		"league_key",
		"season_key",
		"game_date",
		"minutes",
		"stats",
		"updated_at",
	).From("player_game_logs").
		Where(
			qb.Eq("player_key", playerKey),
			qb.Expr("game_date >= $1", gamelog.DateOnly(start)),
			qb.Expr("game_date <= $1", gamelog.DateOnly(end)),
		).
		OrderBy("game_date ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list game logs query: %w", err)
	}

	var rows []gameLogRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list game logs player=%s: %w", playerKey, err)
	}

	out := make([]gamelog.Entry, 0, len(rows))
	for _, row := range rows {
		stats, err := decodeStatsMap(row.Stats.String)
		if err != nil {
			return nil, fmt.Errorf("decode game log stats player=%s date=%s: %w",
				row.PlayerKey, row.GameDate.Format(time.DateOnly), err)
		}
		out = append(out, gamelog.Entry{
			PlayerKey:  row.PlayerKey,
			PlayerName: row.PlayerName.String,
			LeagueKey:  row.LeagueKey.String,
			SeasonKey:  row.SeasonKey.String,
			GameDate:   row.GameDate,
			Minutes:    row.Minutes.String,
			Stats:      stats,
			UpdatedAt:  row.UpdatedAt,
		})
	}
	return out, nil
}

func encodeStatsMap(value map[string]string) (string, error) {
	if len(value) == 0 {
		return "{}", nil
	}
	raw, err := sonic.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeStatsMap(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	out := make(map[string]string)
	if err := sonic.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
