package postgres

import (
	"database/sql"
	"time"
)

type gameLogInsertModel struct {
	PlayerKey  string    `db:"player_key"`
	PlayerName string    `db:"player_name"`
	LeagueKey  string    `db:"league_key"`
	SeasonKey  string    `db:"season_key"`
	GameDate   time.Time `db:"game_date"`
	Minutes    string    `db:"minutes"`
	Stats      string    `db:"stats"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type gameLogRow struct {
	PlayerKey  string         `db:"player_key"`
	PlayerName sql.NullString `db:"player_name"`
	LeagueKey  sql.NullString `db:"league_key"`
	SeasonKey  sql.NullString `db:"season_key"`
	GameDate   time.Time      `db:"game_date"`
	Minutes    sql.NullString `db:"minutes"`
	Stats      sql.NullString `db:"stats"`
	UpdatedAt  time.Time      `db:"updated_at"`
}
