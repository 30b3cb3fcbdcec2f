package gamelog

import (
	"context"
	"time"
)

type Repository interface {
	UpsertEntry(ctx context.Context, entry Entry) error
	ListGameDates(ctx context.Context, playerKey string) ([]time.Time, error)
	ListEntriesByRange(ctx context.Context, playerKey string, start, end time.Time) ([]Entry, error)
}
