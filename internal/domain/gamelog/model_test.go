package gamelog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateOnly_NormalizesZoneBeforeTruncating(t *testing.T) {
	t.Parallel()

	// 2025-10-10 21:30 in New York is already 2025-10-11 in UTC; the stored
	// calendar date must follow the provider's UTC day, not the local one.
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	local := time.Date(2025, 10, 10, 21, 30, 0, 0, newYork)
	got := DateOnly(local)

	require.Equal(t, time.Date(2025, 10, 11, 0, 0, 0, 0, time.UTC), got)
	require.Equal(t, time.UTC, got.Location())
}

func TestDateOnly_IsIdempotent(t *testing.T) {
	t.Parallel()

	day := DateOnly(time.Date(2025, 10, 10, 15, 4, 5, 999, time.UTC))
	require.Equal(t, day, DateOnly(day))
}
