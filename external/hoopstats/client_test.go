package hoopstats

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/usecase"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
		Logger:  logging.NewNop(),
	})
}

func TestSeasonAverages_KeysBundlesByName(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("api_key = %q, want test-key", got)
		}
		if got := r.URL.Query().Get("season"); got != "2025" {
			t.Errorf("season = %q, want 2025", got)
		}
		_, _ = w.Write([]byte(`{"data": [
			{"player_name": "Luka Dončić", "team_abbr": "LAL", "games_played": 61, "stats": {"PTS": 33.1}},
			{"player_name": "Luka Dončić", "team_abbr": "LAL", "games_played": 2, "stats": {"PTS": 10.0}},
			{"player_name": "", "games_played": 5}
		]}`))
	})

	averages, err := client.SeasonAverages(context.Background(), "2025")
	if err != nil {
		t.Fatalf("SeasonAverages() error = %v", err)
	}

	if len(averages) != 1 {
		t.Fatalf("len(averages) = %d, want 1", len(averages))
	}
	bundle := averages["Luka Dončić"]
	if bundle.GamesPlayed != 61 || bundle.Stats["PTS"] != 33.1 {
		t.Errorf("bundle = %+v, want the 61-game row to win the name collision", bundle)
	}
}

func TestWindowAverages_SendsDateRange(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("start_date"); got != "2025-10-03" {
			t.Errorf("start_date = %q, want 2025-10-03", got)
		}
		if got := r.URL.Query().Get("end_date"); got != "2025-10-10" {
			t.Errorf("end_date = %q, want 2025-10-10", got)
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	})

	start := time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)
	if _, err := client.WindowAverages(context.Background(), start, end); err != nil {
		t.Fatalf("WindowAverages() error = %v", err)
	}
}

func TestDoJSON_ServerErrorIsTransientWithoutRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.SeasonAverages(context.Background(), "2025")
	if !errors.Is(err, usecase.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
	if calls != 1 {
		t.Errorf("server hit %d times, want exactly 1", calls)
	}
}

func TestDoJSON_Status401IsUnauthorized(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.SeasonAverages(context.Background(), "2025")
	if !errors.Is(err, usecase.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}
