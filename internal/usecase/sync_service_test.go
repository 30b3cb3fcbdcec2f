package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hoopsync/hoopsync/internal/domain/gamelog"
	"github.com/hoopsync/hoopsync/internal/platform/cache"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/platform/pacing"
)

func testSeasonWindow() SeasonWindow {
	return SeasonWindow{
		Key:   "2025",
		Start: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
	}
}

func newTestSyncService(league *fakeLeagueProvider, repo *fakeGameLogRepo, compareCache *cache.Store) *SyncService {
	svc := NewSyncService(league, repo, compareCache, pacing.NewPacer(0), testSeasonWindow(), logging.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func playedLine() map[string]string {
	return map[string]string{"3": "34", "12": "28", "15": "7"}
}

func TestSyncPlayerGameLogs_FillsOnlyMissingDates(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	repo := newFakeGameLogRepo()
	repo.seed("461.p.6030", "2025-10-02")
	repo.seed("461.p.6030", "2025-10-04")
	league.setGame("461.p.6030", "2025-10-03", playedLine())
	league.setGame("461.p.6030", "2025-10-05", playedLine())

	svc := newTestSyncService(league, repo, nil)
	summary, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{
		PlayerKey: "461.p.6030",
		Start:     time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SyncPlayerGameLogs() error = %v", err)
	}

	if summary.ExistingDates != 2 {
		t.Errorf("ExistingDates = %d, want 2", summary.ExistingDates)
	}
	if summary.CheckedDates != 2 {
		t.Errorf("CheckedDates = %d, want 2", summary.CheckedDates)
	}
	if summary.NewGames != 2 {
		t.Errorf("NewGames = %d, want 2", summary.NewGames)
	}

	wantFetched := []string{"461.p.6030|2025-10-03", "461.p.6030|2025-10-05"}
	if len(league.fetchedDates) != len(wantFetched) {
		t.Fatalf("fetched %v, want %v", league.fetchedDates, wantFetched)
	}
	for i, fetched := range league.fetchedDates {
		if fetched != wantFetched[i] {
			t.Errorf("fetched[%d] = %q, want %q", i, fetched, wantFetched[i])
		}
	}
}

func TestSyncPlayerGameLogs_SecondPassIsIdempotent(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	repo := newFakeGameLogRepo()
	league.setGame("461.p.6030", "2025-10-02", playedLine())

	svc := newTestSyncService(league, repo, nil)
	input := SyncInput{
		PlayerKey: "461.p.6030",
		Start:     time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC),
	}

	first, err := svc.SyncPlayerGameLogs(context.Background(), "token", input)
	if err != nil {
		t.Fatalf("first pass error = %v", err)
	}
	if first.NewGames != 1 {
		t.Fatalf("first pass NewGames = %d, want 1", first.NewGames)
	}

	second, err := svc.SyncPlayerGameLogs(context.Background(), "token", input)
	if err != nil {
		t.Fatalf("second pass error = %v", err)
	}
	if second.NewGames != 0 {
		t.Errorf("second pass NewGames = %d, want 0", second.NewGames)
	}
	// 2025-10-03 has no persisted entry (off day) so it is re-checked.
	if second.ExistingDates != 1 {
		t.Errorf("second pass ExistingDates = %d, want 1", second.ExistingDates)
	}
	if len(repo.upserts) != 1 {
		t.Errorf("upserts = %v, want exactly one", repo.upserts)
	}
}

func TestSyncPlayerGameLogs_SuppressesOffDayLines(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	repo := newFakeGameLogRepo()
	// The provider fake answers unseeded dates with an all-sentinel line.
	league.setGame("461.p.6030", "2025-10-03", playedLine())

	svc := newTestSyncService(league, repo, nil)
	summary, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{
		PlayerKey: "461.p.6030",
		Start:     time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SyncPlayerGameLogs() error = %v", err)
	}

	if summary.CheckedDates != 5 {
		t.Errorf("CheckedDates = %d, want 5", summary.CheckedDates)
	}
	if summary.NewGames != 1 {
		t.Errorf("NewGames = %d, want 1", summary.NewGames)
	}
	if len(repo.upserts) != 1 || repo.upserts[0] != "461.p.6030|2025-10-03" {
		t.Errorf("upserts = %v, want only the played date", repo.upserts)
	}
}

func TestSyncPlayerGameLogs_SuppressesZeroDecimalLines(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	repo := newFakeGameLogRepo()
	// A DNP line spelled with decimal zeros is still an off day.
	league.setGame("461.p.6030", "2025-10-02", map[string]string{"3": "0.0", "12": "0.00", "15": "-"})
	league.setGame("461.p.6030", "2025-10-03", map[string]string{"3": "0.0", "12": "1.0", "15": "0"})

	svc := newTestSyncService(league, repo, nil)
	summary, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{
		PlayerKey: "461.p.6030",
		Start:     time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SyncPlayerGameLogs() error = %v", err)
	}

	if summary.NewGames != 1 {
		t.Errorf("NewGames = %d, want 1", summary.NewGames)
	}
	if len(repo.upserts) != 1 || repo.upserts[0] != "461.p.6030|2025-10-03" {
		t.Errorf("upserts = %v, want only the date with a non-zero stat", repo.upserts)
	}
}

func TestSyncPlayerGameLogs_ResolvesNameFromFirstFetchedDate(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.playerNames["461.p.6030"] = "Luka Doncic"
	league.setGame("461.p.6030", "2025-10-02", playedLine())
	repo := newFakeGameLogRepo()

	svc := newTestSyncService(league, repo, nil)
	summary, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{
		PlayerKey: "461.p.6030",
		Start:     time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SyncPlayerGameLogs() error = %v", err)
	}

	if summary.PlayerName != "Luka Doncic" {
		t.Errorf("summary PlayerName = %q, want the provider name", summary.PlayerName)
	}
	entry := repo.entries["461.p.6030|2025-10-02"]
	if entry.PlayerName != "Luka Doncic" {
		t.Errorf("persisted PlayerName = %q, want the provider name", entry.PlayerName)
	}
}

func TestSyncPlayerGameLogs_CallerNameWinsOverProviderName(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.playerNames["461.p.6030"] = "L. Doncic"
	league.setGame("461.p.6030", "2025-10-02", playedLine())
	repo := newFakeGameLogRepo()

	svc := newTestSyncService(league, repo, nil)
	summary, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{
		PlayerKey:  "461.p.6030",
		PlayerName: "Luka Doncic",
		Start:      time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SyncPlayerGameLogs() error = %v", err)
	}

	if summary.PlayerName != "Luka Doncic" {
		t.Errorf("summary PlayerName = %q, want the caller name", summary.PlayerName)
	}
	if entry := repo.entries["461.p.6030|2025-10-02"]; entry.PlayerName != "Luka Doncic" {
		t.Errorf("persisted PlayerName = %q, want the caller name", entry.PlayerName)
	}
}

func TestSyncPlayerGameLogs_DegradesWhenDateLookupFails(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	repo := newFakeGameLogRepo()
	repo.seed("461.p.6030", "2025-10-02")
	repo.listErr = errors.New("connection reset")
	league.setGame("461.p.6030", "2025-10-02", playedLine())

	svc := newTestSyncService(league, repo, nil)
	summary, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{
		PlayerKey: "461.p.6030",
		Start:     time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SyncPlayerGameLogs() error = %v", err)
	}

	if !summary.DegradedExistingLookup {
		t.Error("DegradedExistingLookup = false, want true")
	}
	if summary.ExistingDates != 0 {
		t.Errorf("ExistingDates = %d, want 0", summary.ExistingDates)
	}
	// All three window dates re-checked despite the persisted entry.
	if len(league.fetchedDates) != 3 {
		t.Errorf("fetched %d dates, want 3", len(league.fetchedDates))
	}
}

func TestSyncPlayerGameLogs_RateLimitAbortsWithPartialSummary(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.rateLimitAfter = 2
	league.setGame("461.p.6030", "2025-10-01", playedLine())
	league.setGame("461.p.6030", "2025-10-02", playedLine())
	repo := newFakeGameLogRepo()

	svc := newTestSyncService(league, repo, nil)
	summary, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{
		PlayerKey: "461.p.6030",
		Start:     time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}

	if summary.NewGames != 2 {
		t.Errorf("partial NewGames = %d, want 2", summary.NewGames)
	}
	if len(league.fetchedDates) != 3 {
		t.Errorf("fetched %d dates, want 3 (abort on the third)", len(league.fetchedDates))
	}
}

func TestSyncPlayerGameLogs_SoftErrorsContinueTheSweep(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.statsErr["461.p.6030|2025-10-02"] = errors.New("upstream timeout")
	league.setGame("461.p.6030", "2025-10-03", playedLine())
	repo := newFakeGameLogRepo()

	svc := newTestSyncService(league, repo, nil)
	summary, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{
		PlayerKey: "461.p.6030",
		Start:     time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SyncPlayerGameLogs() error = %v", err)
	}

	if len(summary.SoftErrors) != 1 || !strings.Contains(summary.SoftErrors[0], "2025-10-02") {
		t.Errorf("SoftErrors = %v, want one entry for 2025-10-02", summary.SoftErrors)
	}
	if summary.NewGames != 1 {
		t.Errorf("NewGames = %d, want 1", summary.NewGames)
	}
}

func TestSyncPlayerGameLogs_NewGamesInvalidateComparisonCache(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	league.setGame("461.p.6030", "2025-10-02", playedLine())
	repo := newFakeGameLogRepo()

	store := cache.NewStore(time.Hour)
	ctx := context.Background()
	store.Set(ctx, cache.Key("compare", "461.l.1.t.1", "461.l.1.t.2", "last7"), "cached")
	store.Set(ctx, cache.Key("team", "461.l.1.t.1", "season"), "cached")
	store.Set(ctx, cache.Key("averages", "season", "2025"), "cached")

	svc := newTestSyncService(league, repo, store)
	if _, err := svc.SyncPlayerGameLogs(ctx, "token", SyncInput{
		PlayerKey: "461.p.6030",
		Start:     time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("SyncPlayerGameLogs() error = %v", err)
	}

	if _, ok := store.Get(ctx, cache.Key("compare", "461.l.1.t.1", "461.l.1.t.2", "last7")); ok {
		t.Error("comparison entry survived a sync that persisted new games")
	}
	if _, ok := store.Get(ctx, cache.Key("team", "461.l.1.t.1", "season")); ok {
		t.Error("team entry survived a sync that persisted new games")
	}
	if _, ok := store.Get(ctx, cache.Key("averages", "season", "2025")); !ok {
		t.Error("averages entry was evicted, want it kept")
	}
}

func TestSyncPlayerGameLogs_InputValidation(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	svc := newTestSyncService(league, newFakeGameLogRepo(), nil)

	if _, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty player key error = %v, want ErrInvalidInput", err)
	}

	_, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{
		PlayerKey: "461.p.6030",
		Start:     time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("inverted window error = %v, want ErrInvalidInput", err)
	}

	noRepo := NewSyncService(league, nil, nil, pacing.NewPacer(0), testSeasonWindow(), logging.NewNop())
	if _, err := noRepo.SyncPlayerGameLogs(context.Background(), "token", SyncInput{PlayerKey: "461.p.6030"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("nil repo error = %v, want ErrNotConfigured", err)
	}
}

func TestSyncPlayerGameLogs_WindowDefaultsClampAtToday(t *testing.T) {
	t.Parallel()

	league := newFakeLeagueProvider()
	repo := newFakeGameLogRepo()
	svc := newTestSyncService(league, repo, nil)
	// now is fixed at 2025-10-10; season start is 2025-10-01.

	summary, err := svc.SyncPlayerGameLogs(context.Background(), "token", SyncInput{PlayerKey: "461.p.6030"})
	if err != nil {
		t.Fatalf("SyncPlayerGameLogs() error = %v", err)
	}
	if summary.CheckedDates != 10 {
		t.Errorf("CheckedDates = %d, want 10 (season start through today)", summary.CheckedDates)
	}

	last := league.fetchedDates[len(league.fetchedDates)-1]
	if want := fmt.Sprintf("461.p.6030|%s", "2025-10-10"); last != want {
		t.Errorf("last fetched = %q, want %q", last, want)
	}
}

func TestListPlayerGameLogs_ReturnsPersistedWindowAscending(t *testing.T) {
	t.Parallel()

	repo := newFakeGameLogRepo()
	repo.entries["461.p.6030|2025-10-04"] = gamelog.Entry{
		PlayerKey:  "461.p.6030",
		PlayerName: "Luka Doncic",
		GameDate:   time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC),
		Minutes:    "36",
		Stats:      map[string]string{"12": "41"},
	}
	repo.seed("461.p.6030", "2025-10-02")
	repo.seed("461.p.6030", "2025-10-08")
	repo.seed("999.p.1", "2025-10-04")

	svc := newTestSyncService(newFakeLeagueProvider(), repo, nil)
	view, err := svc.ListPlayerGameLogs(context.Background(), "461.p.6030",
		time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("ListPlayerGameLogs() error = %v", err)
	}

	if view.PlayerName != "Luka Doncic" {
		t.Errorf("PlayerName = %q, want the persisted name", view.PlayerName)
	}
	wantDates := []string{"2025-10-02", "2025-10-04"}
	if len(view.Entries) != len(wantDates) {
		t.Fatalf("entries = %d, want %d (window excludes 10-08, other players excluded)", len(view.Entries), len(wantDates))
	}
	for i, line := range view.Entries {
		if line.GameDate != wantDates[i] {
			t.Errorf("entry[%d] date = %q, want %q", i, line.GameDate, wantDates[i])
		}
	}
	if view.Entries[1].Minutes != "36" {
		t.Errorf("entry minutes = %q, want 36", view.Entries[1].Minutes)
	}
}

func TestListPlayerGameLogs_DefaultsToSeasonWindowClampedAtToday(t *testing.T) {
	t.Parallel()

	repo := newFakeGameLogRepo()
	repo.seed("461.p.6030", "2025-10-03")
	svc := newTestSyncService(newFakeLeagueProvider(), repo, nil)

	view, err := svc.ListPlayerGameLogs(context.Background(), "461.p.6030", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListPlayerGameLogs() error = %v", err)
	}
	if view.Start != "2025-10-01" || view.End != "2025-10-10" {
		t.Errorf("window = %s..%s, want 2025-10-01..2025-10-10", view.Start, view.End)
	}
	if len(view.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(view.Entries))
	}
}

func TestListPlayerGameLogs_InputValidation(t *testing.T) {
	t.Parallel()

	svc := newTestSyncService(newFakeLeagueProvider(), newFakeGameLogRepo(), nil)
	if _, err := svc.ListPlayerGameLogs(context.Background(), "  ", time.Time{}, time.Time{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank player key error = %v, want ErrInvalidInput", err)
	}

	noRepo := NewSyncService(newFakeLeagueProvider(), nil, nil, pacing.NewPacer(0), testSeasonWindow(), logging.NewNop())
	if _, err := noRepo.ListPlayerGameLogs(context.Background(), "461.p.6030", time.Time{}, time.Time{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("nil repo error = %v, want ErrNotConfigured", err)
	}
}
