package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/hoopsync/hoopsync/internal/platform/id"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/platform/pacing"
)

type BackfillInput struct {
	LeagueKey string
	Start     time.Time
	End       time.Time
	// MaxPlayers caps a sweep for smoke runs; zero means the whole league.
	MaxPlayers int
}

type BackfillResult struct {
	LeagueKey        string        `json:"leagueKey"`
	PlayersProcessed int           `json:"playersProcessed"`
	TotalNewGames    int           `json:"totalNewGames"`
	TotalChecked     int           `json:"totalChecked"`
	Summaries        []SyncSummary `json:"summaries"`
	SoftErrors       []string      `json:"softErrors,omitempty"`
}

type BackfillJobStatus string

const (
	BackfillJobQueued    BackfillJobStatus = "queued"
	BackfillJobRunning   BackfillJobStatus = "running"
	BackfillJobSucceeded BackfillJobStatus = "succeeded"
	BackfillJobFailed    BackfillJobStatus = "failed"
)

type BackfillJob struct {
	ID         string            `json:"id"`
	LeagueKey  string            `json:"leagueKey"`
	Status     BackfillJobStatus `json:"status"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
	StartedAt  *time.Time        `json:"startedAt,omitempty"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
	Result     *BackfillResult   `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// JobPublisher hands a backfill off to an external queue that POSTs it back
// to the internal job endpoint later.
type JobPublisher interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID, forwardBearer string) error
}

// BackfillService sweeps a whole league's players through the incremental
// synchronizer. The worker pool is fixed at one: provider quotas assume the
// per-call pacing, so backfills must not run concurrently.
type BackfillService struct {
	sync   *SyncService
	league LeagueProvider
	pacer  *pacing.Pacer
	ids    id.Generator
	pool   *ants.Pool
	queue  JobPublisher
	logger *logging.Logger

	mu   sync.Mutex
	jobs map[string]*BackfillJob
}

func NewBackfillService(
	syncSvc *SyncService,
	league LeagueProvider,
	pacer *pacing.Pacer,
	ids id.Generator,
	logger *logging.Logger,
) (*BackfillService, error) {
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, fmt.Errorf("create backfill worker pool: %w", err)
	}

	return &BackfillService{
		sync:   syncSvc,
		league: league,
		pacer:  pacer,
		ids:    ids,
		pool:   pool,
		logger: logger,
		jobs:   make(map[string]*BackfillJob),
	}, nil
}

// WithQueue attaches an external job queue for deferred scheduling.
func (s *BackfillService) WithQueue(queue JobPublisher) *BackfillService {
	s.queue = queue
	return s
}

// ScheduleLeagueBackfill defers a sweep through the external queue instead
// of running it on the local worker. The queue calls back the internal job
// endpoint, forwarding the caller's bearer token so the sweep can still hit
// the league provider. The deduplication id collapses repeated schedules of
// the same league within the queue's dedup window.
func (s *BackfillService) ScheduleLeagueBackfill(ctx context.Context, token string, input BackfillInput, delay time.Duration) error {
	input.LeagueKey = strings.TrimSpace(input.LeagueKey)
	if input.LeagueKey == "" {
		return fmt.Errorf("%w: league key is required", ErrInvalidInput)
	}
	if s.queue == nil {
		return fmt.Errorf("%w: job queue is not configured", ErrNotConfigured)
	}

	payload := map[string]any{
		"league_key": input.LeagueKey,
	}
	if !input.Start.IsZero() {
		payload["start_date"] = input.Start.Format(time.DateOnly)
	}
	if !input.End.IsZero() {
		payload["end_date"] = input.End.Format(time.DateOnly)
	}
	if input.MaxPlayers > 0 {
		payload["max_players"] = input.MaxPlayers
	}

	deduplicationID := "backfill-" + input.LeagueKey
	if err := s.queue.Enqueue(ctx, "/v1/jobs/backfill", payload, delay, deduplicationID, token); err != nil {
		return fmt.Errorf("schedule league backfill: %w", err)
	}

	s.logger.InfoContext(ctx, "league backfill scheduled",
		"league_key", input.LeagueKey, "delay", delay.String())
	return nil
}

func (s *BackfillService) Close() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// BackfillLeague runs a full sweep inline. A rate-limit or credential
// failure aborts the remainder and surfaces alongside the partial result;
// any other per-player failure is recorded and skipped.
func (s *BackfillService) BackfillLeague(ctx context.Context, token string, input BackfillInput) (BackfillResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.BackfillService.BackfillLeague")
	defer span.End()

	input.LeagueKey = strings.TrimSpace(input.LeagueKey)
	if input.LeagueKey == "" {
		return BackfillResult{}, fmt.Errorf("%w: league key is required", ErrInvalidInput)
	}

	result := BackfillResult{LeagueKey: input.LeagueKey}

	players, err := s.listAllPlayers(ctx, token, input.LeagueKey)
	if err != nil {
		return result, err
	}
	if input.MaxPlayers > 0 && len(players) > input.MaxPlayers {
		players = players[:input.MaxPlayers]
	}

	for _, p := range players {
		summary, err := s.sync.SyncPlayerGameLogs(ctx, token, SyncInput{
			PlayerKey:  p.PlayerKey,
			PlayerName: p.Name,
			LeagueKey:  input.LeagueKey,
			Start:      input.Start,
			End:        input.End,
		})
		result.Summaries = append(result.Summaries, summary)
		result.PlayersProcessed++
		result.TotalNewGames += summary.NewGames
		result.TotalChecked += summary.CheckedDates

		if err != nil {
			if isFatalProviderErr(err) {
				return result, fmt.Errorf("backfill league=%s player=%s: %w", input.LeagueKey, p.PlayerKey, err)
			}
			s.logger.WarnContext(ctx, "skip player backfill",
				"league_key", input.LeagueKey, "player_key", p.PlayerKey, "error", err)
			result.SoftErrors = append(result.SoftErrors, fmt.Sprintf("%s: %v", p.PlayerKey, err))
		}
	}

	s.logger.InfoContext(ctx, "league backfill finished",
		"league_key", input.LeagueKey,
		"players", result.PlayersProcessed,
		"new_games", result.TotalNewGames,
		"soft_errors", len(result.SoftErrors),
	)
	return result, nil
}

// Enqueue registers a backfill and returns its job id right away. The pool
// has a single worker, so Submit blocks while a sweep is running; a hand-off
// goroutine absorbs that wait so the caller never does. Submit failures
// (a released pool, mostly) surface on the job record instead.
func (s *BackfillService) Enqueue(token string, input BackfillInput) (string, error) {
	input.LeagueKey = strings.TrimSpace(input.LeagueKey)
	if input.LeagueKey == "" {
		return "", fmt.Errorf("%w: league key is required", ErrInvalidInput)
	}

	jobID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate backfill job id: %w", err)
	}

	job := &BackfillJob{
		ID:         jobID,
		LeagueKey:  input.LeagueKey,
		Status:     BackfillJobQueued,
		EnqueuedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	go func() {
		if err := s.pool.Submit(func() {
			s.runJob(jobID, token, input)
		}); err != nil {
			s.logger.Warn("submit backfill job failed", "job_id", jobID, "error", err)
			finished := time.Now().UTC()
			s.updateJob(jobID, func(job *BackfillJob) {
				job.Status = BackfillJobFailed
				job.FinishedAt = &finished
				job.Error = fmt.Sprintf("submit backfill job: %v", err)
			})
		}
	}()

	return jobID, nil
}

func (s *BackfillService) Job(jobID string) (BackfillJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[strings.TrimSpace(jobID)]
	if !ok {
		return BackfillJob{}, fmt.Errorf("%w: backfill job %q", ErrNotFound, jobID)
	}
	return *job, nil
}

func (s *BackfillService) Jobs() []BackfillJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]BackfillJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnqueuedAt.After(out[j].EnqueuedAt) })
	return out
}

func (s *BackfillService) runJob(jobID, token string, input BackfillInput) {
	started := time.Now().UTC()
	s.updateJob(jobID, func(job *BackfillJob) {
		job.Status = BackfillJobRunning
		job.StartedAt = &started
	})

	result, err := s.BackfillLeague(context.Background(), token, input)

	finished := time.Now().UTC()
	s.updateJob(jobID, func(job *BackfillJob) {
		job.FinishedAt = &finished
		job.Result = &result
		if err != nil {
			job.Status = BackfillJobFailed
			job.Error = err.Error()
			return
		}
		job.Status = BackfillJobSucceeded
	})
}

func (s *BackfillService) updateJob(jobID string, apply func(*BackfillJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		apply(job)
	}
}

func (s *BackfillService) listAllPlayers(ctx context.Context, token, leagueKey string) ([]ExternalLeaguePlayer, error) {
	var out []ExternalLeaguePlayer
	start := 0
	for {
		if err := s.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		page, more, err := s.league.ListLeaguePlayers(ctx, token, leagueKey, start)
		if err != nil {
			return nil, fmt.Errorf("list league players league=%s start=%d: %w", leagueKey, start, err)
		}
		out = append(out, page...)
		if !more || len(page) == 0 {
			return out, nil
		}
		start += len(page)
	}
}
