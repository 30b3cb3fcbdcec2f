package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/usecase"
)

type Handler struct {
	statsService    *usecase.StatsService
	syncService     *usecase.SyncService
	backfillService *usecase.BackfillService
	logger          *logging.Logger
	validator       *validator.Validate
}

func NewHandler(
	statsService *usecase.StatsService,
	syncService *usecase.SyncService,
	backfillService *usecase.BackfillService,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		statsService:    statsService,
		syncService:     syncService,
		backfillService: backfillService,
		logger:          logger,
		validator:       validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListLeagues(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeagues")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	leagues, err := h.statsService.ListUserLeagues(ctx, principal.AccessToken)
	if err != nil {
		h.logger.WarnContext(ctx, "list leagues failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, leagues)
}

func (h *Handler) GetLeagueStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLeagueStats")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	leagueKey := r.PathValue("leagueKey")
	view, err := h.statsService.GetLeagueStats(ctx, principal.AccessToken, leagueKey, r.URL.Query().Get("range"))
	if err != nil {
		h.logger.WarnContext(ctx, "get league stats failed", "league_key", leagueKey, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

func (h *Handler) GetTeamStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetTeamStats")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	teamKey := r.PathValue("teamKey")
	view, err := h.statsService.GetTeamStats(ctx, principal.AccessToken, teamKey, r.URL.Query().Get("range"))
	if err != nil {
		h.logger.WarnContext(ctx, "get team stats failed", "team_key", teamKey, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

func (h *Handler) CompareRosters(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CompareRosters")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	teamKey := r.PathValue("teamKey")
	opponentKey := strings.TrimSpace(r.URL.Query().Get("opponent"))
	if opponentKey == "" {
		writeError(ctx, w, fmt.Errorf("%w: opponent query parameter is required", usecase.ErrInvalidInput))
		return
	}

	comparison, err := h.statsService.CompareRosters(ctx, principal.AccessToken, teamKey, opponentKey, r.URL.Query().Get("range"))
	if err != nil {
		h.logger.WarnContext(ctx, "compare rosters failed",
			"team_key", teamKey, "opponent_key", opponentKey, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, comparison)
}

// GetPlayerGameLogs serves persisted game logs; it never calls the league
// provider, so a missing player simply returns an empty window.
func (h *Handler) GetPlayerGameLogs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPlayerGameLogs")
	defer span.End()

	if _, ok := principalFromContext(ctx); !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	playerKey := r.PathValue("playerKey")
	start, err := parseOptionalDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: start must be YYYY-MM-DD", usecase.ErrInvalidInput))
		return
	}
	end, err := parseOptionalDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: end must be YYYY-MM-DD", usecase.ErrInvalidInput))
		return
	}

	view, err := h.syncService.ListPlayerGameLogs(ctx, playerKey, start, end)
	if err != nil {
		h.logger.WarnContext(ctx, "list player game logs failed", "player_key", playerKey, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

type syncPlayerRequest struct {
	PlayerKey  string `json:"player_key" validate:"required"`
	PlayerName string `json:"player_name" validate:"omitempty,max=120"`
	LeagueKey  string `json:"league_key" validate:"omitempty,max=64"`
	StartDate  string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) SyncPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SyncPlayer")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	var req syncPlayerRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	input := usecase.SyncInput{
		PlayerKey:  req.PlayerKey,
		PlayerName: req.PlayerName,
		LeagueKey:  req.LeagueKey,
	}
	var err error
	if input.Start, err = parseOptionalDate(req.StartDate); err != nil {
		writeError(ctx, w, err)
		return
	}
	if input.End, err = parseOptionalDate(req.EndDate); err != nil {
		writeError(ctx, w, err)
		return
	}

	summary, err := h.syncService.SyncPlayerGameLogs(ctx, principal.AccessToken, input)
	if err != nil {
		h.logger.WarnContext(ctx, "player sync failed", "player_key", req.PlayerKey, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, summary)
}

type enqueueBackfillRequest struct {
	LeagueKey  string `json:"league_key" validate:"required"`
	StartDate  string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	MaxPlayers int    `json:"max_players" validate:"omitempty,min=1,max=2000"`
}

// EnqueueBackfill schedules a league-wide sweep. The route sits behind the
// internal job token, but the sweep still calls the league provider on the
// caller's behalf, so a bearer token is required as well.
func (h *Handler) EnqueueBackfill(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.EnqueueBackfill")
	defer span.End()

	token, err := bearerToken(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req enqueueBackfillRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	input := usecase.BackfillInput{
		LeagueKey:  req.LeagueKey,
		MaxPlayers: req.MaxPlayers,
	}
	if input.Start, err = parseOptionalDate(req.StartDate); err != nil {
		writeError(ctx, w, err)
		return
	}
	if input.End, err = parseOptionalDate(req.EndDate); err != nil {
		writeError(ctx, w, err)
		return
	}

	jobID, err := h.backfillService.Enqueue(token, input)
	if err != nil {
		h.logger.WarnContext(ctx, "enqueue backfill failed", "league_key", req.LeagueKey, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

type scheduleBackfillRequest struct {
	StartDate    string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	MaxPlayers   int    `json:"max_players" validate:"omitempty,min=1,max=2000"`
	DelaySeconds int    `json:"delay_seconds" validate:"omitempty,min=0,max=86400"`
}

// ScheduleBackfill defers a league sweep through the external job queue.
// The caller's bearer token rides along so the queued job can still reach
// the league provider when it fires.
func (h *Handler) ScheduleBackfill(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ScheduleBackfill")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, usecase.ErrUnauthorized)
		return
	}

	req := scheduleBackfillRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		decoder := sonic.ConfigDefault.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
			return
		}
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	input := usecase.BackfillInput{
		LeagueKey:  r.PathValue("leagueKey"),
		MaxPlayers: req.MaxPlayers,
	}
	var err error
	if input.Start, err = parseOptionalDate(req.StartDate); err != nil {
		writeError(ctx, w, err)
		return
	}
	if input.End, err = parseOptionalDate(req.EndDate); err != nil {
		writeError(ctx, w, err)
		return
	}

	delay := time.Duration(req.DelaySeconds) * time.Second
	if err := h.backfillService.ScheduleLeagueBackfill(ctx, principal.AccessToken, input, delay); err != nil {
		h.logger.WarnContext(ctx, "schedule backfill failed", "league_key", input.LeagueKey, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusAccepted, map[string]bool{"scheduled": true})
}

func (h *Handler) GetBackfillJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetBackfillJob")
	defer span.End()

	jobID := r.PathValue("jobID")
	job, err := h.backfillService.Job(jobID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, job)
}

func (h *Handler) ListBackfillJobs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListBackfillJobs")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.backfillService.Jobs())
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func parseOptionalDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", usecase.ErrInvalidInput, value)
	}
	return parsed, nil
}
