package yahoo

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/hoopsync/hoopsync/internal/domain/roster"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/platform/resilience"
	"github.com/hoopsync/hoopsync/internal/usecase"
)

const (
	defaultBaseURL  = "https://fantasysports.yahooapis.com/fantasy/v2"
	playersPageSize = 25
	deniedErrorCode = 999
)

var errYahooTransient = crerr.Mark(crerr.New("yahoo transient failure"), usecase.ErrTransient)

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the fantasy league provider. It never stores credentials:
// every call carries the caller's bearer token. Errors classify into
// usecase.ErrUnauthorized (401/403), usecase.ErrRateLimited (quota denial,
// which the provider reports inside a 200-status envelope) and a transient
// sentinel for network and 5xx failures. The client never retries; pacing
// and retry policy belong to the caller.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

func (c *Client) GetLeagueMeta(ctx context.Context, token, leagueKey string) (roster.League, error) {
	var envelope leagueMetaEnvelope
	if err := c.doJSON(ctx, token, "/league/"+url.PathEscape(leagueKey)+"/metadata", nil, &envelope); err != nil {
		return roster.League{}, err
	}
	return mapLeague(envelope.League), nil
}

func (c *Client) ListUserLeagues(ctx context.Context, token string) ([]roster.League, error) {
	var envelope userLeaguesEnvelope
	if err := c.doJSON(ctx, token, "/users/leagues", map[string]string{"game_code": "nba"}, &envelope); err != nil {
		return nil, err
	}

	out := make([]roster.League, 0, len(envelope.Leagues))
	for _, item := range envelope.Leagues {
		out = append(out, mapLeague(item))
	}
	return out, nil
}

func (c *Client) ListLeagueTeams(ctx context.Context, token, leagueKey string) ([]roster.Team, error) {
	var envelope leagueTeamsEnvelope
	if err := c.doJSON(ctx, token, "/league/"+url.PathEscape(leagueKey)+"/teams", nil, &envelope); err != nil {
		return nil, err
	}

	out := make([]roster.Team, 0, len(envelope.Teams))
	for _, item := range envelope.Teams {
		team := mapTeam(item)
		if team.LeagueKey == "" {
			team.LeagueKey = leagueKey
		}
		out = append(out, team)
	}
	return out, nil
}

func (c *Client) GetTeamRoster(ctx context.Context, token, teamKey string) (roster.Team, error) {
	var envelope teamRosterEnvelope
	if err := c.doJSON(ctx, token, "/team/"+url.PathEscape(teamKey)+"/roster", nil, &envelope); err != nil {
		return roster.Team{}, err
	}

	team := mapTeam(envelope.Team)
	if team.TeamKey == "" {
		team.TeamKey = teamKey
	}
	team.Players = make([]roster.Player, 0, len(envelope.Players))
	for _, item := range envelope.Players {
		team.Players = append(team.Players, roster.Player{
			PlayerKey:        strings.TrimSpace(item.PlayerKey),
			PlayerID:         strings.TrimSpace(item.PlayerID),
			Name:             strings.TrimSpace(item.FullName),
			Position:         strings.TrimSpace(item.Position),
			SelectedPosition: strings.TrimSpace(item.SelectedPosition),
			Status:           strings.TrimSpace(item.Status),
		})
	}
	return team, nil
}

func (c *Client) GetTeamWeekStats(ctx context.Context, token, teamKey string, week int) (usecase.ExternalTeamWeekStats, error) {
	query := map[string]string{"type": "week", "week": strconv.Itoa(week)}
	var envelope teamWeekStatsEnvelope
	if err := c.doJSON(ctx, token, "/team/"+url.PathEscape(teamKey)+"/stats", query, &envelope); err != nil {
		return usecase.ExternalTeamWeekStats{}, err
	}

	out := usecase.ExternalTeamWeekStats{
		TeamKey:    strings.TrimSpace(envelope.TeamKey),
		Week:       envelope.Week,
		StatTotals: statMap(envelope.Stats),
	}
	if out.TeamKey == "" {
		out.TeamKey = teamKey
	}
	if out.Week == 0 {
		out.Week = week
	}
	return out, nil
}

func (c *Client) GetPlayerStatsByDate(ctx context.Context, token, playerKey string, date time.Time) (usecase.ExternalPlayerDateStats, error) {
	query := map[string]string{"type": "date", "date": date.Format(time.DateOnly)}
	var envelope playerDateStatsEnvelope
	if err := c.doJSON(ctx, token, "/player/"+url.PathEscape(playerKey)+"/stats", query, &envelope); err != nil {
		return usecase.ExternalPlayerDateStats{}, err
	}

	out := usecase.ExternalPlayerDateStats{
		PlayerKey:  strings.TrimSpace(envelope.PlayerKey),
		PlayerName: strings.TrimSpace(envelope.FullName),
		Date:       date,
		Stats:      statMap(envelope.Stats),
	}
	if out.PlayerKey == "" {
		out.PlayerKey = playerKey
	}
	return out, nil
}

func (c *Client) ListLeaguePlayers(ctx context.Context, token, leagueKey string, start int) ([]usecase.ExternalLeaguePlayer, bool, error) {
	if start < 0 {
		start = 0
	}
	query := map[string]string{
		"start": strconv.Itoa(start),
		"count": strconv.Itoa(playersPageSize),
	}
	var envelope leaguePlayersEnvelope
	if err := c.doJSON(ctx, token, "/league/"+url.PathEscape(leagueKey)+"/players", query, &envelope); err != nil {
		return nil, false, err
	}

	out := make([]usecase.ExternalLeaguePlayer, 0, len(envelope.Players))
	for _, item := range envelope.Players {
		out = append(out, usecase.ExternalLeaguePlayer{
			PlayerKey: strings.TrimSpace(item.PlayerKey),
			Name:      strings.TrimSpace(item.FullName),
			Position:  strings.TrimSpace(item.Position),
			TeamAbbr:  strings.TrimSpace(item.TeamAbbr),
		})
	}

	more := envelope.Total > 0 && start+len(out) < envelope.Total
	return out, more, nil
}

type envelopeErrorCarrier interface {
	envelopeError() *providerError
}

func (e responseEnvelope) envelopeError() *providerError { return e.Error }

func (c *Client) doJSON(ctx context.Context, token, path string, query map[string]string, target envelopeErrorCarrier) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: missing access token", usecase.ErrUnauthorized)
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "league provider circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: league provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	values.Set("format", "json")

	fullURL := c.baseURL + path + "?" + values.Encode()

	// Responses depend on the caller's token, so collapsed flights must not
	// cross tokens.
	flightKey := token + "|" + path + "?" + values.Encode()
	out, err, _ := c.flight.Do(flightKey, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, token, fullURL)
		if c.circuitEnabled {
			if isYahooCircuitFailure(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}

	if provErr := target.envelopeError(); provErr != nil {
		return classifyEnvelopeError(provErr)
	}
	return nil
}

// executeRequest performs exactly one attempt. A denied quota often comes
// back as HTTP 200 with an error envelope, which doJSON classifies after
// decoding; the status-level mapping here covers everything else.
func (c *Client) executeRequest(ctx context.Context, token, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: send request: %s", errYahooTransient, sanitizeSensitiveText(err.Error(), token))
		c.logger.WarnContext(ctx, "league provider request failed", "url", fullURL, "error", err)
		return nil, err
	}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("%w: read response body: %v", errYahooTransient, readErr)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: provider status=%d", usecase.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: provider status=%d", usecase.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		err = fmt.Errorf("%w: provider status=%d body=%s", errYahooTransient, resp.StatusCode, abbreviateBody(raw))
		c.logger.WarnContext(ctx, "league provider request failed", "url", fullURL, "status", resp.StatusCode)
		return nil, err
	default:
		return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
	}
}

func classifyEnvelopeError(provErr *providerError) error {
	description := strings.ToLower(strings.TrimSpace(provErr.Description))
	if provErr.Code == deniedErrorCode ||
		strings.Contains(description, "request denied") ||
		strings.Contains(description, "rate limit") {
		return fmt.Errorf("%w: provider error code=%d description=%q",
			usecase.ErrRateLimited, provErr.Code, provErr.Description)
	}
	return fmt.Errorf("provider error code=%d description=%q", provErr.Code, provErr.Description)
}

func mapLeague(item leaguePayload) roster.League {
	return roster.League{
		LeagueKey:   strings.TrimSpace(item.LeagueKey),
		Name:        strings.TrimSpace(item.Name),
		SeasonKey:   strings.TrimSpace(item.Season),
		CurrentWeek: item.CurrentWeek,
		StartWeek:   item.StartWeek,
		EndWeek:     item.EndWeek,
		ScoringType: strings.TrimSpace(item.ScoringType),
		NumTeams:    item.NumTeams,
	}
}

func mapTeam(item teamPayload) roster.Team {
	return roster.Team{
		TeamKey:   strings.TrimSpace(item.TeamKey),
		Name:      strings.TrimSpace(item.Name),
		LeagueKey: strings.TrimSpace(item.LeagueKey),
	}
}

func isYahooCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errYahooTransient)
}

func sanitizeSensitiveText(value, token string) string {
	value = strings.TrimSpace(value)
	if value == "" || token == "" {
		return value
	}
	return strings.ReplaceAll(value, token, "REDACTED")
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
