package hoopstats

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/platform/resilience"
	"github.com/hoopsync/hoopsync/internal/usecase"
)

const defaultBaseURL = "https://api.hoopstats.io/v1"

var errHoopStatsTransient = crerr.Mark(crerr.New("hoopstats transient failure"), usecase.ErrTransient)

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client fetches aggregate per-player averages from the statistics source.
// Unlike the league provider this API uses a single server-side key, so the
// client holds the credential itself.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
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
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

type averagesEnvelope struct {
	Data []playerAverages `json:"data"`
}

type playerAverages struct {
	PlayerName  string             `json:"player_name"`
	TeamAbbr    string             `json:"team_abbr"`
	GamesPlayed int                `json:"games_played"`
	Stats       map[string]float64 `json:"stats"`
}

func (c *Client) SeasonAverages(ctx context.Context, seasonKey string) (map[string]usecase.StatBundle, error) {
	query := map[string]string{"season": seasonKey}
	var envelope averagesEnvelope
	if err := c.doJSON(ctx, "/averages/season", query, &envelope); err != nil {
		return nil, fmt.Errorf("fetch season averages season=%s: %w", seasonKey, err)
	}
	return bundleByName(envelope.Data), nil
}

func (c *Client) WindowAverages(ctx context.Context, start, end time.Time) (map[string]usecase.StatBundle, error) {
	query := map[string]string{
		"start_date": start.Format(time.DateOnly),
		"end_date":   end.Format(time.DateOnly),
	}
	var envelope averagesEnvelope
	if err := c.doJSON(ctx, "/averages/range", query, &envelope); err != nil {
		return nil, fmt.Errorf("fetch window averages start=%s end=%s: %w",
			start.Format(time.DateOnly), end.Format(time.DateOnly), err)
	}
	return bundleByName(envelope.Data), nil
}

// bundleByName keys averages by display name. The statistics source shares
// no identifier space with the league provider, so names are the only join
// key; duplicate names keep the row with more games played.
func bundleByName(rows []playerAverages) map[string]usecase.StatBundle {
	out := make(map[string]usecase.StatBundle, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row.PlayerName)
		if name == "" {
			continue
		}
		bundle := usecase.StatBundle{
			PlayerName:  name,
			TeamAbbr:    strings.TrimSpace(row.TeamAbbr),
			GamesPlayed: row.GamesPlayed,
			Stats:       row.Stats,
		}
		if existing, ok := out[name]; ok && existing.GamesPlayed >= bundle.GamesPlayed {
			continue
		}
		out[name] = bundle
	}
	return out
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "stats provider circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: stats provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	values.Set("api_key", c.apiKey)

	fullURL := c.baseURL + path + "?" + values.Encode()

	flightKey := path + "?" + values.Encode()
	out, err, _ := c.flight.Do(flightKey, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if isHoopStatsCircuitFailure(reqErr) {
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
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: send request: %s", errHoopStatsTransient, sanitizeSensitiveText(err.Error(), c.apiKey))
		c.logger.WarnContext(ctx, "stats provider request failed", "url", redactAPIURL(fullURL), "error", err)
		return nil, err
	}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("%w: read response body: %v", errHoopStatsTransient, readErr)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: provider status=%d", usecase.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: provider status=%d", usecase.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		err = fmt.Errorf("%w: provider status=%d body=%s", errHoopStatsTransient, resp.StatusCode, abbreviateBody(raw))
		c.logger.WarnContext(ctx, "stats provider request failed", "url", redactAPIURL(fullURL), "status", resp.StatusCode)
		return nil, err
	default:
		return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
	}
}

func isHoopStatsCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errHoopStatsTransient)
}

func sanitizeSensitiveText(value, apiKey string) string {
	value = strings.TrimSpace(value)
	if value == "" || apiKey == "" {
		return value
	}
	return strings.ReplaceAll(value, apiKey, "REDACTED")
}

func redactAPIURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	if query.Has("api_key") {
		query.Set("api_key", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
