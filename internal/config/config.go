package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

// SeasonWindow bounds one provider season's calendar dates.
type SeasonWindow struct {
	Start time.Time
	End   time.Time
}

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv                  string
	ServiceName             string
	ServiceVersion          string
	HTTPAddr                string
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	LogLevel                logging.Level
	CORSAllowedOrigins      []string
	DBURL                   string
	DBDisablePreparedBinary bool

	SeasonKey        string
	SeasonWindows    map[string]SeasonWindow
	SeasonCacheTTL   time.Duration
	CompareCacheTTL  time.Duration
	ProviderCallGap  time.Duration
	InternalJobToken string

	YahooBaseURL               string
	YahooTimeout               time.Duration
	YahooCircuitEnabled        bool
	YahooCircuitFailureCount   int
	YahooCircuitOpenTimeout    time.Duration
	YahooCircuitHalfOpenMaxReq int

	HoopStatsEnabled               bool
	HoopStatsBaseURL               string
	HoopStatsAPIKey                string
	HoopStatsTimeout               time.Duration
	HoopStatsCircuitEnabled        bool
	HoopStatsCircuitFailureCount   int
	HoopStatsCircuitOpenTimeout    time.Duration
	HoopStatsCircuitHalfOpenMaxReq int

	QStashEnabled               bool
	QStashBaseURL               string
	QStashToken                 string
	QStashTargetBaseURL         string
	QStashRetries               int
	QStashCircuitEnabled        bool
	QStashCircuitFailureCount   int
	QStashCircuitOpenTimeout    time.Duration
	QStashCircuitHalfOpenMaxReq int

	PprofEnabled bool
	PprofAddr    string

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	seasonCacheTTL, err := time.ParseDuration(getEnv("SEASON_CACHE_TTL", "24h"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SEASON_CACHE_TTL: %w", err)
	}
	if seasonCacheTTL <= 0 {
		return Config{}, fmt.Errorf("SEASON_CACHE_TTL must be > 0")
	}
	compareCacheTTL, err := time.ParseDuration(getEnv("COMPARE_CACHE_TTL", "30m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse COMPARE_CACHE_TTL: %w", err)
	}
	if compareCacheTTL <= 0 {
		return Config{}, fmt.Errorf("COMPARE_CACHE_TTL must be > 0")
	}

	providerCallGap, err := time.ParseDuration(getEnv("PROVIDER_CALL_GAP", "200ms"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PROVIDER_CALL_GAP: %w", err)
	}
	if providerCallGap < 0 {
		return Config{}, fmt.Errorf("PROVIDER_CALL_GAP must be >= 0")
	}

	seasonKey := strings.TrimSpace(getEnv("SEASON_KEY", "2025"))
	if seasonKey == "" {
		return Config{}, fmt.Errorf("SEASON_KEY cannot be empty")
	}
	seasonWindows, err := parseSeasonWindowMap(getEnv("SEASON_DATE_MAP", "2025:2025-10-21..2026-04-12"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SEASON_DATE_MAP: %w", err)
	}
	if _, ok := seasonWindows[seasonKey]; !ok {
		return Config{}, fmt.Errorf("SEASON_DATE_MAP has no window for SEASON_KEY %q", seasonKey)
	}

	yahooTimeout, err := time.ParseDuration(getEnv("YAHOO_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse YAHOO_TIMEOUT: %w", err)
	}
	if yahooTimeout <= 0 {
		return Config{}, fmt.Errorf("YAHOO_TIMEOUT must be > 0")
	}
	yahooCircuitEnabled, err := strconv.ParseBool(getEnv("YAHOO_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse YAHOO_CIRCUIT_ENABLED: %w", err)
	}
	yahooCircuitFailureCount, err := getEnvAsInt("YAHOO_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse YAHOO_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if yahooCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("YAHOO_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	yahooCircuitOpenTimeout, err := time.ParseDuration(getEnv("YAHOO_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse YAHOO_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if yahooCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("YAHOO_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	yahooCircuitHalfOpenMaxReq, err := getEnvAsInt("YAHOO_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse YAHOO_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if yahooCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("YAHOO_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	hoopStatsEnabled, err := strconv.ParseBool(getEnv("HOOPSTATS_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HOOPSTATS_ENABLED: %w", err)
	}
	hoopStatsAPIKey := strings.TrimSpace(getEnv("HOOPSTATS_API_KEY", ""))
	if hoopStatsEnabled && hoopStatsAPIKey == "" {
		return Config{}, fmt.Errorf("HOOPSTATS_API_KEY is required when HOOPSTATS_ENABLED=true")
	}
	hoopStatsTimeout, err := time.ParseDuration(getEnv("HOOPSTATS_TIMEOUT", "20s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HOOPSTATS_TIMEOUT: %w", err)
	}
	if hoopStatsTimeout <= 0 {
		return Config{}, fmt.Errorf("HOOPSTATS_TIMEOUT must be > 0")
	}
	hoopStatsCircuitEnabled, err := strconv.ParseBool(getEnv("HOOPSTATS_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HOOPSTATS_CIRCUIT_ENABLED: %w", err)
	}
	hoopStatsCircuitFailureCount, err := getEnvAsInt("HOOPSTATS_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse HOOPSTATS_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if hoopStatsCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("HOOPSTATS_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	hoopStatsCircuitOpenTimeout, err := time.ParseDuration(getEnv("HOOPSTATS_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HOOPSTATS_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if hoopStatsCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("HOOPSTATS_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	hoopStatsCircuitHalfOpenMaxReq, err := getEnvAsInt("HOOPSTATS_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse HOOPSTATS_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if hoopStatsCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("HOOPSTATS_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	qstashEnabled, err := strconv.ParseBool(getEnv("QSTASH_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_ENABLED: %w", err)
	}
	qstashRetries, err := getEnvAsInt("QSTASH_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_RETRIES: %w", err)
	}
	if qstashRetries < 0 {
		return Config{}, fmt.Errorf("QSTASH_RETRIES must be >= 0")
	}
	qstashCircuitEnabled, err := strconv.ParseBool(getEnv("QSTASH_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_CIRCUIT_ENABLED: %w", err)
	}
	qstashCircuitFailureCount, err := getEnvAsInt("QSTASH_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if qstashCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("QSTASH_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	qstashCircuitOpenTimeout, err := time.ParseDuration(getEnv("QSTASH_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if qstashCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("QSTASH_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	qstashCircuitHalfOpenMaxReq, err := getEnvAsInt("QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if qstashCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	qstashBaseURL := strings.TrimSpace(getEnv("QSTASH_BASE_URL", "https://qstash.upstash.io"))
	qstashToken := strings.TrimSpace(getEnv("QSTASH_TOKEN", ""))
	qstashTargetBaseURL := strings.TrimSpace(getEnv("QSTASH_TARGET_BASE_URL", ""))
	internalJobToken := strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", ""))
	if qstashEnabled {
		if qstashToken == "" {
			return Config{}, fmt.Errorf("QSTASH_TOKEN is required when QSTASH_ENABLED=true")
		}
		if qstashTargetBaseURL == "" {
			return Config{}, fmt.Errorf("QSTASH_TARGET_BASE_URL is required when QSTASH_ENABLED=true")
		}
		if internalJobToken == "" {
			return Config{}, fmt.Errorf("INTERNAL_JOB_TOKEN is required when QSTASH_ENABLED=true")
		}
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	cfg := Config{
		AppEnv:                  appEnv,
		ServiceName:             getEnv("APP_SERVICE_NAME", "hoopsync-api"),
		ServiceVersion:          getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:                getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:             readTimeout,
		WriteTimeout:            writeTimeout,
		LogLevel:                parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
		CORSAllowedOrigins:      splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DBURL:                   strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary: dbDisablePreparedBinary,

		SeasonKey:        seasonKey,
		SeasonWindows:    seasonWindows,
		SeasonCacheTTL:   seasonCacheTTL,
		CompareCacheTTL:  compareCacheTTL,
		ProviderCallGap:  providerCallGap,
		InternalJobToken: internalJobToken,

		YahooBaseURL:               strings.TrimSpace(getEnv("YAHOO_BASE_URL", "https://fantasysports.yahooapis.com/fantasy/v2")),
		YahooTimeout:               yahooTimeout,
		YahooCircuitEnabled:        yahooCircuitEnabled,
		YahooCircuitFailureCount:   yahooCircuitFailureCount,
		YahooCircuitOpenTimeout:    yahooCircuitOpenTimeout,
		YahooCircuitHalfOpenMaxReq: yahooCircuitHalfOpenMaxReq,

		HoopStatsEnabled:               hoopStatsEnabled,
		HoopStatsBaseURL:               strings.TrimSpace(getEnv("HOOPSTATS_BASE_URL", "https://api.hoopstats.io/v1")),
		HoopStatsAPIKey:                hoopStatsAPIKey,
		HoopStatsTimeout:               hoopStatsTimeout,
		HoopStatsCircuitEnabled:        hoopStatsCircuitEnabled,
		HoopStatsCircuitFailureCount:   hoopStatsCircuitFailureCount,
		HoopStatsCircuitOpenTimeout:    hoopStatsCircuitOpenTimeout,
		HoopStatsCircuitHalfOpenMaxReq: hoopStatsCircuitHalfOpenMaxReq,

		QStashEnabled:               qstashEnabled,
		QStashBaseURL:               qstashBaseURL,
		QStashToken:                 qstashToken,
		QStashTargetBaseURL:         qstashTargetBaseURL,
		QStashRetries:               qstashRetries,
		QStashCircuitEnabled:        qstashCircuitEnabled,
		QStashCircuitFailureCount:   qstashCircuitFailureCount,
		QStashCircuitOpenTimeout:    qstashCircuitOpenTimeout,
		QStashCircuitHalfOpenMaxReq: qstashCircuitHalfOpenMaxReq,

		PprofEnabled: pprofEnabled,
		PprofAddr:    pprofAddr,

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	return cfg, nil
}

// SeasonWindowForKey returns the configured window for the active season.
func (c Config) SeasonWindowForKey(key string) (SeasonWindow, bool) {
	window, ok := c.SeasonWindows[strings.TrimSpace(key)]
	return window, ok
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

// parseSeasonWindowMap parses "seasonKey:start..end" items, e.g.
// "2025:2025-10-21..2026-04-12,2024:2024-10-22..2025-04-13".
func parseSeasonWindowMap(raw string) (map[string]SeasonWindow, error) {
	out := make(map[string]SeasonWindow)
	parts := strings.Split(raw, ",")
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}

		segments := strings.SplitN(item, ":", 2)
		if len(segments) != 2 {
			return nil, fmt.Errorf("invalid map item %q, expected season_key:start..end", item)
		}

		key := strings.TrimSpace(segments[0])
		if key == "" {
			return nil, fmt.Errorf("empty season key in item %q", item)
		}

		dates := strings.SplitN(strings.TrimSpace(segments[1]), "..", 2)
		if len(dates) != 2 {
			return nil, fmt.Errorf("invalid date range in item %q, expected start..end", item)
		}
		start, err := time.Parse(time.DateOnly, strings.TrimSpace(dates[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start date in item %q: %w", item, err)
		}
		end, err := time.Parse(time.DateOnly, strings.TrimSpace(dates[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end date in item %q: %w", item, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("end precedes start in item %q", item)
		}

		out[key] = SeasonWindow{Start: start, End: end}
	}
	return out, nil
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
