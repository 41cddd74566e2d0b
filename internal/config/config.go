package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prasetyadi/statmerge/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the pipeline.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	DBURL          string
	LogLevel       logging.Level

	StatsSiteBaseURL             string
	StatsSiteSchedulePath        string
	StatsSiteTimeout             time.Duration
	StatsSiteMaxRetries          int
	StatsSitePageCacheTTL        time.Duration
	StatsSiteCircuitEnabled      bool
	StatsSiteCircuitFailureCount int
	StatsSiteCircuitOpenTimeout  time.Duration
	StatsSiteCircuitHalfOpenReq  int

	FantasyAPIBaseURL    string
	FantasyAPITimeout    time.Duration
	FantasyAPIMaxRetries int

	ResolverAcceptThreshold float64
	ResolverMarginThreshold float64
	ResolverFloorThreshold  float64
	ResolverTransferGrace   time.Duration
	ResolverStrict          bool

	FetchWorkers int

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled       bool
	PyroscopeServerAddress string
	PyroscopeAppName       string
	PyroscopeAuthToken     string
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	dbURL := strings.TrimSpace(getEnv("DB_URL", ""))
	if dbURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}

	statsTimeout, err := getEnvAsDuration("STATS_SITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATS_SITE_TIMEOUT: %w", err)
	}
	statsMaxRetries, err := getEnvAsInt("STATS_SITE_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATS_SITE_MAX_RETRIES: %w", err)
	}
	statsPageCacheTTL, err := getEnvAsDuration("STATS_SITE_PAGE_CACHE_TTL", 30*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATS_SITE_PAGE_CACHE_TTL: %w", err)
	}
	statsCircuitEnabled, err := strconv.ParseBool(getEnv("STATS_SITE_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STATS_SITE_CIRCUIT_ENABLED: %w", err)
	}
	statsCircuitFailures, err := getEnvAsInt("STATS_SITE_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATS_SITE_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	statsCircuitOpenTimeout, err := getEnvAsDuration("STATS_SITE_CIRCUIT_OPEN_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATS_SITE_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	statsCircuitHalfOpen, err := getEnvAsInt("STATS_SITE_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATS_SITE_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}

	fantasyTimeout, err := getEnvAsDuration("FANTASY_API_TIMEOUT", 20*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse FANTASY_API_TIMEOUT: %w", err)
	}
	fantasyMaxRetries, err := getEnvAsInt("FANTASY_API_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse FANTASY_API_MAX_RETRIES: %w", err)
	}

	acceptThreshold, err := getEnvAsFloat("RESOLVER_ACCEPT_THRESHOLD", 0.85)
	if err != nil {
		return Config{}, fmt.Errorf("parse RESOLVER_ACCEPT_THRESHOLD: %w", err)
	}
	marginThreshold, err := getEnvAsFloat("RESOLVER_MARGIN_THRESHOLD", 0.05)
	if err != nil {
		return Config{}, fmt.Errorf("parse RESOLVER_MARGIN_THRESHOLD: %w", err)
	}
	floorThreshold, err := getEnvAsFloat("RESOLVER_FLOOR_THRESHOLD", 0.60)
	if err != nil {
		return Config{}, fmt.Errorf("parse RESOLVER_FLOOR_THRESHOLD: %w", err)
	}
	transferGrace, err := getEnvAsDuration("RESOLVER_TRANSFER_GRACE", 28*24*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("parse RESOLVER_TRANSFER_GRACE: %w", err)
	}
	resolverStrict, err := strconv.ParseBool(getEnv("RESOLVER_STRICT", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RESOLVER_STRICT: %w", err)
	}

	fetchWorkers, err := getEnvAsInt("FETCH_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse FETCH_WORKERS: %w", err)
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

	return Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("SERVICE_NAME", "statmerge"),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		DBURL:          dbURL,
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),

		StatsSiteBaseURL:             strings.TrimSpace(getEnv("STATS_SITE_BASE_URL", "")),
		StatsSiteSchedulePath:        strings.TrimSpace(getEnv("STATS_SITE_SCHEDULE_PATH", "")),
		StatsSiteTimeout:             statsTimeout,
		StatsSiteMaxRetries:          statsMaxRetries,
		StatsSitePageCacheTTL:        statsPageCacheTTL,
		StatsSiteCircuitEnabled:      statsCircuitEnabled,
		StatsSiteCircuitFailureCount: statsCircuitFailures,
		StatsSiteCircuitOpenTimeout:  statsCircuitOpenTimeout,
		StatsSiteCircuitHalfOpenReq:  statsCircuitHalfOpen,

		FantasyAPIBaseURL:    strings.TrimSpace(getEnv("FANTASY_API_BASE_URL", "")),
		FantasyAPITimeout:    fantasyTimeout,
		FantasyAPIMaxRetries: fantasyMaxRetries,

		ResolverAcceptThreshold: acceptThreshold,
		ResolverMarginThreshold: marginThreshold,
		ResolverFloorThreshold:  floorThreshold,
		ResolverTransferGrace:   transferGrace,
		ResolverStrict:          resolverStrict,

		FetchWorkers: fetchWorkers,

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		PyroscopeEnabled:       pyroscopeEnabled,
		PyroscopeServerAddress: pyroscopeServerAddress,
		PyroscopeAppName:       getEnv("PYROSCOPE_APP_NAME", "statmerge"),
		PyroscopeAuthToken:     getEnv("PYROSCOPE_AUTH_TOKEN", ""),
	}, nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
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

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}
