package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Notification transports.
const (
	TransportLocal = "local"
	TransportRedis = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Public       PublicConfig
	Telemetry    TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	InviteTTLHours        int
}

// NotificationConfig selects how committed activity is fanned out.
type NotificationConfig struct {
	Transport  string
	QueueSize  int
	Channel    string
	NATSURL    string
	NATSStream string
	// HeartbeatSec is the idle interval between keep-alive comments on activity streams.
	HeartbeatSec int
}

// PublicConfig tunes the unauthenticated estimate endpoints.
type PublicConfig struct {
	DefaultShareDays   int
	DecisionRateLimit  int
	RateLimitWindowSec int
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	OTLPEndpoint string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	transport := strings.ToLower(getEnv("NOTIFY_TRANSPORT", TransportLocal))
	if transport != TransportLocal && transport != TransportRedis {
		return nil, fmt.Errorf("invalid NOTIFY_TRANSPORT: %q", transport)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "fieldops"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			InviteTTLHours:        getEnvAsInt("AUTH_INVITE_TTL_HOURS", 168),
		},
		Notification: NotificationConfig{
			Transport:  transport,
			QueueSize:  getEnvAsInt("NOTIFY_QUEUE_SIZE", 1024),
			Channel:    getEnv("NOTIFY_REDIS_PATTERN", "tenant/*"),
			NATSURL:    os.Getenv("NATS_URL"),
			NATSStream: getEnv("NATS_STREAM", "ACTIVITY"),

			HeartbeatSec: getEnvAsInt("NOTIFY_STREAM_HEARTBEAT_SECONDS", 15),
		},
		Public: PublicConfig{
			DefaultShareDays:   getEnvAsInt("PUBLIC_DEFAULT_SHARE_DAYS", 14),
			DecisionRateLimit:  getEnvAsInt("PUBLIC_DECISION_RATE_LIMIT", 20),
			RateLimitWindowSec: getEnvAsInt("PUBLIC_RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	if cfg.Notification.Transport == TransportRedis && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("NOTIFY_TRANSPORT=redis requires REDIS_ADDR")
	}
	if cfg.Notification.QueueSize <= 0 {
		cfg.Notification.QueueSize = 1024
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued bearer tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// InviteTTL returns how long an invite stays acceptable.
func (a AuthConfig) InviteTTL() time.Duration {
	if a.InviteTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.InviteTTLHours) * time.Hour
}

// Heartbeat returns the activity stream keep-alive interval.
func (n NotificationConfig) Heartbeat() time.Duration {
	return time.Duration(n.HeartbeatSec) * time.Second
}

// RateLimitWindow returns the window for the public decision limiter.
func (p PublicConfig) RateLimitWindow() time.Duration {
	if p.RateLimitWindowSec <= 0 {
		return time.Minute
	}
	return time.Duration(p.RateLimitWindowSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
