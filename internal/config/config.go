package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Dispatch     DispatchConfig
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
	BusyRetryMaxTries     int
	BusyRetryInitialMS    int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	ReplicaDSN     string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	LockTimeoutMS  int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	File  LogFileConfig
}

// LogFileConfig enables rotated file output next to stdout.
type LogFileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds notification channel endpoints.
type NotificationConfig struct {
	EmailFrom    string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	RedisChannel string
}

// DispatchConfig holds work order engine policy.
type DispatchConfig struct {
	MaxTeamSize    int
	SLAHighHours   int
	SLAMediumHours int
	SLALowHours    int
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "dispatch-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			BusyRetryMaxTries:     getEnvAsInt("HTTP_BUSY_RETRY_MAX_TRIES", 3),
			BusyRetryInitialMS:    getEnvAsInt("HTTP_BUSY_RETRY_INITIAL_MS", 50),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			ReplicaDSN:     os.Getenv("POSTGRES_REPLICA_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
			LockTimeoutMS:  getEnvAsInt("POSTGRES_LOCK_TIMEOUT_MS", 5000),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File: LogFileConfig{
				Path:       os.Getenv("LOG_FILE_PATH"),
				MaxSizeMB:  getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100),
				MaxBackups: getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5),
				MaxAgeDays: getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 28),
				Compress:   getEnvAsBool("LOG_FILE_COMPRESS", true),
			},
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:     os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:     getEnvAsInt("NOTIFY_SMTP_PORT", 587),
			SMTPUsername: os.Getenv("NOTIFY_SMTP_USERNAME"),
			SMTPPassword: os.Getenv("NOTIFY_SMTP_PASSWORD"),
			RedisChannel: getEnv("NOTIFY_REDIS_CHANNEL", "dispatch:notifications"),
		},
		Dispatch: DispatchConfig{
			MaxTeamSize:    getEnvAsInt("DISPATCH_MAX_TEAM_SIZE", 5),
			SLAHighHours:   getEnvAsInt("DISPATCH_SLA_HIGH_HOURS", 4),
			SLAMediumHours: getEnvAsInt("DISPATCH_SLA_MEDIUM_HOURS", 24),
			SLALowHours:    getEnvAsInt("DISPATCH_SLA_LOW_HOURS", 72),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			OTLPInsecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
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

// BusyRetryInitial returns the first backoff interval for BUSY retries.
func (a AppConfig) BusyRetryInitial() time.Duration {
	if a.BusyRetryInitialMS <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(a.BusyRetryInitialMS) * time.Millisecond
}

// LockTimeout returns the per-transaction lock wait limit.
func (p PostgresConfig) LockTimeout() time.Duration {
	if p.LockTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(p.LockTimeoutMS) * time.Millisecond
}

// SLAWindows returns the configured windows as durations.
func (d DispatchConfig) SLAWindows() (high, medium, low time.Duration) {
	return time.Duration(d.SLAHighHours) * time.Hour,
		time.Duration(d.SLAMediumHours) * time.Hour,
		time.Duration(d.SLALowHours) * time.Hour
}

// Validate checks the dispatch policy.
func (d DispatchConfig) Validate() error {
	if d.MaxTeamSize < 1 {
		return fmt.Errorf("invalid DISPATCH_MAX_TEAM_SIZE: %d", d.MaxTeamSize)
	}
	if d.SLAHighHours <= 0 || d.SLAHighHours >= d.SLAMediumHours || d.SLAMediumHours >= d.SLALowHours {
		return fmt.Errorf("invalid SLA windows: high=%dh medium=%dh low=%dh", d.SLAHighHours, d.SLAMediumHours, d.SLALowHours)
	}
	return nil
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
