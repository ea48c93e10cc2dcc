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
	App      AppConfig
	Slack    SlackConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Ledger   LedgerConfig
	Registry RegistryConfig
	Reminder ReminderConfig
	Routing  RoutingConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	Timezone              string
}

// SlackConfig holds chat platform credentials.
type SlackConfig struct {
	BotToken string
	AppToken string
	Debug    bool
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

// SQLiteConfig points at a local ledger database file.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	// URL takes precedence over Addr/Password/DB when set (redis:// or rediss://).
	URL      string
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters for the admin API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	AdminUsername         string
	AdminPasswordHash     string
}

// LedgerConfig selects the ledger backend: postgres, sqlite or memory.
type LedgerConfig struct {
	Backend string
}

// RegistryConfig selects the ticket registry backend: memory or redis.
type RegistryConfig struct {
	Backend        string
	TicketTTL      time.Duration
	ActionTTL      time.Duration
	EvictAfter     time.Duration
	ReminderBound  int
	DisplayBudget  int
	TokenDelimiter string
}

// ReminderConfig controls escalation timing.
type ReminderConfig struct {
	Delay          time.Duration
	EmergencyDelay time.Duration
	SweepInterval  time.Duration
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

	routing, err := LoadRouting(os.Getenv("ROUTING_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ops-ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			Timezone:              getEnv("APP_TIMEZONE", "Asia/Jakarta"),
		},
		Slack: SlackConfig{
			BotToken: os.Getenv("SLACK_BOT_TOKEN"),
			AppToken: os.Getenv("SLACK_APP_TOKEN"),
			Debug:    getEnvAsBool("SLACK_DEBUG", false),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "ticketbot.db"),
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Prefix:   getEnv("REDIS_PREFIX", "ticketbot"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			AdminUsername:         getEnv("ADMIN_USERNAME", "admin"),
			AdminPasswordHash:     os.Getenv("ADMIN_PASSWORD_HASH"),
		},
		Ledger: LedgerConfig{
			Backend: getEnv("LEDGER_BACKEND", "sqlite"),
		},
		Registry: RegistryConfig{
			Backend:        getEnv("REGISTRY_BACKEND", "memory"),
			TicketTTL:      getEnvAsDuration("REGISTRY_TICKET_TTL", 30*24*time.Hour),
			ActionTTL:      getEnvAsDuration("REGISTRY_ACTION_TTL", 30*time.Minute),
			EvictAfter:     getEnvAsDuration("REGISTRY_EVICT_AFTER", 7*24*time.Hour),
			ReminderBound:  getEnvAsInt("REMINDER_QUEUE_LIMIT", 10000),
			DisplayBudget:  getEnvAsInt("DISPLAY_BUDGET", 37),
			TokenDelimiter: getEnv("TOKEN_DELIMITER", "@@"),
		},
		Reminder: ReminderConfig{
			Delay:          getEnvAsDuration("REMINDER_DELAY", 3*time.Minute),
			EmergencyDelay: getEnvAsDuration("REMINDER_EMERGENCY_DELAY", time.Minute),
			SweepInterval:  getEnvAsDuration("REMINDER_SWEEP_INTERVAL", 5*time.Second),
		},
		Routing: *routing,
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

// Location resolves the display timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
