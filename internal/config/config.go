package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backplane modes for realtime fan-out.
const (
	BackplaneLocal = "local"
	BackplaneRedis = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Realtime     RealtimeConfig
	Tickets      TicketsConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	ClientURL             string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32

	// ConnectAttempts bounds the startup ping retries.
	ConnectAttempts int
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

	// Format is json or console.
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	AdminRegistrationKey  string
}

// RealtimeConfig tunes the websocket layer.
type RealtimeConfig struct {
	Backplane            string
	RedisChannel         string
	SendBufferSize       int
	PingIntervalSeconds  int
	PongWaitSeconds      int
	WriteWaitSeconds     int
	MaxMessageBytes      int
	MessagesPerSecond    float64
	MessageBurst         int
	ActionTimeoutSeconds int
}

// TicketsConfig holds ticket workflow switches.
type TicketsConfig struct {
	AllowReopen bool
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	backplane := strings.ToLower(getEnv("REALTIME_BACKPLANE", BackplaneLocal))
	if backplane != BackplaneLocal && backplane != BackplaneRedis {
		return nil, fmt.Errorf("invalid REALTIME_BACKPLANE %q", backplane)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			ClientURL:             getEnv("CLIENT_URL", "http://localhost:5173"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:   getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 24*60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			AdminRegistrationKey:  getEnv("AUTH_ADMIN_REGISTRATION_KEY", "admin-secret-key"),
		},
		Realtime: RealtimeConfig{
			Backplane:            backplane,
			RedisChannel:         getEnv("REALTIME_REDIS_CHANNEL", "support-desk:rooms"),
			SendBufferSize:       getEnvAsInt("REALTIME_SEND_BUFFER", 256),
			PingIntervalSeconds:  getEnvAsInt("REALTIME_PING_INTERVAL_SECONDS", 30),
			PongWaitSeconds:      getEnvAsInt("REALTIME_PONG_WAIT_SECONDS", 60),
			WriteWaitSeconds:     getEnvAsInt("REALTIME_WRITE_WAIT_SECONDS", 10),
			MaxMessageBytes:      getEnvAsInt("REALTIME_MAX_MESSAGE_BYTES", 64*1024),
			MessagesPerSecond:    getEnvAsFloat("REALTIME_MESSAGES_PER_SECOND", 10),
			MessageBurst:         getEnvAsInt("REALTIME_MESSAGE_BURST", 20),
			ActionTimeoutSeconds: getEnvAsInt("REALTIME_ACTION_TIMEOUT_SECONDS", 10),
		},
		Tickets: TicketsConfig{
			AllowReopen: getEnvAsBool("TICKETS_ALLOW_REOPEN", true),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
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

// AccessTokenTTL returns the lifetime of issued credentials.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func (r RealtimeConfig) PingInterval() time.Duration {
	return seconds(r.PingIntervalSeconds, 30)
}

func (r RealtimeConfig) PongWait() time.Duration {
	return seconds(r.PongWaitSeconds, 60)
}

func (r RealtimeConfig) WriteWait() time.Duration {
	return seconds(r.WriteWaitSeconds, 10)
}

func (r RealtimeConfig) ActionTimeout() time.Duration {
	return seconds(r.ActionTimeoutSeconds, 10)
}

func seconds(val, fallback int) time.Duration {
	if val <= 0 {
		val = fallback
	}
	return time.Duration(val) * time.Second
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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
