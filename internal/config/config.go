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
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	WorkHours  WorkHoursConfig
	Escalation EscalationConfig
	Storage    StorageConfig
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

// PostgresConfig holds DB connection values. An empty DSN runs the service on the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables the shared sweep lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// WorkHoursConfig is the daily window SLA time is counted in.
type WorkHoursConfig struct {
	StartHour int
	EndHour   int
	TimeZone  string
	Location  *time.Location
}

// EscalationConfig drives the SLA budget and the sweep scheduler.
type EscalationConfig struct {
	SLABudgetMinutes int
	Schedule         string
	Enabled          bool
	LockTTLSeconds   int
	BatchSize        int
}

// StorageConfig points at the S3-compatible bucket holding attachments. An empty
// Endpoint disables uploads.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "service-request-desk"),
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
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		WorkHours: WorkHoursConfig{
			StartHour: getEnvAsInt("WORK_START_HOUR", 7),
			EndHour:   getEnvAsInt("WORK_END_HOUR", 18),
			TimeZone:  getEnv("WORK_TIMEZONE", "Asia/Kolkata"),
		},
		Escalation: EscalationConfig{
			SLABudgetMinutes: getEnvAsInt("SLA_BUDGET_MINUTES", 120),
			Schedule:         getEnv("ESCALATION_SCHEDULE", "*/5 * * * *"),
			Enabled:          getEnvAsBool("ESCALATION_ENABLED", true),
			LockTTLSeconds:   getEnvAsInt("ESCALATION_LOCK_TTL_SECONDS", 240),
			BatchSize:        getEnvAsInt("ESCALATION_BATCH_SIZE", 500),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    getEnv("STORAGE_BUCKET", "service-requests"),
			UseSSL:    getEnvAsBool("STORAGE_USE_SSL", false),
			PublicURL: os.Getenv("STORAGE_PUBLIC_URL"),
		},
	}

	if err := cfg.WorkHours.resolve(); err != nil {
		return nil, err
	}
	if cfg.Escalation.SLABudgetMinutes <= 0 {
		return nil, fmt.Errorf("invalid SLA_BUDGET_MINUTES: %d", cfg.Escalation.SLABudgetMinutes)
	}

	return cfg, nil
}

func (w *WorkHoursConfig) resolve() error {
	if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return fmt.Errorf("invalid working hours %d-%d", w.StartHour, w.EndHour)
	}
	loc, err := time.LoadLocation(w.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid WORK_TIMEZONE %q: %w", w.TimeZone, err)
	}
	w.Location = loc
	return nil
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

// SLABudget returns the per-level working-time budget.
func (e EscalationConfig) SLABudget() time.Duration {
	return time.Duration(e.SLABudgetMinutes) * time.Minute
}

// LockTTL returns how long a sweep holds the shared lock.
func (e EscalationConfig) LockTTL() time.Duration {
	if e.LockTTLSeconds <= 0 {
		return 4 * time.Minute
	}
	return time.Duration(e.LockTTLSeconds) * time.Second
}

// Enabled reports whether attachment uploads are configured.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
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
