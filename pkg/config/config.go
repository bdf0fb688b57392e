package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Booking      BookingConfig
	Cron         CronConfig
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Booking.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CONSULTLY_APP_ENV" required:"true"`
	Port         string `envconfig:"CONSULTLY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CONSULTLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CONSULTLY_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"CONSULTLY_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"CONSULTLY_SERVICE_KIND" default:"api"`
	// MetricsAddr is where background commands serve /metrics; empty disables it.
	MetricsAddr string `envconfig:"CONSULTLY_SERVICE_METRICS_ADDR"`
}

type DBConfig struct {
	DSN        string `envconfig:"CONSULTLY_DB_DSN"`
	Driver     string `envconfig:"CONSULTLY_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"CONSULTLY_DB_SQLITE_PATH" default:"consultly.db"`

	LegacyHost     string `envconfig:"CONSULTLY_DB_HOST"`
	LegacyPort     int    `envconfig:"CONSULTLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CONSULTLY_DB_USER"`
	LegacyPassword string `envconfig:"CONSULTLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CONSULTLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CONSULTLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CONSULTLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CONSULTLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONSULTLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CONSULTLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// LockTimeout bounds how long a booking transaction waits on a row lock.
	LockTimeout time.Duration `envconfig:"CONSULTLY_DB_LOCK_TIMEOUT" default:"5s"`
	// SlowQuery is the threshold above which statements are logged as warnings.
	SlowQuery time.Duration `envconfig:"CONSULTLY_DB_SLOW_QUERY" default:"200ms"`
	// TxAttempts caps retries of transactions aborted by a deadlock or
	// serialization failure.
	TxAttempts int `envconfig:"CONSULTLY_DB_TX_ATTEMPTS" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CONSULTLY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CONSULTLY_REDIS_ADDR"`
	Password     string        `envconfig:"CONSULTLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONSULTLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONSULTLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONSULTLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONSULTLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONSULTLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONSULTLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CONSULTLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CONSULTLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CONSULTLY_JWT_EXPIRATION_MINUTES" default:"60"`
	// Audience, when set, must appear in the aud claim of every token.
	Audience string        `envconfig:"CONSULTLY_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"CONSULTLY_JWT_LEEWAY" default:"30s"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type RateLimitConfig struct {
	MutationWindow time.Duration `envconfig:"CONSULTLY_RATE_LIMIT_MUTATION_WINDOW" default:"1m"`
	MutationLimit  int           `envconfig:"CONSULTLY_RATE_LIMIT_MUTATION_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite         bool `envconfig:"CONSULTLY_USE_SQLITE" default:"false"`
	AutoMigrate       bool `envconfig:"CONSULTLY_AUTO_MIGRATE" default:"false"`
	AvailabilityCache bool `envconfig:"CONSULTLY_FEATURE_AVAILABILITY_CACHE" default:"true"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"CONSULTLY_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CONSULTLY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CONSULTLY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CONSULTLY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BookingTopic        string `envconfig:"CONSULTLY_PUBSUB_BOOKING_TOPIC" default:"consultly-booking-events"`
	BookingSubscription string `envconfig:"CONSULTLY_PUBSUB_BOOKING_SUBSCRIPTION" default:"consultly-booking-inbox"`
	// EmulatorHost points the client at a local emulator without credentials.
	EmulatorHost   string `envconfig:"CONSULTLY_PUBSUB_EMULATOR_HOST"`
	MaxOutstanding int    `envconfig:"CONSULTLY_PUBSUB_MAX_OUTSTANDING" default:"100"`
	NumGoroutines  int    `envconfig:"CONSULTLY_PUBSUB_RECEIVE_GOROUTINES" default:"2"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CONSULTLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CONSULTLY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CONSULTLY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"CONSULTLY_OUTBOX_RETENTION" default:"720h"`
	DLQRetention   time.Duration `envconfig:"CONSULTLY_OUTBOX_DLQ_RETENTION" default:"720h"`
}

// BookingConfig carries the engine's tunable limits.
type BookingConfig struct {
	MaxActiveSchedules int           `envconfig:"CONSULTLY_BOOKING_MAX_ACTIVE_SCHEDULES" default:"6"`
	MaxExpandInstants  int           `envconfig:"CONSULTLY_BOOKING_MAX_EXPAND_INSTANTS" default:"5000"`
	MaxExpandRange     time.Duration `envconfig:"CONSULTLY_BOOKING_MAX_EXPAND_RANGE" default:"8784h"`
	AvailabilityTTL    time.Duration `envconfig:"CONSULTLY_BOOKING_AVAILABILITY_CACHE_TTL" default:"10m"`
	AssignExpiryGrace  time.Duration `envconfig:"CONSULTLY_BOOKING_ASSIGN_EXPIRY_GRACE" default:"0s"`
	AssignExpiryBatch  int           `envconfig:"CONSULTLY_BOOKING_ASSIGN_EXPIRY_BATCH" default:"200"`
}

func (b BookingConfig) validate() error {
	if b.MaxActiveSchedules <= 0 {
		return fmt.Errorf("%s must be positive", EnvBookingMaxSchedules)
	}
	if b.MaxExpandInstants <= 0 {
		return fmt.Errorf("%s must be positive", EnvBookingMaxExpand)
	}
	return nil
}

type CronConfig struct {
	AssignExpirySpec        string        `envconfig:"CONSULTLY_CRON_ASSIGN_EXPIRY_SPEC" default:"@every 1m"`
	OutboxRetentionSpec     string        `envconfig:"CONSULTLY_CRON_OUTBOX_RETENTION_SPEC" default:"@daily"`
	NotificationCleanupSpec string        `envconfig:"CONSULTLY_CRON_NOTIFICATION_CLEANUP_SPEC" default:"@daily"`
	NotificationRetention   time.Duration `envconfig:"CONSULTLY_CRON_NOTIFICATION_RETENTION" default:"720h"`
	NotificationBatch       int           `envconfig:"CONSULTLY_CRON_NOTIFICATION_CLEANUP_BATCH" default:"500"`
	LockTTL                 time.Duration `envconfig:"CONSULTLY_CRON_LOCK_TTL" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
