package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Stripe  StripeConfig
	Booking BookingConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
	Outbox  OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NINOWASH_APP_ENV" required:"true"`
	Port         string `envconfig:"NINOWASH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NINOWASH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NINOWASH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"NINOWASH_DB_DSN"`

	LegacyHost     string `envconfig:"NINOWASH_DB_HOST"`
	LegacyPort     int    `envconfig:"NINOWASH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NINOWASH_DB_USER"`
	LegacyPassword string `envconfig:"NINOWASH_DB_PASSWORD"`
	LegacyName     string `envconfig:"NINOWASH_DB_NAME"`
	LegacySSLMode  string `envconfig:"NINOWASH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NINOWASH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NINOWASH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NINOWASH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NINOWASH_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"NINOWASH_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NINOWASH_REDIS_URL"`
	Address      string        `envconfig:"NINOWASH_REDIS_ADDR"`
	Password     string        `envconfig:"NINOWASH_REDIS_PASSWORD"`
	DB           int           `envconfig:"NINOWASH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NINOWASH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NINOWASH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NINOWASH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NINOWASH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NINOWASH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"NINOWASH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"NINOWASH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"NINOWASH_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey string `envconfig:"NINOWASH_STRIPE_API_KEY"`
	Secret string `envconfig:"NINOWASH_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"NINOWASH_STRIPE_ENV" default:"test"`

	PortalReturnURL    string `envconfig:"NINOWASH_STRIPE_PORTAL_RETURN_URL"`
	CheckoutSuccessURL string `envconfig:"NINOWASH_STRIPE_CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string `envconfig:"NINOWASH_STRIPE_CHECKOUT_CANCEL_URL"`
	Currency           string `envconfig:"NINOWASH_STRIPE_CURRENCY" default:"eur"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type BookingConfig struct {
	MinCancelReasonLen int           `envconfig:"NINOWASH_BOOKING_MIN_CANCEL_REASON_LEN" default:"10"`
	WebhookEventTTL    time.Duration `envconfig:"NINOWASH_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"NINOWASH_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"NINOWASH_PUBSUB_NOTIFICATION_TOPIC" default:"nw-notification-events"`
	BookingTopic      string `envconfig:"NINOWASH_PUBSUB_BOOKING_TOPIC" default:"nw-booking-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"NINOWASH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"NINOWASH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"NINOWASH_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
