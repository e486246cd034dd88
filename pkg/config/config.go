package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
	Settlement   SettlementConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string `envconfig:"MUABAN_APP_ENV" required:"true"`
	Port         string `envconfig:"MUABAN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MUABAN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MUABAN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MUABAN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MUABAN_DB_DSN"`
	Driver string `envconfig:"MUABAN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MUABAN_DB_HOST"`
	LegacyPort     int    `envconfig:"MUABAN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MUABAN_DB_USER"`
	LegacyPassword string `envconfig:"MUABAN_DB_PASSWORD"`
	LegacyName     string `envconfig:"MUABAN_DB_NAME"`
	LegacySSLMode  string `envconfig:"MUABAN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MUABAN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MUABAN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MUABAN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MUABAN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MUABAN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MUABAN_REDIS_ADDR"`
	Password     string        `envconfig:"MUABAN_REDIS_PASSWORD"`
	DB           int           `envconfig:"MUABAN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MUABAN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MUABAN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MUABAN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MUABAN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MUABAN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MUABAN_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MUABAN_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MUABAN_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenDays  int    `envconfig:"MUABAN_JWT_REFRESH_TOKEN_DAYS" default:"30"`
}

// RefreshTokenTTL returns how long a refresh session stays valid in Redis.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(j.RefreshTokenDays) * 24 * time.Hour
}

// WebhookConfig carries the shared secret used to verify inbound carrier and
// payment-provider callbacks.
type WebhookConfig struct {
	SigningSecret string `envconfig:"MUABAN_WEBHOOK_SIGNING_SECRET" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MUABAN_AUTO_MIGRATE" default:"false"`
}

// SettlementConfig carries the money-movement knobs: how long funds stay on
// hold after delivery and how long a store may ignore a dispute or complaint
// before the platform refunds the customer on its behalf.
type SettlementConfig struct {
	HoldDays                int `envconfig:"MUABAN_SETTLEMENT_HOLD_DAYS" default:"7"`
	DisputeAutoRefundDays   int `envconfig:"MUABAN_SETTLEMENT_DISPUTE_AUTO_REFUND_DAYS" default:"3"`
	ComplaintAutoRefundDays int `envconfig:"MUABAN_SETTLEMENT_COMPLAINT_AUTO_REFUND_DAYS" default:"2"`
	SweepMaxAttempts        int `envconfig:"MUABAN_SETTLEMENT_SWEEP_MAX_ATTEMPTS" default:"5"`
}

// HoldWindow returns the payout hold window as a duration.
func (s SettlementConfig) HoldWindow() time.Duration {
	return time.Duration(s.HoldDays) * 24 * time.Hour
}

// DisputeWindow returns how long a store may sit on a dispute before the
// auto-refund sweep takes over.
func (s SettlementConfig) DisputeWindow() time.Duration {
	return time.Duration(s.DisputeAutoRefundDays) * 24 * time.Hour
}

// ComplaintWindow returns how long a store may ignore an open complaint
// before the auto-refund sweep takes over.
func (s SettlementConfig) ComplaintWindow() time.Duration {
	return time.Duration(s.ComplaintAutoRefundDays) * 24 * time.Hour
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MUABAN_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MUABAN_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MUABAN_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic        string `envconfig:"MUABAN_PUBSUB_LEDGER_TOPIC" default:"mb-ledger-events"`
	LedgerSubscription string `envconfig:"MUABAN_PUBSUB_LEDGER_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MUABAN_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MUABAN_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MUABAN_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MUABAN_CRON_INTERVAL" default:"1h"`
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
