package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "MUABAN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names, exported for tests and tooling.
const (
	EnvAppEnv   = "MUABAN_APP_ENV"
	EnvPort     = "MUABAN_APP_PORT"
	EnvLogLevel = "MUABAN_LOG_LEVEL"

	EnvDBDSN      = "MUABAN_DB_DSN"
	EnvDBHost     = "MUABAN_DB_HOST"
	EnvDBPort     = "MUABAN_DB_PORT"
	EnvDBUser     = "MUABAN_DB_USER"
	EnvDBPassword = "MUABAN_DB_PASSWORD"
	EnvDBName     = "MUABAN_DB_NAME"

	EnvRedisURL = "MUABAN_REDIS_URL"

	EnvJWTSecret  = "MUABAN_JWT_SECRET"
	EnvJWTIssuer  = "MUABAN_JWT_ISSUER"
	EnvJWTExpMins = "MUABAN_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID       = "MUABAN_GCP_PROJECT_ID"
	EnvPubSubLedgerTopic  = "MUABAN_PUBSUB_LEDGER_TOPIC"
	EnvSettlementHoldDays = "MUABAN_SETTLEMENT_HOLD_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
