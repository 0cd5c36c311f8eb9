package config

const EnvPrefix = "POUCHLAB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	TierPolicyExact       = "exact"
	TierPolicyInterpolate = "interpolate"

	DefaultVATRate = "0.22"
)

const (
	EnvAppEnv      = "POUCHLAB_APP_ENV"
	EnvPort        = "POUCHLAB_APP_PORT"
	EnvLogLevel    = "POUCHLAB_LOG_LEVEL"
	EnvCORSOrigins = "POUCHLAB_CORS_ORIGINS"

	EnvDBDSN     = "POUCHLAB_DB_DSN"
	EnvDBDriver  = "POUCHLAB_DB_DRIVER"
	EnvDBHost    = "POUCHLAB_DB_HOST"
	EnvDBUser    = "POUCHLAB_DB_USER"
	EnvDBName    = "POUCHLAB_DB_NAME"
	EnvUseSQLite = "POUCHLAB_USE_SQLITE"

	EnvRedisURL = "POUCHLAB_REDIS_URL"

	EnvPricingVATRate    = "POUCHLAB_PRICING_VAT_RATE"
	EnvPricingTierPolicy = "POUCHLAB_PRICING_TIER_POLICY"

	EnvQuotesTaxRate      = "POUCHLAB_QUOTES_TAX_RATE"
	EnvQuotesValidityDays = "POUCHLAB_QUOTES_VALIDITY_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
