package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Quotes       QuotesConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"POUCHLAB_APP_ENV" required:"true"`
	Port         string   `envconfig:"POUCHLAB_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"POUCHLAB_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"POUCHLAB_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"POUCHLAB_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"POUCHLAB_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"POUCHLAB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"POUCHLAB_DB_DSN"`
	Driver     string `envconfig:"POUCHLAB_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"POUCHLAB_SQLITE_PATH" default:"./pouchlab.db"`

	LegacyHost     string `envconfig:"POUCHLAB_DB_HOST"`
	LegacyPort     int    `envconfig:"POUCHLAB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POUCHLAB_DB_USER"`
	LegacyPassword string `envconfig:"POUCHLAB_DB_PASSWORD"`
	LegacyName     string `envconfig:"POUCHLAB_DB_NAME"`
	LegacySSLMode  string `envconfig:"POUCHLAB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POUCHLAB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POUCHLAB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POUCHLAB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POUCHLAB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver targets SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"POUCHLAB_REDIS_URL"`
	Address      string        `envconfig:"POUCHLAB_REDIS_ADDR"`
	Password     string        `envconfig:"POUCHLAB_REDIS_PASSWORD"`
	DB           int           `envconfig:"POUCHLAB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POUCHLAB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POUCHLAB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POUCHLAB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POUCHLAB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POUCHLAB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether enough settings exist to dial Redis.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"POUCHLAB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"POUCHLAB_AUTO_MIGRATE" default:"false"`
	MatrixCache bool `envconfig:"POUCHLAB_FEATURE_MATRIX_CACHE" default:"true"`
}

type PricingConfig struct {
	VATRate        string        `envconfig:"POUCHLAB_PRICING_VAT_RATE" default:"0.22"`
	TierPolicy     string        `envconfig:"POUCHLAB_PRICING_TIER_POLICY" default:"interpolate"`
	MatrixCacheTTL time.Duration `envconfig:"POUCHLAB_PRICING_MATRIX_CACHE_TTL" default:"15m"`
}

// VAT returns the configured VAT rate as a decimal fraction.
func (p PricingConfig) VAT() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(p.VATRate))
	if err != nil {
		return decimal.RequireFromString(DefaultVATRate)
	}
	return rate
}

func (p PricingConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(p.VATRate))
	if err != nil {
		return fmt.Errorf("%s must be a decimal fraction: %w", EnvPricingVATRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1)", EnvPricingVATRate)
	}
	switch strings.ToLower(strings.TrimSpace(p.TierPolicy)) {
	case TierPolicyExact, TierPolicyInterpolate:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvPricingTierPolicy, TierPolicyExact, TierPolicyInterpolate)
	}
	return nil
}

type QuotesConfig struct {
	TaxRate      string `envconfig:"POUCHLAB_QUOTES_TAX_RATE" default:"0.22"`
	ValidityDays int    `envconfig:"POUCHLAB_QUOTES_VALIDITY_DAYS" default:"30"`
}

// Tax returns the configured quote tax rate as a decimal fraction.
func (q QuotesConfig) Tax() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(q.TaxRate))
	if err != nil {
		return decimal.RequireFromString(DefaultVATRate)
	}
	return rate
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"POUCHLAB_CRON_INTERVAL" default:"1h"`
	LockTTL                   time.Duration `envconfig:"POUCHLAB_CRON_LOCK_TTL" default:"2h"`
	NotificationRetentionDays int           `envconfig:"POUCHLAB_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
	UnreadRetentionDays       int           `envconfig:"POUCHLAB_CRON_UNREAD_NOTIFICATION_RETENTION_DAYS" default:"365"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
	}
	if db.IsSQLite() {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
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
