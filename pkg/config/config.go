package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Cart          CartConfig
	Checkout      CheckoutConfig
	Stripe        StripeConfig
	Cron          CronConfig
	Notifications NotificationsConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"SHOPMATE_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPMATE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPMATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPMATE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPMATE_DB_DSN"`
	Driver string `envconfig:"SHOPMATE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPMATE_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPMATE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPMATE_DB_USER"`
	LegacyPassword string `envconfig:"SHOPMATE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPMATE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPMATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPMATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPMATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPMATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPMATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPMATE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPMATE_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPMATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPMATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPMATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPMATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPMATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPMATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPMATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies customer access tokens minted by the identity provider.
// Token issuance lives outside this service.
type JWTConfig struct {
	Secret string `envconfig:"SHOPMATE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"SHOPMATE_JWT_ISSUER" required:"true"`
}

type CartConfig struct {
	TTL          time.Duration `envconfig:"SHOPMATE_CART_TTL" default:"168h"`
	MaxQtyPerAdd int           `envconfig:"SHOPMATE_CART_MAX_QTY_PER_ADD" default:"10"`
}

type CheckoutConfig struct {
	SessionTTL           time.Duration `envconfig:"SHOPMATE_CHECKOUT_SESSION_TTL" default:"30m"`
	FreeShippingCents    int           `envconfig:"SHOPMATE_CHECKOUT_FREE_SHIPPING_CENTS" default:"10000"`
	FlatShippingCents    int           `envconfig:"SHOPMATE_CHECKOUT_FLAT_SHIPPING_CENTS" default:"500"`
	TaxRateBasisPoints   int           `envconfig:"SHOPMATE_CHECKOUT_TAX_RATE_BPS" default:"800"`
	Currency             string        `envconfig:"SHOPMATE_CHECKOUT_CURRENCY" default:"usd"`
	WebhookEventGuardTTL time.Duration `envconfig:"SHOPMATE_CHECKOUT_WEBHOOK_GUARD_TTL" default:"72h"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SHOPMATE_STRIPE_API_KEY"`
	Secret string `envconfig:"SHOPMATE_STRIPE_SECRET"`
	Env    string `envconfig:"SHOPMATE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SHOPMATE_CRON_INTERVAL" default:"1m"`
	LockKey  string        `envconfig:"SHOPMATE_CRON_LOCK_KEY" default:"cron:leader"`
	LockTTL  time.Duration `envconfig:"SHOPMATE_CRON_LOCK_TTL" default:"5m"`
}

type NotificationsConfig struct {
	MaxAttempts int `envconfig:"SHOPMATE_NOTIFICATIONS_MAX_ATTEMPTS" default:"3"`
	RetryBatch  int `envconfig:"SHOPMATE_NOTIFICATIONS_RETRY_BATCH" default:"50"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOPMATE_AUTO_MIGRATE" default:"false"`
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
