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
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	Payments     PaymentsConfig
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
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string   `envconfig:"DRIPLO_APP_ENV" required:"true"`
	Port          string   `envconfig:"DRIPLO_APP_PORT" required:"true"`
	LogLevel      string   `envconfig:"DRIPLO_LOG_LEVEL" default:"info"`
	LogFormat     string   `envconfig:"DRIPLO_LOG_FORMAT" default:"json"`
	LogWarnStack  bool     `envconfig:"DRIPLO_LOG_WARN_STACK" default:"false"`
	PublicBaseURL string   `envconfig:"DRIPLO_PUBLIC_BASE_URL" default:"http://localhost:5173"`
	CORSOrigins   []string `envconfig:"DRIPLO_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"DRIPLO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DRIPLO_DB_DSN"`
	Driver string `envconfig:"DRIPLO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DRIPLO_DB_HOST"`
	LegacyPort     int    `envconfig:"DRIPLO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DRIPLO_DB_USER"`
	LegacyPassword string `envconfig:"DRIPLO_DB_PASSWORD"`
	LegacyName     string `envconfig:"DRIPLO_DB_NAME"`
	LegacySSLMode  string `envconfig:"DRIPLO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DRIPLO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DRIPLO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DRIPLO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DRIPLO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"DRIPLO_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DRIPLO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DRIPLO_REDIS_ADDR"`
	Password     string        `envconfig:"DRIPLO_REDIS_PASSWORD"`
	DB           int           `envconfig:"DRIPLO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DRIPLO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DRIPLO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DRIPLO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DRIPLO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DRIPLO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string        `envconfig:"DRIPLO_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"DRIPLO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"DRIPLO_JWT_EXPIRATION_MINUTES" default:"60"`
	Leeway            time.Duration `envconfig:"DRIPLO_JWT_LEEWAY" default:"30s"`
}

// RateLimitConfig bounds how often one user may hit the money and messaging routes.
type RateLimitConfig struct {
	Window        time.Duration `envconfig:"DRIPLO_RATE_LIMIT_WINDOW" default:"1m"`
	PaymentLimit  int           `envconfig:"DRIPLO_RATE_LIMIT_PAYMENT" default:"10"`
	MessageLimit  int           `envconfig:"DRIPLO_RATE_LIMIT_MESSAGE" default:"30"`
	AdminLimit    int           `envconfig:"DRIPLO_RATE_LIMIT_ADMIN" default:"60"`
	WebhookTTL    time.Duration `envconfig:"DRIPLO_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	IdempotencyOn bool          `envconfig:"DRIPLO_IDEMPOTENCY_ENABLED" default:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DRIPLO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DRIPLO_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DRIPLO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DRIPLO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DRIPLO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"DRIPLO_PUBSUB_DOMAIN_TOPIC" default:"driplo-domain-events"`
	DomainSubscription string `envconfig:"DRIPLO_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"DRIPLO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"DRIPLO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"DRIPLO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int    `envconfig:"DRIPLO_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetention   int    `envconfig:"DRIPLO_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
	MetricsAddr    string `envconfig:"DRIPLO_OUTBOX_METRICS_ADDR" default:":9103"`
}

type StripeConfig struct {
	APIKey        string  `envconfig:"DRIPLO_STRIPE_API_KEY"`
	Secret        string  `envconfig:"DRIPLO_STRIPE_SECRET"`
	Env           string  `envconfig:"DRIPLO_STRIPE_ENV" default:"test"`
	RequestsPerS  float64 `envconfig:"DRIPLO_STRIPE_REQUESTS_PER_SECOND" default:"20"`
	RequestsBurst int     `envconfig:"DRIPLO_STRIPE_REQUESTS_BURST" default:"10"`
	// MaxNetworkRetries below zero selects the client default.
	MaxNetworkRetries int `envconfig:"DRIPLO_STRIPE_MAX_NETWORK_RETRIES" default:"2"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PaymentsConfig holds the buyer fee policy and order reference prefixes.
type PaymentsConfig struct {
	BuyerFeePercent string `envconfig:"DRIPLO_BUYER_FEE_PERCENT" default:"5"`
	BuyerFeeFixed   string `envconfig:"DRIPLO_BUYER_FEE_FIXED" default:"1.00"`
	Currency        string `envconfig:"DRIPLO_SETTLEMENT_CURRENCY" default:"usd"`
	OrderPrefix     string `envconfig:"DRIPLO_ORDER_PREFIX" default:"DRIPLO"`
	ManualPrefix    string `envconfig:"DRIPLO_MANUAL_ORDER_PREFIX" default:"REV"`
}

// FeePercent parses the configured percentage.
func (p PaymentsConfig) FeePercent() decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(p.BuyerFeePercent))
	if err != nil {
		return decimal.NewFromInt(5)
	}
	return v
}

// FeeFixed parses the configured fixed fee.
func (p PaymentsConfig) FeeFixed() decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(p.BuyerFeeFixed))
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return v
}

func (p PaymentsConfig) validate() error {
	if _, err := decimal.NewFromString(strings.TrimSpace(p.BuyerFeePercent)); err != nil {
		return fmt.Errorf("%s must be numeric: %w", EnvBuyerFeePercent, err)
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(p.BuyerFeeFixed)); err != nil {
		return fmt.Errorf("%s must be numeric: %w", EnvBuyerFeeFixed, err)
	}
	if strings.TrimSpace(p.Currency) == "" {
		return fmt.Errorf("%s is required", EnvSettlementCurrency)
	}
	return nil
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"DRIPLO_CRON_INTERVAL" default:"5m"`
	PendingAfter   time.Duration `envconfig:"DRIPLO_CRON_PENDING_RECONCILE_AFTER" default:"30m"`
	ReconcileBatch int           `envconfig:"DRIPLO_CRON_RECONCILE_BATCH" default:"100"`
	JobTimeout     time.Duration `envconfig:"DRIPLO_CRON_JOB_TIMEOUT" default:"2m"`
	LockTTL        time.Duration `envconfig:"DRIPLO_CRON_LOCK_TTL" default:"10m"`
	MetricsAddr    string        `envconfig:"DRIPLO_CRON_METRICS_ADDR" default:":9102"`
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
