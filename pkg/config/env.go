package config

// EnvPrefix is the envconfig prefix; every field carries an explicit tag so it is only used for errors.
const EnvPrefix = "DRIPLO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv             = "DRIPLO_APP_ENV"
	EnvPort               = "DRIPLO_APP_PORT"
	EnvLogLevel           = "DRIPLO_LOG_LEVEL"
	EnvPublicBaseURL      = "DRIPLO_PUBLIC_BASE_URL"
	EnvDBDSN              = "DRIPLO_DB_DSN"
	EnvDBHost             = "DRIPLO_DB_HOST"
	EnvDBPort             = "DRIPLO_DB_PORT"
	EnvDBUser             = "DRIPLO_DB_USER"
	EnvDBPassword         = "DRIPLO_DB_PASSWORD"
	EnvDBName             = "DRIPLO_DB_NAME"
	EnvRedisURL           = "DRIPLO_REDIS_URL"
	EnvJWTSecret          = "DRIPLO_JWT_SECRET"
	EnvJWTIssuer          = "DRIPLO_JWT_ISSUER"
	EnvJWTExpMins         = "DRIPLO_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID       = "DRIPLO_GCP_PROJECT_ID"
	EnvPubSubDomainTopic  = "DRIPLO_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub    = "DRIPLO_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvStripeAPIKey       = "DRIPLO_STRIPE_API_KEY"
	EnvStripeSecret       = "DRIPLO_STRIPE_SECRET"
	EnvBuyerFeePercent    = "DRIPLO_BUYER_FEE_PERCENT"
	EnvBuyerFeeFixed      = "DRIPLO_BUYER_FEE_FIXED"
	EnvSettlementCurrency = "DRIPLO_SETTLEMENT_CURRENCY"
	EnvCronInterval       = "DRIPLO_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
