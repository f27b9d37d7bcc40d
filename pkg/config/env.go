package config

const EnvPrefix = "CREDITMETER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

const (
	EnvAppEnv           = "CREDITMETER_APP_ENV"
	EnvPort             = "CREDITMETER_APP_PORT"
	EnvDBDSN            = "CREDITMETER_DB_DSN"
	EnvDBHost           = "CREDITMETER_DB_HOST"
	EnvDBUser           = "CREDITMETER_DB_USER"
	EnvDBName           = "CREDITMETER_DB_NAME"
	EnvUseSQLite        = "CREDITMETER_USE_SQLITE"
	EnvRedisURL         = "CREDITMETER_REDIS_URL"
	EnvJWTSecret        = "CREDITMETER_JWT_SECRET"
	EnvJWTIssuer        = "CREDITMETER_JWT_ISSUER"
	EnvJWTExpMins       = "CREDITMETER_JWT_EXPIRATION_MINUTES"
	EnvRateLimitBackend = "CREDITMETER_RATE_LIMIT_BACKEND"
	EnvAuthMaxAttempts  = "CREDITMETER_RATE_LIMIT_AUTH_MAX_ATTEMPTS"
	EnvStripeSecret     = "CREDITMETER_STRIPE_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
