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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Webhooks     WebhooksConfig
	OpenAI       OpenAIConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.RateLimit.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CREDITMETER_APP_ENV" required:"true"`
	Port         string `envconfig:"CREDITMETER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CREDITMETER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CREDITMETER_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"CREDITMETER_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CREDITMETER_DB_DSN"`
	Driver string `envconfig:"CREDITMETER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CREDITMETER_DB_HOST"`
	LegacyPort     int    `envconfig:"CREDITMETER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CREDITMETER_DB_USER"`
	LegacyPassword string `envconfig:"CREDITMETER_DB_PASSWORD"`
	LegacyName     string `envconfig:"CREDITMETER_DB_NAME"`
	LegacySSLMode  string `envconfig:"CREDITMETER_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"CREDITMETER_SQLITE_PATH" default:"creditmeter.db"`

	MaxOpenConns    int           `envconfig:"CREDITMETER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CREDITMETER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CREDITMETER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CREDITMETER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CREDITMETER_REDIS_URL"`
	Address      string        `envconfig:"CREDITMETER_REDIS_ADDR"`
	Password     string        `envconfig:"CREDITMETER_REDIS_PASSWORD"`
	DB           int           `envconfig:"CREDITMETER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CREDITMETER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CREDITMETER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CREDITMETER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CREDITMETER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CREDITMETER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"CREDITMETER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CREDITMETER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CREDITMETER_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig holds the per-surface fixed-window policies.
type RateLimitConfig struct {
	Backend string `envconfig:"CREDITMETER_RATE_LIMIT_BACKEND" default:"memory"`

	AuthWindow        time.Duration `envconfig:"CREDITMETER_RATE_LIMIT_AUTH_WINDOW" default:"1m"`
	AuthMaxAttempts   int           `envconfig:"CREDITMETER_RATE_LIMIT_AUTH_MAX_ATTEMPTS" default:"5"`
	CheckoutWindow    time.Duration `envconfig:"CREDITMETER_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutMax       int           `envconfig:"CREDITMETER_RATE_LIMIT_CHECKOUT_MAX_ATTEMPTS" default:"10"`
	CompletionsWindow time.Duration `envconfig:"CREDITMETER_RATE_LIMIT_COMPLETIONS_WINDOW" default:"1m"`
	CompletionsMax    int           `envconfig:"CREDITMETER_RATE_LIMIT_COMPLETIONS_MAX_ATTEMPTS" default:"30"`

	SweepInterval time.Duration `envconfig:"CREDITMETER_RATE_LIMIT_SWEEP_INTERVAL" default:"5m"`
}

// UsesRedis reports whether limiter counters live in the shared redis cache.
func (r RateLimitConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(r.Backend), RateLimitBackendRedis)
}

func (r RateLimitConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(r.Backend)) {
	case "", RateLimitBackendMemory, RateLimitBackendRedis:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvRateLimitBackend, RateLimitBackendMemory, RateLimitBackendRedis)
	}
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CREDITMETER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CREDITMETER_AUTO_MIGRATE" default:"false"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"CREDITMETER_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type OpenAIConfig struct {
	APIKey  string        `envconfig:"CREDITMETER_OPENAI_API_KEY"`
	BaseURL string        `envconfig:"CREDITMETER_OPENAI_BASE_URL"`
	Timeout time.Duration `envconfig:"CREDITMETER_OPENAI_TIMEOUT" default:"60s"`
}

type PubSubConfig struct {
	ProjectID  string `envconfig:"CREDITMETER_GCP_PROJECT_ID"`
	UsageTopic string `envconfig:"CREDITMETER_PUBSUB_USAGE_TOPIC"`
}

// Enabled reports whether usage analytics should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != "" && strings.TrimSpace(p.UsageTopic) != ""
}

type StripeConfig struct {
	APIKey        string `envconfig:"CREDITMETER_STRIPE_API_KEY"`
	Secret        string `envconfig:"CREDITMETER_STRIPE_SECRET"`
	Env           string `envconfig:"CREDITMETER_STRIPE_ENV" default:"test"`
	SuccessURL    string `envconfig:"CREDITMETER_STRIPE_SUCCESS_URL" default:"http://localhost:3000/billing?checkout=success"`
	CancelURL     string `envconfig:"CREDITMETER_STRIPE_CANCEL_URL" default:"http://localhost:3000/billing?checkout=cancel"`
	MinTopUpCents int64  `envconfig:"CREDITMETER_STRIPE_MIN_TOP_UP_CENTS" default:"500"`
	MaxTopUpCents int64  `envconfig:"CREDITMETER_STRIPE_MAX_TOP_UP_CENTS" default:"50000"`
	ProductName   string `envconfig:"CREDITMETER_STRIPE_PRODUCT_NAME" default:"Usage credits"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite || db.DSN != "" {
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
