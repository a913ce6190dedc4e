package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CINEPRIME"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	MercadoPago  MercadoPagoConfig
	PushinPay    PushinPayConfig
	Stripe       StripeConfig
	Webhooks     WebhooksConfig
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
	Env          string `envconfig:"CINEPRIME_APP_ENV" required:"true"`
	Port         string `envconfig:"CINEPRIME_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CINEPRIME_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CINEPRIME_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"CINEPRIME_DB_DSN"`

	Host     string `envconfig:"CINEPRIME_DB_HOST"`
	Port     int    `envconfig:"CINEPRIME_DB_PORT" default:"5432"`
	User     string `envconfig:"CINEPRIME_DB_USER"`
	Password string `envconfig:"CINEPRIME_DB_PASSWORD"`
	Name     string `envconfig:"CINEPRIME_DB_NAME"`
	SSLMode  string `envconfig:"CINEPRIME_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CINEPRIME_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CINEPRIME_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CINEPRIME_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CINEPRIME_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CINEPRIME_REDIS_URL"`
	Address      string        `envconfig:"CINEPRIME_REDIS_ADDR"`
	Password     string        `envconfig:"CINEPRIME_REDIS_PASSWORD"`
	DB           int           `envconfig:"CINEPRIME_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CINEPRIME_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CINEPRIME_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CINEPRIME_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CINEPRIME_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CINEPRIME_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CINEPRIME_AUTO_MIGRATE" default:"false"`
}

// MercadoPagoConfig carries the credentials the webhook adapter needs to
// fetch authoritative payment data.
type MercadoPagoConfig struct {
	AccessToken string        `envconfig:"CINEPRIME_MERCADOPAGO_ACCESS_TOKEN"`
	APIBaseURL  string        `envconfig:"CINEPRIME_MERCADOPAGO_API_BASE_URL" default:"https://api.mercadopago.com"`
	HTTPTimeout time.Duration `envconfig:"CINEPRIME_MERCADOPAGO_HTTP_TIMEOUT" default:"10s"`
}

type PushinPayConfig struct {
	Token string `envconfig:"CINEPRIME_PUSHINPAY_TOKEN"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CINEPRIME_STRIPE_API_KEY"`
	Secret string `envconfig:"CINEPRIME_STRIPE_SECRET"`
	Env    string `envconfig:"CINEPRIME_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// WebhooksConfig tunes the webhook ingestion pipeline.
type WebhooksConfig struct {
	FastDedupTTL time.Duration `envconfig:"CINEPRIME_WEBHOOK_FAST_DEDUP_TTL" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"CINEPRIME_DB_HOST": db.Host,
		"CINEPRIME_DB_USER": db.User,
		"CINEPRIME_DB_NAME": db.Name,
	}
	for _, key := range []string{"CINEPRIME_DB_HOST", "CINEPRIME_DB_USER", "CINEPRIME_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either CINEPRIME_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
