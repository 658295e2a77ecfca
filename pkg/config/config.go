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
	Redis        RedisConfig
	DB           DBConfig
	JWT          JWTConfig
	Cart         CartConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	if err := cfg.RateLimit.validate(); err != nil {
		return nil, err
	}
	if cfg.Cart.UsesSQL() {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if cfg.Cart.UsesRedis() && cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("%s or %s is required for the redis cart store", EnvRedisURL, EnvRedisAddr)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SCOOPSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"SCOOPSHOP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SCOOPSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCOOPSHOP_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"SCOOPSHOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"SCOOPSHOP_REDIS_URL"`
	Address      string        `envconfig:"SCOOPSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"SCOOPSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCOOPSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCOOPSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCOOPSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCOOPSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCOOPSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCOOPSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type DBConfig struct {
	DSN    string `envconfig:"SCOOPSHOP_DB_DSN"`
	Driver string `envconfig:"SCOOPSHOP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SCOOPSHOP_DB_HOST"`
	Port     int    `envconfig:"SCOOPSHOP_DB_PORT" default:"5432"`
	User     string `envconfig:"SCOOPSHOP_DB_USER"`
	Password string `envconfig:"SCOOPSHOP_DB_PASSWORD"`
	Name     string `envconfig:"SCOOPSHOP_DB_NAME"`
	SSLMode  string `envconfig:"SCOOPSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCOOPSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCOOPSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCOOPSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCOOPSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SCOOPSHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SCOOPSHOP_JWT_ISSUER" default:"scoopshop"`
	SessionTTLMinutes int    `envconfig:"SCOOPSHOP_JWT_SESSION_TTL_MINUTES" default:"10080"`
}

// SessionTTL returns the lifetime of a cart session token.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type CartConfig struct {
	MaxQuantity    int           `envconfig:"SCOOPSHOP_CART_MAX_QUANTITY" default:"99"`
	DebounceWindow time.Duration `envconfig:"SCOOPSHOP_CART_DEBOUNCE_WINDOW" default:"300ms"`
	Store          string        `envconfig:"SCOOPSHOP_CART_STORE" default:"memory"`
	SessionTTL     time.Duration `envconfig:"SCOOPSHOP_CART_SESSION_TTL" default:"168h"`
	IdleTTL        time.Duration `envconfig:"SCOOPSHOP_CART_IDLE_TTL" default:"30m"`
	SweepInterval  time.Duration `envconfig:"SCOOPSHOP_CART_SWEEP_INTERVAL" default:"5m"`
	EventBuffer    int           `envconfig:"SCOOPSHOP_CART_EVENT_BUFFER" default:"32"`
}

// StoreKind returns the normalized cart store driver.
func (c CartConfig) StoreKind() string {
	kind := strings.ToLower(strings.TrimSpace(c.Store))
	if kind == "" {
		return CartStoreMemory
	}
	return kind
}

func (c CartConfig) UsesSQL() bool {
	return c.StoreKind() == CartStoreSQL
}

func (c CartConfig) UsesRedis() bool {
	return c.StoreKind() == CartStoreRedis
}

func (c CartConfig) validate() error {
	switch c.StoreKind() {
	case CartStoreMemory, CartStoreRedis, CartStoreSQL:
	default:
		return fmt.Errorf("%s must be one of memory, redis, sql (got %q)", EnvCartStore, c.Store)
	}
	if c.MaxQuantity <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartMaxQuantity)
	}
	if c.DebounceWindow < 0 {
		return fmt.Errorf("%s cannot be negative", EnvCartDebounceWindow)
	}
	return nil
}

// RateLimitConfig holds fixed-window limits keyed by client IP. A zero window
// or limit turns the policy off.
type RateLimitConfig struct {
	SessionWindow  time.Duration `envconfig:"SCOOPSHOP_RATE_LIMIT_SESSION_WINDOW" default:"1m"`
	SessionIPLimit int           `envconfig:"SCOOPSHOP_RATE_LIMIT_SESSION_IP_LIMIT" default:"20"`

	ItemsWindow       time.Duration `envconfig:"SCOOPSHOP_RATE_LIMIT_ITEMS_WINDOW" default:"1m"`
	ItemsIPLimit      int           `envconfig:"SCOOPSHOP_RATE_LIMIT_ITEMS_IP_LIMIT" default:"600"`
	ItemsSessionLimit int           `envconfig:"SCOOPSHOP_RATE_LIMIT_ITEMS_SESSION_LIMIT" default:"120"`
}

func (r RateLimitConfig) validate() error {
	if r.SessionWindow < 0 || r.ItemsWindow < 0 {
		return fmt.Errorf("%s and %s cannot be negative", EnvRateLimitSessionWindow, EnvRateLimitItemsWindow)
	}
	if r.SessionIPLimit < 0 || r.ItemsIPLimit < 0 || r.ItemsSessionLimit < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SCOOPSHOP_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if strings.EqualFold(db.Driver, DBDriverSQLite) {
		if db.DSN == "" {
			db.DSN = "file:scoopshop.db?cache=shared"
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
