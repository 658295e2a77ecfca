package config

const EnvPrefix = "SCOOPSHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	CartStoreMemory = "memory"
	CartStoreRedis  = "redis"
	CartStoreSQL    = "sql"
)

const (
	EnvAppEnv   = "SCOOPSHOP_APP_ENV"
	EnvPort     = "SCOOPSHOP_APP_PORT"
	EnvLogLevel = "SCOOPSHOP_LOG_LEVEL"

	EnvCORSAllowedOrigins = "SCOOPSHOP_CORS_ALLOWED_ORIGINS"

	EnvRedisURL  = "SCOOPSHOP_REDIS_URL"
	EnvRedisAddr = "SCOOPSHOP_REDIS_ADDR"

	EnvDBDSN    = "SCOOPSHOP_DB_DSN"
	EnvDBDriver = "SCOOPSHOP_DB_DRIVER"
	EnvDBHost   = "SCOOPSHOP_DB_HOST"
	EnvDBUser   = "SCOOPSHOP_DB_USER"
	EnvDBName   = "SCOOPSHOP_DB_NAME"

	EnvJWTSecret = "SCOOPSHOP_JWT_SECRET"
	EnvJWTIssuer = "SCOOPSHOP_JWT_ISSUER"

	EnvCartMaxQuantity    = "SCOOPSHOP_CART_MAX_QUANTITY"
	EnvCartDebounceWindow = "SCOOPSHOP_CART_DEBOUNCE_WINDOW"
	EnvCartStore          = "SCOOPSHOP_CART_STORE"
	EnvCartIdleTTL        = "SCOOPSHOP_CART_IDLE_TTL"

	EnvRateLimitSessionWindow = "SCOOPSHOP_RATE_LIMIT_SESSION_WINDOW"
	EnvRateLimitItemsWindow   = "SCOOPSHOP_RATE_LIMIT_ITEMS_WINDOW"
	EnvRateLimitSessionIP     = "SCOOPSHOP_RATE_LIMIT_SESSION_IP_LIMIT"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
