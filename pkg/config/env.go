package config

// EnvPrefix is handed to envconfig; every field tag carries the full variable
// name so lookups fall back to the unprefixed tag.
const EnvPrefix = "LAGLUE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
	StoreBackendSQL    = "sql"
)

const (
	EventBrokerNone   = "none"
	EventBrokerPubSub = "pubsub"
	EventBrokerKafka  = "kafka"
)

const (
	EnvAppEnv          = "LAGLUE_APP_ENV"
	EnvPort            = "LAGLUE_APP_PORT"
	EnvLogLevel        = "LAGLUE_LOG_LEVEL"
	EnvStoreBackend    = "LAGLUE_STORE_BACKEND"
	EnvDBDSN           = "LAGLUE_DB_DSN"
	EnvDBDriver        = "LAGLUE_DB_DRIVER"
	EnvDBHost          = "LAGLUE_DB_HOST"
	EnvDBUser          = "LAGLUE_DB_USER"
	EnvDBName          = "LAGLUE_DB_NAME"
	EnvRedisURL        = "LAGLUE_REDIS_URL"
	EnvRedisAddr       = "LAGLUE_REDIS_ADDR"
	EnvDeviceSecret    = "LAGLUE_DEVICE_TOKEN_SECRET"
	EnvDeviceIssuer    = "LAGLUE_DEVICE_TOKEN_ISSUER"
	EnvOrderSecret     = "LAGLUE_ORDER_CODE_SECRET"
	EnvOrderPrefix     = "LAGLUE_ORDER_CODE_PREFIX"
	EnvStoreWhatsApp   = "LAGLUE_STORE_WHATSAPP"
	EnvFreeDelivery    = "LAGLUE_FREE_DELIVERY_THRESHOLD"
	EnvDeliveryFee     = "LAGLUE_DELIVERY_FEE"
	EnvSyncThrottle    = "LAGLUE_SYNC_THROTTLE"
	EnvEventBroker     = "LAGLUE_EVENTS_BROKER"
	EnvEventTopic      = "LAGLUE_EVENTS_ORDERS_TOPIC"
	EnvKafkaBrokers    = "LAGLUE_KAFKA_BROKERS"
	EnvGCPProjectID    = "LAGLUE_GCP_PROJECT_ID"
	EnvMetricsEnabled  = "LAGLUE_METRICS_ENABLED"
	EnvAutoMigrate     = "LAGLUE_AUTO_MIGRATE"
	EnvStoreTimezone   = "LAGLUE_STORE_TIMEZONE"
	EnvCatalogMigrate  = "LAGLUE_CATALOG_MIGRATE"
	EnvAdminToken      = "LAGLUE_ADMIN_TOKEN"
	EnvCORSOrigins     = "LAGLUE_CORS_ORIGINS"
	EnvLoginRateWindow = "LAGLUE_AUTH_RATE_LIMIT_WINDOW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
