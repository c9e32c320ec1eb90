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
	App           AppConfig
	Store         StoreConfig
	DB            DBConfig
	Redis         RedisConfig
	Storefront    StorefrontConfig
	Device        DeviceConfig
	Sync          SyncConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Events        EventsConfig
	GCP           GCPConfig
	Kafka         KafkaConfig
	Metrics       MetricsConfig
	Admin         AdminConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s or %s is required for the redis store", EnvRedisURL, EnvRedisAddr)
		}
	case StoreBackendSQL:
		if err := c.DB.EnsureDSN(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStoreBackend, c.Store.Backend)
	}

	switch c.Events.Broker {
	case EventBrokerNone:
	case EventBrokerPubSub:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required when %s=pubsub", EnvGCPProjectID, EnvEventBroker)
		}
	case EventBrokerKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("%s is required when %s=kafka", EnvKafkaBrokers, EnvEventBroker)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvEventBroker, c.Events.Broker)
	}

	if !c.Storefront.FreeDeliveryThreshold.IsPositive() {
		return fmt.Errorf("%s must be positive", EnvFreeDelivery)
	}
	if c.Storefront.DeliveryFee.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvDeliveryFee)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"LAGLUE_APP_ENV" required:"true"`
	Port         string `envconfig:"LAGLUE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LAGLUE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LAGLUE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StoreConfig selects where the storefront keeps its JSON blobs.
type StoreConfig struct {
	Backend string `envconfig:"LAGLUE_STORE_BACKEND" default:"memory"`
}

type DBConfig struct {
	DSN    string `envconfig:"LAGLUE_DB_DSN"`
	Driver string `envconfig:"LAGLUE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LAGLUE_DB_HOST"`
	Port     int    `envconfig:"LAGLUE_DB_PORT" default:"5432"`
	User     string `envconfig:"LAGLUE_DB_USER"`
	Password string `envconfig:"LAGLUE_DB_PASSWORD"`
	Name     string `envconfig:"LAGLUE_DB_NAME"`
	SSLMode  string `envconfig:"LAGLUE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LAGLUE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"LAGLUE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"LAGLUE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LAGLUE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"LAGLUE_REDIS_URL"`
	Address      string        `envconfig:"LAGLUE_REDIS_ADDR"`
	Password     string        `envconfig:"LAGLUE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LAGLUE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LAGLUE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LAGLUE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LAGLUE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LAGLUE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LAGLUE_REDIS_WRITE_TIMEOUT" default:"5s"`
	Namespace    string        `envconfig:"LAGLUE_REDIS_NAMESPACE" default:"lg"`
}

// StorefrontConfig carries the business constants of the shop.
type StorefrontConfig struct {
	Name                  string          `envconfig:"LAGLUE_STORE_NAME" default:"La Glue !"`
	Tagline               string          `envconfig:"LAGLUE_STORE_TAGLINE" default:"Votre boutique de confiance"`
	WhatsAppNumber        string          `envconfig:"LAGLUE_STORE_WHATSAPP" default:"237655912990"`
	Currency              string          `envconfig:"LAGLUE_CURRENCY_LABEL" default:"FCFA"`
	Timezone              string          `envconfig:"LAGLUE_STORE_TIMEZONE" default:"Africa/Douala"`
	OrderCodePrefix       string          `envconfig:"LAGLUE_ORDER_CODE_PREFIX" default:"LAGLUE"`
	OrderCodeSecret       int64           `envconfig:"LAGLUE_ORDER_CODE_SECRET" default:"2407"`
	FreeDeliveryThreshold decimal.Decimal `envconfig:"LAGLUE_FREE_DELIVERY_THRESHOLD" default:"50000"`
	DeliveryFee           decimal.Decimal `envconfig:"LAGLUE_DELIVERY_FEE" default:"1500"`
	MaxItemQuantity       int             `envconfig:"LAGLUE_MAX_ITEM_QUANTITY" default:"10"`
	OrderHistoryLimit     int             `envconfig:"LAGLUE_ORDER_HISTORY_LIMIT" default:"50"`
	AdminOrderLogLimit    int             `envconfig:"LAGLUE_ADMIN_ORDER_LOG_LIMIT" default:"1000"`
	OrderCodeLogLimit     int             `envconfig:"LAGLUE_ORDER_CODE_LOG_LIMIT" default:"100"`
	SessionTTL            time.Duration   `envconfig:"LAGLUE_SESSION_TTL" default:"720h"`
}

// Location resolves the shop timezone, falling back to West Africa Time.
func (s StorefrontConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(strings.TrimSpace(s.Timezone)); err == nil && s.Timezone != "" {
		return loc
	}
	return time.FixedZone("WAT", int(time.Hour/time.Second))
}

// DeviceConfig signs the opaque device tokens that scope carts and sessions.
type DeviceConfig struct {
	Secret string        `envconfig:"LAGLUE_DEVICE_TOKEN_SECRET" required:"true"`
	Issuer string        `envconfig:"LAGLUE_DEVICE_TOKEN_ISSUER" default:"laglue-storefront"`
	TTL    time.Duration `envconfig:"LAGLUE_DEVICE_TOKEN_TTL" default:"2160h"`
	// IdleTTL bounds how long a device's cart and session stay in memory.
	IdleTTL time.Duration `envconfig:"LAGLUE_DEVICE_SESSION_IDLE_TTL" default:"30m"`
}

type SyncConfig struct {
	Interval       time.Duration `envconfig:"LAGLUE_SYNC_INTERVAL" default:"10s"`
	Throttle       time.Duration `envconfig:"LAGLUE_SYNC_THROTTLE" default:"30s"`
	MigrateCatalog bool          `envconfig:"LAGLUE_CATALOG_MIGRATE" default:"true"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"LAGLUE_AUTH_RATE_LIMIT_WINDOW" default:"1m"`
	LoginIPLimit    int           `envconfig:"LAGLUE_AUTH_RATE_LIMIT_IP_LIMIT" default:"20"`
	LoginPhoneLimit int           `envconfig:"LAGLUE_AUTH_RATE_LIMIT_PHONE_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LAGLUE_AUTO_MIGRATE" default:"false"`
}

type EventsConfig struct {
	Broker      string        `envconfig:"LAGLUE_EVENTS_BROKER" default:"none"`
	OrdersTopic string        `envconfig:"LAGLUE_EVENTS_ORDERS_TOPIC" default:"laglue-orders"`
	Timeout     time.Duration `envconfig:"LAGLUE_EVENTS_PUBLISH_TIMEOUT" default:"10s"`
	CreateTopic bool          `envconfig:"LAGLUE_EVENTS_CREATE_TOPIC" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"LAGLUE_GCP_PROJECT_ID"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"LAGLUE_KAFKA_BROKERS"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"LAGLUE_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"LAGLUE_METRICS_PATH" default:"/metrics"`
}

type AdminConfig struct {
	Token       string   `envconfig:"LAGLUE_ADMIN_TOKEN"`
	CORSOrigins []string `envconfig:"LAGLUE_CORS_ORIGINS" default:"http://localhost:3000"`
}

// EnsureDSN fills DSN from the discrete LAGLUE_DB_* variables when unset.
func (db *DBConfig) EnsureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:laglue.db?cache=shared&_busy_timeout=5000"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range legacyDBEnvVars {
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
