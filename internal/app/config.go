package app

import (
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-admin/internal/domain/order"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), an optional .env file, flags, or
// YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Shipping    ShippingConfig
	Notify      NotifyConfig
	Mail        MailConfig
	Storage     StorageConfig
	Events      EventsConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// ShippingConfig controls order pricing.
type ShippingConfig struct {
	Domestic   string `default:"18.00" usage:"Flat shipping charge added to every order"`
	ClampTotal bool   `default:"true" usage:"Never let discounts push an order total below zero"`
}

// NotifyConfig controls order notification recipients.
type NotifyConfig struct {
	OrdersEmail  string `usage:"Email of the staff member in charge of orders (or ORDERS_EMAIL)"`
	DefaultEmail string `usage:"General staff contact email (or DEFAULT_EMAIL)"`
	FromName     string `default:"Storefront" usage:"Display name of outgoing mail"`
	FromEmail    string `default:"no-reply@localhost" usage:"Sender address of outgoing mail"`
	Workers      int    `default:"4" usage:"Concurrent notification deliveries"`
}

// MailConfig selects the mail backend.
type MailConfig struct {
	Driver   string `default:"log" usage:"Mail backend: smtp or log"`
	Host     string `usage:"SMTP host"`
	Port     int    `default:"587" usage:"SMTP port"`
	Username string `usage:"SMTP username"`
	Password string `usage:"SMTP password"`
	TLS      bool   `default:"true" usage:"Require STARTTLS"`
}

// StorageConfig selects the image blob store.
type StorageConfig struct {
	Driver   string `default:"local" usage:"Blob backend: local or s3"`
	Root     string `default:"storage/public" usage:"Local storage directory"`
	BaseURL  string `default:"/media" usage:"Public URL prefix of stored images"`
	Bucket   string `usage:"S3 bucket"`
	Region   string `default:"us-east-1" usage:"S3 region"`
	Prefix   string `usage:"S3 key prefix"`
	Endpoint string `usage:"S3-compatible endpoint, e.g. MinIO"`

	// Static S3 credentials. Left empty, the default AWS chain applies.
	AccessKeyID     string `env:"ACCESS_KEY_ID" usage:"S3 access key ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY" usage:"S3 secret access key"`
}

// EventsConfig selects how order events reach the dispatcher.
type EventsConfig struct {
	Driver  string   `default:"inproc" usage:"Event bus: inproc or kafka"`
	Brokers []string `usage:"Kafka seed brokers"`
	Topic   string   `default:"storefront.order-submitted" usage:"Kafka topic"`
	Group   string   `default:"storefront-notify" usage:"Kafka consumer group"`
}

// AuthConfig controls bearer tokens.
type AuthConfig struct {
	JWTSecret string        `usage:"HMAC secret for signing tokens" flag:"jwt-secret"`
	TokenTTL  time.Duration `default:"12h" usage:"Token lifetime"`
}

// RateLimitConfig controls the per-client login rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"10" usage:"Login attempts per window"`
	Window time.Duration `default:"1m" usage:"Window in which Max attempts refill"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from an optional .env file, environment
// variables, and YAML config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(false)
}

func loadConfig(skipFlags bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		SkipFlags: skipFlags,
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps conventional environment variables to fields
// left unset by the SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	fallback := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.Notify.OrdersEmail, "ORDERS_EMAIL")
	fallback(&c.Notify.DefaultEmail, "DEFAULT_EMAIL")

	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case c.Auth.JWTSecret == "":
		return errors.New("jwt secret is required: set SHOP_AUTH_JWT_SECRET")
	case !slices.Contains([]string{"smtp", "log"}, c.Mail.Driver):
		return errors.Errorf("unknown mail driver %q", c.Mail.Driver)
	case c.Mail.Driver == "smtp" && c.Mail.Host == "":
		return errors.New("smtp mail driver requires a host")
	case !slices.Contains([]string{"local", "s3"}, c.Storage.Driver):
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	case c.Storage.Driver == "s3" && c.Storage.Bucket == "":
		return errors.New("s3 storage driver requires a bucket")
	case (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == ""):
		return errors.New("s3 access key ID and secret access key must be set together")
	case !slices.Contains([]string{"inproc", "kafka"}, c.Events.Driver):
		return errors.Errorf("unknown events driver %q", c.Events.Driver)
	case c.Events.Driver == "kafka" && len(c.Events.Brokers) == 0:
		return errors.New("kafka events driver requires brokers")
	}

	if _, err := c.Pricing(); err != nil {
		return err
	}
	return nil
}

// Pricing returns the order pricing policy.
func (c *Config) Pricing() (order.Pricing, error) {
	shipping, err := decimal.NewFromString(c.Shipping.Domestic)
	if err != nil {
		return order.Pricing{}, errors.Wrapf(err, "parse shipping %q", c.Shipping.Domestic)
	}
	if shipping.IsNegative() {
		return order.Pricing{}, errors.Errorf("shipping %s must not be negative", shipping)
	}
	return order.Pricing{Shipping: shipping, ClampTotal: c.Shipping.ClampTotal}, nil
}
