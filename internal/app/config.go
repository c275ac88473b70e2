package app

import (
	"os"
	"slices"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/chorbazzar/internal/domain/pricing"
)

// Storage drivers for cart and wishlist records.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHOR_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL for the catalog, promotions and orders (CHOR_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images" flag:"image-base-url"`
	Storage      StorageConfig
	Pricing      PricingConfig
	Session      SessionConfig
	Checkout     CheckoutConfig
	Events       EventsConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorageConfig selects where carts and wishlists are persisted.
type StorageConfig struct {
	Driver string `default:"memory" usage:"Record storage: memory, file, postgres or redis"`
	Dir    string `default:"data" usage:"Directory for the file driver"`
	Redis  RedisConfig
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr     string `default:"localhost:6379" usage:"Redis address"`
	Password string `usage:"Redis password"`
	DB       int    `default:"0" usage:"Redis database number"`
	Prefix   string `default:"chorbazzar" usage:"Key prefix"`
}

// PricingConfig holds the checkout pricing constants as decimal strings.
type PricingConfig struct {
	FreeShippingThreshold string `default:"150" usage:"Subtotal above which shipping is free"`
	ShippingFee           string `default:"15" usage:"Flat shipping fee"`
	TaxRate               string `default:"0.08" usage:"Tax rate applied to the discounted subtotal"`
	ShippingBasis         string `default:"subtotal" usage:"Amount compared to the free shipping threshold: subtotal or discounted"`
}

// SessionConfig controls in-memory session lifetime.
type SessionConfig struct {
	IdleTTL  time.Duration `default:"30m" usage:"Evict sessions idle for this long"`
	ToastTTL time.Duration `default:"3s" usage:"Notification lifetime"`
}

// CheckoutConfig controls the simulated payment.
type CheckoutConfig struct {
	PaymentDelay time.Duration `default:"2s" usage:"Simulated payment processing time"`
}

// EventsConfig configures order event publishing. Publishing is disabled when
// AMQPURL is empty.
type EventsConfig struct {
	AMQPURL  string `usage:"RabbitMQ URL" flag:"amqp-url"`
	Exchange string `default:"chorbazzar.events" usage:"Topic exchange for order events"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "CHOR",
		Files:     []string{"config.yaml", "/etc/chorbazzar/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CHOR_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	drivers := []string{DriverMemory, DriverFile, DriverPostgres, DriverRedis}
	if !slices.Contains(drivers, c.Storage.Driver) {
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverPostgres && c.DatabaseURL == "" {
		return errors.New("postgres storage requires a database URL: set CHOR_DATABASE_URL or DATABASE_URL")
	}
	if _, err := c.Pricing.Parse(); err != nil {
		return err
	}
	return nil
}

// Parse converts the pricing settings into an engine configuration.
func (c PricingConfig) Parse() (pricing.Config, error) {
	var (
		out pricing.Config
		err error
	)
	if out.FreeShippingThreshold, err = decimal.NewFromString(c.FreeShippingThreshold); err != nil {
		return out, errors.Wrap(err, "parse free shipping threshold")
	}
	if out.ShippingFee, err = decimal.NewFromString(c.ShippingFee); err != nil {
		return out, errors.Wrap(err, "parse shipping fee")
	}
	if out.TaxRate, err = decimal.NewFromString(c.TaxRate); err != nil {
		return out, errors.Wrap(err, "parse tax rate")
	}
	if out.FreeShippingThreshold.IsNegative() || out.ShippingFee.IsNegative() || out.TaxRate.IsNegative() {
		return out, errors.New("pricing values must not be negative")
	}

	switch basis := pricing.ShippingBasis(c.ShippingBasis); basis {
	case pricing.BasisSubtotal, pricing.BasisDiscounted:
		out.ShippingBasis = basis
	default:
		return out, errors.Errorf("unknown shipping basis %q", c.ShippingBasis)
	}
	return out, nil
}
