package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

type Config struct {
	ServiceName    string
	HTTPAddr       string
	EndpointPrefix string
	LogLevel       slog.Level

	StoreDriver string
	DatabaseURL string

	JWTAccessSecret string

	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string
	SuccessURL          string
	CancelURL           string
	GatewayTimeout      time.Duration

	DefaultCountry string
	CartSource     string

	KafkaBrokers []string

	ConsulAddr  string
	ServiceHost string
	ServicePort int

	// OTLPEndpoint is the collector spans are exported to; empty disables export.
	OTLPEndpoint string
	OTLPInsecure bool
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Load reads the process environment. Values that would only blow up later
// (unknown drivers, bad durations, missing secrets) fail here instead.
func Load() (*Config, error) {
	c := &Config{
		ServiceName:         GetEnv("SERVICE_NAME", "order-service"),
		HTTPAddr:            GetEnv("HTTP_ADDR", ":8080"),
		EndpointPrefix:      os.Getenv("SERVICE_ENDPOINT_PREFIX"),
		LogLevel:            ParseLogLevel(os.Getenv("LOG_LEVEL")),
		StoreDriver:         GetEnv("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTAccessSecret:     os.Getenv("JWT_ACCESS_SECRET"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:            strings.ToLower(GetEnv("PAYMENT_CURRENCY", "bdt")),
		SuccessURL:          os.Getenv("PAYMENT_SUCCESS_URL"),
		CancelURL:           os.Getenv("PAYMENT_CANCEL_URL"),
		DefaultCountry:      GetEnv("DEFAULT_COUNTRY", "Bangladesh"),
		CartSource:          strings.ToLower(GetEnv("CART_SOURCE", "either")),
		ConsulAddr:          os.Getenv("CONSUL_ADDR"),
		ServiceHost:         GetEnv("SERVICE_HOST", "localhost"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	insecure, err := strconv.ParseBool(GetEnv("OTEL_EXPORTER_OTLP_INSECURE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_EXPORTER_OTLP_INSECURE: %w", err)
	}
	c.OTLPInsecure = insecure

	timeout, err := time.ParseDuration(GetEnv("GATEWAY_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT %q", os.Getenv("GATEWAY_TIMEOUT"))
	}
	c.GatewayTimeout = timeout

	port, err := strconv.Atoi(GetEnv("SERVICE_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVICE_PORT: %w", err)
	}
	c.ServicePort = port

	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			c.KafkaBrokers = append(c.KafkaBrokers, b)
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %q", c.StoreDriver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.CartSource {
	case "wishlist", "explicit", "either":
	default:
		return fmt.Errorf("unknown CART_SOURCE %q", c.CartSource)
	}

	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is not set")
	}
	if c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is not set")
	}
	if c.SuccessURL == "" || c.CancelURL == "" {
		return fmt.Errorf("PAYMENT_SUCCESS_URL and PAYMENT_CANCEL_URL must be set")
	}
	return nil
}

func ParseLogLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
