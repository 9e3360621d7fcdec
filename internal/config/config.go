// Package config содержит логику чтения конфигурации сервиса оформления заказов.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса оформления заказов.
type Config struct {
	RunAddress          string `env:"RUN_ADDRESS"`
	DatabaseURI         string `env:"DATABASE_URI"`
	MediaServiceAddress string `env:"MEDIA_SERVICE_ADDRESS"`
	RedisAddress        string `env:"REDIS_ADDRESS"`
	RabbitMQURL         string `env:"RABBITMQ_URL"`

	AuthSecret  string   `env:"AUTH_SECRET"`
	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`

	StoreCurrency              string `env:"STORE_CURRENCY" envDefault:"PKR"`
	ShippingFlatCents          int64  `env:"SHIPPING_FLAT_CENTS" envDefault:"25000"`
	FreeShippingThresholdCents int64  `env:"FREE_SHIPPING_THRESHOLD_CENTS" envDefault:"0"`

	IdempotencyTTL       time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	VoucherAuditInterval time.Duration `env:"VOUCHER_AUDIT_INTERVAL" envDefault:"1h"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envMediaAddress := cfg.MediaServiceAddress
	envRedisAddress := cfg.RedisAddress
	envRabbitMQURL := cfg.RabbitMQURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.MediaServiceAddress, "m", "", "media service address")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for the idempotency cache")
	flag.StringVar(&cfg.RabbitMQURL, "q", "", "RabbitMQ URL for order events")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envMediaAddress != "" {
		cfg.MediaServiceAddress = envMediaAddress
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envRabbitMQURL != "" {
		cfg.RabbitMQURL = envRabbitMQURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	cfg.StoreCurrency = strings.ToUpper(strings.TrimSpace(cfg.StoreCurrency))
	if len(cfg.StoreCurrency) != 3 {
		return nil, fmt.Errorf("invalid STORE_CURRENCY %q", cfg.StoreCurrency)
	}
	if cfg.ShippingFlatCents < 0 || cfg.FreeShippingThresholdCents < 0 {
		return nil, fmt.Errorf("shipping amounts must not be negative")
	}

	admins := cfg.AdminEmails[:0]
	for _, a := range cfg.AdminEmails {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			admins = append(admins, a)
		}
	}
	cfg.AdminEmails = admins

	return cfg, nil
}
