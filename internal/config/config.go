// Package config содержит логику чтения конфигурации сервиса ticketpay.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса ticketpay.
type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	ProcessorAPIURL    string        `env:"PROCESSOR_API_URL"`
	ProcessorSecretKey string        `env:"PROCESSOR_SECRET_KEY"`
	WebhookSecret      string        `env:"WEBHOOK_SECRET"`
	AuthJWTSecret      string        `env:"AUTH_JWT_SECRET"`
	ClaimFunctionURL   string        `env:"CLAIM_FUNCTION_URL"`
	DefaultCurrency    string        `env:"DEFAULT_CURRENCY" envDefault:"usd"`
	ExternalTimeout    time.Duration `env:"EXTERNAL_TIMEOUT" envDefault:"10s"`
	WebhookTolerance   time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
	CORSAllowedOrigin  string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
}

const (
	defaultRunAddress   = "localhost:8080"
	defaultProcessorURL = "https://api.stripe.com"
)

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envProcessorURL := cfg.ProcessorAPIURL
	envClaimURL := cfg.ClaimFunctionURL

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ProcessorAPIURL, "p", defaultProcessorURL, "payment processor API address")
	flag.StringVar(&cfg.ClaimFunctionURL, "c", "", "claim-free-offer function URL")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envProcessorURL != "" {
		cfg.ProcessorAPIURL = envProcessorURL
	}
	if envClaimURL != "" {
		cfg.ClaimFunctionURL = envClaimURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.ProcessorAPIURL == "" {
		cfg.ProcessorAPIURL = defaultProcessorURL
	}

	return cfg, nil
}
