package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	APIAddr     string `env:"API_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// Queue tuning.
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	ClaimLease     time.Duration `env:"CLAIM_LEASE" envDefault:"10m"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"500ms"`
	HandlerTimeout time.Duration `env:"HANDLER_TIMEOUT" envDefault:"2m"`

	// Admission control.
	DefaultMonthlyCredits int64         `env:"DEFAULT_MONTHLY_CREDITS" envDefault:"500"`
	GlobalRateLimit       int64         `env:"GLOBAL_RATE_LIMIT" envDefault:"300"`
	GlobalRateWindow      time.Duration `env:"GLOBAL_RATE_WINDOW" envDefault:"1m"`
	AIRateLimit           int64         `env:"AI_RATE_LIMIT" envDefault:"10"`
	AIRateWindow          time.Duration `env:"AI_RATE_WINDOW" envDefault:"1m"`

	// Model provider.
	ProviderBaseURL string `env:"PROVIDER_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ProviderAPIKey  string `env:"PROVIDER_API_KEY"`
	ProviderModel   string `env:"PROVIDER_MODEL" envDefault:"gpt-4o-mini"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
