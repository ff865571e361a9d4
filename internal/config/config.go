// Package config loads application configuration from environment variables.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	Port   string `env:"APP_PORT" envDefault:"8080"`

	// Public base URL of the API, used in magic-link mail and OAuth callbacks.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	MongoURI string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB  string `env:"MONGO_DB" envDefault:"feedbase"`

	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RateLimitPerMin int    `env:"RATE_LIMIT_PER_MIN" envDefault:"5"`

	JWTSecret    string        `env:"JWT_SECRET" envDefault:"default_secret_key"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	MagicLinkTTL time.Duration `env:"MAGIC_LINK_TTL" envDefault:"15m"`

	RabbitURL string `env:"RABBIT_URL"`
	Exchange  string `env:"EVENTS_EXCHANGE" envDefault:"feedbase.events"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripePriceID       string `env:"STRIPE_PRICE_ID"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `env:"GOOGLE_REDIRECT_URI"`
	OAuthStateSecret   string `env:"OAUTH_STATE_SECRET" envDefault:"state_secret"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsDevelopment() bool { return c.AppEnv == "development" }
