package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrymomot/fundkit/pkg/checkout"
	"github.com/dmitrymomot/fundkit/pkg/config"
	"github.com/dmitrymomot/fundkit/pkg/httpserver"
	"github.com/dmitrymomot/fundkit/pkg/ratelimiter"
	"github.com/dmitrymomot/fundkit/pkg/redis"
)

// Config is everything the CLI and the web surface read from the environment.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`

	APIBaseURL      string        `env:"API_BASE_URL" envDefault:"http://localhost:5000/api"`
	APITimeout      time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
	IdentityRetries int           `env:"IDENTITY_RETRIES" envDefault:"1"`

	// AppBaseURL is where the payment processor sends the user back.
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://127.0.0.1:3000"`

	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"file"`
	SessionFile    string        `env:"SESSION_FILE"`
	SessionPrefix  string        `env:"SESSION_PREFIX" envDefault:"fundkit:"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	CheckoutProvider    string `env:"CHECKOUT_PROVIDER" envDefault:"template"`
	CheckoutURLTemplate string `env:"CHECKOUT_URL_TEMPLATE" envDefault:"https://checkout.stripe.com/c/pay/{CHECKOUT_SESSION_ID}"`

	Currency string `env:"CURRENCY" envDefault:"USD"`

	// RateLimitStore keeps login throttling buckets: memory or redis.
	// AUTH_RATE_LIMIT_CAPACITY=0 turns throttling off.
	RateLimitStore string             `env:"RATE_LIMIT_STORE" envDefault:"memory"`
	AuthRateLimit  ratelimiter.Config `envPrefix:"AUTH_RATE_LIMIT_"`

	Redis  redis.Config
	Paddle checkout.PaddleConfig
	HTTP   httpserver.Config
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = defaultSessionFile()
	}
	return cfg, nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "fundkit", "session.json")
}
