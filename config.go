package wander

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the environment-driven construction surface. Variables carry
// the WANDER_ prefix: WANDER_BASE_URL, WANDER_API_KEY, WANDER_HTTP_TIMEOUT,
// WANDER_SESSION_POLL_INTERVAL.
type Config struct {
	BaseURL      string        `envconfig:"BASE_URL" required:"true"`
	APIKey       string        `envconfig:"API_KEY" required:"true"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	PollInterval time.Duration `envconfig:"SESSION_POLL_INTERVAL" default:"5s"`
}

// NewFromEnv builds a Client from environment variables. Explicit options
// are applied after the environment and win on conflict.
func NewFromEnv(opts ...Option) (*Client, error) {
	var cfg Config
	if err := envconfig.Process("wander", &cfg); err != nil {
		return nil, err
	}
	merged := append([]Option{
		WithHTTPTimeout(cfg.HTTPTimeout),
		WithPollInterval(cfg.PollInterval),
	}, opts...)
	return New(cfg.BaseURL, cfg.APIKey, merged...)
}
