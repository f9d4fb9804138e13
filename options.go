package wander

// This file defines functional options that configure the Client during
// construction. Keeping them in a standalone file avoids cluttering
// wander.go and makes it easy to discover all available knobs at a glance.

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wanderapp/wander-go/internal/serial"
)

// Option configures a Client during construction in New.
//
// Options are applied before the auth transport wrapper is installed, so
// transport-related options (like debug logging) will be placed underneath
// the api-key wrapper. Options must be deterministic and side-effect free.
type Option func(*Client) error

// WithHTTPTimeout sets the underlying http.Client Timeout used by the SDK.
//
// Prefer per-request context deadlines where possible; this timeout is a
// coarse safety net that bounds the total time spent on a single HTTP
// request. The value must be greater than zero.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.http.Timeout = d
		return nil
	}
}

// WithPollInterval sets the session validation interval used by the
// session monitor. The value must be greater than zero.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be > 0")
		}
		c.pollInterval = d
		return nil
	}
}

// WithLogger sets the logger used by the SDK. The default discards
// everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) error {
		c.log = log
		return nil
	}
}

// WithExecutorConfig replaces the default serialized mutation executor
// configuration. Mainly useful in tests to shorten retry backoff.
func WithExecutorConfig(cfg serial.Config) Option {
	return func(c *Client) error {
		c.exec = serial.New(cfg)
		return nil
	}
}

// WithDebugLogging wraps the client's transport so each request/response is
// logged when enabled is true.
//
// The debug transport is installed beneath the auth wrapper; logs are
// emitted before the request is forwarded to the next transport.
// Do not enable this option in production environments as it increases
// verbosity and may include headers and method/URL metadata in logs.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		if enabled {
			c.http.Transport = &debugTransport{base: c.http.Transport}
		}
		return nil
	}
}
