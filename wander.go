// Package wander is the client SDK for the wander travel-guide backend.
// It owns the client-side state synchronization layer: the session monitor,
// the attraction/favorite cache, the review store and the rating
// aggregator, all kept eventually consistent with the remote service.
package wander

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wanderapp/wander-go/internal/gateway"
	"github.com/wanderapp/wander-go/internal/serial"
)

const defaultPollInterval = 5 * time.Second

// Client wires the gateway, the serialized mutation executor, the event hub
// and the three stores together. Construct one per backend deployment and
// share it; all methods are safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger

	tokens       *tokenStore
	exec         executor
	hub          *Hub
	gw           *gateway.Client
	pollInterval time.Duration

	session     *SessionMonitor
	attractions *AttractionCache
	reviews     *ReviewStore

	closedOnce uint32 // ensures Close is idempotent
}

// New constructs a Client for the given backend base URL and API key.
// Additional options can be provided via functional arguments.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errEmptyBaseURL
	}
	if apiKey == "" {
		return nil, errEmptyAPIKey
	}

	c := &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 30 * time.Second},
		log:          zerolog.Nop(),
		tokens:       &tokenStore{},
		pollInterval: defaultPollInterval,
	}

	// Auto-enable debug via env variable without changing code.
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	// Wrap HTTP transport so every request carries the API key and, once a
	// user is signed in, their access token.
	c.wrapTransportWithAuth()

	if c.exec == nil {
		c.exec = serial.New(serial.Config{Logger: c.log})
	}
	c.hub = newHub(c.log)
	c.gw = gateway.New(c.baseURL, c.http, c.log)

	c.session = newSessionMonitor(c.gw, c.exec, c.hub, c.tokens, c.pollInterval, c.log)
	c.attractions = newAttractionCache(c.gw, c.exec, c.hub, c.log)
	c.reviews = newReviewStore(c.gw, c.exec, c.hub, c.session, c.log)

	return c, nil
}

// Session returns the session monitor.
func (c *Client) Session() *SessionMonitor { return c.session }

// Attractions returns the attraction/favorite cache.
func (c *Client) Attractions() *AttractionCache { return c.attractions }

// Reviews returns the review store.
func (c *Client) Reviews() *ReviewStore { return c.reviews }

// Events returns the state-change notification hub the UI subscribes to.
func (c *Client) Events() *Hub { return c.hub }

// Close stops the session poll loop and the background executor.
// Safe to call multiple times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	if c.session != nil {
		c.session.Stop()
	}
	if c.exec != nil {
		c.exec.Stop()
	}
	return nil
}

// wrapTransportWithAuth wraps the HTTP client's transport to automatically
// add the apikey header and a bearer token to all requests. The bearer is
// the signed-in user's access token when one exists, the API key otherwise.
func (c *Client) wrapTransportWithAuth() {
	baseTransport := c.http.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	c.http.Transport = &authTransport{
		base:   baseTransport,
		apiKey: c.apiKey,
		tokens: c.tokens,
	}
}

// tokenStore holds the current access token. The session monitor writes it;
// the transport reads it on every request.
type tokenStore struct {
	v atomic.Value // string
}

func (t *tokenStore) get() string {
	s, _ := t.v.Load().(string)
	return s
}

func (t *tokenStore) set(token string) {
	t.v.Store(token)
}

// authTransport wraps an http.RoundTripper to add authentication headers.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
	tokens *tokenStore
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original.
	cloned := req.Clone(req.Context())
	cloned.Header.Set("apikey", t.apiKey)
	bearer := t.tokens.get()
	if bearer == "" {
		bearer = t.apiKey
	}
	cloned.Header.Set("Authorization", "Bearer "+bearer)
	return t.base.RoundTrip(cloned)
}
