// Package gateway implements the HTTP client for the hosted travel-guide
// backend: authentication, filtered table queries, row mutations, the
// radius-lookup RPC, and object storage.
//
// Authorization headers are added by the transport layer configured on the
// injected http.Client; nothing in this package handles keys or tokens.
package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	apierr "github.com/wanderapp/wander-go/internal/errors"
)

// Client talks to one backend deployment. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New constructs a gateway client. The http.Client is injected so the owner
// controls timeouts and the transport wrapper chain.
func New(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

// do executes req and returns the response if its status is one of want.
// Any other outcome is mapped onto the shared error taxonomy with the
// response body preserved for display.
func (c *Client) do(req *http.Request, operation string, want ...int) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierr.NewTransport(operation, err)
	}
	for _, s := range want {
		if resp.StatusCode == s {
			return resp, nil
		}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	c.log.Debug().Str("op", operation).Int("status", resp.StatusCode).Msg("gateway request rejected")
	return nil, apierr.ClassifyHTTPStatus(resp.StatusCode, string(body), operation)
}

// jsonBody marshals payload for a request body, or returns nil for a
// body-less request.
func jsonBody(payload any) (io.Reader, error) {
	if payload == nil {
		return nil, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
