package couch

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Client instance.
type Option func(*Client)

// WithBasicAuth sets credentials sent as an Authorization header on every
// request. Credentials embedded in the base URL take effect the same way
// and are stripped from the URL so they never appear in logs.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithTimeout bounds each backend request end to end. Zero means no
// client-side timeout; cancellation then comes only from the caller's
// context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithHTTPClient sets a custom HTTP client (e.g. for proxies or transport
// tuning). WithTimeout applied after this option mutates the given client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets a structured logger. When set, the client emits a debug
// line per request with method, path, status and timing. If not set, no
// logs are emitted.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}
