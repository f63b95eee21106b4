package checkout

import (
	"net/http"
	"time"

	"github.com/vitwit/checkout/api"
	"github.com/vitwit/checkout/logger"
	"github.com/vitwit/checkout/metrics"
)

type Option func(*Checkout)

func WithLogger(l logger.Logger) Option {
	return func(c *Checkout) {
		c.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Checkout) {
		c.metrics = r
	}
}

// WithHTTPClient substitutes the transport used for every backend API call.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Checkout) {
		c.httpClient = h
	}
}

// WithEndpoints overlays custom base URLs onto the environment defaults, for
// isolated testing of the routing logic.
func WithEndpoints(e api.Endpoints) Option {
	return func(c *Checkout) {
		c.endpoints = c.endpoints.Merge(e)
	}
}

// WithTimeout caps each SmartCheckout call. Zero means no cap beyond the
// balance retry policy's backoff ceiling.
func WithTimeout(t time.Duration) Option {
	return func(c *Checkout) {
		c.timeout = t
	}
}

// WithEventHandler registers the lifecycle event sink consumed by the
// presentation layer.
func WithEventHandler(h func(Event)) Option {
	return func(c *Checkout) {
		c.events = h
	}
}
