// Package api contains the HTTP clients for the checkout backend services:
// balance indexer, token allow-list, remote config, dex availability,
// sanctions screening, and bridge fee quotes.
//
// Transport errors and non-success statuses are returned as plain errors, not
// typed checkout errors. Callers that need a typed surface (the funding
// router, the executor) wrap them; callers that need to distinguish transient
// transport failures (the balance aggregator, the config cache) get them raw.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vitwit/checkout/types"
)

// Endpoints holds the per-service base URLs for one environment. Any field
// may be overridden for isolated testing of the routing logic.
type Endpoints struct {
	CheckoutAPI string `yaml:"checkoutApi"`
	IndexerAPI  string `yaml:"indexerApi"`
	RiskAPI     string `yaml:"riskApi"`
	BridgeAPI   string `yaml:"bridgeApi"`
}

// DefaultEndpoints returns the well-known base URLs for an environment.
func DefaultEndpoints(env types.Environment) Endpoints {
	switch env {
	case types.EnvironmentProduction:
		return Endpoints{
			CheckoutAPI: "https://checkout-api.immutable.com",
			IndexerAPI:  "https://api.immutable.com",
			RiskAPI:     "https://risk-api.immutable.com",
			BridgeAPI:   "https://bridge-api.immutable.com",
		}
	default:
		return Endpoints{
			CheckoutAPI: "https://checkout-api.sandbox.immutable.com",
			IndexerAPI:  "https://api.sandbox.immutable.com",
			RiskAPI:     "https://risk-api.sandbox.immutable.com",
			BridgeAPI:   "https://bridge-api.sandbox.immutable.com",
		}
	}
}

// Merge overlays non-empty fields of o onto e.
func (e Endpoints) Merge(o Endpoints) Endpoints {
	if o.CheckoutAPI != "" {
		e.CheckoutAPI = o.CheckoutAPI
	}
	if o.IndexerAPI != "" {
		e.IndexerAPI = o.IndexerAPI
	}
	if o.RiskAPI != "" {
		e.RiskAPI = o.RiskAPI
	}
	if o.BridgeAPI != "" {
		e.BridgeAPI = o.BridgeAPI
	}
	return e
}

// Client is the shared HTTP client for all checkout backend services.
type Client struct {
	http      *http.Client
	endpoints Endpoints
	env       types.Environment
}

func NewClient(env types.Environment, endpoints Endpoints, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:      httpClient,
		endpoints: endpoints,
		env:       env,
	}
}

func (c *Client) Environment() types.Environment {
	return c.env
}

func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// getJSON issues a GET and decodes a 2xx JSON body into out.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// postJSON issues a POST with a JSON body and decodes a 2xx JSON response
// into out. out may be nil when the body is irrelevant.
func (c *Client) postJSON(ctx context.Context, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Status: resp.StatusCode, Body: string(raw), URL: req.URL.String()}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusError reports a non-success HTTP status with the raw body attached.
type StatusError struct {
	Status int
	Body   string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.Status, e.URL, e.Body)
}
