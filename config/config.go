// Package config provides the environment-scoped remote configuration client.
//
// One Client holds one in-memory cache slot. The first successful fetch
// populates it for the lifetime of the instance; a failed fetch is never
// cached and is returned to its caller only, so the next call retries.
// Concurrent callers before the first success each trigger their own fetch —
// the fetch is idempotent, so the race is harmless and no coalescing is done.
package config

import (
	"context"
	"sync/atomic"

	"github.com/vitwit/checkout/api"
	"github.com/vitwit/checkout/logger"
	"github.com/vitwit/checkout/types"
)

// RemoteConfig is the normalized configuration blob for one environment.
type RemoteConfig struct {
	Dex            DexConfig
	RiskAssessment RiskConfig

	// ImxAddressMapping resolves the gas token's contract representation per
	// chain. The gas token has no entry in the balance indexer's token
	// lookup, so bridge candidates must resolve it here.
	ImxAddressMapping map[string]string

	OnRamp OnRampConfig
}

type DexConfig struct {
	// Overrides substitutes contract addresses for isolated testing. Always
	// non-nil after a successful load.
	Overrides map[string]string
}

type RiskConfig struct {
	Enabled bool

	// Levels is the ordered list of risk levels that block execution,
	// matched case-insensitively. An empty list with Enabled=true means
	// "screen but never block".
	Levels []string
}

type OnRampConfig struct {
	FeeBasisPoints int64
}

// TokenMapping resolves the gas token's contract address on a chain.
func (c *RemoteConfig) TokenMapping(chainID string) (string, bool) {
	addr, ok := c.ImxAddressMapping[chainID]
	return addr, ok
}

// Fetcher is the transport the client loads config through. *api.Client
// satisfies it.
type Fetcher interface {
	GetRemoteConfig(ctx context.Context) (*api.RemoteConfigResponse, error)
}

// Client fetches and memoizes remote configuration. Construct one per
// environment selection; tests instantiate isolated clients rather than
// sharing module-level state.
type Client struct {
	fetcher Fetcher
	env     types.Environment
	log     logger.Logger

	cache atomic.Pointer[RemoteConfig]
}

func NewClient(env types.Environment, fetcher Fetcher, log logger.Logger) *Client {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Client{
		fetcher: fetcher,
		env:     env,
		log:     log,
	}
}

// Load returns the cached configuration, fetching it on first use. Fetch
// failures propagate unwrapped and leave the cache empty.
func (c *Client) Load(ctx context.Context) (*RemoteConfig, error) {
	if cached := c.cache.Load(); cached != nil {
		return cached, nil
	}

	resp, err := c.fetcher.GetRemoteConfig(ctx)
	if err != nil {
		c.log.Warn("remote config fetch failed", map[string]any{
			"environment": c.env.String(),
			"error":       err.Error(),
		})
		return nil, err
	}

	cfg := normalize(resp)
	c.cache.Store(cfg)
	c.log.Debug("remote config loaded", map[string]any{
		"environment":  c.env.String(),
		"riskEnabled":  cfg.RiskAssessment.Enabled,
		"mappingCount": len(cfg.ImxAddressMapping),
	})
	return cfg, nil
}

func normalize(resp *api.RemoteConfigResponse) *RemoteConfig {
	overrides := resp.Dex.Overrides
	if overrides == nil {
		overrides = map[string]string{}
	}
	mapping := resp.ImxAddressMapping
	if mapping == nil {
		mapping = map[string]string{}
	}
	return &RemoteConfig{
		Dex:               DexConfig{Overrides: overrides},
		RiskAssessment:    RiskConfig{Enabled: resp.RiskAssessment.Enabled, Levels: resp.RiskAssessment.Levels},
		ImxAddressMapping: mapping,
		OnRamp:            OnRampConfig{FeeBasisPoints: resp.OnRamp.FeeBasisPoints},
	}
}
