// Package router searches funding routes that close a shortfall: bridging
// the same token from another chain, swapping another token on the same
// chain, or on-ramping from an off-chain source.
package router

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/vitwit/checkout/api"
	"github.com/vitwit/checkout/config"
	"github.com/vitwit/checkout/logger"
	"github.com/vitwit/checkout/types"
)

// BridgeQuoter prices cross-chain transfers. *api.Client satisfies it.
type BridgeQuoter interface {
	GetBridgeQuote(ctx context.Context, req api.BridgeQuoteRequest) (*api.BridgeQuote, error)
}

// SwapQuoter prices same-chain conversions. *api.Client satisfies it.
type SwapQuoter interface {
	GetSwapQuote(ctx context.Context, req api.SwapQuoteRequest) (*api.SwapQuote, error)
}

// Availability gates the swap venue. *api.Client satisfies it.
type Availability interface {
	DexAvailable(ctx context.Context) (bool, error)
}

// GasPricer supplies the effective gas price on the destination chain. A nil
// price means "unknown" and is treated as zero cost, matching the gas
// package's contract.
type GasPricer interface {
	EffectiveGasPrice(ctx context.Context) (*big.Int, error)
}

// ConfigSource supplies token mappings, dex overrides, and on-ramp fees.
type ConfigSource interface {
	Load(ctx context.Context) (*config.RemoteConfig, error)
}

// Router plans funding routes. Stateless across calls.
type Router struct {
	cfg    ConfigSource
	bridge BridgeQuoter
	swap   SwapQuoter
	dex    Availability
	gas    GasPricer
	log    logger.Logger
}

func NewRouter(cfg ConfigSource, bridge BridgeQuoter, swap SwapQuoter, dex Availability, gas GasPricer, log logger.Logger) *Router {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Router{cfg: cfg, bridge: bridge, swap: swap, dex: dex, gas: gas, log: log}
}

// Params configures one routing attempt.
type Params struct {
	Requirement types.ItemRequirement
	Wallet      common.Address

	// Balances is the destination-chain snapshot the shortfall is computed
	// against.
	Balances *types.BalanceSnapshot

	// SourceBalances holds snapshots on other chains, the bridge candidate
	// pool, keyed by chain id.
	SourceBalances map[uint64]*types.BalanceSnapshot

	// NativeSymbol is the destination chain's gas token symbol.
	NativeSymbol string

	// DisableOnRamp skips the off-chain candidate, for callers without a
	// fiat flow.
	DisableOnRamp bool
}

// Outcome is the routing result when no typed error occurred.
type Outcome struct {
	Satisfied bool
	Shortfall types.Shortfall
	Routes    []types.FundingRoute
}

// requirementKey is the snapshot identity the requirement draws from.
func requirementKey(req types.ItemRequirement) string {
	switch req.Type {
	case types.ItemNative:
		return types.NativeTokenKey
	case types.ItemERC20, types.ItemERC721:
		return strings.ToLower(req.TokenAddress.Hex())
	default:
		return types.NativeTokenKey
	}
}

// ComputeShortfall derives required − available for a requirement against a
// snapshot, floored at zero.
func ComputeShortfall(req types.ItemRequirement, snapshot *types.BalanceSnapshot) types.Shortfall {
	available := snapshot.BalanceOf(requirementKey(req))
	delta := new(big.Int).Sub(req.Amount, available)
	if delta.Sign() < 0 {
		delta = new(big.Int)
	}
	return types.Shortfall{
		Requirement: req,
		Required:    new(big.Int).Set(req.Amount),
		Available:   available,
		Delta:       delta,
	}
}

// Route computes the shortfall and, when one exists, prices every candidate
// concurrently, discards candidates that cannot afford their own gas, and
// returns the cheapest feasible route.
//
// Typed failures: UNROUTABLE when no candidate could even be priced,
// BRIDGE_GAS_ESTIMATE_ERROR when the only pricing path was a bridge quote
// that failed, API_ERROR when a transport failure eliminated every
// candidate, INSUFFICIENT_FUNDS when candidates were priced but none is
// feasible.
func (r *Router) Route(ctx context.Context, p Params) (*Outcome, error) {
	shortfall := ComputeShortfall(p.Requirement, p.Balances)
	if shortfall.Satisfied() {
		return &Outcome{Satisfied: true, Shortfall: shortfall}, nil
	}

	cfg, err := r.cfg.Load(ctx)
	if err != nil {
		return nil, types.NewCheckoutError(types.ErrAPIError, fmt.Sprintf("remote config unavailable: %v", err), nil)
	}

	gasPrice, err := r.gas.EffectiveGasPrice(ctx)
	if err != nil {
		return nil, types.NewCheckoutError(types.ErrAPIError, fmt.Sprintf("gas price read failed: %v", err), nil)
	}

	var (
		mu         sync.Mutex
		candidates []types.FundingRoute
		priced     int
		bridgeErr  error
		apiErr     error
	)
	collect := func(routes []types.FundingRoute, quoted int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			r.log.Warn("candidate pricing failed", map[string]any{"error": err.Error()})
			if ce, ok := types.AsCheckoutError(err); ok && ce.Code == types.ErrBridgeGasEstimate {
				bridgeErr = err
				return
			}
			apiErr = err
			return
		}
		priced += quoted
		candidates = append(candidates, routes...)
	}

	// Candidates share no mutable state, so they price concurrently; only
	// selection synchronizes on all results.
	g, gctx := errgroup.WithContext(ctx)
	for chainID, snapshot := range p.SourceBalances {
		chainID, snapshot := chainID, snapshot
		g.Go(func() error {
			route, quoted, err := r.bridgeCandidate(gctx, cfg, p, shortfall, chainID, snapshot, gasPrice)
			var routes []types.FundingRoute
			if route != nil {
				routes = append(routes, *route)
			}
			collect(routes, quoted, err)
			return nil
		})
	}
	g.Go(func() error {
		routes, quoted, err := r.swapCandidates(gctx, cfg, p, shortfall, gasPrice)
		collect(routes, quoted, err)
		return nil
	})
	if !p.DisableOnRamp {
		g.Go(func() error {
			route, err := r.onRampCandidate(cfg, p, shortfall)
			if route != nil {
				collect([]types.FundingRoute{*route}, 1, err)
				return nil
			}
			collect(nil, 0, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, types.NewCheckoutError(types.ErrAPIError, err.Error(), nil)
	}

	feasible := make([]types.FundingRoute, 0, len(candidates))
	for _, c := range candidates {
		if r.affordsOwnGas(c, p) {
			feasible = append(feasible, c)
		}
	}

	if len(feasible) == 0 {
		if priced == 0 {
			if bridgeErr != nil {
				return nil, bridgeErr
			}
			if apiErr != nil {
				// A transport failure wiped out a whole candidate family; the
				// shortfall was never genuinely evaluated.
				return nil, types.NewCheckoutError(types.ErrAPIError,
					fmt.Sprintf("candidate pricing failed: %v", apiErr), nil)
			}
			return nil, types.NewCheckoutError(types.ErrUnroutable,
				fmt.Sprintf("no funding route can be priced for %s shortfall of %s", p.Requirement.Type, shortfall.Delta),
				map[string]any{"shortfall": shortfall.Delta.String()})
		}
		return nil, types.NewCheckoutError(types.ErrInsufficientFunds,
			fmt.Sprintf("%d route(s) priced, none closes the %s shortfall", priced, shortfall.Delta),
			map[string]any{"priced": priced})
	}

	// Cheapest first; ties go to the route with fewer steps, since fewer
	// steps means fewer independent failure points.
	sort.SliceStable(feasible, func(i, j int) bool {
		if c := feasible[i].TotalCost.Cmp(feasible[j].TotalCost); c != 0 {
			return c < 0
		}
		return len(feasible[i].Steps) < len(feasible[j].Steps)
	})

	best := feasible[0]
	r.log.Info("funding route selected", map[string]any{
		"type":      best.Type.String(),
		"totalCost": best.TotalCost.String(),
		"steps":     len(best.Steps),
	})
	return &Outcome{Shortfall: shortfall, Routes: []types.FundingRoute{best}}, nil
}

// HasEnoughBalanceForGas reports whether the snapshot's balance in the gas
// token covers a fee, matching by symbol or by the native sentinel. The
// comparison is non-strict: a balance exactly equal to the fee is enough.
func HasEnoughBalanceForGas(balances []types.TokenBalance, fee *big.Int, symbol string) bool {
	for _, b := range balances {
		if b.Token.Symbol == symbol || (b.Token.Key() == types.NativeTokenKey && symbol == "") {
			return b.Balance.Cmp(fee) >= 0
		}
	}
	return false
}
