// Package balances aggregates a wallet's token balances on a chain,
// intersected with the deployment's token allow-list.
package balances

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vitwit/checkout/api"
	"github.com/vitwit/checkout/logger"
	"github.com/vitwit/checkout/types"
)

// Indexer is the balance read API. *api.Client satisfies it.
type Indexer interface {
	ListBalances(ctx context.Context, wallet common.Address, chainID uint64) ([]types.TokenBalance, error)
}

// AllowLister is the token allow-list API. *api.Client satisfies it.
type AllowLister interface {
	TokenAllowList(ctx context.Context, chainID uint64, filter api.AllowListFilter) ([]types.TokenInfo, error)
}

// ChainResolver resolves the chain id when the caller did not supply one.
type ChainResolver interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// RetryPolicy bounds the exponential backoff applied to the balance read.
// Attempts = Retries + 1; the delay doubles each attempt up to MaxDelay.
type RetryPolicy struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy matches the indexer's observed transient-failure window.
var DefaultRetryPolicy = RetryPolicy{
	Retries:   2,
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  5 * time.Second,
}

// Params configures one aggregation call.
type Params struct {
	Wallet common.Address

	// ChainID of the destination chain; zero means resolve via the provider.
	ChainID uint64

	// AllowZero keeps tokens whose balance is not positive.
	AllowZero bool

	Retry RetryPolicy
}

// Aggregator reads allowed balances with retry.
type Aggregator struct {
	indexer   Indexer
	allowList AllowLister
	resolver  ChainResolver
	log       logger.Logger
}

func NewAggregator(indexer Indexer, allowList AllowLister, resolver ChainResolver, log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Aggregator{
		indexer:   indexer,
		allowList: allowList,
		resolver:  resolver,
		log:       log,
	}
}

// GetAllowedBalances returns the allow-list for the chain and the wallet's
// balances restricted to it. On retry exhaustion the last error propagates
// unwrapped; partial results are never returned.
func (a *Aggregator) GetAllowedBalances(ctx context.Context, p Params) ([]types.TokenInfo, *types.BalanceSnapshot, error) {
	chainID := p.ChainID
	if chainID == 0 {
		id, err := a.resolver.ChainID(ctx)
		if err != nil {
			return nil, nil, err
		}
		chainID = id.Uint64()
	}

	raw, err := a.fetchWithRetry(ctx, p.Wallet, chainID, p.Retry)
	if err != nil {
		return nil, nil, err
	}

	allowed, err := a.allowList.TokenAllowList(ctx, chainID, api.AllowListAll)
	if err != nil {
		return nil, nil, err
	}

	allowedKeys := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		allowedKeys[t.Key()] = struct{}{}
	}

	kept := make([]types.TokenBalance, 0, len(raw))
	for _, b := range raw {
		if _, ok := allowedKeys[b.Token.Key()]; !ok {
			continue
		}
		if !p.AllowZero && b.Balance.Sign() <= 0 {
			continue
		}
		kept = append(kept, b)
	}

	return allowed, &types.BalanceSnapshot{
		Wallet:   p.Wallet,
		ChainID:  chainID,
		Balances: kept,
	}, nil
}

func (a *Aggregator) fetchWithRetry(ctx context.Context, wallet common.Address, chainID uint64, policy RetryPolicy) ([]types.TokenBalance, error) {
	if policy.BaseDelay <= 0 {
		policy = DefaultRetryPolicy
	}

	var lastErr error
	delay := policy.BaseDelay
	for attempt := 0; attempt <= policy.Retries; attempt++ {
		if attempt > 0 {
			a.log.Debug("retrying balance read", map[string]any{
				"attempt": attempt,
				"chainId": chainID,
				"error":   lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if policy.MaxDelay > 0 && delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}

		raw, err := a.indexer.ListBalances(ctx, wallet, chainID)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
