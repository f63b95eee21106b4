package router

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/vitwit/checkout/api"
	"github.com/vitwit/checkout/config"
	"github.com/vitwit/checkout/types"
)

// Contract override keys looked up in the remote config's dex overrides.
const (
	overrideBridgeContract = "bridge"
	overrideSwapRouter     = "swapRouter"
)

func contractAddress(cfg *config.RemoteConfig, key string) *common.Address {
	if raw, ok := cfg.Dex.Overrides[key]; ok && raw != "" {
		addr := common.HexToAddress(raw)
		return &addr
	}
	return nil
}

// gasCost converts a gas unit estimate to a native-token fee. An unknown
// price yields zero, per the gas package's contract.
func gasCost(gasPrice *big.Int, gasEstimate uint64) *big.Int {
	cost := new(big.Int)
	if gasPrice != nil {
		cost.Mul(gasPrice, new(big.Int).SetUint64(gasEstimate))
	}
	return cost
}

// bridgeCandidate prices moving the required token from one source chain.
// The source-chain representation of the destination token comes from the
// remote config for the gas token, or from the source snapshot for ERC20s;
// a token with neither resolves to no candidate. The int return counts
// quotes that succeeded, whether or not a route survived the balance check.
func (r *Router) bridgeCandidate(
	ctx context.Context,
	cfg *config.RemoteConfig,
	p Params,
	shortfall types.Shortfall,
	sourceChainID uint64,
	snapshot *types.BalanceSnapshot,
	gasPrice *big.Int,
) (*types.FundingRoute, int, error) {
	sourceToken, ok := r.resolveSourceToken(cfg, p, sourceChainID, snapshot)
	if !ok {
		return nil, 0, nil
	}

	quote, err := r.bridge.GetBridgeQuote(ctx, api.BridgeQuoteRequest{
		SourceChainID:      sourceChainID,
		DestinationChainID: p.Balances.ChainID,
		TokenAddress:       sourceToken.Address,
		Amount:             shortfall.Delta.String(),
	})
	if err != nil {
		return nil, 0, types.NewCheckoutError(types.ErrBridgeGasEstimate,
			fmt.Sprintf("bridge quote from chain %d failed: %v", sourceChainID, err),
			map[string]any{"sourceChainId": sourceChainID})
	}

	// Spend in the bridged token: the shortfall plus the bridge fee. Gas is
	// paid in the source chain's native token and folds into the total so
	// ranking compares full costs.
	tokenCost := new(big.Int).Add(shortfall.Delta, quote.Fee)
	gasFee := gasCost(gasPrice, quote.GasEstimate)
	totalCost := new(big.Int).Add(tokenCost, gasFee)

	// The source wallet must hold the bridged amount plus fee outright.
	if snapshot.BalanceOf(sourceToken.Key()).Cmp(tokenCost) < 0 {
		return nil, 1, nil
	}

	bridgeContract := contractAddress(cfg, overrideBridgeContract)
	steps := make([]types.UnsignedTransaction, 0, 2)
	if sourceToken.Address != "" {
		// ERC20 deposits need an approval before the bridge pulls funds.
		tokenAddr := common.HexToAddress(sourceToken.Address)
		steps = append(steps, types.UnsignedTransaction{To: &tokenAddr, Value: new(big.Int)})
	}
	depositValue := new(big.Int)
	if sourceToken.Address == "" {
		depositValue = new(big.Int).Set(tokenCost)
	}
	steps = append(steps, types.UnsignedTransaction{
		To:       bridgeContract,
		Value:    depositValue,
		GasLimit: quote.GasEstimate,
	})

	return &types.FundingRoute{
		Type:             types.RouteBridge,
		SourceChainID:    sourceChainID,
		SourceToken:      sourceToken,
		DestinationToken: destinationTokenInfo(p),
		Amount:           new(big.Int).Set(shortfall.Delta),
		EstimatedFee:     quote.Fee,
		EstimatedGas:     gasFee,
		TotalCost:        totalCost,
		Steps:            steps,
	}, 1, nil
}

func (r *Router) resolveSourceToken(cfg *config.RemoteConfig, p Params, sourceChainID uint64, snapshot *types.BalanceSnapshot) (types.TokenInfo, bool) {
	if p.Requirement.Type == types.ItemNative {
		// The gas token is not resolvable through the indexer's lookup; its
		// per-chain contract representation lives only in the config mapping.
		mapped, ok := cfg.TokenMapping(strconv.FormatUint(sourceChainID, 10))
		if !ok {
			return types.TokenInfo{}, false
		}
		return types.TokenInfo{Symbol: p.NativeSymbol, Address: mapped, Decimals: 18}, true
	}

	want := strings.ToLower(p.Requirement.TokenAddress.Hex())
	for _, b := range snapshot.Balances {
		dest := destinationTokenInfo(p)
		if b.Token.Symbol == dest.Symbol && b.Token.Key() != want {
			return b.Token, true
		}
		if b.Token.Key() == want {
			return b.Token, true
		}
	}
	return types.TokenInfo{}, false
}

func destinationTokenInfo(p Params) types.TokenInfo {
	if p.Requirement.Type == types.ItemNative {
		return types.TokenInfo{Symbol: p.NativeSymbol, Decimals: 18}
	}
	for _, b := range p.Balances.Balances {
		if b.Token.Key() == strings.ToLower(p.Requirement.TokenAddress.Hex()) {
			return b.Token
		}
	}
	return types.TokenInfo{Address: p.Requirement.TokenAddress.Hex(), Decimals: 18}
}

// swapCandidates prices converting each other destination-chain token the
// wallet holds into the required token. The venue availability gate runs
// once; 403 disables every swap candidate without error. The int return
// counts quotes that succeeded, including pairs the balance check then
// discarded.
func (r *Router) swapCandidates(
	ctx context.Context,
	cfg *config.RemoteConfig,
	p Params,
	shortfall types.Shortfall,
	gasPrice *big.Int,
) ([]types.FundingRoute, int, error) {
	available, err := r.dex.DexAvailable(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("dex availability check: %w", err)
	}
	if !available {
		return nil, 0, nil
	}

	requiredKey := requirementKey(p.Requirement)
	swapRouter := contractAddress(cfg, overrideSwapRouter)

	var (
		routes []types.FundingRoute
		quoted int
	)
	for _, b := range p.Balances.Balances {
		if b.Token.Key() == requiredKey {
			continue
		}

		quote, err := r.swap.GetSwapQuote(ctx, api.SwapQuoteRequest{
			ChainID:   p.Balances.ChainID,
			FromToken: b.Token.Key(),
			ToToken:   requiredKey,
			AmountOut: shortfall.Delta.String(),
		})
		if err != nil {
			// No pool or stale pricing for this pair; other pairs may still
			// route.
			r.log.Debug("swap quote unavailable", map[string]any{
				"fromToken": b.Token.Symbol,
				"error":     err.Error(),
			})
			continue
		}
		quoted++

		// Equivalent input of the output amount; the venue's spread is the
		// fee component for ranking purposes.
		fee := new(big.Int).Sub(quote.AmountIn, shortfall.Delta)
		if fee.Sign() < 0 {
			fee = new(big.Int)
		}
		if b.Balance.Cmp(quote.AmountIn) < 0 {
			continue
		}
		gasFee := gasCost(gasPrice, quote.GasEstimate)

		steps := []types.UnsignedTransaction{}
		if b.Token.Address != "" {
			tokenAddr := common.HexToAddress(b.Token.Address)
			steps = append(steps, types.UnsignedTransaction{To: &tokenAddr, Value: new(big.Int)})
		}
		steps = append(steps, types.UnsignedTransaction{
			To:       swapRouter,
			Value:    new(big.Int),
			GasLimit: quote.GasEstimate,
		})

		routes = append(routes, types.FundingRoute{
			Type:             types.RouteSwap,
			SourceChainID:    p.Balances.ChainID,
			SourceToken:      b.Token,
			DestinationToken: destinationTokenInfo(p),
			Amount:           new(big.Int).Set(shortfall.Delta),
			EstimatedFee:     fee,
			EstimatedGas:     gasFee,
			TotalCost:        new(big.Int).Add(quote.AmountIn, gasFee),
			Steps:            steps,
		})
	}
	return routes, quoted, nil
}

// onRampCandidate passes through the configured provider's fixed-fee
// estimate. On-ramps execute off-chain, so the route has a single step and
// no gas component.
func (r *Router) onRampCandidate(cfg *config.RemoteConfig, p Params, shortfall types.Shortfall) (*types.FundingRoute, error) {
	bps := cfg.OnRamp.FeeBasisPoints
	if bps <= 0 {
		return nil, nil
	}

	amount := decimal.NewFromBigInt(shortfall.Delta, 0)
	fee := amount.Mul(decimal.New(bps, -4)).Ceil().BigInt()

	return &types.FundingRoute{
		Type:             types.RouteOnRamp,
		SourceChainID:    p.Balances.ChainID,
		SourceToken:      destinationTokenInfo(p),
		DestinationToken: destinationTokenInfo(p),
		Amount:           new(big.Int).Set(shortfall.Delta),
		EstimatedFee:     fee,
		EstimatedGas:     new(big.Int),
		TotalCost:        new(big.Int).Add(shortfall.Delta, fee),
		Steps:            []types.UnsignedTransaction{{Value: new(big.Int)}},
	}, nil
}

// affordsOwnGas checks that executing the route leaves enough native balance
// for the route's own gas. TotalCost already folds the gas fee in, so a
// native-token spend reduces to one comparison; a token spend checks gas and
// spend against their separate balances.
func (r *Router) affordsOwnGas(route types.FundingRoute, p Params) bool {
	if route.Type == types.RouteOnRamp {
		return true
	}

	snapshot := p.Balances
	if route.Type == types.RouteBridge {
		snapshot = p.SourceBalances[route.SourceChainID]
		if snapshot == nil {
			return false
		}
	}

	if route.SourceToken.Address == "" && route.Type != types.RouteBridge {
		return snapshot.BalanceOf(types.NativeTokenKey).Cmp(route.TotalCost) >= 0
	}

	// Gas is paid in the source chain's native token. On a bridge source the
	// native symbol is unknown here, so matching falls back to the native
	// sentinel.
	symbol := p.NativeSymbol
	if route.Type == types.RouteBridge {
		symbol = ""
	}
	tokenCost := new(big.Int).Sub(route.TotalCost, route.EstimatedGas)
	return HasEnoughBalanceForGas(snapshot.Balances, route.EstimatedGas, symbol) &&
		snapshot.BalanceOf(route.SourceToken.Key()).Cmp(tokenCost) >= 0
}
