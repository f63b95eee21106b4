package api

import (
	"context"
	"fmt"
	"math/big"
)

// BridgeQuoteRequest asks for the cost of moving an amount of a token from a
// source chain to the destination chain.
type BridgeQuoteRequest struct {
	SourceChainID      uint64 `json:"sourceChainId"`
	DestinationChainID uint64 `json:"destinationChainId"`
	TokenAddress       string `json:"tokenAddress"`
	Amount             string `json:"amount"`
}

// BridgeQuote prices a cross-chain transfer: the bridge fee plus a gas unit
// estimate for the bridge deposit transaction, both in source-chain terms.
type BridgeQuote struct {
	Fee         *big.Int
	GasEstimate uint64
}

type bridgeQuoteResponse struct {
	Fee         string `json:"fee"`
	GasEstimate uint64 `json:"gasEstimate"`
}

// GetBridgeQuote fetches a bridge fee quote. The fee is denominated in the
// bridged token.
func (c *Client) GetBridgeQuote(ctx context.Context, req BridgeQuoteRequest) (*BridgeQuote, error) {
	var resp bridgeQuoteResponse
	if err := c.postJSON(ctx, c.endpoints.BridgeAPI+"/v1/bridge/quote", req, &resp); err != nil {
		return nil, err
	}

	fee, ok := new(big.Int).SetString(resp.Fee, 10)
	if !ok {
		return nil, fmt.Errorf("bridge quote returned non-numeric fee %q", resp.Fee)
	}
	return &BridgeQuote{Fee: fee, GasEstimate: resp.GasEstimate}, nil
}

// SwapQuoteRequest asks how much of an input token buys a fixed amount of an
// output token on the same chain.
type SwapQuoteRequest struct {
	ChainID   uint64 `json:"chainId"`
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	AmountOut string `json:"amountOut"`
}

// SwapQuote prices a same-chain conversion: the required input amount and a
// gas unit estimate for the swap transaction.
type SwapQuote struct {
	AmountIn    *big.Int
	GasEstimate uint64
}

type swapQuoteResponse struct {
	AmountIn    string `json:"amountIn"`
	GasEstimate uint64 `json:"gasEstimate"`
}

// GetSwapQuote fetches a swap price quote. Quotes are best-effort and can go
// stale before execution.
func (c *Client) GetSwapQuote(ctx context.Context, req SwapQuoteRequest) (*SwapQuote, error) {
	var resp swapQuoteResponse
	if err := c.postJSON(ctx, c.endpoints.CheckoutAPI+"/v1/quotes/swap", req, &resp); err != nil {
		return nil, err
	}

	in, ok := new(big.Int).SetString(resp.AmountIn, 10)
	if !ok {
		return nil, fmt.Errorf("swap quote returned non-numeric amountIn %q", resp.AmountIn)
	}
	return &SwapQuote{AmountIn: in, GasEstimate: resp.GasEstimate}, nil
}
