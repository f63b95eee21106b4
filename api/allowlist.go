package api

import (
	"context"
	"fmt"

	"github.com/vitwit/checkout/types"
)

// AllowListFilter selects which slice of the allow-list to fetch.
type AllowListFilter string

const (
	AllowListAll    AllowListFilter = "ALL"
	AllowListSwap   AllowListFilter = "SWAP"
	AllowListBridge AllowListFilter = "BRIDGE"
)

type allowListResponse struct {
	Tokens []allowListToken `json:"tokens"`
}

type allowListToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
}

// TokenAllowList fetches the tokens a deployment permits on a chain for the
// given filter. The native asset appears with an empty address.
func (c *Client) TokenAllowList(ctx context.Context, chainID uint64, filter AllowListFilter) ([]types.TokenInfo, error) {
	if filter == "" {
		filter = AllowListAll
	}
	url := fmt.Sprintf("%s/v1/chains/%d/allowlist/tokens?filter=%s", c.endpoints.CheckoutAPI, chainID, filter)

	var resp allowListResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	tokens := make([]types.TokenInfo, 0, len(resp.Tokens))
	for _, t := range resp.Tokens {
		tokens = append(tokens, types.TokenInfo{
			Address:  t.Address,
			Symbol:   t.Symbol,
			Name:     t.Name,
			Decimals: t.Decimals,
		})
	}
	return tokens, nil
}
