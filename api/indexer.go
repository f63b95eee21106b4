package api

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/vitwit/checkout/types"
)

type indexerBalancesResponse struct {
	Result []indexerBalance `json:"result"`
}

type indexerBalance struct {
	Balance         string `json:"balance"`
	ContractAddress string `json:"contract_address"`
	Symbol          string `json:"symbol"`
	Name            string `json:"name"`
	Decimals        int32  `json:"decimals"`
}

// ListBalances reads every token balance the indexer holds for a wallet on a
// chain. The native asset comes back with an empty contract address.
func (c *Client) ListBalances(ctx context.Context, wallet common.Address, chainID uint64) ([]types.TokenBalance, error) {
	url := fmt.Sprintf("%s/v1/chains/%d/accounts/%s/balances", c.endpoints.IndexerAPI, chainID, strings.ToLower(wallet.Hex()))

	var resp indexerBalancesResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	balances := make([]types.TokenBalance, 0, len(resp.Result))
	for _, b := range resp.Result {
		raw, ok := new(big.Int).SetString(b.Balance, 10)
		if !ok {
			return nil, fmt.Errorf("indexer returned non-numeric balance %q for %s", b.Balance, b.Symbol)
		}
		balances = append(balances, types.TokenBalance{
			Balance:          raw,
			FormattedBalance: decimal.NewFromBigInt(raw, -b.Decimals),
			Token: types.TokenInfo{
				Symbol:   b.Symbol,
				Name:     b.Name,
				Decimals: b.Decimals,
				Address:  b.ContractAddress,
			},
		})
	}
	return balances, nil
}
