package balances

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/checkout/api"
	"github.com/vitwit/checkout/types"
)

var wallet = common.HexToAddress("0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1")

func token(symbol, address string, balance int64) types.TokenBalance {
	return types.TokenBalance{
		Balance:          big.NewInt(balance),
		FormattedBalance: decimal.NewFromInt(balance),
		Token:            types.TokenInfo{Symbol: symbol, Address: address, Decimals: 18},
	}
}

type fakeIndexer struct {
	calls    int
	failures int
	result   []types.TokenBalance
	err      error
}

func (f *fakeIndexer) ListBalances(context.Context, common.Address, uint64) ([]types.TokenBalance, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.result, nil
}

type fakeAllowList struct {
	tokens []types.TokenInfo
	err    error
}

func (f *fakeAllowList) TokenAllowList(context.Context, uint64, api.AllowListFilter) ([]types.TokenInfo, error) {
	return f.tokens, f.err
}

type fakeResolver struct {
	chainID int64
}

func (f *fakeResolver) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func fastRetry(retries int) RetryPolicy {
	return RetryPolicy{Retries: retries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestAllowListIntersection(t *testing.T) {
	indexer := &fakeIndexer{result: []types.TokenBalance{
		token("IMX", "", 100),
		token("USDC", "0x00000000000000000000000000000000000000aa", 50),
		token("SCAM", "0x00000000000000000000000000000000000000ff", 9999),
		token("ZRO", "0x00000000000000000000000000000000000000bb", 0),
	}}
	allowList := &fakeAllowList{tokens: []types.TokenInfo{
		{Symbol: "IMX"},
		{Symbol: "USDC", Address: "0x00000000000000000000000000000000000000aa"},
		{Symbol: "ZRO", Address: "0x00000000000000000000000000000000000000bb"},
	}}
	agg := NewAggregator(indexer, allowList, &fakeResolver{chainID: 13371}, nil)

	allowed, snapshot, err := agg.GetAllowedBalances(context.Background(), Params{
		Wallet: wallet,
		Retry:  fastRetry(0),
	})
	require.NoError(t, err)
	assert.Len(t, allowed, 3)
	assert.Equal(t, uint64(13371), snapshot.ChainID, "chain id resolved when absent")

	// SCAM dropped by the allow-list, ZRO dropped for zero balance.
	require.Len(t, snapshot.Balances, 2)
	assert.Equal(t, "IMX", snapshot.Balances[0].Token.Symbol)
	assert.Equal(t, "USDC", snapshot.Balances[1].Token.Symbol)
}

func TestAllowZeroKeepsEmptyBalances(t *testing.T) {
	indexer := &fakeIndexer{result: []types.TokenBalance{
		token("ZRO", "0x00000000000000000000000000000000000000bb", 0),
	}}
	allowList := &fakeAllowList{tokens: []types.TokenInfo{
		{Symbol: "ZRO", Address: "0x00000000000000000000000000000000000000bb"},
	}}
	agg := NewAggregator(indexer, allowList, &fakeResolver{}, nil)

	_, snapshot, err := agg.GetAllowedBalances(context.Background(), Params{
		Wallet:    wallet,
		ChainID:   1,
		AllowZero: true,
		Retry:     fastRetry(0),
	})
	require.NoError(t, err)
	assert.Len(t, snapshot.Balances, 1)
}

func TestRetryRecovers(t *testing.T) {
	indexer := &fakeIndexer{
		failures: 2,
		err:      errors.New("indexer flaking"),
		result:   []types.TokenBalance{token("IMX", "", 10)},
	}
	agg := NewAggregator(indexer, &fakeAllowList{tokens: []types.TokenInfo{{Symbol: "IMX"}}}, &fakeResolver{}, nil)

	_, snapshot, err := agg.GetAllowedBalances(context.Background(), Params{
		Wallet:  wallet,
		ChainID: 1,
		Retry:   fastRetry(2),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, indexer.calls)
	assert.Len(t, snapshot.Balances, 1)
}

func TestRetryExhaustionPropagatesUnwrapped(t *testing.T) {
	cause := errors.New("indexer down")
	indexer := &fakeIndexer{failures: 10, err: cause}
	agg := NewAggregator(indexer, &fakeAllowList{}, &fakeResolver{}, nil)

	_, snapshot, err := agg.GetAllowedBalances(context.Background(), Params{
		Wallet:  wallet,
		ChainID: 1,
		Retry:   fastRetry(1),
	})
	require.Error(t, err)
	assert.Same(t, cause, err, "transport error must propagate unwrapped")
	assert.Nil(t, snapshot, "partial results are never returned")
	assert.Equal(t, 2, indexer.calls)
}

func TestAllowListFailurePropagates(t *testing.T) {
	indexer := &fakeIndexer{result: []types.TokenBalance{token("IMX", "", 10)}}
	cause := errors.New("allowlist 502")
	agg := NewAggregator(indexer, &fakeAllowList{err: cause}, &fakeResolver{}, nil)

	_, _, err := agg.GetAllowedBalances(context.Background(), Params{Wallet: wallet, ChainID: 1, Retry: fastRetry(0)})
	assert.Same(t, cause, err)
}
