package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/checkout/types"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(types.EnvironmentSandbox, Endpoints{
		CheckoutAPI: server.URL,
		IndexerAPI:  server.URL,
		RiskAPI:     server.URL,
		BridgeAPI:   server.URL,
	}, server.Client())
}

func TestListBalances(t *testing.T) {
	wallet := common.HexToAddress("0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1")

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chains/13371/accounts/0xe4d365a5a8fc0dcee9e3c5985d7fcbab8b4a0fe1/balances", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"result": []map[string]any{
			{"balance": "1500000", "contract_address": "0xAA", "symbol": "USDC", "decimals": 6},
			{"balance": "2000000000000000000", "symbol": "IMX", "decimals": 18},
		}})
	})

	balances, err := c.ListBalances(context.Background(), wallet, 13371)
	require.NoError(t, err)
	require.Len(t, balances, 2)

	usdc := balances[0]
	assert.Equal(t, int64(1500000), usdc.Balance.Int64())
	assert.True(t, usdc.FormattedBalance.Equal(decimal.RequireFromString("1.5")))

	native := balances[1]
	assert.Equal(t, types.NativeTokenKey, native.Token.Key())
	assert.True(t, native.FormattedBalance.Equal(decimal.RequireFromString("2")))
}

func TestListBalancesRejectsNonNumeric(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": []map[string]any{
			{"balance": "lots", "symbol": "IMX", "decimals": 18},
		}})
	})

	_, err := c.ListBalances(context.Background(), common.Address{}, 1)
	assert.ErrorContains(t, err, "non-numeric balance")
}

func TestDexAvailable(t *testing.T) {
	status := http.StatusNoContent
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	ok, err := c.DexAvailable(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	// 403 is a deployment decision, not a failure.
	status = http.StatusForbidden
	ok, err = c.DexAvailable(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	status = http.StatusInternalServerError
	_, err = c.DexAvailable(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
}

func TestStatusErrorCarriesBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream indexer down"))
	})

	_, err := c.GetRemoteConfig(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Contains(t, se.Body, "upstream indexer down")
}

func TestCheckSanctionsRoundTrip(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var entries []SanctionsEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "0xaa", entries[0].TokenAddress)

		json.NewEncoder(w).Encode([]SanctionsResult{
			{Address: entries[0].Address, Risk: "Low"},
			{Address: entries[1].Address, Risk: "Severe", RiskReason: "ofac"},
		})
	})

	results, err := c.CheckSanctions(context.Background(), []SanctionsEntry{
		{Address: "0x01", TokenAddress: "0xaa", Amount: "100"},
		{Address: "0x02"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Severe", results[1].Risk)
	assert.Equal(t, "ofac", results[1].RiskReason)
}

func TestGetSwapQuoteRejectsNonNumeric(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"amountIn": "NaN", "gasEstimate": 1})
	})

	_, err := c.GetSwapQuote(context.Background(), SwapQuoteRequest{ChainID: 1})
	assert.ErrorContains(t, err, "non-numeric amountIn")
}

func TestEndpointsMerge(t *testing.T) {
	base := DefaultEndpoints(types.EnvironmentProduction)
	merged := base.Merge(Endpoints{IndexerAPI: "http://localhost:9000"})

	assert.Equal(t, "http://localhost:9000", merged.IndexerAPI)
	assert.Equal(t, base.CheckoutAPI, merged.CheckoutAPI)
	assert.Equal(t, base.RiskAPI, merged.RiskAPI)
}
