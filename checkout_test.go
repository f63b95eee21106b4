package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/checkout/api"
	"github.com/vitwit/checkout/executor"
	"github.com/vitwit/checkout/types"
)

const (
	buyer       = "0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1"
	seller      = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"
	usdcAddress = "0x00000000000000000000000000000000000000aa"
	ethxAddress = "0x00000000000000000000000000000000000000cc"
)

// backend is a fake deployment of every checkout service on one httptest
// server.
type backend struct {
	mu sync.Mutex

	balances     map[uint64][]map[string]any
	riskEnabled  bool
	riskLevels   []string
	verdict      string
	dexAvailable bool
	swapAmountIn string
	sanctionHits int
	configHits   int
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/config", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.configHits++
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"dex":            map[string]any{},
			"riskAssessment": map[string]any{"enabled": b.riskEnabled, "levels": b.riskLevels},
			"imxAddressMapping": map[string]string{
				"1": "0x00000000000000000000000000000000000000ee",
			},
		})
	})

	mux.HandleFunc("GET /v1/chains/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/allowlist/tokens") {
			json.NewEncoder(w).Encode(map[string]any{"tokens": []map[string]any{
				{"symbol": "IMX", "decimals": 18},
				{"symbol": "USDC", "address": usdcAddress, "decimals": 6},
				{"symbol": "ETHX", "address": ethxAddress, "decimals": 18},
			}})
			return
		}

		var chainID uint64
		fmt.Sscanf(r.URL.Path, "/v1/chains/%d/", &chainID)
		json.NewEncoder(w).Encode(map[string]any{"result": b.balances[chainID]})
	})

	mux.HandleFunc("POST /v1/availability/dex", func(w http.ResponseWriter, r *http.Request) {
		if !b.dexAvailable {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /v2/sanctions/check", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.sanctionHits++
		b.mu.Unlock()
		var entries []map[string]any
		json.NewDecoder(r.Body).Decode(&entries)
		out := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			out = append(out, map[string]any{"address": e["address"], "risk": b.verdict})
		}
		json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("POST /v1/quotes/swap", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"amountIn": b.swapAmountIn, "gasEstimate": 50})
	})

	mux.HandleFunc("POST /v1/bridge/quote", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"fee": "80", "gasEstimate": 30})
	})

	return mux
}

func sufficientBackend() *backend {
	return &backend{
		balances: map[uint64][]map[string]any{
			13371: {
				{"balance": "1000000", "contract_address": usdcAddress, "symbol": "USDC", "decimals": 6},
				{"balance": "500000000000000000000", "symbol": "IMX", "decimals": 18},
			},
		},
		verdict:      "Low",
		dexAvailable: true,
	}
}

type fakeChainProvider struct {
	mu          sync.Mutex
	submissions []common.Hash
}

func (f *fakeChainProvider) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(13371), nil
}

func (f *fakeChainProvider) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(10), nil
}

func (f *fakeChainProvider) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (f *fakeChainProvider) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{}, nil
}

func (f *fakeChainProvider) SendTransaction(_ context.Context, tx types.UnsignedTransaction) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := common.BytesToHash([]byte{byte(len(f.submissions) + 1)})
	f.submissions = append(f.submissions, hash)
	return hash, nil
}

func (f *fakeChainProvider) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful}, nil
}

func newTestCheckout(t *testing.T, b *backend, opts ...Option) *Checkout {
	t.Helper()
	server := httptest.NewServer(b.handler())
	t.Cleanup(server.Close)

	opts = append(opts, WithEndpoints(api.Endpoints{
		CheckoutAPI: server.URL,
		IndexerAPI:  server.URL,
		RiskAPI:     server.URL,
		BridgeAPI:   server.URL,
	}))
	return New(types.EnvironmentSandbox, opts...)
}

func baseParams(provider CheckoutProvider) SmartCheckoutParams {
	return SmartCheckoutParams{
		Wallet:    buyer,
		Recipient: seller,
		ChainID:   13371,
		Requirements: []types.ItemRequirement{{
			Type:         types.ItemERC20,
			Amount:       big.NewInt(500000),
			TokenAddress: common.HexToAddress(usdcAddress),
		}},
		NativeSymbol: "IMX",
		Provider:     provider,
	}
}

func TestSmartCheckoutSufficient(t *testing.T) {
	var events []Event
	c := newTestCheckout(t, sufficientBackend(), WithEventHandler(func(e Event) {
		events = append(events, e)
	}))

	result, err := c.SmartCheckout(context.Background(), baseParams(&fakeChainProvider{}))
	require.NoError(t, err)

	assert.True(t, result.Sufficient)
	assert.Equal(t, types.StateSufficient, result.State)
	assert.Empty(t, result.FundingRoutes)
	require.Len(t, result.TransactionRequirements, 1)
	assert.True(t, result.TransactionRequirements[0].Sufficient)
	assert.Equal(t, "USDC", result.TransactionRequirements[0].Token.Symbol)
	assert.Equal(t, int32(6), result.TransactionRequirements[0].Token.Decimals)
	assert.Equal(t, []Event{EventSuccess}, events)

	c.Close()
	assert.Equal(t, []Event{EventSuccess, EventClose}, events)
}

func TestSanctionedAddressShortCircuits(t *testing.T) {
	b := sufficientBackend()
	b.riskEnabled = true
	b.riskLevels = []string{"severe"}
	b.verdict = "Severe"
	c := newTestCheckout(t, b)

	result, err := c.SmartCheckout(context.Background(), baseParams(&fakeChainProvider{}))
	require.Error(t, err)

	ce, ok := types.AsCheckoutError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrSanctionedAddress, ce.Code)

	// Sufficiency is irrelevant once a participant is flagged.
	assert.Equal(t, types.StateFailed, result.State)
	assert.True(t, result.Risk.Sanctioned())
}

func TestShortfallRoutedThroughSwap(t *testing.T) {
	b := sufficientBackend()
	// 100 USDC held against a 500000 requirement; the ETHX pool closes it.
	b.balances[13371] = []map[string]any{
		{"balance": "100", "contract_address": usdcAddress, "symbol": "USDC", "decimals": 6},
		{"balance": "100000000000000000000", "contract_address": ethxAddress, "symbol": "ETHX", "decimals": 18},
		{"balance": "500000000000000000000", "symbol": "IMX", "decimals": 18},
	}
	b.swapAmountIn = "520000"
	c := newTestCheckout(t, b)

	result, err := c.SmartCheckout(context.Background(), baseParams(&fakeChainProvider{}))
	require.NoError(t, err)

	assert.False(t, result.Sufficient)
	assert.Equal(t, types.StateRouted, result.State)
	require.Len(t, result.FundingRoutes, 1)
	assert.Equal(t, types.RouteSwap, result.FundingRoutes[0].Type)
	assert.Equal(t, int64(520500), result.FundingRoutes[0].TotalCost.Int64(), "input 520000 + gas 50 at price 10")
}

func TestUnroutableShortfall(t *testing.T) {
	b := sufficientBackend()
	b.balances[13371] = []map[string]any{
		{"balance": "100", "contract_address": usdcAddress, "symbol": "USDC", "decimals": 6},
	}
	b.dexAvailable = false
	c := newTestCheckout(t, b)

	result, err := c.SmartCheckout(context.Background(), baseParams(&fakeChainProvider{}))
	require.Error(t, err)

	ce, ok := types.AsCheckoutError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrUnroutable, ce.Code)
	assert.Equal(t, types.StateUnroutable, result.State)
}

func TestExecuteRunsPlanAfterEvaluation(t *testing.T) {
	provider := &fakeChainProvider{}
	c := newTestCheckout(t, sufficientBackend())

	params := baseParams(provider)
	params.Execute = true
	to := common.HexToAddress(seller)
	params.Plan = &executor.Plan{
		Approvals:   []types.UnsignedTransaction{{To: &to}},
		Fulfilments: []types.UnsignedTransaction{{To: &to, Value: big.NewInt(1)}},
	}

	result, err := c.SmartCheckout(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, types.StateSucceeded, result.State)
	assert.Len(t, provider.submissions, 2)
}

func TestParamsAreValidated(t *testing.T) {
	c := newTestCheckout(t, sufficientBackend())

	params := baseParams(&fakeChainProvider{})
	params.Wallet = "not-an-address"
	_, err := c.SmartCheckout(context.Background(), params)
	assert.Error(t, err)

	params = baseParams(&fakeChainProvider{})
	params.Requirements = nil
	_, err = c.SmartCheckout(context.Background(), params)
	assert.Error(t, err)
}

func TestExecuteRequiresPlan(t *testing.T) {
	provider := &fakeChainProvider{}
	c := newTestCheckout(t, sufficientBackend())

	params := baseParams(provider)
	params.Execute = true

	_, err := c.SmartCheckout(context.Background(), params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Plan")
	assert.Empty(t, provider.submissions)
}

func TestRemoteConfigFetchedOncePerInstance(t *testing.T) {
	b := sufficientBackend()
	b.riskEnabled = true
	b.riskLevels = []string{"severe"}
	c := newTestCheckout(t, b)

	_, err := c.SmartCheckout(context.Background(), baseParams(&fakeChainProvider{}))
	require.NoError(t, err)
	_, err = c.SmartCheckout(context.Background(), baseParams(&fakeChainProvider{}))
	require.NoError(t, err)

	assert.Equal(t, 1, b.configHits, "config is cached for the process lifetime")
	assert.Equal(t, 2, b.sanctionHits, "risk is screened fresh per attempt")
}
