// Package provider adapts a go-ethereum client plus a caller-supplied signer
// into the read and submit surfaces the SDK consumes. Private keys stay on
// the signer's side of the boundary.
package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vitwit/checkout/types"
)

// Signer signs and submits a prepared transaction, returning its hash. The
// wallet-connection flow supplies it.
type Signer interface {
	SendTransaction(ctx context.Context, tx types.UnsignedTransaction) (common.Hash, error)
}

// Provider bundles chain reads (ethclient) with transaction submission (the
// signer). It satisfies executor.Provider, gas.FeeReader, and the balance
// aggregator's chain resolver.
type Provider struct {
	eth    *ethclient.Client
	signer Signer
}

// Dial connects to an EVM RPC endpoint.
func Dial(rpcURL string, signer Signer) (*Provider, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return &Provider{eth: eth, signer: signer}, nil
}

// NewProvider wraps an existing ethclient connection.
func NewProvider(eth *ethclient.Client, signer Signer) *Provider {
	return &Provider{eth: eth, signer: signer}
}

func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.eth.ChainID(ctx)
}

func (p *Provider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return p.eth.SuggestGasPrice(ctx)
}

func (p *Provider) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return p.eth.SuggestGasTipCap(ctx)
}

func (p *Provider) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	return p.eth.HeaderByNumber(ctx, number)
}

func (p *Provider) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	return p.eth.TransactionReceipt(ctx, txHash)
}

func (p *Provider) SendTransaction(ctx context.Context, tx types.UnsignedTransaction) (common.Hash, error) {
	if p.signer == nil {
		return common.Hash{}, fmt.Errorf("no signer configured")
	}
	return p.signer.SendTransaction(ctx, tx)
}

func (p *Provider) Close() {
	p.eth.Close()
}
