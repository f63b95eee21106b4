// Package gas derives effective gas prices and cost estimates from chain fee
// data.
package gas

import (
	"context"
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// FeeData is the raw fee information read from a chain. EIP-1559 chains
// populate MaxFeePerGas and MaxPriorityFeePerGas; legacy chains populate
// GasPrice. Any field may be nil.
type FeeData struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasPrice             *big.Int
}

// GasPriceInWei returns the effective gas price for fee data: the priority
// fee plus half the remaining headroom up to the max fee. Falls back to the
// legacy gas price, and returns nil when neither is present. Callers must
// treat nil as "unknown", never as zero.
func GasPriceInWei(fd *FeeData) *big.Int {
	if fd == nil {
		return nil
	}
	if fd.MaxFeePerGas != nil && fd.MaxPriorityFeePerGas != nil {
		headroom := new(big.Int).Sub(fd.MaxFeePerGas, fd.MaxPriorityFeePerGas)
		headroom.Div(headroom, big.NewInt(2))
		return headroom.Add(headroom, fd.MaxPriorityFeePerGas)
	}
	if fd.GasPrice != nil {
		return new(big.Int).Set(fd.GasPrice)
	}
	return nil
}

// CalculateGasFee multiplies the effective gas price by a gas limit. When the
// price is unknown it returns zero, not an error — callers must not conflate
// "zero cost" with "unknown cost".
func CalculateGasFee(fd *FeeData, gasLimit uint64) *big.Int {
	price := GasPriceInWei(fd)
	if price == nil {
		return new(big.Int)
	}
	return price.Mul(price, new(big.Int).SetUint64(gasLimit))
}

// FeeReader is the slice of an Ethereum client the oracle reads from.
// ethclient.Client satisfies it.
type FeeReader interface {
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
}

// Oracle reads fee data from a chain and prices gas with it.
type Oracle struct {
	reader FeeReader
}

func NewOracle(reader FeeReader) *Oracle {
	return &Oracle{reader: reader}
}

// FeeData assembles fee data from the chain. On EIP-1559 chains the max fee
// is twice the latest base fee plus the suggested tip. When the chain has no
// base fee, only the legacy gas price is set.
func (o *Oracle) FeeData(ctx context.Context) (*FeeData, error) {
	head, err := o.reader.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}

	if head.BaseFee != nil {
		tip, err := o.reader.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, err
		}
		maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		maxFee.Add(maxFee, tip)
		return &FeeData{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
	}

	price, err := o.reader.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return &FeeData{GasPrice: price}, nil
}

// EffectiveGasPrice reads fee data and reduces it to one price. Returns nil
// with no error when the chain reported no usable fee fields.
func (o *Oracle) EffectiveGasPrice(ctx context.Context) (*big.Int, error) {
	fd, err := o.FeeData(ctx)
	if err != nil {
		return nil, err
	}
	return GasPriceInWei(fd), nil
}
