// Package types defines the shared data model for the checkout SDK:
// payment requirements, balance snapshots, funding routes, and results.
package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Environment selects which deployment of the checkout services the SDK
// talks to.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// NativeTokenKey is the sentinel identifier used in balance snapshots and
// token mappings for the chain's native asset, which has no contract address.
const NativeTokenKey = "NATIVE"

// ItemType classifies what a checkout requirement asks for. The set is
// closed; every consumer switches exhaustively over it.
type ItemType string

const (
	ItemNative ItemType = "NATIVE"
	ItemERC20  ItemType = "ERC20"
	ItemERC721 ItemType = "ERC721"
)

func (t ItemType) String() string {
	return string(t)
}

// GasTokenType classifies which token pays for gas on the destination chain.
type GasTokenType string

const (
	GasTokenNative GasTokenType = "NATIVE"
	GasTokenERC20  GasTokenType = "ERC20"
)

// ItemRequirement is one typed need the buyer must satisfy. Produced by the
// caller and never mutated by the SDK.
type ItemRequirement struct {
	Type ItemType

	// Amount in atomic units. For ERC721 this is always 1.
	Amount *big.Int

	// TokenAddress is the contract address for ERC20/ERC721 requirements.
	TokenAddress common.Address

	// SpenderAddress is who must be approved to spend the amount, when the
	// fulfilment contract pulls funds rather than receiving them directly.
	SpenderAddress common.Address

	// TokenID identifies the ERC721 token; nil otherwise.
	TokenID *big.Int
}

// GasRequirement is the estimated gas needed to submit the fulfilment
// transaction, independent of any gas price.
type GasRequirement struct {
	TokenType GasTokenType

	// Limit is the estimated gas unit limit.
	Limit uint64

	// TokenAddress is set when gas is paid in an ERC20 token.
	TokenAddress common.Address
}

// TokenInfo describes a token appearing in a balance snapshot or route.
type TokenInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Decimals int32  `json:"decimals"`

	// Address is the contract address, or empty for the native asset.
	Address string `json:"address,omitempty"`
}

// Key returns the identity under which this token is indexed in a snapshot:
// the lower-cased contract address, or NativeTokenKey for the native asset.
func (t TokenInfo) Key() string {
	if t.Address == "" {
		return NativeTokenKey
	}
	return strings.ToLower(t.Address)
}

// TokenBalance is one token's balance for a wallet at snapshot time.
type TokenBalance struct {
	Balance          *big.Int        `json:"balance"`
	FormattedBalance decimal.Decimal `json:"formattedBalance"`
	Token            TokenInfo       `json:"token"`
}

// BalanceSnapshot is a point-in-time read of one wallet's balances on one
// chain. Refreshes replace it wholesale; it is never patched in place.
type BalanceSnapshot struct {
	Wallet   common.Address
	ChainID  uint64
	Balances []TokenBalance
}

// BalanceOf returns the snapshot balance for a token key, or zero if absent.
func (s *BalanceSnapshot) BalanceOf(key string) *big.Int {
	for _, b := range s.Balances {
		if b.Token.Key() == key {
			return new(big.Int).Set(b.Balance)
		}
	}
	return new(big.Int)
}

// Shortfall is the derived gap between a requirement and the balances
// available to cover it. Delta is floored at zero: a negative gap means the
// requirement is already satisfied.
type Shortfall struct {
	Requirement ItemRequirement
	Required    *big.Int
	Available   *big.Int
	Delta       *big.Int
}

// Satisfied reports whether the available balance covers the requirement.
func (s Shortfall) Satisfied() bool {
	return s.Delta.Sign() == 0
}

// RouteType classifies how a funding route closes a shortfall. Closed set,
// matched exhaustively.
type RouteType string

const (
	RouteBridge RouteType = "BRIDGE"
	RouteSwap   RouteType = "SWAP"
	RouteOnRamp RouteType = "ONRAMP"
)

func (t RouteType) String() string {
	return string(t)
}

// UnsignedTransaction is one step of a funding route or execution plan. The
// SDK never signs it; submission goes through the caller-supplied provider.
type UnsignedTransaction struct {
	To       *common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

// FundingRoute is a priced candidate path that closes a shortfall. The total
// cost is computed before any step executes.
type FundingRoute struct {
	Type             RouteType
	SourceChainID    uint64
	SourceToken      TokenInfo
	DestinationToken TokenInfo

	// Amount is the shortfall being closed, in destination-token units.
	Amount *big.Int

	// EstimatedFee is the venue fee (bridge fee, swap spread, on-ramp fee),
	// denominated in the source token.
	EstimatedFee *big.Int

	// EstimatedGas is the gas cost of executing the route's own steps,
	// denominated in the source chain's native token.
	EstimatedGas *big.Int

	// TotalCost is amount + fee + gas in the spending token.
	TotalCost *big.Int

	Steps []UnsignedTransaction
}

// RiskAssessment is the screening outcome for one participant address.
// AssessmentFailed marks the fail-open path: the screening service could not
// be reached, so Sanctioned defaulted to false rather than blocking. Callers
// needing strict compliance can hard-stop on it.
type RiskAssessment struct {
	Sanctioned       bool `json:"sanctioned"`
	AssessmentFailed bool `json:"assessmentFailed,omitempty"`
}

// RiskAssessmentResult maps lower-cased participant address to its screening
// outcome. Computed fresh per checkout attempt, never cached.
type RiskAssessmentResult map[string]RiskAssessment

// Sanctioned reports whether any screened address was flagged.
func (r RiskAssessmentResult) Sanctioned() bool {
	for _, a := range r {
		if a.Sanctioned {
			return true
		}
	}
	return false
}

// CheckoutState tracks the orchestrator's progress through one attempt.
type CheckoutState string

const (
	StateEvaluating CheckoutState = "EVALUATING"
	StateSufficient CheckoutState = "SUFFICIENT"
	StateRouting    CheckoutState = "ROUTING"
	StateRouted     CheckoutState = "ROUTED"
	StateUnroutable CheckoutState = "UNROUTABLE"
	StateExecuting  CheckoutState = "EXECUTING"
	StateSucceeded  CheckoutState = "SUCCEEDED"
	StateFailed     CheckoutState = "FAILED"
)

// TransactionRequirement reports, per requirement, what was needed and what
// the wallet held at evaluation time.
type TransactionRequirement struct {
	Type       ItemType  `json:"type"`
	Sufficient bool      `json:"sufficient"`
	Required   *big.Int  `json:"required"`
	Current    *big.Int  `json:"current"`
	Delta      *big.Int  `json:"delta"`
	Token      TokenInfo `json:"token"`
}

// SmartCheckoutResult is the terminal output of one checkout attempt.
type SmartCheckoutResult struct {
	Sufficient              bool                     `json:"sufficient"`
	State                   CheckoutState            `json:"state"`
	TransactionRequirements []TransactionRequirement `json:"transactionRequirements"`

	// FundingRoutes holds the selected route when routing was needed and
	// succeeded; empty when the wallet was already sufficient.
	FundingRoutes []FundingRoute `json:"fundingRoutes,omitempty"`

	Risk RiskAssessmentResult `json:"risk,omitempty"`
}

func (r *SmartCheckoutResult) String() string {
	return fmt.Sprintf("sufficient=%t state=%s routes=%d", r.Sufficient, r.State, len(r.FundingRoutes))
}
