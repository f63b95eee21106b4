// Package checkout implements a funding-adequacy and routing engine for
// blockchain purchases. Given a buyer's wallet and a required payment, it
// determines whether the buyer can pay from funds already on the destination
// chain, searches bridge/swap/on-ramp routes to close any shortfall, screens
// participants against the sanctions service, and drives the two-phase
// on-chain execution sequence.
package checkout

import (
	"context"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vitwit/checkout/api"
	"github.com/vitwit/checkout/balances"
	"github.com/vitwit/checkout/config"
	"github.com/vitwit/checkout/executor"
	"github.com/vitwit/checkout/gas"
	"github.com/vitwit/checkout/logger"
	"github.com/vitwit/checkout/metrics"
	"github.com/vitwit/checkout/risk"
	"github.com/vitwit/checkout/router"
	"github.com/vitwit/checkout/types"
)

// Event is a lifecycle signal consumed by the presentation layer.
type Event string

const (
	EventSuccess Event = "SUCCESS"
	EventFailure Event = "FAILURE"
	EventClose   Event = "CLOSE"
)

// CheckoutProvider is the caller-supplied chain access for one attempt:
// submission via the signer, plus the reads the gas oracle and executor
// need. provider.Provider satisfies it.
type CheckoutProvider interface {
	executor.Provider
	gas.FeeReader
	ChainID(ctx context.Context) (*big.Int, error)
}

// SmartCheckoutParams configures one evaluate-and-optionally-execute call.
type SmartCheckoutParams struct {
	Wallet    string `validate:"required,eth_addr"`
	Recipient string `validate:"omitempty,eth_addr"`

	// ChainID of the destination chain; zero resolves through the provider.
	ChainID uint64

	Requirements []types.ItemRequirement `validate:"required,min=1"`

	// Gas is the estimated gas to submit the fulfilment transaction. A zero
	// Limit skips the gas requirement.
	Gas types.GasRequirement

	// NativeSymbol is the destination chain's gas token symbol.
	NativeSymbol string `validate:"required"`

	// SourceChainIDs are other chains to consider as bridge sources.
	SourceChainIDs []uint64

	// Execute runs the plan after a SUFFICIENT or ROUTED evaluation.
	Execute bool

	// Plan holds the fulfilment steps produced by the order protocol, plus
	// any approvals it already knows about. Required when Execute is set.
	Plan *executor.Plan `validate:"required_with=Execute"`

	Provider CheckoutProvider `validate:"required"`

	AllowZero bool
	Retry     balances.RetryPolicy
}

// Checkout is the SDK façade composing the evaluate → route → execute
// pipeline. Calls are independent of each other; the remote config cache is
// the only state shared across them.
type Checkout struct {
	env       types.Environment
	endpoints api.Endpoints

	api      *api.Client
	cfg      *config.Client
	assessor *risk.Assessor
	executor *executor.Executor

	httpClient *http.Client
	log        logger.Logger
	metrics    metrics.Recorder
	validate   *validator.Validate
	timeout    time.Duration
	events     func(Event)
}

// New creates a Checkout for an environment. Options override the transport,
// endpoints, logging, and metrics.
func New(env types.Environment, opts ...Option) *Checkout {
	c := &Checkout{
		env:       env,
		endpoints: api.DefaultEndpoints(env),
		log:       logger.NoopLogger{},
		metrics:   metrics.NoopRecorder{},
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.api = api.NewClient(env, c.endpoints, c.httpClient)
	c.cfg = config.NewClient(env, c.api, c.log)
	c.assessor = risk.NewAssessor(c.api, c.cfg, c.log)
	c.executor = executor.NewExecutor(c.log)
	return c
}

// Config exposes the process-wide remote config client, so callers can share
// it or warm it ahead of the first checkout.
func (c *Checkout) Config() *config.Client {
	return c.cfg
}

// SmartCheckout evaluates whether the wallet can satisfy the requirements,
// routes any shortfall, and optionally executes. A FAILED state always
// carries exactly one typed *types.CheckoutError.
func (c *Checkout) SmartCheckout(ctx context.Context, params SmartCheckoutParams) (*types.SmartCheckoutResult, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	attempt := uuid.NewString()
	log := c.log.With(map[string]any{"attempt": attempt, "environment": c.env.String()})
	labels := map[string]string{"environment": c.env.String()}
	defer func() {
		c.metrics.ObserveLatency("smart_checkout", time.Since(start), labels)
	}()

	wallet := common.HexToAddress(params.Wallet)
	oracle := gas.NewOracle(params.Provider)
	aggregator := balances.NewAggregator(c.api, c.api, params.Provider, log)

	// EVALUATING: the balance read and the risk check are independent, so
	// they run concurrently.
	var (
		snapshot   *types.BalanceSnapshot
		assessment types.RiskAssessmentResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, snap, err := aggregator.GetAllowedBalances(gctx, balances.Params{
			Wallet:    wallet,
			ChainID:   params.ChainID,
			AllowZero: params.AllowZero,
			Retry:     params.Retry,
		})
		snapshot = snap
		return err
	})
	g.Go(func() error {
		assessment = c.assessor.FetchRiskAssessment(gctx, c.riskEntries(params))
		return nil
	})
	if err := g.Wait(); err != nil {
		c.fail(log, labels)
		return nil, types.NewCheckoutError(types.ErrAPIError, err.Error(), nil)
	}

	result := &types.SmartCheckoutResult{State: types.StateEvaluating, Risk: assessment}

	// A sanctioned participant short-circuits regardless of sufficiency.
	if assessment.Sanctioned() {
		result.State = types.StateFailed
		c.fail(log, labels)
		return result, types.NewCheckoutError(types.ErrSanctionedAddress,
			"a participant address is sanctioned; execution refused", nil)
	}

	feeData, err := oracle.FeeData(ctx)
	if err != nil {
		c.fail(log, labels)
		return nil, types.NewCheckoutError(types.ErrAPIError, err.Error(), nil)
	}

	requirements := c.expandRequirements(params, feeData)
	result.TransactionRequirements, result.Sufficient = summarize(requirements, snapshot, params.NativeSymbol)

	if result.Sufficient {
		result.State = types.StateSufficient
		log.Info("wallet sufficient", map[string]any{"requirements": len(requirements)})
	} else {
		result.State = types.StateRouting
		routes, err := c.routeShortfalls(ctx, params, requirements, snapshot, aggregator, oracle, wallet, log)
		if err != nil {
			result.State = types.StateUnroutable
			if ce, ok := types.AsCheckoutError(err); !ok || ce.Code != types.ErrUnroutable {
				result.State = types.StateFailed
			}
			c.fail(log, labels)
			return result, err
		}
		result.FundingRoutes = routes
		result.State = types.StateRouted
	}

	if params.Execute && params.Plan != nil {
		result.State = types.StateExecuting
		if _, err := c.executor.Execute(ctx, params.Provider, *params.Plan); err != nil {
			result.State = types.StateFailed
			c.fail(log, labels)
			return result, err
		}
		result.State = types.StateSucceeded
	}

	c.metrics.IncCounter("smart_checkout_success", labels)
	c.emit(EventSuccess)
	return result, nil
}

// Close releases nothing but signals the presentation layer to tear down.
func (c *Checkout) Close() {
	c.emit(EventClose)
}

func (c *Checkout) emit(e Event) {
	if c.events != nil {
		c.events(e)
	}
}

func (c *Checkout) fail(log logger.Logger, labels map[string]string) {
	log.Warn("checkout attempt failed", nil)
	c.metrics.IncCounter("smart_checkout_failure", labels)
	c.emit(EventFailure)
}

func (c *Checkout) riskEntries(params SmartCheckoutParams) []risk.Entry {
	entries := []risk.Entry{{Address: params.Wallet}}
	if params.Recipient != "" {
		entries = append(entries, risk.Entry{Address: params.Recipient})
	}
	for _, req := range params.Requirements {
		if req.Type != types.ItemNative {
			entries[0].TokenAddress = strings.ToLower(req.TokenAddress.Hex())
			entries[0].Amount = req.Amount
			break
		}
	}
	return entries
}

// expandRequirements appends the gas requirement as one more item to fund: a
// shortfall purely in gas routes identically to any other shortfall, with
// the gas token as the required item.
func (c *Checkout) expandRequirements(params SmartCheckoutParams, feeData *gas.FeeData) []types.ItemRequirement {
	requirements := make([]types.ItemRequirement, len(params.Requirements))
	copy(requirements, params.Requirements)

	if params.Gas.Limit == 0 {
		return requirements
	}
	fee := gas.CalculateGasFee(feeData, params.Gas.Limit)
	if fee.Sign() == 0 {
		// Unknown gas price: cost is unknowable, not zero. Nothing to fund.
		return requirements
	}

	gasReq := types.ItemRequirement{Type: types.ItemNative, Amount: fee}
	if params.Gas.TokenType == types.GasTokenERC20 {
		gasReq = types.ItemRequirement{
			Type:         types.ItemERC20,
			Amount:       fee,
			TokenAddress: params.Gas.TokenAddress,
		}
	}
	return append(requirements, gasReq)
}

func summarize(requirements []types.ItemRequirement, snapshot *types.BalanceSnapshot, nativeSymbol string) ([]types.TransactionRequirement, bool) {
	out := make([]types.TransactionRequirement, 0, len(requirements))
	sufficient := true
	for _, req := range requirements {
		shortfall := router.ComputeShortfall(req, snapshot)
		ok := shortfall.Satisfied()
		if !ok {
			sufficient = false
		}
		out = append(out, types.TransactionRequirement{
			Type:       req.Type,
			Sufficient: ok,
			Required:   shortfall.Required,
			Current:    shortfall.Available,
			Delta:      shortfall.Delta,
			Token:      requirementToken(req, snapshot, nativeSymbol),
		})
	}
	return out, sufficient
}

// requirementToken resolves the token a requirement is denominated in,
// preferring the snapshot's richer entry over what the requirement carries.
func requirementToken(req types.ItemRequirement, snapshot *types.BalanceSnapshot, nativeSymbol string) types.TokenInfo {
	key := types.NativeTokenKey
	if req.Type != types.ItemNative {
		key = strings.ToLower(req.TokenAddress.Hex())
	}
	for _, b := range snapshot.Balances {
		if b.Token.Key() == key {
			return b.Token
		}
	}
	if req.Type == types.ItemNative {
		return types.TokenInfo{Symbol: nativeSymbol, Decimals: 18}
	}
	return types.TokenInfo{Address: req.TokenAddress.Hex()}
}

func (c *Checkout) routeShortfalls(
	ctx context.Context,
	params SmartCheckoutParams,
	requirements []types.ItemRequirement,
	snapshot *types.BalanceSnapshot,
	aggregator *balances.Aggregator,
	oracle *gas.Oracle,
	wallet common.Address,
	log logger.Logger,
) ([]types.FundingRoute, error) {
	sources := make(map[uint64]*types.BalanceSnapshot, len(params.SourceChainIDs))
	for _, chainID := range params.SourceChainIDs {
		_, snap, err := aggregator.GetAllowedBalances(ctx, balances.Params{
			Wallet:  wallet,
			ChainID: chainID,
			Retry:   params.Retry,
		})
		if err != nil {
			// A source chain that cannot be read is just not a candidate.
			log.Warn("skipping bridge source", map[string]any{"chainId": chainID, "error": err.Error()})
			continue
		}
		sources[chainID] = snap
	}

	rt := router.NewRouter(c.cfg, c.api, c.api, c.api, oracle, log)

	var routes []types.FundingRoute
	for _, req := range requirements {
		if router.ComputeShortfall(req, snapshot).Satisfied() {
			continue
		}
		outcome, err := rt.Route(ctx, router.Params{
			Requirement:    req,
			Wallet:         wallet,
			Balances:       snapshot,
			SourceBalances: sources,
			NativeSymbol:   params.NativeSymbol,
		})
		if err != nil {
			return nil, err
		}
		routes = append(routes, outcome.Routes...)
	}
	return routes, nil
}
