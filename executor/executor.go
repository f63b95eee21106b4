// Package executor submits a checkout's ordered operation list: every
// approval first, then fulfilment, with a hard barrier between the phases.
//
// Steps inside one phase are mutually independent, so they are submitted
// back-to-back before any confirmation; confirmations for the phase are then
// awaited together. Fulfilment assumes its approvals already landed
// on-chain, so no fulfilment step is submitted until every approval
// confirms. There is no rollback (on-chain state is not revertible here) and
// no automatic retry — retry is the caller's decision, informed by the phase
// the result records.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/vitwit/checkout/logger"
	"github.com/vitwit/checkout/types"
)

// Provider submits transactions and reports their receipts. The SDK never
// holds private keys; signing happens behind this interface.
type Provider interface {
	SendTransaction(ctx context.Context, tx types.UnsignedTransaction) (common.Hash, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Phase tracks how far an execution got. Persisted in the result so a caller
// can resume from the correct phase instead of restarting: a failure in
// PhaseFulfilmentPending does not require re-sending approvals.
type Phase string

const (
	PhaseApprovalsPending   Phase = "approvals-pending"
	PhaseApprovalsConfirmed Phase = "approvals-confirmed"
	PhaseFulfilmentPending  Phase = "fulfilment-pending"
	PhaseDone               Phase = "done"
)

// Plan is the ordered operation list for one checkout.
type Plan struct {
	Approvals   []types.UnsignedTransaction
	Fulfilments []types.UnsignedTransaction
}

// Result records submitted hashes and the phase reached.
type Result struct {
	Phase            Phase
	ApprovalHashes   []common.Hash
	FulfilmentHashes []common.Hash
}

// Executor drives the two-phase execution sequence.
type Executor struct {
	log logger.Logger

	// pollInterval paces receipt polling while awaiting confirmations.
	pollInterval time.Duration
}

func NewExecutor(log logger.Logger) *Executor {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Executor{log: log, pollInterval: time.Second}
}

// Execute runs the plan. A failure anywhere in a phase fails the whole phase
// with the underlying message attached; the returned result always reflects
// the phase reached.
func (e *Executor) Execute(ctx context.Context, provider Provider, plan Plan) (*Result, error) {
	result := &Result{Phase: PhaseApprovalsPending}

	hashes, err := e.runPhase(ctx, provider, plan.Approvals)
	result.ApprovalHashes = hashes
	if err != nil {
		return result, wrapPhase(result.Phase, err)
	}
	result.Phase = PhaseApprovalsConfirmed

	if len(plan.Fulfilments) > 0 {
		result.Phase = PhaseFulfilmentPending
	}
	hashes, err = e.runPhase(ctx, provider, plan.Fulfilments)
	result.FulfilmentHashes = hashes
	if err != nil {
		return result, wrapPhase(result.Phase, err)
	}

	result.Phase = PhaseDone
	e.log.Info("execution complete", map[string]any{
		"approvals":   len(result.ApprovalHashes),
		"fulfilments": len(result.FulfilmentHashes),
	})
	return result, nil
}

// runPhase submits every step sequentially, awaiting each submission but not
// its confirmation, then awaits all confirmations concurrently.
func (e *Executor) runPhase(ctx context.Context, provider Provider, steps []types.UnsignedTransaction) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(steps))
	for i, step := range steps {
		hash, err := provider.SendTransaction(ctx, step)
		if err != nil {
			return hashes, fmt.Errorf("submit step %d: %w", i, err)
		}
		hashes = append(hashes, hash)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, hash := range hashes {
		hash := hash
		g.Go(func() error {
			return e.awaitConfirmation(gctx, provider, hash)
		})
	}
	if err := g.Wait(); err != nil {
		return hashes, err
	}
	return hashes, nil
}

func (e *Executor) awaitConfirmation(ctx context.Context, provider Provider, hash common.Hash) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := provider.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == gethtypes.ReceiptStatusSuccessful {
				return nil
			}
			return fmt.Errorf("transaction %s reverted", hash.Hex())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func wrapPhase(phase Phase, err error) error {
	return types.NewCheckoutError(types.ErrExecuteTransactions,
		fmt.Sprintf("execution failed in phase %s: %v", phase, err),
		map[string]any{"phase": string(phase)})
}
