// Package risk screens participant addresses against the sanctions service.
//
// The assessor deliberately fails open: when screening cannot complete — the
// feature flag could not be read, the service was unreachable, the response
// did not parse — it logs, marks every assessment with AssessmentFailed, and
// returns sanctioned=false for all addresses rather than blocking checkout.
// This prioritizes availability over compliance blocking and is a documented
// policy, not a defect. Callers needing stricter compliance hard-stop on
// AssessmentFailed.
package risk

import (
	"context"
	"math/big"
	"strings"

	"github.com/vitwit/checkout/api"
	"github.com/vitwit/checkout/config"
	"github.com/vitwit/checkout/logger"
	"github.com/vitwit/checkout/types"
)

// Entry is one participant to screen.
type Entry struct {
	Address      string
	TokenAddress string
	Amount       *big.Int
}

// Screener is the sanctions API. *api.Client satisfies it.
type Screener interface {
	CheckSanctions(ctx context.Context, entries []api.SanctionsEntry) ([]api.SanctionsResult, error)
}

// ConfigSource supplies the feature flag and blocking levels.
type ConfigSource interface {
	Load(ctx context.Context) (*config.RemoteConfig, error)
}

// Assessor screens addresses per checkout attempt. Results are never cached
// across addresses or attempts.
type Assessor struct {
	screener Screener
	cfg      ConfigSource
	log      logger.Logger
}

func NewAssessor(screener Screener, cfg ConfigSource, log logger.Logger) *Assessor {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Assessor{screener: screener, cfg: cfg, log: log}
}

// FetchRiskAssessment screens every entry in one batched request and maps
// lower-cased address to its verdict. An address is sanctioned only when the
// returned risk level matches the configured blocking list,
// case-insensitively. With screening disabled, no network call is made. An
// empty blocking list with screening enabled blocks nothing.
func (a *Assessor) FetchRiskAssessment(ctx context.Context, entries []Entry) types.RiskAssessmentResult {
	result := make(types.RiskAssessmentResult, len(entries))
	for _, e := range entries {
		result[strings.ToLower(e.Address)] = types.RiskAssessment{}
	}
	if len(entries) == 0 {
		return result
	}

	cfg, err := a.cfg.Load(ctx)
	if err != nil {
		return a.failOpen(result, "risk config unavailable", err)
	}
	if !cfg.RiskAssessment.Enabled {
		return result
	}

	blocking := make(map[string]struct{}, len(cfg.RiskAssessment.Levels))
	for _, l := range cfg.RiskAssessment.Levels {
		blocking[strings.ToLower(l)] = struct{}{}
	}

	req := make([]api.SanctionsEntry, 0, len(entries))
	for _, e := range entries {
		amount := "0"
		if e.Amount != nil {
			amount = e.Amount.String()
		}
		req = append(req, api.SanctionsEntry{
			Address:      e.Address,
			TokenAddress: e.TokenAddress,
			Amount:       amount,
		})
	}

	verdicts, err := a.screener.CheckSanctions(ctx, req)
	if err != nil {
		return a.failOpen(result, "sanctions check failed", err)
	}

	for _, v := range verdicts {
		key := strings.ToLower(v.Address)
		if _, known := result[key]; !known {
			continue
		}
		if _, blocked := blocking[strings.ToLower(v.Risk)]; blocked {
			a.log.Warn("participant flagged by sanctions screening", map[string]any{
				"address": key,
				"risk":    v.Risk,
				"reason":  v.RiskReason,
			})
			result[key] = types.RiskAssessment{Sanctioned: true}
		}
	}
	return result
}

func (a *Assessor) failOpen(result types.RiskAssessmentResult, msg string, err error) types.RiskAssessmentResult {
	a.log.Warn(msg+", failing open", map[string]any{"error": err.Error()})
	for addr := range result {
		result[addr] = types.RiskAssessment{AssessmentFailed: true}
	}
	return result
}
