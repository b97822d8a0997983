// Package eligibility evaluates tiered badge rules against identity holdings.
package eligibility

import (
	"context"

	"github.com/shopspring/decimal"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/oracle"
)

var two = decimal.NewFromInt(2)

// Multipliers supplies oracle multipliers by symbol.
type Multipliers interface {
	Multiplier(ctx context.Context, symbol string) decimal.Decimal
}

var _ Multipliers = (*oracle.Cache)(nil)

// ResolveThresholds computes the effective minimum of every requirement.
// A dynamic minimum is BaseUnits divided by the symbol's multiplier. In sum
// mode every minimum is halved because the balance may be split across wallets.
func ResolveThresholds(ctx context.Context, reqs []domain.Requirement, m Multipliers, sumMode bool) []domain.Threshold {
	out := make([]domain.Threshold, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, domain.Threshold{
			Requirement: req,
			Effective:   EffectiveMinimum(ctx, req, m, sumMode),
		})
	}
	return out
}

// EffectiveMinimum resolves a single requirement's threshold.
func EffectiveMinimum(ctx context.Context, req domain.Requirement, m Multipliers, sumMode bool) decimal.Decimal {
	threshold := req.MinBalance
	if req.Dynamic {
		threshold = req.BaseUnits.Div(m.Multiplier(ctx, req.Symbol))
	}
	if sumMode {
		threshold = threshold.Div(two)
	}
	return threshold
}
