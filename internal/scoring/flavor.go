// Package scoring computes weighted points and ranks identities.
package scoring

import (
	"github.com/shopspring/decimal"

	"holder-tiers/internal/domain"
)

// Flavor names.
const (
	FlavorWeighted     = "weighted"
	FlavorGated        = "gated"
	FlavorDynamicGated = "dynamic-gated"
)

// Points is a point breakdown keyed by symbol (or asset address when no symbol is set).
type Points struct {
	Total  decimal.Decimal
	Tokens map[string]decimal.Decimal
	Nfts   map[string]decimal.Decimal
}

func newPoints() Points {
	return Points{
		Total:  decimal.Zero,
		Tokens: make(map[string]decimal.Decimal),
		Nfts:   make(map[string]decimal.Decimal),
	}
}

func (p *Points) add(t domain.Threshold, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	key := breakdownKey(t.Symbol, t.AssetAddress)
	dst := p.Tokens
	if t.Kind == domain.AssetNft {
		dst = p.Nfts
	}
	dst[key] = dst[key].Add(amount)
	p.Total = p.Total.Add(amount)
}

func breakdownKey(symbol string, asset domain.Address) string {
	if symbol == "" {
		return asset.String()
	}
	return symbol
}

// Flavor is a project's point calculation rule.
type Flavor interface {
	// Name returns the flavor's configuration name.
	Name() string

	// DynamicMinimumBalance returns the minimum of req for the given oracle multiplier,
	// before any sum-mode halving.
	DynamicMinimumBalance(req domain.Requirement, multiplier decimal.Decimal) decimal.Decimal

	// CalculatePoints returns the points earned by h under rules.
	CalculatePoints(h domain.AggregatedHoldings, rules []domain.Threshold) Points

	// CheckEligibility reports whether an identity with h and p enters the leaderboard.
	CheckEligibility(h domain.AggregatedHoldings, p Points) bool
}

// raw points of a single rule, ignoring any minimum.
func rulePoints(t domain.Threshold, h domain.AggregatedHoldings) decimal.Decimal {
	if t.Kind == domain.AssetNft {
		return decimal.NewFromInt(h.NftCount(t.AssetAddress)).Mul(t.PointsPerToken)
	}
	return h.TokenBalance(t.AssetAddress).Mul(t.Weight)
}

// WeightedFlavor awards points for every held asset.
type WeightedFlavor struct{}

// Name implements Flavor.
func (WeightedFlavor) Name() string { return FlavorWeighted }

// DynamicMinimumBalance implements Flavor. Weighted rules have no dynamic minimum.
func (WeightedFlavor) DynamicMinimumBalance(req domain.Requirement, _ decimal.Decimal) decimal.Decimal {
	return req.MinBalance
}

// CalculatePoints implements Flavor.
func (WeightedFlavor) CalculatePoints(h domain.AggregatedHoldings, rules []domain.Threshold) Points {
	p := newPoints()
	for _, t := range rules {
		p.add(t, rulePoints(t, h))
	}
	return p
}

// CheckEligibility implements Flavor.
func (WeightedFlavor) CheckEligibility(_ domain.AggregatedHoldings, p Points) bool {
	return p.Total.IsPositive()
}

// GatedFlavor awards points for an asset only once its minimum is met.
type GatedFlavor struct{}

// Name implements Flavor.
func (GatedFlavor) Name() string { return FlavorGated }

// DynamicMinimumBalance implements Flavor.
func (GatedFlavor) DynamicMinimumBalance(req domain.Requirement, _ decimal.Decimal) decimal.Decimal {
	return req.MinBalance
}

// CalculatePoints implements Flavor.
func (GatedFlavor) CalculatePoints(h domain.AggregatedHoldings, rules []domain.Threshold) Points {
	return gatedPoints(h, rules)
}

// CheckEligibility implements Flavor.
func (GatedFlavor) CheckEligibility(_ domain.AggregatedHoldings, p Points) bool {
	return p.Total.IsPositive()
}

// DynamicGatedFlavor is GatedFlavor with oracle-derived minimums for dynamic rules.
type DynamicGatedFlavor struct{}

// Name implements Flavor.
func (DynamicGatedFlavor) Name() string { return FlavorDynamicGated }

// DynamicMinimumBalance implements Flavor.
func (DynamicGatedFlavor) DynamicMinimumBalance(req domain.Requirement, multiplier decimal.Decimal) decimal.Decimal {
	if !req.Dynamic || !multiplier.IsPositive() {
		return req.MinBalance
	}
	return req.BaseUnits.Div(multiplier)
}

// CalculatePoints implements Flavor.
func (DynamicGatedFlavor) CalculatePoints(h domain.AggregatedHoldings, rules []domain.Threshold) Points {
	return gatedPoints(h, rules)
}

// CheckEligibility implements Flavor.
func (DynamicGatedFlavor) CheckEligibility(_ domain.AggregatedHoldings, p Points) bool {
	return p.Total.IsPositive()
}

func gatedPoints(h domain.AggregatedHoldings, rules []domain.Threshold) Points {
	p := newPoints()
	for _, t := range rules {
		if !t.Met(h) {
			continue
		}
		p.add(t, rulePoints(t, h))
	}
	return p
}

var (
	_ Flavor = WeightedFlavor{}
	_ Flavor = GatedFlavor{}
	_ Flavor = DynamicGatedFlavor{}
)
