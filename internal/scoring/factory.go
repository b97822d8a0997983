package scoring

import (
	"errors"
	"fmt"

	"holder-tiers/internal/domain"
)

// Factory errors
var (
	ErrUnknownFlavor      = errors.New("unknown leaderboard flavor")
	ErrMissingRules       = errors.New("leaderboard requires at least one rule")
	ErrMissingWeight      = errors.New("rule requires Weight (tokens) or PointsPerToken (NFTs)")
	ErrMissingBaseUnits   = errors.New("dynamic rule requires BaseUnits")
	ErrMissingDynamicRule = errors.New("dynamic-gated flavor requires a dynamic rule")
	ErrDuplicateSymbol    = errors.New("symbol already names another asset")
)

// FromConfig returns the flavor called name after validating rules against it.
func FromConfig(name string, rules []domain.Requirement) (Flavor, error) {
	if len(rules) == 0 {
		return nil, ErrMissingRules
	}
	for i, r := range rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Symbol, err)
		}
	}
	if err := checkBreakdownKeys(rules); err != nil {
		return nil, err
	}

	switch name {
	case FlavorWeighted, "":
		return WeightedFlavor{}, nil
	case FlavorGated:
		return GatedFlavor{}, nil
	case FlavorDynamicGated:
		return fromDynamicGated(rules)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlavor, name)
	}
}

func validateRule(r domain.Requirement) error {
	switch r.Kind {
	case domain.AssetNft:
		if !r.PointsPerToken.IsPositive() {
			return ErrMissingWeight
		}
	default:
		if !r.Weight.IsPositive() {
			return ErrMissingWeight
		}
	}
	if r.Dynamic && !r.BaseUnits.IsPositive() {
		return ErrMissingBaseUnits
	}
	return nil
}

// checkBreakdownKeys rejects two assets of one kind sharing a symbol, since
// Points keys its breakdown by symbol.
func checkBreakdownKeys(rules []domain.Requirement) error {
	type key struct {
		kind   domain.AssetKind
		symbol string
	}
	owners := make(map[key]domain.Address, len(rules))
	for i, r := range rules {
		k := key{kind: r.Kind, symbol: breakdownKey(r.Symbol, r.AssetAddress)}
		if k.kind != domain.AssetNft {
			k.kind = domain.AssetToken
		}
		if prev, ok := owners[k]; ok && prev != r.AssetAddress {
			return fmt.Errorf("rule %d (%s): %w %s", i, k.symbol, ErrDuplicateSymbol, prev)
		}
		owners[k] = r.AssetAddress
	}
	return nil
}

func fromDynamicGated(rules []domain.Requirement) (Flavor, error) {
	for _, r := range rules {
		if r.Dynamic {
			return DynamicGatedFlavor{}, nil
		}
	}
	return nil, ErrMissingDynamicRule
}
