package scoring

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"holder-tiers/internal/domain"
)

func TestFromConfig(t *testing.T) {
	dynamic := muRule(1, 0)
	dynamic.Dynamic = true
	dynamic.BaseUnits = decimal.NewFromInt(1000)

	tests := []struct {
		name    string
		flavor  string
		rules   []domain.Requirement
		want    string
		wantErr error
	}{
		{"weighted", FlavorWeighted, []domain.Requirement{muRule(1, 0)}, FlavorWeighted, nil},
		{"default", "", []domain.Requirement{muRule(1, 0)}, FlavorWeighted, nil},
		{"gated", FlavorGated, []domain.Requirement{muRule(1, 10), genesisRule(5)}, FlavorGated, nil},
		{"dynamic gated", FlavorDynamicGated, []domain.Requirement{dynamic}, FlavorDynamicGated, nil},
		{"dynamic gated without dynamic rule", FlavorDynamicGated, []domain.Requirement{muRule(1, 0)}, "", ErrMissingDynamicRule},
		{"unknown", "quadratic", []domain.Requirement{muRule(1, 0)}, "", ErrUnknownFlavor},
		{"no rules", FlavorWeighted, nil, "", ErrMissingRules},
		{"missing weight", FlavorWeighted, []domain.Requirement{muRule(0, 0)}, "", ErrMissingWeight},
		{"missing nft points", FlavorWeighted, []domain.Requirement{genesisRule(0)}, "", ErrMissingWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := FromConfig(tt.flavor, tt.rules)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Name() != tt.want {
				t.Errorf("got flavor %s, want %s", f.Name(), tt.want)
			}
		})
	}
}

func TestFromConfig_DynamicWithoutBaseUnits(t *testing.T) {
	r := muRule(1, 0)
	r.Dynamic = true
	if _, err := FromConfig(FlavorDynamicGated, []domain.Requirement{r}); !errors.Is(err, ErrMissingBaseUnits) {
		t.Errorf("expected ErrMissingBaseUnits, got %v", err)
	}
}

func TestFromConfig_DuplicateSymbol(t *testing.T) {
	v2 := muRule(2, 0)
	v2.AssetAddress = "muv2mint"

	_, err := FromConfig(FlavorWeighted, []domain.Requirement{muRule(1, 0), v2})
	if !errors.Is(err, ErrDuplicateSymbol) {
		t.Fatalf("expected ErrDuplicateSymbol, got %v", err)
	}

	// Same symbol on the same asset, or on an NFT collection, keeps separate keys.
	nft := genesisRule(5)
	nft.Symbol = "MU"
	if _, err := FromConfig(FlavorWeighted, []domain.Requirement{muRule(1, 0), muRule(2, 0), nft}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Unnamed rules are keyed by asset address.
	a, b := muRule(1, 0), muRule(1, 0)
	a.Symbol, b.Symbol = "", ""
	b.AssetAddress = "muv2mint"
	if _, err := FromConfig(FlavorWeighted, []domain.Requirement{a, b}); err != nil {
		t.Errorf("unexpected error for unnamed rules: %v", err)
	}
}
