package domain

import "github.com/shopspring/decimal"

// AssetKind distinguishes fungible tokens from NFT collections.
type AssetKind string

// Asset kinds.
const (
	AssetToken AssetKind = "token"
	AssetNft   AssetKind = "nft"
)

// Requirement is a per-asset rule used for tier checks and point accrual.
type Requirement struct {
	Kind         AssetKind
	AssetAddress Address
	Symbol       string          // symbol (tokens) or collection name (NFTs)
	MinBalance   decimal.Decimal // static threshold; ignored when Dynamic
	Dynamic      bool            // threshold = BaseUnits / oracle multiplier
	BaseUnits    decimal.Decimal // numerator for dynamic thresholds

	// Weighted (leaderboard) rules
	Weight         decimal.Decimal // points per formatted token
	PointsPerToken decimal.Decimal // points per NFT item
}

// Threshold is a requirement with its effective minimum resolved for a run.
type Threshold struct {
	Requirement
	Effective decimal.Decimal
}

// Met reports whether holdings satisfy the effective minimum.
// NFT counts compare against the threshold as an exact decimal.
func (t Threshold) Met(h AggregatedHoldings) bool {
	switch t.Kind {
	case AssetNft:
		return decimal.NewFromInt(h.NftCount(t.AssetAddress)).GreaterThanOrEqual(t.Effective)
	default:
		return h.TokenBalance(t.AssetAddress).GreaterThanOrEqual(t.Effective)
	}
}

// Held reports whether holdings contain any positive amount of the asset.
func (t Threshold) Held(h AggregatedHoldings) bool {
	switch t.Kind {
	case AssetNft:
		return h.NftCount(t.AssetAddress) > 0
	default:
		return h.TokenBalance(t.AssetAddress).IsPositive()
	}
}
