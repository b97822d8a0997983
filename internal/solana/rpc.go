package solana

import (
	"context"

	"github.com/shopspring/decimal"

	"holder-tiers/internal/domain"
)

// HolderSource enumerates current holders of an asset.
type HolderSource interface {
	// ListTokenHolders returns owners whose combined balance of mint is at least minBalance
	// (formatted units), in first-seen order.
	ListTokenHolders(ctx context.Context, mint domain.Address, minBalance decimal.Decimal) ([]TokenHolder, error)

	// ListNftHolders returns owners holding at least minCount items of collection.
	ListNftHolders(ctx context.Context, collection domain.Address, minCount int64) ([]NftHolder, error)
}

// TokenHolder is one owner's balance of a token mint.
type TokenHolder struct {
	Address    domain.Address
	RawBalance decimal.Decimal // base units
	Decimals   int32
	Balance    decimal.Decimal // RawBalance shifted by Decimals
}

// NftHolder is one owner's item count in a collection.
type NftHolder struct {
	Address domain.Address
	Count   int64
}
