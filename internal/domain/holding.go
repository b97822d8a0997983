package domain

import "github.com/shopspring/decimal"

// TokenHolding is one address's balance of one fungible token.
// Immutable once fetched for a run.
type TokenHolding struct {
	AssetAddress Address         // token mint / contract
	Symbol       string          // display symbol
	RawBalance   decimal.Decimal // integer base units
	Decimals     int32           // token decimals
	Balance      decimal.Decimal // RawBalance shifted by Decimals
}

// NewTokenHolding builds a holding from raw base units, deriving the formatted balance.
func NewTokenHolding(asset Address, symbol string, raw decimal.Decimal, decimals int32) TokenHolding {
	return TokenHolding{
		AssetAddress: asset,
		Symbol:       symbol,
		RawBalance:   raw,
		Decimals:     decimals,
		Balance:      raw.Shift(-decimals),
	}
}

// NftHolding is one address's item count of one NFT collection.
type NftHolding struct {
	AssetAddress Address // collection address
	Name         string  // collection name
	Count        int64   // items held
}

// AggregatedHoldings is the combined holdings of an identity keyed by asset address.
// Exactly one entry per asset; zero balances are omitted.
type AggregatedHoldings struct {
	Tokens map[Address]TokenHolding
	Nfts   map[Address]NftHolding
}

// NewAggregatedHoldings returns empty, non-nil holdings.
func NewAggregatedHoldings() AggregatedHoldings {
	return AggregatedHoldings{
		Tokens: make(map[Address]TokenHolding),
		Nfts:   make(map[Address]NftHolding),
	}
}

// TokenBalance returns the formatted balance of asset, zero when absent.
func (h AggregatedHoldings) TokenBalance(asset Address) decimal.Decimal {
	if t, ok := h.Tokens[asset]; ok {
		return t.Balance
	}
	return decimal.Zero
}

// NftCount returns the item count of asset, zero when absent.
func (h AggregatedHoldings) NftCount(asset Address) int64 {
	if n, ok := h.Nfts[asset]; ok {
		return n.Count
	}
	return 0
}

// IsEmpty reports whether no asset is held.
func (h AggregatedHoldings) IsEmpty() bool {
	return len(h.Tokens) == 0 && len(h.Nfts) == 0
}
