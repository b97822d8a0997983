// Package holdings accumulates per-address balances and combines them per identity.
package holdings

import "holder-tiers/internal/domain"

// Book maps addresses to the assets they hold. Reads of unknown addresses
// return empty maps. Not safe for concurrent use.
type Book struct {
	tokens map[domain.Address]map[domain.Address]domain.TokenHolding
	nfts   map[domain.Address]map[domain.Address]domain.NftHolding
	order  []domain.Address
	seen   map[domain.Address]struct{}
}

// NewBook returns an empty Book.
func NewBook() *Book {
	return &Book{
		tokens: make(map[domain.Address]map[domain.Address]domain.TokenHolding),
		nfts:   make(map[domain.Address]map[domain.Address]domain.NftHolding),
		seen:   make(map[domain.Address]struct{}),
	}
}

// AddToken records a token balance. Non-positive balances are ignored.
// A second entry for the same holder and asset is added to the first.
func (b *Book) AddToken(holder domain.Address, h domain.TokenHolding) {
	if !h.RawBalance.IsPositive() && !h.Balance.IsPositive() {
		return
	}
	assets, ok := b.tokens[holder]
	if !ok {
		assets = make(map[domain.Address]domain.TokenHolding)
		b.tokens[holder] = assets
	}
	if prev, ok := assets[h.AssetAddress]; ok {
		h = sumToken(prev, h)
	}
	assets[h.AssetAddress] = h
	b.observe(holder)
}

// AddNft records an NFT count. Non-positive counts are ignored.
func (b *Book) AddNft(holder domain.Address, h domain.NftHolding) {
	if h.Count <= 0 {
		return
	}
	assets, ok := b.nfts[holder]
	if !ok {
		assets = make(map[domain.Address]domain.NftHolding)
		b.nfts[holder] = assets
	}
	if prev, ok := assets[h.AssetAddress]; ok {
		h.Count += prev.Count
	}
	assets[h.AssetAddress] = h
	b.observe(holder)
}

// Tokens returns the token holdings of addr.
func (b *Book) Tokens(addr domain.Address) map[domain.Address]domain.TokenHolding {
	if assets, ok := b.tokens[addr]; ok {
		return assets
	}
	return map[domain.Address]domain.TokenHolding{}
}

// Nfts returns the NFT holdings of addr.
func (b *Book) Nfts(addr domain.Address) map[domain.Address]domain.NftHolding {
	if assets, ok := b.nfts[addr]; ok {
		return assets
	}
	return map[domain.Address]domain.NftHolding{}
}

// Addresses returns every holder in first-seen order.
func (b *Book) Addresses() []domain.Address {
	return append([]domain.Address(nil), b.order...)
}

// Len returns the number of distinct holders.
func (b *Book) Len() int { return len(b.order) }

func (b *Book) observe(addr domain.Address) {
	if _, ok := b.seen[addr]; ok {
		return
	}
	b.seen[addr] = struct{}{}
	b.order = append(b.order, addr)
}
