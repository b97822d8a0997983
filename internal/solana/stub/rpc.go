package stub

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/solana"
)

// HolderSource implements solana.HolderSource for testing.
// Unknown assets have no holders. Safe for concurrent use.
type HolderSource struct {
	mu     sync.Mutex
	Tokens map[domain.Address][]solana.TokenHolder
	Nfts   map[domain.Address][]solana.NftHolder
	Errs   map[domain.Address]error
	calls  map[domain.Address]int
}

var _ solana.HolderSource = (*HolderSource)(nil)

// NewHolderSource creates an empty stub.
func NewHolderSource() *HolderSource {
	return &HolderSource{
		Tokens: make(map[domain.Address][]solana.TokenHolder),
		Nfts:   make(map[domain.Address][]solana.NftHolder),
		Errs:   make(map[domain.Address]error),
		calls:  make(map[domain.Address]int),
	}
}

// AddTokenHolder adds a holder with a raw balance of mint.
func (s *HolderSource) AddTokenHolder(mint, owner domain.Address, raw int64, decimals int32) {
	r := decimal.NewFromInt(raw)
	s.Tokens[mint] = append(s.Tokens[mint], solana.TokenHolder{
		Address:    owner,
		RawBalance: r,
		Decimals:   decimals,
		Balance:    r.Shift(-decimals),
	})
}

// AddNftHolder adds a holder of count items of collection.
func (s *HolderSource) AddNftHolder(collection, owner domain.Address, count int64) {
	s.Nfts[collection] = append(s.Nfts[collection], solana.NftHolder{Address: owner, Count: count})
}

// ListTokenHolders returns stored holders at or above minBalance.
func (s *HolderSource) ListTokenHolders(_ context.Context, mint domain.Address, minBalance decimal.Decimal) ([]solana.TokenHolder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[mint]++
	if err := s.Errs[mint]; err != nil {
		return nil, err
	}
	var out []solana.TokenHolder
	for _, h := range s.Tokens[mint] {
		if h.Balance.GreaterThanOrEqual(minBalance) {
			out = append(out, h)
		}
	}
	return out, nil
}

// ListNftHolders returns stored holders with at least minCount items.
func (s *HolderSource) ListNftHolders(_ context.Context, collection domain.Address, minCount int64) ([]solana.NftHolder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[collection]++
	if err := s.Errs[collection]; err != nil {
		return nil, err
	}
	var out []solana.NftHolder
	for _, h := range s.Nfts[collection] {
		if h.Count >= minCount {
			out = append(out, h)
		}
	}
	return out, nil
}

// Calls returns how many times asset was listed.
func (s *HolderSource) Calls(asset domain.Address) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[asset]
}
