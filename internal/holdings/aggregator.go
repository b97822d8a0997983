package holdings

import "holder-tiers/internal/domain"

// Aggregator combines the holdings of an identity's wallets.
//
// In sum mode balances across wallets are added; raw base units are summed
// exactly and the formatted balance is derived from the raw sum. In max mode
// each asset takes the single largest wallet balance.
type Aggregator struct {
	SumAcrossWallets bool
}

// Aggregate combines the book entries of addresses. Assets with no positive
// balance on any address are absent from the result.
func (a Aggregator) Aggregate(addresses []domain.Address, book *Book) domain.AggregatedHoldings {
	out := domain.NewAggregatedHoldings()
	for _, addr := range addresses {
		for asset, h := range book.Tokens(addr) {
			a.addToken(out, asset, h)
		}
		for asset, h := range book.Nfts(addr) {
			a.addNft(out, asset, h)
		}
	}
	return out
}

// Merge combines two aggregates under the same policy.
func (a Aggregator) Merge(x, y domain.AggregatedHoldings) domain.AggregatedHoldings {
	out := domain.NewAggregatedHoldings()
	for _, src := range []domain.AggregatedHoldings{x, y} {
		for asset, h := range src.Tokens {
			a.addToken(out, asset, h)
		}
		for asset, h := range src.Nfts {
			a.addNft(out, asset, h)
		}
	}
	return out
}

// PerAddress returns the holdings of a single address.
func (a Aggregator) PerAddress(addr domain.Address, book *Book) domain.AggregatedHoldings {
	return a.Aggregate([]domain.Address{addr}, book)
}

func (a Aggregator) addToken(out domain.AggregatedHoldings, asset domain.Address, h domain.TokenHolding) {
	if !h.Balance.IsPositive() {
		return
	}
	prev, ok := out.Tokens[asset]
	switch {
	case !ok:
		out.Tokens[asset] = h
	case a.SumAcrossWallets:
		out.Tokens[asset] = sumToken(prev, h)
	case h.Balance.GreaterThan(prev.Balance):
		out.Tokens[asset] = h
	}
}

func (a Aggregator) addNft(out domain.AggregatedHoldings, asset domain.Address, h domain.NftHolding) {
	if h.Count <= 0 {
		return
	}
	prev, ok := out.Nfts[asset]
	switch {
	case !ok:
		out.Nfts[asset] = h
	case a.SumAcrossWallets:
		prev.Count += h.Count
		out.Nfts[asset] = prev
	case h.Count > prev.Count:
		out.Nfts[asset] = h
	}
}

// sumToken adds b into a. When decimals agree the formatted balance is
// re-derived from the raw sum; otherwise formatted balances are added.
func sumToken(a, b domain.TokenHolding) domain.TokenHolding {
	out := a
	if out.Symbol == "" {
		out.Symbol = b.Symbol
	}
	if a.Decimals == b.Decimals {
		out.RawBalance = a.RawBalance.Add(b.RawBalance)
		out.Balance = out.RawBalance.Shift(-out.Decimals)
		return out
	}
	out.Balance = a.Balance.Add(b.Balance)
	out.RawBalance = out.Balance.Shift(out.Decimals)
	return out
}
