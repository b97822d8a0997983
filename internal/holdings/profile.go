package holdings

import "holder-tiers/internal/domain"

// AddressHoldings is one member wallet's own holdings.
type AddressHoldings struct {
	Address  domain.Address
	Holdings domain.AggregatedHoldings
}

// Profile is an identity with its combined and per-wallet holdings.
type Profile struct {
	Identity  *domain.Identity
	Combined  domain.AggregatedHoldings
	ByAddress []AddressHoldings // member order
}

// Handle returns the identity handle.
func (p Profile) Handle() domain.Handle { return p.Identity.Handle }

// Profile builds the holdings profile of id from book.
func (a Aggregator) Profile(id *domain.Identity, book *Book) Profile {
	addrs := id.Addresses()
	p := Profile{
		Identity:  id,
		Combined:  a.Aggregate(addrs, book),
		ByAddress: make([]AddressHoldings, 0, len(addrs)),
	}
	for _, addr := range addrs {
		p.ByAddress = append(p.ByAddress, AddressHoldings{Address: addr, Holdings: a.PerAddress(addr, book)})
	}
	return p
}

// Profiles builds profiles for identities in order.
func (a Aggregator) Profiles(ids []*domain.Identity, book *Book) []Profile {
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.Profile(id, book))
	}
	return out
}
