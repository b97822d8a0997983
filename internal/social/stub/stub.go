// Package stub provides in-memory social resolvers for tests.
package stub

import (
	"context"
	"sync"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/social"
)

// Resolver implements social.AddressResolver and social.HandleResolver.
// Missing keys resolve to nil. Safe for concurrent use.
type Resolver struct {
	mu          sync.Mutex
	Profiles    map[domain.Address]*social.Profile
	Wallets     map[domain.Handle]*social.Wallet
	AddressErrs map[domain.Address]error
	HandleErrs  map[domain.Handle]error
	AllErr      error // returned by every call when set

	addressCalls map[domain.Address]int
	handleCalls  map[domain.Handle]int
}

var (
	_ social.AddressResolver = (*Resolver)(nil)
	_ social.HandleResolver  = (*Resolver)(nil)
)

// NewResolver creates an empty stub.
func NewResolver() *Resolver {
	return &Resolver{
		Profiles:     make(map[domain.Address]*social.Profile),
		Wallets:      make(map[domain.Handle]*social.Wallet),
		AddressErrs:  make(map[domain.Address]error),
		HandleErrs:   make(map[domain.Handle]error),
		addressCalls: make(map[domain.Address]int),
		handleCalls:  make(map[domain.Handle]int),
	}
}

// AddProfile registers addr as owned by handle.
func (r *Resolver) AddProfile(addr domain.Address, handle domain.Handle, avatar string) {
	r.Profiles[addr] = &social.Profile{Handle: handle, AvatarURL: avatar}
}

// AddWallet registers addr as the wallet of handle.
func (r *Resolver) AddWallet(handle domain.Handle, addr domain.Address) {
	r.Wallets[handle] = &social.Wallet{Address: addr}
}

// ResolveHandleForAddress returns the registered profile.
func (r *Resolver) ResolveHandleForAddress(_ context.Context, addr domain.Address) (*social.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addressCalls[addr]++
	if r.AllErr != nil {
		return nil, r.AllErr
	}
	if err := r.AddressErrs[addr]; err != nil {
		return nil, err
	}
	return r.Profiles[addr], nil
}

// ResolveAddressForHandle returns the registered wallet.
func (r *Resolver) ResolveAddressForHandle(_ context.Context, handle domain.Handle) (*social.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handleCalls[handle]++
	if r.AllErr != nil {
		return nil, r.AllErr
	}
	if err := r.HandleErrs[handle]; err != nil {
		return nil, err
	}
	return r.Wallets[handle], nil
}

// AddressCalls returns how many times addr was looked up.
func (r *Resolver) AddressCalls(addr domain.Address) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addressCalls[addr]
}

// HandleCalls returns how many times handle was looked up.
func (r *Resolver) HandleCalls(handle domain.Handle) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handleCalls[handle]
}
