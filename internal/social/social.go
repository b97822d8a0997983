// Package social resolves wallet addresses to social handles and back.
package social

import (
	"context"

	"holder-tiers/internal/domain"
)

// Profile is the result of an address→handle lookup.
type Profile struct {
	Handle    domain.Handle
	AvatarURL string
}

// Wallet is the result of a handle→address lookup.
type Wallet struct {
	Address   domain.Address
	AvatarURL string
}

// AddressResolver finds the handle that owns an address.
type AddressResolver interface {
	// ResolveHandleForAddress returns nil when the address has no known owner.
	ResolveHandleForAddress(ctx context.Context, addr domain.Address) (*Profile, error)
}

// HandleResolver finds a wallet registered to a handle.
type HandleResolver interface {
	// ResolveAddressForHandle returns nil when the handle has no known wallet.
	ResolveAddressForHandle(ctx context.Context, handle domain.Handle) (*Wallet, error)
}
