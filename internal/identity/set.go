// Package identity merges wallet addresses into community identities.
package identity

import "holder-tiers/internal/domain"

// LinkOutcome is the result of Set.Link.
type LinkOutcome int

const (
	// Linked means the address was added to the identity.
	Linked LinkOutcome = iota
	// AlreadyLinked means the identity already owned the address.
	AlreadyLinked
	// Conflict means another identity owns the address; nothing changed.
	Conflict
	// Skipped means the handle was empty.
	Skipped
)

func (o LinkOutcome) String() string {
	switch o {
	case Linked:
		return "linked"
	case AlreadyLinked:
		return "already_linked"
	case Conflict:
		return "conflict"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// LinkConflict records an address claimed by a handle other than its owner.
type LinkConflict struct {
	Address    domain.Address
	Owner      domain.Handle
	Claimant   domain.Handle
	Provenance domain.Provenance // provenance of the rejected claim
}

// Set accumulates identities for one run. Lookups are total: a missing
// handle or address never panics. Not safe for concurrent use.
type Set struct {
	order      []domain.Handle
	byHandle   map[domain.Handle]*domain.Identity
	owner      map[domain.Address]domain.Handle
	conflicts  []LinkConflict
	unresolved []domain.Address
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{
		byHandle: make(map[domain.Handle]*domain.Identity),
		owner:    make(map[domain.Address]domain.Handle),
	}
}

// Link attaches addr to handle with the given provenance, creating the
// identity on first use. An address has exactly one owner for the run: the
// first handle to claim it keeps it.
func (s *Set) Link(addr domain.Address, handle domain.Handle, p domain.Provenance) LinkOutcome {
	if handle == "" || addr == "" {
		return Skipped
	}
	if owner, ok := s.owner[addr]; ok {
		if owner == handle {
			return AlreadyLinked
		}
		s.conflicts = append(s.conflicts, LinkConflict{
			Address:    addr,
			Owner:      owner,
			Claimant:   handle,
			Provenance: p,
		})
		return Conflict
	}

	id := s.ensure(handle)
	id.Members = append(id.Members, domain.Member{Address: addr, Provenance: p})
	s.owner[addr] = handle
	return Linked
}

// SetAvatar records an avatar for handle. The first non-empty URL wins.
func (s *Set) SetAvatar(handle domain.Handle, url string) {
	id, ok := s.byHandle[handle]
	if !ok || url == "" || id.AvatarURL != "" {
		return
	}
	id.AvatarURL = url
}

// MarkUnresolved records that addr could not be linked to any identity.
func (s *Set) MarkUnresolved(addr domain.Address) {
	s.unresolved = append(s.unresolved, addr)
}

// Get returns the identity for handle.
func (s *Set) Get(handle domain.Handle) (*domain.Identity, bool) {
	id, ok := s.byHandle[handle]
	return id, ok
}

// Owner returns the handle owning addr.
func (s *Set) Owner(addr domain.Address) (domain.Handle, bool) {
	h, ok := s.owner[addr]
	return h, ok
}

// Identities returns identities in creation order.
func (s *Set) Identities() []*domain.Identity {
	out := make([]*domain.Identity, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, s.byHandle[h])
	}
	return out
}

// Len returns the number of identities.
func (s *Set) Len() int { return len(s.order) }

// Conflicts returns rejected claims in the order they occurred.
func (s *Set) Conflicts() []LinkConflict {
	return append([]LinkConflict(nil), s.conflicts...)
}

// Unresolved returns addresses marked unresolved that no identity owns.
func (s *Set) Unresolved() []domain.Address {
	out := make([]domain.Address, 0, len(s.unresolved))
	seen := make(map[domain.Address]struct{}, len(s.unresolved))
	for _, a := range s.unresolved {
		if _, owned := s.owner[a]; owned {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// CountByProvenance counts linked addresses per provenance.
func (s *Set) CountByProvenance() map[domain.Provenance]int {
	counts := make(map[domain.Provenance]int, 3)
	for _, id := range s.byHandle {
		for _, m := range id.Members {
			counts[m.Provenance]++
		}
	}
	return counts
}

func (s *Set) ensure(handle domain.Handle) *domain.Identity {
	if id, ok := s.byHandle[handle]; ok {
		return id
	}
	id := &domain.Identity{Handle: handle}
	s.byHandle[handle] = id
	s.order = append(s.order, handle)
	return id
}
