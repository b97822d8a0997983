package domain

// Provenance is the mechanism that established an address→identity link.
type Provenance string

// Provenance values.
const (
	ProvenanceMapping  Provenance = "mapping"  // static mapping file
	ProvenanceResolved Provenance = "resolved" // address→handle social lookup
	ProvenanceDerived  Provenance = "derived"  // handle→address reverse lookup
)

// Member is one wallet belonging to an identity.
type Member struct {
	Address    Address
	Provenance Provenance
}

// Identity is a community member backed by one or more wallets.
// Members are only ever appended, never removed or reassigned.
type Identity struct {
	Handle    Handle
	AvatarURL string
	Members   []Member
}

// Addresses returns member addresses in link order.
func (i *Identity) Addresses() []Address {
	out := make([]Address, len(i.Members))
	for idx, m := range i.Members {
		out[idx] = m.Address
	}
	return out
}

// OnlyProvenance reports whether every member was linked by p.
// An identity with no members reports false.
func (i *Identity) OnlyProvenance(p Provenance) bool {
	if len(i.Members) == 0 {
		return false
	}
	for _, m := range i.Members {
		if m.Provenance != p {
			return false
		}
	}
	return true
}
