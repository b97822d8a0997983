package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"holder-tiers/internal/batch"
	"holder-tiers/internal/domain"
	"holder-tiers/internal/mapping"
	"holder-tiers/internal/social"
)

// Options configures a Resolver.
type Options struct {
	Addresses        social.AddressResolver // address→handle; nil leaves unmapped addresses unresolved
	Handles          social.HandleResolver  // handle→address; used only with SumAcrossWallets
	Batcher          *batch.Batcher
	SumAcrossWallets bool
	Logger           *zap.Logger
}

// Resolver builds the identity set of a run.
type Resolver struct {
	addresses social.AddressResolver
	handles   social.HandleResolver
	batcher   *batch.Batcher
	sum       bool
	logger    *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		addresses: opts.Addresses,
		handles:   opts.Handles,
		batcher:   opts.Batcher,
		sum:       opts.SumAcrossWallets,
		logger:    opts.Logger,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.batcher == nil {
		r.batcher = batch.New(batch.Options{Logger: r.logger})
	}
	// Single lookups degrade to "unresolved"; only a full outage fails the run.
	r.batcher = r.batcher.WithFailFast(false)
	return r
}

// Resolve links observed addresses to identities.
//
// Mapping rows are linked first, in table order, so a mapping link is never
// displaced by a later lookup. Observed addresses missing from the table are
// looked up by address; a nil result leaves them unresolved. With
// SumAcrossWallets, identities known only from the mapping are then looked up
// by handle and any new wallet is added as a derived member.
//
// Resolve returns an error wrapping batch.ErrRetryExhausted when every lookup
// of a non-empty stage failed.
func (r *Resolver) Resolve(ctx context.Context, table *mapping.Table, observed []domain.Address) (*Set, error) {
	set := NewSet()

	for _, e := range table.Entries() {
		r.link(set, e.Address, e.Handle, domain.ProvenanceMapping)
	}

	pending := make([]domain.Address, 0, len(observed))
	seen := make(map[domain.Address]struct{}, len(observed))
	for _, addr := range observed {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		if _, mapped := set.Owner(addr); mapped {
			continue
		}
		pending = append(pending, addr)
	}

	if err := r.resolveAddresses(ctx, set, pending); err != nil {
		return nil, err
	}

	if r.sum && r.handles != nil {
		if err := r.deriveWallets(ctx, set); err != nil {
			return nil, err
		}
	}

	r.logger.Info("identities resolved",
		zap.Int("identities", set.Len()),
		zap.Int("mapped_rows", table.Len()),
		zap.Int("looked_up", len(pending)),
		zap.Int("unresolved", len(set.Unresolved())),
		zap.Int("conflicts", len(set.Conflicts())))
	return set, nil
}

func (r *Resolver) resolveAddresses(ctx context.Context, set *Set, pending []domain.Address) error {
	if len(pending) == 0 {
		return nil
	}
	if r.addresses == nil {
		for _, addr := range pending {
			set.MarkUnresolved(addr)
		}
		return nil
	}

	results, err := batch.Run(ctx, r.batcher.Named("resolve-handle"), pending,
		func(ctx context.Context, addr domain.Address) (*social.Profile, error) {
			return r.addresses.ResolveHandleForAddress(ctx, addr)
		})
	if err != nil {
		return fmt.Errorf("resolve handles: %w", err)
	}
	if s := batch.Summarize(results); s.AllFailed() {
		return fmt.Errorf("%w: all %d address lookups failed", batch.ErrRetryExhausted, s.Failed)
	}

	for i, res := range results {
		addr := pending[i]
		if res.Err != nil || res.Value == nil || res.Value.Handle == "" {
			set.MarkUnresolved(addr)
			continue
		}
		r.link(set, addr, res.Value.Handle, domain.ProvenanceResolved)
		set.SetAvatar(res.Value.Handle, res.Value.AvatarURL)
	}
	return nil
}

func (r *Resolver) deriveWallets(ctx context.Context, set *Set) error {
	var targets []domain.Handle
	for _, id := range set.Identities() {
		if id.OnlyProvenance(domain.ProvenanceMapping) {
			targets = append(targets, id.Handle)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	results, err := batch.Run(ctx, r.batcher.Named("resolve-address"), targets,
		func(ctx context.Context, h domain.Handle) (*social.Wallet, error) {
			return r.handles.ResolveAddressForHandle(ctx, h)
		})
	if err != nil {
		return fmt.Errorf("resolve wallets: %w", err)
	}
	if s := batch.Summarize(results); s.AllFailed() {
		return fmt.Errorf("%w: all %d handle lookups failed", batch.ErrRetryExhausted, s.Failed)
	}

	for i, res := range results {
		if res.Err != nil || res.Value == nil || res.Value.Address == "" {
			continue
		}
		handle := targets[i]
		r.link(set, res.Value.Address, handle, domain.ProvenanceDerived)
		set.SetAvatar(handle, res.Value.AvatarURL)
	}
	return nil
}

func (r *Resolver) link(set *Set, addr domain.Address, handle domain.Handle, p domain.Provenance) {
	if set.Link(addr, handle, p) != Conflict {
		return
	}
	owner, _ := set.Owner(addr)
	r.logger.Warn("address already owned, link ignored",
		zap.String("address", addr.String()),
		zap.String("owner", owner.String()),
		zap.String("claimant", handle.String()),
		zap.String("provenance", string(p)))
}
