package eligibility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/holdings"
)

var (
	// ErrMissingProject is returned when no project name is configured.
	ErrMissingProject = errors.New("missing project")
	// ErrMissingBasicTier is returned when the basic tier has no requirements.
	ErrMissingBasicTier = errors.New("missing basic tier requirements")
	// ErrPermanentExcluded is returned when a handle is both permanent and excluded.
	ErrPermanentExcluded = errors.New("handle is both permanent and excluded")
)

// Options configures an Engine.
type Options struct {
	Project                 string
	Basic                   []domain.Requirement
	Upgraded                []domain.Requirement // nil or empty: no upgraded tier
	PermanentHandles        []domain.Handle
	ExcludedHandles         []domain.Handle
	ExcludeBasicForUpgraded bool
	SumAcrossWallets        bool
	Logger                  *zap.Logger
}

// Tiers holds the thresholds resolved for one run.
type Tiers struct {
	Basic    []domain.Threshold
	Upgraded []domain.Threshold
}

// Engine evaluates badge tiers.
type Engine struct {
	opts      Options
	permanent map[domain.Handle]struct{}
	excluded  map[domain.Handle]struct{}
	logger    *zap.Logger
}

// New validates opts and creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Project == "" {
		return nil, ErrMissingProject
	}
	if len(opts.Basic) == 0 {
		return nil, ErrMissingBasicTier
	}

	e := &Engine{
		opts:      opts,
		permanent: toSet(opts.PermanentHandles),
		excluded:  toSet(opts.ExcludedHandles),
		logger:    opts.Logger,
	}
	for h := range e.permanent {
		if _, ok := e.excluded[h]; ok {
			return nil, fmt.Errorf("%w: %s", ErrPermanentExcluded, h)
		}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e, nil
}

// HasUpgradedTier reports whether an upgraded tier is configured.
func (e *Engine) HasUpgradedTier() bool { return len(e.opts.Upgraded) > 0 }

// Thresholds resolves both tiers once for the run.
func (e *Engine) Thresholds(ctx context.Context, m Multipliers) Tiers {
	t := Tiers{Basic: ResolveThresholds(ctx, e.opts.Basic, m, e.opts.SumAcrossWallets)}
	if e.HasUpgradedTier() {
		t.Upgraded = ResolveThresholds(ctx, e.opts.Upgraded, m, e.opts.SumAcrossWallets)
	}
	return t
}

// Evaluate returns one result per profile in input order, followed by
// permanent handles that have no profile, in configuration order.
//
// Precedence, lowest to highest: requirement checks, ExcludeBasicForUpgraded,
// permanent handles, excluded handles.
func (e *Engine) Evaluate(tiers Tiers, profiles []holdings.Profile) []domain.EligibilityResult {
	results := make([]domain.EligibilityResult, 0, len(profiles)+len(e.opts.PermanentHandles))
	seen := make(map[domain.Handle]struct{}, len(profiles))

	for _, p := range profiles {
		seen[p.Handle()] = struct{}{}
		results = append(results, e.evaluateOne(tiers, p))
	}
	for _, h := range e.opts.PermanentHandles {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		results = append(results, domain.EligibilityResult{
			Handle:    h,
			Basic:     true,
			Upgraded:  e.HasUpgradedTier(),
			Permanent: true,
		})
	}
	return results
}

func (e *Engine) evaluateOne(tiers Tiers, p holdings.Profile) domain.EligibilityResult {
	r := domain.EligibilityResult{Handle: p.Handle()}

	r.Basic = e.meets(p, tiers.Basic, "basic")
	if r.Basic && e.HasUpgradedTier() {
		r.Upgraded = e.meets(p, tiers.Upgraded, "upgraded")
	}

	if _, ok := e.permanent[r.Handle]; ok {
		r.Permanent = true
		r.Basic = true
		r.Upgraded = e.HasUpgradedTier()
	} else if e.opts.ExcludeBasicForUpgraded && r.Upgraded {
		r.Basic = false
	}

	if _, ok := e.excluded[r.Handle]; ok {
		return domain.EligibilityResult{Handle: r.Handle, Excluded: true}
	}

	if r.Basic {
		r.BasicAddresses = backing(p, tiers.Basic)
	}
	if r.Upgraded {
		r.UpgradedAddresses = backing(p, tiers.Upgraded)
	}
	return r
}

// meets is a pure conjunction; only the first failure is logged.
func (e *Engine) meets(p holdings.Profile, thresholds []domain.Threshold, tier string) bool {
	ok := true
	for _, t := range thresholds {
		if t.Met(p.Combined) {
			continue
		}
		if ok {
			e.logger.Debug("requirement not met",
				zap.String("handle", p.Handle().String()),
				zap.String("tier", tier),
				zap.String("asset", t.AssetAddress.String()),
				zap.String("symbol", t.Symbol),
				zap.String("required", t.Effective.String()))
		}
		ok = false
	}
	return ok
}

// backing returns member addresses holding any asset of the tier.
func backing(p holdings.Profile, thresholds []domain.Threshold) []domain.Address {
	var out []domain.Address
	for _, ah := range p.ByAddress {
		for _, t := range thresholds {
			if t.Held(ah.Holdings) {
				out = append(out, ah.Address)
				break
			}
		}
	}
	return out
}

// Badges builds the published badge result.
func (e *Engine) Badges(results []domain.EligibilityResult, runID string, at time.Time) domain.BadgeResult {
	out := domain.BadgeResult{
		Project:        e.opts.Project,
		RunID:          runID,
		BasicHandles:   []string{},
		BasicAddresses: []string{},
		Timestamp:      domain.FormatTimestamp(at),
	}
	if e.HasUpgradedTier() {
		out.UpgradedHandles = []string{}
		out.UpgradedAddresses = []string{}
	}

	basicSeen := make(map[domain.Address]struct{})
	upgradedSeen := make(map[domain.Address]struct{})
	for _, r := range results {
		if r.Basic {
			out.BasicHandles = append(out.BasicHandles, r.Handle.String())
			out.BasicAddresses = appendUnique(out.BasicAddresses, basicSeen, r.BasicAddresses)
		}
		if r.Upgraded && e.HasUpgradedTier() {
			out.UpgradedHandles = append(out.UpgradedHandles, r.Handle.String())
			out.UpgradedAddresses = appendUnique(out.UpgradedAddresses, upgradedSeen, r.UpgradedAddresses)
		}
	}
	return out
}

func appendUnique(dst []string, seen map[domain.Address]struct{}, addrs []domain.Address) []string {
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		dst = append(dst, a.String())
	}
	return dst
}

func toSet(handles []domain.Handle) map[domain.Handle]struct{} {
	out := make(map[domain.Handle]struct{}, len(handles))
	for _, h := range handles {
		out[h] = struct{}{}
	}
	return out
}
