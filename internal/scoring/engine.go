package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/holdings"
)

var (
	// ErrMissingProject is returned when no project name is configured.
	ErrMissingProject = errors.New("missing project")
	// ErrMissingFlavor is returned when Options.Flavor is nil.
	ErrMissingFlavor = errors.New("missing leaderboard flavor")
	// ErrPermanentExcluded is returned when a handle is both permanent and excluded.
	ErrPermanentExcluded = errors.New("handle is both permanent and excluded")
)

var two = decimal.NewFromInt(2)

// Multipliers supplies oracle multipliers by symbol.
type Multipliers interface {
	Multiplier(ctx context.Context, symbol string) decimal.Decimal
}

// Options configures an Engine.
type Options struct {
	Project          string
	Flavor           Flavor
	Rules            []domain.Requirement
	PermanentHandles []domain.Handle
	ExcludedHandles  []domain.Handle
	MaxEntries       int // 0 keeps every entry
	SumAcrossWallets bool
	Logger           *zap.Logger
}

// Engine ranks identities by points.
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
	if opts.Flavor == nil {
		return nil, ErrMissingFlavor
	}
	if len(opts.Rules) == 0 {
		return nil, ErrMissingRules
	}

	e := &Engine{
		opts:      opts,
		permanent: make(map[domain.Handle]struct{}, len(opts.PermanentHandles)),
		excluded:  make(map[domain.Handle]struct{}, len(opts.ExcludedHandles)),
		logger:    opts.Logger,
	}
	for _, h := range opts.PermanentHandles {
		e.permanent[h] = struct{}{}
	}
	for _, h := range opts.ExcludedHandles {
		if _, ok := e.permanent[h]; ok {
			return nil, fmt.Errorf("%w: %s", ErrPermanentExcluded, h)
		}
		e.excluded[h] = struct{}{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e, nil
}

// Flavor returns the configured flavor.
func (e *Engine) Flavor() Flavor { return e.opts.Flavor }

// Thresholds resolves rule minimums once for the run. The oracle is read only
// for dynamic rules; in sum mode every minimum is halved.
func (e *Engine) Thresholds(ctx context.Context, m Multipliers) []domain.Threshold {
	out := make([]domain.Threshold, 0, len(e.opts.Rules))
	for _, r := range e.opts.Rules {
		multiplier := decimal.Zero
		if r.Dynamic {
			multiplier = m.Multiplier(ctx, r.Symbol)
		}
		threshold := e.opts.Flavor.DynamicMinimumBalance(r, multiplier)
		if e.opts.SumAcrossWallets {
			threshold = threshold.Div(two)
		}
		out = append(out, domain.Threshold{Requirement: r, Effective: threshold})
	}
	return out
}

type scored struct {
	profile holdings.Profile
	points  Points
	primary domain.Address
}

// Rank scores profiles and returns ranked entries.
//
// Excluded handles are dropped. Identities the flavor rejects are dropped
// unless permanent. Entries are stable-sorted by total points, descending, so
// equal totals keep input order. Ranks are 1-based and contiguous.
func (e *Engine) Rank(rules []domain.Threshold, profiles []holdings.Profile) []domain.LeaderboardEntry {
	candidates := make([]scored, 0, len(profiles))
	for _, p := range profiles {
		h := p.Handle()
		if _, ok := e.excluded[h]; ok {
			continue
		}
		points := e.opts.Flavor.CalculatePoints(p.Combined, rules)
		_, permanent := e.permanent[h]
		if !permanent && !e.opts.Flavor.CheckEligibility(p.Combined, points) {
			e.logger.Debug("identity not eligible",
				zap.String("handle", h.String()),
				zap.String("flavor", e.opts.Flavor.Name()),
				zap.String("points", points.Total.String()))
			continue
		}
		candidates = append(candidates, scored{
			profile: p,
			points:  points,
			primary: e.primaryAddress(p, rules),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].points.Total.GreaterThan(candidates[j].points.Total)
	})

	if e.opts.MaxEntries > 0 && len(candidates) > e.opts.MaxEntries {
		candidates = candidates[:e.opts.MaxEntries]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(candidates))
	for i, c := range candidates {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:           i + 1,
			Handle:         c.profile.Handle().String(),
			TotalPoints:    c.points.Total.InexactFloat64(),
			TokenPoints:    toFloats(c.points.Tokens),
			NftPoints:      toFloats(c.points.Nfts),
			PrimaryAddress: c.primary.String(),
			AvatarURL:      c.profile.Identity.AvatarURL,
		})
	}
	return entries
}

// primaryAddress is the member with the most individual points. Ties keep member order.
func (e *Engine) primaryAddress(p holdings.Profile, rules []domain.Threshold) domain.Address {
	var (
		best   domain.Address
		bestPt decimal.Decimal
	)
	for i, ah := range p.ByAddress {
		pts := e.opts.Flavor.CalculatePoints(ah.Holdings, rules).Total
		if i == 0 || pts.GreaterThan(bestPt) {
			best, bestPt = ah.Address, pts
		}
	}
	return best
}

// Leaderboard wraps entries for publication.
func (e *Engine) Leaderboard(entries []domain.LeaderboardEntry, runID string, at time.Time) domain.Leaderboard {
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return domain.Leaderboard{
		Project:   e.opts.Project,
		RunID:     runID,
		Timestamp: domain.FormatTimestamp(at),
		Entries:   entries,
	}
}

func toFloats(m map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v.InexactFloat64()
	}
	return out
}
