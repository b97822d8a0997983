package pipeline

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holder-tiers/internal/batch"
	"holder-tiers/internal/domain"
	"holder-tiers/internal/holdings"
	"holder-tiers/internal/solana"
)

// listing is one holder enumeration of the run.
type listing struct {
	Kind    domain.AssetKind
	Asset   domain.Address
	Symbol  string
	Minimum decimal.Decimal // formatted units for tokens, item count for NFTs
}

type listed struct {
	tokens []solana.TokenHolder
	nfts   []solana.NftHolder
}

// listings returns one enumeration per distinct asset, in threshold order.
//
// The floor is the smallest effective minimum among thresholds on the asset.
// It is zero when partial balances still matter: in sum mode a wallet below
// the minimum can combine with others, and unfloored flavors award points for
// any holding.
func listings(thresholds []domain.Threshold, unfloored bool) []listing {
	out := make([]listing, 0, len(thresholds))
	index := make(map[string]int, len(thresholds))

	for _, t := range thresholds {
		key := string(t.Kind) + ":" + t.AssetAddress.String()
		floor := t.Effective
		if unfloored || floor.IsNegative() {
			floor = decimal.Zero
		}
		if i, ok := index[key]; ok {
			if floor.LessThan(out[i].Minimum) {
				out[i].Minimum = floor
			}
			continue
		}
		index[key] = len(out)
		out = append(out, listing{Kind: t.Kind, Asset: t.AssetAddress, Symbol: t.Symbol, Minimum: floor})
	}
	return out
}

// collect lists every asset and fills a book. Any listing that fails every
// attempt aborts the run.
func (r *Runner) collect(ctx context.Context, items []listing, logger *zap.Logger) (*holdings.Book, error) {
	results, err := batch.Run(ctx, r.batcher, items, func(ctx context.Context, l listing) (listed, error) {
		switch l.Kind {
		case domain.AssetNft:
			holders, err := r.opts.Holders.ListNftHolders(ctx, l.Asset, l.Minimum.Ceil().IntPart())
			return listed{nfts: holders}, err
		default:
			holders, err := r.opts.Holders.ListTokenHolders(ctx, l.Asset, l.Minimum)
			return listed{tokens: holders}, err
		}
	})
	if err != nil {
		if r.opts.Metrics != nil {
			r.opts.Metrics.RecordLookupFailures("list-holders", batch.Summarize(results).Failed)
		}
		return nil, classify("list holders", err)
	}

	book := holdings.NewBook()
	dropped := 0
	for i, res := range results {
		l := items[i]
		for _, h := range res.Value.tokens {
			addr, ok := r.holderAddress(h.Address)
			if !ok {
				dropped++
				continue
			}
			book.AddToken(addr, domain.NewTokenHolding(l.Asset, l.Symbol, h.RawBalance, h.Decimals))
		}
		for _, h := range res.Value.nfts {
			addr, ok := r.holderAddress(h.Address)
			if !ok {
				dropped++
				continue
			}
			book.AddNft(addr, domain.NftHolding{AssetAddress: l.Asset, Name: l.Symbol, Count: h.Count})
		}
		logger.Debug("asset listed",
			zap.String("kind", string(l.Kind)),
			zap.String("asset", l.Asset.String()),
			zap.String("minimum", l.Minimum.String()),
			zap.Int("holders", len(res.Value.tokens)+len(res.Value.nfts)))
	}

	logger.Info("holders collected",
		zap.Int("assets", len(items)),
		zap.Int("addresses", book.Len()),
		zap.Int("dropped", dropped))
	return book, nil
}

func (r *Runner) holderAddress(raw domain.Address) (domain.Address, bool) {
	addr, err := domain.NormalizeAddress(raw.String())
	if err != nil {
		return "", false
	}
	if _, excluded := r.opts.ExcludedAddresses[addr]; excluded {
		return "", false
	}
	return addr, true
}
