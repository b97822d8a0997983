package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/holdings"
	"holder-tiers/internal/oracle"
)

const (
	muMint  = domain.Address("mu-mint")
	genesis = domain.Address("genesis")
)

func muRule(weight, min int64) domain.Requirement {
	return domain.Requirement{
		Kind:         domain.AssetToken,
		AssetAddress: muMint,
		Symbol:       "MU",
		MinBalance:   decimal.NewFromInt(min),
		Weight:       decimal.NewFromInt(weight),
	}
}

func genesisRule(ppt int64) domain.Requirement {
	return domain.Requirement{
		Kind:           domain.AssetNft,
		AssetAddress:   genesis,
		Symbol:         "Genesis",
		MinBalance:     decimal.NewFromInt(1),
		PointsPerToken: decimal.NewFromInt(ppt),
	}
}

type holder struct {
	handle domain.Handle
	addrs  []domain.Address
}

func profiles(book *holdings.Book, sum bool, holders ...holder) []holdings.Profile {
	ids := make([]*domain.Identity, 0, len(holders))
	for _, h := range holders {
		id := &domain.Identity{Handle: h.handle}
		for _, a := range h.addrs {
			id.Members = append(id.Members, domain.Member{Address: a, Provenance: domain.ProvenanceResolved})
		}
		ids = append(ids, id)
	}
	return holdings.Aggregator{SumAcrossWallets: sum}.Profiles(ids, book)
}

func addMU(book *holdings.Book, addr domain.Address, amount int64) {
	book.AddToken(addr, domain.NewTokenHolding(muMint, "MU", decimal.NewFromInt(amount), 0))
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Project == "" {
		opts.Project = "test"
	}
	if opts.Flavor == nil {
		opts.Flavor = WeightedFlavor{}
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func rank(e *Engine, p []holdings.Profile) []domain.LeaderboardEntry {
	cache := oracle.NewCache(nil, decimal.Zero, nil)
	return e.Rank(e.Thresholds(context.Background(), cache), p)
}

func TestRank_StableForTies(t *testing.T) {
	book := holdings.NewBook()
	addMU(book, "0x1", 10)
	addMU(book, "0x2", 50)
	addMU(book, "0x3", 10)
	addMU(book, "0x4", 10)

	e := newEngine(t, Options{Rules: []domain.Requirement{muRule(1, 0)}})
	entries := rank(e, profiles(book, false,
		holder{"carol", []domain.Address{"0x1"}},
		holder{"alice", []domain.Address{"0x2"}},
		holder{"bob", []domain.Address{"0x3"}},
		holder{"dave", []domain.Address{"0x4"}},
	))

	want := []string{"alice", "carol", "bob", "dave"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, h := range want {
		if entries[i].Handle != h {
			t.Errorf("position %d: got %s, want %s", i, entries[i].Handle, h)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("position %d: rank %d", i, entries[i].Rank)
		}
	}
}

func TestRank_PointsBreakdown(t *testing.T) {
	book := holdings.NewBook()
	addMU(book, "0xa", 100)
	addMU(book, "0xb", 300)
	book.AddNft("0xa", domain.NftHolding{AssetAddress: genesis, Name: "Genesis", Count: 2})

	e := newEngine(t, Options{
		Rules:            []domain.Requirement{muRule(2, 0), genesisRule(50)},
		SumAcrossWallets: true,
	})
	entries := rank(e, profiles(book, true, holder{"alice", []domain.Address{"0xa", "0xb"}}))

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.TotalPoints != 900 {
		t.Errorf("expected 900 points, got %v", got.TotalPoints)
	}
	if got.TokenPoints["MU"] != 800 || got.NftPoints["Genesis"] != 100 {
		t.Errorf("unexpected breakdown %v %v", got.TokenPoints, got.NftPoints)
	}
	if got.PrimaryAddress != "0xb" {
		t.Errorf("primary address should hold the most points, got %s", got.PrimaryAddress)
	}
}

func TestRank_PrimaryAddressTieKeepsMemberOrder(t *testing.T) {
	book := holdings.NewBook()
	addMU(book, "0xa", 10)
	addMU(book, "0xb", 10)

	e := newEngine(t, Options{Rules: []domain.Requirement{muRule(1, 0)}})
	entries := rank(e, profiles(book, false, holder{"bob", []domain.Address{"0xa", "0xb"}}))
	if entries[0].PrimaryAddress != "0xa" {
		t.Errorf("got %s", entries[0].PrimaryAddress)
	}
}

func TestRank_ExcludedPermanentAndCap(t *testing.T) {
	book := holdings.NewBook()
	addMU(book, "0x1", 500)
	addMU(book, "0x2", 400)
	addMU(book, "0x3", 300)
	addMU(book, "0x4", 200)

	e := newEngine(t, Options{
		Rules:            []domain.Requirement{muRule(1, 0)},
		ExcludedHandles:  []domain.Handle{"whale"},
		PermanentHandles: []domain.Handle{"team"},
		MaxEntries:       3,
	})
	entries := rank(e, profiles(book, false,
		holder{"whale", []domain.Address{"0x1"}},
		holder{"a", []domain.Address{"0x2"}},
		holder{"b", []domain.Address{"0x3"}},
		holder{"team", []domain.Address{"0x9"}}, // no holdings
		holder{"c", []domain.Address{"0x4"}},
	))

	var got []string
	for _, e := range entries {
		got = append(got, e.Handle)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}

	uncapped := newEngine(t, Options{
		Rules:            []domain.Requirement{muRule(1, 0)},
		PermanentHandles: []domain.Handle{"team"},
	})
	all := rank(uncapped, profiles(book, false,
		holder{"a", []domain.Address{"0x2"}},
		holder{"team", []domain.Address{"0x9"}},
	))
	if len(all) != 2 || all[1].Handle != "team" || all[1].TotalPoints != 0 {
		t.Errorf("permanent zero-point identity should be kept last, got %+v", all)
	}
}

func TestRank_GatedIgnoresBelowMinimum(t *testing.T) {
	book := holdings.NewBook()
	addMU(book, "0x1", 99)
	addMU(book, "0x2", 100)

	e := newEngine(t, Options{Flavor: GatedFlavor{}, Rules: []domain.Requirement{muRule(1, 100)}})
	entries := rank(e, profiles(book, false,
		holder{"short", []domain.Address{"0x1"}},
		holder{"ok", []domain.Address{"0x2"}},
	))
	if len(entries) != 1 || entries[0].Handle != "ok" {
		t.Errorf("got %+v", entries)
	}
}

func TestThresholds_DynamicGated(t *testing.T) {
	rule := muRule(1, 0)
	rule.Dynamic = true
	rule.BaseUnits = decimal.NewFromInt(100)

	e := newEngine(t, Options{Flavor: DynamicGatedFlavor{}, Rules: []domain.Requirement{rule}, SumAcrossWallets: true})
	cache := oracle.NewCache(oracle.Static{"MU": decimal.NewFromInt(1)}, decimal.Zero, nil)

	got := e.Thresholds(context.Background(), cache)
	if !got[0].Effective.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected 50, got %s", got[0].Effective)
	}
}

func TestNew_Errors(t *testing.T) {
	rules := []domain.Requirement{muRule(1, 0)}
	if _, err := New(Options{Flavor: WeightedFlavor{}, Rules: rules}); !errors.Is(err, ErrMissingProject) {
		t.Errorf("expected ErrMissingProject, got %v", err)
	}
	if _, err := New(Options{Project: "p", Rules: rules}); !errors.Is(err, ErrMissingFlavor) {
		t.Errorf("expected ErrMissingFlavor, got %v", err)
	}
	_, err := New(Options{
		Project: "p", Flavor: WeightedFlavor{}, Rules: rules,
		PermanentHandles: []domain.Handle{"x"}, ExcludedHandles: []domain.Handle{"x"},
	})
	if !errors.Is(err, ErrPermanentExcluded) {
		t.Errorf("expected ErrPermanentExcluded, got %v", err)
	}
}

func TestLeaderboard(t *testing.T) {
	e := newEngine(t, Options{Project: "mu", Rules: []domain.Requirement{muRule(1, 0)}})
	lb := e.Leaderboard(nil, "r1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	if lb.Project != "mu" || lb.RunID != "r1" || lb.Timestamp != "2026-03-01T00:00:00.000Z" {
		t.Errorf("unexpected leaderboard %+v", lb)
	}
	if lb.Entries == nil {
		t.Error("entries should be an empty slice")
	}
}
