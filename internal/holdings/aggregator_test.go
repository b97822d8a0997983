package holdings

import (
	"testing"

	"github.com/shopspring/decimal"

	"holder-tiers/internal/domain"
)

const mu = domain.Address("mu-mint")

func token(raw int64, decimals int32) domain.TokenHolding {
	return domain.NewTokenHolding(mu, "MU", decimal.NewFromInt(raw), decimals)
}

func nft(count int64) domain.NftHolding {
	return domain.NftHolding{AssetAddress: "genesis", Name: "Genesis", Count: count}
}

func bookOf(balances map[domain.Address]int64) *Book {
	b := NewBook()
	for addr, raw := range balances {
		b.AddToken(addr, token(raw, 0))
	}
	return b
}

func equalHoldings(t *testing.T, got, want domain.AggregatedHoldings) {
	t.Helper()
	if len(got.Tokens) != len(want.Tokens) || len(got.Nfts) != len(want.Nfts) {
		t.Fatalf("asset count mismatch: got %d/%d, want %d/%d",
			len(got.Tokens), len(got.Nfts), len(want.Tokens), len(want.Nfts))
	}
	for asset, w := range want.Tokens {
		g, ok := got.Tokens[asset]
		if !ok {
			t.Fatalf("missing token %s", asset)
		}
		if !g.Balance.Equal(w.Balance) || !g.RawBalance.Equal(w.RawBalance) {
			t.Errorf("token %s: got %s (%s raw), want %s (%s raw)", asset, g.Balance, g.RawBalance, w.Balance, w.RawBalance)
		}
	}
	for asset, w := range want.Nfts {
		if got.Nfts[asset].Count != w.Count {
			t.Errorf("nft %s: got %d, want %d", asset, got.Nfts[asset].Count, w.Count)
		}
	}
}

func TestAggregate_SumMode(t *testing.T) {
	book := bookOf(map[domain.Address]int64{"0xa": 60, "0xb": 60})
	got := Aggregator{SumAcrossWallets: true}.Aggregate([]domain.Address{"0xa", "0xb"}, book)

	if !got.TokenBalance(mu).Equal(decimal.NewFromInt(120)) {
		t.Errorf("expected 120, got %s", got.TokenBalance(mu))
	}
}

func TestAggregate_MaxMode(t *testing.T) {
	book := bookOf(map[domain.Address]int64{"0xa": 60, "0xb": 60})
	got := Aggregator{}.Aggregate([]domain.Address{"0xa", "0xb"}, book)

	if !got.TokenBalance(mu).Equal(decimal.NewFromInt(60)) {
		t.Errorf("expected 60, got %s", got.TokenBalance(mu))
	}
}

func TestAggregate_SumIsAssociativeAndCommutative(t *testing.T) {
	book := NewBook()
	book.AddToken("0xa", token(123_456_789, 6))
	book.AddToken("0xb", token(1, 6))
	book.AddToken("0xc", token(999_999_999_999, 6))
	book.AddNft("0xa", nft(2))
	book.AddNft("0xc", nft(3))

	agg := Aggregator{SumAcrossWallets: true}
	direct := agg.Aggregate([]domain.Address{"0xa", "0xb", "0xc"}, book)
	merged := agg.Merge(agg.Aggregate([]domain.Address{"0xa", "0xb"}, book), agg.Aggregate([]domain.Address{"0xc"}, book))
	reversed := agg.Aggregate([]domain.Address{"0xc", "0xb", "0xa"}, book)

	equalHoldings(t, merged, direct)
	equalHoldings(t, reversed, direct)
	if direct.NftCount("genesis") != 5 {
		t.Errorf("expected 5 nfts, got %d", direct.NftCount("genesis"))
	}
}

func TestAggregate_MaxNeverExceedsLargestWallet(t *testing.T) {
	balances := map[domain.Address]int64{"0x1": 10, "0x2": 700, "0x3": 300, "0x4": 0}
	book := bookOf(balances)
	book.AddNft("0x1", nft(4))
	book.AddNft("0x3", nft(9))

	got := Aggregator{}.Aggregate([]domain.Address{"0x1", "0x2", "0x3", "0x4"}, book)

	if !got.TokenBalance(mu).Equal(decimal.NewFromInt(700)) {
		t.Errorf("expected 700, got %s", got.TokenBalance(mu))
	}
	if got.NftCount("genesis") != 9 {
		t.Errorf("expected 9, got %d", got.NftCount("genesis"))
	}
}

func TestAggregate_ExactLargeBalances(t *testing.T) {
	// 2^63 base units twice overflows int64
	raw, _ := decimal.NewFromString("9223372036854775808")
	book := NewBook()
	book.AddToken("0xa", domain.NewTokenHolding(mu, "MU", raw, 9))
	book.AddToken("0xb", domain.NewTokenHolding(mu, "MU", raw, 9))

	got := Aggregator{SumAcrossWallets: true}.Aggregate([]domain.Address{"0xa", "0xb"}, book)

	want, _ := decimal.NewFromString("18446744073.709551616")
	if !got.TokenBalance(mu).Equal(want) {
		t.Errorf("expected %s, got %s", want, got.TokenBalance(mu))
	}
}

func TestAggregate_ZeroOmitted(t *testing.T) {
	book := NewBook()
	book.AddToken("0xa", token(0, 6))
	book.AddNft("0xa", nft(0))

	got := Aggregator{SumAcrossWallets: true}.Aggregate([]domain.Address{"0xa", "0xunknown"}, book)
	if !got.IsEmpty() {
		t.Errorf("expected no entries, got %+v", got)
	}
	if _, ok := got.Tokens[mu]; ok {
		t.Error("zero balance must not be stored")
	}
}

func TestBook_MissingAddress(t *testing.T) {
	book := NewBook()
	if len(book.Tokens("0xz")) != 0 || len(book.Nfts("0xz")) != 0 {
		t.Error("unknown address should have no holdings")
	}
}

func TestBook_AddressesFirstSeen(t *testing.T) {
	book := NewBook()
	book.AddToken("0xb", token(1, 0))
	book.AddNft("0xa", nft(1))
	book.AddToken("0xb", token(2, 0))

	got := book.Addresses()
	if len(got) != 2 || got[0] != "0xb" || got[1] != "0xa" {
		t.Errorf("got %v", got)
	}
	if !book.Tokens("0xb")[mu].RawBalance.Equal(decimal.NewFromInt(3)) {
		t.Errorf("repeated entries should accumulate, got %s", book.Tokens("0xb")[mu].RawBalance)
	}
}
