package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chainradar/internal/chains"
	"chainradar/internal/pricing"
)

type staticFetcher struct {
	chain  chains.Chain
	symbol string
	amount decimal.Decimal
	err    error
}

func (s *staticFetcher) Chain() chains.Chain { return s.chain }
func (s *staticFetcher) Symbol() string      { return s.symbol }

func (s *staticFetcher) FetchBalance(ctx context.Context, address string) (chains.Balance, error) {
	if s.err != nil {
		return chains.Balance{}, s.err
	}
	return chains.Balance{Symbol: s.symbol, Amount: s.amount}, nil
}

type staticPrices struct {
	snap pricing.Snapshot
	err  error
}

func (s *staticPrices) PricesUSD(ctx context.Context) (pricing.Snapshot, error) {
	return s.snap, s.err
}

func pricesOf(pairs map[string]string) *staticPrices {
	prices := make(map[string]*decimal.Decimal, len(pairs))
	for symbol, value := range pairs {
		if value == "" {
			prices[symbol] = nil
			continue
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			panic(err)
		}
		prices[symbol] = &d
	}
	return &staticPrices{snap: pricing.Snapshot{Prices: prices, FetchedAt: time.Now().UTC()}}
}

func testRegistry(fetchers ...*staticFetcher) chains.Registry {
	reg := chains.Registry{}
	for _, f := range fetchers {
		reg[f.chain] = f
	}
	return reg
}

func TestBuildValuesBalanceAgainstSnapshot(t *testing.T) {
	reg := testRegistry(&staticFetcher{chain: chains.ChainTON, symbol: "TON", amount: decimal.RequireFromString("1.5")})
	agg := NewAggregator(reg, pricesOf(map[string]string{"TON": "6"}), zerolog.Nop())

	p, err := agg.Build(context.Background(), Request{Chain: chains.ChainTON, Address: "EQC3ton4wallet4address4for4tests4AAAAAAAAAAA"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if p.TotalFiat == nil || p.TotalFiat.String() != "9" {
		t.Fatalf("1.5 TON at $6 should be $9, got %v", p.TotalFiat)
	}
	if p.AddressMasked != "EQC3…AAAA" {
		t.Fatalf("unexpected mask %q", p.AddressMasked)
	}
}

func TestBuildUnknownPriceYieldsNilFiat(t *testing.T) {
	reg := testRegistry(&staticFetcher{chain: chains.ChainSOL, symbol: "SOL", amount: decimal.NewFromInt(2)})
	agg := NewAggregator(reg, pricesOf(map[string]string{"SOL": ""}), zerolog.Nop())

	p, err := agg.Build(context.Background(), Request{Chain: chains.ChainSOL, Address: "4Nd1mYQqLyVUyYF2qCfW3PLGNMG2RdT1q9cqhFEBRp3t"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(p.Assets) != 1 || p.Assets[0].Fiat != nil {
		t.Fatalf("unknown price must yield nil fiat, got %#v", p.Assets)
	}
	if p.TotalFiat != nil {
		t.Fatalf("total should be nil when nothing is valued, got %v", p.TotalFiat)
	}
	if !p.Assets[0].Amount.Equal(decimal.NewFromInt(2)) {
		t.Fatal("balance must still be reported")
	}
}

func TestBuildPropagatesProviderError(t *testing.T) {
	provErr := &chains.ProviderError{Chain: chains.ChainBTC, Status: 502, Err: errors.New("bad gateway")}
	reg := testRegistry(&staticFetcher{chain: chains.ChainBTC, symbol: "BTC", err: provErr})
	agg := NewAggregator(reg, pricesOf(map[string]string{"BTC": "65000"}), zerolog.Nop())

	_, err := agg.Build(context.Background(), Request{Chain: chains.ChainBTC, Address: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"})
	var got *chains.ProviderError
	if !errors.As(err, &got) {
		t.Fatalf("provider failure must propagate, not report zero; got %v", err)
	}
}

func TestBuildUnsupportedChain(t *testing.T) {
	agg := NewAggregator(chains.Registry{}, pricesOf(nil), zerolog.Nop())
	_, err := agg.Build(context.Background(), Request{Chain: "dogecoin", Address: "x"})
	if !errors.Is(err, chains.ErrUnsupportedChain) {
		t.Fatalf("expected ErrUnsupportedChain, got %v", err)
	}
}

func TestBuildAllIsolatesPairFailures(t *testing.T) {
	reg := testRegistry(
		&staticFetcher{chain: chains.ChainTON, symbol: "TON", amount: decimal.RequireFromString("10")},
		&staticFetcher{chain: chains.ChainBTC, symbol: "BTC", err: errors.New("offline")},
		&staticFetcher{chain: chains.ChainSOL, symbol: "SOL", amount: decimal.RequireFromString("4")},
	)
	agg := NewAggregator(reg, pricesOf(map[string]string{"TON": "5", "BTC": "65000", "SOL": ""}), zerolog.Nop())

	overview, err := agg.BuildAll(context.Background(), []Request{
		{Chain: chains.ChainTON, Address: "EQC3ton4wallet4address4for4tests4AAAAAAAAAAA"},
		{Chain: chains.ChainBTC, Address: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"},
		{Chain: chains.ChainSOL, Address: "4Nd1mYQqLyVUyYF2qCfW3PLGNMG2RdT1q9cqhFEBRp3t"},
	})
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	if overview.Results[0].Err != nil || overview.Results[2].Err != nil {
		t.Fatal("sibling pairs must not be aborted by one failure")
	}
	if overview.Results[1].Err == nil {
		t.Fatal("failed pair must carry its error")
	}

	// 10 TON * $5 = $50; BTC errored and SOL is unpriced, both contribute 0.
	if overview.TotalFiat.String() != "50" {
		t.Fatalf("expected total 50, got %s", overview.TotalFiat.String())
	}
}

func TestBuildAllPriceFailureFailsCall(t *testing.T) {
	reg := testRegistry(&staticFetcher{chain: chains.ChainTON, symbol: "TON", amount: decimal.NewFromInt(1)})
	agg := NewAggregator(reg, &staticPrices{err: errors.New("provider down")}, zerolog.Nop())

	if _, err := agg.BuildAll(context.Background(), []Request{{Chain: chains.ChainTON, Address: "EQC3ton4wallet4address4for4tests4AAAAAAAAAAA"}}); err == nil {
		t.Fatal("price snapshot failure must surface to the caller")
	}
}

func TestMaskAddress(t *testing.T) {
	if got := MaskAddress("0x1234567890abcdef"); got != "0x12…cdef" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := MaskAddress("short"); got != "short" {
		t.Fatalf("short addresses stay unmasked, got %q", got)
	}
}
