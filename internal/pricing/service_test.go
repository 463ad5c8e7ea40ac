package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testAssets() map[string]string {
	return map[string]string{
		"ETH": "ethereum",
		"BTC": "bitcoin",
		"SOL": "solana",
		"TON": "the-open-network",
	}
}

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	provider := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	svc := NewService(ServiceOptions{Assets: testAssets(), TTL: time.Minute}, NewMemoryCache(), provider, zerolog.Nop())
	return svc, srv, &calls
}

func TestPricesUSDMissingSymbolsAreNil(t *testing.T) {
	svc, _, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		// 上游只返回部分资产时不应报错。
		_ = json.NewEncoder(w).Encode(map[string]map[string]float64{
			"ethereum": {"usd": 3200.5},
			"bitcoin":  {"usd": 65000},
		})
	})

	snap, err := svc.PricesUSD(context.Background())
	if err != nil {
		t.Fatalf("部分缺失不应报错: %v", err)
	}

	if snap.Price("ETH") == nil || !snap.Price("ETH").Equal(decimal.NewFromFloat(3200.5)) {
		t.Fatalf("ETH 价格不正确: %v", snap.Price("ETH"))
	}
	if snap.Price("SOL") != nil {
		t.Fatalf("缺失的 SOL 应为 nil, 实际 %v", snap.Price("SOL"))
	}
	if snap.Price("TON") != nil {
		t.Fatalf("缺失的 TON 应为 nil, 实际 %v", snap.Price("TON"))
	}
}

func TestPricesUSDProviderErrorDoesNotPopulateCache(t *testing.T) {
	fail := true
	svc, _, calls := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]map[string]float64{"ethereum": {"usd": 3000}})
	})

	if _, err := svc.PricesUSD(context.Background()); err == nil {
		t.Fatal("non-success upstream response must surface as an error")
	}

	// The failed refresh must not have cached anything: the next call goes
	// upstream again and succeeds.
	fail = false
	snap, err := svc.PricesUSD(context.Background())
	if err != nil {
		t.Fatalf("second refresh should succeed: %v", err)
	}
	if snap.Price("ETH") == nil {
		t.Fatal("expected ETH price after recovery")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestPricesUSDServedFromCache(t *testing.T) {
	svc, _, calls := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]map[string]float64{"ethereum": {"usd": 3000}})
	})

	if _, err := svc.PricesUSD(context.Background()); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if _, err := svc.PricesUSD(context.Background()); err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if calls.Load() != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls.Load())
	}
}

func TestPricesUSDConcurrentMissSharesOneRefresh(t *testing.T) {
	release := make(chan struct{})
	svc, _, calls := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode(map[string]map[string]float64{"ethereum": {"usd": 3000}})
	})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PricesUSD(context.Background())
		}(i)
	}

	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d failed: %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("concurrent misses should share one upstream call, got %d", calls.Load())
	}
}
