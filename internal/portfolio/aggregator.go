package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chainradar/internal/chains"
	"chainradar/internal/metrics"
	"chainradar/internal/pricing"
)

// PriceSource supplies the shared price snapshot.
type PriceSource interface {
	PricesUSD(ctx context.Context) (pricing.Snapshot, error)
}

// Aggregator fans out balance reads and values them against one price
// snapshot per call.
type Aggregator struct {
	registry chains.Registry
	prices   PriceSource
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAggregator wires the chain registry and price source together.
func NewAggregator(registry chains.Registry, prices PriceSource, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		prices:   prices,
		logger:   logger.With().Str("component", "portfolio").Logger(),
		now:      time.Now,
	}
}

// Build values a single (chain, address) pair.
func (a *Aggregator) Build(ctx context.Context, req Request) (Portfolio, error) {
	snap, err := a.prices.PricesUSD(ctx)
	if err != nil {
		return Portfolio{}, fmt.Errorf("portfolio prices: %w", err)
	}
	return a.buildWithSnapshot(ctx, req, snap)
}

// BuildAll values every pair concurrently against one shared snapshot.
// Per-pair failures land in their own Result; the price snapshot itself is a
// shared prerequisite and its failure fails the whole call.
func (a *Aggregator) BuildAll(ctx context.Context, reqs []Request) (Overview, error) {
	snap, err := a.prices.PricesUSD(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("portfolio prices: %w", err)
	}

	results := make([]Result, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			p, err := a.buildWithSnapshot(ctx, req, snap)
			results[i] = Result{Request: req, Portfolio: p, Err: err}
		}(i, req)
	}
	wg.Wait()

	overview := Overview{Results: results, UpdatedAt: a.now().UTC()}
	for _, res := range results {
		if res.Err != nil {
			a.logger.Warn().
				Err(res.Err).
				Str("chain", string(res.Request.Chain)).
				Msg("portfolio pair failed")
			continue
		}
		if res.Portfolio.TotalFiat != nil {
			overview.TotalFiat = overview.TotalFiat.Add(*res.Portfolio.TotalFiat)
		}
	}
	return overview, nil
}

func (a *Aggregator) buildWithSnapshot(ctx context.Context, req Request, snap pricing.Snapshot) (Portfolio, error) {
	fetcher, err := a.registry.Lookup(req.Chain)
	if err != nil {
		return Portfolio{}, err
	}

	start := time.Now()
	balance, err := fetcher.FetchBalance(ctx, req.Address)
	metrics.BalanceFetchDuration.WithLabelValues(string(req.Chain)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderErrors.WithLabelValues(string(req.Chain)).Inc()
		return Portfolio{}, fmt.Errorf("fetch %s balance: %w", req.Chain, err)
	}

	asset := Asset{Symbol: balance.Symbol, Amount: balance.Amount}
	if price := snap.Price(balance.Symbol); price != nil {
		fiat := balance.Amount.Mul(*price)
		asset.Fiat = &fiat
	}

	p := Portfolio{
		Chain:         req.Chain,
		AddressMasked: MaskAddress(req.Address),
		Assets:        []Asset{asset},
		UpdatedAt:     a.now().UTC(),
	}
	if asset.Fiat != nil {
		total := *asset.Fiat
		p.TotalFiat = &total
	}
	return p, nil
}
