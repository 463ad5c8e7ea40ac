package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"chainradar/internal/metrics"
)

const snapshotKey = "prices_usd"

// ServiceOptions parameterise the price service.
type ServiceOptions struct {
	// Assets maps tracked symbols to provider coin identifiers.
	Assets map[string]string
	TTL    time.Duration
}

// Service serves the latest known USD prices for the tracked assets,
// refreshing lazily from the provider when the cached snapshot has expired.
type Service struct {
	opts     ServiceOptions
	cache    Cache
	provider Provider
	logger   zerolog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewService wires cache and provider into a price service.
func NewService(opts ServiceOptions, cache Cache, provider Provider, logger zerolog.Logger) *Service {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	opts.TTL = ttl

	return &Service{
		opts:     opts,
		cache:    cache,
		provider: provider,
		logger:   logger.With().Str("component", "price_service").Logger(),
		now:      time.Now,
	}
}

// Symbols returns the tracked asset symbols.
func (s *Service) Symbols() []string {
	symbols := make([]string, 0, len(s.opts.Assets))
	for symbol := range s.opts.Assets {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// PricesUSD returns the cached snapshot, refreshing it from the provider on a
// miss. Concurrent callers racing on the same miss share one upstream call.
// A provider failure is surfaced to the caller and leaves the cache untouched.
func (s *Service) PricesUSD(ctx context.Context) (Snapshot, error) {
	if snap, ok, err := s.cache.Get(ctx, snapshotKey); err == nil && ok {
		metrics.PriceCacheLookups.WithLabelValues("hit").Inc()
		return snap, nil
	} else if err != nil {
		// A broken cache backend degrades to a refresh, not a failure.
		s.logger.Warn().Err(err).Msg("price cache read failed")
	}
	metrics.PriceCacheLookups.WithLabelValues("miss").Inc()

	result, err, _ := s.group.Do(snapshotKey, func() (interface{}, error) {
		if snap, ok, err := s.cache.Get(ctx, snapshotKey); err == nil && ok {
			return snap, nil
		}
		return s.refresh(ctx)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return result.(Snapshot), nil
}

func (s *Service) refresh(ctx context.Context) (Snapshot, error) {
	ids := make([]string, 0, len(s.opts.Assets))
	for _, id := range s.opts.Assets {
		ids = append(ids, id)
	}

	quotes, err := s.provider.FetchUSD(ctx, ids)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("price").Inc()
		return Snapshot{}, fmt.Errorf("refresh prices: %w", err)
	}

	prices := make(map[string]*decimal.Decimal, len(s.opts.Assets))
	for symbol, id := range s.opts.Assets {
		if quote, ok := quotes[id]; ok {
			value := quote
			prices[symbol] = &value
		} else {
			prices[symbol] = nil
		}
	}

	snap := Snapshot{Prices: prices, FetchedAt: s.now().UTC()}
	if err := s.cache.Set(ctx, snapshotKey, snap, s.opts.TTL); err != nil {
		s.logger.Warn().Err(err).Msg("price cache write failed")
	}

	s.logger.Debug().Int("tracked", len(prices)).Msg("price snapshot refreshed")
	return snap, nil
}
