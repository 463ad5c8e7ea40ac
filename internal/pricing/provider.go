package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Provider fetches USD quotes for a set of provider-side coin identifiers.
// Identifiers absent from the result simply had no quote; that is not an
// error. A non-success upstream response is.
type Provider interface {
	FetchUSD(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

// CoinGeckoOptions parameterise the CoinGecko simple/price client.
type CoinGeckoOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// CoinGecko implements Provider against the CoinGecko v3 API.
type CoinGecko struct {
	opts    CoinGeckoOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewCoinGecko constructs a CoinGecko price provider.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	return &CoinGecko{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "price_provider").Logger(),
	}
}

// FetchUSD queries simple/price for the given coin ids.
func (c *CoinGecko) FetchUSD(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	query := url.Values{}
	query.Set("ids", strings.Join(sorted, ","))
	query.Set("vs_currencies", "usd")

	endpoint := c.baseURL + "/simple/price?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price provider error (%d)", resp.StatusCode)
	}

	// {"ethereum":{"usd":3200.12}, ...}; decode through json.Number so large
	// or high-precision quotes survive intact.
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload map[string]map[string]json.Number
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}

	quotes := make(map[string]decimal.Decimal, len(payload))
	for id, fields := range payload {
		usd, ok := fields["usd"]
		if !ok {
			continue
		}
		value, err := decimal.NewFromString(usd.String())
		if err != nil {
			return nil, fmt.Errorf("parse usd quote for %s: %w", id, err)
		}
		quotes[id] = value
	}

	return quotes, nil
}

var _ Provider = (*CoinGecko)(nil)
