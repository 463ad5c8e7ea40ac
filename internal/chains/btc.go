package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// BTCOptions parameterise the Bitcoin balance fetcher.
type BTCOptions struct {
	BaseURL string
	Timeout time.Duration
}

// BTC reads address statistics from a Blockstream-style API. The confirmed
// balance is the cumulative funded amount minus the cumulative spent amount.
type BTC struct {
	opts    BTCOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewBTC builds a Bitcoin balance fetcher.
func NewBTC(opts BTCOptions, logger zerolog.Logger) *BTC {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://blockstream.info/api"
	}

	return &BTC{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "btc_fetcher").Logger(),
	}
}

func (b *BTC) Chain() Chain   { return ChainBTC }
func (b *BTC) Symbol() string { return "BTC" }

type btcAddressStats struct {
	ChainStats struct {
		FundedTxoSum json.Number `json:"funded_txo_sum"`
		SpentTxoSum  json.Number `json:"spent_txo_sum"`
	} `json:"chain_stats"`
}

// FetchBalance reads the confirmed satoshi balance for an address.
func (b *BTC) FetchBalance(ctx context.Context, address string) (Balance, error) {
	if err := validateBTCAddress(address); err != nil {
		return Balance{}, err
	}

	endpoint := b.baseURL + "/address/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Balance{}, fmt.Errorf("create btc request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Balance{}, providerErr(ChainBTC, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Balance{}, providerErr(ChainBTC, resp.StatusCode, fmt.Errorf("address stats request failed"))
	}

	var stats btcAddressStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return Balance{}, providerErr(ChainBTC, 0, fmt.Errorf("decode address stats: %w", err))
	}

	funded, err := parseSats(stats.ChainStats.FundedTxoSum)
	if err != nil {
		return Balance{}, providerErr(ChainBTC, 0, err)
	}
	spent, err := parseSats(stats.ChainStats.SpentTxoSum)
	if err != nil {
		return Balance{}, providerErr(ChainBTC, 0, err)
	}

	sats := new(big.Int).Sub(funded, spent)
	return Balance{Symbol: b.Symbol(), Amount: FromSmallestUnitsBig(sats, SatoshiExponent)}, nil
}

func parseSats(n json.Number) (*big.Int, error) {
	raw := n.String()
	if raw == "" {
		return big.NewInt(0), nil
	}
	sats, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("parse satoshi sum %q", raw)
	}
	return sats, nil
}

func validateBTCAddress(address string) error {
	if len(address) < 14 || len(address) > 90 {
		return fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(address))
	}
	for _, r := range address {
		isAlnum := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isAlnum {
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidAddress, r)
		}
	}
	return nil
}

var _ Fetcher = (*BTC)(nil)
