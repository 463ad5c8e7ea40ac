package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TONOptions parameterise the TON balance fetcher.
type TONOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// TON reads nanoton balances from a TON Center v2 style API. The endpoint
// reports the balance as a decimal string alongside an ok flag.
type TON struct {
	opts    TONOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewTON builds a TON balance fetcher.
func NewTON(opts TONOptions, logger zerolog.Logger) *TON {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://toncenter.com/api/v2"
	}

	return &TON{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "ton_fetcher").Logger(),
	}
}

func (t *TON) Chain() Chain   { return ChainTON }
func (t *TON) Symbol() string { return "TON" }

type tonBalanceResponse struct {
	OK     bool   `json:"ok"`
	Result string `json:"result"`
	Error  string `json:"error"`
}

// FetchBalance reads the nanoton balance for an address. The nanoton string
// is converted with exact integer arithmetic, so balances beyond float64
// precision survive intact.
func (t *TON) FetchBalance(ctx context.Context, address string) (Balance, error) {
	if len(address) < 4 {
		return Balance{}, fmt.Errorf("%w: too short", ErrInvalidAddress)
	}

	endpoint := t.baseURL + "/getAddressBalance?address=" + url.QueryEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Balance{}, fmt.Errorf("create ton request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if t.opts.APIKey != "" {
		req.Header.Set("X-API-Key", t.opts.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Balance{}, providerErr(ChainTON, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Balance{}, providerErr(ChainTON, resp.StatusCode, fmt.Errorf("balance request failed"))
	}

	var payload tonBalanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Balance{}, providerErr(ChainTON, 0, fmt.Errorf("decode balance response: %w", err))
	}
	if !payload.OK {
		msg := payload.Error
		if msg == "" {
			msg = "ok=false"
		}
		return Balance{}, providerErr(ChainTON, 0, fmt.Errorf("toncenter: %s", msg))
	}

	amount, err := FromSmallestUnits(payload.Result, NanotonExponent)
	if err != nil {
		return Balance{}, providerErr(ChainTON, 0, err)
	}

	return Balance{Symbol: t.Symbol(), Amount: amount}, nil
}

var _ Fetcher = (*TON)(nil)
