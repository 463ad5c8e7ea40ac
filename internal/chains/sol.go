package chains

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// SOLOptions parameterise the Solana balance fetcher.
type SOLOptions struct {
	RPCURL     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// SOL reads lamport balances over Solana JSON-RPC 2.0 at "confirmed"
// commitment. Transient upstream failures are retried with backoff.
type SOL struct {
	opts      SOLOptions
	client    *http.Client
	rpcURL    string
	logger    zerolog.Logger
	requestID atomic.Uint64
}

// NewSOL builds a Solana balance fetcher.
func NewSOL(opts SOLOptions, logger zerolog.Logger) *SOL {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}

	rpcURL := strings.TrimRight(opts.RPCURL, "/")
	if rpcURL == "" {
		rpcURL = "https://api.mainnet-beta.solana.com"
	}

	return &SOL{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		rpcURL: rpcURL,
		logger: logger.With().Str("component", "sol_fetcher").Logger(),
	}
}

func (s *SOL) Chain() Chain   { return ChainSOL }
func (s *SOL) Symbol() string { return "SOL" }

type solRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type solRPCResponse struct {
	Result *struct {
		Value json.Number `json:"value"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchBalance issues getBalance for the address.
func (s *SOL) FetchBalance(ctx context.Context, address string) (Balance, error) {
	if err := validateSOLAddress(address); err != nil {
		return Balance{}, err
	}

	var lastErr error
	delay := s.opts.RetryDelay
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Balance{}, providerErr(ChainSOL, 0, ctx.Err())
			case <-timer.C:
			}
			delay *= 2
		}

		lamports, err := s.getBalance(ctx, address)
		if err == nil {
			return Balance{Symbol: s.Symbol(), Amount: FromSmallestUnitsBig(lamports, LamportExponent)}, nil
		}
		lastErr = err
	}

	return Balance{}, providerErr(ChainSOL, 0, lastErr)
}

func (s *SOL) getBalance(ctx context.Context, address string) (*big.Int, error) {
	body, err := json.Marshal(solRPCRequest{
		JSONRPC: "2.0",
		ID:      s.requestID.Add(1),
		Method:  "getBalance",
		Params:  []interface{}{address, map[string]string{"commitment": "confirmed"}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal getBalance request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create getBalance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc status %d", resp.StatusCode)
	}

	var rpcResp solRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode getBalance response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return nil, fmt.Errorf("getBalance response missing result")
	}

	lamports, ok := new(big.Int).SetString(rpcResp.Result.Value.String(), 10)
	if !ok {
		return nil, fmt.Errorf("parse lamports %q", rpcResp.Result.Value.String())
	}
	return lamports, nil
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func validateSOLAddress(address string) error {
	if len(address) < 32 || len(address) > 44 {
		return fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(address))
	}
	for _, r := range address {
		if !strings.ContainsRune(base58Alphabet, r) {
			return fmt.Errorf("%w: %q is not base58", ErrInvalidAddress, r)
		}
	}
	return nil
}

var _ Fetcher = (*SOL)(nil)
