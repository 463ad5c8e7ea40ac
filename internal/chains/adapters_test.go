package chains

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

const (
	testBTCAddress = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	testSOLAddress = "4Nd1mYQqLyVUyYF2qCfW3PLGNMG2RdT1q9cqhFEBRp3t"
	testTONAddress = "EQC3ton4wallet4address4for4tests4AAAAAAAAAAA"
)

func TestBTCFetchBalanceFundedMinusSpent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"chain_stats": map[string]any{
				"funded_txo_sum": 250000000,
				"spent_txo_sum":  100000000,
			},
		})
	}))
	defer srv.Close()

	btc := NewBTC(BTCOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	bal, err := btc.FetchBalance(context.Background(), testBTCAddress)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if bal.Symbol != "BTC" {
		t.Fatalf("unexpected symbol %q", bal.Symbol)
	}
	if bal.Amount.String() != "1.5" {
		t.Fatalf("250000000-100000000 sats should be 1.5 BTC, got %s", bal.Amount.String())
	}
}

func TestBTCFetchBalanceProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	btc := NewBTC(BTCOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := btc.FetchBalance(context.Background(), testBTCAddress)

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Status != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", provErr.Status)
	}
	if errors.Is(err, ErrInvalidAddress) {
		t.Fatal("provider error must not look like an address error")
	}
}

func TestBTCFetchBalanceInvalidAddress(t *testing.T) {
	btc := NewBTC(BTCOptions{BaseURL: "http://unused.invalid"}, noopLogger())
	_, err := btc.FetchBalance(context.Background(), "x!")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestSOLFetchBalanceLamports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req solRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode rpc request: %v", err)
		}
		if req.Method != "getBalance" {
			t.Fatalf("unexpected method %q", req.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"value": 2500000000},
		})
	}))
	defer srv.Close()

	sol := NewSOL(SOLOptions{RPCURL: srv.URL, Timeout: time.Second}, noopLogger())
	bal, err := sol.FetchBalance(context.Background(), testSOLAddress)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if bal.Amount.String() != "2.5" {
		t.Fatalf("2500000000 lamports should be 2.5 SOL, got %s", bal.Amount.String())
	}
}

func TestSOLFetchBalanceRetriesThenFails(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sol := NewSOL(SOLOptions{
		RPCURL:     srv.URL,
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, noopLogger())

	_, err := sol.FetchBalance(context.Background(), testSOLAddress)
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestSOLFetchBalanceRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32602, "message": "Invalid param"},
		})
	}))
	defer srv.Close()

	sol := NewSOL(SOLOptions{RPCURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := sol.FetchBalance(context.Background(), testSOLAddress); err == nil {
		t.Fatal("rpc error payload must surface as an error")
	}
}

func TestSOLFetchBalanceInvalidAddress(t *testing.T) {
	sol := NewSOL(SOLOptions{RPCURL: "http://unused.invalid"}, noopLogger())
	_, err := sol.FetchBalance(context.Background(), "0invalid")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestTONFetchBalanceNanotonString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") == "" {
			t.Fatal("address query parameter missing")
		}
		// 超出 float64 精度的 nanoton 字符串必须无损转换。
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": "123456789012345678901",
		})
	}))
	defer srv.Close()

	ton := NewTON(TONOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	bal, err := ton.FetchBalance(context.Background(), testTONAddress)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if bal.Amount.String() != "123456789012.345678901" {
		t.Fatalf("精度丢失: %s", bal.Amount.String())
	}
}

func TestTONFetchBalanceOKFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "invalid address"})
	}))
	defer srv.Close()

	ton := NewTON(TONOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := ton.FetchBalance(context.Background(), testTONAddress)

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("ok=false 应产生 ProviderError, 实际 %v", err)
	}
}

func TestTONFetchBalanceGarbageResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": "not-a-number"})
	}))
	defer srv.Close()

	ton := NewTON(TONOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := ton.FetchBalance(context.Background(), testTONAddress); err == nil {
		t.Fatal("malformed balance payload must surface as an error")
	}
}

func TestEVMFetchBalanceConfigAndAddressErrors(t *testing.T) {
	evm := NewEVM(EVMOptions{}, noopLogger())
	if _, err := evm.FetchBalance(context.Background(), "0x0000000000000000000000000000000000000001"); err == nil {
		t.Fatal("missing rpc url should fail")
	}

	evm = NewEVM(EVMOptions{RPCURL: "http://localhost:8545"}, noopLogger())
	_, err := evm.FetchBalance(context.Background(), "not-an-address")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}
