// Package chains fetches native-asset balances from per-chain providers and
// normalises them into exact decimal amounts.
package chains

import (
	"context"

	"github.com/shopspring/decimal"
)

// Chain identifies a supported blockchain.
type Chain string

// Supported chains.
const (
	ChainEVM Chain = "evm"
	ChainBTC Chain = "btc"
	ChainSOL Chain = "sol"
	ChainTON Chain = "ton"
)

// Smallest-unit scaling exponents per chain (wei, satoshi, lamport, nanoton).
const (
	WeiExponent     int32 = 18
	SatoshiExponent int32 = 8
	LamportExponent int32 = 9
	NanotonExponent int32 = 9
)

// Balance is a canonical balance: an exact decimal amount of the chain's
// native asset.
type Balance struct {
	Symbol string
	Amount decimal.Decimal
}

// Fetcher reads the balance held at an address on one chain.
type Fetcher interface {
	Chain() Chain
	Symbol() string
	FetchBalance(ctx context.Context, address string) (Balance, error)
}

// Registry maps chains to their balance fetchers.
type Registry map[Chain]Fetcher

// Lookup resolves the fetcher for a chain.
func (r Registry) Lookup(chain Chain) (Fetcher, error) {
	fetcher, ok := r[chain]
	if !ok {
		return nil, ErrUnsupportedChain
	}
	return fetcher, nil
}

// Supported reports whether the chain has a registered fetcher.
func (r Registry) Supported(chain Chain) bool {
	_, ok := r[chain]
	return ok
}
