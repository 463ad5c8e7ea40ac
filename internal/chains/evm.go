package chains

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// EVMOptions parameterise the Ethereum balance fetcher.
type EVMOptions struct {
	RPCURL  string
	Timeout time.Duration
}

// EVM reads native ETH balances over Ethereum JSON-RPC.
type EVM struct {
	opts      EVMOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewEVM builds an Ethereum balance fetcher.
func NewEVM(opts EVMOptions, logger zerolog.Logger) *EVM {
	return &EVM{opts: opts, logger: logger.With().Str("component", "evm_fetcher").Logger()}
}

func (e *EVM) Chain() Chain   { return ChainEVM }
func (e *EVM) Symbol() string { return "ETH" }

// FetchBalance reads the wei balance at the latest block and converts it.
func (e *EVM) FetchBalance(ctx context.Context, address string) (Balance, error) {
	if e.opts.RPCURL == "" {
		return Balance{}, errors.New("ethereum rpc url not configured")
	}
	if !common.IsHexAddress(address) {
		return Balance{}, fmt.Errorf("%w: %q is not a hex address", ErrInvalidAddress, address)
	}

	timeout := e.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := e.getClient(ctx)
	if err != nil {
		return Balance{}, providerErr(ChainEVM, 0, err)
	}

	wei, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return Balance{}, providerErr(ChainEVM, 0, err)
	}

	return Balance{Symbol: e.Symbol(), Amount: FromSmallestUnitsBig(wei, WeiExponent)}, nil
}

func (e *EVM) getClient(ctx context.Context) (*ethclient.Client, error) {
	e.clientMux.Lock()
	defer e.clientMux.Unlock()

	if e.client != nil {
		return e.client, nil
	}

	client, err := ethclient.DialContext(ctx, e.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	e.client = client
	return client, nil
}

var _ Fetcher = (*EVM)(nil)
