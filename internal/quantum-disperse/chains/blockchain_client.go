package chains

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-go-utils/qa_evm"
	"github.com/quantumauth-io/quantum-go-utils/retry"
)

// Backend is everything the disperse flow needs from one RPC endpoint.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

var _ Backend = (*BlockchainClientWithCache)(nil)
var _ qa_evm.BlockchainClient = (*BlockchainClientWithCache)(nil)

// BlockchainClientWithCache serves the latest header from memory and keeps
// it fresh in the background. Every other call goes straight to the node.
type BlockchainClientWithCache struct {
	latestHeader             atomic.Pointer[types.Header]
	timeReceivedLatestHeader atomic.Pointer[time.Time]
	*ethclient.Client
}

func NewBlockchainClientWithCache(ctx context.Context, url string, refresh time.Duration) (*BlockchainClientWithCache, error) {
	eclient, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to connect to blockchain at %s", url)
	}

	cc := &BlockchainClientWithCache{Client: eclient}
	if err := cc.getLatestHeaderFromChain(ctx); err != nil {
		eclient.Close()
		return nil, err
	}

	if refresh > 0 {
		go maintainLatestHeaderFromChain(ctx, cc, refresh)
	}
	return cc, nil
}

// maintainLatestHeaderFromChain is the only place RPC calls are retried;
// user-initiated calls report their first failure.
func maintainLatestHeaderFromChain(ctx context.Context, cc *BlockchainClientWithCache, duration time.Duration) {
	cfg := retry.DefaultConfig()
	cfg.MaxDelayBeforeRetrying = duration
	cfg.InitialDelayBeforeRetrying = duration / 10

	timer := time.NewTimer(duration)
	defer timer.Stop()
	numCallsToChain := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("maintainLatestHeaderFromChain goroutine exiting", "numCallsToChain", numCallsToChain)
			return
		case <-timer.C:
			_, _ = retry.Retry(ctx, cfg,
				func(ctx context.Context) ([]interface{}, error) {
					numCallsToChain++
					return nil, cc.getLatestHeaderFromChain(ctx)
				},
				nil,
				"get latest header from chain")
			timer.Reset(duration)
		}
	}
}

func (b *BlockchainClientWithCache) getLatestHeaderFromChain(ctx context.Context) error {
	header, err := b.Client.HeaderByNumber(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Failed to get latest HeaderByNumber from chain")
	}
	now := time.Now().UTC()
	b.latestHeader.Store(header)
	b.timeReceivedLatestHeader.Store(&now)
	return nil
}

func (b *BlockchainClientWithCache) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if number == nil {
		if h := b.latestHeader.Load(); h != nil {
			return h, nil
		}
	}
	return b.Client.HeaderByNumber(ctx, number)
}

// HeaderAge reports how long ago the cached header was fetched.
func (b *BlockchainClientWithCache) HeaderAge() time.Duration {
	t := b.timeReceivedLatestHeader.Load()
	if t == nil {
		return 0
	}
	return time.Since(*t)
}
