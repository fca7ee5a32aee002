// Package disperse submits one batched transfer of the selected asset to
// every recipient of a parsed batch.
package disperse

import (
	"context"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/assets"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/batch"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/constants"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/txoutcome"
)

var (
	ErrEmptyBatch    = errors.New("batch has no recipients")
	ErrAssetNotReady = errors.New("asset is not resolved")
)

// Chain submits disperse calls and blocks until they are mined. The hash is
// returned whenever the transaction was broadcast.
type Chain interface {
	DisperseNative(ctx context.Context, method string, recipients []common.Address, amounts []*big.Int, total *big.Int) (common.Hash, error)
	DisperseToken(ctx context.Context, token common.Address, recipients []common.Address, amounts []*big.Int) (common.Hash, error)
}

type Config struct {
	// NativeMethod is the payable disperse entry point on this network.
	NativeMethod string
	ExplorerBase string
}

type Orchestrator struct {
	chain Chain
	cfg   Config
}

func NewOrchestrator(chain Chain, cfg Config) *Orchestrator {
	if strings.TrimSpace(cfg.NativeMethod) == "" {
		cfg.NativeMethod = constants.DefaultNativeMethod
	}
	return &Orchestrator{chain: chain, cfg: cfg}
}

// Submit sends b as one transaction. Precondition violations are errors and
// nothing is broadcast; transaction failures come back as a failed outcome.
func (o *Orchestrator) Submit(ctx context.Context, b batch.ParsedBatch, asset assets.Descriptor) (txoutcome.Outcome, error) {
	if b.IsEmpty() {
		return txoutcome.Outcome{}, errors.WithHint(ErrEmptyBatch, "add at least one valid recipient line")
	}
	if !asset.Ready() {
		return txoutcome.Outcome{}, errors.WithHintf(ErrAssetNotReady, "asset is %s", asset.Status)
	}
	if b.Decimals != asset.Decimals {
		return txoutcome.Outcome{}, errors.WithHintf(
			errors.Wrapf(ErrAssetNotReady, "batch scaled to %d decimals, asset has %d", b.Decimals, asset.Decimals),
			"the asset changed while sending; review the batch and send again")
	}

	recipients := b.Recipients()
	amounts := b.Amounts()
	total := b.TotalOrZero()

	var (
		hash common.Hash
		err  error
	)
	if asset.IsNative() {
		log.Info("disperse: submitting native", "method", o.cfg.NativeMethod, "recipients", len(recipients), "total", total.String())
		hash, err = o.chain.DisperseNative(ctx, o.cfg.NativeMethod, recipients, amounts, total)
	} else {
		if asset.Contract == nil {
			return txoutcome.Outcome{}, errors.Wrap(ErrAssetNotReady, "token without contract")
		}
		log.Info("disperse: submitting token", "token", asset.Contract.Hex(), "recipients", len(recipients), "total", total.String())
		hash, err = o.chain.DisperseToken(ctx, *asset.Contract, recipients, amounts)
	}

	if err != nil {
		log.Warn("disperse: transaction failed", "kind", txoutcome.Classify(err), "error", err)
		return txoutcome.Fail(txoutcome.ActionDisperse, hash, o.cfg.ExplorerBase, err), nil
	}
	log.Info("disperse: confirmed", "hash", hash.Hex())
	return txoutcome.Success(txoutcome.ActionDisperse, hash, o.cfg.ExplorerBase), nil
}
