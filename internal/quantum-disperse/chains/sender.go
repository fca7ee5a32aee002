package chains

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/ethwallet/wtypes"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/txoutcome"
)

const DefaultTxTimeout = 180 * time.Second

// ConfirmFunc asks the user to sign the described transaction.
type ConfirmFunc func(ctx context.Context, summary string) (bool, error)

// AutoConfirm signs everything without asking.
func AutoConfirm(context.Context, string) (bool, error) { return true, nil }

// Sender signs with the local wallet, submits and waits for the receipt.
type Sender struct {
	backend Backend
	wallet  wtypes.Wallet
	confirm ConfirmFunc
	timeout time.Duration

	// one transaction at a time per wallet keeps nonces ordered
	sendMu sync.Mutex
}

func NewSender(backend Backend, wallet wtypes.Wallet, confirm ConfirmFunc, timeout time.Duration) *Sender {
	if confirm == nil {
		confirm = AutoConfirm
	}
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	return &Sender{backend: backend, wallet: wallet, confirm: confirm, timeout: timeout}
}

// Send asks for confirmation, builds transact options, submits through fn
// and waits for the receipt. The hash is returned whenever the transaction
// reached the network, even on failure.
func (s *Sender) Send(ctx context.Context, label string, fn func(*bind.TransactOpts) (*types.Transaction, error)) (common.Hash, error) {
	ok, err := s.confirm(ctx, label)
	if err != nil {
		return common.Hash{}, errors.Mark(errors.Wrap(err, "confirm"), txoutcome.ErrUserRejected)
	}
	if !ok {
		return common.Hash{}, errors.WithHint(txoutcome.ErrUserRejected, "transaction declined")
	}

	tx, err := s.submit(ctx, label, fn)
	if err != nil {
		return common.Hash{}, err
	}
	hash := tx.Hash()
	log.Info("tx submitted", "label", label, "hash", hash.Hex(), "nonce", tx.Nonce())

	// the transaction is out; a caller going away must not end the wait
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, s.backend, tx)
	if err != nil {
		return hash, errors.WithHintf(errors.Wrap(err, "wait mined"),
			"transaction %s was not confirmed within %s", hash.Hex(), s.timeout)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, errors.WithHintf(txoutcome.ErrReverted, "transaction %s reverted in block %s", hash.Hex(), receipt.BlockNumber)
	}
	log.Info("tx mined", "label", label, "hash", hash.Hex(), "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
	return hash, nil
}

// submit holds sendMu from the nonce lookup until the transaction is
// broadcast.
func (s *Sender) submit(ctx context.Context, label string, fn func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "chain id")
	}
	opts, err := transactorFromWallet(ctx, s.backend, s.wallet, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "build transactor")
	}

	tx, err := fn(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "submit %s", label)
	}
	return tx, nil
}

func transactorFromWallet(
	ctx context.Context,
	client Backend,
	w wtypes.Wallet,
	chainID *big.Int,
) (*bind.TransactOpts, error) {

	priv, err := w.ExportPrivateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("export private key: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(priv, chainID)
	if err != nil {
		return nil, err
	}

	// Nonce
	nonce, err := client.PendingNonceAt(ctx, w.Address())
	if err != nil {
		return nil, err
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)

	// Fees: 1559 preferred, else legacy
	tip, tipErr := client.SuggestGasTipCap(ctx)
	hdr, hdrErr := client.HeaderByNumber(ctx, nil)

	if tipErr == nil && hdrErr == nil && hdr.BaseFee != nil {
		feeCap := new(big.Int).Mul(hdr.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tip)
		opts.GasTipCap = tip
		opts.GasFeeCap = feeCap
	} else {
		gp, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		opts.GasPrice = gp
	}

	opts.Context = ctx
	return opts, nil
}
