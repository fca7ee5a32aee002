package chains

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/ethwallet/userwallet"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/txoutcome"
)

const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type feeBackend struct {
	Backend
	baseFee *big.Int
	nonce   uint64
}

func (f *feeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(56), nil }

func (f *feeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *feeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *feeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(3_000_000_000), nil
}

func (f *feeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}

func TestTransactorFromWalletFees(t *testing.T) {
	w, err := userwallet.FromPrivateKeyHex(devKey)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}

	t.Run("dynamic fee", func(t *testing.T) {
		b := &feeBackend{baseFee: big.NewInt(5_000_000_000), nonce: 7}
		opts, err := transactorFromWallet(context.Background(), b, w, big.NewInt(56))
		if err != nil {
			t.Fatalf("transactorFromWallet: %v", err)
		}
		if opts.Nonce.Uint64() != 7 {
			t.Fatalf("expected nonce 7, got %s", opts.Nonce)
		}
		if opts.GasFeeCap.Cmp(big.NewInt(11_000_000_000)) != 0 {
			t.Fatalf("expected fee cap 2*base+tip, got %s", opts.GasFeeCap)
		}
		if opts.GasPrice != nil {
			t.Fatalf("expected no legacy gas price")
		}
		if opts.From != w.Address() {
			t.Fatalf("expected from %s, got %s", w.Address().Hex(), opts.From.Hex())
		}
	})

	t.Run("legacy", func(t *testing.T) {
		b := &feeBackend{}
		opts, err := transactorFromWallet(context.Background(), b, w, big.NewInt(56))
		if err != nil {
			t.Fatalf("transactorFromWallet: %v", err)
		}
		if opts.GasPrice.Cmp(big.NewInt(3_000_000_000)) != 0 || opts.GasFeeCap != nil {
			t.Fatalf("expected legacy gas price, got price=%v cap=%v", opts.GasPrice, opts.GasFeeCap)
		}
	})
}

func TestSenderDeclined(t *testing.T) {
	w, err := userwallet.FromPrivateKeyHex(devKey)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	decline := func(context.Context, string) (bool, error) { return false, nil }
	s := NewSender(&feeBackend{}, w, decline, 0)

	called := false
	_, err = s.Send(context.Background(), "approve", func(*bind.TransactOpts) (*types.Transaction, error) {
		called = true
		return nil, nil
	})
	if !errors.Is(err, txoutcome.ErrUserRejected) {
		t.Fatalf("expected ErrUserRejected, got %v", err)
	}
	if called {
		t.Fatalf("declined transaction must not be submitted")
	}
	if got := txoutcome.Classify(err); got != txoutcome.UserRejected {
		t.Fatalf("expected user_rejected, got %s", got)
	}
}

func TestSenderSubmitError(t *testing.T) {
	w, err := userwallet.FromPrivateKeyHex(devKey)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	s := NewSender(&feeBackend{}, w, nil, 0)

	hash, err := s.Send(context.Background(), "disperse", func(*bind.TransactOpts) (*types.Transaction, error) {
		return nil, errors.New("execution reverted: insufficient balance")
	})
	if err == nil {
		t.Fatalf("expected submit error")
	}
	if hash != (common.Hash{}) {
		t.Fatalf("expected zero hash when nothing was submitted")
	}
	if got := txoutcome.Classify(err); got != txoutcome.ChainReverted {
		t.Fatalf("expected chain_reverted, got %s", got)
	}
}

// minedBackend returns a successful receipt unless the wait context is done.
type minedBackend struct {
	feeBackend
}

func (m *minedBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(9)}, nil
}

func legacyTx(opts *bind.TransactOpts) *types.Transaction {
	return types.NewTx(&types.LegacyTx{Nonce: opts.Nonce.Uint64(), GasPrice: opts.GasPrice, Gas: 21000})
}

func TestSenderWaitOutlivesCaller(t *testing.T) {
	w, err := userwallet.FromPrivateKeyHex(devKey)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	s := NewSender(&minedBackend{}, w, nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hash, err := s.Send(ctx, "approve", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		tx := legacyTx(opts)
		cancel()
		return tx, nil
	})
	if err != nil {
		t.Fatalf("a broadcast transaction must still be awaited after the caller leaves: %v", err)
	}
	if hash == (common.Hash{}) {
		t.Fatalf("expected a hash")
	}
}

func TestSenderConfirmDoesNotBlockOthers(t *testing.T) {
	w, err := userwallet.FromPrivateKeyHex(devKey)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}

	entered := make(chan struct{})
	gate := make(chan struct{})
	confirm := func(_ context.Context, label string) (bool, error) {
		if label == "slow" {
			close(entered)
			<-gate
		}
		return true, nil
	}
	s := NewSender(&minedBackend{}, w, confirm, time.Second)
	submit := func(opts *bind.TransactOpts) (*types.Transaction, error) { return legacyTx(opts), nil }

	slow := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "slow", submit)
		slow <- err
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "fast", submit)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("fast send: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("send blocked behind another confirmation prompt")
	}

	close(gate)
	if err := <-slow; err != nil {
		t.Fatalf("slow send: %v", err)
	}
}
