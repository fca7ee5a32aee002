package assets

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"golang.org/x/sync/errgroup"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/constants"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/fence"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/txoutcome"
)

var (
	ErrInvalidAsset = errors.New("asset could not be resolved as a token")
	ErrSuperseded   = errors.New("asset resolution superseded by a newer request")
	// ErrChainRead marks reads that failed before the token could answer.
	ErrChainRead    = errors.New("asset metadata could not be read from the network")
)

// Reader is the chain access a Session needs.
type Reader interface {
	NativeBalance(ctx context.Context, holder common.Address) (*big.Int, error)
	HasCode(ctx context.Context, token common.Address) (bool, error)
	Symbol(ctx context.Context, token common.Address) (string, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
}

// Recorder remembers custom tokens that resolved successfully.
type Recorder interface {
	Remember(network string, d Descriptor) error
}

type SessionConfig struct {
	Network      string
	Holder       common.Address
	NativeSymbol string
	NamedToken   *common.Address
	Recorder     Recorder
}

// Session resolves the selected asset into a Descriptor. Only the result of
// the most recent Resolve is ever applied.
type Session struct {
	reader Reader
	cfg    SessionConfig
	fence  fence.Fence

	mu      sync.Mutex
	current Descriptor
}

func NewSession(reader Reader, cfg SessionConfig) *Session {
	if strings.TrimSpace(cfg.NativeSymbol) == "" {
		cfg.NativeSymbol = "ETH"
	}
	return &Session{
		reader:  reader,
		cfg:     cfg,
		current: Descriptor{Kind: KindNative, Decimals: constants.NativeDecimals, Status: StatusLoading},
	}
}

func (s *Session) Current() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reset drops any in-flight resolution and the current descriptor.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fence.Invalidate()
	s.current = Descriptor{Kind: KindNative, Decimals: constants.NativeDecimals, Status: StatusLoading}
}

// Resolve selects kind (and, for KindCustom, the raw contract address) and
// reads its metadata. A result that arrives after a newer Resolve started is
// discarded and ErrSuperseded is returned.
func (s *Session) Resolve(ctx context.Context, kind Kind, rawAddress string) (Descriptor, error) {
	contract, addrErr := s.contractFor(kind, rawAddress)

	s.mu.Lock()
	tok := s.fence.Next()
	s.current = Descriptor{Kind: kind, Contract: contract, Status: StatusLoading}
	if kind == KindNative {
		s.current.Decimals = constants.NativeDecimals
		s.current.Symbol = s.cfg.NativeSymbol
	}
	s.mu.Unlock()

	var (
		desc Descriptor
		err  = addrErr
	)
	if err == nil {
		if kind == KindNative {
			desc, err = s.resolveNative(ctx)
		} else {
			desc, err = s.resolveToken(ctx, kind, *contract)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fence.Current(tok) {
		log.Info("assets: discarding stale resolution", "kind", kind, "address", rawAddress)
		return Descriptor{}, ErrSuperseded
	}
	if err != nil {
		s.current.Status = StatusFailed
		log.Warn("assets: resolution failed", "kind", kind, "address", rawAddress, "error", err)
		return s.current, err
	}

	s.current = desc
	if kind == KindCustom && s.cfg.Recorder != nil {
		if rerr := s.cfg.Recorder.Remember(s.cfg.Network, desc); rerr != nil {
			log.Warn("assets: failed to remember token", "address", desc.Address().Hex(), "error", rerr)
		}
	}
	log.Info("assets: resolved", "kind", kind, "symbol", desc.Symbol, "decimals", desc.Decimals)
	return desc, nil
}

func (s *Session) contractFor(kind Kind, raw string) (*common.Address, error) {
	switch kind {
	case KindNative:
		return nil, nil
	case KindNamed:
		if s.cfg.NamedToken == nil {
			return nil, errors.WithHint(ErrInvalidAsset, "no named token is configured for this network")
		}
		addr := *s.cfg.NamedToken
		return &addr, nil
	case KindCustom:
		raw = strings.TrimSpace(raw)
		if !common.IsHexAddress(raw) {
			return nil, errors.WithHintf(ErrInvalidAsset, "%q is not a contract address", raw)
		}
		addr := common.HexToAddress(raw)
		return &addr, nil
	default:
		return nil, errors.Wrapf(ErrInvalidAsset, "unknown kind %q", kind)
	}
}

// resolveNative never fails: the native coin is always sendable, and a
// balance that could not be read is left nil.
func (s *Session) resolveNative(ctx context.Context) (Descriptor, error) {
	bal, err := s.reader.NativeBalance(ctx, s.cfg.Holder)
	if err != nil {
		log.Warn("assets: native balance unavailable", "holder", s.cfg.Holder.Hex(), "error", err)
		bal = nil
	}
	return Descriptor{
		Kind:          KindNative,
		Symbol:        s.cfg.NativeSymbol,
		Decimals:      constants.NativeDecimals,
		HolderBalance: bal,
		Status:        StatusReady,
	}, nil
}

func (s *Session) resolveToken(ctx context.Context, kind Kind, token common.Address) (Descriptor, error) {
	var (
		hasCode  bool
		symbol   string
		decimals uint8
		balance  *big.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		hasCode, err = s.reader.HasCode(gctx, token)
		return errors.Wrap(err, "code")
	})
	g.Go(func() (err error) {
		symbol, err = s.reader.Symbol(gctx, token)
		return errors.Wrap(err, "symbol")
	})
	g.Go(func() (err error) {
		decimals, err = s.reader.Decimals(gctx, token)
		return errors.Wrap(err, "decimals")
	})
	g.Go(func() (err error) {
		balance, err = s.reader.BalanceOf(gctx, token, s.cfg.Holder)
		return errors.Wrap(err, "balanceOf")
	})

	if err := g.Wait(); err != nil {
		err = errors.Wrapf(err, "resolve token %s", token.Hex())
		if !isTokenCallError(err) {
			return Descriptor{}, errors.WithHint(errors.Mark(err, ErrChainRead),
				"the RPC endpoint did not answer; check the connection and retry")
		}
		return Descriptor{}, errors.WithHint(errors.Mark(err, ErrInvalidAsset),
			"the address did not answer as an ERC-20 token on this network")
	}
	if !hasCode {
		return Descriptor{}, errors.WithHintf(
			errors.Wrapf(ErrInvalidAsset, "no contract code at %s", token.Hex()),
			"there is no contract at %s on this network", token.Hex(),
		)
	}

	return Descriptor{
		Kind:          kind,
		Contract:      &token,
		Symbol:        symbol,
		Decimals:      decimals,
		HolderBalance: balance,
		Status:        StatusReady,
	}, nil
}

// isTokenCallError reports whether err came from the contract itself: a
// revert, an empty result from an address without code, or output that does
// not decode as the ERC-20 ABI.
func isTokenCallError(err error) bool {
	if errors.Is(err, bind.ErrNoCode) || txoutcome.IsRevertError(err) {
		return true
	}
	return strings.Contains(err.Error(), "abi: ")
}
