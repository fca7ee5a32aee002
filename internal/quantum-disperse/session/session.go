// Package session holds everything one connected user works on: the
// recipient text and its parsed batch, the selected asset and the allowance
// tracked for it. It sequences approve, verify and disperse.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/allowance"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/assets"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/batch"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/constants"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/disperse"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/metrics"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/txoutcome"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/utils"
)

var (
	ErrChainMismatch = errors.New("wallet is on a different chain than the disperse network")
	ErrClosed        = errors.New("session is closed")
	ErrNotApproved   = errors.New("allowance does not cover the batch total")
)

// Parser turns recipient text into a batch; batch.Cache implements it.
type Parser interface {
	Parse(text string, decimals uint8) batch.ParsedBatch
}

type ParserFunc func(text string, decimals uint8) batch.ParsedBatch

func (f ParserFunc) Parse(text string, decimals uint8) batch.ParsedBatch { return f(text, decimals) }

// SwitchPrompt asks whether the wallet should move to the target chain.
type SwitchPrompt func(ctx context.Context, question string) (bool, error)

type Options struct {
	// Target is the network the disperse contract lives on.
	Target       chains.NetworkConfig
	ApprovalMode allowance.Mode
	// ConfirmSwitch is asked on a chain mismatch; nil declines.
	ConfirmSwitch SwitchPrompt
	Recorder      assets.Recorder
	Parser        Parser
	Metrics       *metrics.Metrics
}

type Session struct {
	provider Provider
	opts     Options

	account  common.Address
	chainID  uint64
	mismatch bool

	assets  *assets.Session
	tracker *allowance.Tracker
	orch    *disperse.Orchestrator

	mu     sync.Mutex
	text   string
	batch  batch.ParsedBatch
	closed bool
}

// Connect requests the account and chain from provider, runs the chain
// switch (and add) flow when the wallet is elsewhere, and loads the native
// asset. Declining the switch keeps the session read-only for transactions.
func Connect(ctx context.Context, provider Provider, opts Options) (*Session, error) {
	target := opts.Target.Normalized()
	opts.Target = target
	spender, ok := target.DisperseAddress()
	if !ok {
		return nil, fmt.Errorf("session: no disperse contract configured for network %q", target.Name)
	}
	if opts.Parser == nil {
		opts.Parser = ParserFunc(batch.Parse)
	}

	account, err := provider.Account(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "connect account")
	}
	chainID, err := provider.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query chain")
	}

	mismatch := false
	if chainID != target.ChainID {
		chainID, mismatch, err = switchChain(ctx, provider, opts, chainID)
		if err != nil {
			return nil, err
		}
	}

	ports, err := provider.Ports(ctx, spender)
	if err != nil {
		return nil, err
	}

	s := &Session{
		provider: provider,
		opts:     opts,
		account:  account,
		chainID:  chainID,
		mismatch: mismatch,
		assets: assets.NewSession(ports.Reader, assets.SessionConfig{
			Network:      target.Name,
			Holder:       account,
			NativeSymbol: target.NativeCurrency.Symbol,
			NamedToken:   target.NamedTokenAddress(),
			Recorder:     opts.Recorder,
		}),
		tracker: allowance.NewTracker(ports.Allowance, allowance.Config{
			Owner:        account,
			Spender:      spender,
			Mode:         opts.ApprovalMode,
			ExplorerBase: target.Explorer,
		}),
		orch: disperse.NewOrchestrator(ports.Disperse, disperse.Config{
			NativeMethod: target.NativeMethod,
			ExplorerBase: target.Explorer,
		}),
		batch: batch.Empty(constants.NativeDecimals),
	}

	if _, err := s.SelectAsset(ctx, assets.KindNative, ""); err != nil {
		log.Warn("session: native asset selection failed", "account", account.Hex(), "error", err)
	}

	opts.Metrics.SessionOpened()
	log.Info("session: connected", "account", account.Hex(), "network", target.Name, "chainId", chainID, "mismatch", mismatch)
	return s, nil
}

func switchChain(ctx context.Context, provider Provider, opts Options, current uint64) (uint64, bool, error) {
	target := opts.Target
	question := fmt.Sprintf("Wallet is on chain %d; switch to %s (chain %d)?", current, target.Name, target.ChainID)

	accept := false
	if opts.ConfirmSwitch != nil {
		ok, err := opts.ConfirmSwitch(ctx, question)
		if err != nil {
			return current, false, errors.Wrap(err, "switch prompt")
		}
		accept = ok
	}
	if !accept {
		log.Warn("session: chain switch declined", "walletChainId", current, "wantChainId", target.ChainID)
		return current, true, nil
	}

	err := provider.SwitchChain(ctx, target.ChainID)
	if errors.Is(err, chains.ErrUnknownChain) {
		log.Info("session: chain unknown to wallet, adding", "network", target.Name, "chainId", target.ChainID)
		if err = provider.AddChain(ctx, target); err != nil {
			return current, false, errors.Wrap(err, "add chain")
		}
		err = provider.SwitchChain(ctx, target.ChainID)
	}
	if err != nil {
		return current, false, errors.Wrap(err, "switch chain")
	}

	got, err := provider.ChainID(ctx)
	if err != nil {
		return current, false, errors.Wrap(err, "query chain after switch")
	}
	if got != target.ChainID {
		return got, false, errors.Newf("wallet reports chain %d after switching to %d", got, target.ChainID)
	}
	return got, false, nil
}

func (s *Session) Account() common.Address { return s.account }

// SetRecipients replaces the recipient text. The batch is re-parsed and the
// allowance state recomputed locally, without a chain read.
func (s *Session) SetRecipients(text string) (batch.ParsedBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return batch.ParsedBatch{}, ErrClosed
	}
	s.text = text
	s.applyLocked()
	return s.batch.Clone(), nil
}

// SelectAsset resolves kind (and address for custom tokens). A failed
// resolution is applied too, so the session never keeps acting on the
// previous asset. Token selections are followed by an allowance read.
func (s *Session) SelectAsset(ctx context.Context, kind assets.Kind, address string) (assets.Descriptor, error) {
	if err := s.checkOpen(); err != nil {
		return assets.Descriptor{}, err
	}

	desc, err := s.assets.Resolve(ctx, kind, address)
	if errors.Is(err, assets.ErrSuperseded) {
		s.opts.Metrics.StaleResult("assets")
		return desc, err
	}

	s.mu.Lock()
	s.applyLocked()
	s.mu.Unlock()

	if err != nil {
		return desc, err
	}
	if !desc.IsNative() {
		if _, rerr := s.tracker.Refresh(ctx); rerr != nil {
			log.Warn("session: allowance read failed", "token", desc.Address().Hex(), "error", rerr)
		}
	}
	return desc, nil
}

func (s *Session) RefreshAllowance(ctx context.Context) (allowance.Snapshot, error) {
	if err := s.checkOpen(); err != nil {
		return allowance.Snapshot{}, err
	}
	s.sync()
	_, err := s.tracker.Refresh(ctx)
	return s.tracker.Snapshot(), err
}

func (s *Session) Approve(ctx context.Context) (txoutcome.Outcome, error) {
	if err := s.checkTransact(); err != nil {
		return txoutcome.Outcome{}, err
	}
	s.sync()
	out, err := s.tracker.Approve(ctx)
	s.recordOutcome(out, err)
	return out, err
}

func (s *Session) Revoke(ctx context.Context) (txoutcome.Outcome, error) {
	if err := s.checkTransact(); err != nil {
		return txoutcome.Outcome{}, err
	}
	s.sync()
	out, err := s.tracker.Revoke(ctx)
	s.recordOutcome(out, err)
	return out, err
}

// Send disperses the current batch. Tokens need a sufficient allowance;
// the allowance is re-read after a successful token disperse.
func (s *Session) Send(ctx context.Context) (txoutcome.Outcome, error) {
	if err := s.checkTransact(); err != nil {
		return txoutcome.Outcome{}, err
	}

	s.mu.Lock()
	asset := s.applyLocked()
	b := s.batch.Clone()
	s.mu.Unlock()

	if !b.IsEmpty() && asset.Ready() && !s.tracker.CanSend(asset) {
		return txoutcome.Outcome{}, errors.WithHintf(ErrNotApproved,
			"approve %s for the disperse contract first", asset.Symbol)
	}

	out, err := s.orch.Submit(ctx, b, asset)
	if err != nil {
		return out, err
	}
	s.opts.Metrics.BatchSubmitted(b.Len())
	s.recordOutcome(out, nil)

	if out.Succeeded() && !asset.IsNative() {
		if _, rerr := s.tracker.Refresh(ctx); rerr != nil {
			log.Warn("session: allowance re-read after disperse failed", "error", rerr)
		}
	}
	return out, nil
}

// Close clears the session. Later calls fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.text = ""
	s.batch = batch.Empty(constants.NativeDecimals)
	s.mu.Unlock()

	s.assets.Reset()
	s.tracker.Retarget(s.assets.Current(), nil)
	s.opts.Metrics.SessionClosed()
	log.Info("session: disconnected", "account", s.account.Hex())
}

type BatchView struct {
	Recipients     int                    `json:"recipients"`
	Entries        []batch.RecipientEntry `json:"entries"`
	Total          string                 `json:"total"`
	FormattedTotal string                 `json:"formattedTotal"`
	Decimals       uint8                  `json:"decimals"`
	Rejected       []int                  `json:"rejectedLines"`
}

type AssetView struct {
	assets.Descriptor
	FormattedBalance string `json:"formattedBalance,omitempty"`
}

type View struct {
	Account       string             `json:"account"`
	Network       string             `json:"network"`
	ChainID       uint64             `json:"chainId"`
	ChainMismatch bool               `json:"chainMismatch"`
	Asset         AssetView          `json:"asset"`
	Batch         BatchView          `json:"batch"`
	Allowance     allowance.Snapshot `json:"allowance"`
	CanSend       bool               `json:"canSend"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	b := s.batch.Clone()
	s.mu.Unlock()

	asset := s.assets.Current()
	av := AssetView{Descriptor: asset}
	if asset.HolderBalance != nil {
		av.FormattedBalance = asset.FormattedBalance()
	}

	return View{
		Account:       s.account.Hex(),
		Network:       s.opts.Target.Name,
		ChainID:       s.chainID,
		ChainMismatch: s.mismatch,
		Asset:         av,
		Batch:         NewBatchView(b),
		Allowance:     s.tracker.Snapshot(),
		CanSend:       !s.mismatch && !b.IsEmpty() && asset.Ready() && s.tracker.CanSend(asset),
	}
}

func NewBatchView(b batch.ParsedBatch) BatchView {
	total := b.TotalOrZero()
	return BatchView{
		Recipients:     b.Len(),
		Entries:        b.Entries,
		Total:          total.String(),
		FormattedTotal: utils.FormatUnits(total, b.Decimals),
		Decimals:       b.Decimals,
		Rejected:       b.Rejected,
	}
}

// applyLocked re-parses the text with the current asset's decimals and
// retargets the tracker. Unresolved assets parse at the native scale. The
// returned descriptor is the one s.batch was scaled for.
func (s *Session) applyLocked() assets.Descriptor {
	asset := s.assets.Current()
	decimals := uint8(constants.NativeDecimals)
	if asset.Ready() {
		decimals = asset.Decimals
	}
	s.batch = s.opts.Parser.Parse(s.text, decimals)
	s.tracker.Retarget(asset, s.batch.TotalOrZero())
	return asset
}

// sync brings the tracker up to date with the latest asset before acting.
func (s *Session) sync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.applyLocked()
	}
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Session) checkTransact() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.mismatch {
		return errors.WithHintf(ErrChainMismatch,
			"switch the wallet to %s (chain %d) and reconnect", s.opts.Target.Name, s.opts.Target.ChainID)
	}
	return nil
}

func (s *Session) recordOutcome(out txoutcome.Outcome, err error) {
	if err != nil || out.Action == "" {
		return
	}
	result := "success"
	if out.Failure != nil {
		result = string(out.Failure.Kind)
	}
	s.opts.Metrics.Transaction(string(out.Action), result)
}
