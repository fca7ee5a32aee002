// Package allowance tracks whether the disperse contract may spend enough of
// the selected token, and drives approve and revoke transactions.
package allowance

import (
	"context"
	"math/big"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/assets"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/fence"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/txoutcome"
)

type State string

const (
	StateUnknown      State = "unknown"
	StateInsufficient State = "insufficient"
	StateSufficient   State = "sufficient"
	StateApproving    State = "approving"
	StateRevoking     State = "revoking"
)

type Mode string

const (
	ModeUnlimited Mode = "unlimited"
	ModeExact     Mode = "exact"
)

var (
	ErrNotApplicable     = errors.New("allowance does not apply to this asset")
	ErrInvalidTransition = errors.New("allowance action not allowed in current state")
)

// Chain reads allowances and submits approve transactions. Approve blocks
// until the transaction is mined; the hash is returned whenever it was
// broadcast, even if it later failed.
type Chain interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
}

type Config struct {
	Owner        common.Address
	Spender      common.Address
	Mode         Mode
	ExplorerBase string
}

type Snapshot struct {
	State    State    `json:"state"`
	Observed *big.Int `json:"observed,omitempty"`
	Total    *big.Int `json:"total"`
}

type Tracker struct {
	chain Chain
	cfg   Config

	// epoch changes with the asset; reads orders allowance reads.
	epoch fence.Fence
	reads fence.Fence

	mu       sync.Mutex
	asset    assets.Descriptor
	total    *big.Int
	observed *big.Int
	state    State
	pending  State
}

func NewTracker(chain Chain, cfg Config) *Tracker {
	if cfg.Mode == "" {
		cfg.Mode = ModeUnlimited
	}
	return &Tracker{
		chain: chain,
		cfg:   cfg,
		total: new(big.Int),
		state: StateUnknown,
	}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{State: t.state, Total: new(big.Int).Set(t.total)}
	if t.observed != nil {
		s.Observed = new(big.Int).Set(t.observed)
	}
	return s
}

// Retarget points the tracker at asset and total. A different asset drops
// the observed allowance and orphans every in-flight read and transaction;
// a new total on the same asset is compared against the last observation.
func (t *Tracker) Retarget(asset assets.Descriptor, total *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !asset.SameAsset(t.asset) || asset.Ready() != t.asset.Ready() {
		t.epoch.Invalidate()
		t.observed = nil
		t.pending = ""
	}
	t.asset = asset
	t.total = copyOrZero(total)

	prev := t.state
	t.state = t.deriveLocked()
	if prev != t.state {
		log.Info("allowance: state changed", "from", prev, "to", t.state, "total", t.total.String())
	}
}

// CanSend reports whether a disperse of asset may be submitted now.
func (t *Tracker) CanSend(asset assets.Descriptor) bool {
	if asset.IsNative() {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateSufficient && asset.SameAsset(t.asset)
}

// Refresh reads the on-chain allowance. The result applies only if no newer
// read started and the asset has not changed meanwhile; it is compared with
// the total current at that moment.
func (t *Tracker) Refresh(ctx context.Context) (State, error) {
	t.mu.Lock()
	if !t.applicableLocked() {
		t.state = StateUnknown
		t.mu.Unlock()
		return StateUnknown, nil
	}
	ep := t.epoch.Peek()
	token := t.asset.Address()
	t.mu.Unlock()

	return t.read(ctx, ep, token, false)
}

// read applies an allowance observation. settle ends a pending approve or
// revoke for the same epoch, whether or not this read is the newest.
func (t *Tracker) read(ctx context.Context, ep fence.Token, token common.Address, settle bool) (State, error) {
	rd := t.reads.Next()
	value, err := t.chain.Allowance(ctx, token, t.cfg.Owner, t.cfg.Spender)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.epoch.Current(ep) {
		return t.state, nil
	}
	if settle {
		t.pending = ""
	}
	if !t.reads.Current(rd) {
		t.state = t.deriveLocked()
		return t.state, nil
	}
	if err != nil {
		t.observed = nil
		t.state = t.deriveLocked()
		return t.state, errors.Wrap(err, "read allowance")
	}
	t.observed = value
	t.state = t.deriveLocked()
	return t.state, nil
}

// Approve grants the disperse contract an allowance: unlimited, or exactly
// the current total in ModeExact. An Unknown state is refreshed first.
// Transaction failures are reported in the outcome, not as an error.
func (t *Tracker) Approve(ctx context.Context) (txoutcome.Outcome, error) {
	if t.State() == StateUnknown {
		if _, err := t.Refresh(ctx); err != nil {
			return txoutcome.Outcome{}, err
		}
	}

	t.mu.Lock()
	if !t.applicableLocked() {
		t.mu.Unlock()
		return txoutcome.Outcome{}, ErrNotApplicable
	}
	if t.state != StateInsufficient {
		state := t.state
		t.mu.Unlock()
		return txoutcome.Outcome{}, errors.Wrapf(ErrInvalidTransition, "approve from %s", state)
	}
	amount := new(big.Int).Set(math.MaxBig256)
	if t.cfg.Mode == ModeExact {
		amount = new(big.Int).Set(t.total)
	}
	return t.submitLocked(ctx, txoutcome.ActionApprove, StateApproving, amount)
}

// Revoke sets the allowance back to zero.
func (t *Tracker) Revoke(ctx context.Context) (txoutcome.Outcome, error) {
	t.mu.Lock()
	if !t.applicableLocked() {
		t.mu.Unlock()
		return txoutcome.Outcome{}, ErrNotApplicable
	}
	if t.state != StateSufficient && (t.state != StateInsufficient || t.observed == nil || t.observed.Sign() == 0) {
		state := t.state
		t.mu.Unlock()
		return txoutcome.Outcome{}, errors.Wrapf(ErrInvalidTransition, "revoke from %s", state)
	}
	return t.submitLocked(ctx, txoutcome.ActionRevoke, StateRevoking, new(big.Int))
}

// submitLocked is entered with t.mu held and releases it.
func (t *Tracker) submitLocked(ctx context.Context, action txoutcome.Action, pending State, amount *big.Int) (txoutcome.Outcome, error) {
	ep := t.epoch.Peek()
	token := t.asset.Address()
	t.state = pending
	t.pending = pending
	t.mu.Unlock()

	log.Info("allowance: submitting", "action", action, "token", token.Hex(), "amount", amount.String())
	hash, err := t.chain.Approve(ctx, token, t.cfg.Spender, amount)
	if err != nil {
		out := txoutcome.Fail(action, hash, t.cfg.ExplorerBase, err)
		t.mu.Lock()
		if t.epoch.Current(ep) {
			t.pending = ""
			if hash != (common.Hash{}) && out.Failure.Kind == txoutcome.NetworkFailure {
				// broadcast but unconfirmed: it may still be mined
				t.observed = nil
			}
			t.state = t.deriveLocked()
		}
		t.mu.Unlock()
		log.Warn("allowance: transaction failed", "action", action, "error", err)
		return out, nil
	}

	if _, rerr := t.read(ctx, ep, token, true); rerr != nil {
		log.Warn("allowance: re-read after confirmation failed", "action", action, "error", rerr)
	}
	return txoutcome.Success(action, hash, t.cfg.ExplorerBase), nil
}

func (t *Tracker) applicableLocked() bool {
	return !t.asset.IsNative() && t.asset.Ready() && t.asset.Contract != nil && t.total.Sign() > 0
}

func (t *Tracker) deriveLocked() State {
	if !t.applicableLocked() {
		return StateUnknown
	}
	if t.pending != "" {
		return t.pending
	}
	if t.observed == nil {
		return StateUnknown
	}
	if t.observed.Cmp(t.total) >= 0 {
		return StateSufficient
	}
	return StateInsufficient
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
