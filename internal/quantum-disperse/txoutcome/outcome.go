package txoutcome

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUserRejected = errors.New("transaction rejected by user")
	ErrReverted     = errors.New("transaction reverted on chain")
)

type Action string

const (
	ActionApprove  Action = "approve"
	ActionRevoke   Action = "revoke"
	ActionDisperse Action = "disperse"
)

type FailureKind string

const (
	UserRejected   FailureKind = "user_rejected"
	ChainReverted  FailureKind = "chain_reverted"
	NetworkFailure FailureKind = "network_failure"
)

type Failure struct {
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// Outcome is produced once per submitted approve, revoke or disperse. It is
// for display only.
type Outcome struct {
	Action      Action   `json:"action"`
	Hash        string   `json:"hash,omitempty"`
	ExplorerURL string   `json:"explorerUrl,omitempty"`
	Failure     *Failure `json:"failure,omitempty"`
}

func (o Outcome) Succeeded() bool { return o.Failure == nil }

func Success(action Action, hash common.Hash, explorerBase string) Outcome {
	return Outcome{
		Action:      action,
		Hash:        hash.Hex(),
		ExplorerURL: ExplorerTxURL(explorerBase, hash),
	}
}

// Fail builds a failed outcome. A hash is kept when the transaction was
// broadcast but later failed, so the user can still look it up. A broadcast
// transaction can no longer be rejected by the user: a cancelled wait is
// reported as unconfirmed.
func Fail(action Action, hash common.Hash, explorerBase string, err error) Outcome {
	kind := Classify(err)
	reason := Reason(err)
	if hash != (common.Hash{}) && kind == UserRejected {
		kind = NetworkFailure
		reason = "transaction " + hash.Hex() + " was broadcast but its confirmation was not observed"
	}
	out := Outcome{
		Action:  action,
		Failure: &Failure{Kind: kind, Reason: reason},
	}
	if hash != (common.Hash{}) {
		out.Hash = hash.Hex()
		out.ExplorerURL = ExplorerTxURL(explorerBase, hash)
	}
	return out
}

func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserRejected), errors.Is(err, context.Canceled):
		return UserRejected
	case errors.Is(err, ErrReverted), IsRevertError(err):
		return ChainReverted
	default:
		return NetworkFailure
	}
}

// Reason prefers the first hint attached to err over its message.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		return hints[0]
	}
	return err.Error()
}

// IsRevertError recognises node responses for calls that reverted during
// gas estimation, before anything was broadcast.
func IsRevertError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}

func ExplorerTxURL(base string, hash common.Hash) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return base + "/tx/" + hash.Hex()
}
