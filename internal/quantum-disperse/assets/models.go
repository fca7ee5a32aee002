package assets

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/utils"
)

type Kind string

const (
	KindNative Kind = "native"
	KindNamed  Kind = "named"
	KindCustom Kind = "custom"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindNative:
		return KindNative, nil
	case KindNamed:
		return KindNamed, nil
	case KindCustom:
		return KindCustom, nil
	default:
		return "", errors.Newf("unknown asset kind %q", s)
	}
}

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Descriptor describes the asset a session disperses. Contract is nil for the
// native coin.
type Descriptor struct {
	Kind          Kind            `json:"kind"`
	Contract      *common.Address `json:"contract,omitempty"`
	Symbol        string          `json:"symbol,omitempty"`
	Decimals      uint8           `json:"decimals"`
	HolderBalance *big.Int        `json:"holderBalance,omitempty"`
	Status        Status          `json:"status"`
}

func (d Descriptor) IsNative() bool { return d.Kind == KindNative }

func (d Descriptor) Ready() bool { return d.Status == StatusReady }

// Address returns the token contract, or the zero address for the native coin.
func (d Descriptor) Address() common.Address {
	if d.Contract == nil {
		return common.Address{}
	}
	return *d.Contract
}

// SameAsset compares identity only: kind and contract.
func (d Descriptor) SameAsset(o Descriptor) bool {
	return d.Kind == o.Kind && d.Address() == o.Address()
}

func (d Descriptor) FormattedBalance() string {
	return utils.FormatUnitsTrim(d.HolderBalance, d.Decimals, 6)
}

// Token is a registry entry for a custom token that resolved successfully.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type Store struct {
	// network -> checksummed address -> token
	Networks map[string]map[string]Token `json:"networks"`
	Schema   int                         `json:"schema"`
}
