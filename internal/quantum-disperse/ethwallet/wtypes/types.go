package wtypes

import (
	"context"
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNotExportable = errors.New("private key is not exportable")

// Wallet is the signer a session sends transactions from.
// Implementations that keep their key elsewhere return ErrNotExportable.
type Wallet interface {
	Address() common.Address
	ExportPrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error)
}
