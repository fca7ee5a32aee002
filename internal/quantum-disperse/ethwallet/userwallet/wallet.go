package userwallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/constants"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/securefile"
)

var ErrWalletNotFound = errors.New("wallet file not found")

type Wallet struct {
	Version    int    `json:"version"`
	AddressHex string `json:"address"`
	PrivKeyHex string `json:"priv_key_hex"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type Store struct {
	Path string
	Opt  securefile.Options
}

func (w *Wallet) Address() common.Address {
	return common.HexToAddress(w.AddressHex)
}

func (w *Wallet) ExportPrivateKey(_ context.Context) (*ecdsa.PrivateKey, error) {
	return parseKey(w.PrivKeyHex)
}

// FromPrivateKeyHex builds an in-memory wallet from a raw development key.
func FromPrivateKeyHex(hexKey string) (*Wallet, error) {
	key, err := parseKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &Wallet{
		Version:    1,
		AddressHex: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivKeyHex: fmt.Sprintf("%x", crypto.FromECDSA(key)),
	}, nil
}

// NewStore points at path, or at the default per-user wallet file when path
// is empty.
func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		p, err := securefile.ResolvePath(constants.AppName, constants.WalletFile)
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Store{
		Path: path,
		Opt: securefile.Options{
			// must match between read and write
			AADFunc: func(_ string) []byte { return []byte(constants.AADConstant) },
		},
	}, nil
}

// Open decrypts an existing wallet. Wallets are never created here.
func (s *Store) Open(password []byte) (*Wallet, error) {
	w, err := securefile.ReadEncryptedJSON[Wallet](s.Path, password, s.Opt)
	if err == nil {
		if _, kerr := w.ExportPrivateKey(context.Background()); kerr != nil {
			return nil, fmt.Errorf("wallet %s: %w", s.Path, kerr)
		}
		return &w, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.WithHintf(errors.Wrap(ErrWalletNotFound, s.Path),
			"create an encrypted wallet at %s or set DISPERSE_PRIVATE_KEY for development", s.Path)
	}
	return nil, fmt.Errorf("load wallet %s: %w", s.Path, err)
}

// Save writes w encrypted under password. Used for provisioning and tests.
func (s *Store) Save(w *Wallet, password []byte) error {
	return securefile.WriteEncryptedJSON(s.Path, *w, password, s.Opt)
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("invalid privkey hex length: got %d want 64", len(hexKey))
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("to ecdsa: %w", err)
	}
	return key, nil
}
