package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/allowance"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/assets"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/disperse"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/ethwallet/wtypes"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/networks"
)

// Provider is the wallet a session connects to: it owns the account, knows
// which chain it is on, and can be asked to switch or add chains.
type Provider interface {
	Account(ctx context.Context) (common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	// SwitchChain fails with chains.ErrUnknownChain when the wallet has never
	// heard of chainID.
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, n chains.NetworkConfig) error
	// Ports returns chain access for the wallet's current chain, bound to
	// the disperse contract at spender.
	Ports(ctx context.Context, spender common.Address) (Ports, error)
}

type Ports struct {
	Reader    assets.Reader
	Allowance allowance.Chain
	Disperse  disperse.Chain
}

// LocalProvider is a Provider over the local wallet, the chain service and
// the persisted networks list.
type LocalProvider struct {
	chains   *chains.ChainService
	networks *networks.Manager
	wallet   wtypes.Wallet
	confirm  chains.ConfirmFunc
	timeout  time.Duration

	// VerifyRPC probes the RPCs of a chain before adding it.
	VerifyRPC bool

	mu      sync.Mutex
	senders map[chains.Backend]*chains.Sender
}

func NewLocalProvider(
	chainService *chains.ChainService,
	networksManager *networks.Manager,
	wallet wtypes.Wallet,
	confirm chains.ConfirmFunc,
	txTimeout time.Duration,
) *LocalProvider {
	return &LocalProvider{
		chains:    chainService,
		networks:  networksManager,
		wallet:    wallet,
		confirm:   confirm,
		timeout:   txTimeout,
		VerifyRPC: true,
		senders:   map[chains.Backend]*chains.Sender{},
	}
}

func (p *LocalProvider) Account(context.Context) (common.Address, error) {
	return p.wallet.Address(), nil
}

func (p *LocalProvider) ChainID(ctx context.Context) (uint64, error) {
	backend, err := p.chains.ActiveBackend()
	if err != nil {
		return 0, err
	}
	id, err := backend.ChainID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "query chain id")
	}
	return id.Uint64(), nil
}

func (p *LocalProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	name, err := p.chains.SwitchChainByChainID(ctx, chainID)
	if err != nil {
		return err
	}
	log.Info("provider: switched chain", "network", name, "chainId", chainID)
	return nil
}

// AddChain registers n with the chain service. A chain already saved in the
// networks list is registered from the saved entry, so user edits to its RPCs
// win. A new chain is probed, saved, and unsaved again if the chain service
// rejects it.
func (p *LocalProvider) AddChain(ctx context.Context, n chains.NetworkConfig) error {
	n = n.Normalized()
	if p.networks != nil {
		saved, ok, err := p.networks.FindByChainID(ctx, n.ChainID)
		if err != nil {
			return err
		}
		if ok {
			if err := p.chains.AddNetwork(saved); err != nil {
				return err
			}
			log.Info("provider: added saved chain", "network", saved.Name, "chainId", saved.ChainID)
			return nil
		}
	}

	if p.VerifyRPC {
		if err := networks.VerifyRPC(ctx, n); err != nil {
			return errors.Wrapf(err, "add chain %s", n.Name)
		}
	}
	if p.networks != nil {
		if _, err := p.networks.AddNetwork(ctx, n); err != nil {
			return err
		}
	}
	if err := p.chains.AddNetwork(n); err != nil {
		if p.networks != nil {
			if rerr := p.networks.RemoveNetworkByChainID(ctx, n.ChainID); rerr != nil {
				log.Warn("provider: failed to unsave rejected chain", "chainId", n.ChainID, "error", rerr)
			}
		}
		return err
	}
	log.Info("provider: added chain", "network", n.Name, "chainId", n.ChainID)
	return nil
}

func (p *LocalProvider) Ports(_ context.Context, spender common.Address) (Ports, error) {
	backend, err := p.chains.ActiveBackend()
	if err != nil {
		return Ports{}, err
	}
	sender := p.senderFor(backend)

	dc, err := disperse.NewEVMChain(spender, backend, sender)
	if err != nil {
		return Ports{}, fmt.Errorf("provider: %w", err)
	}
	return Ports{
		Reader:    assets.NewEVMReader(backend),
		Allowance: allowance.NewEVMChain(backend, sender),
		Disperse:  dc,
	}, nil
}

// senderFor shares one Sender per backend so nonces stay ordered across
// sessions.
func (p *LocalProvider) senderFor(backend chains.Backend) *chains.Sender {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.senders[backend]; ok {
		return s
	}
	s := chains.NewSender(backend, p.wallet, p.confirm, p.timeout)
	p.senders[backend] = s
	return s
}
