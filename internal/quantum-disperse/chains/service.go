package chains

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-go-utils/qa_evm"
)

var ErrUnknownChain = errors.New("unknown chain")

type ChainConfig struct {
	Chains               *AllChainsConfig
	DefaultActiveNetwork string
	PreferredRPCName     string
	HeaderRefresh        time.Duration
}

type ChainClients struct {
	HTTP qa_evm.BlockchainClient
}

// Backend narrows the cached client to the calls the disperse flow makes.
func (c *ChainClients) Backend() (Backend, error) {
	if c == nil || c.HTTP == nil {
		return nil, errors.New("no http client")
	}
	b, ok := c.HTTP.(Backend)
	if !ok {
		return nil, fmt.Errorf("http client does not support contract calls (got %T)", c.HTTP)
	}
	return b, nil
}

type ResolvedChain struct {
	Network NetworkConfig
	RPCName string
	URL     string
}

type activeChain struct {
	network NetworkConfig
	clients *ChainClients
}

// Dialer opens clients for a resolved chain. Replaced in tests.
type Dialer func(ctx context.Context, chain ResolvedChain, refresh time.Duration) (*ChainClients, error)

type ChainService struct {
	cfg    ChainConfig
	dial   Dialer
	active atomic.Pointer[activeChain]

	mu               sync.Mutex
	networks         map[string]NetworkConfig
	clientsByNetwork map[string]*ChainClients
}

func NewChainService(ctx context.Context, cfg ChainConfig) (*ChainService, error) {
	return NewChainServiceWithDialer(ctx, cfg, dialChainClients)
}

func NewChainServiceWithDialer(ctx context.Context, cfg ChainConfig, dial Dialer) (*ChainService, error) {
	if cfg.Chains == nil {
		return nil, errors.New("chains config is nil")
	}
	if strings.TrimSpace(cfg.DefaultActiveNetwork) == "" {
		return nil, errors.New("active network is empty")
	}

	service := &ChainService{
		cfg:              cfg,
		dial:             dial,
		networks:         make(map[string]NetworkConfig, len(cfg.Chains.Networks)),
		clientsByNetwork: make(map[string]*ChainClients),
	}
	for name, n := range cfg.Chains.Networks {
		if strings.TrimSpace(n.Name) == "" {
			n.Name = name
		}
		n = n.Normalized()
		service.networks[n.Name] = n
	}

	if err := service.SwitchChain(ctx, cfg.DefaultActiveNetwork); err != nil {
		return nil, err
	}
	return service, nil
}

func (s *ChainService) Active() (*ChainClients, error) {
	current := s.active.Load()
	if current == nil {
		return nil, errors.New("no active chain")
	}
	return current.clients, nil
}

func (s *ChainService) ActiveBackend() (Backend, error) {
	clients, err := s.Active()
	if err != nil {
		return nil, err
	}
	return clients.Backend()
}

func (s *ChainService) ActiveNetwork() (NetworkConfig, error) {
	current := s.active.Load()
	if current == nil {
		return NetworkConfig{}, errors.New("no active chain")
	}
	return current.network, nil
}

func (s *ChainService) SwitchChain(ctx context.Context, networkName string) error {
	networkName = strings.ToLower(strings.TrimSpace(networkName))
	if networkName == "" {
		return errors.New("network name is empty")
	}
	if current := s.active.Load(); current != nil && current.network.Name == networkName {
		return nil
	}

	network, err := s.ResolveNetworkByName(networkName)
	if err != nil {
		return err
	}
	clients, err := s.ClientsForNetwork(ctx, networkName)
	if err != nil {
		return err
	}

	s.active.Store(&activeChain{network: network.Network, clients: clients})
	log.Info("chains: active network switched", "network", networkName, "chainId", network.Network.ChainID)
	return nil
}

// SwitchChainByChainID activates the known network with chainID, or fails
// with ErrUnknownChain.
func (s *ChainService) SwitchChainByChainID(ctx context.Context, chainID uint64) (string, error) {
	resolved, err := s.ResolveNetworkByChainID(chainID)
	if err != nil {
		return "", err
	}
	if err := s.SwitchChain(ctx, resolved.Network.Name); err != nil {
		return "", err
	}
	return resolved.Network.Name, nil
}

// AddNetwork registers a network at runtime. An existing entry with the
// same name is replaced and its cached clients are closed.
func (s *ChainService) AddNetwork(n NetworkConfig) error {
	n = n.Normalized()
	if n.Name == "" || n.ChainID == 0 {
		return errors.New("network requires a name and chain id")
	}
	if len(n.RPCs) == 0 || n.RPCs[0].URL == "" {
		return fmt.Errorf("network %q has no RPCs configured", n.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[n.Name] = n
	if existing := s.clientsByNetwork[n.Name]; existing != nil {
		if current := s.active.Load(); current == nil || current.clients != existing {
			safeCloseClients(existing)
			delete(s.clientsByNetwork, n.Name)
		}
	}
	return nil
}

// Networks returns every known network, including runtime additions.
func (s *ChainService) Networks() map[string]NetworkConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]NetworkConfig, len(s.networks))
	for k, v := range s.networks {
		out[k] = v
	}
	return out
}

// ClientsForNetwork returns (and caches) clients for a network without
// changing the active one.
func (s *ChainService) ClientsForNetwork(ctx context.Context, networkName string) (*ChainClients, error) {
	cacheKey := strings.ToLower(strings.TrimSpace(networkName))
	if cacheKey == "" {
		return nil, errors.New("network name is empty")
	}

	s.mu.Lock()
	if existing := s.clientsByNetwork[cacheKey]; existing != nil {
		s.mu.Unlock()
		return existing, nil
	}
	s.mu.Unlock()

	resolved, err := s.ResolveNetworkByName(cacheKey)
	if err != nil {
		return nil, err
	}

	// dial outside the lock
	dialed, err := s.dial(ctx, resolved, s.cfg.HeaderRefresh)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing := s.clientsByNetwork[cacheKey]; existing != nil {
		s.mu.Unlock()
		safeCloseClients(dialed)
		return existing, nil
	}
	s.clientsByNetwork[cacheKey] = dialed
	s.mu.Unlock()

	return dialed, nil
}

// Close closes all cached clients.
func (s *ChainService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, clients := range s.clientsByNetwork {
		safeCloseClients(clients)
		delete(s.clientsByNetwork, key)
	}
	s.active.Store(nil)
	return nil
}

func dialChainClients(ctx context.Context, chain ResolvedChain, refresh time.Duration) (*ChainClients, error) {
	if strings.TrimSpace(chain.URL) == "" {
		return nil, errors.New("invalid chain rpc config (missing url)")
	}
	httpClient, err := NewBlockchainClientWithCache(ctx, chain.URL, refresh)
	if err != nil {
		return nil, fmt.Errorf("dial http %q: %w", chain.Network.Name, err)
	}
	return &ChainClients{HTTP: httpClient}, nil
}

func safeCloseClients(c *ChainClients) {
	if c == nil || c.HTTP == nil {
		return
	}
	if closer, ok := c.HTTP.(interface{ Close() }); ok {
		closer.Close()
	}
}

func (s *ChainService) ResolveNetworkByChainID(chainID uint64) (ResolvedChain, error) {
	if chainID == 0 {
		return ResolvedChain{}, errors.New("chainID is 0")
	}

	s.mu.Lock()
	var (
		found NetworkConfig
		ok    bool
	)
	for _, network := range s.networks {
		if network.ChainID == chainID {
			found, ok = network, true
			break
		}
	}
	s.mu.Unlock()

	if !ok {
		return ResolvedChain{}, errors.Wrapf(ErrUnknownChain, "chainId %d", chainID)
	}
	return s.resolveFromNetworkConfig(found)
}

func (s *ChainService) ResolveNetworkByName(networkName string) (ResolvedChain, error) {
	networkName = strings.ToLower(strings.TrimSpace(networkName))
	if networkName == "" {
		return ResolvedChain{}, errors.New("network name is empty")
	}

	s.mu.Lock()
	network, ok := s.networks[networkName]
	s.mu.Unlock()
	if !ok {
		return ResolvedChain{}, errors.Wrapf(ErrUnknownChain, "network %q", networkName)
	}
	return s.resolveFromNetworkConfig(network)
}

func (s *ChainService) resolveFromNetworkConfig(network NetworkConfig) (ResolvedChain, error) {
	var selectedRPC *RPC

	if preferred := strings.TrimSpace(s.cfg.PreferredRPCName); preferred != "" {
		for i := range network.RPCs {
			if strings.EqualFold(network.RPCs[i].Name, preferred) {
				selectedRPC = &network.RPCs[i]
				break
			}
		}
	}
	if selectedRPC == nil {
		if len(network.RPCs) == 0 {
			return ResolvedChain{}, fmt.Errorf("network %q has no RPCs configured", network.Name)
		}
		selectedRPC = &network.RPCs[0]
	}
	if selectedRPC.URL == "" {
		return ResolvedChain{}, fmt.Errorf("network %q rpc %q url is empty", network.Name, selectedRPC.Name)
	}

	return ResolvedChain{
		Network: network,
		RPCName: selectedRPC.Name,
		URL:     selectedRPC.URL,
	}, nil
}
