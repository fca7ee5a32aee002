package networks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/constants"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/securefile"
)

var ErrNetworkExists = errors.New("network already exists")

// Manager persists the known networks in networks.json.
type Manager struct {
	path string

	mu    sync.Mutex
	store Store
}

// NewManager opens path, or the default per-user networks file when path is
// empty. The file is read lazily.
func NewManager(path string) (*Manager, error) {
	if strings.TrimSpace(path) == "" {
		p, err := securefile.ResolvePath(constants.AppName, constants.NetworksFile)
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Manager{path: path}, nil
}

func (m *Manager) Path() string { return m.path }

// AddNetwork adds a new network (fails on duplicate name or chain id).
func (m *Manager) AddNetwork(ctx context.Context, n chains.NetworkConfig) (chains.NetworkConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedLocked(); err != nil {
		return chains.NetworkConfig{}, err
	}

	normalized, err := normalizeNetworkConfig(n)
	if err != nil {
		return chains.NetworkConfig{}, err
	}

	if _, exists := m.store.Networks[normalized.Name]; exists {
		return chains.NetworkConfig{}, errors.Wrapf(ErrNetworkExists, "name %s", normalized.Name)
	}
	if key, ok := m.findKeyByChainIDLocked(normalized.ChainID); ok {
		return chains.NetworkConfig{}, errors.Wrapf(ErrNetworkExists, "chainId %d (name: %s)", normalized.ChainID, key)
	}

	m.store.Networks[normalized.Name] = normalized
	if err := m.persistLocked(); err != nil {
		return chains.NetworkConfig{}, err
	}
	log.Info("networks: added", "name", normalized.Name, "chainId", normalized.ChainID)
	return normalized, nil
}

func (m *Manager) RemoveNetworkByChainID(ctx context.Context, chainID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedLocked(); err != nil {
		return err
	}
	key, ok := m.findKeyByChainIDLocked(chainID)
	if !ok {
		return nil // idempotent
	}
	delete(m.store.Networks, key)
	return m.persistLocked()
}

// EnsureFromConfig merges config networks into networks.json:
// - first run: creates file
// - later runs: adds only missing networks
// - fills blank explorer/disperse/namedToken/rpcs without overwriting user values
func (m *Manager) EnsureFromConfig(ctx context.Context, defaults map[string]chains.NetworkConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedLocked(); err != nil {
		return err
	}

	changed := !securefile.Exists(m.path)

	for nameKey, dn := range defaults {
		if strings.TrimSpace(dn.Name) == "" {
			dn.Name = nameKey
		}
		dnNorm, err := normalizeNetworkConfig(dn)
		if err != nil {
			log.Warn("networks: skipping invalid configured network", "name", nameKey, "error", err)
			continue
		}

		// match by name first, then by chain id (avoid dup if renamed)
		key := dnNorm.Name
		existing, ok := m.store.Networks[key]
		if !ok {
			if k, found := m.findKeyByChainIDLocked(dnNorm.ChainID); found {
				key, existing, ok = k, m.store.Networks[k], true
			}
		}
		if !ok {
			m.store.Networks[dnNorm.Name] = dnNorm
			changed = true
			continue
		}

		updated, filled := fillBlanks(existing, dnNorm)
		if filled {
			m.store.Networks[key] = updated
			changed = true
		}
	}

	if changed {
		return m.persistLocked()
	}
	return nil
}

func (m *Manager) List(ctx context.Context) ([]chains.NetworkConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedLocked(); err != nil {
		return nil, err
	}

	out := make([]chains.NetworkConfig, 0, len(m.store.Networks))
	for _, n := range m.store.Networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Map returns the networks keyed by name, ready for the chain service.
func (m *Manager) Map(ctx context.Context) (map[string]chains.NetworkConfig, error) {
	list, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]chains.NetworkConfig, len(list))
	for _, n := range list {
		out[n.Name] = n
	}
	return out, nil
}

func (m *Manager) FindByChainID(ctx context.Context, chainID uint64) (chains.NetworkConfig, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedLocked(); err != nil {
		return chains.NetworkConfig{}, false, err
	}
	if chainID == 0 {
		return chains.NetworkConfig{}, false, fmt.Errorf("missing chainId")
	}
	key, ok := m.findKeyByChainIDLocked(chainID)
	if !ok {
		return chains.NetworkConfig{}, false, nil
	}
	return m.store.Networks[key], true, nil
}

func (m *Manager) ensureLoadedLocked() error {
	if m.store.Networks != nil {
		return nil
	}
	if !securefile.Exists(m.path) {
		m.store = NewEmptyStore()
		return nil
	}

	s, err := securefile.ReadJSON[Store](m.path)
	if err != nil {
		return fmt.Errorf("networks: load %s: %w", m.path, err)
	}

	norm := NewEmptyStore()
	if s.Schema != 0 {
		norm.Schema = s.Schema
	}
	for key, n := range s.Networks {
		if strings.TrimSpace(n.Name) == "" {
			n.Name = key
		}
		normalized, err := normalizeNetworkConfig(n)
		if err != nil {
			// skip invalid entries rather than bricking startup
			log.Warn("networks: skipping invalid stored network", "name", key, "error", err)
			continue
		}
		norm.Networks[normalized.Name] = normalized
	}
	m.store = norm
	return nil
}

func (m *Manager) persistLocked() error {
	return securefile.WriteJSON(m.path, m.store, constants.FilePerm, constants.DirectoryPerm)
}

func (m *Manager) findKeyByChainIDLocked(chainID uint64) (string, bool) {
	if chainID == 0 {
		return "", false
	}
	for k, n := range m.store.Networks {
		if n.ChainID == chainID {
			return k, true
		}
	}
	return "", false
}

func fillBlanks(existing, defaults chains.NetworkConfig) (chains.NetworkConfig, bool) {
	changed := false
	if existing.Explorer == "" && defaults.Explorer != "" {
		existing.Explorer = defaults.Explorer
		changed = true
	}
	if existing.Disperse == "" && defaults.Disperse != "" {
		existing.Disperse = defaults.Disperse
		changed = true
	}
	if existing.NamedToken == "" && defaults.NamedToken != "" {
		existing.NamedToken = defaults.NamedToken
		changed = true
	}
	if len(existing.RPCs) == 0 && len(defaults.RPCs) > 0 {
		existing.RPCs = defaults.RPCs
		changed = true
	}
	return existing, changed
}

func normalizeRPCs(in []chains.RPC) []chains.RPC {
	out := make([]chains.RPC, 0, len(in))
	seen := map[string]struct{}{} // by url
	for _, r := range in {
		if r.URL == "" {
			continue
		}
		key := strings.ToLower(r.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func normalizeNetworkConfig(n chains.NetworkConfig) (chains.NetworkConfig, error) {
	n = n.Normalized()
	n.RPCs = normalizeRPCs(n.RPCs)

	if n.Name == "" {
		return chains.NetworkConfig{}, fmt.Errorf("network.name is required")
	}
	if n.ChainID == 0 {
		return chains.NetworkConfig{}, fmt.Errorf("network.chainId is required")
	}
	if want := chains.ChainIDHex(n.ChainID); n.ChainIDHex != want {
		return chains.NetworkConfig{}, fmt.Errorf("network.chainIdHex %s does not match chainId %d", n.ChainIDHex, n.ChainID)
	}
	if n.Disperse != "" {
		if _, ok := n.DisperseAddress(); !ok {
			return chains.NetworkConfig{}, fmt.Errorf("network.disperse is not an address: %s", n.Disperse)
		}
	}
	return n, nil
}
