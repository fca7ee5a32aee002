package assets

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/constants"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/securefile"
)

// Registry persists custom tokens per network in tokens.json. It is a
// listing aid only; selecting a token always re-reads the chain.
type Registry struct {
	path string

	mu    sync.RWMutex
	store Store
}

// NewRegistry loads path if it exists.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("assets: registry path must not be empty")
	}
	r := &Registry{
		path:  path,
		store: Store{Schema: constants.SchemaV1, Networks: map[string]map[string]Token{}},
	}
	if securefile.Exists(path) {
		if err := r.load(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistryPath resolves tokens.json under the user config directory.
func DefaultRegistryPath() (string, error) {
	return securefile.ResolvePath(constants.AppName, constants.TokensFile)
}

func (r *Registry) Path() string { return r.path }

func (r *Registry) load() error {
	s, err := securefile.ReadJSON[Store](r.path)
	if err != nil {
		return fmt.Errorf("assets: load registry: %w", err)
	}

	normalized := Store{Schema: s.Schema, Networks: map[string]map[string]Token{}}
	if normalized.Schema == 0 {
		normalized.Schema = constants.SchemaV1
	}
	for netKey, byAddr := range s.Networks {
		nk := normalizeNetworkKey(netKey)
		if nk == "" {
			continue
		}
		for addrKey, tok := range byAddr {
			addr, err := normalizeAddress(addrKey)
			if err != nil {
				continue
			}
			if normalized.Networks[nk] == nil {
				normalized.Networks[nk] = map[string]Token{}
			}
			tok.Address = addr
			normalized.Networks[nk][addr] = tok
		}
	}

	r.mu.Lock()
	r.store = normalized
	r.mu.Unlock()
	return nil
}

// Remember implements Recorder. Native and unresolved descriptors are ignored.
func (r *Registry) Remember(network string, d Descriptor) error {
	if d.IsNative() || !d.Ready() || d.Contract == nil {
		return nil
	}
	nk := normalizeNetworkKey(network)
	if nk == "" {
		return fmt.Errorf("assets: network must not be empty")
	}

	tok := Token{Address: d.Contract.Hex(), Symbol: d.Symbol, Decimals: d.Decimals}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store.Networks[nk] == nil {
		r.store.Networks[nk] = map[string]Token{}
	}
	if existing, ok := r.store.Networks[nk][tok.Address]; ok && existing == tok {
		return nil
	}
	r.store.Networks[nk][tok.Address] = tok
	return r.persistLocked()
}

func (r *Registry) Remove(network, address string) error {
	nk := normalizeNetworkKey(network)
	addr, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byAddr := r.store.Networks[nk]
	if byAddr == nil {
		return nil
	}
	delete(byAddr, addr)
	if len(byAddr) == 0 {
		delete(r.store.Networks, nk)
	}
	return r.persistLocked()
}

// List returns the tokens remembered for network, ordered by symbol.
func (r *Registry) List(network string) []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byAddr := r.store.Networks[normalizeNetworkKey(network)]
	out := make([]Token, 0, len(byAddr))
	for _, t := range byAddr {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := strings.ToLower(out[i].Symbol), strings.ToLower(out[j].Symbol)
		if si != sj {
			return si < sj
		}
		return out[i].Address < out[j].Address
	})
	return out
}

func (r *Registry) persistLocked() error {
	if err := securefile.WriteJSON(r.path, r.store, constants.FilePerm, constants.DirectoryPerm); err != nil {
		return fmt.Errorf("assets: persist registry: %w", err)
	}
	return nil
}

func normalizeNetworkKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeAddress returns the checksummed form of addr.
func normalizeAddress(addr string) (string, error) {
	a := strings.TrimSpace(addr)
	if a == "" {
		return "", fmt.Errorf("empty address")
	}
	if !strings.HasPrefix(a, "0x") && !strings.HasPrefix(a, "0X") {
		a = "0x" + a
	}
	if !common.IsHexAddress(a) {
		return "", fmt.Errorf("invalid address: %q", addr)
	}
	return common.HexToAddress(a).Hex(), nil
}
