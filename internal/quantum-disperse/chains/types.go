package chains

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/constants"
)

type AllChainsConfig struct {
	Networks      map[string]NetworkConfig `json:"networks" yaml:"networks"`
	ActiveNetwork string                   `json:"activeNetwork" yaml:"activeNetwork" mapstructure:"activeNetwork"`
	ActiveRPC     string                   `json:"activeRPC" yaml:"activeRPC" mapstructure:"activeRPC"`
}

// NetworkConfig describes a network, its RPC endpoints and the disperse
// deployment on it.
type NetworkConfig struct {
	Name           string         `json:"name" yaml:"name"`
	ChainID        uint64         `json:"chainId" yaml:"chainId" mapstructure:"chainId"`
	ChainIDHex     string         `json:"chainIdHex" yaml:"chainIdHex" mapstructure:"chainIdHex"`
	Explorer       string         `json:"explorer" yaml:"explorer"`
	RPCs           []RPC          `json:"rpcs" yaml:"rpcs"`
	NativeCurrency NativeCurrency `json:"nativeCurrency" yaml:"nativeCurrency" mapstructure:"nativeCurrency"`

	Disperse     string `json:"disperse" yaml:"disperse"`
	NativeMethod string `json:"nativeMethod,omitempty" yaml:"nativeMethod" mapstructure:"nativeMethod"`
	NamedToken   string `json:"namedToken,omitempty" yaml:"namedToken" mapstructure:"namedToken"`
}

type RPC struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
	WSS  string `json:"wss,omitempty" yaml:"wss"`
}

type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

func (mc *AllChainsConfig) Normalize() {
	if mc == nil {
		return
	}
	out := make(map[string]NetworkConfig, len(mc.Networks))
	for name, n := range mc.Networks {
		if strings.TrimSpace(n.Name) == "" {
			n.Name = name
		}
		n = n.Normalized()
		out[n.Name] = n
	}
	mc.Networks = out
	mc.ActiveNetwork = strings.ToLower(strings.TrimSpace(mc.ActiveNetwork))
}

// Normalized lowercases the name, fills the hex chain id and the native
// defaults.
func (n NetworkConfig) Normalized() NetworkConfig {
	n.Name = strings.ToLower(strings.TrimSpace(n.Name))
	n.Explorer = strings.TrimRight(strings.TrimSpace(n.Explorer), "/")
	n.ChainIDHex = strings.ToLower(strings.TrimSpace(n.ChainIDHex))
	if n.ChainIDHex == "" && n.ChainID != 0 {
		n.ChainIDHex = ChainIDHex(n.ChainID)
	}
	if strings.TrimSpace(n.NativeMethod) == "" {
		n.NativeMethod = constants.DefaultNativeMethod
	}
	if n.NativeCurrency.Decimals == 0 {
		n.NativeCurrency.Decimals = constants.NativeDecimals
	}
	if strings.TrimSpace(n.NativeCurrency.Symbol) == "" {
		n.NativeCurrency.Symbol = "ETH"
	}
	rpcs := make([]RPC, 0, len(n.RPCs))
	for _, r := range n.RPCs {
		rpcs = append(rpcs, RPC{
			Name: strings.TrimSpace(r.Name),
			URL:  strings.TrimSpace(r.URL),
			WSS:  strings.TrimSpace(r.WSS),
		})
	}
	n.RPCs = rpcs
	return n
}

func (n NetworkConfig) DisperseAddress() (common.Address, bool) {
	if !common.IsHexAddress(n.Disperse) {
		return common.Address{}, false
	}
	return common.HexToAddress(n.Disperse), true
}

func (n NetworkConfig) NamedTokenAddress() *common.Address {
	if !common.IsHexAddress(n.NamedToken) {
		return nil
	}
	a := common.HexToAddress(n.NamedToken)
	return &a
}

func ChainIDHex(id uint64) string {
	return "0x" + strconv.FormatUint(id, 16)
}
