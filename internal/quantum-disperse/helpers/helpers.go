package helpers

import (
	"fmt"
	"strconv"
	"strings"

	utilsEth "github.com/quantumauth-io/quantum-go-utils/ethrpc"

	"github.com/quantumauth-io/quantum-disperse/cmd/quantum-disperse/config"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
)

func NetworksMapFromConfig(cfg *config.Config) map[string]chains.NetworkConfig {
	if cfg == nil || cfg.Networks == nil || cfg.Networks.Networks == nil {
		return nil
	}

	out := make(map[string]chains.NetworkConfig, len(cfg.Networks.Networks))
	for name, n := range cfg.Networks.Networks {
		if strings.TrimSpace(n.Name) == "" {
			n.Name = name
		}
		n = n.Normalized()
		out[n.Name] = n
	}
	return out
}

// ParseChainID accepts a decimal id or a 0x-prefixed hex quantity.
func ParseChainID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing chain id")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		hex := strings.ToLower(utilsEth.NormalizeHex0x(s))
		v, err := strconv.ParseUint(strings.TrimPrefix(hex, "0x"), 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
	}
	return v, nil
}

func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
