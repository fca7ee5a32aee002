package networks

import (
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/constants"
)

type Store struct {
	Schema   int                             `json:"schema"`
	Networks map[string]chains.NetworkConfig `json:"networks"` // key = normalized name
}

// ProbeResult is what an RPC endpoint reports about itself.
type ProbeResult struct {
	RPCURL        string `json:"rpcUrl"`
	ChainID       uint64 `json:"chainId"`
	ChainIDHex    string `json:"chainIdHex"`
	ClientVersion string `json:"clientVersion,omitempty"`
	LatestBlock   uint64 `json:"latestBlock,omitempty"`
}

func NewEmptyStore() Store {
	return Store{
		Schema:   constants.SchemaV1,
		Networks: map[string]chains.NetworkConfig{},
	}
}
