package networks

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
)

const probeTimeout = 7 * time.Second

// ProbeRPC asks an endpoint for its chain id, client version and head. Only
// the chain id is required.
func ProbeRPC(ctx context.Context, rpcURL string) (ProbeResult, error) {
	out := ProbeResult{RPCURL: strings.TrimSpace(rpcURL)}
	if out.RPCURL == "" {
		return out, fmt.Errorf("missing rpcUrl")
	}

	u, err := url.Parse(out.RPCURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return out, fmt.Errorf("invalid rpcUrl")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return out, fmt.Errorf("unsupported rpcUrl scheme: %s", u.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	rc, err := rpc.DialContext(ctx, out.RPCURL)
	if err != nil {
		return out, fmt.Errorf("dial %s: %w", out.RPCURL, err)
	}
	defer rc.Close()
	ec := ethclient.NewClient(rc)

	id, err := ec.ChainID(ctx)
	if err != nil {
		return out, fmt.Errorf("eth_chainId: %w", err)
	}
	out.ChainID = id.Uint64()
	out.ChainIDHex = chains.ChainIDHex(out.ChainID)

	var cv string
	if err := rc.CallContext(ctx, &cv, "web3_clientVersion"); err == nil {
		out.ClientVersion = strings.TrimSpace(cv)
	}
	if head, err := ec.BlockNumber(ctx); err == nil {
		out.LatestBlock = head
	}
	return out, nil
}

// VerifyRPC checks that every RPC of n reports n's chain id.
func VerifyRPC(ctx context.Context, n chains.NetworkConfig) error {
	if len(n.RPCs) == 0 {
		return fmt.Errorf("network %q has no RPCs configured", n.Name)
	}
	for _, r := range n.RPCs {
		res, err := ProbeRPC(ctx, r.URL)
		if err != nil {
			return err
		}
		if res.ChainID != n.ChainID {
			return fmt.Errorf("rpc %s reports chainId %d, expected %d", r.URL, res.ChainID, n.ChainID)
		}
	}
	return nil
}
