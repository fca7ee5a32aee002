package networks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
)

func bscDefaults() map[string]chains.NetworkConfig {
	return map[string]chains.NetworkConfig{
		"bsc": {
			ChainID:      56,
			Explorer:     "https://bscscan.com",
			RPCs:         []chains.RPC{{Name: "public", URL: "https://bsc-dataseed.binance.org"}},
			Disperse:     "0x59b990c626853DC951A38EFC1dF50abb4d48Ca75",
			NativeMethod: "disperseBNB",
			NativeCurrency: chains.NativeCurrency{
				Name: "BNB", Symbol: "BNB", Decimals: 18,
			},
		},
	}
}

func TestEnsureFromConfig(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "networks.json")

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.EnsureFromConfig(ctx, bscDefaults()); err != nil {
		t.Fatalf("EnsureFromConfig: %v", err)
	}

	// user edits survive a later merge; blanks are filled
	reloaded, _ := NewManager(path)
	n, ok, err := reloaded.FindByChainID(ctx, 56)
	if err != nil || !ok {
		t.Fatalf("FindByChainID: ok=%v err=%v", ok, err)
	}
	if n.ChainIDHex != "0x38" || n.NativeMethod != "disperseBNB" {
		t.Fatalf("unexpected stored network: %+v", n)
	}

	defaults := bscDefaults()
	bsc := defaults["bsc"]
	bsc.Explorer = "https://other.example"
	bsc.NamedToken = "0xa41F142b6eb2b164f8164CAE0716892Ce02f311f"
	defaults["bsc"] = bsc
	if err := reloaded.EnsureFromConfig(ctx, defaults); err != nil {
		t.Fatalf("EnsureFromConfig: %v", err)
	}
	n, _, _ = reloaded.FindByChainID(ctx, 56)
	if n.Explorer != "https://bscscan.com" {
		t.Fatalf("expected stored explorer to be kept, got %q", n.Explorer)
	}
	if n.NamedToken == "" {
		t.Fatalf("expected blank named token to be filled")
	}
}

func TestAddNetwork(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(filepath.Join(t.TempDir(), "networks.json"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.EnsureFromConfig(ctx, bscDefaults()); err != nil {
		t.Fatalf("EnsureFromConfig: %v", err)
	}

	tests := []struct {
		name    string
		in      chains.NetworkConfig
		wantErr error
	}{
		{"duplicate name", chains.NetworkConfig{Name: "BSC", ChainID: 97}, ErrNetworkExists},
		{"duplicate chain", chains.NetworkConfig{Name: "binance", ChainID: 56}, ErrNetworkExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.AddNetwork(ctx, tt.in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := m.AddNetwork(ctx, chains.NetworkConfig{Name: "bad", ChainID: 5, ChainIDHex: "0x6"}); err == nil {
		t.Fatalf("expected mismatched chainIdHex to fail")
	}

	added, err := m.AddNetwork(ctx, chains.NetworkConfig{
		Name:    "Sepolia",
		ChainID: 11155111,
		RPCs:    []chains.RPC{{URL: "https://a.example"}, {URL: "https://A.example"}},
	})
	if err != nil {
		t.Fatalf("AddNetwork: %v", err)
	}
	if added.Name != "sepolia" || len(added.RPCs) != 1 {
		t.Fatalf("expected normalized network, got %+v", added)
	}

	list, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "bsc" || list[1].Name != "sepolia" {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := m.RemoveNetworkByChainID(ctx, 11155111); err != nil {
		t.Fatalf("RemoveNetworkByChainID: %v", err)
	}
	if _, ok, _ := m.FindByChainID(ctx, 11155111); ok {
		t.Fatalf("expected network to be removed")
	}
}

func fakeRPC(t *testing.T, chainIDHex string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var result any
		switch req.Method {
		case "eth_chainId":
			result = chainIDHex
		case "eth_blockNumber":
			result = "0x10"
		case "web3_clientVersion":
			result = "Geth/v1.16.3"
		default:
			result = nil
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbeRPC(t *testing.T) {
	srv := fakeRPC(t, "0x38")

	res, err := ProbeRPC(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ProbeRPC: %v", err)
	}
	if res.ChainID != 56 || res.ChainIDHex != "0x38" {
		t.Fatalf("unexpected chain: %+v", res)
	}
	if res.LatestBlock != 16 || res.ClientVersion != "Geth/v1.16.3" {
		t.Fatalf("unexpected metadata: %+v", res)
	}

	if _, err := ProbeRPC(context.Background(), "ftp://example.com"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}

	n := chains.NetworkConfig{Name: "bsc", ChainID: 97, RPCs: []chains.RPC{{URL: srv.URL}}}
	if err := VerifyRPC(context.Background(), n); err == nil {
		t.Fatalf("expected chain id mismatch")
	}
	n.ChainID = 56
	if err := VerifyRPC(context.Background(), n); err != nil {
		t.Fatalf("VerifyRPC: %v", err)
	}
}
