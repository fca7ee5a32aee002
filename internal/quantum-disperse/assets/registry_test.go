package assets

import (
	"math/big"
	"path/filepath"
	"testing"
)

func TestRegistryRememberAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")

	r, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	a, b := tokenA, tokenB
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Remember: %v", err)
		}
	}
	must(r.Remember("BSC", Descriptor{Kind: KindCustom, Contract: &b, Symbol: "zed", Decimals: 18, Status: StatusReady}))
	must(r.Remember("bsc", Descriptor{Kind: KindCustom, Contract: &a, Symbol: "Alpha", Decimals: 6, Status: StatusReady}))
	must(r.Remember("bsc", Descriptor{Kind: KindNative, Symbol: "BNB", Decimals: 18, HolderBalance: big.NewInt(1), Status: StatusReady}))
	must(r.Remember("bsc", Descriptor{Kind: KindCustom, Contract: &a, Status: StatusFailed}))

	reloaded, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := reloaded.List(" bsc ")
	if len(got) != 2 {
		t.Fatalf("expected 2 tokens, got %d: %+v", len(got), got)
	}
	if got[0].Symbol != "Alpha" || got[1].Symbol != "zed" {
		t.Fatalf("expected tokens ordered by symbol, got %+v", got)
	}
	if got[0].Address != tokenA.Hex() {
		t.Fatalf("expected checksummed address %s, got %s", tokenA.Hex(), got[0].Address)
	}
}

func TestRegistryRemove(t *testing.T) {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "tokens.json"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	a := tokenA
	if err := r.Remember("eth", Descriptor{Kind: KindCustom, Contract: &a, Symbol: "AAA", Status: StatusReady}); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if err := r.Remove("eth", "1111111111111111111111111111111111111111"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if n := len(r.List("eth")); n != 0 {
		t.Fatalf("expected empty list, got %d", n)
	}
	if err := r.Remove("eth", "nope"); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}
