package session

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/allowance"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/assets"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/batch"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/disperse"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/metrics"
)

var (
	holder      = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	recipient   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	namedToken  = common.HexToAddress("0xa41F142b6eb2b164f8164CAE0716892Ce02f311f")
	customToken = common.HexToAddress("0x3333333333333333333333333333333333333333")
	disperseAt  = common.HexToAddress("0x59b990c626853DC951A38EFC1dF50abb4d48Ca75")
	txHash      = common.HexToHash("0x01")
)

func bsc() chains.NetworkConfig {
	return chains.NetworkConfig{
		Name:           "bsc",
		ChainID:        56,
		Explorer:       "https://bscscan.com",
		RPCs:           []chains.RPC{{Name: "public", URL: "https://bsc.example"}},
		NativeCurrency: chains.NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18},
		Disperse:       disperseAt.Hex(),
		NativeMethod:   "disperseBNB",
		NamedToken:     namedToken.Hex(),
	}
}

// fakeChain backs every port with in-memory token state.
type fakeChain struct {
	mu         sync.Mutex
	decimals   map[common.Address]uint8
	allowances map[common.Address]*big.Int
	reads      int
	natives    []*big.Int
	tokenSends []common.Address
	approveErr error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		decimals: map[common.Address]uint8{namedToken: 6},
		allowances: map[common.Address]*big.Int{
			namedToken: new(big.Int),
		},
	}
}

func (f *fakeChain) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(5_000_000_000_000_000), nil
}

func (f *fakeChain) HasCode(_ context.Context, token common.Address) (bool, error) {
	_, ok := f.decimals[token]
	return ok, nil
}

func (f *fakeChain) Symbol(_ context.Context, token common.Address) (string, error) {
	if _, ok := f.decimals[token]; !ok {
		return "", errors.New("execution reverted")
	}
	return "AVG", nil
}

func (f *fakeChain) Decimals(_ context.Context, token common.Address) (uint8, error) {
	d, ok := f.decimals[token]
	if !ok {
		return 0, errors.New("execution reverted")
	}
	return d, nil
}

func (f *fakeChain) BalanceOf(context.Context, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(100_000_000), nil
}

func (f *fakeChain) Allowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if owner != holder || spender != disperseAt {
		return nil, errors.New("unexpected owner or spender")
	}
	return new(big.Int).Set(f.allowances[token]), nil
}

func (f *fakeChain) Approve(_ context.Context, token, _ common.Address, amount *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return common.Hash{}, f.approveErr
	}
	f.allowances[token] = new(big.Int).Set(amount)
	return txHash, nil
}

func (f *fakeChain) DisperseNative(_ context.Context, _ string, _ []common.Address, _ []*big.Int, total *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.natives = append(f.natives, total)
	return txHash, nil
}

func (f *fakeChain) DisperseToken(_ context.Context, token common.Address, _ []common.Address, _ []*big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenSends = append(f.tokenSends, token)
	return txHash, nil
}

func (f *fakeChain) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

var (
	_ assets.Reader   = (*fakeChain)(nil)
	_ allowance.Chain = (*fakeChain)(nil)
	_ disperse.Chain  = (*fakeChain)(nil)
	_ Provider        = (*fakeProvider)(nil)
)

type fakeProvider struct {
	chain   *fakeChain
	chainID uint64
	known   map[uint64]bool
	added   []chains.NetworkConfig
	calls   []string
}

func (p *fakeProvider) Account(context.Context) (common.Address, error) { return holder, nil }

func (p *fakeProvider) ChainID(context.Context) (uint64, error) { return p.chainID, nil }

func (p *fakeProvider) SwitchChain(_ context.Context, id uint64) error {
	p.calls = append(p.calls, "switch")
	if !p.known[id] {
		return errors.Wrapf(chains.ErrUnknownChain, "chainId %d", id)
	}
	p.chainID = id
	return nil
}

func (p *fakeProvider) AddChain(_ context.Context, n chains.NetworkConfig) error {
	p.calls = append(p.calls, "add")
	p.added = append(p.added, n)
	p.known[n.ChainID] = true
	return nil
}

func (p *fakeProvider) Ports(context.Context, common.Address) (Ports, error) {
	return Ports{Reader: p.chain, Allowance: p.chain, Disperse: p.chain}, nil
}

func connect(t *testing.T, chain *fakeChain, opts Options) *Session {
	t.Helper()
	if opts.Target.Name == "" {
		opts.Target = bsc()
	}
	p := &fakeProvider{chain: chain, chainID: 56, known: map[uint64]bool{56: true}}
	s, err := Connect(context.Background(), p, opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestConnectLoadsNative(t *testing.T) {
	s := connect(t, newFakeChain(), Options{})
	v := s.Snapshot()
	if v.Account != holder.Hex() || v.ChainID != 56 || v.ChainMismatch {
		t.Fatalf("unexpected view: %+v", v)
	}
	if !v.Asset.IsNative() || !v.Asset.Ready() || v.Asset.Symbol != "BNB" {
		t.Fatalf("expected native BNB ready, got %+v", v.Asset)
	}
	if v.Asset.FormattedBalance != "0.005" {
		t.Fatalf("unexpected formatted balance %q", v.Asset.FormattedBalance)
	}
	if v.CanSend {
		t.Fatalf("empty batch must not be sendable")
	}
}

func TestConnectSwitchesAndAddsChain(t *testing.T) {
	p := &fakeProvider{chain: newFakeChain(), chainID: 1, known: map[uint64]bool{1: true}}
	accept := func(context.Context, string) (bool, error) { return true, nil }

	s, err := Connect(context.Background(), p, Options{Target: bsc(), ConfirmSwitch: accept})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	want := []string{"switch", "add", "switch"}
	if len(p.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, p.calls)
	}
	for i := range want {
		if p.calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, p.calls)
		}
	}
	if p.added[0].ChainID != 56 || p.added[0].NativeCurrency.Symbol != "BNB" || len(p.added[0].RPCs) != 1 {
		t.Fatalf("add-chain request incomplete: %+v", p.added[0])
	}
	if v := s.Snapshot(); v.ChainMismatch || v.ChainID != 56 {
		t.Fatalf("expected switched session, got %+v", v)
	}
}

func TestConnectDeclinedSwitch(t *testing.T) {
	chain := newFakeChain()
	p := &fakeProvider{chain: chain, chainID: 1, known: map[uint64]bool{1: true, 56: true}}

	s, err := Connect(context.Background(), p, Options{Target: bsc()})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	if len(p.calls) != 0 {
		t.Fatalf("declined switch must not touch the wallet, got %v", p.calls)
	}
	if !s.Snapshot().ChainMismatch {
		t.Fatalf("expected chain mismatch flag")
	}
	if _, err := s.SetRecipients(recipient.Hex() + " 1"); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	if _, err := s.Send(context.Background()); !errors.Is(err, ErrChainMismatch) {
		t.Fatalf("expected ErrChainMismatch, got %v", err)
	}
	if _, err := s.Approve(context.Background()); !errors.Is(err, ErrChainMismatch) {
		t.Fatalf("expected ErrChainMismatch, got %v", err)
	}
	if len(chain.natives) != 0 {
		t.Fatalf("nothing must be sent on the wrong chain")
	}
}

func TestConnectRequiresDisperseContract(t *testing.T) {
	n := bsc()
	n.Disperse = ""
	p := &fakeProvider{chain: newFakeChain(), chainID: 56, known: map[uint64]bool{56: true}}
	if _, err := Connect(context.Background(), p, Options{Target: n}); err == nil {
		t.Fatalf("expected error without disperse contract")
	}
}

func TestSendNativeOneCoin(t *testing.T) {
	chain := newFakeChain()
	m := metrics.New()
	s := connect(t, chain, Options{Metrics: m})

	b, err := s.SetRecipients(recipient.Hex() + ",1")
	if err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("expected one recipient, got %d", b.Len())
	}
	if !s.Snapshot().CanSend {
		t.Fatalf("native batch must be sendable without allowance")
	}

	out, err := s.Send(context.Background())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !out.Succeeded() || out.ExplorerURL != "https://bscscan.com/tx/"+txHash.Hex() {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	oneCoin, _ := new(big.Int).SetString("1000000000000000000", 10)
	if len(chain.natives) != 1 || chain.natives[0].Cmp(oneCoin) != 0 {
		t.Fatalf("expected value of one coin, got %v", chain.natives)
	}
}

func TestSendEmptyBatch(t *testing.T) {
	s := connect(t, newFakeChain(), Options{})
	if _, err := s.SetRecipients("not an address 1\n\n"); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	if _, err := s.Send(context.Background()); !errors.Is(err, disperse.ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestTokenApproveThenSend(t *testing.T) {
	chain := newFakeChain()
	s := connect(t, chain, Options{ApprovalMode: allowance.ModeExact})

	if _, err := s.SetRecipients(recipient.Hex() + " 1.5"); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	desc, err := s.SelectAsset(context.Background(), assets.KindNamed, "")
	if err != nil {
		t.Fatalf("SelectAsset: %v", err)
	}
	if desc.Decimals != 6 {
		t.Fatalf("expected 6 decimals, got %d", desc.Decimals)
	}

	v := s.Snapshot()
	if v.Batch.Total != "1500000" || v.Batch.Decimals != 6 {
		t.Fatalf("batch must be re-parsed with token decimals, got %+v", v.Batch)
	}
	if v.Allowance.State != allowance.StateInsufficient || v.CanSend {
		t.Fatalf("expected insufficient allowance, got %+v", v.Allowance)
	}

	if _, err := s.Send(context.Background()); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}

	out, err := s.Approve(context.Background())
	if err != nil || !out.Succeeded() {
		t.Fatalf("Approve: out=%+v err=%v", out, err)
	}
	if got := chain.allowances[namedToken]; got.Int64() != 1_500_000 {
		t.Fatalf("exact mode must approve the total, got %s", got)
	}
	if st := s.Snapshot().Allowance.State; st != allowance.StateSufficient {
		t.Fatalf("expected sufficient after approve, got %s", st)
	}

	readsBefore := chain.readCount()
	out, err = s.Send(context.Background())
	if err != nil || !out.Succeeded() {
		t.Fatalf("Send: out=%+v err=%v", out, err)
	}
	if len(chain.tokenSends) != 1 || chain.tokenSends[0] != namedToken {
		t.Fatalf("expected one token disperse, got %v", chain.tokenSends)
	}
	if chain.readCount() != readsBefore+1 {
		t.Fatalf("expected an allowance re-read after disperse")
	}
}

func TestRaisingTotalRecomputesWithoutRead(t *testing.T) {
	chain := newFakeChain()
	chain.allowances[namedToken] = big.NewInt(2_000_000)
	s := connect(t, chain, Options{})

	if _, err := s.SetRecipients(recipient.Hex() + " 1"); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	if _, err := s.SelectAsset(context.Background(), assets.KindNamed, ""); err != nil {
		t.Fatalf("SelectAsset: %v", err)
	}
	if st := s.Snapshot().Allowance.State; st != allowance.StateSufficient {
		t.Fatalf("expected sufficient, got %s", st)
	}

	reads := chain.readCount()
	if _, err := s.SetRecipients(recipient.Hex() + " 3"); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	if st := s.Snapshot().Allowance.State; st != allowance.StateInsufficient {
		t.Fatalf("expected insufficient after raising total, got %s", st)
	}
	if _, err := s.SetRecipients(recipient.Hex() + " 2"); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	if st := s.Snapshot().Allowance.State; st != allowance.StateSufficient {
		t.Fatalf("expected sufficient at equal total, got %s", st)
	}
	if chain.readCount() != reads {
		t.Fatalf("total edits must not read the chain")
	}
}

func TestInvalidCustomAsset(t *testing.T) {
	s := connect(t, newFakeChain(), Options{})
	if _, err := s.SetRecipients(recipient.Hex() + " 1"); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}

	desc, err := s.SelectAsset(context.Background(), assets.KindCustom, customToken.Hex())
	if !errors.Is(err, assets.ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset, got %v", err)
	}
	if desc.Status != assets.StatusFailed {
		t.Fatalf("expected failed descriptor, got %s", desc.Status)
	}
	v := s.Snapshot()
	if v.CanSend || v.Allowance.State != allowance.StateUnknown {
		t.Fatalf("failed asset must block sending, got %+v", v)
	}
	if _, err := s.Send(context.Background()); !errors.Is(err, disperse.ErrAssetNotReady) {
		t.Fatalf("expected ErrAssetNotReady, got %v", err)
	}
}

func TestApproveFailureRollsBack(t *testing.T) {
	chain := newFakeChain()
	chain.approveErr = errors.New("dial tcp: connection refused")
	s := connect(t, chain, Options{})

	if _, err := s.SetRecipients(recipient.Hex() + " 1"); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	if _, err := s.SelectAsset(context.Background(), assets.KindNamed, ""); err != nil {
		t.Fatalf("SelectAsset: %v", err)
	}

	out, err := s.Approve(context.Background())
	if err != nil {
		t.Fatalf("tx failure must come back in the outcome: %v", err)
	}
	if out.Succeeded() || out.Failure.Kind != "network_failure" {
		t.Fatalf("expected network failure, got %+v", out)
	}
	if st := s.Snapshot().Allowance.State; st != allowance.StateInsufficient {
		t.Fatalf("expected rollback to insufficient, got %s", st)
	}
}

func TestParserIsUsed(t *testing.T) {
	cache, err := batch.NewCache(8)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	s := connect(t, newFakeChain(), Options{Parser: cache})
	if _, err := s.SetRecipients(recipient.Hex() + " 1"); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	if cache.Len() == 0 {
		t.Fatalf("expected the session to parse through the cache")
	}
}

func TestClosedSession(t *testing.T) {
	p := &fakeProvider{chain: newFakeChain(), chainID: 56, known: map[uint64]bool{56: true}}
	s, err := Connect(context.Background(), p, Options{Target: bsc()})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s.Close()
	s.Close()

	if _, err := s.SetRecipients("x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := s.Send(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := s.SelectAsset(context.Background(), assets.KindNative, ""); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSendKeepsBatchAndAssetTogether(t *testing.T) {
	chain := newFakeChain()
	var (
		s     *Session
		armed bool
	)
	parser := ParserFunc(func(text string, decimals uint8) batch.ParsedBatch {
		if armed {
			// a token selection lands while the batch is being scaled
			armed = false
			if _, err := s.assets.Resolve(context.Background(), assets.KindNamed, ""); err != nil {
				t.Errorf("Resolve named: %v", err)
			}
		}
		return batch.Parse(text, decimals)
	})
	s = connect(t, chain, Options{Parser: parser})

	if _, err := s.SetRecipients(recipient.Hex() + " 1"); err != nil {
		t.Fatalf("SetRecipients: %v", err)
	}
	armed = true
	out, err := s.Send(context.Background())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !out.Succeeded() {
		t.Fatalf("expected success, got %+v", out.Failure)
	}
	if len(chain.tokenSends) != 0 {
		t.Fatalf("batch scaled for the native coin must not be sent as a token")
	}
	want := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	if len(chain.natives) != 1 || chain.natives[0].Cmp(want) != 0 {
		t.Fatalf("expected one native send of %s, got %v", want, chain.natives)
	}
}
