// setup.go
package quantum_disperse

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-go-utils/qa_evm"

	"github.com/quantumauth-io/quantum-disperse/cmd/quantum-disperse/config"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/allowance"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/assets"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/batch"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/ethwallet/userwallet"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/ethwallet/wtypes"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/helpers"
	disperseHttp "github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/http"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/metrics"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/networks"
	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/session"
)

type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// evmHTTPClient is the minimal surface we need from the HTTP client.
type evmHTTPClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
}

func Run(ctx context.Context, build BuildInfo) error {
	log.Info("quantum-disperse",
		"version", build.Version,
		"commit", build.Commit,
		"build_date", build.BuildDate,
	)

	// ---- Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ---- Wallet
	wallet, err := openWallet(cfg)
	if err != nil {
		return err
	}
	log.Info("wallet ready", "address", wallet.Address().Hex())

	// ---- Networks Manager
	networksManager, err := networks.NewManager("")
	if err != nil {
		return err
	}
	if err := networksManager.EnsureFromConfig(ctx, helpers.NetworksMapFromConfig(cfg)); err != nil {
		return err
	}
	known, err := networksManager.Map(ctx)
	if err != nil {
		return err
	}

	// ---- Chain service (dial once and reuse)
	chainService, err := chains.NewChainService(ctx, chains.ChainConfig{
		Chains: &chains.AllChainsConfig{
			Networks:      known,
			ActiveNetwork: cfg.Networks.ActiveNetwork,
			ActiveRPC:     cfg.Networks.ActiveRPC,
		},
		DefaultActiveNetwork: cfg.Networks.ActiveNetwork,
		PreferredRPCName:     cfg.Networks.ActiveRPC,
		HeaderRefresh:        time.Duration(cfg.ClientSettings.HeaderRefreshSeconds) * time.Second,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := chainService.Close(); closeErr != nil {
			log.Error("chain service close failed", "error", closeErr)
		}
	}()

	target, err := chainService.ActiveNetwork()
	if err != nil {
		return err
	}

	// ---- Validate disperse contract (once)
	if err := verifyDisperseDeployed(ctx, chainService, target); err != nil {
		return err
	}

	// ---- Token registry
	registryPath, err := assets.DefaultRegistryPath()
	if err != nil {
		return err
	}
	registry, err := assets.NewRegistry(registryPath)
	if err != nil {
		return err
	}

	parseCache, err := batch.NewCache(cfg.Disperse.ParseCacheSize)
	if err != nil {
		return err
	}
	m := metrics.New()

	// ---- Wallet provider
	prompter := helpers.StdPrompter()
	confirm := chains.ConfirmFunc(prompter.ConfirmTransaction)
	if cfg.ClientSettings.ConfirmMode == "auto" {
		confirm = chains.AutoConfirm
	}
	confirmSwitch := session.SwitchPrompt(prompter.Confirm)
	if cfg.Disperse.AutoSwitchChain {
		confirmSwitch = func(context.Context, string) (bool, error) { return true, nil }
	}
	provider := session.NewLocalProvider(
		chainService,
		networksManager,
		wallet,
		confirm,
		time.Duration(cfg.ClientSettings.TxTimeoutSeconds)*time.Second,
	)

	opts := session.Options{
		Target:        target,
		ApprovalMode:  allowance.Mode(cfg.Disperse.ApprovalMode),
		ConfirmSwitch: confirmSwitch,
		Recorder:      registry,
		Parser:        parseCache,
		Metrics:       m,
	}

	// ---- HTTP server
	handler := disperseHttp.NewHandler(disperseHttp.Deps{
		Connect: func(ctx context.Context) (*session.Session, error) {
			return session.Connect(ctx, provider, opts)
		},
		Parser:    parseCache,
		Tokens:    registry,
		Networks:  networksManager,
		Metrics:   m,
		Network:   target.Name,
		HeaderAge: func() time.Duration { return activeHeaderAge(chainService) },
	})
	defer handler.Sessions().CloseAll()

	listenAddr := net.JoinHostPort(cfg.ClientSettings.LocalHost, cfg.ClientSettings.Port)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           disperseHttp.NewRouter(handler, cfg.ClientSettings.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", serveErr)
		}
	}()
	log.Info("disperse client listening", "addr", listenAddr, "network", target.Name, "chainId", target.ChainID)

	// ---- graceful shutdown
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("disperse client shutdown failed", "error", shutdownErr)
	} else {
		log.Info("disperse client gracefully stopped")
	}

	return nil
}

// openWallet prefers DISPERSE_PRIVATE_KEY, then the encrypted wallet file
// unlocked with DISPERSE_WALLET_PASSWORD or a terminal prompt.
func openWallet(cfg *config.Config) (wtypes.Wallet, error) {
	if key := strings.TrimSpace(os.Getenv("DISPERSE_PRIVATE_KEY")); key != "" {
		log.Warn("using private key from environment")
		w, err := userwallet.FromPrivateKeyHex(key)
		if err != nil {
			return nil, err
		}
		return w, nil
	}

	store, err := userwallet.NewStore(cfg.ClientSettings.WalletFile)
	if err != nil {
		return nil, err
	}

	var password []byte
	if pw := os.Getenv("DISPERSE_WALLET_PASSWORD"); pw != "" {
		password = []byte(pw)
	} else {
		if !helpers.IsTerminal() {
			return nil, fmt.Errorf("wallet %s is locked: set DISPERSE_WALLET_PASSWORD", store.Path)
		}
		password, err = helpers.PromptPassword("Wallet password: ")
		if err != nil {
			return nil, err
		}
	}
	defer helpers.ZeroBytes(password)

	w, err := store.Open(password)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func verifyDisperseDeployed(ctx context.Context, chainService *chains.ChainService, target chains.NetworkConfig) error {
	disperse, ok := target.DisperseAddress()
	if !ok {
		return fmt.Errorf("missing disperse contract for network %q", target.Name)
	}

	chainClients, err := chainService.Active()
	if err != nil {
		return err
	}
	httpEVMClient, err := asEVMHTTPClient(chainClients.HTTP)
	if err != nil {
		return err
	}

	chainID, err := httpEVMClient.ChainID(ctx)
	if err != nil {
		return err
	}
	if chainID.Uint64() != target.ChainID {
		return fmt.Errorf("rpc for %q reports chain %d, expected %d", target.Name, chainID.Uint64(), target.ChainID)
	}

	code, err := httpEVMClient.CodeAt(ctx, disperse, nil) // latest
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return fmt.Errorf("disperse contract not deployed on this chain: %s", disperse.Hex())
	}
	return nil
}

func activeHeaderAge(chainService *chains.ChainService) time.Duration {
	clients, err := chainService.Active()
	if err != nil {
		return 0
	}
	if cached, ok := clients.HTTP.(*chains.BlockchainClientWithCache); ok {
		return cached.HeaderAge()
	}
	return 0
}

func asEVMHTTPClient(client qa_evm.BlockchainClient) (evmHTTPClient, error) {
	httpClient, ok := client.(evmHTTPClient)
	if !ok {
		return nil, fmt.Errorf("http client does not support ChainID/CodeAt (got %T)", client)
	}
	return httpClient, nil
}
