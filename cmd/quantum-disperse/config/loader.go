package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	utilsconfig "github.com/quantumauth-io/quantum-go-utils/config"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/chains"
)

//go:embed config.yaml
var EmbeddedConfigYAML []byte

type ClientSettings struct {
	LocalHost      string
	Port           string
	AllowedOrigins []string
	// ConfirmMode is "prompt" (ask on the terminal before signing) or "auto".
	ConfirmMode          string
	TxTimeoutSeconds     int
	HeaderRefreshSeconds int
	WalletFile           string
}

type DisperseSettings struct {
	// ApprovalMode is "unlimited" or "exact".
	ApprovalMode string
	// AutoSwitchChain accepts the chain switch prompt on connect.
	AutoSwitchChain bool
	ParseCacheSize  int
}

type Config struct {
	ClientSettings *ClientSettings
	Disperse       *DisperseSettings
	Networks       *chains.AllChainsConfig
}

func Load() (*Config, error) {
	home, _ := os.UserHomeDir()
	paths := []string{
		filepath.Join(home, ".config", "quantum-disperse"),
		filepath.Join(home, "config"),
		".",
	}

	return utilsconfig.ParseConfigWithEmbedded[Config](paths, EmbeddedConfigYAML)
}

// ApplyEnv overrides file settings from DISPERSE_* variables.
func (c *Config) ApplyEnv() {
	if c.ClientSettings == nil {
		c.ClientSettings = &ClientSettings{}
	}
	if c.Networks == nil {
		c.Networks = &chains.AllChainsConfig{}
	}
	if v := strings.TrimSpace(os.Getenv("DISPERSE_WALLET_FILE")); v != "" {
		c.ClientSettings.WalletFile = v
	}
	if v := strings.TrimSpace(os.Getenv("DISPERSE_NETWORK")); v != "" {
		c.Networks.ActiveNetwork = v
	}
}

// Validate fills defaults and rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if c.ClientSettings == nil {
		c.ClientSettings = &ClientSettings{}
	}
	if c.Disperse == nil {
		c.Disperse = &DisperseSettings{}
	}
	if c.Networks == nil || len(c.Networks.Networks) == 0 {
		return fmt.Errorf("config: no networks configured")
	}

	cs := c.ClientSettings
	if cs.LocalHost == "" {
		cs.LocalHost = "127.0.0.1"
	}
	if cs.Port == "" {
		cs.Port = "6138"
	}
	switch strings.ToLower(strings.TrimSpace(cs.ConfirmMode)) {
	case "", "prompt":
		cs.ConfirmMode = "prompt"
	case "auto":
		cs.ConfirmMode = "auto"
	default:
		return fmt.Errorf("config: invalid ConfirmMode %q (allowed: prompt, auto)", cs.ConfirmMode)
	}
	if cs.TxTimeoutSeconds <= 0 {
		cs.TxTimeoutSeconds = 180
	}

	switch strings.ToLower(strings.TrimSpace(c.Disperse.ApprovalMode)) {
	case "", "unlimited":
		c.Disperse.ApprovalMode = "unlimited"
	case "exact":
		c.Disperse.ApprovalMode = "exact"
	default:
		return fmt.Errorf("config: invalid ApprovalMode %q (allowed: unlimited, exact)", c.Disperse.ApprovalMode)
	}
	if c.Disperse.ParseCacheSize <= 0 {
		c.Disperse.ParseCacheSize = 256
	}

	c.Networks.Normalize()
	if _, ok := c.Networks.Networks[c.Networks.ActiveNetwork]; !ok {
		return fmt.Errorf("config: active network %q not found", c.Networks.ActiveNetwork)
	}
	return nil
}
