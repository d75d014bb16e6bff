// Package config loads the xswap configuration: which chains are reachable and
// through which node, where secrets are stored, and the swap timing policy.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/klingon-exchange/xswap/internal/backend"
	"github.com/klingon-exchange/xswap/internal/chain"
	"github.com/klingon-exchange/xswap/internal/storage"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Key sources
const (
	KeySourceRandom = "random"
	KeySourceHD     = "hd"
)

// Config is the top-level configuration.
type Config struct {
	// Chains lists the ledgers swaps can lock funds on.
	Chains []ChainConfig `yaml:"chains"`

	Storage StorageConfig `yaml:"storage"`
	Keys    KeysConfig    `yaml:"keys"`
	Swap    SwapConfig    `yaml:"swap"`
	Logging LoggingConfig `yaml:"logging"`
}

// ChainConfig binds one chain to the wallet node serving it.
type ChainConfig struct {
	Symbol  string   `yaml:"symbol"`
	Network string   `yaml:"network"`
	Aliases []string `yaml:"aliases,omitempty"`

	// Production overrides whether fee estimation failures are fatal.
	// Unset means mainnet only.
	Production *bool `yaml:"production,omitempty"`

	RPC backend.Config `yaml:"rpc"`
}

// StorageConfig selects the secret store.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	Driver  string `yaml:"driver"` // sqlite or bolt
}

// KeysConfig selects where contract keys come from.
type KeysConfig struct {
	Source       string `yaml:"source"` // random or hd
	MnemonicFile string `yaml:"mnemonic_file,omitempty"`
	Account      uint32 `yaml:"account,omitempty"`
}

// SwapConfig holds the swap timing and fee policy.
type SwapConfig struct {
	InitiatorWindow    time.Duration `yaml:"initiator_window"`
	TakerWindow        time.Duration `yaml:"taker_window"`
	FeeTargetBlocks    int           `yaml:"fee_target_blocks"`
	FallbackFeeRate    int64         `yaml:"fallback_fee_rate"` // sat/vB
	PollInterval       time.Duration `yaml:"poll_interval"`
	HistoryPageSize    int           `yaml:"history_page_size"`
	StaleConfirmations int64         `yaml:"stale_confirmations"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is the log file path (empty for stderr).
	File string `yaml:"file"`
}

// DefaultConfig returns a Config for local regtest nodes.
func DefaultConfig() *Config {
	return &Config{
		Chains: []ChainConfig{
			{
				Symbol:  "BTC",
				Network: string(chain.Regtest),
				RPC:     backend.Config{Type: backend.TypeJSONRPC, URL: "http://127.0.0.1:18443"},
			},
			{
				Symbol:  "LTC",
				Network: string(chain.Regtest),
				RPC:     backend.Config{Type: backend.TypeJSONRPC, URL: "http://127.0.0.1:19443"},
			},
		},
		Storage: StorageConfig{
			DataDir: "~/.xswap",
			Driver:  storage.DriverSQLite,
		},
		Keys: KeysConfig{
			Source: KeySourceRandom,
		},
		Swap: SwapConfig{
			InitiatorWindow:    2 * time.Hour,
			TakerWindow:        time.Hour,
			FeeTargetBlocks:    backend.DefaultFeeTarget,
			FallbackFeeRate:    backend.DefaultFallbackFeeRate,
			PollInterval:       time.Second,
			HistoryPageSize:    10,
			StaleConfirmations: 144,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// LoadConfig loads configuration from a YAML file in dataDir.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(dataDir string) (*Config, error) {
	configPath := ConfigPath(dataDir)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Missing sections keep their defaults, a present chains list replaces them.
	// An unset data_dir means the directory the file was loaded from.
	cfg := DefaultConfig()
	cfg.Chains = nil
	cfg.Storage.DataDir = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if len(cfg.Chains) == 0 {
		cfg.Chains = DefaultConfig().Chains
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = dataDir
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# xswap configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the swap engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("%w: no chains configured", ErrInvalidConfig)
	}
	for i := range c.Chains {
		if _, err := c.Chains[i].Params(); err != nil {
			return err
		}
		if strings.TrimSpace(c.Chains[i].RPC.URL) == "" {
			return fmt.Errorf("%w: chain %s has no rpc url", ErrInvalidConfig, c.Chains[i].Symbol)
		}
		if t := c.Chains[i].RPC.Type; t != "" && t != backend.TypeJSONRPC {
			return fmt.Errorf("%w: chain %s: unsupported backend type %q", ErrInvalidConfig, c.Chains[i].Symbol, t)
		}
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "", storage.DriverSQLite, storage.DriverBolt, "bbolt":
	default:
		return fmt.Errorf("%w: storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	switch c.Keys.Source {
	case "", KeySourceRandom:
	case KeySourceHD:
		if c.Keys.MnemonicFile == "" {
			return fmt.Errorf("%w: hd keys need a mnemonic file", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: key source %q", ErrInvalidConfig, c.Keys.Source)
	}

	s := c.Swap
	if s.TakerWindow <= 0 || s.InitiatorWindow <= s.TakerWindow {
		return fmt.Errorf("%w: taker window %s must be positive and shorter than initiator window %s",
			ErrInvalidConfig, s.TakerWindow, s.InitiatorWindow)
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if s.HistoryPageSize <= 0 || s.StaleConfirmations <= 0 {
		return fmt.Errorf("%w: history page size and stale confirmations must be positive", ErrInvalidConfig)
	}
	if s.FeeTargetBlocks <= 0 || s.FallbackFeeRate <= 0 {
		return fmt.Errorf("%w: fee target and fallback rate must be positive", ErrInvalidConfig)
	}
	return nil
}

// Params looks up the chain parameters the entry names.
func (cc *ChainConfig) Params() (*chain.Params, error) {
	network, ok := chain.ParseNetwork(cc.Network)
	if !ok {
		return nil, fmt.Errorf("%w: chain %s: unknown network %q", ErrInvalidConfig, cc.Symbol, cc.Network)
	}
	params, ok := chain.Get(strings.ToUpper(strings.TrimSpace(cc.Symbol)), network)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported chain %q on %s", ErrInvalidConfig, cc.Symbol, network)
	}
	return params, nil
}

// FeePolicy returns the fee policy shared by all chain bindings.
func (s *SwapConfig) FeePolicy() backend.FeePolicy {
	return backend.FeePolicy{
		TargetBlocks: s.FeeTargetBlocks,
		Fallback:     backend.FeeRateFromSatPerVByte(s.FallbackFeeRate),
	}
}

// BuildRegistry connects every configured chain to an RPC ledger and
// registers the bindings.
func (c *Config) BuildRegistry() (*backend.Registry, error) {
	return c.buildRegistry(func(cc *ChainConfig, params *chain.Params) backend.Ledger {
		return backend.NewRPCLedger(&cc.RPC, params.ChainConfig())
	})
}

func (c *Config) buildRegistry(dial func(*ChainConfig, *chain.Params) backend.Ledger) (*backend.Registry, error) {
	registry := backend.NewRegistry()
	policy := c.Swap.FeePolicy()

	for i := range c.Chains {
		cc := &c.Chains[i]
		params, err := cc.Params()
		if err != nil {
			return nil, err
		}

		b := backend.NewBinding(params, dial(cc, params), policy)
		if cc.Production != nil {
			b.SetProduction(*cc.Production)
		}
		b.AddAliases(cc.Aliases...)

		if err := registry.Register(b); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// StorageConfig returns the store settings with the data directory expanded.
func (c *Config) StorageConfig(passphrase string) *storage.Config {
	return &storage.Config{
		DataDir:    expandPath(c.Storage.DataDir),
		Driver:     c.Storage.Driver,
		Passphrase: passphrase,
	}
}

// MnemonicPath returns the mnemonic file path, relative paths resolved
// against the data directory.
func (c *Config) MnemonicPath() string {
	path := expandPath(c.Keys.MnemonicFile)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(expandPath(c.Storage.DataDir), path)
}

// ConfigPath returns the full path to the config file for the given data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
