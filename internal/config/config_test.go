package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/xswap/internal/backend"
	"github.com/klingon-exchange/xswap/internal/backend/mock"
	"github.com/klingon-exchange/xswap/internal/chain"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, dir, cfg.Storage.DataDir)
	assert.Len(t, cfg.Chains, 2)

	_, err = os.Stat(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)

	// The written file loads back to the same settings.
	again, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	data := `
chains:
  - symbol: doge
    network: testnet
    aliases: [dogecoin-test]
    production: true
    rpc:
      url: http://127.0.0.1:44555
      rpc_user: user
      rpc_pass: pass
      timeout: 5
swap:
  initiator_window: 4h
  taker_window: 90m
keys:
  source: hd
  mnemonic_file: seed.json
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(data), 0600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Chains, 1)
	cc := cfg.Chains[0]
	assert.Equal(t, "doge", cc.Symbol)
	assert.Equal(t, []string{"dogecoin-test"}, cc.Aliases)
	require.NotNil(t, cc.Production)
	assert.True(t, *cc.Production)
	assert.Equal(t, "user", cc.RPC.RPCUser)
	assert.Equal(t, 5, cc.RPC.Timeout)

	assert.Equal(t, 4*time.Hour, cfg.Swap.InitiatorWindow)
	assert.Equal(t, 90*time.Minute, cfg.Swap.TakerWindow)
	// Unset keys keep their defaults.
	assert.Equal(t, time.Second, cfg.Swap.PollInterval)
	assert.EqualValues(t, 144, cfg.Swap.StaleConfirmations)

	assert.Equal(t, dir, cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join(dir, "seed.json"), cfg.MnemonicPath())
	assert.Equal(t, "debug", cfg.Logging.Level)

	params, err := cc.Params()
	require.NoError(t, err)
	assert.Equal(t, "DOGE", params.Symbol)
	assert.Equal(t, chain.Testnet, params.Network)
}

func TestLoadConfigExplicitDataDir(t *testing.T) {
	dir := t.TempDir()
	data := "storage:\n  data_dir: /srv/xswap\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(data), 0600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "/srv/xswap", cfg.Storage.DataDir)
	// The default chains survive a file without a chains list.
	assert.Len(t, cfg.Chains, 2)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("swap: [unclosed"), 0600))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(c *Config){
		"no chains":          func(c *Config) { c.Chains = nil },
		"unknown chain":      func(c *Config) { c.Chains[0].Symbol = "XMR" },
		"unknown network":    func(c *Config) { c.Chains[0].Network = "signet" },
		"missing rpc url":    func(c *Config) { c.Chains[1].RPC.URL = " " },
		"backend type":       func(c *Config) { c.Chains[0].RPC.Type = "electrum" },
		"storage driver":     func(c *Config) { c.Storage.Driver = "postgres" },
		"key source":         func(c *Config) { c.Keys.Source = "ledger" },
		"hd without file":    func(c *Config) { c.Keys.Source = KeySourceHD },
		"equal windows":      func(c *Config) { c.Swap.TakerWindow = c.Swap.InitiatorWindow },
		"taker longer":       func(c *Config) { c.Swap.TakerWindow = 3 * time.Hour },
		"zero taker window":  func(c *Config) { c.Swap.TakerWindow = 0 },
		"zero poll interval": func(c *Config) { c.Swap.PollInterval = 0 },
		"zero page size":     func(c *Config) { c.Swap.HistoryPageSize = 0 },
		"zero stale depth":   func(c *Config) { c.Swap.StaleConfirmations = 0 },
		"zero fee target":    func(c *Config) { c.Swap.FeeTargetBlocks = 0 },
	}

	require.NoError(t, DefaultConfig().Validate())
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestBuildRegistry(t *testing.T) {
	production := true
	cfg := DefaultConfig()
	cfg.Chains[1].Aliases = []string{"lite"}
	cfg.Chains[1].Production = &production

	ledgers := make(map[string]*mock.Ledger)
	registry, err := cfg.buildRegistry(func(cc *ChainConfig, params *chain.Params) backend.Ledger {
		l := mock.New(params.ChainConfig(), 100)
		ledgers[params.Symbol] = l
		return l
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "LTC"}, registry.List())

	ltc, err := registry.Resolve("LITE")
	require.NoError(t, err)
	assert.Equal(t, "LTC", ltc.Name())
	assert.True(t, ltc.Production(), "override applies on regtest")

	btc, err := registry.Resolve("btc")
	require.NoError(t, err)
	assert.False(t, btc.Production())

	// A production binding whose node cannot estimate fees is unusable.
	ledgers["LTC"].SetFeeError(errors.New("estimatesmartfee unavailable"))
	assert.ErrorIs(t, ltc.EnsureReady(context.Background()), backend.ErrConfiguration)

	// The configured fallback is used elsewhere.
	ledgers["BTC"].SetFeeError(errors.New("estimatesmartfee unavailable"))
	rate, err := btc.FeeRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, backend.FeeRateFromSatPerVByte(cfg.Swap.FallbackFeeRate), rate)
}

func TestBuildRegistryDuplicateChain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chains = append(cfg.Chains, cfg.Chains[0])

	_, err := cfg.BuildRegistry()
	assert.ErrorIs(t, err, backend.ErrConfiguration)
}

func TestStorageConfigExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	sc := cfg.StorageConfig("secret")
	assert.Equal(t, filepath.Join(home, ".xswap"), sc.DataDir)
	assert.Equal(t, "secret", sc.Passphrase)

	cfg.Keys.MnemonicFile = "/etc/xswap/seed.json"
	assert.Equal(t, "/etc/xswap/seed.json", cfg.MnemonicPath())
}
