// Package chain defines chain parameters for the Bitcoin-family ledgers the
// swap engine can lock funds on.
// All chain-specific values are hardcoded here - no external configuration needed.
package chain

import (
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network represents mainnet, testnet or a local regtest network.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
)

// ParseNetwork converts a config string into a Network.
func ParseNetwork(s string) (Network, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet", "main", "":
		return Mainnet, true
	case "testnet", "test", "testnet3":
		return Testnet, true
	case "regtest", "reg", "regnet":
		return Regtest, true
	}
	return "", false
}

// Params contains all parameters for a blockchain.
type Params struct {
	// Identity
	Symbol   string  // BTC, LTC, DOGE
	Name     string  // Bitcoin, Litecoin, ...
	Network  Network // mainnet, testnet, regtest
	Decimals uint8

	// Aliases are extra names the chain answers to besides Symbol and Name.
	Aliases []string

	// BIP44 derivation
	CoinType       uint32
	DefaultPurpose uint32

	// Address prefixes
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
	Bech32HRP        string
	WIF              byte

	// BIP32 HD key magic bytes
	HDPrivateKeyID [4]byte
	HDPublicKeyID  [4]byte

	SupportsSegWit bool

	// AvgBlockTime is the target block interval used to turn wall-clock
	// lock windows into block-height deltas.
	AvgBlockTime time.Duration
}

// Production reports whether coins on this chain carry real value.
func (p *Params) Production() bool {
	return p.Network == Mainnet
}

// Names returns every name the chain can be resolved by.
func (p *Params) Names() []string {
	names := make([]string, 0, 2+len(p.Aliases))
	names = append(names, p.Symbol, p.Name)
	return append(names, p.Aliases...)
}

// BlocksFor converts a wall-clock window into a number of blocks.
// With roundUp the result covers at least d; otherwise it never exceeds d.
func (p *Params) BlocksFor(d time.Duration, roundUp bool) uint32 {
	if d <= 0 || p.AvgBlockTime <= 0 {
		return 0
	}
	blocks := d / p.AvgBlockTime
	if roundUp && d%p.AvgBlockTime != 0 {
		blocks++
	}
	return uint32(blocks)
}

// ChainConfig returns btcd network parameters carrying this chain's
// address prefixes, for address encoding and decoding.
func (p *Params) ChainConfig() *chaincfg.Params {
	var base chaincfg.Params
	switch p.Network {
	case Testnet:
		base = chaincfg.TestNet3Params
	case Regtest:
		base = chaincfg.RegressionNetParams
	default:
		base = chaincfg.MainNetParams
	}
	base.Name = strings.ToLower(p.Symbol) + "-" + string(p.Network)
	base.PubKeyHashAddrID = p.PubKeyHashAddrID
	base.ScriptHashAddrID = p.ScriptHashAddrID
	base.PrivateKeyID = p.WIF
	base.Bech32HRPSegwit = p.Bech32HRP
	base.HDPrivateKeyID = p.HDPrivateKeyID
	base.HDPublicKeyID = p.HDPublicKeyID
	base.HDCoinType = p.CoinType
	return &base
}

// DerivationPath returns the BIP44 derivation path for this chain.
// Format: m/purpose'/coin'/account'/change/index
func (p *Params) DerivationPath(account, change, index uint32) []uint32 {
	return []uint32{
		p.DefaultPurpose + 0x80000000, // purpose' (hardened)
		p.CoinType + 0x80000000,       // coin_type' (hardened)
		account + 0x80000000,          // account' (hardened)
		change,                        // change (0=external, 1=internal)
		index,                         // address_index
	}
}

// DerivationPathString returns the derivation path as a string.
func (p *Params) DerivationPathString(account, change, index uint32) string {
	return formatPath(p.DefaultPurpose, p.CoinType, account, change, index)
}

func formatPath(purpose, coinType, account, change, index uint32) string {
	return "m/" +
		itoa(purpose) + "'/" +
		itoa(coinType) + "'/" +
		itoa(account) + "'/" +
		itoa(change) + "/" +
		itoa(index)
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// registry holds all chain parameters indexed by symbol.
var registry = make(map[string]map[Network]*Params)

// Register adds chain params to the registry.
func Register(symbol string, network Network, params *Params) {
	if registry[symbol] == nil {
		registry[symbol] = make(map[Network]*Params)
	}
	params.Network = network
	registry[symbol][network] = params
}

// Get returns chain params for a symbol and network.
func Get(symbol string, network Network) (*Params, bool) {
	nets, ok := registry[strings.ToUpper(symbol)]
	if !ok {
		return nil, false
	}
	params, ok := nets[network]
	return params, ok
}

// List returns all registered chain symbols.
func List() []string {
	symbols := make([]string, 0, len(registry))
	for symbol := range registry {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// IsSupported returns true if the chain is registered.
func IsSupported(symbol string) bool {
	_, ok := registry[strings.ToUpper(symbol)]
	return ok
}
