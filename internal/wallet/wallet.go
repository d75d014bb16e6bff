// Package wallet provides the key material for swap contracts: HD keys
// derived from a BIP39 seed or plain random keys, plus Argon2id sealing of
// secrets at rest.
package wallet

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/xswap/internal/chain"
)

// Wallet manages HD keys derived from a BIP39 seed.
type Wallet struct {
	masterKey *hdkeychain.ExtendedKey
	network   chain.Network
	mu        sync.Mutex

	// Derived account-level change keys by path prefix.
	cache map[[4]uint32]*hdkeychain.ExtendedKey
}

// GenerateMnemonic generates a new 24-word BIP39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256) // 256 bits = 24 words
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return mnemonic, nil
}

// ValidateMnemonic checks if a mnemonic is valid.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// NewFromMnemonic creates a wallet from a BIP39 mnemonic.
// The passphrase is optional (can be empty string).
func NewFromMnemonic(mnemonic, passphrase string, network chain.Network) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, passphrase)
	defer SecureClear(seed)

	return NewFromSeed(seed, network)
}

// NewFromSeed creates a wallet from a raw 64-byte seed.
func NewFromSeed(seed []byte, network chain.Network) (*Wallet, error) {
	// The network only affects xprv serialization; chain params pick the
	// derivation path.
	params := &chaincfg.MainNetParams
	switch network {
	case chain.Testnet:
		params = &chaincfg.TestNet3Params
	case chain.Regtest:
		params = &chaincfg.RegressionNetParams
	}

	masterKey, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	return &Wallet{
		masterKey: masterKey,
		network:   network,
		cache:     make(map[[4]uint32]*hdkeychain.ExtendedKey),
	}, nil
}

// Network returns the wallet's network.
func (w *Wallet) Network() chain.Network {
	return w.network
}

// DeriveKey derives a key at the full BIP44 path: m/purpose'/coin'/account'/change/index
func (w *Wallet) DeriveKey(purpose, coinType, account, change, index uint32) (*hdkeychain.ExtendedKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prefix := [4]uint32{purpose, coinType, account, change}
	changeKey, ok := w.cache[prefix]
	if !ok {
		// m/purpose' (hardened)
		purposeKey, err := w.masterKey.Derive(hdkeychain.HardenedKeyStart + purpose)
		if err != nil {
			return nil, fmt.Errorf("failed to derive purpose: %w", err)
		}

		// m/purpose'/coin' (hardened)
		coinKey, err := purposeKey.Derive(hdkeychain.HardenedKeyStart + coinType)
		if err != nil {
			return nil, fmt.Errorf("failed to derive coin: %w", err)
		}

		// m/purpose'/coin'/account' (hardened)
		accountKey, err := coinKey.Derive(hdkeychain.HardenedKeyStart + account)
		if err != nil {
			return nil, fmt.Errorf("failed to derive account: %w", err)
		}

		// m/purpose'/coin'/account'/change (non-hardened)
		changeKey, err = accountKey.Derive(change)
		if err != nil {
			return nil, fmt.Errorf("failed to derive change: %w", err)
		}
		w.cache[prefix] = changeKey
	}

	// m/purpose'/coin'/account'/change/index (non-hardened)
	addressKey, err := changeKey.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("failed to derive index %d: %w", index, err)
	}

	return addressKey, nil
}

// DerivePrivateKey derives the private key at index on the chain's default path.
func (w *Wallet) DerivePrivateKey(params *chain.Params, account, index uint32) (*btcec.PrivateKey, error) {
	key, err := w.DeriveKey(params.DefaultPurpose, params.CoinType, account, 0, index)
	if err != nil {
		return nil, err
	}

	privKey, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}

	return privKey, nil
}
