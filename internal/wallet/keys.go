package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/klingon-exchange/xswap/internal/chain"
)

// KeySource hands out fresh secp256k1 keys for swap contracts.
type KeySource interface {
	NewKey() (*btcec.PrivateKey, error)
}

// IndexStore persists the next unused HD key index.
type IndexStore interface {
	NextKeyIndex() (uint32, error)
}

// RandomSource generates independent random keys.
type RandomSource struct{}

// NewKey returns a new random private key.
func (RandomSource) NewKey() (*btcec.PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// HDSource derives keys from a wallet along the swap account of a chain.
// Every key uses a new index taken from the store, so keys never repeat
// across restarts.
type HDSource struct {
	wallet  *Wallet
	params  *chain.Params
	account uint32
	indices IndexStore
}

// NewHDSource creates an HD key source.
func NewHDSource(w *Wallet, params *chain.Params, account uint32, indices IndexStore) *HDSource {
	return &HDSource{
		wallet:  w,
		params:  params,
		account: account,
		indices: indices,
	}
}

// NewKey derives the key at the next unused index.
func (s *HDSource) NewKey() (*btcec.PrivateKey, error) {
	index, err := s.indices.NextKeyIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve key index: %w", err)
	}
	if err := ValidateAddressIndex(index); err != nil {
		return nil, err
	}
	return s.wallet.DerivePrivateKey(s.params, s.account, index)
}

// Path returns the derivation path of the key at index.
func (s *HDSource) Path(index uint32) string {
	return s.params.DerivationPathString(s.account, 0, index)
}

var (
	_ KeySource = RandomSource{}
	_ KeySource = (*HDSource)(nil)
)
