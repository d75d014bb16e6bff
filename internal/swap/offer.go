package swap

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ChainAsset is an amount on a named chain, in the chain's smallest unit.
type ChainAsset struct {
	Chain  string `json:"chain"`
	Amount int64  `json:"amount"`
}

// Validate checks the asset names a chain and a positive amount.
func (a ChainAsset) Validate() error {
	if strings.TrimSpace(a.Chain) == "" {
		return fmt.Errorf("%w: missing chain", ErrInvalidOffer)
	}
	if a.Amount <= 0 {
		return fmt.Errorf("%w: non-positive amount %d on %s", ErrInvalidOffer, a.Amount, a.Chain)
	}
	return nil
}

// Proposal is what the initiator wants to trade: From on chain A for To on
// chain B.
type Proposal struct {
	From ChainAsset `json:"from"`
	To   ChainAsset `json:"to"`
}

// Validate checks both assets.
func (p *Proposal) Validate() error {
	if err := p.From.Validate(); err != nil {
		return err
	}
	return p.To.Validate()
}

// OfferParty is one side of an offer: the asset it locks and the key that
// spends its branch of the contract.
type OfferParty struct {
	Asset  ChainAsset
	PubKey *btcec.PublicKey
}

// Offer is the initiator's leg of a swap. It is immutable once created and
// transmitted to the taker unchanged.
type Offer struct {
	Initiator OfferParty
	Taker     OfferParty

	// LockTime is the chain A height after which the initiator can refund.
	LockTime uint32
	// CounterOfferLockTime is the chain B height after which the taker can
	// refund the counter-offer.
	CounterOfferLockTime uint32

	// Hash is SHA256 of the preimage. It binds both legs.
	Hash [32]byte
}

// Validate checks an offer received from a counterparty.
func (o *Offer) Validate() error {
	if err := o.Initiator.Asset.Validate(); err != nil {
		return err
	}
	if err := o.Taker.Asset.Validate(); err != nil {
		return err
	}
	if o.Initiator.PubKey == nil || o.Taker.PubKey == nil {
		return fmt.Errorf("%w: missing public key", ErrInvalidOffer)
	}
	if o.Initiator.PubKey.IsEqual(o.Taker.PubKey) {
		return fmt.Errorf("%w: both parties use the same key", ErrInvalidOffer)
	}
	if o.LockTime == 0 || o.CounterOfferLockTime == 0 {
		return fmt.Errorf("%w: missing lock time", ErrInvalidOffer)
	}
	if o.Hash == ([32]byte{}) {
		return fmt.Errorf("%w: missing hash", ErrInvalidOffer)
	}
	return nil
}

// CounterOffer returns the taker's leg on chain B. Roles are swapped, the
// lock time is the counter-offer's and the hash is shared.
func (o *Offer) CounterOffer() *Offer {
	return &Offer{
		Initiator: OfferParty{
			Asset:  o.Taker.Asset,
			PubKey: o.Taker.PubKey,
		},
		Taker: OfferParty{
			Asset:  o.Initiator.Asset,
			PubKey: o.Initiator.PubKey,
		},
		LockTime:             o.CounterOfferLockTime,
		CounterOfferLockTime: o.CounterOfferLockTime,
		Hash:                 o.Hash,
	}
}

// HashHex returns the offer hash as hex.
func (o *Offer) HashHex() string {
	return hex.EncodeToString(o.Hash[:])
}

// offerJSON is the transport form of an Offer.
type offerJSON struct {
	Initiator            partyJSON `json:"initiator"`
	Taker                partyJSON `json:"taker"`
	LockTime             uint32    `json:"lock_time"`
	CounterOfferLockTime uint32    `json:"counter_offer_lock_time"`
	Hash                 string    `json:"hash"`
}

type partyJSON struct {
	Asset  ChainAsset `json:"asset"`
	PubKey string     `json:"pubkey"`
}

// MarshalJSON encodes keys and hash as hex.
func (o *Offer) MarshalJSON() ([]byte, error) {
	if o.Initiator.PubKey == nil || o.Taker.PubKey == nil {
		return nil, fmt.Errorf("%w: missing public key", ErrInvalidOffer)
	}
	return json.Marshal(offerJSON{
		Initiator: partyJSON{
			Asset:  o.Initiator.Asset,
			PubKey: hex.EncodeToString(o.Initiator.PubKey.SerializeCompressed()),
		},
		Taker: partyJSON{
			Asset:  o.Taker.Asset,
			PubKey: hex.EncodeToString(o.Taker.PubKey.SerializeCompressed()),
		},
		LockTime:             o.LockTime,
		CounterOfferLockTime: o.CounterOfferLockTime,
		Hash:                 hex.EncodeToString(o.Hash[:]),
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (o *Offer) UnmarshalJSON(data []byte) error {
	var raw offerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	initiatorKey, err := ParsePubKeyHex(raw.Initiator.PubKey)
	if err != nil {
		return fmt.Errorf("initiator: %w", err)
	}
	takerKey, err := ParsePubKeyHex(raw.Taker.PubKey)
	if err != nil {
		return fmt.Errorf("taker: %w", err)
	}
	hash, err := ParseHashHex(raw.Hash)
	if err != nil {
		return err
	}

	*o = Offer{
		Initiator:            OfferParty{Asset: raw.Initiator.Asset, PubKey: initiatorKey},
		Taker:                OfferParty{Asset: raw.Taker.Asset, PubKey: takerKey},
		LockTime:             raw.LockTime,
		CounterOfferLockTime: raw.CounterOfferLockTime,
		Hash:                 hash,
	}
	return nil
}

// ParsePubKeyHex decodes a hex secp256k1 public key.
func ParsePubKeyHex(s string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPubKey, err)
	}
	key, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPubKey, err)
	}
	return key, nil
}

// ParseHashHex decodes a hex 32-byte hash.
func ParseHashHex(s string) ([32]byte, error) {
	var hash [32]byte
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return hash, fmt.Errorf("%w: hash: %v", ErrInvalidOffer, err)
	}
	if len(raw) != len(hash) {
		return hash, fmt.Errorf("%w: hash must be 32 bytes, got %d", ErrInvalidOffer, len(raw))
	}
	copy(hash[:], raw)
	return hash, nil
}
