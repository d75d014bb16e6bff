package swap

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/xswap/internal/chain"
)

// The functions below derive an offer's on-chain contract. They depend only
// on the offer and never touch a ledger.

// CommitmentScript returns the contract redeem script. It depends on the
// hash, both public keys and LockTime only.
func (o *Offer) CommitmentScript() ([]byte, error) {
	if o.Initiator.PubKey == nil || o.Taker.PubKey == nil {
		return nil, fmt.Errorf("%w: missing public key", ErrInvalidOffer)
	}
	return BuildHTLCScript(
		o.Hash,
		o.Taker.PubKey.SerializeCompressed(),
		o.Initiator.PubKey.SerializeCompressed(),
		o.LockTime,
	)
}

// FundingScript returns the P2SH script paying into the contract.
func (o *Offer) FundingScript() ([]byte, error) {
	redeem, err := o.CommitmentScript()
	if err != nil {
		return nil, err
	}
	return BuildP2SHScriptPubKey(redeem)
}

// FundingOutput returns the output the initiator must create on its chain.
func (o *Offer) FundingOutput() (*wire.TxOut, error) {
	script, err := o.FundingScript()
	if err != nil {
		return nil, err
	}
	return wire.NewTxOut(o.Initiator.Asset.Amount, script), nil
}

// FundingAddress returns the P2SH address of the contract on a chain.
func (o *Offer) FundingAddress(params *chain.Params) (btcutil.Address, error) {
	redeem, err := o.CommitmentScript()
	if err != nil {
		return nil, err
	}
	return btcutil.NewAddressScriptHash(redeem, params.ChainConfig())
}

// ClaimWitness returns the signature script spending the contract through
// the preimage branch.
func (o *Offer) ClaimWitness(sig, preimage []byte) ([]byte, error) {
	if !VerifySecret(preimage, o.Hash) {
		return nil, ErrSecretMismatch
	}
	redeem, err := o.CommitmentScript()
	if err != nil {
		return nil, err
	}
	return BuildClaimScriptSig(sig, preimage, redeem)
}

// RefundWitness returns the signature script spending the contract through
// the timeout branch.
func (o *Offer) RefundWitness(sig []byte) ([]byte, error) {
	redeem, err := o.CommitmentScript()
	if err != nil {
		return nil, err
	}
	return BuildRefundScriptSig(sig, redeem)
}
