// Package swap - Contract claims.
package swap

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/xswap/internal/storage"
)

// Claim spends the offer's contract through the preimage branch to a fresh
// address of the ledger wallet. The preimage, the taker's private key and
// the funding outpoint must all be in the store. The claimer pays the fee.
func (c *Coordinator) Claim(ctx context.Context, offer *Offer) (*chainhash.Hash, error) {
	b, err := c.binding(ctx, offer.Initiator.Asset.Chain)
	if err != nil {
		return nil, err
	}

	preimage, err := c.store.GetPreimage(offer.Hash)
	if err != nil {
		return nil, missing(err, ErrUnknownPreimage)
	}
	if !VerifySecret(preimage, offer.Hash) {
		return nil, ErrSecretMismatch
	}

	if offer.Taker.PubKey == nil {
		return nil, fmt.Errorf("%w: missing taker key", ErrInvalidOffer)
	}
	privBytes, err := c.store.GetPrivateKey(offer.Taker.PubKey.SerializeCompressed())
	if err != nil {
		return nil, missing(err, ErrUnknownKey)
	}
	key, _ := btcec.PrivKeyFromBytes(privBytes)

	redeem, err := offer.CommitmentScript()
	if err != nil {
		return nil, err
	}
	fundingScript, err := BuildP2SHScriptPubKey(redeem)
	if err != nil {
		return nil, err
	}
	outpoint, err := c.store.GetFunding(fundingScript)
	if err != nil {
		return nil, missing(err, ErrUnknownFunding)
	}

	rate, err := b.FeeRate(ctx)
	if err != nil {
		return nil, err
	}

	dest, err := b.Ledger.NewAddress(ctx)
	if err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("failed to get claim address: %w", err))
	}
	destScript, err := txscript.PayToAddrScript(dest)
	if err != nil {
		return nil, fmt.Errorf("invalid claim address: %w", err)
	}

	tx, err := BuildClaimTx(&SpendTxParams{
		OutPoint:     *outpoint,
		Value:        offer.Initiator.Asset.Amount,
		RedeemScript: redeem,
		DestScript:   destScript,
		FeeRate:      rate,
		Key:          key,
	}, preimage)
	if err != nil {
		return nil, fmt.Errorf("failed to build claim: %w", err)
	}

	// The journal entry must exist before the claim is attached to it. The
	// contract is known to be funded at this point.
	if err := c.advance(offer, StateFunded); err != nil {
		return nil, err
	}

	txid, err := b.Ledger.Broadcast(ctx, tx)
	if err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("failed to broadcast claim: %w", err))
	}

	c.log.Info("Contract claimed",
		"hash", offer.HashHex(),
		"chain", b.Name(),
		"txid", txid,
		"value", tx.TxOut[0].Value,
		"fee_rate", rate,
	)

	claim := &storage.ClaimRecord{
		TxID:    txid.String(),
		Address: dest.EncodeAddress(),
		Value:   tx.TxOut[0].Value,
	}
	if err := c.store.SaveClaim(offer.Hash, claim); err != nil {
		return txid, fmt.Errorf("failed to save claim: %w", err)
	}
	if err := c.advance(offer, StateClaimed); err != nil {
		return txid, err
	}
	return txid, nil
}

// WaitForClaimConfirmation blocks until the recorded claim output of the
// offer has at least one confirmation.
func (c *Coordinator) WaitForClaimConfirmation(ctx context.Context, offer *Offer) (*wire.OutPoint, error) {
	b, err := c.binding(ctx, offer.Initiator.Asset.Chain)
	if err != nil {
		return nil, err
	}

	claim, err := c.store.GetClaim(offer.Hash)
	if err != nil {
		return nil, missing(err, ErrUnknownClaim)
	}
	dest, err := btcutil.DecodeAddress(claim.Address, b.Params.ChainConfig())
	if err != nil {
		return nil, fmt.Errorf("invalid claim address %q: %w", claim.Address, err)
	}

	var outpoint *wire.OutPoint
	err = poll(ctx, c.pollInterval, func() (bool, error) {
		utxos, err := b.Ledger.ListUnspent(ctx, 1, dest)
		if err != nil {
			return false, fmt.Errorf("failed to list claim outputs: %w", err)
		}
		for i := range utxos {
			if utxos[i].TxID != claim.TxID {
				continue
			}
			op, err := utxos[i].OutPoint()
			if err != nil {
				return false, err
			}
			outpoint = op
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("Claim confirmed", "hash", offer.HashHex(), "chain", b.Name(), "outpoint", outpoint)
	return outpoint, nil
}

// missing maps a store miss to the given precondition error.
func missing(err, precondition error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return precondition
	}
	return err
}
