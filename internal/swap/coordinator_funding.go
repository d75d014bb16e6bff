// Package swap - Funding of swap contracts.
package swap

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// FundAndBroadcast pays the offer's funding output from the ledger wallet of
// the initiator chain and broadcasts it. With watch, the contract is
// imported first so its history becomes visible to the wallet.
func (c *Coordinator) FundAndBroadcast(ctx context.Context, offer *Offer, watch bool) (*chainhash.Hash, error) {
	b, err := c.binding(ctx, offer.Initiator.Asset.Chain)
	if err != nil {
		return nil, err
	}

	redeem, err := offer.CommitmentScript()
	if err != nil {
		return nil, err
	}
	out, err := offer.FundingOutput()
	if err != nil {
		return nil, err
	}

	if watch {
		if err := b.Ledger.ImportScript(ctx, redeem); err != nil {
			return nil, ctxErr(ctx, fmt.Errorf("failed to import contract: %w", err))
		}
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(out)

	signed, err := b.Ledger.FundAndSign(ctx, tx)
	if err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("failed to fund contract: %w", err))
	}

	txid, err := b.Ledger.Broadcast(ctx, signed)
	if err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("failed to broadcast funding: %w", err))
	}

	c.log.Info("Contract funded",
		"hash", offer.HashHex(),
		"chain", b.Name(),
		"txid", txid,
		"amount", offer.Initiator.Asset.Amount,
	)

	if err := c.advance(offer, StateFunded); err != nil {
		return txid, err
	}
	return txid, nil
}

// WaitForFunding blocks until the offer's contract holds an output of exactly
// the offered amount with at least minConf confirmations. The outpoint is
// persisted for a later claim.
func (c *Coordinator) WaitForFunding(ctx context.Context, offer *Offer, minConf int) (*wire.OutPoint, error) {
	b, err := c.binding(ctx, offer.Initiator.Asset.Chain)
	if err != nil {
		return nil, err
	}

	redeem, err := offer.CommitmentScript()
	if err != nil {
		return nil, err
	}
	fundingScript, err := BuildP2SHScriptPubKey(redeem)
	if err != nil {
		return nil, err
	}
	addr, err := offer.FundingAddress(b.Params)
	if err != nil {
		return nil, err
	}

	if err := b.Ledger.ImportScript(ctx, redeem); err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("failed to import contract: %w", err))
	}

	want := offer.Initiator.Asset.Amount
	c.log.Debug("Waiting for funding", "hash", offer.HashHex(), "chain", b.Name(), "address", addr, "amount", want)

	var outpoint *wire.OutPoint
	err = poll(ctx, c.pollInterval, func() (bool, error) {
		utxos, err := b.Ledger.ListUnspent(ctx, minConf, addr)
		if err != nil {
			return false, fmt.Errorf("failed to list contract outputs: %w", err)
		}
		for i := range utxos {
			if utxos[i].Amount != want {
				c.log.Debug("Ignoring contract output", "txid", utxos[i].TxID, "amount", utxos[i].Amount, "expected", want)
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

	if err := c.store.SaveFunding(fundingScript, *outpoint); err != nil {
		return nil, fmt.Errorf("failed to save funding: %w", err)
	}

	c.log.Info("Contract funding seen", "hash", offer.HashHex(), "chain", b.Name(), "outpoint", outpoint)
	return outpoint, nil
}
