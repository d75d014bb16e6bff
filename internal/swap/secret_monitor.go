// Package swap - Secret monitoring.
// Watches a chain's wallet history for the transaction that spends a
// contract through its preimage branch and recovers the preimage from it.
package swap

import (
	"context"
	"fmt"
)

// WaitForDisclosure scans the wallet history of the offer's initiator chain
// until a transaction reveals the preimage of the offer hash. The preimage is
// persisted and the swap moves to StateDisclosed. It returns ctx.Err() if the
// context is done first.
//
// The history is read newest first, HistoryPageSize entries at a time.
// Coinbase entries are skipped. Entries deeper than StaleConfirmations, or
// the end of the history, restart the scan from the tip after a pause.
func (c *Coordinator) WaitForDisclosure(ctx context.Context, offer *Offer) (bool, error) {
	b, err := c.binding(ctx, offer.Initiator.Asset.Chain)
	if err != nil {
		return false, err
	}

	scan := newHistoryScan(c.pageSize, c.staleDepth)
	cache := newTxCache(b.Ledger)

	c.log.Debug("Watching for preimage", "hash", offer.HashHex(), "chain", b.Name())

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		page, err := b.Ledger.ListTransactions(ctx, scan.cursor, scan.pageSize)
		if err != nil {
			return false, ctxErr(ctx, fmt.Errorf("failed to list %s history: %w", b.Name(), err))
		}

		candidates, wrapped := scan.next(page)
		for _, entry := range candidates {
			tx, err := cache.get(ctx, entry.TxID)
			if err != nil {
				return false, err
			}
			if tx == nil {
				continue
			}

			preimage := findPreimage(tx, offer.Hash)
			if preimage == nil {
				continue
			}

			if err := c.store.SavePreimage(offer.Hash, preimage); err != nil {
				return false, fmt.Errorf("failed to save preimage: %w", err)
			}
			c.log.Info("Preimage disclosed",
				"hash", offer.HashHex(),
				"chain", b.Name(),
				"txid", entry.TxID,
				"confirmations", entry.Confirmations,
			)
			if err := c.advance(offer, StateDisclosed); err != nil {
				return true, err
			}
			return true, nil
		}

		if wrapped {
			c.log.Debug("History scan restarting", "hash", offer.HashHex(), "chain", b.Name(), "decoded", len(cache.txs))
			if err := sleep(ctx, c.pollInterval); err != nil {
				return false, err
			}
		}
	}
}
