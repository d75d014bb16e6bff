package swap

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/xswap/internal/backend"
)

// Defaults for the disclosure scan.
const (
	DefaultHistoryPageSize    = 10
	DefaultStaleConfirmations = 144
)

// historyScan walks a wallet history newest first, one page at a time.
// It restarts from the tip when the history runs out or after a page holding
// entries older than staleDepth confirmations.
type historyScan struct {
	cursor     int
	pageSize   int
	staleDepth int64
}

func newHistoryScan(pageSize int, staleDepth int64) *historyScan {
	if pageSize <= 0 {
		pageSize = DefaultHistoryPageSize
	}
	if staleDepth <= 0 {
		staleDepth = DefaultStaleConfirmations
	}
	return &historyScan{pageSize: pageSize, staleDepth: staleDepth}
}

// next consumes a page fetched at the current cursor. It returns the
// entries worth inspecting and whether the scan wrapped back to the tip.
func (s *historyScan) next(page []backend.HistoryEntry) (candidates []backend.HistoryEntry, wrapped bool) {
	if len(page) == 0 {
		s.cursor = 0
		return nil, true
	}
	// History is ordered by insertion, not depth, so a stale entry does not
	// hide the fresher ones listed after it on the same page.
	for _, entry := range page {
		if entry.Confirmations > s.staleDepth {
			wrapped = true
			continue
		}
		if entry.Coinbase() {
			continue
		}
		candidates = append(candidates, entry)
	}
	if wrapped {
		s.cursor = 0
	} else {
		s.cursor += len(page)
	}
	return candidates, wrapped
}

// txCache holds transactions decoded during one scan.
type txCache struct {
	ledger backend.Ledger
	txs    map[string]*wire.MsgTx
}

func newTxCache(ledger backend.Ledger) *txCache {
	return &txCache{ledger: ledger, txs: make(map[string]*wire.MsgTx)}
}

// get returns the decoded transaction, or nil if the ledger does not know it
// yet. Misses are not cached; the next pass asks again.
func (c *txCache) get(ctx context.Context, txid string) (*wire.MsgTx, error) {
	if tx, ok := c.txs[txid]; ok {
		return tx, nil
	}
	tx, err := c.ledger.GetTransaction(ctx, txid)
	if errors.Is(err, backend.ErrTxNotFound) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to get transaction %s: %w", txid, err)
	}
	c.txs[txid] = tx
	return tx, nil
}

// findPreimage tests every signature script push and witness item of tx as
// a preimage of hash.
func findPreimage(tx *wire.MsgTx, hash [32]byte) []byte {
	for _, in := range tx.TxIn {
		for _, push := range scriptPushes(in.SignatureScript) {
			if sha256.Sum256(push) == hash {
				return push
			}
		}
		for _, item := range in.Witness {
			if len(item) > 0 && sha256.Sum256(item) == hash {
				return item
			}
		}
	}
	return nil
}
