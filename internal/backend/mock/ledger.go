// Package mock provides an in-memory Ledger for exercising swap flows
// without a node.
package mock

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/xswap/internal/backend"
)

type output struct {
	out    *wire.TxOut
	addr   string
	height int64 // 0 while unconfirmed
	spent  bool
}

type record struct {
	tx       *wire.MsgTx
	category string
	height   int64
}

// Ledger is a single-wallet chain kept in memory. Every broadcast
// transaction is visible in the wallet history, as if all scripts were
// imported.
type Ledger struct {
	mu sync.Mutex

	net     *chaincfg.Params
	height  int64
	feeRate backend.FeeRate
	feeErr  error

	outputs  map[wire.OutPoint]*output
	history  []*record // oldest first
	txs      map[chainhash.Hash]*record
	imported map[string]bool

	nextAddr uint32
	nextCoin uint32

	broadcastErr error
	listCalls    int
}

// New creates a ledger at the given height.
func New(net *chaincfg.Params, height int64) *Ledger {
	return &Ledger{
		net:      net,
		height:   height,
		feeRate:  backend.FeeRateFromSatPerVByte(10),
		outputs:  make(map[wire.OutPoint]*output),
		txs:      make(map[chainhash.Hash]*record),
		imported: make(map[string]bool),
	}
}

// SetFeeRate sets the estimate returned by EstimateFeeRate.
func (l *Ledger) SetFeeRate(rate backend.FeeRate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feeRate = rate
}

// SetFeeError makes EstimateFeeRate fail with err. Nil restores estimates.
func (l *Ledger) SetFeeError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feeErr = err
}

// SetBroadcastError makes Broadcast fail with err.
func (l *Ledger) SetBroadcastError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.broadcastErr = err
}

// Mine confirms all pending transactions and advances the tip by n blocks.
func (l *Ledger) Mine(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 {
		return
	}
	l.height++
	for _, r := range l.history {
		if r.height == 0 {
			r.height = l.height
		}
	}
	for _, o := range l.outputs {
		if o.height == 0 {
			o.height = l.height
		}
	}
	l.height += int64(n - 1)
}

// Imported reports whether a script was imported for watching.
func (l *Ledger) Imported(script []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.imported[hex.EncodeToString(script)]
}

// ListTransactionsCalls returns how many history pages were requested.
func (l *Ledger) ListTransactionsCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listCalls
}

// AddTransaction records tx in the history as confirmed at height without
// validating it. category is the wallet category to report.
func (l *Ledger) AddTransaction(tx *wire.MsgTx, category string, height int64) chainhash.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(tx, category, height)
	return tx.TxHash()
}

// Pay creates a confirmed output of amount paying addr, as if sent by a
// third party.
func (l *Ledger) Pay(addr btcutil.Address, amount int64) (*wire.OutPoint, error) {
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(l.coin(), nil, nil))
	tx.AddTxOut(wire.NewTxOut(amount, pkScript))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(tx, backend.CategoryReceive, l.height)
	return wire.NewOutPoint(ptr(tx.TxHash()), 0), nil
}

// BestHeight implements backend.Ledger.
func (l *Ledger) BestHeight(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height, nil
}

// EstimateFeeRate implements backend.Ledger.
func (l *Ledger) EstimateFeeRate(ctx context.Context, target int) (backend.FeeRate, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.feeErr != nil {
		return 0, l.feeErr
	}
	return l.feeRate, nil
}

// ImportScript implements backend.Ledger.
func (l *Ledger) ImportScript(ctx context.Context, script []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.imported[hex.EncodeToString(script)] = true
	return nil
}

// ListUnspent implements backend.Ledger.
func (l *Ledger) ListUnspent(ctx context.Context, minConf int, addr btcutil.Address) ([]backend.UTXO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	want := addr.EncodeAddress()
	var utxos []backend.UTXO
	for op, o := range l.outputs {
		if o.spent || o.addr != want {
			continue
		}
		confs := l.confirmations(o.height)
		if confs < int64(minConf) {
			continue
		}
		utxos = append(utxos, backend.UTXO{
			TxID:          op.Hash.String(),
			Vout:          op.Index,
			Amount:        o.out.Value,
			Address:       o.addr,
			ScriptPubKey:  hex.EncodeToString(o.out.PkScript),
			Confirmations: confs,
		})
	}
	return utxos, nil
}

// ListTransactions implements backend.Ledger.
func (l *Ledger) ListTransactions(ctx context.Context, offset, count int) ([]backend.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listCalls++

	var entries []backend.HistoryEntry
	for i := len(l.history) - 1 - offset; i >= 0 && len(entries) < count; i-- {
		r := l.history[i]
		entries = append(entries, backend.HistoryEntry{
			TxID:          r.tx.TxHash().String(),
			Category:      r.category,
			Confirmations: l.confirmations(r.height),
		})
	}
	return entries, nil
}

// GetTransaction implements backend.Ledger.
func (l *Ledger) GetTransaction(ctx context.Context, txid string) (*wire.MsgTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.txs[*hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrTxNotFound, txid)
	}
	return r.tx.Copy(), nil
}

// Broadcast implements backend.Ledger. Inputs spending known outputs must be
// unspent; unknown inputs are treated as wallet coins.
func (l *Ledger) Broadcast(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.broadcastErr != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrBroadcastFailed, l.broadcastErr)
	}
	if _, dup := l.txs[tx.TxHash()]; dup {
		return nil, fmt.Errorf("%w: already in chain", backend.ErrBroadcastFailed)
	}
	if tx.LockTime != 0 && int64(tx.LockTime) > l.height {
		return nil, fmt.Errorf("%w: non-final transaction", backend.ErrBroadcastFailed)
	}
	for _, in := range tx.TxIn {
		if o, ok := l.outputs[in.PreviousOutPoint]; ok && o.spent {
			return nil, fmt.Errorf("%w: %s already spent", backend.ErrBroadcastFailed, in.PreviousOutPoint)
		}
	}
	for _, in := range tx.TxIn {
		if o, ok := l.outputs[in.PreviousOutPoint]; ok {
			o.spent = true
		}
	}

	l.record(tx.Copy(), backend.CategorySend, 0)
	hash := tx.TxHash()
	return &hash, nil
}

// NewAddress implements backend.Ledger.
func (l *Ledger) NewAddress(ctx context.Context) (btcutil.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.nextAddr++
	n := l.nextAddr
	l.mu.Unlock()

	var seed [4]byte
	binary.BigEndian.PutUint32(seed[:], n)
	return btcutil.NewAddressPubKeyHash(btcutil.Hash160(seed[:]), l.net)
}

// FundAndSign implements backend.Ledger by attaching one synthetic wallet
// coin. No change output is added.
func (l *Ledger) FundAndSign(ctx context.Context, tx *wire.MsgTx) (*wire.MsgTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	funded := tx.Copy()
	funded.AddTxIn(wire.NewTxIn(l.coin(), []byte{txscript.OP_TRUE}, nil))
	return funded, nil
}

// coin returns a fresh outpoint standing for a wallet-owned coin.
func (l *Ledger) coin() *wire.OutPoint {
	l.mu.Lock()
	l.nextCoin++
	n := l.nextCoin
	l.mu.Unlock()

	var seed [4]byte
	binary.BigEndian.PutUint32(seed[:], n)
	return wire.NewOutPoint(ptr(chainhash.HashH(append([]byte("coin"), seed[:]...))), 0)
}

// record must be called with l.mu held.
func (l *Ledger) record(tx *wire.MsgTx, category string, height int64) {
	r := &record{tx: tx, category: category, height: height}
	l.history = append(l.history, r)
	hash := tx.TxHash()
	l.txs[hash] = r

	for i, out := range tx.TxOut {
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, l.net)
		addr := ""
		if err == nil && len(addrs) == 1 {
			addr = addrs[0].EncodeAddress()
		}
		l.outputs[*wire.NewOutPoint(&hash, uint32(i))] = &output{
			out:    out,
			addr:   addr,
			height: height,
		}
	}
}

// confirmations must be called with l.mu held.
func (l *Ledger) confirmations(height int64) int64 {
	if height == 0 {
		return 0
	}
	return l.height - height + 1
}

func ptr(h chainhash.Hash) *chainhash.Hash {
	return &h
}

var _ backend.Ledger = (*Ledger)(nil)
