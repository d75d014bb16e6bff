// Package backend provides access to the wallet-enabled nodes of the chains a
// swap runs on. Each chain is reached through a Ledger; a Binding pairs a
// Ledger with its chain parameters and fee policy.
package backend

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Common errors
var (
	ErrNotConnected    = errors.New("backend not connected")
	ErrTxNotFound      = errors.New("transaction not found")
	ErrInvalidTx       = errors.New("invalid transaction")
	ErrBroadcastFailed = errors.New("broadcast failed")
	ErrFeeUnavailable  = errors.New("fee estimate unavailable")
	ErrFundingFailed   = errors.New("wallet could not fund transaction")
	ErrChainUnknown    = errors.New("unknown chain")
	ErrConfiguration   = errors.New("chain misconfigured")
)

// Type represents the backend type.
type Type string

const (
	TypeJSONRPC Type = "jsonrpc" // Bitcoin Core style wallet RPC
)

// Wallet history categories reported by listtransactions.
const (
	CategorySend     = "send"
	CategoryReceive  = "receive"
	CategoryGenerate = "generate"
	CategoryImmature = "immature"
	CategoryOrphan   = "orphan"
)

// UTXO represents an unspent transaction output.
type UTXO struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Amount        int64  `json:"value"` // in smallest unit (satoshis)
	Address       string `json:"address"`
	ScriptPubKey  string `json:"scriptpubkey"` // hex encoded
	Confirmations int64  `json:"confirmations"`
}

// OutPoint returns the UTXO's outpoint.
func (u *UTXO) OutPoint() (*wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return nil, err
	}
	return wire.NewOutPoint(hash, u.Vout), nil
}

// HistoryEntry is one line of the wallet's transaction history.
type HistoryEntry struct {
	TxID          string `json:"txid"`
	Category      string `json:"category"`
	Address       string `json:"address,omitempty"`
	Amount        int64  `json:"amount"`
	Confirmations int64  `json:"confirmations"`
}

// Coinbase reports whether the entry is a mining reward.
func (h *HistoryEntry) Coinbase() bool {
	switch h.Category {
	case CategoryGenerate, CategoryImmature, CategoryOrphan:
		return true
	}
	return false
}

// Ledger is the narrow view of a wallet-enabled node the swap engine needs.
type Ledger interface {
	// BestHeight returns the height of the chain tip.
	BestHeight(ctx context.Context) (int64, error)

	// EstimateFeeRate returns a fee rate for confirmation within target blocks.
	EstimateFeeRate(ctx context.Context, target int) (FeeRate, error)

	// ImportScript makes the node watch a P2SH redeem script.
	ImportScript(ctx context.Context, script []byte) error

	// ListUnspent returns outputs paying addr with at least minConf confirmations.
	ListUnspent(ctx context.Context, minConf int, addr btcutil.Address) ([]UTXO, error)

	// ListTransactions returns up to count wallet history entries, newest
	// first, skipping the offset most recent ones. Watch-only entries included.
	ListTransactions(ctx context.Context, offset, count int) ([]HistoryEntry, error)

	// GetTransaction looks a wallet transaction up and decodes it.
	GetTransaction(ctx context.Context, txid string) (*wire.MsgTx, error)

	// Broadcast submits a signed transaction.
	Broadcast(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error)

	// NewAddress returns a fresh receiving address from the node's wallet.
	NewAddress(ctx context.Context) (btcutil.Address, error)

	// FundAndSign adds wallet inputs and change to tx and signs them.
	FundAndSign(ctx context.Context, tx *wire.MsgTx) (*wire.MsgTx, error)
}

// Config contains backend configuration.
type Config struct {
	Type    Type   `yaml:"type"`
	URL     string `yaml:"url"`
	RPCUser string `yaml:"rpc_user,omitempty"`
	RPCPass string `yaml:"rpc_pass,omitempty"`

	// Optional settings
	Timeout int `yaml:"timeout,omitempty"` // seconds, default 30
}
