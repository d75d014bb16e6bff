package backend

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
)

// maxConfirmations is the upper bound passed to listunspent.
const maxConfirmations = 9999999

// JSON-RPC error codes the ledger reacts to.
const (
	rpcCodeMethodNotFound      = -32601
	rpcCodeInvalidAddressOrKey = -5 // also "invalid or non-wallet transaction id"
)

// RPCError is an error reported by the node itself.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// rpcCode returns the node error code carried by err, or 0.
func rpcCode(err error) int {
	var rerr *RPCError
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return 0
}

// RPCLedger implements Ledger over a Bitcoin Core style wallet RPC
// (bitcoind, litecoind, dogecoind).
type RPCLedger struct {
	rpcURL     string
	rpcUser    string
	rpcPass    string
	net        *chaincfg.Params
	httpClient *http.Client
	requestID  atomic.Uint64
}

// NewRPCLedger creates a ledger talking JSON-RPC to the node at rpcURL.
// Addresses returned by the node are decoded with net.
func NewRPCLedger(cfg *Config, net *chaincfg.Params) *RPCLedger {
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &RPCLedger{
		rpcURL:  cfg.URL,
		rpcUser: cfg.RPCUser,
		rpcPass: cfg.RPCPass,
		net:     net,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BestHeight returns the current block count.
func (r *RPCLedger) BestHeight(ctx context.Context) (int64, error) {
	result, err := r.call(ctx, "getblockcount", []interface{}{})
	if err != nil {
		return 0, err
	}

	var height int64
	if err := json.Unmarshal(result, &height); err != nil {
		return 0, err
	}

	return height, nil
}

// EstimateFeeRate queries estimatesmartfee. Nodes without enough data return
// an errors array instead of a rate; that is reported as ErrFeeUnavailable.
func (r *RPCLedger) EstimateFeeRate(ctx context.Context, target int) (FeeRate, error) {
	result, err := r.call(ctx, "estimatesmartfee", []interface{}{target})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFeeUnavailable, err)
	}

	var feeResult struct {
		FeeRate *decimal.Decimal `json:"feerate"`
		Errors  []string         `json:"errors"`
	}
	if err := json.Unmarshal(result, &feeResult); err != nil {
		return 0, fmt.Errorf("failed to parse estimatesmartfee result: %w", err)
	}

	if feeResult.FeeRate == nil || !feeResult.FeeRate.IsPositive() {
		return 0, fmt.Errorf("%w: %v", ErrFeeUnavailable, feeResult.Errors)
	}

	// estimatesmartfee returns coin/kvB
	return FeeRateFromCoinPerKB(*feeResult.FeeRate), nil
}

// ImportScript imports a redeem script as watch-only, together with its
// P2SH address, without rescanning.
func (r *RPCLedger) ImportScript(ctx context.Context, script []byte) error {
	_, err := r.call(ctx, "importaddress", []interface{}{
		hex.EncodeToString(script),
		"",
		false, // rescan
		true,  // p2sh
	})
	if err != nil {
		return fmt.Errorf("importaddress failed: %w", err)
	}
	return nil
}

// ListUnspent lists wallet outputs paying addr.
func (r *RPCLedger) ListUnspent(ctx context.Context, minConf int, addr btcutil.Address) ([]UTXO, error) {
	result, err := r.call(ctx, "listunspent", []interface{}{
		minConf,
		maxConfirmations,
		[]string{addr.EncodeAddress()},
	})
	if err != nil {
		return nil, fmt.Errorf("listunspent failed: %w", err)
	}

	var unspent []struct {
		TxID          string          `json:"txid"`
		Vout          uint32          `json:"vout"`
		Address       string          `json:"address"`
		ScriptPubKey  string          `json:"scriptPubKey"`
		Amount        decimal.Decimal `json:"amount"`
		Confirmations int64           `json:"confirmations"`
	}
	if err := json.Unmarshal(result, &unspent); err != nil {
		return nil, fmt.Errorf("failed to parse listunspent result: %w", err)
	}

	utxos := make([]UTXO, 0, len(unspent))
	for _, u := range unspent {
		utxos = append(utxos, UTXO{
			TxID:          u.TxID,
			Vout:          u.Vout,
			Amount:        ToSatoshis(u.Amount),
			Address:       u.Address,
			ScriptPubKey:  u.ScriptPubKey,
			Confirmations: u.Confirmations,
		})
	}
	return utxos, nil
}

// ListTransactions pages through the wallet history. The node returns each
// page oldest first; it is reversed here.
func (r *RPCLedger) ListTransactions(ctx context.Context, offset, count int) ([]HistoryEntry, error) {
	result, err := r.call(ctx, "listtransactions", []interface{}{
		"*",
		count,
		offset,
		true, // include_watchonly
	})
	if err != nil {
		return nil, fmt.Errorf("listtransactions failed: %w", err)
	}

	var txs []struct {
		TxID          string          `json:"txid"`
		Category      string          `json:"category"`
		Address       string          `json:"address"`
		Amount        decimal.Decimal `json:"amount"`
		Confirmations int64           `json:"confirmations"`
	}
	if err := json.Unmarshal(result, &txs); err != nil {
		return nil, fmt.Errorf("failed to parse listtransactions result: %w", err)
	}

	entries := make([]HistoryEntry, len(txs))
	for i, tx := range txs {
		entries[len(txs)-1-i] = HistoryEntry{
			TxID:          tx.TxID,
			Category:      tx.Category,
			Address:       tx.Address,
			Amount:        ToSatoshis(tx.Amount),
			Confirmations: tx.Confirmations,
		}
	}
	return entries, nil
}

// GetTransaction fetches a wallet transaction and decodes its raw bytes.
// ErrTxNotFound is returned only when the node does not know the txid.
func (r *RPCLedger) GetTransaction(ctx context.Context, txid string) (*wire.MsgTx, error) {
	result, err := r.call(ctx, "gettransaction", []interface{}{txid, true})
	if err != nil {
		if rpcCode(err) == rpcCodeInvalidAddressOrKey {
			return nil, fmt.Errorf("%w: %s: %v", ErrTxNotFound, txid, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("gettransaction %s failed: %w", txid, err)
	}

	var tx struct {
		Hex string `json:"hex"`
	}
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, fmt.Errorf("failed to parse gettransaction result: %w", err)
	}

	return DeserializeTx(tx.Hex)
}

// Broadcast sends a signed transaction with sendrawtransaction.
func (r *RPCLedger) Broadcast(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error) {
	rawTxHex, err := SerializeTx(tx)
	if err != nil {
		return nil, err
	}

	result, err := r.call(ctx, "sendrawtransaction", []interface{}{rawTxHex})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}

	var txid string
	if err := json.Unmarshal(result, &txid); err != nil {
		return nil, err
	}
	return chainhash.NewHashFromStr(txid)
}

// NewAddress asks the wallet for a fresh receiving address.
func (r *RPCLedger) NewAddress(ctx context.Context) (btcutil.Address, error) {
	// Legacy addresses decode on every chain; bech32 prefixes other than
	// Bitcoin's are unknown to btcutil.
	params := []interface{}{}
	if r.net.Bech32HRPSegwit != "" {
		params = append(params, "", "legacy")
	}
	result, err := r.call(ctx, "getnewaddress", params)
	if err != nil {
		return nil, fmt.Errorf("getnewaddress failed: %w", err)
	}

	var address string
	if err := json.Unmarshal(result, &address); err != nil {
		return nil, err
	}
	return btcutil.DecodeAddress(address, r.net)
}

// FundAndSign lets the wallet pick inputs, add change and sign. Selected
// inputs are locked so concurrent fundings do not pick the same coins.
func (r *RPCLedger) FundAndSign(ctx context.Context, tx *wire.MsgTx) (*wire.MsgTx, error) {
	rawTxHex, err := SerializeTx(tx)
	if err != nil {
		return nil, err
	}

	result, err := r.call(ctx, "fundrawtransaction", []interface{}{
		rawTxHex,
		map[string]interface{}{"lockUnspents": true},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFundingFailed, err)
	}

	var funded struct {
		Hex string `json:"hex"`
	}
	if err := json.Unmarshal(result, &funded); err != nil {
		return nil, fmt.Errorf("failed to parse fundrawtransaction result: %w", err)
	}

	// Dogecoin Core only has the pre-0.17 signrawtransaction.
	result, err = r.call(ctx, "signrawtransactionwithwallet", []interface{}{funded.Hex})
	if rpcCode(err) == rpcCodeMethodNotFound {
		result, err = r.call(ctx, "signrawtransaction", []interface{}{funded.Hex})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFundingFailed, err)
	}

	var signed struct {
		Hex      string `json:"hex"`
		Complete bool   `json:"complete"`
	}
	if err := json.Unmarshal(result, &signed); err != nil {
		return nil, fmt.Errorf("failed to parse signing result: %w", err)
	}
	if !signed.Complete {
		return nil, fmt.Errorf("%w: wallet signature incomplete", ErrFundingFailed)
	}

	return DeserializeTx(signed.Hex)
}

// ============ Common Methods ============

func (r *RPCLedger) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	id := r.requestID.Add(1)

	request := map[string]interface{}{
		"jsonrpc": "1.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}

	data, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.rpcURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if r.rpcUser != "" {
		req.SetBasicAuth(r.rpcUser, r.rpcPass)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var response struct {
		ID     uint64          `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	if response.Error != nil {
		return nil, response.Error
	}

	return response.Result, nil
}

// Ensure RPCLedger implements Ledger
var _ Ledger = (*RPCLedger)(nil)
