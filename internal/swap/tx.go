package swap

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/xswap/internal/backend"
)

// DustLimit is the smallest output a claim may create.
const DustLimit = 546

// maxSigLen is the longest DER signature plus sighash byte. Fees are sized
// against it so the real signature never makes the transaction bigger.
const maxSigLen = 73

var (
	ErrMissingKey    = errors.New("private key required")
	ErrMissingScript = errors.New("redeem script required")
)

// SpendTxParams contains parameters for spending a contract output.
type SpendTxParams struct {
	// Input (the P2SH contract output)
	OutPoint wire.OutPoint
	Value    int64

	RedeemScript []byte

	// Destination output script; receives Value minus the fee.
	DestScript []byte

	FeeRate backend.FeeRate

	// Key signs for the branch being spent.
	Key *btcec.PrivateKey
}

func (p *SpendTxParams) validate() error {
	if p.Key == nil {
		return ErrMissingKey
	}
	if len(p.RedeemScript) == 0 {
		return ErrMissingScript
	}
	if len(p.DestScript) == 0 {
		return fmt.Errorf("destination script required")
	}
	if p.Value <= 0 {
		return fmt.Errorf("contract value must be positive, got %d", p.Value)
	}
	return nil
}

// BuildClaimTx creates a transaction spending a contract through the
// preimage branch. The claimer pays the fee out of the contract value.
//
// Signature script: <sig> <preimage> OP_TRUE <redeem_script>
func BuildClaimTx(params *SpendTxParams, preimage []byte) (*wire.MsgTx, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(preimage) != PreimageSize {
		return nil, fmt.Errorf("preimage must be 32 bytes, got %d", len(preimage))
	}

	scriptSig := func(sig []byte) ([]byte, error) {
		return BuildClaimScriptSig(sig, preimage, params.RedeemScript)
	}
	return buildSpendTx(params, 0, wire.MaxTxInSequenceNum, scriptSig)
}

// BuildRefundTx creates a transaction spending a contract through the
// timeout branch. It is only valid once the chain reaches lockTime.
//
// Signature script: <sig> OP_FALSE <redeem_script>
func BuildRefundTx(params *SpendTxParams, lockTime uint32) (*wire.MsgTx, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if lockTime == 0 {
		return nil, fmt.Errorf("lock time required for refund")
	}

	scriptSig := func(sig []byte) ([]byte, error) {
		return BuildRefundScriptSig(sig, params.RedeemScript)
	}
	// A final sequence would disable nLockTime.
	return buildSpendTx(params, lockTime, wire.MaxTxInSequenceNum-1, scriptSig)
}

func buildSpendTx(params *SpendTxParams, lockTime, sequence uint32, scriptSig func(sig []byte) ([]byte, error)) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.LockTime = lockTime

	txIn := wire.NewTxIn(&params.OutPoint, nil, nil)
	txIn.Sequence = sequence
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(params.Value, params.DestScript))

	// Size the transaction with a placeholder signature.
	placeholder, err := scriptSig(make([]byte, maxSigLen))
	if err != nil {
		return nil, fmt.Errorf("failed to build signature script: %w", err)
	}
	tx.TxIn[0].SignatureScript = placeholder

	fee := params.FeeRate.FeeForVSize(VirtualSize(tx))
	outValue := params.Value - fee
	if outValue < DustLimit {
		return nil, fmt.Errorf("%w: value %d, fee %d", ErrDustOutput, params.Value, fee)
	}
	tx.TxOut[0].Value = outValue

	sig, err := txscript.RawTxInSignature(tx, 0, params.RedeemScript, txscript.SigHashAll, params.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	final, err := scriptSig(sig)
	if err != nil {
		return nil, fmt.Errorf("failed to build signature script: %w", err)
	}
	tx.TxIn[0].SignatureScript = final

	return tx, nil
}

// VirtualSize returns the BIP141 virtual size of a transaction.
func VirtualSize(tx *wire.MsgTx) int64 {
	base := int64(tx.SerializeSizeStripped())
	total := int64(tx.SerializeSize())
	weight := base*3 + total
	return (weight + 3) / 4
}
