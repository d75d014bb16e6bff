package swap

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// HTLCScriptData holds the components of a swap contract script.
type HTLCScriptData struct {
	Hash            [32]byte // SHA256 hash that must be revealed to claim
	TakerPubKey     []byte   // Who can claim with the preimage
	InitiatorPubKey []byte   // Who can refund after LockTime
	LockTime        uint32   // absolute CLTV height
}

// BuildHTLCScript creates the redeem script of a swap contract.
//
// Script structure:
//
//	OP_IF
//	    OP_SHA256 <hash> OP_EQUALVERIFY <taker_pubkey>
//	OP_ELSE
//	    <lock_time> OP_CHECKLOCKTIMEVERIFY OP_DROP <initiator_pubkey>
//	OP_ENDIF
//	OP_CHECKSIG
//
// Claim path (OP_IF branch): preimage + taker signature.
// Refund path (OP_ELSE branch): initiator signature once the chain reaches
// lock_time.
func BuildHTLCScript(hash [32]byte, takerPubKey, initiatorPubKey []byte, lockTime uint32) ([]byte, error) {
	if len(takerPubKey) != btcec.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("taker pubkey must be 33 bytes (compressed), got %d", len(takerPubKey))
	}
	if len(initiatorPubKey) != btcec.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("initiator pubkey must be 33 bytes (compressed), got %d", len(initiatorPubKey))
	}
	if lockTime == 0 {
		return nil, fmt.Errorf("lock time must be greater than 0")
	}
	if lockTime >= txscript.LockTimeThreshold {
		return nil, fmt.Errorf("lock time %d is not a block height", lockTime)
	}

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(hash[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddData(takerPubKey)

	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(lockTime))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(initiatorPubKey)

	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// ParseHTLCScript extracts the components of a script built by
// BuildHTLCScript.
func ParseHTLCScript(script []byte) (*HTLCScriptData, error) {
	type token struct {
		op   byte
		data []byte
	}
	var tokens []token
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		tokens = append(tokens, token{op: tokenizer.Opcode(), data: tokenizer.Data()})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if len(tokens) != 12 {
		return nil, fmt.Errorf("%w: %d opcodes", ErrInvalidScript, len(tokens))
	}

	expect := map[int]byte{
		0:  txscript.OP_IF,
		1:  txscript.OP_SHA256,
		3:  txscript.OP_EQUALVERIFY,
		5:  txscript.OP_ELSE,
		7:  txscript.OP_CHECKLOCKTIMEVERIFY,
		8:  txscript.OP_DROP,
		10: txscript.OP_ENDIF,
		11: txscript.OP_CHECKSIG,
	}
	for i, op := range expect {
		if tokens[i].op != op {
			return nil, fmt.Errorf("%w: unexpected opcode at %d", ErrInvalidScript, i)
		}
	}

	data := &HTLCScriptData{
		TakerPubKey:     tokens[4].data,
		InitiatorPubKey: tokens[9].data,
	}
	if len(tokens[2].data) != 32 {
		return nil, fmt.Errorf("%w: hash length %d", ErrInvalidScript, len(tokens[2].data))
	}
	copy(data.Hash[:], tokens[2].data)
	if len(data.TakerPubKey) != btcec.PubKeyBytesLenCompressed || len(data.InitiatorPubKey) != btcec.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("%w: bad pubkey length", ErrInvalidScript)
	}

	lockTime, err := decodeScriptInt(tokens[6].op, tokens[6].data)
	if err != nil {
		return nil, err
	}
	data.LockTime = lockTime

	rebuilt, err := BuildHTLCScript(data.Hash, data.TakerPubKey, data.InitiatorPubKey, data.LockTime)
	if err != nil || !bytes.Equal(rebuilt, script) {
		return nil, fmt.Errorf("%w: non-canonical encoding", ErrInvalidScript)
	}
	return data, nil
}

// decodeScriptInt reads a positive minimally-encoded script number.
func decodeScriptInt(op byte, data []byte) (uint32, error) {
	if op >= txscript.OP_1 && op <= txscript.OP_16 {
		return uint32(op-txscript.OP_1) + 1, nil
	}
	if len(data) == 0 || len(data) > 5 {
		return 0, fmt.Errorf("%w: bad lock time push", ErrInvalidScript)
	}
	if data[len(data)-1]&0x80 != 0 {
		return 0, fmt.Errorf("%w: negative lock time", ErrInvalidScript)
	}
	var n uint64
	for i, b := range data {
		n |= uint64(b) << (8 * i)
	}
	if n > 0xFFFFFFFF {
		return 0, fmt.Errorf("%w: lock time overflow", ErrInvalidScript)
	}
	return uint32(n), nil
}

// BuildP2SHScriptPubKey creates the P2SH output script for a redeem script.
// Format: OP_HASH160 <hash160(script)> OP_EQUAL
func BuildP2SHScriptPubKey(redeemScript []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(redeemScript)).
		AddOp(txscript.OP_EQUAL).
		Script()
}

// BuildClaimScriptSig creates the claim path signature script.
// Format: <sig> <preimage> OP_TRUE <redeem_script>
func BuildClaimScriptSig(sig, preimage, redeemScript []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddData(sig).
		AddData(preimage).
		AddOp(txscript.OP_TRUE).
		AddData(redeemScript).
		Script()
}

// BuildRefundScriptSig creates the refund path signature script. The
// spending transaction must carry nLockTime >= the contract lock time.
// Format: <sig> OP_FALSE <redeem_script>
func BuildRefundScriptSig(sig, redeemScript []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddData(sig).
		AddOp(txscript.OP_FALSE).
		AddData(redeemScript).
		Script()
}

// scriptPushes returns every data push of a script, in order. A malformed
// tail is ignored.
func scriptPushes(script []byte) [][]byte {
	var pushes [][]byte
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		if data := tokenizer.Data(); len(data) > 0 {
			pushes = append(pushes, data)
		}
	}
	return pushes
}
