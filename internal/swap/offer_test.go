package swap

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/xswap/internal/chain"
)

func TestOfferJSON(t *testing.T) {
	f := newContractFixture(t, 812345)

	data, err := json.Marshal(f.offer)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, f.offer.HashHex(), raw["hash"])
	assert.EqualValues(t, 812345, raw["lock_time"])

	var decoded Offer
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Initiator.PubKey.IsEqual(f.offer.Initiator.PubKey))
	assert.True(t, decoded.Taker.PubKey.IsEqual(f.offer.Taker.PubKey))
	assert.Equal(t, f.offer.Initiator.Asset, decoded.Initiator.Asset)
	assert.Equal(t, f.offer.Taker.Asset, decoded.Taker.Asset)
	assert.Equal(t, f.offer.LockTime, decoded.LockTime)
	assert.Equal(t, f.offer.CounterOfferLockTime, decoded.CounterOfferLockTime)
	assert.Equal(t, f.offer.Hash, decoded.Hash)

	// The counterparty derives the same contract.
	want, err := f.offer.FundingScript()
	require.NoError(t, err)
	got, err := decoded.FundingScript()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOfferJSONRejectsBadFields(t *testing.T) {
	f := newContractFixture(t, 1000)
	data, err := json.Marshal(f.offer)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["hash"] = "abcd"
	bad, err := json.Marshal(raw)
	require.NoError(t, err)

	var decoded Offer
	assert.ErrorIs(t, json.Unmarshal(bad, &decoded), ErrInvalidOffer)

	raw["hash"] = f.offer.HashHex()
	raw["taker"] = map[string]interface{}{"asset": map[string]interface{}{"chain": "LTC", "amount": 1}, "pubkey": "02ff"}
	bad, err = json.Marshal(raw)
	require.NoError(t, err)
	assert.ErrorIs(t, json.Unmarshal(bad, &decoded), ErrInvalidPubKey)
}

func TestCommitmentIsPure(t *testing.T) {
	f := newContractFixture(t, 5000)

	first, err := f.offer.CommitmentScript()
	require.NoError(t, err)
	second, err := f.offer.CommitmentScript()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Amounts are not part of the commitment.
	changed := *f.offer
	changed.Initiator.Asset.Amount++
	changed.CounterOfferLockTime++
	script, err := changed.CommitmentScript()
	require.NoError(t, err)
	assert.Equal(t, first, script)

	// Every committed field changes the script.
	other := newContractFixture(t, 1)
	mutations := map[string]func(o *Offer){
		"hash":          func(o *Offer) { o.Hash[31] ^= 1 },
		"lock time":     func(o *Offer) { o.LockTime++ },
		"taker key":     func(o *Offer) { o.Taker.PubKey = other.takerKey.PubKey() },
		"initiator key": func(o *Offer) { o.Initiator.PubKey = other.initiatorKey.PubKey() },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			o := *f.offer
			mutate(&o)
			script, err := o.CommitmentScript()
			require.NoError(t, err)
			assert.False(t, bytes.Equal(first, script))
		})
	}
}

func TestFundingOutputAndAddress(t *testing.T) {
	f := newContractFixture(t, 5000)
	params, ok := chain.Get("BTC", chain.Mainnet)
	require.True(t, ok)

	out, err := f.offer.FundingOutput()
	require.NoError(t, err)
	assert.Equal(t, f.offer.Initiator.Asset.Amount, out.Value)
	require.Len(t, out.PkScript, 23)

	addr, err := f.offer.FundingAddress(params)
	require.NoError(t, err)
	assert.Equal(t, byte('3'), addr.EncodeAddress()[0])
	assert.Equal(t, out.PkScript[2:22], addr.ScriptAddress())
}

func TestCounterOffer(t *testing.T) {
	f := newContractFixture(t, 5000)
	counter := f.offer.CounterOffer()

	assert.Equal(t, f.offer.Taker.Asset, counter.Initiator.Asset)
	assert.Equal(t, f.offer.Initiator.Asset, counter.Taker.Asset)
	assert.True(t, counter.Initiator.PubKey.IsEqual(f.offer.Taker.PubKey))
	assert.True(t, counter.Taker.PubKey.IsEqual(f.offer.Initiator.PubKey))
	assert.Equal(t, f.offer.CounterOfferLockTime, counter.LockTime)
	assert.Equal(t, f.offer.Hash, counter.Hash)

	// The initiator claims the counter-offer with the same preimage.
	params := f.spendParams(t, f.initiatorKey)
	redeem, err := counter.CommitmentScript()
	require.NoError(t, err)
	params.RedeemScript = redeem
	params.Value = counter.Initiator.Asset.Amount
	tx, err := BuildClaimTx(params, f.preimage)
	require.NoError(t, err)
	cf := &contractFixture{offer: counter}
	assert.NoError(t, cf.execute(t, tx))
}

func TestOfferValidate(t *testing.T) {
	f := newContractFixture(t, 5000)
	require.NoError(t, f.offer.Validate())

	tests := map[string]func(o *Offer){
		"zero amount":   func(o *Offer) { o.Taker.Asset.Amount = 0 },
		"missing chain": func(o *Offer) { o.Initiator.Asset.Chain = " " },
		"same keys":     func(o *Offer) { o.Taker.PubKey = o.Initiator.PubKey },
		"no lock time":  func(o *Offer) { o.CounterOfferLockTime = 0 },
		"no hash":       func(o *Offer) { o.Hash = [32]byte{} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			o := *f.offer
			mutate(&o)
			assert.ErrorIs(t, o.Validate(), ErrInvalidOffer)
		})
	}
}
