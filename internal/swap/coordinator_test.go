package swap

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/xswap/internal/backend"
	"github.com/klingon-exchange/xswap/internal/backend/mock"
	"github.com/klingon-exchange/xswap/internal/chain"
	"github.com/klingon-exchange/xswap/internal/storage"
)

const testPoll = 5 * time.Millisecond

// testNet is a pair of regtest chains shared by both parties of a swap.
type testNet struct {
	btc, ltc             *chain.Params
	btcLedger, ltcLedger *mock.Ledger
}

func newTestNet(t *testing.T) *testNet {
	t.Helper()
	btc, ok := chain.Get("BTC", chain.Regtest)
	require.True(t, ok)
	ltc, ok := chain.Get("LTC", chain.Regtest)
	require.True(t, ok)

	return &testNet{
		btc:       btc,
		ltc:       ltc,
		btcLedger: mock.New(btc.ChainConfig(), 1000),
		ltcLedger: mock.New(ltc.ChainConfig(), 5000),
	}
}

type party struct {
	*Coordinator
	store    storage.SecretStore
	bindings map[string]*backend.Binding
}

func (n *testNet) newParty(t *testing.T) *party {
	t.Helper()
	return n.newPartyOn(t, n.btcLedger)
}

// newPartyOn creates a party reaching BTC through btcLedger.
func (n *testNet) newPartyOn(t *testing.T, btcLedger backend.Ledger) *party {
	t.Helper()
	store, err := storage.New(&storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := backend.NewRegistry()
	bindings := map[string]*backend.Binding{
		"BTC": backend.NewBinding(n.btc, btcLedger, backend.DefaultFeePolicy()),
		"LTC": backend.NewBinding(n.ltc, n.ltcLedger, backend.DefaultFeePolicy()),
	}
	for _, b := range bindings {
		require.NoError(t, reg.Register(b))
	}

	c, err := NewCoordinator(&CoordinatorConfig{
		Registry:     reg,
		Store:        store,
		PollInterval: testPoll,
	})
	require.NoError(t, err)
	return &party{Coordinator: c, store: store, bindings: bindings}
}

func testProposal() *Proposal {
	return &Proposal{
		From: ChainAsset{Chain: "btc", Amount: 1000000},
		To:   ChainAsset{Chain: "ltc", Amount: 40000000},
	}
}

func withTimeout(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func swapState(t *testing.T, p *party, hash [32]byte) State {
	t.Helper()
	rec, err := p.State(hash)
	require.NoError(t, err)
	return rec.State
}

func TestNewCoordinatorRejectsWindows(t *testing.T) {
	_, err := NewCoordinator(&CoordinatorConfig{
		Registry: backend.NewRegistry(),
		Store:    nil,
	})
	assert.Error(t, err)

	n := newTestNet(t)
	p := n.newParty(t)
	_, err = NewCoordinator(&CoordinatorConfig{
		Registry: backend.NewRegistry(),
		Store:    p.store,
		Windows:  Windows{Initiator: time.Hour, Taker: time.Hour},
	})
	assert.ErrorIs(t, err, ErrInvalidWindows)
}

func TestProposeLockTimes(t *testing.T) {
	n := newTestNet(t)
	alice := n.newParty(t)
	bobKey, err := n.newParty(t).NewPubKey()
	require.NoError(t, err)

	offer, err := alice.Propose(context.Background(), testProposal(), bobKey)
	require.NoError(t, err)

	// 2h of 10 minute blocks, 1h of 2.5 minute blocks.
	assert.Equal(t, uint32(1000+12), offer.LockTime)
	assert.Equal(t, uint32(5000+24), offer.CounterOfferLockTime)
	assert.Equal(t, "btc", offer.Initiator.Asset.Chain)
	assert.True(t, offer.Taker.PubKey.IsEqual(bobKey))
	assert.Equal(t, StateProposed, swapState(t, alice, offer.Hash))
}

func TestProposeFreshSecrets(t *testing.T) {
	n := newTestNet(t)
	alice := n.newParty(t)
	bobKey, err := n.newParty(t).NewPubKey()
	require.NoError(t, err)

	first, err := alice.Propose(context.Background(), testProposal(), bobKey)
	require.NoError(t, err)
	second, err := alice.Propose(context.Background(), testProposal(), bobKey)
	require.NoError(t, err)

	assert.NotEqual(t, first.Hash, second.Hash)
	assert.False(t, first.Initiator.PubKey.IsEqual(second.Initiator.PubKey))

	for _, offer := range []*Offer{first, second} {
		preimage, err := alice.store.GetPreimage(offer.Hash)
		require.NoError(t, err)
		assert.True(t, VerifySecret(preimage, offer.Hash))

		priv, err := alice.store.GetPrivateKey(offer.Initiator.PubKey.SerializeCompressed())
		require.NoError(t, err)
		key, _ := btcec.PrivKeyFromBytes(priv)
		assert.True(t, key.PubKey().IsEqual(offer.Initiator.PubKey))
	}

	swaps, err := alice.ListSwaps()
	require.NoError(t, err)
	assert.Len(t, swaps, 2)
}

func TestProposeUnknownChain(t *testing.T) {
	n := newTestNet(t)
	alice := n.newParty(t)
	bobKey, err := n.newParty(t).NewPubKey()
	require.NoError(t, err)

	proposal := testProposal()
	proposal.To.Chain = "XMR"
	_, err = alice.Propose(context.Background(), proposal, bobKey)
	assert.ErrorIs(t, err, backend.ErrChainUnknown)
}

func TestProposeWindowTooShort(t *testing.T) {
	n := newTestNet(t)
	alice := n.newParty(t)

	// A chain whose blocks are slower than the taker window.
	slow := *n.ltc
	slow.Symbol = "SLOW"
	slow.Name = "Slow Chain"
	slow.Aliases = nil
	slow.AvgBlockTime = 90 * time.Minute
	slowReg := backend.NewRegistry()
	require.NoError(t, slowReg.Register(alice.bindings["BTC"]))
	require.NoError(t, slowReg.Register(backend.NewBinding(&slow, n.ltcLedger, backend.DefaultFeePolicy())))
	c, err := NewCoordinator(&CoordinatorConfig{Registry: slowReg, Store: alice.store, PollInterval: testPoll})
	require.NoError(t, err)

	bobKey, err := n.newParty(t).NewPubKey()
	require.NoError(t, err)
	proposal := testProposal()
	proposal.To.Chain = "SLOW"
	_, err = c.Propose(context.Background(), proposal, bobKey)
	assert.ErrorIs(t, err, ErrWindowTooShort)
}

func TestLockWindowMargin(t *testing.T) {
	windows := DefaultWindows()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		a := &chain.Params{AvgBlockTime: time.Duration(1+rng.Int63n(int64(3*time.Hour/time.Second))) * time.Second}
		b := &chain.Params{AvgBlockTime: time.Duration(1+rng.Int63n(int64(3*time.Hour/time.Second))) * time.Second}

		initiatorBlocks := a.BlocksFor(windows.Initiator, true)
		takerBlocks := b.BlocksFor(windows.Taker, false)
		if takerBlocks == 0 {
			assert.Greater(t, b.AvgBlockTime, windows.Taker)
			continue
		}

		initiatorSpan := time.Duration(initiatorBlocks) * a.AvgBlockTime
		takerSpan := time.Duration(takerBlocks) * b.AvgBlockTime
		require.GreaterOrEqual(t, initiatorSpan-takerSpan, windows.Initiator-windows.Taker,
			"intervals %s / %s", a.AvgBlockTime, b.AvgBlockTime)
	}
}

func TestFundAndBroadcast(t *testing.T) {
	n := newTestNet(t)
	alice := n.newParty(t)
	bobKey, err := n.newParty(t).NewPubKey()
	require.NoError(t, err)

	offer, err := alice.Propose(context.Background(), testProposal(), bobKey)
	require.NoError(t, err)
	redeem, err := offer.CommitmentScript()
	require.NoError(t, err)

	txid, err := alice.FundAndBroadcast(context.Background(), offer, true)
	require.NoError(t, err)
	assert.True(t, n.btcLedger.Imported(redeem))
	assert.Equal(t, StateFunded, swapState(t, alice, offer.Hash))

	tx, err := n.btcLedger.GetTransaction(context.Background(), txid.String())
	require.NoError(t, err)
	want, err := offer.FundingOutput()
	require.NoError(t, err)
	require.NotEmpty(t, tx.TxOut)
	assert.Equal(t, want, tx.TxOut[0])
}

func TestFundAndBroadcastFailureKeepsState(t *testing.T) {
	n := newTestNet(t)
	alice := n.newParty(t)
	bobKey, err := n.newParty(t).NewPubKey()
	require.NoError(t, err)

	offer, err := alice.Propose(context.Background(), testProposal(), bobKey)
	require.NoError(t, err)

	n.btcLedger.SetBroadcastError(errors.New("mempool full"))
	_, err = alice.FundAndBroadcast(context.Background(), offer, false)
	assert.ErrorIs(t, err, backend.ErrBroadcastFailed)
	assert.Equal(t, StateProposed, swapState(t, alice, offer.Hash))
}

func TestWaitForFundingStrictAmount(t *testing.T) {
	n := newTestNet(t)
	alice := n.newParty(t)
	bob := n.newParty(t)
	bobKey, err := bob.NewPubKey()
	require.NoError(t, err)

	offer, err := alice.Propose(context.Background(), testProposal(), bobKey)
	require.NoError(t, err)
	addr, err := offer.FundingAddress(n.btc)
	require.NoError(t, err)

	_, err = n.btcLedger.Pay(addr, offer.Initiator.Asset.Amount+1)
	require.NoError(t, err)
	_, err = n.btcLedger.Pay(addr, offer.Initiator.Asset.Amount-1)
	require.NoError(t, err)

	_, err = bob.WaitForFunding(withTimeout(t, 50*time.Millisecond), offer, 1)
	assert.Equal(t, context.DeadlineExceeded, err)

	exact, err := n.btcLedger.Pay(addr, offer.Initiator.Asset.Amount)
	require.NoError(t, err)

	got, err := bob.WaitForFunding(withTimeout(t, 5*time.Second), offer, 1)
	require.NoError(t, err)
	assert.Equal(t, *exact, *got)

	script, err := offer.FundingScript()
	require.NoError(t, err)
	stored, err := bob.store.GetFunding(script)
	require.NoError(t, err)
	assert.Equal(t, *exact, *stored)
}

func TestWaitForFundingMinConf(t *testing.T) {
	n := newTestNet(t)
	alice := n.newParty(t)
	bobKey, err := n.newParty(t).NewPubKey()
	require.NoError(t, err)

	offer, err := alice.Propose(context.Background(), testProposal(), bobKey)
	require.NoError(t, err)
	_, err = alice.FundAndBroadcast(context.Background(), offer, false)
	require.NoError(t, err)

	_, err = alice.WaitForFunding(withTimeout(t, 30*time.Millisecond), offer, 1)
	assert.Equal(t, context.DeadlineExceeded, err)

	n.btcLedger.Mine(1)
	_, err = alice.WaitForFunding(withTimeout(t, 5*time.Second), offer, 1)
	assert.NoError(t, err)
}

// disclosureFixture places a transaction revealing a preimage in the BTC
// history at the given depth, under newer unrelated transactions. It returns
// the offer and the txid of the reveal.
func disclosureFixture(t *testing.T, n *testNet, depth int64, category string) (*Offer, string) {
	t.Helper()
	f := newContractFixture(t, 2000)

	reveal := wire.NewMsgTx(wire.TxVersion)
	sigScript, err := txscript.NewScriptBuilder().
		AddData(make([]byte, 71)).
		AddData(f.preimage).
		AddOp(txscript.OP_TRUE).
		Script()
	require.NoError(t, err)
	reveal.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 7}, sigScript, nil))
	reveal.AddTxOut(wire.NewTxOut(1000, []byte{txscript.OP_TRUE}))

	height, err := n.btcLedger.BestHeight(context.Background())
	require.NoError(t, err)
	revealID := n.btcLedger.AddTransaction(reveal, category, height-depth+1)

	for i := 0; i < 15; i++ {
		filler := wire.NewMsgTx(wire.TxVersion)
		filler.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: uint32(100 + i)}, []byte{txscript.OP_TRUE}, nil))
		filler.AddTxOut(wire.NewTxOut(int64(1000+i), []byte{txscript.OP_TRUE}))
		n.btcLedger.AddTransaction(filler, backend.CategoryReceive, height)
	}
	return f.offer, revealID.String()
}

// flakyLedger fails the first lookups of one transaction.
type flakyLedger struct {
	*mock.Ledger

	mu       sync.Mutex
	txid     string
	failures int
	err      error
}

func (l *flakyLedger) GetTransaction(ctx context.Context, txid string) (*wire.MsgTx, error) {
	l.mu.Lock()
	if txid == l.txid && l.failures > 0 {
		l.failures--
		l.mu.Unlock()
		return nil, l.err
	}
	l.mu.Unlock()
	return l.Ledger.GetTransaction(ctx, txid)
}

func TestWaitForDisclosureFindsRecentReveal(t *testing.T) {
	n := newTestNet(t)
	bob := n.newParty(t)
	offer, _ := disclosureFixture(t, n, 5, backend.CategorySend)

	found, err := bob.WaitForDisclosure(withTimeout(t, 5*time.Second), offer)
	require.NoError(t, err)
	assert.True(t, found)

	preimage, err := bob.store.GetPreimage(offer.Hash)
	require.NoError(t, err)
	assert.True(t, VerifySecret(preimage, offer.Hash))
	assert.Equal(t, StateDisclosed, swapState(t, bob, offer.Hash))
}

func TestWaitForDisclosureIgnoresStaleReveal(t *testing.T) {
	n := newTestNet(t)
	bob := n.newParty(t)
	offer, _ := disclosureFixture(t, n, 200, backend.CategorySend)

	found, err := bob.WaitForDisclosure(withTimeout(t, 100*time.Millisecond), offer)
	assert.False(t, found)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Greater(t, n.btcLedger.ListTransactionsCalls(), 2, "scan restarts from the tip")

	_, err = bob.store.GetPreimage(offer.Hash)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWaitForDisclosureSkipsCoinbase(t *testing.T) {
	n := newTestNet(t)
	bob := n.newParty(t)
	offer, _ := disclosureFixture(t, n, 5, backend.CategoryGenerate)

	found, err := bob.WaitForDisclosure(withTimeout(t, 50*time.Millisecond), offer)
	assert.False(t, found)
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestWaitForDisclosureStaleEntryAboveReveal(t *testing.T) {
	n := newTestNet(t)
	bob := n.newParty(t)
	f := newContractFixture(t, 2000)

	sigScript, err := txscript.NewScriptBuilder().
		AddData(make([]byte, 71)).
		AddData(f.preimage).
		AddOp(txscript.OP_TRUE).
		Script()
	require.NoError(t, err)
	reveal := wire.NewMsgTx(wire.TxVersion)
	reveal.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 9}, sigScript, nil))
	reveal.AddTxOut(wire.NewTxOut(1000, []byte{txscript.OP_TRUE}))
	n.btcLedger.AddTransaction(reveal, backend.CategorySend, 1000-4)

	// An old transaction imported later is listed above the reveal.
	old := wire.NewMsgTx(wire.TxVersion)
	old.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 1}, []byte{txscript.OP_TRUE}, nil))
	old.AddTxOut(wire.NewTxOut(5000, []byte{txscript.OP_TRUE}))
	n.btcLedger.AddTransaction(old, backend.CategoryReceive, 1000-199)

	found, err := bob.WaitForDisclosure(withTimeout(t, 5*time.Second), f.offer)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestWaitForDisclosureRetriesUnknownTransaction(t *testing.T) {
	n := newTestNet(t)
	offer, revealID := disclosureFixture(t, n, 5, backend.CategorySend)
	flaky := &flakyLedger{Ledger: n.btcLedger, txid: revealID, failures: 1, err: backend.ErrTxNotFound}
	bob := n.newPartyOn(t, flaky)

	found, err := bob.WaitForDisclosure(withTimeout(t, 5*time.Second), offer)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, StateDisclosed, swapState(t, bob, offer.Hash))
}

func TestWaitForDisclosureReturnsLedgerErrors(t *testing.T) {
	n := newTestNet(t)
	offer, revealID := disclosureFixture(t, n, 5, backend.CategorySend)
	flaky := &flakyLedger{Ledger: n.btcLedger, txid: revealID, failures: 1, err: backend.ErrNotConnected}
	bob := n.newPartyOn(t, flaky)

	found, err := bob.WaitForDisclosure(withTimeout(t, 5*time.Second), offer)
	assert.False(t, found)
	assert.ErrorIs(t, err, backend.ErrNotConnected)

	// The reveal is not lost: the next watch finds it.
	found, err = bob.WaitForDisclosure(withTimeout(t, 5*time.Second), offer)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestWaitForDisclosureCancel(t *testing.T) {
	n := newTestNet(t)
	bob := n.newParty(t)
	offer := newContractFixture(t, 2000).offer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := bob.WaitForDisclosure(ctx, offer)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForDisclosure did not return after cancel")
	}
}

func TestClaimPreconditions(t *testing.T) {
	n := newTestNet(t)
	bob := n.newParty(t)
	ctx := context.Background()

	f := newContractFixture(t, 2000)
	offer := f.offer

	_, err := bob.Claim(ctx, offer)
	assert.ErrorIs(t, err, ErrUnknownPreimage)
	assert.ErrorIs(t, err, ErrPreconditionMissing)

	require.NoError(t, bob.store.SavePreimage(offer.Hash, f.preimage))
	_, err = bob.Claim(ctx, offer)
	assert.ErrorIs(t, err, ErrUnknownKey)

	require.NoError(t, bob.store.SaveKey(f.takerKey.PubKey().SerializeCompressed(), f.takerKey.Serialize()))
	_, err = bob.Claim(ctx, offer)
	assert.ErrorIs(t, err, ErrUnknownFunding)
	assert.ErrorIs(t, err, ErrPreconditionMissing)

	_, err = bob.WaitForClaimConfirmation(ctx, offer)
	assert.ErrorIs(t, err, ErrUnknownClaim)
}

func TestClaimFeeFallbackOnTestNetwork(t *testing.T) {
	n := newTestNet(t)
	bob := n.newParty(t)
	ctx := context.Background()

	f := newContractFixture(t, 2000)
	offer := f.offer
	addr, err := offer.FundingAddress(n.btc)
	require.NoError(t, err)
	_, err = n.btcLedger.Pay(addr, offer.Initiator.Asset.Amount)
	require.NoError(t, err)

	require.NoError(t, bob.store.SavePreimage(offer.Hash, f.preimage))
	require.NoError(t, bob.store.SaveKey(f.takerKey.PubKey().SerializeCompressed(), f.takerKey.Serialize()))
	_, err = bob.WaitForFunding(withTimeout(t, 5*time.Second), offer, 1)
	require.NoError(t, err)

	n.btcLedger.SetFeeError(backend.ErrFeeUnavailable)
	txid, err := bob.Claim(ctx, offer)
	require.NoError(t, err)

	tx, err := n.btcLedger.GetTransaction(ctx, txid.String())
	require.NoError(t, err)
	fallback := backend.FeeRateFromSatPerVByte(backend.DefaultFallbackFeeRate)
	fee := offer.Initiator.Asset.Amount - tx.TxOut[0].Value
	assert.GreaterOrEqual(t, fee, fallback.FeeForVSize(VirtualSize(tx)))
	assert.LessOrEqual(t, fee, fallback.FeeForVSize(VirtualSize(tx)+4))
	assert.Equal(t, StateClaimed, swapState(t, bob, offer.Hash))
}

// claimFailStore fails to record claims.
type claimFailStore struct {
	storage.SecretStore
}

func (claimFailStore) SaveClaim([32]byte, *storage.ClaimRecord) error {
	return errors.New("disk full")
}

func TestClaimNotJournaledWithoutRecord(t *testing.T) {
	n := newTestNet(t)
	bob := n.newParty(t)
	ctx := context.Background()

	f := newContractFixture(t, 2000)
	offer := f.offer
	addr, err := offer.FundingAddress(n.btc)
	require.NoError(t, err)
	_, err = n.btcLedger.Pay(addr, offer.Initiator.Asset.Amount)
	require.NoError(t, err)

	require.NoError(t, bob.store.SavePreimage(offer.Hash, f.preimage))
	require.NoError(t, bob.store.SaveKey(f.takerKey.PubKey().SerializeCompressed(), f.takerKey.Serialize()))
	_, err = bob.WaitForFunding(withTimeout(t, 5*time.Second), offer, 1)
	require.NoError(t, err)

	bob.Coordinator.store = claimFailStore{SecretStore: bob.store}
	_, err = bob.Claim(ctx, offer)
	require.Error(t, err)

	assert.Equal(t, StateFunded, swapState(t, bob, offer.Hash))
	_, err = bob.store.GetClaim(offer.Hash)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProductionChainRequiresFeeEstimates(t *testing.T) {
	n := newTestNet(t)
	alice := n.newParty(t)
	alice.bindings["BTC"].SetProduction(true)
	n.btcLedger.SetFeeError(backend.ErrFeeUnavailable)

	bobKey, err := n.newParty(t).NewPubKey()
	require.NoError(t, err)
	_, err = alice.Propose(context.Background(), testProposal(), bobKey)
	assert.ErrorIs(t, err, backend.ErrConfiguration)
}

// transmit sends an offer through its wire encoding.
func transmit(t *testing.T, offer *Offer) *Offer {
	t.Helper()
	data, err := json.Marshal(offer)
	require.NoError(t, err)
	var received Offer
	require.NoError(t, json.Unmarshal(data, &received))
	return &received
}

func TestSwapEndToEnd(t *testing.T) {
	n := newTestNet(t)
	alice := n.newParty(t)
	bob := n.newParty(t)
	ctx := withTimeout(t, 10*time.Second)

	bobKey, err := bob.NewPubKey()
	require.NoError(t, err)

	// Alice proposes and locks BTC.
	offer, err := alice.Propose(ctx, testProposal(), bobKey)
	require.NoError(t, err)
	_, err = alice.FundAndBroadcast(ctx, offer, true)
	require.NoError(t, err)
	n.btcLedger.Mine(1)

	// Bob checks Alice's leg, then locks LTC under the same hash.
	received := transmit(t, offer)
	require.NoError(t, received.Validate())
	_, err = bob.WaitForFunding(ctx, received, 1)
	require.NoError(t, err)

	counter := received.CounterOffer()
	_, err = bob.FundAndBroadcast(ctx, counter, true)
	require.NoError(t, err)
	n.ltcLedger.Mine(1)

	// Alice claims the LTC, revealing the preimage.
	aliceCounter := offer.CounterOffer()
	_, err = alice.WaitForFunding(ctx, aliceCounter, 1)
	require.NoError(t, err)
	_, err = alice.Claim(ctx, aliceCounter)
	require.NoError(t, err)
	n.ltcLedger.Mine(1)
	_, err = alice.WaitForClaimConfirmation(ctx, aliceCounter)
	require.NoError(t, err)

	// Bob learns the preimage from the LTC chain and claims the BTC.
	found, err := bob.WaitForDisclosure(ctx, counter)
	require.NoError(t, err)
	require.True(t, found)
	_, err = bob.Claim(ctx, received)
	require.NoError(t, err)
	n.btcLedger.Mine(1)
	bobClaim, err := bob.WaitForClaimConfirmation(ctx, received)
	require.NoError(t, err)

	assert.Equal(t, StateClaimed, swapState(t, alice, offer.Hash))
	assert.Equal(t, StateClaimed, swapState(t, bob, offer.Hash))

	claim, err := bob.store.GetClaim(offer.Hash)
	require.NoError(t, err)
	assert.Equal(t, bobClaim.Hash.String(), claim.TxID)

	// The claim pays the amount minus the fee estimated for the spend,
	// sized with a maximum length signature.
	claimTx, err := n.btcLedger.GetTransaction(ctx, claim.TxID)
	require.NoError(t, err)
	rate, err := bob.bindings["BTC"].FeeRate(ctx)
	require.NoError(t, err)
	preimage, err := bob.store.GetPreimage(offer.Hash)
	require.NoError(t, err)
	redeem, err := received.CommitmentScript()
	require.NoError(t, err)
	sized := claimTx.Copy()
	sized.TxIn[0].SignatureScript, err = BuildClaimScriptSig(make([]byte, maxSigLen), preimage, redeem)
	require.NoError(t, err)
	fee := rate.FeeForVSize(VirtualSize(sized))
	assert.Equal(t, offer.Initiator.Asset.Amount-fee, claim.Value)
	assert.Equal(t, claim.Value, claimTx.TxOut[0].Value)

	// Each party's journal keeps the offer it started with.
	rec, err := alice.State(offer.Hash)
	require.NoError(t, err)
	var journaled Offer
	require.NoError(t, json.Unmarshal(rec.Offer, &journaled))
	assert.Equal(t, offer.Initiator.Asset, journaled.Initiator.Asset)
	assert.True(t, journaled.Initiator.PubKey.IsEqual(offer.Initiator.PubKey))
}
