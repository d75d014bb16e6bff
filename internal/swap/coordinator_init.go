// Package swap - Swap proposal.
package swap

import (
	"context"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/sync/errgroup"

	"github.com/klingon-exchange/xswap/internal/backend"
)

// Propose creates an offer for the proposal, to be funded by this party on
// chain A and sent to the counterparty owning counterpartyPubKey. A fresh
// contract key and preimage are generated and persisted first.
func (c *Coordinator) Propose(ctx context.Context, proposal *Proposal, counterpartyPubKey *btcec.PublicKey) (*Offer, error) {
	if err := proposal.Validate(); err != nil {
		return nil, err
	}
	if counterpartyPubKey == nil {
		return nil, fmt.Errorf("%w: counterparty key required", ErrInvalidPubKey)
	}

	chainA, err := c.binding(ctx, proposal.From.Chain)
	if err != nil {
		return nil, err
	}
	chainB, err := c.binding(ctx, proposal.To.Chain)
	if err != nil {
		return nil, err
	}

	initiatorBlocks := chainA.Params.BlocksFor(c.windows.Initiator, true)
	takerBlocks := chainB.Params.BlocksFor(c.windows.Taker, false)
	if initiatorBlocks == 0 || takerBlocks == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrWindowTooShort, c.windows.Taker, chainB.Name())
	}

	heightA, heightB, err := c.bestHeights(ctx, chainA, chainB)
	if err != nil {
		return nil, err
	}

	key, err := c.newKey()
	if err != nil {
		return nil, err
	}
	if key.PubKey().IsEqual(counterpartyPubKey) {
		return nil, fmt.Errorf("%w: counterparty key equals own key", ErrInvalidPubKey)
	}

	preimage, hash, err := GenerateSecret()
	if err != nil {
		return nil, err
	}
	if err := c.store.SavePreimage(hash, preimage); err != nil {
		return nil, fmt.Errorf("failed to save preimage: %w", err)
	}

	lockTime, err := lockHeight(heightA, initiatorBlocks)
	if err != nil {
		return nil, err
	}
	counterLockTime, err := lockHeight(heightB, takerBlocks)
	if err != nil {
		return nil, err
	}

	offer := &Offer{
		Initiator: OfferParty{
			Asset:  proposal.From,
			PubKey: key.PubKey(),
		},
		Taker: OfferParty{
			Asset:  proposal.To,
			PubKey: counterpartyPubKey,
		},
		LockTime:             lockTime,
		CounterOfferLockTime: counterLockTime,
		Hash:                 hash,
	}

	if err := c.advance(offer, StateProposed); err != nil {
		return nil, err
	}

	c.log.Info("Offer proposed",
		"hash", offer.HashHex(),
		"from", fmt.Sprintf("%d %s", proposal.From.Amount, chainA.Name()),
		"to", fmt.Sprintf("%d %s", proposal.To.Amount, chainB.Name()),
		"lock_time", offer.LockTime,
		"counter_lock_time", offer.CounterOfferLockTime,
	)
	return offer, nil
}

// bestHeights reads both chain tips concurrently.
func (c *Coordinator) bestHeights(ctx context.Context, a, b *backend.Binding) (int64, int64, error) {
	var heightA, heightB int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := a.Ledger.BestHeight(gctx)
		if err != nil {
			return fmt.Errorf("failed to get %s height: %w", a.Name(), err)
		}
		heightA = h
		return nil
	})
	g.Go(func() error {
		h, err := b.Ledger.BestHeight(gctx)
		if err != nil {
			return fmt.Errorf("failed to get %s height: %w", b.Name(), err)
		}
		heightB = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, 0, ctxErr(ctx, err)
	}
	return heightA, heightB, nil
}

func lockHeight(height int64, blocks uint32) (uint32, error) {
	lock := height + int64(blocks)
	if height < 0 || lock >= math.MaxUint32 {
		return 0, fmt.Errorf("lock height out of range: %d", lock)
	}
	return uint32(lock), nil
}
