// Package swap - Coordinator manages the swap flow of one party.
package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/klingon-exchange/xswap/internal/backend"
	"github.com/klingon-exchange/xswap/internal/storage"
	"github.com/klingon-exchange/xswap/internal/wallet"
	"github.com/klingon-exchange/xswap/pkg/logging"
)

// NewCoordinator creates a new swap coordinator.
func NewCoordinator(cfg *CoordinatorConfig) (*Coordinator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("coordinator requires a chain registry")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("coordinator requires a secret store")
	}

	windows := cfg.Windows
	if windows == (Windows{}) {
		windows = DefaultWindows()
	}
	if err := windows.Validate(); err != nil {
		return nil, err
	}

	keys := cfg.Keys
	if keys == nil {
		keys = wallet.RandomSource{}
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault().Component("swap")
	}

	scan := newHistoryScan(cfg.HistoryPageSize, cfg.StaleConfirmations)

	return &Coordinator{
		registry:     cfg.Registry,
		store:        cfg.Store,
		keys:         keys,
		windows:      windows,
		pollInterval: pollInterval,
		pageSize:     scan.pageSize,
		staleDepth:   scan.staleDepth,
		log:          log,
	}, nil
}

// NewPubKey creates and stores a fresh contract key, returning its public
// half. A taker hands it to the initiator before a proposal.
func (c *Coordinator) NewPubKey() (*btcec.PublicKey, error) {
	key, err := c.newKey()
	if err != nil {
		return nil, err
	}
	return key.PubKey(), nil
}

// State returns the journal entry of the swap with the given hash.
func (c *Coordinator) State(hash [32]byte) (*storage.SwapRecord, error) {
	rec, err := c.store.GetSwap(hash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %x", ErrSwapNotFound, hash)
	}
	return rec, err
}

// ListSwaps returns every swap in the journal.
func (c *Coordinator) ListSwaps() ([]*storage.SwapRecord, error) {
	return c.store.ListSwaps()
}

// newKey generates a contract key and persists it before it is used.
func (c *Coordinator) newKey() (*btcec.PrivateKey, error) {
	key, err := c.keys.NewKey()
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveKey(key.PubKey().SerializeCompressed(), key.Serialize()); err != nil {
		return nil, fmt.Errorf("failed to save key: %w", err)
	}
	return key, nil
}

// binding resolves a chain and checks it is ready for use.
func (c *Coordinator) binding(ctx context.Context, name string) (*backend.Binding, error) {
	b, err := c.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	if err := b.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// advance moves the journal entry of offer's hash to state. The entry keeps
// the offer it was created with, so working on the counter-offer leaves the
// original offer in place.
func (c *Coordinator) advance(offer *Offer, state State) error {
	encoded, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("failed to encode offer: %w", err)
	}
	rec, err := c.store.AdvanceSwap(offer.Hash, state, encoded)
	if err != nil {
		return fmt.Errorf("failed to record swap state %s: %w", state, err)
	}
	c.log.Info("Swap state", "hash", offer.HashHex(), "state", rec.State, "id", rec.ID)
	return nil
}

// ctxErr returns the context's error if it is done, else err.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
