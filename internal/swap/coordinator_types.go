// Package swap - Type definitions for the Coordinator.
package swap

import (
	"time"

	"github.com/klingon-exchange/xswap/internal/backend"
	"github.com/klingon-exchange/xswap/internal/storage"
	"github.com/klingon-exchange/xswap/internal/wallet"
	"github.com/klingon-exchange/xswap/pkg/logging"
)

// CoordinatorConfig holds configuration for creating a coordinator.
type CoordinatorConfig struct {
	// Registry resolves chain names to ledgers.
	Registry *backend.Registry
	// Store persists keys, preimages, fundings and the swap journal.
	Store storage.SecretStore
	// Keys supplies contract keys. Defaults to wallet.RandomSource.
	Keys wallet.KeySource

	Windows Windows

	// PollInterval is the pause between ledger polls.
	PollInterval time.Duration
	// HistoryPageSize is the number of history entries fetched per call
	// while looking for a disclosed preimage.
	HistoryPageSize int
	// StaleConfirmations bounds how deep the disclosure scan looks.
	StaleConfirmations int64

	// Logger defaults to the "swap" component of the default logger.
	Logger *logging.Logger
}

// Coordinator drives swaps for one party. It is safe for concurrent use;
// independent swaps may run in parallel against the same store.
type Coordinator struct {
	registry *backend.Registry
	store    storage.SecretStore
	keys     wallet.KeySource

	windows      Windows
	pollInterval time.Duration
	pageSize     int
	staleDepth   int64

	log *logging.Logger
}
