// Package swap implements the two-chain hash-time-locked swap protocol.
// This package contains the protocol logic only (offers, contracts, the
// coordinator state machine). It uses existing packages directly:
//   - backend.Registry for ledger access per chain
//   - storage.SecretStore for keys, preimages and the swap journal
//   - wallet.KeySource for fresh contract keys
package swap

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/klingon-exchange/xswap/internal/storage"
)

// Common errors
var (
	ErrInvalidOffer   = errors.New("invalid offer")
	ErrInvalidPubKey  = errors.New("invalid public key")
	ErrSecretMismatch = errors.New("secret does not match hash")
	ErrWindowTooShort = errors.New("lock window shorter than one block")
	ErrInvalidScript  = errors.New("not a swap contract script")
	ErrDustOutput     = errors.New("claim output would be dust")
	ErrInvalidWindows = errors.New("taker window must be shorter than initiator window")
	ErrSwapNotFound   = errors.New("swap not found")
)

// ErrPreconditionMissing is returned when an operation needs data the store
// does not hold yet. The specific causes wrap it.
var ErrPreconditionMissing = errors.New("precondition missing")

var (
	ErrUnknownPreimage = fmt.Errorf("%w: preimage unknown", ErrPreconditionMissing)
	ErrUnknownKey      = fmt.Errorf("%w: private key unknown", ErrPreconditionMissing)
	ErrUnknownFunding  = fmt.Errorf("%w: funding outpoint unknown", ErrPreconditionMissing)
	ErrUnknownClaim    = fmt.Errorf("%w: claim unknown", ErrPreconditionMissing)
)

// State is the progress of a swap as seen by one party.
type State = storage.SwapState

const (
	StateProposed  = storage.StateProposed
	StateFunded    = storage.StateFunded
	StateDisclosed = storage.StateDisclosed
	StateClaimed   = storage.StateClaimed
	StateRefunded  = storage.StateRefunded
)

// Default lock windows. The taker window must leave the initiator enough
// time to claim after the secret is disclosed.
const (
	DefaultInitiatorWindow = 2 * time.Hour
	DefaultTakerWindow     = 1 * time.Hour
)

// Windows are the wall-clock lock windows of both legs.
type Windows struct {
	Initiator time.Duration
	Taker     time.Duration
}

// DefaultWindows returns the 2h/1h windows.
func DefaultWindows() Windows {
	return Windows{
		Initiator: DefaultInitiatorWindow,
		Taker:     DefaultTakerWindow,
	}
}

// Validate checks the taker window is positive and shorter.
func (w Windows) Validate() error {
	if w.Taker <= 0 || w.Initiator <= w.Taker {
		return fmt.Errorf("%w: initiator %s, taker %s", ErrInvalidWindows, w.Initiator, w.Taker)
	}
	return nil
}

// PreimageSize is the length of a swap secret.
const PreimageSize = 32

// GenerateSecret creates a random 32-byte preimage and its SHA256 hash.
func GenerateSecret() (preimage []byte, hash [32]byte, err error) {
	preimage = make([]byte, PreimageSize)
	if _, err := rand.Read(preimage); err != nil {
		return nil, hash, fmt.Errorf("failed to generate secret: %w", err)
	}
	return preimage, sha256.Sum256(preimage), nil
}

// VerifySecret reports whether preimage hashes to hash.
func VerifySecret(preimage []byte, hash [32]byte) bool {
	return len(preimage) == PreimageSize && sha256.Sum256(preimage) == hash
}
