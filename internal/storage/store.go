// Package storage persists the secrets and progress of swaps: contract keys,
// preimages, observed funding outpoints, claims and the per-swap state
// journal. Two backends are provided, SQLite and bbolt.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/xswap/internal/wallet"
)

// Storage errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrWrongPassword = errors.New("storage passphrase does not match")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Drivers
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// SwapState is the coordinator's view of a swap's progress.
type SwapState string

const (
	StateProposed  SwapState = "proposed"
	StateFunded    SwapState = "funded"
	StateDisclosed SwapState = "disclosed"
	StateClaimed   SwapState = "claimed"
	StateRefunded  SwapState = "refunded"
)

// rank orders states so the journal never moves backwards.
func (s SwapState) rank() int {
	switch s {
	case StateProposed:
		return 1
	case StateFunded:
		return 2
	case StateDisclosed:
		return 3
	case StateClaimed, StateRefunded:
		return 4
	}
	return 0
}

// Valid reports whether s is a known state.
func (s SwapState) Valid() bool {
	return s.rank() > 0
}

// Terminal reports whether no further transitions happen.
func (s SwapState) Terminal() bool {
	return s == StateClaimed || s == StateRefunded
}

// SwapRecord is a row of the swap journal, keyed by the offer hash.
type SwapRecord struct {
	ID        string
	Hash      [32]byte
	State     SwapState
	Offer     []byte // JSON encoded offer, may be empty
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClaimRecord describes a broadcast claim transaction.
type ClaimRecord struct {
	TxID      string
	Address   string
	Value     int64
	CreatedAt time.Time
}

// SecretStore is what the swap coordinator persists through.
type SecretStore interface {
	// SaveKey stores a contract private key under its compressed public key.
	SaveKey(pubKey, privKey []byte) error
	GetPrivateKey(pubKey []byte) ([]byte, error)

	// SavePreimage stores a preimage under its hash.
	SavePreimage(hash [32]byte, preimage []byte) error
	GetPreimage(hash [32]byte) ([]byte, error)

	// SaveFunding stores the outpoint funding a contract under its funding script.
	SaveFunding(script []byte, outpoint wire.OutPoint) error
	GetFunding(script []byte) (*wire.OutPoint, error)

	SaveClaim(hash [32]byte, claim *ClaimRecord) error
	GetClaim(hash [32]byte) (*ClaimRecord, error)

	// AdvanceSwap moves the swap journal entry for hash to state. Moves to an
	// earlier state are ignored. The first non-empty offer is kept.
	AdvanceSwap(hash [32]byte, state SwapState, offer []byte) (*SwapRecord, error)
	GetSwap(hash [32]byte) (*SwapRecord, error)
	ListSwaps() ([]*SwapRecord, error)

	// NextKeyIndex reserves the next HD key index.
	NextKeyIndex() (uint32, error)

	Close() error
}

// Config holds storage configuration.
type Config struct {
	DataDir string
	Driver  string
	// Passphrase, when set, seals private keys and preimages at rest.
	Passphrase string
}

// Open opens the store selected by cfg.Driver.
func Open(cfg *Config) (SecretStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		return New(cfg)
	case DriverBolt, "bbolt":
		return NewBolt(cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}

// sealer wraps an optional cipher. A nil cipher stores plaintext.
type sealer struct {
	cipher *wallet.Cipher
}

// checkValue is sealed once per store to detect a wrong passphrase on open.
var checkValue = []byte("xswap-storage-v1")

// newSealer derives the store cipher. salt and check are the persisted salt and
// sealed check value, nil on a fresh store; the values to persist are returned.
func newSealer(passphrase string, salt, check []byte) (*sealer, []byte, []byte, error) {
	if passphrase == "" {
		if check != nil {
			return nil, nil, nil, fmt.Errorf("%w: store is sealed", ErrWrongPassword)
		}
		return &sealer{}, nil, nil, nil
	}

	if salt == nil {
		var err error
		if salt, err = wallet.NewSalt(); err != nil {
			return nil, nil, nil, err
		}
	}
	c, err := wallet.NewCipher(passphrase, salt)
	if err != nil {
		return nil, nil, nil, err
	}

	if check == nil {
		if check, err = c.Seal(checkValue); err != nil {
			return nil, nil, nil, err
		}
	} else if opened, err := c.Open(check); err != nil || string(opened) != string(checkValue) {
		return nil, nil, nil, ErrWrongPassword
	}

	return &sealer{cipher: c}, salt, check, nil
}

func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	if s.cipher == nil {
		return plaintext, nil
	}
	return s.cipher.Seal(plaintext)
}

func (s *sealer) open(stored []byte) ([]byte, error) {
	if s.cipher == nil {
		return stored, nil
	}
	return s.cipher.Open(stored)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
