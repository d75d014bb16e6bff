package storage

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// SaveKey stores a contract key. Saving the same public key again replaces it.
func (s *Storage) SaveKey(pubKey, privKey []byte) error {
	if len(pubKey) == 0 || len(privKey) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidRecord)
	}
	sealed, err := s.sealer.seal(privKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO keys (pubkey, privkey, created_at) VALUES (?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET privkey = excluded.privkey
	`, hex.EncodeToString(pubKey), sealed, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}
	return nil
}

// GetPrivateKey returns the private key for a public key.
func (s *Storage) GetPrivateKey(pubKey []byte) ([]byte, error) {
	s.mu.RLock()
	var sealed []byte
	err := s.db.QueryRow(`SELECT privkey FROM keys WHERE pubkey = ?`, hex.EncodeToString(pubKey)).Scan(&sealed)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("key %x: %w", pubKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return s.sealer.open(sealed)
}

// SavePreimage stores a preimage under its hash.
func (s *Storage) SavePreimage(hash [32]byte, preimage []byte) error {
	if len(preimage) == 0 {
		return fmt.Errorf("%w: empty preimage", ErrInvalidRecord)
	}
	sealed, err := s.sealer.seal(preimage)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO preimages (hash, preimage, created_at) VALUES (?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET preimage = excluded.preimage
	`, hex.EncodeToString(hash[:]), sealed, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save preimage: %w", err)
	}
	return nil
}

// GetPreimage returns the preimage of hash.
func (s *Storage) GetPreimage(hash [32]byte) ([]byte, error) {
	s.mu.RLock()
	var sealed []byte
	err := s.db.QueryRow(`SELECT preimage FROM preimages WHERE hash = ?`, hex.EncodeToString(hash[:])).Scan(&sealed)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("preimage %x: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preimage: %w", err)
	}
	return s.sealer.open(sealed)
}

// SaveFunding records the outpoint funding a script.
func (s *Storage) SaveFunding(script []byte, outpoint wire.OutPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO fundings (script, txid, vout, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(script) DO UPDATE SET txid = excluded.txid, vout = excluded.vout
	`, hex.EncodeToString(script), outpoint.Hash.String(), outpoint.Index, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save funding: %w", err)
	}
	return nil
}

// GetFunding returns the outpoint recorded for a script.
func (s *Storage) GetFunding(script []byte) (*wire.OutPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txid string
	var vout uint32
	err := s.db.QueryRow(`SELECT txid, vout FROM fundings WHERE script = ?`, hex.EncodeToString(script)).Scan(&txid, &vout)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("funding: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get funding: %w", err)
	}

	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: funding txid: %v", ErrInvalidRecord, err)
	}
	return wire.NewOutPoint(hash, vout), nil
}
