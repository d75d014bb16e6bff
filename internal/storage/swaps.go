package storage

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AdvanceSwap creates or moves the journal entry for hash.
func (s *Storage) AdvanceSwap(hash [32]byte, state SwapState, offer []byte) (*SwapRecord, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: state %q", ErrInvalidRecord, state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := scanSwap(tx.QueryRow(selectSwap+` WHERE hash = ?`, hex.EncodeToString(hash[:])))
	now := time.Now()
	switch {
	case err == sql.ErrNoRows:
		rec = &SwapRecord{
			ID:        uuid.NewString(),
			Hash:      hash,
			State:     state,
			Offer:     offer,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err = tx.Exec(`
			INSERT INTO swaps (id, hash, state, offer, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, hex.EncodeToString(hash[:]), string(state), offer, now.Unix(), now.Unix())
		if err != nil {
			return nil, fmt.Errorf("failed to create swap: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read swap: %w", err)
	default:
		if state.rank() > rec.State.rank() {
			rec.State = state
		}
		if len(rec.Offer) == 0 {
			rec.Offer = offer
		}
		rec.UpdatedAt = now
		_, err = tx.Exec(`UPDATE swaps SET state = ?, offer = ?, updated_at = ? WHERE hash = ?`,
			string(rec.State), rec.Offer, now.Unix(), hex.EncodeToString(hash[:]))
		if err != nil {
			return nil, fmt.Errorf("failed to update swap: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetSwap returns the journal entry for hash.
func (s *Storage) GetSwap(hash [32]byte) (*SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanSwap(s.db.QueryRow(selectSwap+` WHERE hash = ?`, hex.EncodeToString(hash[:])))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("swap %x: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get swap: %w", err)
	}
	return rec, nil
}

// ListSwaps returns all journal entries, oldest first.
func (s *Storage) ListSwaps() ([]*SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(selectSwap + ` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swaps []*SwapRecord
	for rows.Next() {
		rec, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, rec)
	}
	return swaps, rows.Err()
}

// SaveClaim attaches a claim to the swap journal entry for hash.
func (s *Storage) SaveClaim(hash [32]byte, claim *ClaimRecord) error {
	if claim == nil || claim.TxID == "" {
		return fmt.Errorf("%w: empty claim", ErrInvalidRecord)
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE swaps SET claim_txid = ?, claim_address = ?, claim_value = ?, claimed_at = ?, updated_at = ?
		WHERE hash = ?
	`, claim.TxID, claim.Address, claim.Value, claim.CreatedAt.Unix(), time.Now().Unix(), hex.EncodeToString(hash[:]))
	if err != nil {
		return fmt.Errorf("failed to save claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("swap %x: %w", hash, ErrNotFound)
	}
	return nil
}

// GetClaim returns the claim recorded for hash.
func (s *Storage) GetClaim(hash [32]byte) (*ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txid, address sql.NullString
	var value, claimedAt sql.NullInt64
	err := s.db.QueryRow(`SELECT claim_txid, claim_address, claim_value, claimed_at FROM swaps WHERE hash = ?`,
		hex.EncodeToString(hash[:])).Scan(&txid, &address, &value, &claimedAt)
	if err == sql.ErrNoRows || (err == nil && !txid.Valid) {
		return nil, fmt.Errorf("claim %x: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return &ClaimRecord{
		TxID:      txid.String,
		Address:   address.String,
		Value:     value.Int64,
		CreatedAt: time.Unix(claimedAt.Int64, 0),
	}, nil
}

const selectSwap = `SELECT id, hash, state, offer, created_at, updated_at FROM swaps`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSwap(row rowScanner) (*SwapRecord, error) {
	var rec SwapRecord
	var hashHex, state string
	var createdAt, updatedAt int64
	if err := row.Scan(&rec.ID, &hashHex, &state, &rec.Offer, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(hashHex)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("%w: swap hash %q", ErrInvalidRecord, hashHex)
	}
	copy(rec.Hash[:], raw)
	rec.State = SwapState(state)
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}
