package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	bucketMeta      = []byte("meta")
	bucketKeys      = []byte("keys")
	bucketPreimages = []byte("preimages")
	bucketFundings  = []byte("fundings")
	bucketSwaps     = []byte("swaps")
	bucketClaims    = []byte("claims")

	metaSealSalt  = []byte("seal_salt")
	metaSealCheck = []byte("seal_check")
	metaKeyIndex  = []byte("next_key_index")
)

// BoltStorage is the bbolt SecretStore. Records are gob encoded.
type BoltStorage struct {
	db     *bbolt.DB
	sealer *sealer
}

// boltSwap is the gob form of a SwapRecord.
type boltSwap struct {
	ID        string
	State     string
	Offer     []byte
	CreatedAt int64
	UpdatedAt int64
}

type boltClaim struct {
	TxID      string
	Address   string
	Value     int64
	CreatedAt int64
}

// NewBolt opens or creates the bbolt store in cfg.DataDir.
func NewBolt(cfg *Config) (*BoltStorage, error) {
	dbPath := filepath.Join(expandPath(cfg.DataDir), "xswap.bolt")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	var salt, check []byte
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketKeys, bucketPreimages, bucketFundings, bucketSwaps, bucketClaims} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		salt = copyBytes(meta.Get(metaSealSalt))
		check = copyBytes(meta.Get(metaSealCheck))
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	sl, newSalt, newCheck, err := newSealer(cfg.Passphrase, salt, check)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if check == nil && newCheck != nil {
		err = db.Update(func(tx *bbolt.Tx) error {
			meta := tx.Bucket(bucketMeta)
			if err := meta.Put(metaSealSalt, newSalt); err != nil {
				return err
			}
			return meta.Put(metaSealCheck, newCheck)
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to store seal parameters: %w", err)
		}
	}

	return &BoltStorage{db: db, sealer: sl}, nil
}

// Close closes the underlying database.
func (s *BoltStorage) Close() error { return s.db.Close() }

func (s *BoltStorage) put(bucket, key, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put(key, value)
	})
}

func (s *BoltStorage) get(bucket, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		value = copyBytes(tx.Bucket(bucket).Get(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, ErrNotFound
	}
	return value, nil
}

// SaveKey stores a contract key.
func (s *BoltStorage) SaveKey(pubKey, privKey []byte) error {
	if len(pubKey) == 0 || len(privKey) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidRecord)
	}
	sealed, err := s.sealer.seal(privKey)
	if err != nil {
		return err
	}
	return s.put(bucketKeys, pubKey, sealed)
}

// GetPrivateKey returns the private key for a public key.
func (s *BoltStorage) GetPrivateKey(pubKey []byte) ([]byte, error) {
	sealed, err := s.get(bucketKeys, pubKey)
	if err != nil {
		return nil, fmt.Errorf("key %x: %w", pubKey, err)
	}
	return s.sealer.open(sealed)
}

// SavePreimage stores a preimage under its hash.
func (s *BoltStorage) SavePreimage(hash [32]byte, preimage []byte) error {
	if len(preimage) == 0 {
		return fmt.Errorf("%w: empty preimage", ErrInvalidRecord)
	}
	sealed, err := s.sealer.seal(preimage)
	if err != nil {
		return err
	}
	return s.put(bucketPreimages, hash[:], sealed)
}

// GetPreimage returns the preimage of hash.
func (s *BoltStorage) GetPreimage(hash [32]byte) ([]byte, error) {
	sealed, err := s.get(bucketPreimages, hash[:])
	if err != nil {
		return nil, fmt.Errorf("preimage %x: %w", hash, err)
	}
	return s.sealer.open(sealed)
}

// SaveFunding records the outpoint funding a script.
func (s *BoltStorage) SaveFunding(script []byte, outpoint wire.OutPoint) error {
	value := make([]byte, 36)
	copy(value, outpoint.Hash[:])
	binary.BigEndian.PutUint32(value[32:], outpoint.Index)
	return s.put(bucketFundings, script, value)
}

// GetFunding returns the outpoint recorded for a script.
func (s *BoltStorage) GetFunding(script []byte) (*wire.OutPoint, error) {
	value, err := s.get(bucketFundings, script)
	if err != nil {
		return nil, fmt.Errorf("funding: %w", err)
	}
	if len(value) != 36 {
		return nil, fmt.Errorf("%w: funding record length %d", ErrInvalidRecord, len(value))
	}
	var op wire.OutPoint
	copy(op.Hash[:], value[:32])
	op.Index = binary.BigEndian.Uint32(value[32:])
	return &op, nil
}

// AdvanceSwap creates or moves the journal entry for hash.
func (s *BoltStorage) AdvanceSwap(hash [32]byte, state SwapState, offer []byte) (*SwapRecord, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: state %q", ErrInvalidRecord, state)
	}

	var rec *SwapRecord
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSwaps)
		now := time.Now().Unix()

		var stored boltSwap
		if data := b.Get(hash[:]); data != nil {
			if err := decodeGob(data, &stored); err != nil {
				return fmt.Errorf("decode swap: %w", err)
			}
			if state.rank() > SwapState(stored.State).rank() {
				stored.State = string(state)
			}
			if len(stored.Offer) == 0 {
				stored.Offer = offer
			}
		} else {
			stored = boltSwap{
				ID:        uuid.NewString(),
				State:     string(state),
				Offer:     offer,
				CreatedAt: now,
			}
		}
		stored.UpdatedAt = now

		data, err := encodeGob(&stored)
		if err != nil {
			return fmt.Errorf("encode swap: %w", err)
		}
		rec = stored.record(hash)
		return b.Put(hash[:], data)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetSwap returns the journal entry for hash.
func (s *BoltStorage) GetSwap(hash [32]byte) (*SwapRecord, error) {
	data, err := s.get(bucketSwaps, hash[:])
	if err != nil {
		return nil, fmt.Errorf("swap %x: %w", hash, err)
	}
	var stored boltSwap
	if err := decodeGob(data, &stored); err != nil {
		return nil, fmt.Errorf("decode swap: %w", err)
	}
	return stored.record(hash), nil
}

// ListSwaps returns all journal entries, oldest first.
func (s *BoltStorage) ListSwaps() ([]*SwapRecord, error) {
	var swaps []*SwapRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSwaps).ForEach(func(k, v []byte) error {
			var stored boltSwap
			if err := decodeGob(v, &stored); err != nil {
				return fmt.Errorf("decode swap: %w", err)
			}
			var hash [32]byte
			copy(hash[:], k)
			swaps = append(swaps, stored.record(hash))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(swaps, func(i, j int) bool {
		if swaps[i].CreatedAt.Equal(swaps[j].CreatedAt) {
			return swaps[i].ID < swaps[j].ID
		}
		return swaps[i].CreatedAt.Before(swaps[j].CreatedAt)
	})
	return swaps, nil
}

// SaveClaim records a claim for hash.
func (s *BoltStorage) SaveClaim(hash [32]byte, claim *ClaimRecord) error {
	if claim == nil || claim.TxID == "" {
		return fmt.Errorf("%w: empty claim", ErrInvalidRecord)
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSwaps).Get(hash[:]) == nil {
			return fmt.Errorf("swap %x: %w", hash, ErrNotFound)
		}
		data, err := encodeGob(&boltClaim{
			TxID:      claim.TxID,
			Address:   claim.Address,
			Value:     claim.Value,
			CreatedAt: claim.CreatedAt.Unix(),
		})
		if err != nil {
			return fmt.Errorf("encode claim: %w", err)
		}
		return tx.Bucket(bucketClaims).Put(hash[:], data)
	})
}

// GetClaim returns the claim recorded for hash.
func (s *BoltStorage) GetClaim(hash [32]byte) (*ClaimRecord, error) {
	data, err := s.get(bucketClaims, hash[:])
	if err != nil {
		return nil, fmt.Errorf("claim %x: %w", hash, err)
	}
	var stored boltClaim
	if err := decodeGob(data, &stored); err != nil {
		return nil, fmt.Errorf("decode claim: %w", err)
	}
	return &ClaimRecord{
		TxID:      stored.TxID,
		Address:   stored.Address,
		Value:     stored.Value,
		CreatedAt: time.Unix(stored.CreatedAt, 0),
	}, nil
}

// NextKeyIndex reserves the next HD key index.
func (s *BoltStorage) NextKeyIndex() (uint32, error) {
	var next uint32
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(metaKeyIndex); len(v) == 4 {
			next = binary.BigEndian.Uint32(v)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, next+1)
		return meta.Put(metaKeyIndex, buf)
	})
	return next, err
}

func (b *boltSwap) record(hash [32]byte) *SwapRecord {
	return &SwapRecord{
		ID:        b.ID,
		Hash:      hash,
		State:     SwapState(b.State),
		Offer:     b.Offer,
		CreatedAt: time.Unix(b.CreatedAt, 0),
		UpdatedAt: time.Unix(b.UpdatedAt, 0),
	}
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ SecretStore = (*BoltStorage)(nil)
