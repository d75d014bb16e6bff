package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage is the SQLite SecretStore.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	sealer *sealer
}

// New creates a new SQLite store in cfg.DataDir.
func New(cfg *Config) (*Storage, error) {
	dataDir := expandPath(cfg.DataDir)

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "xswap.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.initSealer(cfg.Passphrase); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Storage) Path() string {
	return s.dbPath
}

// initSchema creates all database tables.
func (s *Storage) initSchema() error {
	schema := `
	-- Settings table (seal salt, key index counter)
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value BLOB,
		updated_at INTEGER
	);

	-- Contract keys by compressed public key
	CREATE TABLE IF NOT EXISTS keys (
		pubkey TEXT PRIMARY KEY,
		privkey BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	-- Preimages by SHA256 hash
	CREATE TABLE IF NOT EXISTS preimages (
		hash TEXT PRIMARY KEY,
		preimage BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	-- Observed funding outpoints by funding script
	CREATE TABLE IF NOT EXISTS fundings (
		script TEXT PRIMARY KEY,
		txid TEXT NOT NULL,
		vout INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	-- Swap journal by offer hash
	CREATE TABLE IF NOT EXISTS swaps (
		id TEXT NOT NULL UNIQUE,
		hash TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		offer BLOB,
		claim_txid TEXT,
		claim_address TEXT,
		claim_value INTEGER,
		claimed_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_swaps_state ON swaps(state);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Storage) initSealer(passphrase string) error {
	salt, err := s.getSetting("seal_salt")
	if err != nil {
		return err
	}
	check, err := s.getSetting("seal_check")
	if err != nil {
		return err
	}

	sl, newSalt, newCheck, err := newSealer(passphrase, salt, check)
	if err != nil {
		return err
	}
	if check == nil && newCheck != nil {
		if err := s.setSetting("seal_salt", newSalt); err != nil {
			return err
		}
		if err := s.setSetting("seal_check", newCheck); err != nil {
			return err
		}
	}
	s.sealer = sl
	return nil
}

func (s *Storage) getSetting(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

func (s *Storage) setSetting(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// NextKeyIndex reserves the next HD key index.
func (s *Storage) NextKeyIndex() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next int64
	err = tx.QueryRow(`SELECT CAST(value AS INTEGER) FROM settings WHERE key = 'next_key_index'`).Scan(&next)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to read key index: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES ('next_key_index', ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, next+1, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to advance key index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint32(next), nil
}

var _ SecretStore = (*Storage)(nil)
