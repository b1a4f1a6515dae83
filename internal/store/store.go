// Package store caches the most recently loaded feed in a SQLite database
// so the dashboard can show something immediately after a restart while the
// first live refresh is in flight. Snapshots are keyed by chain and contract
// so a cached feed is never shown against a different ledger.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"metasnap.app/msc/internal/types"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile    = "feed.db"
	maxBusyTimeoutMs = 5000
)

// Snapshots persists feed snapshots to a SQLite database file.
type Snapshots struct {
	mu   sync.RWMutex
	db   *sql.DB
	file string
}

// Open creates or opens the snapshot database at filePath.
func Open(filePath string) (*Snapshots, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(absPath)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Snapshots{db: db, file: absPath}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Snapshots) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS feed_snapshots (
	chain_id  TEXT NOT NULL,
	contract  TEXT NOT NULL,
	loaded_at INTEGER NOT NULL,
	posts     TEXT NOT NULL,
	PRIMARY KEY (chain_id, contract)
)`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}
	return nil
}

// Save stores posts as the snapshot for the given chain and contract,
// replacing any previous snapshot for that pair.
func (s *Snapshots) Save(chainID, contract string, posts []types.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.db.Exec(`
INSERT INTO feed_snapshots (chain_id, contract, loaded_at, posts)
VALUES (?, ?, ?, ?)
ON CONFLICT (chain_id, contract) DO UPDATE
SET loaded_at = excluded.loaded_at, posts = excluded.posts`,
		chainID, contract, time.Now().Unix(), string(raw))
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load returns the cached posts for the given chain and contract along with
// the time they were loaded. A missing snapshot is not an error; it returns
// a nil slice and zero time.
func (s *Snapshots) Load(chainID, contract string) ([]types.Post, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	var loadedAt int64
	err := s.db.QueryRow(`
SELECT posts, loaded_at FROM feed_snapshots
WHERE chain_id = ? AND contract = ?`,
		chainID, contract).Scan(&raw, &loadedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read snapshot: %w", err)
	}

	var posts []types.Post
	if err := json.Unmarshal([]byte(raw), &posts); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return posts, time.Unix(loadedAt, 0), nil
}

// LoadLatest returns the most recently saved snapshot for a contract
// regardless of chain, along with the chain it was captured on. Used at
// startup, before the session watcher has learned the live chain.
func (s *Snapshots) LoadLatest(contract string) ([]types.Post, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw, chainID string
	err := s.db.QueryRow(`
SELECT posts, chain_id FROM feed_snapshots
WHERE contract = ?
ORDER BY loaded_at DESC
LIMIT 1`, contract).Scan(&raw, &chainID)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read snapshot: %w", err)
	}

	var posts []types.Post
	if err := json.Unmarshal([]byte(raw), &posts); err != nil {
		return nil, "", fmt.Errorf("decode snapshot: %w", err)
	}
	return posts, chainID, nil
}

// Close releases the underlying database connection.
func (s *Snapshots) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
