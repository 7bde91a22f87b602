package spacetraveling

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when no snapshot is stored under a key.
var ErrNoSnapshot = errors.New("snapshot not found")

// Snapshot is the persisted data a page was last generated from.
type Snapshot struct {
	Key         string
	Data        []byte // JSON
	GeneratedAt time.Time
}

// Store wraps a SQLite database holding page snapshots, so a restarted
// server serves the last generated pages while it revalidates them.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets page reads continue while the revalidation job writes;
	// writers wait on the busy timeout instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
    key TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    generated_at INTEGER NOT NULL
);
`)
	return err
}

// Ping checks the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// SaveSnapshot upserts a snapshot.
func (s *Store) SaveSnapshot(snap Snapshot) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO snapshots (key, data, generated_at) VALUES (?, ?, ?)`,
		snap.Key, snap.Data, snap.GeneratedAt.UnixNano())
	return err
}

// GetSnapshot returns the snapshot stored under key, or ErrNoSnapshot.
func (s *Store) GetSnapshot(key string) (Snapshot, error) {
	var data []byte
	var generated int64
	err := s.db.QueryRow(`SELECT data, generated_at FROM snapshots WHERE key = ?`, key).Scan(&data, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Key: key, Data: data, GeneratedAt: time.Unix(0, generated)}, nil
}

// ListSnapshotKeys returns every stored key with the given prefix, sorted.
func (s *Store) ListSnapshotKeys(prefix string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM snapshots WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteSnapshot removes a snapshot by key.
func (s *Store) DeleteSnapshot(key string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE key = ?`, key)
	return err
}

// ExpireSnapshots marks every snapshot as generated at the zero time so
// the next read treats it as stale.
func (s *Store) ExpireSnapshots() error {
	_, err := s.db.Exec(`UPDATE snapshots SET generated_at = 0`)
	return err
}
