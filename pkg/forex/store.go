package forex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned by Load when nothing has been persisted.
var ErrNoSnapshot = errors.New("forex: no persisted snapshot")

// Store persists the last successful payload in a single-row SQLite
// table so rates survive restarts.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the SQLite file at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening forex store: %w", err)
	}

	// The store is written by one refresher goroutine only.
	db.SetMaxOpenConns(1)

	const schema = `
		CREATE TABLE IF NOT EXISTS forex_rates (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			data       BLOB NOT NULL,
			fetched_at INTEGER NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating forex schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Save upserts the payload as the single persisted row.
func (s *Store) Save(ctx context.Context, raw []byte, fetchedAt time.Time) error {
	const q = `
		INSERT INTO forex_rates (id, data, fetched_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`
	if _, err := s.db.ExecContext(ctx, q, raw, fetchedAt.Unix()); err != nil {
		return fmt.Errorf("persisting forex snapshot: %w", err)
	}
	return nil
}

// Load returns the persisted payload, or ErrNoSnapshot.
func (s *Store) Load(ctx context.Context) ([]byte, time.Time, error) {
	const q = `SELECT data, fetched_at FROM forex_rates WHERE id = 1`

	var raw []byte
	var fetchedUnix int64
	err := s.db.QueryRowContext(ctx, q).Scan(&raw, &fetchedUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loading forex snapshot: %w", err)
	}

	return raw, time.Unix(fetchedUnix, 0), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
