// Package mapstore persists shared map-exploration progress in SQLite.
package mapstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/mapsync"
)

const schema = `
CREATE TABLE IF NOT EXISTS explored_tiles (
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	PRIMARY KEY (x, y)
);
CREATE TABLE IF NOT EXISTS saves (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	saved_at INTEGER NOT NULL,
	tiles INTEGER NOT NULL
);`

// Store writes snapshots of an Exploration to a SQLite file. Saves are
// serialized, and each snapshot is written in a single transaction.
type Store struct {
	sqlDB       *sql.DB
	exploration *mapsync.Exploration

	writeMu sync.Mutex
}

// Open opens the store at path for the given exploration state.
func Open(path string, exploration *mapsync.Exploration) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Store", "Open", "storage path check")
	}
	if exploration == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Store", "Open", "exploration check")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "Open", "open sqlite db")
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, errors.WrapTransient(err, "Store", "Open", "ping sqlite db")
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, errors.WrapFatal(err, "Store", "Open", "apply schema")
	}
	return &Store{sqlDB: sqlDB, exploration: exploration}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveMapData writes the current exploration snapshot. Safe to call from any
// goroutine; concurrent calls run one after another.
func (s *Store) SaveMapData(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return errors.WrapInvalid(errors.ErrStorageUnavailable, "Store", "SaveMapData", "storage check")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tiles := s.exploration.Snapshot()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapTransient(err, "Store", "SaveMapData", "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO explored_tiles (x, y) VALUES (?, ?)`)
	if err != nil {
		return errors.WrapTransient(err, "Store", "SaveMapData", "prepare insert")
	}
	defer stmt.Close()

	for _, t := range tiles {
		if _, err := stmt.ExecContext(ctx, t.X, t.Y); err != nil {
			return errors.WrapTransient(err, "Store", "SaveMapData", fmt.Sprintf("insert tile %d,%d", t.X, t.Y))
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO saves (saved_at, tiles) VALUES (?, ?)`,
		time.Now().UTC().UnixMilli(), len(tiles)); err != nil {
		return errors.WrapTransient(err, "Store", "SaveMapData", "record save")
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapTransient(err, "Store", "SaveMapData", "commit")
	}
	return nil
}

// Load merges the persisted tiles into the exploration and returns how many were new.
func (s *Store) Load(ctx context.Context) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, errors.WrapInvalid(errors.ErrStorageUnavailable, "Store", "Load", "storage check")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT x, y FROM explored_tiles`)
	if err != nil {
		return 0, errors.WrapTransient(err, "Store", "Load", "query tiles")
	}
	defer rows.Close()

	var tiles []mapsync.Tile
	for rows.Next() {
		var t mapsync.Tile
		if err := rows.Scan(&t.X, &t.Y); err != nil {
			return 0, errors.WrapTransient(err, "Store", "Load", "scan tile")
		}
		tiles = append(tiles, t)
	}
	if err := rows.Err(); err != nil {
		return 0, errors.WrapTransient(err, "Store", "Load", "iterate tiles")
	}
	return s.exploration.Merge(tiles), nil
}

// SaveCount returns the number of committed saves.
func (s *Store) SaveCount(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM saves`).Scan(&n); err != nil {
		return 0, errors.WrapTransient(err, "Store", "SaveCount", "count saves")
	}
	return n, nil
}
