package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = sqlDialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS verdict_cache (
			cache_key TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			reason TEXT NOT NULL,
			risk REAL,
			last_seen INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verdict_expires_at ON verdict_cache(expires_at)`,
	},
	upsert: `INSERT OR REPLACE INTO verdict_cache (cache_key, label, reason, risk, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
	get: `SELECT cache_key, label, reason, risk, last_seen, expires_at
		FROM verdict_cache
		WHERE cache_key = ? AND expires_at > ?`,
	cleanup: `DELETE FROM verdict_cache WHERE expires_at <= ?`,
}

// SQLiteCache stores verdicts in a SQLite file
type SQLiteCache struct {
	*sqlCache
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	c, err := newSQLCache(db, sqliteDialect, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteCache{c}, nil
}
