package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = sqlDialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS verdict_cache (
			cache_key CHAR(64) PRIMARY KEY,
			label VARCHAR(64) NOT NULL,
			reason TEXT NOT NULL,
			risk DOUBLE NULL,
			last_seen BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_verdict_expires_at (expires_at)
		)`,
	},
	upsert: `INSERT INTO verdict_cache (cache_key, label, reason, risk, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			label = VALUES(label),
			reason = VALUES(reason),
			risk = VALUES(risk),
			last_seen = VALUES(last_seen),
			expires_at = VALUES(expires_at)`,
	get: `SELECT cache_key, label, reason, risk, last_seen, expires_at
		FROM verdict_cache
		WHERE cache_key = ? AND expires_at > ?`,
	cleanup: `DELETE FROM verdict_cache WHERE expires_at <= ?`,
}

// MySQLCache stores verdicts in a shared MySQL database
type MySQLCache struct {
	*sqlCache
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	c, err := newSQLCache(db, mysqlDialect, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &MySQLCache{c}, nil
}
