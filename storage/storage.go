package storage

import (
	"context"
	"crypto/md5"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

const defaultTTL = 30 * 24 * time.Hour

// DedupRecord is a stored keyword-usage record.
type DedupRecord struct {
	KeywordHash string
	Keyword     string
	Source      string
	FirstSeenAt time.Time
	ScopeYear   int
}

// DB wraps the SQLite database connection and provides storage operations.
type DB struct {
	conn *sql.DB
	ttl  time.Duration
	now  func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithTTL sets the rolling retention window for non-seasonal records.
func WithTTL(ttl time.Duration) Option {
	return func(db *DB) {
		db.ttl = ttl
	}
}

// WithClock sets the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(path string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn, ttl: defaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dedup (
		keyword_hash TEXT PRIMARY KEY,
		keyword TEXT NOT NULL,
		source TEXT NOT NULL,
		first_seen_at DATETIME NOT NULL,
		scope_year INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_dedup_first_seen_at ON dedup(first_seen_at);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// NormalizeKeyword trims, lowercases, and collapses inner whitespace so
// cosmetic variants of the same keyword hash identically.
func NormalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
}

// HashKeyword returns the dedup key for a keyword.
func HashKeyword(keyword string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(NormalizeKeyword(keyword))))
}

// CurrentYear returns the year used for seasonal scope checks.
func (db *DB) CurrentYear() int {
	return db.now().Year()
}

// IsExcluded reports whether a keyword must not be selected again.
// Seasonal keywords are excluded only while a record with the current
// scope year exists; all other sources are excluded while a record
// younger than the rolling TTL exists.
func (db *DB) IsExcluded(ctx context.Context, keyword, source string) (bool, error) {
	hash := HashKeyword(keyword)

	var firstSeen time.Time
	var scopeYear sql.NullInt64
	err := db.conn.QueryRowContext(ctx,
		`SELECT first_seen_at, scope_year FROM dedup WHERE keyword_hash = ?`, hash,
	).Scan(&firstSeen, &scopeYear)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query dedup record: %w", err)
	}

	if source == "seasonal" {
		return scopeYear.Valid && int(scopeYear.Int64) == db.CurrentYear(), nil
	}

	if db.now().Sub(firstSeen) > db.ttl {
		// Expired; purge so the keyword becomes eligible again.
		_, err := db.conn.ExecContext(ctx, `DELETE FROM dedup WHERE keyword_hash = ?`, hash)
		if err != nil {
			return false, fmt.Errorf("purge expired record: %w", err)
		}
		return false, nil
	}

	return true, nil
}

// MarkUsed records a keyword as used. Re-marking an existing keyword is
// a no-op.
func (db *DB) MarkUsed(ctx context.Context, keyword, source string) error {
	var scopeYear any
	if source == "seasonal" {
		scopeYear = db.CurrentYear()
	}

	_, err := db.conn.ExecContext(ctx, `
	INSERT OR IGNORE INTO dedup (keyword_hash, keyword, source, first_seen_at, scope_year)
	VALUES (?, ?, ?, ?, ?)`,
		HashKeyword(keyword), NormalizeKeyword(keyword), source, db.now(), scopeYear,
	)
	if err != nil {
		return fmt.Errorf("mark keyword used: %w", err)
	}
	return nil
}

// PurgeExpired removes non-seasonal records past the rolling TTL and
// seasonal records from previous years.
func (db *DB) PurgeExpired(ctx context.Context) error {
	cutoff := db.now().Add(-db.ttl)
	_, err := db.conn.ExecContext(ctx, `
	DELETE FROM dedup
	WHERE (scope_year IS NULL AND first_seen_at < ?)
	   OR (scope_year IS NOT NULL AND scope_year < ?)`,
		cutoff, db.CurrentYear(),
	)
	return err
}

// CountRecords returns the number of stored dedup records.
func (db *DB) CountRecords(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM dedup`).Scan(&count)
	return count, err
}

// GetSetting retrieves a setting value by key.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetSetting stores or updates a setting.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
