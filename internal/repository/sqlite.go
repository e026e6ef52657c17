package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ArthurPoncin/google-ai-gen/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// schemaVersion is the current on-disk schema version, tracked via
// PRAGMA user_version. Upgrades are additive only: newer versions create
// collections, they never touch existing data.
const schemaVersion = 2

// SQLiteStore implements Store on a local SQLite database.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

var (
	openMu    sync.Mutex
	openStore *SQLiteStore
)

// Open opens (creating if absent) the store at dbPath and migrates it to the
// current schema version. Idempotent: opening while a store is already open
// at the same path returns the existing handle.
func Open(dbPath string) (*SQLiteStore, error) {
	openMu.Lock()
	defer openMu.Unlock()

	if openStore != nil && openStore.path == dbPath {
		return openStore, nil
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	openStore = s
	log.Printf("[Store] Opened database: %s (schema v%d)", dbPath, schemaVersion)
	return s, nil
}

// migrate brings the database up to schemaVersion. Each step only creates
// objects introduced by that version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	if version < 1 {
		_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			rarity TEXT NOT NULL,
			image TEXT NOT NULL,
			status TEXT NOT NULL,
			favorite INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`)
		if err != nil {
			return fmt.Errorf("migration to v1 failed: %w", err)
		}
	}

	if version < 2 {
		_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS achievements (
			id TEXT PRIMARY KEY,
			unlocked INTEGER NOT NULL DEFAULT 0,
			unlocked_at TEXT
		);`)
		if err != nil {
			return fmt.Errorf("migration to v2 failed: %w", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	if version > 0 {
		log.Printf("[Store] Migrated schema v%d -> v%d", version, schemaVersion)
	}
	return nil
}

// InsertItem creates a new item, failing with ErrDuplicateKey on collision.
func (s *SQLiteStore) InsertItem(ctx context.Context, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO items (id, name, rarity, image, status, favorite, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, string(item.Rarity), item.Image,
		string(item.Status), boolToInt(item.Favorite), item.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: insert item: %v", ErrTxFailed, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: insert item: %v", ErrTxFailed, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: item %s", ErrDuplicateKey, item.ID)
	}
	return nil
}

// UpsertItem replaces or creates the item.
func (s *SQLiteStore) UpsertItem(ctx context.Context, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, name, rarity, image, status, favorite, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			favorite = excluded.favorite`,
		item.ID, item.Name, string(item.Rarity), item.Image,
		string(item.Status), boolToInt(item.Favorite), item.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: upsert item: %v", ErrTxFailed, err)
	}
	return nil
}

// GetItem returns the item by ID, or nil when absent.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, rarity, image, status, favorite, created_at
		FROM items WHERE id = ?`, id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

// GetAllItems returns every item in no particular order.
func (s *SQLiteStore) GetAllItems(ctx context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, rarity, image, status, favorite, created_at FROM items`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetAllAchievements returns every persisted achievement record.
func (s *SQLiteStore) GetAllAchievements(ctx context.Context) ([]model.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, unlocked, unlocked_at FROM achievements`)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var achievements []model.Achievement
	for rows.Next() {
		var (
			a          model.Achievement
			unlocked   int
			unlockedAt sql.NullString
		)
		if err := rows.Scan(&a.ID, &unlocked, &unlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.Unlocked = unlocked != 0
		if unlockedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, unlockedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse unlock time: %w", err)
			}
			a.UnlockedAt = &t
		}
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// UpsertAchievement replaces or creates the achievement record.
func (s *SQLiteStore) UpsertAchievement(ctx context.Context, a model.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unlockedAt interface{}
	if a.UnlockedAt != nil {
		unlockedAt = a.UnlockedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO achievements (id, unlocked, unlocked_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unlocked = excluded.unlocked,
			unlocked_at = excluded.unlocked_at`,
		a.ID, boolToInt(a.Unlocked), unlockedAt)
	if err != nil {
		return fmt.Errorf("%w: upsert achievement: %v", ErrTxFailed, err)
	}
	return nil
}

// GetSetting returns the raw JSON value under key, or nil when absent.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return []byte(value), nil
}

// PutSetting replaces or creates the raw JSON value under key.
func (s *SQLiteStore) PutSetting(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("%w: put setting %s: %v", ErrTxFailed, key, err)
	}
	return nil
}

// GetOrCreateSetting returns the value under key, writing def when absent.
// Read and write run in one transaction so concurrent first accesses cannot
// both create the row.
func (s *SQLiteStore) GetOrCreateSetting(ctx context.Context, key string, def []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrTxFailed, err)
	}
	defer tx.Rollback()

	var value string
	err = tx.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)`, key, string(def)); err != nil {
			return nil, fmt.Errorf("%w: create setting %s: %v", ErrTxFailed, key, err)
		}
		value = string(def)
	case err != nil:
		return nil, fmt.Errorf("%w: read setting %s: %v", ErrTxFailed, key, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrTxFailed, err)
	}
	return []byte(value), nil
}

// Close closes the database connection and clears the open handle so a
// fresh store can be opened (test isolation relies on this).
func (s *SQLiteStore) Close() error {
	openMu.Lock()
	if openStore == s {
		openStore = nil
	}
	openMu.Unlock()
	return s.db.Close()
}

func scanItem(row interface{ Scan(...interface{}) error }) (*model.Item, error) {
	var (
		item      model.Item
		rarity    string
		status    string
		favorite  int
		createdAt string
	)
	if err := row.Scan(&item.ID, &item.Name, &rarity, &item.Image, &status, &favorite, &createdAt); err != nil {
		return nil, err
	}
	item.Rarity = model.Rarity(rarity)
	item.Status = model.ItemStatus(status)
	item.Favorite = favorite != 0

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	item.CreatedAt = t
	return &item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
