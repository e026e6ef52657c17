package repository

import (
	"context"
	"errors"

	"github.com/ArthurPoncin/google-ai-gen/internal/model"
)

// Storage errors. Callers match with errors.Is; every failure out of the
// store wraps one of these.
var (
	// ErrOpenFailed indicates the underlying engine refused to open the
	// database (bad path, version conflict, locked file).
	ErrOpenFailed = errors.New("store open failed")

	// ErrDuplicateKey indicates an insert collided with an existing key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrTxFailed indicates a transaction aborted; none of its writes were
	// applied.
	ErrTxFailed = errors.New("transaction failed")
)

// Well-known singleton keys in the settings collection.
const (
	KeyBalance        = "balance"
	KeyDailyBonus     = "daily_bonus"
	KeyPlayerSettings = "player_settings"
)

// Store is the durable game store partitioned into three collections:
// items, settings and achievements. Every operation is atomic: it either
// commits all of its writes or none of them.
type Store interface {
	// InsertItem creates a new item. Fails with ErrDuplicateKey if an item
	// with the same ID already exists.
	InsertItem(ctx context.Context, item model.Item) error

	// UpsertItem replaces or creates the item.
	UpsertItem(ctx context.Context, item model.Item) error

	// GetItem returns the item by ID, or nil when absent. Absence is not an
	// error.
	GetItem(ctx context.Context, id string) (*model.Item, error)

	// GetAllItems returns every item. No ordering is guaranteed; ordering is
	// the caller's job.
	GetAllItems(ctx context.Context) ([]model.Item, error)

	// GetAllAchievements returns every persisted achievement record.
	GetAllAchievements(ctx context.Context) ([]model.Achievement, error)

	// UpsertAchievement replaces or creates the achievement record.
	UpsertAchievement(ctx context.Context, a model.Achievement) error

	// GetSetting returns the raw JSON value stored under key, or nil when
	// absent.
	GetSetting(ctx context.Context, key string) ([]byte, error)

	// PutSetting replaces or creates the raw JSON value under key.
	PutSetting(ctx context.Context, key string, value []byte) error

	// GetOrCreateSetting returns the value under key, writing and returning
	// def when absent. The read-then-write runs as one readwrite transaction.
	GetOrCreateSetting(ctx context.Context, key string, def []byte) ([]byte, error)

	// Close releases the store. A closed store can be reopened.
	Close() error
}
