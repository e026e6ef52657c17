package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ArthurPoncin/google-ai-gen/internal/model"
	"github.com/ArthurPoncin/google-ai-gen/internal/repository"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory repository.Store for controller tests: fast,
// inspectable, and able to inject failures per operation via hooks.
type memStore struct {
	mu           sync.Mutex
	items        map[string]model.Item
	settings     map[string][]byte
	achievements map[string]model.Achievement

	insertItemCalls int
	upsertItemCalls int
	putSettingCalls int

	insertItemHook func(item model.Item) error
	upsertItemHook func(item model.Item) error
	putSettingHook func(key string, call int) error
}

func newMemStore() *memStore {
	return &memStore{
		items:        make(map[string]model.Item),
		settings:     make(map[string][]byte),
		achievements: make(map[string]model.Achievement),
	}
}

func (m *memStore) InsertItem(ctx context.Context, item model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertItemCalls++
	if m.insertItemHook != nil {
		if err := m.insertItemHook(item); err != nil {
			return err
		}
	}
	if _, exists := m.items[item.ID]; exists {
		return repository.ErrDuplicateKey
	}
	m.items[item.ID] = item
	return nil
}

func (m *memStore) UpsertItem(ctx context.Context, item model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upsertItemCalls++
	if m.upsertItemHook != nil {
		if err := m.upsertItemHook(item); err != nil {
			return err
		}
	}
	m.items[item.ID] = item
	return nil
}

func (m *memStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *memStore) GetAllItems(ctx context.Context) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]model.Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	return items, nil
}

func (m *memStore) GetAllAchievements(ctx context.Context) ([]model.Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]model.Achievement, 0, len(m.achievements))
	for _, rec := range m.achievements {
		records = append(records, rec)
	}
	return records, nil
}

func (m *memStore) UpsertAchievement(ctx context.Context, a model.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.achievements[a.ID] = a
	return nil
}

func (m *memStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.settings[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (m *memStore) PutSetting(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putSettingCalls++
	if m.putSettingHook != nil {
		if err := m.putSettingHook(key, m.putSettingCalls); err != nil {
			return err
		}
	}
	m.settings[key] = value
	return nil
}

func (m *memStore) GetOrCreateSetting(ctx context.Context, key string, def []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if value, ok := m.settings[key]; ok {
		return value, nil
	}
	m.settings[key] = def
	return def, nil
}

func (m *memStore) Close() error { return nil }

// persistedBalance reads the balance the store holds, bypassing the mirror.
func (m *memStore) persistedBalance(t *testing.T) int {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.settings[repository.KeyBalance]
	require.True(t, ok, "no balance persisted")
	var b model.Balance
	require.NoError(t, json.Unmarshal(raw, &b))
	return b.Tokens
}

// persistedBalanceRaw returns the stored balance, or nil when none was
// written yet.
func (m *memStore) persistedBalanceRaw() *int {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.settings[repository.KeyBalance]
	if !ok {
		return nil
	}
	var b model.Balance
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil
	}
	return &b.Tokens
}

func (m *memStore) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

var _ repository.Store = (*memStore)(nil)

// stubGenerator hands out queued items, or a fixed error.
type stubGenerator struct {
	mu    sync.Mutex
	queue []model.Item
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context) (*model.Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if len(g.queue) == 0 {
		item := generatedItem(g.calls, model.RarityCommon)
		return &item, nil
	}
	item := g.queue[0]
	g.queue = g.queue[1:]
	return &item, nil
}

var itemSeq = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// generatedItem builds a remote-shaped item; later sequence numbers get
// later creation times.
func generatedItem(seq int, rarity model.Rarity) model.Item {
	return model.Item{
		ID:        fmt.Sprintf("gen-%03d", seq),
		Name:      fmt.Sprintf("Pokemon %03d", seq),
		Rarity:    rarity,
		Image:     "aW1n",
		Status:    model.StatusOwned,
		CreatedAt: itemSeq.Add(time.Duration(seq) * time.Minute),
	}
}

// newTestGame wires a service over the given fakes with a fixed clock and
// loads it.
func newTestGame(t *testing.T, store repository.Store, gen Generator, cfg Config) *GameService {
	t.Helper()

	svc := NewGameService(store, gen, cfg)
	require.NotNil(t, svc)
	fixed := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	require.NoError(t, svc.Load(context.Background()))
	return svc
}

func testConfig() Config {
	return Config{
		GenerationCost:  10,
		StartingBalance: 100,
		BonusMin:        5,
		BonusMax:        10,
		MessageTTL:      5 * time.Second,
	}
}
