package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ArthurPoncin/google-ai-gen/internal/generator"
	"github.com/ArthurPoncin/google-ai-gen/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())

	require.NoError(t, svc.Load(context.Background()))

	state := svc.State()
	assert.Equal(t, 100, state.Balance)
	assert.Empty(t, state.Items)
	assert.Len(t, state.Achievements, len(model.AchievementDefinitions))
}

func TestLoadCreatesDefaults(t *testing.T) {
	store := newMemStore()
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())

	state := svc.State()
	assert.Equal(t, 100, state.Balance)
	assert.Equal(t, model.ThemeLight, state.Settings.Theme)
	assert.False(t, state.Settings.Muted)
	assert.True(t, state.Bonus.Available, "never-claimed bonus is on offer")
	assert.GreaterOrEqual(t, state.Bonus.Amount, 5)
	assert.LessOrEqual(t, state.Bonus.Amount, 10)

	for _, a := range state.Achievements {
		assert.False(t, a.Unlocked)
		assert.Nil(t, a.UnlockedAt)
	}
}

func TestThreeGenerationsScenario(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{queue: []model.Item{
		generatedItem(1, model.RarityCommon),
		generatedItem(2, model.RarityRare),
		generatedItem(3, model.RarityCommon),
	}}
	svc := newTestGame(t, store, gen, testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Generate(ctx)
		require.NoError(t, err)
	}

	state := svc.State()
	assert.Equal(t, 70, state.Balance)
	assert.Equal(t, 70, store.persistedBalance(t))

	require.Len(t, state.Items, 3)
	// Newest first.
	assert.Equal(t, "gen-003", state.Items[0].ID)
	assert.Equal(t, "gen-002", state.Items[1].ID)
	assert.Equal(t, "gen-001", state.Items[2].ID)

	byID := achievementsByID(state.Achievements)
	assert.True(t, byID[model.AchievementFirstForge].Unlocked)
	assert.False(t, byID[model.AchievementTenForges].Unlocked, "ten forges stays locked after three")
}

func TestGenerateInsufficientFundsRejectedBeforeAnyWrite(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{}
	cfg := testConfig()
	cfg.StartingBalance = 5 // below the generation cost
	svc := newTestGame(t, store, gen, cfg)

	_, err := svc.Generate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, 0, gen.calls, "remote generator must not be called")
	assert.Equal(t, 0, store.putSettingCalls, "no persistence before the guard")
	assert.Equal(t, 5, svc.State().Balance)

	msg := svc.State().Message
	require.NotNil(t, msg)
	assert.Equal(t, model.MessageWarning, msg.Kind)
}

func TestGenerateRollbackOnRemoteFailure(t *testing.T) {
	remoteFailures := map[string]error{
		"timeout":   generator.ErrTimeout,
		"rejected":  generator.ErrRejected,
		"malformed": generator.ErrMalformedResponse,
		"offline":   generator.ErrUnreachable,
	}

	for name, failure := range remoteFailures {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			gen := &stubGenerator{err: failure}
			svc := newTestGame(t, store, gen, testConfig())

			_, err := svc.Generate(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, failure)

			// Balance back where it started, both in memory and on disk,
			// and no item was persisted.
			assert.Equal(t, 100, svc.State().Balance)
			assert.Equal(t, 100, store.persistedBalance(t))
			assert.Equal(t, 0, store.itemCount())

			msg := svc.State().Message
			require.NotNil(t, msg)
			assert.Equal(t, model.MessageError, msg.Kind)
		})
	}
}

func TestGenerateRollbackOnPersistFailure(t *testing.T) {
	store := newMemStore()
	insertErr := errors.New("disk full")
	store.insertItemHook = func(model.Item) error { return insertErr }
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())

	_, err := svc.Generate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)

	assert.Equal(t, 100, svc.State().Balance)
	assert.Equal(t, 100, store.persistedBalance(t))
	assert.Equal(t, 0, store.itemCount())
}

func TestGenerateDoubleFailureKeepsMemoryRestored(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{err: generator.ErrTimeout}
	// First PutSetting is the debit; the second is the compensating credit.
	store.putSettingHook = func(key string, call int) error {
		if call == 2 {
			return errors.New("store gone")
		}
		return nil
	}
	svc := newTestGame(t, store, gen, testConfig())

	_, err := svc.Generate(context.Background())
	require.Error(t, err)

	// The in-memory balance is optimistically restored even though the
	// compensating persist failed; the store keeps the debited value.
	assert.Equal(t, 100, svc.State().Balance)
	assert.Equal(t, 90, store.persistedBalance(t))
}

func TestResellLegendaryScenario(t *testing.T) {
	store := newMemStore()
	legendary := generatedItem(1, model.RarityLegendary)
	require.NoError(t, store.InsertItem(context.Background(), legendary))
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())
	ctx := context.Background()

	require.NoError(t, svc.Resell(ctx, legendary.ID))

	state := svc.State()
	assert.Equal(t, 140, state.Balance, "legendary resale credits 40")
	assert.Equal(t, 140, store.persistedBalance(t))

	require.Len(t, state.Items, 1)
	assert.Equal(t, model.StatusResold, state.Items[0].Status)
	assert.Empty(t, filterByStatus(state.Items, model.StatusOwned))
	assert.Len(t, filterByStatus(state.Items, model.StatusResold), 1)

	byID := achievementsByID(state.Achievements)
	assert.True(t, byID[model.AchievementFirstSale].Unlocked)
	assert.True(t, byID[model.AchievementHighRoller].Unlocked, "resold legendary still counts")
}

func TestResellRejectsUnknownAndAlreadyResold(t *testing.T) {
	store := newMemStore()
	item := generatedItem(1, model.RarityCommon)
	item.Status = model.StatusResold
	require.NoError(t, store.InsertItem(context.Background(), item))
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())
	ctx := context.Background()

	assert.ErrorIs(t, svc.Resell(ctx, "no-such-item"), ErrItemNotFound)
	assert.ErrorIs(t, svc.Resell(ctx, item.ID), ErrNotOwned)
	assert.Equal(t, 100, svc.State().Balance)
}

func TestBuyReturnsItemAtDoubleValue(t *testing.T) {
	store := newMemStore()
	item := generatedItem(1, model.RarityEpic)
	item.Status = model.StatusResold
	require.NoError(t, store.InsertItem(context.Background(), item))
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())
	ctx := context.Background()

	require.NoError(t, svc.Buy(ctx, item.ID))

	state := svc.State()
	assert.Equal(t, 60, state.Balance, "epic buy-back costs 2x20")
	assert.Equal(t, 60, store.persistedBalance(t))
	assert.Equal(t, model.StatusOwned, state.Items[0].Status)
}

func TestBuyInsufficientFundsRejectedBeforeAnyWrite(t *testing.T) {
	store := newMemStore()
	item := generatedItem(1, model.RarityMythic) // buy price 160
	item.Status = model.StatusResold
	require.NoError(t, store.InsertItem(context.Background(), item))
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())

	writesBefore := store.putSettingCalls + store.upsertItemCalls
	err := svc.Buy(context.Background(), item.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, writesBefore, store.putSettingCalls+store.upsertItemCalls,
		"rejection happens before any persistence call")
	assert.Equal(t, 100, svc.State().Balance)
	assert.Equal(t, model.StatusResold, svc.State().Items[0].Status)
}

func TestBuyRejectsOwnedItem(t *testing.T) {
	store := newMemStore()
	item := generatedItem(1, model.RarityCommon)
	require.NoError(t, store.InsertItem(context.Background(), item))
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())

	assert.ErrorIs(t, svc.Buy(context.Background(), item.ID), ErrNotResold)
}

func TestToggleFavorite(t *testing.T) {
	store := newMemStore()
	item := generatedItem(1, model.RarityCommon)
	require.NoError(t, store.InsertItem(context.Background(), item))
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())
	ctx := context.Background()

	require.NoError(t, svc.ToggleFavorite(ctx, item.ID))
	assert.True(t, svc.State().Items[0].Favorite)

	persisted, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, persisted.Favorite)

	require.NoError(t, svc.ToggleFavorite(ctx, item.ID))
	assert.False(t, svc.State().Items[0].Favorite)

	// Favorite toggles neither move tokens nor unlock anything.
	assert.Equal(t, 100, svc.State().Balance)
	for _, a := range svc.State().Achievements {
		assert.False(t, a.Unlocked)
	}
}

func TestDailyBonusClaimOncePerDay(t *testing.T) {
	store := newMemStore()
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())
	ctx := context.Background()

	day1 := time.Date(2025, 6, 10, 23, 50, 0, 0, time.UTC)
	svc.now = func() time.Time { return day1 }

	amount, err := svc.ClaimDailyBonus(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, amount, 5)
	assert.LessOrEqual(t, amount, 10)
	assert.Equal(t, 100+amount, svc.State().Balance)
	assert.Equal(t, 100+amount, store.persistedBalance(t))

	// Same calendar day, later hour: no offer, claim rejected locally.
	svc.now = func() time.Time { return day1.Add(5 * time.Minute) }
	assert.False(t, svc.State().Bonus.Available)
	_, err = svc.ClaimDailyBonus(ctx)
	assert.ErrorIs(t, err, ErrBonusUnavailable)

	// Ten minutes later it is the next calendar day: fresh offer in range.
	svc.now = func() time.Time { return day1.Add(15 * time.Minute) }
	state := svc.State()
	assert.True(t, state.Bonus.Available)
	assert.GreaterOrEqual(t, state.Bonus.Amount, 5)
	assert.LessOrEqual(t, state.Bonus.Amount, 10)

	balanceBefore := state.Balance
	amount2, err := svc.ClaimDailyBonus(ctx)
	require.NoError(t, err)
	assert.Equal(t, balanceBefore+amount2, svc.State().Balance)
}

func TestAchievementUnlockIsMonotonic(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{}
	svc := newTestGame(t, store, gen, testConfig())
	ctx := context.Background()

	_, err := svc.Generate(ctx)
	require.NoError(t, err)

	first := achievementsByID(svc.State().Achievements)[model.AchievementFirstForge]
	require.True(t, first.Unlocked)
	require.NotNil(t, first.UnlockedAt)
	firstUnlockTime := *first.UnlockedAt

	// Later evaluations never touch an unlocked achievement, even with a
	// different clock.
	svc.now = func() time.Time { return firstUnlockTime.Add(48 * time.Hour) }
	for i := 0; i < 4; i++ {
		_, err := svc.Generate(ctx)
		require.NoError(t, err)
	}

	again := achievementsByID(svc.State().Achievements)[model.AchievementFirstForge]
	assert.True(t, again.Unlocked)
	assert.Equal(t, firstUnlockTime, *again.UnlockedAt, "unlockedAt is written exactly once")
}

func TestTenForgesUnlocksAtTen(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	cfg.StartingBalance = 200
	svc := newTestGame(t, store, &stubGenerator{}, cfg)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		_, err := svc.Generate(ctx)
		require.NoError(t, err)
	}
	assert.False(t, achievementsByID(svc.State().Achievements)[model.AchievementTenForges].Unlocked)

	_, err := svc.Generate(ctx)
	require.NoError(t, err)
	assert.True(t, achievementsByID(svc.State().Achievements)[model.AchievementTenForges].Unlocked)
}

func TestSettingsToggles(t *testing.T) {
	store := newMemStore()
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())
	ctx := context.Background()

	require.NoError(t, svc.ToggleTheme(ctx))
	assert.Equal(t, model.ThemeDark, svc.State().Settings.Theme)
	require.NoError(t, svc.ToggleTheme(ctx))
	assert.Equal(t, model.ThemeLight, svc.State().Settings.Theme)

	require.NoError(t, svc.ToggleMute(ctx))
	assert.True(t, svc.State().Settings.Muted)

	require.NoError(t, svc.SetPlayerName(ctx, "Red"))
	assert.Equal(t, "Red", svc.State().Settings.Name)

	// Survives a reload from the same store.
	svc2 := NewGameService(store, &stubGenerator{}, testConfig())
	require.NoError(t, svc2.Load(ctx))
	assert.Equal(t, "Red", svc2.State().Settings.Name)
	assert.True(t, svc2.State().Settings.Muted)
}

func TestTransientMessageExpires(t *testing.T) {
	store := newMemStore()
	svc := newTestGame(t, store, &stubGenerator{}, testConfig())

	_, err := svc.Generate(context.Background())
	require.NoError(t, err)

	msg := svc.State().Message
	require.NotNil(t, msg)
	assert.Equal(t, model.MessageSuccess, msg.Kind)

	base := svc.now()
	svc.now = func() time.Time { return base.Add(time.Minute) }
	assert.Nil(t, svc.State().Message, "messages auto-expire")
}

func achievementsByID(achievements []model.Achievement) map[string]model.Achievement {
	byID := make(map[string]model.Achievement, len(achievements))
	for _, a := range achievements {
		byID[a.ID] = a
	}
	return byID
}

func filterByStatus(items []model.Item, status model.ItemStatus) []model.Item {
	var out []model.Item
	for _, item := range items {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out
}
