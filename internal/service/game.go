// Package service holds the game state controller: it owns the in-memory
// mirror of the persisted game state and runs every state-changing protocol
// (generation, resale, purchase, daily bonus, settings) against the store.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ArthurPoncin/google-ai-gen/internal/generator"
	"github.com/ArthurPoncin/google-ai-gen/internal/model"
	"github.com/ArthurPoncin/google-ai-gen/internal/repository"
)

// Domain errors surfaced to the API layer.
var (
	ErrInsufficientFunds = errors.New("insufficient token balance")
	ErrItemNotFound      = errors.New("item not found")
	ErrNotOwned          = errors.New("item is not owned")
	ErrNotResold         = errors.New("item is not on the market")
	ErrBonusUnavailable  = errors.New("daily bonus already claimed today")
)

// Generator produces one new item per call against the remote endpoint.
type Generator interface {
	Generate(ctx context.Context) (*model.Item, error)
}

// Config holds the fixed game economy values.
type Config struct {
	GenerationCost  int
	StartingBalance int
	BonusMin        int
	BonusMax        int
	MessageTTL      time.Duration
}

// DefaultConfig returns the reference economy.
func DefaultConfig() Config {
	return Config{
		GenerationCost:  10,
		StartingBalance: 100,
		BonusMin:        5,
		BonusMax:        10,
		MessageTTL:      5 * time.Second,
	}
}

const dateLayout = "2006-01-02"

// genState names the phases of one generation attempt, for logging.
type genState string

const (
	stateDebiting       genState = "debiting"
	stateAwaitingRemote genState = "awaiting_remote"
	statePersisting     genState = "persisting"
	stateSettled        genState = "settled"
	stateRolledBack     genState = "rolled_back"
)

// GameService orchestrates the store and the remote generator. It keeps a
// write-through in-memory mirror of the persisted state: every mutation
// persists first, then updates the mirror.
//
// The mutex guards the mirror only. Remote calls happen outside it, so two
// independent protocols may interleave at suspension points; each protocol
// re-reads the mirror immediately before writing, which leaves last-writer-
// wins on the balance as an accepted race (callers are expected to disable
// the triggering control while a protocol is in flight).
type GameService struct {
	store     repository.Store
	generator Generator
	cfg       Config

	mu           sync.Mutex
	loaded       bool
	items        []model.Item // newest first
	balance      int
	settings     model.PlayerSettings
	achievements map[string]model.Achievement
	lastClaimed  string // YYYY-MM-DD, empty when never claimed
	bonusAmount  int    // pending offer amount, rolled when the offer appears
	message      *model.Message

	now func() time.Time
}

// NewGameService creates the controller. Returns nil if store or generator
// is missing.
func NewGameService(store repository.Store, gen Generator, cfg Config) *GameService {
	if store == nil || gen == nil {
		return nil
	}
	if cfg.GenerationCost <= 0 {
		cfg = DefaultConfig()
	}
	return &GameService{
		store:     store,
		generator: gen,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Load pulls all persisted state into the mirror. Call once at startup;
// subsequent calls are no-ops.
func (s *GameService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}

	balance, err := s.loadBalance(ctx)
	if err != nil {
		return err
	}

	settings, err := s.loadPlayerSettings(ctx)
	if err != nil {
		return err
	}

	lastClaimed, err := s.loadDailyBonus(ctx)
	if err != nil {
		return err
	}

	items, err := s.store.GetAllItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	sortNewestFirst(items)

	persisted, err := s.store.GetAllAchievements(ctx)
	if err != nil {
		return fmt.Errorf("failed to load achievements: %w", err)
	}
	achievements := make(map[string]model.Achievement, len(model.AchievementDefinitions))
	for _, def := range model.AchievementDefinitions {
		achievements[def.ID] = def
	}
	for _, rec := range persisted {
		if def, ok := achievements[rec.ID]; ok {
			def.Unlocked = rec.Unlocked
			def.UnlockedAt = rec.UnlockedAt
			achievements[rec.ID] = def
		}
	}

	s.balance = balance
	s.settings = settings
	s.lastClaimed = lastClaimed
	s.items = items
	s.achievements = achievements
	s.loaded = true
	s.refreshBonusOfferLocked()

	log.Printf("[Game] Loaded state: %d items, balance %d, last bonus claim %q",
		len(s.items), s.balance, s.lastClaimed)
	return nil
}

func (s *GameService) loadBalance(ctx context.Context) (int, error) {
	def := mustJSON(model.Balance{Tokens: s.cfg.StartingBalance})
	raw, err := s.store.GetOrCreateSetting(ctx, repository.KeyBalance, def)
	if err != nil {
		return 0, fmt.Errorf("failed to load balance: %w", err)
	}
	var b model.Balance
	if err := unmarshalSetting(raw, &b); err != nil {
		return 0, fmt.Errorf("failed to decode balance: %w", err)
	}
	return b.Tokens, nil
}

func (s *GameService) loadPlayerSettings(ctx context.Context) (model.PlayerSettings, error) {
	def := mustJSON(model.DefaultPlayerSettings())
	raw, err := s.store.GetOrCreateSetting(ctx, repository.KeyPlayerSettings, def)
	if err != nil {
		return model.PlayerSettings{}, fmt.Errorf("failed to load player settings: %w", err)
	}
	var ps model.PlayerSettings
	if err := unmarshalSetting(raw, &ps); err != nil {
		return model.PlayerSettings{}, fmt.Errorf("failed to decode player settings: %w", err)
	}
	return ps, nil
}

func (s *GameService) loadDailyBonus(ctx context.Context) (string, error) {
	raw, err := s.store.GetSetting(ctx, repository.KeyDailyBonus)
	if err != nil {
		return "", fmt.Errorf("failed to load daily bonus: %w", err)
	}
	if raw == nil {
		return "", nil
	}
	var db model.DailyBonus
	if err := unmarshalSetting(raw, &db); err != nil {
		return "", fmt.Errorf("failed to decode daily bonus: %w", err)
	}
	return db.LastClaimed, nil
}

// Generate runs the full generation protocol: debit the balance, call the
// remote generator, persist the result, roll the debit back on any failure.
// The debit is persisted before the remote call is issued; on failure the
// pre-debit balance is restored and that restoration persisted best-effort.
func (s *GameService) Generate(ctx context.Context) (*model.Item, error) {
	cost := s.cfg.GenerationCost

	s.mu.Lock()
	if s.balance < cost {
		s.setMessageLocked(model.MessageWarning,
			fmt.Sprintf("Not enough tokens: generation costs %d", cost))
		s.mu.Unlock()
		return nil, ErrInsufficientFunds
	}

	// Optimistic debit, persisted before the remote call.
	debited := s.balance - cost
	if err := s.persistBalanceLocked(ctx, debited); err != nil {
		s.setMessageLocked(model.MessageError, "Could not reserve tokens, try again")
		s.mu.Unlock()
		return nil, err
	}
	s.balance = debited
	s.mu.Unlock()

	log.Printf("[Game] Generation: %s -> %s (balance %d)", stateDebiting, stateAwaitingRemote, debited)

	item, genErr := s.generator.Generate(ctx)
	if genErr == nil {
		log.Printf("[Game] Generation: %s -> %s (item %s)", stateAwaitingRemote, statePersisting, item.ID)
		if err := s.store.InsertItem(ctx, *item); err != nil {
			genErr = fmt.Errorf("failed to persist item: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if genErr != nil {
		// Compensating credit against the latest mirror balance. Best
		// effort: if this persist fails too, the mirror keeps the restored
		// value and transiently diverges from the store.
		restored := s.balance + cost
		if err := s.persistBalanceLocked(ctx, restored); err != nil {
			log.Printf("[Game] Compensating credit failed, in-memory balance %d diverges from store: %v", restored, err)
		}
		s.balance = restored
		s.setMessageLocked(model.MessageError, userMessage(genErr))
		log.Printf("[Game] Generation: %s (balance restored to %d): %v", stateRolledBack, restored, genErr)
		return nil, genErr
	}

	s.items = append([]model.Item{*item}, s.items...)
	sortNewestFirst(s.items)
	s.evaluateAchievementsLocked(ctx)
	s.setMessageLocked(model.MessageSuccess, fmt.Sprintf("%s joined your collection!", item.Name))
	log.Printf("[Game] Generation: %s (item %s, %s)", stateSettled, item.ID, item.Rarity)

	out := *item
	return &out, nil
}

// Resell moves an owned item to the market and credits its resale value.
func (s *GameService) Resell(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findItemLocked(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	item := s.items[idx]
	if item.Status != model.StatusOwned {
		return ErrNotOwned
	}

	value := item.Rarity.ResaleValue()
	item.Status = model.StatusResold

	if err := s.store.UpsertItem(ctx, item); err != nil {
		s.setMessageLocked(model.MessageError, "Could not complete the sale")
		return err
	}
	if err := s.persistBalanceLocked(ctx, s.balance+value); err != nil {
		s.setMessageLocked(model.MessageError, "Could not complete the sale")
		return err
	}

	s.items[idx] = item
	s.balance += value
	s.evaluateAchievementsLocked(ctx)
	s.setMessageLocked(model.MessageSuccess, fmt.Sprintf("Sold %s for %d tokens", item.Name, value))
	log.Printf("[Game] Resold item %s (%s) for %d, balance %d", item.ID, item.Rarity, value, s.balance)
	return nil
}

// Buy returns a resold item to the collection at twice its resale value.
// Rejected before any persistence when the balance cannot cover the price.
func (s *GameService) Buy(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findItemLocked(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	item := s.items[idx]
	if item.Status != model.StatusResold {
		return ErrNotResold
	}

	price := item.Rarity.BuyPrice()
	if s.balance < price {
		s.setMessageLocked(model.MessageWarning,
			fmt.Sprintf("Not enough tokens: %s costs %d", item.Name, price))
		return ErrInsufficientFunds
	}

	item.Status = model.StatusOwned
	if err := s.store.UpsertItem(ctx, item); err != nil {
		s.setMessageLocked(model.MessageError, "Could not complete the purchase")
		return err
	}
	if err := s.persistBalanceLocked(ctx, s.balance-price); err != nil {
		s.setMessageLocked(model.MessageError, "Could not complete the purchase")
		return err
	}

	s.items[idx] = item
	s.balance -= price
	s.setMessageLocked(model.MessageSuccess, fmt.Sprintf("Bought back %s for %d tokens", item.Name, price))
	log.Printf("[Game] Bought item %s for %d, balance %d", item.ID, price, s.balance)
	return nil
}

// ToggleFavorite flips the favorite flag. No balance interaction, no
// achievement re-evaluation.
func (s *GameService) ToggleFavorite(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findItemLocked(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	item := s.items[idx]
	item.Favorite = !item.Favorite

	if err := s.store.UpsertItem(ctx, item); err != nil {
		return err
	}
	s.items[idx] = item
	return nil
}

// ClaimDailyBonus credits the pending bonus offer and records today as the
// claim date. A second claim on the same calendar day fails the
// precondition; no store call is made.
func (s *GameService) ClaimDailyBonus(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.now().Format(dateLayout)
	if s.lastClaimed == today {
		return 0, ErrBonusUnavailable
	}
	s.refreshBonusOfferLocked()
	amount := s.bonusAmount

	if err := s.persistBalanceLocked(ctx, s.balance+amount); err != nil {
		s.setMessageLocked(model.MessageError, "Could not claim the daily bonus")
		return 0, err
	}
	if err := s.store.PutSetting(ctx, repository.KeyDailyBonus, mustJSON(model.DailyBonus{LastClaimed: today})); err != nil {
		s.setMessageLocked(model.MessageError, "Could not claim the daily bonus")
		return 0, err
	}

	s.balance += amount
	s.lastClaimed = today
	s.bonusAmount = 0
	s.setMessageLocked(model.MessageSuccess, fmt.Sprintf("Daily bonus: +%d tokens", amount))
	log.Printf("[Game] Daily bonus claimed: +%d, balance %d", amount, s.balance)
	return amount, nil
}

// ToggleTheme switches between light and dark.
func (s *GameService) ToggleTheme(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	if next.Theme == model.ThemeDark {
		next.Theme = model.ThemeLight
	} else {
		next.Theme = model.ThemeDark
	}
	return s.persistSettingsLocked(ctx, next)
}

// ToggleMute flips the audio-mute flag.
func (s *GameService) ToggleMute(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	next.Muted = !next.Muted
	return s.persistSettingsLocked(ctx, next)
}

// SetPlayerName updates the display name.
func (s *GameService) SetPlayerName(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	next.Name = name
	return s.persistSettingsLocked(ctx, next)
}

// Snapshot is the full presentation-facing state surface.
type Snapshot struct {
	Items        []model.Item         `json:"items"`
	Balance      int                  `json:"balance"`
	Settings     model.PlayerSettings `json:"settings"`
	Achievements []model.Achievement  `json:"achievements"`
	Bonus        model.BonusOffer     `json:"bonus"`
	Message      *model.Message       `json:"message,omitempty"`
}

// State returns the current surface. Items are newest first; achievements
// always cover all definitions in their fixed order; an expired transient
// message is dropped.
func (s *GameService) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshBonusOfferLocked()

	items := make([]model.Item, len(s.items))
	copy(items, s.items)

	achievements := make([]model.Achievement, 0, len(model.AchievementDefinitions))
	for _, def := range model.AchievementDefinitions {
		achievements = append(achievements, s.achievements[def.ID])
	}

	var msg *model.Message
	if s.message != nil {
		if s.now().After(s.message.ExpiresAt) {
			s.message = nil
		} else {
			m := *s.message
			msg = &m
		}
	}

	return Snapshot{
		Items:        items,
		Balance:      s.balance,
		Settings:     s.settings,
		Achievements: achievements,
		Bonus: model.BonusOffer{
			Available: s.lastClaimed != s.now().Format(dateLayout),
			Amount:    s.bonusAmount,
		},
		Message: msg,
	}
}

// CollectionScore is the player's leaderboard score: the summed resale
// value of every item ever generated, resold or not.
func (s *GameService) CollectionScore() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := 0
	for _, item := range s.items {
		score += item.Rarity.ResaleValue()
	}
	return score
}

// PlayerName returns the current display name.
func (s *GameService) PlayerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Name
}

// evaluateAchievementsLocked re-checks every locked definition against the
// full current item set and persists any fresh unlock with the current
// instant. Already-unlocked achievements are never touched again.
func (s *GameService) evaluateAchievementsLocked(ctx context.Context) {
	generated := len(s.items)
	resold := 0
	highTier := false
	for _, item := range s.items {
		if item.Status == model.StatusResold {
			resold++
		}
		if item.Rarity == model.RarityLegendary || item.Rarity == model.RarityMythic {
			highTier = true
		}
	}

	predicates := map[string]bool{
		model.AchievementFirstForge: generated >= 1,
		model.AchievementTenForges:  generated >= 10,
		model.AchievementFirstSale:  resold >= 1,
		model.AchievementHighRoller: highTier,
	}

	for _, def := range model.AchievementDefinitions {
		current := s.achievements[def.ID]
		if current.Unlocked || !predicates[def.ID] {
			continue
		}

		unlockedAt := s.now().UTC()
		current.Unlocked = true
		current.UnlockedAt = &unlockedAt

		if err := s.store.UpsertAchievement(ctx, current); err != nil {
			log.Printf("[Game] Failed to persist achievement %s: %v", def.ID, err)
			s.setMessageLocked(model.MessageWarning, "Achievement progress could not be saved")
			continue
		}
		s.achievements[def.ID] = current
		log.Printf("[Game] Achievement unlocked: %s", def.ID)
	}
}

// refreshBonusOfferLocked rolls a fresh bonus amount when the calendar day
// has moved past the last claim and no offer is pending yet.
func (s *GameService) refreshBonusOfferLocked() {
	today := s.now().Format(dateLayout)
	if s.lastClaimed == today {
		s.bonusAmount = 0
		return
	}
	if s.bonusAmount == 0 {
		s.bonusAmount = s.cfg.BonusMin + rand.Intn(s.cfg.BonusMax-s.cfg.BonusMin+1)
	}
}

func (s *GameService) persistBalanceLocked(ctx context.Context, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("refusing to persist negative balance %d", tokens)
	}
	if err := s.store.PutSetting(ctx, repository.KeyBalance, mustJSON(model.Balance{Tokens: tokens})); err != nil {
		return fmt.Errorf("failed to persist balance: %w", err)
	}
	return nil
}

func (s *GameService) persistSettingsLocked(ctx context.Context, next model.PlayerSettings) error {
	if err := s.store.PutSetting(ctx, repository.KeyPlayerSettings, mustJSON(next)); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	s.settings = next
	return nil
}

func (s *GameService) setMessageLocked(kind model.MessageKind, text string) {
	s.message = &model.Message{
		Kind:      kind,
		Text:      text,
		ExpiresAt: s.now().Add(s.cfg.MessageTTL),
	}
}

func (s *GameService) findItemLocked(itemID string) int {
	for i := range s.items {
		if s.items[i].ID == itemID {
			return i
		}
	}
	return -1
}

func sortNewestFirst(items []model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

// userMessage turns a protocol failure into user-facing text.
func userMessage(err error) string {
	switch {
	case errors.Is(err, generator.ErrTimeout):
		return "Generation timed out, your tokens were refunded"
	case errors.Is(err, generator.ErrUnreachable):
		return "Could not reach the generator, your tokens were refunded"
	case errors.Is(err, generator.ErrRejected):
		return "The generator rejected the request, your tokens were refunded"
	case errors.Is(err, generator.ErrMalformedResponse):
		return "The generator sent a broken response, your tokens were refunded"
	default:
		return "Generation failed, your tokens were refunded"
	}
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err) // static types above are always marshalable
	}
	return data
}

func unmarshalSetting(raw []byte, dest interface{}) error {
	return json.Unmarshal(raw, dest)
}
