package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ArthurPoncin/google-ai-gen/internal/cache"
	"github.com/ArthurPoncin/google-ai-gen/internal/model"
)

const leaderboardCacheKey = "leaderboard"

// competitors is the fixed illustrative leaderboard field. There is no
// multiplayer backend; only the player's own row is live.
var competitors = []model.LeaderboardEntry{
	{Name: "Professor Birch", Score: 640},
	{Name: "MissingNo_Fan", Score: 455},
	{Name: "ShinyHunter92", Score: 310},
	{Name: "Team Rocket Grunt", Score: 185},
	{Name: "Youngster Joey", Score: 60},
}

// LeaderboardService assembles the leaderboard view: the fixed competitor
// field plus the player's live row, cached for the configured TTL.
type LeaderboardService struct {
	game  *GameService
	cache cache.Cache
	ttl   time.Duration
}

// NewLeaderboardService creates the leaderboard service. Returns nil if
// either dependency is missing.
func NewLeaderboardService(game *GameService, c cache.Cache, ttl time.Duration) *LeaderboardService {
	if game == nil || c == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LeaderboardService{game: game, cache: c, ttl: ttl}
}

// Entries returns the ranked leaderboard, newest score state included. The
// computed view is cached; Invalidate drops it after a state change.
func (s *LeaderboardService) Entries(ctx context.Context) ([]model.LeaderboardEntry, error) {
	data, err := s.cache.GetOrSet(ctx, leaderboardCacheKey, s.ttl, func() ([]byte, error) {
		return json.Marshal(s.compute())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard: %w", err)
	}

	var entries []model.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode cached leaderboard: %w", err)
	}
	return entries, nil
}

// Invalidate drops the cached view so the next read recomputes it.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	_ = s.cache.Delete(ctx, leaderboardCacheKey)
}

func (s *LeaderboardService) compute() []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, len(competitors), len(competitors)+1)
	copy(entries, competitors)
	entries = append(entries, model.LeaderboardEntry{
		Name:   s.game.PlayerName(),
		Score:  s.game.CollectionScore(),
		Player: true,
	})

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
