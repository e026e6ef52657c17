package model

// LeaderboardEntry is one row of the leaderboard view. Competitor rows are
// fixed illustrative entries; the player's own row is computed from their
// collection.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Player bool   `json:"player"`
}
