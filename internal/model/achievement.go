package model

import "time"

// Achievement is one of the fixed definitions plus its persisted unlock
// state. Unlock is monotonic: once Unlocked is true it never reverts, and
// UnlockedAt is written exactly once.
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}

// Fixed achievement identifiers.
const (
	AchievementFirstForge = "first_forge"
	AchievementTenForges  = "ten_forges"
	AchievementFirstSale  = "first_sale"
	AchievementHighRoller = "high_roller"
)

// AchievementDefinitions is the static, ordered set of achievements. The
// unlock predicates live in the game service; this table only names them.
var AchievementDefinitions = []Achievement{
	{ID: AchievementFirstForge, Name: "First Forge", Description: "Generate your first Pokémon"},
	{ID: AchievementTenForges, Name: "Ten Forges", Description: "Generate ten Pokémon"},
	{ID: AchievementFirstSale, Name: "First Sale", Description: "Resell a Pokémon on the market"},
	{ID: AchievementHighRoller, Name: "High Roller", Description: "Obtain a legendary or mythic Pokémon"},
}
