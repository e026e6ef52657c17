package model

// Theme is the player's display theme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Balance is the singleton token-balance row. Never negative: mutations that
// would drive it below zero are rejected before they reach the store.
type Balance struct {
	Tokens int `json:"tokens"`
}

// DailyBonus records the calendar date (YYYY-MM-DD, no time-of-day) of the
// last successful bonus claim. At most one claim per day.
type DailyBonus struct {
	LastClaimed string `json:"last_claimed"`
}

// PlayerSettings is the singleton player-preferences row, created with
// defaults on first access.
type PlayerSettings struct {
	Theme Theme  `json:"theme"`
	Muted bool   `json:"muted"`
	Name  string `json:"name"`
}

// DefaultPlayerSettings returns the record written on first access.
func DefaultPlayerSettings() PlayerSettings {
	return PlayerSettings{
		Theme: ThemeLight,
		Muted: false,
		Name:  "Trainer",
	}
}

// BonusOffer is the daily-bonus portion of the presentation surface.
type BonusOffer struct {
	Available bool `json:"available"`
	Amount    int  `json:"amount"`
}
