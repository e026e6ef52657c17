package model

import "time"

// Rarity is one of five ordered tiers driving resale value.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityMythic    Rarity = "mythic"
)

// resaleValues maps each rarity tier to its fixed resale value in tokens.
var resaleValues = map[Rarity]int{
	RarityCommon:    5,
	RarityRare:      10,
	RarityEpic:      20,
	RarityLegendary: 40,
	RarityMythic:    80,
}

// ResaleValue returns the fixed resale value for the rarity.
// Unknown tiers are valued as common.
func (r Rarity) ResaleValue() int {
	if v, ok := resaleValues[r]; ok {
		return v
	}
	return resaleValues[RarityCommon]
}

// BuyPrice returns the market buy-back price (twice the resale value).
func (r Rarity) BuyPrice() int {
	return 2 * r.ResaleValue()
}

// ItemStatus tracks whether an item sits in the collection or on the market.
type ItemStatus string

const (
	StatusOwned  ItemStatus = "owned"
	StatusResold ItemStatus = "resold"
)

// Item is a generated collectible. ID, Name, Rarity, Image and CreatedAt are
// assigned by the remote generator and never change; only Status and Favorite
// are mutable after creation.
type Item struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Rarity    Rarity     `json:"rarity"`
	Image     string     `json:"image"` // base64-encoded payload, passed through as-is
	Status    ItemStatus `json:"status"`
	Favorite  bool       `json:"favorite"`
	CreatedAt time.Time  `json:"created_at"`
}
