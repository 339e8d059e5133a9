package model

import "time"

// Unassigned is the sentinel label used for items without a source category
// or room. It is never stored in user presets.
const Unassigned = "Unassigned"

// Theme modes accepted in Settings.ThemeMode.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Snapshot is the full synchronized document. Every persisted write replaces
// the whole snapshot; there are no partial patches.
type Snapshot struct {
	Items     []Item       `json:"items"`
	Settings  Settings     `json:"settings"`
	Shopping  ShoppingPlan `json:"shopping"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Revision  int64        `json:"revision"`
}

// Item is a single inventory entry. Identity is the ID.
type Item struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Quantity          int       `json:"quantity"`
	LowThreshold      int       `json:"lowThreshold"`
	TargetQuantity    int       `json:"targetQuantity"`
	SourceCategories  []string  `json:"sourceCategories"`
	Room              string    `json:"room"`
	CheckIntervalDays int       `json:"checkIntervalDays"`
	LastCheckedAt     time.Time `json:"lastCheckedAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Settings holds user preferences that travel with the snapshot.
type Settings struct {
	DefaultLowThreshold      int      `json:"defaultLowThreshold"`
	ThemeMode                string   `json:"themeMode"`
	DefaultCheckIntervalDays int      `json:"defaultCheckIntervalDays"`
	SourceCategoryPresets    []string `json:"sourceCategoryPresets"`
	RoomPresets              []string `json:"roomPresets"`
}

// ShoppingPlan maps item IDs to a positive quantity to buy.
type ShoppingPlan struct {
	BuyQuantityByItemID map[string]int `json:"buyQuantityByItemId"`
}

// ItemByID returns the item with the given id, if present.
func (s *Snapshot) ItemByID(id string) (Item, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// IsLowStock reports whether the item is at or below its threshold.
func (i Item) IsLowStock() bool {
	return i.Quantity <= i.LowThreshold
}

// Clone returns a deep copy so callers can mutate without aliasing the
// canonical in-memory snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Items = make([]Item, len(s.Items))
	for i, item := range s.Items {
		item.SourceCategories = cloneStrings(item.SourceCategories)
		out.Items[i] = item
	}
	out.Settings.SourceCategoryPresets = cloneStrings(s.Settings.SourceCategoryPresets)
	out.Settings.RoomPresets = cloneStrings(s.Settings.RoomPresets)
	out.Shopping.BuyQuantityByItemID = make(map[string]int, len(s.Shopping.BuyQuantityByItemID))
	for id, qty := range s.Shopping.BuyQuantityByItemID {
		out.Shopping.BuyQuantityByItemID[id] = qty
	}
	return out
}

// cloneStrings copies in, returning an empty (non-nil) slice for nil input so
// the JSON form is [] rather than null.
func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
