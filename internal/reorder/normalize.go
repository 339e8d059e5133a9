package reorder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"reorder-go/internal/model"
)

// Defaults applied when a snapshot omits or corrupts a setting.
const (
	DefaultLowThreshold      = 1
	DefaultCheckIntervalDays = 14
)

var (
	defaultSourceCategoryPresets = []string{"Grocery", "Online", "Warehouse"}
	defaultRoomPresets           = []string{"Kitchen", "Bathroom", "Laundry", "Pantry"}
)

type starterItem struct {
	id           string
	name         string
	quantity     int
	lowThreshold int
	room         string
}

var starterItems = []starterItem{
	{id: "dish-soap", name: "Dish Soap", quantity: 1, lowThreshold: 1, room: "Kitchen"},
	{id: "toothpaste", name: "Toothpaste", quantity: 2, lowThreshold: 1, room: "Bathroom"},
	{id: "trash-bags", name: "Trash Bags", quantity: 6, lowThreshold: 3, room: "Kitchen"},
	{id: "paper-towels", name: "Paper Towels", quantity: 2, lowThreshold: 2, room: "Kitchen"},
	{id: "laundry-detergent", name: "Laundry Detergent", quantity: 1, lowThreshold: 1, room: "Laundry"},
}

// Normalizer turns arbitrary input into a canonical Snapshot. It never fails:
// structural defects are repaired field by field, and an unusable top-level
// shape yields the starter snapshot.
type Normalizer struct {
	clock Clock
	idgen IDGenerator
}

// NewNormalizer creates a Normalizer that stamps missing timestamps with
// clock and assigns missing item IDs from idgen.
func NewNormalizer(clock Clock, idgen IDGenerator) *Normalizer {
	return &Normalizer{clock: clock, idgen: idgen}
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() model.Settings {
	return model.Settings{
		DefaultLowThreshold:      DefaultLowThreshold,
		ThemeMode:                model.ThemeLight,
		DefaultCheckIntervalDays: DefaultCheckIntervalDays,
		SourceCategoryPresets:    append([]string{}, defaultSourceCategoryPresets...),
		RoomPresets:              append([]string{}, defaultRoomPresets...),
	}
}

// Starter returns the first-run snapshot at revision 0.
func (n *Normalizer) Starter() model.Snapshot {
	now := canonicalTime(n.clock.Now())
	items := make([]model.Item, 0, len(starterItems))
	for _, s := range starterItems {
		items = append(items, model.Item{
			ID:                s.id,
			Name:              s.name,
			Quantity:          s.quantity,
			LowThreshold:      s.lowThreshold,
			TargetQuantity:    s.lowThreshold + 1,
			SourceCategories:  []string{model.Unassigned},
			Room:              s.room,
			CheckIntervalDays: DefaultCheckIntervalDays,
			LastCheckedAt:     now,
			UpdatedAt:         now,
		})
	}
	return model.Snapshot{
		Items:     items,
		Settings:  DefaultSettings(),
		Shopping:  model.ShoppingPlan{BuyQuantityByItemID: map[string]int{}},
		UpdatedAt: now,
	}
}

// Normalize sanitizes candidate into a canonical Snapshot. candidate may be a
// model.Snapshot, a *model.Snapshot, or a decoded JSON value (map[string]any,
// []any, or anything else).
func (n *Normalizer) Normalize(candidate any) model.Snapshot {
	switch v := candidate.(type) {
	case model.Snapshot:
		return n.canonicalize(v.Clone())
	case *model.Snapshot:
		if v == nil {
			return n.Starter()
		}
		return n.canonicalize(v.Clone())
	case []any:
		settings := DefaultSettings()
		snap := model.Snapshot{
			Items:    n.decodeItems(v, settings),
			Settings: settings,
		}
		return n.canonicalize(snap)
	case map[string]any:
		rawItems, ok := v["items"].([]any)
		if !ok {
			return n.Starter()
		}
		settings := decodeSettings(v["settings"])
		snap := model.Snapshot{
			Items:     n.decodeItems(rawItems, settings),
			Settings:  settings,
			Shopping:  decodeShopping(v["shopping"]),
			UpdatedAt: parseTime(v["updatedAt"]),
			Revision:  parseRevision(v["revision"]),
		}
		return n.canonicalize(snap)
	default:
		return n.Starter()
	}
}

// ParseKind tags the outcome of ParseSnapshot.
type ParseKind int

const (
	ParseOK ParseKind = iota
	ParseMalformed
)

// ParseResult is the tagged outcome of parsing a serialized snapshot.
// Snapshot is only meaningful when Kind is ParseOK.
type ParseResult struct {
	Kind     ParseKind
	Snapshot model.Snapshot
	Err      error
}

// OK reports whether parsing produced a snapshot.
func (r ParseResult) OK() bool { return r.Kind == ParseOK }

// ParseSnapshot decodes a serialized snapshot and normalizes it. Input that is
// not JSON, or JSON that is neither an object with an items array nor a bare
// items array, is reported as malformed instead of being replaced by the
// starter snapshot.
func (n *Normalizer) ParseSnapshot(data []byte) ParseResult {
	raw, err := decodeJSON(data)
	if err != nil {
		return ParseResult{Kind: ParseMalformed, Err: err}
	}
	if !hasItems(raw) {
		return ParseResult{Kind: ParseMalformed, Err: errors.New("snapshot has no items array")}
	}
	return ParseResult{Kind: ParseOK, Snapshot: n.Normalize(raw)}
}

// Serialize encodes a snapshot in the local store schema.
func Serialize(snap model.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

func decodeJSON(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty input")
	}
	var raw any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return raw, nil
}

func hasItems(raw any) bool {
	switch v := raw.(type) {
	case []any:
		return true
	case map[string]any:
		_, ok := v["items"].([]any)
		return ok
	}
	return false
}

// canonicalize enforces every invariant on an already-typed snapshot.
func (n *Normalizer) canonicalize(snap model.Snapshot) model.Snapshot {
	now := canonicalTime(n.clock.Now())

	settings := snap.Settings
	settings.DefaultLowThreshold = max(settings.DefaultLowThreshold, 0)
	if settings.ThemeMode != model.ThemeDark {
		settings.ThemeMode = model.ThemeLight
	}
	if settings.DefaultCheckIntervalDays < 1 {
		settings.DefaultCheckIntervalDays = DefaultCheckIntervalDays
	}
	settings.SourceCategoryPresets = dedupeLabels(settings.SourceCategoryPresets)
	settings.RoomPresets = dedupeLabels(settings.RoomPresets)

	seen := make(map[string]bool, len(snap.Items))
	items := make([]model.Item, 0, len(snap.Items))
	for _, item := range snap.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			continue
		}
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			item.ID = n.idgen.New()
		}
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true

		item.Quantity = max(item.Quantity, 0)
		item.LowThreshold = max(item.LowThreshold, 0)
		item.TargetQuantity = max(item.TargetQuantity, item.LowThreshold+1)
		if item.CheckIntervalDays < 1 {
			item.CheckIntervalDays = settings.DefaultCheckIntervalDays
		}
		item.SourceCategories = dedupeLabels(item.SourceCategories)
		if len(item.SourceCategories) == 0 {
			item.SourceCategories = []string{model.Unassigned}
		}
		item.Room = normalizeRoom(item.Room)
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = now
		}
		item.UpdatedAt = canonicalTime(item.UpdatedAt)
		if item.LastCheckedAt.IsZero() {
			item.LastCheckedAt = item.UpdatedAt
		}
		item.LastCheckedAt = canonicalTime(item.LastCheckedAt)
		items = append(items, item)
	}

	plan := make(map[string]int, len(snap.Shopping.BuyQuantityByItemID))
	for id, qty := range snap.Shopping.BuyQuantityByItemID {
		if id == "" || qty <= 0 || !seen[id] {
			continue
		}
		plan[id] = qty
	}

	return model.Snapshot{
		Items:     items,
		Settings:  settings,
		Shopping:  model.ShoppingPlan{BuyQuantityByItemID: plan},
		UpdatedAt: canonicalTime(snap.UpdatedAt),
		Revision:  max(snap.Revision, 0),
	}
}

func (n *Normalizer) decodeItems(raw []any, settings model.Settings) []model.Item {
	items := make([]model.Item, 0, len(raw))
	for _, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := stringValue(fields["name"])
		if fields["name"] == 0.0 {
			name = ""
		}
		if name == "" {
			continue
		}

		item := model.Item{
			ID:             stringValue(fields["id"]),
			Name:           name,
			Quantity:       parseCount(fields["quantity"]),
			TargetQuantity: parseCount(fields["targetQuantity"]),
			UpdatedAt:      parseTime(fields["updatedAt"]),
			LastCheckedAt:  parseTime(fields["lastCheckedAt"]),
		}

		item.LowThreshold = settings.DefaultLowThreshold
		if v, ok := fields["lowThreshold"]; ok && v != nil {
			item.LowThreshold = parseCount(v)
		}
		item.CheckIntervalDays = parseCount(fields["checkIntervalDays"])

		switch {
		case fields["sourceCategories"] != nil:
			item.SourceCategories = stringList(fields["sourceCategories"])
		case fields["sourceCategory"] != nil:
			item.SourceCategories = []string{stringValue(fields["sourceCategory"])}
		}

		item.Room, _ = fields["room"].(string)
		if strings.TrimSpace(item.Room) == "" {
			item.Room, _ = fields["category"].(string)
		}
		items = append(items, item)
	}
	return items
}

func decodeSettings(raw any) model.Settings {
	settings := DefaultSettings()
	fields, ok := raw.(map[string]any)
	if !ok {
		return settings
	}
	if v, ok := fields["defaultLowThreshold"]; ok && v != nil {
		settings.DefaultLowThreshold = parseCount(v)
	}
	if mode, _ := fields["themeMode"].(string); mode == model.ThemeDark {
		settings.ThemeMode = model.ThemeDark
	}
	if days := parseCount(fields["defaultCheckIntervalDays"]); days >= 1 {
		settings.DefaultCheckIntervalDays = days
	}
	if _, ok := fields["sourceCategoryPresets"].([]any); ok {
		settings.SourceCategoryPresets = stringList(fields["sourceCategoryPresets"])
	}
	if _, ok := fields["roomPresets"].([]any); ok {
		settings.RoomPresets = stringList(fields["roomPresets"])
	}
	return settings
}

func decodeShopping(raw any) model.ShoppingPlan {
	plan := model.ShoppingPlan{BuyQuantityByItemID: map[string]int{}}
	fields, ok := raw.(map[string]any)
	if !ok {
		return plan
	}
	if quantities, ok := fields["buyQuantityByItemId"].(map[string]any); ok {
		for id, v := range quantities {
			if qty := parseCount(v); qty > 0 {
				plan.BuyQuantityByItemID[id] = qty
			}
		}
	}
	// Legacy boolean purchase flags become a buy quantity of one.
	if purchased, ok := fields["purchasedByItemId"].(map[string]any); ok {
		for id, v := range purchased {
			if flag, _ := v.(bool); flag {
				if _, exists := plan.BuyQuantityByItemID[id]; !exists {
					plan.BuyQuantityByItemID[id] = 1
				}
			}
		}
	}
	return plan
}

// dedupeLabels trims labels and drops empties, case-insensitive duplicates and
// the Unassigned sentinel. The first spelling of a label wins.
func dedupeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		key := strings.ToLower(label)
		if label == "" || seen[key] || isUnassigned(label) {
			continue
		}
		seen[key] = true
		out = append(out, label)
	}
	return out
}

func normalizeRoom(room string) string {
	room = strings.TrimSpace(room)
	if room == "" || isUnassigned(room) {
		return model.Unassigned
	}
	return room
}

func isUnassigned(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), model.Unassigned)
}

// parseCount mirrors parseInt-style leniency: numbers are truncated, strings
// contribute their leading integer, anything else is 0. Results are clamped
// to be non-negative.
func parseCount(v any) int {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		n = f
	case string:
		n = float64(leadingInt(x))
	default:
		return 0
	}
	if math.IsNaN(n) || n <= 0 {
		return 0
	}
	if n >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Trunc(n))
}

func parseRevision(v any) int64 {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "true"
		}
	}
	return ""
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return canonicalTime(t)
}
