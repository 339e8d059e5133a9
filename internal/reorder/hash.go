package reorder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"reorder-go/internal/model"
)

// hashedContent is the part of a snapshot that carries meaning. UpdatedAt and
// Revision are left out so equal hashes mean "no semantic difference".
type hashedContent struct {
	Items    []model.Item       `json:"items"`
	Settings model.Settings     `json:"settings"`
	Shopping model.ShoppingPlan `json:"shopping"`
}

// StructuralHash returns a hex SHA-256 over a snapshot's items, settings and
// shopping plan. Map keys are encoded in sorted order, so the hash is stable.
func StructuralHash(snap model.Snapshot) (string, error) {
	data, err := json.Marshal(hashedContent{
		Items:    snap.Items,
		Settings: snap.Settings,
		Shopping: snap.Shopping,
	})
	if err != nil {
		return "", fmt.Errorf("encoding snapshot for hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
