package reorder

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"reorder-go/internal/model"
)

// backupDocument is the human-downloadable export format.
type backupDocument struct {
	Items      []model.Item       `json:"items"`
	Settings   model.Settings     `json:"settings"`
	Shopping   model.ShoppingPlan `json:"shopping"`
	UpdatedAt  time.Time          `json:"updatedAt"`
	Revision   int64              `json:"revision"`
	ExportedAt time.Time          `json:"exportedAt"`
}

// ExportBackup writes the current snapshot as an indented JSON backup.
func (s *Service) ExportBackup(w io.Writer) error {
	snap := s.Current()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(backupDocument{
		Items:      snap.Items,
		Settings:   snap.Settings,
		Shopping:   snap.Shopping,
		UpdatedAt:  snap.UpdatedAt,
		Revision:   snap.Revision,
		ExportedAt: canonicalTime(s.clock.Now()),
	})
	if err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	return nil
}

// ParseBackup decodes a backup document. Any shape Normalize accepts with an
// items array is valid; everything else wraps ErrMalformedBackup.
func (n *Normalizer) ParseBackup(data []byte) (model.Snapshot, error) {
	raw, err := decodeJSON(data)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: backup file is not valid JSON", ErrMalformedBackup)
	}
	if !hasItems(raw) {
		return model.Snapshot{}, fmt.Errorf("%w: backup file must contain an items array", ErrMalformedBackup)
	}
	return n.Normalize(raw), nil
}

// ImportBackup replaces the current snapshot with a backup read from r. A
// rejected backup leaves the current state untouched.
func (s *Service) ImportBackup(r io.Reader) (model.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("reading backup: %w", err)
	}
	imported, err := s.normalizer.ParseBackup(data)
	if err != nil {
		return model.Snapshot{}, err
	}
	saved, err := s.Mutate(func(snap *model.Snapshot) error {
		revision := snap.Revision
		*snap = imported
		snap.Revision = max(snap.Revision, revision)
		return nil
	})
	if err != nil {
		return model.Snapshot{}, err
	}
	s.logger.Info("backup imported", "items", len(saved.Items), "revision", saved.Revision)
	return saved, nil
}
