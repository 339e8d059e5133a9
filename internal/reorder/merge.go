package reorder

import (
	"time"

	"reorder-go/internal/model"
)

// Merge resolves a conflict between the local snapshot and a remote one.
//
// Items are merged per ID: one-sided items are kept, and for items on both
// sides the copy with the later UpdatedAt wins, ties going to local. Settings
// and the shopping plan are taken wholesale from whichever snapshot has the
// later UpdatedAt, again with ties going to local. The result is normalized
// and stamped with now.
//
// Ordering: local items in local order, then remote-only items in remote
// order.
func (n *Normalizer) Merge(local, remote model.Snapshot, now time.Time) model.Snapshot {
	remoteByID := make(map[string]model.Item, len(remote.Items))
	for _, item := range remote.Items {
		if _, dup := remoteByID[item.ID]; !dup {
			remoteByID[item.ID] = item
		}
	}

	merged := make([]model.Item, 0, len(local.Items)+len(remote.Items))
	taken := make(map[string]bool, len(local.Items))
	for _, localItem := range local.Items {
		if taken[localItem.ID] {
			continue
		}
		taken[localItem.ID] = true
		remoteItem, ok := remoteByID[localItem.ID]
		if ok && remoteItem.UpdatedAt.After(localItem.UpdatedAt) {
			merged = append(merged, remoteItem)
			continue
		}
		merged = append(merged, localItem)
	}
	for _, remoteItem := range remote.Items {
		if taken[remoteItem.ID] {
			continue
		}
		taken[remoteItem.ID] = true
		merged = append(merged, remoteItem)
	}

	wholesale := local
	if remote.UpdatedAt.After(local.UpdatedAt) {
		wholesale = remote
	}

	return n.Normalize(model.Snapshot{
		Items:     merged,
		Settings:  wholesale.Settings,
		Shopping:  wholesale.Shopping,
		UpdatedAt: now,
		Revision:  max(local.Revision, remote.Revision),
	})
}
