package reorder

import "context"

// Guard applies snapshots written by other contexts on the same device.
// Only a strictly greater revision is adopted, so two contexts can never
// bounce an older snapshot back and forth.
type Guard struct {
	service *Service
	logger  Logger
}

// NewGuard creates a Guard feeding svc.
func NewGuard(svc *Service, logger Logger) *Guard {
	return &Guard{service: svc, logger: logger}
}

// HandleChange processes one change notification and reports whether the
// snapshot was adopted. Other keys and unparseable values are ignored. The
// adopted snapshot is not written back: its origin already persisted it.
func (g *Guard) HandleChange(c Change) bool {
	if c.Key != StorageKey {
		return false
	}
	result := g.service.normalizer.ParseSnapshot([]byte(c.Value))
	if !result.OK() {
		g.logger.Debug("ignoring unparseable change", "error", result.Err)
		return false
	}
	if !g.service.adoptExternal(result.Snapshot) {
		return false
	}
	g.logger.Info("adopted snapshot from another context", "revision", result.Snapshot.Revision)
	return true
}

// Run consumes changes until ctx is done or the channel closes.
func (g *Guard) Run(ctx context.Context, changes <-chan Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			g.HandleChange(c)
		}
	}
}
