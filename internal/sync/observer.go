package sync

import "github.com/catalogsync/replicator/internal/models"

// Observer is notified synchronously, in record order, of every ledger
// entry a Job saves.
type Observer interface {
	Observe(item models.ReplicationItem)
}

// dedupeObservers preserves insertion order while dropping duplicate
// handles, matching the "set of observers, identity-comparable" model.
func dedupeObservers(observers []Observer) []Observer {
	seen := make(map[Observer]struct{}, len(observers))
	out := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o == nil {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}
