// Package observer collects Job observer implementations that don't
// belong to any one transport: a structured-logging observer and a
// counting observer used by tests to assert exhaustive fan-out
// (TESTABLE PROPERTY 4).
package observer

import (
	"sync"

	"github.com/catalogsync/replicator/internal/logging"
	"github.com/catalogsync/replicator/internal/models"
	coresync "github.com/catalogsync/replicator/internal/sync"
)

var _ coresync.Observer = (*LoggingObserver)(nil)

// LoggingObserver writes one structured log line per saved ledger entry.
type LoggingObserver struct{}

// NewLoggingObserver constructs a LoggingObserver.
func NewLoggingObserver() *LoggingObserver {
	return &LoggingObserver{}
}

// Observe logs item at INFO, or WARN for a non-SUCCESS status.
func (o *LoggingObserver) Observe(item models.ReplicationItem) {
	ctx := map[string]interface{}{
		"filter_id":   item.FilterID,
		"metadata_id": item.MetadataID,
		"action":      string(item.Action),
		"status":      string(item.Status),
	}
	if item.Status == models.StatusSuccess {
		logging.Info("replicated item", ctx)
		return
	}
	logging.Warn("replication attempt did not succeed", ctx)
}

var _ coresync.Observer = (*CountingObserver)(nil)

// CountingObserver records every item it receives, guarded by a mutex
// so it can be shared across concurrent Jobs in tests.
type CountingObserver struct {
	mu    sync.Mutex
	items []models.ReplicationItem
}

// NewCountingObserver constructs a CountingObserver.
func NewCountingObserver() *CountingObserver {
	return &CountingObserver{}
}

// Observe records item.
func (o *CountingObserver) Observe(item models.ReplicationItem) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, item)
}

// Items returns a copy of every item observed so far.
func (o *CountingObserver) Items() []models.ReplicationItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.ReplicationItem, len(o.items))
	copy(out, o.items)
	return out
}

// Count returns the number of items observed so far.
func (o *CountingObserver) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
