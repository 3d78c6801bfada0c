package db

import (
	"time"

	"github.com/catalogsync/replicator/internal/models"
)

// LedgerRepository is the persistence contract for the replication item
// ledger (§4.1). Implemented by *Repository; segregated from
// FilterIndexRepository so callers needing only one can depend on a
// narrower interface.
type LedgerRepository interface {
	// GetLatest returns the entry with the greatest DoneTime for
	// (filterID, metadataID), or ok=false if none exists or the lookup
	// failed — storage errors surface as "not found", never as an error,
	// so the Job treats unknown history uniformly.
	GetLatest(filterID, metadataID string) (item models.ReplicationItem, ok bool)

	// GetFailureList returns metadata ids whose latest ledger entry for
	// filterID has a status other than SUCCESS.
	GetFailureList(filterID string) ([]string, error)

	// Save durably appends a new ledger entry.
	Save(item *models.ReplicationItem) error

	// GetAllForFilter returns a page of ledger entries for filterID.
	GetAllForFilter(filterID string, startIndex, pageSize int) ([]models.ReplicationItem, error)

	// RemoveAllForFilter purges every ledger entry for filterID.
	RemoveAllForFilter(filterID string) error
}

// FilterIndexRepository is the persistence contract for per-filter
// watermarks (§4.2, §6).
type FilterIndexRepository interface {
	// GetOrCreate returns the existing index for the filter, or a new one
	// with an empty ModifiedSince if none exists yet.
	GetOrCreate(filter models.Filter) (models.FilterIndex, error)

	// SaveIndex durably persists the current watermark, stamping CURRENT_VERSION.
	SaveIndex(index *models.FilterIndex) error
}

// ReplicationRepository combines the two persistence contracts the
// Syncer.Job depends on.
type ReplicationRepository interface {
	LedgerRepository
	FilterIndexRepository
}

var (
	_ LedgerRepository      = (*Repository)(nil)
	_ FilterIndexRepository = (*Repository)(nil)
	_ ReplicationRepository = (*Repository)(nil)
)

// unixMilli / fromUnixMilli round-trip time.Time through the millisecond
// integer precision §6 mandates for ledger timestamps.
func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
