// Package db provides the SQLite-backed implementation of the Ledger
// (ReplicationItemManager) and FilterIndex store.
package db

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/catalogsync/replicator/internal/models"
	"github.com/catalogsync/replicator/internal/uuid"
)

// MinimumVersion and CurrentVersion govern FilterIndex forward/backward
// compatibility (§6): entries older than MinimumVersion are rejected as
// unsupported, entries newer than CurrentVersion are accepted as-is, and
// every write stamps CurrentVersion.
const (
	MinimumVersion = 1
	CurrentVersion = 1
)

// Repository is the SQLite-backed Ledger + FilterIndex store.
type Repository struct {
	db *sql.DB

	// stmtCache avoids re-parsing the same SQL on every call; keyed by
	// the query text, values are *sql.Stmt.
	stmtCache sync.Map
}

// NewRepository creates a Repository over an already-migrated database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt returns a cached prepared statement for query, preparing
// and caching it on first use.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes every cached prepared statement.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(_, value interface{}) bool {
		if err := value.(*sql.Stmt).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// Ledger (ReplicationItemManager)
// =====================================================

const getLatestQuery = `
SELECT id, metadata_id, filter_id, source_name, destination_name, action, status,
       start_time, done_time, metadata_modified, resource_modified, metadata_size, resource_size
FROM replication_items
WHERE filter_id = ? AND metadata_id = ?
ORDER BY done_time DESC
LIMIT 1
`

// GetLatest implements LedgerRepository.
func (r *Repository) GetLatest(filterID, metadataID string) (models.ReplicationItem, bool) {
	stmt, err := r.PrepareStmt(getLatestQuery)
	if err != nil {
		return models.ReplicationItem{}, false
	}

	item, err := scanReplicationItem(stmt.QueryRow(filterID, metadataID))
	if err != nil {
		// Lookup failures surface as "unknown history", never as an error.
		return models.ReplicationItem{}, false
	}
	return item, true
}

const getFailureListQuery = `
SELECT metadata_id FROM replication_items ri
WHERE ri.filter_id = ?
AND ri.status != 'SUCCESS'
AND ri.done_time = (
	SELECT MAX(done_time) FROM replication_items
	WHERE filter_id = ri.filter_id AND metadata_id = ri.metadata_id
)
`

// GetFailureList implements LedgerRepository.
func (r *Repository) GetFailureList(filterID string) ([]string, error) {
	stmt, err := r.PrepareStmt(getFailureListQuery)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(filterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failure list: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan failure list row: %w", err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const saveReplicationItemQuery = `
INSERT INTO replication_items
	(id, metadata_id, filter_id, source_name, destination_name, action, status,
	 start_time, done_time, metadata_modified, resource_modified, metadata_size, resource_size)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Save implements LedgerRepository. The ledger is append-only: this
// never updates an existing row.
func (r *Repository) Save(item *models.ReplicationItem) error {
	if item.ID == "" {
		item.ID = uuid.New()
	}

	stmt, err := r.PrepareStmt(saveReplicationItemQuery)
	if err != nil {
		return err
	}

	var resourceModified interface{}
	if !item.ResourceModified.IsZero() {
		resourceModified = unixMilli(item.ResourceModified)
	}

	_, err = stmt.Exec(
		item.ID, item.MetadataID, item.FilterID, item.SourceName, item.DestinationName,
		string(item.Action), string(item.Status),
		unixMilli(item.StartTime), unixMilli(item.DoneTime),
		unixMilli(item.MetadataModified), resourceModified,
		item.MetadataSize, item.ResourceSize,
	)
	if err != nil {
		return fmt.Errorf("failed to save replication item: %w", err)
	}
	return nil
}

const getAllForFilterQuery = `
SELECT id, metadata_id, filter_id, source_name, destination_name, action, status,
       start_time, done_time, metadata_modified, resource_modified, metadata_size, resource_size
FROM replication_items
WHERE filter_id = ?
ORDER BY id
LIMIT ? OFFSET ?
`

// GetAllForFilter implements LedgerRepository.
func (r *Repository) GetAllForFilter(filterID string, startIndex, pageSize int) ([]models.ReplicationItem, error) {
	stmt, err := r.PrepareStmt(getAllForFilterQuery)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(filterID, pageSize, startIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to list replication items: %w", err)
	}
	defer rows.Close()

	var items []models.ReplicationItem
	for rows.Next() {
		item, err := scanReplicationItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan replication item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RemoveAllForFilter implements LedgerRepository.
func (r *Repository) RemoveAllForFilter(filterID string) error {
	_, err := r.db.Exec("DELETE FROM replication_items WHERE filter_id = ?", filterID)
	if err != nil {
		return fmt.Errorf("failed to remove replication items: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReplicationItem(row rowScanner) (models.ReplicationItem, error) {
	var item models.ReplicationItem
	var action, status string
	var startMs, doneMs, metaModMs int64
	var resourceModMs sql.NullInt64
	var metaSize, resourceSize sql.NullInt64

	err := row.Scan(
		&item.ID, &item.MetadataID, &item.FilterID, &item.SourceName, &item.DestinationName,
		&action, &status, &startMs, &doneMs, &metaModMs, &resourceModMs, &metaSize, &resourceSize,
	)
	if err != nil {
		return models.ReplicationItem{}, err
	}
	if err := uuid.Validate(item.ID); err != nil {
		return models.ReplicationItem{}, fmt.Errorf("ledger row has malformed id: %w", err)
	}

	item.Action = models.Action(action)
	item.Status = models.Status(status)
	item.StartTime = fromUnixMilli(startMs)
	item.DoneTime = fromUnixMilli(doneMs)
	item.MetadataModified = fromUnixMilli(metaModMs)
	if resourceModMs.Valid {
		item.ResourceModified = fromUnixMilli(resourceModMs.Int64)
	}
	if metaSize.Valid {
		item.MetadataSize = metaSize.Int64
	}
	if resourceSize.Valid {
		item.ResourceSize = resourceSize.Int64
	}
	return item, nil
}

// =====================================================
// FilterIndex store (FilterIndexManager)
// =====================================================

const getFilterIndexQuery = `SELECT filter_id, modified_since, version FROM filter_indexes WHERE filter_id = ?`

// GetOrCreate implements FilterIndexRepository.
func (r *Repository) GetOrCreate(filter models.Filter) (models.FilterIndex, error) {
	stmt, err := r.PrepareStmt(getFilterIndexQuery)
	if err != nil {
		return models.FilterIndex{}, err
	}

	var idx models.FilterIndex
	var modifiedSince sql.NullInt64
	err = stmt.QueryRow(filter.ID).Scan(&idx.FilterID, &modifiedSince, &idx.Version)
	if err == sql.ErrNoRows {
		return models.FilterIndex{FilterID: filter.ID, Version: CurrentVersion}, nil
	}
	if err != nil {
		return models.FilterIndex{}, fmt.Errorf("failed to load filter index: %w", err)
	}

	if idx.Version < MinimumVersion {
		return models.FilterIndex{}, fmt.Errorf(
			"filter index %s has unsupported version %d (minimum %d)", filter.ID, idx.Version, MinimumVersion)
	}
	if modifiedSince.Valid {
		idx.ModifiedSince = fromUnixMilli(modifiedSince.Int64)
	}
	return idx, nil
}

const saveFilterIndexQuery = `
INSERT INTO filter_indexes (filter_id, modified_since, version)
VALUES (?, ?, ?)
ON CONFLICT(filter_id) DO UPDATE SET modified_since = excluded.modified_since, version = excluded.version
`

// SaveIndex implements FilterIndexRepository. Writes always stamp CurrentVersion.
func (r *Repository) SaveIndex(index *models.FilterIndex) error {
	index.Version = CurrentVersion

	stmt, err := r.PrepareStmt(saveFilterIndexQuery)
	if err != nil {
		return err
	}

	var modifiedSince interface{}
	if !index.ModifiedSince.IsZero() {
		modifiedSince = unixMilli(index.ModifiedSince)
	}

	_, err = stmt.Exec(index.FilterID, modifiedSince, index.Version)
	if err != nil {
		return fmt.Errorf("failed to save filter index: %w", err)
	}
	return nil
}
