// Package models provides the data types shared by the replication engine
// and its persistence layer.
package models

import (
	"database/sql/driver"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*u = UUID(v)
	case string:
		*u = UUID(v)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Action is the operation a Job performs against the destination for a record.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Status is the outcome of a transfer attempt.
type Status string

const (
	StatusSuccess         Status = "SUCCESS"
	StatusFailure         Status = "FAILURE"
	StatusConnectionLost  Status = "CONNECTION_LOST"
)

// ReplicatedTag is the constant tag the core stamps onto every record it
// hands to a destination.
const ReplicatedTag = "replicated"

// Filter is a named, stored query defining which source records are
// subject to replication. Immutable from the core's perspective.
type Filter struct {
	ID    string
	Name  string
	Query string
}

// Metadata is a record yielded by a source query.
type Metadata struct {
	ID               string
	MetadataModified time.Time
	ResourceURI      string
	ResourceModified time.Time
	ResourceSize     int64
	MetadataSize     int64
	IsDeleted        bool
	Tags             map[string]struct{}
	Lineage          []string
}

// HasResource reports whether this record carries a binary resource.
func (m *Metadata) HasResource() bool {
	return m.ResourceURI != ""
}

// AddTag adds a tag, deduplicated.
func (m *Metadata) AddTag(tag string) {
	if m.Tags == nil {
		m.Tags = make(map[string]struct{})
	}
	m.Tags[tag] = struct{}{}
}

// AppendLineage appends a source-system name, preserving insertion order.
func (m *Metadata) AppendLineage(systemName string) {
	m.Lineage = append(m.Lineage, systemName)
}

// ReplicationItem is an immutable ledger entry describing one transfer
// attempt for a (filterId, metadataId) pair.
type ReplicationItem struct {
	ID               string
	MetadataID       string
	FilterID         string
	SourceName       string
	DestinationName  string
	Action           Action
	Status           Status
	StartTime        time.Time
	DoneTime         time.Time
	MetadataModified time.Time
	ResourceModified time.Time
	MetadataSize     int64
	ResourceSize     int64
}

// FilterIndex is the per-filter watermark. A zero ModifiedSince (IsZero)
// means "no successful observation yet."
type FilterIndex struct {
	FilterID      string
	ModifiedSince time.Time
	Version       int
}
