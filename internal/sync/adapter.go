// Package sync implements the core replication engine: the per-filter
// Job that pulls changed records from a source NodeAdapter and pushes
// them to a destination NodeAdapter, recording every attempt in the
// ledger.
package sync

import (
	"context"
	"io"
	"time"

	"github.com/catalogsync/replicator/internal/models"
)

// QueryRequest describes the change set a Job asks a source NodeAdapter
// to yield: records matching filter.Query that the named destinations
// do not already hold, plus records whose id is in IncludeIDs
// regardless of destination presence, modified after ModifiedAfter (a
// zero value means "from the beginning").
type QueryRequest struct {
	Query                 string
	ExcludeAtDestinations []string
	IncludeIDs            []string
	ModifiedAfter         time.Time
}

// MetadataStream is a once-consumable, lazily-produced sequence of
// Metadata. Next returns io.EOF when exhausted.
type MetadataStream interface {
	Next() (models.Metadata, error)
}

// ResourceResponse streams a binary resource payload.
type ResourceResponse struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// NodeAdapter is the capability set the core depends on for both the
// source and destination side of a Job. Two concrete types implement
// it: the REST adapter (internal/adapter/rest) and the in-memory
// adapter (internal/adapter/local); no class hierarchy is needed.
type NodeAdapter interface {
	// SystemName is the stable identifier used for lineage and log context.
	SystemName() string

	// IsAvailable is a cheap liveness probe, used only to classify failures.
	IsAvailable(ctx context.Context) bool

	// Query requests records matching req, returned as a lazily-consumed stream.
	Query(ctx context.Context, req QueryRequest) (MetadataStream, error)

	// Exists reports whether this node already holds a record with metadata.ID.
	Exists(ctx context.Context, metadata models.Metadata) (bool, error)

	// ReadResource streams the binary payload referenced by metadata.ResourceURI.
	ReadResource(ctx context.Context, metadata models.Metadata) (ResourceResponse, error)

	CreateRequest(ctx context.Context, metadata models.Metadata) (bool, error)
	UpdateRequest(ctx context.Context, metadata models.Metadata) (bool, error)
	DeleteRequest(ctx context.Context, metadata models.Metadata) (bool, error)

	CreateResource(ctx context.Context, metadata models.Metadata, resource ResourceResponse) (bool, error)
	UpdateResource(ctx context.Context, metadata models.Metadata, resource ResourceResponse) (bool, error)
}

// FatalError marks a machine-level failure (e.g. out of memory) that
// must propagate out of a Job rather than be recorded as a FAILURE or
// CONNECTION_LOST ledger entry.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }
