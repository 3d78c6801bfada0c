// Package local implements coresync.NodeAdapter in-memory, backed by
// a resource.Backend for binary payloads. It stands in for a real
// catalog node in tests, demos, and offline runs.
package local

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/catalogsync/replicator/internal/models"
	"github.com/catalogsync/replicator/internal/resource"
	coresync "github.com/catalogsync/replicator/internal/sync"
)

var _ coresync.NodeAdapter = (*Adapter)(nil)

// Adapter is an in-memory catalog node. Query does not evaluate
// filter.Query as a real expression language — it returns every
// seeded record modified after ModifiedAfter, plus anything in
// IncludeIDs — since there is no real query engine behind an in-memory
// store; the destination-exclusion semantics §4.3 describes for a real
// source are the production adapters' responsibility.
type Adapter struct {
	systemName string
	backend    resource.Backend

	mu        sync.RWMutex
	records   map[string]models.Metadata
	available bool
}

// New constructs an Adapter with an empty record set.
func New(systemName string, backend resource.Backend) *Adapter {
	return &Adapter{
		systemName: systemName,
		backend:    backend,
		records:    make(map[string]models.Metadata),
		available:  true,
	}
}

// Seed preloads records, as a source node would already hold them.
func (a *Adapter) Seed(records ...models.Metadata) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range records {
		a.records[r.ID] = r
	}
}

// SetAvailable toggles the liveness probe, for exercising §4.4's
// CONNECTION_LOST classification in tests.
func (a *Adapter) SetAvailable(available bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.available = available
}

func (a *Adapter) SystemName() string { return a.systemName }

func (a *Adapter) IsAvailable(ctx context.Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.available
}

type sliceStream struct {
	items []models.Metadata
	pos   int
}

func (s *sliceStream) Next() (models.Metadata, error) {
	if s.pos >= len(s.items) {
		return models.Metadata{}, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item, nil
}

func (a *Adapter) Query(ctx context.Context, req coresync.QueryRequest) (coresync.MetadataStream, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	include := make(map[string]bool, len(req.IncludeIDs))
	for _, id := range req.IncludeIDs {
		include[id] = true
	}

	var matched []models.Metadata
	for _, rec := range a.records {
		if include[rec.ID] || req.ModifiedAfter.IsZero() || rec.MetadataModified.After(req.ModifiedAfter) {
			matched = append(matched, rec)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].MetadataModified.Before(matched[j].MetadataModified)
	})

	return &sliceStream{items: matched}, nil
}

func (a *Adapter) Exists(ctx context.Context, metadata models.Metadata) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.records[metadata.ID]
	return ok, nil
}

func (a *Adapter) ReadResource(ctx context.Context, metadata models.Metadata) (coresync.ResourceResponse, error) {
	body, size, err := a.backend.Get(ctx, metadata.ResourceURI)
	if err != nil {
		return coresync.ResourceResponse{}, err
	}
	return coresync.ResourceResponse{Body: body, Size: size}, nil
}

func (a *Adapter) CreateRequest(ctx context.Context, metadata models.Metadata) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[metadata.ID] = metadata
	return true, nil
}

func (a *Adapter) UpdateRequest(ctx context.Context, metadata models.Metadata) (bool, error) {
	return a.CreateRequest(ctx, metadata)
}

func (a *Adapter) DeleteRequest(ctx context.Context, metadata models.Metadata) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.records, metadata.ID)
	return true, nil
}

func (a *Adapter) CreateResource(ctx context.Context, metadata models.Metadata, res coresync.ResourceResponse) (bool, error) {
	if _, err := a.backend.Put(ctx, metadata.ResourceURI, res.Body); err != nil {
		return false, err
	}
	return a.CreateRequest(ctx, metadata)
}

func (a *Adapter) UpdateResource(ctx context.Context, metadata models.Metadata, res coresync.ResourceResponse) (bool, error) {
	return a.CreateResource(ctx, metadata, res)
}
