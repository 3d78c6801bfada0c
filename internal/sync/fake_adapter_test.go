package sync

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/catalogsync/replicator/internal/models"
)

// sliceStream is a MetadataStream over an in-memory slice, standing in
// for a lazily-streamed source query result in tests.
type sliceStream struct {
	records []models.Metadata
	pos     int
}

func newSliceStream(records ...models.Metadata) *sliceStream {
	return &sliceStream{records: records}
}

func (s *sliceStream) Next() (models.Metadata, error) {
	if s.pos >= len(s.records) {
		return models.Metadata{}, io.EOF
	}
	m := s.records[s.pos]
	s.pos++
	return m, nil
}

// outcome configures a boolean adapter operation's result.
type outcome struct {
	ok  bool
	err error
}

func success() outcome { return outcome{ok: true} }
func failure() outcome { return outcome{ok: false} }
func transportError(err error) outcome {
	if err == nil {
		err = errors.New("transport error")
	}
	return outcome{err: err}
}

// fakeAdapter is a scriptable NodeAdapter used by Job tests to exercise
// the decision tree and failure classification without any network I/O.
type fakeAdapter struct {
	name      string
	available bool

	queryRecords []models.Metadata
	queryErr     error

	existsResult map[string]outcome
	defaultExists outcome

	createRequestResult  outcome
	updateRequestResult  outcome
	deleteRequestResult  outcome
	createResourceResult outcome
	updateResourceResult outcome
	readResourceErr      error

	calls []string
}

func newFakeAdapter(name string) *fakeAdapter {
	return &fakeAdapter{
		name:          name,
		available:     true,
		existsResult:  make(map[string]outcome),
		defaultExists: success(),
	}
}

func (f *fakeAdapter) SystemName() string { return f.name }

func (f *fakeAdapter) IsAvailable(ctx context.Context) bool { return f.available }

func (f *fakeAdapter) Query(ctx context.Context, req QueryRequest) (MetadataStream, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return newSliceStream(f.queryRecords...), nil
}

func (f *fakeAdapter) Exists(ctx context.Context, metadata models.Metadata) (bool, error) {
	f.calls = append(f.calls, "exists:"+metadata.ID)
	o, ok := f.existsResult[metadata.ID]
	if !ok {
		o = f.defaultExists
	}
	return o.ok, o.err
}

func (f *fakeAdapter) ReadResource(ctx context.Context, metadata models.Metadata) (ResourceResponse, error) {
	f.calls = append(f.calls, "readResource:"+metadata.ID)
	if f.readResourceErr != nil {
		return ResourceResponse{}, f.readResourceErr
	}
	return ResourceResponse{Body: io.NopCloser(strings.NewReader("payload")), Size: 7}, nil
}

func (f *fakeAdapter) CreateRequest(ctx context.Context, metadata models.Metadata) (bool, error) {
	f.calls = append(f.calls, "createRequest:"+metadata.ID)
	return f.createRequestResult.ok, f.createRequestResult.err
}

func (f *fakeAdapter) UpdateRequest(ctx context.Context, metadata models.Metadata) (bool, error) {
	f.calls = append(f.calls, "updateRequest:"+metadata.ID)
	return f.updateRequestResult.ok, f.updateRequestResult.err
}

func (f *fakeAdapter) DeleteRequest(ctx context.Context, metadata models.Metadata) (bool, error) {
	f.calls = append(f.calls, "deleteRequest:"+metadata.ID)
	return f.deleteRequestResult.ok, f.deleteRequestResult.err
}

func (f *fakeAdapter) CreateResource(ctx context.Context, metadata models.Metadata, resource ResourceResponse) (bool, error) {
	f.calls = append(f.calls, "createResource:"+metadata.ID)
	return f.createResourceResult.ok, f.createResourceResult.err
}

func (f *fakeAdapter) UpdateResource(ctx context.Context, metadata models.Metadata, resource ResourceResponse) (bool, error) {
	f.calls = append(f.calls, "updateResource:"+metadata.ID)
	return f.updateResourceResult.ok, f.updateResourceResult.err
}

func (f *fakeAdapter) hasCall(name string) bool {
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

// countingObserver records every item it is notified of, in order.
type countingObserver struct {
	items []models.ReplicationItem
}

func (o *countingObserver) Observe(item models.ReplicationItem) {
	o.items = append(o.items, item)
}

// panickingObserver verifies that a misbehaving observer cannot abort a Job.
type panickingObserver struct{}

func (panickingObserver) Observe(item models.ReplicationItem) {
	panic("boom")
}
