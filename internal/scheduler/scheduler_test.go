package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/catalogsync/replicator/internal/models"
	coresync "github.com/catalogsync/replicator/internal/sync"
)

// emptyStream immediately reports EOF, so a Job.Sync call completes
// without touching the ledger.
type emptyStream struct{}

func (emptyStream) Next() (models.Metadata, error) { return models.Metadata{}, io.EOF }

// fakeAdapter is a minimal coresync.NodeAdapter good enough to let a
// Job run to completion; scheduler tests care about run accounting,
// not transfer semantics (those are covered in internal/sync).
type fakeAdapter struct {
	name    string
	blockCh chan struct{}
}

func (f *fakeAdapter) SystemName() string { return f.name }
func (f *fakeAdapter) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeAdapter) Query(ctx context.Context, req coresync.QueryRequest) (coresync.MetadataStream, error) {
	if f.blockCh != nil {
		<-f.blockCh
	}
	return emptyStream{}, nil
}
func (f *fakeAdapter) Exists(ctx context.Context, m models.Metadata) (bool, error) { return false, nil }
func (f *fakeAdapter) ReadResource(ctx context.Context, m models.Metadata) (coresync.ResourceResponse, error) {
	return coresync.ResourceResponse{}, errors.New("not implemented")
}
func (f *fakeAdapter) CreateRequest(ctx context.Context, m models.Metadata) (bool, error) { return true, nil }
func (f *fakeAdapter) UpdateRequest(ctx context.Context, m models.Metadata) (bool, error) { return true, nil }
func (f *fakeAdapter) DeleteRequest(ctx context.Context, m models.Metadata) (bool, error) { return true, nil }
func (f *fakeAdapter) CreateResource(ctx context.Context, m models.Metadata, r coresync.ResourceResponse) (bool, error) {
	return true, nil
}
func (f *fakeAdapter) UpdateResource(ctx context.Context, m models.Metadata, r coresync.ResourceResponse) (bool, error) {
	return true, nil
}

// fakeRepo is an in-memory db.ReplicationRepository, sufficient for a
// Job.Sync pass with zero records.
type fakeRepo struct {
	mu      sync.Mutex
	indexes map[string]models.FilterIndex
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{indexes: make(map[string]models.FilterIndex)}
}

func (r *fakeRepo) GetLatest(filterID, metadataID string) (models.ReplicationItem, bool) {
	return models.ReplicationItem{}, false
}
func (r *fakeRepo) GetFailureList(filterID string) ([]string, error) { return nil, nil }
func (r *fakeRepo) Save(item *models.ReplicationItem) error          { return nil }
func (r *fakeRepo) GetAllForFilter(filterID string, startIndex, pageSize int) ([]models.ReplicationItem, error) {
	return nil, nil
}
func (r *fakeRepo) RemoveAllForFilter(filterID string) error { return nil }

func (r *fakeRepo) GetOrCreate(filter models.Filter) (models.FilterIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indexes[filter.ID]; ok {
		return idx, nil
	}
	idx := models.FilterIndex{FilterID: filter.ID}
	r.indexes[filter.ID] = idx
	return idx, nil
}
func (r *fakeRepo) SaveIndex(index *models.FilterIndex) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes[index.FilterID] = *index
	return nil
}

func testFilterJob(id string) FilterJob {
	return FilterJob{
		Filter:      models.Filter{ID: id, Name: id, Query: "all"},
		Source:      &fakeAdapter{name: "source"},
		Destination: &fakeAdapter{name: "destination"},
	}
}

func TestSchedulerTriggerNowRunsJob(t *testing.T) {
	repo := newFakeRepo()
	s := NewScheduler(repo, []FilterJob{testFilterJob("f1")}, time.Hour)

	started := s.TriggerNow(context.Background(), "f1")
	if !started {
		t.Fatal("TriggerNow() = false, want true")
	}

	deadline := time.After(time.Second)
	for {
		statuses := s.Status()
		if !statuses[0].Running {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never finished")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSchedulerTriggerNowUnknownFilter(t *testing.T) {
	repo := newFakeRepo()
	s := NewScheduler(repo, []FilterJob{testFilterJob("f1")}, time.Hour)

	if s.TriggerNow(context.Background(), "nonexistent") {
		t.Error("TriggerNow() = true for unknown filter, want false")
	}
}

func TestSchedulerSkipsFilterAlreadyRunning(t *testing.T) {
	repo := newFakeRepo()
	blockCh := make(chan struct{})
	fj := FilterJob{
		Filter:      models.Filter{ID: "f1", Name: "f1"},
		Source:      &fakeAdapter{name: "source", blockCh: blockCh},
		Destination: &fakeAdapter{name: "destination"},
	}
	s := NewScheduler(repo, []FilterJob{fj}, time.Hour)

	if !s.TriggerNow(context.Background(), "f1") {
		t.Fatal("first TriggerNow() = false, want true")
	}

	// give the first run time to mark itself running
	time.Sleep(20 * time.Millisecond)

	if s.TriggerNow(context.Background(), "f1") {
		t.Error("second TriggerNow() = true while first run in flight, want false")
	}

	close(blockCh)
	s.wg.Wait()
}

func TestSchedulerStartStop(t *testing.T) {
	repo := newFakeRepo()
	s := NewScheduler(repo, []FilterJob{testFilterJob("f1")}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	statuses := s.Status()
	if len(statuses) != 1 {
		t.Fatalf("Status() returned %d entries, want 1", len(statuses))
	}
}

func TestSchedulerRecordsRetryOnError(t *testing.T) {
	repo := newFakeRepo()
	fj := testFilterJob("f1")
	// A source that errors on Query forces Job.Sync to return an error,
	// which the scheduler should turn into a backoff window.
	fj.Source = &erroringAdapter{name: "source"}

	s := NewScheduler(repo, []FilterJob{fj}, time.Hour)
	s.runFilter(context.Background(), fj)

	statuses := s.Status()
	if statuses[0].LastError == "" {
		t.Error("Status().LastError is empty, want the Job's error recorded")
	}
	if !statuses[0].NextAttempt.After(time.Now()) {
		t.Error("Status().NextAttempt is not in the future after a failed run")
	}
}

type erroringAdapter struct {
	name string
}

func (a *erroringAdapter) SystemName() string               { return a.name }
func (a *erroringAdapter) IsAvailable(ctx context.Context) bool { return true }
func (a *erroringAdapter) Query(ctx context.Context, req coresync.QueryRequest) (coresync.MetadataStream, error) {
	return nil, errors.New("query failed")
}
func (a *erroringAdapter) Exists(ctx context.Context, m models.Metadata) (bool, error) { return false, nil }
func (a *erroringAdapter) ReadResource(ctx context.Context, m models.Metadata) (coresync.ResourceResponse, error) {
	return coresync.ResourceResponse{}, errors.New("not implemented")
}
func (a *erroringAdapter) CreateRequest(ctx context.Context, m models.Metadata) (bool, error) { return false, nil }
func (a *erroringAdapter) UpdateRequest(ctx context.Context, m models.Metadata) (bool, error) { return false, nil }
func (a *erroringAdapter) DeleteRequest(ctx context.Context, m models.Metadata) (bool, error) { return false, nil }
func (a *erroringAdapter) CreateResource(ctx context.Context, m models.Metadata, r coresync.ResourceResponse) (bool, error) {
	return false, nil
}
func (a *erroringAdapter) UpdateResource(ctx context.Context, m models.Metadata, r coresync.ResourceResponse) (bool, error) {
	return false, nil
}
