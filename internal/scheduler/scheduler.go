// Package scheduler provides the outer, non-core loop that instantiates
// and runs a Syncer.Job per configured filter. The core leaves this out
// of scope (§5 of the specification it implements); this package
// supplies a concrete implementation: one goroutine per tick, a
// single-Job-per-filter guard, and a backoff-based retry queue for
// filters whose last Job run ended in a scheduler-level error (as
// opposed to a per-record failure, which the Job's own ledger failure
// list already retries on the next pass).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/catalogsync/replicator/internal/db"
	"github.com/catalogsync/replicator/internal/logging"
	"github.com/catalogsync/replicator/internal/models"
	coresync "github.com/catalogsync/replicator/internal/sync"
)

// FilterJob binds a filter to the adapter pair and observers its Job
// should run with.
type FilterJob struct {
	Filter      models.Filter
	Source      coresync.NodeAdapter
	Destination coresync.NodeAdapter
	Observers   []coresync.Observer
}

// Scheduler runs one Job per FilterJob on a fixed interval, enforcing
// that no filter has two Jobs in flight at once.
type Scheduler struct {
	jobs     []FilterJob
	repo     db.ReplicationRepository
	interval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]bool
	retries map[string]*retryState
}

// NewScheduler constructs a Scheduler. interval governs how often the
// tick loop considers each filter for a run; a filter already in
// flight or backed off is skipped until the next tick.
func NewScheduler(repo db.ReplicationRepository, jobs []FilterJob, interval time.Duration) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		repo:     repo,
		interval: interval,
		stopCh:   make(chan struct{}),
		running:  make(map[string]bool),
		retries:  make(map[string]*retryState),
	}
}

// Start begins the tick loop in a background goroutine. Call Stop to
// end it and wait for in-flight Jobs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop signals the tick loop to exit and waits for every in-flight
// Job to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			for _, fj := range s.jobs {
				fj := fj
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.runFilter(ctx, fj)
				}()
			}
		}
	}
}

// runFilter runs one Job for fj, unless it is already running or
// within its backoff window.
func (s *Scheduler) runFilter(ctx context.Context, fj FilterJob) {
	id := fj.Filter.ID

	s.mu.Lock()
	if s.running[id] {
		s.mu.Unlock()
		logging.Debug("skipping filter, job already in flight", map[string]interface{}{"filter_id": id})
		return
	}
	if rs, ok := s.retries[id]; ok && time.Now().Before(rs.nextAttempt) {
		s.mu.Unlock()
		return
	}
	s.running[id] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[id] = false
		s.mu.Unlock()
	}()

	job := coresync.NewJob(fj.Source, fj.Destination, fj.Filter, s.repo, fj.Observers...)

	logging.Info("starting sync job", map[string]interface{}{"filter_id": id, "filter_name": fj.Filter.Name})

	err := job.Sync(ctx)

	s.mu.Lock()
	if err != nil {
		attempts := 0
		if rs, ok := s.retries[id]; ok {
			attempts = rs.attempts
		}
		s.retries[id] = &retryState{
			attempts:    attempts + 1,
			lastError:   err.Error(),
			nextAttempt: time.Now().Add(calculateBackoff(attempts + 1)),
		}
	} else {
		delete(s.retries, id)
	}
	s.mu.Unlock()

	if err != nil {
		logging.ErrorWithCode("sync job failed", "SCHEDULER_JOB_FAILED", err, map[string]interface{}{"filter_id": id})
	} else {
		logging.Info("sync job completed", map[string]interface{}{"filter_id": id})
	}
}

// TriggerNow runs fj's Job immediately, bypassing the tick interval and
// any backoff window, unless it is already running. Returns false if a
// run was already in flight.
func (s *Scheduler) TriggerNow(ctx context.Context, filterID string) bool {
	var target *FilterJob
	for i := range s.jobs {
		if s.jobs[i].Filter.ID == filterID {
			target = &s.jobs[i]
			break
		}
	}
	if target == nil {
		return false
	}

	s.mu.Lock()
	if s.running[filterID] {
		s.mu.Unlock()
		return false
	}
	if rs, ok := s.retries[filterID]; ok {
		rs.nextAttempt = time.Time{}
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runFilter(ctx, *target)
	}()
	return true
}

// FilterStatus summarizes one filter's scheduling state.
type FilterStatus struct {
	FilterID    string
	Running     bool
	LastError   string
	NextAttempt time.Time
}

// Status reports the current scheduling state of every configured filter.
func (s *Scheduler) Status() []FilterStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]FilterStatus, 0, len(s.jobs))
	for _, fj := range s.jobs {
		id := fj.Filter.ID
		st := FilterStatus{FilterID: id, Running: s.running[id]}
		if rs, ok := s.retries[id]; ok {
			st.LastError = rs.lastError
			st.NextAttempt = rs.nextAttempt
		}
		statuses = append(statuses, st)
	}
	return statuses
}
