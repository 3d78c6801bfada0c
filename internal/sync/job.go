package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/catalogsync/replicator/internal/db"
	"github.com/catalogsync/replicator/internal/logging"
	"github.com/catalogsync/replicator/internal/models"
)

// Job runs one synchronous, blocking pass over a filter: it pulls the
// change set from source, decides CREATE/UPDATE/DELETE per record,
// executes the transfer, and records every attempt in the ledger.
// Parallelism across filters or adapter pairs is the outer scheduler's
// responsibility; a Job owns its adapters exclusively for the duration
// of one sync().
type Job struct {
	source, destination NodeAdapter
	filter               models.Filter
	repo                 db.ReplicationRepository
	observers            []Observer
}

// NewJob constructs a Job. Duplicate observer handles are suppressed,
// preserving first-seen order.
func NewJob(source, destination NodeAdapter, filter models.Filter, repo db.ReplicationRepository, observers ...Observer) *Job {
	return &Job{
		source:      source,
		destination: destination,
		filter:      filter,
		repo:        repo,
		observers:   dedupeObservers(observers),
	}
}

// Sync runs one pass to completion. It returns promptly once ctx is
// cancelled, at the next record boundary; a record already in flight
// finishes naturally.
func (j *Job) Sync(ctx context.Context) error {
	index, err := j.repo.GetOrCreate(j.filter)
	if err != nil {
		return fmt.Errorf("failed to load filter index: %w", err)
	}

	failedIDs, err := j.repo.GetFailureList(j.filter.ID)
	if err != nil {
		return fmt.Errorf("failed to load failure list: %w", err)
	}

	req := QueryRequest{
		Query:                 j.filter.Query,
		ExcludeAtDestinations: []string{j.destination.SystemName()},
		IncludeIDs:            failedIDs,
		ModifiedAfter:         index.ModifiedSince,
	}

	stream, err := j.source.Query(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to query source: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		metadata, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read change stream: %w", err)
		}

		if err := j.processRecord(ctx, &index, metadata); err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				return fatal
			}
			// Persistence error: per-record isolation (§7, §9) — abort
			// this record, keep scanning the rest of the change set.
			logging.ErrorWithCode("failed to process record", "JOB_RECORD_FAILED", err, map[string]interface{}{
				"filter_id":   j.filter.ID,
				"metadata_id": metadata.ID,
			})
		}
	}
}

func (j *Job) processRecord(ctx context.Context, index *models.FilterIndex, metadata models.Metadata) error {
	existing, hasExisting := j.repo.GetLatest(j.filter.ID, metadata.ID)

	startTime := time.Now()
	action, status, execErr := j.decideAndExecute(ctx, &metadata, existing, hasExisting)
	if execErr != nil {
		var fatal *FatalError
		if errors.As(execErr, &fatal) {
			return fatal
		}
		resolved := j.classifyFailure(ctx)
		status = &resolved
	}
	doneTime := time.Now()

	if status != nil {
		item := models.ReplicationItem{
			MetadataID:        metadata.ID,
			FilterID:          j.filter.ID,
			SourceName:        j.source.SystemName(),
			DestinationName:   j.destination.SystemName(),
			Action:            action,
			Status:            *status,
			StartTime:         startTime,
			DoneTime:          doneTime,
			MetadataModified:  metadata.MetadataModified,
			ResourceModified:  metadata.ResourceModified,
			MetadataSize:      metadata.MetadataSize,
			ResourceSize:      metadata.ResourceSize,
		}
		if err := j.repo.Save(&item); err != nil {
			j.advanceWatermark(index, metadata.MetadataModified)
			return fmt.Errorf("failed to save ledger entry: %w", err)
		}
		for _, o := range j.observers {
			j.notifyObserver(o, item)
		}
	}

	// Watermark tracks observation, not transfer outcome; it advances
	// even on CONNECTION_LOST or FAILURE.
	j.advanceWatermark(index, metadata.MetadataModified)
	return nil
}

// decideAndExecute implements the §4.4 decision tree and runs the
// resulting transfer as one unit. destination.Exists is one of the
// adapter operations §4.3 says may throw and the Job's failure
// classifier catches and interprets, so its error is returned alongside
// doCreate/doUpdate/doDelete's and processRecord routes it through the
// same classifyFailure path instead of falling through to CREATE.
func (j *Job) decideAndExecute(ctx context.Context, metadata *models.Metadata, existing models.ReplicationItem, hasExisting bool) (models.Action, *models.Status, error) {
	action, err := j.decideAction(ctx, *metadata, existing, hasExisting)
	if err != nil {
		return action, nil, err
	}
	status, err := j.execute(ctx, action, metadata, existing)
	return action, status, err
}

// decideAction implements the §4.4 decision tree.
func (j *Job) decideAction(ctx context.Context, metadata models.Metadata, existing models.ReplicationItem, hasExisting bool) (models.Action, error) {
	if metadata.IsDeleted && hasExisting {
		return models.ActionDelete, nil
	}

	if hasExisting {
		exists, err := j.destination.Exists(ctx, metadata)
		if err != nil {
			return models.ActionUpdate, err
		}
		if exists {
			return models.ActionUpdate, nil
		}
	}

	return models.ActionCreate, nil
}

func (j *Job) execute(ctx context.Context, action models.Action, metadata *models.Metadata, existing models.ReplicationItem) (*models.Status, error) {
	switch action {
	case models.ActionCreate:
		return j.doCreate(ctx, metadata)
	case models.ActionUpdate:
		return j.doUpdate(ctx, metadata, existing)
	case models.ActionDelete:
		return j.doDelete(ctx, metadata)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

// doCreate implements §4.5.
func (j *Job) doCreate(ctx context.Context, metadata *models.Metadata) (*models.Status, error) {
	j.stampLineage(metadata)

	var ok bool
	var err error
	if metadata.HasResource() {
		resource, rerr := j.source.ReadResource(ctx, *metadata)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read resource: %w", rerr)
		}
		defer resource.Body.Close()
		ok, err = j.destination.CreateResource(ctx, *metadata, resource)
	} else {
		ok, err = j.destination.CreateRequest(ctx, *metadata)
	}
	return statusFromResult(ok, err)
}

// doUpdate implements §4.6.
func (j *Job) doUpdate(ctx context.Context, metadata *models.Metadata, existing models.ReplicationItem) (*models.Status, error) {
	j.stampLineage(metadata)

	shouldUpdateMetadata := metadata.MetadataModified.After(existing.MetadataModified) || existing.Status != models.StatusSuccess
	shouldUpdateResource := metadata.HasResource() &&
		(metadata.ResourceModified.After(existing.ResourceModified) || existing.Status != models.StatusSuccess)

	var ok bool
	var err error
	switch {
	case shouldUpdateResource:
		resource, rerr := j.source.ReadResource(ctx, *metadata)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read resource: %w", rerr)
		}
		defer resource.Body.Close()
		ok, err = j.destination.UpdateResource(ctx, *metadata, resource)
	case shouldUpdateMetadata:
		ok, err = j.destination.UpdateRequest(ctx, *metadata)
	default:
		return nil, nil
	}
	return statusFromResult(ok, err)
}

// doDelete implements §4.7.
func (j *Job) doDelete(ctx context.Context, metadata *models.Metadata) (*models.Status, error) {
	ok, err := j.destination.DeleteRequest(ctx, *metadata)
	return statusFromResult(ok, err)
}

func (j *Job) stampLineage(metadata *models.Metadata) {
	metadata.AppendLineage(j.source.SystemName())
	metadata.AddTag(models.ReplicatedTag)
}

func statusFromResult(ok bool, err error) (*models.Status, error) {
	if err != nil {
		return nil, err
	}
	status := models.StatusFailure
	if ok {
		status = models.StatusSuccess
	}
	return &status, nil
}

func (j *Job) classifyFailure(ctx context.Context) models.Status {
	if !j.source.IsAvailable(ctx) || !j.destination.IsAvailable(ctx) {
		return models.StatusConnectionLost
	}
	return models.StatusFailure
}

func (j *Job) advanceWatermark(index *models.FilterIndex, modified time.Time) {
	if modified.IsZero() {
		return
	}
	if index.ModifiedSince.IsZero() || modified.After(index.ModifiedSince) {
		index.ModifiedSince = modified
		if err := j.repo.SaveIndex(index); err != nil {
			logging.ErrorWithCode("failed to persist filter watermark", "JOB_WATERMARK_SAVE_FAILED", err, map[string]interface{}{
				"filter_id": j.filter.ID,
			})
		}
	}
}

// notifyObserver isolates a misbehaving Observer: a panic is logged and
// the remaining observers still run (§4.8).
func (j *Job) notifyObserver(o Observer, item models.ReplicationItem) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithCode("observer panicked", "JOB_OBSERVER_PANIC", fmt.Errorf("%v", r), map[string]interface{}{
				"filter_id":   j.filter.ID,
				"metadata_id": item.MetadataID,
			})
		}
	}()
	o.Observe(item)
}
