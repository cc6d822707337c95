// Package engine implements the work allocation core: batch capacity
// accounting, membership reconciliation, task assignment and
// application promotion. Tasks are the ledger of record for consumed
// capacity; remaining capacity is always recomputed from them.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Gate   auth.Gate
	Config *config.Config
	Now    func() time.Time

	locks *batchLocks
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db},
		Gate:   auth.Gate{Repo: r},
		Config: cfg,
		Now:    time.Now,
		locks:  newBatchLocks(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) allowOverdraft() bool {
	return e.Config != nil && e.Config.Allocation.AllowOverdraft
}

// BatchCreateOptions are parameters for carving a batch out of a job.
type BatchCreateOptions struct {
	JobID    int64
	Capacity int64
	Deadline string
}

// CreateBatch creates a batch under one of the manager's jobs and
// snapshots the job's name, type and skills into it. Later job edits
// do not propagate to the batch.
func (e Engine) CreateBatch(ctx context.Context, mgr auth.ActingManager, opts BatchCreateOptions) (domain.Batch, error) {
	if opts.Capacity < 0 {
		return domain.Batch{}, invalidArgf("capacity must be non-negative, got %d", opts.Capacity)
	}
	job, err := e.Repo.GetJob(ctx, opts.JobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Batch{}, NotFoundError{Entity: "Job"}
		}
		return domain.Batch{}, err
	}
	if !jobOwnedBy(job, mgr.User.ID) {
		// an unowned job is indistinguishable from an absent one
		return domain.Batch{}, NotFoundError{Entity: "Job"}
	}

	b := domain.Batch{
		JobID:          job.ID,
		ProjectName:    job.Title,
		ProjectType:    job.ProjectType,
		SkillsRequired: job.SkillsRequired,
		Capacity:       opts.Capacity,
		Deadline:       optionalString(opts.Deadline),
		CreatedBy:      mgr.User.ID,
		CreatedAt:      e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Batch{}, err
	}
	defer tx.Rollback()

	b, err = e.Repo.InsertBatchTx(ctx, tx, b)
	if err != nil {
		return domain.Batch{}, err
	}
	if err := e.Events.Append(ctx, tx, "batch.created", job.ID, "batch", idString(b.ID), mgr.User.ID, events.EventPayload{
		"capacity": b.Capacity,
	}); err != nil {
		return domain.Batch{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Batch{}, err
	}
	return b, nil
}

// BatchEditOptions carries partial batch updates. Nil fields are left
// untouched.
type BatchEditOptions struct {
	Capacity       *int64
	Deadline       *string
	SkillsRequired *string
	ProjectType    *string
}

// EditBatch applies a partial update to a batch the manager created.
// A capacity reduction below the already-assigned total is rejected
// with CapacityExceeded unless overdraft is allowed by config, in
// which case views surface the negative remaining.
func (e Engine) EditBatch(ctx context.Context, mgr auth.ActingManager, batchID int64, opts BatchEditOptions) (domain.Batch, error) {
	if opts.Capacity != nil && *opts.Capacity < 0 {
		return domain.Batch{}, invalidArgf("capacity must be non-negative, got %d", *opts.Capacity)
	}

	release := e.locks.acquire(batchID)
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Batch{}, err
	}
	defer tx.Rollback()

	b, err := e.Repo.GetBatchTx(ctx, tx, batchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Batch{}, NotFoundError{Entity: "Batch"}
		}
		return domain.Batch{}, err
	}
	if b.CreatedBy != mgr.User.ID {
		return domain.Batch{}, PermissionDeniedError{Msg: "batch belongs to another manager"}
	}
	if opts.Capacity != nil && !e.allowOverdraft() {
		assigned, err := e.Repo.SumTaskCountTx(ctx, tx, batchID, 0)
		if err != nil {
			return domain.Batch{}, err
		}
		if *opts.Capacity < assigned {
			return domain.Batch{}, CapacityExceededError{
				BatchID:   batchID,
				Requested: *opts.Capacity,
				Remaining: *opts.Capacity - assigned,
			}
		}
	}
	patch := repo.BatchPatch{
		Capacity:       opts.Capacity,
		Deadline:       opts.Deadline,
		SkillsRequired: opts.SkillsRequired,
		ProjectType:    opts.ProjectType,
	}
	if err := e.Repo.UpdateBatchTx(ctx, tx, batchID, patch); err != nil {
		return domain.Batch{}, err
	}
	updated, err := e.Repo.GetBatchTx(ctx, tx, batchID)
	if err != nil {
		return domain.Batch{}, err
	}
	if err := e.Events.Append(ctx, tx, "batch.updated", b.JobID, "batch", idString(batchID), mgr.User.ID, events.EventPayload{
		"capacity": updated.Capacity,
	}); err != nil {
		return domain.Batch{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Batch{}, err
	}
	return updated, nil
}

// RemainingCapacity recomputes a batch's free capacity from its task
// set. It can be negative when overdraft is allowed.
func (e Engine) RemainingCapacity(ctx context.Context, batchID int64) (int64, error) {
	b, err := e.Repo.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, NotFoundError{Entity: "Batch"}
		}
		return 0, err
	}
	assigned, err := e.Repo.SumTaskCount(ctx, batchID)
	if err != nil {
		return 0, err
	}
	return b.Capacity - assigned, nil
}

// DeleteBatch removes a batch along with its tasks and membership
// records in one transaction. This is the only bulk task removal path.
func (e Engine) DeleteBatch(ctx context.Context, mgr auth.ActingManager, batchID int64) error {
	release := e.locks.acquire(batchID)
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	b, err := e.Repo.GetBatchTx(ctx, tx, batchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Entity: "Batch"}
		}
		return err
	}
	if b.CreatedBy != mgr.User.ID {
		return PermissionDeniedError{Msg: "batch belongs to another manager"}
	}
	if err := e.Repo.DeleteBatchTx(ctx, tx, batchID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "batch.deleted", b.JobID, "batch", idString(batchID), mgr.User.ID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// GetBatch returns a batch by id.
func (e Engine) GetBatch(ctx context.Context, batchID int64) (domain.Batch, error) {
	b, err := e.Repo.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Batch{}, NotFoundError{Entity: "Batch"}
		}
		return domain.Batch{}, err
	}
	return b, nil
}

func jobOwnedBy(job domain.Job, managerID int64) bool {
	if job.ManagerID != nil {
		return *job.ManagerID == managerID
	}
	return job.CreatedBy == managerID
}

// taskManagedBy reports whether managerID owns a task's parent job,
// falling back to the batch creator only for jobs without an assigned
// manager. Reassigning a job therefore revokes the old batch creator's
// task rights.
func taskManagedBy(job domain.Job, batch domain.Batch, managerID int64) bool {
	if job.ManagerID != nil {
		return *job.ManagerID == managerID
	}
	return batch.CreatedBy == managerID
}

// --- helpers ---

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
