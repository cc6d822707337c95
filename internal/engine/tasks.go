package engine

import (
	"context"
	"database/sql"
	"errors"

	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// TaskAssignOptions are parameters for carving a capacity slice out of
// a batch for one freelancer.
type TaskAssignOptions struct {
	JobID              int64
	BatchID            int64
	FreelancerUsername string
	Title              string
	Description        string
	Count              int64
	Deadline           string
}

// TaskDetail bundles a task with its batch and assignee for display.
type TaskDetail struct {
	Task       domain.Task  `json:"task"`
	Batch      domain.Batch `json:"batch"`
	Freelancer domain.User  `json:"freelancer"`
}

// CreateTask allocates opts.Count units of the batch's remaining
// capacity to the named freelancer. The remaining value is recomputed
// from the existing task set under the batch lock, so concurrent
// assignments cannot jointly overshoot the capacity. On success the
// calling manager's membership record is updated with the assignment.
func (e Engine) CreateTask(ctx context.Context, mgr auth.ActingManager, opts TaskAssignOptions) (TaskDetail, error) {
	switch {
	case opts.Title == "":
		return TaskDetail{}, invalidArgf("title is required")
	case opts.FreelancerUsername == "":
		return TaskDetail{}, invalidArgf("freelancer username is required")
	case opts.JobID == 0:
		return TaskDetail{}, invalidArgf("job id is required")
	case opts.BatchID == 0:
		return TaskDetail{}, invalidArgf("batch id is required")
	}
	if opts.Count <= 0 {
		return TaskDetail{}, invalidArgf("count must be a positive integer, got %d", opts.Count)
	}
	fl, err := e.freelancerByUsername(ctx, opts.FreelancerUsername)
	if err != nil {
		return TaskDetail{}, err
	}

	release := e.locks.acquire(opts.BatchID)
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return TaskDetail{}, err
	}
	defer tx.Rollback()

	b, err := e.Repo.GetBatchTx(ctx, tx, opts.BatchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TaskDetail{}, NotFoundError{Entity: "Batch"}
		}
		return TaskDetail{}, err
	}
	if b.JobID != opts.JobID {
		return TaskDetail{}, invalidArgf("batch %d does not belong to job %d", opts.BatchID, opts.JobID)
	}
	assigned, err := e.Repo.SumTaskCountTx(ctx, tx, b.ID, 0)
	if err != nil {
		return TaskDetail{}, err
	}
	remaining := b.Capacity - assigned
	if opts.Count > remaining {
		return TaskDetail{}, CapacityExceededError{BatchID: b.ID, Requested: opts.Count, Remaining: remaining}
	}

	now := e.nowString()
	t := domain.Task{
		JobID:       b.JobID,
		BatchID:     b.ID,
		Title:       opts.Title,
		Description: opts.Description,
		Count:       opts.Count,
		Status:      "pending",
		AssignedBy:  mgr.User.ID,
		AssignedTo:  &fl.ID,
		Deadline:    optionalString(opts.Deadline),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t, err = e.Repo.InsertTaskTx(ctx, tx, t)
	if err != nil {
		return TaskDetail{}, err
	}
	if err := e.bumpAssignedTx(ctx, tx, b, mgr.User.ID, fl, opts.Count); err != nil {
		return TaskDetail{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.created", b.JobID, "task", idString(t.ID), mgr.User.ID, events.EventPayload{
		"batch_id":    b.ID,
		"assigned_to": fl.ID,
		"count":       t.Count,
	}); err != nil {
		return TaskDetail{}, err
	}
	if err := tx.Commit(); err != nil {
		return TaskDetail{}, err
	}
	return TaskDetail{Task: t, Batch: b, Freelancer: fl}, nil
}

// TaskEditOptions carries partial task updates. Nil fields are left
// untouched.
type TaskEditOptions struct {
	Title            *string
	Description      *string
	Status           *string
	AssigneeUsername *string
	Count            *int64
	Deadline         *string
}

// EditTask applies a partial update to a task whose parent job the
// manager owns. A count change is re-validated against the batch's
// remaining capacity excluding this task's own prior count, and the
// cached assigned counts in the assigner's membership record are
// adjusted by the difference.
func (e Engine) EditTask(ctx context.Context, mgr auth.ActingManager, taskID int64, opts TaskEditOptions) (domain.Task, error) {
	if opts.Count != nil && *opts.Count <= 0 {
		return domain.Task{}, invalidArgf("count must be a positive integer, got %d", *opts.Count)
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, NotFoundError{Entity: "Task"}
		}
		return domain.Task{}, err
	}

	release := e.locks.acquire(t.BatchID)
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	b, err := e.Repo.GetBatchTx(ctx, tx, t.BatchID)
	if err != nil {
		return domain.Task{}, err
	}
	job, err := e.Repo.GetJob(ctx, t.JobID)
	if err != nil {
		return domain.Task{}, err
	}
	if !taskManagedBy(job, b, mgr.User.ID) {
		return domain.Task{}, PermissionDeniedError{Msg: "task's job belongs to another manager"}
	}
	if opts.Status != nil {
		if err := checkStatusChange(t.Status, *opts.Status); err != nil {
			return domain.Task{}, err
		}
	}
	if opts.Count != nil {
		assignedExcl, err := e.Repo.SumTaskCountTx(ctx, tx, b.ID, t.ID)
		if err != nil {
			return domain.Task{}, err
		}
		remaining := b.Capacity - assignedExcl
		if *opts.Count > remaining {
			return domain.Task{}, CapacityExceededError{BatchID: b.ID, Requested: *opts.Count, Remaining: remaining}
		}
	}
	var newAssignee *domain.User
	if opts.AssigneeUsername != nil {
		fl, err := e.freelancerByUsername(ctx, *opts.AssigneeUsername)
		if err != nil {
			return domain.Task{}, err
		}
		newAssignee = &fl
	}

	patch := repo.TaskPatch{
		Title:       opts.Title,
		Description: opts.Description,
		Status:      opts.Status,
		Count:       opts.Count,
		Deadline:    opts.Deadline,
		UpdatedAt:   e.nowString(),
	}
	if newAssignee != nil {
		patch.AssignedTo = &newAssignee.ID
	}
	if err := e.Repo.UpdateTaskTx(ctx, tx, t.ID, patch); err != nil {
		return domain.Task{}, err
	}
	if err := e.adjustLedgerTx(ctx, tx, b, t, newAssignee, opts.Count); err != nil {
		return domain.Task{}, err
	}
	updated, err := e.Repo.GetTaskTx(ctx, tx, t.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", b.JobID, "task", idString(t.ID), mgr.User.ID, events.EventPayload{
		"count":  updated.Count,
		"status": updated.Status,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

// adjustLedgerTx keeps the assigner's membership record's cached
// assigned counts in step with a task edit: a count change moves the
// difference, a reassignment moves the whole slice from the old
// assignee's entry to the new one.
func (e Engine) adjustLedgerTx(ctx context.Context, tx *sql.Tx, b domain.Batch, prior domain.Task, newAssignee *domain.User, newCount *int64) error {
	count := prior.Count
	if newCount != nil {
		count = *newCount
	}
	reassigned := newAssignee != nil && (prior.AssignedTo == nil || *prior.AssignedTo != newAssignee.ID)

	if reassigned {
		if prior.AssignedTo != nil {
			old, err := e.Repo.GetUser(ctx, *prior.AssignedTo)
			if err != nil {
				return err
			}
			if err := e.bumpAssignedTx(ctx, tx, b, prior.AssignedBy, old, -prior.Count); err != nil {
				return err
			}
		}
		return e.bumpAssignedTx(ctx, tx, b, prior.AssignedBy, *newAssignee, count)
	}
	delta := count - prior.Count
	if delta == 0 || prior.AssignedTo == nil {
		return nil
	}
	assignee, err := e.Repo.GetUser(ctx, *prior.AssignedTo)
	if err != nil {
		return err
	}
	return e.bumpAssignedTx(ctx, tx, b, prior.AssignedBy, assignee, delta)
}

// SetTaskStatus advances a task's status as its assigned freelancer.
// A task assigned to someone else is outside the caller's visibility
// and reads as absent.
func (e Engine) SetTaskStatus(ctx context.Context, fl auth.ActingFreelancer, taskID int64, status string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, NotFoundError{Entity: "Task"}
		}
		return domain.Task{}, err
	}
	if t.AssignedTo == nil || *t.AssignedTo != fl.User.ID {
		return domain.Task{}, NotFoundError{Entity: "Task"}
	}
	return e.setStatus(ctx, t, status, fl.User.ID)
}

// SetTaskStatusAsManager changes a task's status as the owner of its
// parent job.
func (e Engine) SetTaskStatusAsManager(ctx context.Context, mgr auth.ActingManager, taskID int64, status string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, NotFoundError{Entity: "Task"}
		}
		return domain.Task{}, err
	}
	b, err := e.Repo.GetBatch(ctx, t.BatchID)
	if err != nil {
		return domain.Task{}, err
	}
	job, err := e.Repo.GetJob(ctx, t.JobID)
	if err != nil {
		return domain.Task{}, err
	}
	if !taskManagedBy(job, b, mgr.User.ID) {
		return domain.Task{}, PermissionDeniedError{Msg: "task's job belongs to another manager"}
	}
	return e.setStatus(ctx, t, status, mgr.User.ID)
}

func (e Engine) setStatus(ctx context.Context, t domain.Task, status string, actorID int64) (domain.Task, error) {
	if err := checkStatusChange(t.Status, status); err != nil {
		return domain.Task{}, err
	}
	if t.Status == status {
		return t, nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	from := t.Status
	patch := repo.TaskPatch{Status: &status, UpdatedAt: e.nowString()}
	if err := e.Repo.UpdateTaskTx(ctx, tx, t.ID, patch); err != nil {
		return domain.Task{}, err
	}
	updated, err := e.Repo.GetTaskTx(ctx, tx, t.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.status.changed", t.JobID, "task", idString(t.ID), actorID, events.EventPayload{
		"from": from,
		"to":   status,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

func checkStatusChange(from, to string) error {
	switch to {
	case "pending", "in_progress", "completed":
	default:
		return invalidArgf("unknown task status %q", to)
	}
	if from == "completed" && to != "completed" {
		return invalidArgf("completed tasks cannot be reopened")
	}
	return nil
}

// freelancerByUsername resolves a username to a freelancer account. A
// missing user and a user holding another role both read as absent.
func (e Engine) freelancerByUsername(ctx context.Context, username string) (domain.User, error) {
	u, err := e.Repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, NotFoundError{Entity: "Freelancer"}
		}
		return domain.User{}, err
	}
	if u.Role != auth.RoleFreelancer {
		return domain.User{}, NotFoundError{Entity: "Freelancer"}
	}
	return u, nil
}
