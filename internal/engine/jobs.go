package engine

import (
	"context"
	"errors"

	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// JobCreateOptions are parameters for posting a job.
type JobCreateOptions struct {
	Title          string
	Description    string
	SkillsRequired string
	ProjectType    string
	Deadline       string
}

// CreateJob posts a new open job into the directory.
func (e Engine) CreateJob(ctx context.Context, adm auth.ActingAdmin, opts JobCreateOptions) (domain.Job, error) {
	if opts.Title == "" {
		return domain.Job{}, invalidArgf("title is required")
	}
	if opts.ProjectType == "" {
		opts.ProjectType = "general"
	}
	j := domain.Job{
		CreatedBy:      adm.User.ID,
		Title:          opts.Title,
		Description:    opts.Description,
		SkillsRequired: opts.SkillsRequired,
		ProjectType:    opts.ProjectType,
		Status:         "open",
		Deadline:       optionalString(opts.Deadline),
		CreatedAt:      e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()
	j, err = e.Repo.InsertJobTx(ctx, tx, j)
	if err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job.created", j.ID, "job", idString(j.ID), adm.User.ID, events.EventPayload{
		"title": j.Title,
	}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// AssignManager hands a job to a manager resolved by username.
func (e Engine) AssignManager(ctx context.Context, adm auth.ActingAdmin, jobID int64, managerUsername string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Job{}, NotFoundError{Entity: "Job"}
		}
		return domain.Job{}, err
	}
	mgr, err := e.Gate.ManagerByUsername(ctx, managerUsername)
	if err != nil {
		var roleErr auth.RoleError
		if errors.As(err, &roleErr) {
			return domain.Job{}, invalidArgf("user %q is not a manager", managerUsername)
		}
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Job{}, NotFoundError{Entity: "Manager"}
		}
		return domain.Job{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateJobTx(ctx, tx, jobID, repo.JobPatch{ManagerID: &mgr.User.ID}); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job.manager.assigned", jobID, "job", idString(jobID), adm.User.ID, events.EventPayload{
		"manager_id": mgr.User.ID,
	}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	j.ManagerID = &mgr.User.ID
	return j, nil
}

// CloseJob marks a job completed. Its batches and tasks are untouched.
func (e Engine) CloseJob(ctx context.Context, adm auth.ActingAdmin, jobID int64) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Job{}, NotFoundError{Entity: "Job"}
		}
		return domain.Job{}, err
	}
	status := "completed"
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateJobTx(ctx, tx, jobID, repo.JobPatch{Status: &status}); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job.closed", jobID, "job", idString(jobID), adm.User.ID, nil); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	j.Status = status
	return j, nil
}

func (e Engine) GetJob(ctx context.Context, jobID int64) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Job{}, NotFoundError{Entity: "Job"}
		}
		return domain.Job{}, err
	}
	return j, nil
}

func (e Engine) ListJobs(ctx context.Context) ([]domain.Job, error) {
	return e.Repo.ListJobs(ctx)
}

// ListManagerJobs returns jobs assigned to the manager.
func (e Engine) ListManagerJobs(ctx context.Context, mgr auth.ActingManager) ([]domain.Job, error) {
	return e.Repo.ListJobsByManager(ctx, mgr.User.ID)
}
