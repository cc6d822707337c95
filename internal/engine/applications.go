package engine

import (
	"context"
	"errors"

	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// Apply submits the freelancer's application to a batch. Applications
// are unique per freelancer and batch, and a freelancer already in the
// batch's membership cannot apply again.
func (e Engine) Apply(ctx context.Context, fl auth.ActingFreelancer, batchID int64) (domain.Application, error) {
	b, err := e.Repo.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Application{}, NotFoundError{Entity: "Batch"}
		}
		return domain.Application{}, err
	}
	members, err := e.ListMembers(ctx, b.ID)
	if err != nil {
		return domain.Application{}, err
	}
	for _, m := range members {
		if m.ID == fl.User.ID || (m.ID == 0 && m.Name == fl.User.Username) {
			return domain.Application{}, invalidArgf("already a member of batch %d", batchID)
		}
	}
	if _, err := e.Repo.GetApplicationFor(ctx, fl.User.ID, batchID); err == nil {
		return domain.Application{}, invalidArgf("already applied to batch %d", batchID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Application{}, err
	}

	a := domain.Application{
		FreelancerID: fl.User.ID,
		BatchID:      batchID,
		Status:       "applied",
		AppliedAt:    e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()
	a, err = e.Repo.InsertApplicationTx(ctx, tx, a)
	if err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, "application.submitted", b.JobID, "application", idString(a.ID), fl.User.ID, events.EventPayload{
		"batch_id": batchID,
	}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

// ListMyApplications returns the freelancer's own applications.
func (e Engine) ListMyApplications(ctx context.Context, fl auth.ActingFreelancer) ([]domain.Application, error) {
	return e.Repo.ListApplicationsByFreelancer(ctx, fl.User.ID)
}

// ListBatchApplications returns a batch's applications for the manager
// who created it.
func (e Engine) ListBatchApplications(ctx context.Context, mgr auth.ActingManager, batchID int64) ([]domain.Application, error) {
	b, err := e.Repo.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NotFoundError{Entity: "Batch"}
		}
		return nil, err
	}
	if b.CreatedBy != mgr.User.ID {
		return nil, PermissionDeniedError{Msg: "batch belongs to another manager"}
	}
	return e.Repo.ListApplicationsByBatch(ctx, batchID)
}

// ReviewApplication records the manager's accept or reject decision.
// Accepting promotes the applicant into the batch's membership.
func (e Engine) ReviewApplication(ctx context.Context, mgr auth.ActingManager, applicationID int64, decision string) (domain.Application, error) {
	if decision != "accepted" && decision != "rejected" {
		return domain.Application{}, invalidArgf("decision must be accepted or rejected, got %q", decision)
	}
	a, err := e.Repo.GetApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Application{}, NotFoundError{Entity: "Application"}
		}
		return domain.Application{}, err
	}
	b, err := e.Repo.GetBatch(ctx, a.BatchID)
	if err != nil {
		return domain.Application{}, err
	}
	if b.CreatedBy != mgr.User.ID {
		return domain.Application{}, PermissionDeniedError{Msg: "batch belongs to another manager"}
	}
	if a.Status != "applied" {
		return domain.Application{}, invalidArgf("application already %s", a.Status)
	}
	if decision == "accepted" {
		return e.accept(ctx, a, b, mgr.User.ID)
	}
	return e.reject(ctx, a, b, mgr.User.ID)
}

// AcceptApplication accepts by application id with the batch's creator
// as the acting manager. This is the automated promotion bridge: the
// accepted applicant lands in the creator's membership record.
func (e Engine) AcceptApplication(ctx context.Context, applicationID int64) (domain.Application, error) {
	a, err := e.Repo.GetApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Application{}, NotFoundError{Entity: "Application"}
		}
		return domain.Application{}, err
	}
	if a.Status != "applied" {
		return domain.Application{}, invalidArgf("application already %s", a.Status)
	}
	b, err := e.Repo.GetBatch(ctx, a.BatchID)
	if err != nil {
		return domain.Application{}, err
	}
	return e.accept(ctx, a, b, b.CreatedBy)
}

func (e Engine) accept(ctx context.Context, a domain.Application, b domain.Batch, actorID int64) (domain.Application, error) {
	fl, err := e.Repo.GetUser(ctx, a.FreelancerID)
	if err != nil {
		return domain.Application{}, err
	}

	release := e.locks.acquire(b.ID)
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	now := e.nowString()
	if err := e.Repo.UpdateApplicationStatusTx(ctx, tx, a.ID, "accepted", now); err != nil {
		return domain.Application{}, err
	}
	added, err := e.addMembersTx(ctx, tx, b, b.CreatedBy, []domain.User{fl})
	if err != nil {
		return domain.Application{}, err
	}
	for _, u := range added {
		if err := e.Events.Append(ctx, tx, "member.added", b.JobID, "batch", idString(b.ID), actorID, events.EventPayload{
			"freelancer_id": u.ID,
			"username":      u.Username,
		}); err != nil {
			return domain.Application{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "application.accepted", b.JobID, "application", idString(a.ID), actorID, events.EventPayload{
		"freelancer_id": a.FreelancerID,
		"batch_id":      a.BatchID,
	}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	a.Status = "accepted"
	a.UpdatedAt = &now
	return a, nil
}

func (e Engine) reject(ctx context.Context, a domain.Application, b domain.Batch, actorID int64) (domain.Application, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	now := e.nowString()
	if err := e.Repo.UpdateApplicationStatusTx(ctx, tx, a.ID, "rejected", now); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, "application.rejected", b.JobID, "application", idString(a.ID), actorID, events.EventPayload{
		"freelancer_id": a.FreelancerID,
		"batch_id":      a.BatchID,
	}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	a.Status = "rejected"
	a.UpdatedAt = &now
	return a, nil
}
