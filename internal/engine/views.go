package engine

import (
	"context"
	"errors"

	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/repo"
)

// BatchView is the detail view of a batch. AssignedTotal and Remaining
// are recomputed from the task set on every read; Remaining is
// negative for overdrawn batches.
type BatchView struct {
	Batch         domain.Batch    `json:"batch"`
	AssignedTotal int64           `json:"assigned_total"`
	Remaining     int64           `json:"remaining"`
	Members       []domain.Member `json:"members"`
	Tasks         []domain.Task   `json:"tasks"`
}

func (e Engine) BatchDetail(ctx context.Context, batchID int64) (BatchView, error) {
	b, err := e.Repo.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return BatchView{}, NotFoundError{Entity: "Batch"}
		}
		return BatchView{}, err
	}
	assigned, err := e.Repo.SumTaskCount(ctx, batchID)
	if err != nil {
		return BatchView{}, err
	}
	members, err := e.ListMembers(ctx, batchID)
	if err != nil {
		return BatchView{}, err
	}
	tasks, err := e.Repo.ListTasksByBatch(ctx, batchID)
	if err != nil {
		return BatchView{}, err
	}
	return BatchView{
		Batch:         b,
		AssignedTotal: assigned,
		Remaining:     b.Capacity - assigned,
		Members:       members,
		Tasks:         tasks,
	}, nil
}

// ListManagerBatches returns the batches the manager created.
func (e Engine) ListManagerBatches(ctx context.Context, mgr auth.ActingManager) ([]domain.Batch, error) {
	return e.Repo.ListBatchesByManager(ctx, mgr.User.ID)
}

func (e Engine) ListJobBatches(ctx context.Context, jobID int64) ([]domain.Batch, error) {
	if _, err := e.Repo.GetJob(ctx, jobID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NotFoundError{Entity: "Job"}
		}
		return nil, err
	}
	return e.Repo.ListBatchesByJob(ctx, jobID)
}

func (e Engine) ListBatchTasks(ctx context.Context, batchID int64) ([]domain.Task, error) {
	if _, err := e.Repo.GetBatch(ctx, batchID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NotFoundError{Entity: "Batch"}
		}
		return nil, err
	}
	return e.Repo.ListTasksByBatch(ctx, batchID)
}

// ListManagerTasks returns tasks under batches the manager created.
func (e Engine) ListManagerTasks(ctx context.Context, mgr auth.ActingManager) ([]domain.Task, error) {
	return e.Repo.ListTasksByManager(ctx, mgr.User.ID)
}

// Dashboard summarizes a manager's allocation workload.
type Dashboard struct {
	Batches       int64            `json:"batches"`
	Tasks         int64            `json:"tasks"`
	TasksByStatus map[string]int64 `json:"tasks_by_status"`
}

func (e Engine) ManagerDashboard(ctx context.Context, mgr auth.ActingManager) (Dashboard, error) {
	batches, err := e.Repo.ListBatchesByManager(ctx, mgr.User.ID)
	if err != nil {
		return Dashboard{}, err
	}
	byStatus, err := e.Repo.CountTasksByStatus(ctx, mgr.User.ID)
	if err != nil {
		return Dashboard{}, err
	}
	var total int64
	for _, n := range byStatus {
		total += n
	}
	return Dashboard{
		Batches:       int64(len(batches)),
		Tasks:         total,
		TasksByStatus: byStatus,
	}, nil
}

// TaskView pairs a task with its batch's project snapshot for display.
type TaskView struct {
	Task        domain.Task `json:"task"`
	ProjectName string      `json:"project_name"`
	ProjectType string      `json:"project_type"`
}

// MyTasks returns the freelancer's assigned tasks with their batch
// project snapshots.
func (e Engine) MyTasks(ctx context.Context, fl auth.ActingFreelancer) ([]TaskView, error) {
	tasks, err := e.Repo.ListTasksByAssignee(ctx, fl.User.ID)
	if err != nil {
		return nil, err
	}
	batches := map[int64]domain.Batch{}
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		b, ok := batches[t.BatchID]
		if !ok {
			b, err = e.Repo.GetBatch(ctx, t.BatchID)
			if err != nil {
				return nil, err
			}
			batches[t.BatchID] = b
		}
		views = append(views, TaskView{Task: t, ProjectName: b.ProjectName, ProjectType: b.ProjectType})
	}
	return views, nil
}

// MyBatches returns the batches whose reconciled membership names the
// freelancer, by id or by legacy name entry.
func (e Engine) MyBatches(ctx context.Context, fl auth.ActingFreelancer) ([]domain.Batch, error) {
	records, err := e.Repo.ListAllMemberRecords(ctx)
	if err != nil {
		return nil, err
	}
	byBatch := map[int64][]domain.MemberRecord{}
	var order []int64
	for _, rec := range records {
		if _, seen := byBatch[rec.BatchID]; !seen {
			order = append(order, rec.BatchID)
		}
		byBatch[rec.BatchID] = append(byBatch[rec.BatchID], rec)
	}
	me := memberEntry{ID: fl.User.ID, Name: fl.User.Username}
	var batches []domain.Batch
	for _, batchID := range order {
		if !containsMember(reconcileRecords(byBatch[batchID]), me) {
			continue
		}
		b, err := e.Repo.GetBatch(ctx, batchID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}
