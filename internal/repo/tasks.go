package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gigline/internal/domain"
)

const taskColumns = `id,job_id,batch_id,title,COALESCE(description,''),count,status,assigned_by,assigned_to,deadline,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var assignedTo sql.NullInt64
	var deadline sql.NullString
	err := scan(&t.ID, &t.JobID, &t.BatchID, &t.Title, &t.Description, &t.Count, &t.Status, &t.AssignedBy, &assignedTo, &deadline, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.Int64
	}
	if deadline.Valid {
		t.Deadline = &deadline.String
	}
	return t, nil
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) (domain.Task, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(job_id,batch_id,title,description,count,status,assigned_by,assigned_to,deadline,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.JobID, t.BatchID, t.Title, nullable(t.Description), t.Count, t.Status, t.AssignedBy, nullableInt64Ptr(t.AssignedTo), nullableStringPtr(t.Deadline), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.ID, err = res.LastInsertId()
	return t, err
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) ListTasksByBatch(ctx context.Context, batchID int64) ([]domain.Task, error) {
	return r.listTasks(ctx, `WHERE batch_id=?`, batchID)
}

func (r Repo) ListTasksByAssignee(ctx context.Context, userID int64) ([]domain.Task, error) {
	return r.listTasks(ctx, `WHERE assigned_to=?`, userID)
}

func (r Repo) ListTasksByJob(ctx context.Context, jobID int64) ([]domain.Task, error) {
	return r.listTasks(ctx, `WHERE job_id=?`, jobID)
}

// ListTasksByManager returns tasks in batches the manager created.
func (r Repo) ListTasksByManager(ctx context.Context, managerID int64) ([]domain.Task, error) {
	query := `SELECT t.id,t.job_id,t.batch_id,t.title,COALESCE(t.description,''),t.count,t.status,t.assigned_by,t.assigned_to,t.deadline,t.created_at,t.updated_at
FROM tasks t JOIN batches b ON b.id=t.batch_id WHERE b.created_by=? ORDER BY t.created_at DESC, t.id DESC`
	rows, err := r.DB.QueryContext(ctx, query, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) listTasks(ctx context.Context, where string, args ...any) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// TaskPatch carries partial task updates; nil fields are left unchanged.
// BatchID and JobID are not patchable.
type TaskPatch struct {
	Title       *string
	Description *string
	Count       *int64
	Status      *string
	AssignedTo  *int64
	Deadline    *string
	UpdatedAt   string
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, id int64, patch TaskPatch) error {
	var (
		fields []string
		args   []any
	)
	if patch.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*patch.Description))
	}
	if patch.Count != nil {
		fields = append(fields, "count=?")
		args = append(args, *patch.Count)
	}
	if patch.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *patch.Status)
	}
	if patch.AssignedTo != nil {
		fields = append(fields, "assigned_to=?")
		args = append(args, *patch.AssignedTo)
	}
	if patch.Deadline != nil {
		fields = append(fields, "deadline=?")
		args = append(args, nullable(*patch.Deadline))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, patch.UpdatedAt, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE tasks SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SumTaskCount returns the total units already assigned in a batch.
// Remaining capacity is always recomputed from this; there is no
// stored running counter.
func (r Repo) SumTaskCount(ctx context.Context, batchID int64) (int64, error) {
	var total int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(count),0) FROM tasks WHERE batch_id=?`, batchID).Scan(&total)
	return total, err
}

// SumTaskCountTx is SumTaskCount inside a transaction, optionally
// excluding one task (the edit path excludes the task's own prior count).
func (r Repo) SumTaskCountTx(ctx context.Context, tx *sql.Tx, batchID, excludeTaskID int64) (int64, error) {
	var total int64
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(count),0) FROM tasks WHERE batch_id=? AND id<>?`, batchID, excludeTaskID).Scan(&total)
	return total, err
}

func (r Repo) CountTasksByStatus(ctx context.Context, managerID int64) (map[string]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT t.status, count(*) FROM tasks t JOIN batches b ON b.id=t.batch_id WHERE b.created_by=? GROUP BY t.status`, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int64{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}
