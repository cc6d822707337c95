package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gigline/internal/domain"
)

const batchColumns = `id,job_id,project_name,project_type,COALESCE(skills_required,''),capacity,deadline,created_by,created_at`

func scanBatch(scan func(dest ...any) error) (domain.Batch, error) {
	var b domain.Batch
	var deadline sql.NullString
	err := scan(&b.ID, &b.JobID, &b.ProjectName, &b.ProjectType, &b.SkillsRequired, &b.Capacity, &deadline, &b.CreatedBy, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, err
	}
	if deadline.Valid {
		b.Deadline = &deadline.String
	}
	return b, nil
}

func (r Repo) InsertBatchTx(ctx context.Context, tx *sql.Tx, b domain.Batch) (domain.Batch, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO batches(job_id,project_name,project_type,skills_required,capacity,deadline,created_by,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		b.JobID, b.ProjectName, b.ProjectType, nullable(b.SkillsRequired), b.Capacity, nullableStringPtr(b.Deadline), b.CreatedBy, b.CreatedAt)
	if err != nil {
		return b, err
	}
	b.ID, err = res.LastInsertId()
	return b, err
}

func (r Repo) GetBatch(ctx context.Context, id int64) (domain.Batch, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=?`, id)
	return scanBatch(row.Scan)
}

func (r Repo) GetBatchTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Batch, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=?`, id)
	return scanBatch(row.Scan)
}

func (r Repo) ListBatchesByManager(ctx context.Context, managerID int64) ([]domain.Batch, error) {
	return r.listBatches(ctx, `WHERE created_by=?`, managerID)
}

func (r Repo) ListBatchesByJob(ctx context.Context, jobID int64) ([]domain.Batch, error) {
	return r.listBatches(ctx, `WHERE job_id=?`, jobID)
}

func (r Repo) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	return r.listBatches(ctx, ``)
}

func (r Repo) listBatches(ctx context.Context, where string, args ...any) ([]domain.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Batch
	for rows.Next() {
		b, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// BatchPatch carries partial batch updates; nil fields are left unchanged.
type BatchPatch struct {
	Capacity       *int64
	Deadline       *string
	SkillsRequired *string
	ProjectType    *string
}

func (r Repo) UpdateBatchTx(ctx context.Context, tx *sql.Tx, id int64, patch BatchPatch) error {
	var (
		fields []string
		args   []any
	)
	if patch.Capacity != nil {
		fields = append(fields, "capacity=?")
		args = append(args, *patch.Capacity)
	}
	if patch.Deadline != nil {
		fields = append(fields, "deadline=?")
		args = append(args, nullable(*patch.Deadline))
	}
	if patch.SkillsRequired != nil {
		fields = append(fields, "skills_required=?")
		args = append(args, nullable(*patch.SkillsRequired))
	}
	if patch.ProjectType != nil {
		fields = append(fields, "project_type=?")
		args = append(args, *patch.ProjectType)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE batches SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBatchTx removes the batch together with its tasks and
// membership records. Tasks are never deleted individually; this is
// the only bulk removal path.
func (r Repo) DeleteBatchTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE batch_id=?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_members WHERE batch_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
