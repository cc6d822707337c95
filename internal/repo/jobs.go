package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gigline/internal/domain"
)

const jobColumns = `id,manager_id,created_by,title,COALESCE(description,''),COALESCE(skills_required,''),project_type,status,deadline,created_at`

func scanJob(scan func(dest ...any) error) (domain.Job, error) {
	var j domain.Job
	var managerID sql.NullInt64
	var deadline sql.NullString
	err := scan(&j.ID, &managerID, &j.CreatedBy, &j.Title, &j.Description, &j.SkillsRequired, &j.ProjectType, &j.Status, &deadline, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	if err != nil {
		return j, err
	}
	if managerID.Valid {
		j.ManagerID = &managerID.Int64
	}
	if deadline.Valid {
		j.Deadline = &deadline.String
	}
	return j, nil
}

func (r Repo) InsertJobTx(ctx context.Context, tx *sql.Tx, j domain.Job) (domain.Job, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO jobs(manager_id,created_by,title,description,skills_required,project_type,status,deadline,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		nullableInt64Ptr(j.ManagerID), j.CreatedBy, j.Title, nullable(j.Description), nullable(j.SkillsRequired), j.ProjectType, j.Status, nullableStringPtr(j.Deadline), j.CreatedAt)
	if err != nil {
		return j, err
	}
	j.ID, err = res.LastInsertId()
	return j, err
}

func (r Repo) GetJob(ctx context.Context, id int64) (domain.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id)
	return scanJob(row.Scan)
}

func (r Repo) ListJobs(ctx context.Context) ([]domain.Job, error) {
	return r.listJobs(ctx, ``)
}

// ListJobsByManager returns jobs assigned to the manager.
func (r Repo) ListJobsByManager(ctx context.Context, managerID int64) ([]domain.Job, error) {
	return r.listJobs(ctx, `WHERE manager_id=?`, managerID)
}

func (r Repo) listJobs(ctx context.Context, where string, args ...any) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

// JobPatch carries partial job updates; nil fields are left unchanged.
type JobPatch struct {
	Title          *string
	Description    *string
	SkillsRequired *string
	ProjectType    *string
	Status         *string
	ManagerID      *int64
}

func (r Repo) UpdateJobTx(ctx context.Context, tx *sql.Tx, id int64, patch JobPatch) error {
	return updateJob(ctx, tx, id, patch)
}

func updateJob(ctx context.Context, ex execer, id int64, patch JobPatch) error {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v any) {
		fields = append(fields, col+"=?")
		args = append(args, v)
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", nullable(*patch.Description))
	}
	if patch.SkillsRequired != nil {
		set("skills_required", nullable(*patch.SkillsRequired))
	}
	if patch.ProjectType != nil {
		set("project_type", *patch.ProjectType)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.ManagerID != nil {
		set("manager_id", *patch.ManagerID)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := ex.ExecContext(ctx, fmt.Sprintf(`UPDATE jobs SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
