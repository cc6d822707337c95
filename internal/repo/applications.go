package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

const applicationColumns = `id,freelancer_id,batch_id,status,applied_at,updated_at`

func scanApplication(scan func(dest ...any) error) (domain.Application, error) {
	var a domain.Application
	var updatedAt sql.NullString
	err := scan(&a.ID, &a.FreelancerID, &a.BatchID, &a.Status, &a.AppliedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if updatedAt.Valid {
		a.UpdatedAt = &updatedAt.String
	}
	return a, nil
}

func (r Repo) InsertApplicationTx(ctx context.Context, tx *sql.Tx, a domain.Application) (domain.Application, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO applications(freelancer_id,batch_id,status,applied_at) VALUES (?,?,?,?)`,
		a.FreelancerID, a.BatchID, a.Status, a.AppliedAt)
	if err != nil {
		return a, err
	}
	a.ID, err = res.LastInsertId()
	return a, err
}

func (r Repo) GetApplication(ctx context.Context, id int64) (domain.Application, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id=?`, id)
	return scanApplication(row.Scan)
}

// GetApplicationFor looks up the unique (freelancer, batch) application.
func (r Repo) GetApplicationFor(ctx context.Context, freelancerID, batchID int64) (domain.Application, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE freelancer_id=? AND batch_id=?`, freelancerID, batchID)
	return scanApplication(row.Scan)
}

func (r Repo) ListApplicationsByBatch(ctx context.Context, batchID int64) ([]domain.Application, error) {
	return r.listApplications(ctx, `WHERE batch_id=?`, batchID)
}

func (r Repo) ListApplicationsByFreelancer(ctx context.Context, freelancerID int64) ([]domain.Application, error) {
	return r.listApplications(ctx, `WHERE freelancer_id=?`, freelancerID)
}

func (r Repo) listApplications(ctx context.Context, where string, args ...any) ([]domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications ` + where + ` ORDER BY applied_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Application
	for rows.Next() {
		a, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateApplicationStatusTx(ctx context.Context, tx *sql.Tx, id int64, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE applications SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
