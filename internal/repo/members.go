package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

const memberRecordColumns = `id,batch_id,job_id,manager_id,COALESCE(members,''),created_at`

func scanMemberRecord(scan func(dest ...any) error) (domain.MemberRecord, error) {
	var m domain.MemberRecord
	err := scan(&m.ID, &m.BatchID, &m.JobID, &m.ManagerID, &m.Members, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) InsertMemberRecordTx(ctx context.Context, tx *sql.Tx, m domain.MemberRecord) (domain.MemberRecord, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO batch_members(batch_id,job_id,manager_id,members,created_at) VALUES (?,?,?,?,?)`,
		m.BatchID, m.JobID, m.ManagerID, nullable(m.Members), m.CreatedAt)
	if err != nil {
		return m, err
	}
	m.ID, err = res.LastInsertId()
	return m, err
}

// GetMemberRecordTx returns the manager's own record for a batch. When
// several exist (historically one per storage format), the oldest wins
// so that merges keep converging into a single row.
func (r Repo) GetMemberRecordTx(ctx context.Context, tx *sql.Tx, batchID, managerID int64) (domain.MemberRecord, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+memberRecordColumns+` FROM batch_members WHERE batch_id=? AND manager_id=? ORDER BY id ASC LIMIT 1`, batchID, managerID)
	return scanMemberRecord(row.Scan)
}

func (r Repo) UpdateMemberRecordTx(ctx context.Context, tx *sql.Tx, id int64, members string) error {
	res, err := tx.ExecContext(ctx, `UPDATE batch_members SET members=? WHERE id=?`, nullable(members), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListMemberRecords(ctx context.Context, batchID int64) ([]domain.MemberRecord, error) {
	return r.listMemberRecords(ctx, r.DB.QueryContext, batchID)
}

func (r Repo) ListMemberRecordsTx(ctx context.Context, tx *sql.Tx, batchID int64) ([]domain.MemberRecord, error) {
	return r.listMemberRecords(ctx, tx.QueryContext, batchID)
}

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (r Repo) listMemberRecords(ctx context.Context, query queryFunc, batchID int64) ([]domain.MemberRecord, error) {
	rows, err := query(ctx, `SELECT `+memberRecordColumns+` FROM batch_members WHERE batch_id=? ORDER BY id ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MemberRecord
	for rows.Next() {
		m, err := scanMemberRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// ListAllMemberRecords returns every membership record; the freelancer
// my-batches view scans these for records naming the caller.
func (r Repo) ListAllMemberRecords(ctx context.Context) ([]domain.MemberRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+memberRecordColumns+` FROM batch_members ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MemberRecord
	for rows.Next() {
		m, err := scanMemberRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
