package repo

import (
	"context"
	"database/sql"
	"errors"

	"gigline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// execer abstracts *sql.DB and *sql.Tx for insert/update helpers shared
// between plain and transactional variants.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) (domain.User, error) {
	return insertUser(ctx, r.DB, u)
}

func (r Repo) InsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User) (domain.User, error) {
	return insertUser(ctx, tx, u)
}

func insertUser(ctx context.Context, ex execer, u domain.User) (domain.User, error) {
	res, err := ex.ExecContext(ctx, `INSERT INTO users(username,email,role,created_at) VALUES (?,?,?,?)`,
		u.Username, u.Email, u.Role, u.CreatedAt)
	if err != nil {
		return u, err
	}
	u.ID, err = res.LastInsertId()
	return u, err
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT id,username,email,role,created_at FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT id,username,email,role,created_at FROM users WHERE username=?`, username))
}

func (r Repo) ListUsers(ctx context.Context, role string) ([]domain.User, error) {
	query := `SELECT id,username,email,role,created_at FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, role)
	}
	query += ` ORDER BY id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}
