package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/gatekeeper/internal/platform/db"
)

const userColumns = `id, username, email, password_hash, status, created_at, updated_at`

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	q db.Querier
}

// NewPostgresStore constructs a store backed by the pool.
func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{q: q}
}

func (s *PostgresStore) Create(ctx context.Context, u User) (User, error) {
	created, err := scanUser(s.q.QueryRow(ctx, `INSERT INTO users (username, email, password_hash, status)
VALUES ($1, $2, $3, $4) RETURNING `+userColumns, u.Username, u.Email, u.PasswordHash, string(u.Status)))
	return created, uniqueErr(err)
}

func (s *PostgresStore) Update(ctx context.Context, id int64, username, email string) (User, error) {
	u, err := s.one(ctx, `UPDATE users SET username = $2, email = $3, updated_at = now()
WHERE id = $1 RETURNING `+userColumns, id, username, email)
	return u, uniqueErr(err)
}

func uniqueErr(err error) error {
	switch {
	case db.IsUniqueViolation(err, "users_username_key"):
		return ErrDuplicateUsername
	case db.IsUniqueViolation(err, "users_email_key"):
		return ErrDuplicateEmail
	}
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (User, error) {
	return s.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.one(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.one(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (s *PostgresStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.q.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status Status) (User, error) {
	return s.one(ctx, `UPDATE users SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns, id, string(status))
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := s.q.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) one(ctx context.Context, sql string, args ...any) (User, error) {
	u, err := scanUser(s.q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u      User
		status string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &status, &u.CreatedAt, &u.UpdatedAt)
	u.Status = Status(status)
	return u, err
}

var _ Store = (*PostgresStore)(nil)
