package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Querier is the part of *pgxpool.Pool used by PostgresUsers.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresUsers reads accounts from the users table.
type PostgresUsers struct {
	db Querier
}

func NewPostgresUsers(db Querier) *PostgresUsers {
	return &PostgresUsers{db: db}
}

const userColumns = `id, user_name, COALESCE(email, ''), password_hash, disabled, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.PasswordHash, &u.Disabled, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return u, nil
}

func (r *PostgresUsers) FindByUserName(ctx context.Context, userName string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(user_name) = lower($1)`
	return scanUser(r.db.QueryRow(ctx, query, userName))
}

func (r *PostgresUsers) FindByEmail(ctx context.Context, email string) (User, error) {
	if email == "" {
		return User{}, ErrUserNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *PostgresUsers) FindByID(ctx context.Context, id string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// Create inserts u. An empty e-mail is stored as NULL.
func (r *PostgresUsers) Create(ctx context.Context, u User) error {
	query := `
		INSERT INTO users (id, user_name, email, password_hash, disabled)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
	`
	_, err := r.db.Exec(ctx, query, u.ID, u.UserName, u.Email, u.PasswordHash, u.Disabled)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrUserExists
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
