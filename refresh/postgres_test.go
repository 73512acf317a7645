package refresh

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordColumns = []string{"id", "user_id", "token_hash", "expires_at", "created_at"}

func newPostgresWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

func TestPostgresInsert(t *testing.T) {
	repo, mock, _ := newPostgresWithMock(t)
	now := time.Now().UTC()
	rec := Record{ID: "id-1", UserID: "u1", Hash: "h1", ExpiresAt: now.Add(time.Hour), CreatedAt: now}

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+refresh_tokens\s+\(id,\s*user_id,\s*token_hash,\s*expires_at,\s*created_at\).*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`).
		WithArgs("id-1", "u1", "h1", rec.ExpiresAt, rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertWrapsDriverError(t *testing.T) {
	repo, mock, _ := newPostgresWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).
		WillReturnError(errors.New("db down"))

	err := repo.Insert(context.Background(), Record{ID: "id-1", UserID: "u1", Hash: "h1"})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "db down")
}

func TestPostgresFindByHash(t *testing.T) {
	repo, mock, _ := newPostgresWithMock(t)
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	created := expires.Add(-time.Hour)

	mock.ExpectQuery(`(?s)^\s*SELECT\s+id,\s*user_id,\s*token_hash,\s*expires_at,\s*created_at\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s*$`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow("id-1", "u1", "h1", expires, created))

	rec, err := repo.FindByHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, "u1", rec.UserID)
	assert.True(t, rec.ExpiresAt.Equal(expires))
	assert.True(t, rec.CreatedAt.Equal(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByHashNotFound(t *testing.T) {
	repo, mock, _ := newPostgresWithMock(t)

	mock.ExpectQuery(`SELECT\s+id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresTakeByHashUsesDeleteReturning(t *testing.T) {
	repo, mock, _ := newPostgresWithMock(t)
	expires := time.Now().Add(time.Hour).UTC()

	mock.ExpectQuery(`(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s+RETURNING\s+id,\s*user_id,\s*token_hash,\s*expires_at,\s*created_at\s*$`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow("id-1", "u1", "h1", expires, expires.Add(-time.Hour)))
	mock.ExpectQuery(`DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	rec, err := repo.TakeByHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)

	_, err = repo.TakeByHash(context.Background(), "h1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteByID(t *testing.T) {
	repo, mock, _ := newPostgresWithMock(t)

	mock.ExpectExec(`(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteByID(context.Background(), "id-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteByUserCountsRows(t *testing.T) {
	repo, mock, _ := newPostgresWithMock(t)

	mock.ExpectExec(`(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s*$`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPostgresDeleteExpired(t *testing.T) {
	repo, mock, _ := newPostgresWithMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(`(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<=\s*\$1\s*$`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestPostgresStoreRotate(t *testing.T) {
	repo, mock, _ := newPostgresWithMock(t)
	store := NewStore(repo, Config{})
	expires := time.Now().Add(time.Hour).UTC()

	mock.ExpectQuery(`DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash`).
		WithArgs(HashValue("r1")).
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow("id-1", "u1", HashValue("r1"), expires, expires.Add(-time.Hour)))
	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	next, err := store.Rotate(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "u1", next.UserID)
	assert.NotEqual(t, "r1", next.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}
