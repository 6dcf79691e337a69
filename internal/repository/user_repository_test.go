package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"photomarket/api/internal/models"
)

func newUserRepo(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewUserRepository(mock), mock
}

func userColumns() []string {
	return []string{"id", "email", "password_hash", "name", "role", "status", "created_at", "updated_at"}
}

func TestUserRepo_GetByID(t *testing.T) {
	r, mock := newUserRepo(t)
	defer mock.Close()
	ctx := context.Background()
	ts := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, email, password_hash, name, role, status, created_at, updated_at\s+FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(userColumns()).
			AddRow("u1", "sally@example.com", []byte("hash"), "Sally", models.UserRoleSeller, models.UserStatusActive, ts, ts))

	user, err := r.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "sally@example.com", user.Email)
	require.Equal(t, models.UserRoleSeller, user.Role)
}

func TestUserRepo_FindByEmail_NotFound(t *testing.T) {
	r, mock := newUserRepo(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, email, password_hash, name, role, status, created_at, updated_at\s+FROM users WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := r.FindByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepo_UpdateStatus_NotFound(t *testing.T) {
	r, mock := newUserRepo(t)
	defer mock.Close()

	mock.ExpectExec(`UPDATE users SET status = \$2`).
		WithArgs("missing", models.UserStatusSuspended).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := r.UpdateStatus(context.Background(), "missing", models.UserStatusSuspended)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepo_Count(t *testing.T) {
	r, mock := newUserRepo(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	count, err := r.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(42), count)
}
