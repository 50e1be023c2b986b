package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filekeep/filekeep-go/internal/model"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var userRowColumns = []string{
	"id", "first_name", "middle_name", "last_name", "email", "hashed_password", "is_verified",
	"password_reset_token", "password_reset_expires", "created_at", "updated_at",
}

func TestSentinelErrors(t *testing.T) {
	assert.Equal(t, "user not found", ErrUserNotFound.Error())
	assert.Equal(t, "email already exists", ErrDuplicateEmail.Error())
}

func TestIsDuplicateEntryError(t *testing.T) {
	assert.False(t, isDuplicateEntryError(nil))
	assert.False(t, isDuplicateEntryError(ErrUserNotFound))
	assert.False(t, isDuplicateEntryError(&mysql.MySQLError{Number: 1452}))
	assert.True(t, isDuplicateEntryError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
}

func TestUserCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	middle := "Q"
	mock.ExpectExec(`INSERT INTO users \(first_name, middle_name, last_name, email, hashed_password\)`).
		WithArgs("Ann", "Q", "Lee", "ann@example.com", "digest").
		WillReturnResult(sqlmock.NewResult(7, 1))

	u := &model.User{FirstName: "Ann", MiddleName: &middle, LastName: "Lee", Email: "ann@example.com", HashedPassword: "digest"}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, int64(7), u.ID)
	assert.False(t, u.IsVerified)
}

func TestUserCreate_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ann@example.com'"})

	err := repo.Create(context.Background(), &model.User{Email: "ann@example.com", HashedPassword: "d"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserGetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	rows := sqlmock.NewRows(userRowColumns).
		AddRow(3, "Ann", nil, "Lee", "ann@example.com", "digest", true, "tok", now, now, now)
	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE email = \?`).
		WithArgs("ann@example.com").
		WillReturnRows(rows)

	u, err := repo.GetByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)
	assert.Nil(t, u.MiddleName)
	assert.True(t, u.IsVerified)
	require.NotNil(t, u.PasswordResetToken)
	assert.Equal(t, "tok", *u.PasswordResetToken)
	require.NotNil(t, u.PasswordResetExpires)
	assert.True(t, now.Equal(*u.PasswordResetExpires))
}

func TestUserGetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE id = \?`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserMarkVerified(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	q := `UPDATE users SET is_verified = TRUE WHERE id = \? AND is_verified = FALSE`
	mock.ExpectExec(q).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkVerified(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkVerified(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUserSetResetToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	exp := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	mock.ExpectExec(`UPDATE users SET password_reset_token = \?, password_reset_expires = \? WHERE id = \?`).
		WithArgs("tok", exp, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetResetToken(context.Background(), 3, "tok", exp))
}

func TestUserResetPassword(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	q := `(?s)UPDATE users\s+SET hashed_password = \?, password_reset_token = NULL, password_reset_expires = NULL\s+WHERE id = \? AND password_reset_token = \?`
	mock.ExpectExec(q).WithArgs("new-digest", int64(3), "tok").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("new-digest", int64(3), "tok").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("new-digest", int64(3), "tok").WillReturnError(errors.New("db down"))

	require.NoError(t, repo.ResetPassword(context.Background(), 3, "tok", "new-digest"))
	assert.ErrorIs(t, repo.ResetPassword(context.Background(), 3, "tok", "new-digest"), ErrResetTokenMismatch)
	assert.EqualError(t, repo.ResetPassword(context.Background(), 3, "tok", "new-digest"), "db down")
}
