package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/filekeep/filekeep-go/internal/model"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrResetTokenMismatch = errors.New("password reset token does not match")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

const userColumns = `id, first_name, middle_name, last_name, email, hashed_password, is_verified,
	password_reset_token, password_reset_expires, created_at, updated_at`

// UserRepository handles user persistence operations.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new unverified user and sets the generated ID on the user struct.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (first_name, middle_name, last_name, email, hashed_password)
		VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		user.FirstName, user.MiddleName, user.LastName, user.Email, user.HashedPassword)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	user.ID = id
	user.IsVerified = false
	return nil
}

// GetByEmail retrieves a user by their email address. The match is exact.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// MarkVerified flips is_verified to true. It reports false when the user was
// already verified, so the flag never moves backwards and a second call
// changes nothing.
func (r *UserRepository) MarkVerified(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE users SET is_verified = TRUE WHERE id = ? AND is_verified = FALSE`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetResetToken stores the pending password reset token, replacing any
// earlier one.
func (r *UserRepository) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	query := `UPDATE users SET password_reset_token = ?, password_reset_expires = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, token, expires.UTC(), id)
	return err
}

// ResetPassword replaces the password hash and clears the stored reset token,
// but only while the stored token still equals token. A concurrent or
// replayed confirmation therefore affects no rows and gets
// ErrResetTokenMismatch.
func (r *UserRepository) ResetPassword(ctx context.Context, id int64, token, hashedPassword string) error {
	query := `UPDATE users
		SET hashed_password = ?, password_reset_token = NULL, password_reset_expires = NULL
		WHERE id = ? AND password_reset_token = ?`

	result, err := r.db.ExecContext(ctx, query, hashedPassword, id, token)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrResetTokenMismatch
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user       model.User
		middleName sql.NullString
		resetToken sql.NullString
		resetExp   sql.NullTime
	)

	err := row.Scan(
		&user.ID, &user.FirstName, &middleName, &user.LastName, &user.Email, &user.HashedPassword,
		&user.IsVerified, &resetToken, &resetExp, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if middleName.Valid {
		user.MiddleName = &middleName.String
	}
	if resetToken.Valid {
		user.PasswordResetToken = &resetToken.String
	}
	if resetExp.Valid {
		user.PasswordResetExpires = &resetExp.Time
	}

	return &user, nil
}

// isDuplicateEntryError checks if a MySQL error is a duplicate entry error (code 1062).
func isDuplicateEntryError(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
