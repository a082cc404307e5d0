package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/fancy-planties/verification-service/models"
)

// CodeStore holds at most one active verification code per user. Consume is
// the only operation the exactly-once guarantee rests on: it must match and
// delete the row in a single atomic statement.
type CodeStore interface {
	// Replace drops any existing code row for the user and writes a new one.
	Replace(ctx context.Context, code *models.VerificationCode) error
	// Consume deletes the row matching (userID, code) that is not expired and
	// has attempts remaining. It reports whether a row was deleted.
	Consume(ctx context.Context, userID int, code string, now time.Time, maxAttempts int) (bool, error)
	// GetByUserID returns the user's code row, or nil when there is none.
	GetByUserID(ctx context.Context, userID int) (*models.VerificationCode, error)
	// IncrementAttempts bumps attempts_used on the user's row, if it still exists.
	IncrementAttempts(ctx context.Context, userID int) error
	// DeleteExpired removes every row past its expiry and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserStore is the account collaborator. Accounts are created and deleted
// elsewhere; this service only reads them and flips verified.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	MarkVerified(ctx context.Context, id int) error
}

type MySQLCodeStore struct {
	db *sql.DB
}

func NewMySQLCodeStore(db *sql.DB) *MySQLCodeStore {
	return &MySQLCodeStore{db: db}
}

func (s *MySQLCodeStore) Replace(ctx context.Context, code *models.VerificationCode) error {
	// verification_codes has a unique key on user_id, so REPLACE is an
	// atomic delete-then-insert for the previous code.
	_, err := sq.Replace("verification_codes").
		Columns("user_id", "code", "attempts_used", "issued_at", "expires_at").
		Values(code.UserID, code.Code, code.AttemptsUsed, code.IssuedAt, code.ExpiresAt).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to replace the verification code: %w", err)
	}
	return nil
}

func (s *MySQLCodeStore) Consume(ctx context.Context, userID int, code string, now time.Time, maxAttempts int) (bool, error) {
	res, err := sq.Delete("verification_codes").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"code": code}).
		Where(sq.Gt{"expires_at": now}).
		Where(sq.Lt{"attempts_used": maxAttempts}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to consume the verification code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read the consume result: %w", err)
	}
	return n == 1, nil
}

func (s *MySQLCodeStore) GetByUserID(ctx context.Context, userID int) (*models.VerificationCode, error) {
	var vc models.VerificationCode
	err := sq.Select("id", "user_id", "code", "attempts_used", "issued_at", "expires_at").
		From("verification_codes").
		Where(sq.Eq{"user_id": userID}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&vc.ID, &vc.UserID, &vc.Code, &vc.AttemptsUsed, &vc.IssuedAt, &vc.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query the verification code: %w", err)
	}
	return &vc, nil
}

func (s *MySQLCodeStore) IncrementAttempts(ctx context.Context, userID int) error {
	_, err := sq.Update("verification_codes").
		Where(sq.Eq{"user_id": userID}).
		Set("attempts_used", sq.Expr("attempts_used + 1")).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment the attempt count: %w", err)
	}
	return nil
}

func (s *MySQLCodeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := sq.Delete("verification_codes").
		Where(sq.LtOrEq{"expires_at": now}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification codes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read the cleanup result: %w", err)
	}
	return n, nil
}

type MySQLUserStore struct {
	db *sql.DB
}

func NewMySQLUserStore(db *sql.DB) *MySQLUserStore {
	return &MySQLUserStore{db: db}
}

func (s *MySQLUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := sq.Select("id", "email", "verified", "created_at", "updated_at").
		From("users").
		Where(sq.Eq{"email": email}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&user.ID, &user.Email, &user.Verified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query the user by email: %w", err)
	}
	return &user, nil
}

func (s *MySQLUserStore) GetByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	err := sq.Select("id", "email", "verified", "created_at", "updated_at").
		From("users").
		Where(sq.Eq{"id": id}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&user.ID, &user.Email, &user.Verified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query the user by id: %w", err)
	}
	return &user, nil
}

func (s *MySQLUserStore) MarkVerified(ctx context.Context, id int) error {
	_, err := sq.Update("users").
		Where(sq.Eq{"id": id}).
		Set("verified", true).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark the user verified: %w", err)
	}
	return nil
}
