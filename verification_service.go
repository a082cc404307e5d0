package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fancy-planties/verification-service/models"
	"github.com/fancy-planties/verification-service/utils"
)

const codeDigits = 6

type VerificationConfig struct {
	CodeTTL        time.Duration
	MaxAttempts    int
	IssueLimit     int
	IssueWindow    time.Duration
	ValidateLimit  int
	ValidateWindow time.Duration
}

func DefaultVerificationConfig() VerificationConfig {
	return VerificationConfig{
		CodeTTL:        10 * time.Minute,
		MaxAttempts:    5,
		IssueLimit:     5,
		IssueWindow:    time.Hour,
		ValidateLimit:  30,
		ValidateWindow: 15 * time.Minute,
	}
}

// VerificationService owns the code lifecycle: NoCode -> CodeActive ->
// {Consumed | Expired | AttemptsExhausted}. Consumed is the only path that
// touches the account, and it is reached at most once per code.
type VerificationService struct {
	codes       CodeStore
	users       UserStore
	limiter     Limiter
	mailer      Mailer
	securityLog *SecurityLog
	logger      *zap.Logger
	cfg         VerificationConfig

	// replaced in tests
	now func() time.Time
}

func NewVerificationService(
	codes CodeStore,
	users UserStore,
	limiter Limiter,
	mailer Mailer,
	securityLog *SecurityLog,
	logger *zap.Logger,
	cfg VerificationConfig,
) *VerificationService {
	return &VerificationService{
		codes:       codes,
		users:       users,
		limiter:     limiter,
		mailer:      mailer,
		securityLog: securityLog,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// IssueCode invalidates any previous code for the user, stores a fresh
// 6-digit code and mails it. The plaintext code is also returned so a
// caller with its own transport can deliver it. A second call in quick
// succession simply supersedes the first code; the rate limiter is what
// keeps that from being abused.
func (s *VerificationService) IssueCode(ctx context.Context, userID int, ip string) (string, error) {
	if err := s.allow(ctx, fmt.Sprintf("issue:user:%d", userID), s.cfg.IssueLimit, s.cfg.IssueWindow); err != nil {
		return "", err
	}
	if ip != "" {
		if err := s.allow(ctx, "issue:ip:"+ip, s.cfg.IssueLimit, s.cfg.IssueWindow); err != nil {
			return "", err
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", storeFail(err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	if user.Verified {
		return "", ErrAlreadyVerified
	}

	code, err := utils.GenerateVerificationCode(codeDigits)
	if err != nil {
		return "", fmt.Errorf("failed to generate a verification code: %w", err)
	}

	now := s.now()
	err = s.codes.Replace(ctx, &models.VerificationCode{
		UserID:    userID,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.CodeTTL),
	})
	if err != nil {
		return "", storeFail(err)
	}
	s.logger.Info("verification code issued", zap.Int("user_id", userID))

	// the code row is already committed; a mail failure is reported but
	// never rolls it back, the user can ask for a resend
	if err := s.mailer.SendVerificationCode(user.Email, code); err != nil {
		s.logger.Warn("verification mail failed", zap.Int("user_id", userID), zap.Error(err))
		return code, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return code, nil
}

// ValidateCode resolves the email and tries to consume the submitted code.
// The consume is a single conditional delete, so under concurrent calls at
// most one of them succeeds; everyone else falls through to the re-read and
// gets a failure classification in the order expiry, attempts, value.
func (s *VerificationService) ValidateCode(ctx context.Context, email, code, ip string) error {
	if ip != "" {
		if err := s.allow(ctx, "validate:ip:"+ip, s.cfg.ValidateLimit, s.cfg.ValidateWindow); err != nil {
			return err
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return storeFail(err)
	}
	if user == nil {
		// do the same amount of store work as the unknown-code path, so
		// response timing does not reveal whether the account exists
		if _, err := s.codes.GetByUserID(ctx, 0); err != nil {
			return storeFail(err)
		}
		return ErrUserNotFound
	}

	if err := s.allow(ctx, fmt.Sprintf("validate:user:%d", user.ID), s.cfg.ValidateLimit, s.cfg.ValidateWindow); err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	now := s.now()
	consumed, err := s.codes.Consume(ctx, user.ID, code, now, s.cfg.MaxAttempts)
	if err != nil {
		return storeFail(err)
	}
	if consumed {
		if err := s.users.MarkVerified(ctx, user.ID); err != nil {
			return storeFail(err)
		}
		s.logger.Info("user verified", zap.Int("user_id", user.ID))
		return nil
	}

	// the consume matched nothing; re-read the row (it may be gone) to
	// decide why, without mutating anything but the attempt count
	vc, err := s.codes.GetByUserID(ctx, user.ID)
	if err != nil {
		return storeFail(err)
	}
	switch {
	case vc == nil:
		// never issued, already consumed by a concurrent call, or swept:
		// these all collapse to the same outward signal
		return ErrCodeInvalid
	case vc.IsExpired(now):
		return ErrCodeExpired
	case vc.AttemptsExhausted(s.cfg.MaxAttempts):
		s.securityLog.Record(EventAttemptsExhausted, fmt.Sprintf("user:%d", user.ID), "")
		return ErrTooManyAttempts
	default:
		if err := s.codes.IncrementAttempts(ctx, user.ID); err != nil {
			return storeFail(err)
		}
		s.securityLog.Record(EventCodeMismatch, fmt.Sprintf("user:%d", user.ID), "")
		return ErrCodeInvalid
	}
}

// CleanupExpiredCodes sweeps every code past its expiry. Maintenance only;
// account state is never touched here.
func (s *VerificationService) CleanupExpiredCodes(ctx context.Context) (int64, error) {
	removed, err := s.codes.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, storeFail(err)
	}
	return removed, nil
}

func (s *VerificationService) allow(ctx context.Context, key string, limit int, window time.Duration) error {
	ok, err := s.limiter.Allow(ctx, key, limit, window)
	if err != nil {
		// limiters fail open; an error here still means the call proceeds
		s.logger.Warn("rate limiter error", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		s.securityLog.Record(EventRateLimited, key, "")
		s.logger.Warn("rate limited", zap.String("key", key))
		return ErrRateLimited
	}
	return nil
}

func storeFail(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
